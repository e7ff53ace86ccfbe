// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package authserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/authserver/storage"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Issuer = "https://auth.example.com"
	cfg.SigningSecret = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing issuer",
			mutate:  func(c *Config) { c.Issuer = "" },
			wantErr: "issuer is required",
		},
		{
			name:    "issuer with trailing slash",
			mutate:  func(c *Config) { c.Issuer = "https://auth.example.com/" },
			wantErr: "must not end with a slash",
		},
		{
			name:    "issuer not a URL",
			mutate:  func(c *Config) { c.Issuer = "not a url" },
			wantErr: "http(s)",
		},
		{
			name:    "short signing secret",
			mutate:  func(c *Config) { c.SigningSecret = []byte("too-short") },
			wantErr: "at least 32 bytes",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "etcd" },
			wantErr: "unknown storage backend",
		},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendRedis
				c.Storage.Redis = storage.RedisConfig{}
			},
			wantErr: "redis storage requires an address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.applyDefaults()

	assert.Equal(t, signer.DefaultAccessTokenTTL, cfg.AccessTokenTTL)
	assert.Equal(t, StorageBackendMemory, cfg.Storage.Backend)

	// Explicit values survive.
	cfg = Config{AccessTokenTTL: time.Hour, Storage: StorageConfig{Backend: StorageBackendRedis}}
	cfg.applyDefaults()
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, StorageBackendRedis, cfg.Storage.Backend)
}
