// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package authserver assembles the OAuth 2.1 authorization server: storage,
// token signer, and HTTP handlers behind a single constructor.
package authserver

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/membank/membank/pkg/authserver/signer"
	"github.com/membank/membank/pkg/authserver/storage"
)

// Storage backend names accepted in Config.
const (
	StorageBackendMemory = "memory"
	StorageBackendRedis  = "redis"
)

// Config is the fully resolved configuration for the authorization server.
// All values must be final (no file paths, no env var references).
type Config struct {
	// Issuer is the external origin of this server, without a trailing
	// slash. It becomes the "iss" claim of every issued token.
	Issuer string

	// SigningSecret is the symmetric secret for access token signatures.
	// Must be at least 32 bytes and consistent across replicas.
	SigningSecret []byte

	// AccessTokenTTL is the lifetime of issued access tokens.
	// If zero, defaults to 24 hours.
	AccessTokenTTL time.Duration

	// Audiences lists the resource identifiers tokens may be minted for.
	// The issuer itself is always an acceptable audience.
	Audiences []string

	// Storage selects and configures the OAuth state backend.
	Storage StorageConfig
}

// StorageConfig selects the OAuth state backend.
type StorageConfig struct {
	// Backend is "memory" or "redis". Defaults to "memory".
	Backend string

	// Redis configures the redis backend. Ignored for memory.
	Redis storage.RedisConfig
}

// DefaultConfig returns a config with defaults applied for everything except
// the issuer and signing secret, which have no sensible defaults.
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL: signer.DefaultAccessTokenTTL,
		Storage: StorageConfig{
			Backend: StorageBackendMemory,
		},
	}
}

// applyDefaults fills zero values in place.
func (c *Config) applyDefaults() {
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = signer.DefaultAccessTokenTTL
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendMemory
	}
}

// Validate checks that the config is complete and consistent.
func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("issuer is not a valid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("issuer must be an http(s) URL")
	}
	if strings.HasSuffix(c.Issuer, "/") {
		return fmt.Errorf("issuer must not end with a slash")
	}

	if len(c.SigningSecret) < signer.MinSecretLength {
		return fmt.Errorf("signing secret must be at least %d bytes", signer.MinSecretLength)
	}

	switch c.Storage.Backend {
	case StorageBackendMemory:
	case StorageBackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis storage requires an address")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}
