// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// keyKind namespaces the record types within the key prefix.
type keyKind string

const (
	kindAuthCode keyKind = "code"
	kindRefresh  keyKind = "refresh"
	kindClient   keyKind = "client"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password are optional ACL credentials.
	Username string
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces all keys, e.g. "membank:auth:".
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStorage implements the Storage interface with a Redis backend,
// enabling multi-instance deployments. Records are stored as JSON with
// server-side TTLs; single-use redemption relies on GETDEL, which Redis
// executes atomically.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates Redis-backed storage. Returns an error if the
// configuration is invalid or the server cannot be reached.
func NewRedisStorage(ctx context.Context, cfg RedisConfig) (*RedisStorage, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		return nil, errors.New("key prefix is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewRedisStorageWithClient creates a RedisStorage with a pre-configured
// client. This is useful for testing with miniredis.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string) *RedisStorage {
	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Close closes the Redis client connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Health checks Redis connectivity.
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStorage) key(kind keyKind, id string) string {
	var b strings.Builder
	b.WriteString(s.keyPrefix)
	b.WriteString(string(kind))
	b.WriteString(":")
	b.WriteString(id)
	return b.String()
}

// put marshals a record and stores it with the given TTL.
func (s *RedisStorage) put(ctx context.Context, key string, record any, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// take atomically fetches and deletes a record via GETDEL. Expired keys are
// evicted server-side, so a miss covers unknown, expired, and consumed alike.
func (s *RedisStorage) take(ctx context.Context, key string, out any) error {
	data, err := s.client.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to take record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// PutAuthorizationCode stores a pending authorization code.
func (s *RedisStorage) PutAuthorizationCode(ctx context.Context, code string, record *AuthorizationCode) error {
	if code == "" {
		return errEmptyKey("authorization code")
	}
	if record == nil {
		return errNilRecord()
	}
	return s.put(ctx, s.key(kindAuthCode, code), record, AuthorizationCodeTTL)
}

// TakeAuthorizationCode atomically fetches and deletes an authorization code.
func (s *RedisStorage) TakeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error) {
	var record AuthorizationCode
	if err := s.take(ctx, s.key(kindAuthCode, code), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PutRefreshToken stores a refresh token.
func (s *RedisStorage) PutRefreshToken(ctx context.Context, token string, record *RefreshToken) error {
	if token == "" {
		return errEmptyKey("refresh token")
	}
	if record == nil {
		return errNilRecord()
	}
	return s.put(ctx, s.key(kindRefresh, token), record, RefreshTokenTTL)
}

// TakeRefreshToken atomically fetches and deletes a refresh token.
func (s *RedisStorage) TakeRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	var record RefreshToken
	if err := s.take(ctx, s.key(kindRefresh, token), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PutClient stores a client registration.
func (s *RedisStorage) PutClient(ctx context.Context, client *ClientRegistration) error {
	if client == nil {
		return errNilRecord()
	}
	if client.ClientID == "" {
		return errEmptyKey("client ID")
	}
	return s.put(ctx, s.key(kindClient, client.ClientID), client, ClientRegistrationTTL)
}

// GetClient retrieves a client registration by ID.
func (s *RedisStorage) GetClient(ctx context.Context, clientID string) (*ClientRegistration, error) {
	data, err := s.client.Get(ctx, s.key(kindClient, clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	var client ClientRegistration
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &client, nil
}
