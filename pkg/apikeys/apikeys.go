// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

// Package apikeys manages the long-lived opaque API keys that anchor every
// identity in membank. Keys are stored as SHA-256 hashes; the plaintext is
// shown exactly once at creation time.
package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix marks a bearer value as a raw membank API key. The dual-mode
// authentication gate uses it to distinguish keys from signed access tokens.
const KeyPrefix = "msk_"

// keyEntropyBytes is the entropy of a generated key (256 bits).
const keyEntropyBytes = 32

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("api key not found")

	// ErrAlreadyExists indicates a key with the same ID or hash exists.
	ErrAlreadyExists = errors.New("api key already exists")
)

// Key is a stored API key credential. The plaintext key is never persisted,
// only its SHA-256 hash.
type Key struct {
	// ID is the stable identifier used as the token subject.
	ID string

	// KeyHash is the hex-encoded SHA-256 of the plaintext key.
	KeyHash string

	// Name identifies the owning entity (agent, user, integration).
	Name string

	// Active is false for revoked keys.
	Active bool

	CreatedAt time.Time

	// ExpiresAt, when set, is a hard expiry for the key.
	ExpiresAt *time.Time

	// LastUsedAt is bumped best-effort on each authenticated use.
	LastUsedAt *time.Time
}

// Valid reports whether the key is active and unexpired at the given time.
func (k *Key) Valid(now time.Time) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// Store provides durable storage for API key credentials.
type Store interface {
	// Create persists a new key record.
	Create(ctx context.Context, key *Key) error

	// GetByHash looks up a key by the hex-encoded SHA-256 of its plaintext.
	// Returns ErrNotFound if no key matches.
	GetByHash(ctx context.Context, keyHash string) (*Key, error)

	// GetByID looks up a key by its stable identifier.
	GetByID(ctx context.Context, id string) (*Key, error)

	// List returns all keys, newest first.
	List(ctx context.Context) ([]*Key, error)

	// Deactivate marks a key as revoked. Returns ErrNotFound for unknown IDs.
	Deactivate(ctx context.Context, id string) error

	// TouchLastUsed updates the last-used timestamp. Callers treat this as
	// fire-and-forget; failures are logged, never surfaced.
	TouchLastUsed(ctx context.Context, id string, usedAt time.Time) error

	// Close releases any underlying resources.
	Close() error
}

// HashKey returns the hex-encoded SHA-256 digest of a plaintext key.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Generate creates a new key for the named entity and returns the plaintext
// together with the record to persist. The plaintext cannot be recovered
// afterwards.
func Generate(name string, expiresAt *time.Time) (plaintext string, key *Key, err error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	plaintext = KeyPrefix + hex.EncodeToString(buf)
	key = &Key{
		ID:        uuid.NewString(),
		KeyHash:   HashKey(plaintext),
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	return plaintext, key, nil
}
