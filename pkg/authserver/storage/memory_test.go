// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_ExpiredCodeBehavesAsAbsent(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.PutAuthorizationCode(context.Background(), "stale", testCode()))

	// Force expiry by rewriting the entry's deadline.
	s.mu.Lock()
	s.authCodes["stale"].expiresAt = time.Now().Add(-time.Second)
	s.mu.Unlock()

	_, err := s.TakeAuthorizationCode(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorage_CleanupExpired(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage(WithCleanupInterval(time.Hour))
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	require.NoError(t, s.PutAuthorizationCode(ctx, "live", testCode()))
	require.NoError(t, s.PutAuthorizationCode(ctx, "dead", testCode()))
	require.NoError(t, s.PutRefreshToken(ctx, "mrt_dead", &RefreshToken{APIKeyID: "k"}))

	past := time.Now().Add(-time.Second)
	s.mu.Lock()
	s.authCodes["dead"].expiresAt = past
	s.refreshTokens["mrt_dead"].expiresAt = past
	s.mu.Unlock()

	s.cleanupExpired()

	stats := s.Stats()
	assert.Equal(t, 1, stats.AuthCodes)
	assert.Equal(t, 0, stats.RefreshTokens)
}

func TestMemoryStorage_CloseStopsCleanup(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage(WithCleanupInterval(10 * time.Millisecond))
	require.NoError(t, s.Close())

	// Close must be idempotent-safe to observe: the cleanup goroutine has
	// fully stopped once Close returns.
	select {
	case <-s.cleanupDone:
	default:
		t.Fatal("cleanup goroutine still running after Close")
	}
}

func TestMemoryStorage_ClientDefensiveCopy(t *testing.T) {
	t.Parallel()

	s := NewMemoryStorage()
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	client := &ClientRegistration{
		ClientID:     "client-1",
		RedirectURIs: []string{"http://127.0.0.1/cb"},
	}
	require.NoError(t, s.PutClient(ctx, client))

	// Mutating the caller's slice must not affect the stored record.
	client.RedirectURIs[0] = "http://evil.example.com/cb"

	got, err := s.GetClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1/cb", got.RedirectURIs[0])
}
