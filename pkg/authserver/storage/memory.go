// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// timedEntry wraps a value with its expiry for TTL tracking.
type timedEntry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

func (e *timedEntry[T]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStorage implements the Storage interface with in-memory maps.
// It is thread-safe and suitable for single-instance deployments, development
// and testing; multi-instance deployments should use RedisStorage.
//
// Take operations hold the write lock across lookup and delete, which is what
// makes redemption at-most-once: two concurrent takes of the same key
// serialize, and the second observes the deletion.
type MemoryStorage struct {
	mu sync.RWMutex

	authCodes     map[string]*timedEntry[*AuthorizationCode]
	refreshTokens map[string]*timedEntry[*RefreshToken]
	clients       map[string]*timedEntry[*ClientRegistration]

	cleanupInterval time.Duration

	// stopCleanup signals the cleanup goroutine to stop; cleanupDone is
	// closed when it has fully stopped.
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// MemoryStorageOption configures a MemoryStorage instance.
type MemoryStorageOption func(*MemoryStorage)

// WithCleanupInterval sets a custom cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryStorageOption {
	return func(s *MemoryStorage) {
		s.cleanupInterval = interval
	}
}

// NewMemoryStorage creates a new MemoryStorage with initialized maps and
// starts the background cleanup goroutine.
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		authCodes:       make(map[string]*timedEntry[*AuthorizationCode]),
		refreshTokens:   make(map[string]*timedEntry[*RefreshToken]),
		clients:         make(map[string]*timedEntry[*ClientRegistration]),
		cleanupInterval: DefaultCleanupInterval,
		stopCleanup:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()

	return s
}

var _ Storage = (*MemoryStorage)(nil)

// Health is a no-op for in-memory storage since it is always available.
func (*MemoryStorage) Health(_ context.Context) error {
	return nil
}

// Close stops the background cleanup goroutine and waits for it to finish.
func (s *MemoryStorage) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

// cleanupLoop runs periodic cleanup of expired entries.
func (s *MemoryStorage) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes all expired entries. Expired entries are already
// unreadable (every accessor checks expiry); this just reclaims memory.
// Uses collect-then-delete: keys are collected under the read lock, then
// deleted under the write lock, to minimize write lock hold time.
func (s *MemoryStorage) cleanupExpired() {
	now := time.Now()

	s.mu.RLock()

	var expiredCodes []string
	for k, v := range s.authCodes {
		if v.expired(now) {
			expiredCodes = append(expiredCodes, k)
		}
	}

	var expiredTokens []string
	for k, v := range s.refreshTokens {
		if v.expired(now) {
			expiredTokens = append(expiredTokens, k)
		}
	}

	var expiredClients []string
	for k, v := range s.clients {
		if v.expired(now) {
			expiredClients = append(expiredClients, k)
		}
	}

	s.mu.RUnlock()

	if len(expiredCodes) == 0 && len(expiredTokens) == 0 && len(expiredClients) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range expiredCodes {
		delete(s.authCodes, k)
	}
	for _, k := range expiredTokens {
		delete(s.refreshTokens, k)
	}
	for _, k := range expiredClients {
		delete(s.clients, k)
	}
}

// PutAuthorizationCode stores a pending authorization code.
func (s *MemoryStorage) PutAuthorizationCode(_ context.Context, code string, record *AuthorizationCode) error {
	if code == "" {
		return errEmptyKey("authorization code")
	}
	if record == nil {
		return errNilRecord()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *record
	s.authCodes[code] = &timedEntry[*AuthorizationCode]{
		value:     &cp,
		createdAt: now,
		expiresAt: now.Add(AuthorizationCodeTTL),
	}
	return nil
}

// TakeAuthorizationCode atomically fetches and deletes an authorization code.
func (s *MemoryStorage) TakeAuthorizationCode(_ context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.authCodes[code]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.authCodes, code)

	if entry.expired(time.Now()) {
		return nil, ErrNotFound
	}

	cp := *entry.value
	return &cp, nil
}

// PutRefreshToken stores a refresh token.
func (s *MemoryStorage) PutRefreshToken(_ context.Context, token string, record *RefreshToken) error {
	if token == "" {
		return errEmptyKey("refresh token")
	}
	if record == nil {
		return errNilRecord()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cp := *record
	s.refreshTokens[token] = &timedEntry[*RefreshToken]{
		value:     &cp,
		createdAt: now,
		expiresAt: now.Add(RefreshTokenTTL),
	}
	return nil
}

// TakeRefreshToken atomically fetches and deletes a refresh token.
func (s *MemoryStorage) TakeRefreshToken(_ context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.refreshTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.refreshTokens, token)

	if entry.expired(time.Now()) {
		return nil, ErrNotFound
	}

	cp := *entry.value
	return &cp, nil
}

// PutClient stores a client registration.
func (s *MemoryStorage) PutClient(_ context.Context, client *ClientRegistration) error {
	if client == nil {
		return errNilRecord()
	}
	if client.ClientID == "" {
		return errEmptyKey("client ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.clients[client.ClientID] = &timedEntry[*ClientRegistration]{
		value:     copyClient(client),
		createdAt: now,
		expiresAt: now.Add(ClientRegistrationTTL),
	}
	return nil
}

// GetClient retrieves a client registration by ID.
func (s *MemoryStorage) GetClient(_ context.Context, clientID string) (*ClientRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.clients[clientID]
	if !ok || entry.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return copyClient(entry.value), nil
}

// copyClient makes a defensive copy to prevent aliasing of the slice fields.
func copyClient(c *ClientRegistration) *ClientRegistration {
	cp := *c
	cp.RedirectURIs = slices.Clone(c.RedirectURIs)
	cp.GrantTypes = slices.Clone(c.GrantTypes)
	cp.ResponseTypes = slices.Clone(c.ResponseTypes)
	return &cp
}

// Stats contains statistics about the storage contents, useful for testing
// and monitoring.
type Stats struct {
	AuthCodes     int
	RefreshTokens int
	Clients       int
}

// Stats returns current statistics about storage contents.
func (s *MemoryStorage) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		AuthCodes:     len(s.authCodes),
		RefreshTokens: len(s.refreshTokens),
		Clients:       len(s.clients),
	}
}
