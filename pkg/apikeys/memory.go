// SPDX-FileCopyrightText: Copyright 2025 membank authors
// SPDX-License-Identifier: Apache-2.0

package apikeys

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory maps. It is thread-safe and
// suitable for tests and ephemeral development runs; production deployments
// should use the SQLite store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Key
	byHash map[string]string // keyHash -> id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Key),
		byHash: make(map[string]string),
	}
}

var _ Store = (*MemoryStore)(nil)

// Create persists a new key record.
func (s *MemoryStore) Create(_ context.Context, key *Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[key.ID]; exists {
		return fmt.Errorf("%w: id %s", ErrAlreadyExists, key.ID)
	}
	if _, exists := s.byHash[key.KeyHash]; exists {
		return fmt.Errorf("%w: duplicate hash", ErrAlreadyExists)
	}

	cp := *key
	s.byID[key.ID] = &cp
	s.byHash[key.KeyHash] = key.ID
	return nil
}

// GetByHash looks up a key by its hash.
func (s *MemoryStore) GetByHash(_ context.Context, keyHash string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[keyHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

// GetByID looks up a key by its identifier.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *key
	return &cp, nil
}

// List returns all keys, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*Key, 0, len(s.byID))
	for _, key := range s.byID {
		cp := *key
		keys = append(keys, &cp)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

// Deactivate marks a key as revoked.
func (s *MemoryStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	key.Active = false
	return nil
}

// TouchLastUsed updates the last-used timestamp.
func (s *MemoryStore) TouchLastUsed(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	key.LastUsedAt = &usedAt
	return nil
}

// Close is a no-op for the in-memory store.
func (*MemoryStore) Close() error {
	return nil
}
