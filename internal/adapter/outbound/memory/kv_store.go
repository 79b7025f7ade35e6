package memory

import (
	"context"
	"sync"

	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

// KVStore is a process-local key-value store. It backs the cache when the
// CLI runs with --remember=false and the tests of everything above it.
type KVStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewKVStore creates an empty store.
func NewKVStore() *KVStore {
	return &KVStore{entries: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// Remove deletes key.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// SetMany stores every pair under one lock.
func (s *KVStore) SetMany(ctx context.Context, pairs map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range pairs {
		s.entries[k] = v
	}
	return nil
}

// RemoveMany deletes every key under one lock.
func (s *KVStore) RemoveMany(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ outbound.BatchKeyValueStore = (*KVStore)(nil)
