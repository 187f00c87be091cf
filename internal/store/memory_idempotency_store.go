package store

import (
	"context"
	"sync"
	"time"
)

// InMemoryIdempotencyStore implements IdempotencyStore with a map. Used in
// tests and in deployments that do not configure Redis; entries are lost on
// restart, so redelivered requests after a restart re-run the operation.
type InMemoryIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string]idempotencyEntry
}

type idempotencyEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{
		data: make(map[string]idempotencyEntry),
	}
}

// Get retrieves a recorded result
func (s *InMemoryIdempotencyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	return entry.value, nil
}

// Set records a result with TTL
func (s *InMemoryIdempotencyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = idempotencyEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes an idempotency key
func (s *InMemoryIdempotencyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Ping always succeeds
func (s *InMemoryIdempotencyStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *InMemoryIdempotencyStore) Close() error {
	return nil
}
