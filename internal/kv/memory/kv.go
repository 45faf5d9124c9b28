// Package memory provides an in-memory TTL key/value store for development/testing.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// KV is a thread-safe in-memory TTL key/value store.
type KV struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New constructs a KV.
func New() *KV {
	return &KV{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock constructs a KV with an injected time source (tests).
func NewWithClock(now func() time.Time) *KV {
	return &KV{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Get returns the value for key if present and unexpired.
func (s *KV) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock; another Set may have refreshed it.
		if cur, ok := s.entries[key]; ok && s.now().After(cur.expiresAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores key=value with the given ttl, overwriting any prior value.
func (s *KV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}
