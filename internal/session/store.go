// Package session holds login sessions and pending verifications in a
// key/value store with expiry. The in-memory store suits a single instance;
// memcached lets several instances share sessions.
package session

import (
	"context"
	"sync"
	"time"
)

// Store is a byte-valued key/value store with per-entry TTL.
// Get returns (nil, false, nil) on a miss or an expired entry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryStore implements Store with a mutex-guarded map. Expired entries are
// removed on access and by Sweep.
type InMemoryStore struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]entry), now: time.Now}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.data, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{value: append([]byte(nil), value...), expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Sweep removes every expired entry and returns how many were removed.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, k)
			removed++
		}
	}
	return removed
}
