package counters

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	// Now is overridable for window tests. Defaults to time.Now.
	Now func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		Now:     time.Now,
	}
}

func (s *MemoryStore) get(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && s.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) Increment(ctx context.Context, key string) (int64, error) {
	return s.IncrementBy(ctx, key, 1)
}

func (s *MemoryStore) IncrementBy(_ context.Context, key string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	n, _ := strconv.ParseInt(e.value, 10, 64)
	n += amount
	e.value = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) SetExpiration(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.get(key); e != nil {
		e.expiresAt = at
	}
	return nil
}

func (s *MemoryStore) GetInt64(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		return 0, nil
	}
	return strconv.ParseInt(e.value, 10, 64)
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.get(key)
	if e == nil {
		return "", nil
	}
	return e.value, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
