package cache

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	modified time.Time
	expires  time.Time
	tags     []string
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// live returns the entry of key if it has not expired. Callers hold mu.
func (s *MemoryStore) live(key string) (*memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return nil, false
	}
	return e, true
}

func (s *MemoryStore) Test(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return time.Time{}, false, nil
	}
	return e.modified, true, nil
}

func (s *MemoryStore) Touch(_ context.Context, key string, extra time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.live(key); ok {
		e.expires = e.expires.Add(extra)
	}
	return nil
}

func (s *MemoryStore) Save(_ context.Context, key string, value []byte, tags []string, lifetime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.entries[key] = &memoryEntry{
		value:    slices.Clone(value),
		modified: now,
		expires:  now.Add(lifetime),
		tags:     slices.Clone(tags),
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(e.value), true, nil
}

// CleanTag drops every entry saved under tag.
func (s *MemoryStore) CleanTag(_ context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.entries {
		if slices.Contains(e.tags, tag) {
			delete(s.entries, k)
		}
	}
	return nil
}
