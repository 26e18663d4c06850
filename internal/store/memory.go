package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     map[string]interface{}
	expiresAt time.Time
}

// MemoryStore is an in-process FeatureStore used in tests and when Redis
// is unavailable at startup.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, namespace, key string) (map[string]interface{}, error) {
	s.mu.RLock()
	entry, ok := s.entries[namespace+":"+key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, namespace+":"+key)
		s.mu.Unlock()
		return nil, nil
	}

	// Copy so callers cannot mutate stored state.
	value := make(map[string]interface{}, len(entry.value))
	for k, v := range entry.value {
		value[k] = v
	}
	return value, nil
}

func (s *MemoryStore) Set(_ context.Context, namespace, key string, value map[string]interface{}, ttl time.Duration) error {
	copied := make(map[string]interface{}, len(value))
	for k, v := range value {
		copied[k] = v
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[namespace+":"+key] = memoryEntry{value: copied, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	delete(s.entries, namespace+":"+key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
