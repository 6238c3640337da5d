package cache

import (
	"sync"

	"github.com/PhD-Shin/PKM/model"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.CacheEntry
	tasks   map[string]model.ClusterTask
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]model.CacheEntry{},
		tasks:   map[string]model.ClusterTask{},
	}
}

func (s *MemoryStore) SelectCacheEntry(key string) (*model.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return &e, nil
}

func (s *MemoryStore) UpsertCacheEntry(entry *model.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	e.Payload = append([]byte(nil), entry.Payload...)
	s.entries[entry.Key] = e
	return nil
}

func (s *MemoryStore) DeleteCacheEntry(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) SelectTask(key string) (*model.ClusterTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) UpsertTask(task *model.ClusterTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.Key] = *task
	return nil
}
