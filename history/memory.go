package history

import (
	"context"
	"errors"
	"sync"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	syncs       map[string][]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.syncs = make(map[string][]Event)
	return nil
}

func (s *MemoryStore) AppendSync(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("memory store is not initialized")
	}
	s.syncs[ev.RunID] = append(s.syncs[ev.RunID], ev)
	return nil
}

func (s *MemoryStore) ListSyncs(_ context.Context, runID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.syncs[runID]
	copied := make([]Event, len(events))
	copy(copied, events)
	return copied, nil
}

func (s *MemoryStore) Close() error { return nil }
