package memory

import (
	"context"
	"sync"

	audit "govdash/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process memory, indexed by entity.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[audit.EntityRef][]audit.Event
	all    []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[audit.EntityRef][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := event.Entity()
	s.events[ref] = append(s.events[ref], event)
	s.all = append(s.all, event)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, ref audit.EntityRef) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[ref]...), nil
}

// ListRecent returns the most recent N events in append order.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.all) - limit
	if start < 0 {
		start = 0
	}
	return append([]audit.Event{}, s.all[start:]...), nil
}
