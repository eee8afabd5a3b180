package encounter

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore holds encounter events in memory. Suitable for dev and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]*Event
}

// NewMemoryStore initializes an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]*Event)}
}

// Load replays the stored history for a patient code
func (s *MemoryStore) Load(ctx context.Context, code string) (*Aggregate, error) {
	events, err := s.GetEvents(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	agg := NewAggregate(code)
	if err := agg.LoadFromHistory(events); err != nil {
		return nil, fmt.Errorf("replay %s: %w", code, err)
	}
	return agg, nil
}

// Save appends uncommitted events, rejecting stale aggregates
func (s *MemoryStore) Save(_ context.Context, agg *Aggregate) error {
	changes := agg.Changes()
	if len(changes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.events[agg.ID()]
	if expected := agg.Version() - len(changes); len(stored) != expected {
		return fmt.Errorf("%w: %s has %d events, aggregate expected %d",
			ErrVersionConflict, agg.ID(), len(stored), expected)
	}
	for _, e := range changes {
		cp := *e
		stored = append(stored, &cp)
	}
	s.events[agg.ID()] = stored

	agg.ClearChanges()
	return nil
}

// GetEvents returns copies of the stored events in version order
func (s *MemoryStore) GetEvents(_ context.Context, code string) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.events[code]
	out := make([]*Event, 0, len(stored))
	for _, e := range stored {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
