package waitlist

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process waitlist. Suitable for dev and tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory waitlist
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Add inserts or replaces a patient's entry
func (m *Memory) Add(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.PatientCode] = e
	return nil
}

// Remove deletes a patient's entry
func (m *Memory) Remove(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, code)
	return nil
}

// Top returns up to n entries, most urgent first
func (m *Memory) Top(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = DefaultLimit
	}

	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		si, sj := Score(out[i].PriorityScore, out[i].ArrivedAt), Score(out[j].PriorityScore, out[j].ArrivedAt)
		if si != sj {
			return si > sj
		}
		return out[i].PatientCode < out[j].PatientCode
	})

	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Len returns the number of waiting patients
func (m *Memory) Len(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}
