// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import (
	"slices"
	"sync"
)

// Memory is an in-memory store for testing.
type Memory struct {
	mu   sync.RWMutex
	runs []Run
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save records a run.
func (m *Memory) Save(r *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == r.ID {
			m.runs[i] = *r
			return nil
		}
	}
	m.runs = append(m.runs, *r)
	return nil
}

// Get retrieves a run by ID.
func (m *Memory) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, nil
}

// Latest returns the most recent run.
func (m *Memory) Latest() (*Run, error) {
	runs, err := m.List(1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// List returns runs newest first.
func (m *Memory) List(limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.runs)
	// Equal timestamps list the later save first.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b Run) int {
		return b.Ts.Compare(a.Ts)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}
