// Package store provides in-memory career.Archive implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/warp/career-engine/career"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	runs    map[string]*career.Run
	order   []string // insertion order, oldest first
	rosters map[string][]career.Record
}

var _ career.Archive = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]*career.Run),
		rosters: make(map[string][]career.Record),
	}
}

// SaveRun archives a copy of run. Saving an existing id is rejected; runs are immutable.
func (m *Memory) SaveRun(_ context.Context, run *career.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[run.ID]; exists {
		return errors.Wrapf(career.ErrRunExists, "run %s", run.ID)
	}
	m.runs[run.ID] = run.Clone()
	m.order = append(m.order, run.ID)
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*career.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, errors.Wrapf(career.ErrRunNotFound, "run %s", id)
	}
	return run.Clone(), nil
}

func (m *Memory) ListRuns(_ context.Context) ([]career.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]career.RunSummary, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]].Summary())
	}
	// Stable on CreatedAt so runs saved out of order still list newest first.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

// =============================================================================
// ROSTERS
// =============================================================================

func (m *Memory) SaveRoster(_ context.Context, track string, records []career.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(records) == 0 {
		delete(m.rosters, track)
		return nil
	}
	cp := make([]career.Record, len(records))
	copy(cp, records)
	m.rosters[track] = cp
	return nil
}

func (m *Memory) GetRoster(_ context.Context, track string) ([]career.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.rosters[track]
	if !ok {
		return nil, errors.Wrapf(career.ErrRosterNotFound, "track %s", track)
	}
	cp := make([]career.Record, len(records))
	copy(cp, records)
	return cp, nil
}

func (m *Memory) RosterSizes(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sizes := make(map[string]int, len(m.rosters))
	for track, records := range m.rosters {
		sizes[track] = len(records)
	}
	return sizes, nil
}
