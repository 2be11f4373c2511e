/*
store.go - Persistence interfaces around the engine

PURPOSE:
  The engine itself keeps nothing between runs. The surrounding service
  archives finished runs and the rosters uploaded for each track, so
  results can be browsed after the fact. These interfaces are the seam
  between the engine's value types and a database.

KEY INTERFACES:
  RunStore:    append-only archive of finished simulations
  RosterStore: latest roster per track (replace-on-upload)

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - career/store/memory.go: in-memory for tests

SEE ALSO:
  - api/handlers.go: the only writer
*/
package career

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/warp/career-engine/generic"
)

// =============================================================================
// RUN ARCHIVE
// =============================================================================

// Run is an archived simulation: its parameters and the primary result.
type Run struct {
	ID              string
	Track           string
	Horizon         generic.Period
	RetirementYears int
	Tracked         []int64
	Feeders         []string // feeder tracks that contributed vacancies
	CreatedAt       time.Time

	Result   *Result
	Migrated Vacancies
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID              string
	Track           string
	Horizon         generic.Period
	RetirementYears int
	Cycles          int
	Active          int
	Retired         int
	CreatedAt       time.Time
}

// Summary derives the listing form.
func (r *Run) Summary() RunSummary {
	s := RunSummary{
		ID:              r.ID,
		Track:           r.Track,
		Horizon:         r.Horizon,
		RetirementYears: r.RetirementYears,
		CreatedAt:       r.CreatedAt,
	}
	if r.Result != nil {
		s.Cycles = len(r.Result.Cycles)
		s.Active = len(r.Result.Active)
		s.Retired = len(r.Result.Retired)
	}
	return s
}

// Clone returns a deep copy sharing no slices or maps with r.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Tracked = slices.Clone(r.Tracked)
	cp.Feeders = slices.Clone(r.Feeders)
	cp.Migrated = r.Migrated.clone()
	if r.Result != nil {
		res := *r.Result
		res.Cycles = slices.Clone(r.Result.Cycles)
		res.Active = slices.Clone(r.Result.Active)
		res.Retired = slices.Clone(r.Result.Retired)
		res.Leftovers = r.Result.Leftovers.clone()
		if r.Result.History != nil {
			res.History = make(History, len(r.Result.History))
			for id, events := range r.Result.History {
				res.History[id] = slices.Clone(events)
			}
		}
		cp.Result = &res
	}
	return &cp
}

func (v Vacancies) clone() Vacancies {
	if v == nil {
		return nil
	}
	out := make(Vacancies, len(v))
	for date, counts := range v {
		out[date] = maps.Clone(counts)
	}
	return out
}

// RunStore archives runs. Runs are immutable once saved.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns ErrRunNotFound for an unknown id.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns summaries, newest first.
	ListRuns(ctx context.Context) ([]RunSummary, error)
}

// =============================================================================
// ROSTERS
// =============================================================================

// RosterStore keeps the current roster of each track.
type RosterStore interface {
	// SaveRoster replaces the track's roster; an empty roster removes it.
	SaveRoster(ctx context.Context, track string, records []Record) error

	// GetRoster returns ErrRosterNotFound when nothing was uploaded.
	GetRoster(ctx context.Context, track string) ([]Record, error)

	// RosterSizes returns the record count of every stored roster.
	RosterSizes(ctx context.Context) (map[string]int, error)
}

// Archive is both stores, what the API needs.
type Archive interface {
	RunStore
	RosterStore
}
