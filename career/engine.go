/*
engine.go - The per-track progression fold

PURPOSE:
  Runs one track's full cycle sequence. Each cycle date applies, in order:
    1. Promotion Evaluator   (promotion.go)
    2. Supernumerary Absorber (absorption.go)
    3. Retirement Filter     (retirement.go)
  Cycle N+1 sees the roster exactly as cycle N left it.

INPUTS:
  Roster, baseline Quota, Horizon (now .. target), service-length
  threshold, tracked ids and an optional per-date migrated addend.

OUTPUTS:
  Final active roster, retired roster, per-tracked-id history and the
  leftover vacancies of every cycle date.

PURITY:
  The engine copies the roster into a private arena. The caller's slice is
  never modified, so the same roster can feed several runs at once.

EXAMPLE:
  engine, _ := career.NewEngine(rules, logger)
  result, err := engine.Run(career.Input{
      Track:           "qomt",
      Roster:          records,
      Quota:           quota,
      Horizon:         generic.NewPeriod(today, target),
      RetirementYears: 35,
  })

SEE ALSO:
  - migration.go: runs several tracks and couples them
  - rules.go: configuration consumed here
*/
package career

import (
	"github.com/cockroachdb/errors"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs tracks under one immutable set of rules. It is safe for
// concurrent use.
type Engine struct {
	rules  Rules
	logger *zap.Logger
}

// NewEngine validates and takes a private copy of rules. A nil logger
// discards output.
func NewEngine(rules Rules, logger *zap.Logger) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules.clone(), logger: logging.OrNop(logger)}, nil
}

// Rules returns a copy of the engine's rules.
func (e *Engine) Rules() Rules { return e.rules.clone() }

// Input is one track run.
type Input struct {
	Track   string // identifies the run in logs
	Roster  []Record
	Quota   Quota
	Horizon generic.Period

	// RetirementYears is the service-length threshold; zero selects the
	// rules' default.
	RetirementYears int

	Tracked  []int64
	Migrated Vacancies
}

// Result is the outcome of one track run.
type Result struct {
	Track     string
	Cycles    []generic.TimePoint
	Active    []Record
	Retired   []Retirement
	History   History
	Leftovers Vacancies
}

// Run folds the roster over every cycle date of the horizon.
func (e *Engine) Run(in Input) (*Result, error) {
	if err := e.Validate(in.Roster); err != nil {
		return nil, err
	}
	serviceYears, err := e.rules.Retirement.ServiceThreshold(in.RetirementYears)
	if err != nil {
		return nil, err
	}

	log := e.logger.With(zap.String(logging.FieldTrack, in.Track))
	state := newRunState(&e.rules, in.Track, in.Roster, in.Tracked, log)
	cycles := e.rules.Calendar.Dates(in.Horizon)
	leftovers := make(Vacancies, len(cycles))

	for _, date := range cycles {
		book := quotaBook{
			base:  in.Quota,
			extra: in.Migrated.At(date),
			state: state,
			date:  date,
		}

		leftover := state.promote(date, book)
		state.absorb(date, book)
		retired := state.retire(date, serviceYears)

		leftovers[date.String()] = leftover
		log.Debug("cycle evaluated",
			zap.String(logging.FieldCycle, date.String()),
			zap.Int(logging.FieldActive, len(state.active)),
			zap.Int(logging.FieldRetired, retired),
			zap.Int(logging.FieldLeftover, leftover.Total()),
		)
	}

	log.Info("track simulated",
		zap.Int(logging.FieldCycles, len(cycles)),
		zap.Int(logging.FieldActive, len(state.active)),
		zap.Int(logging.FieldRetired, len(state.retired)),
	)

	return &Result{
		Track:     in.Track,
		Cycles:    cycles,
		Active:    state.activeRecords(),
		Retired:   state.retired,
		History:   state.tracker.history,
		Leftovers: leftovers,
	}, nil
}

// Validate rejects structurally broken rosters: missing ids, ranks outside
// the hierarchy and duplicate ids.
func (e *Engine) Validate(roster []Record) error {
	seen := make(map[int64]int, len(roster))
	for i, r := range roster {
		if r.ID == 0 {
			return &RecordError{Index: i, Err: ErrMissingID}
		}
		if !e.rules.Hierarchy.Contains(r.Rank) {
			return &RecordError{Index: i, ID: r.ID, Err: errors.Wrapf(ErrUnknownRank, "rank %d", r.Rank)}
		}
		if first, dup := seen[r.ID]; dup {
			return &RecordError{Index: i, ID: r.ID, Err: errors.Wrapf(ErrDuplicateID, "first seen at record %d", first)}
		}
		seen[r.ID] = i
	}
	return nil
}

// =============================================================================
// RESULT QUERIES
// =============================================================================

// Status returns the final status of id.
func (r *Result) Status(id int64) FinalStatus {
	if rec, ok := r.Find(id); ok {
		if rec.Supernumerary() {
			return FinalSupernumerary
		}
		return FinalActive
	}
	if _, ok := r.Retirement(id); ok {
		return FinalRetired
	}
	return FinalUnknown
}

// Find returns the active record with id.
func (r *Result) Find(id int64) (Record, bool) {
	for _, rec := range r.Active {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Retirement returns the retirement entry of id.
func (r *Result) Retirement(id int64) (Retirement, bool) {
	for _, ret := range r.Retired {
		if ret.ID == id {
			return ret, true
		}
	}
	return Retirement{}, false
}

// CountByRank tallies the active roster as regular and supernumerary counts.
func (r *Result) CountByRank() (regular, supernumerary RankCounts) {
	regular, supernumerary = make(RankCounts), make(RankCounts)
	for _, rec := range r.Active {
		if rec.Supernumerary() {
			supernumerary[rec.Rank]++
		} else {
			regular[rec.Rank]++
		}
	}
	return regular, supernumerary
}
