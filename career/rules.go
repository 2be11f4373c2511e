package career

import (
	"github.com/cockroachdb/errors"
	"github.com/warp/career-engine/generic"
)

// =============================================================================
// RULES - Immutable configuration shared by every track
// =============================================================================

// Rules holds everything that is configuration rather than behavior: the
// hierarchy, minimum time in rank, the overflow rule, retirement limits and
// the evaluation calendar. The engine clones Rules on construction, so a
// caller may reuse or modify its own value afterwards.
type Rules struct {
	Hierarchy Hierarchy

	// MinimumYears is the minimum time in rank for a regular promotion.
	// A rank without an entry is never promoted through the regular rule.
	MinimumYears map[Rank]int

	Overflow   OverflowRule
	Retirement RetirementRule
	Calendar   generic.CycleCalendar
}

// OverflowRule promotes by tenure alone, above quota, from the listed ranks.
type OverflowRule struct {
	Years int
	Ranks map[Rank]bool
}

// Eligible reports whether a record at rank with yearsInRank qualifies.
func (o OverflowRule) Eligible(rank Rank, yearsInRank int) bool {
	return o.Ranks[rank] && yearsInRank >= o.Years
}

// RetirementRule bounds age and service length.
type RetirementRule struct {
	Age int

	// Service-length threshold is a run parameter; these bound it.
	MinServiceYears     int
	MaxServiceYears     int
	DefaultServiceYears int
}

// ServiceThreshold resolves a requested threshold: zero selects the default,
// anything outside [MinServiceYears, MaxServiceYears] is rejected.
func (r RetirementRule) ServiceThreshold(requested int) (int, error) {
	if requested == 0 {
		return r.DefaultServiceYears, nil
	}
	if requested < r.MinServiceYears || requested > r.MaxServiceYears {
		return 0, errors.WithHintf(
			errors.Wrapf(ErrInvalidRetirementThreshold, "%d", requested),
			"use a value between %d and %d", r.MinServiceYears, r.MaxServiceYears)
	}
	return requested, nil
}

// MinimumFor returns the minimum time in rank and whether one is defined.
func (r Rules) MinimumFor(rank Rank) (int, bool) {
	n, ok := r.MinimumYears[rank]
	return n, ok
}

// Validate checks internal consistency.
func (r Rules) Validate() error {
	if r.Hierarchy.Len() < 2 {
		return errors.Wrap(ErrInvalidRules, "hierarchy is empty")
	}
	for rank, years := range r.MinimumYears {
		if !r.Hierarchy.Contains(rank) {
			return errors.Wrapf(ErrInvalidRules, "minimum time for unknown rank %d", rank)
		}
		if years < 0 {
			return errors.Wrapf(ErrInvalidRules, "negative minimum time for %s", r.Hierarchy.Label(rank))
		}
	}
	for rank := range r.Overflow.Ranks {
		if !r.Hierarchy.Contains(rank) {
			return errors.Wrapf(ErrInvalidRules, "overflow rank %d outside the hierarchy", rank)
		}
		if rank == r.Hierarchy.Top() {
			return errors.Wrapf(ErrInvalidRules, "overflow rank %s has no rank above it", r.Hierarchy.Label(rank))
		}
	}
	if len(r.Overflow.Ranks) > 0 && r.Overflow.Years <= 0 {
		return errors.Wrap(ErrInvalidRules, "overflow tenure must be positive")
	}
	ret := r.Retirement
	if ret.Age <= 0 {
		return errors.Wrap(ErrInvalidRules, "retirement age must be positive")
	}
	if ret.MinServiceYears <= 0 || ret.MaxServiceYears < ret.MinServiceYears {
		return errors.Wrapf(ErrInvalidRules, "service range [%d, %d]", ret.MinServiceYears, ret.MaxServiceYears)
	}
	if ret.DefaultServiceYears < ret.MinServiceYears || ret.DefaultServiceYears > ret.MaxServiceYears {
		return errors.Wrapf(ErrInvalidRules, "default service %d outside [%d, %d]",
			ret.DefaultServiceYears, ret.MinServiceYears, ret.MaxServiceYears)
	}
	if err := r.Calendar.Validate(); err != nil {
		return errors.Wrap(err, "calendar")
	}
	return nil
}

// clone deep-copies the maps and slices so the engine owns its rules.
func (r Rules) clone() Rules {
	out := r
	out.MinimumYears = make(map[Rank]int, len(r.MinimumYears))
	for k, v := range r.MinimumYears {
		out.MinimumYears[k] = v
	}
	out.Overflow.Ranks = make(map[Rank]bool, len(r.Overflow.Ranks))
	for k, v := range r.Overflow.Ranks {
		out.Overflow.Ranks[k] = v
	}
	out.Calendar.Days = append([]generic.MonthDay(nil), r.Calendar.Days...)
	return out
}
