package career

import (
	"github.com/warp/career-engine/generic"
)

// =============================================================================
// PROMOTION EVALUATOR
// =============================================================================

// promote evaluates every adjacent rank pair, lowest first, on one cycle
// date. It returns the regular slots left unfilled per rank because no
// eligible candidate remained.
//
// Per pair (current, next), candidates are taken most senior first:
//  1. Overflow rule: tenure alone promotes as supernumerary, quota or not.
//  2. Regular rule: minimum time in rank and a free slot at next.
//
// The overflow rule is tried first, so a candidate meeting both always
// becomes supernumerary.
func (s *runState) promote(date generic.TimePoint, book quotaBook) RankCounts {
	leftover := make(RankCounts)
	h := s.rules.Hierarchy

	for _, current := range h.Ranks() {
		next, ok := h.Next(current)
		if !ok {
			break
		}
		candidates := s.atRank(current)

		available, constrained := book.open(next)
		minYears, hasMinimum := s.rules.MinimumFor(current)

		for _, i := range candidates {
			r := &s.records[i]
			years := generic.YearsBetween(r.LastPromotion, date)

			switch {
			case s.rules.Overflow.Eligible(current, years):
				s.advance(r, next, date, StatusSupernumerary)
			case hasMinimum && years >= minYears && (!constrained || available > 0):
				s.advance(r, next, date, StatusRegular)
				if constrained {
					available--
				}
			}
		}

		if constrained && available > 0 {
			leftover[next] = available
		}
	}
	return leftover
}

func (s *runState) advance(r *Record, next Rank, date generic.TimePoint, status Status) {
	r.Rank = next
	r.LastPromotion = date
	r.Status = status
	s.tracker.record(r.ID, Event{
		At:            date,
		Kind:          EventPromoted,
		Rank:          next,
		Label:         s.rules.Hierarchy.Label(next),
		Supernumerary: status == StatusSupernumerary,
	})
}
