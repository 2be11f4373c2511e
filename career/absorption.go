package career

import "github.com/warp/career-engine/generic"

// =============================================================================
// SUPERNUMERARY ABSORBER
// =============================================================================

// absorb converts supernumeraries into regular occupants wherever regular
// slots are free, most senior first. Ranks are visited lowest first. The
// rank itself never changes here. Unconstrained ranks absorb everyone.
func (s *runState) absorb(date generic.TimePoint, book quotaBook) {
	for _, rank := range s.rules.Hierarchy.Ranks() {
		supers := s.supernumerariesAt(rank)
		if len(supers) == 0 {
			continue
		}

		n, constrained := book.open(rank)
		if !constrained || n > len(supers) {
			n = len(supers)
		}
		if n <= 0 {
			continue
		}

		for _, i := range supers[:n] {
			r := &s.records[i]
			r.Status = StatusRegular
			s.tracker.record(r.ID, Event{
				At:    date,
				Kind:  EventAbsorbed,
				Rank:  rank,
				Label: s.rules.Hierarchy.Label(rank),
			})
		}
	}
}
