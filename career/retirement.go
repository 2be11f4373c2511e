package career

import "github.com/warp/career-engine/generic"

// =============================================================================
// RETIREMENT FILTER
// =============================================================================

// retire moves every active record that reached the age limit or the
// service threshold on date into the retired set. Missing birth or
// admission dates count as zero years and never trigger retirement.
func (s *runState) retire(date generic.TimePoint, serviceYears int) int {
	kept := s.active[:0]
	retired := 0
	for _, i := range s.active {
		r := s.records[i]
		reason, ok := s.retirementReason(r, date, serviceYears)
		if !ok {
			kept = append(kept, i)
			continue
		}
		retired++
		s.retired = append(s.retired, Retirement{Record: r, At: date, Reason: reason})
		s.tracker.record(r.ID, Event{
			At:     date,
			Kind:   EventRetired,
			Rank:   r.Rank,
			Label:  s.rules.Hierarchy.Label(r.Rank),
			Reason: reason,
		})
	}
	s.active = kept
	return retired
}

func (s *runState) retirementReason(r Record, date generic.TimePoint, serviceYears int) (RetirementReason, bool) {
	if generic.YearsBetween(r.Birth, date) >= s.rules.Retirement.Age {
		return RetiredByAge, true
	}
	if generic.YearsBetween(r.Admission, date) >= serviceYears {
		return RetiredByService, true
	}
	return "", false
}
