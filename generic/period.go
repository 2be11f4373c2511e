package generic

// =============================================================================
// PERIOD - The simulation horizon
// =============================================================================

// Period is an inclusive range of days [Start, End].
//
// Examples:
//   - Simulation horizon: today .. 31 Dec 2030
//   - A single cycle: 26 Jun 2027 .. 26 Jun 2027
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds the horizon from "now" to a target day.
func NewPeriod(start, end TimePoint) Period {
	return Period{Start: start, End: end}
}

// Empty reports whether the period contains no day: a zero bound, or an end
// before the start.
func (p Period) Empty() bool {
	return p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start)
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return !p.Empty() && t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Years returns the number of completed years the period spans.
func (p Period) Years() int {
	if p.Empty() {
		return 0
	}
	return YearsBetween(p.Start, p.End)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
