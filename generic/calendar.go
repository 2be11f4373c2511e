package generic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// MONTH DAY - An annual checkpoint
// =============================================================================

// MonthDay is a day of the year without a year, e.g. 26 June.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay accepts "MM-DD" (the configuration form) or "DD/MM".
func ParseMonthDay(s string) (MonthDay, error) {
	s = strings.TrimSpace(s)
	var a, b string
	var dayFirst bool
	switch {
	case strings.Contains(s, "-"):
		a, b, _ = strings.Cut(s, "-")
	case strings.Contains(s, "/"):
		a, b, _ = strings.Cut(s, "/")
		dayFirst = true
	default:
		return MonthDay{}, errors.Wrapf(ErrInvalidMonthDay, "%q", s)
	}
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return MonthDay{}, errors.Wrapf(ErrInvalidMonthDay, "%q", s)
	}
	md := MonthDay{Month: time.Month(x), Day: y}
	if dayFirst {
		md = MonthDay{Month: time.Month(y), Day: x}
	}
	if err := md.Validate(); err != nil {
		return MonthDay{}, errors.Wrapf(err, "%q", s)
	}
	return md, nil
}

// Validate rejects days that do not exist in every year. 29 February is
// rejected because it would silently skip three years out of four.
func (md MonthDay) Validate() error {
	if md.Month < time.January || md.Month > time.December || md.Day < 1 {
		return ErrInvalidMonthDay
	}
	last := time.Date(2001, md.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if md.Day > last {
		return ErrInvalidMonthDay
	}
	return nil
}

// In returns the checkpoint in the given year.
func (md MonthDay) In(year int) TimePoint {
	return NewTimePoint(year, md.Month, md.Day)
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

func (md MonthDay) before(other MonthDay) bool {
	if md.Month != other.Month {
		return md.Month < other.Month
	}
	return md.Day < other.Day
}

// =============================================================================
// CYCLE CALENDAR - Evaluation checkpoints between two days
// =============================================================================

// CycleCalendar generates the evaluation dates of a simulation: every
// occurrence of one of its annual checkpoints between "now" and a target.
type CycleCalendar struct {
	Days []MonthDay
}

// Dates returns the checkpoints inside the horizon, ascending and without
// duplicates. It returns nil for an empty horizon.
func (c CycleCalendar) Dates(horizon Period) []TimePoint {
	if horizon.Empty() {
		return nil
	}

	days := make([]MonthDay, len(c.Days))
	copy(days, c.Days)
	sort.Slice(days, func(i, j int) bool { return days[i].before(days[j]) })

	var dates []TimePoint
	var last TimePoint
	for year := horizon.Start.Year(); year <= horizon.End.Year(); year++ {
		for _, md := range days {
			d := md.In(year)
			if !horizon.Contains(d) {
				continue
			}
			if !last.IsZero() && d.Equal(last) {
				continue
			}
			dates = append(dates, d)
			last = d
		}
	}
	return dates
}

// Validate checks every checkpoint.
func (c CycleCalendar) Validate() error {
	if len(c.Days) == 0 {
		return errors.WithHint(ErrInvalidMonthDay, "at least one cycle date is required")
	}
	for _, md := range c.Days {
		if err := md.Validate(); err != nil {
			return errors.Wrapf(err, "cycle date %s", md)
		}
	}
	return nil
}
