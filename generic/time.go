/*
Package generic provides the domain-agnostic primitives of the career engine.

PURPOSE:
  Dates, whole-year arithmetic and the evaluation calendar are shared by
  every track and every rule. Nothing in this package knows about ranks,
  quotas or personnel.

KEY CONCEPTS IN THIS FILE (time.go):
  - TimePoint: a calendar day (the engine never needs finer granularity)
  - YearsBetween: completed years between two days, the anchor of every
    tenure, age and service-length rule
  - ParseDate: the date formats accepted at the system's edges

MISSING DATES:
  The zero TimePoint stands for "unknown". YearsBetween treats it as zero
  elapsed years so a missing date never satisfies a threshold on its own.

SEE ALSO:
  - calendar.go: semiannual cycle date generation
  - errors.go: sentinel errors
*/
package generic

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// TIME POINT - A calendar day
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar day in t's own location.
func FromTime(t time.Time) TimePoint {
	if t.IsZero() {
		return TimePoint{}
	}
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	if tp.IsZero() {
		return tp
	}
	return TimePoint{Time: tp.Time.AddDate(0, 0, n)}
}
func (tp TimePoint) AddMonths(n int) TimePoint {
	if tp.IsZero() {
		return tp
	}
	return TimePoint{Time: tp.Time.AddDate(0, n, 0)}
}
func (tp TimePoint) AddYears(n int) TimePoint {
	if tp.IsZero() {
		return tp
	}
	return TimePoint{Time: tp.Time.AddDate(n, 0, 0)}
}

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

// String returns the ISO day, also used as the key of per-date maps.
func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(ISODate)
}

// Display returns the day-first form used in event histories.
func (tp TimePoint) Display() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DisplayDate)
}

// =============================================================================
// YEAR ARITHMETIC
// =============================================================================

// YearsBetween returns the number of completed years from origin to ref.
// A zero origin or ref counts as zero years. When ref precedes origin the
// result is negative, mirroring calendar-difference semantics.
func YearsBetween(origin, ref TimePoint) int {
	if origin.IsZero() || ref.IsZero() {
		return 0
	}
	if ref.Before(origin) {
		return -YearsBetween(ref, origin)
	}
	years := ref.Year() - origin.Year()
	if ref.Month() < origin.Month() || (ref.Month() == origin.Month() && ref.Day() < origin.Day()) {
		years--
	}
	return years
}

// =============================================================================
// PARSING
// =============================================================================

const (
	ISODate     = "2006-01-02"
	DisplayDate = "02/01/2006"
)

// dateLayouts are tried in order; day-first layouts precede month-first ones.
var dateLayouts = []string{
	ISODate,
	DisplayDate,
	"2/1/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate parses a day in any of the accepted layouts. An empty string
// yields the zero TimePoint and no error.
func ParseDate(s string) (TimePoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimePoint{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return TimePoint{}, errors.Wrapf(ErrInvalidDate, "%q", s)
}

// MustParseDate is ParseDate for fixtures and defaults; it panics on error.
func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}
