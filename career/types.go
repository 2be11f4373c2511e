/*
Package career implements the cycle-based progression engine.

PURPOSE:
  Given a roster and per-rank quotas, the engine advances every record
  through a sequence of evaluation dates, deciding promotions, overflow
  (supernumerary) status, absorption of supernumeraries into the regular
  quota and retirement. It tracks unmet quota ("leftover vacancies") so
  parallel tracks can migrate vacancies into a primary track.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rank / Hierarchy: a totally ordered, fixed sequence of rank labels
  - Status: Regular or Supernumerary occupancy of a rank
  - Record: one individual; mutated only inside a run's private copy
  - Quota / RankCounts / Vacancies: per-rank limits and per-date counts
  - Event / History: observational log for tracked individuals
  - Retirement: a retired record with when and why

DESIGN PRINCIPLES:
  1. Purity: a run reads its inputs and returns new values; nothing shared
     is mutated, so independent runs can execute concurrently.
  2. Determinism: ties in seniority are broken by input order.
  3. Explicit time: "now" is an input, never read from the clock here.

SEE ALSO:
  - rules.go: immutable rule configuration
  - engine.go: the per-track fold over cycle dates
  - migration.go: cross-track vacancy migration
*/
package career

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/warp/career-engine/generic"
)

// =============================================================================
// RANK - Position in the hierarchy
// =============================================================================

// Rank is an index into a Hierarchy. Higher values are more senior.
type Rank int

// NoRank is returned by lookups that fail.
const NoRank Rank = -1

// Hierarchy is the ordered sequence of rank labels, lowest first.
// It is immutable once built.
type Hierarchy struct {
	labels []string
	index  map[string]Rank
}

// NewHierarchy builds a hierarchy from labels ordered lowest to highest.
func NewHierarchy(labels ...string) (Hierarchy, error) {
	if len(labels) < 2 {
		return Hierarchy{}, errors.Wrap(ErrInvalidRules, "a hierarchy needs at least two ranks")
	}
	h := Hierarchy{
		labels: make([]string, len(labels)),
		index:  make(map[string]Rank, len(labels)),
	}
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			return Hierarchy{}, errors.Wrapf(ErrInvalidRules, "empty rank label at position %d", i)
		}
		key := normalizeLabel(label)
		if _, dup := h.index[key]; dup {
			return Hierarchy{}, errors.Wrapf(ErrInvalidRules, "duplicate rank %q", label)
		}
		h.labels[i] = label
		h.index[key] = Rank(i)
	}
	return h, nil
}

// MustHierarchy is NewHierarchy for built-in tables.
func MustHierarchy(labels ...string) Hierarchy {
	h, err := NewHierarchy(labels...)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Hierarchy) Len() int { return len(h.labels) }

// Contains reports whether r is a rank of this hierarchy.
func (h Hierarchy) Contains(r Rank) bool { return r >= 0 && int(r) < len(h.labels) }

// Label returns the display label of r, or "?" for a rank outside the hierarchy.
func (h Hierarchy) Label(r Rank) string {
	if !h.Contains(r) {
		return "?"
	}
	return h.labels[r]
}

// Lookup resolves a label. Matching ignores case, repeated spaces and the
// degree sign commonly typed instead of the ordinal indicator ("3° SGT").
func (h Hierarchy) Lookup(label string) (Rank, bool) {
	r, ok := h.index[normalizeLabel(label)]
	if !ok {
		return NoRank, false
	}
	return r, true
}

// Labels returns a copy of all labels, lowest first.
func (h Hierarchy) Labels() []string {
	out := make([]string, len(h.labels))
	copy(out, h.labels)
	return out
}

// Ranks returns every rank, lowest first.
func (h Hierarchy) Ranks() []Rank {
	out := make([]Rank, len(h.labels))
	for i := range out {
		out[i] = Rank(i)
	}
	return out
}

// Top returns the most senior rank.
func (h Hierarchy) Top() Rank { return Rank(len(h.labels) - 1) }

// Next returns the rank above r, or false at the top.
func (h Hierarchy) Next(r Rank) (Rank, bool) {
	if !h.Contains(r) || r == h.Top() {
		return NoRank, false
	}
	return r + 1, true
}

func normalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "°", "º")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// =============================================================================
// STATUS - How a record occupies its rank
// =============================================================================

type Status int

const (
	// StatusRegular counts against the rank's quota.
	StatusRegular Status = iota
	// StatusSupernumerary holds the rank above the funded quota until absorbed.
	StatusSupernumerary
)

func (s Status) String() string {
	switch s {
	case StatusSupernumerary:
		return "supernumerary"
	default:
		return "regular"
	}
}

// =============================================================================
// RECORD - One individual
// =============================================================================

// Record is a personnel record. Zero TimePoints mean "date unknown".
type Record struct {
	ID            int64
	Rank          Rank
	RankPosition  int // lower = more senior within the rank
	LastPromotion generic.TimePoint
	Admission     generic.TimePoint
	Birth         generic.TimePoint
	Status        Status
}

func (r Record) Supernumerary() bool { return r.Status == StatusSupernumerary }

// =============================================================================
// QUOTAS AND COUNTS
// =============================================================================

// Quota maps a rank to its maximum number of regular occupants. A rank with
// no entry is unconstrained.
type Quota map[Rank]int

// Clone returns an independent copy.
func (q Quota) Clone() Quota {
	out := make(Quota, len(q))
	for r, n := range q {
		out[r] = n
	}
	return out
}

// RankCounts is a non-negative count per rank.
type RankCounts map[Rank]int

// Total sums all counts.
func (rc RankCounts) Total() int {
	total := 0
	for _, n := range rc {
		total += n
	}
	return total
}

// Vacancies maps an ISO cycle date (generic.TimePoint.String()) to counts per
// rank. Used both for leftover vacancies and for migrated quota addends.
type Vacancies map[string]RankCounts

// At returns the counts for a date, or nil.
func (v Vacancies) At(date generic.TimePoint) RankCounts {
	if v == nil {
		return nil
	}
	return v[date.String()]
}

// Add accumulates n at (date, rank). Non-positive n is ignored.
func (v Vacancies) Add(date string, r Rank, n int) {
	if n <= 0 {
		return
	}
	counts, ok := v[date]
	if !ok {
		counts = make(RankCounts)
		v[date] = counts
	}
	counts[r] += n
}

// Merge accumulates every count of other into v.
func (v Vacancies) Merge(other Vacancies) {
	for date, counts := range other {
		for r, n := range counts {
			v.Add(date, r, n)
		}
	}
}

// Dates returns the keys in chronological order.
func (v Vacancies) Dates() []string {
	dates := make([]string, 0, len(v))
	for d := range v {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// =============================================================================
// EVENTS - Observational history of tracked individuals
// =============================================================================

type EventKind string

const (
	EventPromoted EventKind = "promoted"
	EventAbsorbed EventKind = "absorbed"
	EventRetired  EventKind = "retired"
)

// Event is one entry of a tracked individual's history.
type Event struct {
	At            generic.TimePoint
	Kind          EventKind
	Rank          Rank
	Label         string // rank label at the time of the event
	Supernumerary bool   // promotions only
	Reason        RetirementReason // retirements only
}

func (e Event) String() string {
	switch e.Kind {
	case EventPromoted:
		if e.Supernumerary {
			return fmt.Sprintf("%s: promoted to %s (supernumerary)", e.At.Display(), e.Label)
		}
		return fmt.Sprintf("%s: promoted to %s", e.At.Display(), e.Label)
	case EventAbsorbed:
		return fmt.Sprintf("%s: took a regular slot in %s", e.At.Display(), e.Label)
	case EventRetired:
		return fmt.Sprintf("%s: retired (%s)", e.At.Display(), e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.At.Display(), e.Kind)
	}
}

// History maps each tracked id to its events in chronological order.
type History map[int64][]Event

// =============================================================================
// RETIREMENT - A record that left the active set
// =============================================================================

type RetirementReason string

const (
	RetiredByAge     RetirementReason = "age"
	RetiredByService RetirementReason = "service"
)

// Retirement is a record frozen at the cycle it retired in.
type Retirement struct {
	Record
	At     generic.TimePoint
	Reason RetirementReason
}

// =============================================================================
// FINAL STATUS - Summary badge for a tracked individual
// =============================================================================

type FinalStatus string

const (
	FinalActive        FinalStatus = "active"
	FinalSupernumerary FinalStatus = "supernumerary"
	FinalRetired       FinalStatus = "retired"
	FinalUnknown       FinalStatus = "unknown"
)
