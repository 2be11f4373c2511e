package career

import (
	"sort"

	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap"
)

// =============================================================================
// RUN STATE - A run's private arena of records
// =============================================================================

// runState owns the records of one run. Records live in an arena addressed
// by index; active holds the indices still in service, in input order, so
// sorting by seniority is stable with respect to the caller's roster.
type runState struct {
	rules   *Rules
	track   string
	logger  *zap.Logger
	records []Record
	active  []int
	retired []Retirement
	tracker tracker
	warned  map[Rank]bool
}

func newRunState(rules *Rules, track string, roster []Record, tracked []int64, logger *zap.Logger) *runState {
	s := &runState{
		rules:   rules,
		track:   track,
		logger:  logger,
		records: make([]Record, len(roster)),
		active:  make([]int, len(roster)),
		tracker: newTracker(tracked),
		warned:  make(map[Rank]bool),
	}
	copy(s.records, roster)
	for i := range s.active {
		s.active[i] = i
	}
	return s
}

// atRank returns the active indices at rank, most senior first.
func (s *runState) atRank(rank Rank) []int {
	var idx []int
	for _, i := range s.active {
		if s.records[i].Rank == rank {
			idx = append(idx, i)
		}
	}
	s.bySeniority(idx)
	return idx
}

// supernumerariesAt returns the supernumerary indices at rank, most senior first.
func (s *runState) supernumerariesAt(rank Rank) []int {
	var idx []int
	for _, i := range s.active {
		r := &s.records[i]
		if r.Rank == rank && r.Status == StatusSupernumerary {
			idx = append(idx, i)
		}
	}
	s.bySeniority(idx)
	return idx
}

// regularAt counts active, regular occupants of rank.
func (s *runState) regularAt(rank Rank) int {
	n := 0
	for _, i := range s.active {
		r := &s.records[i]
		if r.Rank == rank && r.Status == StatusRegular {
			n++
		}
	}
	return n
}

func (s *runState) bySeniority(idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		return s.records[idx[a]].RankPosition < s.records[idx[b]].RankPosition
	})
}

// activeRecords copies the active set, highest rank first, then seniority.
func (s *runState) activeRecords() []Record {
	out := make([]Record, 0, len(s.active))
	for _, i := range s.active {
		out = append(out, s.records[i])
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Rank != out[b].Rank {
			return out[a].Rank > out[b].Rank
		}
		return out[a].RankPosition < out[b].RankPosition
	})
	return out
}

// =============================================================================
// QUOTA BOOK - Limits in force on one cycle date
// =============================================================================

// quotaBook combines a track's baseline quota with the migrated addend of
// one cycle date.
type quotaBook struct {
	base  Quota
	extra RankCounts
	state *runState
	date  generic.TimePoint
}

// limit returns the regular-occupant limit at rank. constrained is false for
// ranks absent from the baseline; those accept any number of occupants.
func (q quotaBook) limit(rank Rank) (n int, constrained bool) {
	base, ok := q.base[rank]
	if !ok {
		q.state.warnUnconstrained(rank, q.date)
		return 0, false
	}
	return base + q.extra[rank], true
}

// open returns the free regular slots at rank. The count is negative when
// the rank is over quota and meaningless when constrained is false.
func (q quotaBook) open(rank Rank) (free int, constrained bool) {
	n, constrained := q.limit(rank)
	if !constrained {
		return 0, false
	}
	return n - q.state.regularAt(rank), true
}

func (s *runState) warnUnconstrained(rank Rank, date generic.TimePoint) {
	if s.warned[rank] {
		return
	}
	s.warned[rank] = true
	s.logger.Warn("rank has no quota, treating as unconstrained",
		zap.String(logging.FieldTrack, s.track),
		zap.String(logging.FieldRank, s.rules.Hierarchy.Label(rank)),
		zap.String(logging.FieldCycle, date.String()),
	)
}

// =============================================================================
// TRACKER - History of tracked individuals
// =============================================================================

type tracker struct {
	history History
}

func newTracker(ids []int64) tracker {
	t := tracker{history: make(History, len(ids))}
	for _, id := range ids {
		if _, ok := t.history[id]; !ok {
			t.history[id] = []Event{}
		}
	}
	return t
}

func (t tracker) record(id int64, e Event) {
	if events, ok := t.history[id]; ok {
		t.history[id] = append(events, e)
	}
}
