package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/career/store"
)

func run(id string, createdAt time.Time) *career.Run {
	return &career.Run{
		ID:        id,
		Track:     "qoa",
		CreatedAt: createdAt,
		Result: &career.Result{
			Active: []career.Record{{ID: 1}, {ID: 2}},
		},
	}
}

func TestMemory_Runs(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveRun(ctx, run("a", base)))
	require.NoError(t, m.SaveRun(ctx, run("b", base.Add(time.Hour))))

	err := m.SaveRun(ctx, run("a", base))
	assert.True(t, errors.Is(err, career.ErrRunExists))

	got, err := m.GetRun(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = m.GetRun(ctx, "zzz")
	assert.True(t, career.IsNotFound(err))

	runs, err := m.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 2, runs[0].Active)
}

func TestMemory_ListRunsOrdersByCreation(t *testing.T) {
	// GIVEN: Runs saved out of chronological order
	// WHEN: Listing
	// THEN: The most recently created run comes first
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveRun(ctx, run("late", base.Add(time.Hour))))
	require.NoError(t, m.SaveRun(ctx, run("early", base)))

	runs, err := m.ListRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", runs[0].ID)
	assert.Equal(t, "early", runs[1].ID)
}

func TestMemory_Rosters(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	records := []career.Record{{ID: 1}, {ID: 2}}
	require.NoError(t, m.SaveRoster(ctx, "qomt", records))
	records[0].ID = 99

	got, err := m.GetRoster(ctx, "qomt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].ID, "store keeps its own copy")

	got[1].ID = 42
	again, err := m.GetRoster(ctx, "qomt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), again[1].ID, "callers get their own copy")

	sizes, err := m.RosterSizes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"qomt": 2}, sizes)

	require.NoError(t, m.SaveRoster(ctx, "qomt", nil))
	_, err = m.GetRoster(ctx, "qomt")
	assert.True(t, errors.Is(err, career.ErrRosterNotFound))
}

func TestMemory_RunsAreCopied(t *testing.T) {
	// GIVEN: A saved run
	// WHEN: The caller mutates its value and a loaded copy
	// THEN: The archived run is unchanged
	m := store.NewMemory()
	ctx := context.Background()

	saved := run("a", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	saved.Tracked = []int64{1}
	saved.Migrated = career.Vacancies{"2026-06-26": {1: 2}}
	saved.Result.History = career.History{1: {{Kind: career.EventPromoted}}}
	saved.Result.Leftovers = career.Vacancies{"2026-06-26": {2: 1}}
	require.NoError(t, m.SaveRun(ctx, saved))

	saved.Result.Active[0].ID = 99
	saved.Tracked[0] = 99
	saved.Migrated["2026-06-26"][1] = 99

	got, err := m.GetRun(ctx, "a")
	require.NoError(t, err)
	got.Result.Leftovers["2026-06-26"][2] = 99
	got.Result.History[1][0].Kind = career.EventRetired
	got.Result.Active = nil

	again, err := m.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Result.Active[0].ID)
	assert.Equal(t, []int64{1}, again.Tracked)
	assert.Equal(t, 2, again.Migrated["2026-06-26"][1])
	assert.Equal(t, 1, again.Result.Leftovers["2026-06-26"][2])
	assert.Equal(t, career.EventPromoted, again.Result.History[1][0].Kind)
}
