package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/factory"
	"github.com/warp/career-engine/generic"
)

func buildDefault(t *testing.T) *factory.Setup {
	t.Helper()
	setup, err := factory.Default().Build()
	require.NoError(t, err)
	return setup
}

func rank(t *testing.T, setup *factory.Setup, label string) career.Rank {
	t.Helper()
	r, ok := setup.Rules.Hierarchy.Lookup(label)
	require.True(t, ok, "rank %q", label)
	return r
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_BuildsProductionTables(t *testing.T) {
	setup := buildDefault(t)
	h := setup.Rules.Hierarchy

	assert.Equal(t, 12, h.Len())
	assert.Equal(t, "SD 1", h.Label(0))
	assert.Equal(t, "CEL", h.Label(h.Top()))
	assert.Equal(t, "qoa", setup.Primary)

	years, ok := setup.Rules.MinimumFor(rank(t, setup, "SD 1"))
	assert.True(t, ok)
	assert.Equal(t, 5, years)
	_, ok = setup.Rules.MinimumFor(rank(t, setup, "CEL"))
	assert.False(t, ok, "top rank has no minimum time")

	assert.True(t, setup.Rules.Overflow.Ranks[rank(t, setup, "CAP")])
	assert.False(t, setup.Rules.Overflow.Ranks[rank(t, setup, "MAJ")])
	assert.Equal(t, 6, setup.Rules.Overflow.Years)
	assert.Equal(t, 63, setup.Rules.Retirement.Age)
	assert.Equal(t, 35, setup.Rules.Retirement.DefaultServiceYears)
	assert.Len(t, setup.Rules.Calendar.Days, 2)

	qoa, ok := setup.Track("qoa")
	require.True(t, ok)
	assert.Equal(t, 573, qoa.Quota[rank(t, setup, "3º SGT")])
	assert.Equal(t, 9999, qoa.Quota[rank(t, setup, "CEL")])
	assert.False(t, qoa.Feeder)
}

func TestDefault_FeederShares(t *testing.T) {
	// GIVEN: The built-in feeders
	// WHEN: Applying their policies to a leftover of 5
	// THEN: QOMT passes everything; QOM passes all enlisted slots, half
	//       (rounded up) of officer slots and nothing at CEL

	setup := buildDefault(t)
	feeders := setup.Feeders()
	require.Len(t, feeders, 2)
	assert.Equal(t, "qomt", feeders[0].ID)
	assert.Equal(t, "qom", feeders[1].ID)

	qomt, qom := feeders[0].Migration, feeders[1].Migration
	for _, label := range []string{"CB", "SUB TEN", "CAP", "CEL"} {
		assert.Equal(t, 5, qomt.Contribution(rank(t, setup, label), 5), label)
	}
	assert.Equal(t, 5, qom.Contribution(rank(t, setup, "1º SGT"), 5))
	assert.Equal(t, 3, qom.Contribution(rank(t, setup, "2º TEN"), 5))
	assert.Equal(t, 2, qom.Contribution(rank(t, setup, "TEN CEL"), 4))
	assert.Equal(t, 0, qom.Contribution(rank(t, setup, "CEL"), 5))
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a := factory.Default()
	a.Tracks[0].Quotas["CB"] = 1

	b := factory.Default()
	assert.Equal(t, 600, b.Tracks[0].Quotas["CB"])
}

// =============================================================================
// OVERLAY
// =============================================================================

func TestLoad_OverlaysUserFile(t *testing.T) {
	// GIVEN: A user file changing the retirement age and one minimum time
	// WHEN: Loading it
	// THEN: Those values change, every other default survives

	path := filepath.Join(t.TempDir(), "promosim.yaml")
	doc := "retirement:\n  age: 60\n  min_service_years: 30\n  max_service_years: 35\n  default_service_years: 30\nminimum_years:\n  CB: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := factory.Load(path)
	require.NoError(t, err)
	setup, err := cfg.Build()
	require.NoError(t, err)

	assert.Equal(t, 60, setup.Rules.Retirement.Age)
	assert.Equal(t, 30, setup.Rules.Retirement.DefaultServiceYears)
	cbYears, _ := setup.Rules.MinimumFor(rank(t, setup, "CB"))
	assert.Equal(t, 4, cbYears)
	sdYears, _ := setup.Rules.MinimumFor(rank(t, setup, "SD 1"))
	assert.Equal(t, 5, sdYears)
	assert.Len(t, setup.Tracks, 3)
}

func TestLoad_AcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promosim.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cycle_dates": ["12-15"]}`), 0o644))

	cfg, err := factory.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"12-15"}, cfg.CycleDates)
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := factory.Load("")
	require.NoError(t, err)
	assert.Equal(t, factory.Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := factory.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestBuild_RejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *factory.Config)
		want   error
	}{
		{
			name:   "unknown rank in quotas",
			modify: func(c *factory.Config) { c.Tracks[0].Quotas["GEN"] = 1 },
			want:   career.ErrUnknownRank,
		},
		{
			name:   "unknown rank in overflow",
			modify: func(c *factory.Config) { c.Overflow.Ranks = append(c.Overflow.Ranks, "ALM") },
			want:   career.ErrUnknownRank,
		},
		{
			name:   "impossible cycle date",
			modify: func(c *factory.Config) { c.CycleDates = []string{"02-30"} },
			want:   generic.ErrInvalidMonthDay,
		},
		{
			name:   "undefined primary",
			modify: func(c *factory.Config) { c.Primary = "qx" },
			want:   career.ErrInvalidRules,
		},
		{
			name:   "share above one",
			modify: func(c *factory.Config) { c.Tracks[1].Migration.DefaultShare = "2" },
			want:   career.ErrInvalidRules,
		},
		{
			name:   "unknown rank group",
			modify: func(c *factory.Config) { c.Tracks[2].Migration.GroupShares["generals"] = "1" },
			want:   career.ErrInvalidRules,
		},
		{
			name:   "primary as feeder",
			modify: func(c *factory.Config) { c.Tracks[0].Migration = &factory.MigrationConfig{DefaultShare: "1"} },
			want:   career.ErrInvalidRules,
		},
		{
			name:   "duplicate track",
			modify: func(c *factory.Config) { c.Tracks = append(c.Tracks, c.Tracks[1]) },
			want:   career.ErrInvalidRules,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := factory.Default()
			tt.modify(cfg)
			_, err := cfg.Build()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlan_PrimaryTakesFeeders(t *testing.T) {
	setup := buildDefault(t)
	horizon := generic.NewPeriod(generic.MustParseDate("2026-01-01"), generic.MustParseDate("2030-12-31"))

	plan, absent, err := setup.Plan(factory.PlanRequest{
		Track: "qoa",
		Rosters: map[string][]career.Record{
			"qoa":  {},
			"qomt": {},
		},
		Horizon: horizon,
	})
	require.NoError(t, err)

	assert.Equal(t, "qoa", plan.Primary.ID)
	require.Len(t, plan.Feeders, 2)
	assert.False(t, plan.Feeders[0].Absent)
	assert.True(t, plan.Feeders[1].Absent)
	assert.Equal(t, []string{"qom"}, absent)
	assert.Equal(t, horizon, plan.Horizon)
}

func TestPlan_FeederTrackRunsAlone(t *testing.T) {
	setup := buildDefault(t)
	plan, absent, err := setup.Plan(factory.PlanRequest{
		Track:   "qom",
		Rosters: map[string][]career.Record{"qom": {}},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Feeders)
	assert.Empty(t, absent)
}

func TestPlan_Errors(t *testing.T) {
	setup := buildDefault(t)

	_, _, err := setup.Plan(factory.PlanRequest{Track: "nope"})
	assert.True(t, errors.Is(err, career.ErrTrackNotFound))
	assert.True(t, career.IsNotFound(err))

	_, _, err = setup.Plan(factory.PlanRequest{Track: "qoa"})
	assert.True(t, errors.Is(err, career.ErrRosterNotFound))
}

func TestMarshal_RoundTripsThroughBuild(t *testing.T) {
	data, err := factory.Default().Marshal()
	require.NoError(t, err)

	cfg, err := factory.Parse(data)
	require.NoError(t, err)
	_, err = cfg.Build()
	assert.NoError(t, err)
}
