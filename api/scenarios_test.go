/*
scenarios_test.go - Tests for the demo scenario endpoints

Tests for:
- Listing scenarios and the current selection
- Loading a scenario stores one roster per staffed track
- Simulating on top of a loaded scenario
*/
package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/api"
)

func loadScenario(t *testing.T, router http.Handler, id string) map[string]any {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/scenarios/load",
		`{"scenario_id":"`+id+`","now":"2026-01-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)
}

func TestListScenarios(t *testing.T) {
	_, router := newTestRouter(t)

	list := decode[[]api.ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", ""))
	ids := make([]string, len(list))
	for i, s := range list {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"baseline", "primary-only", "retirement-wave"}, ids)
}

func TestGetCurrentScenario_NoneLoaded(t *testing.T) {
	_, router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/scenarios/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())
}

func TestLoadScenario_StoresEveryTrack(t *testing.T) {
	// GIVEN: The baseline scenario
	// WHEN: Loading it
	// THEN: Every track has a roster capped by its quotas and the scenario
	//       becomes current
	h, router := newTestRouter(t)

	resp := loadScenario(t, router, "baseline")
	assert.Equal(t, "baseline", resp["scenario"])

	sizes, err := h.Archive.RosterSizes(context.Background())
	require.NoError(t, err)
	// SD 1 capped at 10, CB at its quota, 3º SGT at 1 (0 on qomt).
	assert.Equal(t, map[string]int{"qoa": 13, "qomt": 13, "qom": 13}, sizes)

	tracks := decode[[]api.TrackDTO](t, do(t, router, http.MethodGet, "/api/tracks", ""))
	require.Len(t, tracks, 3)
	assert.Equal(t, 13, tracks[0].RosterSize)

	current := decode[api.ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", ""))
	assert.Equal(t, "baseline", current.ID)
}

func TestLoadScenario_ReplacesPreviousRosters(t *testing.T) {
	// GIVEN: The baseline scenario loaded
	// WHEN: Loading the primary-only scenario
	// THEN: Feeder rosters are cleared and the selection follows
	h, router := newTestRouter(t)
	loadScenario(t, router, "baseline")

	loadScenario(t, router, "primary-only")

	sizes, err := h.Archive.RosterSizes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"qoa": 13}, sizes)

	current := decode[api.ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", ""))
	assert.Equal(t, "primary-only", current.ID)
}

func TestLoadScenario_Deterministic(t *testing.T) {
	_, first := newTestRouter(t)
	_, second := newTestRouter(t)
	loadScenario(t, first, "baseline")
	loadScenario(t, second, "baseline")

	a := do(t, first, http.MethodGet, "/api/tracks/qoa/roster", "")
	b := do(t, second, http.MethodGet, "/api/tracks/qoa/roster", "")
	require.Equal(t, http.StatusOK, a.Code)
	assert.Equal(t, a.Body.String(), b.Body.String())
}

func TestLoadScenario_Errors(t *testing.T) {
	h, router := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown scenario", `{"scenario_id":"nope"}`},
		{"invalid date", `{"scenario_id":"baseline","now":"someday"}`},
		{"malformed body", `{"scenario_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/scenarios/load", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	sizes, err := h.Archive.RosterSizes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sizes, "a rejected load stores nothing")
	current := do(t, router, http.MethodGet, "/api/scenarios/current", "")
	assert.JSONEq(t, "null", current.Body.String())
}

func TestLoadScenario_SimulationUsesFeederRosters(t *testing.T) {
	// GIVEN: The baseline scenario loaded
	// WHEN: Simulating the primary track
	// THEN: Both feeders run and none is reported absent
	_, router := newTestRouter(t)
	loadScenario(t, router, "baseline")

	rec := do(t, router, http.MethodPost, "/api/simulations",
		`{"track":"qoa","now":"2026-01-01","target":"2026-12-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	run := decode[api.RunDTO](t, rec)
	assert.Equal(t, []string{"qom", "qomt"}, run.Feeders)
	assert.Empty(t, run.Absent)
	assert.Len(t, run.CycleDates, 2)
}

func TestLoadScenario_PrimaryOnlyReportsAbsentFeeders(t *testing.T) {
	_, router := newTestRouter(t)
	loadScenario(t, router, "primary-only")

	rec := do(t, router, http.MethodPost, "/api/simulations",
		`{"track":"qoa","now":"2026-01-01","target":"2026-12-31"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	run := decode[api.RunDTO](t, rec)
	assert.Empty(t, run.Feeders)
	assert.Equal(t, []string{"qomt", "qom"}, run.Absent)
}
