/*
scenarios.go - Demo rosters for testing and demonstrations

PURPOSE:
  Provides generated rosters that populate every track with plausible
  personnel so the simulator can be explored without real data. Rosters are
  derived from the configured quotas and a reference date, so the same
  request always produces the same people.

AVAILABLE SCENARIOS:
  baseline:         Every track staffed, mixed tenure
  primary-only:     Only the primary track; feeders have no roster
  retirement-wave:  Every track staffed by a senior cohort near retirement

HOW SCENARIOS WORK:
  1. Generate one roster per track from its quota table
  2. Replace every stored roster (tracks outside the scenario are cleared)

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "baseline", "now": "2026-01-01"}

ADDING NEW SCENARIOS:
  Add an entry to 'scenarios' with a cohort and the tracks it staffs.

SEE ALSO:
  - handlers.go: Handler
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/factory"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// cohort shapes a generated roster.
type cohort struct {
	perRank      int // records per rank, capped by the rank's quota
	extraService int // years added to everyone's service
}

type scenario struct {
	ScenarioDTO
	cohort      cohort
	primaryOnly bool
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "baseline",
			Name:        "Baseline",
			Description: "Every track staffed with mixed tenure; feeders migrate leftover vacancies",
		},
		cohort: cohort{perRank: 12},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "primary-only",
			Name:        "Primary Track Only",
			Description: "Only the primary track has a roster; no vacancies migrate",
		},
		cohort:      cohort{perRank: 12},
		primaryOnly: true,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "retirement-wave",
			Name:        "Retirement Wave",
			Description: "Senior cohort close to the service and age limits",
		},
		cohort: cohort{perRank: 12, extraService: 20},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the last loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario replaces every stored roster with a generated one.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	now := h.Clock()
	if req.Now != "" {
		parsed, err := generic.ParseDate(req.Now)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		now = parsed
	}

	rosters := buildScenario(h.Setup, s, now)
	sizes := make(map[string]int, len(h.Setup.Tracks))
	for _, t := range h.Setup.Tracks {
		if err := h.Archive.SaveRoster(r.Context(), t.ID, rosters[t.ID]); err != nil {
			h.writeDomainError(w, r, "Failed to load scenario", err)
			return
		}
		sizes[t.ID] = len(rosters[t.ID])
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.Logger.Info("scenario loaded", zap.String("scenario", s.ID), zap.Any(logging.FieldCount, sizes))
	writeJSON(w, http.StatusOK, map[string]any{"status": "loaded", "scenario": s.ID, "rosters": sizes})
}

// =============================================================================
// ROSTER GENERATION
// =============================================================================

// buildScenario generates the rosters of a scenario. Track i's ids start
// at (i+1)*100000 so ids never collide across tracks.
func buildScenario(setup *factory.Setup, s scenario, now generic.TimePoint) map[string][]career.Record {
	rosters := make(map[string][]career.Record)
	for i, t := range setup.Tracks {
		if s.primaryOnly && t.ID != setup.Primary {
			continue
		}
		rosters[t.ID] = generateRoster(setup.Rules.Hierarchy, t.Quota, now, int64(i+1)*100000, s.cohort)
	}
	return rosters
}

// generateRoster staffs every rank with up to c.perRank records. Tenure,
// service and age vary with the position so each cycle has candidates on
// both sides of the thresholds.
func generateRoster(h career.Hierarchy, quota career.Quota, now generic.TimePoint, idBase int64, c cohort) []career.Record {
	var records []career.Record
	for _, rank := range h.Ranks() {
		n := c.perRank
		if q, constrained := quota[rank]; constrained && q < n {
			n = q
		}
		level := int(rank)
		for k := 0; k < n; k++ {
			admission := now.AddYears(-(2 + 3*level + k%4 + c.extraService)).AddMonths(-k % 12)
			lastPromotion := now.AddYears(-(1 + (k*7)%8)).AddMonths(-(k * 5) % 12)
			if level == 0 || lastPromotion.Before(admission) {
				lastPromotion = admission
			}
			records = append(records, career.Record{
				ID:            idBase + int64(level)*1000 + int64(k) + 1,
				Rank:          rank,
				RankPosition:  k + 1,
				LastPromotion: lastPromotion,
				Admission:     admission,
				Birth:         admission.AddYears(-(19 + k%5)),
			})
		}
	}
	return records
}
