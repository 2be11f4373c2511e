/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's value types from the external API contract: ranks travel as
  labels, dates as ISO strings, and ids as numbers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Configuration:
    ConfigDTO, TrackDTO, RetirementDTO

  Rosters:
    RecordDTO, RetirementEntryDTO

  Simulations:
    SimulationRequest, RunDTO, RunSummaryDTO, CycleVacanciesDTO,
    HistoryDTO, EventDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"sort"
	"time"

	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/factory"
)

// MaxTracked is the number of individuals a simulation may follow.
const MaxTracked = 5

// =============================================================================
// CONFIGURATION
// =============================================================================

// ConfigDTO describes the rules the server simulates with.
type ConfigDTO struct {
	Ranks        []string       `json:"ranks"`
	MinimumYears map[string]int `json:"minimum_years"`
	Overflow     OverflowDTO    `json:"overflow"`
	Retirement   RetirementDTO  `json:"retirement"`
	CycleDates   []string       `json:"cycle_dates"`
	Primary      string         `json:"primary"`
	Tracks       []TrackDTO     `json:"tracks"`
}

type OverflowDTO struct {
	Years int      `json:"years"`
	Ranks []string `json:"ranks"`
}

type RetirementDTO struct {
	Age                 int `json:"age"`
	MinServiceYears     int `json:"min_service_years"`
	MaxServiceYears     int `json:"max_service_years"`
	DefaultServiceYears int `json:"default_service_years"`
}

// TrackDTO is a track with its quota table and, for feeders, the share of
// leftover vacancies migrated per rank.
type TrackDTO struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Primary    bool              `json:"primary"`
	Feeder     bool              `json:"feeder"`
	Quotas     map[string]int    `json:"quotas"`
	Shares     map[string]string `json:"shares,omitempty"`
	RosterSize int               `json:"roster_size"`
}

// =============================================================================
// ROSTERS
// =============================================================================

// RecordDTO represents a personnel record.
type RecordDTO struct {
	ID            int64  `json:"id"`
	Rank          string `json:"rank"`
	RankPosition  int    `json:"rank_position"`
	LastPromotion string `json:"last_promotion,omitempty"`
	Admission     string `json:"admission,omitempty"`
	Birth         string `json:"birth,omitempty"`
	Supernumerary bool   `json:"supernumerary"`
}

// RetirementEntryDTO is a retired record with when and why it left.
type RetirementEntryDTO struct {
	RecordDTO
	RetiredAt string `json:"retired_at"`
	Reason    string `json:"reason"`
}

// RosterUploadDTO acknowledges a stored roster.
type RosterUploadDTO struct {
	Track   string `json:"track"`
	Records int    `json:"records"`
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// SimulationRequest starts a run. Now defaults to today; Target defaults to
// the end of the fifth calendar year after Now.
type SimulationRequest struct {
	Track           string  `json:"track"`
	Now             string  `json:"now,omitempty"`
	Target          string  `json:"target,omitempty"`
	RetirementYears int     `json:"retirement_years,omitempty"`
	Tracked         []int64 `json:"tracked,omitempty"`
}

// RunSummaryDTO is the listing form of an archived run.
type RunSummaryDTO struct {
	ID              string `json:"id"`
	Track           string `json:"track"`
	Now             string `json:"now"`
	Target          string `json:"target"`
	RetirementYears int    `json:"retirement_years"`
	Cycles          int    `json:"cycles"`
	Active          int    `json:"active"`
	Retired         int    `json:"retired"`
	CreatedAt       string `json:"created_at"`
}

// RunDTO is the detailed summary of one run.
type RunDTO struct {
	RunSummaryDTO
	CycleDates    []string       `json:"cycle_dates"`
	Tracked       []int64        `json:"tracked"`
	Feeders       []string       `json:"feeders"`
	Absent        []string       `json:"absent_feeders,omitempty"`
	Regular       map[string]int `json:"regular"`
	Supernumerary map[string]int `json:"supernumerary"`
	Migrated      int            `json:"migrated_slots"`
}

// CycleVacanciesDTO lists the vacancies of one cycle date by rank label.
type CycleVacanciesDTO struct {
	Date     string         `json:"date"`
	Leftover map[string]int `json:"leftover"`
	Migrated map[string]int `json:"migrated,omitempty"`
}

// EventDTO is one step of a tracked individual's career.
type EventDTO struct {
	Date          string `json:"date"`
	Kind          string `json:"kind"`
	Rank          string `json:"rank"`
	Supernumerary bool   `json:"supernumerary,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Description   string `json:"description"`
}

// HistoryDTO is a tracked individual's events and final status.
type HistoryDTO struct {
	ID     int64      `json:"id"`
	Status string     `json:"status"`
	Rank   string     `json:"rank,omitempty"`
	Events []EventDTO `json:"events"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Now        string `json:"now,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toConfigDTO(cfg *factory.Config, setup *factory.Setup, sizes map[string]int) ConfigDTO {
	rules := setup.Rules
	h := rules.Hierarchy

	minimum := make(map[string]int, len(rules.MinimumYears))
	for r, years := range rules.MinimumYears {
		minimum[h.Label(r)] = years
	}
	var overflow []string
	for _, r := range h.Ranks() {
		if rules.Overflow.Ranks[r] {
			overflow = append(overflow, h.Label(r))
		}
	}

	tracks := make([]TrackDTO, len(setup.Tracks))
	for i, t := range setup.Tracks {
		tracks[i] = toTrackDTO(h, setup.Primary, t, sizes[t.ID])
	}

	return ConfigDTO{
		Ranks:        h.Labels(),
		MinimumYears: minimum,
		Overflow:     OverflowDTO{Years: rules.Overflow.Years, Ranks: overflow},
		Retirement: RetirementDTO{
			Age:                 rules.Retirement.Age,
			MinServiceYears:     rules.Retirement.MinServiceYears,
			MaxServiceYears:     rules.Retirement.MaxServiceYears,
			DefaultServiceYears: rules.Retirement.DefaultServiceYears,
		},
		CycleDates: cfg.CycleDates,
		Primary:    setup.Primary,
		Tracks:     tracks,
	}
}

func toTrackDTO(h career.Hierarchy, primary string, t factory.Track, size int) TrackDTO {
	dto := TrackDTO{
		ID:         t.ID,
		Name:       t.Name,
		Primary:    t.ID == primary,
		Feeder:     t.Feeder,
		Quotas:     labelCounts(h, career.RankCounts(t.Quota)),
		RosterSize: size,
	}
	if t.Feeder {
		dto.Shares = make(map[string]string, h.Len())
		for _, r := range h.Ranks() {
			dto.Shares[h.Label(r)] = t.Migration.Share(r).String()
		}
	}
	return dto
}

func toRecordDTO(h career.Hierarchy, r career.Record) RecordDTO {
	return RecordDTO{
		ID:            r.ID,
		Rank:          h.Label(r.Rank),
		RankPosition:  r.RankPosition,
		LastPromotion: r.LastPromotion.String(),
		Admission:     r.Admission.String(),
		Birth:         r.Birth.String(),
		Supernumerary: r.Supernumerary(),
	}
}

func toRecordDTOs(h career.Hierarchy, records []career.Record) []RecordDTO {
	out := make([]RecordDTO, len(records))
	for i, r := range records {
		out[i] = toRecordDTO(h, r)
	}
	return out
}

func toRetirementDTOs(h career.Hierarchy, retired []career.Retirement) []RetirementEntryDTO {
	out := make([]RetirementEntryDTO, len(retired))
	for i, r := range retired {
		out[i] = RetirementEntryDTO{
			RecordDTO: toRecordDTO(h, r.Record),
			RetiredAt: r.At.String(),
			Reason:    string(r.Reason),
		}
	}
	return out
}

func toRunSummaryDTO(s career.RunSummary) RunSummaryDTO {
	return RunSummaryDTO{
		ID:              s.ID,
		Track:           s.Track,
		Now:             s.Horizon.Start.String(),
		Target:          s.Horizon.End.String(),
		RetirementYears: s.RetirementYears,
		Cycles:          s.Cycles,
		Active:          s.Active,
		Retired:         s.Retired,
		CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toRunDTO(h career.Hierarchy, run *career.Run, absent []string) RunDTO {
	res := run.Result
	regular, supernumerary := res.CountByRank()

	cycles := make([]string, len(res.Cycles))
	for i, c := range res.Cycles {
		cycles[i] = c.String()
	}
	migrated := 0
	for _, counts := range run.Migrated {
		migrated += counts.Total()
	}

	return RunDTO{
		RunSummaryDTO: toRunSummaryDTO(run.Summary()),
		CycleDates:    cycles,
		Tracked:       nonNilIDs(run.Tracked),
		Feeders:       nonNilStrings(run.Feeders),
		Absent:        absent,
		Regular:       labelCounts(h, regular),
		Supernumerary: labelCounts(h, supernumerary),
		Migrated:      migrated,
	}
}

func toCycleVacancies(h career.Hierarchy, run *career.Run) []CycleVacanciesDTO {
	out := make([]CycleVacanciesDTO, 0, len(run.Result.Cycles))
	for _, date := range run.Result.Cycles {
		dto := CycleVacanciesDTO{
			Date:     date.String(),
			Leftover: labelCounts(h, run.Result.Leftovers.At(date)),
		}
		if migrated := run.Migrated.At(date); len(migrated) > 0 {
			dto.Migrated = labelCounts(h, migrated)
		}
		out = append(out, dto)
	}
	return out
}

func toHistoryDTO(h career.Hierarchy, res *career.Result, id int64) HistoryDTO {
	events := res.History[id]
	dto := HistoryDTO{
		ID:     id,
		Status: string(res.Status(id)),
		Events: make([]EventDTO, len(events)),
	}
	if rec, ok := res.Find(id); ok {
		dto.Rank = h.Label(rec.Rank)
	} else if ret, ok := res.Retirement(id); ok {
		dto.Rank = h.Label(ret.Rank)
	}
	for i, e := range events {
		dto.Events[i] = EventDTO{
			Date:          e.At.String(),
			Kind:          string(e.Kind),
			Rank:          e.Label,
			Supernumerary: e.Supernumerary,
			Reason:        string(e.Reason),
			Description:   e.String(),
		}
	}
	return dto
}

// labelCounts keys counts by rank label, skipping zeros.
func labelCounts(h career.Hierarchy, counts career.RankCounts) map[string]int {
	out := make(map[string]int, len(counts))
	for r, n := range counts {
		if n != 0 {
			out[h.Label(r)] = n
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
