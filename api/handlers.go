/*
handlers.go - HTTP API handlers for the career simulator

PURPOSE:
  Exposes the progression engine via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the engine and archive.

ENDPOINTS:
  Configuration:
    GET    /api/config                          Hierarchy, rules, tracks

  Tracks:
    GET    /api/tracks                          Tracks with roster sizes
    GET    /api/tracks/{id}/roster              Stored roster (JSON, or CSV with ?format=csv)
    PUT    /api/tracks/{id}/roster              Upload a CSV roster

  Simulations:
    POST   /api/simulations                     Run and archive
    GET    /api/simulations                     Archived runs, newest first
    GET    /api/simulations/{id}                Summary
    GET    /api/simulations/{id}/active         Final active roster (?format=csv)
    GET    /api/simulations/{id}/retired        Retired roster
    GET    /api/simulations/{id}/leftovers      Vacancies per cycle date
    GET    /api/simulations/{id}/history/{pid}  Tracked individual's events

  Scenarios:
    GET    /api/scenarios                       Demo rosters
    POST   /api/scenarios/load                  Replace stored rosters with a demo

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Setup: rules and tracks built from the configuration document
  - Coordinator: runs the primary track with its feeders
  - Archive: runs and rosters
  - Loader: CSV roster parsing

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the engine or the archive
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid roster, dates, threshold or tracked ids
  - 404: Track, roster or run not found
  - 409: Run id collision
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo rosters
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/factory"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"github.com/warp/career-engine/roster"
	"go.uber.org/zap"
)

// maxRosterBytes bounds an uploaded CSV.
const maxRosterBytes = 32 << 20

// errTooManyTracked rejects simulation requests following too many people.
var errTooManyTracked = errors.Newf("at most %d tracked ids", MaxTracked)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Config      *factory.Config
	Setup       *factory.Setup
	Coordinator *career.Coordinator
	Archive     career.Archive
	Loader      *roster.Loader
	Logger      *zap.Logger

	// Clock supplies "now" when a request omits it.
	Clock func() generic.TimePoint
	// NewID names archived runs.
	NewID func() string

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler builds the engine from cfg and wires it to the archive. A nil
// logger discards output.
func NewHandler(cfg *factory.Config, archive career.Archive, logger *zap.Logger) (*Handler, error) {
	setup, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)
	engine, err := career.NewEngine(setup.Rules, logger)
	if err != nil {
		return nil, err
	}
	return &Handler{
		Config:      cfg,
		Setup:       setup,
		Coordinator: career.NewCoordinator(engine, logger),
		Archive:     archive,
		Loader:      roster.NewLoader(setup.Rules.Hierarchy),
		Logger:      logger,
		Clock:       generic.Today,
		NewID:       uuid.NewString,
	}, nil
}

func (h *Handler) hierarchy() career.Hierarchy { return h.Setup.Rules.Hierarchy }

// =============================================================================
// CONFIGURATION AND TRACKS
// =============================================================================

// GetConfig returns the effective rules and tracks.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.Archive.RosterSizes(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to count rosters", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(h.Config, h.Setup, sizes))
}

// ListTracks returns every track with the size of its stored roster.
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.Archive.RosterSizes(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to count rosters", err)
		return
	}
	dtos := make([]TrackDTO, len(h.Setup.Tracks))
	for i, t := range h.Setup.Tracks {
		dtos[i] = toTrackDTO(h.hierarchy(), h.Setup.Primary, t, sizes[t.ID])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRoster returns a track's stored roster.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	track, ok := h.track(w, r)
	if !ok {
		return
	}
	records, err := h.Archive.GetRoster(r.Context(), track.ID)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get roster", err)
		return
	}
	h.writeRecords(w, r, track.ID, records)
}

// UploadRoster replaces a track's roster with the CSV request body.
func (h *Handler) UploadRoster(w http.ResponseWriter, r *http.Request) {
	track, ok := h.track(w, r)
	if !ok {
		return
	}

	records, err := h.Loader.Read(http.MaxBytesReader(w, r.Body, maxRosterBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster", err)
		return
	}
	if err := h.Coordinator.Engine.Validate(records); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid roster", err)
		return
	}
	if err := h.Archive.SaveRoster(r.Context(), track.ID, records); err != nil {
		h.writeDomainError(w, r, "Failed to store roster", err)
		return
	}

	h.Logger.Info("roster uploaded",
		zap.String(logging.FieldTrack, track.ID),
		zap.Int(logging.FieldCount, len(records)),
	)
	writeJSON(w, http.StatusOK, RosterUploadDTO{Track: track.ID, Records: len(records)})
}

// track resolves the {id} route parameter, writing a 404 when unknown.
func (h *Handler) track(w http.ResponseWriter, r *http.Request) (factory.Track, bool) {
	id := chi.URLParam(r, "id")
	t, ok := h.Setup.Track(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Track not found",
			errors.Wrapf(career.ErrTrackNotFound, "%q", id))
	}
	return t, ok
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// RunSimulation runs the requested track over the stored rosters and
// archives the result. The primary track pulls migrated vacancies from every
// feeder with a stored roster.
func (h *Handler) RunSimulation(w http.ResponseWriter, r *http.Request) {
	var req SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Tracked) > MaxTracked {
		writeError(w, http.StatusBadRequest, "Too many tracked ids", errTooManyTracked)
		return
	}
	horizon, err := h.horizon(req.Now, req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD or DD/MM/YYYY)", err)
		return
	}

	ctx := r.Context()
	if _, ok := h.Setup.Track(req.Track); !ok {
		writeError(w, http.StatusNotFound, "Track not found",
			errors.Wrapf(career.ErrTrackNotFound, "%q", req.Track))
		return
	}
	rosters, err := h.rosters(r, req.Track)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load rosters", err)
		return
	}

	plan, absent, err := h.Setup.Plan(factory.PlanRequest{
		Track:           req.Track,
		Rosters:         rosters,
		Horizon:         horizon,
		RetirementYears: req.RetirementYears,
		Tracked:         req.Tracked,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to plan simulation", err)
		return
	}

	outcome, err := h.Coordinator.Run(ctx, plan)
	if err != nil {
		h.writeDomainError(w, r, "Simulation failed", err)
		return
	}

	retirementYears := req.RetirementYears
	if retirementYears == 0 {
		retirementYears = h.Setup.Rules.Retirement.DefaultServiceYears
	}
	run := &career.Run{
		ID:              h.NewID(),
		Track:           req.Track,
		Horizon:         horizon,
		RetirementYears: retirementYears,
		Tracked:         req.Tracked,
		Feeders:         sortedKeys(outcome.Feeders),
		CreatedAt:       time.Now().UTC(),
		Result:          outcome.Primary,
		Migrated:        outcome.Migrated,
	}
	if err := h.Archive.SaveRun(ctx, run); err != nil {
		h.writeDomainError(w, r, "Failed to archive simulation", err)
		return
	}

	h.Logger.Info("simulation archived",
		zap.String(logging.FieldRunID, run.ID),
		zap.String(logging.FieldTrack, run.Track),
		zap.Strings(logging.FieldFeeders, run.Feeders),
	)
	writeJSON(w, http.StatusCreated, toRunDTO(h.hierarchy(), run, absent))
}

// horizon parses the request dates, defaulting now to the clock and target
// to 31/12 of the fifth year after now.
func (h *Handler) horizon(nowText, targetText string) (generic.Period, error) {
	now := h.Clock()
	if nowText != "" {
		parsed, err := generic.ParseDate(nowText)
		if err != nil {
			return generic.Period{}, errors.Wrap(err, "now")
		}
		now = parsed
	}
	target := generic.NewTimePoint(now.Year()+5, time.December, 31)
	if targetText != "" {
		parsed, err := generic.ParseDate(targetText)
		if err != nil {
			return generic.Period{}, errors.Wrap(err, "target")
		}
		target = parsed
	}
	return generic.NewPeriod(now, target), nil
}

// rosters loads the roster of track and, for the primary track, every
// stored feeder roster. Feeders without a roster are left out.
func (h *Handler) rosters(r *http.Request, track string) (map[string][]career.Record, error) {
	ctx := r.Context()
	ids := []string{track}
	if track == h.Setup.Primary {
		for _, f := range h.Setup.Feeders() {
			ids = append(ids, f.ID)
		}
	}

	rosters := make(map[string][]career.Record, len(ids))
	for _, id := range ids {
		records, err := h.Archive.GetRoster(ctx, id)
		if errors.Is(err, career.ErrRosterNotFound) && id != track {
			continue
		}
		if err != nil {
			return nil, err
		}
		rosters[id] = records
	}
	return rosters, nil
}

// ListSimulations returns archived runs, newest first.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Archive.ListRuns(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list simulations", err)
		return
	}
	dtos := make([]RunSummaryDTO, len(runs))
	for i, s := range runs {
		dtos[i] = toRunSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSimulation returns a run's summary.
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(h.hierarchy(), run, nil))
}

// GetActive returns the final active roster, most senior first.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	h.writeRecords(w, r, run.ID, run.Result.Active)
}

// GetRetired returns the records that retired during the run.
func (h *Handler) GetRetired(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRetirementDTOs(h.hierarchy(), run.Result.Retired))
}

// GetLeftovers returns the unmet quota of every cycle date, with the
// migrated addend when the run had feeders.
func (h *Handler) GetLeftovers(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCycleVacancies(h.hierarchy(), run))
}

// GetHistory returns a tracked individual's events and final status.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	run, ok := h.run(w, r)
	if !ok {
		return
	}
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record id", err)
		return
	}
	if _, tracked := run.Result.History[pid]; !tracked {
		writeError(w, http.StatusNotFound, "Record was not tracked in this simulation", nil)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(h.hierarchy(), run.Result, pid))
}

// run loads the {id} run, writing the error response when it can't.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*career.Run, bool) {
	run, err := h.Archive.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get simulation", err)
		return nil, false
	}
	return run, true
}

// =============================================================================
// HELPERS
// =============================================================================

// writeRecords writes records as JSON, or as the canonical CSV export with
// ?format=csv.
func (h *Handler) writeRecords(w http.ResponseWriter, r *http.Request, name string, records []career.Record) {
	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, http.StatusOK, toRecordDTOs(h.hierarchy(), records))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if err := roster.Write(w, h.hierarchy(), records); err != nil {
		h.Logger.Warn("csv export interrupted", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: errorCode(status)}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's sentinel. Unexpected
// errors are logged.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case career.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case career.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, career.ErrRunExists):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Logger.Error(message,
			zap.Error(err),
			zap.String(logging.FieldRequestID, middleware.GetReqID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal"
	}
}
