/*
Package sqlite provides a SQLite-backed implementation of the archive interfaces.

PURPOSE:
  Implements career.RunStore and career.RosterStore using SQLite. The engine
  keeps nothing between runs; this package is what lets the API browse past
  simulations and reuse uploaded rosters.

INTERFACES IMPLEMENTED:
  career.RunStore:    Archived simulations (immutable)
  career.RosterStore: Current roster per track (replace-on-upload)

APPEND-ONLY RUNS:
  A run is written once, in one transaction, and never updated. Saving an
  existing id returns career.ErrRunExists.

KEY TABLES:
  simulation_runs: Run parameters and summary counts
  run_records:     Final active roster and retired roster of each run
  run_events:      History of tracked individuals
  run_vacancies:   Leftover and migrated slots per (cycle date, rank)
  rosters:         Uploaded rosters

RANKS:
  Ranks are stored both as their index (authoritative) and their label (for
  humans reading the database).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/promosim.db", hierarchy)
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - career/store.go: Interface definitions
  - career/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/generic"
)

// Store implements career.Archive using SQLite.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	hierarchy career.Hierarchy
}

var _ career.Archive = (*Store)(nil)

// New creates a new SQLite store with the given database path. Use
// ":memory:" for an in-memory database. The hierarchy labels stored ranks.
func New(dbPath string, h career.Hierarchy) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, hierarchy: h}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Simulation runs (immutable once written)
	CREATE TABLE IF NOT EXISTS simulation_runs (
		id TEXT PRIMARY KEY,
		track TEXT NOT NULL,
		horizon_start TEXT,
		horizon_end TEXT,
		retirement_years INTEGER NOT NULL,
		tracked_json TEXT NOT NULL,
		feeders_json TEXT NOT NULL,
		cycles_json TEXT NOT NULL,
		active_count INTEGER NOT NULL,
		retired_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at
		ON simulation_runs(created_at DESC);

	-- Final rosters of a run: kind is 'active' or 'retired'
	CREATE TABLE IF NOT EXISTS run_records (
		run_id TEXT NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		seq INTEGER NOT NULL,
		record_id INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		rank_label TEXT NOT NULL,
		rank_position INTEGER NOT NULL,
		last_promotion TEXT,
		admission TEXT,
		birth TEXT,
		supernumerary BOOLEAN NOT NULL DEFAULT FALSE,
		retired_at TEXT,
		reason TEXT,
		PRIMARY KEY (run_id, kind, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_run_records_record
		ON run_records(run_id, record_id);

	-- History of tracked individuals
	CREATE TABLE IF NOT EXISTS run_events (
		run_id TEXT NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
		record_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		at TEXT NOT NULL,
		kind TEXT NOT NULL,
		rank INTEGER NOT NULL,
		rank_label TEXT NOT NULL,
		supernumerary BOOLEAN NOT NULL DEFAULT FALSE,
		reason TEXT,
		PRIMARY KEY (run_id, record_id, seq)
	);

	-- Vacancies per cycle date: kind is 'leftover' or 'migrated'
	CREATE TABLE IF NOT EXISTS run_vacancies (
		run_id TEXT NOT NULL REFERENCES simulation_runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		cycle_date TEXT NOT NULL,
		rank INTEGER NOT NULL,
		rank_label TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, kind, cycle_date, rank)
	);

	-- Uploaded rosters (latest per track)
	CREATE TABLE IF NOT EXISTS rosters (
		track TEXT NOT NULL,
		seq INTEGER NOT NULL,
		record_id INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		rank_label TEXT NOT NULL,
		rank_position INTEGER NOT NULL,
		last_promotion TEXT,
		admission TEXT,
		birth TEXT,
		supernumerary BOOLEAN NOT NULL DEFAULT FALSE,
		uploaded_at TEXT NOT NULL,
		PRIMARY KEY (track, seq),
		UNIQUE (track, record_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN STORE (career.RunStore interface)
// =============================================================================

const (
	kindActive   = "active"
	kindRetired  = "retired"
	kindLeftover = "leftover"
	kindMigrated = "migrated"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveRun archives a run in a single transaction.
func (s *Store) SaveRun(ctx context.Context, run *career.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := run.Result
	if res == nil {
		res = &career.Result{}
	}

	tracked, _ := json.Marshal(nonNil(run.Tracked))
	feeders, _ := json.Marshal(nonNilStrings(run.Feeders))
	cycles := make([]string, len(res.Cycles))
	for i, c := range res.Cycles {
		cycles[i] = c.String()
	}
	cyclesJSON, _ := json.Marshal(cycles)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulation_runs
		(id, track, horizon_start, horizon_end, retirement_years, tracked_json,
		 feeders_json, cycles_json, active_count, retired_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Track,
		nullDate(run.Horizon.Start),
		nullDate(run.Horizon.End),
		run.RetirementYears,
		string(tracked),
		string(feeders),
		string(cyclesJSON),
		len(res.Active),
		len(res.Retired),
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.Wrapf(career.ErrRunExists, "run %s", run.ID)
		}
		return errors.Wrap(err, "failed to insert run")
	}

	for i, r := range res.Active {
		if err := s.insertRunRecord(ctx, tx, run.ID, kindActive, i, r, nil); err != nil {
			return err
		}
	}
	for i, r := range res.Retired {
		ret := r
		if err := s.insertRunRecord(ctx, tx, run.ID, kindRetired, i, r.Record, &ret); err != nil {
			return err
		}
	}
	for id, events := range res.History {
		for i, e := range events {
			if err := s.insertEvent(ctx, tx, run.ID, id, i, e); err != nil {
				return err
			}
		}
	}
	if err := s.insertVacancies(ctx, tx, run.ID, kindLeftover, res.Leftovers); err != nil {
		return err
	}
	if err := s.insertVacancies(ctx, tx, run.ID, kindMigrated, run.Migrated); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) insertRunRecord(ctx context.Context, db execer, runID, kind string, seq int, r career.Record, ret *career.Retirement) error {
	var retiredAt, reason sql.NullString
	if ret != nil {
		retiredAt = nullDate(ret.At)
		reason = nullString(string(ret.Reason))
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO run_records
		(run_id, kind, seq, record_id, rank, rank_label, rank_position,
		 last_promotion, admission, birth, supernumerary, retired_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, kind, seq, r.ID, int(r.Rank), s.hierarchy.Label(r.Rank), r.RankPosition,
		nullDate(r.LastPromotion), nullDate(r.Admission), nullDate(r.Birth),
		r.Supernumerary(), retiredAt, reason,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert %s record %d", kind, r.ID)
	}
	return nil
}

func (s *Store) insertEvent(ctx context.Context, db execer, runID string, recordID int64, seq int, e career.Event) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO run_events
		(run_id, record_id, seq, at, kind, rank, rank_label, supernumerary, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, recordID, seq, e.At.String(), string(e.Kind), int(e.Rank), e.Label,
		e.Supernumerary, nullString(string(e.Reason)),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert event for record %d", recordID)
	}
	return nil
}

func (s *Store) insertVacancies(ctx context.Context, db execer, runID, kind string, v career.Vacancies) error {
	for date, counts := range v {
		for rank, n := range counts {
			_, err := db.ExecContext(ctx, `
				INSERT INTO run_vacancies (run_id, kind, cycle_date, rank, rank_label, count)
				VALUES (?, ?, ?, ?, ?, ?)
			`, runID, kind, date, int(rank), s.hierarchy.Label(rank), n)
			if err != nil {
				return errors.Wrapf(err, "failed to insert %s vacancies for %s", kind, date)
			}
		}
	}
	return nil
}

// GetRun loads a run with its full result.
func (s *Store) GetRun(ctx context.Context, id string) (*career.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := &career.Run{ID: id, Result: &career.Result{}}
	var (
		start, end                        sql.NullString
		tracked, feeders, cycles, created string
		activeCount, retiredCount         int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT track, horizon_start, horizon_end, retirement_years, tracked_json,
		       feeders_json, cycles_json, active_count, retired_count, created_at
		FROM simulation_runs WHERE id = ?
	`, id).Scan(&run.Track, &start, &end, &run.RetirementYears, &tracked,
		&feeders, &cycles, &activeCount, &retiredCount, &created)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(career.ErrRunNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load run")
	}

	var dates dateParser
	run.Horizon = generic.NewPeriod(dates.parse(start), dates.parse(end))
	run.CreatedAt = dates.timestamp(created)
	if dates.err != nil {
		return nil, dates.err
	}
	run.Result.Track = run.Track
	if err := json.Unmarshal([]byte(tracked), &run.Tracked); err != nil {
		return nil, errors.Wrap(err, "corrupt tracked ids")
	}
	if err := json.Unmarshal([]byte(feeders), &run.Feeders); err != nil {
		return nil, errors.Wrap(err, "corrupt feeder list")
	}
	var cycleDates []string
	if err := json.Unmarshal([]byte(cycles), &cycleDates); err != nil {
		return nil, errors.Wrap(err, "corrupt cycle list")
	}

	res := run.Result
	res.Leftovers = make(career.Vacancies, len(cycleDates))
	for _, d := range cycleDates {
		tp, err := generic.ParseDate(d)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt cycle date %q", d)
		}
		res.Cycles = append(res.Cycles, tp)
		res.Leftovers[d] = career.RankCounts{}
	}
	res.History = make(career.History, len(run.Tracked))
	for _, tid := range run.Tracked {
		res.History[tid] = []career.Event{}
	}
	res.Active = make([]career.Record, 0, activeCount)
	res.Retired = make([]career.Retirement, 0, retiredCount)

	if err := s.loadRecords(ctx, res, id); err != nil {
		return nil, err
	}
	if err := s.loadEvents(ctx, res.History, id); err != nil {
		return nil, err
	}
	if err := s.loadVacancies(ctx, res.Leftovers, id, kindLeftover); err != nil {
		return nil, err
	}
	run.Migrated = make(career.Vacancies)
	if err := s.loadVacancies(ctx, run.Migrated, id, kindMigrated); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) loadRecords(ctx context.Context, res *career.Result, runID string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, record_id, rank, rank_position, last_promotion, admission, birth,
		       supernumerary, retired_at, reason
		FROM run_records WHERE run_id = ?
		ORDER BY kind, seq
	`, runID)
	if err != nil {
		return errors.Wrap(err, "failed to load run records")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind                                     string
			rank                                     int
			super                                    bool
			lastPromotion, admission, birth, at, why sql.NullString
			r                                        career.Record
		)
		if err := rows.Scan(&kind, &r.ID, &rank, &r.RankPosition, &lastPromotion, &admission,
			&birth, &super, &at, &why); err != nil {
			return errors.Wrap(err, "failed to scan run record")
		}
		var dates dateParser
		r.Rank = career.Rank(rank)
		r.LastPromotion = dates.parse(lastPromotion)
		r.Admission = dates.parse(admission)
		r.Birth = dates.parse(birth)
		retiredAt := dates.parse(at)
		if dates.err != nil {
			return errors.Wrapf(dates.err, "run record %d", r.ID)
		}
		if super {
			r.Status = career.StatusSupernumerary
		}

		if kind == kindRetired {
			res.Retired = append(res.Retired, career.Retirement{
				Record: r,
				At:     retiredAt,
				Reason: career.RetirementReason(why.String),
			})
		} else {
			res.Active = append(res.Active, r)
		}
	}
	return rows.Err()
}

func (s *Store) loadEvents(ctx context.Context, history career.History, runID string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, at, kind, rank, rank_label, supernumerary, reason
		FROM run_events WHERE run_id = ?
		ORDER BY record_id, seq
	`, runID)
	if err != nil {
		return errors.Wrap(err, "failed to load run events")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			at, kind string
			rank     int
			e        career.Event
			reason   sql.NullString
		)
		if err := rows.Scan(&id, &at, &kind, &rank, &e.Label, &e.Supernumerary, &reason); err != nil {
			return errors.Wrap(err, "failed to scan run event")
		}
		tp, err := generic.ParseDate(at)
		if err != nil {
			return errors.Wrapf(err, "corrupt event date for record %d", id)
		}
		e.At = tp
		e.Kind = career.EventKind(kind)
		e.Rank = career.Rank(rank)
		e.Reason = career.RetirementReason(reason.String)
		history[id] = append(history[id], e)
	}
	return rows.Err()
}

func (s *Store) loadVacancies(ctx context.Context, v career.Vacancies, runID, kind string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cycle_date, rank, count FROM run_vacancies
		WHERE run_id = ? AND kind = ?
	`, runID, kind)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s vacancies", kind)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date    string
			rank, n int
		)
		if err := rows.Scan(&date, &rank, &n); err != nil {
			return errors.Wrap(err, "failed to scan vacancies")
		}
		v.Add(date, career.Rank(rank), n)
	}
	return rows.Err()
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]career.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track, horizon_start, horizon_end, retirement_years, cycles_json,
		       active_count, retired_count, created_at
		FROM simulation_runs
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var out []career.RunSummary
	for rows.Next() {
		var (
			sum             career.RunSummary
			start, end      sql.NullString
			cycles, created string
		)
		if err := rows.Scan(&sum.ID, &sum.Track, &start, &end, &sum.RetirementYears, &cycles,
			&sum.Active, &sum.Retired, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		var cycleDates []string
		if err := json.Unmarshal([]byte(cycles), &cycleDates); err != nil {
			return nil, errors.Wrapf(err, "run %s: corrupt cycle list", sum.ID)
		}
		var dates dateParser
		sum.Cycles = len(cycleDates)
		sum.Horizon = generic.NewPeriod(dates.parse(start), dates.parse(end))
		sum.CreatedAt = dates.timestamp(created)
		if dates.err != nil {
			return nil, errors.Wrapf(dates.err, "run %s", sum.ID)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// =============================================================================
// ROSTER STORE (career.RosterStore interface)
// =============================================================================

// SaveRoster replaces the roster of track. Saving an empty roster removes it.
func (s *Store) SaveRoster(ctx context.Context, track string, records []career.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rosters WHERE track = ?`, track); err != nil {
		return errors.Wrap(err, "failed to clear roster")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rosters
			(track, seq, record_id, rank, rank_label, rank_position,
			 last_promotion, admission, birth, supernumerary, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			track, i, r.ID, int(r.Rank), s.hierarchy.Label(r.Rank), r.RankPosition,
			nullDate(r.LastPromotion), nullDate(r.Admission), nullDate(r.Birth),
			r.Supernumerary(), now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &career.RecordError{Index: i, ID: r.ID, Err: career.ErrDuplicateID}
			}
			return errors.Wrapf(err, "failed to insert roster record %d", r.ID)
		}
	}

	return tx.Commit()
}

// GetRoster returns the stored roster of track in upload order.
func (s *Store) GetRoster(ctx context.Context, track string) ([]career.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, rank, rank_position, last_promotion, admission, birth, supernumerary
		FROM rosters WHERE track = ?
		ORDER BY seq
	`, track)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load roster")
	}
	defer rows.Close()

	records := []career.Record{}
	for rows.Next() {
		var (
			r                               career.Record
			rank                            int
			super                           bool
			lastPromotion, admission, birth sql.NullString
		)
		if err := rows.Scan(&r.ID, &rank, &r.RankPosition, &lastPromotion, &admission, &birth, &super); err != nil {
			return nil, errors.Wrap(err, "failed to scan roster record")
		}
		var dates dateParser
		r.Rank = career.Rank(rank)
		r.LastPromotion = dates.parse(lastPromotion)
		r.Admission = dates.parse(admission)
		r.Birth = dates.parse(birth)
		if dates.err != nil {
			return nil, errors.Wrapf(dates.err, "roster record %d", r.ID)
		}
		if super {
			r.Status = career.StatusSupernumerary
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(career.ErrRosterNotFound, "track %s", track)
	}
	return records, nil
}

// RosterSizes returns the record count of every stored roster.
func (s *Store) RosterSizes(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT track, COUNT(*) FROM rosters GROUP BY track`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count rosters")
	}
	defer rows.Close()

	sizes := make(map[string]int)
	for rows.Next() {
		var (
			track string
			n     int
		)
		if err := rows.Scan(&track, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan roster count")
		}
		sizes[track] = n
	}
	return sizes, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp generic.TimePoint) sql.NullString {
	return nullString(tp.String())
}

// dateParser decodes stored dates, keeping the first failure in err.
type dateParser struct {
	err error
}

// parse maps NULL to the zero date.
func (p *dateParser) parse(ns sql.NullString) generic.TimePoint {
	if !ns.Valid || p.err != nil {
		return generic.TimePoint{}
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		p.err = errors.Wrapf(err, "corrupt date %q", ns.String)
	}
	return tp
}

func (p *dateParser) timestamp(s string) time.Time {
	if p.err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		p.err = errors.Wrapf(err, "corrupt timestamp %q", s)
	}
	return t
}

func nonNil(ids []int64) []int64 {
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

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY"))
}
