package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/warp/career-engine/api"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/factory"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"github.com/warp/career-engine/roster"
	"github.com/warp/career-engine/store/sqlite"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a track from CSV rosters",
	Long: `Simulate one track from "now" to the target date and print the outcome.

Rosters are given per track as --roster <track>=<file.csv>. Simulating the
primary track pulls the leftover vacancies of every feeder track with a
roster; feeders without one are skipped.

Examples:
  promosim run --roster qoa=militares.csv --roster qomt=condutores.csv --follow 101,102
  promosim run --track qom --roster qom=musicos.csv --retirement 30 --out final.csv`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runFlags struct {
	track      string
	rosters    []string
	now        string
	target     string
	retirement int
	follow     []int64
	out        string
	archive    string
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.track, "track", "", "Track to simulate (default: the primary track)")
	f.StringArrayVar(&runFlags.rosters, "roster", nil, "Roster file per track as track=path (repeatable)")
	f.StringVar(&runFlags.now, "now", "", "Simulation start date (default: today)")
	f.StringVar(&runFlags.target, "target", "2030-12-31", "Simulation target date")
	f.IntVar(&runFlags.retirement, "retirement", 0, "Service-length retirement threshold in years (default from configuration)")
	f.Int64SliceVar(&runFlags.follow, "follow", nil, "Record ids whose history to print")
	f.StringVar(&runFlags.out, "out", "", "Write the final active roster to this CSV file")
	f.StringVar(&runFlags.archive, "archive", "", "Also archive the run in this SQLite database")
}

func runRun(cmd *cobra.Command, args []string) error {
	_, setup, err := loadSetup()
	if err != nil {
		return err
	}

	rosters, err := loadRosters(setup, runFlags.rosters)
	if err != nil {
		return err
	}
	horizon, err := parseHorizon(runFlags.now, runFlags.target)
	if err != nil {
		return err
	}
	track := runFlags.track
	if track == "" {
		track = setup.Primary
	}

	run, absent, err := simulate(cmd.Context(), setup, simulation{
		Track:           track,
		Rosters:         rosters,
		Horizon:         horizon,
		RetirementYears: runFlags.retirement,
		Tracked:         runFlags.follow,
	})
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), setup, run, absent)

	if runFlags.out != "" {
		if err := writeRoster(runFlags.out, setup.Rules.Hierarchy, run.Result.Active); err != nil {
			return err
		}
		pterm.Success.Printf("Final roster written to %s\n", runFlags.out)
	}
	if runFlags.archive != "" {
		if err := archiveRun(cmd.Context(), runFlags.archive, setup.Rules.Hierarchy, run); err != nil {
			return err
		}
		pterm.Success.Printf("Run %s archived in %s\n", run.ID, runFlags.archive)
	}
	return nil
}

// =============================================================================
// SIMULATION
// =============================================================================

type simulation struct {
	Track           string
	Rosters         map[string][]career.Record
	Horizon         generic.Period
	RetirementYears int
	Tracked         []int64
}

// simulate runs one track, with its feeders when it is the primary.
func simulate(ctx context.Context, setup *factory.Setup, s simulation) (*career.Run, []string, error) {
	if len(s.Tracked) > api.MaxTracked {
		return nil, nil, errors.Newf("at most %d ids can be followed", api.MaxTracked)
	}

	engine, err := career.NewEngine(setup.Rules, logger)
	if err != nil {
		return nil, nil, err
	}
	plan, absent, err := setup.Plan(factory.PlanRequest{
		Track:           s.Track,
		Rosters:         s.Rosters,
		Horizon:         s.Horizon,
		RetirementYears: s.RetirementYears,
		Tracked:         s.Tracked,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, id := range absent {
		logger.Warn("no roster for feeder track", zap.String(logging.FieldTrack, id))
	}

	outcome, err := career.NewCoordinator(engine, logger).Run(ctx, plan)
	if err != nil {
		return nil, nil, err
	}

	retirementYears := s.RetirementYears
	if retirementYears == 0 {
		retirementYears = setup.Rules.Retirement.DefaultServiceYears
	}
	feeders := make([]string, 0, len(outcome.Feeders))
	for _, f := range plan.Feeders {
		if _, ran := outcome.Feeders[f.Track.ID]; ran {
			feeders = append(feeders, f.Track.ID)
		}
	}
	return &career.Run{
		ID:              uuid.NewString(),
		Track:           s.Track,
		Horizon:         s.Horizon,
		RetirementYears: retirementYears,
		Tracked:         s.Tracked,
		Feeders:         feeders,
		CreatedAt:       time.Now().UTC(),
		Result:          outcome.Primary,
		Migrated:        outcome.Migrated,
	}, absent, nil
}

// loadRosters reads every track=path flag value.
func loadRosters(setup *factory.Setup, flags []string) (map[string][]career.Record, error) {
	loader := roster.NewLoader(setup.Rules.Hierarchy)
	rosters := make(map[string][]career.Record, len(flags))
	for _, flag := range flags {
		track, path, ok := strings.Cut(flag, "=")
		track = strings.TrimSpace(track)
		if !ok || track == "" || path == "" {
			return nil, errors.Newf("invalid --roster %q (want track=path)", flag)
		}
		if _, known := setup.Track(track); !known {
			return nil, errors.Wrapf(career.ErrTrackNotFound, "--roster %q", track)
		}
		if _, dup := rosters[track]; dup {
			return nil, errors.Newf("--roster given twice for track %q", track)
		}
		records, err := loader.LoadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "roster %s", path)
		}
		logger.Info("roster loaded",
			zap.String(logging.FieldTrack, track),
			zap.String(logging.FieldPath, path),
			zap.Int(logging.FieldCount, len(records)),
		)
		rosters[track] = records
	}
	return rosters, nil
}

func parseHorizon(nowText, targetText string) (generic.Period, error) {
	now := generic.Today()
	if nowText != "" {
		parsed, err := generic.ParseDate(nowText)
		if err != nil {
			return generic.Period{}, errors.Wrap(err, "--now")
		}
		now = parsed
	}
	target, err := generic.ParseDate(targetText)
	if err != nil {
		return generic.Period{}, errors.Wrap(err, "--target")
	}
	return generic.NewPeriod(now, target), nil
}

func writeRoster(path string, h career.Hierarchy, records []career.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	if err := roster.Write(f, h, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func archiveRun(ctx context.Context, path string, h career.Hierarchy, run *career.Run) error {
	store, err := sqlite.New(path, h)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveRun(ctx, run)
}

// =============================================================================
// REPORT
// =============================================================================

func printReport(w io.Writer, setup *factory.Setup, run *career.Run, absent []string) {
	h := setup.Rules.Hierarchy
	res := run.Result
	track, _ := setup.Track(run.Track)

	fmt.Fprintf(w, "%s: %s to %s, %d cycles, retirement at %d years of service\n",
		track.Name, run.Horizon.Start.Display(), run.Horizon.End.Display(), len(res.Cycles), run.RetirementYears)
	if len(run.Feeders) > 0 {
		fmt.Fprintf(w, "Vacancies migrated from: %s\n", strings.Join(run.Feeders, ", "))
	}
	if len(absent) > 0 {
		fmt.Fprintf(w, "Feeders without roster: %s\n", strings.Join(absent, ", "))
	}
	fmt.Fprintln(w)

	regular, supernumerary := res.CountByRank()
	leftover, migrated := make(career.RankCounts), make(career.RankCounts)
	for _, counts := range res.Leftovers {
		for r, n := range counts {
			leftover[r] += n
		}
	}
	for _, counts := range run.Migrated {
		for r, n := range counts {
			migrated[r] += n
		}
	}

	rows := pterm.TableData{{"Rank", "Quota", "Regular", "Supernumerary", "Leftover", "Migrated"}}
	for _, r := range h.Ranks() {
		quota := "-"
		if q, ok := track.Quota[r]; ok {
			quota = strconv.Itoa(q)
		}
		rows = append(rows, []string{
			h.Label(r), quota,
			strconv.Itoa(regular[r]), strconv.Itoa(supernumerary[r]),
			strconv.Itoa(leftover[r]), strconv.Itoa(migrated[r]),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()

	fmt.Fprintf(w, "\nActive: %d  Retired: %d\n", len(res.Active), len(res.Retired))

	for _, id := range run.Tracked {
		fmt.Fprintf(w, "\n#%d (%s)\n", id, res.Status(id))
		events := res.History[id]
		if len(events) == 0 {
			fmt.Fprintln(w, "  no changes")
		}
		for _, e := range events {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
