package career_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/career-engine/career"
)

// halfOn passes everything through except ceil(n/2) at the given ranks.
func halfOn(ranks ...career.Rank) career.MigrationPolicy {
	p := career.FullMigration()
	p.Shares = make(map[career.Rank]decimal.Decimal, len(ranks))
	for _, r := range ranks {
		p.Shares[r] = decimal.RequireFromString("0.5")
	}
	return p
}

// =============================================================================
// MIGRATION POLICY
// =============================================================================

func TestMigrationPolicy_Contribution(t *testing.T) {
	policy := halfOn(sgt2)

	tests := []struct {
		name     string
		rank     career.Rank
		leftover int
		want     int
	}{
		{"half rounds up odd", sgt2, 5, 3},
		{"half of even", sgt2, 4, 2},
		{"half of one", sgt2, 1, 1},
		{"nothing left", sgt2, 0, 0},
		{"full share", sgt3, 5, 5},
		{"negative ignored", sgt3, -2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Contribution(tt.rank, tt.leftover); got != tt.want {
				t.Errorf("Contribution(%d, %d) = %d, want %d", tt.rank, tt.leftover, got, tt.want)
			}
		})
	}
}

func TestMigrationPolicy_ZeroShareContributesNothing(t *testing.T) {
	policy := career.MigrationPolicy{}
	if got := policy.Contribution(sgt3, 10); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestMigrationPolicy_Apply(t *testing.T) {
	// GIVEN: Leftovers on two dates, half share at 2º SGT
	// WHEN: Applying the policy
	// THEN: Each (date, rank) is transformed independently, zeros dropped

	policy := halfOn(sgt2)
	leftovers := career.Vacancies{
		"2026-06-26": {sgt3: 4, sgt2: 5},
		"2026-11-29": {sgt2: 0},
	}

	got := policy.Apply(leftovers)

	if got["2026-06-26"][sgt3] != 4 {
		t.Errorf("expected 4 at 3º SGT, got %d", got["2026-06-26"][sgt3])
	}
	if got["2026-06-26"][sgt2] != 3 {
		t.Errorf("expected 3 at 2º SGT, got %d", got["2026-06-26"][sgt2])
	}
	if _, ok := got["2026-11-29"]; ok {
		t.Errorf("expected no entry for a date without leftover, got %v", got["2026-11-29"])
	}
}

func TestMigrationPolicy_Validate(t *testing.T) {
	policy := halfOn(sgt2)
	if err := policy.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	policy.Shares[sgt3] = decimal.RequireFromString("1.5")
	if err := policy.Validate(); !errors.Is(err, career.ErrInvalidRules) {
		t.Errorf("expected ErrInvalidRules, got %v", err)
	}
}

// =============================================================================
// COORDINATOR
// =============================================================================

// idleFeeder has five unfilled 3º SGT slots on every cycle date.
func idleFeeder(id string, policy career.MigrationPolicy) career.Feeder {
	return career.Feeder{
		Track:  career.TrackInput{ID: id, Roster: []career.Record{}, Quota: career.Quota{sgt3: 5}},
		Policy: policy,
	}
}

// waitingPrimary has four time-qualified CBs and no 3º SGT quota of its own.
func waitingPrimary() career.TrackInput {
	return career.TrackInput{
		ID: "primary",
		Roster: []career.Record{
			person(1, cb, 1, "2022-01-01"),
			person(2, cb, 2, "2022-01-01"),
			person(3, cb, 3, "2022-01-01"),
			person(4, cb, 4, "2022-01-01"),
		},
		Quota: career.Quota{cb: 10, sgt3: 0, sgt2: 0},
	}
}

func newTestCoordinator(t *testing.T) *career.Coordinator {
	t.Helper()
	return career.NewCoordinator(newTestEngine(t), nil)
}

func TestCoordinator_MigratesRoundedLeftover(t *testing.T) {
	// GIVEN: A feeder leaving 5 slots at 3º SGT with a half share there
	// WHEN: Running the plan over one cycle
	// THEN: 3 slots migrate and the 3 most senior primary CBs are promoted

	plan := career.Plan{
		Primary: waitingPrimary(),
		Feeders: []career.Feeder{idleFeeder("aux", halfOn(sgt3))},
		Horizon: firstCycle2026(),
	}

	out, err := newTestCoordinator(t).Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := out.Migrated["2026-06-26"][sgt3]; got != 3 {
		t.Errorf("expected 3 migrated slots, got %d", got)
	}
	if got := out.Feeders["aux"].Leftovers["2026-06-26"][sgt3]; got != 5 {
		t.Errorf("expected feeder leftover of 5, got %d", got)
	}

	for id, want := range map[int64]career.Rank{1: sgt3, 2: sgt3, 3: sgt3, 4: cb} {
		rec, ok := out.Primary.Find(id)
		if !ok {
			t.Fatalf("record %d missing", id)
		}
		if rec.Rank != want {
			t.Errorf("record %d: expected rank %d, got %d", id, want, rec.Rank)
		}
	}
}

func TestCoordinator_CombinesFeeders(t *testing.T) {
	// GIVEN: A full-share feeder and a half-share feeder, both leaving 5
	// WHEN: Running the plan
	// THEN: The addend is 5 + 3 = 8 on the cycle date

	plan := career.Plan{
		Primary: waitingPrimary(),
		Feeders: []career.Feeder{
			idleFeeder("first", career.FullMigration()),
			idleFeeder("second", halfOn(sgt3)),
		},
		Horizon: firstCycle2026(),
	}

	out, err := newTestCoordinator(t).Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Migrated["2026-06-26"][sgt3]; got != 8 {
		t.Errorf("expected 8 migrated slots, got %d", got)
	}
	if len(out.Feeders) != 2 {
		t.Errorf("expected 2 feeder results, got %d", len(out.Feeders))
	}
}

func TestCoordinator_AbsentFeederContributesNothing(t *testing.T) {
	// GIVEN: The only feeder is absent
	// WHEN: Running the plan
	// THEN: The primary runs on its baseline quota alone

	feeder := idleFeeder("aux", career.FullMigration())
	feeder.Absent = true
	plan := career.Plan{
		Primary: waitingPrimary(),
		Feeders: []career.Feeder{feeder},
		Horizon: firstCycle2026(),
	}

	out, err := newTestCoordinator(t).Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Feeders) != 0 {
		t.Errorf("expected no feeder results, got %d", len(out.Feeders))
	}
	if len(out.Migrated) != 0 {
		t.Errorf("expected nothing migrated, got %v", out.Migrated)
	}
	regular, _ := out.Primary.CountByRank()
	if regular[sgt3] != 0 {
		t.Errorf("expected no promotions, got %d", regular[sgt3])
	}
}

func TestCoordinator_FeederErrorAbortsPlan(t *testing.T) {
	feeder := idleFeeder("broken", career.FullMigration())
	feeder.Track.Roster = []career.Record{person(9, cb, 1, ""), person(9, cb, 2, "")}

	_, err := newTestCoordinator(t).Run(context.Background(), career.Plan{
		Primary: waitingPrimary(),
		Feeders: []career.Feeder{feeder},
		Horizon: firstCycle2026(),
	})
	if !errors.Is(err, career.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestCoordinator_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestCoordinator(t).Run(ctx, career.Plan{
		Primary: waitingPrimary(),
		Feeders: []career.Feeder{idleFeeder("aux", career.FullMigration())},
		Horizon: firstCycle2026(),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
