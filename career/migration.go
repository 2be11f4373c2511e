/*
migration.go - Vacancy migration between tracks

PURPOSE:
  Auxiliary ("feeder") tracks that cannot fill their quota donate the unmet
  slots to the primary track on the same cycle date. The coordinator runs
  each feeder, converts its leftover vacancies into a quota addend through
  a MigrationPolicy, and then runs the primary track with that addend.

SHARES:
  A policy assigns a share in [0, 1] to each rank. The contribution of a
  leftover of n slots is ceil(n × share):
    share 1   → n          (full pass-through)
    share 1/2 → ceil(n/2)  (5 → 3, 4 → 2)
    share 0   → nothing
  Shares are decimals so the rounding is exact.

CONCURRENCY:
  Feeders are independent of one another and of the primary track until
  their leftovers are combined, so they run concurrently. Every feeder
  result is materialized before the primary run starts.

DEGRADATION:
  A feeder marked Absent (its roster could not be loaded) contributes
  nothing. The primary run proceeds.

SEE ALSO:
  - engine.go: single-track runs
  - factory/config.go: default shares per track
*/
package career

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// MIGRATION POLICY - Share of leftover passed on, per rank
// =============================================================================

type MigrationPolicy struct {
	// DefaultShare applies to ranks without an explicit share.
	DefaultShare decimal.Decimal
	Shares       map[Rank]decimal.Decimal
}

// FullMigration passes every leftover slot through.
func FullMigration() MigrationPolicy {
	return MigrationPolicy{DefaultShare: decimal.NewFromInt(1)}
}

// Share returns the share applied at rank.
func (p MigrationPolicy) Share(r Rank) decimal.Decimal {
	if s, ok := p.Shares[r]; ok {
		return s
	}
	return p.DefaultShare
}

// Contribution is ceil(leftover × share) for positive inputs, else zero.
func (p MigrationPolicy) Contribution(r Rank, leftover int) int {
	share := p.Share(r)
	if leftover <= 0 || !share.IsPositive() {
		return 0
	}
	return int(decimal.NewFromInt(int64(leftover)).Mul(share).Ceil().IntPart())
}

// Apply converts leftover vacancies into a quota addend.
func (p MigrationPolicy) Apply(leftovers Vacancies) Vacancies {
	out := make(Vacancies, len(leftovers))
	for date, counts := range leftovers {
		for r, n := range counts {
			out.Add(date, r, p.Contribution(r, n))
		}
	}
	return out
}

// Validate rejects shares outside [0, 1].
func (p MigrationPolicy) Validate() error {
	one := decimal.NewFromInt(1)
	check := func(s decimal.Decimal) error {
		if s.IsNegative() || s.GreaterThan(one) {
			return errors.Wrapf(ErrInvalidRules, "migration share %s outside [0, 1]", s)
		}
		return nil
	}
	if err := check(p.DefaultShare); err != nil {
		return err
	}
	for _, s := range p.Shares {
		if err := check(s); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// PLAN - The tracks of one coupled simulation
// =============================================================================

// TrackInput is a track's roster and baseline quota.
type TrackInput struct {
	ID     string
	Roster []Record
	Quota  Quota
}

// Feeder is an auxiliary track whose unmet quota migrates to the primary.
type Feeder struct {
	Track  TrackInput
	Policy MigrationPolicy

	// Absent marks a feeder whose roster is unavailable.
	Absent bool
}

// Plan describes a primary track and its feeders over one horizon.
type Plan struct {
	Primary         TrackInput
	Feeders         []Feeder
	Horizon         generic.Period
	RetirementYears int
	Tracked         []int64
}

// Outcome holds every run of a plan.
type Outcome struct {
	Primary  *Result
	Feeders  map[string]*Result // absent feeders have no entry
	Migrated Vacancies          // addend applied to the primary track
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator runs plans on an Engine.
type Coordinator struct {
	Engine *Engine
	Logger *zap.Logger
}

// NewCoordinator creates a coordinator. A nil logger discards output.
func NewCoordinator(engine *Engine, logger *zap.Logger) *Coordinator {
	return &Coordinator{Engine: engine, Logger: logging.OrNop(logger)}
}

// Run executes the feeders concurrently, combines their leftovers into the
// primary track's addend and runs the primary track.
func (c *Coordinator) Run(ctx context.Context, plan Plan) (*Outcome, error) {
	feeders, err := c.runFeeders(ctx, plan)
	if err != nil {
		return nil, err
	}

	migrated := make(Vacancies)
	outcome := &Outcome{Feeders: make(map[string]*Result), Migrated: migrated}
	for i, f := range plan.Feeders {
		res := feeders[i]
		if res == nil {
			continue
		}
		outcome.Feeders[f.Track.ID] = res
		migrated.Merge(f.Policy.Apply(res.Leftovers))
	}

	c.Logger.Info("vacancies migrated",
		zap.String(logging.FieldTrack, plan.Primary.ID),
		zap.Int(logging.FieldFeeders, len(outcome.Feeders)),
		zap.Int(logging.FieldSlots, totalSlots(migrated)),
	)

	primary, err := c.Engine.Run(Input{
		Track:           plan.Primary.ID,
		Roster:          plan.Primary.Roster,
		Quota:           plan.Primary.Quota,
		Horizon:         plan.Horizon,
		RetirementYears: plan.RetirementYears,
		Tracked:         plan.Tracked,
		Migrated:        migrated,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "primary track %s", plan.Primary.ID)
	}
	outcome.Primary = primary
	return outcome, nil
}

// runFeeders returns one result per feeder, nil for absent ones. It returns
// only after every feeder run has finished.
func (c *Coordinator) runFeeders(ctx context.Context, plan Plan) ([]*Result, error) {
	results := make([]*Result, len(plan.Feeders))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range plan.Feeders {
		if f.Absent {
			c.Logger.Info("feeder roster unavailable, no vacancies migrate from it",
				zap.String(logging.FieldTrack, f.Track.ID))
			continue
		}
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.Engine.Run(Input{
				Track:           f.Track.ID,
				Roster:          f.Track.Roster,
				Quota:           f.Track.Quota,
				Horizon:         plan.Horizon,
				RetirementYears: plan.RetirementYears,
			})
			if err != nil {
				return errors.Wrapf(err, "feeder track %s", f.Track.ID)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func totalSlots(v Vacancies) int {
	total := 0
	for _, counts := range v {
		total += counts.Total()
	}
	return total
}
