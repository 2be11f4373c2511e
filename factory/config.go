/*
Package factory provides YAML/JSON to Go configuration conversion.

PURPOSE:
  Converts a configuration document into career.Rules, per-track quotas and
  migration policies. Rank order, minimum times, the overflow set, cycle
  dates and quota tables are data, not code: they can be changed without
  rebuilding.

FORMAT:
  yaml.v3 decodes both YAML and JSON (JSON is valid YAML), so either works.
  See default.yaml for the full schema with the built-in values:

    ranks: [SD 1, CB, ...]              lowest first
    minimum_years: {SD 1: 5, ...}       rank without entry: never regular
    overflow: {years: 6, ranks: [...]}
    retirement: {age: 63, min_service_years: 30, ...}
    cycle_dates: ["06-26", "11-29"]     MM-DD
    rank_groups: {enlisted: [...], officer: [...]}
    primary: qoa
    tracks:
      - id: qom
        quotas: {SD 1: 999, ...}        rank without entry: unconstrained
        migration:                      present = feeder of the primary
          default_share: "0"
          group_shares: {enlisted: "1", officer: "0.5"}
          shares: {CEL: "0"}            per rank, wins over groups

OVERLAY:
  Load decodes a user file on top of Default(). Scalars and lists (including
  tracks) replace the defaults; maps merge key by key.

USAGE:
  cfg, err := factory.Load("promosim.yaml")
  setup, err := cfg.Build()
  engine, err := career.NewEngine(setup.Rules, logger)

SEE ALSO:
  - career/rules.go: what Build produces
  - cmd/promosim/main.go: `promosim config` prints the effective document
*/
package factory

import (
	_ "embed"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/generic"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// Config is the configuration document.
type Config struct {
	Ranks        []string            `yaml:"ranks" json:"ranks"`
	MinimumYears map[string]int      `yaml:"minimum_years" json:"minimum_years"`
	Overflow     OverflowConfig      `yaml:"overflow" json:"overflow"`
	Retirement   RetirementConfig    `yaml:"retirement" json:"retirement"`
	CycleDates   []string            `yaml:"cycle_dates" json:"cycle_dates"`
	RankGroups   map[string][]string `yaml:"rank_groups,omitempty" json:"rank_groups,omitempty"`
	Primary      string              `yaml:"primary" json:"primary"`
	Tracks       []TrackConfig       `yaml:"tracks" json:"tracks"`
}

type OverflowConfig struct {
	Years int      `yaml:"years" json:"years"`
	Ranks []string `yaml:"ranks" json:"ranks"`
}

type RetirementConfig struct {
	Age                 int `yaml:"age" json:"age"`
	MinServiceYears     int `yaml:"min_service_years" json:"min_service_years"`
	MaxServiceYears     int `yaml:"max_service_years" json:"max_service_years"`
	DefaultServiceYears int `yaml:"default_service_years" json:"default_service_years"`
}

// TrackConfig is one career track (quadro).
type TrackConfig struct {
	ID        string           `yaml:"id" json:"id"`
	Name      string           `yaml:"name" json:"name"`
	Quotas    map[string]int   `yaml:"quotas" json:"quotas"`
	Migration *MigrationConfig `yaml:"migration,omitempty" json:"migration,omitempty"`
}

// MigrationConfig holds decimal shares as strings so "0.5" stays exact.
type MigrationConfig struct {
	DefaultShare string            `yaml:"default_share" json:"default_share"`
	GroupShares  map[string]string `yaml:"group_shares,omitempty" json:"group_shares,omitempty"`
	Shares       map[string]string `yaml:"shares,omitempty" json:"shares,omitempty"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns a fresh copy of the built-in configuration.
func Default() *Config {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(errors.Wrap(err, "built-in configuration"))
	}
	return cfg
}

// Parse decodes a standalone document, without defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	return &cfg, nil
}

// Load decodes the file at path on top of Default(). An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration %s", path)
	}
	if err := cfg.Overlay(data); err != nil {
		return nil, errors.Wrapf(err, "configuration %s", path)
	}
	return cfg, nil
}

// Overlay decodes data on top of c.
func (c *Config) Overlay(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrap(err, "failed to parse configuration")
	}
	return nil
}

// Marshal renders the document as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// =============================================================================
// BUILD - Document to engine types
// =============================================================================

// Setup is a validated, resolved configuration.
type Setup struct {
	Rules   career.Rules
	Primary string
	Tracks  []Track // document order
}

// Track is a resolved TrackConfig.
type Track struct {
	ID    string
	Name  string
	Quota career.Quota

	// Feeder is set for tracks that migrate vacancies to the primary.
	Feeder    bool
	Migration career.MigrationPolicy
}

// Build validates the document and resolves every label.
func (c *Config) Build() (*Setup, error) {
	h, err := career.NewHierarchy(c.Ranks...)
	if err != nil {
		return nil, err
	}
	b := builder{h: h}

	rules := career.Rules{
		Hierarchy:    h,
		MinimumYears: make(map[career.Rank]int, len(c.MinimumYears)),
		Overflow: career.OverflowRule{
			Years: c.Overflow.Years,
			Ranks: make(map[career.Rank]bool, len(c.Overflow.Ranks)),
		},
		Retirement: career.RetirementRule{
			Age:                 c.Retirement.Age,
			MinServiceYears:     c.Retirement.MinServiceYears,
			MaxServiceYears:     c.Retirement.MaxServiceYears,
			DefaultServiceYears: c.Retirement.DefaultServiceYears,
		},
	}
	for label, years := range c.MinimumYears {
		r, err := b.rank(label, "minimum_years")
		if err != nil {
			return nil, err
		}
		rules.MinimumYears[r] = years
	}
	for _, label := range c.Overflow.Ranks {
		r, err := b.rank(label, "overflow.ranks")
		if err != nil {
			return nil, err
		}
		rules.Overflow.Ranks[r] = true
	}
	for _, s := range c.CycleDates {
		md, err := generic.ParseMonthDay(s)
		if err != nil {
			return nil, errors.Wrap(err, "cycle_dates")
		}
		rules.Calendar.Days = append(rules.Calendar.Days, md)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	groups, err := b.groups(c.RankGroups)
	if err != nil {
		return nil, err
	}

	setup := &Setup{Rules: rules, Primary: c.Primary}
	seen := make(map[string]bool, len(c.Tracks))
	for _, tc := range c.Tracks {
		t, err := b.track(tc, groups)
		if err != nil {
			return nil, errors.Wrapf(err, "track %q", tc.ID)
		}
		if seen[t.ID] {
			return nil, errors.Wrapf(career.ErrInvalidRules, "duplicate track %q", t.ID)
		}
		seen[t.ID] = true
		if t.Feeder && t.ID == c.Primary {
			return nil, errors.Wrapf(career.ErrInvalidRules, "primary track %q cannot migrate to itself", t.ID)
		}
		setup.Tracks = append(setup.Tracks, t)
	}
	if c.Primary != "" && !seen[c.Primary] {
		return nil, errors.Wrapf(career.ErrInvalidRules, "primary track %q is not defined", c.Primary)
	}
	return setup, nil
}

type builder struct {
	h career.Hierarchy
}

func (b builder) rank(label, field string) (career.Rank, error) {
	r, ok := b.h.Lookup(label)
	if !ok {
		return career.NoRank, errors.Wrapf(career.ErrUnknownRank, "%s: %q", field, label)
	}
	return r, nil
}

func (b builder) groups(in map[string][]string) (map[string][]career.Rank, error) {
	out := make(map[string][]career.Rank, len(in))
	for name, labels := range in {
		for _, label := range labels {
			r, err := b.rank(label, "rank_groups."+name)
			if err != nil {
				return nil, err
			}
			out[name] = append(out[name], r)
		}
	}
	return out, nil
}

func (b builder) track(tc TrackConfig, groups map[string][]career.Rank) (Track, error) {
	id := strings.TrimSpace(tc.ID)
	if id == "" {
		return Track{}, errors.Wrap(career.ErrInvalidRules, "track without id")
	}
	t := Track{ID: id, Name: tc.Name, Quota: make(career.Quota, len(tc.Quotas))}
	if t.Name == "" {
		t.Name = id
	}
	for label, n := range tc.Quotas {
		r, err := b.rank(label, "quotas")
		if err != nil {
			return Track{}, err
		}
		if n < 0 {
			return Track{}, errors.Wrapf(career.ErrInvalidRules, "negative quota for %s", label)
		}
		t.Quota[r] = n
	}

	if tc.Migration == nil {
		return t, nil
	}
	policy, err := b.migration(*tc.Migration, groups)
	if err != nil {
		return Track{}, err
	}
	t.Feeder = true
	t.Migration = policy
	return t, nil
}

func (b builder) migration(mc MigrationConfig, groups map[string][]career.Rank) (career.MigrationPolicy, error) {
	policy := career.MigrationPolicy{DefaultShare: decimal.NewFromInt(1)}
	if mc.DefaultShare != "" {
		s, err := parseShare(mc.DefaultShare)
		if err != nil {
			return policy, errors.Wrap(err, "default_share")
		}
		policy.DefaultShare = s
	}

	policy.Shares = make(map[career.Rank]decimal.Decimal)
	for name, raw := range mc.GroupShares {
		ranks, ok := groups[name]
		if !ok {
			return policy, errors.Wrapf(career.ErrInvalidRules, "group_shares: unknown rank group %q", name)
		}
		s, err := parseShare(raw)
		if err != nil {
			return policy, errors.Wrapf(err, "group_shares.%s", name)
		}
		for _, r := range ranks {
			policy.Shares[r] = s
		}
	}
	for label, raw := range mc.Shares {
		r, err := b.rank(label, "shares")
		if err != nil {
			return policy, err
		}
		s, err := parseShare(raw)
		if err != nil {
			return policy, errors.Wrapf(err, "shares.%s", label)
		}
		policy.Shares[r] = s
	}
	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

func parseShare(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(career.ErrInvalidRules, "share %q is not a number", s)
	}
	return d, nil
}

// =============================================================================
// SETUP QUERIES
// =============================================================================

// Track returns the track with id.
func (s *Setup) Track(id string) (Track, bool) {
	for _, t := range s.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// Feeders returns the feeder tracks in document order.
func (s *Setup) Feeders() []Track {
	var out []Track
	for _, t := range s.Tracks {
		if t.Feeder {
			out = append(out, t)
		}
	}
	return out
}

// PlanRequest is a simulation request expressed in track ids.
type PlanRequest struct {
	Track           string
	Rosters         map[string][]career.Record // by track id; missing = unavailable
	Horizon         generic.Period
	RetirementYears int
	Tracked         []int64
}

// Plan resolves a request into a career.Plan. Only the primary track takes
// feeders; a feeder without a roster is marked Absent. The second result
// lists the absent feeders.
func (s *Setup) Plan(req PlanRequest) (career.Plan, []string, error) {
	t, ok := s.Track(req.Track)
	if !ok {
		return career.Plan{}, nil, errors.Wrapf(career.ErrTrackNotFound, "%q", req.Track)
	}
	roster, ok := req.Rosters[t.ID]
	if !ok {
		return career.Plan{}, nil, errors.Wrapf(career.ErrRosterNotFound, "track %q", t.ID)
	}

	plan := career.Plan{
		Primary:         career.TrackInput{ID: t.ID, Roster: roster, Quota: t.Quota},
		Horizon:         req.Horizon,
		RetirementYears: req.RetirementYears,
		Tracked:         req.Tracked,
	}
	if t.ID != s.Primary {
		return plan, nil, nil
	}

	var absent []string
	for _, f := range s.Feeders() {
		feederRoster, ok := req.Rosters[f.ID]
		if !ok {
			absent = append(absent, f.ID)
		}
		plan.Feeders = append(plan.Feeders, career.Feeder{
			Track:  career.TrackInput{ID: f.ID, Roster: feederRoster, Quota: f.Quota},
			Policy: f.Migration,
			Absent: !ok,
		})
	}
	return plan, absent, nil
}
