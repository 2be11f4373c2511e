package generic_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/generic"
)

func semiannual() generic.CycleCalendar {
	return generic.CycleCalendar{Days: []generic.MonthDay{
		{Month: time.November, Day: 29},
		{Month: time.June, Day: 26},
	}}
}

func datesOf(tps []generic.TimePoint) []string {
	out := make([]string, len(tps))
	for i, tp := range tps {
		out[i] = tp.String()
	}
	return out
}

func TestCycleCalendar_Dates(t *testing.T) {
	// GIVEN: Checkpoints on 26/06 and 29/11 (declared out of order)
	// WHEN: Generating dates for a horizon starting after June of its first year
	// THEN: Dates come back sorted, inside the horizon only

	horizon := generic.NewPeriod(
		generic.NewTimePoint(2025, time.July, 15),
		generic.NewTimePoint(2027, time.June, 26),
	)

	got := semiannual().Dates(horizon)

	assert.Equal(t, []string{"2025-11-29", "2026-06-26", "2026-11-29", "2027-06-26"}, datesOf(got))
}

func TestCycleCalendar_BoundsAreInclusive(t *testing.T) {
	day := generic.NewTimePoint(2026, time.June, 26)
	got := semiannual().Dates(generic.NewPeriod(day, day))
	assert.Equal(t, []string{"2026-06-26"}, datesOf(got))
}

func TestCycleCalendar_EmptyHorizon(t *testing.T) {
	horizon := generic.NewPeriod(
		generic.NewTimePoint(2030, time.January, 1),
		generic.NewTimePoint(2026, time.January, 1),
	)
	assert.Nil(t, semiannual().Dates(horizon))
	assert.Nil(t, semiannual().Dates(generic.Period{}))
}

func TestCycleCalendar_DuplicateCheckpoints(t *testing.T) {
	cal := generic.CycleCalendar{Days: []generic.MonthDay{
		{Month: time.June, Day: 26},
		{Month: time.June, Day: 26},
	}}
	horizon := generic.NewPeriod(
		generic.NewTimePoint(2026, time.January, 1),
		generic.NewTimePoint(2027, time.December, 31),
	)
	assert.Equal(t, []string{"2026-06-26", "2027-06-26"}, datesOf(cal.Dates(horizon)))
}

func TestParseMonthDay(t *testing.T) {
	tests := []struct {
		in      string
		want    generic.MonthDay
		wantErr bool
	}{
		{in: "06-26", want: generic.MonthDay{Month: time.June, Day: 26}},
		{in: "26/06", want: generic.MonthDay{Month: time.June, Day: 26}},
		{in: " 11-29 ", want: generic.MonthDay{Month: time.November, Day: 29}},
		{in: "02-29", wantErr: true},
		{in: "13-01", wantErr: true},
		{in: "04-31", wantErr: true},
		{in: "june 26", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseMonthDay(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, generic.ErrInvalidMonthDay))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}

func TestCycleCalendar_Validate(t *testing.T) {
	assert.NoError(t, semiannual().Validate())
	assert.Error(t, generic.CycleCalendar{}.Validate())
	assert.Error(t, generic.CycleCalendar{Days: []generic.MonthDay{{Month: time.February, Day: 29}}}.Validate())
}
