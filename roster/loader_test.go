package roster_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/generic"
	"github.com/warp/career-engine/roster"
)

var hierarchy = career.MustHierarchy("SD 1", "CB", "3º SGT", "2º SGT")

func newLoader() *roster.Loader {
	return roster.NewLoader(hierarchy)
}

func TestRead_LegacyExportColumns(t *testing.T) {
	// GIVEN: A semicolon-separated export with the legacy export column names,
	//        day-first dates, an "x" overflow flag and an extra column
	// WHEN: Loading it
	// THEN: Every field is typed and the extra column is ignored

	csv := "Matricula;Nome;Pos_Hierarquica;Posto_Graduacao;Ultima_promocao;Data_Admissao;Data_Nascimento;Excedente\n" +
		"1001;Silva;1;CB;26/06/2020;01/03/2005;15/08/1985;\n" +
		"1002;Souza;2;3° SGT;29/11/2024;01/03/2006;02/02/1987;x\n"

	got, err := newLoader().Read(strings.NewReader(csv))
	require.NoError(t, err)

	want := []career.Record{
		{
			ID:            1001,
			Rank:          1,
			RankPosition:  1,
			LastPromotion: generic.MustParseDate("2020-06-26"),
			Admission:     generic.MustParseDate("2005-03-01"),
			Birth:         generic.MustParseDate("1985-08-15"),
		},
		{
			ID:            1002,
			Rank:          2,
			RankPosition:  2,
			LastPromotion: generic.MustParseDate("2024-11-29"),
			Admission:     generic.MustParseDate("2006-03-01"),
			Birth:         generic.MustParseDate("1987-02-02"),
			Status:        career.StatusSupernumerary,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_HeaderNormalization(t *testing.T) {
	// GIVEN: Headers with accents, spaces and mixed case, no overflow column
	// WHEN: Loading
	// THEN: Columns resolve and status defaults to regular

	csv := "MATRÍCULA,Pos Hierarquica,posto-graduacao,Última Promoção,data admissão,Data Nascimento\n" +
		"7,3,SD 1,,2020-01-01,\n"

	got, err := newLoader().Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, career.Rank(0), got[0].Rank)
	assert.True(t, got[0].LastPromotion.IsZero(), "empty date means unknown")
	assert.True(t, got[0].Birth.IsZero())
	assert.Equal(t, "2020-01-01", got[0].Admission.String())
	assert.False(t, got[0].Supernumerary())
}

func TestRead_EnglishAliasesAndFloatIDs(t *testing.T) {
	csv := "id,position,rank,last_promotion,admission,birth,supernumerary\n" +
		"42.0,1,CB,2021-06-26,2010-01-01,1990-01-01,no\n"

	got, err := newLoader().Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].ID)
	assert.False(t, got[0].Supernumerary())
}

func TestRead_SkipsBlankRows(t *testing.T) {
	csv := "id,position,rank,last_promotion,admission,birth\n" +
		"1,1,CB,,,\n" +
		",,,,,\n" +
		"2,2,CB,,,\n"

	got, err := newLoader().Read(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRead_Errors(t *testing.T) {
	header := "id,position,rank,last_promotion,admission,birth\n"

	tests := []struct {
		name   string
		csv    string
		want   error
		line   int
		column string
	}{
		{
			name:   "missing column",
			csv:    "id,position,rank,admission,birth\n1,1,CB,,\n",
			want:   roster.ErrMissingColumn,
			line:   1,
			column: "last_promotion",
		},
		{
			name:   "unknown rank",
			csv:    header + "1,1,CB,,,\n2,1,GEN,,,\n",
			want:   career.ErrUnknownRank,
			line:   3,
			column: "rank",
		},
		{
			name:   "missing id",
			csv:    header + ",1,CB,,,\n",
			want:   career.ErrMissingID,
			line:   2,
			column: "id",
		},
		{
			name:   "bad date",
			csv:    header + "1,1,CB,31/02/2020,,\n",
			want:   generic.ErrInvalidDate,
			line:   2,
			column: "last_promotion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newLoader().Read(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var lineErr *roster.LineError
			require.True(t, errors.As(err, &lineErr))
			assert.Equal(t, tt.line, lineErr.Line)
			assert.Equal(t, tt.column, lineErr.Column)
		})
	}
}

func TestRead_Empty(t *testing.T) {
	_, err := newLoader().Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, roster.ErrEmptyRoster))
}

func TestWrite_LoadsBackUnchanged(t *testing.T) {
	records := []career.Record{
		{
			ID:            5,
			Rank:          3,
			RankPosition:  1,
			LastPromotion: generic.MustParseDate("2026-06-26"),
			Admission:     generic.MustParseDate("2001-02-03"),
			Status:        career.StatusSupernumerary,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, roster.Write(&buf, hierarchy, records))

	path := filepath.Join(t.TempDir(), "roster.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := newLoader().LoadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(records, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
