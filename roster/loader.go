/*
Package roster loads personnel rosters from CSV.

PURPOSE:
  Turns a spreadsheet export into []career.Record: column names are
  normalized, dates are parsed day-first, rank labels are resolved against
  the configured hierarchy. The engine itself assumes this contract is met.

COLUMNS (case, accents, spaces and hyphens are ignored):
  id              Matricula        | id
  rank_position   Pos_Hierarquica  | position, rank_position
  rank            Posto_Graduacao  | posto, rank
  last_promotion  Ultima_promocao  | last_promotion
  admission       Data_Admissao    | admission
  birth           Data_Nascimento  | birth
  supernumerary   Excedente        | supernumerary   (optional)

  Extra columns are ignored. Empty date cells mean "unknown". The
  supernumerary flag is set by any non-empty value other than "0", "no",
  "nao" or "false"; legacy exports use "x".

ERRORS:
  Every row error is a *LineError carrying the 1-based CSV line number.

SEE ALSO:
  - career/types.go: Record and Hierarchy.Lookup
  - generic/time.go: accepted date layouts
*/
package roster

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/warp/career-engine/career"
	"github.com/warp/career-engine/generic"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// COLUMNS
// =============================================================================

type column int

const (
	colID column = iota
	colPosition
	colRank
	colLastPromotion
	colAdmission
	colBirth
	colSupernumerary
	numColumns
)

var columnNames = [numColumns]string{
	"id", "rank_position", "rank", "last_promotion", "admission", "birth", "supernumerary",
}

func (c column) String() string { return columnNames[c] }

// aliases maps a normalized header to its column.
var aliases = map[string]column{
	"matricula":       colID,
	"id":              colID,
	"pos_hierarquica": colPosition,
	"posicao":         colPosition,
	"position":        colPosition,
	"rank_position":   colPosition,
	"posto_graduacao": colRank,
	"posto":           colRank,
	"rank":            colRank,
	"ultima_promocao": colLastPromotion,
	"last_promotion":  colLastPromotion,
	"data_admissao":   colAdmission,
	"admission":       colAdmission,
	"data_nascimento": colBirth,
	"birth":           colBirth,
	"excedente":       colSupernumerary,
	"supernumerary":   colSupernumerary,
}

// Header is the canonical header written by Write.
var Header = []string{
	"Matricula", "Pos_Hierarquica", "Posto_Graduacao",
	"Ultima_promocao", "Data_Admissao", "Data_Nascimento", "Excedente",
}

// normalizeHeader lowercases, strips accents and joins words with "_".
func normalizeHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	s = strings.NewReplacer("-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyRoster is returned for a file without a header row.
	ErrEmptyRoster = errors.New("roster has no header row")
)

// LineError locates a problem in the CSV input.
type LineError struct {
	Line   int
	Column string
	Err    error
}

func (e *LineError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d, column %s: %v", e.Line, e.Column, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// =============================================================================
// LOADER
// =============================================================================

// Loader reads rosters for one hierarchy.
type Loader struct {
	hierarchy career.Hierarchy
}

func NewLoader(h career.Hierarchy) *Loader {
	return &Loader{hierarchy: h}
}

// LoadFile reads the roster at path.
func (l *Loader) LoadFile(path string) ([]career.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open roster %s", path)
	}
	defer f.Close()

	records, err := l.Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "roster %s", path)
	}
	return records, nil
}

// Read parses a CSV roster. The delimiter is detected from the header line
// (',' or ';', the latter being common in pt-BR spreadsheet exports).
func (l *Loader) Read(r io.Reader) ([]career.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read roster")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(string(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyRoster
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read roster header")
	}
	index, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var records []career.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &LineError{Line: pe.Line, Err: pe.Err}
			}
			return nil, errors.Wrap(err, "failed to read roster")
		}
		if blank(row) {
			continue
		}
		line, _ := reader.FieldPos(0)
		rec, err := l.parseRow(row, index, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func detectDelimiter(data string) rune {
	first, _, _ := strings.Cut(data, "\n")
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

// mapHeader returns the field index of every column, -1 when absent.
func mapHeader(header []string) ([numColumns]int, error) {
	var index [numColumns]int
	for i := range index {
		index[i] = -1
	}
	for i, name := range header {
		if c, ok := aliases[normalizeHeader(name)]; ok && index[c] < 0 {
			index[c] = i
		}
	}
	for c := colID; c < colSupernumerary; c++ {
		if index[c] < 0 {
			return index, &LineError{Line: 1, Column: c.String(), Err: ErrMissingColumn}
		}
	}
	return index, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (l *Loader) parseRow(row []string, index [numColumns]int, line int) (career.Record, error) {
	cell := func(c column) string {
		i := index[c]
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	fail := func(c column, err error) error {
		return &LineError{Line: line, Column: c.String(), Err: err}
	}

	var rec career.Record

	id, err := parseInt(cell(colID))
	if err != nil {
		return rec, fail(colID, err)
	}
	if id == 0 {
		return rec, fail(colID, career.ErrMissingID)
	}
	rec.ID = id

	pos, err := parseInt(cell(colPosition))
	if err != nil {
		return rec, fail(colPosition, err)
	}
	rec.RankPosition = int(pos)

	label := cell(colRank)
	rank, ok := l.hierarchy.Lookup(label)
	if !ok {
		return rec, fail(colRank, errors.Wrapf(career.ErrUnknownRank, "%q", label))
	}
	rec.Rank = rank

	dates := []struct {
		col column
		dst *generic.TimePoint
	}{
		{colLastPromotion, &rec.LastPromotion},
		{colAdmission, &rec.Admission},
		{colBirth, &rec.Birth},
	}
	for _, d := range dates {
		tp, err := generic.ParseDate(cell(d.col))
		if err != nil {
			return rec, fail(d.col, err)
		}
		*d.dst = tp
	}

	if flagged(cell(colSupernumerary)) {
		rec.Status = career.StatusSupernumerary
	}
	return rec, nil
}

// parseInt accepts integers written as floats ("1234.0"), as spreadsheets
// often export them. Empty cells parse as zero.
func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, errors.Newf("%q is not an integer", s)
	}
	return int64(f), nil
}

func flagged(s string) bool {
	switch strings.ToLower(s) {
	case "", "0", "no", "nao", "não", "false":
		return false
	default:
		return true
	}
}

// =============================================================================
// WRITER
// =============================================================================

// Write renders records as CSV with the canonical header. Dates use the
// day-first display layout so the output loads back unchanged.
func Write(w io.Writer, h career.Hierarchy, records []career.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "failed to write roster header")
	}
	for _, r := range records {
		excedente := ""
		if r.Supernumerary() {
			excedente = "x"
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.RankPosition),
			h.Label(r.Rank),
			r.LastPromotion.Display(),
			r.Admission.Display(),
			r.Birth.Display(),
			excedente,
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "failed to write record %d", r.ID)
		}
	}
	cw.Flush()
	return cw.Error()
}
