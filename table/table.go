// Package table reads, validates, joins and writes the tab-separated tables
// produced and consumed by the rnaseq tools. A Table keeps every cell as the
// text found in the file; numeric columns are converted on request.
package table

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/rnaseq/fileio"
	"github.com/pkg/errors"
)

// Chromosome is the canonical name of the chromosome column. Annotation
// tables in the wild spell it "Chromosome" as well.
const Chromosome = "chromosome"

// Table is an in-memory tab-separated table.
type Table struct {
	// Path is the file the table was loaded from. It is empty for derived
	// tables.
	Path    string
	Columns []string
	Rows    [][]string

	// lines[i] is the 1-based line number of Rows[i] in Path, or 0.
	lines []int
	index map[string]int
}

// New creates a table with the given columns and rows. The slices are owned
// by the table afterwards.
func New(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
}

// CanonicalColumn maps a header name to the name used internally.
func CanonicalColumn(name string) string {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, Chromosome) {
		return Chromosome
	}
	return name
}

// Load reads a tab-separated table from path. Lines starting with '#' are
// skipped. If columns is nil, the first remaining line is the header;
// otherwise the file has no header and columns names its fields. Every row
// must have as many fields as there are columns.
func Load(ctx context.Context, path string, columns []string) (t *Table, err error) {
	in, err := fileio.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.LazyQuotes = true
	r.FieldsPerRecord = len(columns)

	t = &Table{Path: path}
	if columns != nil {
		t.Columns = make([]string, len(columns))
		for i, c := range columns {
			t.Columns[i] = CanonicalColumn(c)
		}
	}
	for {
		rec, err := r.Reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ReadError(path, err)
		}
		line, _ := r.Reader.FieldPos(0)
		if t.Columns == nil {
			t.Columns = make([]string, len(rec))
			for i, c := range rec {
				t.Columns[i] = CanonicalColumn(c)
			}
			continue
		}
		t.Rows = append(t.Rows, append([]string(nil), rec...))
		t.lines = append(t.lines, line)
	}
	if t.Columns == nil {
		return nil, E(DataFormat, path, 0, "empty table, no header line")
	}
	t.reindex()
	return t, nil
}

// ReadError converts an error returned by a tsv.Reader over path into a
// Parse error. Tokenizer errors keep the physical line they report; field
// conversion errors carry their own message and no line.
func ReadError(path string, err error) error {
	if pe, ok := errors.Cause(err).(*csv.ParseError); ok {
		return E(Parse, path, pe.Line, "%v", pe.Err)
	}
	return E(Parse, path, 0, "%v", err)
}

// Validate checks that every expected column is present in t. Extra columns
// are allowed.
func Validate(t *Table, expected []string) error {
	var missing []string
	for _, c := range expected {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return E(DataFormat, t.Path, 0, "expected columns not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether t has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

func (t *Table) columnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, E(DataFormat, t.Path, 0, "column %s not found", name)
	}
	return i, nil
}

func (t *Table) line(row int) int {
	if row < len(t.lines) {
		return t.lines[row]
	}
	return 0
}

// StringColumn returns the cells of the named column.
func (t *Table) StringColumn(name string) ([]string, error) {
	c, err := t.columnIndex(name)
	if err != nil {
		return nil, err
	}
	vals := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[c]
	}
	return vals, nil
}

// Int64Column parses the named column as base-10 integers.
func (t *Table) Int64Column(name string) ([]int64, error) {
	c, err := t.columnIndex(name)
	if err != nil {
		return nil, err
	}
	vals := make([]int64, len(t.Rows))
	for i, row := range t.Rows {
		v, err := strconv.ParseInt(strings.TrimSpace(row[c]), 10, 64)
		if err != nil {
			return nil, E(Parse, t.Path, t.line(i), "column %s: %q is not an integer", name, row[c])
		}
		vals[i] = v
	}
	return vals, nil
}

// NonNegative checks that the named integer columns hold no negative values.
func (t *Table) NonNegative(names ...string) error {
	for _, name := range names {
		vals, err := t.Int64Column(name)
		if err != nil {
			return err
		}
		for i, v := range vals {
			if v < 0 {
				return E(Parse, t.Path, t.line(i), "column %s: negative count %d", name, v)
			}
		}
	}
	return nil
}

// AddColumn appends a column. vals must have one entry per row.
func (t *Table) AddColumn(name string, vals []string) {
	if len(vals) != len(t.Rows) {
		panic(name)
	}
	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], vals[i])
	}
	t.reindex()
}

// Slice returns a table holding rows [i, j) of t. The rows are shared.
func (t *Table) Slice(i, j int) *Table {
	s := &Table{Path: t.Path, Columns: t.Columns, Rows: t.Rows[i:j]}
	if len(t.lines) >= j {
		s.lines = t.lines[i:j]
	}
	s.reindex()
	return s
}

// Project returns a table holding only the named columns, in that order.
func Project(t *Table, columns []string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		var err error
		if idx[i], err = t.columnIndex(c); err != nil {
			return nil, err
		}
	}
	rows := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]string, len(idx))
		for i, c := range idx {
			out[i] = row[c]
		}
		rows[r] = out
	}
	return New(append([]string(nil), columns...), rows), nil
}

// Concat stacks tables vertically. The result has the union of the input
// columns, in order of first appearance; cells for columns a table lacks
// are empty.
func Concat(tables ...*Table) *Table {
	var columns []string
	seen := map[string]int{}
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := seen[c]; !ok {
				seen[c] = len(columns)
				columns = append(columns, c)
			}
		}
	}
	var rows [][]string
	for _, t := range tables {
		for _, row := range t.Rows {
			out := make([]string, len(columns))
			for i, c := range t.Columns {
				out[seen[c]] = row[i]
			}
			rows = append(rows, out)
		}
	}
	return New(columns, rows)
}

// InnerJoin joins left and right on equal values of column on. Rows follow
// the order of left; a key matching several right rows yields one row per
// match, in right order. The result holds the columns of left followed by
// those of right except on. A non-key column name present on both sides is
// suffixed with "_x" (left) and "_y" (right).
func InnerJoin(left, right *Table, on string) (*Table, error) {
	lk, err := left.columnIndex(on)
	if err != nil {
		return nil, err
	}
	rk, err := right.columnIndex(on)
	if err != nil {
		return nil, err
	}
	var columns []string
	for i, c := range left.Columns {
		if i != lk && right.HasColumn(c) {
			c += "_x"
		}
		columns = append(columns, c)
	}
	var rightCols []int
	for i, c := range right.Columns {
		if i == rk {
			continue
		}
		if left.HasColumn(c) {
			c += "_y"
		}
		columns = append(columns, c)
		rightCols = append(rightCols, i)
	}

	byKey := make(map[string][]int, len(right.Rows))
	for i, row := range right.Rows {
		byKey[row[rk]] = append(byKey[row[rk]], i)
	}
	var rows [][]string
	for _, lrow := range left.Rows {
		for _, ri := range byKey[lrow[lk]] {
			row := make([]string, 0, len(columns))
			row = append(row, lrow...)
			for _, c := range rightCols {
				row = append(row, right.Rows[ri][c])
			}
			rows = append(rows, row)
		}
	}
	return New(columns, rows), nil
}

// Write writes t to w as a header line followed by one line per row.
func Write(w io.Writer, t *Table) error {
	out := tsv.NewWriter(w)
	for _, c := range t.Columns {
		out.WriteString(c)
	}
	if err := out.EndLine(); err != nil {
		return err
	}
	for _, row := range t.Rows {
		for _, cell := range row {
			out.WriteString(cell)
		}
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// Save writes t to path, prefixed by the given comment lines. Each comment
// is written as "# <comment>".
func Save(ctx context.Context, path string, t *Table, comments ...string) (err error) {
	out, err := fileio.Create(ctx, path)
	if err != nil {
		return err
	}
	defer out.Finish(ctx, &err)
	e := gerrors.Once{}
	for _, c := range comments {
		_, err := out.WriteString("# " + c + "\n")
		e.Set(err)
	}
	e.Set(Write(out, t))
	return e.Err()
}
