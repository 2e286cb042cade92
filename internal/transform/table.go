package transform

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// CellKind identifies what a Cell holds.
type CellKind int

const (
	// KindMissing marks an absent value. It is the zero CellKind.
	KindMissing CellKind = iota
	// KindNumber marks a float64 value.
	KindNumber
	// KindText marks a string value.
	KindText
	// KindTime marks a timestamp value.
	KindTime
)

// String returns the string representation of the kind
func (k CellKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// Cell is a single tabular value. The zero value is a missing cell, so rows
// can be indexed for columns they never set and aggregations can treat
// absent and null uniformly.
type Cell struct {
	kind CellKind
	num  float64
	str  string
	when time.Time
}

// Number returns a numeric cell. NaN and infinities collapse to missing so
// they cannot leak into means, rankings or exports.
func Number(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Cell{}
	}
	return Cell{kind: KindNumber, num: v}
}

// Text returns a textual cell. The empty string is still a present value.
func Text(s string) Cell {
	return Cell{kind: KindText, str: s}
}

// Time returns a timestamp cell.
func Time(t time.Time) Cell {
	return Cell{kind: KindTime, when: t}
}

// Kind reports what the cell holds.
func (c Cell) Kind() CellKind { return c.kind }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// Float returns the numeric value and whether the cell holds one.
func (c Cell) Float() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// Str returns the textual value and whether the cell holds one.
func (c Cell) Str() (string, bool) {
	if c.kind != KindText {
		return "", false
	}
	return c.str, true
}

// When returns the timestamp value and whether the cell holds one.
func (c Cell) When() (time.Time, bool) {
	if c.kind != KindTime {
		return time.Time{}, false
	}
	return c.when, true
}

// String renders the cell for debugging and plain-text output. Missing
// cells render as the em dash used throughout the report layer.
func (c Cell) String() string {
	switch c.kind {
	case KindNumber:
		if c.num == math.Trunc(c.num) && math.Abs(c.num) < 1e15 {
			return fmt.Sprintf("%.0f", c.num)
		}
		return fmt.Sprintf("%g", c.num)
	case KindText:
		return c.str
	case KindTime:
		return c.when.Format("2006-01-02")
	default:
		return "—"
	}
}

// Row maps column names to cells. Indexing a column the row never set yields
// a missing cell.
type Row map[string]Cell

// Clone returns a copy of the row that can be mutated independently.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered set of named columns over a slice of rows. Column
// order is preserved from construction through pivoting and export; row
// order is preserved by every filter.
type Table struct {
	cols []string
	rows []Row
}

// NewTable creates an empty table with the given column order.
func NewTable(cols ...string) *Table {
	return &Table{cols: append([]string(nil), cols...)}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.cols {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column to the ordering. Adding an existing column is
// a no-op so derivations can run against pre-declared layouts.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.cols = append(t.cols, name)
	}
}

// Append adds a row. Keys outside the declared columns are kept in the row
// but only declared columns participate in ordered iteration and export.
func (t *Table) Append(r Row) {
	t.rows = append(t.rows, r)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Rows returns the underlying row slice for iteration.
func (t *Table) Rows() []Row { return t.rows }

// Get returns the cell at row i, column name.
func (t *Table) Get(i int, name string) Cell {
	return t.rows[i][name]
}

// Set stores a cell at row i, column name, declaring the column if needed.
func (t *Table) Set(i int, name string, c Cell) {
	t.AddColumn(name)
	t.rows[i][name] = c
}

// Clone returns a shallow copy whose row slice can be reordered or trimmed
// without affecting the original. Rows themselves are shared.
func (t *Table) Clone() *Table {
	out := NewTable(t.cols...)
	out.rows = append(out.rows, t.rows...)
	return out
}

// Filter returns a new table holding the rows for which keep returns true,
// preserving row and column order.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := NewTable(t.cols...)
	for _, r := range t.rows {
		if keep(r) {
			out.Append(r)
		}
	}
	return out
}

// SortBy orders rows by a numeric column. Missing values sort last
// regardless of direction and ties keep their input order.
func (t *Table) SortBy(col string, dir Direction) {
	sort.SliceStable(t.rows, func(i, j int) bool {
		a, aok := t.rows[i][col].Float()
		b, bok := t.rows[j][col].Float()
		if aok != bok {
			return aok
		}
		if !aok {
			return false
		}
		if dir == Descending {
			return a > b
		}
		return a < b
	})
}

// Head returns a table with at most n leading rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	out := NewTable(t.cols...)
	out.rows = append(out.rows, t.rows[:n]...)
	return out
}

// Floats collects the non-missing numeric values of a column in row order.
func (t *Table) Floats(col string) []float64 {
	vals := make([]float64, 0, len(t.rows))
	for _, r := range t.rows {
		if v, ok := r[col].Float(); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

// Point is one observation of a time series. A missing Value is a recorded
// gap, distinct from the date not appearing at all.
type Point struct {
	Date  time.Time
	Value Cell
}

// Series is a date-ordered sequence of observations.
type Series []Point

// Sort orders the series by date ascending, keeping equal dates stable.
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Date.Before(s[j].Date)
	})
}

// Floats collects the non-missing values in order.
func (s Series) Floats() []float64 {
	vals := make([]float64, 0, len(s))
	for _, p := range s {
		if v, ok := p.Value.Float(); ok {
			vals = append(vals, v)
		}
	}
	return vals
}

// Last returns the most recent non-missing observation.
func (s Series) Last() (Point, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if !s[i].Value.IsMissing() {
			return s[i], true
		}
	}
	return Point{}, false
}

// MissingColumnError reports that a structurally required column is absent
// from an upstream table. It is a caller bug or an upstream contract change,
// so it fails the whole operation rather than being skipped per row.
type MissingColumnError struct {
	Column    string
	Available []string
}

// Error implements the error interface
func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q not present (available: %s)",
		e.Column, strings.Join(e.Available, ", "))
}

// requireColumns returns a *MissingColumnError for the first absent column.
func requireColumns(t *Table, cols ...string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return &MissingColumnError{Column: c, Available: t.Columns()}
		}
	}
	return nil
}
