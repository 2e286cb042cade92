package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// date builds a UTC midnight timestamp, the canonical form every upstream
// parser produces.
func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestCell tests the cell value model
func TestCell(t *testing.T) {
	t.Run("zero value is missing", func(t *testing.T) {
		var c Cell
		assert.True(t, c.IsMissing())
		assert.Equal(t, KindMissing, c.Kind())
		_, ok := c.Float()
		assert.False(t, ok)
		assert.Equal(t, "—", c.String())
	})

	t.Run("number", func(t *testing.T) {
		c := Number(42.5)
		v, ok := c.Float()
		require.True(t, ok)
		assert.Equal(t, 42.5, v)
		_, ok = c.Str()
		assert.False(t, ok)
	})

	t.Run("NaN and infinities collapse to missing", func(t *testing.T) {
		assert.True(t, Number(math.NaN()).IsMissing())
		assert.True(t, Number(math.Inf(1)).IsMissing())
		assert.True(t, Number(math.Inf(-1)).IsMissing())
	})

	t.Run("empty text is present", func(t *testing.T) {
		c := Text("")
		assert.False(t, c.IsMissing())
		s, ok := c.Str()
		require.True(t, ok)
		assert.Equal(t, "", s)
	})

	t.Run("time", func(t *testing.T) {
		d := date(2024, time.March, 31)
		c := Time(d)
		got, ok := c.When()
		require.True(t, ok)
		assert.True(t, got.Equal(d))
		assert.Equal(t, "2024-03-31", c.String())
	})
}

// TestTable tests table construction, filtering and ordering
func TestTable(t *testing.T) {
	build := func() *Table {
		tb := NewTable("code", "value")
		tb.Append(Row{"code": Text("A"), "value": Number(3)})
		tb.Append(Row{"code": Text("B"), "value": Number(1)})
		tb.Append(Row{"code": Text("C")})
		tb.Append(Row{"code": Text("D"), "value": Number(2)})
		return tb
	}

	t.Run("columns and rows", func(t *testing.T) {
		tb := build()
		assert.Equal(t, []string{"code", "value"}, tb.Columns())
		assert.Equal(t, 4, tb.Len())
		assert.True(t, tb.HasColumn("value"))
		assert.False(t, tb.HasColumn("name"))
		assert.True(t, tb.Get(2, "value").IsMissing())
	})

	t.Run("filter preserves order", func(t *testing.T) {
		tb := build().Filter(func(r Row) bool {
			_, ok := r["value"].Float()
			return ok
		})
		require.Equal(t, 3, tb.Len())
		codes := make([]string, 0, 3)
		for _, r := range tb.Rows() {
			c, _ := r["code"].Str()
			codes = append(codes, c)
		}
		assert.Equal(t, []string{"A", "B", "D"}, codes)
	})

	t.Run("sort missing last", func(t *testing.T) {
		for _, dir := range []Direction{Descending, Ascending} {
			tb := build()
			tb.SortBy("value", dir)
			last, _ := tb.Row(tb.Len() - 1)["code"].Str()
			assert.Equal(t, "C", last, "missing row sorts last for %v", dir)
		}
	})

	t.Run("sort descending", func(t *testing.T) {
		tb := build()
		tb.SortBy("value", Descending)
		assert.Equal(t, []float64{3, 2, 1}, tb.Floats("value"))
	})

	t.Run("head clamps", func(t *testing.T) {
		tb := build().Head(10)
		assert.Equal(t, 4, tb.Len())
		assert.Equal(t, 2, build().Head(2).Len())
	})

	t.Run("clone is independent", func(t *testing.T) {
		tb := build()
		cl := tb.Clone()
		cl.SortBy("value", Ascending)
		first, _ := tb.Row(0)["code"].Str()
		assert.Equal(t, "A", first)
	})
}

// TestMissingColumnError tests the structural error type
func TestMissingColumnError(t *testing.T) {
	tb := NewTable("a", "b")
	err := requireColumns(tb, "a", "c")
	require.Error(t, err)

	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "c", missing.Column)
	assert.Equal(t, []string{"a", "b"}, missing.Available)
	assert.Contains(t, err.Error(), `"c"`)
}
