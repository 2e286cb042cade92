package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLatestSnapshot tests latest-date filtering
func TestLatestSnapshot(t *testing.T) {
	t.Run("keeps only rows at the maximum date", func(t *testing.T) {
		tb := NewTable("date", "bank", "rate")
		tb.Append(Row{"date": Time(date(2024, time.May, 10)), "bank": Text("A"), "rate": Number(12)})
		tb.Append(Row{"date": Time(date(2024, time.May, 17)), "bank": Text("B"), "rate": Number(11)})
		tb.Append(Row{"date": Time(date(2024, time.May, 17)), "bank": Text("C"), "rate": Number(14)})
		tb.Append(Row{"date": Time(date(2024, time.May, 3)), "bank": Text("D"), "rate": Number(9)})

		got, err := LatestSnapshot(tb, "date")
		require.NoError(t, err)
		require.Equal(t, 2, got.Len())

		banks := make([]string, 0, 2)
		for _, r := range got.Rows() {
			b, _ := r["bank"].Str()
			banks = append(banks, b)
		}
		assert.Equal(t, []string{"B", "C"}, banks, "row order preserved")
	})

	t.Run("rows without a date are ignored", func(t *testing.T) {
		tb := NewTable("date", "bank")
		tb.Append(Row{"bank": Text("undated")})
		tb.Append(Row{"date": Time(date(2024, time.May, 17)), "bank": Text("B")})

		got, err := LatestSnapshot(tb, "date")
		require.NoError(t, err)
		require.Equal(t, 1, got.Len())
	})

	t.Run("empty table is empty, not an error", func(t *testing.T) {
		got, err := LatestSnapshot(NewTable("date", "bank"), "date")
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
		assert.Equal(t, []string{"date", "bank"}, got.Columns())
	})

	t.Run("no dated rows is empty, not an error", func(t *testing.T) {
		tb := NewTable("date", "bank")
		tb.Append(Row{"bank": Text("A")})
		got, err := LatestSnapshot(tb, "date")
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
	})

	t.Run("absent date column is an error", func(t *testing.T) {
		tb := NewTable("bank")
		tb.Append(Row{"bank": Text("A")})

		_, err := LatestSnapshot(tb, "date")
		var missing *MissingColumnError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "date", missing.Column)
	})
}

// TestLatestDate tests maximum date lookup
func TestLatestDate(t *testing.T) {
	tb := NewTable("date")
	_, ok := LatestDate(tb, "date")
	assert.False(t, ok)

	tb.Append(Row{"date": Time(date(2024, time.January, 2))})
	tb.Append(Row{"date": Time(date(2024, time.March, 1))})
	tb.Append(Row{"date": Time(date(2024, time.February, 12))})

	got, ok := LatestDate(tb, "date")
	require.True(t, ok)
	assert.True(t, got.Equal(date(2024, time.March, 1)))
}
