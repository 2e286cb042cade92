package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSummarize tests descriptive statistics
func TestSummarize(t *testing.T) {
	t.Run("full summary", func(t *testing.T) {
		s := Series{
			{Date: date(2024, time.January, 1), Value: Number(2)},
			{Date: date(2024, time.January, 2), Value: Number(4)},
			{Date: date(2024, time.January, 3)},
			{Date: date(2024, time.January, 4), Value: Number(4)},
			{Date: date(2024, time.January, 5), Value: Number(4)},
			{Date: date(2024, time.January, 6), Value: Number(5)},
			{Date: date(2024, time.January, 7), Value: Number(5)},
			{Date: date(2024, time.January, 8), Value: Number(7)},
			{Date: date(2024, time.January, 9), Value: Number(9)},
		}
		sum, ok := Summarize(s)
		require.True(t, ok)

		assert.Equal(t, 8, sum.Count)
		assert.Equal(t, 1, sum.Missing)
		assert.True(t, sum.First.Equal(date(2024, time.January, 1)))
		assert.True(t, sum.Last.Equal(date(2024, time.January, 9)))
		assert.InDelta(t, 5.0, sum.Mean, 1e-12)
		assert.InDelta(t, 4.5, sum.Median, 1e-12)
		assert.InDelta(t, 2.138, sum.Std, 1e-3)
		assert.Equal(t, 2.0, sum.Min)
		assert.Equal(t, 9.0, sum.Max)
		assert.InDelta(t, 4.0, sum.Q1, 1e-12)
		assert.InDelta(t, 5.5, sum.Q3, 1e-12)
	})

	t.Run("single value has no deviation", func(t *testing.T) {
		s := Series{{Date: date(2024, time.January, 1), Value: Number(3)}}
		sum, ok := Summarize(s)
		require.True(t, ok)
		assert.Equal(t, 3.0, sum.Median)
		assert.True(t, math.IsNaN(sum.Std))
	})

	t.Run("all missing", func(t *testing.T) {
		s := Series{{Date: date(2024, time.January, 1)}}
		_, ok := Summarize(s)
		assert.False(t, ok)
	})

	t.Run("empty", func(t *testing.T) {
		_, ok := Summarize(nil)
		assert.False(t, ok)
	})
}

// TestCorrelate tests Pearson correlation over shared dates
func TestCorrelate(t *testing.T) {
	days := func(vals ...float64) Series {
		s := make(Series, len(vals))
		for i, v := range vals {
			s[i] = Point{Date: date(2024, time.January, i+1), Value: Number(v)}
		}
		return s
	}

	t.Run("perfect positive", func(t *testing.T) {
		r, ok := Correlate(days(1, 2, 3, 4), days(10, 20, 30, 40))
		require.True(t, ok)
		assert.InDelta(t, 1.0, r, 1e-12)
	})

	t.Run("perfect negative", func(t *testing.T) {
		r, ok := Correlate(days(1, 2, 3), days(6, 4, 2))
		require.True(t, ok)
		assert.InDelta(t, -1.0, r, 1e-12)
	})

	t.Run("only shared dates count", func(t *testing.T) {
		a := days(1, 2, 3)
		b := Series{
			{Date: date(2024, time.January, 2), Value: Number(5)},
			{Date: date(2024, time.January, 3), Value: Number(7)},
			{Date: date(2024, time.February, 1), Value: Number(100)},
		}
		r, ok := Correlate(a, b)
		require.True(t, ok)
		assert.InDelta(t, 1.0, r, 1e-12, "two shared points correlate perfectly")
	})

	t.Run("zero variance is undefined", func(t *testing.T) {
		_, ok := Correlate(days(5, 5, 5), days(1, 2, 3))
		assert.False(t, ok)
	})

	t.Run("too few shared dates", func(t *testing.T) {
		_, ok := Correlate(days(1), days(2))
		assert.False(t, ok)
	})
}

// TestFitLine tests the least-squares trend over shared dates
func TestFitLine(t *testing.T) {
	days := func(vals ...float64) Series {
		s := make(Series, len(vals))
		for i, v := range vals {
			s[i] = Point{Date: date(2024, time.January, i+1), Value: Number(v)}
		}
		return s
	}

	t.Run("exact line", func(t *testing.T) {
		slope, intercept, ok := FitLine(days(10, 20, 30), days(25, 45, 65))
		require.True(t, ok)
		assert.InDelta(t, 2.0, slope, 1e-12)
		assert.InDelta(t, 5.0, intercept, 1e-12)
	})

	t.Run("noisy points fit through the mean", func(t *testing.T) {
		slope, intercept, ok := FitLine(days(1, 2, 3, 4), days(2, 3, 5, 6))
		require.True(t, ok)
		assert.InDelta(t, 1.4, slope, 1e-12)
		assert.InDelta(t, 0.5, intercept, 1e-12)
	})

	t.Run("only shared dates count", func(t *testing.T) {
		x := days(1, 2, 3, 4)
		y := Series{
			{Date: date(2024, time.January, 1), Value: Number(10)},
			{Date: date(2024, time.January, 3), Value: Number(30)},
			{Date: date(2024, time.January, 4), Value: Number(40)},
			{Date: date(2024, time.February, 9), Value: Number(999)},
		}
		slope, intercept, ok := FitLine(x, y)
		require.True(t, ok)
		assert.InDelta(t, 10.0, slope, 1e-12)
		assert.InDelta(t, 0.0, intercept, 1e-12)
	})

	t.Run("two shared points are not a trend", func(t *testing.T) {
		_, _, ok := FitLine(days(1, 2), days(3, 4))
		assert.False(t, ok)
	})

	t.Run("zero x variance is undefined", func(t *testing.T) {
		_, _, ok := FitLine(days(5, 5, 5), days(1, 2, 3))
		assert.False(t, ok)
	})
}

// TestGroupMedian tests per-date median reduction
func TestGroupMedian(t *testing.T) {
	tb := NewTable("date", "rate")
	d1, d2 := date(2024, time.March, 1), date(2024, time.March, 8)
	tb.Append(Row{"date": Time(d2), "rate": Number(30)})
	tb.Append(Row{"date": Time(d1), "rate": Number(10)})
	tb.Append(Row{"date": Time(d1), "rate": Number(20)})
	tb.Append(Row{"date": Time(d1), "rate": Number(90)})
	tb.Append(Row{"date": Time(d2)})
	tb.Append(Row{"rate": Number(999)})

	got, err := GroupMedian(tb, "date", "rate")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Date.Equal(d1), "ascending dates")
	v, _ := got[0].Value.Float()
	assert.Equal(t, 20.0, v)
	v, _ = got[1].Value.Float()
	assert.Equal(t, 30.0, v)

	_, err = GroupMedian(tb, "date", "absent")
	var missing *MissingColumnError
	require.ErrorAs(t, err, &missing)
}
