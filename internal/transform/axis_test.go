package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flat builds a series holding the same value every day, so its mean
// magnitude is exactly that value.
func flat(value float64, days int) Series {
	s := make(Series, days)
	for i := range s {
		s[i] = Point{Date: date(2024, time.January, i+1), Value: Number(value)}
	}
	return s
}

// TestSplitByMagnitude tests dual-axis grouping
func TestSplitByMagnitude(t *testing.T) {
	t.Run("out-of-scale series moves to the secondary axis", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"ipca", "incc", "cdi"},
			[]Series{flat(1, 5), flat(1.2, 5), flat(50, 5)},
		)
		assert.True(t, split.Dual())
		assert.Equal(t, []string{"ipca", "incc"}, split.Primary)
		assert.Equal(t, []string{"cdi"}, split.Secondary)
	})

	t.Run("close magnitudes stay on one axis", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"a", "b", "c"},
			[]Series{flat(1, 5), flat(2, 5), flat(3, 5)},
		)
		assert.False(t, split.Dual())
		assert.Equal(t, []string{"a", "b", "c"}, split.Primary)
	})

	t.Run("five-to-one ratio is not enough", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"a", "b"},
			[]Series{flat(1, 5), flat(5, 5)},
		)
		assert.False(t, split.Dual())
	})

	t.Run("equal group sizes send the high group to the secondary axis", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"low", "high"},
			[]Series{flat(1, 5), flat(100, 5)},
		)
		require.True(t, split.Dual())
		assert.Equal(t, []string{"low"}, split.Primary)
		assert.Equal(t, []string{"high"}, split.Secondary)
	})

	t.Run("larger group takes the primary axis", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"small", "big1", "big2", "big3"},
			[]Series{flat(1, 5), flat(100, 5), flat(120, 5), flat(150, 5)},
		)
		require.True(t, split.Dual())
		assert.Equal(t, []string{"big1", "big2", "big3"}, split.Primary)
		assert.Equal(t, []string{"small"}, split.Secondary)
	})

	t.Run("magnitude uses absolute values", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"neg", "pos"},
			[]Series{flat(-100, 5), flat(1, 5)},
		)
		require.True(t, split.Dual())
		assert.Equal(t, []string{"neg"}, split.Secondary)
	})

	t.Run("series without usable values always render primary", func(t *testing.T) {
		empty := Series{{Date: date(2024, time.January, 1)}}
		split := SplitByMagnitude(
			[]string{"gap", "low", "high"},
			[]Series{empty, flat(1, 5), flat(100, 5)},
		)
		require.True(t, split.Dual())
		assert.Equal(t, []string{"gap", "low"}, split.Primary)
		assert.Equal(t, []string{"high"}, split.Secondary)
	})

	t.Run("fewer than two usable series never split", func(t *testing.T) {
		split := SplitByMagnitude(
			[]string{"only", "zero"},
			[]Series{flat(10, 5), flat(0, 5)},
		)
		assert.False(t, split.Dual())
		assert.Equal(t, []string{"only", "zero"}, split.Primary)
	})

	t.Run("single label", func(t *testing.T) {
		split := SplitByMagnitude([]string{"solo"}, []Series{flat(42, 5)})
		assert.False(t, split.Dual())
		assert.Equal(t, []string{"solo"}, split.Primary)
	})
}
