package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankingFixture() *Table {
	tb := NewTable("code", "name", "value")
	tb.Append(Row{"code": Text("B1"), "name": Text("Banco Um"), "value": Number(500)})
	tb.Append(Row{"code": Text("B2"), "name": Text("Banco Dois"), "value": Number(900)})
	tb.Append(Row{"code": Text("B3"), "name": Text("Banco Três")})
	tb.Append(Row{"code": Text("B4"), "name": Text("Banco Quatro"), "value": Number(900)})
	tb.Append(Row{"code": Text("B5"), "name": Text("Banco Cinco"), "value": Number(100)})
	return tb
}

// TestRank tests bucket construction
func TestRank(t *testing.T) {
	t.Run("descending buckets", func(t *testing.T) {
		r, err := Rank(rankingFixture(), "code", "name", "value", Descending, 3)
		require.NoError(t, err)

		assert.Equal(t, 4, r.Total, "missing values excluded from the denominator")

		require.Len(t, r.Top, 3)
		assert.Equal(t, "B2", r.Top[0].Code, "tie keeps input order")
		assert.Equal(t, "B4", r.Top[1].Code)
		assert.Equal(t, "B1", r.Top[2].Code)

		require.Len(t, r.Bottom, 3)
		assert.Equal(t, "B5", r.Bottom[0].Code)
		assert.Equal(t, 100.0, r.Bottom[0].Value)
	})

	t.Run("ascending inverts both buckets", func(t *testing.T) {
		r, err := Rank(rankingFixture(), "code", "name", "value", Ascending, 2)
		require.NoError(t, err)
		assert.Equal(t, "B5", r.Top[0].Code, "best value for an ascending variable is the smallest")
		assert.Equal(t, "B2", r.Bottom[0].Code)
	})

	t.Run("bucket size clamps to available rows", func(t *testing.T) {
		r, err := Rank(rankingFixture(), "code", "name", "value", Descending, 10)
		require.NoError(t, err)
		assert.Len(t, r.Top, 4)
		assert.Len(t, r.Bottom, 4)
	})

	t.Run("missing name falls back to code", func(t *testing.T) {
		tb := NewTable("code", "name", "value")
		tb.Append(Row{"code": Text("B9"), "value": Number(1)})
		r, err := Rank(tb, "code", "name", "value", Descending, 5)
		require.NoError(t, err)
		require.Len(t, r.Top, 1)
		assert.Equal(t, "B9", r.Top[0].Name)
	})

	t.Run("empty table yields empty buckets", func(t *testing.T) {
		r, err := Rank(NewTable("code", "name", "value"), "code", "name", "value", Descending, 10)
		require.NoError(t, err)
		assert.Empty(t, r.Top)
		assert.Empty(t, r.Bottom)
		assert.Zero(t, r.Total)
	})

	t.Run("absent value column is an error", func(t *testing.T) {
		_, err := Rank(NewTable("code", "name"), "code", "name", "value", Descending, 10)
		var missing *MissingColumnError
		require.ErrorAs(t, err, &missing)
	})

	t.Run("buckets are consistent with positions", func(t *testing.T) {
		tb := rankingFixture()
		r, err := Rank(tb, "code", "name", "value", Descending, 4)
		require.NoError(t, err)

		for i, item := range r.Top {
			rank, of, err := Position(tb, "value", item.Value, Descending)
			require.NoError(t, err)
			assert.Equal(t, r.Total, of)
			assert.LessOrEqual(t, rank, i+1, "an item never ranks worse than its bucket slot")
		}
	})
}

// TestPosition tests the strictly-better-plus-one rank rule
func TestPosition(t *testing.T) {
	tb := rankingFixture()

	tests := []struct {
		name     string
		value    float64
		dir      Direction
		wantRank int
		wantOf   int
	}{
		{"unique best descending", 950, Descending, 1, 4},
		{"tied best shares first place", 900, Descending, 1, 4},
		{"middle descending", 500, Descending, 3, 4},
		{"worst descending", 100, Descending, 4, 4},
		{"best ascending is the smallest", 100, Ascending, 1, 4},
		{"worst ascending", 900, Ascending, 3, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, of, err := Position(tb, "value", tt.value, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRank, rank)
			assert.Equal(t, tt.wantOf, of)
		})
	}

	t.Run("empty table ranks one of zero", func(t *testing.T) {
		rank, of, err := Position(NewTable("value"), "value", 5, Descending)
		require.NoError(t, err)
		assert.Equal(t, 1, rank)
		assert.Zero(t, of)
	})
}
