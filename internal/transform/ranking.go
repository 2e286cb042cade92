package transform

// RankedItem is one entity in a ranking bucket.
type RankedItem struct {
	Code  string  `json:"code,omitempty"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Ranking holds the two display buckets for one variable. Top is the head of
// the table sorted in the variable's own direction, Bottom the head of the
// opposite sort, so for an ascending variable Top carries the smallest
// values. Total counts every entity that had a value at all, which is the
// denominator shown next to rank positions.
type Ranking struct {
	Top    []RankedItem `json:"top"`
	Bottom []RankedItem `json:"bottom"`
	Total  int          `json:"total"`
}

// Rank builds top and bottom buckets of size n from a table. Rows with a
// missing value are excluded from the buckets and from Total. Ties keep
// their input row order. codeCol may be empty for tables keyed by name only;
// a missing name falls back to the code.
func Rank(t *Table, codeCol, nameCol, valueCol string, dir Direction, n int) (Ranking, error) {
	if err := requireColumns(t, nameCol, valueCol); err != nil {
		return Ranking{}, err
	}
	if codeCol != "" {
		if err := requireColumns(t, codeCol); err != nil {
			return Ranking{}, err
		}
	}

	valued := t.Filter(func(r Row) bool {
		_, ok := r[valueCol].Float()
		return ok
	})

	bucket := func(d Direction) []RankedItem {
		sorted := valued.Clone()
		sorted.SortBy(valueCol, d)
		head := sorted.Head(n)
		items := make([]RankedItem, 0, head.Len())
		for _, r := range head.Rows() {
			v, _ := r[valueCol].Float()
			item := RankedItem{Value: v}
			if codeCol != "" {
				item.Code, _ = r[codeCol].Str()
			}
			if name, ok := r[nameCol].Str(); ok {
				item.Name = name
			} else {
				item.Name = item.Code
			}
			items = append(items, item)
		}
		return items
	}

	return Ranking{
		Top:    bucket(dir),
		Bottom: bucket(dir.Invert()),
		Total:  valued.Len(),
	}, nil
}

// Position returns the 1-based rank of value v among the non-missing values
// of a column: one plus the count of values strictly better than v under the
// given direction. of is the number of ranked values. Equal values share a
// position, so three entities tied for the best value all rank 1 of n.
func Position(t *Table, valueCol string, v float64, dir Direction) (rank, of int, err error) {
	if err := requireColumns(t, valueCol); err != nil {
		return 0, 0, err
	}
	rank = 1
	for _, r := range t.Rows() {
		x, ok := r[valueCol].Float()
		if !ok {
			continue
		}
		of++
		if (dir == Descending && x > v) || (dir == Ascending && x < v) {
			rank++
		}
	}
	return rank, of, nil
}
