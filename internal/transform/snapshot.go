package transform

import "time"

// LatestSnapshot returns the rows whose date column equals the most recent
// date present in the table, preserving row order. Rows without a valid
// timestamp in the date column are ignored both when locating the maximum
// and in the result.
//
// An empty input table, or one where no row carries a date, yields an empty
// table and no error. Only the date column being absent altogether is an
// error, because that means the upstream payload changed shape.
func LatestSnapshot(t *Table, dateCol string) (*Table, error) {
	if err := requireColumns(t, dateCol); err != nil {
		return nil, err
	}

	var max time.Time
	found := false
	for _, r := range t.Rows() {
		if d, ok := r[dateCol].When(); ok {
			if !found || d.After(max) {
				max = d
				found = true
			}
		}
	}
	if !found {
		return NewTable(t.Columns()...), nil
	}

	return t.Filter(func(r Row) bool {
		d, ok := r[dateCol].When()
		return ok && d.Equal(max)
	}), nil
}

// LatestDate returns the most recent date in a column, if any row has one.
func LatestDate(t *Table, dateCol string) (time.Time, bool) {
	var max time.Time
	found := false
	for _, r := range t.Rows() {
		if d, ok := r[dateCol].When(); ok {
			if !found || d.After(max) {
				max = d
				found = true
			}
		}
	}
	return max, found
}
