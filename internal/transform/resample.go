package transform

import (
	"sort"
	"time"
)

// Freq is a resampling frequency.
type Freq int

const (
	// FreqMonthly buckets observations by calendar month, labeled at the
	// last day of the month.
	FreqMonthly Freq = iota
	// FreqAnnual buckets observations by calendar year, labeled December 31.
	FreqAnnual
)

// String returns the string representation of the frequency
func (f Freq) String() string {
	switch f {
	case FreqMonthly:
		return "monthly"
	case FreqAnnual:
		return "annual"
	default:
		return "unknown"
	}
}

func (f Freq) label(t time.Time) time.Time {
	if f == FreqAnnual {
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// Resample reduces a series to the mean of its values per calendar bucket.
// Buckets with no observations are omitted rather than emitted as missing
// points, so sparse upstream series stay sparse instead of growing null
// rows. Resampling an already-resampled series returns it unchanged, which
// lets callers normalize mixed-frequency inputs without tracking what was
// already normalized.
func Resample(s Series, f Freq) Series {
	if len(s) == 0 {
		return nil
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, p := range s {
		if v, ok := p.Value.Float(); ok {
			lbl := f.label(p.Date)
			sums[lbl] += v
			counts[lbl]++
		}
	}

	labels := make([]time.Time, 0, len(sums))
	for lbl := range sums {
		labels = append(labels, lbl)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Before(labels[j]) })

	out := make(Series, 0, len(labels))
	for _, lbl := range labels {
		out = append(out, Point{Date: lbl, Value: Number(sums[lbl] / float64(counts[lbl]))})
	}
	return out
}

// AlignFFill joins several series on the union of their dates into a wide
// table with a date column plus one column per label. Each column is
// forward-filled from its own past observations; dates before a series'
// first value stay missing, so a late-starting series never borrows history
// it does not have. labels and series correspond by index and must have
// equal length.
func AlignFFill(dateCol string, labels []string, series []Series) *Table {
	dates := make(map[time.Time]bool)
	for _, s := range series {
		for _, p := range s {
			dates[p.Date] = true
		}
	}
	union := make([]time.Time, 0, len(dates))
	for d := range dates {
		union = append(union, d)
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })

	byDate := make([]map[time.Time]Cell, len(series))
	for i, s := range series {
		byDate[i] = make(map[time.Time]Cell, len(s))
		for _, p := range s {
			byDate[i][p.Date] = p.Value
		}
	}

	out := NewTable(append([]string{dateCol}, labels...)...)
	carry := make([]Cell, len(series))
	for _, d := range union {
		row := Row{dateCol: Time(d)}
		for i := range series {
			if c, ok := byDate[i][d]; ok && !c.IsMissing() {
				carry[i] = c
			}
			if !carry[i].IsMissing() {
				row[labels[i]] = carry[i]
			}
		}
		out.Append(row)
	}
	return out
}
