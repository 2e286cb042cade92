package transform

import (
	"math"
	"sort"
	"time"
)

// Summary holds descriptive statistics over the values of a series. Count
// and Missing partition the observations; the remaining fields describe the
// non-missing values only. Std is NaN below two values, matching what the
// formatters render as missing.
type Summary struct {
	Count   int
	Missing int
	First   time.Time
	Last    time.Time
	Mean    float64
	Median  float64
	Std     float64
	Min     float64
	Max     float64
	Q1      float64
	Q3      float64
}

// Summarize computes descriptive statistics for a series. It returns false
// when the series has no values at all.
func Summarize(s Series) (Summary, bool) {
	var sum Summary
	vals := make([]float64, 0, len(s))
	for i, p := range s {
		if i == 0 || p.Date.Before(sum.First) {
			sum.First = p.Date
		}
		if i == 0 || p.Date.After(sum.Last) {
			sum.Last = p.Date
		}
		if v, ok := p.Value.Float(); ok {
			vals = append(vals, v)
		} else {
			sum.Missing++
		}
	}
	sum.Count = len(vals)
	if sum.Count == 0 {
		return Summary{}, false
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	sum.Min = sorted[0]
	sum.Max = sorted[len(sorted)-1]
	sum.Mean = mean(vals)
	sum.Median = quantile(sorted, 0.5)
	sum.Q1 = quantile(sorted, 0.25)
	sum.Q3 = quantile(sorted, 0.75)
	sum.Std = sampleStd(vals, sum.Mean)
	return sum, true
}

// Correlate returns the Pearson correlation of two series over the dates
// where both have a value. It returns false with fewer than two common
// observations or when either side has zero variance.
func Correlate(a, b Series) (float64, bool) {
	bv := make(map[time.Time]float64, len(b))
	for _, p := range b {
		if v, ok := p.Value.Float(); ok {
			bv[p.Date] = v
		}
	}

	var xs, ys []float64
	for _, p := range a {
		if v, ok := p.Value.Float(); ok {
			if w, shared := bv[p.Date]; shared {
				xs = append(xs, v)
				ys = append(ys, w)
			}
		}
	}
	if len(xs) < 2 {
		return 0, false
	}

	mx, my := mean(xs), mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// FitLine returns the least-squares line predicting y from x over the dates
// where both series have a value, the fit a scatter view draws as its trend.
// It returns false with fewer than three shared observations or when x has
// zero variance.
func FitLine(x, y Series) (slope, intercept float64, ok bool) {
	yv := make(map[time.Time]float64, len(y))
	for _, p := range y {
		if v, valid := p.Value.Float(); valid {
			yv[p.Date] = v
		}
	}

	var xs, ys []float64
	for _, p := range x {
		if v, valid := p.Value.Float(); valid {
			if w, shared := yv[p.Date]; shared {
				xs = append(xs, v)
				ys = append(ys, w)
			}
		}
	}
	if len(xs) < 3 {
		return 0, 0, false
	}

	mx, my := mean(xs), mean(ys)
	var cov, vx float64
	for i := range xs {
		dx := xs[i] - mx
		cov += dx * (ys[i] - my)
		vx += dx * dx
	}
	if vx == 0 {
		return 0, 0, false
	}
	slope = cov / vx
	return slope, my - slope*mx, true
}

// GroupMedian reduces a table to one point per date: the median of the
// value column across the rows sharing that date. Rows missing either the
// date or the value are skipped. The result is date-ascending.
func GroupMedian(t *Table, dateCol, valueCol string) (Series, error) {
	if err := requireColumns(t, dateCol, valueCol); err != nil {
		return nil, err
	}

	groups := make(map[time.Time][]float64)
	for _, r := range t.Rows() {
		d, ok := r[dateCol].When()
		if !ok {
			continue
		}
		if v, ok := r[valueCol].Float(); ok {
			groups[d] = append(groups[d], v)
		}
	}

	out := make(Series, 0, len(groups))
	for d, vals := range groups {
		sort.Float64s(vals)
		out = append(out, Point{Date: d, Value: Number(quantile(vals, 0.5))})
	}
	out.Sort()
	return out, nil
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// quantile interpolates linearly between order statistics of an ascending
// slice, the same scheme spreadsheet and dataframe tooling use.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// sampleStd is the n-1 denominator standard deviation. NaN below two values.
func sampleStd(vals []float64, mean float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1))
}
