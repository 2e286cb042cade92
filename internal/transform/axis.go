package transform

import (
	"math"
	"sort"
)

// AxisSplit assigns series labels to the primary and secondary Y axes of a
// combined chart. An empty Secondary means a single axis suffices.
type AxisSplit struct {
	Primary   []string `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
}

// Dual reports whether a second axis is in use.
func (a AxisSplit) Dual() bool { return len(a.Secondary) > 0 }

// SplitByMagnitude groups series by order of magnitude so that a combined
// chart can move out-of-scale series to a secondary axis. labels and series
// correspond by index.
//
// Each series is summarized by the mean of the absolute values of its
// non-missing observations. Series with no observations or a zero mean take
// no part in the decision and always render on the primary axis. A split
// happens only when all of the following hold: at least two series have a
// usable mean, the largest mean exceeds five times the smallest, and the
// widest gap between consecutive log10 means is at least 0.7 (roughly a 5x
// jump at the split point). The larger group takes the primary axis; when
// the groups tie in size, the high-magnitude group moves to the secondary
// axis so small-valued series keep the conventional left scale.
func SplitByMagnitude(labels []string, series []Series) AxisSplit {
	if len(labels) < 2 {
		return AxisSplit{Primary: append([]string(nil), labels...)}
	}

	means := make(map[string]float64)
	for i, s := range series {
		var sum float64
		var n int
		for _, p := range s {
			if v, ok := p.Value.Float(); ok {
				sum += math.Abs(v)
				n++
			}
		}
		if n > 0 && sum/float64(n) > 0 {
			means[labels[i]] = sum / float64(n)
		}
	}
	if len(means) < 2 {
		return AxisSplit{Primary: append([]string(nil), labels...)}
	}

	ranked := make([]string, 0, len(means))
	for lbl := range means {
		ranked = append(ranked, lbl)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return means[ranked[i]] < means[ranked[j]]
	})

	if means[ranked[len(ranked)-1]]/means[ranked[0]] <= 5 {
		return AxisSplit{Primary: append([]string(nil), labels...)}
	}

	bestGap := 0.0
	bestSplit := 1
	for i := 1; i < len(ranked); i++ {
		gap := math.Log10(means[ranked[i]]) - math.Log10(means[ranked[i-1]])
		if gap > bestGap {
			bestGap = gap
			bestSplit = i
		}
	}
	if bestGap < 0.7 {
		return AxisSplit{Primary: append([]string(nil), labels...)}
	}

	high := make(map[string]bool, len(ranked)-bestSplit)
	for _, lbl := range ranked[bestSplit:] {
		high[lbl] = true
	}
	lowCount := bestSplit

	// Secondary gets the smaller group; a tie also sends the
	// high-magnitude group there.
	var split AxisSplit
	highSecondary := len(ranked)-bestSplit <= lowCount
	for _, lbl := range labels {
		_, analyzed := means[lbl]
		if analyzed && high[lbl] == highSecondary {
			split.Secondary = append(split.Secondary, lbl)
		} else {
			split.Primary = append(split.Primary, lbl)
		}
	}
	return split
}
