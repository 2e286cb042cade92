package transform

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Registry maps entity codes to their display names. It doubles as the
// universe filter: rows whose code is not registered are dropped before any
// aggregation.
type Registry map[string]string

// FilterRegistered keeps the rows whose code column matches a registry
// entry. Rows with a missing or non-text code are dropped.
func FilterRegistered(t *Table, codeCol string, reg Registry) (*Table, error) {
	if err := requireColumns(t, codeCol); err != nil {
		return nil, err
	}
	return t.Filter(func(r Row) bool {
		code, ok := r[codeCol].Str()
		if !ok {
			return false
		}
		_, registered := reg[code]
		return registered
	}), nil
}

// ScaleWhere multiplies the value column by factor on rows whose key column
// equals keyVal. Used for unit corrections that apply to a single variable
// of a long-format table, before pivoting, so the correction cannot run
// twice on the same figure.
func ScaleWhere(t *Table, keyCol, keyVal, valueCol string, factor float64) error {
	if err := requireColumns(t, keyCol, valueCol); err != nil {
		return err
	}
	for _, r := range t.Rows() {
		key, ok := r[keyCol].Str()
		if !ok || key != keyVal {
			continue
		}
		if v, ok := r[valueCol].Float(); ok {
			r[valueCol] = Number(v * factor)
		}
	}
	return nil
}

// Pivot spreads a long-format table into one wide row per index key, with
// one column per recognized key in the given order. Keys outside recognized
// are dropped. When an index/key pair occurs more than once, the first
// non-missing value wins. Output rows are ordered by ascending index key.
func Pivot(t *Table, indexCol, keyCol, valueCol string, recognized []string) (*Table, error) {
	if err := requireColumns(t, indexCol, keyCol, valueCol); err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(recognized))
	for _, k := range recognized {
		keep[k] = true
	}

	wide := make(map[string]Row)
	order := make([]string, 0)
	for _, r := range t.Rows() {
		idx, ok := r[indexCol].Str()
		if !ok {
			continue
		}
		key, ok := r[keyCol].Str()
		if !ok || !keep[key] {
			continue
		}
		row, seen := wide[idx]
		if !seen {
			row = Row{indexCol: Text(idx)}
			wide[idx] = row
			order = append(order, idx)
		}
		if row[key].IsMissing() && !r[valueCol].IsMissing() {
			row[key] = r[valueCol]
		}
	}
	sort.Strings(order)

	out := NewTable(append([]string{indexCol}, recognized...)...)
	for _, idx := range order {
		out.Append(wide[idx])
	}
	return out, nil
}

// DeriveRatio fills outCol with round(|numerator| / denominator * 100, 2)
// for every row. The result stays missing when either operand is missing or
// the denominator is zero; an operand column absent from the table leaves
// the whole output column missing. Existing outCol values are overwritten.
func DeriveRatio(t *Table, numCol, denCol, outCol string) {
	t.AddColumn(outCol)
	for _, r := range t.Rows() {
		delete(r, outCol)
		num, okN := r[numCol].Float()
		den, okD := r[denCol].Float()
		if !okN || !okD || den == 0 {
			continue
		}
		r[outCol] = Number(math.Round(math.Abs(num)/den*100*100) / 100)
	}
}

// AttachNames left-joins registry display names onto the code column,
// writing them to outCol. Codes without a registry entry keep a missing
// name.
func AttachNames(t *Table, codeCol string, reg Registry, outCol string) error {
	if err := requireColumns(t, codeCol); err != nil {
		return err
	}
	t.AddColumn(outCol)
	for _, r := range t.Rows() {
		code, ok := r[codeCol].Str()
		if !ok {
			continue
		}
		if name, found := reg[code]; found {
			r[outCol] = Text(name)
		}
	}
	return nil
}

var (
	suffixMu  sync.Mutex
	suffixRes = make(map[string]*regexp.Regexp)
)

// StripSuffix removes a classification marker like " - PRUDENCIAL" or
// " – PRUDENCIAL" from a display name and trims the result. Joins always run
// on the raw name; stripping is presentation only.
func StripSuffix(name, suffix string) string {
	if suffix == "" {
		return strings.TrimSpace(name)
	}
	suffixMu.Lock()
	re, ok := suffixRes[suffix]
	if !ok {
		re = regexp.MustCompile(`\s*[-–]\s*` + regexp.QuoteMeta(suffix))
		suffixRes[suffix] = re
	}
	suffixMu.Unlock()
	return strings.TrimSpace(re.ReplaceAllString(name, ""))
}
