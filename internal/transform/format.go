package transform

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Missing is the placeholder every formatter returns for absent values.
const Missing = "—"

// FormatNumber renders a value in pt-BR notation with magnitude suffixes:
// 1_234_567 → "1,23M", 1_234_567_890 → "1,23B". Values under a thousand use
// the given number of decimals. NaN renders as the missing placeholder.
func FormatNumber(v float64, decimals int) string {
	if math.IsNaN(v) {
		return Missing
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return groupBR(v/1e12, 2) + "T"
	case abs >= 1e9:
		return groupBR(v/1e9, 2) + "B"
	case abs >= 1e6:
		return groupBR(v/1e6, 2) + "M"
	case abs >= 1e3:
		return groupBR(v/1e3, 1) + "K"
	default:
		return groupBR(v, decimals)
	}
}

// FormatBRL renders a monetary value: 37_621_450_000 → "R$ 37,62B".
func FormatBRL(v float64) string {
	if math.IsNaN(v) {
		return Missing
	}
	return "R$ " + FormatNumber(v, 0)
}

// FormatPercent renders a fraction as a signed percentage:
// 0.1234 → "+12,34%". Only strictly positive values carry the plus sign.
func FormatPercent(v float64) string {
	if math.IsNaN(v) {
		return Missing
	}
	sign := ""
	if v > 0 {
		sign = "+"
	}
	return sign + groupBR(v*100, 2) + "%"
}

// FormatFixed renders a plain grouped fixed-point value in pt-BR notation,
// without magnitude suffixes: 1234.5 → "1.234,50" at two decimals.
func FormatFixed(v float64, decimals int) string {
	if math.IsNaN(v) {
		return Missing
	}
	return groupBR(v, decimals)
}

// FormatCurrencyShort renders balance-sheet figures the way ranking tables
// show them: billions as "37,6 bi", millions as "450,2 mi", smaller values
// grouped with no decimals.
func FormatCurrencyShort(v float64) string {
	if math.IsNaN(v) {
		return Missing
	}
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return groupBR(v/1e9, 1) + " bi"
	case abs >= 1e6:
		return groupBR(v/1e6, 1) + " mi"
	default:
		return groupBR(v, 0)
	}
}

// FormatSignificant renders a value to n significant digits with the pt-BR
// decimal comma. Used for KPI headline values whose scale varies by series.
func FormatSignificant(v float64, n int) string {
	if math.IsNaN(v) {
		return Missing
	}
	s := fmt.Sprintf("%.*g", n, v)
	return swapBR(s)
}

// FormatDate renders a date in Brazilian day-first notation.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// groupBR formats v with the given decimals, "." as the thousands separator
// and "," as the decimal separator.
func groupBR(v float64, decimals int) string {
	return swapBR(groupThousands(fmt.Sprintf("%.*f", decimals, v)))
}

// groupThousands inserts "," thousands separators into the integer part of
// a plain fixed-point string, US style; swapBR converts to pt-BR.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte(',')
		}
	}
	b.WriteString(fracPart)
	return b.String()
}

// swapBR converts a US-formatted numeric string to pt-BR notation by
// swapping the roles of "," and ".".
func swapBR(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',':
			b.WriteByte('.')
		case '.':
			b.WriteByte(',')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
