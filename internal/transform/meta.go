package transform

import "fmt"

// Direction says which end of a variable's scale leads a ranking.
type Direction int

const (
	// Descending ranks larger values first. This is the default for
	// balance-sheet style variables where bigger means bigger.
	Descending Direction = iota
	// Ascending ranks smaller values first, used for variables where a
	// low value is the favorable one, such as expected-loss ratios.
	Ascending
)

// String returns the string representation of the direction
func (d Direction) String() string {
	switch d {
	case Descending:
		return "desc"
	case Ascending:
		return "asc"
	default:
		return "unknown"
	}
}

// Invert returns the opposite direction.
func (d Direction) Invert() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// Derivation describes a ratio column computed from two source columns as
// round(|numerator| / denominator * 100, 2). Rows where either operand is
// missing or the denominator is zero keep a missing result.
type Derivation struct {
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

// VariableMeta describes how one report variable is displayed and ranked.
// The set of variables each service handles is enumerated at build time and
// validated on startup; there is no inference from names or units.
type VariableMeta struct {
	Unit       string      `json:"unit"`
	Direction  Direction   `json:"direction"`
	Derivation *Derivation `json:"derivation,omitempty"`
}

// ValidateMeta checks a variable metadata map at startup. Every variable
// needs a unit, and a derivation needs both operand columns named. Operands
// refer to pivot columns, which may be intermediate values that are not
// display variables themselves, so they are resolved against the table at
// derivation time rather than against this map.
func ValidateMeta(meta map[string]VariableMeta) error {
	for name, m := range meta {
		if m.Unit == "" {
			return fmt.Errorf("variable %q: empty unit", name)
		}
		if m.Derivation == nil {
			continue
		}
		if m.Derivation.Numerator == "" || m.Derivation.Denominator == "" {
			return fmt.Errorf("variable %q: incomplete derivation", name)
		}
		if m.Derivation.Numerator == name || m.Derivation.Denominator == name {
			return fmt.Errorf("variable %q: derivation references itself", name)
		}
	}
	return nil
}
