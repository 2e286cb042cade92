package transform

import (
	"fmt"
	"math"
)

// RGB is a 24-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ParseHex parses "#RRGGBB" or "RRGGBB".
func ParseHex(s string) (RGB, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	var c RGB
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return c, nil
}

// MustHex parses a hex color known at compile time.
func MustHex(s string) RGB {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex renders the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// ShadeFactor normalizes a value into [0, 1] over the min-max range of its
// group. A degenerate range (max not above min) or a NaN value yields the
// neutral 0.5.
func ShadeFactor(value, min, max float64) float64 {
	if math.IsNaN(value) || max <= min {
		return 0.5
	}
	return (value - min) / (max - min)
}

// Blend mixes a base color toward white by intensity factor: 1 keeps the
// full base color, 0 the palest tint the 0.3 floor allows. Channels are
// rounded and clamped to [0, 255].
func Blend(base RGB, factor float64) RGB {
	blend := 0.3 + 0.7*factor
	mix := func(ch uint8) uint8 {
		v := math.Round(float64(ch)*blend + 255*(1-blend))
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	return RGB{R: mix(base.R), G: mix(base.G), B: mix(base.B)}
}

// Shade combines ShadeFactor and Blend: the stronger the value within its
// group's range, the closer the result is to the base color.
func Shade(base RGB, value, min, max float64) RGB {
	return Blend(base, ShadeFactor(value, min, max))
}
