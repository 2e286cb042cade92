package transform

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestFormatNumber tests pt-BR magnitude formatting
func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"trillions", 2_340_000_000_000, 0, "2,34T"},
		{"billions", 1_234_567_890, 0, "1,23B"},
		{"millions", 1_234_567, 0, "1,23M"},
		{"thousands keep one decimal", 1_500, 0, "1,5K"},
		{"small integer", 987, 0, "987"},
		{"small with decimals", 12.345, 2, "12,35"},
		{"negative millions", -2_500_000, 0, "-2,50M"},
		{"zero", 0, 0, "0"},
		{"missing", math.NaN(), 0, "—"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.value, tt.decimals))
		})
	}
}

// TestFormatBRL tests monetary rendering
func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 37,62B", FormatBRL(37_621_450_000))
	assert.Equal(t, "R$ 512", FormatBRL(512))
	assert.Equal(t, "—", FormatBRL(math.NaN()))
}

// TestFormatPercent tests signed percentage rendering
func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+12,34%", FormatPercent(0.1234))
	assert.Equal(t, "-5,00%", FormatPercent(-0.05))
	assert.Equal(t, "0,00%", FormatPercent(0), "zero carries no plus sign")
	assert.Equal(t, "—", FormatPercent(math.NaN()))
}

// TestFormatFixed tests grouped fixed-point rendering
func TestFormatFixed(t *testing.T) {
	assert.Equal(t, "1.234,50", FormatFixed(1234.5, 2))
	assert.Equal(t, "1.234.567,8901", FormatFixed(1234567.8901, 4))
	assert.Equal(t, "-512,30", FormatFixed(-512.3, 2))
	assert.Equal(t, "15,30", FormatFixed(15.3, 2))
	assert.Equal(t, "—", FormatFixed(math.NaN(), 2))
}

// TestFormatCurrencyShort tests ranking-table balance rendering
func TestFormatCurrencyShort(t *testing.T) {
	assert.Equal(t, "37,6 bi", FormatCurrencyShort(37_621_450_000))
	assert.Equal(t, "450,2 mi", FormatCurrencyShort(450_200_000))
	assert.Equal(t, "-1,5 bi", FormatCurrencyShort(-1_500_000_000))
	assert.Equal(t, "987.654", FormatCurrencyShort(987_654))
	assert.Equal(t, "—", FormatCurrencyShort(math.NaN()))
}

// TestFormatSignificant tests KPI headline rendering
func TestFormatSignificant(t *testing.T) {
	assert.Equal(t, "13,65", FormatSignificant(13.6523, 4))
	assert.Equal(t, "0,5", FormatSignificant(0.5, 4))
	assert.Equal(t, "115,2", FormatSignificant(115.23, 4))
	assert.Equal(t, "—", FormatSignificant(math.NaN(), 4))
}

// TestFormatDate tests day-first date rendering
func TestFormatDate(t *testing.T) {
	assert.Equal(t, "03/11/2020", FormatDate(time.Date(2020, time.November, 3, 0, 0, 0, 0, time.UTC)))
}
