package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bcbradar/internal/i18n"
	"bcbradar/internal/services"
	"bcbradar/internal/transform"
)

func TestResolveOptions(t *testing.T) {
	tests := []struct {
		name          string
		module        string
		format        string
		start         string
		end           string
		series        string
		fromQuarter   int
		toQuarter     int
		wantErr       bool
		errorContains string
		check         func(t *testing.T, opts exportOptions)
	}{
		{
			name:   "payments with defaults",
			module: "payments",
			format: "csv",
			check: func(t *testing.T, opts exportOptions) {
				assert.Equal(t, i18n.PT, opts.locale)
				assert.Equal(t, opts.end.AddDate(-1, 0, 0), opts.start)
			},
		},
		{
			name:   "explicit date range",
			module: "rates",
			format: "xlsx",
			start:  "2024-01-01",
			end:    "2024-06-30",
			check: func(t *testing.T, opts exportOptions) {
				assert.Equal(t, "2024-01-01", opts.start.Format("2006-01-02"))
				assert.Equal(t, "2024-06-30", opts.end.Format("2006-01-02"))
			},
		},
		{
			name:          "unknown module",
			module:        "commodities",
			format:        "csv",
			wantErr:       true,
			errorContains: "unknown module",
		},
		{
			name:          "unknown format",
			module:        "payments",
			format:        "pdf",
			wantErr:       true,
			errorContains: "unknown format",
		},
		{
			name:          "series without codes",
			module:        "series",
			format:        "csv",
			wantErr:       true,
			errorContains: "-series",
		},
		{
			name:          "ifdata without quarters",
			module:        "ifdata",
			format:        "csv",
			wantErr:       true,
			errorContains: "-from-quarter",
		},
		{
			name:          "malformed end date",
			module:        "payments",
			format:        "csv",
			end:           "30/06/2024",
			wantErr:       true,
			errorContains: "invalid end date",
		},
		{
			name:          "end before start",
			module:        "rates",
			format:        "csv",
			start:         "2024-06-30",
			end:           "2024-01-01",
			wantErr:       true,
			errorContains: "before start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := resolveOptions(tt.module, tt.format, "exports",
				tt.start, tt.end, tt.series, "", "", "",
				services.ScopeRegions, tt.fromQuarter, tt.toQuarter, "pt")

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, opts)
			}
		})
	}
}

func TestParseSeriesCodes(t *testing.T) {
	t.Run("valid list with spaces", func(t *testing.T) {
		reqs, err := parseSeriesCodes("433, 11 ,1")
		require.NoError(t, err)
		require.Len(t, reqs, 3)
		assert.Equal(t, 433, reqs[0].Code)
		assert.Equal(t, 11, reqs[1].Code)
		assert.Equal(t, 1, reqs[2].Code)
	})

	t.Run("rejects non-numeric code", func(t *testing.T) {
		_, err := parseSeriesCodes("433,ipca")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ipca")
	})

	t.Run("rejects negative code", func(t *testing.T) {
		_, err := parseSeriesCodes("-5")
		require.Error(t, err)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := parseSeriesCodes("  ")
		require.Error(t, err)
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList("  ,  , "))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , b ,"))
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2025, 8, 25, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "rates_20250825_153000.csv", exportFilename("rates", "csv", now))
	assert.Equal(t, "ifdata_20250825_153000.xlsx", exportFilename("ifdata", "xlsx", now))
}

func TestWriteTable(t *testing.T) {
	table := transform.NewTable("Data", "Valor")
	table.Append(transform.Row{
		"Data":  transform.Text("2025-01-31"),
		"Valor": transform.Number(1234.5),
	})
	table.Append(transform.Row{
		"Data":  transform.Text("2025-02-28"),
		"Valor": transform.Number(987.25),
	})

	dir := t.TempDir()

	t.Run("csv uses the brazilian profile", func(t *testing.T) {
		path := filepath.Join(dir, "out.csv")
		require.NoError(t, writeTable(path, "csv", table))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		content := string(data)
		assert.True(t, strings.HasPrefix(content, "\ufeff"))
		assert.Contains(t, content, "Data;Valor")
		assert.Contains(t, content, "1234,5")
	})

	t.Run("xlsx writes a readable workbook", func(t *testing.T) {
		path := filepath.Join(dir, "out.xlsx")
		require.NoError(t, writeTable(path, "xlsx", table))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Dados")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"Data", "Valor"}, rows[0])
	})
}
