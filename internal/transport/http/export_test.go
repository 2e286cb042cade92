package http

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "blank", raw: "  ", want: nil},
		{name: "single", raw: "433", want: []string{"433"}},
		{name: "trimmed", raw: " 433 , 189 ", want: []string{"433", "189"}},
		{name: "empty entries dropped", raw: "433,,189,", want: []string{"433", "189"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}

func TestRequestLocale(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/payments/overview", nil)
	assert.Equal(t, i18n.PT, requestLocale(req))

	req = httptest.NewRequest("GET", "/api/payments/overview?lang=en", nil)
	assert.Equal(t, i18n.EN, requestLocale(req))

	req = httptest.NewRequest("GET", "/api/payments/overview?lang=de", nil)
	assert.Equal(t, i18n.PT, requestLocale(req))
}

func TestServeTable_CSVProfile(t *testing.T) {
	table := transform.NewTable("Date", "Valor")
	table.Append(transform.Row{
		"Date":  transform.Time(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)),
		"Valor": transform.Number(1234.5),
	})

	req := httptest.NewRequest("GET", "/api/payments/export", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, serveTable(rec, req, table, "payments", "teste", "csv"))

	body := rec.Body.Bytes()
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, body[:3], "downloads carry a UTF-8 BOM for spreadsheet apps")
	assert.Contains(t, string(body), "Date;Valor")
	assert.Contains(t, string(body), "1234,5")
	assert.Equal(t, `attachment; filename="teste.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, strconv.Itoa(len(body)), rec.Header().Get("Content-Length"))
}

func TestServeTable_UnsupportedFormat(t *testing.T) {
	table := transform.NewTable("Date")

	req := httptest.NewRequest("GET", "/api/payments/export", nil)
	rec := httptest.NewRecorder()

	err := serveTable(rec, req, table, "payments", "teste", "pdf")
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.Bytes(), "nothing is written before the format is known")
}
