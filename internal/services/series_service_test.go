package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
)

// seriesFixtures maps SGS codes to observation payloads. Code 433 carries a
// recorded gap, 777 is an empty series and 999 simulates an outage.
var seriesFixtures = map[int]string{
	433:   `[{"data": "01/01/2024", "valor": "0.5"}, {"data": "01/02/2024", "valor": ""}, {"data": "01/03/2024", "valor": "0.7"}]`,
	1:     `[{"data": "15/01/2024", "valor": "4.90"}, {"data": "01/02/2024", "valor": "5.10"}]`,
	12:    `[{"data": "01/01/2024", "valor": "1.1"}, {"data": "01/02/2024", "valor": "1.3"}]`,
	4380:  `[{"data": "01/01/2024", "valor": "1000"}, {"data": "01/02/2024", "valor": "1100"}]`,
	24363: `[{"data": "01/01/2024", "valor": "2000"}, {"data": "01/02/2024", "valor": "2200"}]`,
	10813: `[{"data": "15/01/2024", "valor": "4.90"}, {"data": "17/01/2024", "valor": "5.00"}, {"data": "01/02/2024", "valor": "5.10"}]`,
	4189:  `[{"data": "01/01/2024", "valor": "10"}, {"data": "01/02/2024", "valor": "20"}, {"data": "01/03/2024", "valor": "30"}]`,
	4390:  `[{"data": "01/01/2024", "valor": "25"}, {"data": "01/02/2024", "valor": "45"}, {"data": "01/03/2024", "valor": "65"}]`,
	777:   `[]`,
}

func seriesServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := seriesFixtures[sgsCodeFromPath(t, r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(body))
	}))
}

func seriesQuery(reqs ...SeriesRequest) SeriesQuery {
	return SeriesQuery{
		Requests: reqs,
		Start:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func fptr(v float64) *float64 { return &v }

// TestSeriesCatalog tests the curated catalog shape and localization
func TestSeriesCatalog(t *testing.T) {
	svc := NewSeriesService(nil, testLogger(t))

	cats := svc.Catalog(i18n.PT)
	require.Len(t, cats, 6)

	assert.Equal(t, "sgs_cat_inflation", cats[0].Key)
	assert.Equal(t, "Inflação", cats[0].Title)
	require.NotEmpty(t, cats[0].Entries)
	assert.Equal(t, 433, cats[0].Entries[0].Code)
	assert.Equal(t, "IPCA", cats[0].Entries[0].Name)
	assert.Equal(t, "M", cats[0].Entries[0].Frequency)

	en := svc.Catalog(i18n.EN)
	assert.Equal(t, "Inflation", en[0].Title)
}

func TestSeriesRequestLabel(t *testing.T) {
	assert.Equal(t, "433_IPCA", SeriesRequest{Code: 433, Name: "IPCA"}.Label())
	assert.Equal(t, "1", SeriesRequest{Code: 1}.Label())
}

// TestSeriesObservations tests fetch, dedupe and the per-series payload
func TestSeriesObservations(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(
		SeriesRequest{Code: 433, Name: "IPCA"},
		SeriesRequest{Code: 433, Name: "dup"},
		SeriesRequest{Code: 1},
	)

	out, err := svc.Observations(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, out.Series, 2, "duplicate code dropped")

	ipca := out.Series[0]
	assert.Equal(t, 433, ipca.Code)
	assert.Equal(t, "433_IPCA", ipca.Label)
	assert.Equal(t, []string{"2024-01-01", "2024-02-01", "2024-03-01"}, ipca.Dates)
	assert.Equal(t, []*float64{fptr(0.5), nil, fptr(0.7)}, ipca.Values)
	assert.Equal(t, "0,7", ipca.LastValue)
	assert.Equal(t, "01/03/2024", ipca.LastDate)

	usd := out.Series[1]
	assert.Equal(t, "1", usd.Label)
	assert.Equal(t, "5,1", usd.LastValue)
	assert.Equal(t, "01/02/2024", usd.LastDate)
}

// TestSeriesObservationsResample tests the frequency normalization paths
func TestSeriesObservationsResample(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))

	q := seriesQuery(SeriesRequest{Code: 10813})
	q.Freq = FreqMonthly
	out, err := svc.Observations(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, FreqMonthly, out.Freq)
	require.Len(t, out.Series, 1)
	assert.Equal(t, []string{"2024-01-31", "2024-02-29"}, out.Series[0].Dates)
	assert.Equal(t, []*float64{fptr(4.95), fptr(5.1)}, out.Series[0].Values)

	q.Freq = FreqAnnual
	out, err = svc.Observations(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-12-31"}, out.Series[0].Dates)
	assert.Equal(t, []*float64{fptr(5.0)}, out.Series[0].Values)
}

// TestSeriesAligned tests the forward-filled union join
func TestSeriesAligned(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(SeriesRequest{Code: 433, Name: "IPCA"}, SeriesRequest{Code: 1})

	out, err := svc.Aligned(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"433_IPCA", "1"}, out.Labels)
	assert.Equal(t, []string{"2024-01-01", "2024-01-15", "2024-02-01", "2024-03-01"}, out.Dates)

	// The February gap in 433 carries January's value forward; code 1 has
	// no history before January 15 so its first slot stays null.
	assert.Equal(t, []*float64{fptr(0.5), fptr(0.5), fptr(0.5), fptr(0.7)}, out.Columns["433_IPCA"])
	assert.Equal(t, []*float64{nil, fptr(4.9), fptr(5.1), fptr(5.1)}, out.Columns["1"])
}

// TestSeriesAxisSplit tests the dual-axis decision
func TestSeriesAxisSplit(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))

	t.Run("magnitude gap splits", func(t *testing.T) {
		q := seriesQuery(SeriesRequest{Code: 433, Name: "IPCA"}, SeriesRequest{Code: 4380})
		out, err := svc.AxisSplit(context.Background(), q, i18n.PT)
		require.NoError(t, err)

		assert.True(t, out.Dual)
		assert.Equal(t, []string{"433_IPCA"}, out.Primary)
		assert.Equal(t, []string{"4380"}, out.Secondary)
		assert.Equal(t, "Eixo Y Primário", out.PrimaryTitle)
		assert.Equal(t, "Eixo Y Secundário", out.SecondaryTitle)
	})

	t.Run("similar scales stay together", func(t *testing.T) {
		q := seriesQuery(SeriesRequest{Code: 433, Name: "IPCA"}, SeriesRequest{Code: 12})
		out, err := svc.AxisSplit(context.Background(), q, i18n.PT)
		require.NoError(t, err)

		assert.False(t, out.Dual)
		assert.Equal(t, []string{"433_IPCA", "12"}, out.Primary)
		assert.Empty(t, out.Secondary)
		assert.Empty(t, out.SecondaryTitle)
	})
}

// TestSeriesCorrelation tests the pairwise matrix
func TestSeriesCorrelation(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(
		SeriesRequest{Code: 4380},
		SeriesRequest{Code: 24363},
		SeriesRequest{Code: 433, Name: "IPCA"},
	)

	out, err := svc.Correlation(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"4380", "24363", "433_IPCA"}, out.Labels)
	require.Len(t, out.Matrix, 3)

	for i := range out.Matrix {
		require.NotNil(t, out.Matrix[i][i])
		assert.Equal(t, 1.0, *out.Matrix[i][i])
	}

	require.NotNil(t, out.Matrix[0][1])
	assert.InDelta(t, 1.0, *out.Matrix[0][1], 1e-9)

	// 433 shares only one dated value with the others.
	assert.Nil(t, out.Matrix[0][2])
	assert.Nil(t, out.Matrix[2][1])

	// The pairs share only two dates, not enough for a trend line, so
	// only the diagonal carries fit coefficients.
	require.Len(t, out.Slopes, 3)
	require.NotNil(t, out.Slopes[0][0])
	assert.Equal(t, 1.0, *out.Slopes[0][0])
	assert.Equal(t, 0.0, *out.Intercepts[0][0])
	assert.Nil(t, out.Slopes[0][1])
	assert.Nil(t, out.Intercepts[0][1])
}

// TestSeriesCorrelationTrend tests the scatter fit attached to the matrix
func TestSeriesCorrelationTrend(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(
		SeriesRequest{Code: 4189},
		SeriesRequest{Code: 4390},
	)

	out, err := svc.Correlation(context.Background(), q)
	require.NoError(t, err)

	// 4390 = 2 x 4189 + 5 on all three shared dates
	require.NotNil(t, out.Matrix[0][1])
	assert.InDelta(t, 1.0, *out.Matrix[0][1], 1e-9)
	require.NotNil(t, out.Slopes[0][1])
	assert.InDelta(t, 2.0, *out.Slopes[0][1], 1e-9)
	assert.InDelta(t, 5.0, *out.Intercepts[0][1], 1e-9)

	// the reverse fit predicts 4189 from 4390
	require.NotNil(t, out.Slopes[1][0])
	assert.InDelta(t, 0.5, *out.Slopes[1][0], 1e-9)
	assert.InDelta(t, -2.5, *out.Intercepts[1][0], 1e-9)
}

// TestSeriesStatistics tests the describe rows including the empty series
func TestSeriesStatistics(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(SeriesRequest{Code: 433, Name: "IPCA"}, SeriesRequest{Code: 777, Name: "Vazio"})

	rows, err := svc.Statistics(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	ipca := rows[0]
	assert.Equal(t, "433_IPCA", ipca.Label)
	assert.Equal(t, 2, ipca.Observations)
	assert.Equal(t, 1, ipca.Missing)
	assert.Equal(t, "01/01/2024", ipca.FirstDate)
	assert.Equal(t, "01/03/2024", ipca.LastDate)
	assert.Equal(t, "0,6000", ipca.Mean)
	assert.Equal(t, "0,6000", ipca.Median)
	assert.Equal(t, "0,1414", ipca.Std)
	assert.Equal(t, "0,5000", ipca.Min)
	assert.Equal(t, "0,7000", ipca.Max)

	empty := rows[1]
	assert.Equal(t, "777_Vazio", empty.Label)
	assert.Equal(t, 0, empty.Observations)
	assert.Equal(t, "—", empty.Mean)
	assert.Equal(t, "—", empty.FirstDate)
}

// TestSeriesExportTable tests the union join without forward fill
func TestSeriesExportTable(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))
	q := seriesQuery(SeriesRequest{Code: 433, Name: "IPCA"}, SeriesRequest{Code: 1})

	out, err := svc.ExportTable(context.Background(), q, i18n.PT)
	require.NoError(t, err)

	assert.Equal(t, []string{"Data", "433_IPCA", "1"}, out.Columns())
	require.Equal(t, 4, out.Len())

	first, _ := out.Get(0, "Data").Str()
	assert.Equal(t, "01/01/2024", first)

	v, ok := out.Get(0, "433_IPCA").Float()
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	// No forward fill: gaps stay empty on both sides of the join.
	assert.True(t, out.Get(1, "433_IPCA").IsMissing())
	assert.True(t, out.Get(2, "433_IPCA").IsMissing())
	assert.True(t, out.Get(0, "1").IsMissing())
	assert.True(t, out.Get(3, "1").IsMissing())
}

// TestSeriesValidation tests the query validation and upstream error paths
func TestSeriesValidation(t *testing.T) {
	srv := seriesServer(t)
	defer srv.Close()

	svc := NewSeriesService(testClient(t, srv), testLogger(t))

	_, err := svc.Observations(context.Background(), seriesQuery())
	assert.ErrorIs(t, err, ErrInvalidInput)

	q := seriesQuery(SeriesRequest{Code: 433})
	q.Start, q.End = q.End, q.Start
	_, err = svc.Observations(context.Background(), q)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	q = seriesQuery(SeriesRequest{Code: 433})
	q.Freq = "weekly"
	_, err = svc.Observations(context.Background(), q)
	assert.ErrorIs(t, err, ErrInvalidInput)

	q = seriesQuery(SeriesRequest{Code: 999})
	_, err = svc.Observations(context.Background(), q)
	require.Error(t, err)
	assert.ErrorIs(t, err, bcb.ErrUnavailable)
	assert.Contains(t, err.Error(), "series 999")
}
