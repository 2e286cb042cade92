package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

func sgsCodeFromPath(t *testing.T, path string) int {
	t.Helper()
	const prefix = "/dados/serie/bcdata.sgs."
	require.True(t, strings.HasPrefix(path, prefix), "unexpected path %q", path)
	code, err := strconv.Atoi(strings.SplitN(strings.TrimPrefix(path, prefix), "/", 2)[0])
	require.NoError(t, err)
	return code
}

// TestNPLCatalog tests the series catalog layout
func TestNPLCatalog(t *testing.T) {
	locations := append(append([]string{}, allStates...), regionOrder...)
	seen := make(map[int]string)
	for _, location := range locations {
		for _, mode := range []string{ModeTotal, ModePJ, ModePF} {
			code, err := nplCode(location, mode)
			require.NoError(t, err, "%s/%s", location, mode)
			prev, dup := seen[code]
			require.False(t, dup, "code %d shared by %s and %s/%s", code, prev, location, mode)
			seen[code] = location + "/" + mode
		}
	}
	assert.Len(t, seen, 96, "27 states and 5 regions, 3 segments each")

	// Spot checks against the catalog blocks.
	code, err := nplCode("SP", ModePF)
	require.NoError(t, err)
	assert.Equal(t, 15934, code)

	code, err = nplCode("RO", ModeTotal)
	require.NoError(t, err)
	assert.Equal(t, 15861, code)

	code, err = nplCode("N", ModeTotal)
	require.NoError(t, err)
	assert.Equal(t, 15942, code)

	code, err = nplCode("CO", ModePF)
	require.NoError(t, err)
	assert.Equal(t, 15956, code)

	_, err = nplCode("XX", ModePF)
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = nplCode("SP", "cooperatives")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// TestDelinquencyLocations tests the catalog view
func TestDelinquencyLocations(t *testing.T) {
	svc := NewDelinquencyService(nil, nil, testLogger(t))

	catalog := svc.Locations(i18n.PT)
	require.Len(t, catalog.Regions, 5)
	require.Len(t, catalog.States, 27)

	assert.Equal(t, "N", catalog.Regions[0].Code)
	assert.Equal(t, "Norte", catalog.Regions[0].Name)
	assert.Equal(t, "#22D3EE", catalog.Regions[0].Color)
	assert.ElementsMatch(t, []string{"AC", "AP", "AM", "PA", "RO", "RR", "TO"}, catalog.Regions[0].States)

	byCode := make(map[string]StateInfo, len(catalog.States))
	for _, st := range catalog.States {
		byCode[st.Code] = st
	}
	assert.Equal(t, "São Paulo", byCode["SP"].Name)
	assert.Equal(t, "SE", byCode["SP"].Region)
	assert.Equal(t, "Distrito Federal", byCode["DF"].Name)
	assert.Equal(t, "CO", byCode["DF"].Region)

	en := svc.Locations(i18n.EN)
	assert.Equal(t, "North", en.Regions[0].Name)
}

// TestDelinquencyMap tests the shaded map build. The Central-West states
// get distinct levels so the region normalizes across a real range; every
// other feed answers a flat 3.0, leaving its region degenerate.
func TestDelinquencyMap(t *testing.T) {
	levels := map[int]float64{
		15941: 6.0, 15914: 6.0, // DF, the region's extreme
		15940: 2.0, 15913: 2.0, // GO, the region's floor
		15939: 4.0, 15912: 4.0, // MT, halfway
	}
	failing := map[int]bool{15938: true, 15911: true} // MS, both segments down

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := sgsCodeFromPath(t, r.URL.Path)
		if failing[code] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		v, ok := levels[code]
		if !ok {
			v = 3.0
		}
		fmt.Fprintf(w, `[{"data": "01/06/2025", "valor": "%.1f"}]`, v)
	}))
	defer srv.Close()

	sink := newProgressRecorder()
	svc := NewDelinquencyService(testClient(t, srv), sink, testLogger(t))

	m, err := svc.Map(context.Background(), i18n.PT, "map-job")
	require.NoError(t, err)
	require.Len(t, m.States, 27)
	require.Len(t, m.Regions, 5)

	byState := make(map[string]StateShade, len(m.States))
	for _, st := range m.States {
		byState[st.State] = st
	}

	df := byState["DF"]
	require.NotNil(t, df.Mean)
	assert.Equal(t, 6.0, *df.Mean)
	assert.Equal(t, 1.0, df.Factor)
	assert.Equal(t, regionColors["CO"].Hex(), df.Fill, "strongest state carries the full base color")

	goias := byState["GO"]
	assert.Equal(t, 0.0, goias.Factor)
	assert.Equal(t, transform.Blend(regionColors["CO"], 0).Hex(), goias.Fill)

	mt := byState["MT"]
	assert.InDelta(t, 0.5, mt.Factor, 1e-9)

	ms := byState["MS"]
	assert.Nil(t, ms.Mean, "both feeds down leaves no level")
	assert.Nil(t, ms.PF)
	assert.Nil(t, ms.PJ)
	assert.Equal(t, 0.5, ms.Factor, "missing level shades neutral")

	sp := byState["SP"]
	assert.Equal(t, 0.5, sp.Factor, "uniform region shades neutral")

	for _, reg := range m.Regions {
		require.NotNil(t, reg.PF, reg.Region)
		assert.Equal(t, 3.0, *reg.PF)
		require.NotNil(t, reg.PJ, reg.Region)
	}

	assert.Equal(t, 32, sink.stepCount(), "one step per state and region")
}

// TestDelinquencyMapNoData tests the all-feeds-down path
func TestDelinquencyMapNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := NewDelinquencyService(testClient(t, srv), nil, testLogger(t))
	_, err := svc.Map(context.Background(), i18n.PT, "map-job")
	assert.ErrorIs(t, err, ErrNoData)
}

// TestDelinquencyRegionSeries tests the per-region chart
func TestDelinquencyRegionSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := sgsCodeFromPath(t, r.URL.Path)
		if code == 15955 { // South
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.True(t, strings.HasPrefix(r.URL.Query().Get("dataInicial"), "01/"),
			"window opens at a month boundary")
		w.Write([]byte(`[
			{"data": "01/04/2025", "valor": "3.1"},
			{"data": "01/05/2025", "valor": "3.2"},
			{"data": "01/06/2025", "valor": ""}
		]`))
	}))
	defer srv.Close()

	svc := NewDelinquencyService(testClient(t, srv), nil, testLogger(t))

	chart, err := svc.RegionSeries(context.Background(), ModePF, i18n.PT)
	require.NoError(t, err)
	assert.Equal(t, "Pessoa Física", chart.Label)
	require.Len(t, chart.Lines, 4, "failing region is skipped")

	var codes []string
	for _, line := range chart.Lines {
		codes = append(codes, line.Region)
	}
	assert.Equal(t, []string{"N", "NE", "CO", "SE"}, codes)

	first := chart.Lines[0]
	assert.Equal(t, "Norte", first.Name)
	assert.Equal(t, "#22D3EE", first.Color)
	assert.Equal(t, []string{"2025-04-01", "2025-05-01"}, first.Series.Dates, "gaps drop from the path")
	assert.Equal(t, []float64{3.1, 3.2}, first.Series.Values)

	_, err = svc.RegionSeries(context.Background(), "households", i18n.PT)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// TestDelinquencyStateDetail tests the state-versus-region drill-down
func TestDelinquencyStateDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := sgsCodeFromPath(t, r.URL.Path)
		fmt.Fprintf(w, `[{"data": "01/05/2025", "valor": "%d"}]`, code%100)
	}))
	defer srv.Close()

	svc := NewDelinquencyService(testClient(t, srv), nil, testLogger(t))

	detail, err := svc.StateDetail(context.Background(), "SP", i18n.PT)
	require.NoError(t, err)
	assert.Equal(t, "São Paulo", detail.Name)
	assert.Equal(t, "SE", detail.Region)
	assert.Equal(t, "Sudeste", detail.RegionName)
	assert.Equal(t, "#FB7185", detail.Color)
	require.Len(t, detail.Comparisons, 2)

	pf := detail.Comparisons[0]
	assert.Equal(t, ModePF, pf.Mode)
	assert.Equal(t, "Pessoa Física", pf.Label)
	require.Len(t, pf.State.Values, 1)
	assert.Equal(t, float64(15934%100), pf.State.Values[0])
	require.Len(t, pf.Region.Values, 1)
	assert.Equal(t, float64(15954%100), pf.Region.Values[0])

	pj := detail.Comparisons[1]
	assert.Equal(t, float64(15907%100), pj.State.Values[0])
	assert.Equal(t, float64(15949%100), pj.Region.Values[0])

	_, err = svc.StateDetail(context.Background(), "ZZ", i18n.PT)
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

// TestDelinquencyExportTable tests the long-format download
func TestDelinquencyExportTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := sgsCodeFromPath(t, r.URL.Path)
		if code == 15948 { // Northeast PJ
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[
			{"data": "01/01/2024", "valor": "3.4"},
			{"data": "01/02/2024", "valor": "3.5"}
		]`))
	}))
	defer srv.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

	sink := newProgressRecorder()
	svc := NewDelinquencyService(testClient(t, srv), sink, testLogger(t))

	tb, err := svc.ExportTable(context.Background(), ScopeRegions, start, end, i18n.PT, "dl-job")
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Valor", "Local", "Modo", "NomeLocal"}, tb.Columns())
	assert.Equal(t, 18, tb.Len(), "failing feed drops its two rows")

	d, ok := tb.Get(0, "Date").When()
	require.True(t, ok)
	assert.True(t, d.Equal(start))

	local, _ := tb.Get(0, "Local").Str()
	assert.Equal(t, "N", local)
	mode, _ := tb.Get(0, "Modo").Str()
	assert.Equal(t, "PF", mode)
	name, _ := tb.Get(0, "NomeLocal").Str()
	assert.Equal(t, "Norte", name)

	assert.Equal(t, 10, sink.stepCount(), "five regions, two segments each")
	assert.Equal(t, 18, sink.refreshRows("delinquency"))
}

// TestDelinquencyExportValidation tests the rejection paths
func TestDelinquencyExportValidation(t *testing.T) {
	svc := NewDelinquencyService(nil, nil, testLogger(t))
	now := time.Now()

	_, err := svc.ExportTable(context.Background(), "cities", now.AddDate(-1, 0, 0), now, i18n.PT, "job")
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = svc.ExportTable(context.Background(), ScopeStates, now, now.AddDate(-1, 0, 0), i18n.PT, "job")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

// TestNPLWindow tests the chart window bounds
func TestNPLWindow(t *testing.T) {
	today := time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC)
	start, end := nplWindow(today)
	assert.Equal(t, time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, today, end)
}

// TestPairMean tests the map level averaging
func TestPairMean(t *testing.T) {
	pf, pj := 4.0, 6.0

	m := pairMean(latestPair{pf: &pf, pj: &pj})
	require.NotNil(t, m)
	assert.Equal(t, 5.0, *m)

	m = pairMean(latestPair{pf: &pf})
	require.NotNil(t, m)
	assert.Equal(t, 4.0, *m)

	assert.Nil(t, pairMean(latestPair{}))
}
