package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

// Frequency selector values accepted by the series operations.
const (
	FreqOriginal = "original"
	FreqMonthly  = "monthly"
	FreqAnnual   = "annual"
)

// seriesFetchConcurrency bounds the SGS fan-out per request.
const seriesFetchConcurrency = 4

// catalogItem is one curated SGS series.
type catalogItem struct {
	code        int
	name        string
	description string
	frequency   string
}

// seriesCatalog is the curated catalog shown on the series page, grouped by
// category key. Codes are SGS series numbers; frequency is the native
// publication cadence (D daily, M monthly, T quarterly, A annual).
var seriesCatalog = []struct {
	key   string
	items []catalogItem
}{
	{"sgs_cat_inflation", []catalogItem{
		{433, "IPCA", "IPCA - Variação mensal (%)", "M"},
		{192, "INCC", "INCC-DI - Variação mensal (%)", "M"},
		{189, "IGP-M", "IGP-M - Variação mensal (%)", "M"},
		{190, "IGP-DI", "IGP-DI - Variação mensal (%)", "M"},
	}},
	{"sgs_cat_interest", []catalogItem{
		{432, "Selic Meta", "Taxa Selic Meta (% a.a.)", "D"},
		{11, "Selic Over", "Taxa Selic Over (% a.a.)", "D"},
		{12, "CDI", "CDI Acumulado no mês (%)", "M"},
		{4389, "CDI Anual", "CDI Anualizado (% a.a.)", "D"},
		{226, "TR", "TR - Taxa Referencial (%)", "M"},
	}},
	{"sgs_cat_exchange", []catalogItem{
		{1, "USD Compra", "Taxa de câmbio USD/BRL - Compra", "D"},
		{10813, "USD Venda", "Taxa de câmbio USD/BRL - Venda", "D"},
		{21619, "EUR Compra", "Taxa de câmbio EUR/BRL - Compra", "D"},
		{21620, "EUR Venda", "Taxa de câmbio EUR/BRL - Venda", "D"},
	}},
	{"sgs_cat_activity", []catalogItem{
		{24363, "PIB Mensal", "PIB Mensal - Valores correntes (R$ milhões)", "M"},
		{4380, "PIB Real", "PIB Real - Var. % trimestral", "T"},
		{28183, "IBC-Br", "IBC-Br - Índice de Atividade Econômica", "M"},
	}},
	{"sgs_cat_credit", []catalogItem{
		{20542, "Saldo Crédito", "Saldo de operações de crédito (R$ milhões)", "M"},
		{20714, "Inadimplência PF", "Inadimplência PF - Recursos livres (%)", "M"},
	}},
	{"sgs_cat_fiscal", []catalogItem{
		{4505, "Dívida/PIB", "Dívida líquida do setor público (% PIB)", "M"},
		{4536, "Primário/PIB", "Resultado primário (% PIB) - Acum. 12m", "M"},
	}},
}

// SeriesService serves the SGS time-series explorer: the curated catalog,
// multi-series observation queries with optional resampling, cross-series
// alignment, axis partitioning, correlation and per-series statistics.
type SeriesService struct {
	client *bcb.Client
	logger *slog.Logger
}

// NewSeriesService creates a new series service
func NewSeriesService(client *bcb.Client, logger *slog.Logger) *SeriesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesService{
		client: client,
		logger: logger,
	}
}

// SeriesRequest names one series to fetch. Name is the caller's display
// label; codes outside the curated catalog are allowed.
type SeriesRequest struct {
	Code int    `json:"code" validate:"required,min=1"`
	Name string `json:"name"`
}

// Label is the column identifier used in tables and charts: "433_IPCA"
// when named, the bare code otherwise.
func (r SeriesRequest) Label() string {
	if r.Name != "" {
		return fmt.Sprintf("%d_%s", r.Code, r.Name)
	}
	return strconv.Itoa(r.Code)
}

// SeriesQuery is the common parameter set of the series operations.
type SeriesQuery struct {
	Requests []SeriesRequest `json:"requests" validate:"required,min=1,dive"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Freq     string          `json:"freq"`
}

// CatalogEntry is one curated series in a catalog response
type CatalogEntry struct {
	Code        int    `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
}

// CatalogCategory groups catalog entries under a localized title
type CatalogCategory struct {
	Key     string         `json:"key"`
	Title   string         `json:"title"`
	Entries []CatalogEntry `json:"entries"`
}

// SeriesPayload is one fetched series with chart arrays and its latest
// observation for KPI display. Values are null where the series has a gap.
type SeriesPayload struct {
	Code      int        `json:"code"`
	Label     string     `json:"label"`
	Dates     []string   `json:"dates"`
	Values    []*float64 `json:"values"`
	LastValue string     `json:"last_value"`
	LastDate  string     `json:"last_date"`
}

// SeriesObservations is the observations response
type SeriesObservations struct {
	Freq   string          `json:"freq"`
	Series []SeriesPayload `json:"series"`
}

// AlignedSeries is the forward-filled wide view used by the combined chart.
type AlignedSeries struct {
	Dates   []string              `json:"dates"`
	Labels  []string              `json:"labels"`
	Columns map[string][]*float64 `json:"columns"`
}

// AxisDecision carries the axis partition plus localized axis titles
type AxisDecision struct {
	Dual           bool     `json:"dual"`
	Primary        []string `json:"primary"`
	Secondary      []string `json:"secondary,omitempty"`
	PrimaryTitle   string   `json:"primary_title"`
	SecondaryTitle string   `json:"secondary_title,omitempty"`
}

// CorrelationMatrix is the pairwise Pearson correlation between the
// requested series, with the least-squares line for each ordered pair so a
// scatter view can draw its trend without refitting. Slopes[i][j] and
// Intercepts[i][j] predict series j from series i. Entries are null when a
// pair shares too few dates or lacks variance.
type CorrelationMatrix struct {
	Labels     []string     `json:"labels"`
	Matrix     [][]*float64 `json:"matrix"`
	Slopes     [][]*float64 `json:"slopes"`
	Intercepts [][]*float64 `json:"intercepts"`
}

// SeriesStatisticRow is the describe row of one series, formatted for
// display so empty series render as the missing placeholder
type SeriesStatisticRow struct {
	Label        string `json:"label"`
	Observations int    `json:"observations"`
	FirstDate    string `json:"first_date"`
	LastDate     string `json:"last_date"`
	Missing      int    `json:"missing"`
	Mean         string `json:"mean"`
	Median       string `json:"median"`
	Std          string `json:"std"`
	Min          string `json:"min"`
	Max          string `json:"max"`
}

// Catalog returns the curated series catalog with localized category titles.
func (s *SeriesService) Catalog(loc i18n.Locale) []CatalogCategory {
	out := make([]CatalogCategory, 0, len(seriesCatalog))
	for _, cat := range seriesCatalog {
		entries := make([]CatalogEntry, 0, len(cat.items))
		for _, it := range cat.items {
			entries = append(entries, CatalogEntry{
				Code:        it.code,
				Name:        it.name,
				Description: it.description,
				Frequency:   it.frequency,
			})
		}
		out = append(out, CatalogCategory{
			Key:     cat.key,
			Title:   i18n.T(cat.key, loc),
			Entries: entries,
		})
	}
	return out
}

// Observations fetches every requested series over the query range,
// resampled to the requested frequency, one payload per series.
func (s *SeriesService) Observations(ctx context.Context, q SeriesQuery) (*SeriesObservations, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	out := &SeriesObservations{Freq: q.Freq, Series: make([]SeriesPayload, 0, len(reqs))}
	for i, r := range reqs {
		p := SeriesPayload{
			Code:      r.Code,
			Label:     r.Label(),
			Dates:     make([]string, 0, len(fetched[i])),
			Values:    make([]*float64, 0, len(fetched[i])),
			LastValue: transform.Missing,
		}
		for _, pt := range fetched[i] {
			p.Dates = append(p.Dates, pt.Date.Format("2006-01-02"))
			p.Values = append(p.Values, floatPtr(pt.Value))
			if v, ok := pt.Value.Float(); ok {
				p.LastValue = transform.FormatSignificant(v, 4)
				p.LastDate = transform.FormatDate(pt.Date)
			}
		}
		out.Series = append(out.Series, p)
	}
	return out, nil
}

// Aligned joins the requested series on the union of their dates with
// forward-fill, the shape the combined chart consumes.
func (s *SeriesService) Aligned(ctx context.Context, q SeriesQuery) (*AlignedSeries, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	labels := requestLabels(reqs)
	t := transform.AlignFFill("Date", labels, fetched)
	out := &AlignedSeries{
		Dates:   make([]string, 0, t.Len()),
		Labels:  labels,
		Columns: make(map[string][]*float64, len(labels)),
	}
	for _, r := range t.Rows() {
		d, _ := r["Date"].When()
		out.Dates = append(out.Dates, d.Format("2006-01-02"))
		for _, label := range labels {
			out.Columns[label] = append(out.Columns[label], floatPtr(r[label]))
		}
	}
	return out, nil
}

// AxisSplit decides whether the requested series need a secondary Y axis
// and which labels land on each side.
func (s *SeriesService) AxisSplit(ctx context.Context, q SeriesQuery, loc i18n.Locale) (*AxisDecision, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	split := transform.SplitByMagnitude(requestLabels(reqs), fetched)
	out := &AxisDecision{
		Dual:         split.Dual(),
		Primary:      split.Primary,
		Secondary:    split.Secondary,
		PrimaryTitle: i18n.T("primary_axis", loc),
	}
	if split.Dual() {
		out.SecondaryTitle = i18n.T("secondary_axis", loc)
	}
	return out, nil
}

// Correlation computes the pairwise Pearson matrix between the requested
// series over their shared dates.
func (s *SeriesService) Correlation(ctx context.Context, q SeriesQuery) (*CorrelationMatrix, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	labels := requestLabels(reqs)
	m := &CorrelationMatrix{
		Labels:     labels,
		Matrix:     make([][]*float64, len(labels)),
		Slopes:     make([][]*float64, len(labels)),
		Intercepts: make([][]*float64, len(labels)),
	}
	one, zero := 1.0, 0.0
	for i := range labels {
		m.Matrix[i] = make([]*float64, len(labels))
		m.Slopes[i] = make([]*float64, len(labels))
		m.Intercepts[i] = make([]*float64, len(labels))
		for j := range labels {
			if i == j {
				m.Matrix[i][j] = &one
				m.Slopes[i][j] = &one
				m.Intercepts[i][j] = &zero
				continue
			}
			if r, ok := transform.Correlate(fetched[i], fetched[j]); ok {
				v := r
				m.Matrix[i][j] = &v
			}
			if slope, intercept, ok := transform.FitLine(fetched[i], fetched[j]); ok {
				a, b := slope, intercept
				m.Slopes[i][j] = &a
				m.Intercepts[i][j] = &b
			}
		}
	}
	return m, nil
}

// Statistics computes the describe table, one row per requested series.
func (s *SeriesService) Statistics(ctx context.Context, q SeriesQuery) ([]SeriesStatisticRow, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	rows := make([]SeriesStatisticRow, 0, len(reqs))
	for i, r := range reqs {
		row := SeriesStatisticRow{
			Label:     r.Label(),
			FirstDate: transform.Missing,
			LastDate:  transform.Missing,
			Mean:      transform.Missing,
			Median:    transform.Missing,
			Std:       transform.Missing,
			Min:       transform.Missing,
			Max:       transform.Missing,
		}
		if sum, ok := transform.Summarize(fetched[i]); ok {
			row.Observations = sum.Count
			row.Missing = sum.Missing
			row.FirstDate = transform.FormatDate(sum.First)
			row.LastDate = transform.FormatDate(sum.Last)
			row.Mean = transform.FormatFixed(sum.Mean, 4)
			row.Median = transform.FormatFixed(sum.Median, 4)
			row.Std = transform.FormatFixed(sum.Std, 4)
			row.Min = transform.FormatFixed(sum.Min, 4)
			row.Max = transform.FormatFixed(sum.Max, 4)
		} else {
			row.Missing = len(fetched[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ExportTable joins the requested series on the union of their dates
// without forward-fill, dates rendered day-first, gaps left empty.
func (s *SeriesService) ExportTable(ctx context.Context, q SeriesQuery, loc i18n.Locale) (*transform.Table, error) {
	reqs, fetched, err := s.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	labels := requestLabels(reqs)
	byDate := make([]map[time.Time]transform.Cell, len(fetched))
	dateSet := make(map[time.Time]bool)
	for i, series := range fetched {
		byDate[i] = make(map[time.Time]transform.Cell, len(series))
		for _, p := range series {
			byDate[i][p.Date] = p.Value
			dateSet[p.Date] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	colDate := i18n.T("col_date", loc)
	out := transform.NewTable(append([]string{colDate}, labels...)...)
	for _, d := range dates {
		row := transform.Row{colDate: transform.Text(transform.FormatDate(d))}
		for i, label := range labels {
			if c, ok := byDate[i][d]; ok {
				row[label] = c
			}
		}
		out.Append(row)
	}
	return out, nil
}

// fetchAll resolves a query into one series per request: validates the
// parameters, drops duplicate codes keeping the first, fans the SGS calls
// out with bounded concurrency and applies the requested resampling. The
// returned requests are the deduplicated set the series correspond to.
func (s *SeriesService) fetchAll(ctx context.Context, q SeriesQuery) ([]SeriesRequest, []transform.Series, error) {
	if len(q.Requests) == 0 {
		return nil, nil, fmt.Errorf("%w: no series requested", ErrInvalidInput)
	}
	if q.End.Before(q.Start) {
		return nil, nil, ErrInvalidPeriod
	}
	var freq transform.Freq
	resample := false
	switch q.Freq {
	case "", FreqOriginal:
	case FreqMonthly:
		freq, resample = transform.FreqMonthly, true
	case FreqAnnual:
		freq, resample = transform.FreqAnnual, true
	default:
		return nil, nil, fmt.Errorf("%w: freq %q", ErrInvalidInput, q.Freq)
	}

	seen := make(map[int]bool, len(q.Requests))
	reqs := make([]SeriesRequest, 0, len(q.Requests))
	for _, r := range q.Requests {
		if seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		reqs = append(reqs, r)
	}

	fetched := make([]transform.Series, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seriesFetchConcurrency)
	for i, r := range reqs {
		g.Go(func() error {
			series, err := s.client.SGSSeries(gctx, r.Code, q.Start, q.End)
			if err != nil {
				// SGS rejects well-formed requests only when the code
				// does not exist.
				if errors.Is(err, bcb.ErrRejected) {
					return fmt.Errorf("%w: %d", ErrUnknownSeries, r.Code)
				}
				return fmt.Errorf("series %d: %w", r.Code, err)
			}
			if resample {
				series = transform.Resample(series, freq)
			}
			fetched[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	s.logger.DebugContext(ctx, "series fetched",
		slog.Int("count", len(reqs)),
		slog.String("freq", q.Freq))
	return reqs, fetched, nil
}

// requestLabels projects a request list into its column labels.
func requestLabels(reqs []SeriesRequest) []string {
	labels := make([]string, len(reqs))
	for i, r := range reqs {
		labels[i] = r.Label()
	}
	return labels
}

// floatPtr converts a cell to a nullable JSON number.
func floatPtr(c transform.Cell) *float64 {
	if v, ok := c.Float(); ok {
		return &v
	}
	return nil
}
