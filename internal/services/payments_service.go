package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

// PixEpoch is the first day the SPI settled Pix transactions. Fetches
// never reach before it.
var PixEpoch = time.Date(2020, time.November, 3, 0, 0, 0, 0, time.UTC)

// PaymentsService serves the SPI/Pix settlement dashboard: headline KPIs,
// the daily settlement series, period comparisons and descriptive
// statistics over the full history.
type PaymentsService struct {
	client *bcb.Client
	logger *slog.Logger
}

// NewPaymentsService creates a new payments service
func NewPaymentsService(client *bcb.Client, logger *slog.Logger) *PaymentsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentsService{
		client: client,
		logger: logger,
	}
}

// Period is a closed date interval.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PaymentsKPI is one headline card
type PaymentsKPI struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// PaymentsOverview aggregates the full settlement history into KPI cards
type PaymentsOverview struct {
	From  string        `json:"from"`
	To    string        `json:"to"`
	Days  int           `json:"days"`
	Cards []PaymentsKPI `json:"cards"`
}

// PaymentsSeries carries the daily settlement history as parallel arrays
// ready for charting
type PaymentsSeries struct {
	Dates    []string  `json:"dates"`
	Quantity []float64 `json:"quantity"`
	Volume   []float64 `json:"volume"`
	Average  []float64 `json:"average"`
}

// ComparisonRow compares one daily-mean metric between two periods.
// Delta is (B-A)/A and omitted when the period A mean is zero.
type ComparisonRow struct {
	Metric       string   `json:"metric"`
	PeriodA      float64  `json:"period_a"`
	PeriodB      float64  `json:"period_b"`
	Delta        *float64 `json:"delta,omitempty"`
	DeltaDisplay string   `json:"delta_display"`
}

// PaymentsComparison is the period A vs period B view
type PaymentsComparison struct {
	PeriodA Period          `json:"period_a"`
	PeriodB Period          `json:"period_b"`
	Rows    []ComparisonRow `json:"rows"`
}

// StatisticRow is one row of the descriptive statistics table, formatted
// for display so degenerate values render as the missing placeholder
type StatisticRow struct {
	Statistic string `json:"statistic"`
	Quantity  string `json:"quantity"`
	Volume    string `json:"volume"`
	Average   string `json:"average"`
}

// PaymentsStatistics is the describe-style table over the full history
type PaymentsStatistics struct {
	Days int            `json:"days"`
	Rows []StatisticRow `json:"rows"`
}

// Overview fetches the full settlement history and reduces it to the four
// headline cards: observed days, total transactions, total volume and the
// mean daily average ticket.
func (s *PaymentsService) Overview(ctx context.Context, loc i18n.Locale) (*PaymentsOverview, error) {
	t, err := s.client.PixSettlements(ctx, PixEpoch)
	if err != nil {
		return nil, fmt.Errorf("fetch pix settlements: %w", err)
	}
	if t.Len() == 0 {
		return nil, ErrNoData
	}

	qty := sum(t.Floats("Quantidade"))
	volume := sum(t.Floats("Total"))
	avg := meanOf(t.Floats("Media"))
	days := t.Len()

	first, _ := t.Get(0, "Data").When()
	last, _ := t.Get(t.Len()-1, "Data").When()

	s.logger.DebugContext(ctx, "payments overview built",
		slog.Int("days", days),
		slog.Float64("volume", volume))

	return &PaymentsOverview{
		From: transform.FormatDate(first),
		To:   transform.FormatDate(last),
		Days: days,
		Cards: []PaymentsKPI{
			{Label: i18n.T("kpi_days", loc), Value: float64(days), Display: transform.FormatFixed(float64(days), 0)},
			{Label: i18n.T("kpi_qty", loc), Value: qty, Display: transform.FormatNumber(qty, 0)},
			{Label: i18n.T("kpi_volume", loc), Value: volume, Display: transform.FormatBRL(volume)},
			{Label: i18n.T("kpi_avg", loc), Value: avg, Display: transform.FormatBRL(avg)},
		},
	}, nil
}

// DailySeries returns the chart arrays for the daily settlement history.
// Rows with any missing measure are skipped.
func (s *PaymentsService) DailySeries(ctx context.Context) (*PaymentsSeries, error) {
	t, err := s.client.PixSettlements(ctx, PixEpoch)
	if err != nil {
		return nil, fmt.Errorf("fetch pix settlements: %w", err)
	}

	out := &PaymentsSeries{
		Dates:    make([]string, 0, t.Len()),
		Quantity: make([]float64, 0, t.Len()),
		Volume:   make([]float64, 0, t.Len()),
		Average:  make([]float64, 0, t.Len()),
	}
	for _, r := range t.Rows() {
		d, ok := r["Data"].When()
		if !ok {
			continue
		}
		q, okQ := r["Quantidade"].Float()
		v, okV := r["Total"].Float()
		a, okA := r["Media"].Float()
		if !okQ || !okV || !okA {
			continue
		}
		out.Dates = append(out.Dates, d.Format("2006-01-02"))
		out.Quantity = append(out.Quantity, q)
		out.Volume = append(out.Volume, v)
		out.Average = append(out.Average, a)
	}
	return out, nil
}

// Compare contrasts the daily means of two periods. Each metric row holds
// the period A mean, the period B mean and the relative change; the change
// is omitted when the period A mean is zero.
func (s *PaymentsService) Compare(ctx context.Context, a, b Period, loc i18n.Locale) (*PaymentsComparison, error) {
	if a.End.Before(a.Start) || b.End.Before(b.Start) {
		return nil, ErrInvalidPeriod
	}

	t, err := s.client.PixSettlements(ctx, PixEpoch)
	if err != nil {
		return nil, fmt.Errorf("fetch pix settlements: %w", err)
	}

	winA := windowTable(t, a)
	winB := windowTable(t, b)
	if winA.Len() == 0 || winB.Len() == 0 {
		return nil, ErrNoData
	}

	metrics := []struct {
		key    string
		column string
	}{
		{"comp_avg_qty", "Quantidade"},
		{"comp_avg_vol", "Total"},
		{"comp_avg_ticket", "Media"},
	}

	rows := make([]ComparisonRow, 0, len(metrics))
	for _, m := range metrics {
		meanA := meanOf(winA.Floats(m.column))
		meanB := meanOf(winB.Floats(m.column))
		row := ComparisonRow{
			Metric:       i18n.T(m.key, loc),
			PeriodA:      meanA,
			PeriodB:      meanB,
			DeltaDisplay: transform.Missing,
		}
		if meanA != 0 {
			d := (meanB - meanA) / meanA
			row.Delta = &d
			row.DeltaDisplay = transform.FormatPercent(d)
		}
		rows = append(rows, row)
	}

	s.logger.DebugContext(ctx, "payments comparison built",
		slog.Int("days_a", winA.Len()),
		slog.Int("days_b", winB.Len()))

	return &PaymentsComparison{PeriodA: a, PeriodB: b, Rows: rows}, nil
}

// Statistics computes the descriptive table over the three daily measures.
func (s *PaymentsService) Statistics(ctx context.Context, loc i18n.Locale) (*PaymentsStatistics, error) {
	t, err := s.client.PixSettlements(ctx, PixEpoch)
	if err != nil {
		return nil, fmt.Errorf("fetch pix settlements: %w", err)
	}
	if t.Len() == 0 {
		return nil, ErrNoData
	}

	qty, okQ := transform.Summarize(columnSeries(t, "Data", "Quantidade"))
	vol, okV := transform.Summarize(columnSeries(t, "Data", "Total"))
	avg, okA := transform.Summarize(columnSeries(t, "Data", "Media"))
	if !okQ || !okV || !okA {
		return nil, ErrNoData
	}

	pick := []struct {
		key string
		f   func(transform.Summary) float64
	}{
		{"stat_mean", func(s transform.Summary) float64 { return s.Mean }},
		{"stat_median", func(s transform.Summary) float64 { return s.Median }},
		{"stat_std", func(s transform.Summary) float64 { return s.Std }},
		{"stat_min", func(s transform.Summary) float64 { return s.Min }},
		{"stat_max", func(s transform.Summary) float64 { return s.Max }},
		{"stat_q1", func(s transform.Summary) float64 { return s.Q1 }},
		{"stat_q3", func(s transform.Summary) float64 { return s.Q3 }},
	}

	rows := make([]StatisticRow, 0, len(pick))
	for _, p := range pick {
		rows = append(rows, StatisticRow{
			Statistic: i18n.T(p.key, loc),
			Quantity:  transform.FormatFixed(p.f(qty), 0),
			Volume:    transform.FormatBRL(p.f(vol)),
			Average:   transform.FormatBRL(p.f(avg)),
		})
	}
	return &PaymentsStatistics{Days: t.Len(), Rows: rows}, nil
}

// ExportTable returns the full daily history with localized column
// headers, ready for the CSV and XLSX writers.
func (s *PaymentsService) ExportTable(ctx context.Context, loc i18n.Locale) (*transform.Table, error) {
	t, err := s.client.PixSettlements(ctx, PixEpoch)
	if err != nil {
		return nil, fmt.Errorf("fetch pix settlements: %w", err)
	}

	colDate := i18n.T("col_date", loc)
	colQty := i18n.T("col_quantity", loc)
	colTotal := i18n.T("col_total", loc)
	colAvg := i18n.T("col_average", loc)

	out := transform.NewTable(colDate, colQty, colTotal, colAvg)
	for _, r := range t.Rows() {
		out.Append(transform.Row{
			colDate:  r["Data"],
			colQty:   r["Quantidade"],
			colTotal: r["Total"],
			colAvg:   r["Media"],
		})
	}
	return out, nil
}

// windowTable filters a settlement table to rows inside the period.
func windowTable(t *transform.Table, p Period) *transform.Table {
	return t.Filter(func(r transform.Row) bool {
		d, ok := r["Data"].When()
		if !ok {
			return false
		}
		return !d.Before(p.Start) && !d.After(p.End)
	})
}

// columnSeries projects a (date, value) column pair into a series.
func columnSeries(t *transform.Table, dateCol, valueCol string) transform.Series {
	out := make(transform.Series, 0, t.Len())
	for _, r := range t.Rows() {
		d, ok := r[dateCol].When()
		if !ok {
			continue
		}
		out = append(out, transform.Point{Date: d, Value: r[valueCol]})
	}
	return out
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return sum(vals) / float64(len(vals))
}
