package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

// Modalities served by the daily endpoint, keyed by start of period.
var dailyModalities = []string{
	"Aquisição de veículos - Prefixado",
	"Capital de giro com prazo até 365 dias - Prefixado",
	"Capital de giro com prazo até 365 dias - Pós-fixado referenciado em juros flutuantes",
	"Capital de giro com prazo superior a 365 dias - Prefixado",
	"Capital de giro com prazo superior a 365 dias - Pós-fixado referenciado em juros flutuantes",
	"Cartão de crédito - rotativo total - Prefixado",
	"Cheque especial - Prefixado",
	"Conta garantida - Prefixado",
	"Conta garantida - Pós-fixado referenciado em juros flutuantes",
	"Crédito pessoal consignado privado - Prefixado",
	"Crédito pessoal não consignado - Prefixado",
	"Desconto de duplicatas - Prefixado",
}

// Modalities served by the monthly endpoint, keyed by month.
var monthlyModalities = []string{
	"Financiamento imobiliário com taxas de mercado - Prefixado",
	"Financiamento imobiliário com taxas de mercado - Pós-fixado referenciado em IPCA",
}

// rankingExcluded keeps modalities whose pricing is not comparable across
// institutions out of the ranking tab. They stay available everywhere else.
var rankingExcluded = map[string]bool{
	"Financiamento imobiliário com taxas de mercado - Prefixado":                            true,
	"Financiamento imobiliário com taxas de mercado - Pós-fixado referenciado em IPCA":      true,
	"Capital de giro com prazo até 365 dias - Prefixado":                                    true,
	"Capital de giro com prazo até 365 dias - Pós-fixado referenciado em juros flutuantes":  true,
	"Capital de giro com prazo superior a 365 dias - Pós-fixado referenciado em juros flutuantes": true,
	"Conta garantida - Pós-fixado referenciado em juros flutuantes":                         true,
}

var allModalities = append(append([]string{}, dailyModalities...), monthlyModalities...)

var rankingModalities = func() []string {
	out := make([]string, 0, len(allModalities))
	for _, m := range allModalities {
		if !rankingExcluded[m] {
			out = append(out, m)
		}
	}
	return out
}()

// Fetch limits per use. Snapshots only need the newest slice of the feed;
// charts and downloads walk the full history.
const (
	ratesSnapshotLimit = 5000
	ratesHistoryLimit  = 200000
	ratesExportLimit   = 100000
)

// medianWindowYears is the lookback of the median rate chart.
const medianWindowYears = 10

// RatesService serves the credit-modality rate dashboard: per-modality
// latest snapshots, cheapest/priciest rankings, individual bank positions,
// long-run median charts and raw downloads.
type RatesService struct {
	client *bcb.Client
	sink   ProgressSink
	logger *slog.Logger
}

// NewRatesService creates a new rates service
func NewRatesService(client *bcb.Client, sink ProgressSink, logger *slog.Logger) *RatesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatesService{
		client: client,
		sink:   sink,
		logger: logger,
	}
}

// ModalityCatalog lists the served modalities by endpoint cadence, plus
// the subset eligible for rankings
type ModalityCatalog struct {
	Daily   []string `json:"daily"`
	Monthly []string `json:"monthly"`
	Ranking []string `json:"ranking"`
}

// RateRow is one institution in a modality snapshot
type RateRow struct {
	Institution string   `json:"institution"`
	MonthlyRate *float64 `json:"monthly_rate,omitempty"`
	AnnualRate  *float64 `json:"annual_rate,omitempty"`
}

// ModalitySnapshot is the latest published batch of one modality
type ModalitySnapshot struct {
	Modality string    `json:"modality"`
	RefDate  string    `json:"ref_date"`
	Rows     []RateRow `json:"rows"`
}

// ModalityRanking is the two-sided rate ranking of one modality
type ModalityRanking struct {
	Modality   string        `json:"modality"`
	ShortLabel string        `json:"short_label"`
	Total      int           `json:"total"`
	Top        RankingBucket `json:"top"`
	Bottom     RankingBucket `json:"bottom"`
}

// RatesRankings is the ranking response across modalities
type RatesRankings struct {
	RefDate  string            `json:"ref_date"`
	Rankings []ModalityRanking `json:"rankings"`
}

// BankRate is one modality of a bank position lookup
type BankRate struct {
	Modality string   `json:"modality"`
	Rate     *float64 `json:"rate,omitempty"`
	Display  string   `json:"display"`
	Rank     int      `json:"rank,omitempty"`
	Of       int      `json:"of,omitempty"`
	Position string   `json:"position"`
}

// BankPositions is the per-bank view across every modality
type BankPositions struct {
	Bank  string     `json:"bank"`
	Rates []BankRate `json:"rates"`
}

// MedianSeries is the median annual rate per date over the chart window
type MedianSeries struct {
	Modality     string    `json:"modality"`
	Observations int       `json:"observations"`
	Dates        []string  `json:"dates"`
	Values       []float64 `json:"values"`
}

// Modalities returns the modality catalog.
func (s *RatesService) Modalities() ModalityCatalog {
	return ModalityCatalog{
		Daily:   append([]string{}, dailyModalities...),
		Monthly: append([]string{}, monthlyModalities...),
		Ranking: append([]string{}, rankingModalities...),
	}
}

// Snapshot returns the latest published rates of one modality.
func (s *RatesService) Snapshot(ctx context.Context, modality string) (*ModalitySnapshot, error) {
	if !knownModality(modality) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}
	latest, refDate, err := s.latestSnapshot(ctx, modality, ratesSnapshotLimit)
	if err != nil {
		return nil, err
	}
	if latest.Len() == 0 {
		return nil, ErrNoData
	}

	out := &ModalitySnapshot{
		Modality: modality,
		RefDate:  transform.FormatDate(refDate),
		Rows:     make([]RateRow, 0, latest.Len()),
	}
	for _, r := range latest.Rows() {
		row := RateRow{
			MonthlyRate: floatPtr(r["TaxaJurosAoMes"]),
			AnnualRate:  floatPtr(r["TaxaJurosAoAno"]),
		}
		row.Institution, _ = r["InstituicaoFinanceira"].Str()
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Rankings builds priciest and cheapest buckets per modality over the
// latest snapshot, zero rates excluded. An empty modality list means every
// rankable one; asking for an excluded modality is an error. Modalities
// that fail to load are skipped so one broken feed does not empty the page.
func (s *RatesService) Rankings(ctx context.Context, modalities []string, n int, loc i18n.Locale) (*RatesRankings, error) {
	if len(modalities) == 0 {
		modalities = rankingModalities
	}
	for _, m := range modalities {
		if !knownModality(m) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModality, m)
		}
		if rankingExcluded[m] {
			return nil, fmt.Errorf("%w: modality %q is not rankable", ErrInvalidInput, m)
		}
	}
	if n <= 0 {
		n = defaultRankingSize
	}

	out := &RatesRankings{}
	for i, m := range modalities {
		latest, refDate, err := s.latestSnapshot(ctx, m, ratesSnapshotLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "modality snapshot failed",
				slog.String("modality", m),
				slog.String("error", err.Error()))
			notifyProgress(ctx, s.sink, "rates", m, i+1, len(modalities))
			continue
		}
		notifyProgress(ctx, s.sink, "rates", m, i+1, len(modalities))
		if latest.Len() == 0 {
			continue
		}
		if out.RefDate == "" {
			out.RefDate = transform.FormatDate(refDate)
		}

		positive := latest.Filter(func(r transform.Row) bool {
			v, ok := r["TaxaJurosAoAno"].Float()
			return ok && v > 0
		})
		if positive.Len() == 0 {
			continue
		}

		ranking, err := transform.Rank(positive, "", "InstituicaoFinanceira", "TaxaJurosAoAno", transform.Descending, n)
		if err != nil {
			return nil, fmt.Errorf("rank %q: %w", m, err)
		}
		out.Rankings = append(out.Rankings, ModalityRanking{
			Modality:   m,
			ShortLabel: shortModalityLabel(m),
			Total:      ranking.Total,
			Top:        rateBucketView(ranking.Top, i18n.T("tax_largest", loc)),
			Bottom:     rateBucketView(ranking.Bottom, i18n.T("tax_smallest", loc)),
		})
	}
	if len(out.Rankings) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// Banks lists every institution appearing in at least one latest modality
// snapshot, sorted by name.
func (s *RatesService) Banks(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for _, m := range allModalities {
		latest, _, err := s.latestSnapshot(ctx, m, ratesSnapshotLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, r := range latest.Rows() {
			if name, ok := r["InstituicaoFinanceira"].Str(); ok {
				seen[name] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoData
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Positions looks one bank up across every modality snapshot. The rank is
// ascending: position 1 charges the lowest annual rate. Denominators count
// the full snapshot, including the zero rates the ranking tab drops.
func (s *RatesService) Positions(ctx context.Context, bank string, loc i18n.Locale) (*BankPositions, error) {
	out := &BankPositions{Bank: bank}
	for _, m := range allModalities {
		latest, _, err := s.latestSnapshot(ctx, m, ratesSnapshotLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "modality snapshot failed",
				slog.String("modality", m),
				slog.String("error", err.Error()))
			continue
		}

		var rate *float64
		found := false
		for _, r := range latest.Rows() {
			if name, ok := r["InstituicaoFinanceira"].Str(); ok && name == bank {
				rate = floatPtr(r["TaxaJurosAoAno"])
				found = true
				break
			}
		}
		if !found {
			continue
		}

		entry := BankRate{Modality: m, Display: transform.Missing, Position: transform.Missing}
		if rate != nil {
			rank, of, err := transform.Position(latest, "TaxaJurosAoAno", *rate, transform.Ascending)
			if err != nil {
				return nil, fmt.Errorf("position %q: %w", m, err)
			}
			entry.Rate = rate
			entry.Display = transform.FormatFixed(*rate, 2)
			entry.Rank = rank
			entry.Of = of
			entry.Position = fmt.Sprintf("%dº %s", rank, fmt.Sprintf(i18n.T("tax_of_banks", loc), of))
		}
		out.Rates = append(out.Rates, entry)
	}
	if len(out.Rates) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// Median reduces a modality's full history to the median annual rate per
// date over the last ten years. Histories shorter than the window chart in
// full.
func (s *RatesService) Median(ctx context.Context, modality string) (*MedianSeries, error) {
	if !knownModality(modality) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}
	t, dateCol, err := s.fetchModality(ctx, modality, ratesHistoryLimit)
	if err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, ErrNoData
	}

	cutoff := time.Now().UTC().AddDate(-medianWindowYears, 0, 0)
	windowed := t.Filter(func(r transform.Row) bool {
		d, ok := r[dateCol].When()
		return ok && !d.Before(cutoff)
	})
	if windowed.Len() == 0 {
		windowed = t
	}

	median, err := transform.GroupMedian(windowed, dateCol, "TaxaJurosAoAno")
	if err != nil {
		return nil, fmt.Errorf("median %q: %w", modality, err)
	}

	out := &MedianSeries{
		Modality:     modality,
		Observations: t.Len(),
		Dates:        make([]string, 0, len(median)),
		Values:       make([]float64, 0, len(median)),
	}
	for _, p := range median {
		v, ok := p.Value.Float()
		if !ok {
			continue
		}
		out.Dates = append(out.Dates, p.Date.Format("2006-01-02"))
		out.Values = append(out.Values, v)
	}
	return out, nil
}

// ExportTable downloads the raw per-institution history of the requested
// modalities inside a date range, concatenated long format. Failed
// modalities are skipped; progress is reported per modality under the
// given job id.
func (s *RatesService) ExportTable(ctx context.Context, modalities []string, start, end time.Time, job string) (*transform.Table, error) {
	if len(modalities) == 0 {
		return nil, fmt.Errorf("%w: no modalities requested", ErrInvalidInput)
	}
	for _, m := range modalities {
		if !knownModality(m) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModality, m)
		}
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	out := transform.NewTable(
		"InicioPeriodo", "FimPeriodo", "Mes", "Modalidade", "Posicao",
		"InstituicaoFinanceira", "TaxaJurosAoMes", "TaxaJurosAoAno",
	)
	for i, m := range modalities {
		t, dateCol, err := s.fetchModality(ctx, m, ratesExportLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "rates export fetch failed",
				slog.String("modality", m),
				slog.String("error", err.Error()))
			notifyProgress(ctx, s.sink, job, m, i+1, len(modalities))
			continue
		}
		for _, r := range t.Rows() {
			d, ok := r[dateCol].When()
			if !ok || d.Before(start) || d.After(end) {
				continue
			}
			row := transform.Row{
				"Modalidade":            r["Modalidade"],
				"Posicao":               r["Posicao"],
				"InstituicaoFinanceira": r["InstituicaoFinanceira"],
				"TaxaJurosAoMes":        r["TaxaJurosAoMes"],
				"TaxaJurosAoAno":        r["TaxaJurosAoAno"],
			}
			if dateCol == "InicioPeriodo" {
				row["InicioPeriodo"] = r["InicioPeriodo"]
				row["FimPeriodo"] = r["FimPeriodo"]
			} else {
				row["Mes"] = r["Mes"]
			}
			out.Append(row)
		}
		notifyProgress(ctx, s.sink, job, m, i+1, len(modalities))
	}

	if out.Len() == 0 {
		return nil, ErrNoData
	}
	notifyRefresh(ctx, s.sink, "rates", out.Len())
	return out, nil
}

// fetchModality routes a modality to its endpoint and returns the table
// plus its date column name.
func (s *RatesService) fetchModality(ctx context.Context, modality string, limit int) (*transform.Table, string, error) {
	if isDailyModality(modality) {
		t, err := s.client.DailyRates(ctx, modality, limit)
		if err != nil {
			return nil, "", fmt.Errorf("fetch daily rates: %w", err)
		}
		return t, "InicioPeriodo", nil
	}
	t, err := s.client.MonthlyRates(ctx, modality, limit)
	if err != nil {
		return nil, "", fmt.Errorf("fetch monthly rates: %w", err)
	}
	return t, "Mes", nil
}

// latestSnapshot fetches a modality and filters it to the rows of its most
// recent date.
func (s *RatesService) latestSnapshot(ctx context.Context, modality string, limit int) (*transform.Table, time.Time, error) {
	t, dateCol, err := s.fetchModality(ctx, modality, limit)
	if err != nil {
		return nil, time.Time{}, err
	}
	latest, err := transform.LatestSnapshot(t, dateCol)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("snapshot %q: %w", modality, err)
	}
	refDate, _ := transform.LatestDate(t, dateCol)
	return latest, refDate, nil
}

// rateBucketView renders one rate ranking bucket.
func rateBucketView(items []transform.RankedItem, label string) RankingBucket {
	b := RankingBucket{Label: label, Items: make([]RankedEntry, 0, len(items))}
	for i, it := range items {
		b.Items = append(b.Items, RankedEntry{
			Rank:    i + 1,
			Name:    it.Name,
			Value:   it.Value,
			Display: transform.FormatFixed(it.Value, 2),
		})
	}
	return b
}

func isDailyModality(m string) bool {
	for _, d := range dailyModalities {
		if d == m {
			return true
		}
	}
	return false
}

func knownModality(m string) bool {
	for _, k := range allModalities {
		if k == m {
			return true
		}
	}
	return false
}

// shortModalityLabel compresses the long official modality names for
// chart legends.
func shortModalityLabel(m string) string {
	m = strings.ReplaceAll(m, "Pós-fixado referenciado em ", "Pós-")
	return strings.ReplaceAll(m, " - Prefixado", " - Pré")
}
