package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

// Focus indicators served by the expectations module, with display units.
// The catalog order is the page order.
var expectationIndicators = []ExpectationIndicator{
	{Name: "Câmbio", Unit: "R$/US$"},
	{Name: "Dívida bruta do governo geral", Unit: "% PIB"},
	{Name: "IGP-M", Unit: "%"},
	{Name: "Investimento direto no país", Unit: "US$ bi"},
	{Name: "IPCA", Unit: "%"},
	{Name: "PIB Total", Unit: "%"},
	{Name: "Resultado nominal", Unit: "% PIB"},
	{Name: "Resultado primário", Unit: "% PIB"},
	{Name: "Selic", Unit: "% a.a."},
	{Name: "Taxa de desocupação", Unit: "%"},
}

// expectationsFetchDepth bounds each indicator query, newest survey dates
// first. One weekly Focus publication holds far fewer rows than this.
const expectationsFetchDepth = 100

// expectationHorizonYears is how many reference years each table covers,
// starting at the current calendar year.
const expectationHorizonYears = 3

// ExpectationsService serves the annual Focus market survey: per-indicator
// consensus tables restricted to the most recent publication date and the
// near reference years.
type ExpectationsService struct {
	client *bcb.Client
	sink   ProgressSink
	logger *slog.Logger
}

// NewExpectationsService creates a new expectations service
func NewExpectationsService(client *bcb.Client, sink ProgressSink, logger *slog.Logger) *ExpectationsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpectationsService{
		client: client,
		sink:   sink,
		logger: logger,
	}
}

// ExpectationIndicator describes one Focus indicator
type ExpectationIndicator struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// ExpectationRow is one reference year of an indicator consensus table
type ExpectationRow struct {
	Year        int      `json:"year"`
	Mean        *float64 `json:"mean,omitempty"`
	Median      *float64 `json:"median,omitempty"`
	StdDev      *float64 `json:"std_dev,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Respondents int      `json:"respondents,omitempty"`
}

// IndicatorExpectations is the latest consensus batch of one indicator
type IndicatorExpectations struct {
	Indicator  string           `json:"indicator"`
	Unit       string           `json:"unit"`
	SurveyDate string           `json:"survey_date"`
	Rows       []ExpectationRow `json:"rows"`
}

// ExpectationsReport is the Focus snapshot across the requested indicators
type ExpectationsReport struct {
	SurveyDate string                  `json:"survey_date"`
	Years      []int                   `json:"years"`
	Indicators []IndicatorExpectations `json:"indicators"`
}

// Indicators returns the indicator catalog.
func (s *ExpectationsService) Indicators() []ExpectationIndicator {
	return append([]ExpectationIndicator{}, expectationIndicators...)
}

// Latest builds the consensus tables of the requested indicators, each cut
// to its most recent survey date and the current-through-next-two reference
// years. An empty request means the whole catalog. Indicators that fail to
// load are skipped with a warning so one broken feed does not empty the
// page; progress is reported per indicator.
func (s *ExpectationsService) Latest(ctx context.Context, indicators []string, job string) (*ExpectationsReport, error) {
	if len(indicators) == 0 {
		for _, ind := range expectationIndicators {
			indicators = append(indicators, ind.Name)
		}
	}
	units := make(map[string]string, len(indicators))
	for _, name := range indicators {
		unit, ok := expectationUnit(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, name)
		}
		units[name] = unit
	}

	years := referenceYears(time.Now().UTC(), expectationHorizonYears)
	out := &ExpectationsReport{Years: years}
	for i, name := range indicators {
		rows, surveyDate, err := s.fetchIndicator(ctx, name, years)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "indicator fetch failed",
				slog.String("indicator", name),
				slog.String("error", err.Error()))
			notifyProgress(ctx, s.sink, job, name, i+1, len(indicators))
			continue
		}
		notifyProgress(ctx, s.sink, job, name, i+1, len(indicators))
		if len(rows) == 0 {
			continue
		}

		entry := IndicatorExpectations{
			Indicator:  name,
			Unit:       units[name],
			SurveyDate: transform.FormatDate(surveyDate),
			Rows:       rows,
		}
		out.Indicators = append(out.Indicators, entry)
		// The page tags the whole snapshot with the first available
		// indicator's survey date.
		if out.SurveyDate == "" {
			out.SurveyDate = entry.SurveyDate
		}
	}
	if len(out.Indicators) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// ExportTable flattens the latest consensus tables into one long table
// with localized headers, ready for the CSV and XLSX writers.
func (s *ExpectationsService) ExportTable(ctx context.Context, indicators []string, loc i18n.Locale, job string) (*transform.Table, error) {
	report, err := s.Latest(ctx, indicators, job)
	if err != nil {
		return nil, err
	}

	colIndicator := i18n.T("ifd_variable", loc)
	colYear := i18n.T("exp_year", loc)
	colMean := i18n.T("stat_mean", loc)
	colMedian := i18n.T("stat_median", loc)
	colStd := i18n.T("stat_std", loc)
	colMin := i18n.T("stat_min", loc)
	colMax := i18n.T("stat_max", loc)
	colResp := i18n.T("exp_respondents", loc)
	colSurvey := i18n.T("exp_survey_date", loc)

	out := transform.NewTable(colIndicator, colYear, colMean, colMedian,
		colStd, colMin, colMax, colResp, colSurvey)
	for _, ind := range report.Indicators {
		for _, r := range ind.Rows {
			row := transform.Row{
				colIndicator: transform.Text(ind.Indicator),
				colYear:      transform.Number(float64(r.Year)),
				colSurvey:    transform.Text(ind.SurveyDate),
			}
			putFloat(row, colMean, r.Mean)
			putFloat(row, colMedian, r.Median)
			putFloat(row, colStd, r.StdDev)
			putFloat(row, colMin, r.Min)
			putFloat(row, colMax, r.Max)
			if r.Respondents > 0 {
				row[colResp] = transform.Number(float64(r.Respondents))
			}
			out.Append(row)
		}
	}
	notifyRefresh(ctx, s.sink, "expectations", out.Len())
	return out, nil
}

// fetchIndicator pulls one indicator's survey history and reduces it to
// the newest publication: only rows of the maximum survey date survive,
// reference years outside the horizon drop, and one row per year remains
// (first wins, matching the feed's ordering).
func (s *ExpectationsService) fetchIndicator(ctx context.Context, name string, years []int) ([]ExpectationRow, time.Time, error) {
	t, err := s.client.MarketExpectations(ctx, name, expectationsFetchDepth)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch expectations: %w", err)
	}
	if t.Len() == 0 {
		return nil, time.Time{}, nil
	}

	latest, err := transform.LatestSnapshot(t, "Data")
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("snapshot %q: %w", name, err)
	}
	surveyDate, _ := transform.LatestDate(t, "Data")

	wanted := make(map[int]bool, len(years))
	for _, y := range years {
		wanted[y] = true
	}

	seen := make(map[int]bool, len(years))
	rows := make([]ExpectationRow, 0, len(years))
	for _, r := range latest.Rows() {
		year, ok := referenceYear(r["DataReferencia"])
		if !ok || !wanted[year] || seen[year] {
			continue
		}
		seen[year] = true

		row := ExpectationRow{
			Year:   year,
			Mean:   floatPtr(r["Media"]),
			Median: floatPtr(r["Mediana"]),
			StdDev: floatPtr(r["DesvioPadrao"]),
			Min:    floatPtr(r["Minimo"]),
			Max:    floatPtr(r["Maximo"]),
		}
		if n, ok := r["numeroRespondentes"].Float(); ok {
			row.Respondents = int(n)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })
	return rows, surveyDate, nil
}

// referenceYears lists the horizon starting at today's calendar year.
func referenceYears(today time.Time, horizon int) []int {
	years := make([]int, horizon)
	for i := range years {
		years[i] = today.Year() + i
	}
	return years
}

// referenceYear reads the annual-survey reference column, which the feed
// renders as either a bare year string or a number.
func referenceYear(c transform.Cell) (int, bool) {
	if v, ok := c.Float(); ok {
		return int(v), true
	}
	if s, ok := c.Str(); ok {
		if y, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return y, true
		}
	}
	return 0, false
}

// expectationUnit resolves a catalog indicator's display unit.
func expectationUnit(name string) (string, bool) {
	for _, ind := range expectationIndicators {
		if ind.Name == name {
			return ind.Unit, true
		}
	}
	return "", false
}

// putFloat sets a nullable number, leaving the cell missing when nil.
func putFloat(row transform.Row, col string, v *float64) {
	if v != nil {
		row[col] = transform.Number(*v)
	}
}
