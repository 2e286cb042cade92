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

// IF.Data report identifiers. TipoInstituicao 1 selects prudential
// conglomerates.
const (
	ifdataInstType     = 1
	ifdataReportResumo = 1
	ifdataReportAtivo  = 2
)

// Raw Ativo report column names. The feed embeds line breaks in them.
const (
	ativoColCredit = "Operações de Crédito \n(e)"
	ativoColGross  = "Valor Contábil Bruto \n(e1)"
	ativoColLoss   = "Perda Esperada \n(e2)"
)

// Display variables of the analytical table.
const (
	varTotalAssets  = "Ativo Total"
	varFunding      = "Captações"
	varEquity       = "Patrimônio Líquido"
	varNetIncome    = "Lucro Líquido"
	varBaselRatio   = "Índice de Basileia"
	varCreditOps    = "Operações de Crédito"
	varExpectedLoss = "Perda Esperada de Crédito"
)

// resumoVars are the variables taken directly from the Resumo report.
var resumoVars = []string{varTotalAssets, varFunding, varEquity, varNetIncome, varBaselRatio}

// ifdataVariables is the display order of the analytical table.
var ifdataVariables = []string{
	varTotalAssets, varFunding, varEquity, varNetIncome,
	varBaselRatio, varCreditOps, varExpectedLoss,
}

// ifdataMeta drives ranking direction and display units. The expected-loss
// ratio ranks ascending: a lower loss leads the favorable side.
var ifdataMeta = map[string]transform.VariableMeta{
	varTotalAssets: {Unit: "R$", Direction: transform.Descending},
	varFunding:     {Unit: "R$", Direction: transform.Descending},
	varEquity:      {Unit: "R$", Direction: transform.Descending},
	varNetIncome:   {Unit: "R$", Direction: transform.Descending},
	varBaselRatio:  {Unit: "%", Direction: transform.Descending},
	varCreditOps:   {Unit: "R$", Direction: transform.Descending},
	varExpectedLoss: {
		Unit:       "%",
		Direction:  transform.Ascending,
		Derivation: &transform.Derivation{Numerator: ativoColLoss, Denominator: ativoColGross},
	},
}

// Materiality floors applied to ranking views only. Institutions missing a
// floor variable fail the floor. Position lookups keep the full universe.
const (
	floorEquity = 100_000_000.0
	floorCredit = 200_000_000.0
	floorAssets = 1_000_000_000.0
)

// prudentialMarker filters the registry to prudential conglomerates, and
// is stripped from display names.
const prudentialMarker = "PRUDENCIAL"

// quarterProbeDepth is how many quarters the latest-quarter probe walks back.
const quarterProbeDepth = 6

// exportMaxMonths caps the raw download span.
const exportMaxMonths = 24

// defaultRankingSize is how many institutions each ranking bucket shows.
const defaultRankingSize = 10

// IFDataService serves the supervised-institution dashboard built on the
// IF.Data OData product: quarterly analytical tables for segments S1-S4,
// per-variable rankings, individual institution positions and raw
// multi-quarter downloads.
type IFDataService struct {
	client *bcb.Client
	sink   ProgressSink
	logger *slog.Logger
}

// NewIFDataService creates a new IF.Data service. It fails when the
// variable metadata table is inconsistent.
func NewIFDataService(client *bcb.Client, sink ProgressSink, logger *slog.Logger) (*IFDataService, error) {
	if err := transform.ValidateMeta(ifdataMeta); err != nil {
		return nil, fmt.Errorf("ifdata variable metadata: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IFDataService{
		client: client,
		sink:   sink,
		logger: logger,
	}, nil
}

// VariableInfo describes one analytical variable
type VariableInfo struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Direction string `json:"direction"`
}

// QuartersView carries the resolved latest quarter and the candidate list
type QuartersView struct {
	Latest     int   `json:"latest"`
	Candidates []int `json:"candidates"`
}

// Institution is one registry entry after the segment and name filters
type Institution struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Segment string `json:"segment"`
}

// InstitutionRow is one analytical table row
type InstitutionRow struct {
	Code   string              `json:"code"`
	Name   string              `json:"name"`
	Values map[string]*float64 `json:"values"`
}

// AnalyticalTable is the wide per-institution view for one quarter
type AnalyticalTable struct {
	Quarter      int              `json:"quarter"`
	Variables    []VariableInfo   `json:"variables"`
	Institutions []InstitutionRow `json:"institutions"`
	Total        int              `json:"total"`
}

// RankedEntry is one institution inside a ranking bucket
type RankedEntry struct {
	Rank    int     `json:"rank"`
	Code    string  `json:"code,omitempty"`
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Display string  `json:"display"`
}

// RankingBucket is one side of a variable ranking
type RankingBucket struct {
	Label string        `json:"label"`
	Items []RankedEntry `json:"items"`
}

// VariableRanking is the two-sided ranking of one variable
type VariableRanking struct {
	Variable string        `json:"variable"`
	Unit     string        `json:"unit"`
	Top      RankingBucket `json:"top"`
	Bottom   RankingBucket `json:"bottom"`
	Total    int           `json:"total"`
}

// IFDataRankings is the ranking response for one quarter
type IFDataRankings struct {
	Quarter      int               `json:"quarter"`
	Institutions int               `json:"institutions"`
	Rankings     []VariableRanking `json:"rankings"`
}

// ProfileEntry is one variable of an institution profile with its ranking
// position among the institutions reporting that variable
type ProfileEntry struct {
	Variable string   `json:"variable"`
	Unit     string   `json:"unit"`
	Value    *float64 `json:"value,omitempty"`
	Display  string   `json:"display"`
	Rank     int      `json:"rank,omitempty"`
	Of       int      `json:"of,omitempty"`
	Position string   `json:"position"`
}

// InstitutionProfile is the single-institution view
type InstitutionProfile struct {
	Quarter int            `json:"quarter"`
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Entries []ProfileEntry `json:"entries"`
}

// Variables lists the analytical variables in display order.
func (s *IFDataService) Variables() []VariableInfo {
	out := make([]VariableInfo, 0, len(ifdataVariables))
	for _, v := range ifdataVariables {
		m := ifdataMeta[v]
		out = append(out, VariableInfo{Name: v, Unit: m.Unit, Direction: m.Direction.String()})
	}
	return out
}

// Quarters probes for the most recent published quarter. Candidates walk
// back from the current quarter; the first one answering with data wins.
// When none does, the oldest candidate is returned so callers still have a
// period to query, and downstream operations surface the empty result.
func (s *IFDataService) Quarters(ctx context.Context) (*QuartersView, error) {
	candidates := recentQuarters(time.Now().UTC(), quarterProbeDepth)
	for _, q := range candidates {
		t, err := s.client.IFDataValues(ctx, q, ifdataInstType, ifdataReportResumo)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "quarter probe failed",
				slog.Int("quarter", q),
				slog.String("error", err.Error()))
			continue
		}
		if t.Len() > 0 {
			return &QuartersView{Latest: q, Candidates: candidates}, nil
		}
	}
	s.logger.WarnContext(ctx, "no quarter answered with data, using oldest candidate",
		slog.Int("quarter", candidates[len(candidates)-1]))
	return &QuartersView{Latest: candidates[len(candidates)-1], Candidates: candidates}, nil
}

// Institutions lists the filtered registry for a quarter, sorted by display
// name. quarter <= 0 resolves the latest published one.
func (s *IFDataService) Institutions(ctx context.Context, quarter int) ([]Institution, error) {
	quarter, err := s.resolveQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}
	entries, err := s.fetchRegistry(ctx, quarter)
	if err != nil {
		return nil, err
	}

	out := make([]Institution, 0, len(entries))
	for _, e := range entries {
		out = append(out, Institution{
			Code:    e.code,
			Name:    transform.StripSuffix(e.name, prudentialMarker),
			Segment: e.segment,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Analytical builds the wide per-institution table for a quarter.
func (s *IFDataService) Analytical(ctx context.Context, quarter int) (*AnalyticalTable, error) {
	quarter, err := s.resolveQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}
	wide, err := s.loadQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}

	out := &AnalyticalTable{
		Quarter:   quarter,
		Variables: s.Variables(),
		Total:     wide.Len(),
	}
	for _, r := range wide.Rows() {
		row := InstitutionRow{Values: make(map[string]*float64, len(ifdataVariables))}
		row.Code, _ = r["CodInst"].Str()
		row.Name, _ = r["NomeInstituicao"].Str()
		for _, v := range ifdataVariables {
			row.Values[v] = floatPtr(r[v])
		}
		out.Institutions = append(out.Institutions, row)
	}
	return out, nil
}

// Rankings builds Top-N and Bottom-N buckets per requested variable over
// the institutions passing the materiality floors. An empty variable list
// means all of them; n <= 0 uses the default bucket size. The favorable
// side of the expected-loss ratio is its smallest values, so its buckets
// swap labels along with the sort.
func (s *IFDataService) Rankings(ctx context.Context, quarter int, variables []string, n int, loc i18n.Locale) (*IFDataRankings, error) {
	if len(variables) == 0 {
		variables = ifdataVariables
	}
	for _, v := range variables {
		if _, ok := ifdataMeta[v]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, v)
		}
	}
	if n <= 0 {
		n = defaultRankingSize
	}

	quarter, err := s.resolveQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}
	wide, err := s.loadQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}

	floored := applyFloors(wide)
	if floored.Len() == 0 {
		return nil, ErrNoData
	}

	out := &IFDataRankings{Quarter: quarter, Institutions: floored.Len()}
	for _, v := range variables {
		meta := ifdataMeta[v]
		ranking, err := transform.Rank(floored, "CodInst", "NomeInstituicao", v, meta.Direction, n)
		if err != nil {
			return nil, fmt.Errorf("rank %q: %w", v, err)
		}
		if ranking.Total == 0 {
			continue
		}

		topKey, bottomKey := "ifd_largest", "ifd_smallest"
		if meta.Direction == transform.Ascending {
			topKey, bottomKey = "ifd_largest_pec", "ifd_smallest_pec"
		}
		out.Rankings = append(out.Rankings, VariableRanking{
			Variable: v,
			Unit:     meta.Unit,
			Top:      bucketView(ranking.Top, v, i18n.T(topKey, loc)),
			Bottom:   bucketView(ranking.Bottom, v, i18n.T(bottomKey, loc)),
			Total:    ranking.Total,
		})
	}
	return out, nil
}

// Profile returns every variable of one institution with its ranking
// position. Positions count the full filtered universe, without the
// materiality floors the ranking buckets apply.
func (s *IFDataService) Profile(ctx context.Context, quarter int, code string, loc i18n.Locale) (*InstitutionProfile, error) {
	quarter, err := s.resolveQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}
	wide, err := s.loadQuarter(ctx, quarter)
	if err != nil {
		return nil, err
	}

	var row transform.Row
	for _, r := range wide.Rows() {
		if c, ok := r["CodInst"].Str(); ok && c == code {
			row = r
			break
		}
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstitution, code)
	}

	out := &InstitutionProfile{Quarter: quarter, Code: code}
	out.Name, _ = row["NomeInstituicao"].Str()

	for _, v := range ifdataVariables {
		meta := ifdataMeta[v]
		entry := ProfileEntry{
			Variable: v,
			Unit:     meta.Unit,
			Display:  transform.Missing,
			Position: transform.Missing,
		}
		if val, ok := row[v].Float(); ok {
			rank, of, err := transform.Position(wide, v, val, meta.Direction)
			if err != nil {
				return nil, fmt.Errorf("position %q: %w", v, err)
			}
			entry.Value = &val
			entry.Display = formatIFDataValue(val, v)
			entry.Rank = rank
			entry.Of = of
			entry.Position = fmt.Sprintf("%dº %s", rank, fmt.Sprintf(i18n.T("ifd_of_ifs", loc), of))
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

// ExportRows downloads the raw long-format values for a quarter range,
// restricted to the filtered registry of the final quarter. Both reports
// are fetched per quarter; individual fetch failures are skipped so a
// partial history still downloads. Progress is reported per fetch step
// under the given job id.
func (s *IFDataService) ExportRows(ctx context.Context, startQuarter, endQuarter int, job string) (*transform.Table, error) {
	periods, err := quarterRange(startQuarter, endQuarter)
	if err != nil {
		return nil, err
	}

	entries, err := s.fetchRegistry(ctx, endQuarter)
	if err != nil {
		notifyError(ctx, s.sink, job, err.Error())
		return nil, err
	}
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		names[e.code] = e.name
	}

	reports := []struct {
		code int
		name string
	}{
		{ifdataReportResumo, "Resumo"},
		{ifdataReportAtivo, "Ativo"},
	}

	out := transform.NewTable("CodInst", "NomeColuna", "Saldo", "AnoMes", "Relatorio", "NomeInstituicao")
	totalSteps := len(periods) * len(reports)
	step := 0
	for _, period := range periods {
		for _, rep := range reports {
			step++
			t, err := s.client.IFDataValues(ctx, period, ifdataInstType, rep.code)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.WarnContext(ctx, "ifdata export fetch failed",
					slog.Int("quarter", period),
					slog.String("report", rep.name),
					slog.String("error", err.Error()))
				notifyProgress(ctx, s.sink, job, fmt.Sprintf("%d (%s)", period, rep.name), step, totalSteps)
				continue
			}
			for _, r := range t.Rows() {
				code, ok := r["CodInst"].Str()
				if !ok {
					continue
				}
				name, registered := names[code]
				if !registered {
					continue
				}
				out.Append(transform.Row{
					"CodInst":         r["CodInst"],
					"NomeColuna":      r["NomeColuna"],
					"Saldo":           r["Saldo"],
					"AnoMes":          transform.Number(float64(period)),
					"Relatorio":       transform.Text(rep.name),
					"NomeInstituicao": transform.Text(name),
				})
			}
			notifyProgress(ctx, s.sink, job, fmt.Sprintf("%d (%s)", period, rep.name), step, totalSteps)
		}
	}

	if out.Len() == 0 {
		return nil, ErrNoData
	}
	notifyRefresh(ctx, s.sink, "ifdata", out.Len())
	s.logger.InfoContext(ctx, "ifdata export built",
		slog.Int("quarters", len(periods)),
		slog.Int("rows", out.Len()))
	return out, nil
}

// resolveQuarter substitutes the latest published quarter for non-positive
// values and validates explicit ones.
func (s *IFDataService) resolveQuarter(ctx context.Context, quarter int) (int, error) {
	if quarter <= 0 {
		v, err := s.Quarters(ctx)
		if err != nil {
			return 0, err
		}
		return v.Latest, nil
	}
	if !validQuarter(quarter) {
		return 0, fmt.Errorf("%w: quarter %d", ErrInvalidMonths, quarter)
	}
	return quarter, nil
}

// registryEntry is one filtered cadastro row.
type registryEntry struct {
	code    string
	name    string
	segment string
}

// fetchRegistry loads the cadastro for a quarter and applies the original
// filters: segments S1-S4, prudential-conglomerate names, first entry per
// code.
func (s *IFDataService) fetchRegistry(ctx context.Context, quarter int) ([]registryEntry, error) {
	t, err := s.client.IFDataRegistry(ctx, quarter)
	if err != nil {
		return nil, fmt.Errorf("fetch registry %d: %w", quarter, err)
	}

	segments := map[string]bool{"S1": true, "S2": true, "S3": true, "S4": true}
	seen := make(map[string]bool)
	var entries []registryEntry
	for _, r := range t.Rows() {
		seg, ok := r["Sr"].Str()
		if !ok || !segments[seg] {
			continue
		}
		name, ok := r["NomeInstituicao"].Str()
		if !ok || !strings.Contains(strings.ToUpper(name), prudentialMarker) {
			continue
		}
		code, ok := r["CodInst"].Str()
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		entries = append(entries, registryEntry{code: code, name: name, segment: seg})
	}
	if len(entries) == 0 {
		return nil, ErrNoData
	}
	return entries, nil
}

// loadQuarter fetches and merges both reports for a quarter into the wide
// analytical table: registry filter, Basel unit correction, first-wins
// pivot, derived expected-loss ratio, display names with the prudential
// marker stripped.
func (s *IFDataService) loadQuarter(ctx context.Context, quarter int) (*transform.Table, error) {
	entries, err := s.fetchRegistry(ctx, quarter)
	if err != nil {
		return nil, err
	}
	reg := make(transform.Registry, len(entries))
	for _, e := range entries {
		reg[e.code] = e.name
	}

	resumo, err := s.client.IFDataValues(ctx, quarter, ifdataInstType, ifdataReportResumo)
	if err != nil {
		return nil, fmt.Errorf("fetch resumo %d: %w", quarter, err)
	}
	ativo, err := s.client.IFDataValues(ctx, quarter, ifdataInstType, ifdataReportAtivo)
	if err != nil {
		return nil, fmt.Errorf("fetch ativo %d: %w", quarter, err)
	}

	long := transform.NewTable("CodInst", "NomeColuna", "Saldo")
	for _, t := range []*transform.Table{resumo, ativo} {
		kept, err := transform.FilterRegistered(t, "CodInst", reg)
		if err != nil {
			return nil, fmt.Errorf("filter values %d: %w", quarter, err)
		}
		for _, r := range kept.Rows() {
			long.Append(transform.Row{
				"CodInst":    r["CodInst"],
				"NomeColuna": r["NomeColuna"],
				"Saldo":      r["Saldo"],
			})
		}
	}

	// The feed reports the Basel ratio as a proportion.
	if err := transform.ScaleWhere(long, "NomeColuna", varBaselRatio, "Saldo", 100); err != nil {
		return nil, fmt.Errorf("scale basel ratio: %w", err)
	}

	recognized := append(append([]string{}, resumoVars...), ativoColCredit, ativoColGross, ativoColLoss)
	wide, err := transform.Pivot(long, "CodInst", "NomeColuna", "Saldo", recognized)
	if err != nil {
		return nil, fmt.Errorf("pivot %d: %w", quarter, err)
	}
	if wide.Len() == 0 {
		return nil, ErrNoData
	}

	transform.DeriveRatio(wide, ativoColLoss, ativoColGross, varExpectedLoss)
	wide.AddColumn(varCreditOps)
	for _, r := range wide.Rows() {
		if c := r[ativoColCredit]; !c.IsMissing() {
			r[varCreditOps] = c
		}
	}
	if err := transform.AttachNames(wide, "CodInst", reg, "NomeInstituicao"); err != nil {
		return nil, fmt.Errorf("attach names: %w", err)
	}
	for _, r := range wide.Rows() {
		if name, ok := r["NomeInstituicao"].Str(); ok {
			r["NomeInstituicao"] = transform.Text(transform.StripSuffix(name, prudentialMarker))
		}
	}

	out := transform.NewTable(append([]string{"CodInst", "NomeInstituicao"}, ifdataVariables...)...)
	for _, r := range wide.Rows() {
		row := transform.Row{"CodInst": r["CodInst"], "NomeInstituicao": r["NomeInstituicao"]}
		for _, v := range ifdataVariables {
			if c := r[v]; !c.IsMissing() {
				row[v] = c
			}
		}
		out.Append(row)
	}
	return out, nil
}

// applyFloors keeps the institutions above every materiality floor.
func applyFloors(t *transform.Table) *transform.Table {
	return t.Filter(func(r transform.Row) bool {
		eq, ok := r[varEquity].Float()
		if !ok || eq <= floorEquity {
			return false
		}
		cr, ok := r[varCreditOps].Float()
		if !ok || cr <= floorCredit {
			return false
		}
		at, ok := r[varTotalAssets].Float()
		if !ok || at <= floorAssets {
			return false
		}
		return true
	})
}

// bucketView renders one ranking bucket with formatted values.
func bucketView(items []transform.RankedItem, variable, label string) RankingBucket {
	b := RankingBucket{Label: label, Items: make([]RankedEntry, 0, len(items))}
	for i, it := range items {
		b.Items = append(b.Items, RankedEntry{
			Rank:    i + 1,
			Code:    it.Code,
			Name:    it.Name,
			Value:   it.Value,
			Display: formatIFDataValue(it.Value, variable),
		})
	}
	return b
}

// formatIFDataValue renders a value the way the ranking tables show it:
// the expected-loss ratio with a percent sign, the Basel ratio as a plain
// two-decimal number, balance-sheet figures in short currency form.
func formatIFDataValue(v float64, variable string) string {
	switch variable {
	case varExpectedLoss:
		return transform.FormatFixed(v, 2) + "%"
	case varBaselRatio:
		return transform.FormatFixed(v, 2)
	default:
		return transform.FormatCurrencyShort(v)
	}
}

// validQuarter reports whether yyyymm lands on a quarterly publication
// month.
func validQuarter(q int) bool {
	switch q % 100 {
	case 3, 6, 9, 12:
		return true
	}
	return false
}

// recentQuarters lists the n most recent quarter identifiers, newest
// first, starting at the quarter containing today.
func recentQuarters(today time.Time, n int) []int {
	y, m := today.Year(), int(today.Month())
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		qm := (m-1)/3*3 + 3
		out = append(out, y*100+qm)
		m -= 3
		if m <= 0 {
			m += 12
			y--
		}
	}
	return out
}

// quarterRange expands an inclusive quarter interval, validating the
// publication months, the ordering and the span cap.
func quarterRange(start, end int) ([]int, error) {
	if !validQuarter(start) || !validQuarter(end) {
		return nil, ErrInvalidMonths
	}
	startY, startM := start/100, start%100
	endY, endM := end/100, end%100
	diff := (endY-startY)*12 + (endM - startM)
	if diff < 0 {
		return nil, ErrInvalidPeriod
	}
	if diff > exportMaxMonths {
		return nil, ErrPeriodTooLong
	}

	var periods []int
	y, m := startY, startM
	for y*100+m <= end {
		periods = append(periods, y*100+m)
		m += 3
		if m > 12 {
			m = 3
			y++
		}
	}
	return periods, nil
}
