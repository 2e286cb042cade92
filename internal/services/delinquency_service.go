package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bcbradar/internal/bcb"
	"bcbradar/internal/i18n"
	"bcbradar/internal/transform"
)

// Borrower segments of the delinquency series.
const (
	ModePF    = "pf"
	ModePJ    = "pj"
	ModeTotal = "total"
)

// Export scopes.
const (
	ScopeRegions = "regions"
	ScopeStates  = "states"
)

// Map layout: region to member states. Charts and legends follow
// regionOrder.
var regionOrder = []string{"N", "NE", "CO", "SE", "S"}

var regionStates = map[string][]string{
	"N":  {"AC", "AP", "AM", "PA", "RO", "RR", "TO"},
	"NE": {"AL", "BA", "CE", "MA", "PB", "PE", "PI", "RN", "SE"},
	"CO": {"DF", "GO", "MT", "MS"},
	"SE": {"ES", "MG", "RJ", "SP"},
	"S":  {"PR", "RS", "SC"},
}

// Base color per region; state fills shade from these by relative
// delinquency.
var regionColors = map[string]transform.RGB{
	"N":  transform.MustHex("#22D3EE"),
	"NE": transform.MustHex("#34D399"),
	"CO": transform.MustHex("#FBBF24"),
	"SE": transform.MustHex("#FB7185"),
	"S":  transform.MustHex("#A78BFA"),
}

var stateNames = map[string]string{
	"AC": "Acre", "AL": "Alagoas", "AP": "Amapá", "AM": "Amazonas",
	"BA": "Bahia", "CE": "Ceará", "DF": "Distrito Federal", "ES": "Espírito Santo",
	"GO": "Goiás", "MA": "Maranhão", "MT": "Mato Grosso", "MS": "Mato Grosso do Sul",
	"MG": "Minas Gerais", "PA": "Pará", "PB": "Paraíba", "PR": "Paraná",
	"PE": "Pernambuco", "PI": "Piauí", "RJ": "Rio de Janeiro",
	"RN": "Rio Grande do Norte", "RS": "Rio Grande do Sul", "RO": "Rondônia",
	"RR": "Roraima", "SC": "Santa Catarina", "SP": "São Paulo",
	"SE": "Sergipe", "TO": "Tocantins",
}

var stateRegion = func() map[string]string {
	out := make(map[string]string, len(stateNames))
	for reg, states := range regionStates {
		for _, uf := range states {
			out[uf] = reg
		}
	}
	return out
}()

var allStates = func() []string {
	out := make([]string, 0, len(stateRegion))
	for uf := range stateRegion {
		out = append(out, uf)
	}
	sort.Strings(out)
	return out
}()

// The SGS regional-credit catalog publishes the delinquency ratios in
// consecutive code blocks: one code per state in the IBGE state sequence,
// then one per region, for each borrower segment.
var nplStateSequence = []string{
	"RO", "AC", "AM", "RR", "PA", "AP", "TO",
	"MA", "PI", "CE", "RN", "PB", "PE", "AL", "SE", "BA",
	"MG", "ES", "RJ", "SP",
	"PR", "SC", "RS",
	"MS", "MT", "GO", "DF",
}

var nplRegionSequence = []string{"N", "NE", "SE", "S", "CO"}

// First series code of each block.
const (
	nplStateTotalBase  = 15861
	nplStatePJBase     = 15888
	nplStatePFBase     = 15915
	nplRegionTotalBase = 15942
	nplRegionPJBase    = 15947
	nplRegionPFBase    = 15952
)

// nplCatalog maps location and borrower segment to the SGS series code.
var nplCatalog = func() map[string]map[string]int {
	out := make(map[string]map[string]int, len(nplStateSequence)+len(nplRegionSequence))
	put := func(location, mode string, code int) {
		if out[location] == nil {
			out[location] = make(map[string]int, 3)
		}
		out[location][mode] = code
	}
	for i, uf := range nplStateSequence {
		put(uf, ModeTotal, nplStateTotalBase+i)
		put(uf, ModePJ, nplStatePJBase+i)
		put(uf, ModePF, nplStatePFBase+i)
	}
	for i, reg := range nplRegionSequence {
		put(reg, ModeTotal, nplRegionTotalBase+i)
		put(reg, ModePJ, nplRegionPJBase+i)
		put(reg, ModePF, nplRegionPFBase+i)
	}
	return out
}()

// nplFetchConcurrency bounds the map fan-out. The client's rate limiter
// paces the actual wire calls below this.
const nplFetchConcurrency = 8

// nplWindowYears is the lookback of the region and state charts.
const nplWindowYears = 4

// DelinquencyService serves the regional credit delinquency dashboard:
// the shaded national map, per-region history charts, state-versus-region
// detail and the long-format research download.
type DelinquencyService struct {
	client *bcb.Client
	sink   ProgressSink
	logger *slog.Logger
}

// NewDelinquencyService creates a new delinquency service
func NewDelinquencyService(client *bcb.Client, sink ProgressSink, logger *slog.Logger) *DelinquencyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelinquencyService{
		client: client,
		sink:   sink,
		logger: logger,
	}
}

// RegionInfo describes one region of the location catalog
type RegionInfo struct {
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	Color  string   `json:"color"`
	States []string `json:"states"`
}

// StateInfo describes one state of the location catalog
type StateInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// LocationCatalog is the region and state layout of the map
type LocationCatalog struct {
	Regions []RegionInfo `json:"regions"`
	States  []StateInfo  `json:"states"`
}

// StateShade is one state's fill on the national map. The factor is the
// state's delinquency level normalized inside its region; the fill shades
// the region base color by it.
type StateShade struct {
	State  string   `json:"state"`
	Name   string   `json:"name"`
	Region string   `json:"region"`
	PF     *float64 `json:"pf,omitempty"`
	PJ     *float64 `json:"pj,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Factor float64  `json:"factor"`
	Fill   string   `json:"fill"`
}

// RegionLevel is one region's latest delinquency pair
type RegionLevel struct {
	Region string   `json:"region"`
	Name   string   `json:"name"`
	Color  string   `json:"color"`
	PF     *float64 `json:"pf,omitempty"`
	PJ     *float64 `json:"pj,omitempty"`
}

// DelinquencyMap is the choropleth payload
type DelinquencyMap struct {
	States  []StateShade  `json:"states"`
	Regions []RegionLevel `json:"regions"`
}

// SeriesView is a dated value path
type SeriesView struct {
	Dates  []string  `json:"dates"`
	Values []float64 `json:"values"`
}

// RegionSeriesLine is one region's delinquency path
type RegionSeriesLine struct {
	Region string     `json:"region"`
	Name   string     `json:"name"`
	Color  string     `json:"color"`
	Series SeriesView `json:"series"`
}

// RegionSeriesChart groups the per-region lines of one borrower segment
type RegionSeriesChart struct {
	Mode  string             `json:"mode"`
	Label string             `json:"label"`
	Lines []RegionSeriesLine `json:"lines"`
}

// ModeComparison charts a state against its region for one segment
type ModeComparison struct {
	Mode   string     `json:"mode"`
	Label  string     `json:"label"`
	State  SeriesView `json:"state"`
	Region SeriesView `json:"region"`
}

// StateDetail is the state-versus-region drill-down
type StateDetail struct {
	State       string           `json:"state"`
	Name        string           `json:"name"`
	Region      string           `json:"region"`
	RegionName  string           `json:"region_name"`
	Color       string           `json:"color"`
	Comparisons []ModeComparison `json:"comparisons"`
}

// Locations returns the region and state catalog.
func (s *DelinquencyService) Locations(loc i18n.Locale) *LocationCatalog {
	out := &LocationCatalog{}
	for _, reg := range regionOrder {
		out.Regions = append(out.Regions, RegionInfo{
			Code:   reg,
			Name:   i18n.T("region_"+reg, loc),
			Color:  regionColors[reg].Hex(),
			States: append([]string{}, regionStates[reg]...),
		})
	}
	for _, uf := range allStates {
		out.States = append(out.States, StateInfo{
			Code:   uf,
			Name:   stateNames[uf],
			Region: stateRegion[uf],
		})
	}
	return out
}

// Map builds the shaded national map: per-state latest PF and PJ levels,
// each state shaded inside its region's range by the mean of the two, plus
// the per-region latest pair. States whose feeds fail stay on the map with
// a neutral shade. Progress is reported per location under the job id.
func (s *DelinquencyService) Map(ctx context.Context, loc i18n.Locale, job string) (*DelinquencyMap, error) {
	locations := append(append([]string{}, allStates...), regionOrder...)
	pairs, err := s.latestLevels(ctx, locations, job)
	if err != nil {
		return nil, err
	}

	loaded := false
	for _, p := range pairs {
		if p.pf != nil || p.pj != nil {
			loaded = true
			break
		}
	}
	if !loaded {
		return nil, ErrNoData
	}

	means := make(map[string]*float64, len(allStates))
	for _, uf := range allStates {
		means[uf] = pairMean(pairs[uf])
	}

	// Normalization range per region over its states' mean levels.
	type minmax struct {
		lo, hi float64
		ok     bool
	}
	ranges := make(map[string]minmax, len(regionOrder))
	for _, reg := range regionOrder {
		var mm minmax
		for _, uf := range regionStates[reg] {
			m := means[uf]
			if m == nil {
				continue
			}
			if !mm.ok {
				mm = minmax{lo: *m, hi: *m, ok: true}
				continue
			}
			if *m < mm.lo {
				mm.lo = *m
			}
			if *m > mm.hi {
				mm.hi = *m
			}
		}
		ranges[reg] = mm
	}

	out := &DelinquencyMap{}
	for _, uf := range allStates {
		reg := stateRegion[uf]
		p := pairs[uf]

		value := math.NaN()
		if m := means[uf]; m != nil {
			value = *m
		}
		mm := ranges[reg]
		factor := transform.ShadeFactor(value, mm.lo, mm.hi)

		out.States = append(out.States, StateShade{
			State:  uf,
			Name:   stateNames[uf],
			Region: reg,
			PF:     p.pf,
			PJ:     p.pj,
			Mean:   means[uf],
			Factor: factor,
			Fill:   transform.Blend(regionColors[reg], factor).Hex(),
		})
	}
	for _, reg := range regionOrder {
		p := pairs[reg]
		out.Regions = append(out.Regions, RegionLevel{
			Region: reg,
			Name:   i18n.T("region_"+reg, loc),
			Color:  regionColors[reg].Hex(),
			PF:     p.pf,
			PJ:     p.pj,
		})
	}
	return out, nil
}

// RegionSeries charts one borrower segment per region over the four-year
// window. Regions whose feeds fail are skipped so one broken series does
// not empty the chart.
func (s *DelinquencyService) RegionSeries(ctx context.Context, mode string, loc i18n.Locale) (*RegionSeriesChart, error) {
	if !validMode(mode) {
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidInput, mode)
	}
	start, end := nplWindow(time.Now().UTC())

	out := &RegionSeriesChart{Mode: mode, Label: modeLabel(mode, loc)}
	for _, reg := range regionOrder {
		code, err := nplCode(reg, mode)
		if err != nil {
			return nil, err
		}
		series, err := s.client.SGSSeries(ctx, code, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "region series fetch failed",
				slog.String("region", reg),
				slog.String("mode", mode),
				slog.String("error", err.Error()))
			continue
		}
		view := seriesView(series)
		if len(view.Dates) == 0 {
			continue
		}
		out.Lines = append(out.Lines, RegionSeriesLine{
			Region: reg,
			Name:   i18n.T("region_"+reg, loc),
			Color:  regionColors[reg].Hex(),
			Series: view,
		})
	}
	if len(out.Lines) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// StateDetail charts one state against its region, PF and PJ side by
// side, over the four-year window.
func (s *DelinquencyService) StateDetail(ctx context.Context, uf string, loc i18n.Locale) (*StateDetail, error) {
	reg, ok := stateRegion[uf]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, uf)
	}
	start, end := nplWindow(time.Now().UTC())

	var statePF, statePJ, regionPF, regionPJ transform.Series
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(location, mode string, dst *transform.Series) {
		g.Go(func() error {
			code, err := nplCode(location, mode)
			if err != nil {
				return err
			}
			series, err := s.client.SGSSeries(gctx, code, start, end)
			if err != nil {
				return fmt.Errorf("series %s/%s: %w", location, mode, err)
			}
			*dst = series
			return nil
		})
	}
	fetch(uf, ModePF, &statePF)
	fetch(uf, ModePJ, &statePJ)
	fetch(reg, ModePF, &regionPF)
	fetch(reg, ModePJ, &regionPJ)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &StateDetail{
		State:      uf,
		Name:       stateNames[uf],
		Region:     reg,
		RegionName: i18n.T("region_"+reg, loc),
		Color:      regionColors[reg].Hex(),
		Comparisons: []ModeComparison{
			{Mode: ModePF, Label: i18n.T("inad_pf", loc), State: seriesView(statePF), Region: seriesView(regionPF)},
			{Mode: ModePJ, Label: i18n.T("inad_pj", loc), State: seriesView(statePJ), Region: seriesView(regionPJ)},
		},
	}
	if len(out.Comparisons[0].State.Dates) == 0 && len(out.Comparisons[1].State.Dates) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// ExportTable downloads the PF and PJ histories of every region or every
// state inside a date range, concatenated long format: one row per
// (date, location, segment). Locations whose feeds fail are skipped;
// progress is reported per fetch step under the job id.
func (s *DelinquencyService) ExportTable(ctx context.Context, scope string, start, end time.Time, loc i18n.Locale, job string) (*transform.Table, error) {
	var locations []string
	switch scope {
	case ScopeRegions:
		locations = regionOrder
	case ScopeStates:
		locations = allStates
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, scope)
	}
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	out := transform.NewTable("Date", "Valor", "Local", "Modo", "NomeLocal")
	total := len(locations) * 2
	step := 0
	for _, location := range locations {
		name := stateNames[location]
		if isRegion(location) {
			name = i18n.T("region_"+location, loc)
		}
		for _, mode := range []string{ModePF, ModePJ} {
			step++
			code, err := nplCode(location, mode)
			if err != nil {
				return nil, err
			}
			series, err := s.client.SGSSeries(ctx, code, start, end)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.WarnContext(ctx, "delinquency export fetch failed",
					slog.String("location", location),
					slog.String("mode", mode),
					slog.String("error", err.Error()))
				notifyProgress(ctx, s.sink, job, location, step, total)
				continue
			}
			for _, p := range series {
				out.Append(transform.Row{
					"Date":      transform.Time(p.Date),
					"Valor":     p.Value,
					"Local":     transform.Text(location),
					"Modo":      transform.Text(strings.ToUpper(mode)),
					"NomeLocal": transform.Text(name),
				})
			}
			notifyProgress(ctx, s.sink, job, location, step, total)
		}
	}
	if out.Len() == 0 {
		return nil, ErrNoData
	}
	notifyRefresh(ctx, s.sink, "delinquency", out.Len())
	return out, nil
}

// latestPair holds the newest PF and PJ levels of one location.
type latestPair struct {
	pf *float64
	pj *float64
}

// latestLevels fan-out fetches the newest PF and PJ observation of every
// location. Individual feed failures leave nil levels; only cancellation
// aborts the whole build.
func (s *DelinquencyService) latestLevels(ctx context.Context, locations []string, job string) (map[string]latestPair, error) {
	pairs := make([]latestPair, len(locations))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nplFetchConcurrency)
	for i, location := range locations {
		g.Go(func() error {
			pairs[i] = latestPair{
				pf: s.latestValue(gctx, location, ModePF),
				pj: s.latestValue(gctx, location, ModePJ),
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			notifyProgress(gctx, s.sink, job, location, int(done.Add(1)), len(locations))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]latestPair, len(locations))
	for i, location := range locations {
		out[location] = pairs[i]
	}
	return out, nil
}

// latestValue fetches the newest observation of one series, nil when the
// feed fails or comes back empty.
func (s *DelinquencyService) latestValue(ctx context.Context, location, mode string) *float64 {
	code, err := nplCode(location, mode)
	if err != nil {
		return nil
	}
	series, err := s.client.SGSSeriesLast(ctx, code, 1)
	if err != nil {
		s.logger.WarnContext(ctx, "latest delinquency fetch failed",
			slog.String("location", location),
			slog.String("mode", mode),
			slog.String("error", err.Error()))
		return nil
	}
	for i := len(series) - 1; i >= 0; i-- {
		if v, ok := series[i].Value.Float(); ok {
			return &v
		}
	}
	return nil
}

// nplCode resolves the series code of a location and borrower segment.
func nplCode(location, mode string) (int, error) {
	modes, ok := nplCatalog[location]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}
	code, ok := modes[mode]
	if !ok {
		return 0, fmt.Errorf("%w: mode %q", ErrInvalidInput, mode)
	}
	return code, nil
}

// nplWindow is the chart window, opening at a month boundary.
func nplWindow(today time.Time) (time.Time, time.Time) {
	start := time.Date(today.Year()-nplWindowYears, today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, today
}

// pairMean averages whichever segment levels are present.
func pairMean(p latestPair) *float64 {
	switch {
	case p.pf != nil && p.pj != nil:
		m := (*p.pf + *p.pj) / 2
		return &m
	case p.pf != nil:
		return p.pf
	case p.pj != nil:
		return p.pj
	}
	return nil
}

// seriesView flattens a series into parallel date and value arrays.
func seriesView(s transform.Series) SeriesView {
	v := SeriesView{
		Dates:  make([]string, 0, len(s)),
		Values: make([]float64, 0, len(s)),
	}
	for _, p := range s {
		f, ok := p.Value.Float()
		if !ok {
			continue
		}
		v.Dates = append(v.Dates, p.Date.Format("2006-01-02"))
		v.Values = append(v.Values, f)
	}
	return v
}

func modeLabel(mode string, loc i18n.Locale) string {
	switch mode {
	case ModePF:
		return i18n.T("inad_pf", loc)
	case ModePJ:
		return i18n.T("inad_pj", loc)
	default:
		return i18n.T("inad_total", loc)
	}
}

func validMode(mode string) bool {
	switch mode {
	case ModePF, ModePJ, ModeTotal:
		return true
	}
	return false
}

func isRegion(location string) bool {
	_, ok := regionStates[location]
	return ok
}
