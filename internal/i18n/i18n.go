// Package i18n provides display-name translations for report view models.
//
// The catalog is a fixed pt/en table. Lookups never drive control flow:
// services key their logic on codes and column names, and only pass
// translated strings through to response payloads. Unknown keys come
// back unchanged so a missing entry degrades to the key, not an error.
package i18n

// Locale selects a translation column. Portuguese is the default and
// the fallback for unsupported values.
type Locale string

const (
	PT Locale = "pt"
	EN Locale = "en"
)

// ParseLocale maps a request parameter to a supported locale.
func ParseLocale(s string) Locale {
	if Locale(s) == EN {
		return EN
	}
	return PT
}

type entry struct {
	pt string
	en string
}

var catalog = map[string]entry{
	// Application
	"app_title":    {pt: "Laboratório de Dados Públicos", en: "Public Data Lab"},
	"app_subtitle": {pt: "Portal de Dados Abertos do Banco Central do Brasil", en: "Open Data Portal - Central Bank of Brazil"},

	// Module titles
	"spi_title":    {pt: "SPI — Pix", en: "SPI — Pix"},
	"sgs_title":    {pt: "SGS — Séries Temporais", en: "SGS — Time Series"},
	"exp_title":    {pt: "Expectativas", en: "Expectations"},
	"ifdata_title": {pt: "IF.Data", en: "IF.Data"},
	"taxas_title":  {pt: "Taxas de Juros", en: "Interest Rates"},
	"inad_title":   {pt: "Inadimplência de Operações de Crédito", en: "Credit Non-Performing Loans"},

	// Pix KPIs
	"kpi_days":   {pt: "Total de Dias", en: "Total Days"},
	"kpi_qty":    {pt: "Qtd. Total Transações", en: "Total Transactions"},
	"kpi_volume": {pt: "Volume Total (R$)", en: "Total Volume (R$)"},
	"kpi_avg":    {pt: "Média Diária (R$)", en: "Daily Average (R$)"},

	// Period comparison
	"period_a":        {pt: "Período A", en: "Period A"},
	"period_b":        {pt: "Período B", en: "Period B"},
	"comp_avg_qty":    {pt: "Média Qtd. Diária", en: "Avg. Daily Count"},
	"comp_avg_vol":    {pt: "Volume Médio Diário", en: "Avg. Daily Volume"},
	"comp_avg_ticket": {pt: "Ticket Médio", en: "Avg. Ticket"},
	"variation":       {pt: "Variação", en: "Change"},

	// Descriptive statistics
	"stat_mean":   {pt: "Média", en: "Mean"},
	"stat_median": {pt: "Mediana", en: "Median"},
	"stat_std":    {pt: "Desvio Padrão", en: "Std. Deviation"},
	"stat_min":    {pt: "Mínimo", en: "Minimum"},
	"stat_max":    {pt: "Máximo", en: "Maximum"},
	"stat_q1":     {pt: "Q1 (25%)", en: "Q1 (25%)"},
	"stat_q3":     {pt: "Q3 (75%)", en: "Q3 (75%)"},

	// Series axes and frequencies
	"primary_axis":   {pt: "Eixo Y Primário", en: "Primary Y-Axis"},
	"secondary_axis": {pt: "Eixo Y Secundário", en: "Secondary Y-Axis"},
	"freq_original":  {pt: "Original", en: "Original"},
	"freq_monthly":   {pt: "Mensal", en: "Monthly"},
	"freq_annual":    {pt: "Anual", en: "Annual"},

	// Series catalog categories
	"sgs_cat_inflation": {pt: "Inflação", en: "Inflation"},
	"sgs_cat_interest":  {pt: "Juros", en: "Interest Rates"},
	"sgs_cat_exchange":  {pt: "Câmbio", en: "Exchange Rate"},
	"sgs_cat_activity":  {pt: "Atividade Econômica", en: "Economic Activity"},
	"sgs_cat_credit":    {pt: "Crédito", en: "Credit"},
	"sgs_cat_fiscal":    {pt: "Fiscal", en: "Fiscal"},

	// Per-series statistics columns
	"sgs_code":         {pt: "Código", en: "Code"},
	"sgs_observations": {pt: "Observações", en: "Observations"},
	"sgs_first_date":   {pt: "Primeira data", en: "First date"},
	"sgs_last_date":    {pt: "Última data", en: "Last date"},
	"sgs_missing":      {pt: "Valores ausentes", en: "Missing values"},
	"sgs_frequency":    {pt: "Frequência", en: "Frequency"},

	// Rankings. The expected-loss variants swap the labels because a
	// lower loss ranks first on the "largest" side.
	"ifd_largest":      {pt: "Maiores", en: "Largest"},
	"ifd_smallest":     {pt: "Menores", en: "Smallest"},
	"ifd_largest_pec":  {pt: "Menores", en: "Smallest"},
	"ifd_smallest_pec": {pt: "Maiores", en: "Largest"},
	"ifd_institution":  {pt: "Instituição", en: "Institution"},
	"ifd_variable":     {pt: "Variável", en: "Variable"},
	"ifd_value":        {pt: "Valor", en: "Value"},
	"ifd_position":     {pt: "Posição", en: "Position"},
	"ifd_of_ifs":       {pt: "de %d IFs", en: "of %d FIs"},

	// Focus survey table
	"exp_year":        {pt: "Ano", en: "Year"},
	"exp_survey_date": {pt: "Data da pesquisa", en: "Survey date"},
	"exp_respondents": {pt: "respondentes", en: "respondents"},

	"tax_largest":     {pt: "Maiores Taxas", en: "Highest Rates"},
	"tax_smallest":    {pt: "Menores Taxas", en: "Lowest Rates"},
	"tax_institution": {pt: "Instituição", en: "Institution"},
	"tax_modality":    {pt: "Modalidade", en: "Modality"},
	"tax_rate":        {pt: "Taxa (% a.a.)", en: "Rate (% p.a.)"},
	"tax_position":    {pt: "Posição", en: "Position"},
	"tax_of_banks":    {pt: "de %d bancos", en: "of %d banks"},

	// Delinquency modes and regions
	"inad_pf":            {pt: "Pessoa Física", en: "Individuals"},
	"inad_pj":            {pt: "Pessoa Jurídica", en: "Corporates"},
	"inad_total":         {pt: "Total", en: "Total"},
	"inad_region":        {pt: "Região", en: "Region"},
	"inad_state":         {pt: "Estado", en: "State"},
	"inad_scope_regions": {pt: "Regiões", en: "Regions"},
	"inad_scope_states":  {pt: "Estados", en: "States"},

	"region_N":  {pt: "Norte", en: "North"},
	"region_NE": {pt: "Nordeste", en: "Northeast"},
	"region_CO": {pt: "Centro-Oeste", en: "Central-West"},
	"region_SE": {pt: "Sudeste", en: "Southeast"},
	"region_S":  {pt: "Sul", en: "South"},

	// Shared table columns
	"col_date":     {pt: "Data", en: "Date"},
	"col_quantity": {pt: "Quantidade", en: "Quantity"},
	"col_total":    {pt: "Total (R$)", en: "Total (R$)"},
	"col_average":  {pt: "Média (R$)", en: "Average (R$)"},
}

// T returns the translation of key in the given locale. Unknown keys
// return the key itself.
func T(key string, loc Locale) string {
	e, ok := catalog[key]
	if !ok {
		return key
	}
	if loc == EN {
		return e.en
	}
	return e.pt
}
