package bcb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"bcbradar/internal/transform"
)

// Cache lifetimes per OData family. Pix settles intraday, the rest are
// published on slower cycles.
const (
	pixTTL          = 10 * time.Minute
	ifdataTTL       = time.Hour
	expectationsTTL = 30 * time.Minute
	ratesTTL        = 30 * time.Minute
)

type odataEnvelope struct {
	Value []map[string]any `json:"value"`
}

// PixSettlements fetches daily settled Pix statistics from the given date
// onward: transaction count, total volume and mean value per day.
func (c *Client) PixSettlements(ctx context.Context, start time.Time) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("$select", "Data,Quantidade,Total,Media")
	q.Set("$filter", fmt.Sprintf("Data ge %s", start.Format("2006-01-02")))
	q.Set("$orderby", "Data asc")
	endpoint := fmt.Sprintf("%s/olinda/servico/SPI/versao/v1/odata/PixLiquidadosAtual?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, pixTTL,
		[]string{"Data", "Quantidade", "Total", "Media"},
		map[string]bool{"Data": true})
	if err != nil {
		return nil, fmt.Errorf("pix settlements: %w", err)
	}
	return t, nil
}

// IFDataRegistry fetches the institution register for a quarter, given as
// yyyymm of the quarter-closing month.
func (c *Client) IFDataRegistry(ctx context.Context, yearMonth int) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("@AnoMes", fmt.Sprintf("%d", yearMonth))
	endpoint := fmt.Sprintf("%s/olinda/servico/IFDATA/versao/v1/odata/IfDataCadastro(AnoMes=@AnoMes)?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, ifdataTTL,
		[]string{"CodInst", "NomeInstituicao", "Sr"}, nil)
	if err != nil {
		return nil, fmt.Errorf("ifdata registry %d: %w", yearMonth, err)
	}
	return t, nil
}

// IFDataValues fetches one report of the IF.Data accounting figures for a
// quarter as long-format rows: institution code, variable name, balance.
func (c *Client) IFDataValues(ctx context.Context, yearMonth, instType, report int) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("@AnoMes", fmt.Sprintf("%d", yearMonth))
	q.Set("@TipoInstituicao", fmt.Sprintf("%d", instType))
	q.Set("@Relatorio", fmt.Sprintf("'%d'", report))
	endpoint := fmt.Sprintf(
		"%s/olinda/servico/IFDATA/versao/v1/odata/IfDataValores(AnoMes=@AnoMes,TipoInstituicao=@TipoInstituicao,Relatorio=@Relatorio)?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, ifdataTTL,
		[]string{"CodInst", "NomeColuna", "Saldo"}, nil)
	if err != nil {
		return nil, fmt.Errorf("ifdata values %d report %d: %w", yearMonth, report, err)
	}
	return t, nil
}

// MarketExpectations fetches the latest annual Focus survey rows for one
// indicator, most recent survey dates first.
func (c *Client) MarketExpectations(ctx context.Context, indicator string, top int) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("$filter", fmt.Sprintf("Indicador eq %s", odataString(indicator)))
	q.Set("$orderby", "Data desc")
	q.Set("$top", fmt.Sprintf("%d", top))
	endpoint := fmt.Sprintf("%s/olinda/servico/Expectativas/versao/v1/odata/ExpectativasMercadoAnuais?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, expectationsTTL,
		[]string{"Indicador", "Data", "DataReferencia", "Media", "Mediana",
			"DesvioPadrao", "Minimo", "Maximo", "numeroRespondentes"},
		map[string]bool{"Data": true})
	if err != nil {
		return nil, fmt.Errorf("expectations %q: %w", indicator, err)
	}
	return t, nil
}

// DailyRates fetches the per-institution retail rates of one daily-published
// credit modality, most recent period first.
func (c *Client) DailyRates(ctx context.Context, modality string, top int) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("$filter", fmt.Sprintf("Modalidade eq %s", odataString(modality)))
	q.Set("$orderby", "InicioPeriodo desc")
	q.Set("$top", fmt.Sprintf("%d", top))
	endpoint := fmt.Sprintf("%s/olinda/servico/taxaJuros/versao/v2/odata/TaxasJurosDiariaPorInicioPeriodo?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, ratesTTL,
		[]string{"InicioPeriodo", "FimPeriodo", "Modalidade", "Posicao",
			"InstituicaoFinanceira", "TaxaJurosAoMes", "TaxaJurosAoAno"},
		map[string]bool{"InicioPeriodo": true, "FimPeriodo": true})
	if err != nil {
		return nil, fmt.Errorf("daily rates %q: %w", modality, err)
	}
	return t, nil
}

// MonthlyRates fetches the per-institution rates of one monthly-published
// credit modality, most recent month first.
func (c *Client) MonthlyRates(ctx context.Context, modality string, top int) (*transform.Table, error) {
	q := url.Values{}
	q.Set("$format", "json")
	q.Set("$filter", fmt.Sprintf("Modalidade eq %s", odataString(modality)))
	q.Set("$orderby", "Mes desc")
	q.Set("$top", fmt.Sprintf("%d", top))
	endpoint := fmt.Sprintf("%s/olinda/servico/taxaJuros/versao/v2/odata/TaxasJurosMensalPorMes?%s",
		c.cfg.OlindaBaseURL, q.Encode())

	t, err := c.fetchTable(ctx, endpoint, ratesTTL,
		[]string{"Mes", "Modalidade", "Posicao", "InstituicaoFinanceira",
			"TaxaJurosAoMes", "TaxaJurosAoAno"},
		map[string]bool{"Mes": true})
	if err != nil {
		return nil, fmt.Errorf("monthly rates %q: %w", modality, err)
	}
	return t, nil
}

// fetchTable fetches an OData endpoint and decodes its value array into a
// table. Wanted columns keep their order; a wanted column no row carries is
// omitted from the result so downstream required-column checks can fire. An
// empty value array yields an empty table with every wanted column declared.
func (c *Client) fetchTable(ctx context.Context, endpoint string, ttl time.Duration, wanted []string, dateCols map[string]bool) (*transform.Table, error) {
	body, err := c.get(ctx, endpoint, ttl)
	if err != nil {
		return nil, err
	}

	var env odataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(env.Value) == 0 {
		return transform.NewTable(wanted...), nil
	}

	seen := make(map[string]bool, len(wanted))
	for _, raw := range env.Value {
		for _, col := range wanted {
			if _, ok := raw[col]; ok {
				seen[col] = true
			}
		}
	}
	cols := make([]string, 0, len(wanted))
	for _, col := range wanted {
		if seen[col] {
			cols = append(cols, col)
		}
	}

	t := transform.NewTable(cols...)
	for _, raw := range env.Value {
		row := make(transform.Row, len(cols))
		for _, col := range cols {
			if cell, ok := coerceCell(raw[col], dateCols[col]); ok {
				row[col] = cell
			}
		}
		t.Append(row)
	}
	return t, nil
}

// coerceCell maps a decoded JSON value to a cell. Unparseable dates and
// unsupported types drop to missing.
func coerceCell(v any, isDate bool) (transform.Cell, bool) {
	switch val := v.(type) {
	case nil:
		return transform.Cell{}, false
	case float64:
		return transform.Number(val), true
	case string:
		if isDate {
			if d, ok := parseOlindaDate(val); ok {
				return transform.Time(d), true
			}
			return transform.Cell{}, false
		}
		return transform.Text(val), true
	default:
		return transform.Cell{}, false
	}
}

// parseOlindaDate handles the date renderings Olinda services use. All
// results normalize to UTC midnight so date equality works across columns.
func parseOlindaDate(s string) (time.Time, bool) {
	layouts := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// odataString quotes a literal for an OData $filter expression.
func odataString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
