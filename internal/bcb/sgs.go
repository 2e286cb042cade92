package bcb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bcbradar/internal/transform"
)

// sgsTTL is how long SGS responses stay cached. Series revise at most daily.
const sgsTTL = time.Hour

type sgsObservation struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// SGSSeries fetches one SGS series over a closed date range. Observations
// arrive date-ascending. Values the API sends empty or unparseable become
// recorded gaps rather than dropped dates.
func (c *Client) SGSSeries(ctx context.Context, code int, start, end time.Time) (transform.Series, error) {
	q := url.Values{}
	q.Set("formato", "json")
	q.Set("dataInicial", start.Format("02/01/2006"))
	q.Set("dataFinal", end.Format("02/01/2006"))
	endpoint := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados?%s",
		c.cfg.SGSBaseURL, code, q.Encode())
	return c.sgsFetch(ctx, code, endpoint)
}

// SGSSeriesLast fetches the most recent n observations of a series.
func (c *Client) SGSSeriesLast(ctx context.Context, code, n int) (transform.Series, error) {
	endpoint := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados/ultimos/%d?formato=json",
		c.cfg.SGSBaseURL, code, n)
	return c.sgsFetch(ctx, code, endpoint)
}

func (c *Client) sgsFetch(ctx context.Context, code int, endpoint string) (transform.Series, error) {
	body, err := c.get(ctx, endpoint, sgsTTL)
	if err != nil {
		return nil, fmt.Errorf("sgs series %d: %w", code, err)
	}

	var raw []sgsObservation
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("sgs series %d: decode: %w", code, err)
	}

	series := make(transform.Series, 0, len(raw))
	for _, obs := range raw {
		d, err := time.ParseInLocation("02/01/2006", obs.Data, time.UTC)
		if err != nil {
			continue
		}
		p := transform.Point{Date: d}
		if v, err := strconv.ParseFloat(strings.TrimSpace(obs.Valor), 64); err == nil {
			p.Value = transform.Number(v)
		}
		series = append(series, p)
	}
	series.Sort()
	return series, nil
}
