package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/bars"
	"github.com/marketintel/analytics/internal/provider"
)

// candleChart is the chart response subset carrying the OHLCV series.
// Yahoo returns nulls inside the arrays for halted intervals, so every
// field decodes through a pointer.
type candleChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// FetchCandles pulls 5 days of 15-minute bars for a Yahoo symbol from the
// chart endpoint. The ^STOXX50E symbol intermittently returns an empty
// series; it is retried once as ^STOXX.
func (a *Adapter) FetchCandles(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	rows, err := a.fetchCandleChart(ctx, symbol)
	if (err != nil || len(rows) == 0) && symbol == "^STOXX50E" {
		return a.fetchCandleChart(ctx, "^STOXX")
	}
	return rows, err
}

func (a *Adapter) fetchCandleChart(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=5d&interval=15m", a.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		a.registry.RecordFailure(Name+"_candles", provider.ErrNetwork)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		a.registry.RecordFailure(Name+"_candles", provider.ErrRateLimited)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrRateLimited, Err: fmt.Errorf("status 429")}
	}
	if resp.StatusCode >= 400 {
		kind := provider.ErrHTTP4xx
		if resp.StatusCode >= 500 {
			kind = provider.ErrHTTP5xx
		}
		a.registry.RecordFailure(Name+"_candles", kind)
		return nil, &provider.Error{Provider: Name, Kind: kind, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var parsed candleChart
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.registry.RecordFailure(Name+"_candles", provider.ErrSchema)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		a.registry.RecordFailure(Name+"_candles", provider.ErrEmpty)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrEmpty, Err: fmt.Errorf("no chart series")}
	}

	series := parsed.Chart.Result[0]
	quote := series.Indicators.Quote[0]
	deref := func(vals []*float64, i int) float64 {
		if i < len(vals) && vals[i] != nil {
			return *vals[i]
		}
		return 0
	}

	out := make([]domain.PriceBar, 0, len(series.Timestamp))
	for i, ts := range series.Timestamp {
		closePx := deref(quote.Close, i)
		if closePx == 0 {
			continue
		}
		out = append(out, domain.PriceBar{
			Asset:  symbol,
			TsUTC:  time.Unix(ts, 0).UTC(),
			Open:   deref(quote.Open, i),
			High:   deref(quote.High, i),
			Low:    deref(quote.Low, i),
			Close:  closePx,
			Volume: deref(quote.Volume, i),
		})
	}
	a.registry.RecordSuccess(Name+"_candles", time.Since(start))
	return out, nil
}

// NewCandleSource exposes the chart candles as the bar syncer's primary
// source.
func (a *Adapter) NewCandleSource() bars.Source {
	return bars.Source{
		Name: Name,
		Fetch: func(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
			return a.FetchCandles(ctx, symbol)
		},
	}
}
