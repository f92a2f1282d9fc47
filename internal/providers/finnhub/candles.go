package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/bars"
	"github.com/marketintel/analytics/internal/provider"
)

// candleLookbackDays bounds how much history one candle fetch requests.
const candleLookbackDays = 30

var cryptoVenues = map[string]bool{"BINANCE": true, "COINBASE": true, "KRAKEN": true}

type candleResp struct {
	Status string    `json:"s"`
	Ts     []int64   `json:"t"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

// FetchCandles pulls 15-minute candles from the stock or crypto candle
// endpoint (picked by the venue prefix, e.g. "BINANCE:BTCUSDT"). Finnhub's
// candle payload carries only close and volume series, so the OHL fields
// stay zero; bar consumers here only read closes.
func (a *Adapter) FetchCandles(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	if a.apiKey == "" {
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrMissingKey, Err: fmt.Errorf("no api key")}
	}

	endpoint := "/api/v1/stock/candle"
	if venue, _, ok := strings.Cut(symbol, ":"); ok && cryptoVenues[venue] {
		endpoint = "/api/v1/crypto/candle"
	}
	now := time.Now().UTC()
	url := fmt.Sprintf("%s%s?symbol=%s&resolution=15&from=%d&to=%d&token=%s",
		a.baseURL, endpoint, symbol, now.AddDate(0, 0, -candleLookbackDays).Unix(), now.Unix(), a.apiKey)

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

	var parsed candleResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.registry.RecordFailure(Name+"_candles", provider.ErrSchema)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
	}
	if parsed.Status != "ok" || len(parsed.Ts) == 0 || len(parsed.Close) == 0 {
		a.registry.RecordFailure(Name+"_candles", provider.ErrEmpty)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrEmpty, Err: fmt.Errorf("status %q", parsed.Status)}
	}

	out := make([]domain.PriceBar, 0, len(parsed.Ts))
	for i, ts := range parsed.Ts {
		if i >= len(parsed.Close) || parsed.Close[i] == 0 {
			continue
		}
		volume := 0.0
		if i < len(parsed.Volume) {
			volume = parsed.Volume[i]
		}
		out = append(out, domain.PriceBar{
			Asset:  symbol,
			TsUTC:  time.Unix(ts, 0).UTC(),
			Close:  parsed.Close[i],
			Volume: volume,
		})
	}
	a.registry.RecordSuccess(Name+"_candles", time.Since(start))
	return out, nil
}

// NewCandleSource exposes the candle endpoints as a bar-sync fallback.
func (a *Adapter) NewCandleSource() bars.Source {
	return bars.Source{
		Name: Name,
		Fetch: func(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
			return a.FetchCandles(ctx, symbol)
		},
	}
}
