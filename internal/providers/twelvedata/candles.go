package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/bars"
	"github.com/marketintel/analytics/internal/provider"
)

const candleOutputSize = 3000

type seriesResp struct {
	Meta struct {
		Timezone string `json:"timezone"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
	Status string `json:"status"`
}

// FetchCandles pulls 15-minute bars from /time_series. Timestamps come as
// local wall-clock strings in the series' reported timezone; unresolvable
// zones fall back to UTC. Only close and volume are carried.
func (a *Adapter) FetchCandles(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
	if a.apiKey == "" {
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrMissingKey, Err: fmt.Errorf("no api key")}
	}

	reqURL := fmt.Sprintf("%s/time_series?symbol=%s&interval=15min&outputsize=%d&apikey=%s",
		a.baseURL, url.QueryEscape(symbol), candleOutputSize, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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

	var parsed seriesResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.registry.RecordFailure(Name+"_candles", provider.ErrSchema)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
	}
	if parsed.Status == "error" || len(parsed.Values) == 0 {
		a.registry.RecordFailure(Name+"_candles", provider.ErrEmpty)
		return nil, &provider.Error{Provider: Name, Kind: provider.ErrEmpty, Err: fmt.Errorf("empty series")}
	}

	loc := time.UTC
	if parsed.Meta.Timezone != "" {
		if l, err := time.LoadLocation(parsed.Meta.Timezone); err == nil {
			loc = l
		}
	}

	out := make([]domain.PriceBar, 0, len(parsed.Values))
	for _, v := range parsed.Values {
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", v.Datetime, loc)
		if err != nil {
			continue
		}
		closePx, err := strconv.ParseFloat(v.Close, 64)
		if err != nil || closePx == 0 {
			continue
		}
		volume, _ := strconv.ParseFloat(v.Volume, 64)
		out = append(out, domain.PriceBar{
			Asset:  symbol,
			TsUTC:  ts.UTC(),
			Close:  closePx,
			Volume: volume,
		})
	}
	// The API returns newest first; bar consumers expect oldest first.
	sort.Slice(out, func(i, j int) bool { return out[i].TsUTC.Before(out[j].TsUTC) })
	a.registry.RecordSuccess(Name+"_candles", time.Since(start))
	return out, nil
}

// NewCandleSource exposes the time-series endpoint as the last bar-sync
// fallback.
func (a *Adapter) NewCandleSource() bars.Source {
	return bars.Source{
		Name: Name,
		Fetch: func(ctx context.Context, symbol string) ([]domain.PriceBar, error) {
			return a.FetchCandles(ctx, symbol)
		},
	}
}
