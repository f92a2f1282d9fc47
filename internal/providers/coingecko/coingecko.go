// Package coingecko adapts CoinGecko's public /global and /simple/price
// endpoints into a domain.CoinGeckoSnapshot builder. Dominance deltas are
// derived from a short rolling history kept in-process, since CoinGecko's
// free tier does not expose them directly.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/provider"
)

const Name = "coingecko"

type Adapter struct {
	client   *http.Client
	baseURL  string
	registry *provider.Registry

	mu       sync.Mutex
	lastDom  map[string]float64
	lastVol  float64
	hasPrior bool
}

func New(client *http.Client, baseURL string, registry *provider.Registry) *Adapter {
	return &Adapter{client: client, baseURL: baseURL, registry: registry}
}

type globalResp struct {
	Data struct {
		TotalMarketCap          map[string]float64 `json:"total_market_cap"`
		TotalVolume             map[string]float64 `json:"total_volume"`
		MarketCapPercentage     map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

type simplePriceResp map[string]map[string]float64

func (a *Adapter) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return &provider.Error{Provider: Name, Kind: provider.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &provider.Error{Provider: Name, Kind: provider.ErrHTTP5xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return &provider.Error{Provider: Name, Kind: provider.ErrHTTP4xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
	}
	return nil
}

// Snapshot fetches the current global dominance/market-cap state plus
// BTC/ETH spot prices, and derives rolling deltas against the previous call
// (the "_d" suffixed fields forecast.MarketSignal consumes).
func (a *Adapter) Snapshot(ctx context.Context) (domain.CoinGeckoSnapshot, error) {
	start := time.Now()
	var global globalResp
	if err := a.getJSON(ctx, a.baseURL+"/api/v3/global", &global); err != nil {
		a.registry.RecordFailure(Name, errKind(err))
		return domain.CoinGeckoSnapshot{}, err
	}
	var prices simplePriceResp
	priceURL := a.baseURL + "/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd&include_24hr_change=true"
	if err := a.getJSON(ctx, priceURL, &prices); err != nil {
		a.registry.RecordFailure(Name, errKind(err))
		return domain.CoinGeckoSnapshot{}, err
	}
	a.registry.RecordSuccess(Name, time.Since(start))

	dom := map[string]float64{
		"btc":  global.Data.MarketCapPercentage["btc"],
		"eth":  global.Data.MarketCapPercentage["eth"],
		"usdt": global.Data.MarketCapPercentage["usdt"],
		"usdc": global.Data.MarketCapPercentage["usdc"],
	}
	totalVol := global.Data.TotalVolume["usd"]
	totalMcap := global.Data.TotalMarketCap["usd"]

	a.mu.Lock()
	deltas := map[string]float64{}
	if a.hasPrior {
		deltas["btc_d"] = dom["btc"] - a.lastDom["btc"]
		deltas["usdt_d"] = dom["usdt"] - a.lastDom["usdt"]
		deltas["usdc_d"] = dom["usdc"] - a.lastDom["usdc"]
		deltas["total_vol"] = totalVol - a.lastVol
	} else {
		deltas["btc_d"], deltas["usdt_d"], deltas["usdc_d"], deltas["total_vol"] = 0, 0, 0, 0
	}
	a.lastDom = dom
	a.lastVol = totalVol
	a.hasPrior = true
	a.mu.Unlock()

	return domain.CoinGeckoSnapshot{
		BTCPriceUSD:  prices["bitcoin"]["usd"],
		ETHPriceUSD:  prices["ethereum"]["usd"],
		BTCChg24h:    prices["bitcoin"]["usd_24h_change"],
		ETHChg24h:    prices["ethereum"]["usd_24h_change"],
		TotalVolUSD:  totalVol,
		TotalMcapUSD: totalMcap,
		Dominance:    dom,
		Deltas:       deltas,
	}, nil
}

func errKind(err error) provider.ErrorKind {
	if pe, ok := err.(*provider.Error); ok {
		return pe.Kind
	}
	return provider.ErrNetwork
}
