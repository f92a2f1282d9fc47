// Package twelvedata adapts Twelve Data's /quote endpoint into a
// quoterouter.QuoteProvider, the last-resort equity/FX venue behind Yahoo
// and Finnhub.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/provider"
)

const Name = "twelvedata"

type Adapter struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	registry *provider.Registry
}

func New(client *http.Client, baseURL, apiKey string, registry *provider.Registry) *Adapter {
	return &Adapter{client: client, baseURL: baseURL, apiKey: apiKey, registry: registry}
}

type quoteResp struct {
	Close         string `json:"close"`
	PercentChange string `json:"percent_change"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

func (a *Adapter) NewQuoteProvider() quoterouter.QuoteProvider {
	return quoterouter.QuoteProvider{
		Name:    Name,
		Enabled: a.apiKey != "",
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			start := time.Now()
			if a.apiKey == "" {
				return provider.Result[domain.Quote]{OK: false, ErrorCode: provider.ErrMissingKey}
			}
			url := fmt.Sprintf("%s/quote?symbol=%s&apikey=%s", a.baseURL, symbol, a.apiKey)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return provider.Result[domain.Quote]{OK: false, ErrorCode: provider.ErrNetwork}
			}
			resp, err := a.client.Do(req)
			if err != nil {
				a.registry.RecordFailure(Name, provider.ErrNetwork)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrNetwork}
			}
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				a.registry.RecordFailure(Name, provider.ErrRateLimited)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrRateLimited}
			}
			if resp.StatusCode >= 400 {
				a.registry.RecordFailure(Name, provider.ErrHTTP4xx)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrHTTP4xx}
			}
			var q quoteResp
			if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
				a.registry.RecordFailure(Name, provider.ErrSchema)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrSchema}
			}
			if q.Status == "error" {
				a.registry.RecordFailure(Name, provider.ErrSchema)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrSchema}
			}
			price, err := strconv.ParseFloat(q.Close, 64)
			if err != nil || price == 0 {
				a.registry.RecordFailure(Name, provider.ErrMissingPrice)
				return provider.Result[domain.Quote]{OK: false, Latency: time.Since(start), ErrorCode: provider.ErrMissingPrice}
			}
			changePct, _ := strconv.ParseFloat(q.PercentChange, 64)
			a.registry.RecordSuccess(Name, time.Since(start))
			return provider.Result[domain.Quote]{
				OK:      true,
				Latency: time.Since(start),
				Data: domain.Quote{
					Price:     price,
					ChangePct: &changePct,
					TsUTC:     time.Now().UTC(),
					Currency:  "USD",
					Source:    Name,
				},
			}
		},
		Search: func(ctx context.Context, symbol string) (string, bool) {
			return symbol, true
		},
	}
}
