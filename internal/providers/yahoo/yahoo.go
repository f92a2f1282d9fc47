// Package yahoo adapts Yahoo Finance's unauthenticated chart/quote endpoints
// into the quoterouter.QuoteProvider and news.FinanceNewsProvider contracts,
// and assembles the cross-asset market snapshot from the same chart endpoint.
package yahoo

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/news"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/provider"
)

const Name = "yahoo"

// symbolMap translates the router's canonical asset names into Yahoo's own
// chart-endpoint tickers.
var symbolMap = map[string]string{
	"DXY":       "DX-Y.NYB",
	"OIL":       "CL=F",
	"GOLD":      "GC=F",
	"SILVER":    "SI=F",
	"COPPER":    "HG=F",
	"NASDAQ":    "^IXIC",
	"FTSE":      "^FTSE",
	"EUROSTOXX": "^STOXX50E",
	"BIST":      "XU100.IS",
	"VIX":       "^VIX",
	"BTC":       "BTC-USD",
	"ETH":       "ETH-USD",
	"QQQ":       "QQQ",
}

// Adapter wraps a pre-wrapped HTTP client (rate limit + circuit + budget
// middleware already applied by internal/net/client.Manager) and records
// call outcomes against the shared provider.Registry.
type Adapter struct {
	client   *http.Client
	baseURL  string
	registry *provider.Registry
}

func New(client *http.Client, baseURL string, registry *provider.Registry) *Adapter {
	return &Adapter{client: client, baseURL: baseURL, registry: registry}
}

func (a *Adapter) resolve(symbol string) string {
	if mapped, ok := symbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// chartResult is the subset of Yahoo's v8/finance/chart response used here.
type chartResult struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice            float64 `json:"regularMarketPrice"`
				ChartPreviousClose            float64 `json:"chartPreviousClose"`
				PreviousClose                 float64 `json:"previousClose"`
				Currency                      string  `json:"currency"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

func (a *Adapter) fetchChart(ctx context.Context, symbol string) (price, changePct float64, err error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s", a.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrNetwork, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrHTTP5xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrHTTP4xx, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	var parsed chartResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrSchema, Err: err}
	}
	if len(parsed.Chart.Result) == 0 {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrEmpty, Err: fmt.Errorf("no chart result")}
	}
	meta := parsed.Chart.Result[0].Meta
	prevClose := meta.ChartPreviousClose
	if prevClose == 0 {
		prevClose = meta.PreviousClose
	}
	price = meta.RegularMarketPrice
	if price == 0 {
		return 0, 0, &provider.Error{Provider: Name, Kind: provider.ErrMissingPrice, Err: fmt.Errorf("zero price")}
	}
	if prevClose != 0 {
		changePct = (price - prevClose) / prevClose * 100
	}
	_ = start
	return price, changePct, nil
}

// NewQuoteProvider builds the quoterouter.QuoteProvider backed by the Yahoo
// chart endpoint.
func (a *Adapter) NewQuoteProvider() quoterouter.QuoteProvider {
	return quoterouter.QuoteProvider{
		Name:    Name,
		Enabled: true,
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			start := time.Now()
			ySymbol := a.resolve(symbol)
			price, changePct, err := a.fetchChart(ctx, ySymbol)
			latency := time.Since(start)
			if err != nil {
				kind := provider.ErrNetwork
				if pe, ok := err.(*provider.Error); ok {
					kind = pe.Kind
				}
				a.registry.RecordFailure(Name, kind)
				return provider.Result[domain.Quote]{OK: false, Latency: latency, ErrorCode: kind}
			}
			a.registry.RecordSuccess(Name, latency)
			cp := changePct
			return provider.Result[domain.Quote]{
				OK:      true,
				Latency: latency,
				Data: domain.Quote{
					Price:            price,
					ChangePct:        &cp,
					TsUTC:            time.Now().UTC(),
					Currency:         "USD",
					Source:           Name,
					FreshnessSeconds: 0,
				},
			}
		},
		Search: func(ctx context.Context, symbol string) (string, bool) {
			mapped, ok := symbolMap[symbol]
			return mapped, ok
		},
	}
}

// CrossAssetSnapshot fetches every cross-asset symbol Yahoo covers in
// parallel and assembles a domain.YahooSnapshot; any symbol that fails to
// resolve is left zero so quoterouter.Router.PatchSnapshot can backfill it.
func (a *Adapter) CrossAssetSnapshot(ctx context.Context) (domain.YahooSnapshot, error) {
	type result struct {
		key       string
		price     float64
		changePct float64
		err       error
	}
	keys := []string{"DXY", "QQQ", "NASDAQ", "FTSE", "EUROSTOXX", "OIL", "GOLD", "SILVER", "COPPER", "BIST", "VIX", "BTC", "ETH"}
	out := make(chan result, len(keys))
	for _, k := range keys {
		go func(k string) {
			price, chg, err := a.fetchChart(ctx, a.resolve(k))
			out <- result{key: k, price: price, changePct: chg, err: err}
		}(k)
	}
	var snap domain.YahooSnapshot
	var anyOK bool
	for range keys {
		r := <-out
		if r.err != nil {
			continue
		}
		anyOK = true
		switch r.key {
		case "DXY":
			snap.DXY, snap.DXYChg24h = r.price, r.changePct
		case "QQQ":
			snap.QQQ, snap.QQQChg24h = r.price, r.changePct
		case "NASDAQ":
			snap.Nasdaq, snap.NasdaqChg24h = r.price, r.changePct
		case "FTSE":
			snap.FTSE, snap.FTSEChg24h = r.price, r.changePct
		case "EUROSTOXX":
			snap.Eurostoxx, snap.EurostoxxChg24h = r.price, r.changePct
		case "OIL":
			snap.Oil, snap.OilChg24h = r.price, r.changePct
		case "GOLD":
			snap.Gold, snap.GoldChg24h = r.price, r.changePct
		case "SILVER":
			snap.Silver, snap.SilverChg24h = r.price, r.changePct
		case "COPPER":
			snap.Copper, snap.CopperChg24h = r.price, r.changePct
		case "BIST":
			snap.BIST, snap.BISTChg24h = r.price, r.changePct
		case "VIX":
			snap.VIX = r.price
		case "BTC":
			snap.BTC, snap.BTCChg24h = r.price, r.changePct
		case "ETH":
			snap.ETH, snap.ETHChg24h = r.price, r.changePct
		}
	}
	if !anyOK {
		a.registry.RecordFailure(Name+"_snapshot", provider.ErrNetwork)
		return snap, fmt.Errorf("yahoo: cross-asset snapshot: all symbols failed")
	}
	a.registry.RecordSuccess(Name+"_snapshot", 0)
	return snap, nil
}

// rssFeed is the minimal RSS 2.0 shape of Yahoo's per-ticker headline feed.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// NewFinanceNews builds the news.FinanceNewsProvider backed by Yahoo's
// per-ticker RSS headline feed, used as an "extras" source once the primary
// search provider is exhausted.
func (a *Adapter) NewFinanceNews(rssBaseURL string) news.FinanceNewsProvider {
	return news.FinanceNewsProvider{
		Name: Name,
		ForTicker: func(ctx context.Context, symbol string, maxItems int) ([]news.RawArticle, error) {
			url := fmt.Sprintf("%s/rss/2.0/headline?s=%s&region=US&lang=en-US", rssBaseURL, symbol)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}
			start := time.Now()
			resp, err := a.client.Do(req)
			if err != nil {
				a.registry.RecordFailure(Name+"_rss", provider.ErrNetwork)
				return nil, err
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				a.registry.RecordFailure(Name+"_rss", provider.ErrSchema)
				return nil, err
			}
			var feed rssFeed
			if err := xml.Unmarshal(body, &feed); err != nil {
				a.registry.RecordFailure(Name+"_rss", provider.ErrSchema)
				return nil, err
			}
			a.registry.RecordSuccess(Name+"_rss", time.Since(start))

			items := feed.Channel.Items
			if len(items) > maxItems {
				items = items[:maxItems]
			}
			out := make([]news.RawArticle, 0, len(items))
			for _, it := range items {
				var pub *time.Time
				if t, err := time.Parse(time.RFC1123Z, it.PubDate); err == nil {
					pub = &t
				} else if t, err := time.Parse(time.RFC1123, it.PubDate); err == nil {
					pub = &t
				}
				out = append(out, news.RawArticle{
					Title:          it.Title,
					URL:            it.Link,
					SourceDomain:   "finance.yahoo.com",
					Description:    it.Description,
					PublishedAtUTC: pub,
				})
			}
			return out, nil
		},
	}
}
