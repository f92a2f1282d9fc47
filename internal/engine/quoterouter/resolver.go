// Package quoterouter implements the multi-provider quote resolution
// pipeline: per-provider token bucket, exponential backoff, negative cache,
// last-known-good fallback, and static symbol resolution with a TTL search
// cache.
package quoterouter

import (
	"time"

	"github.com/marketintel/analytics/data/cache"
)

// Yahoo/Finnhub/TwelveData symbol-resolution maps. Left unmapped symbols fall
// through to the resolver's 7-day TTL search cache.
var symbolMaps = map[string]map[string]string{
	"yahoo": {
		"BTC": "BTC-USD", "ETH": "ETH-USD", "NASDAQ": "^IXIC", "FTSE": "^FTSE",
		"EUROSTOXX": "^STOXX50E", "BIST": "XU100.IS", "DXY": "DX-Y.NYB",
		"OIL": "CL=F", "GOLD": "GC=F", "SILVER": "SI=F", "COPPER": "HG=F",
	},
	"finnhub": {
		"BTC": "BINANCE:BTCUSDT", "ETH": "BINANCE:ETHUSDT", "NASDAQ": "^IXIC",
		"FTSE": "^FTSE", "EUROSTOXX": "^STOXX50E", "BIST": "XU100.IS", "DXY": "DXY",
		"OIL": "CL=F", "GOLD": "GC=F", "SILVER": "SI=F", "COPPER": "HG=F",
	},
	"twelvedata": {
		"BTC": "BTC/USD", "ETH": "ETH/USD", "NASDAQ": "^IXIC", "FTSE": "^FTSE",
		"EUROSTOXX": "^STOXX50E", "BIST": "XU100.IS", "DXY": "DXY",
		"OIL": "CL=F", "GOLD": "GC=F", "SILVER": "SI=F", "COPPER": "HG=F",
	},
}

// symbolCacheTTL is the fallback search-result cache lifetime.
const symbolCacheTTL = 7 * 24 * time.Hour

// Searcher looks up a provider-native symbol for an otherwise-unmapped
// ticker (e.g. a provider's own symbol-search endpoint).
type Searcher func(symbol string) (string, bool)

// SymbolResolver resolves a canonical watchlist symbol to the spelling a
// given provider expects, consulting the static map first, then a TTL
// cache, then the provider's own searcher.
type SymbolResolver struct {
	cache cache.Cache
}

// NewSymbolResolver builds a resolver backed by the shared process/Redis
// cache tier (data/cache.Cache), reused here exactly as the quote provider
// adapters already use it for raw response caching.
func NewSymbolResolver(c cache.Cache) *SymbolResolver {
	return &SymbolResolver{cache: c}
}

// Resolve returns the provider-native symbol for a canonical ticker.
func (r *SymbolResolver) Resolve(symbol, provider string, search Searcher) string {
	if mapped, ok := symbolMaps[provider][symbol]; ok {
		return mapped
	}
	key := "symres:" + provider + ":" + symbol
	if cached, ok := r.cache.Get(key); ok {
		return string(cached)
	}
	if search != nil {
		if resolved, ok := search(symbol); ok && resolved != "" {
			r.cache.Set(key, []byte(resolved), symbolCacheTTL)
			return resolved
		}
		r.cache.Set(key, []byte(symbol), symbolCacheTTL)
	}
	return symbol
}
