package quoterouter

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/net/ratelimit"
	"github.com/marketintel/analytics/internal/provider"
)

// Router timing constants.
const (
	StaleAfterS        = 6 * 60 * 60
	NegativeCacheTTLS  = 45 * 60
	LastGoodTTLS       = 120
	symbolMetaTTL      = 24 * time.Hour
	maxBackoffExp      = 5
	maxBackoffSeconds  = 300
)

// defaultRates is the default token-bucket {capacity, refill per minute} per
// provider.
var defaultRates = map[string]struct {
	capacity int
	perMin   float64
}{
	"yahoo":      {60, 60},
	"finnhub":    {60, 60},
	"twelvedata": {8, 8},
}

// providerState tracks one provider's backoff window.
type providerState struct {
	mu           sync.Mutex
	backoffUntil time.Time
	backoffExp   int
	breaker      *gobreaker.CircuitBreaker[domain.Quote]
}

func (s *providerState) inBackoff(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.backoffUntil)
}

// recordFailure advances the exponential backoff window:
// backoff_s = min(300, 2**exp), exp capped at 5.
func (s *providerState) recordFailure(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backoffExp < maxBackoffExp {
		s.backoffExp++
	}
	backoff := 1 << uint(s.backoffExp)
	if backoff > maxBackoffSeconds {
		backoff = maxBackoffSeconds
	}
	s.backoffUntil = now.Add(time.Duration(backoff) * time.Second)
}

// Stats counts the router's routing decisions for the debug surface.
type Stats struct {
	ProviderHits      map[string]int64
	FallbackHits      int64
	NegativeCacheHits int64
	RateLimitHits     int64
	BackoffHits       int64
	DisabledProviders map[string]int64
}

// Router resolves quotes across a provider chain with rate limiting,
// backoff, negative caching and last-known-good fallback.
type Router struct {
	providers []QuoteProvider
	resolver  *SymbolResolver
	rates     *ratelimit.Manager
	states    map[string]*providerState
	negative  *ttlMap
	lastGood  *ttlMap
	symbolMeta *ttlMap

	mu    sync.Mutex
	stats Stats

	nowFn func() time.Time
}

// NewRouter builds a Router over an ordered provider chain; earlier
// providers are preferred, later ones are fallbacks (idx>0 ⇒ is_fallback).
func NewRouter(providers []QuoteProvider, resolver *SymbolResolver) *Router {
	r := &Router{
		providers:  providers,
		resolver:   resolver,
		rates:      ratelimit.NewManager(),
		states:     make(map[string]*providerState),
		negative:   newTTLMap(NegativeCacheTTLS * time.Second),
		lastGood:   newTTLMap(LastGoodTTLS * time.Second),
		symbolMeta: newTTLMap(symbolMetaTTL),
		stats: Stats{
			ProviderHits:      map[string]int64{},
			DisabledProviders: map[string]int64{},
		},
		nowFn: time.Now,
	}
	for _, p := range providers {
		rate := defaultRates[p.Name]
		if rate.capacity == 0 {
			rate = struct {
				capacity int
				perMin   float64
			}{60, 60}
		}
		r.rates.AddProvider(p.Name, rate.perMin/60.0, rate.capacity)
		r.states[p.Name] = &providerState{
			breaker: gobreaker.NewCircuitBreaker[domain.Quote](gobreaker.Settings{
				Name:        p.Name,
				MaxRequests: 1,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
			}),
		}
	}
	return r
}

// GetQuote walks the provider chain honoring backoff/rate-limit/negative-
// cache gates, falling back to the last-known-good value (degraded) if
// every provider is gated or fails.
func (r *Router) GetQuote(ctx context.Context, symbol string) provider.Result[domain.Quote] {
	now := r.nowFn()
	lastGood, hasLastGood := r.lastGood.Get(symbol)

	for idx, p := range r.providers {
		if !p.Enabled {
			r.bumpDisabled(p.Name)
			continue
		}
		state := r.states[p.Name]
		if state.inBackoff(now) {
			r.bumpStat(&r.stats.BackoffHits)
			continue
		}
		if !r.rates.Allow(p.Name, "_") {
			r.bumpStat(&r.stats.RateLimitHits)
			continue
		}
		negKey := p.Name + ":" + symbol
		if _, gated := r.negative.Get(negKey); gated {
			r.bumpStat(&r.stats.NegativeCacheHits)
			continue
		}

		resolved := r.resolver.Resolve(symbol, p.Name, searcherFor(ctx, p))
		quote, err := state.breaker.Execute(func() (domain.Quote, error) {
			res := p.GetQuote(ctx, resolved)
			if !res.OK {
				return domain.Quote{}, &provider.Error{Provider: p.Name, Kind: res.ErrorCode}
			}
			return res.Data, nil
		})
		if err == nil {
			freshness := int64(now.Sub(quote.TsUTC).Seconds())
			if freshness > StaleAfterS {
				r.negative.Set(negKey, true)
				continue
			}
			quote.Source = p.Name
			quote.IsFallback = idx > 0
			quote.FreshnessSeconds = freshness
			quote.DegradedMode = false
			r.recordHit(p.Name, idx > 0)
			r.lastGood.Set(symbol, quote)
			r.symbolMeta.Set(symbol, quote)
			return provider.Result[domain.Quote]{OK: true, Data: quote}
		}

		if perr, ok := err.(*provider.Error); ok && (perr.Kind == provider.ErrHTTP5xx || perr.Kind == provider.ErrRateLimited) {
			state.recordFailure(now)
		}
		r.negative.Set(negKey, true)
	}

	if hasLastGood {
		quote := lastGood.(domain.Quote)
		quote.IsFallback = true
		quote.DegradedMode = true
		quote.FreshnessSeconds = int64(now.Sub(quote.TsUTC).Seconds())
		r.symbolMeta.Set(symbol, quote)
		return provider.Result[domain.Quote]{OK: true, Data: quote, Degraded: true}
	}

	return provider.Result[domain.Quote]{OK: false, ErrorCode: provider.ErrEmpty}
}

func searcherFor(ctx context.Context, p QuoteProvider) Searcher {
	if p.Search == nil {
		return nil
	}
	return func(symbol string) (string, bool) { return p.Search(ctx, symbol) }
}

func (r *Router) recordHit(name string, fallback bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ProviderHits[name]++
	if fallback {
		r.stats.FallbackHits++
	}
}

func (r *Router) bumpStat(counter *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*counter++
}

func (r *Router) bumpDisabled(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.DisabledProviders[name]++
}

// DebugState dumps router counters and per-provider state for the
// debug/observability surface.
func (r *Router) DebugState() map[string]any {
	r.mu.Lock()
	total := int64(0)
	for _, v := range r.stats.ProviderHits {
		total += v
	}
	fallback := r.stats.FallbackHits
	statsCopy := r.stats
	r.mu.Unlock()

	rate := 0.0
	if total > 0 {
		rate = float64(fallback) / float64(total)
	}
	return map[string]any{
		"stats":         statsCopy,
		"fallback_rate": rate,
		"symbol_meta":   r.symbolMeta.Snapshot(),
	}
}
