// Package client assembles the outbound HTTP middleware stack every
// provider adapter runs through: daily budget, token-bucket rate limit,
// circuit breaker, and a shared byte-cache for GET responses. Adapters hold
// a plain *http.Client; the stack lives in its Transport so provider code
// stays free of resilience concerns.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/net/budget"
	"github.com/marketintel/analytics/internal/net/circuit"
	"github.com/marketintel/analytics/internal/net/ratelimit"
)

// Cache is the response cache the wrapper writes GET bodies into. The
// context carries the request deadline so a slow shared cache (Redis)
// cannot stall the call path.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// maxCacheableBody bounds what a single cached response may occupy.
const maxCacheableBody = 1 << 20

// WrapperConfig wires one provider's middleware pieces.
type WrapperConfig struct {
	Provider       string
	ProviderConfig *config.ProviderConfig
	RateLimiter    *ratelimit.Limiter
	CircuitBreaker *circuit.Breaker
	BudgetTracker  *budget.Tracker
	Cache          Cache
}

// Wrapper is an http.RoundTripper carrying the full middleware stack.
type Wrapper struct {
	config    WrapperConfig
	transport http.RoundTripper
	userAgent string
}

// NewWrapper builds a Wrapper over the given transport (http.DefaultTransport
// when nil).
func NewWrapper(config WrapperConfig, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Wrapper{
		config:    config,
		transport: transport,
		userAgent: "MarketIntelAnalytics/1.0",
	}
}

// RoundTrip applies cache → budget → rate limit → circuit breaker around the
// underlying transport. Every failure comes back as a *ProviderError whose
// Kind the pipeline maps onto its "<source>_error:<detail>" debug notes.
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	cacheable := w.config.Cache != nil && req.Method == http.MethodGet && w.config.ProviderConfig.TTLSecs > 0
	cacheKey := ""
	if cacheable {
		cacheKey = fmt.Sprintf("http:%s:%s", w.config.Provider, req.URL.String())
		if body, ok := w.config.Cache.Get(req.Context(), cacheKey); ok {
			return cachedResponse(req, body), nil
		}
	}

	if w.config.BudgetTracker != nil {
		if err := w.config.BudgetTracker.Allow(); err != nil {
			var exhausted *budget.BudgetExhaustedError
			if errors.As(err, &exhausted) {
				return nil, &ProviderError{Provider: w.config.Provider, Kind: "budget", Err: err}
			}
			// Warning threshold crossed: the call still goes out.
		}
	}

	if w.config.RateLimiter != nil {
		if err := w.config.RateLimiter.Wait(req.Context(), w.config.ProviderConfig.Host); err != nil {
			return nil, &ProviderError{Provider: w.config.Provider, Kind: "rate_limit", Err: err}
		}
	}

	var response *http.Response
	execute := func(ctx context.Context) error {
		if w.config.BudgetTracker != nil {
			if err := w.config.BudgetTracker.Consume(); err != nil {
				var exhausted *budget.BudgetExhaustedError
				if errors.As(err, &exhausted) {
					return &ProviderError{Provider: w.config.Provider, Kind: "budget", Err: err}
				}
			}
		}

		resp, err := w.transport.RoundTrip(req.WithContext(ctx))
		if err != nil {
			return &ProviderError{Provider: w.config.Provider, Kind: "transport", Err: err}
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			kind := "http_4xx"
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				kind = "rate_limited"
			case resp.StatusCode >= 500:
				kind = "http_5xx"
			}
			return &ProviderError{
				Provider:   w.config.Provider,
				Kind:       kind,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			}
		}
		response = resp
		return nil
	}

	var err error
	if w.config.CircuitBreaker != nil {
		err = w.config.CircuitBreaker.Call(req.Context(), execute)
		if errors.Is(err, circuit.ErrCircuitOpen) {
			err = &ProviderError{Provider: w.config.Provider, Kind: "circuit", Err: err}
		} else if errors.Is(err, circuit.ErrRequestTimeout) {
			err = &ProviderError{Provider: w.config.Provider, Kind: "timeout", Err: err}
		}
	} else {
		err = execute(req.Context())
	}
	if err != nil {
		return nil, err
	}

	if cacheable && response.StatusCode == http.StatusOK {
		w.cacheBody(req, cacheKey, response)
	}
	return response, nil
}

// cacheBody drains the response body into the cache and rebuilds the
// response around the buffered bytes so the caller still reads a full body.
func (w *Wrapper) cacheBody(req *http.Request, key string, resp *http.Response) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCacheableBody+1))
	resp.Body.Close()
	if err != nil || len(body) > maxCacheableBody {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return
	}
	w.config.Cache.Set(req.Context(), key, body, w.config.ProviderConfig.GetCacheTTL())
	resp.Body = io.NopCloser(bytes.NewReader(body))
}

func cachedResponse(req *http.Request, body []byte) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"X-Cache": []string{"HIT"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// ProviderError is the uniform failure envelope every middleware layer
// produces. Kind matches spec'd error taxonomy: "rate_limit",
// "rate_limited", "budget", "circuit", "timeout", "transport", "http_4xx",
// "http_5xx".
type ProviderError struct {
	Provider   string `json:"provider"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s_%s_error (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s_%s_error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRateLimited reports a local or remote (429) rate-limit failure, which
// the quote router treats differently from other failures when computing
// backoff.
func (e *ProviderError) IsRateLimited() bool {
	return e.Kind == "rate_limit" || e.Kind == "rate_limited"
}

// Manager builds and holds one wrapped *http.Client per provider.
type Manager struct {
	clients      map[string]*http.Client
	rateLimitMgr *ratelimit.Manager
	circuitMgr   *circuit.Manager
	budgetMgr    *budget.Manager
	cache        Cache
}

// NewManager wires a Manager over the three per-provider state managers and
// the shared response cache (nil disables caching).
func NewManager(rateLimitMgr *ratelimit.Manager, circuitMgr *circuit.Manager, budgetMgr *budget.Manager, cache Cache) *Manager {
	return &Manager{
		clients:      make(map[string]*http.Client),
		rateLimitMgr: rateLimitMgr,
		circuitMgr:   circuitMgr,
		budgetMgr:    budgetMgr,
		cache:        cache,
	}
}

// AddProvider registers the provider's limiter/breaker/budget from its
// config entry and builds its wrapped client.
func (m *Manager) AddProvider(name string, providerConfig *config.ProviderConfig) {
	m.rateLimitMgr.AddProvider(name, float64(providerConfig.RPS), providerConfig.Burst)
	m.circuitMgr.AddProvider(name, circuit.Config{
		FailureThreshold: providerConfig.Circuit.FailureThreshold,
		SuccessThreshold: providerConfig.Circuit.SuccessThreshold,
		Timeout:          30 * time.Second,
		RequestTimeout:   providerConfig.GetRequestTimeout(),
	})
	m.budgetMgr.AddProvider(name, int64(providerConfig.DailyBudget), 0, 0.8)

	rateLimiter, _ := m.rateLimitMgr.GetLimiter(name)
	circuitBreaker, _ := m.circuitMgr.GetBreaker(name)
	budgetTracker, _ := m.budgetMgr.GetTracker(name)

	wrapper := NewWrapper(WrapperConfig{
		Provider:       name,
		ProviderConfig: providerConfig,
		RateLimiter:    rateLimiter,
		CircuitBreaker: circuitBreaker,
		BudgetTracker:  budgetTracker,
		Cache:          m.cache,
	}, nil)

	m.clients[name] = &http.Client{
		Transport: wrapper,
		Timeout:   providerConfig.GetRequestTimeout(),
	}
}

// GetClient returns the wrapped client for a provider.
func (m *Manager) GetClient(provider string) (*http.Client, bool) {
	c, ok := m.clients[provider]
	return c, ok
}

// ProviderStats aggregates every middleware layer's snapshot, served by the
// health endpoint.
type ProviderStats struct {
	RateLimit map[string]map[string]ratelimit.LimiterStats `json:"rate_limit"`
	Circuit   map[string]circuit.Stats                     `json:"circuit"`
	Budget    map[string]budget.Stats                      `json:"budget"`
}

// GetStats snapshots all providers.
func (m *Manager) GetStats() ProviderStats {
	return ProviderStats{
		RateLimit: m.rateLimitMgr.Stats(),
		Circuit:   m.circuitMgr.Stats(),
		Budget:    m.budgetMgr.Stats(),
	}
}

// HealthSummary buckets providers by health for the /health payload.
type HealthSummary struct {
	Healthy   []string `json:"healthy"`
	Unhealthy []string `json:"unhealthy"`
	Warnings  []string `json:"warnings"`
	Total     int      `json:"total"`
}

// GetHealthySummary classifies every provider from its circuit and budget
// state: an open circuit or spent budget is unhealthy, a budget past its
// warn threshold is a warning.
func (m *Manager) GetHealthySummary() HealthSummary {
	circuitStats := m.circuitMgr.Stats()
	budgetStats := m.budgetMgr.Stats()

	all := make(map[string]bool)
	for p := range circuitStats {
		all[p] = true
	}
	for p := range budgetStats {
		all[p] = true
	}

	summary := HealthSummary{Total: len(all)}
	for p := range all {
		cs := circuitStats[p]
		bs := budgetStats[p]
		switch {
		case bs.IsExhausted || !cs.IsHealthy():
			summary.Unhealthy = append(summary.Unhealthy, p)
		case bs.IsWarning:
			summary.Warnings = append(summary.Warnings, p)
		default:
			summary.Healthy = append(summary.Healthy, p)
		}
	}
	return summary
}

// KVCache adapts the process/Redis byte cache (data/cache.Cache's shape)
// to the context-aware Cache this package consumes.
type KVCache struct {
	Backend interface {
		Get(key string) ([]byte, bool)
		Set(key string, val []byte, ttl time.Duration)
	}
}

func (k KVCache) Get(_ context.Context, key string) ([]byte, bool) { return k.Backend.Get(key) }
func (k KVCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	k.Backend.Set(key, value, ttl)
}
