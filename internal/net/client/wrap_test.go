package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/net/budget"
	"github.com/marketintel/analytics/internal/net/circuit"
	"github.com/marketintel/analytics/internal/net/ratelimit"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func providerConfig(host string) *config.ProviderConfig {
	return &config.ProviderConfig{
		Host:        host,
		RPS:         100,
		Burst:       100,
		DailyBudget: 1000,
		TTLSecs:     60,
		Enabled:     true,
		BaseURL:     "http://" + host,
		BackoffMS:   config.BackoffConfig{Base: 10, Max: 100},
		Circuit:     config.CircuitConfig{FailureThreshold: 3, SuccessThreshold: 1, TimeoutMS: 2000},
	}
}

func TestRoundTripCachesGETBody(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Write([]byte(`{"price": 101.5}`))
	}))
	defer srv.Close()

	cache := newMapCache()
	w := NewWrapper(WrapperConfig{
		Provider:       "testprov",
		ProviderConfig: providerConfig("test"),
		Cache:          cache,
	}, nil)
	client := &http.Client{Transport: w}

	resp, err := client.Get(srv.URL + "/quote")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, `{"price": 101.5}`, string(body))

	resp, err = client.Get(srv.URL + "/quote")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, `{"price": 101.5}`, string(body), "cached body must match the original, not be empty")
	assert.Equal(t, 1, calls, "second request served from cache")
}

func TestRoundTripMapsStatusToErrorKind(t *testing.T) {
	for _, tc := range []struct {
		status int
		kind   string
	}{
		{http.StatusTooManyRequests, "rate_limited"},
		{http.StatusInternalServerError, "http_5xx"},
		{http.StatusNotFound, "http_4xx"},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))

		w := NewWrapper(WrapperConfig{Provider: "testprov", ProviderConfig: providerConfig("test")}, nil)
		_, err := (&http.Client{Transport: w}).Get(srv.URL)
		srv.Close()

		var perr *ProviderError
		require.ErrorAs(t, err, &perr, "status %d", tc.status)
		assert.Equal(t, tc.kind, perr.Kind)
		assert.Equal(t, tc.status, perr.StatusCode)
	}
}

func TestRoundTripBudgetExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tracker := budget.NewTracker(1, 0, 0.99)
	w := NewWrapper(WrapperConfig{
		Provider:       "testprov",
		ProviderConfig: providerConfig("test"),
		BudgetTracker:  tracker,
	}, nil)
	client := &http.Client{Transport: w}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get(srv.URL)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "budget", perr.Kind)
}

func TestRoundTripCircuitOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := circuit.NewBreaker(circuit.Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		RequestTimeout:   time.Second,
	})
	w := NewWrapper(WrapperConfig{
		Provider:       "testprov",
		ProviderConfig: providerConfig("test"),
		CircuitBreaker: breaker,
	}, nil)
	client := &http.Client{Transport: w}

	client.Get(srv.URL)
	client.Get(srv.URL)

	_, err := client.Get(srv.URL)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "circuit", perr.Kind)
}

func TestManagerBuildsWrappedClients(t *testing.T) {
	m := NewManager(ratelimit.NewManager(), circuit.NewManager(), budget.NewManager(), newMapCache())
	cfg := providerConfig("query1.finance.yahoo.com")
	m.AddProvider("yahoo", cfg)

	c, ok := m.GetClient("yahoo")
	require.True(t, ok)
	assert.NotNil(t, c.Transport)

	_, ok = m.GetClient("unknown")
	assert.False(t, ok)

	stats := m.GetStats()
	assert.Contains(t, stats.Circuit, "yahoo")
	assert.Contains(t, stats.Budget, "yahoo")

	summary := m.GetHealthySummary()
	assert.Equal(t, 1, summary.Total)
	assert.Contains(t, summary.Healthy, "yahoo")
}

func TestProviderErrorIsRateLimited(t *testing.T) {
	assert.True(t, (&ProviderError{Kind: "rate_limited"}).IsRateLimited())
	assert.True(t, (&ProviderError{Kind: "rate_limit"}).IsRateLimited())
	assert.False(t, (&ProviderError{Kind: "http_5xx"}).IsRateLimited())
}
