package quoterouter

import (
	"context"
	"testing"
	"time"

	"github.com/marketintel/analytics/data/cache"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okProvider(name string, price float64) QuoteProvider {
	return QuoteProvider{
		Name:    name,
		Enabled: true,
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			return provider.Result[domain.Quote]{OK: true, Data: domain.Quote{Price: price, TsUTC: time.Now()}}
		},
	}
}

func failingProvider(name string, kind provider.ErrorKind) QuoteProvider {
	return QuoteProvider{
		Name:    name,
		Enabled: true,
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			return provider.Result[domain.Quote]{OK: false, ErrorCode: kind}
		},
	}
}

func TestRouter_GetQuote_PrimarySucceeds(t *testing.T) {
	r := NewRouter([]QuoteProvider{okProvider("yahoo", 101.5)}, NewSymbolResolver(cache.New()))
	res := r.GetQuote(context.Background(), "BTC")
	require.True(t, res.OK)
	assert.Equal(t, 101.5, res.Data.Price)
	assert.Equal(t, "yahoo", res.Data.Source)
	assert.False(t, res.Data.IsFallback)
}

func TestRouter_GetQuote_FallsBackToSecondProvider(t *testing.T) {
	r := NewRouter([]QuoteProvider{
		failingProvider("yahoo", provider.ErrHTTP5xx),
		okProvider("finnhub", 99.0),
	}, NewSymbolResolver(cache.New()))
	res := r.GetQuote(context.Background(), "BTC")
	require.True(t, res.OK)
	assert.Equal(t, "finnhub", res.Data.Source)
	assert.True(t, res.Data.IsFallback)
}

func TestRouter_GetQuote_AllFailReturnsAllFailed(t *testing.T) {
	r := NewRouter([]QuoteProvider{failingProvider("yahoo", provider.ErrHTTP5xx)}, NewSymbolResolver(cache.New()))
	res := r.GetQuote(context.Background(), "BTC")
	assert.False(t, res.OK)
}

func TestRouter_GetQuote_DegradedLastGoodAfterFailure(t *testing.T) {
	name := "yahoo"
	toggle := true
	p := QuoteProvider{
		Name:    name,
		Enabled: true,
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			if toggle {
				return provider.Result[domain.Quote]{OK: true, Data: domain.Quote{Price: 101.0, TsUTC: time.Now()}}
			}
			return provider.Result[domain.Quote]{OK: false, ErrorCode: provider.ErrHTTP5xx}
		},
	}
	r := NewRouter([]QuoteProvider{p}, NewSymbolResolver(cache.New()))

	first := r.GetQuote(context.Background(), "BTC")
	require.True(t, first.OK)
	assert.False(t, first.Data.DegradedMode)

	toggle = false
	second := r.GetQuote(context.Background(), "BTC")
	require.True(t, second.OK)
	assert.True(t, second.Data.DegradedMode)
	assert.True(t, second.Data.IsFallback)
}

func TestRouter_GetQuote_DisabledProviderSkipped(t *testing.T) {
	disabled := okProvider("yahoo", 1.0)
	disabled.Enabled = false
	r := NewRouter([]QuoteProvider{disabled}, NewSymbolResolver(cache.New()))
	res := r.GetQuote(context.Background(), "BTC")
	assert.False(t, res.OK)
	assert.Equal(t, int64(1), r.stats.DisabledProviders["yahoo"])
}
