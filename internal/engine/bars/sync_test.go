package bars

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
	"github.com/marketintel/analytics/internal/persistence/memory"
)

func barsFor(symbol string, base time.Time, closes ...float64) []domain.PriceBar {
	out := make([]domain.PriceBar, 0, len(closes))
	for i, c := range closes {
		out = append(out, domain.PriceBar{
			Asset:  symbol,
			TsUTC:  base.Add(time.Duration(i) * 15 * time.Minute),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 100,
		})
	}
	return out
}

func stubSource(name string, fetch func(symbol string) ([]domain.PriceBar, error)) Source {
	return Source{Name: name, Fetch: func(_ context.Context, symbol string) ([]domain.PriceBar, error) {
		return fetch(symbol)
	}}
}

func TestSyncWritesBarsKeyedByAsset(t *testing.T) {
	repos := memory.New()
	base := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Minute)
	primary := stubSource("yahoo", func(symbol string) ([]domain.PriceBar, error) {
		return barsFor(symbol, base, 100, 101, 102), nil
	})
	s := NewSyncer(repos.PriceBars, repos.KV, primary, nil, []string{"BTC-USD", "ETH-USD"})

	now := time.Now().UTC()
	written := s.Sync(context.Background(), now, nil)
	assert.Equal(t, 6, written)

	rows, err := repos.PriceBars.Window(context.Background(), "BTC-USD", persistence.TimeRange{From: base.Add(-time.Hour), To: now})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "BTC-USD", rows[0].Asset)
	assert.Equal(t, 100.0, rows[0].Close)

	nearest, err := repos.PriceBars.Nearest(context.Background(), "ETH-USD", now)
	require.NoError(t, err)
	require.NotNil(t, nearest)
	assert.Equal(t, 102.0, nearest.Close)
}

func TestSyncCadenceGateSkipsFreshAssets(t *testing.T) {
	repos := memory.New()
	var calls int64
	base := time.Now().UTC().Add(-time.Hour)
	primary := stubSource("yahoo", func(symbol string) ([]domain.PriceBar, error) {
		atomic.AddInt64(&calls, 1)
		return barsFor(symbol, base, 100), nil
	})
	s := NewSyncer(repos.PriceBars, repos.KV, primary, nil, []string{"BTC-USD"})

	now := time.Now().UTC()
	require.Equal(t, 1, s.Sync(context.Background(), now, nil))
	require.Equal(t, 0, s.Sync(context.Background(), now.Add(5*time.Minute), nil), "within the interval nothing refetches")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	require.Equal(t, 1, s.Sync(context.Background(), now.Add(13*time.Minute), nil))
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestSyncFallsBackPerAsset(t *testing.T) {
	repos := memory.New()
	base := time.Now().UTC().Add(-time.Hour)
	primary := stubSource("yahoo", func(symbol string) ([]domain.PriceBar, error) {
		return nil, errors.New("http 500")
	})
	var fallbackSymbol string
	fallback := stubSource("finnhub", func(symbol string) ([]domain.PriceBar, error) {
		fallbackSymbol = symbol
		return barsFor(symbol, base, 50000), nil
	})

	s := NewSyncer(repos.PriceBars, repos.KV, primary, []Source{fallback}, []string{"BTC-USD"})
	s.FallbackSymbols = map[string]map[string]string{
		"BTC-USD": {"finnhub": "BINANCE:BTCUSDT"},
	}

	var notes domain.FetchNotes
	now := time.Now().UTC()
	require.Equal(t, 1, s.Sync(context.Background(), now, &notes))

	assert.Equal(t, "BINANCE:BTCUSDT", fallbackSymbol)
	assert.Contains(t, notes.Notes, "bars_fallback:finnhub:BTC-USD")

	rows, err := repos.PriceBars.Window(context.Background(), "BTC-USD", persistence.TimeRange{From: base.Add(-time.Hour), To: now})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "BTC-USD", rows[0].Asset, "fallback bars are re-keyed to the bar-store asset")
}

func TestSyncAllSourcesFailRetriesNextSweep(t *testing.T) {
	repos := memory.New()
	var calls int64
	primary := stubSource("yahoo", func(symbol string) ([]domain.PriceBar, error) {
		atomic.AddInt64(&calls, 1)
		return nil, errors.New("timeout")
	})
	s := NewSyncer(repos.PriceBars, repos.KV, primary, nil, []string{"BTC-USD"})

	var notes domain.FetchNotes
	now := time.Now().UTC()
	assert.Equal(t, 0, s.Sync(context.Background(), now, &notes))
	assert.NotEmpty(t, notes.Notes)

	// The checkpoint did not advance, so the asset is still due.
	assert.Equal(t, 0, s.Sync(context.Background(), now.Add(time.Minute), &notes))
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestSyncSkipsZeroCloseBars(t *testing.T) {
	repos := memory.New()
	base := time.Now().UTC().Add(-time.Hour)
	primary := stubSource("yahoo", func(symbol string) ([]domain.PriceBar, error) {
		rows := barsFor(symbol, base, 100, 101)
		rows = append(rows, domain.PriceBar{TsUTC: base.Add(time.Hour)}) // halted interval
		return rows, nil
	})
	s := NewSyncer(repos.PriceBars, repos.KV, primary, nil, []string{"QQQ"})

	assert.Equal(t, 2, s.Sync(context.Background(), time.Now().UTC(), nil))
}
