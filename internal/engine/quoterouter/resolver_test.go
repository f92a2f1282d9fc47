package quoterouter

import (
	"testing"

	"github.com/marketintel/analytics/data/cache"
	"github.com/stretchr/testify/assert"
)

func TestSymbolResolver_StaticMap(t *testing.T) {
	r := NewSymbolResolver(cache.New())
	assert.Equal(t, "BTC-USD", r.Resolve("BTC", "yahoo", nil))
	assert.Equal(t, "BINANCE:BTCUSDT", r.Resolve("BTC", "finnhub", nil))
	assert.Equal(t, "BTC/USD", r.Resolve("BTC", "twelvedata", nil))
}

func TestSymbolResolver_FallsBackToSearcherThenCaches(t *testing.T) {
	r := NewSymbolResolver(cache.New())
	calls := 0
	search := func(symbol string) (string, bool) {
		calls++
		return "XYZ123", true
	}
	first := r.Resolve("UNKNOWN", "finnhub", search)
	second := r.Resolve("UNKNOWN", "finnhub", search)
	assert.Equal(t, "XYZ123", first)
	assert.Equal(t, "XYZ123", second)
	assert.Equal(t, 1, calls)
}

func TestSymbolResolver_UnmappedNoSearcherReturnsSymbol(t *testing.T) {
	r := NewSymbolResolver(cache.New())
	assert.Equal(t, "UNKNOWN", r.Resolve("UNKNOWN", "finnhub", nil))
}
