package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/data/cache"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/engine/quoterouter"
	"github.com/marketintel/analytics/internal/provider"
)

func routerWithPrices(prices map[string]float64) *quoterouter.Router {
	p := quoterouter.QuoteProvider{
		Name:    "yahoo",
		Enabled: true,
		GetQuote: func(ctx context.Context, symbol string) provider.Result[domain.Quote] {
			price, ok := prices[symbol]
			if !ok {
				return provider.Result[domain.Quote]{OK: false, ErrorCode: provider.ErrEmpty}
			}
			return provider.Result[domain.Quote]{OK: true, Data: domain.Quote{Price: price, TsUTC: time.Now()}}
		},
	}
	return quoterouter.NewRouter([]quoterouter.QuoteProvider{p}, quoterouter.NewSymbolResolver(cache.New()))
}

func TestPriceHolding_ConvertsUSDToTRYBase(t *testing.T) {
	router := routerWithPrices(map[string]float64{"NVDA": 100})
	h := domain.Holding{Symbol: "NVDA", YahooSymbol: "NVDA", Qty: 2, Currency: "USD"}
	v := priceHolding(context.Background(), router, h, "TRY", 30.0)
	assert.Equal(t, domain.DataOK, v.DataStatus)
	assert.InDelta(t, 100*2*30.0, v.Value, 1e-9)
}

func TestPriceHolding_ConvertsTRYToUSDBase(t *testing.T) {
	router := routerWithPrices(map[string]float64{"BIST:X": 100})
	h := domain.Holding{Symbol: "X", YahooSymbol: "BIST:X", Qty: 2, Currency: "TRY"}
	v := priceHolding(context.Background(), router, h, "USD", 30.0)
	assert.InDelta(t, 100*2/30.0, v.Value, 1e-9)
}

func TestPriceHolding_MissingQuoteMarksDataMissing(t *testing.T) {
	router := routerWithPrices(map[string]float64{})
	h := domain.Holding{Symbol: "GHOST", YahooSymbol: "GHOST", Qty: 1, Currency: "USD"}
	v := priceHolding(context.Background(), router, h, "USD", 1.0)
	assert.Equal(t, domain.DataMissing, v.DataStatus)
	assert.Equal(t, 0.0, v.Value)
}

func TestValueHoldings_AssignsWeightsProportionalToValue(t *testing.T) {
	router := routerWithPrices(map[string]float64{"A": 100, "B": 100})
	holdings := []domain.Holding{
		{Symbol: "A", YahooSymbol: "A", Qty: 3, Currency: "USD"},
		{Symbol: "B", YahooSymbol: "B", Qty: 1, Currency: "USD"},
	}
	valued, total := ValueHoldings(context.Background(), router, holdings, "USD", 1.0)
	require.Len(t, valued, 2)
	assert.InDelta(t, 400.0, total, 1e-9)
	assert.InDelta(t, 0.75, valued[0].Weight, 1e-9)
	assert.InDelta(t, 0.25, valued[1].Weight, 1e-9)
}

func TestResolveFXRate_ReturnsFalseWhenQuoteMissing(t *testing.T) {
	router := routerWithPrices(map[string]float64{})
	rate, ok := ResolveFXRate(context.Background(), router, config.FXSettings{FXSymbol: "USDTRY=X"})
	assert.False(t, ok)
	assert.Equal(t, 0.0, rate)
}

func TestBuildAllocation_BucketsByCurrencyClassSector(t *testing.T) {
	holdings := []domain.ValuedHolding{
		{Holding: domain.Holding{Symbol: "A", Currency: "USD", AssetClass: "NASDAQ", Sector: "tech"}, Weight: 0.6},
		{Holding: domain.Holding{Symbol: "B", Currency: "TRY", AssetClass: "BIST", Sector: "energy"}, Weight: 0.4},
	}
	alloc := BuildAllocation(holdings)
	assert.InDelta(t, 0.6, alloc.ByCurrency["USD"], 1e-9)
	assert.InDelta(t, 0.4, alloc.ByCurrency["TRY"], 1e-9)
	assert.InDelta(t, 0.6, alloc.ByAssetClass["NASDAQ"], 1e-9)
	assert.InDelta(t, 0.4, alloc.BySector["energy"], 1e-9)
}
