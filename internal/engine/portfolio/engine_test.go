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
	"github.com/marketintel/analytics/internal/persistence"
	"github.com/marketintel/analytics/internal/provider"
)

func testEngine(t *testing.T, prices map[string]float64) *Engine {
	t.Helper()
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
	router := quoterouter.NewRouter([]quoterouter.QuoteProvider{p}, quoterouter.NewSymbolResolver(cache.New()))
	holdings := config.HoldingsRegistry{Holdings: []domain.Holding{
		{Symbol: "NVDA", YahooSymbol: "NVDA", Qty: 10, Currency: "USD", AssetClass: "NASDAQ", Sector: "tech", Aliases: []string{"NVDA", "Nvidia"}},
	}}
	fx := config.FXSettings{DefaultQuoteCurrency: "USD", FXSymbol: "USDTRY=X"}
	settings := defaultSettings()
	return NewEngine(router, &fakeBarRepo{bars: map[string][]persistence.PriceBar{}}, holdings, fx, settings)
}

func TestEngine_Generate_NoNewsHoldsEveryHorizon(t *testing.T) {
	e := testEngine(t, map[string]float64{"NVDA": 120})
	snapshot, err := e.Generate(context.Background(), time.Now(), "USD", "daily", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", snapshot.Base)
	require.Len(t, snapshot.Holdings, 1)
	assert.InDelta(t, 1200, snapshot.TotalValue, 1e-9)
	for _, opt := range snapshot.Optimizers {
		assert.Equal(t, domain.ModeHold, opt.Mode)
	}
}

func TestEngine_Generate_DefaultsBaseCurrencyAndHorizon(t *testing.T) {
	e := testEngine(t, map[string]float64{"NVDA": 10})
	snapshot, err := e.Generate(context.Background(), time.Now(), "", "", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", snapshot.Base)
	assert.Equal(t, string(domain.HorizonDaily), snapshot.Horizon)
}

func TestEngine_DailyBrief_ProducesExecutiveSummary(t *testing.T) {
	e := testEngine(t, map[string]float64{"NVDA": 120})
	now := time.Now()
	item := domain.NewsItem{
		Title: "NVDA unveils next-gen GPU architecture", EventType: "PRODUCT",
		ImpactChannel: []string{"GROWTH"}, RelevanceScore: 90, QualityScore: 90, PublishedAtUTC: &now,
	}
	brief, err := e.DailyBrief(context.Background(), now, "USD", []domain.NewsItem{item}, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, brief.ExecutiveSummary)
	assert.LessOrEqual(t, len(brief.ExecutiveSummary), 5)
	assert.Equal(t, domain.HorizonDaily, brief.Hints.Period)
}
