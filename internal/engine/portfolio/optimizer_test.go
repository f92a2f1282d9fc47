package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
)

func defaultSettings() config.PortfolioSettings {
	return config.PortfolioSettings{
		MaxWeight:         0.30,
		MaxCryptoWeight:   0.20,
		TurnoverDaily:     0.05,
		TurnoverWeekly:    0.15,
		TurnoverMonthly:   0.30,
		MinCoverageRatio:  0.20,
		MaxLowSignalRatio: 0.50,
		FXRiskThreshold:   0.50,
	}
}

func TestBuildOptimizer_HoldsWhenNoNewsItems(t *testing.T) {
	holdings := []domain.ValuedHolding{{Holding: domain.Holding{Symbol: "A"}, Weight: 1.0}}
	results := BuildOptimizer(holdings, nil, nil, nil, nil, defaultSettings(), 0, 0, 0, 0)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, domain.ModeHold, r.Mode)
		assert.Equal(t, "NO_NEWS_ITEMS", r.HoldReason)
	}
}

func TestBuildOptimizer_HoldsOnLowCoverageOrLowSignal(t *testing.T) {
	holdings := []domain.ValuedHolding{{Holding: domain.Holding{Symbol: "A"}, Weight: 1.0}}
	settings := defaultSettings()
	results := BuildOptimizer(holdings, nil, nil, nil, nil, settings, 0.05, 10, 0.10, 0)
	for _, r := range results {
		assert.Equal(t, domain.ModeHold, r.Mode)
		assert.Equal(t, "LOW_COVERAGE_OR_LOW_SIGNAL", r.HoldReason)
	}
}

func TestBuildOptimizer_RebalancesWithSufficientSignal(t *testing.T) {
	mom7 := 2.0
	holdings := []domain.ValuedHolding{
		{Holding: domain.Holding{Symbol: "WINNER", AssetClass: "NASDAQ"}, Weight: 0.10, Vol30d: 0.01, MomZ7d: &mom7},
		{Holding: domain.Holding{Symbol: "LOSER", AssetClass: "NASDAQ"}, Weight: 0.10, Vol30d: 0.20},
	}
	newsDirect := map[string]float64{"WINNER": 0.9, "LOSER": -0.9}
	newsIndirect := map[string]float64{}
	newsTotal := map[string]float64{"WINNER": 0.9, "LOSER": -0.9}
	results := BuildOptimizer(holdings, newsTotal, newsDirect, newsIndirect, nil, defaultSettings(), 0.8, 10, 0.1, 0)
	require.Len(t, results, 3)
	daily := results[0]
	assert.Equal(t, domain.ModeRebalance, daily.Mode)
	if assert.NotEmpty(t, daily.Increases) {
		assert.Equal(t, "WINNER", daily.Increases[0].Symbol)
	}
	if assert.NotEmpty(t, daily.Decreases) {
		found := false
		for _, d := range daily.Decreases {
			if d.Symbol == "LOSER" {
				found = true
			}
		}
		assert.True(t, found)
	}
}

func TestScoreHorizon_RespectsMaxWeightCap(t *testing.T) {
	mom7 := 3.0
	holdings := []domain.ValuedHolding{
		{Holding: domain.Holding{Symbol: "BIG", AssetClass: "NASDAQ"}, Weight: 0.29, MomZ7d: &mom7},
	}
	settings := defaultSettings()
	res := scoreHorizon(domain.HorizonDaily, settings.TurnoverDaily, holdings, map[string]float64{"BIG": 1}, map[string]float64{"BIG": 1}, map[string]float64{}, false, 0, settings, 1.0)
	assert.Empty(t, res.Increases)
}

func TestScoreHorizon_CryptoCapBlocksIncrease(t *testing.T) {
	mom7 := 3.0
	holdings := []domain.ValuedHolding{
		{Holding: domain.Holding{Symbol: "BTC", AssetClass: "CRYPTO"}, Weight: 0.19, MomZ7d: &mom7},
	}
	settings := defaultSettings()
	res := scoreHorizon(domain.HorizonDaily, settings.TurnoverDaily, holdings, map[string]float64{"BTC": 1}, map[string]float64{"BTC": 1}, map[string]float64{}, false, 0, settings, 1.0)
	assert.Empty(t, res.Increases)
}

func TestNegativeScored_FiltersNonNegative(t *testing.T) {
	scored := []scoredHolding{{score: 0.5}, {score: -0.1}, {score: -0.4}}
	out := negativeScored(scored)
	require.Len(t, out, 2)
	assert.Equal(t, -0.1, out[0].score)
	assert.Equal(t, -0.4, out[1].score)
}
