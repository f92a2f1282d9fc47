package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/domain"
)

func baseSnapshot() domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{
		Base: "USD",
		Holdings: []domain.ValuedHolding{
			{Holding: domain.Holding{Symbol: "BTC", AssetClass: "CRYPTO"}, Weight: 0.5},
			{Holding: domain.Holding{Symbol: "NVDA", AssetClass: "NASDAQ"}, Weight: 0.5},
		},
		Allocation: domain.Allocation{ByAssetClass: map[string]float64{"CRYPTO": 0.5, "NASDAQ": 0.5}},
		Risk:       domain.RiskMetrics{HHI: 0.5, MaxWeight: 0.5},
		NewsImpacts: []domain.NewsImpact{
			{Symbol: "BTC", Direction: 0.6, Headline: "BTC rallies on ETF inflows", EventType: "FLOW"},
			{Symbol: "NVDA", Direction: -0.3, Headline: "NVDA misses on margins", EventType: "EARNINGS"},
		},
		Optimizers: []domain.OptimizerResult{
			{Horizon: domain.HorizonDaily, Mode: domain.ModeRebalance, TurnoverCap: 0.04,
				Increases: []domain.RebalanceAction{{Symbol: "BTC", DeltaWeight: 0.02}}},
			{Horizon: domain.HorizonWeekly, Mode: domain.ModeRebalance, TurnoverCap: 0.10},
			{Horizon: domain.HorizonMonthly, Mode: domain.ModeRebalance, TurnoverCap: 0.20},
		},
		DebugNotes: []string{"portfolio_fx_status=ok"},
	}
}

func TestBuildBrief_SelectsRiskOnModeOnHighCryptoShare(t *testing.T) {
	brief := BuildBrief(baseSnapshot(), domain.HorizonDaily, portfolioConstraints{maxWeight: 0.30, maxCryptoWeight: 0.20}, time.Now())
	assert.Equal(t, domain.ModeRiskOn, brief.Mode)
}

func TestBuildBrief_SelectsRiskOffModeOnLowCryptoShare(t *testing.T) {
	snap := baseSnapshot()
	snap.Allocation.ByAssetClass = map[string]float64{"CRYPTO": 0.05, "NASDAQ": 0.95}
	brief := BuildBrief(snap, domain.HorizonDaily, portfolioConstraints{}, time.Now())
	assert.Equal(t, domain.ModeRiskOff, brief.Mode)
}

func TestBuildBrief_SelectsOptimizerHintsForRequestedPeriod(t *testing.T) {
	brief := BuildBrief(baseSnapshot(), domain.HorizonWeekly, portfolioConstraints{}, time.Now())
	assert.Equal(t, domain.HorizonWeekly, brief.Hints.Period)
	assert.InDelta(t, 0.10, brief.Hints.TurnoverCap, 1e-9)
}

func TestBuildBrief_TopDriversSplitPositiveAndNegative(t *testing.T) {
	brief := BuildBrief(baseSnapshot(), domain.HorizonDaily, portfolioConstraints{}, time.Now())
	require.Len(t, brief.PositiveDrivers, 1)
	require.Len(t, brief.NegativeDrivers, 1)
	assert.Equal(t, "BTC", brief.PositiveDrivers[0].Symbol)
	assert.Equal(t, "NVDA", brief.NegativeDrivers[0].Symbol)
}

func TestBuildBrief_FlagsNoNewsWhenImpactsEmpty(t *testing.T) {
	snap := baseSnapshot()
	snap.NewsImpacts = nil
	brief := BuildBrief(snap, domain.HorizonDaily, portfolioConstraints{}, time.Now())
	assert.Contains(t, brief.MissingData[0], "NO_NEWS_ITEMS")
}

func TestBuildBrief_SummaryCappedAtFiveLines(t *testing.T) {
	brief := BuildBrief(baseSnapshot(), domain.HorizonDaily, portfolioConstraints{maxWeight: 0.3, maxCryptoWeight: 0.2}, time.Now())
	assert.LessOrEqual(t, len(brief.ExecutiveSummary), 5)
	assert.NotEmpty(t, brief.ExecutiveSummary)
}
