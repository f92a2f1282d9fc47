package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketintel/analytics/internal/domain"
)

func TestNewsDirection_ChannelWeights(t *testing.T) {
	growth := domain.NewsItem{ImpactChannel: []string{"GROWTH"}}
	assert.Equal(t, 0.8, NewsDirection(growth, nil, nil))

	reg := domain.NewsItem{ImpactChannel: []string{"REGULATORY_PRESSURE"}}
	assert.Equal(t, -1.0, NewsDirection(reg, nil, nil))
}

func TestNewsDirection_LiquidityUsesFlowScore(t *testing.T) {
	item := domain.NewsItem{ImpactChannel: []string{"LIQUIDITY"}}
	high := 65.0
	low := 30.0
	assert.Equal(t, 0.5, NewsDirection(item, &high, nil))
	assert.Equal(t, -0.5, NewsDirection(item, &low, nil))
}

func TestNewsDirection_RiskFlagsNudgeScore(t *testing.T) {
	item := domain.NewsItem{ImpactChannel: []string{"GROWTH"}}
	riskOff := NewsDirection(item, nil, []string{"FX_RISK_OFF"})
	assert.InDelta(t, 0.6, riskOff, 1e-9)
}

func TestNewsDirection_ClampsToUnitRange(t *testing.T) {
	item := domain.NewsItem{ImpactChannel: []string{"REGULATORY_PRESSURE", "SUPPLY_CHAIN"}}
	assert.Equal(t, -1.0, NewsDirection(item, nil, []string{"RISK_OFF"}))
}

func TestComputeNewsImpact_DampensLowSignalItems(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "NVDA", Aliases: []string{"NVDA", "Nvidia"}}}
	now := time.Now()

	lowSignal := domain.NewsItem{
		Title: "NVDA mentioned in passing", EventType: "OTHER",
		RelevanceScore: 100, QualityScore: 100, PublishedAtUTC: &now,
	}
	matched, _ := ComputeNewsImpact([]domain.NewsItem{lowSignal}, holdings, nil, nil, now)
	if assert.Len(t, matched, 1) {
		assert.True(t, matched[0].LowSignal)
	}

	normal := domain.NewsItem{
		Title: "NVDA surges on earnings beat", EventType: "EARNINGS",
		ImpactChannel: []string{"GROWTH"}, RelevanceScore: 100, QualityScore: 100, PublishedAtUTC: &now,
	}
	matchedNormal, _ := ComputeNewsImpact([]domain.NewsItem{normal}, holdings, nil, nil, now)
	if assert.Len(t, matchedNormal, 1) {
		assert.False(t, matchedNormal[0].LowSignal)
		assert.Greater(t, matchedNormal[0].Impacts[0].Direction, matched[0].Impacts[0].Direction)
	}
}

func TestComputeNewsImpact_UnmatchedItemsAreDropped(t *testing.T) {
	holdings := []domain.Holding{{Symbol: "NVDA", Aliases: []string{"NVDA"}}}
	now := time.Now()
	item := domain.NewsItem{Title: "Completely unrelated macro commentary", RelevanceScore: 100, QualityScore: 100, PublishedAtUTC: &now}
	matched, counts := ComputeNewsImpact([]domain.NewsItem{item}, holdings, nil, nil, now)
	assert.Empty(t, matched)
	assert.Equal(t, 0, counts[domain.MatchDirect])
}

func TestAggregateBySymbol_SplitsDirectAndIndirect(t *testing.T) {
	items := []MatchedNewsItem{
		{Impacts: []domain.NewsImpact{
			{Symbol: "NVDA", Direction: 0.5, Indirect: false},
			{Symbol: "NVDA", Direction: 0.2, Indirect: true},
		}},
		{LowSignal: true, Impacts: []domain.NewsImpact{{Symbol: "AAPL", Direction: -0.3, Indirect: false}}},
	}
	total, direct, indirect, lowSignalCount := AggregateBySymbol(items)
	assert.InDelta(t, 0.7, total["NVDA"], 1e-9)
	assert.InDelta(t, 0.5, direct["NVDA"], 1e-9)
	assert.InDelta(t, 0.2, indirect["NVDA"], 1e-9)
	assert.InDelta(t, -0.3, total["AAPL"], 1e-9)
	assert.Equal(t, 1, lowSignalCount)
}
