package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketintel/analytics/internal/domain"
)

func TestMarketSignal_RiskOnTiltsBTCPositive(t *testing.T) {
	snap := domain.MarketSnapshot{
		Yahoo: domain.YahooSnapshot{
			DXYChg24h: -0.8,
			QQQChg24h: 1.5,
			VIX:       14,
		},
		FlowScore: 75,
		FundingZ:  0.5,
	}
	score, drivers := MarketSignal(snap, domain.TargetBTC)
	assert.Greater(t, score, 0.0)
	assert.NotEmpty(t, drivers)
}

func TestMarketSignal_STABLESInvertsRiskFeatures(t *testing.T) {
	snap := domain.MarketSnapshot{
		Yahoo: domain.YahooSnapshot{
			DXYChg24h: -0.8,
			QQQChg24h: 1.5,
			VIX:       14,
		},
		FlowScore: 75,
	}
	btcScore, _ := MarketSignal(snap, domain.TargetBTC)
	stableScore, _ := MarketSignal(snap, domain.TargetSTABLES)
	assert.Greater(t, btcScore, 0.0)
	assert.Less(t, stableScore, 0.0)
}

func TestMarketSignal_MacroRiskOffBearishForCrypto(t *testing.T) {
	snap := domain.MarketSnapshot{MacroRiskOff: true}
	score, drivers := MarketSignal(snap, domain.TargetBTC)
	assert.Less(t, score, 0.0)
	var found bool
	for _, d := range drivers {
		if d.Name == "macro_risk_off" {
			found = true
			assert.Less(t, d.Contribution, 0.0)
		}
	}
	assert.True(t, found)
}

func TestContextMultiplier(t *testing.T) {
	assert.InDelta(t, 1.15, ContextMultiplier(true, -1), 1e-9)
	assert.InDelta(t, 0.9, ContextMultiplier(true, 1), 1e-9)
	assert.InDelta(t, 1.0, ContextMultiplier(true, 0), 1e-9)
	assert.InDelta(t, 1.0, ContextMultiplier(false, -1), 1e-9)
}
