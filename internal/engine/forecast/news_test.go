package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/domain"
)

func TestAggregateNewsSignal_NeutralClusterUsesNeutralWeight(t *testing.T) {
	now := time.Now()
	clusters := []domain.EventCluster{
		{
			ClusterID:   "c1",
			Headline:    "Central bank holds rates steady",
			TsUTC:       now.Add(-time.Hour),
			Credibility: 1.0,
			Impact:      80,
			Direction:   domain.DirNeutral,
			Targets:     []domain.EventTarget{{Name: "BTC", Relevance: 0.9}},
		},
	}
	score, top := AggregateNewsSignal(clusters, domain.TargetBTC, 12, 0.35, false, nil, now)
	require.Len(t, top, 1)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 0.25) // 0.8 impact * 0.944 decay * 0.9 relevance * 0.35 neutral_weight ~ 0.238
}

func TestAggregateNewsSignal_IrrelevantClusterSkipped(t *testing.T) {
	now := time.Now()
	clusters := []domain.EventCluster{
		{
			ClusterID: "c1",
			TsUTC:     now,
			Impact:    90,
			Targets:   []domain.EventTarget{{Name: "STABLES", Relevance: 0.9}},
		},
	}
	score, top := AggregateNewsSignal(clusters, domain.TargetBTC, 12, 0.35, false, nil, now)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, top)
}

func TestAggregateNewsSignal_RealizedZOverridesImpactNorm(t *testing.T) {
	now := time.Now()
	clusters := []domain.EventCluster{
		{
			ClusterID:   "c1",
			Headline:    "ETF inflow surge",
			TsUTC:       now,
			Credibility: 1.0,
			Impact:      10, // would be weak without the override
			Direction:   domain.DirUp,
			Targets:     []domain.EventTarget{{Name: "BTC", Relevance: 1.0}},
		},
	}
	z := 2.5
	overrides := map[string]ImpactOverride{"c1": {RealizedZ: &z}}
	scoreWithOverride, _ := AggregateNewsSignal(clusters, domain.TargetBTC, 12, 0.35, false, overrides, now)
	scoreWithout, _ := AggregateNewsSignal(clusters, domain.TargetBTC, 12, 0.35, false, nil, now)
	assert.Greater(t, scoreWithOverride, scoreWithout)
}

func TestDecay_HalvesAtHalfLife(t *testing.T) {
	assert.InDelta(t, 0.5, decay(6, 6), 1e-9)
	assert.InDelta(t, 1.0, decay(0, 6), 1e-9)
	assert.InDelta(t, 1.0, decay(5, 0), 1e-9)
}
