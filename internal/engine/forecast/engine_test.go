package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
)

func testSettings() config.ForecastSettings {
	s := config.DefaultForecastSettings()
	s.MinHoldMinutes = map[domain.Timeframe]int{
		domain.TF15m: 20, domain.TF1h: 75, domain.TF3h: 200, domain.TF6h: 340,
	}
	s.FlipHysteresis = 0.12
	return s
}

func TestApplyHysteresis_FlipWithinHoldRevertsToPrevious(t *testing.T) {
	now := time.Now()
	prev := &persistence.Forecast{
		Direction:  int(domain.DirUp),
		FusedScore: 0.3,
		CreatedAt:  now.Add(-5 * time.Minute),
	}
	score, dir := applyHysteresis(prev, -0.2, domain.DirDown, domain.TF1h, false, testSettings(), now)
	assert.Equal(t, domain.DirUp, dir)
	assert.InDelta(t, 0.3, score, 1e-9)
}

func TestApplyHysteresis_MajorEventBypassesHold(t *testing.T) {
	now := time.Now()
	prev := &persistence.Forecast{
		Direction:  int(domain.DirUp),
		FusedScore: 0.3,
		CreatedAt:  now.Add(-5 * time.Minute),
	}
	score, dir := applyHysteresis(prev, -0.5, domain.DirDown, domain.TF1h, true, testSettings(), now)
	assert.Equal(t, domain.DirDown, dir)
	assert.InDelta(t, -0.5, score, 1e-9)
}

func TestApplyHysteresis_SmallFlipBelowThresholdReverts(t *testing.T) {
	now := time.Now()
	prev := &persistence.Forecast{
		Direction:  int(domain.DirUp),
		FusedScore: 0.30,
		CreatedAt:  now.Add(-200 * time.Minute), // past hold window
	}
	score, dir := applyHysteresis(prev, 0.25, domain.DirDown, domain.TF1h, false, testSettings(), now)
	// |0.25 - 0.30| = 0.05 < flip_hysteresis(0.12) -> reverts
	assert.Equal(t, domain.DirUp, dir)
	assert.InDelta(t, 0.30, score, 1e-9)
}

func TestShouldEmit_NoPreviousAlwaysEmits(t *testing.T) {
	assert.True(t, shouldEmit(nil, 0.1, 0.5, domain.TF1h, time.Now()))
}

func TestShouldEmit_StaleEnoughEmits(t *testing.T) {
	now := time.Now()
	prev := &persistence.Forecast{CreatedAt: now.Add(-45 * time.Minute), Direction: int(domain.DirUp), Confidence: 0.5}
	assert.True(t, shouldEmit(prev, 0.3, 0.5, domain.TF1h, now))
}

func TestShouldEmit_SuppressedWhenNothingChanged(t *testing.T) {
	now := time.Now()
	prev := &persistence.Forecast{CreatedAt: now.Add(-time.Minute), Direction: int(domain.DirUp), Confidence: 0.5}
	assert.False(t, shouldEmit(prev, 0.3, 0.52, domain.TF1h, now))
}

func TestBuildRationale_BalancedWhenNearZero(t *testing.T) {
	assert.Contains(t, buildRationale(0.01, nil), "balanced")
}

func TestBuildRationale_MentionsTopHeadline(t *testing.T) {
	drivers := []domain.ClusterContribution{{Headline: "ETF inflows accelerate", Contribution: 0.5}}
	r := buildRationale(0.5, drivers)
	assert.Contains(t, r, "ETF inflows accelerate")
	assert.Contains(t, r, "positive")
}
