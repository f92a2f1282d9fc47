package eventstudy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/domain"
)

func bar(t time.Time, close float64) domain.PriceBar {
	return domain.PriceBar{Asset: "BTC-USD", TsUTC: t, Close: close, Volume: 100}
}

// 15-minute bars starting at 2025-01-01 12:00Z with an event at 12:07Z:
// aligned index = 0, pre.ret = 0.0,
// post.15m.ret = (close[1]-close[0])/close[0]*100.
func TestStudy_AlignedAtIndexZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	bars := []domain.PriceBar{
		bar(start, 100),
		bar(start.Add(15*time.Minute), 101.5),
		bar(start.Add(30*time.Minute), 103),
	}
	eventTs := start.Add(7 * time.Minute)

	res := Study(bars, eventTs, DefaultWindows, map[string]float64{})

	require.Equal(t, 0, res.AlignedIndex)
	assert.Equal(t, 0.0, res.Pre["15m"].Ret)
	assert.False(t, res.Pre["15m"].Available)
	assert.Contains(t, res.MissingFields, "pre.15m")

	expectedPostRet := (101.5 - 100) / 100 * 100
	assert.InDelta(t, expectedPostRet, res.Post["15m"].Ret, 1e-9)
	assert.True(t, res.Post["15m"].Available)
}

func TestAlignIndex_BeforeAllBars(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	bars := []domain.PriceBar{bar(start, 100)}
	idx := AlignIndex(bars, start.Add(-time.Hour))
	assert.Equal(t, -1, idx)
}

// Pins the pre_avg==0 ⇒ ratio≈1.0 behavior so it cannot change silently.
func TestPrePostRatio_ZeroPreAvg(t *testing.T) {
	assert.InDelta(t, 1.0, PrePostRatio(0, 0), 1e-6)
	ratio := PrePostRatio(0, 0.02)
	assert.Greater(t, ratio, 1.0)
}

func TestNonOverlappingReturns(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.PriceBar
	price := 100.0
	for i := 0; i < 8; i++ {
		bars = append(bars, bar(start.Add(time.Duration(i)*15*time.Minute), price))
		price += 1
	}
	rets := NonOverlappingReturns(bars, 2)
	require.Len(t, rets, 3)
}

func TestStepBarsForTF(t *testing.T) {
	assert.Equal(t, 1, StepBarsForTF(15, 15))
	assert.Equal(t, 4, StepBarsForTF(60, 15))
	assert.Equal(t, 1, StepBarsForTF(5, 15))
}
