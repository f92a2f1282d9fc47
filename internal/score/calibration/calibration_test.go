package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleSet builds n samples for tf whose hit rate rises with score, with
// hitAt controlling where outcomes flip from miss to hit.
func sampleSet(tf string, n int, hitAt float64) []CalibrationSample {
	out := make([]CalibrationSample, 0, n)
	for i := 0; i < n; i++ {
		score := float64(i) * 110.0 / float64(n)
		out = append(out, CalibrationSample{
			Score:     score,
			Outcome:   score >= hitAt,
			Timestamp: time.Now(),
			Symbol:    "BTC",
			TF:        tf,
		})
	}
	return out
}

func TestFitIsotonicRequiresMinSamples(t *testing.T) {
	_, err := FitIsotonic(sampleSet("1h", 10, 50), 20)
	assert.Error(t, err)
}

func TestFitIsotonicIsMonotone(t *testing.T) {
	cal, err := FitIsotonic(sampleSet("1h", 100, 60), 50)
	require.NoError(t, err)

	prev := -1.0
	for s := 0.0; s <= 110; s += 5 {
		p := cal.Predict(s)
		assert.GreaterOrEqual(t, p, prev, "probability must not decrease with score")
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		prev = p
	}
}

func TestPredictClampsAtCurveEnds(t *testing.T) {
	cal, err := FitIsotonic(sampleSet("1h", 100, 60), 50)
	require.NoError(t, err)

	assert.Equal(t, cal.Predict(-10), cal.Predict(0))
	assert.Equal(t, cal.Predict(200), cal.Predict(110))
}

func TestPredictSeparatesLowAndHighScores(t *testing.T) {
	cal, err := FitIsotonic(sampleSet("1h", 200, 55), 50)
	require.NoError(t, err)

	assert.Less(t, cal.Predict(10), 0.2, "low scores mostly missed")
	assert.Greater(t, cal.Predict(100), 0.8, "high scores mostly hit")
}

func TestHarnessFitsPerTimeframe(t *testing.T) {
	h := NewCalibrationHarness(CalibrationConfig{MinSamples: 50, MaxBufferSize: 1000})

	for _, s := range sampleSet("15m", 100, 40) {
		require.NoError(t, h.AddSample(s))
	}
	for _, s := range sampleSet("1h", 100, 80) {
		require.NoError(t, h.AddSample(s))
	}
	h.Refresh()

	p15, err := h.PredictProbability(60, "15m")
	require.NoError(t, err)
	p1h, err := h.PredictProbability(60, "1h")
	require.NoError(t, err)
	assert.Greater(t, p15, p1h, "same score calibrates differently per timeframe")

	_, err = h.PredictProbability(60, "6h")
	assert.Error(t, err, "unfitted timeframe")
}

func TestHarnessRejectsBadSamples(t *testing.T) {
	h := NewCalibrationHarness(DefaultConfig())
	assert.Error(t, h.AddSample(CalibrationSample{Score: -5, TF: "1h"}))
	assert.Error(t, h.AddSample(CalibrationSample{Score: 50}))
}

func TestHarnessBufferTrim(t *testing.T) {
	h := NewCalibrationHarness(CalibrationConfig{MinSamples: 10, MaxBufferSize: 20})
	for _, s := range sampleSet("1h", 50, 40) {
		require.NoError(t, h.AddSample(s))
	}
	assert.Equal(t, 20, h.Status().BufferedSamples)
	assert.Equal(t, 50, h.Status().TotalSamples)
}

func TestCollectorTracksAndScores(t *testing.T) {
	h := NewCalibrationHarness(CalibrationConfig{MinSamples: 5, MaxBufferSize: 100})
	cc := NewCalibrationCollector(h)

	expires := time.Now().Add(time.Hour)
	cc.TrackNewForecast("f1", "BTC", "1h", 0.7, 1, 100.0, expires)

	require.NoError(t, cc.ScoreForecast("f1", 105.0))
	assert.Error(t, cc.ScoreForecast("f1", 105.0), "double scoring rejected")
	assert.Error(t, cc.ScoreForecast("missing", 105.0))

	status := cc.GetStatus()
	assert.Equal(t, 1, status.TotalForecasts)
	assert.Equal(t, 1, status.SuccessfulHits, "UP forecast with positive move is a hit")
}

func TestCollectorRejectsZeroRefPrice(t *testing.T) {
	cc := NewCalibrationCollector(NewCalibrationHarness(DefaultConfig()))
	cc.TrackNewForecast("f1", "BTC", "1h", 0.7, 1, 0, time.Now().Add(time.Hour))
	assert.Error(t, cc.ScoreForecast("f1", 105.0))
}
