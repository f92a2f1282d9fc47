// Package calibration keeps the forecasting engine's emitted confidence
// aligned with observed hit rates. A collector tracks live forecasts until
// expiry; the harness buffers (confidence, hit) samples per timeframe and
// fits an isotonic (monotone non-decreasing) score-to-probability curve for
// each. Isotonic fitting complements the engine's parametric Platt pass: it
// makes no shape assumption beyond monotonicity, so it catches the
// miscalibration Platt's two-parameter logistic cannot express.
package calibration

import (
	"fmt"
	"sort"
	"time"
)

// CalibrationSample is one scored forecast outcome.
type CalibrationSample struct {
	Score         float64       // raw confidence score, 0..110
	Outcome       bool          // did the forecast hit
	Timestamp     time.Time     // when the forecast was issued
	Symbol        string        // forecast target
	TF            string        // forecast timeframe, the calibration bucket
	HoldingPeriod time.Duration // issue-to-score elapsed
}

// IsotonicCalibrator maps a score to an observed hit probability through a
// monotone step curve fitted with pool-adjacent-violators.
type IsotonicCalibrator struct {
	scores        []float64
	probabilities []float64

	fittedAt    time.Time
	sampleCount int
	tf          string
}

// FitIsotonic fits a calibrator on at least minSamples samples.
func FitIsotonic(samples []CalibrationSample, minSamples int) (*IsotonicCalibrator, error) {
	if len(samples) < minSamples {
		return nil, fmt.Errorf("need %d samples, have %d", minSamples, len(samples))
	}

	sorted := make([]CalibrationSample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	// Pool-adjacent-violators: merge neighboring blocks until the mean
	// outcome is non-decreasing in score.
	type block struct {
		scoreSum float64
		hitSum   float64
		n        int
	}
	blocks := make([]block, 0, len(sorted))
	for _, s := range sorted {
		hit := 0.0
		if s.Outcome {
			hit = 1.0
		}
		blocks = append(blocks, block{scoreSum: s.Score, hitSum: hit, n: 1})
		for len(blocks) >= 2 {
			a, b := blocks[len(blocks)-2], blocks[len(blocks)-1]
			if a.hitSum/float64(a.n) <= b.hitSum/float64(b.n) {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{
				scoreSum: a.scoreSum + b.scoreSum,
				hitSum:   a.hitSum + b.hitSum,
				n:        a.n + b.n,
			})
		}
	}

	cal := &IsotonicCalibrator{
		scores:        make([]float64, len(blocks)),
		probabilities: make([]float64, len(blocks)),
		fittedAt:      time.Now(),
		sampleCount:   len(samples),
	}
	for i, b := range blocks {
		cal.scores[i] = b.scoreSum / float64(b.n)
		cal.probabilities[i] = b.hitSum / float64(b.n)
	}
	return cal, nil
}

// Predict returns the calibrated probability for a score, interpolating
// linearly between fitted knots and clamping at the curve's ends.
func (c *IsotonicCalibrator) Predict(score float64) float64 {
	if len(c.scores) == 0 {
		return 0.5
	}
	if score <= c.scores[0] {
		return c.probabilities[0]
	}
	last := len(c.scores) - 1
	if score >= c.scores[last] {
		return c.probabilities[last]
	}

	i := sort.SearchFloat64s(c.scores, score)
	x0, x1 := c.scores[i-1], c.scores[i]
	y0, y1 := c.probabilities[i-1], c.probabilities[i]
	if x1 == x0 {
		return y1
	}
	return y0 + (y1-y0)*(score-x0)/(x1-x0)
}

// Info describes a fitted curve for the status payload.
type Info struct {
	TF          string    `json:"tf"`
	FittedAt    time.Time `json:"fitted_at"`
	SampleCount int       `json:"sample_count"`
	Knots       int       `json:"knots"`
}

func (c *IsotonicCalibrator) Info() Info {
	return Info{TF: c.tf, FittedAt: c.fittedAt, SampleCount: c.sampleCount, Knots: len(c.scores)}
}
