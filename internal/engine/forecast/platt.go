package forecast

import "math"

// PlattModel is a fitted per-tf logistic calibration curve
// sigmoid(a*|raw_score| + b).
type PlattModel struct {
	A float64
	B float64
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// FitPlatt runs batch-gradient SGD on (|raw_score|, hit) pairs to fit a, b.
// Returns nil if fewer than 20 samples are available.
func FitPlatt(xs []float64, ys []bool) *PlattModel {
	if len(xs) < 20 {
		return nil
	}
	const (
		maxIter = 200
		lr      = 0.4
		l2      = 0.01
	)
	a, b := 1.0, 0.0
	n := float64(len(xs))
	for iter := 0; iter < maxIter; iter++ {
		gradA, gradB := 0.0, 0.0
		for i, x := range xs {
			y := 0.0
			if ys[i] {
				y = 1.0
			}
			p := sigmoid(a*x + b)
			gradA += (p - y) * x
			gradB += p - y
		}
		gradA = gradA/n + l2*a
		gradB = gradB / n
		a -= lr * gradA
		b -= lr * gradB
	}
	return &PlattModel{A: a, B: b}
}

// Apply calibrates a base confidence from the raw |score| under the fitted
// curve, falling back to the base confidence when no model was fit.
func (m *PlattModel) Apply(rawScore, baseConfidence float64) float64 {
	if m == nil {
		return baseConfidence
	}
	x := clamp(math.Abs(rawScore), 0, 1)
	calibrated := sigmoid(m.A*x + m.B)
	return clamp(calibrated, 0.1, 0.95)
}

// ConfidenceFromScore computes the pre-calibration base confidence
//.
func ConfidenceFromScore(rawScore, minConfidence float64) float64 {
	base := minConfidence + (1-minConfidence)*math.Min(1.0, math.Abs(rawScore))
	return clamp(base, minConfidence, 0.95)
}
