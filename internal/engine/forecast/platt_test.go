package forecast

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitPlatt_InsufficientSamples(t *testing.T) {
	xs := []float64{0.1, 0.2, 0.3}
	ys := []bool{true, false, true}
	assert.Nil(t, FitPlatt(xs, ys))
}

func TestFitPlatt_SeparatesHitsFromMisses(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var xs []float64
	var ys []bool
	for i := 0; i < 30; i++ {
		xs = append(xs, 0.1+0.05*float64(i%10))
		ys = append(ys, r.Float64() < 0.2) // low raw score -> mostly misses
	}
	for i := 0; i < 30; i++ {
		xs = append(xs, 0.7+0.02*float64(i%10))
		ys = append(ys, r.Float64() < 0.8) // high raw score -> mostly hits
	}
	model := FitPlatt(xs, ys)
	assert.NotNil(t, model)

	lowConf := model.Apply(0.1, 0.5)
	highConf := model.Apply(0.9, 0.5)
	assert.Greater(t, highConf, lowConf)
}

func TestConfidenceFromScore(t *testing.T) {
	assert.InDelta(t, 0.35, ConfidenceFromScore(0.0, 0.35), 1e-9)
	assert.InDelta(t, 0.95, ConfidenceFromScore(1.0, 0.35), 1e-9)
	assert.InDelta(t, 0.95, ConfidenceFromScore(5.0, 0.35), 1e-9)
}
