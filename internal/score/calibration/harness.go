package calibration

import (
	"fmt"
	"sync"
	"time"
)

// CalibrationConfig tunes the harness.
type CalibrationConfig struct {
	MinSamples      int           `yaml:"min_samples"`      // per-timeframe samples required to fit
	RefreshInterval time.Duration `yaml:"refresh_interval"` // refit cadence
	MaxBufferSize   int           `yaml:"max_buffer_size"`  // oldest samples dropped beyond this
}

// DefaultConfig fits after 50 scored forecasts per timeframe and refits
// hourly, which tracks the forecast cadence (a 15m timeframe alone emits up
// to 96 scoreable forecasts a day).
func DefaultConfig() CalibrationConfig {
	return CalibrationConfig{
		MinSamples:      50,
		RefreshInterval: time.Hour,
		MaxBufferSize:   5000,
	}
}

// CalibrationHarness buffers scored-forecast samples and maintains one
// fitted isotonic curve per forecast timeframe.
type CalibrationHarness struct {
	mu           sync.RWMutex
	config       CalibrationConfig
	calibrators  map[string]*IsotonicCalibrator
	samples      []CalibrationSample
	lastRefresh  time.Time
	refreshCount int
	totalSamples int
}

func NewCalibrationHarness(config CalibrationConfig) *CalibrationHarness {
	if config.MinSamples <= 0 {
		config.MinSamples = DefaultConfig().MinSamples
	}
	if config.MaxBufferSize <= 0 {
		config.MaxBufferSize = DefaultConfig().MaxBufferSize
	}
	return &CalibrationHarness{
		config:      config,
		calibrators: make(map[string]*IsotonicCalibrator),
	}
}

// AddSample buffers one scored outcome and refits when the refresh interval
// has elapsed.
func (ch *CalibrationHarness) AddSample(sample CalibrationSample) error {
	if sample.Score < 0 || sample.Score > 110 {
		return fmt.Errorf("sample score %.2f outside [0, 110]", sample.Score)
	}
	if sample.TF == "" {
		return fmt.Errorf("sample has no timeframe")
	}

	ch.mu.Lock()
	ch.samples = append(ch.samples, sample)
	ch.totalSamples++
	if len(ch.samples) > ch.config.MaxBufferSize {
		ch.samples = ch.samples[len(ch.samples)-ch.config.MaxBufferSize:]
	}
	due := ch.config.RefreshInterval > 0 && time.Since(ch.lastRefresh) >= ch.config.RefreshInterval
	ch.mu.Unlock()

	if due {
		ch.Refresh()
	}
	return nil
}

// Refresh refits every timeframe that has enough buffered samples. A
// timeframe that cannot be fitted keeps its previous curve.
func (ch *CalibrationHarness) Refresh() {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	byTF := make(map[string][]CalibrationSample)
	for _, s := range ch.samples {
		byTF[s.TF] = append(byTF[s.TF], s)
	}

	for tf, samples := range byTF {
		cal, err := FitIsotonic(samples, ch.config.MinSamples)
		if err != nil {
			continue
		}
		cal.tf = tf
		ch.calibrators[tf] = cal
	}
	ch.lastRefresh = time.Now()
	ch.refreshCount++
}

// PredictProbability maps a raw score to the observed hit probability for a
// timeframe. Before any curve is fitted it returns an error so callers keep
// the engine's own confidence.
func (ch *CalibrationHarness) PredictProbability(score float64, tf string) (float64, error) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	cal, ok := ch.calibrators[tf]
	if !ok {
		return 0, fmt.Errorf("no calibration fitted for timeframe %s", tf)
	}
	return cal.Predict(score), nil
}

// Status summarizes the harness for the health payload.
type Status struct {
	BufferedSamples int             `json:"buffered_samples"`
	TotalSamples    int             `json:"total_samples"`
	RefreshCount    int             `json:"refresh_count"`
	LastRefresh     time.Time       `json:"last_refresh"`
	Calibrators     map[string]Info `json:"calibrators"`
}

func (ch *CalibrationHarness) Status() Status {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	st := Status{
		BufferedSamples: len(ch.samples),
		TotalSamples:    ch.totalSamples,
		RefreshCount:    ch.refreshCount,
		LastRefresh:     ch.lastRefresh,
		Calibrators:     make(map[string]Info, len(ch.calibrators)),
	}
	for tf, cal := range ch.calibrators {
		st.Calibrators[tf] = cal.Info()
	}
	return st
}
