package calibration

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CalibrationCollector tracks outstanding forecasts until they expire, then
// feeds their realized hit/miss outcome into the calibration harness so the
// confidence score emitted by the forecasting engine stays aligned with the
// actual hit rate observed per timeframe.
type CalibrationCollector struct {
	harness *CalibrationHarness

	activeForecasts map[string]*TrackedForecast
	mutex           sync.RWMutex

	maxTrackingTime time.Duration

	totalForecasts  int
	successfulHits  int
	timeouts        int

	isRunning bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// TrackedForecast is a forecast awaiting its expiry so its outcome can be scored.
type TrackedForecast struct {
	ForecastID   string    `json:"forecast_id"`
	Target       string    `json:"target"`
	TF           string    `json:"tf"`
	Confidence   float64   `json:"confidence"`
	Direction    int       `json:"direction"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAtUTC time.Time `json:"expires_at_utc"`
	RefPrice     float64   `json:"ref_price"`

	Outcome    *bool     `json:"outcome"`
	ActualMove float64   `json:"actual_move"`
	ScoredAt   time.Time `json:"scored_at"`
}

// NewCalibrationCollector creates a new calibration data collector.
func NewCalibrationCollector(harness *CalibrationHarness) *CalibrationCollector {
	return &CalibrationCollector{
		harness:         harness,
		activeForecasts: make(map[string]*TrackedForecast),
		maxTrackingTime: 30 * 24 * time.Hour,
		stopChan:        make(chan struct{}),
	}
}

// StartTracking begins the background expiry sweep.
func (cc *CalibrationCollector) StartTracking(ctx context.Context) error {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	if cc.isRunning {
		return fmt.Errorf("calibration collector is already running")
	}

	cc.isRunning = true
	cc.wg.Add(1)
	go cc.monitorForecasts(ctx)

	return nil
}

// StopTracking stops the background expiry sweep.
func (cc *CalibrationCollector) StopTracking() {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	if !cc.isRunning {
		return
	}

	cc.isRunning = false
	close(cc.stopChan)
	cc.wg.Wait()
}

// TrackNewForecast begins tracking a freshly written forecast for calibration.
func (cc *CalibrationCollector) TrackNewForecast(forecastID, target, tf string, confidence float64, direction int, refPrice float64, expiresAtUTC time.Time) {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	cc.activeForecasts[forecastID] = &TrackedForecast{
		ForecastID:   forecastID,
		Target:       target,
		TF:           tf,
		Confidence:   confidence,
		Direction:    direction,
		CreatedAt:    time.Now(),
		ExpiresAtUTC: expiresAtUTC,
		RefPrice:     refPrice,
	}
	cc.totalForecasts++
}

// monitorForecasts runs sweepExpired once a minute, dropping forecasts still
// unscored maxTrackingTime after tracking began.
func (cc *CalibrationCollector) monitorForecasts(ctx context.Context) {
	defer cc.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cc.stopChan:
			return
		case <-ticker.C:
			cc.sweepExpired()
		}
	}
}

func (cc *CalibrationCollector) sweepExpired() {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	now := time.Now()
	for id, forecast := range cc.activeForecasts {
		if forecast.Outcome != nil {
			continue
		}
		if now.Sub(forecast.CreatedAt) >= cc.maxTrackingTime {
			delete(cc.activeForecasts, id)
			cc.timeouts++
		}
	}
}

// ScoreForecast records a realized price at expiry, computes the hit/miss
// outcome against the forecast's direction, and feeds a calibration sample.
func (cc *CalibrationCollector) ScoreForecast(forecastID string, realizedPrice float64) error {
	cc.mutex.Lock()
	defer cc.mutex.Unlock()

	forecast, exists := cc.activeForecasts[forecastID]
	if !exists {
		return fmt.Errorf("forecast %s not tracked", forecastID)
	}
	if forecast.Outcome != nil {
		return fmt.Errorf("forecast %s already scored", forecastID)
	}
	if forecast.RefPrice == 0 {
		return fmt.Errorf("forecast %s has no reference price", forecastID)
	}

	move := (realizedPrice - forecast.RefPrice) / forecast.RefPrice
	hit := (forecast.Direction > 0 && move > 0) || (forecast.Direction < 0 && move < 0) || (forecast.Direction == 0 && move == 0)

	forecast.Outcome = &hit
	forecast.ActualMove = move
	forecast.ScoredAt = time.Now()

	if hit {
		cc.successfulHits++
	}

	sample := CalibrationSample{
		Score:         forecast.Confidence * 110.0,
		Outcome:       hit,
		Timestamp:     forecast.CreatedAt,
		Symbol:        forecast.Target,
		TF:            forecast.TF,
		HoldingPeriod: forecast.ScoredAt.Sub(forecast.CreatedAt),
	}

	if err := cc.harness.AddSample(sample); err != nil {
		return fmt.Errorf("recording calibration sample: %w", err)
	}

	go func() {
		time.Sleep(5 * time.Minute)
		cc.mutex.Lock()
		defer cc.mutex.Unlock()
		delete(cc.activeForecasts, forecastID)
	}()

	return nil
}

// CalibratedConfidence maps a raw confidence score into an observed-hit-rate
// calibrated probability for the given timeframe.
func (cc *CalibrationCollector) CalibratedConfidence(confidence float64, tf string) (float64, error) {
	return cc.harness.PredictProbability(confidence*110.0, tf)
}

// CollectionStatus reports the collector's current tracking state.
type CollectionStatus struct {
	IsRunning        bool                        `json:"is_running"`
	ActiveForecasts  int                         `json:"active_forecasts"`
	TotalForecasts   int                         `json:"total_forecasts"`
	SuccessfulHits   int                         `json:"successful_hits"`
	HitRate          float64                     `json:"hit_rate"`
	Timeouts         int                         `json:"timeouts"`
	Forecasts        map[string]*TrackedForecast `json:"forecasts"`
}

// GetStatus returns the collector's current tracking status.
func (cc *CalibrationCollector) GetStatus() CollectionStatus {
	cc.mutex.RLock()
	defer cc.mutex.RUnlock()

	active := 0
	for _, forecast := range cc.activeForecasts {
		if forecast.Outcome == nil {
			active++
		}
	}

	status := CollectionStatus{
		IsRunning:       cc.isRunning,
		ActiveForecasts: active,
		TotalForecasts:  cc.totalForecasts,
		SuccessfulHits:  cc.successfulHits,
		Timeouts:        cc.timeouts,
		Forecasts:       make(map[string]*TrackedForecast),
	}

	if cc.totalForecasts > 0 {
		status.HitRate = float64(cc.successfulHits) / float64(cc.totalForecasts)
	}

	for id, forecast := range cc.activeForecasts {
		copyForecast := *forecast
		status.Forecasts[id] = &copyForecast
	}

	return status
}
