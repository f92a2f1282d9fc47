// Package forecast fuses market and news signals into per-(tf,target)
// forecasts under hysteresis, scores them once expired, and computes
// backtest metrics.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/marketintel/analytics/internal/config"
	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/persistence"
)

// referenceAsset is the single reference price series used to score expired
// forecasts: every target grades against BTC.
const referenceAsset = "BTC-USD"

// Tracker receives every emitted forecast and, once expired, its realized
// reference price, so a calibration layer can observe confidence-vs-outcome
// pairs without the engine depending on it. Nil disables tracking.
type Tracker interface {
	TrackNewForecast(forecastID, target, tf string, confidence float64, direction int, refPrice float64, expiresAtUTC time.Time)
	ScoreForecast(forecastID string, realizedPrice float64) error
}

// Engine wires the pure signal math to persisted forecasts/bars/impacts.
type Engine struct {
	Forecasts     persistence.ForecastRepo
	Impacts       persistence.EventImpactRepo
	Bars          persistence.PriceBarRepo
	Settings      config.ForecastSettings
	HalfLifeHours float64
	Calibration   Tracker
}

// NewEngine wires the forecasting engine to its repositories and settings.
func NewEngine(forecasts persistence.ForecastRepo, impacts persistence.EventImpactRepo, bars persistence.PriceBarRepo, settings config.ForecastSettings, halfLifeHours float64) *Engine {
	return &Engine{Forecasts: forecasts, Impacts: impacts, Bars: bars, Settings: settings, HalfLifeHours: halfLifeHours}
}

func directionFromScore(score, neutralBand float64) domain.Direction {
	if math.Abs(score) < neutralBand {
		return domain.DirNeutral
	}
	if score > 0 {
		return domain.DirUp
	}
	return domain.DirDown
}

// Generate fuses market + news signals for every (tf, target) pair and
// persists the emitted forecasts.
func (e *Engine) Generate(ctx context.Context, now time.Time, snapshot domain.MarketSnapshot, clusters []domain.EventCluster) ([]domain.Forecast, error) {
	var out []domain.Forecast

	for _, tf := range domain.AllTimeframes {
		marketW, newsW := e.adaptiveWeights(ctx, tf, now)
		calModel := e.fitCalibration(ctx, tf, now)

		for _, target := range domain.AllTargets {
			marketScore, marketDrivers := MarketSignal(snapshot, target)
			overrides := e.loadOverrides(ctx, clusters, target, tf)
			newsScore, newsDrivers := AggregateNewsSignal(clusters, target, e.HalfLifeHours, e.Settings.NeutralClusterWeight, snapshot.MacroRiskOff, overrides, now)

			rawScore := marketW*marketScore + newsW*newsScore
			direction := directionFromScore(rawScore, e.Settings.NeutralBandPct)

			majorEvent := false
			for _, d := range newsDrivers {
				if d.Impact >= 70 {
					majorEvent = true
					break
				}
			}

			prev, err := e.Forecasts.Latest(ctx, string(target), string(tf))
			if err != nil {
				return nil, fmt.Errorf("forecast: load previous: %w", err)
			}

			rawScore, direction = applyHysteresis(prev, rawScore, direction, tf, majorEvent, e.Settings, now)

			baseConf := ConfidenceFromScore(rawScore, e.Settings.MinConfidence)
			confidence := calModel.Apply(rawScore, baseConf)

			if !shouldEmit(prev, rawScore, confidence, tf, now) {
				continue
			}

			id := uuid.NewString()
			expiresAt := now.Add(time.Duration(tf.Minutes()) * time.Minute)
			rationale := buildRationale(rawScore, newsDrivers)

			f := domain.Forecast{
				ID:            id,
				TsUTC:         now,
				TF:            tf,
				Target:        target,
				Direction:     direction,
				RawScore:      rawScore,
				MarketScore:   marketScore,
				NewsScore:     newsScore,
				Confidence:    confidence,
				ExpiresAtUTC:  expiresAt,
				MarketDrivers: marketDrivers,
				NewsDrivers:   newsDrivers,
				RationaleText: rationale,
			}

			rationaleJSON, _ := json.Marshal(struct {
				RawScore      float64                      `json:"raw_score"`
				MarketDrivers []domain.DriverContribution  `json:"market_drivers"`
				NewsDrivers   []domain.ClusterContribution `json:"news_drivers"`
				Rationale     string                       `json:"rationale"`
			}{rawScore, marketDrivers, newsDrivers, rationale})

			row := persistence.Forecast{
				ForecastID:    id,
				Target:        string(target),
				TF:            string(tf),
				Direction:     int(direction),
				Confidence:    confidence,
				MarketScore:   marketScore,
				NewsScore:     newsScore,
				FusedScore:    rawScore,
				RationaleJSON: rationaleJSON,
				ExpiresAtUTC:  expiresAt,
			}
			if err := e.Forecasts.Insert(ctx, row); err != nil {
				return nil, fmt.Errorf("forecast: insert: %w", err)
			}
			if e.Calibration != nil {
				refPrice := 0.0
				if bar, err := e.Bars.Nearest(ctx, referenceAsset, now); err == nil && bar != nil {
					refPrice = bar.Close
				}
				e.Calibration.TrackNewForecast(id, string(target), string(tf), confidence, int(direction), refPrice, expiresAt)
			}
			out = append(out, f)
		}
	}
	return out, nil
}

// applyHysteresis is the hold-minutes/flip-threshold gate: a directional
// flip within min_hold_minutes[tf] or smaller than flip_hysteresis reverts
// to the previous score/direction, unless a major event (impact >= 70) is
// present.
func applyHysteresis(prev *persistence.Forecast, score float64, direction domain.Direction, tf domain.Timeframe, majorEvent bool, settings config.ForecastSettings, now time.Time) (float64, domain.Direction) {
	if prev == nil {
		return score, direction
	}
	prevDir := domain.Direction(prev.Direction)
	if direction == prevDir {
		return score, direction
	}
	ageMinutes := now.Sub(prev.CreatedAt).Minutes()
	holdMinutes := float64(settings.MinHoldMinutes[tf])
	if ageMinutes < holdMinutes && !majorEvent {
		return prev.FusedScore, prevDir
	}
	if math.Abs(score-prev.FusedScore) < settings.FlipHysteresis && !majorEvent {
		return prev.FusedScore, prevDir
	}
	return score, direction
}

// shouldEmit gates forecast emission: no previous row, enough elapsed time,
// a direction change, or a confidence swing all trigger emission. The
// direction-changed check deliberately recomputes direction at a strict
// zero neutral band rather than the configured neutral_band_pct, which
// differs subtly from the direction used for hysteresis above.
func shouldEmit(prev *persistence.Forecast, score, confidence float64, tf domain.Timeframe, now time.Time) bool {
	if prev == nil {
		return true
	}
	ageMinutes := now.Sub(prev.CreatedAt).Minutes()
	if ageMinutes >= float64(tf.Minutes())*0.5 {
		return true
	}
	if domain.Direction(prev.Direction) != directionFromScore(score, 0.0) {
		return true
	}
	if math.Abs(prev.Confidence-confidence) >= 0.10 {
		return true
	}
	return false
}

func buildRationale(score float64, drivers []domain.ClusterContribution) string {
	if math.Abs(score) < 0.05 {
		return "Signals are balanced with no clear directional confirmation."
	}
	tone := "negative"
	if score > 0 {
		tone = "positive"
	}
	if len(drivers) > 0 {
		headline := drivers[0].Headline
		if len(headline) > 120 {
			headline = headline[:120]
		}
		return fmt.Sprintf("News impact skews %s, strongest headline: %s.", tone, headline)
	}
	return fmt.Sprintf("Market signals are tilted %s.", tone)
}

// loadOverrides fetches realized event-study impact for the clusters
// relevant to this target/tf, used to sharpen news-signal impact weighting
//.
func (e *Engine) loadOverrides(ctx context.Context, clusters []domain.EventCluster, target domain.Target, tf domain.Timeframe) map[string]ImpactOverride {
	out := make(map[string]ImpactOverride, len(clusters))
	for _, c := range clusters {
		impact, err := e.Impacts.Get(ctx, c.ClusterID, string(target), string(tf))
		if err != nil || impact == nil {
			continue
		}
		ov := ImpactOverride{}
		if impact.PostReturn != 0 {
			ret := impact.PostReturn
			ov.RealizedRet = &ret
		}
		if impact.ZScore != 0 {
			z := impact.ZScore
			ov.RealizedZ = &z
		}
		out[c.ClusterID] = ov
	}
	return out
}

// adaptiveWeights renormalizes the base market/news weights using the last
// 7 days of backtest performance across all targets for this tf, scaling
// news weight down when Brier/hit-rate are poor and up when they're strong
//.
func (e *Engine) adaptiveWeights(ctx context.Context, tf domain.Timeframe, now time.Time) (float64, float64) {
	tr := persistence.TimeRange{From: now.AddDate(0, 0, -7), To: now}
	var totalN int64
	var sumBrier, sumHit float64
	for _, target := range domain.AllTargets {
		hitRate, avgBrier, n, err := e.Forecasts.Metrics(ctx, string(target), string(tf), tr)
		if err != nil || n == 0 {
			continue
		}
		sumBrier += avgBrier * float64(n)
		sumHit += hitRate * float64(n)
		totalN += n
	}
	avgBrier, avgHit := 0.0, 0.0
	if totalN > 0 {
		avgBrier = sumBrier / float64(totalN)
		avgHit = sumHit / float64(totalN)
	}

	newsW := e.Settings.BaseNewsWeight
	switch {
	case avgBrier >= 0.30 || avgHit <= 0.45:
		newsW *= 0.75
	case avgBrier > 0 && avgBrier <= 0.18 && avgHit >= 0.55:
		newsW *= 1.2
	}
	marketW := e.Settings.BaseMarketWeight
	total := math.Max(0.01, marketW+newsW)
	return marketW / total, newsW / total
}

// fitCalibration fits a fresh Platt model per tf from the last 7 days of
// (|fused_score|, hit) pairs across all targets.
func (e *Engine) fitCalibration(ctx context.Context, tf domain.Timeframe, now time.Time) *PlattModel {
	rows, err := e.Forecasts.ListScoredSince(ctx, string(tf), now.AddDate(0, 0, -7))
	if err != nil || len(rows) == 0 {
		return nil
	}
	xs := make([]float64, 0, len(rows))
	ys := make([]bool, 0, len(rows))
	for _, r := range rows {
		xs = append(xs, clamp(math.Abs(r.FusedScore), 0, 1))
		ys = append(ys, r.Hit)
	}
	return FitPlatt(xs, ys)
}

// ScoreExpired grades every unscored forecast whose expiry has passed,
// against the BTC reference series regardless of target.
func (e *Engine) ScoreExpired(ctx context.Context, now time.Time, neutralBandPct float64, limit int) (int, error) {
	expired, err := e.Forecasts.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("forecast: list expired: %w", err)
	}
	scored := 0
	for _, f := range expired {
		start, err := e.Bars.Nearest(ctx, referenceAsset, f.CreatedAt)
		if err != nil || start == nil || start.Close == 0 {
			continue
		}
		end, err := e.Bars.Nearest(ctx, referenceAsset, f.ExpiresAtUTC)
		if err != nil || end == nil {
			continue
		}
		ret := (end.Close - start.Close) / start.Close

		var hit bool
		switch domain.Direction(f.Direction) {
		case domain.DirNeutral:
			hit = math.Abs(ret) <= neutralBandPct
		case domain.DirUp:
			hit = ret > neutralBandPct
		case domain.DirDown:
			hit = ret < -neutralBandPct
		}
		hitVal := 0.0
		if hit {
			hitVal = 1.0
		}
		brier := (f.Confidence - hitVal) * (f.Confidence - hitVal)

		score := persistence.ForecastScore{
			ForecastID: f.ForecastID,
			RefPrice:   start.Close,
			ActualMove: ret,
			Hit:        hit,
			Brier:      brier,
			ScoredAt:   now,
		}
		if err := e.Forecasts.AppendScore(ctx, score); err != nil {
			return scored, fmt.Errorf("forecast: append score: %w", err)
		}
		if e.Calibration != nil {
			// Forecasts emitted before the last restart are not tracked;
			// the collector rejects them and that is fine.
			_ = e.Calibration.ScoreForecast(f.ForecastID, end.Close)
		}
		scored++
	}
	return scored, nil
}

// Metrics computes the per-(tf,target) backtest summary exposed at
// GET /forecasts/metrics.
func (e *Engine) Metrics(ctx context.Context, now time.Time) ([]domain.ForecastTFMetrics, error) {
	var out []domain.ForecastTFMetrics
	for _, tf := range domain.AllTimeframes {
		cutoff24h := now.Add(-24 * time.Hour)
		cutoff7d := now.AddDate(0, 0, -7)

		for _, target := range domain.AllTargets {
			hit24, brier24, n24, err := e.Forecasts.Metrics(ctx, string(target), string(tf), persistence.TimeRange{From: cutoff24h, To: now})
			if err != nil {
				return nil, fmt.Errorf("forecast: metrics 24h: %w", err)
			}
			hit7d, brier7d, _, err := e.Forecasts.Metrics(ctx, string(target), string(tf), persistence.TimeRange{From: cutoff7d, To: now})
			if err != nil {
				return nil, fmt.Errorf("forecast: metrics 7d: %w", err)
			}

			flipRate, err := e.flipRate(ctx, tf, cutoff7d)
			if err != nil {
				return nil, fmt.Errorf("forecast: flip rate: %w", err)
			}
			coverage, err := e.coverageRate(ctx, tf, cutoff24h)
			if err != nil {
				return nil, fmt.Errorf("forecast: coverage: %w", err)
			}
			buckets, meanErr, err := e.reliability(ctx, tf, cutoff7d)
			if err != nil {
				return nil, fmt.Errorf("forecast: reliability: %w", err)
			}

			_ = n24
			out = append(out, domain.ForecastTFMetrics{
				TF:                 tf,
				Target:             target,
				HitRate24h:         hit24,
				HitRate7d:          hit7d,
				Brier24h:           brier24,
				Brier7d:            brier7d,
				FlipRate7d:         flipRate,
				Coverage24h:        coverage,
				ReliabilityBuckets: buckets,
				MeanCalibrationErr: meanErr,
			})
		}
	}
	return out, nil
}

// flipRate is the proportion of adjacent emitted forecasts (within tf,
// across all targets, time-ordered) whose direction differs from the
// previous one.
func (e *Engine) flipRate(ctx context.Context, tf domain.Timeframe, since time.Time) (float64, error) {
	rows, err := e.Forecasts.ListEmittedSince(ctx, string(tf), since)
	if err != nil {
		return 0, err
	}
	if len(rows) < 2 {
		return 0, nil
	}
	flips := 0
	prev := rows[0].Direction
	for _, r := range rows[1:] {
		if r.Direction != prev {
			flips++
		}
		prev = r.Direction
	}
	return float64(flips) / float64(len(rows)-1), nil
}

// coverageRate is actual emissions over the expected count for a
// tf-minutes cadence across a 24h window.
func (e *Engine) coverageRate(ctx context.Context, tf domain.Timeframe, since time.Time) (float64, error) {
	rows, err := e.Forecasts.ListEmittedSince(ctx, string(tf), since)
	if err != nil {
		return 0, err
	}
	expected := (24 * 60) / tf.Minutes()
	if expected < 1 {
		expected = 1
	}
	return math.Min(1.0, float64(len(rows))/float64(expected)), nil
}

// reliability buckets (confidence, hit) pairs into 5 equal-width bins and
// returns the count-weighted mean |predicted - observed| calibration error.
func (e *Engine) reliability(ctx context.Context, tf domain.Timeframe, since time.Time) ([5]domain.ReliabilityBucket, float64, error) {
	const nBuckets = 5
	var buckets [nBuckets]domain.ReliabilityBucket
	for i := range buckets {
		buckets[i] = domain.ReliabilityBucket{
			BucketLow:  float64(i) / nBuckets,
			BucketHigh: float64(i+1) / nBuckets,
		}
	}

	rows, err := e.Forecasts.ListScoredSince(ctx, string(tf), since)
	if err != nil {
		return buckets, 0, err
	}
	if len(rows) == 0 {
		return buckets, 0, nil
	}

	sumPred := make([]float64, nBuckets)
	sumObs := make([]float64, nBuckets)
	for _, r := range rows {
		idx := int(r.Confidence * nBuckets)
		if idx >= nBuckets {
			idx = nBuckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].N++
		sumPred[idx] += r.Confidence
		if r.Hit {
			sumObs[idx]++
		}
	}

	total := 0
	weightedErr := 0.0
	for i := range buckets {
		if buckets[i].N == 0 {
			continue
		}
		buckets[i].MeanPredicted = sumPred[i] / float64(buckets[i].N)
		buckets[i].ObservedHitRate = sumObs[i] / float64(buckets[i].N)
		weightedErr += math.Abs(buckets[i].MeanPredicted-buckets[i].ObservedHitRate) * float64(buckets[i].N)
		total += buckets[i].N
	}
	if total == 0 {
		return buckets, 0, nil
	}
	return buckets, weightedErr / float64(total), nil
}
