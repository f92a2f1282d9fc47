package config

import "github.com/marketintel/analytics/internal/domain"

// ForecastSettings collects the forecasting engine's tunable thresholds and
// hysteresis/weight defaults.
type ForecastSettings struct {
	BaseMarketWeight     float64
	BaseNewsWeight       float64
	FlipHysteresis       float64
	NeutralBandPct       float64
	MinConfidence        float64
	NeutralClusterWeight float64
	MinHoldMinutes       map[domain.Timeframe]int
}

// DefaultForecastSettings returns the built-in defaults, each overridable
// by environment.
func DefaultForecastSettings() ForecastSettings {
	return ForecastSettings{
		BaseMarketWeight:     envFloat("FORECAST_WEIGHT_MARKET", 0.6),
		BaseNewsWeight:       envFloat("FORECAST_WEIGHT_NEWS", 0.4),
		FlipHysteresis:       envFloat("FORECAST_FLIP_HYSTERESIS", 0.12),
		NeutralBandPct:       envFloat("FORECAST_NEUTRAL_BAND_PCT", 0.0015),
		MinConfidence:        envFloat("FORECAST_MIN_CONFIDENCE", 0.35),
		NeutralClusterWeight: envFloat("FORECAST_NEUTRAL_CLUSTER_WEIGHT", 0.35),
		MinHoldMinutes: map[domain.Timeframe]int{
			domain.TF15m: envInt("FORECAST_HOLD_MINUTES_15M", 20),
			domain.TF1h:  envInt("FORECAST_HOLD_MINUTES_1H", 75),
			domain.TF3h:  envInt("FORECAST_HOLD_MINUTES_3H", 200),
			domain.TF6h:  envInt("FORECAST_HOLD_MINUTES_6H", 340),
		},
	}
}
