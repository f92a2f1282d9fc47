package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange_Validation(t *testing.T) {
	tests := []struct {
		name  string
		tr    TimeRange
		valid bool
	}{
		{
			name: "valid_range",
			tr: TimeRange{
				From: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 9, 7, 11, 0, 0, 0, time.UTC),
			},
			valid: true,
		},
		{
			name: "same_time",
			tr: TimeRange{
				From: time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 9, 7, 10, 0, 0, 0, time.UTC),
			},
			valid: true,
		},
		{
			name:  "zero_times",
			tr:    TimeRange{From: time.Time{}, To: time.Time{}},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.tr)
			if tt.valid {
				assert.True(t, tt.tr.To.After(tt.tr.From) || tt.tr.To.Equal(tt.tr.From))
			}
		})
	}
}

func TestEventRow_Validation(t *testing.T) {
	event := EventRow{
		EventID:     "evt_abc123",
		TsUTC:       time.Now(),
		Source:      "reuters",
		SourceTier:  "tier1",
		Headline:    "SEC enforcement action targets stablecoin issuer",
		URL:         "https://example.com/a",
		ClusterID:   "cl_def456",
		Credibility: 0.8,
		Severity:    0.6,
		Impact:      72,
		EventType:   "REGULATION_LEGAL",
		Direction:   -1,
		CreatedAt:   time.Now(),
	}

	t.Run("valid_event", func(t *testing.T) {
		assert.Equal(t, "tier1", event.SourceTier)
		assert.GreaterOrEqual(t, event.Credibility, 0.0)
		assert.LessOrEqual(t, event.Credibility, 1.0)
		assert.GreaterOrEqual(t, event.Impact, 0.0)
		assert.LessOrEqual(t, event.Impact, 100.0)
		assert.Contains(t, []int{-1, 0, 1}, event.Direction)
	})

	t.Run("valid_source_tiers", func(t *testing.T) {
		validTiers := []string{"primary", "tier1", "tier2", "social"}
		for _, tier := range validTiers {
			e := event
			e.SourceTier = tier
			assert.Contains(t, validTiers, e.SourceTier)
		}
	})
}

func TestPriceBar_Validation(t *testing.T) {
	bar := PriceBar{
		Asset:  "BTC",
		TsUTC:  time.Now(),
		Open:   60000,
		High:   60500,
		Low:    59800,
		Close:  60250,
		Volume: 1234.5,
	}

	t.Run("valid_bar", func(t *testing.T) {
		assert.Equal(t, "BTC", bar.Asset)
		assert.GreaterOrEqual(t, bar.High, bar.Low)
		assert.Greater(t, bar.Volume, 0.0)
	})
}

func TestForecast_Validation(t *testing.T) {
	forecast := Forecast{
		ForecastID:   "fc_1h_BTC_abc",
		Target:       "BTC",
		TF:           "1h",
		Direction:    1,
		Confidence:   0.62,
		MarketScore:  0.31,
		NewsScore:    0.12,
		FusedScore:   0.25,
		ExpiresAtUTC: time.Now().Add(time.Hour),
		CreatedAt:    time.Now(),
	}

	t.Run("valid_forecast", func(t *testing.T) {
		assert.Equal(t, "BTC", forecast.Target)
		assert.Contains(t, []int{-1, 0, 1}, forecast.Direction)
		assert.GreaterOrEqual(t, forecast.Confidence, 0.0)
		assert.LessOrEqual(t, forecast.Confidence, 1.0)
		assert.True(t, forecast.ExpiresAtUTC.After(forecast.CreatedAt))
	})
}

func TestForecastScore_Validation(t *testing.T) {
	score := ForecastScore{
		ForecastID: "fc_1h_BTC_abc",
		RefPrice:   60000,
		ActualMove: 0.015,
		Hit:        true,
		Brier:      0.12,
		ScoredAt:   time.Now(),
	}

	t.Run("brier_in_unit_interval", func(t *testing.T) {
		assert.GreaterOrEqual(t, score.Brier, 0.0)
		assert.LessOrEqual(t, score.Brier, 1.0)
	})
}

func TestHealthCheck_Structure(t *testing.T) {
	healthCheck := HealthCheck{
		Healthy: true,
		Errors:  []string{},
		ConnectionPool: map[string]int{
			"active": 5,
			"idle":   10,
			"max":    20,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: 45,
	}

	t.Run("valid_health_check", func(t *testing.T) {
		assert.True(t, healthCheck.Healthy)
		assert.Empty(t, healthCheck.Errors)
		assert.Contains(t, healthCheck.ConnectionPool, "active")
		assert.Contains(t, healthCheck.ConnectionPool, "idle")
		assert.Contains(t, healthCheck.ConnectionPool, "max")
		require.Greater(t, healthCheck.ResponseTimeMS, int64(0))
	})
}
