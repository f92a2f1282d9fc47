package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds the Prometheus collectors for the pipeline.
type MetricsRegistry struct {
	StepDuration *prometheus.HistogramVec

	CacheHitRatio prometheus.Gauge
	CacheHits     *prometheus.CounterVec
	CacheMisses   *prometheus.CounterVec

	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	PipelineRuns   *prometheus.CounterVec
	PipelineErrors *prometheus.CounterVec

	ForecastHitRate *prometheus.GaugeVec
	ForecastBrier   *prometheus.GaugeVec

	DebateDisagreement prometheus.Histogram

	reg *prometheus.Registry
}

// NewMetricsRegistry creates and registers all pipeline metrics against a
// fresh Prometheus registry, so constructing more than one instance (as
// tests do) never collides with a duplicate collector registration.
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"step", "result"},
		),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_cache_hit_ratio",
			Help: "Current cache hit ratio across all cache types (0.0 to 1.0)",
		}),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_cache_hits_total", Help: "Total cache hits by cache type"},
			[]string{"cache_type"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_cache_misses_total", Help: "Total cache misses by cache type"},
			[]string{"cache_type"},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_provider_requests_total", Help: "Total requests issued to each upstream provider"},
			[]string{"provider"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_provider_errors_total", Help: "Total provider errors by kind"},
			[]string{"provider", "error_kind"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_provider_latency_seconds",
				Help:    "Provider call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"provider"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_pipeline_runs_total", Help: "Total pipeline orchestrator runs"},
			[]string{"status"},
		),
		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "analytics_pipeline_errors_total", Help: "Total pipeline errors by stage"},
			[]string{"stage", "error_kind"},
		),
		ForecastHitRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "analytics_forecast_hit_rate", Help: "Rolling forecast hit rate by target/timeframe"},
			[]string{"target", "tf"},
		),
		ForecastBrier: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "analytics_forecast_brier_score", Help: "Rolling forecast Brier score by target/timeframe"},
			[]string{"target", "tf"},
		),
		DebateDisagreement: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_debate_disagreement_score",
			Help:    "Score delta between the two debate providers",
			Buckets: []float64{0, 5, 10, 15, 20, 30, 40, 50},
		}),
	}

	registry.reg = prometheus.NewRegistry()
	registry.reg.MustRegister(
		registry.StepDuration,
		registry.CacheHitRatio,
		registry.CacheHits,
		registry.CacheMisses,
		registry.ProviderRequests,
		registry.ProviderErrors,
		registry.ProviderLatency,
		registry.PipelineRuns,
		registry.PipelineErrors,
		registry.ForecastHitRate,
		registry.ForecastBrier,
		registry.DebateDisagreement,
	)

	return registry
}

// StepTimer tracks execution time for one pipeline step.
type StepTimer struct {
	metrics *MetricsRegistry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a pipeline step.
func (m *MetricsRegistry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop completes the step timing and records the metric.
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())

	log.Debug().Str("step", st.step).Str("result", result).Dur("duration", duration).Msg("pipeline step completed")
}

// RecordCacheHit records a cache hit for the given cache type.
func (m *MetricsRegistry) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func (m *MetricsRegistry) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordProviderCall records a provider request outcome.
func (m *MetricsRegistry) RecordProviderCall(providerName string, latency time.Duration, errorKind string) {
	m.ProviderRequests.WithLabelValues(providerName).Inc()
	m.ProviderLatency.WithLabelValues(providerName).Observe(latency.Seconds())
	if errorKind != "" {
		m.ProviderErrors.WithLabelValues(providerName, errorKind).Inc()
	}
}

// RecordPipelineRun records the terminal outcome of one orchestrator pass.
func (m *MetricsRegistry) RecordPipelineRun(status string) {
	m.PipelineRuns.WithLabelValues(status).Inc()
}

// RecordPipelineError records a pipeline stage failure.
func (m *MetricsRegistry) RecordPipelineError(stage, errorKind string) {
	m.PipelineErrors.WithLabelValues(stage, errorKind).Inc()
}

// SetForecastMetrics updates the rolling hit-rate/Brier gauges for a target/timeframe.
func (m *MetricsRegistry) SetForecastMetrics(target, tf string, hitRate, brier float64) {
	m.ForecastHitRate.WithLabelValues(target, tf).Set(hitRate)
	m.ForecastBrier.WithLabelValues(target, tf).Set(brier)
}

// RecordDebateDisagreement records the score delta between debate providers.
func (m *MetricsRegistry) RecordDebateDisagreement(delta float64) {
	m.DebateDisagreement.Observe(delta)
}

// Handler returns the HTTP handler serving the Prometheus exposition format.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Global metrics registry instance, initialized once at process start.
var DefaultMetrics *MetricsRegistry

// InitializeMetrics initializes the global metrics registry.
func InitializeMetrics() {
	DefaultMetrics = NewMetricsRegistry()
	log.Info().Msg("prometheus metrics registry initialized")
}
