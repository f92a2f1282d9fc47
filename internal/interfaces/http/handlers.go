package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Handlers adapts the Engine port onto the route table. Every method matches
// the net/http handler signature so it can be registered directly with mux.
type Handlers struct {
	engine  Engine
	metrics *MetricsRegistry
}

// NewHandlers wires the route handlers to the domain engine and metrics registry.
func NewHandlers(engine Engine, metrics *MetricsRegistry) *Handlers {
	return &Handlers{engine: engine, metrics: metrics}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// IntelRun handles POST /intel/run.
func (h *Handlers) IntelRun(w http.ResponseWriter, r *http.Request) {
	var req IntelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "24h"
	}
	if req.NewsTimespan == "" {
		req.NewsTimespan = "24h"
	}

	timer := h.metrics.StartStepTimer("intel_run")
	resp, err := h.engine.RunIntel(r.Context(), req)
	if err != nil {
		timer.Stop("error")
		writeError(w, http.StatusInternalServerError, "intel_run_failed", err.Error())
		return
	}
	timer.Stop("ok")

	w.Header().Set("ETag", resp.ETag)
	writeJSON(w, http.StatusOK, resp)
}

// ForecastsLatest handles GET /forecasts/latest?tf=&target=.
func (h *Handlers) ForecastsLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("target")
	tf := q.Get("tf")
	if target == "" || tf == "" {
		writeError(w, http.StatusBadRequest, "missing_params", "target and tf are required")
		return
	}

	forecast, err := h.engine.LatestForecast(r.Context(), target, tf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "forecast_lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ForecastLatestResponse{Forecast: forecast})
}

// ForecastsMetrics handles GET /forecasts/metrics.
func (h *Handlers) ForecastsMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.engine.ForecastMetrics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "forecast_metrics_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ForecastMetricsResponse{Metrics: metrics})
}

// EventsLatest handles GET /events/latest?hours=24.
func (h *Handlers) EventsLatest(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	events, err := h.engine.LatestEvents(r.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "events_lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, EventsLatestResponse{Events: events})
}

// Portfolio handles GET /portfolio?base=&horizon=.
func (h *Handlers) Portfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	base := q.Get("base")
	if base == "" {
		base = "USD"
	}
	horizon := q.Get("horizon")
	if horizon == "" {
		horizon = "24h"
	}
	if base != "TRY" && base != "USD" {
		writeError(w, http.StatusBadRequest, "bad_base", "base must be TRY or USD")
		return
	}
	if horizon != "24h" && horizon != "7d" && horizon != "30d" {
		writeError(w, http.StatusBadRequest, "bad_horizon", "horizon must be 24h, 7d, or 30d")
		return
	}

	resp, err := h.engine.Portfolio(r.Context(), base, horizon)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "portfolio_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PortfolioDailyBrief handles GET /portfolio/daily-brief and
// /api/v1/portfolio/daily-brief.
func (h *Handlers) PortfolioDailyBrief(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	if base == "" {
		base = "USD"
	}

	resp, err := h.engine.PortfolioDailyBrief(r.Context(), base)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "daily_brief_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DebateGet handles GET /api/v1/portfolio/debate, returning the cached debate
// result without triggering a fresh LLM round.
func (h *Handlers) DebateGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := DebateRequest{
		Base:    orDefault(q.Get("base"), "USD"),
		Window:  orDefault(q.Get("window"), "24h"),
		Horizon: orDefault(q.Get("horizon"), "7d"),
		Force:   false,
	}

	resp, err := h.engine.Debate(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "debate_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DebatePost handles POST /api/v1/portfolio/debate, optionally forcing a
// fresh LLM round via the "force" body field.
func (h *Handlers) DebatePost(w http.ResponseWriter, r *http.Request) {
	var req DebateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	req.Base = orDefault(req.Base, "USD")
	req.Window = orDefault(req.Window, "24h")
	req.Horizon = orDefault(req.Horizon, "7d")

	timer := h.metrics.StartStepTimer("debate_run")
	resp, err := h.engine.Debate(r.Context(), req)
	if err != nil {
		timer.Stop("error")
		writeError(w, http.StatusInternalServerError, "debate_failed", err.Error())
		return
	}
	timer.Stop("ok")
	if resp.DisagreementScore > 0 {
		h.metrics.RecordDebateDisagreement(resp.DisagreementScore)
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuotesLatest handles GET /quotes/latest?assets=A,B,....
func (h *Handlers) QuotesLatest(w http.ResponseWriter, r *http.Request) {
	assets := splitCSV(r.URL.Query().Get("assets"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "missing_assets", "assets query param is required")
		return
	}

	quotes, err := h.engine.LatestQuotes(r.Context(), assets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "quotes_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, QuotesLatestResponse{Quotes: quotes})
}

// BarsLatest handles GET /bars/latest?assets=&limit=.
func (h *Handlers) BarsLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assets := splitCSV(q.Get("assets"))
	if len(assets) == 0 {
		writeError(w, http.StatusBadRequest, "missing_assets", "assets query param is required")
		return
	}

	limit := 192
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 192 {
			limit = parsed
		}
	}

	bars, err := h.engine.LatestBars(r.Context(), assets, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "bars_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, BarsLatestResponse{Bars: bars})
}

// QuotesDebug handles GET /quotes/debug, dumping router stats for diagnosis.
func (h *Handlers) QuotesDebug(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.QuotesDebug(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "debug_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no such route: "+r.URL.Path)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
