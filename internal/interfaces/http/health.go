package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/marketintel/analytics/internal/provider"
)

// HealthHandler serves the /health endpoint: process uptime plus a rollup of
// every upstream provider's recent success rate.
type HealthHandler struct {
	registry   *provider.Registry
	startTime  time.Time
	version    string
	buildStamp string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(registry *provider.Registry, version, buildStamp string) *HealthHandler {
	return &HealthHandler{
		registry:   registry,
		startTime:  time.Now(),
		version:    version,
		buildStamp: buildStamp,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string                  `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp  time.Time               `json:"timestamp"`
	Uptime     string                  `json:"uptime"`
	Version    string                  `json:"version"`
	BuildStamp string                  `json:"build_stamp"`
	System     SystemInfo              `json:"system"`
	Providers  map[string]provider.Health `json:"providers"`
	Summary    ProviderSummary         `json:"provider_summary"`
	Checks     map[string]CheckResult  `json:"checks"`
}

// SystemInfo provides system-level information.
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemAlloc      uint64 `json:"mem_alloc_bytes"`
	MemSys        uint64 `json:"mem_sys_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// ProviderSummary provides aggregate provider status.
type ProviderSummary struct {
	Total    int `json:"total"`
	Healthy  int `json:"healthy"`
	Degraded int `json:"degraded"`
	Failed   int `json:"failed"`
}

// CheckResult represents an individual health check result.
type CheckResult struct {
	Status    string        `json:"status"` // "pass", "warn", "fail"
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// ServeHTTP implements the health check endpoint.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := h.gatherHealthInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	switch response.Status {
	case "healthy", "degraded":
		w.WriteHeader(http.StatusOK)
	case "unhealthy":
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (h *HealthHandler) gatherHealthInfo() HealthResponse {
	now := time.Now()

	response := HealthResponse{
		Timestamp:  now,
		Uptime:     time.Since(h.startTime).String(),
		Version:    h.version,
		BuildStamp: h.buildStamp,
		System:     h.getSystemInfo(),
		Providers:  make(map[string]provider.Health),
		Checks:     make(map[string]CheckResult),
	}

	if h.registry != nil {
		response.Providers = h.registry.Snapshot()
		response.Summary = h.calculateProviderSummary(response.Providers)
		h.addProviderChecks(&response)
	}

	h.addSystemChecks(&response)
	response.Status = h.calculateOverallStatus(response.Providers, response.Checks)

	return response
}

func (h *HealthHandler) getSystemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemAlloc:      memStats.Alloc,
		MemSys:        memStats.Sys,
		NumGC:         memStats.NumGC,
	}
}

func (h *HealthHandler) calculateProviderSummary(providers map[string]provider.Health) ProviderSummary {
	summary := ProviderSummary{}
	for _, health := range providers {
		summary.Total++
		switch {
		case !health.Healthy:
			summary.Failed++
		case health.Degraded:
			summary.Degraded++
		default:
			summary.Healthy++
		}
	}
	return summary
}

func (h *HealthHandler) addProviderChecks(response *HealthResponse) {
	if len(response.Providers) == 0 {
		response.Checks["providers"] = CheckResult{
			Status:    "warn",
			Message:   "No providers registered",
			Timestamp: time.Now(),
		}
		return
	}

	// The quote router's primary venues; losing all of them stalls pricing.
	criticalProviders := []string{"yahoo", "finnhub", "twelvedata"}
	criticalHealthy := 0
	for _, name := range criticalProviders {
		if health, exists := response.Providers[name]; exists && health.Healthy {
			criticalHealthy++
		}
	}

	switch {
	case criticalHealthy == 0:
		response.Checks["critical_providers"] = CheckResult{
			Status: "fail", Message: "No critical quote providers available", Timestamp: time.Now(),
		}
	case criticalHealthy < len(criticalProviders):
		response.Checks["critical_providers"] = CheckResult{
			Status:    "warn",
			Message:   fmt.Sprintf("Only %d/%d critical quote providers healthy", criticalHealthy, len(criticalProviders)),
			Timestamp: time.Now(),
		}
	default:
		response.Checks["critical_providers"] = CheckResult{
			Status: "pass", Message: "All critical quote providers healthy", Timestamp: time.Now(),
		}
	}

	if response.Summary.Total > 0 {
		healthyRate := float64(response.Summary.Healthy) / float64(response.Summary.Total)
		status, msg := "pass", fmt.Sprintf("Provider availability good: %.1f%%", healthyRate*100)
		if healthyRate < 0.5 {
			status, msg = "fail", fmt.Sprintf("Provider availability too low: %.1f%%", healthyRate*100)
		} else if healthyRate < 0.8 {
			status, msg = "warn", fmt.Sprintf("Provider availability degraded: %.1f%%", healthyRate*100)
		}
		response.Checks["provider_availability"] = CheckResult{Status: status, Message: msg, Timestamp: time.Now()}
	}
}

func (h *HealthHandler) addSystemChecks(response *HealthResponse) {
	memUsagePercent := float64(response.System.MemAlloc) / float64(response.System.MemSys) * 100

	status, msg := "pass", fmt.Sprintf("Memory usage normal: %.1f%%", memUsagePercent)
	if memUsagePercent > 90 {
		status, msg = "fail", fmt.Sprintf("Memory usage critical: %.1f%%", memUsagePercent)
	} else if memUsagePercent > 75 {
		status, msg = "warn", fmt.Sprintf("Memory usage high: %.1f%%", memUsagePercent)
	}
	response.Checks["memory"] = CheckResult{Status: status, Message: msg, Timestamp: time.Now()}

	if response.System.NumGoroutines > 1000 {
		response.Checks["goroutines"] = CheckResult{
			Status: "warn", Message: fmt.Sprintf("High goroutine count: %d", response.System.NumGoroutines), Timestamp: time.Now(),
		}
	} else {
		response.Checks["goroutines"] = CheckResult{
			Status: "pass", Message: fmt.Sprintf("Goroutine count normal: %d", response.System.NumGoroutines), Timestamp: time.Now(),
		}
	}

	uptime := time.Since(h.startTime)
	if uptime < time.Minute {
		response.Checks["uptime"] = CheckResult{Status: "warn", Message: "Service recently started", Timestamp: time.Now()}
	} else {
		response.Checks["uptime"] = CheckResult{Status: "pass", Message: fmt.Sprintf("Service uptime: %s", uptime), Timestamp: time.Now()}
	}
}

func (h *HealthHandler) calculateOverallStatus(providers map[string]provider.Health, checks map[string]CheckResult) string {
	for _, check := range checks {
		if check.Status == "fail" {
			return "unhealthy"
		}
	}

	if len(providers) == 0 {
		return "degraded"
	}

	healthyProviders := 0
	for _, health := range providers {
		if health.Healthy {
			healthyProviders++
		}
	}
	if healthyProviders == 0 {
		return "unhealthy"
	}

	healthyRate := float64(healthyProviders) / float64(len(providers))
	if healthyRate < 0.5 {
		return "unhealthy"
	} else if healthyRate < 0.8 {
		return "degraded"
	}

	for _, check := range checks {
		if check.Status == "warn" {
			return "degraded"
		}
	}

	return "healthy"
}
