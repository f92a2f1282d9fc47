package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marketintel/analytics/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_NoProviders(t *testing.T) {
	registry := provider.NewRegistry()
	handler := NewHealthHandler(registry, "v1.0.0", "test-build")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	assert.Equal(t, "v1.0.0", response.Version)
	assert.Equal(t, "test-build", response.BuildStamp)
	assert.Equal(t, "degraded", response.Status)
	assert.NotEmpty(t, response.System.GoVersion)
	assert.Greater(t, response.System.NumGoroutines, 0)
}

func TestHealthHandler_WithProviders(t *testing.T) {
	registry := provider.NewRegistry()
	registry.RecordSuccess("yahoo", 50*time.Millisecond)
	registry.RecordSuccess("finnhub", 80*time.Millisecond)
	registry.RecordSuccess("twelvedata", 30*time.Millisecond)

	handler := NewHealthHandler(registry, "v1.0.0", "test-build")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	assert.Equal(t, "healthy", response.Status)
	assert.Len(t, response.Providers, 3)
	assert.Equal(t, 3, response.Summary.Total)
	assert.Equal(t, 3, response.Summary.Healthy)
	assert.NotEmpty(t, response.Checks)
}

func TestHealthHandler_Statuses(t *testing.T) {
	testCases := []struct {
		name           string
		setup          func(r *provider.Registry)
		expectedStatus string
		expectedHTTP   int
	}{
		{
			name:           "no providers",
			setup:          func(r *provider.Registry) {},
			expectedStatus: "degraded",
			expectedHTTP:   http.StatusOK,
		},
		{
			name: "all healthy",
			setup: func(r *provider.Registry) {
				r.RecordSuccess("yahoo", time.Millisecond)
				r.RecordSuccess("finnhub", time.Millisecond)
			},
			expectedStatus: "healthy",
			expectedHTTP:   http.StatusOK,
		},
		{
			name: "all unhealthy",
			setup: func(r *provider.Registry) {
				for i := 0; i < 5; i++ {
					r.RecordFailure("yahoo", provider.ErrTimeout)
					r.RecordFailure("finnhub", provider.ErrTimeout)
				}
			},
			expectedStatus: "unhealthy",
			expectedHTTP:   http.StatusServiceUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			registry := provider.NewRegistry()
			tc.setup(registry)

			handler := NewHealthHandler(registry, "v1.0.0", "test-build")
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedHTTP, rr.Code)

			var response HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
			assert.Equal(t, tc.expectedStatus, response.Status)
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.RecordProviderCall("yahoo", 25*time.Millisecond, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "analytics_provider_requests_total"))
}
