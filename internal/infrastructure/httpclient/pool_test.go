package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poolConfig() ClientConfig {
	return ClientConfig{
		MaxConcurrency: 2,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		BackoffBase:    5 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
		UserAgent:      "test-agent",
	}
}

func TestDoRetriesOn503ThenSucceeds(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cp := NewClientPool(poolConfig())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := cp.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))

	stats := cp.GetStats()
	assert.Equal(t, int64(1), stats.SuccessRequests)
	assert.Equal(t, int64(2), stats.RetriedRequests)
}

func TestDoDoesNotRetryNonRetryableStatus(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cp := NewClientPool(poolConfig())
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := cp.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "4xx is returned to the caller, not retried")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestDoBoundsConcurrency(t *testing.T) {
	var active, peak int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cur := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cp := NewClientPool(poolConfig())
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			if resp, err := cp.Do(context.Background(), req); err == nil {
				resp.Body.Close()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestHTTPClientUsesPoolAsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cp := NewClientPool(poolConfig())
	resp, err := cp.HTTPClient().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoCancelledContext(t *testing.T) {
	cp := NewClientPool(poolConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	_, err := cp.Do(ctx, req)
	assert.Error(t, err)
}
