// Package httpclient provides the bounded, retrying HTTP client the LLM
// backends share. Unlike the per-provider middleware stack in
// internal/net/client (budget/limiter/breaker per metered market-data API),
// this pool only caps in-flight concurrency and retries transient
// failures, which is the right shape for a couple of long-latency
// completion endpoints called a handful of times per debate.
package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

type ClientConfig struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// DefaultLLMConfig is sized for debate-engine completion calls: few,
// slow, worth one retry.
func DefaultLLMConfig() ClientConfig {
	return ClientConfig{
		MaxConcurrency: 4,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     1,
		BackoffBase:    300 * time.Millisecond,
		BackoffMax:     2 * time.Second,
	}
}

type ClientStats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RetriedRequests int64
	TotalLatency    time.Duration
}

// ClientPool caps concurrent outbound calls and retries transient failures
// with jittered exponential backoff.
type ClientPool struct {
	config    ClientConfig
	semaphore chan struct{}
	client    *http.Client

	mu    sync.Mutex
	stats ClientStats
}

func NewClientPool(config ClientConfig) *ClientPool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	return &ClientPool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client:    &http.Client{Timeout: config.RequestTimeout},
	}
}

// Do executes the request under the concurrency cap, retrying retryable
// failures up to MaxRetries times.
func (cp *ClientPool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	select {
	case cp.semaphore <- struct{}{}:
		defer func() { <-cp.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if cp.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", cp.config.UserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= cp.config.MaxRetries; attempt++ {
		if attempt > 0 {
			cp.count(func(s *ClientStats) { s.RetriedRequests++ })
			select {
			case <-time.After(cp.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := cp.client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if retryableError(err) {
				continue
			}
			break
		}

		if retryableStatus(resp.StatusCode) && attempt < cp.config.MaxRetries {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}

		cp.count(func(s *ClientStats) {
			s.TotalRequests++
			s.SuccessRequests++
			s.TotalLatency += time.Since(start)
		})
		return resp, nil
	}

	cp.count(func(s *ClientStats) {
		s.TotalRequests++
		s.FailedRequests++
		s.TotalLatency += time.Since(start)
	})
	return nil, lastErr
}

// RoundTrip lets the pool serve as an http.Client Transport, which is how
// the LLM backends consume it.
func (cp *ClientPool) RoundTrip(req *http.Request) (*http.Response, error) {
	return cp.Do(req.Context(), req)
}

// HTTPClient wraps the pool as a plain *http.Client.
func (cp *ClientPool) HTTPClient() *http.Client {
	return &http.Client{Transport: cp}
}

func (cp *ClientPool) backoff(attempt int) time.Duration {
	d := cp.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if d > cp.config.BackoffMax {
		d = cp.config.BackoffMax
	}
	// Up to 10% jitter so parallel provider calls don't retry in lockstep.
	return d + time.Duration(rand.Float64()*0.1*float64(d))
}

func (cp *ClientPool) count(fn func(*ClientStats)) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	fn(&cp.stats)
}

func (cp *ClientPool) GetStats() ClientStats {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.stats
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network is unreachable",
		"no such host",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
