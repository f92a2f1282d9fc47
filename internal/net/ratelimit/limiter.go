// Package ratelimit provides the per-provider token buckets the quote
// router and provider transports draw from before spending a network call.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per host for a single provider. Hosts are
// tracked separately because some providers serve quotes and syndication
// feeds from different endpoints with independent limits.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter returns a Limiter that allows rps sustained requests per second
// with the given burst capacity on each host.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.RLock()
	b, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.limiters[host]; ok {
		return b
	}
	b = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = b
	return b
}

// Allow reports whether one request to host may proceed right now, consuming
// a token when it may.
func (l *Limiter) Allow(host string) bool {
	return l.bucket(host).Allow()
}

// Wait blocks until a token for host is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.bucket(host).Wait(ctx)
}

// LimiterStats is the point-in-time state of one host bucket, surfaced by
// the router's debug endpoint.
type LimiterStats struct {
	Host            string        `json:"host"`
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	NextAllowedAt   time.Time     `json:"next_allowed_at"`
	Delay           time.Duration `json:"delay"`
}

// Stats snapshots every host bucket.
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(l.limiters))
	now := time.Now()
	for host, b := range l.limiters {
		res := b.Reserve()
		delay := res.Delay()
		res.Cancel()

		stats[host] = LimiterStats{
			Host:            host,
			RPS:             float64(b.Limit()),
			Burst:           b.Burst(),
			TokensAvailable: b.Tokens(),
			NextAllowedAt:   now.Add(delay),
			Delay:           delay,
		}
	}
	return stats
}

// Manager keys Limiters by provider name.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*Limiter)}
}

// AddProvider registers (or replaces) the bucket configuration for a provider.
func (m *Manager) AddProvider(name string, rps float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = NewLimiter(rps, burst)
}

// GetLimiter returns the provider's Limiter when one is registered.
func (m *Manager) GetLimiter(provider string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[provider]
	return l, ok
}

// Allow consumes a token for (provider, host). An unregistered provider is
// unlimited; the caller opted out of limiting it.
func (m *Manager) Allow(provider, host string) bool {
	l, ok := m.GetLimiter(provider)
	if !ok {
		return true
	}
	return l.Allow(host)
}

// Wait blocks until (provider, host) may proceed or ctx is done.
func (m *Manager) Wait(ctx context.Context, provider, host string) error {
	l, ok := m.GetLimiter(provider)
	if !ok {
		return nil
	}
	return l.Wait(ctx, host)
}

// Stats snapshots every provider's host buckets.
func (m *Manager) Stats() map[string]map[string]LimiterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]map[string]LimiterStats, len(m.limiters))
	for provider, l := range m.limiters {
		stats[provider] = l.Stats()
	}
	return stats
}
