// Package circuit implements the per-provider breaker the provider
// transports run calls through: consecutive failures open the circuit,
// a cooldown admits a probe, and consecutive probe successes close it
// again. Open-circuit failures surface as the pipeline's well-known
// "<provider>_error" debug notes rather than request errors.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned while the breaker is rejecting calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRequestTimeout is returned when a call exceeds the per-request timeout.
	ErrRequestTimeout = errors.New("request timeout")
)

// State is the breaker's admission state.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls rejected until the cooldown elapses
	StateHalfOpen              // probe calls admitted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config tunes one breaker.
type Config struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // consecutive probe successes that close it
	Timeout          time.Duration // cooldown before an open circuit admits a probe
	RequestTimeout   time.Duration // per-call deadline enforced by Call
}

// Breaker guards one provider.
type Breaker struct {
	mu              sync.Mutex
	config          Config
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time

	totalRequests  int64
	totalSuccesses int64
	totalFailures  int64
	totalTimeouts  int64
}

func NewBreaker(config Config) *Breaker {
	return &Breaker{config: config, state: StateClosed, lastStateChange: time.Now()}
}

// Call runs fn under the breaker's admission check and request timeout.
// A rejected call returns ErrCircuitOpen without invoking fn.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()

	b.mu.Lock()
	b.totalRequests++
	b.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- fn(timeoutCtx) }()

	select {
	case err := <-done:
		if err != nil {
			b.record(false, false)
			return err
		}
		b.record(true, false)
		return nil
	case <-timeoutCtx.Done():
		b.record(false, true)
		return ErrRequestTimeout
	}
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.lastFailureTime) > b.config.Timeout {
			b.setState(StateHalfOpen)
			return true
		}
	}
	return false
}

func (b *Breaker) record(success, timedOut bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.totalSuccesses++
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.setState(StateClosed)
				b.failures = 0
				b.successes = 0
			}
		}
		return
	}

	b.totalFailures++
	if timedOut {
		b.totalTimeouts++
	}
	b.lastFailureTime = time.Now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.setState(StateOpen)
		}
	case StateHalfOpen:
		// One failed probe re-opens immediately.
		b.setState(StateOpen)
		b.successes = 0
	}
}

func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}
	b.state = state
	b.lastStateChange = time.Now()
	if state == StateHalfOpen {
		b.failures = 0
	}
}

// State returns the current admission state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a point-in-time breaker snapshot for the health endpoint.
type Stats struct {
	State                State     `json:"state"`
	TotalRequests        int64     `json:"total_requests"`
	TotalSuccesses       int64     `json:"total_successes"`
	TotalFailures        int64     `json:"total_failures"`
	TotalTimeouts        int64     `json:"total_timeouts"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	LastStateChange      time.Time `json:"last_state_change"`
	LastFailureTime      time.Time `json:"last_failure_time,omitempty"`
	SuccessRate          float64   `json:"success_rate"`
	TimeoutRate          float64   `json:"timeout_rate"`
}

// IsHealthy reports whether the provider behind this breaker is usable.
func (s *Stats) IsHealthy() bool {
	return s.State == StateClosed && (s.TotalRequests == 0 || s.SuccessRate >= 0.9)
}

// Stats snapshots the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	successRate, timeoutRate := 0.0, 0.0
	if b.totalRequests > 0 {
		successRate = float64(b.totalSuccesses) / float64(b.totalRequests)
		timeoutRate = float64(b.totalTimeouts) / float64(b.totalRequests)
	}
	return Stats{
		State:                b.state,
		TotalRequests:        b.totalRequests,
		TotalSuccesses:       b.totalSuccesses,
		TotalFailures:        b.totalFailures,
		TotalTimeouts:        b.totalTimeouts,
		ConsecutiveFailures:  b.failures,
		ConsecutiveSuccesses: b.successes,
		LastStateChange:      b.lastStateChange,
		LastFailureTime:      b.lastFailureTime,
		SuccessRate:          successRate,
		TimeoutRate:          timeoutRate,
	}
}

// Manager keys Breakers by provider name.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*Breaker)}
}

// AddProvider registers a breaker for a provider.
func (m *Manager) AddProvider(name string, config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers[name] = NewBreaker(config)
}

// GetBreaker returns the provider's breaker when one is registered.
func (m *Manager) GetBreaker(provider string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[provider]
	return b, ok
}

// Call runs fn through the provider's breaker; unregistered providers run
// unguarded.
func (m *Manager) Call(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	b, ok := m.GetBreaker(provider)
	if !ok {
		return fn(ctx)
	}
	return b.Call(ctx, fn)
}

// Stats snapshots every registered breaker.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]Stats, len(m.breakers))
	for provider, b := range m.breakers {
		stats[provider] = b.Stats()
	}
	return stats
}
