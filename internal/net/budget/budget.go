// Package budget caps how many calls a provider may receive per UTC day, so
// metered news/quote APIs are never overdrawn by a busy pipeline. The
// provider transport consults a Tracker before every request; exhaustion is
// a hard stop until the daily reset, the warning threshold is advisory.
package budget

import (
	"fmt"
	"sync"
	"time"
)

// BudgetExhaustedError is returned once the day's call budget is spent.
type BudgetExhaustedError struct {
	Provider string
	Used     int64
	Limit    int64
	ETA      time.Time
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: %d/%d requests used, resets at %s",
		e.Provider, e.Used, e.Limit, e.ETA.Format("15:04 UTC"))
}

// BudgetWarningError signals the warn threshold was crossed. Callers treat
// it as advisory and still send the request.
type BudgetWarningError struct {
	Provider  string
	Used      int64
	Limit     int64
	Threshold float64
}

func (e *BudgetWarningError) Error() string {
	return fmt.Sprintf("budget warning for %s: %.1f%% used (%d/%d), threshold %.1f%%",
		e.Provider, float64(e.Used)/float64(e.Limit)*100, e.Used, e.Limit, e.Threshold*100)
}

// Tracker counts calls for one provider against a daily limit that resets at
// a fixed UTC hour.
type Tracker struct {
	mu            sync.Mutex
	limit         int64
	used          int64
	resetHour     int
	warnThreshold float64
	lastReset     time.Time

	nowFn func() time.Time
}

// NewTracker builds a Tracker with the given daily limit, UTC reset hour and
// warn threshold (fraction of the limit, defaults to 0.8 when out of range).
func NewTracker(limit int64, resetHour int, warnThreshold float64) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if warnThreshold <= 0 || warnThreshold > 1 {
		warnThreshold = 0.8
	}
	t := &Tracker{
		limit:         limit,
		resetHour:     resetHour,
		warnThreshold: warnThreshold,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
	t.lastReset = lastResetBefore(t.nowFn(), resetHour)
	return t
}

func lastResetBefore(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Before(today) {
		return today.AddDate(0, 0, -1)
	}
	return today
}

// resetIfDue rolls the counter over once a full day has elapsed. Callers
// hold t.mu.
func (t *Tracker) resetIfDue(now time.Time) {
	if now.Sub(t.lastReset) >= 24*time.Hour {
		t.used = 0
		t.lastReset = lastResetBefore(now, t.resetHour)
	}
}

func (t *Tracker) state(now time.Time) (used int64, nextReset time.Time) {
	t.resetIfDue(now)
	return t.used, t.lastReset.Add(24 * time.Hour)
}

// Allow reports whether a call fits in the remaining budget without
// consuming it. Exhaustion returns *BudgetExhaustedError; crossing the warn
// threshold returns *BudgetWarningError.
func (t *Tracker) Allow() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	used, nextReset := t.state(now)
	if used >= t.limit {
		return &BudgetExhaustedError{Used: used, Limit: t.limit, ETA: nextReset}
	}
	if float64(used)/float64(t.limit) >= t.warnThreshold {
		return &BudgetWarningError{Used: used, Limit: t.limit, Threshold: t.warnThreshold}
	}
	return nil
}

// Consume spends one call. It refuses (and does not count) a call past the
// limit, and warns past the threshold.
func (t *Tracker) Consume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	used, nextReset := t.state(now)
	if used+1 > t.limit {
		return &BudgetExhaustedError{Used: used, Limit: t.limit, ETA: nextReset}
	}
	t.used = used + 1
	if float64(t.used)/float64(t.limit) >= t.warnThreshold {
		return &BudgetWarningError{Used: t.used, Limit: t.limit, Threshold: t.warnThreshold}
	}
	return nil
}

// Stats is a point-in-time budget snapshot for the health endpoint.
type Stats struct {
	Limit           int64     `json:"limit"`
	Used            int64     `json:"used"`
	Remaining       int64     `json:"remaining"`
	UtilizationRate float64   `json:"utilization_rate"`
	WarnThreshold   float64   `json:"warn_threshold"`
	ResetHour       int       `json:"reset_hour"`
	LastReset       time.Time `json:"last_reset"`
	NextReset       time.Time `json:"next_reset"`
	IsWarning       bool      `json:"is_warning"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// Stats snapshots the tracker.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.nowFn()
	used, nextReset := t.state(now)
	utilization := float64(used) / float64(t.limit)
	return Stats{
		Limit:           t.limit,
		Used:            used,
		Remaining:       t.limit - used,
		UtilizationRate: utilization,
		WarnThreshold:   t.warnThreshold,
		ResetHour:       t.resetHour,
		LastReset:       t.lastReset,
		NextReset:       nextReset,
		IsWarning:       utilization >= t.warnThreshold,
		IsExhausted:     used >= t.limit,
	}
}

// Manager keys Trackers by provider name.
type Manager struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

func NewManager() *Manager {
	return &Manager{trackers: make(map[string]*Tracker)}
}

// AddProvider registers a daily budget for a provider.
func (m *Manager) AddProvider(name string, limit int64, resetHour int, warnThreshold float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[name] = NewTracker(limit, resetHour, warnThreshold)
}

// GetTracker returns the provider's Tracker when one is registered.
func (m *Manager) GetTracker(provider string) (*Tracker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trackers[provider]
	return t, ok
}

// Allow checks the provider's budget; unregistered providers are unmetered.
func (m *Manager) Allow(provider string) error {
	t, ok := m.GetTracker(provider)
	if !ok {
		return nil
	}
	return t.Allow()
}

// Consume spends one call against the provider's budget.
func (m *Manager) Consume(provider string) error {
	t, ok := m.GetTracker(provider)
	if !ok {
		return nil
	}
	return t.Consume()
}

// Stats snapshots every registered tracker.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]Stats, len(m.trackers))
	for provider, t := range m.trackers {
		stats[provider] = t.Stats()
	}
	return stats
}
