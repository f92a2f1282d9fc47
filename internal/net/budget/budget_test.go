package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *Tracker, at time.Time) { t.nowFn = func() time.Time { return at } }

func TestConsumeUpToLimit(t *testing.T) {
	tr := NewTracker(3, 0, 0.99)

	require.NoError(t, tr.Consume())
	require.NoError(t, tr.Consume())

	err := tr.Consume() // third call crosses 0.99 threshold at 3/3
	var warn *BudgetWarningError
	assert.ErrorAs(t, err, &warn)

	err = tr.Consume()
	var exhausted *BudgetExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, int64(3), exhausted.Used)
	assert.Equal(t, int64(3), exhausted.Limit)
}

func TestAllowDoesNotConsume(t *testing.T) {
	tr := NewTracker(2, 0, 0.9)

	for i := 0; i < 5; i++ {
		assert.NoError(t, tr.Allow())
	}
	assert.Equal(t, int64(0), tr.Stats().Used)
}

func TestWarningThreshold(t *testing.T) {
	tr := NewTracker(10, 0, 0.5)

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.Consume())
	}
	err := tr.Consume() // 5/10 = threshold
	var warn *BudgetWarningError
	require.ErrorAs(t, err, &warn)
	assert.Equal(t, int64(5), warn.Used)
}

func TestDailyReset(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(2, 0, 0.9)
	fixedClock(tr, start)
	tr.lastReset = lastResetBefore(start, 0)

	require.NoError(t, tr.Consume())
	require.Error(t, tr.Consume()) // 2/2 crosses the warn threshold
	var exhausted *BudgetExhaustedError
	require.ErrorAs(t, tr.Consume(), &exhausted)

	fixedClock(tr, start.Add(25*time.Hour))
	assert.NoError(t, tr.Consume(), "counter rolls over after the reset hour")
}

func TestStats(t *testing.T) {
	tr := NewTracker(4, 6, 0.8)
	require.NoError(t, tr.Consume())

	s := tr.Stats()
	assert.Equal(t, int64(4), s.Limit)
	assert.Equal(t, int64(1), s.Used)
	assert.Equal(t, int64(3), s.Remaining)
	assert.Equal(t, 6, s.ResetHour)
	assert.False(t, s.IsWarning)
	assert.False(t, s.IsExhausted)
}

func TestManagerUnregisteredProviderIsUnmetered(t *testing.T) {
	m := NewManager()
	assert.NoError(t, m.Allow("unknown"))
	assert.NoError(t, m.Consume("unknown"))
}

func TestManagerTracksPerProvider(t *testing.T) {
	m := NewManager()
	m.AddProvider("finnhub", 2, 0, 0.9)
	m.AddProvider("yahoo", 100, 0, 0.9)

	require.NoError(t, m.Consume("finnhub"))
	var warn *BudgetWarningError
	require.ErrorAs(t, m.Consume("finnhub"), &warn)
	var exhausted *BudgetExhaustedError
	assert.ErrorAs(t, m.Consume("finnhub"), &exhausted)
	assert.NoError(t, m.Consume("yahoo"))

	stats := m.Stats()
	assert.Equal(t, int64(2), stats["finnhub"].Used)
	assert.True(t, stats["finnhub"].IsExhausted)
	assert.Equal(t, int64(1), stats["yahoo"].Used)
}
