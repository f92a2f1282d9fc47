package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		RequestTimeout:   time.Second,
	}
}

var errProvider = errors.New("http 500")

func failCall(_ context.Context) error { return errProvider }
func okCall(_ context.Context) error   { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Call(ctx, failCall), errProvider)
	}
	assert.Equal(t, StateOpen, b.State())

	err := b.Call(ctx, okCall)
	assert.ErrorIs(t, err, ErrCircuitOpen, "open circuit rejects without calling fn")
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	require.Error(t, b.Call(ctx, failCall))
	require.Error(t, b.Call(ctx, failCall))
	require.NoError(t, b.Call(ctx, okCall))
	require.Error(t, b.Call(ctx, failCall))
	require.Error(t, b.Call(ctx, failCall))

	assert.Equal(t, StateClosed, b.State(), "streak was broken by the success")
}

func TestHalfOpenProbeClosesAfterSuccessThreshold(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Call(ctx, failCall)
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(60 * time.Millisecond)

	require.NoError(t, b.Call(ctx, okCall))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Call(ctx, okCall))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbeFailureReopens(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		b.Call(ctx, failCall)
	}
	time.Sleep(60 * time.Millisecond)

	require.ErrorIs(t, b.Call(ctx, failCall), errProvider)
	assert.Equal(t, StateOpen, b.State())
}

func TestRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	b := NewBreaker(cfg)

	err := b.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrRequestTimeout)

	stats := b.Stats()
	assert.Equal(t, int64(1), stats.TotalTimeouts)
	assert.Equal(t, int64(1), stats.TotalFailures)
}

func TestStats(t *testing.T) {
	b := NewBreaker(testConfig())
	ctx := context.Background()

	require.NoError(t, b.Call(ctx, okCall))
	require.Error(t, b.Call(ctx, failCall))

	stats := b.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalSuccesses)
	assert.Equal(t, int64(1), stats.TotalFailures)
	assert.Equal(t, 0.5, stats.SuccessRate)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.True(t, (&Stats{State: StateClosed}).IsHealthy())
	assert.False(t, (&Stats{State: StateOpen}).IsHealthy())
}

func TestManagerUnregisteredProviderRunsUnguarded(t *testing.T) {
	m := NewManager()
	called := false
	err := m.Call(context.Background(), "unknown", func(_ context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestManagerPerProviderIsolation(t *testing.T) {
	m := NewManager()
	m.AddProvider("yahoo", testConfig())
	m.AddProvider("finnhub", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Call(ctx, "yahoo", failCall)
	}

	assert.ErrorIs(t, m.Call(ctx, "yahoo", okCall), ErrCircuitOpen)
	assert.NoError(t, m.Call(ctx, "finnhub", okCall), "finnhub unaffected by yahoo's open circuit")

	stats := m.Stats()
	assert.Equal(t, StateOpen, stats["yahoo"].State)
	assert.Equal(t, StateClosed, stats["finnhub"].State)
}
