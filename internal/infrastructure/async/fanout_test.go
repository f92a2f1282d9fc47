package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	results, errs := Map(context.Background(), 3, items, func(_ context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})

	require.Len(t, results, 5)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, results)
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var active, peak int64
	items := make([]int, 20)
	Map(context.Background(), 4, items, func(_ context.Context, _ int) (struct{}, error) {
		cur := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if cur <= p || atomic.CompareAndSwapInt64(&peak, p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return struct{}{}, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(4))
}

func TestMapRecordsPerItemErrors(t *testing.T) {
	sentinel := errors.New("boom")
	items := []int{1, 2, 3}
	results, errs := Map(context.Background(), 2, items, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, sentinel
		}
		return n, nil
	})

	assert.Equal(t, []int{1, 0, 3}, results)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], sentinel)
	assert.NoError(t, errs[2])
}

func TestMapCancelledContextYieldsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []int{1, 2, 3}
	_, errs := Map(ctx, 1, items, func(ctx context.Context, n int) (int, error) {
		return n, ctx.Err()
	})

	for _, err := range errs {
		assert.Error(t, err)
	}
}

func TestForEach(t *testing.T) {
	var total int64
	errs := ForEach(context.Background(), 2, []int64{1, 2, 3, 4}, func(_ context.Context, n int64) error {
		atomic.AddInt64(&total, n)
		return nil
	})
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(10), atomic.LoadInt64(&total))
}
