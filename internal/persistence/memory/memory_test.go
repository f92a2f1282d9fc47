package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/analytics/internal/persistence"
)

func TestEventRepo_UpsertAndGetByClusterIDReturnsLatest(t *testing.T) {
	repo := NewEventRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, persistence.EventRow{EventID: "e1", ClusterID: "c1", TsUTC: now.Add(-time.Hour), DedupHash: "h1"}, nil))
	require.NoError(t, repo.Upsert(ctx, persistence.EventRow{EventID: "e2", ClusterID: "c1", TsUTC: now, DedupHash: "h2"}, nil))

	got, err := repo.GetByClusterID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e2", got.EventID)

	exists, err := repo.ExistsByDedupHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEventRepo_PurgeRemovesOlderThanCutoff(t *testing.T) {
	repo := NewEventRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, persistence.EventRow{EventID: "old", TsUTC: now.Add(-48 * time.Hour)}, nil))
	require.NoError(t, repo.Upsert(ctx, persistence.EventRow{EventID: "new", TsUTC: now}, nil))

	n, err := repo.Purge(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	row, err := repo.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestPriceBarRepo_NearestPicksClosestTimestamp(t *testing.T) {
	repo := NewPriceBarRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertBatch(ctx, []persistence.PriceBar{
		{Asset: "BTC", TsUTC: base, Close: 100},
		{Asset: "BTC", TsUTC: base.Add(15 * time.Minute), Close: 110},
	}))

	bar, err := repo.Nearest(ctx, "BTC", base.Add(10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, 110.0, bar.Close)
}

func TestPriceBarRepo_WindowOrdersAscendingByTime(t *testing.T) {
	repo := NewPriceBarRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.UpsertBatch(ctx, []persistence.PriceBar{
		{Asset: "ETH", TsUTC: base.Add(30 * time.Minute), Close: 3},
		{Asset: "ETH", TsUTC: base, Close: 1},
		{Asset: "ETH", TsUTC: base.Add(15 * time.Minute), Close: 2},
	}))

	bars, err := repo.Window(ctx, "ETH", persistence.TimeRange{From: base, To: base.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[2].Close)
}

func TestForecastRepo_LatestReturnsMostRecentCreated(t *testing.T) {
	repo := NewForecastRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, persistence.Forecast{ForecastID: "f1", Target: "BTC", TF: "1h", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Insert(ctx, persistence.Forecast{ForecastID: "f2", Target: "BTC", TF: "1h", CreatedAt: now}))

	latest, err := repo.Latest(ctx, "BTC", "1h")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "f2", latest.ForecastID)
}

func TestForecastRepo_AppendScoreExcludesForecastFromListExpired(t *testing.T) {
	repo := NewForecastRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Insert(ctx, persistence.Forecast{ForecastID: "f1", Target: "BTC", TF: "1h", ExpiresAtUTC: now.Add(-time.Minute)}))
	require.NoError(t, repo.Insert(ctx, persistence.Forecast{ForecastID: "f2", Target: "ETH", TF: "1h", ExpiresAtUTC: now.Add(-time.Minute)}))

	require.NoError(t, repo.AppendScore(ctx, persistence.ForecastScore{ForecastID: "f1", Hit: true, Brier: 0.1}))

	expired, err := repo.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "f2", expired[0].ForecastID)
}

func TestKVRepo_GetExpiresEntryPastTTL(t *testing.T) {
	repo := NewKVRepo()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, repo.Set(ctx, persistence.KVEntry{Key: "k", Value: []byte("v"), ExpiresAt: &past}))

	entry, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestNew_ReturnsFullyWiredRepository(t *testing.T) {
	repo := New()
	assert.NotNil(t, repo.Events)
	assert.NotNil(t, repo.PriceBars)
	assert.NotNil(t, repo.EventImpacts)
	assert.NotNil(t, repo.Forecasts)
	assert.NotNil(t, repo.KV)
}
