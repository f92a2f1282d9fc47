// Package bars keeps the price_bars table current: a cadence-gated sweep
// fetches 15-minute candles for every tracked asset through a primary
// source with per-asset provider fallbacks, and upserts them by
// (asset, ts_utc). Every bar consumer (event-study realized impacts,
// forecast scoring and calibration, portfolio volatility/momentum,
// /bars/latest) reads what this sweep writes.
package bars

import (
	"context"
	"fmt"
	"time"

	"github.com/marketintel/analytics/internal/domain"
	"github.com/marketintel/analytics/internal/infrastructure/async"
	"github.com/marketintel/analytics/internal/persistence"
)

// Source is one candle backend. Fetch returns 15-minute bars for a
// provider-native symbol, oldest first; an empty slice means the source had
// nothing for the symbol.
type Source struct {
	Name  string
	Fetch func(ctx context.Context, symbol string) ([]domain.PriceBar, error)
}

// DefaultMinInterval is how long a synced asset stays fresh before the next
// sweep refetches it.
const DefaultMinInterval = 12 * time.Minute

// fetchWorkers bounds the per-asset candle fan-out.
const fetchWorkers = 4

const lastFetchKeyPrefix = "bars:last_fetch:"

// Syncer drives the candle sweep. Assets are bar-store keys (the symbol
// spelling consumers query, e.g. "BTC-USD"); the primary source is called
// with the asset key itself, fallbacks with their mapped spelling from
// FallbackSymbols.
type Syncer struct {
	Bars      persistence.PriceBarRepo
	KV        persistence.KVRepo
	Primary   Source
	Fallbacks []Source

	// FallbackSymbols maps asset -> source name -> provider-native symbol.
	// An asset absent here is primary-only.
	FallbackSymbols map[string]map[string]string

	Assets      []string
	MinInterval time.Duration

	nowFn func() time.Time
}

// NewSyncer wires a Syncer over the bar/KV repositories.
func NewSyncer(barRepo persistence.PriceBarRepo, kv persistence.KVRepo, primary Source, fallbacks []Source, assets []string) *Syncer {
	return &Syncer{
		Bars:        barRepo,
		KV:          kv,
		Primary:     primary,
		Fallbacks:   fallbacks,
		Assets:      assets,
		MinInterval: DefaultMinInterval,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// due reports whether the asset's last successful fetch is old enough to
// refetch. A missing or unparseable checkpoint is due.
func (s *Syncer) due(ctx context.Context, asset string, now time.Time) bool {
	if s.KV == nil {
		return true
	}
	entry, err := s.KV.Get(ctx, lastFetchKeyPrefix+asset)
	if err != nil || entry == nil {
		return true
	}
	last, err := time.Parse(time.RFC3339, string(entry.Value))
	if err != nil {
		return true
	}
	return now.Sub(last) >= s.MinInterval
}

// fetchResult carries one asset's bars plus the notes its fetch produced;
// notes are accumulated here and merged after the fan-out so concurrent
// workers never touch the caller's shared note list.
type fetchResult struct {
	rows  []domain.PriceBar
	notes []string
}

// fetchOne walks primary then fallbacks for one asset.
func (s *Syncer) fetchOne(ctx context.Context, asset string) fetchResult {
	var res fetchResult
	rows, err := s.Primary.Fetch(ctx, asset)
	if err != nil {
		res.notes = append(res.notes, fmt.Sprintf("bars_sync_error:%s:%v", asset, err))
	}
	if len(rows) > 0 {
		res.rows = rows
		return res
	}

	symbols := s.FallbackSymbols[asset]
	for _, src := range s.Fallbacks {
		symbol, ok := symbols[src.Name]
		if !ok {
			continue
		}
		rows, err := src.Fetch(ctx, symbol)
		if err != nil {
			res.notes = append(res.notes, fmt.Sprintf("bars_sync_error:%s:%v", asset, err))
			continue
		}
		if len(rows) > 0 {
			res.notes = append(res.notes, fmt.Sprintf("bars_fallback:%s:%s", src.Name, asset))
			res.rows = rows
			return res
		}
	}
	return res
}

// Sync fetches candles for every due asset under a bounded pool and
// upserts them, returning the number of bars written. Failures degrade to
// notes; an asset's checkpoint only advances after a successful write, so
// a failed asset is retried on the next sweep.
func (s *Syncer) Sync(ctx context.Context, now time.Time, notes *domain.FetchNotes) int {
	if s == nil || s.Bars == nil {
		return 0
	}
	if s.nowFn != nil && now.IsZero() {
		now = s.nowFn()
	}

	var dueAssets []string
	for _, asset := range s.Assets {
		if s.due(ctx, asset, now) {
			dueAssets = append(dueAssets, asset)
		}
	}
	if len(dueAssets) == 0 {
		return 0
	}

	fetched, _ := async.Map(ctx, fetchWorkers, dueAssets, func(ctx context.Context, asset string) (fetchResult, error) {
		return s.fetchOne(ctx, asset), nil
	})

	written := 0
	for i, res := range fetched {
		if notes != nil {
			for _, n := range res.notes {
				notes.Add(n)
			}
		}
		if len(res.rows) == 0 {
			continue
		}
		asset := dueAssets[i]
		batch := make([]persistence.PriceBar, 0, len(res.rows))
		for _, b := range res.rows {
			if b.Close == 0 || b.TsUTC.IsZero() {
				continue
			}
			batch = append(batch, persistence.PriceBar{
				Asset:  asset,
				TsUTC:  b.TsUTC.UTC(),
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			})
		}
		if len(batch) == 0 {
			continue
		}
		if err := s.Bars.UpsertBatch(ctx, batch); err != nil {
			if notes != nil {
				notes.Add(fmt.Sprintf("bars_sync_error:%s:%v", asset, err))
			}
			continue
		}
		written += len(batch)
		if s.KV != nil {
			_ = s.KV.Set(ctx, persistence.KVEntry{
				Key:       lastFetchKeyPrefix + asset,
				Value:     []byte(now.Format(time.RFC3339)),
				UpdatedAt: now,
			})
		}
	}
	return written
}
