// Package memory implements persistence.Repository entirely in process
// memory, so cmd/analytics can run the pipeline without a live Postgres
// instance. It mirrors the query semantics of internal/persistence/postgres
// (same upsert-by-key, same ORDER BY ts_utc DESC + LIMIT behavior) rather
// than the schema, since there is no SQL layer to share.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marketintel/analytics/internal/persistence"
)

// New builds a persistence.Repository backed entirely by in-memory maps,
// for use when PG_ENABLED is unset (db.DefaultConfig()'s default).
func New() *persistence.Repository {
	return &persistence.Repository{
		Events:       NewEventRepo(),
		PriceBars:    NewPriceBarRepo(),
		EventImpacts: NewEventImpactRepo(),
		Forecasts:    NewForecastRepo(),
		KV:           NewKVRepo(),
	}
}

type eventRepo struct {
	mu     sync.Mutex
	byID   map[string]persistence.EventRow
	byHash map[string]bool
	assets map[string][]persistence.EventAssetMap
}

// NewEventRepo builds an in-memory persistence.EventRepo.
func NewEventRepo() persistence.EventRepo {
	return &eventRepo{
		byID:   make(map[string]persistence.EventRow),
		byHash: make(map[string]bool),
		assets: make(map[string][]persistence.EventAssetMap),
	}
}

func (r *eventRepo) Upsert(ctx context.Context, event persistence.EventRow, assets []persistence.EventAssetMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	r.byID[event.EventID] = event
	r.byHash[event.DedupHash] = true
	r.assets[event.EventID] = append([]persistence.EventAssetMap(nil), assets...)
	return nil
}

func (r *eventRepo) GetByID(ctx context.Context, eventID string) (*persistence.EventRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[eventID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r *eventRepo) GetByClusterID(ctx context.Context, clusterID string) (*persistence.EventRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *persistence.EventRow
	for _, e := range r.byID {
		if e.ClusterID != clusterID {
			continue
		}
		if best == nil || e.TsUTC.After(best.TsUTC) {
			cp := e
			best = &cp
		}
	}
	return best, nil
}

func (r *eventRepo) ListRecent(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.EventRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.EventRow
	for _, e := range r.byID {
		if e.TsUTC.Before(tr.From) || e.TsUTC.After(tr.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsUTC.After(out[j].TsUTC) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *eventRepo) ListByAsset(ctx context.Context, assetOrSector string, tr persistence.TimeRange, limit int) ([]persistence.EventRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.EventRow
	for eventID, maps := range r.assets {
		matched := false
		for _, m := range maps {
			if m.AssetOrSector == assetOrSector {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		e, ok := r.byID[eventID]
		if !ok || e.TsUTC.Before(tr.From) || e.TsUTC.After(tr.To) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsUTC.After(out[j].TsUTC) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *eventRepo) ExistsByDedupHash(ctx context.Context, dedupHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byHash[dedupHash], nil
}

func (r *eventRepo) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.byID {
		if e.TsUTC.Before(olderThan) {
			delete(r.byID, id)
			delete(r.assets, id)
			n++
		}
	}
	return n, nil
}

type priceBarKey struct {
	asset string
	ts    int64
}

type priceBarRepo struct {
	mu   sync.Mutex
	bars map[priceBarKey]persistence.PriceBar
}

// NewPriceBarRepo builds an in-memory persistence.PriceBarRepo.
func NewPriceBarRepo() persistence.PriceBarRepo {
	return &priceBarRepo{bars: make(map[priceBarKey]persistence.PriceBar)}
}

func (r *priceBarRepo) Upsert(ctx context.Context, bar persistence.PriceBar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars[priceBarKey{bar.Asset, bar.TsUTC.Unix()}] = bar
	return nil
}

func (r *priceBarRepo) UpsertBatch(ctx context.Context, bars []persistence.PriceBar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range bars {
		r.bars[priceBarKey{b.Asset, b.TsUTC.Unix()}] = b
	}
	return nil
}

func (r *priceBarRepo) Window(ctx context.Context, asset string, tr persistence.TimeRange) ([]persistence.PriceBar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.PriceBar
	for k, b := range r.bars {
		if k.asset != asset || b.TsUTC.Before(tr.From) || b.TsUTC.After(tr.To) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsUTC.Before(out[j].TsUTC) })
	return out, nil
}

func (r *priceBarRepo) Nearest(ctx context.Context, asset string, at time.Time) (*persistence.PriceBar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *persistence.PriceBar
	var bestDelta time.Duration
	for k, b := range r.bars {
		if k.asset != asset {
			continue
		}
		delta := at.Sub(b.TsUTC)
		if delta < 0 {
			delta = -delta
		}
		if best == nil || delta < bestDelta {
			cp := b
			best = &cp
			bestDelta = delta
		}
	}
	return best, nil
}

func (r *priceBarRepo) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, b := range r.bars {
		if b.TsUTC.Before(olderThan) {
			delete(r.bars, k)
			n++
		}
	}
	return n, nil
}

type eventImpactKey struct {
	clusterID, target, tf string
}

type eventImpactRepo struct {
	mu      sync.Mutex
	impacts map[eventImpactKey]persistence.EventImpact
}

// NewEventImpactRepo builds an in-memory persistence.EventImpactRepo.
func NewEventImpactRepo() persistence.EventImpactRepo {
	return &eventImpactRepo{impacts: make(map[eventImpactKey]persistence.EventImpact)}
}

func (r *eventImpactRepo) Upsert(ctx context.Context, impact persistence.EventImpact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if impact.ComputedAt.IsZero() {
		impact.ComputedAt = time.Now().UTC()
	}
	r.impacts[eventImpactKey{impact.ClusterID, impact.Target, impact.TF}] = impact
	return nil
}

func (r *eventImpactRepo) Get(ctx context.Context, clusterID, target, tf string) (*persistence.EventImpact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.impacts[eventImpactKey{clusterID, target, tf}]
	if !ok {
		return nil, nil
	}
	return &imp, nil
}

func (r *eventImpactRepo) ListByCluster(ctx context.Context, clusterID string) ([]persistence.EventImpact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.EventImpact
	for k, imp := range r.impacts {
		if k.clusterID == clusterID {
			out = append(out, imp)
		}
	}
	return out, nil
}

type forecastRepo struct {
	mu        sync.Mutex
	all       []persistence.Forecast
	scores    []persistence.ForecastScore
	scoredMap map[string]persistence.ScoredForecast
}

// NewForecastRepo builds an in-memory persistence.ForecastRepo.
func NewForecastRepo() persistence.ForecastRepo {
	return &forecastRepo{scoredMap: make(map[string]persistence.ScoredForecast)}
}

func (r *forecastRepo) Insert(ctx context.Context, forecast persistence.Forecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if forecast.CreatedAt.IsZero() {
		forecast.CreatedAt = time.Now().UTC()
	}
	r.all = append(r.all, forecast)
	return nil
}

func (r *forecastRepo) Latest(ctx context.Context, target, tf string) (*persistence.Forecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *persistence.Forecast
	for i := range r.all {
		f := r.all[i]
		if f.Target != target || f.TF != tf {
			continue
		}
		if best == nil || f.CreatedAt.After(best.CreatedAt) {
			cp := f
			best = &cp
		}
	}
	return best, nil
}

func (r *forecastRepo) ListLatestAll(ctx context.Context) ([]persistence.Forecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := make(map[string]persistence.Forecast)
	for _, f := range r.all {
		key := f.Target + "|" + f.TF
		if cur, ok := latest[key]; !ok || f.CreatedAt.After(cur.CreatedAt) {
			latest[key] = f
		}
	}
	out := make([]persistence.Forecast, 0, len(latest))
	for _, f := range latest {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target+out[i].TF < out[j].Target+out[j].TF })
	return out, nil
}

func (r *forecastRepo) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]persistence.Forecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scored := make(map[string]bool, len(r.scores))
	for _, s := range r.scores {
		scored[s.ForecastID] = true
	}
	var out []persistence.Forecast
	for _, f := range r.all {
		if !f.ExpiresAtUTC.After(asOf) && !scored[f.ForecastID] {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAtUTC.Before(out[j].ExpiresAtUTC) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *forecastRepo) AppendScore(ctx context.Context, score persistence.ForecastScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if score.ScoredAt.IsZero() {
		score.ScoredAt = time.Now().UTC()
	}
	r.scores = append(r.scores, score)
	for _, f := range r.all {
		if f.ForecastID == score.ForecastID {
			r.scoredMap[score.ForecastID] = persistence.ScoredForecast{
				ForecastID: f.ForecastID,
				Target:     f.Target,
				Direction:  f.Direction,
				Confidence: f.Confidence,
				FusedScore: f.FusedScore,
				Hit:        score.Hit,
				Brier:      score.Brier,
				CreatedAt:  f.CreatedAt,
				ScoredAt:   score.ScoredAt,
			}
			break
		}
	}
	return nil
}

func (r *forecastRepo) Metrics(ctx context.Context, target, tf string, tr persistence.TimeRange) (float64, float64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inTF := make(map[string]bool)
	for _, f := range r.all {
		if f.TF == tf {
			inTF[f.ForecastID] = true
		}
	}
	var hits, n int64
	var brierSum float64
	for _, sf := range r.scoredMap {
		if sf.Target != target || !inTF[sf.ForecastID] || sf.ScoredAt.Before(tr.From) || sf.ScoredAt.After(tr.To) {
			continue
		}
		n++
		brierSum += sf.Brier
		if sf.Hit {
			hits++
		}
	}
	if n == 0 {
		return 0, 0, 0, nil
	}
	return float64(hits) / float64(n), brierSum / float64(n), n, nil
}

func (r *forecastRepo) ListScoredSince(ctx context.Context, tf string, since time.Time) ([]persistence.ScoredForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.ScoredForecast
	for _, f := range r.all {
		sf, ok := r.scoredMap[f.ForecastID]
		if !ok || f.TF != tf || sf.ScoredAt.Before(since) {
			continue
		}
		out = append(out, sf)
	}
	return out, nil
}

func (r *forecastRepo) ListEmittedSince(ctx context.Context, tf string, since time.Time) ([]persistence.Forecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persistence.Forecast
	for _, f := range r.all {
		if f.TF == tf && !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

type kvRepo struct {
	mu sync.Mutex
	m  map[string]persistence.KVEntry
}

// NewKVRepo builds an in-memory persistence.KVRepo.
func NewKVRepo() persistence.KVRepo {
	return &kvRepo{m: make(map[string]persistence.KVEntry)}
}

func (r *kvRepo) Get(ctx context.Context, key string) (*persistence.KVEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[key]
	if !ok {
		return nil, nil
	}
	if e.ExpiresAt != nil && time.Now().UTC().After(*e.ExpiresAt) {
		delete(r.m, key)
		return nil, nil
	}
	return &e, nil
}

func (r *kvRepo) Set(ctx context.Context, entry persistence.KVEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.UpdatedAt = time.Now().UTC()
	r.m[entry.Key] = entry
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
	return nil
}
