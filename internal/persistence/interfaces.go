package persistence

import (
	"context"
	"time"
)

// TimeRange represents a time window for windowed queries.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// EventRow is the durable record of a scored, clustered news event.
type EventRow struct {
	EventID     string                 `json:"event_id" db:"event_id"`
	TsUTC       time.Time              `json:"ts_utc" db:"ts_utc"`
	Source      string                 `json:"source" db:"source"`
	SourceTier  string                 `json:"source_tier" db:"source_tier"`
	Headline    string                 `json:"headline" db:"headline"`
	Body        string                 `json:"body" db:"body"`
	URL         string                 `json:"url" db:"url"`
	TagsJSON    []byte                 `json:"-" db:"tags_json"`
	DedupHash   string                 `json:"dedup_hash" db:"dedup_hash"`
	ClusterID   string                 `json:"cluster_id" db:"cluster_id"`
	Credibility float64                `json:"credibility" db:"credibility"`
	Severity    float64                `json:"severity" db:"severity"`
	Impact      float64                `json:"impact" db:"impact"`
	EventType   string                 `json:"event_type" db:"event_type"`
	Category    string                 `json:"category" db:"category"`
	Direction   int                    `json:"direction" db:"direction"`
	Attributes  map[string]interface{} `json:"attributes,omitempty" db:"-"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}

// EventAssetMap links an event to an asset or sector with a relevance weight.
type EventAssetMap struct {
	EventID       string  `json:"event_id" db:"event_id"`
	AssetOrSector string  `json:"asset_or_sector" db:"asset_or_sector"`
	RelevanceScore float64 `json:"relevance_score" db:"relevance_score"`
}

// PriceBar is a single append-only OHLC observation keyed by asset and timestamp.
type PriceBar struct {
	Asset string    `json:"asset" db:"asset"`
	TsUTC time.Time `json:"ts_utc" db:"ts_utc"`
	Open  float64   `json:"open" db:"open"`
	High  float64   `json:"high" db:"high"`
	Low   float64   `json:"low" db:"low"`
	Close float64   `json:"close" db:"close"`
	Volume float64  `json:"volume" db:"volume"`
}

// EventImpact holds the event-study result for a cluster against one target/timeframe.
type EventImpact struct {
	ClusterID  string    `json:"cluster_id" db:"cluster_id"`
	Target     string    `json:"target" db:"target"`
	TF         string    `json:"tf" db:"tf"`
	PreReturn  float64   `json:"pre_return" db:"pre_return"`
	PostReturn float64   `json:"post_return" db:"post_return"`
	ZScore     float64   `json:"z_score" db:"z_score"`
	RefPrice   float64   `json:"ref_price" db:"ref_price"`
	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}

// Forecast is the immutable per-(tf,target) forecast row.
type Forecast struct {
	ForecastID    string    `json:"forecast_id" db:"forecast_id"`
	Target        string    `json:"target" db:"target"`
	TF            string    `json:"tf" db:"tf"`
	Direction     int       `json:"direction" db:"direction"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	MarketScore   float64   `json:"market_score" db:"market_score"`
	NewsScore     float64   `json:"news_score" db:"news_score"`
	FusedScore    float64   `json:"fused_score" db:"fused_score"`
	RationaleJSON []byte    `json:"-" db:"rationale_json"`
	ExpiresAtUTC  time.Time `json:"expires_at_utc" db:"expires_at_utc"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ScoredForecast is a forecast joined with its backtest grading row, used by
// the calibration fitter and reliability-diagram computation.
type ScoredForecast struct {
	ForecastID string    `json:"forecast_id" db:"forecast_id"`
	Target     string    `json:"target" db:"target"`
	Direction  int       `json:"direction" db:"direction"`
	Confidence float64   `json:"confidence" db:"confidence"`
	FusedScore float64   `json:"fused_score" db:"fused_score"`
	Hit        bool      `json:"hit" db:"hit"`
	Brier      float64   `json:"brier" db:"brier"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ScoredAt   time.Time `json:"scored_at" db:"scored_at"`
}

// ForecastScore is the one-time backtest grading row appended when a forecast expires.
type ForecastScore struct {
	ForecastID string    `json:"forecast_id" db:"forecast_id"`
	RefPrice   float64   `json:"ref_price" db:"ref_price"`
	ActualMove float64   `json:"actual_move" db:"actual_move"`
	Hit        bool      `json:"hit" db:"hit"`
	Brier      float64   `json:"brier" db:"brier"`
	ScoredAt   time.Time `json:"scored_at" db:"scored_at"`
}

// KVEntry is a durable key-value row used for pipeline checkpoints and cross-process caches.
type KVEntry struct {
	Key       string    `json:"key" db:"key"`
	Value     []byte    `json:"value" db:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventRepo persists scored news events and their asset/sector relevance map.
type EventRepo interface {
	Upsert(ctx context.Context, event EventRow, assets []EventAssetMap) error
	GetByID(ctx context.Context, eventID string) (*EventRow, error)
	GetByClusterID(ctx context.Context, clusterID string) (*EventRow, error)
	ListRecent(ctx context.Context, tr TimeRange, limit int) ([]EventRow, error)
	ListByAsset(ctx context.Context, assetOrSector string, tr TimeRange, limit int) ([]EventRow, error)
	ExistsByDedupHash(ctx context.Context, dedupHash string) (bool, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// PriceBarRepo persists append-only OHLC bars, upserted by (asset, ts_utc).
type PriceBarRepo interface {
	Upsert(ctx context.Context, bar PriceBar) error
	UpsertBatch(ctx context.Context, bars []PriceBar) error
	Window(ctx context.Context, asset string, tr TimeRange) ([]PriceBar, error)
	Nearest(ctx context.Context, asset string, at time.Time) (*PriceBar, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventImpactRepo persists event-study results keyed by (cluster_id, target, tf).
type EventImpactRepo interface {
	Upsert(ctx context.Context, impact EventImpact) error
	Get(ctx context.Context, clusterID, target, tf string) (*EventImpact, error)
	ListByCluster(ctx context.Context, clusterID string) ([]EventImpact, error)
}

// ForecastRepo persists immutable forecasts and their eventual backtest grading.
type ForecastRepo interface {
	Insert(ctx context.Context, forecast Forecast) error
	Latest(ctx context.Context, target, tf string) (*Forecast, error)
	ListLatestAll(ctx context.Context) ([]Forecast, error)
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]Forecast, error)
	AppendScore(ctx context.Context, score ForecastScore) error
	Metrics(ctx context.Context, target, tf string, tr TimeRange) (hitRate float64, avgBrier float64, n int64, err error)
	ListScoredSince(ctx context.Context, tf string, since time.Time) ([]ScoredForecast, error)
	ListEmittedSince(ctx context.Context, tf string, since time.Time) ([]Forecast, error)
}

// KVRepo provides durable key-value storage for checkpoints and shared caches.
type KVRepo interface {
	Get(ctx context.Context, key string) (*KVEntry, error)
	Set(ctx context.Context, entry KVEntry) error
	Delete(ctx context.Context, key string) error
}

// Repository aggregates all persistence interfaces used by the pipeline.
type Repository struct {
	Events        EventRepo
	PriceBars     PriceBarRepo
	EventImpacts  EventImpactRepo
	Forecasts     ForecastRepo
	KV            KVRepo
}

// HealthCheck represents repository health status.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}
