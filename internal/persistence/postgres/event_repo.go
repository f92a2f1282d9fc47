package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marketintel/analytics/internal/persistence"
)

// eventRepo implements persistence.EventRepo for PostgreSQL.
type eventRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *sqlx.DB, timeout time.Duration) persistence.EventRepo {
	return &eventRepo{db: db, timeout: timeout}
}

// Upsert writes the event row and its asset/sector relevance map in one transaction.
func (r *eventRepo) Upsert(ctx context.Context, event persistence.EventRow, assets []persistence.EventAssetMap) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	eventQuery := `
		INSERT INTO events
		(event_id, ts_utc, source, source_tier, headline, body, url, tags_json,
		 dedup_hash, cluster_id, credibility, severity, impact, event_type, category, direction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (event_id) DO UPDATE SET
			credibility = EXCLUDED.credibility,
			severity = EXCLUDED.severity,
			impact = EXCLUDED.impact,
			cluster_id = EXCLUDED.cluster_id
		RETURNING created_at`

	if err := tx.QueryRowxContext(ctx, eventQuery,
		event.EventID, event.TsUTC, event.Source, event.SourceTier, event.Headline,
		event.Body, event.URL, event.TagsJSON, event.DedupHash, event.ClusterID,
		event.Credibility, event.Severity, event.Impact, event.EventType,
		event.Category, event.Direction).Scan(&event.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	assetQuery := `
		INSERT INTO event_asset_map (event_id, asset_or_sector, relevance_score)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, asset_or_sector) DO UPDATE SET
			relevance_score = EXCLUDED.relevance_score`

	for _, a := range assets {
		if _, err := tx.ExecContext(ctx, assetQuery, event.EventID, a.AssetOrSector, a.RelevanceScore); err != nil {
			return fmt.Errorf("failed to upsert event_asset_map: %w", err)
		}
	}

	return tx.Commit()
}

func (r *eventRepo) GetByID(ctx context.Context, eventID string) (*persistence.EventRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e persistence.EventRow
	query := `SELECT event_id, ts_utc, source, source_tier, headline, body, url, tags_json,
	                 dedup_hash, cluster_id, credibility, severity, impact, event_type,
	                 category, direction, created_at
	          FROM events WHERE event_id = $1`
	if err := r.db.GetContext(ctx, &e, query, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *eventRepo) GetByClusterID(ctx context.Context, clusterID string) (*persistence.EventRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var e persistence.EventRow
	query := `SELECT event_id, ts_utc, source, source_tier, headline, body, url, tags_json,
	                 dedup_hash, cluster_id, credibility, severity, impact, event_type,
	                 category, direction, created_at
	          FROM events WHERE cluster_id = $1 ORDER BY ts_utc DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &e, query, clusterID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event by cluster: %w", err)
	}
	return &e, nil
}

func (r *eventRepo) ListRecent(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.EventRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var events []persistence.EventRow
	query := `SELECT event_id, ts_utc, source, source_tier, headline, body, url, tags_json,
	                 dedup_hash, cluster_id, credibility, severity, impact, event_type,
	                 category, direction, created_at
	          FROM events
	          WHERE ts_utc >= $1 AND ts_utc <= $2
	          ORDER BY ts_utc DESC
	          LIMIT $3`
	if err := r.db.SelectContext(ctx, &events, query, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}

func (r *eventRepo) ListByAsset(ctx context.Context, assetOrSector string, tr persistence.TimeRange, limit int) ([]persistence.EventRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var events []persistence.EventRow
	query := `SELECT e.event_id, e.ts_utc, e.source, e.source_tier, e.headline, e.body, e.url,
	                 e.tags_json, e.dedup_hash, e.cluster_id, e.credibility, e.severity, e.impact,
	                 e.event_type, e.category, e.direction, e.created_at
	          FROM events e
	          JOIN event_asset_map m ON m.event_id = e.event_id
	          WHERE m.asset_or_sector = $1 AND e.ts_utc >= $2 AND e.ts_utc <= $3
	          ORDER BY e.ts_utc DESC
	          LIMIT $4`
	if err := r.db.SelectContext(ctx, &events, query, assetOrSector, tr.From, tr.To, limit); err != nil {
		return nil, fmt.Errorf("failed to list events by asset: %w", err)
	}
	return events, nil
}

// Purge deletes events (and their asset map rows, via FK cascade) older than
// the given cutoff: the retention sweep.
func (r *eventRepo) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE ts_utc < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *eventRepo) ExistsByDedupHash(ctx context.Context, dedupHash string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM events WHERE dedup_hash = $1)`
	if err := r.db.QueryRowxContext(ctx, query, dedupHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check dedup hash: %w", err)
	}
	return exists, nil
}
