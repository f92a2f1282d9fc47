package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marketintel/analytics/internal/persistence"
)

// eventImpactRepo implements persistence.EventImpactRepo for PostgreSQL.
type eventImpactRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewEventImpactRepo creates a new PostgreSQL event-impact repository.
func NewEventImpactRepo(db *sqlx.DB, timeout time.Duration) persistence.EventImpactRepo {
	return &eventImpactRepo{db: db, timeout: timeout}
}

func (r *eventImpactRepo) Upsert(ctx context.Context, impact persistence.EventImpact) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO event_impact (cluster_id, target, tf, pre_return, post_return, z_score, ref_price, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cluster_id, target, tf) DO UPDATE SET
			pre_return = EXCLUDED.pre_return,
			post_return = EXCLUDED.post_return,
			z_score = EXCLUDED.z_score,
			ref_price = EXCLUDED.ref_price,
			computed_at = EXCLUDED.computed_at`

	if _, err := r.db.ExecContext(ctx, query,
		impact.ClusterID, impact.Target, impact.TF, impact.PreReturn, impact.PostReturn,
		impact.ZScore, impact.RefPrice, impact.ComputedAt); err != nil {
		return fmt.Errorf("failed to upsert event impact: %w", err)
	}
	return nil
}

func (r *eventImpactRepo) Get(ctx context.Context, clusterID, target, tf string) (*persistence.EventImpact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var impact persistence.EventImpact
	query := `SELECT cluster_id, target, tf, pre_return, post_return, z_score, ref_price, computed_at
	          FROM event_impact WHERE cluster_id = $1 AND target = $2 AND tf = $3`
	if err := r.db.GetContext(ctx, &impact, query, clusterID, target, tf); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event impact: %w", err)
	}
	return &impact, nil
}

func (r *eventImpactRepo) ListByCluster(ctx context.Context, clusterID string) ([]persistence.EventImpact, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var impacts []persistence.EventImpact
	query := `SELECT cluster_id, target, tf, pre_return, post_return, z_score, ref_price, computed_at
	          FROM event_impact WHERE cluster_id = $1`
	if err := r.db.SelectContext(ctx, &impacts, query, clusterID); err != nil {
		return nil, fmt.Errorf("failed to list event impacts: %w", err)
	}
	return impacts, nil
}
