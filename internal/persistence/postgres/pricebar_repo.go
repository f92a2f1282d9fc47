package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marketintel/analytics/internal/persistence"
)

// priceBarRepo implements persistence.PriceBarRepo for PostgreSQL. Bars are
// append-only, upserted by (asset, ts_utc).
type priceBarRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPriceBarRepo creates a new PostgreSQL price-bar repository.
func NewPriceBarRepo(db *sqlx.DB, timeout time.Duration) persistence.PriceBarRepo {
	return &priceBarRepo{db: db, timeout: timeout}
}

const upsertBarQuery = `
	INSERT INTO price_bars (asset, ts_utc, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (asset, ts_utc) DO UPDATE SET
		open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		close = EXCLUDED.close, volume = EXCLUDED.volume`

func (r *priceBarRepo) Upsert(ctx context.Context, bar persistence.PriceBar) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, upsertBarQuery,
		bar.Asset, bar.TsUTC, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
		return fmt.Errorf("failed to upsert price bar: %w", err)
	}
	return nil
}

func (r *priceBarRepo) UpsertBatch(ctx context.Context, bars []persistence.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, bar := range bars {
		if _, err := tx.ExecContext(ctx, upsertBarQuery,
			bar.Asset, bar.TsUTC, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			return fmt.Errorf("failed to upsert price bar batch: %w", err)
		}
	}
	return tx.Commit()
}

func (r *priceBarRepo) Window(ctx context.Context, asset string, tr persistence.TimeRange) ([]persistence.PriceBar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bars []persistence.PriceBar
	query := `SELECT asset, ts_utc, open, high, low, close, volume
	          FROM price_bars WHERE asset = $1 AND ts_utc >= $2 AND ts_utc <= $3
	          ORDER BY ts_utc ASC`
	if err := r.db.SelectContext(ctx, &bars, query, asset, tr.From, tr.To); err != nil {
		return nil, fmt.Errorf("failed to query price bar window: %w", err)
	}
	return bars, nil
}

// Purge deletes bars older than the given cutoff.
func (r *priceBarRepo) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM price_bars WHERE ts_utc < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge price bars: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *priceBarRepo) Nearest(ctx context.Context, asset string, at time.Time) (*persistence.PriceBar, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var bar persistence.PriceBar
	query := `SELECT asset, ts_utc, open, high, low, close, volume
	          FROM price_bars WHERE asset = $1 AND ts_utc <= $2
	          ORDER BY ts_utc DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &bar, query, asset, at); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find nearest price bar: %w", err)
	}
	return &bar, nil
}
