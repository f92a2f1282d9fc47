package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marketintel/analytics/internal/persistence"
)

// forecastRepo implements persistence.ForecastRepo for PostgreSQL. Forecasts are
// immutable once written; Insert never updates an existing row.
type forecastRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewForecastRepo creates a new PostgreSQL forecast repository.
func NewForecastRepo(db *sqlx.DB, timeout time.Duration) persistence.ForecastRepo {
	return &forecastRepo{db: db, timeout: timeout}
}

func (r *forecastRepo) Insert(ctx context.Context, forecast persistence.Forecast) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO forecasts
		(forecast_id, target, tf, direction, confidence, market_score, news_score,
		 fused_score, rationale_json, expires_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (forecast_id) DO NOTHING
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		forecast.ForecastID, forecast.Target, forecast.TF, forecast.Direction,
		forecast.Confidence, forecast.MarketScore, forecast.NewsScore,
		forecast.FusedScore, forecast.RationaleJSON, forecast.ExpiresAtUTC).
		Scan(&forecast.CreatedAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to insert forecast: %w", err)
	}
	return nil
}

func (r *forecastRepo) Latest(ctx context.Context, target, tf string) (*persistence.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT forecast_id, target, tf, direction, confidence, market_score, news_score,
		       fused_score, rationale_json, expires_at_utc, created_at
		FROM forecasts
		WHERE target = $1 AND tf = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var f persistence.Forecast
	err := r.db.GetContext(ctx, &f, query, target, tf)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest forecast: %w", err)
	}
	return &f, nil
}

func (r *forecastRepo) ListLatestAll(ctx context.Context) ([]persistence.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (target, tf)
		       forecast_id, target, tf, direction, confidence, market_score, news_score,
		       fused_score, rationale_json, expires_at_utc, created_at
		FROM forecasts
		ORDER BY target, tf, created_at DESC`

	var fs []persistence.Forecast
	if err := r.db.SelectContext(ctx, &fs, query); err != nil {
		return nil, fmt.Errorf("failed to list latest forecasts: %w", err)
	}
	return fs, nil
}

func (r *forecastRepo) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]persistence.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT f.forecast_id, f.target, f.tf, f.direction, f.confidence, f.market_score,
		       f.news_score, f.fused_score, f.rationale_json, f.expires_at_utc, f.created_at
		FROM forecasts f
		LEFT JOIN forecast_scores s ON s.forecast_id = f.forecast_id
		WHERE f.expires_at_utc <= $1 AND s.forecast_id IS NULL
		ORDER BY f.expires_at_utc ASC
		LIMIT $2`

	var fs []persistence.Forecast
	if err := r.db.SelectContext(ctx, &fs, query, asOf, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired forecasts: %w", err)
	}
	return fs, nil
}

func (r *forecastRepo) AppendScore(ctx context.Context, score persistence.ForecastScore) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO forecast_scores (forecast_id, ref_price, actual_move, hit, brier, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (forecast_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query,
		score.ForecastID, score.RefPrice, score.ActualMove, score.Hit, score.Brier, score.ScoredAt); err != nil {
		return fmt.Errorf("failed to append forecast score: %w", err)
	}
	return nil
}

func (r *forecastRepo) ListScoredSince(ctx context.Context, tf string, since time.Time) ([]persistence.ScoredForecast, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT f.forecast_id, f.target, f.direction, f.confidence, f.fused_score,
		       s.hit, s.brier, f.created_at, s.scored_at
		FROM forecasts f
		JOIN forecast_scores s ON s.forecast_id = f.forecast_id
		WHERE f.tf = $1 AND s.scored_at >= $2
		ORDER BY s.scored_at ASC`

	var out []persistence.ScoredForecast
	if err := r.db.SelectContext(ctx, &out, query, tf, since); err != nil {
		return nil, fmt.Errorf("failed to list scored forecasts: %w", err)
	}
	return out, nil
}

func (r *forecastRepo) ListEmittedSince(ctx context.Context, tf string, since time.Time) ([]persistence.Forecast, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT forecast_id, target, tf, direction, confidence, market_score, news_score,
		       fused_score, rationale_json, expires_at_utc, created_at
		FROM forecasts
		WHERE tf = $1 AND created_at >= $2
		ORDER BY created_at ASC`

	var out []persistence.Forecast
	if err := r.db.SelectContext(ctx, &out, query, tf, since); err != nil {
		return nil, fmt.Errorf("failed to list emitted forecasts: %w", err)
	}
	return out, nil
}

func (r *forecastRepo) Metrics(ctx context.Context, target, tf string, tr persistence.TimeRange) (float64, float64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COALESCE(AVG(CASE WHEN s.hit THEN 1.0 ELSE 0.0 END), 0),
		       COALESCE(AVG(s.brier), 0),
		       COUNT(*)
		FROM forecast_scores s
		JOIN forecasts f ON f.forecast_id = s.forecast_id
		WHERE f.target = $1 AND f.tf = $2 AND s.scored_at >= $3 AND s.scored_at <= $4`

	var hitRate, avgBrier float64
	var n int64
	if err := r.db.QueryRowxContext(ctx, query, target, tf, tr.From, tr.To).Scan(&hitRate, &avgBrier, &n); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to compute forecast metrics: %w", err)
	}
	return hitRate, avgBrier, n, nil
}
