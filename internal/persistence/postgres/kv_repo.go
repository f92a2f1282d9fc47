package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/marketintel/analytics/internal/persistence"
)

// kvRepo implements persistence.KVRepo for PostgreSQL, backing pipeline
// checkpoints and any cache state that must survive a process restart.
type kvRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewKVRepo creates a new PostgreSQL key-value repository.
func NewKVRepo(db *sqlx.DB, timeout time.Duration) persistence.KVRepo {
	return &kvRepo{db: db, timeout: timeout}
}

func (r *kvRepo) Get(ctx context.Context, key string) (*persistence.KVEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var entry persistence.KVEntry
	query := `SELECT key, value, expires_at, updated_at FROM kv_store WHERE key = $1`
	if err := r.db.GetContext(ctx, &entry, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}
	if entry.ExpiresAt != nil && entry.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

func (r *kvRepo) Set(ctx context.Context, entry persistence.KVEntry) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO kv_store (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`

	if _, err := r.db.ExecContext(ctx, query, entry.Key, entry.Value, entry.ExpiresAt); err != nil {
		return fmt.Errorf("failed to set kv entry: %w", err)
	}
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}
