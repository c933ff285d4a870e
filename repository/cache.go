package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trade-council/models"

	"github.com/jackc/pgx/v5"
)

// snapshotRetention bounds how long cached snapshots stay queryable.
// Freshness for a given run comes from the caller's notBefore cutoff; the
// retention window only keeps the table from growing without bound.
const snapshotRetention = 24 * time.Hour

// GetSnapshot returns the cached snapshot for a symbol if its as-of time
// is at or after notBefore. A miss returns (nil, nil).
func (r *Repository) GetSnapshot(ctx context.Context, symbol string, notBefore time.Time) (*models.IndicatorSnapshot, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var data []byte

	// Let the database handle the expiry check to avoid timezone issues
	err := r.pool.QueryRow(ctx, `
		SELECT data FROM snapshot_cache
		WHERE symbol = $1 AND as_of >= $2 AND expires_at > NOW()
	`, symbol, notBefore).Scan(&data)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot cache: %w", err)
	}

	var snapshot models.IndicatorSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}

	return &snapshot, nil
}

// PutSnapshot stores a snapshot, replacing any prior entry for the symbol
func (r *Repository) PutSnapshot(ctx context.Context, snapshot *models.IndicatorSnapshot) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	if snapshot == nil || snapshot.Symbol == "" {
		return nil
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO snapshot_cache (symbol, as_of, data, expires_at)
		VALUES ($1, $2, $3, NOW() + $4::interval)
		ON CONFLICT (symbol)
		DO UPDATE SET as_of = EXCLUDED.as_of, data = EXCLUDED.data,
			expires_at = NOW() + $4::interval, created_at = NOW()
	`, snapshot.Symbol, snapshot.AsOf, data, snapshotRetention.String())

	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	return nil
}

// InvalidateSnapshot removes the cached snapshot for a symbol, forcing the
// next run to rebuild from live data
func (r *Repository) InvalidateSnapshot(ctx context.Context, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM snapshot_cache WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

// CleanExpiredSnapshots removes all snapshot rows past their retention
// window and reports how many were deleted
func (r *Repository) CleanExpiredSnapshots(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.pool.Exec(ctx, `DELETE FROM snapshot_cache WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}
