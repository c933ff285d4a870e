package repository

import (
	"context"
	"fmt"

	"trade-council/models"
	"trade-council/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveOutcome records the realized returns for one recommendation. At most
// one outcome exists per recommendation; a second save for the same
// recommendation is a no-op, which keeps the sweep idempotent.
func (r *Repository) SaveOutcome(ctx context.Context, outcome *models.TradeOutcome) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "trade_outcomes")

	_, err := r.db.Exec(ctx, `
		INSERT INTO trade_outcomes (id, recommendation_id, symbol, decision, entry_price,
			return_7d, return_30d, return_90d, label, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (recommendation_id) DO NOTHING
	`, outcome.ID, outcome.RecommendationID, outcome.Symbol, outcome.Decision, outcome.EntryPrice,
		outcome.Return7D, outcome.Return30D, outcome.Return90D, outcome.Label, outcome.RecordedAt)

	if err != nil {
		metrics.RecordDBError("insert", "trade_outcomes")
		return fmt.Errorf("failed to save outcome: %w", err)
	}

	return nil
}

// GetOutcome returns the recorded outcome for a recommendation, or nil if
// none has been recorded yet
func (r *Repository) GetOutcome(ctx context.Context, recommendationID uuid.UUID) (*models.TradeOutcome, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var outcome models.TradeOutcome

	err := r.db.QueryRow(ctx, `
		SELECT id, recommendation_id, symbol, decision, entry_price,
			   return_7d, return_30d, return_90d, label, recorded_at
		FROM trade_outcomes WHERE recommendation_id = $1
	`, recommendationID).Scan(&outcome.ID, &outcome.RecommendationID, &outcome.Symbol, &outcome.Decision,
		&outcome.EntryPrice, &outcome.Return7D, &outcome.Return30D, &outcome.Return90D,
		&outcome.Label, &outcome.RecordedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}

	return &outcome, nil
}

// ListOutcomes returns recent outcomes, optionally filtered by symbol
func (r *Repository) ListOutcomes(ctx context.Context, symbol string, limit int) ([]models.TradeOutcome, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "trade_outcomes")

	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if symbol == "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, recommendation_id, symbol, decision, entry_price,
				   return_7d, return_30d, return_90d, label, recorded_at
			FROM trade_outcomes
			ORDER BY recorded_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, recommendation_id, symbol, decision, entry_price,
				   return_7d, return_30d, return_90d, label, recorded_at
			FROM trade_outcomes
			WHERE symbol = $1
			ORDER BY recorded_at DESC
			LIMIT $2
		`, symbol, limit)
	}

	if err != nil {
		metrics.RecordDBError("select", "trade_outcomes")
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.TradeOutcome
	for rows.Next() {
		var outcome models.TradeOutcome
		err := rows.Scan(&outcome.ID, &outcome.RecommendationID, &outcome.Symbol, &outcome.Decision,
			&outcome.EntryPrice, &outcome.Return7D, &outcome.Return30D, &outcome.Return90D,
			&outcome.Label, &outcome.RecordedAt)
		if err != nil {
			metrics.RecordDBError("select", "trade_outcomes")
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
