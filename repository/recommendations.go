package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trade-council/models"
	"trade-council/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveRecommendation persists a finished recommendation. The run treats a
// failure here as fatal, so errors are never swallowed.
func (r *Repository) SaveRecommendation(ctx context.Context, rec *models.Recommendation) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "recommendations")

	gatesJSON, err := json.Marshal(rec.Gates)
	if err != nil {
		metrics.RecordDBError("insert", "recommendations")
		return fmt.Errorf("failed to marshal gates: %w", err)
	}
	flagsJSON, _ := json.Marshal(rec.Flags)

	_, err = r.db.Exec(ctx, `
		INSERT INTO recommendations (id, run_id, symbol, as_of, decision, confidence,
			entry_low, entry_high, stop_loss, target_price, timing,
			appreciation_pct, dividend_yield_pct, total_return_pct,
			position_pct, shares, gates, flags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, rec.ID, rec.RunID, rec.Symbol, rec.AsOf, rec.Decision, rec.Confidence,
		rec.EntryLow, rec.EntryHigh, rec.StopLoss, rec.TargetPrice, rec.Timing,
		rec.ExpectedReturn.AppreciationPct, rec.ExpectedReturn.DividendYieldPct, rec.ExpectedReturn.TotalPct,
		rec.PositionPct, rec.Shares, gatesJSON, flagsJSON, rec.CreatedAt)

	if err != nil {
		metrics.RecordDBError("insert", "recommendations")
		return fmt.Errorf("failed to save recommendation: %w", err)
	}

	return nil
}

// scanRecommendation scans a recommendations row into a Recommendation
func scanRecommendation(row pgx.Row) (*models.Recommendation, error) {
	var rec models.Recommendation
	var gatesJSON, flagsJSON []byte

	err := row.Scan(&rec.ID, &rec.RunID, &rec.Symbol, &rec.AsOf, &rec.Decision, &rec.Confidence,
		&rec.EntryLow, &rec.EntryHigh, &rec.StopLoss, &rec.TargetPrice, &rec.Timing,
		&rec.ExpectedReturn.AppreciationPct, &rec.ExpectedReturn.DividendYieldPct, &rec.ExpectedReturn.TotalPct,
		&rec.PositionPct, &rec.Shares, &gatesJSON, &flagsJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(gatesJSON) > 0 {
		if err := json.Unmarshal(gatesJSON, &rec.Gates); err != nil {
			rec.Gates = nil
		}
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &rec.Flags); err != nil {
			rec.Flags = nil
		}
	}

	return &rec, nil
}

const recommendationColumns = `id, run_id, symbol, as_of, decision, confidence,
		   entry_low, entry_high, stop_loss, target_price, timing,
		   appreciation_pct, dividend_yield_pct, total_return_pct,
		   position_pct, shares, gates, flags, created_at`

// GetRecommendation returns a single recommendation by ID
func (r *Repository) GetRecommendation(ctx context.Context, id uuid.UUID) (*models.Recommendation, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+recommendationColumns+`
		FROM recommendations WHERE id = $1
	`, id)

	rec, err := scanRecommendation(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation: %w", err)
	}

	return rec, nil
}

// ListRecommendations returns recent recommendations, optionally filtered
// by symbol
func (r *Repository) ListRecommendations(ctx context.Context, symbol string, limit int) ([]models.Recommendation, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "recommendations")

	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if symbol == "" {
		rows, err = r.db.Query(ctx, `
			SELECT `+recommendationColumns+`
			FROM recommendations
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT `+recommendationColumns+`
			FROM recommendations
			WHERE symbol = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, symbol, limit)
	}

	if err != nil {
		metrics.RecordDBError("select", "recommendations")
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			metrics.RecordDBError("select", "recommendations")
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, *rec)
	}

	return recs, nil
}

// ListRecommendationsAwaitingOutcome returns recommendations created at or
// before the cutoff that have no recorded trade outcome yet, oldest first.
// The outcome sweep uses this to find rows whose horizon has elapsed.
func (r *Repository) ListRecommendationsAwaitingOutcome(ctx context.Context, cutoff time.Time, limit int) ([]models.Recommendation, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "recommendations")

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.run_id, r.symbol, r.as_of, r.decision, r.confidence,
			   r.entry_low, r.entry_high, r.stop_loss, r.target_price, r.timing,
			   r.appreciation_pct, r.dividend_yield_pct, r.total_return_pct,
			   r.position_pct, r.shares, r.gates, r.flags, r.created_at
		FROM recommendations r
		LEFT JOIN trade_outcomes o ON o.recommendation_id = r.id
		WHERE o.id IS NULL AND r.created_at <= $1
		ORDER BY r.created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		metrics.RecordDBError("select", "recommendations")
		return nil, fmt.Errorf("failed to query recommendations awaiting outcome: %w", err)
	}
	defer rows.Close()

	var recs []models.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			metrics.RecordDBError("select", "recommendations")
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, *rec)
	}

	return recs, nil
}
