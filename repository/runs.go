package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"trade-council/models"
	"trade-council/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRun inserts the initial record for a pipeline run
func (r *Repository) CreateRun(ctx context.Context, record *models.RunRecord) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "pipeline_runs")

	_, err := r.db.Exec(ctx, `
		INSERT INTO pipeline_runs (id, symbol, as_of, phase, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, record.Symbol, record.AsOf, record.Phase, record.StartedAt)

	if err != nil {
		metrics.RecordDBError("insert", "pipeline_runs")
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// CompleteRun stamps a run record with its terminal state and stores the
// full trace alongside it
func (r *Repository) CompleteRun(ctx context.Context, record *models.RunRecord, trace models.RunTrace) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "pipeline_runs")

	flagsJSON, _ := json.Marshal(record.Flags)
	traceJSON, err := json.Marshal(trace)
	if err != nil {
		metrics.RecordDBError("update", "pipeline_runs")
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		UPDATE pipeline_runs
		SET phase = $2, flags = $3, error_message = $4, recommendation_id = $5,
			completed_at = $6, duration_ms = $7, trace = $8
		WHERE id = $1
	`, record.ID, record.Phase, flagsJSON, record.ErrorMessage, record.RecommendationID,
		record.CompletedAt, record.DurationMs, traceJSON)

	if err != nil {
		metrics.RecordDBError("update", "pipeline_runs")
		return fmt.Errorf("failed to complete run: %w", err)
	}

	return nil
}

// scanRunRecord scans a pipeline_runs row into a RunRecord
func scanRunRecord(row pgx.Row) (*models.RunRecord, error) {
	var record models.RunRecord
	var flagsJSON []byte
	var errorMessage *string

	err := row.Scan(&record.ID, &record.Symbol, &record.AsOf, &record.Phase,
		&flagsJSON, &errorMessage, &record.RecommendationID,
		&record.StartedAt, &record.CompletedAt, &record.DurationMs)
	if err != nil {
		return nil, err
	}

	if errorMessage != nil {
		record.ErrorMessage = *errorMessage
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &record.Flags); err != nil {
			record.Flags = nil
		}
	}

	return &record, nil
}

// GetRun returns a single run record by ID
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		SELECT id, symbol, as_of, phase, flags, error_message, recommendation_id,
			   started_at, completed_at, duration_ms
		FROM pipeline_runs WHERE id = $1
	`, id)

	record, err := scanRunRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	return record, nil
}

// GetRunTrace returns the stored trace for a run. A run that has not yet
// completed has no trace; that is not an error.
func (r *Repository) GetRunTrace(ctx context.Context, id uuid.UUID) (*models.RunTrace, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	var traceJSON []byte

	err := r.db.QueryRow(ctx, `
		SELECT trace FROM pipeline_runs WHERE id = $1
	`, id).Scan(&traceJSON)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run trace: %w", err)
	}

	if len(traceJSON) == 0 {
		return nil, nil
	}

	var trace models.RunTrace
	if err := json.Unmarshal(traceJSON, &trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run trace: %w", err)
	}

	return &trace, nil
}

// ListRuns returns run records with optional filtering by symbol
func (r *Repository) ListRuns(ctx context.Context, symbol string, limit int) ([]models.RunRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "pipeline_runs")

	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if symbol == "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, symbol, as_of, phase, flags, error_message, recommendation_id,
				   started_at, completed_at, duration_ms
			FROM pipeline_runs
			ORDER BY started_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, symbol, as_of, phase, flags, error_message, recommendation_id,
				   started_at, completed_at, duration_ms
			FROM pipeline_runs
			WHERE symbol = $1
			ORDER BY started_at DESC
			LIMIT $2
		`, symbol, limit)
	}

	if err != nil {
		metrics.RecordDBError("select", "pipeline_runs")
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []models.RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			metrics.RecordDBError("select", "pipeline_runs")
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, *record)
	}

	return records, nil
}
