package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trade-council/models"
	"trade-council/observability"
)

// SaveMemory upserts one memory record. The memory index writes through
// here on every upsert and enrichment, so the same id arrives more than
// once; last writer wins.
func (r *Repository) SaveMemory(ctx context.Context, record *models.MemoryRecord) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "memory_records")

	embeddingJSON, _ := json.Marshal(record.Embedding)

	var ret7, ret30, ret90 *float64
	var label *string
	var recordedAt *time.Time
	if record.Outcome != nil {
		ret7 = &record.Outcome.Return7D
		ret30 = &record.Outcome.Return30D
		ret90 = &record.Outcome.Return90D
		l := string(record.Outcome.Label)
		label = &l
		recordedAt = &record.Outcome.RecordedAt
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO memory_records (id, symbol, as_of, embedding, description, decision, advice,
			outcome_return_7d, outcome_return_30d, outcome_return_90d, outcome_label, outcome_recorded_at,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id)
		DO UPDATE SET
			symbol = EXCLUDED.symbol,
			as_of = EXCLUDED.as_of,
			embedding = EXCLUDED.embedding,
			description = EXCLUDED.description,
			decision = EXCLUDED.decision,
			advice = EXCLUDED.advice,
			outcome_return_7d = EXCLUDED.outcome_return_7d,
			outcome_return_30d = EXCLUDED.outcome_return_30d,
			outcome_return_90d = EXCLUDED.outcome_return_90d,
			outcome_label = EXCLUDED.outcome_label,
			outcome_recorded_at = EXCLUDED.outcome_recorded_at
	`, record.ID, record.Symbol, record.AsOf, embeddingJSON, record.Description, record.Decision, record.Advice,
		ret7, ret30, ret90, label, recordedAt, record.CreatedAt)

	if err != nil {
		metrics.RecordDBError("upsert", "memory_records")
		return fmt.Errorf("failed to save memory: %w", err)
	}

	return nil
}

// ListMemories returns every stored memory record. The memory index calls
// this once at startup to warm itself.
func (r *Repository) ListMemories(ctx context.Context) ([]models.MemoryRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "memory_records")

	rows, err := r.db.Query(ctx, `
		SELECT id, symbol, as_of, embedding, description, decision, advice,
			   outcome_return_7d, outcome_return_30d, outcome_return_90d, outcome_label, outcome_recorded_at,
			   created_at
		FROM memory_records
		ORDER BY created_at ASC
	`)
	if err != nil {
		metrics.RecordDBError("select", "memory_records")
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var records []models.MemoryRecord
	for rows.Next() {
		var record models.MemoryRecord
		var embeddingJSON []byte
		var ret7, ret30, ret90 *float64
		var label *string
		var recordedAt *time.Time

		err := rows.Scan(&record.ID, &record.Symbol, &record.AsOf, &embeddingJSON,
			&record.Description, &record.Decision, &record.Advice,
			&ret7, &ret30, &ret90, &label, &recordedAt, &record.CreatedAt)
		if err != nil {
			metrics.RecordDBError("select", "memory_records")
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}

		if len(embeddingJSON) > 0 {
			if err := json.Unmarshal(embeddingJSON, &record.Embedding); err != nil {
				record.Embedding = nil
			}
		}
		if label != nil {
			outcome := models.Outcome{Label: models.OutcomeLabel(*label)}
			if ret7 != nil {
				outcome.Return7D = *ret7
			}
			if ret30 != nil {
				outcome.Return30D = *ret30
			}
			if ret90 != nil {
				outcome.Return90D = *ret90
			}
			if recordedAt != nil {
				outcome.RecordedAt = *recordedAt
			}
			record.Outcome = &outcome
		}

		records = append(records, record)
	}

	return records, nil
}
