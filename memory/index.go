// Package memory holds the nearest-neighbor index of past trade
// situations. Debate rounds query it for similar setups; closed runs
// feed new records back in, and the outcome recorder enriches them once
// realized returns are known.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trade-council/models"
	"trade-council/observability"
)

// Store persists memory records across restarts. The index writes
// through on every upsert and enrichment and warm-loads at startup.
type Store interface {
	SaveMemory(ctx context.Context, record *models.MemoryRecord) error
	ListMemories(ctx context.Context) ([]models.MemoryRecord, error)
}

// Index is the in-process similarity index. Reads take the read lock
// only; writes hold the write lock briefly. A nil store disables
// persistence, which the tests and degraded startups rely on.
type Index struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.MemoryRecord
	store   Store
}

// NewIndex creates an empty index backed by the given store.
func NewIndex(store Store) *Index {
	return &Index{
		records: make(map[uuid.UUID]*models.MemoryRecord),
		store:   store,
	}
}

// Load replaces the index contents with the store's records.
func (i *Index) Load(ctx context.Context) error {
	if i.store == nil {
		return nil
	}

	records, err := i.store.ListMemories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memory records: %w", err)
	}

	i.mu.Lock()
	i.records = make(map[uuid.UUID]*models.MemoryRecord, len(records))
	for idx := range records {
		r := records[idx]
		i.records[r.ID] = &r
	}
	size := len(i.records)
	i.mu.Unlock()

	observability.GetMetrics().SetMemoryRecords(size)
	observability.Info("memory index loaded", "records", size)
	return nil
}

// Upsert inserts or replaces a record, last writer wins. The record is
// written through to the store; on store failure it stays queryable
// in-process and the error is returned for the caller to judge.
func (i *Index) Upsert(ctx context.Context, record *models.MemoryRecord) error {
	if record == nil || record.ID == uuid.Nil {
		return fmt.Errorf("memory record requires an id")
	}

	r := *record
	i.mu.Lock()
	i.records[r.ID] = &r
	size := len(i.records)
	i.mu.Unlock()

	observability.GetMetrics().SetMemoryRecords(size)

	if i.store != nil {
		if err := i.store.SaveMemory(ctx, &r); err != nil {
			return fmt.Errorf("failed to persist memory record %s: %w", r.ID, err)
		}
	}
	return nil
}

// EnrichOutcome attaches the realized outcome to an existing record.
// This is the only permitted mutation of a stored record; enriching an
// absent record is an error.
func (i *Index) EnrichOutcome(ctx context.Context, id uuid.UUID, outcome models.Outcome) error {
	i.mu.Lock()
	record, ok := i.records[id]
	if !ok {
		i.mu.Unlock()
		return fmt.Errorf("memory record %s not found", id)
	}
	record.Outcome = &outcome
	r := *record
	i.mu.Unlock()

	if i.store != nil {
		if err := i.store.SaveMemory(ctx, &r); err != nil {
			return fmt.Errorf("failed to persist outcome for memory record %s: %w", id, err)
		}
	}
	return nil
}

// Get returns a copy of the record with the given id.
func (i *Index) Get(id uuid.UUID) (*models.MemoryRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	record, ok := i.records[id]
	if !ok {
		return nil, false
	}
	r := *record
	return &r, true
}

// FindBySymbolAsOf returns a copy of the record written for the given
// symbol and as-of instant. Records are keyed by their own id, but each
// run writes exactly one record stamped with the run's symbol and as-of,
// so the pair identifies it; the outcome sweep uses this to connect a
// recommendation back to the memory it produced.
func (i *Index) FindBySymbolAsOf(symbol string, asOf time.Time) (*models.MemoryRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	for _, record := range i.records {
		if record.Symbol == symbol && record.AsOf.Equal(asOf) {
			r := *record
			return &r, true
		}
	}
	return nil, false
}

// Len reports the number of records held.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Query linear-scans the index and returns up to k records ranked by
// ascending cosine distance from the embedding. Records without an
// embedding, with a different dimension, or with zero magnitude are
// retrievable by id but never returned here.
func (i *Index) Query(embedding []float32, k int) []models.ScoredMemory {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveMemoryQuery()

	if k <= 0 || len(embedding) == 0 {
		metrics.RecordMemoryQuery("empty")
		return nil
	}

	i.mu.RLock()
	scored := make([]models.ScoredMemory, 0, len(i.records))
	for _, record := range i.records {
		distance, ok := cosineDistance(embedding, record.Embedding)
		if !ok {
			continue
		}
		scored = append(scored, models.ScoredMemory{
			Record:   *record,
			Distance: distance,
		})
	}
	i.mu.RUnlock()

	// Ties break on id so retrieval order is stable across runs.
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].Distance != scored[b].Distance {
			return scored[a].Distance < scored[b].Distance
		}
		return scored[a].Record.ID.String() < scored[b].Record.ID.String()
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	if len(scored) == 0 {
		metrics.RecordMemoryQuery("empty")
	} else {
		metrics.RecordMemoryQuery("hit")
	}
	return scored
}

// cosineDistance returns 1 - cosine similarity. The second result is
// false when the vectors cannot be compared.
func cosineDistance(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for idx := range a {
		x := float64(a[idx])
		y := float64(b[idx])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB)), true
}
