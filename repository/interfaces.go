package repository

import (
	"context"
	"time"

	"trade-council/marketdata"
	"trade-council/memory"
	"trade-council/models"
	"trade-council/pipeline"

	"github.com/google/uuid"
)

// StoreInterface defines all repository operations
type StoreInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Pipeline runs
	CreateRun(ctx context.Context, record *models.RunRecord) error
	CompleteRun(ctx context.Context, record *models.RunRecord, trace models.RunTrace) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error)
	GetRunTrace(ctx context.Context, id uuid.UUID) (*models.RunTrace, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]models.RunRecord, error)

	// Recommendations
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
	GetRecommendation(ctx context.Context, id uuid.UUID) (*models.Recommendation, error)
	ListRecommendations(ctx context.Context, symbol string, limit int) ([]models.Recommendation, error)
	ListRecommendationsAwaitingOutcome(ctx context.Context, cutoff time.Time, limit int) ([]models.Recommendation, error)

	// Memory records
	SaveMemory(ctx context.Context, record *models.MemoryRecord) error
	ListMemories(ctx context.Context) ([]models.MemoryRecord, error)

	// Trade outcomes
	SaveOutcome(ctx context.Context, outcome *models.TradeOutcome) error
	GetOutcome(ctx context.Context, recommendationID uuid.UUID) (*models.TradeOutcome, error)
	ListOutcomes(ctx context.Context, symbol string, limit int) ([]models.TradeOutcome, error)

	// Snapshot cache
	GetSnapshot(ctx context.Context, symbol string, notBefore time.Time) (*models.IndicatorSnapshot, error)
	PutSnapshot(ctx context.Context, snapshot *models.IndicatorSnapshot) error
	InvalidateSnapshot(ctx context.Context, symbol string) error
	CleanExpiredSnapshots(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var (
	_ StoreInterface           = (*Repository)(nil)
	_ pipeline.Store           = (*Repository)(nil)
	_ memory.Store             = (*Repository)(nil)
	_ marketdata.SnapshotCache = (*Repository)(nil)
)
