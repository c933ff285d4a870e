package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-council/config"
	"trade-council/models"
	"trade-council/observability"
	"trade-council/pipeline"

	"github.com/google/uuid"
)

// ErrQueueFull is returned when the concurrent-run semaphore is at
// capacity. Callers should surface it as backpressure rather than
// failure.
var ErrQueueFull = errors.New("analysis queue full, too many concurrent requests - try again later")

// ErrInvalidID marks a malformed UUID in a request; handlers map it to a
// client error.
var ErrInvalidID = errors.New("invalid UUID")

// StoreInterface defines the persistence operations needed by App
type StoreInterface interface {
	Close()
	Health(ctx context.Context) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error)
	GetRunTrace(ctx context.Context, id uuid.UUID) (*models.RunTrace, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]models.RunRecord, error)
	GetRecommendation(ctx context.Context, id uuid.UUID) (*models.Recommendation, error)
	ListRecommendations(ctx context.Context, symbol string, limit int) ([]models.Recommendation, error)
	ListRecommendationsAwaitingOutcome(ctx context.Context, cutoff time.Time, limit int) ([]models.Recommendation, error)
	SaveOutcome(ctx context.Context, outcome *models.TradeOutcome) error
	ListOutcomes(ctx context.Context, symbol string, limit int) ([]models.TradeOutcome, error)
	CleanExpiredSnapshots(ctx context.Context) (int64, error)
}

// OrchestratorInterface defines the pipeline operations needed by App
type OrchestratorInterface interface {
	Run(ctx context.Context, symbol string, asOf time.Time, cfg models.RunConfig) (*models.Recommendation, error)
}

// MemoryInterface defines the memory index operations needed by App
type MemoryInterface interface {
	Load(ctx context.Context) error
	Len() int
	FindBySymbolAsOf(symbol string, asOf time.Time) (*models.MemoryRecord, bool)
	EnrichOutcome(ctx context.Context, id uuid.UUID, outcome models.Outcome) error
}

// HistoryInterface supplies the historical candles the outcome sweep
// prices recommendations with.
type HistoryInterface interface {
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg          *config.Config
	store        StoreInterface
	orchestrator OrchestratorInterface
	memory       MemoryInterface
	history      HistoryInterface
	analysisSem  chan struct{}
}

// New creates a new App application struct
func New(cfg *config.Config, store StoreInterface, orchestrator OrchestratorInterface, memory MemoryInterface, history HistoryInterface) *App {
	return &App{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		memory:       memory,
		history:      history,
		analysisSem:  make(chan struct{}, cfg.Pipeline.ConcurrencyLimit),
	}
}

// Startup warms process state the first request would otherwise pay for:
// the memory index is loaded from the store and expired snapshot cache
// rows are cleared. Failures degrade (empty index, stale rows) rather
// than abort.
func (a *App) Startup(ctx context.Context) {
	if a.memory != nil {
		if err := a.memory.Load(ctx); err != nil {
			observability.Warn("memory index warm load failed", "error", err)
		} else {
			observability.Info("memory index loaded", "records", a.memory.Len())
		}
	}
	if a.store != nil {
		if removed, err := a.store.CleanExpiredSnapshots(ctx); err != nil {
			observability.Warn("snapshot cache cleanup failed", "error", err)
		} else if removed > 0 {
			observability.Info("expired snapshots cleared", "removed", removed)
		}
	}
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.store != nil {
		a.store.Close()
	}
}

// RunRequest carries one analysis request. Zero-valued fields fall back
// to the configured defaults.
type RunRequest struct {
	Symbol         string
	AsOf           time.Time
	DebateRounds   int
	RiskTolerance  models.RiskTolerance
	MaxPositionPct float64
}

// RunAnalysis drives one full pipeline run for a symbol and returns the
// resulting recommendation. Concurrent runs are bounded by the
// configured semaphore; when it is full the request is rejected
// immediately with ErrQueueFull instead of queueing.
func (a *App) RunAnalysis(ctx context.Context, req RunRequest) (*models.Recommendation, error) {
	if a.orchestrator == nil {
		return nil, fmt.Errorf("orchestrator not initialized")
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		return nil, ErrQueueFull
	}

	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	cfg := a.baseRunConfig()
	if req.DebateRounds > 0 {
		cfg.DebateRounds = req.DebateRounds
	}
	if req.RiskTolerance != "" {
		cfg.RiskTolerance = req.RiskTolerance
	}
	if req.MaxPositionPct > 0 {
		cfg.MaxPositionPct = req.MaxPositionPct
	}

	return a.orchestrator.Run(ctx, req.Symbol, asOf, cfg)
}

// baseRunConfig maps the configured pipeline and gate settings onto a
// run config, keeping the model defaults for anything unset.
func (a *App) baseRunConfig() models.RunConfig {
	return pipeline.DefaultConfig(a.cfg.Pipeline, a.cfg.Gates)
}

// GetRun returns a single run record by ID
func (a *App) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	runID, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.store.GetRun(ctx, runID)
}

// GetRunTrace returns the full trace for a completed run
func (a *App) GetRunTrace(ctx context.Context, id string) (*models.RunTrace, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	runID, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.store.GetRunTrace(ctx, runID)
}

// ListRuns returns recent runs, optionally filtered by symbol
func (a *App) ListRuns(ctx context.Context, symbol string, limit int) ([]models.RunRecord, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.store.ListRuns(ctx, symbol, limit)
}

// GetRecommendationByID returns a single recommendation by ID
func (a *App) GetRecommendationByID(ctx context.Context, id string) (*models.Recommendation, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	recID, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.store.GetRecommendation(ctx, recID)
}

// GetRecommendations returns recent recommendations
func (a *App) GetRecommendations(ctx context.Context, symbol string, limit int) ([]models.Recommendation, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.store.ListRecommendations(ctx, symbol, limit)
}

// ListOutcomes returns recorded trade outcomes
func (a *App) ListOutcomes(ctx context.Context, symbol string, limit int) ([]models.TradeOutcome, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.store.ListOutcomes(ctx, symbol, limit)
}

// Health pings the backing store.
func (a *App) Health(ctx context.Context) error {
	if a.store == nil {
		return fmt.Errorf("database not initialized")
	}
	return a.store.Health(ctx)
}

// Store returns the store interface for API handlers
func (a *App) Store() StoreInterface {
	return a.store
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return parsed, nil
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
