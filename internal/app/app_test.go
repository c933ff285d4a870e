package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trade-council/config"
	"trade-council/models"

	"github.com/google/uuid"
)

type fakeStore struct {
	closed       bool
	healthErr    error
	cleanCalls   int
	cleanRemoved int64
	cleanErr     error
	awaiting     []models.Recommendation
	listAwaitErr error
	saved        []*models.TradeOutcome
	saveErr      error
}

func (f *fakeStore) Close()                           { f.closed = true }
func (f *fakeStore) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeStore) GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetRunTrace(ctx context.Context, id uuid.UUID) (*models.RunTrace, error) {
	return nil, nil
}

func (f *fakeStore) ListRuns(ctx context.Context, symbol string, limit int) ([]models.RunRecord, error) {
	return nil, nil
}

func (f *fakeStore) GetRecommendation(ctx context.Context, id uuid.UUID) (*models.Recommendation, error) {
	return nil, nil
}

func (f *fakeStore) ListRecommendations(ctx context.Context, symbol string, limit int) ([]models.Recommendation, error) {
	return nil, nil
}

func (f *fakeStore) ListRecommendationsAwaitingOutcome(ctx context.Context, cutoff time.Time, limit int) ([]models.Recommendation, error) {
	if f.listAwaitErr != nil {
		return nil, f.listAwaitErr
	}
	return f.awaiting, nil
}

func (f *fakeStore) SaveOutcome(ctx context.Context, outcome *models.TradeOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, outcome)
	return nil
}

func (f *fakeStore) ListOutcomes(ctx context.Context, symbol string, limit int) ([]models.TradeOutcome, error) {
	return nil, nil
}

func (f *fakeStore) CleanExpiredSnapshots(ctx context.Context) (int64, error) {
	f.cleanCalls++
	if f.cleanErr != nil {
		return 0, f.cleanErr
	}
	return f.cleanRemoved, nil
}

type runCall struct {
	symbol string
	asOf   time.Time
	cfg    models.RunConfig
}

type fakeOrchestrator struct {
	mu    sync.Mutex
	calls []runCall
	rec   *models.Recommendation
	err   error
	run   func(ctx context.Context, symbol string, asOf time.Time, cfg models.RunConfig) (*models.Recommendation, error)
}

func (f *fakeOrchestrator) Run(ctx context.Context, symbol string, asOf time.Time, cfg models.RunConfig) (*models.Recommendation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{symbol: symbol, asOf: asOf, cfg: cfg})
	f.mu.Unlock()

	if f.run != nil {
		return f.run(ctx, symbol, asOf, cfg)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.rec != nil {
		return f.rec, nil
	}
	return &models.Recommendation{ID: uuid.New(), Symbol: symbol, AsOf: asOf}, nil
}

func (f *fakeOrchestrator) lastCall() runCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeMemory struct {
	loadCalls int
	loadErr   error
	records   []*models.MemoryRecord
	enriched  map[uuid.UUID]models.Outcome
	enrichErr error
}

func (f *fakeMemory) Load(ctx context.Context) error {
	f.loadCalls++
	return f.loadErr
}

func (f *fakeMemory) Len() int { return len(f.records) }

func (f *fakeMemory) FindBySymbolAsOf(symbol string, asOf time.Time) (*models.MemoryRecord, bool) {
	for _, r := range f.records {
		if r.Symbol == symbol && r.AsOf.Equal(asOf) {
			rc := *r
			return &rc, true
		}
	}
	return nil, false
}

func (f *fakeMemory) EnrichOutcome(ctx context.Context, id uuid.UUID, outcome models.Outcome) error {
	if f.enrichErr != nil {
		return f.enrichErr
	}
	if f.enriched == nil {
		f.enriched = make(map[uuid.UUID]models.Outcome)
	}
	f.enriched[id] = outcome
	return nil
}

type fakeHistory struct {
	candles map[string][]models.Candle
	err     error
}

func (f *fakeHistory) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	candles, ok := f.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("no history for %s", symbol)
	}
	return candles, nil
}

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

func TestNew_WithConcurrencyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.ConcurrencyLimit = 5
	a := New(cfg, nil, nil, nil, nil)

	if a.AnalysisSemCapacity() != 5 {
		t.Errorf("expected concurrency limit 5, got %d", a.AnalysisSemCapacity())
	}
}

func TestApp_RunAnalysis_OrchestratorNotInitialized(t *testing.T) {
	a := New(testConfig(), nil, nil, nil, nil)

	_, err := a.RunAnalysis(context.Background(), RunRequest{Symbol: "AAPL"})
	if err == nil || err.Error() != "orchestrator not initialized" {
		t.Errorf("error = %v, want orchestrator not initialized", err)
	}
}

func TestApp_RunAnalysis_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.ConcurrencyLimit = 1

	started := make(chan struct{}, 3)
	release := make(chan struct{})
	orch := &fakeOrchestrator{
		run: func(ctx context.Context, symbol string, asOf time.Time, rc models.RunConfig) (*models.Recommendation, error) {
			started <- struct{}{}
			<-release
			return &models.Recommendation{Symbol: symbol}, nil
		},
	}
	a := New(cfg, nil, orch, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := a.RunAnalysis(context.Background(), RunRequest{Symbol: "AAPL"})
		done <- err
	}()
	<-started

	// The single slot is held; the second request is rejected, not queued.
	if _, err := a.RunAnalysis(context.Background(), RunRequest{Symbol: "MSFT"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("second concurrent run error = %v, want ErrQueueFull", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first run error = %v", err)
	}

	// The slot was released on completion.
	if _, err := a.RunAnalysis(context.Background(), RunRequest{Symbol: "NVDA"}); err != nil {
		t.Errorf("run after release error = %v", err)
	}
}

func TestApp_RunAnalysis_Defaults(t *testing.T) {
	orch := &fakeOrchestrator{}
	a := New(testConfig(), nil, orch, nil, nil)

	before := time.Now().UTC()
	if _, err := a.RunAnalysis(context.Background(), RunRequest{Symbol: "AAPL"}); err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	call := orch.lastCall()
	if call.symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", call.symbol)
	}
	if call.asOf.Before(before) || call.asOf.After(time.Now().UTC()) {
		t.Errorf("asOf = %v, want roughly now", call.asOf)
	}
	if call.cfg.DebateRounds != 2 {
		t.Errorf("DebateRounds = %d, want configured 2", call.cfg.DebateRounds)
	}
	if call.cfg.RiskTolerance != models.RiskModerate {
		t.Errorf("RiskTolerance = %v, want moderate", call.cfg.RiskTolerance)
	}
	if call.cfg.MaxPositionPct != 0.10 {
		t.Errorf("MaxPositionPct = %v, want 0.10", call.cfg.MaxPositionPct)
	}
	if call.cfg.Budget != 300*time.Second {
		t.Errorf("Budget = %v, want 300s from config", call.cfg.Budget)
	}
	if err := call.cfg.Validate(); err != nil {
		t.Errorf("default run config does not validate: %v", err)
	}
}

func TestApp_RunAnalysis_Overrides(t *testing.T) {
	orch := &fakeOrchestrator{}
	a := New(testConfig(), nil, orch, nil, nil)

	asOf := time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)
	_, err := a.RunAnalysis(context.Background(), RunRequest{
		Symbol:         "AAPL",
		AsOf:           asOf,
		DebateRounds:   3,
		RiskTolerance:  models.RiskAggressive,
		MaxPositionPct: 0.25,
	})
	if err != nil {
		t.Fatalf("RunAnalysis failed: %v", err)
	}

	call := orch.lastCall()
	if !call.asOf.Equal(asOf) {
		t.Errorf("asOf = %v, want %v", call.asOf, asOf)
	}
	if call.cfg.DebateRounds != 3 {
		t.Errorf("DebateRounds = %d, want override 3", call.cfg.DebateRounds)
	}
	if call.cfg.RiskTolerance != models.RiskAggressive {
		t.Errorf("RiskTolerance = %v, want aggressive", call.cfg.RiskTolerance)
	}
	if call.cfg.MaxPositionPct != 0.25 {
		t.Errorf("MaxPositionPct = %v, want override 0.25", call.cfg.MaxPositionPct)
	}
	// Untouched knobs keep their configured values.
	if call.cfg.MemoryTopK != 3 {
		t.Errorf("MemoryTopK = %d, want configured 3", call.cfg.MemoryTopK)
	}
	if call.cfg.ConvergenceThreshold != 0.92 {
		t.Errorf("ConvergenceThreshold = %v, want configured 0.92", call.cfg.ConvergenceThreshold)
	}
}

func TestApp_Getters_NilStore(t *testing.T) {
	a := New(testConfig(), nil, nil, nil, nil)
	ctx := context.Background()
	id := "550e8400-e29b-41d4-a716-446655440000"

	t.Run("GetRun", func(t *testing.T) {
		if _, err := a.GetRun(ctx, id); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("GetRunTrace", func(t *testing.T) {
		if _, err := a.GetRunTrace(ctx, id); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("ListRuns", func(t *testing.T) {
		if _, err := a.ListRuns(ctx, "", 10); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("GetRecommendationByID", func(t *testing.T) {
		if _, err := a.GetRecommendationByID(ctx, id); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("GetRecommendations", func(t *testing.T) {
		if _, err := a.GetRecommendations(ctx, "", 10); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("ListOutcomes", func(t *testing.T) {
		if _, err := a.ListOutcomes(ctx, "", 10); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("Health", func(t *testing.T) {
		if err := a.Health(ctx); err == nil {
			t.Error("expected error when store is nil")
		}
	})
	t.Run("RecordOutcomes", func(t *testing.T) {
		if _, err := a.RecordOutcomes(ctx); err == nil {
			t.Error("expected error when store is nil")
		}
	})
}

func TestApp_Getters_InvalidUUID(t *testing.T) {
	a := New(testConfig(), &fakeStore{}, nil, nil, nil)
	ctx := context.Background()

	if _, err := a.GetRun(ctx, "not-a-uuid"); err == nil {
		t.Error("expected error with invalid UUID")
	}
	if _, err := a.GetRunTrace(ctx, "not-a-uuid"); err == nil {
		t.Error("expected error with invalid UUID")
	}
	if _, err := a.GetRecommendationByID(ctx, "not-a-uuid"); err == nil {
		t.Error("expected error with invalid UUID")
	}
}

func TestApp_Startup(t *testing.T) {
	t.Run("warm load and cache cleanup", func(t *testing.T) {
		store := &fakeStore{cleanRemoved: 2}
		mem := &fakeMemory{}
		a := New(testConfig(), store, nil, mem, nil)

		a.Startup(context.Background())

		if mem.loadCalls != 1 {
			t.Errorf("memory Load calls = %d, want 1", mem.loadCalls)
		}
		if store.cleanCalls != 1 {
			t.Errorf("CleanExpiredSnapshots calls = %d, want 1", store.cleanCalls)
		}
	})

	t.Run("load failure is tolerated", func(t *testing.T) {
		store := &fakeStore{}
		mem := &fakeMemory{loadErr: errors.New("db down")}
		a := New(testConfig(), store, nil, mem, nil)

		a.Startup(context.Background()) // must not panic

		if store.cleanCalls != 1 {
			t.Errorf("CleanExpiredSnapshots calls = %d, want 1 after load failure", store.cleanCalls)
		}
	})

	t.Run("nil dependencies", func(t *testing.T) {
		a := New(testConfig(), nil, nil, nil, nil)
		a.Startup(context.Background()) // must not panic
	})
}

func TestApp_Shutdown(t *testing.T) {
	t.Run("with store", func(t *testing.T) {
		store := &fakeStore{}
		a := New(testConfig(), store, nil, nil, nil)

		a.Shutdown(context.Background())
		if !store.closed {
			t.Error("expected the store to be closed")
		}
	})

	t.Run("without store", func(t *testing.T) {
		a := New(testConfig(), nil, nil, nil, nil)
		a.Shutdown(context.Background()) // should not panic
	})
}

func TestApp_Health(t *testing.T) {
	healthErr := errors.New("connection refused")
	a := New(testConfig(), &fakeStore{healthErr: healthErr}, nil, nil, nil)

	if err := a.Health(context.Background()); !errors.Is(err, healthErr) {
		t.Errorf("Health error = %v, want the store error", err)
	}

	a = New(testConfig(), &fakeStore{}, nil, nil, nil)
	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Health error = %v, want nil", err)
	}
}

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "valid UUID",
			input:     "550e8400-e29b-41d4-a716-446655440000",
			wantError: false,
		},
		{
			name:      "invalid UUID format",
			input:     "invalid-uuid",
			wantError: true,
		},
		{
			name:      "empty string",
			input:     "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUUID(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseUUID() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}

	if _, err := ParseUUID("nope"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("error = %v, want ErrInvalidID in the chain", err)
	}
}
