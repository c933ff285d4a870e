package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunPhase is the orchestrator's position in the decision pipeline.
type RunPhase string

const (
	PhaseAnalyzing    RunPhase = "ANALYZING"
	PhaseDebating     RunPhase = "DEBATING"
	PhaseRiskReview   RunPhase = "RISK_REVIEW"
	PhaseSynthesizing RunPhase = "SYNTHESIZING"
	PhaseSizing       RunPhase = "SIZING"
	PhaseDone         RunPhase = "DONE"
	PhaseFailed       RunPhase = "FAILED"
	PhaseCancelled    RunPhase = "CANCELLED"
)

// Terminal reports whether no further transition is allowed from p.
func (p RunPhase) Terminal() bool {
	switch p {
	case PhaseDone, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

func (r RiskTolerance) Valid() bool {
	switch r {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

const (
	MinDebateRounds = 1
	MaxDebateRounds = 5
)

// RunConfig holds the per-run knobs. It travels inside RunContext and is
// never mutated after the run starts.
type RunConfig struct {
	AnalystRoles         []AnalystRole `json:"analyst_roles"`
	DebateRounds         int           `json:"debate_rounds"`
	RiskTolerance        RiskTolerance `json:"risk_tolerance"`
	MaxPositionPct       float64       `json:"max_position_pct"` // fraction of portfolio, e.g. 0.10
	MemoryTopK           int           `json:"memory_top_k"`
	ConvergenceThreshold float64       `json:"convergence_threshold"`
	StrategyProfile      string        `json:"strategy_profile"`
	Budget               time.Duration `json:"budget"`
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		AnalystRoles:         AllAnalystRoles(),
		DebateRounds:         2,
		RiskTolerance:        RiskModerate,
		MaxPositionPct:       0.10,
		MemoryTopK:           3,
		ConvergenceThreshold: 0.92,
		StrategyProfile:      "default",
		Budget:               5 * time.Minute,
	}
}

func (c RunConfig) Validate() error {
	if len(c.AnalystRoles) == 0 {
		return fmt.Errorf("at least one analyst role is required")
	}
	for _, role := range c.AnalystRoles {
		if !role.Valid() {
			return fmt.Errorf("unknown analyst role %q", role)
		}
	}
	if c.DebateRounds < MinDebateRounds || c.DebateRounds > MaxDebateRounds {
		return fmt.Errorf("debate rounds must be between %d and %d, got %d", MinDebateRounds, MaxDebateRounds, c.DebateRounds)
	}
	if !c.RiskTolerance.Valid() {
		return fmt.Errorf("unknown risk tolerance %q", c.RiskTolerance)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max position pct must be in (0,1], got %f", c.MaxPositionPct)
	}
	if c.MemoryTopK < 0 {
		return fmt.Errorf("memory top-k must be >= 0, got %d", c.MemoryTopK)
	}
	if c.ConvergenceThreshold < 0 || c.ConvergenceThreshold > 1 {
		return fmt.Errorf("convergence threshold must be in [0,1], got %f", c.ConvergenceThreshold)
	}
	if c.Budget <= 0 {
		return fmt.Errorf("budget must be positive")
	}
	return nil
}

// RunContext identifies one pipeline run. Immutable once the run starts;
// every stage receives it by value.
type RunContext struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	AsOf      time.Time `json:"as_of"`
	Config    RunConfig `json:"config"`
	StartedAt time.Time `json:"started_at"`
}

func NewRunContext(symbol string, asOf time.Time, cfg RunConfig) RunContext {
	return RunContext{
		ID:        uuid.New(),
		Symbol:    symbol,
		AsOf:      asOf,
		Config:    cfg,
		StartedAt: time.Now(),
	}
}

// Degradation flags carried on a Recommendation produced from partial data.
const (
	FlagTimeTruncated          = "time-truncated"
	FlagTechnicalDataMissing   = "technical-data-missing"
	FlagFundamentalDataMissing = "fundamental-data-missing"
	FlagPivotDataMissing       = "pivot-data-missing"
	FlagMemoryUnavailable      = "memory-unavailable"
	FlagAccountUnavailable     = "account-unavailable"
	FlagDebateDegraded         = "degraded-debate"
)

// DegradedAnalystFlag names the flag for a single failed analyst role.
func DegradedAnalystFlag(role AnalystRole) string {
	return "degraded-analyst:" + string(role)
}

// DegradedReviewerFlag names the flag for a single failed risk reviewer.
func DegradedReviewerFlag(p RiskPerspective) string {
	return "degraded-reviewer:" + string(p)
}

// PhaseTiming records how long one pipeline phase took.
type PhaseTiming struct {
	Phase      RunPhase `json:"phase"`
	DurationMs int64    `json:"duration_ms"`
}

// RunTrace is the read-only view of everything a run produced, terminal or
// not. External callers observe runs through it.
type RunTrace struct {
	RunID          uuid.UUID          `json:"run_id"`
	Symbol         string             `json:"symbol"`
	AsOf           time.Time          `json:"as_of"`
	Phase          RunPhase           `json:"phase"`
	Snapshot       *IndicatorSnapshot `json:"snapshot,omitempty"`
	Reports        []AnalystReport    `json:"reports,omitempty"`
	Transcript     *DebateTranscript  `json:"transcript,omitempty"`
	Draft          *PlanDraft         `json:"draft,omitempty"`
	Reviews        []RiskReview       `json:"reviews,omitempty"`
	Gates          []GateResult       `json:"gates,omitempty"`
	Recommendation *Recommendation    `json:"recommendation,omitempty"`
	Flags          []string           `json:"flags,omitempty"`
	Timings        []PhaseTiming      `json:"timings,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// RunRecord is the persisted summary row for one run.
type RunRecord struct {
	ID               uuid.UUID  `json:"id"`
	Symbol           string     `json:"symbol"`
	AsOf             time.Time  `json:"as_of"`
	Phase            RunPhase   `json:"phase"`
	Flags            []string   `json:"flags,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RecommendationID *uuid.UUID `json:"recommendation_id,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationMs       int64      `json:"duration_ms"`
}

func NewRunRecord(rc RunContext) *RunRecord {
	return &RunRecord{
		ID:        rc.ID,
		Symbol:    rc.Symbol,
		AsOf:      rc.AsOf,
		Phase:     PhaseAnalyzing,
		StartedAt: rc.StartedAt,
	}
}

// Complete stamps the record with its terminal phase.
func (r *RunRecord) Complete(phase RunPhase, recID *uuid.UUID) {
	now := time.Now()
	r.Phase = phase
	r.RecommendationID = recID
	r.CompletedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}

// Fail stamps the record as failed with the given message.
func (r *RunRecord) Fail(msg string) {
	now := time.Now()
	r.Phase = PhaseFailed
	r.ErrorMessage = msg
	r.CompletedAt = &now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}
