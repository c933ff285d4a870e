package models

import (
	"testing"
	"time"
)

func TestRunConfigValidate(t *testing.T) {
	valid := DefaultRunConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"no analyst roles", func(c *RunConfig) { c.AnalystRoles = nil }},
		{"unknown role", func(c *RunConfig) { c.AnalystRoles = []AnalystRole{"astrology"} }},
		{"zero debate rounds", func(c *RunConfig) { c.DebateRounds = 0 }},
		{"too many debate rounds", func(c *RunConfig) { c.DebateRounds = 6 }},
		{"unknown risk tolerance", func(c *RunConfig) { c.RiskTolerance = "yolo" }},
		{"zero max position", func(c *RunConfig) { c.MaxPositionPct = 0 }},
		{"max position above one", func(c *RunConfig) { c.MaxPositionPct = 1.5 }},
		{"negative top-k", func(c *RunConfig) { c.MemoryTopK = -1 }},
		{"convergence above one", func(c *RunConfig) { c.ConvergenceThreshold = 1.2 }},
		{"zero budget", func(c *RunConfig) { c.Budget = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRunConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestRunPhaseTerminal(t *testing.T) {
	tests := []struct {
		phase RunPhase
		want  bool
	}{
		{PhaseAnalyzing, false},
		{PhaseDebating, false},
		{PhaseRiskReview, false},
		{PhaseSynthesizing, false},
		{PhaseSizing, false},
		{PhaseDone, true},
		{PhaseFailed, true},
		{PhaseCancelled, true},
	}

	for _, tt := range tests {
		if got := tt.phase.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.phase, got, tt.want)
		}
	}
}

func TestNewRunContext(t *testing.T) {
	asOf := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rc := NewRunContext("AAPL", asOf, DefaultRunConfig())

	if rc.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", rc.Symbol)
	}
	if !rc.AsOf.Equal(asOf) {
		t.Errorf("AsOf = %v, want %v", rc.AsOf, asOf)
	}
	if rc.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected a non-zero run id")
	}
}

func TestRunRecordLifecycle(t *testing.T) {
	rc := NewRunContext("MSFT", time.Now(), DefaultRunConfig())
	rec := NewRunRecord(rc)

	if rec.Phase != PhaseAnalyzing {
		t.Errorf("new record phase = %s, want %s", rec.Phase, PhaseAnalyzing)
	}

	rec.Fail("store unavailable")
	if rec.Phase != PhaseFailed {
		t.Errorf("phase after Fail = %s, want %s", rec.Phase, PhaseFailed)
	}
	if rec.CompletedAt == nil {
		t.Error("expected completed_at to be set after Fail")
	}
	if rec.ErrorMessage != "store unavailable" {
		t.Errorf("error message = %q", rec.ErrorMessage)
	}
}

func TestDegradedFlags(t *testing.T) {
	if got := DegradedAnalystFlag(RoleNews); got != "degraded-analyst:news" {
		t.Errorf("DegradedAnalystFlag = %q", got)
	}
	if got := DegradedReviewerFlag(RiskNeutralPerspective); got != "degraded-reviewer:neutral" {
		t.Errorf("DegradedReviewerFlag = %q", got)
	}
}
