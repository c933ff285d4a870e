package pipeline

import (
	"fmt"
	"time"

	"trade-council/gates"
	"trade-council/models"
)

// linearNext is the happy path through the pipeline. FAILED and CANCELLED
// are reachable from any non-terminal phase and are not listed here.
var linearNext = map[models.RunPhase]models.RunPhase{
	models.PhaseAnalyzing:    models.PhaseDebating,
	models.PhaseDebating:     models.PhaseRiskReview,
	models.PhaseRiskReview:   models.PhaseSynthesizing,
	models.PhaseSynthesizing: models.PhaseSizing,
	models.PhaseSizing:       models.PhaseDone,
}

// canAdvance reports whether the phase graph allows from -> to.
func canAdvance(from, to models.RunPhase) bool {
	if from.Terminal() {
		return false
	}
	if to == models.PhaseFailed || to == models.PhaseCancelled {
		return true
	}
	return linearNext[from] == to
}

// runState accumulates one run's artifacts as phases complete. It is owned
// by the orchestrator goroutine; stage fan-outs only touch it after their
// join, so no locking is needed.
type runState struct {
	rc models.RunContext

	phase          models.RunPhase
	snapshot       *models.IndicatorSnapshot
	embedding      []float32
	reports        []models.AnalystReport
	transcript     *models.DebateTranscript
	debateDegraded bool
	draft          *models.PlanDraft
	reviews        []models.RiskReview
	synthesis      *gates.Synthesis
	rec            *models.Recommendation
	flags          []string
	timings        []models.PhaseTiming
	runErr         string
}

func newRunState(rc models.RunContext) *runState {
	return &runState{rc: rc, phase: models.PhaseAnalyzing}
}

// advance moves the state machine to next. A rejected transition is a
// programming error in the orchestrator, not a runtime condition.
func (s *runState) advance(next models.RunPhase) error {
	if !canAdvance(s.phase, next) {
		return fmt.Errorf("illegal phase transition %s -> %s", s.phase, next)
	}
	s.phase = next
	return nil
}

// flag appends a degradation flag, once.
func (s *runState) flag(f string) {
	for _, existing := range s.flags {
		if existing == f {
			return
		}
	}
	s.flags = append(s.flags, f)
}

// timing records a completed phase duration.
func (s *runState) timing(phase models.RunPhase, d time.Duration) {
	s.timings = append(s.timings, models.PhaseTiming{Phase: phase, DurationMs: d.Milliseconds()})
}

// trace snapshots the run's artifacts for persistence and the API. Partial
// runs trace whatever they got to; the zero sections stay empty.
func (s *runState) trace() models.RunTrace {
	var gateResults []models.GateResult
	if s.synthesis != nil {
		gateResults = s.synthesis.Gates
	}

	return models.RunTrace{
		RunID:          s.rc.ID,
		Symbol:         s.rc.Symbol,
		AsOf:           s.rc.AsOf,
		Phase:          s.phase,
		Snapshot:       s.snapshot,
		Reports:        s.reports,
		Transcript:     s.transcript,
		Draft:          s.draft,
		Reviews:        s.reviews,
		Gates:          gateResults,
		Recommendation: s.rec,
		Flags:          s.flags,
		Timings:        s.timings,
		Error:          s.runErr,
	}
}
