// Package pipeline runs the deliberation pipeline for one symbol at a
// time: four analysts in parallel, a bull/bear debate with memory recall,
// three risk reviews of the draft plan, deterministic gate synthesis, and
// position sizing. The orchestrator owns the phase state machine, the
// degradation flags, and every persistence decision.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"trade-council/config"
	"trade-council/gates"
	"trade-council/memory"
	"trade-council/models"
	"trade-council/observability"
	"trade-council/services"
	"trade-council/sizing"
)

// SnapshotBuilder yields the immutable per-run market view.
type SnapshotBuilder interface {
	Build(ctx context.Context, symbol string) (*models.IndicatorSnapshot, error)
}

// AccountProvider exposes the trading account the sizer works against.
type AccountProvider interface {
	GetAccount(ctx context.Context) (*models.Account, error)
}

// Store persists run records, traces, and recommendations. Only the
// recommendation write is load-bearing; record and trace failures degrade
// to log lines.
type Store interface {
	CreateRun(ctx context.Context, record *models.RunRecord) error
	CompleteRun(ctx context.Context, record *models.RunRecord, trace models.RunTrace) error
	SaveRecommendation(ctx context.Context, rec *models.Recommendation) error
}

// MemoryIndex is the similarity store the debaters consult and closed runs
// feed.
type MemoryIndex interface {
	Query(embedding []float32, k int) []models.ScoredMemory
	Upsert(ctx context.Context, record *models.MemoryRecord) error
}

var _ MemoryIndex = (*memory.Index)(nil)
var _ AccountProvider = (services.AlpacaServiceInterface)(nil)

// Options wires an Orchestrator. Reasoner and Snapshots are required;
// everything else is optional and its absence degrades the run instead of
// failing it.
type Options struct {
	Reasoner  services.Reasoner
	Embedder  services.Embedder
	Snapshots SnapshotBuilder
	Account   AccountProvider
	Store     Store
	Memory    MemoryIndex

	Pipeline config.PipelineConfig
	Gates    config.GatesConfig
	Sizing   config.SizingConfig
}

// Orchestrator drives runs through the phase machine. It is stateless
// between runs and safe for concurrent use.
type Orchestrator struct {
	reasoner  services.Reasoner
	embedder  services.Embedder
	snapshots SnapshotBuilder
	account   AccountProvider
	store     Store
	memory    MemoryIndex

	planner *sizing.Planner

	pipelineCfg config.PipelineConfig
	gatesCfg    config.GatesConfig
	sizingCfg   config.SizingConfig

	callTimeout  time.Duration
	stageTimeout time.Duration
	maxRetries   int
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	callTimeout := time.Duration(opts.Pipeline.CallTimeoutSeconds) * time.Second
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	stageTimeout := time.Duration(opts.Pipeline.StageTimeoutSeconds) * time.Second
	maxRetries := opts.Pipeline.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Orchestrator{
		reasoner:     opts.Reasoner,
		embedder:     opts.Embedder,
		snapshots:    opts.Snapshots,
		account:      opts.Account,
		store:        opts.Store,
		memory:       opts.Memory,
		planner:      sizing.NewPlanner(opts.Gates),
		pipelineCfg:  opts.Pipeline,
		gatesCfg:     opts.Gates,
		sizingCfg:    opts.Sizing,
		callTimeout:  callTimeout,
		stageTimeout: stageTimeout,
		maxRetries:   maxRetries,
	}
}

// DefaultConfig derives the per-run defaults from the loaded settings.
// Request-level overrides are applied on top of this by the caller.
func DefaultConfig(p config.PipelineConfig, g config.GatesConfig) models.RunConfig {
	rc := models.DefaultRunConfig()
	if p.DebateRounds > 0 {
		rc.DebateRounds = p.DebateRounds
	}
	if p.MemoryTopK >= 0 {
		rc.MemoryTopK = p.MemoryTopK
	}
	if p.ConvergenceThreshold > 0 {
		rc.ConvergenceThreshold = p.ConvergenceThreshold
	}
	if t := models.RiskTolerance(p.RiskTolerance); t.Valid() {
		rc.RiskTolerance = t
	}
	if p.MaxPositionPct > 0 {
		rc.MaxPositionPct = p.MaxPositionPct
	}
	if p.BudgetSeconds > 0 {
		rc.Budget = time.Duration(p.BudgetSeconds) * time.Second
	}
	if g.StrategyProfile != "" {
		rc.StrategyProfile = g.StrategyProfile
	}
	return rc
}

// Run executes the deliberation pipeline for one symbol. A clean run
// returns (rec, nil). A degraded-but-complete run returns the
// recommendation AND a *RunError of kind PARTIAL carrying it, so callers
// can act on it with eyes open. CANCELLED and FATAL return no
// recommendation.
func (o *Orchestrator) Run(ctx context.Context, symbol string, asOf time.Time, cfg models.RunConfig) (*models.Recommendation, error) {
	if symbol == "" {
		return nil, fatalError(models.PhaseFailed, errors.New("symbol is required"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fatalError(models.PhaseFailed, fmt.Errorf("invalid run config: %w", err))
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rc := models.NewRunContext(symbol, asOf, cfg)
	st := newRunState(rc)
	log := observability.WithRun(rc.ID.String(), symbol)
	metrics := observability.GetMetrics()
	metrics.RecordRun(symbol)
	runTimer := metrics.NewTimer()

	log.Info("run started",
		"as_of", asOf.Format(time.RFC3339),
		"debate_rounds", cfg.DebateRounds,
		"risk_tolerance", cfg.RiskTolerance,
		"profile", cfg.StrategyProfile)

	record := models.NewRunRecord(rc)
	if o.store != nil {
		if err := o.store.CreateRun(ctx, record); err != nil {
			log.Warn("run record create failed", "error", err)
		}
	}

	rec, runErr := o.execute(ctx, rc, st)

	// Stamp and persist the record and trace. Best effort: the
	// recommendation itself is already saved, or the run already failed.
	record.Flags = st.flags
	switch {
	case runErr == nil || runErr.Kind == FailurePartial:
		record.Complete(models.PhaseDone, &rec.ID)
	case runErr.Kind == FailureCancelled:
		record.Complete(models.PhaseCancelled, nil)
		record.ErrorMessage = st.runErr
	default:
		record.Fail(st.runErr)
	}
	if o.store != nil {
		if err := o.store.CompleteRun(context.WithoutCancel(ctx), record, st.trace()); err != nil {
			log.Warn("run record update failed", "error", err)
		}
	}

	status := "success"
	if runErr != nil {
		status = strings.ToLower(string(runErr.Kind))
		if runErr.Kind != FailurePartial {
			metrics.RecordRunError(symbol, status)
		}
	}
	runTimer.ObserveRun(symbol, status)
	if rec != nil {
		metrics.RecordDecision(string(rec.Decision), rec.Confidence)
	}

	log.Info("run finished",
		"phase", st.phase,
		"status", status,
		"flags", len(st.flags),
		"duration_ms", runTimer.Duration().Milliseconds())

	if runErr != nil {
		if runErr.Kind == FailurePartial {
			return rec, runErr
		}
		return nil, runErr
	}
	return rec, nil
}

// execute walks the phase machine. It returns the recommendation for DONE
// (clean or partial) and the run error otherwise; persistence of the record
// and trace is the caller's job.
func (o *Orchestrator) execute(ctx context.Context, rc models.RunContext, st *runState) (*models.Recommendation, *RunError) {
	deadline := rc.StartedAt.Add(rc.Config.Budget)
	metrics := observability.GetMetrics()

	// Per-run knobs override the process-wide gate and sizing settings.
	pcfg := o.pipelineCfg
	pcfg.RiskTolerance = string(rc.Config.RiskTolerance)
	pcfg.MaxPositionPct = rc.Config.MaxPositionPct
	sizer := sizing.NewSizer(pcfg, o.sizingCfg)

	gcfg := o.gatesCfg
	if rc.Config.StrategyProfile != "" {
		gcfg.StrategyProfile = rc.Config.StrategyProfile
	}
	synth := gates.NewSynthesizer(gcfg)

	// ANALYZING: build the market view, embed it, fan out the analysts.
	stageTimer := metrics.NewTimer()
	snapshot, err := o.snapshots.Build(ctx, rc.Symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, o.cancel(st, ctx.Err())
		}
		metrics.RecordStageError(string(models.PhaseAnalyzing), errorType(err))
		return nil, o.fail(st, fmt.Errorf("failed to build snapshot: %w", err))
	}
	st.snapshot = snapshot
	o.flagMissingData(st)
	st.embedding = o.embedSituation(ctx, st)

	analystCtx, cancelAnalysts := o.stageContext(ctx)
	st.reports = o.runAnalysts(analystCtx, rc, snapshot)
	cancelAnalysts()
	if ctx.Err() != nil {
		return nil, o.cancel(st, ctx.Err())
	}
	for _, r := range st.reports {
		if r.Degraded {
			st.flag(models.DegradedAnalystFlag(r.Role))
		}
	}
	if len(models.UsableReports(st.reports)) == 0 {
		metrics.RecordStageError(string(models.PhaseAnalyzing), "all_degraded")
		return nil, o.fail(st, errors.New("all analysts failed, nothing to deliberate on"))
	}
	st.timing(models.PhaseAnalyzing, stageTimer.Duration())
	stageTimer.ObserveStage(string(models.PhaseAnalyzing))

	// DEBATING: alternating bull/bear rounds, then the judge. Wall time
	// is bounded by the run budget and the per-call timeout rather than
	// the stage timeout, so truncation stays distinguishable from
	// degradation.
	if rerr := o.advance(st, models.PhaseDebating); rerr != nil {
		return nil, rerr
	}
	stageTimer = metrics.NewTimer()
	outcome := o.runDebate(ctx, rc, st, deadline)
	if ctx.Err() != nil {
		return nil, o.cancel(st, ctx.Err())
	}
	st.transcript = outcome.transcript
	st.debateDegraded = outcome.degraded
	if outcome.degraded {
		st.flag(models.FlagDebateDegraded)
	}
	if outcome.truncated {
		st.flag(models.FlagTimeTruncated)
	}
	st.timing(models.PhaseDebating, stageTimer.Duration())
	stageTimer.ObserveStage(string(models.PhaseDebating))

	// RISK_REVIEW: draft the plan from the debate position and fan it out
	// to the three perspectives.
	if rerr := o.advance(st, models.PhaseRiskReview); rerr != nil {
		return nil, rerr
	}
	stageTimer = metrics.NewTimer()
	draft := sizing.Draft(o.planner, sizer, snapshot, outcome.direction, outcome.thesis)
	st.draft = &draft

	reviewCtx, cancelReviews := o.stageContext(ctx)
	st.reviews = o.runReviews(reviewCtx, rc, draft, snapshot)
	cancelReviews()
	if ctx.Err() != nil {
		return nil, o.cancel(st, ctx.Err())
	}
	for _, r := range st.reviews {
		if r.Degraded {
			st.flag(models.DegradedReviewerFlag(r.Perspective))
		}
	}
	st.timing(models.PhaseRiskReview, stageTimer.Duration())
	stageTimer.ObserveStage(string(models.PhaseRiskReview))

	// SYNTHESIZING: deterministic gates and the decision rule.
	if rerr := o.advance(st, models.PhaseSynthesizing); rerr != nil {
		return nil, rerr
	}
	stageTimer = metrics.NewTimer()
	syn := synth.Synthesize(gates.Input{
		Snapshot:       snapshot,
		Reports:        st.reports,
		Reviews:        st.reviews,
		DebateDegraded: st.debateDegraded,
	})
	st.synthesis = &syn
	st.timing(models.PhaseSynthesizing, stageTimer.Duration())
	stageTimer.ObserveStage(string(models.PhaseSynthesizing))

	// SIZING: account-aware position size and the entry plan.
	if rerr := o.advance(st, models.PhaseSizing); rerr != nil {
		return nil, rerr
	}
	if ctx.Err() != nil {
		return nil, o.cancel(st, ctx.Err())
	}
	stageTimer = metrics.NewTimer()
	account := o.fetchAccount(ctx, st)
	position := sizer.Size(account, snapshot, syn.Decision, syn.Confidence)
	plan := o.planner.Plan(snapshot)
	st.timing(models.PhaseSizing, stageTimer.Duration())
	stageTimer.ObserveStage(string(models.PhaseSizing))

	rec := assembleRecommendation(rc, syn, plan, position, st.flags)
	st.rec = rec

	// The recommendation write is the one store failure that fails the
	// run: an unpersisted recommendation never happened.
	if o.store != nil {
		if err := o.store.SaveRecommendation(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return nil, o.cancel(st, ctx.Err())
			}
			return nil, o.fail(st, fmt.Errorf("failed to save recommendation: %w", err))
		}
	}

	if rerr := o.advance(st, models.PhaseDone); rerr != nil {
		return nil, rerr
	}

	o.remember(ctx, st, rec)

	if len(st.flags) > 0 {
		return rec, partialError(st.phase, rec, st.flags)
	}
	return rec, nil
}

// advance moves the run to the next phase; a rejected transition is a bug
// in the orchestrator and fails the run.
func (o *Orchestrator) advance(st *runState, next models.RunPhase) *RunError {
	if err := st.advance(next); err != nil {
		return o.fail(st, err)
	}
	return nil
}

// fail stamps the state FAILED and returns the fatal error tagged with the
// phase it happened in.
func (o *Orchestrator) fail(st *runState, err error) *RunError {
	at := st.phase
	_ = st.advance(models.PhaseFailed)
	st.runErr = err.Error()
	return fatalError(at, err)
}

// cancel stamps the state CANCELLED.
func (o *Orchestrator) cancel(st *runState, cause error) *RunError {
	at := st.phase
	_ = st.advance(models.PhaseCancelled)
	if cause == nil {
		cause = context.Canceled
	}
	st.runErr = cause.Error()
	return cancelledError(at, cause)
}

// stageContext bounds one fan-out stage's wall time.
func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stageTimeout)
}

func (o *Orchestrator) flagMissingData(st *runState) {
	if !st.snapshot.HasTechnicals {
		st.flag(models.FlagTechnicalDataMissing)
	}
	if !st.snapshot.HasFundamentals {
		st.flag(models.FlagFundamentalDataMissing)
	}
	if !st.snapshot.HasPivots {
		st.flag(models.FlagPivotDataMissing)
	}
}

// embedSituation embeds the snapshot description once; debate recall and
// the post-run memory write both reuse it. An index without a working
// embedder counts as unavailable memory.
func (o *Orchestrator) embedSituation(ctx context.Context, st *runState) []float32 {
	if o.memory == nil {
		return nil
	}
	if o.embedder == nil {
		st.flag(models.FlagMemoryUnavailable)
		return nil
	}

	embedding, err := o.embedder.EmbedText(ctx, situationDescription(st.snapshot))
	if err != nil {
		observability.WithRun(st.rc.ID.String(), st.rc.Symbol).Warn("situation embedding failed", "error", err)
		st.flag(models.FlagMemoryUnavailable)
		return nil
	}
	return embedding
}

// fetchAccount resolves the live account for sizing. Without one the run
// still completes; sizing just yields a zero position under the flag.
func (o *Orchestrator) fetchAccount(ctx context.Context, st *runState) models.Account {
	if o.account == nil {
		st.flag(models.FlagAccountUnavailable)
		return models.Account{}
	}

	account, err := o.account.GetAccount(ctx)
	if err != nil || account == nil {
		observability.WithRun(st.rc.ID.String(), st.rc.Symbol).Warn("account unavailable for sizing", "error", err)
		st.flag(models.FlagAccountUnavailable)
		return models.Account{}
	}
	return *account
}

// remember writes the closed run into the memory index so future debates
// can recall it. The recommendation is already saved; failures only log.
func (o *Orchestrator) remember(ctx context.Context, st *runState, rec *models.Recommendation) {
	if o.memory == nil || len(st.embedding) == 0 {
		return
	}

	record := &models.MemoryRecord{
		ID:          uuid.New(),
		Symbol:      rec.Symbol,
		AsOf:        rec.AsOf,
		Embedding:   st.embedding,
		Description: situationDescription(st.snapshot),
		Decision:    rec.Decision,
		Advice:      st.transcript.Position,
		CreatedAt:   time.Now(),
	}
	if err := o.memory.Upsert(context.WithoutCancel(ctx), record); err != nil {
		observability.WithRun(st.rc.ID.String(), st.rc.Symbol).Warn("memory upsert failed", "error", err)
	}
}

func assembleRecommendation(rc models.RunContext, syn gates.Synthesis, plan sizing.EntryPlan, position sizing.Position, flags []string) *models.Recommendation {
	return &models.Recommendation{
		ID:             uuid.New(),
		RunID:          rc.ID,
		Symbol:         rc.Symbol,
		AsOf:           rc.AsOf,
		Decision:       syn.Decision,
		Confidence:     syn.Confidence,
		EntryLow:       plan.EntryLow,
		EntryHigh:      plan.EntryHigh,
		StopLoss:       plan.StopLoss,
		TargetPrice:    plan.TargetPrice,
		Timing:         plan.Timing,
		ExpectedReturn: plan.Expected,
		PositionPct:    position.Pct,
		Shares:         position.Shares,
		Gates:          syn.Gates,
		Flags:          append([]string(nil), flags...),
		CreatedAt:      time.Now(),
	}
}

// complete runs one reasoner call under the per-call timeout.
func (o *Orchestrator) complete(ctx context.Context, role, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	metrics := observability.GetMetrics()
	metrics.RecordReasonerRequest(o.reasoner.Name(), role)
	timer := metrics.NewTimer()

	raw, err := o.reasoner.Complete(callCtx, system, user)
	timer.ObserveReasoner(o.reasoner.Name(), role)
	if err != nil {
		metrics.RecordReasonerError(o.reasoner.Name(), role, errorType(err))
		return "", fmt.Errorf("%s call failed: %w", role, err)
	}
	return raw, nil
}

// completeValidated calls the reasoner and decodes the reply against the
// schema. Transient failures get bounded retries; output that fails
// validation gets one re-prompt carrying the validator's complaint. After
// that the caller degrades the artifact.
func (o *Orchestrator) completeValidated(ctx context.Context, role, system, user string, schema *jsonschema.Schema, out any) error {
	var raw string
	var err error
	for attempt := 0; ; attempt++ {
		raw, err = o.complete(ctx, role, system, user)
		if err == nil {
			break
		}
		if ctx.Err() != nil || attempt >= o.maxRetries {
			return err
		}
	}

	decodeErr := decodeValidated(raw, schema, out)
	if decodeErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return decodeErr
	}

	observability.GetMetrics().RecordReasonerError(o.reasoner.Name(), role, "malformed")

	reprompt := fmt.Sprintf("%s\n\nYour previous reply could not be used: %v\nRespond again with only the JSON object, nothing else.", user, decodeErr)
	raw, err = o.complete(ctx, role, system, reprompt)
	if err != nil {
		return err
	}
	return decodeValidated(raw, schema, out)
}
