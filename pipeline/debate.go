package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"trade-council/models"
	"trade-council/observability"
)

// debateOutcome carries the debate stage's products forward.
type debateOutcome struct {
	transcript *models.DebateTranscript
	direction  models.Stance
	thesis     string
	degraded   bool
	truncated  bool
}

// runDebate walks the bull and bear through up to cfg.DebateRounds
// alternating rounds, then has the judge close the transcript with a
// direction and thesis. The first round always runs even with the budget
// spent; truncation only skips remaining rounds.
func (o *Orchestrator) runDebate(ctx context.Context, rc models.RunContext, st *runState, deadline time.Time) debateOutcome {
	cfg := rc.Config
	log := observability.WithRun(rc.ID.String(), rc.Symbol).With("stage", "debate")

	transcript := models.NewDebateTranscript(openingStatement(st.reports))
	out := debateOutcome{transcript: transcript}

	memories := o.recallMemories(st, cfg.MemoryTopK)
	memoryIDs := make([]uuid.UUID, 0, len(memories))
	for _, m := range memories {
		memoryIDs = append(memoryIDs, m.Record.ID)
	}

	var prevBull, prevBear []float32
	state := models.DebateExhausted

	for round := 1; round <= cfg.DebateRounds; round++ {
		if ctx.Err() != nil {
			return out
		}
		if round > 1 && time.Now().After(deadline) {
			log.Warn("run budget exhausted, truncating debate", "completed_rounds", round-1)
			out.truncated = true
			break
		}

		bullTurn := o.debaterTurn(ctx, rc, models.DebateBull, round, transcript, memories, memoryIDs)
		if err := transcript.AddTurn(bullTurn); err != nil {
			log.Error("transcript rejected bull turn", "round", round, "error", err)
		}
		if bullTurn.Degraded {
			out.degraded = true
		}
		if ctx.Err() != nil {
			return out
		}

		bearTurn := o.debaterTurn(ctx, rc, models.DebateBear, round, transcript, memories, memoryIDs)
		if err := transcript.AddTurn(bearTurn); err != nil {
			log.Error("transcript rejected bear turn", "round", round, "error", err)
		}
		if bearTurn.Degraded {
			out.degraded = true
		}

		// Convergence compares real arguments only.
		if bullTurn.Degraded || bearTurn.Degraded {
			prevBull, prevBear = nil, nil
			continue
		}

		bullEmb, bearEmb := o.embedTurns(ctx, bullTurn, bearTurn)
		if converged(prevBull, bullEmb, prevBear, bearEmb, cfg.ConvergenceThreshold) {
			state = models.DebateConverged
			log.Info("debate converged", "round", round)
			break
		}
		prevBull, prevBear = bullEmb, bearEmb
	}

	if ctx.Err() != nil {
		return out
	}

	direction, thesis, judgeDegraded := o.judgeDebate(ctx, rc, transcript, st.reports)
	if judgeDegraded {
		out.degraded = true
	}
	if err := transcript.Terminate(state, thesis); err != nil {
		log.Error("transcript termination rejected", "error", err)
	}

	log.Info("debate closed",
		"state", transcript.State,
		"rounds", transcript.Rounds(),
		"direction", direction,
		"degraded", out.degraded)

	out.direction = direction
	out.thesis = thesis
	return out
}

// debaterTurn produces one side's argument for one round. A failed call
// forfeits the turn rather than the debate.
func (o *Orchestrator) debaterTurn(ctx context.Context, rc models.RunContext, role models.DebateRole, round int, transcript *models.DebateTranscript, memories []models.ScoredMemory, memoryIDs []uuid.UUID) models.DebateTurn {
	opponent := models.DebateBear
	if role == models.DebateBear {
		opponent = models.DebateBull
	}
	opponentArg, _ := transcript.LastArgument(opponent)

	var payload turnPayload
	err := o.completeValidated(ctx, string(role), debaterSystemPrompt(role),
		debaterUserPrompt(role, round, transcript.Opening, opponentArg, memories), turnSchema, &payload)
	if err != nil {
		observability.WithRun(rc.ID.String(), rc.Symbol).Warn("debater turn forfeited",
			"role", role, "round", round, "error", err)
		observability.GetMetrics().RecordDegradedArtifact(string(role))
		return models.DebateTurn{
			Round:     round,
			Role:      role,
			Argument:  "forfeited: " + err.Error(),
			Degraded:  true,
			CreatedAt: time.Now(),
		}
	}

	return models.DebateTurn{
		Round:     round,
		Role:      role,
		Argument:  payload.Argument,
		MemoryIDs: memoryIDs,
		CreatedAt: time.Now(),
	}
}

// recallMemories queries the index for situations similar to this run's.
// When retrieval is unavailable the debate proceeds memory-less; the flag
// was already raised when the situation embedding failed.
func (o *Orchestrator) recallMemories(st *runState, k int) []models.ScoredMemory {
	if o.memory == nil || k <= 0 || len(st.embedding) == 0 {
		return nil
	}
	return o.memory.Query(st.embedding, k)
}

// judgeDebate closes the debate. When the judge itself fails, direction
// falls back to the analyst majority so the run can still draft a plan.
func (o *Orchestrator) judgeDebate(ctx context.Context, rc models.RunContext, transcript *models.DebateTranscript, reports []models.AnalystReport) (models.Stance, string, bool) {
	var payload judgePayload
	err := o.completeValidated(ctx, "judge", judgeSystemPrompt, judgeUserPrompt(transcript), judgeSchema, &payload)
	if err == nil {
		return models.Stance(payload.Direction), payload.Thesis, false
	}

	observability.WithRun(rc.ID.String(), rc.Symbol).Warn("judge degraded", "error", err)
	observability.GetMetrics().RecordDegradedArtifact("judge")

	direction := majorityStance(reports)
	thesis := fmt.Sprintf("Debate closed without a judged synthesis; analyst majority leans %s.", direction)
	return direction, thesis, true
}

// majorityStance is the fallback direction when no judge verdict exists.
func majorityStance(reports []models.AnalystReport) models.Stance {
	bulls, bears := 0, 0
	for _, r := range models.UsableReports(reports) {
		switch r.Stance {
		case models.StanceBullish:
			bulls++
		case models.StanceBearish:
			bears++
		}
	}

	switch {
	case bulls > bears:
		return models.StanceBullish
	case bears > bulls:
		return models.StanceBearish
	default:
		return models.StanceNeutral
	}
}

// embedTurns embeds both sides' arguments for the convergence check.
// Without an embedder, or on any embedding failure, the check is skipped
// for this round.
func (o *Orchestrator) embedTurns(ctx context.Context, bull, bear models.DebateTurn) ([]float32, []float32) {
	if o.embedder == nil {
		return nil, nil
	}

	bullEmb, err := o.embedder.EmbedText(ctx, bull.Argument)
	if err != nil {
		observability.Debug("bull argument embedding failed", "error", err)
		return nil, nil
	}
	bearEmb, err := o.embedder.EmbedText(ctx, bear.Argument)
	if err != nil {
		observability.Debug("bear argument embedding failed", "error", err)
		return nil, nil
	}
	return bullEmb, bearEmb
}

// converged reports whether both sides are repeating themselves: each
// side's current argument embeds close to its own previous one.
func converged(prevBull, bull, prevBear, bear []float32, threshold float64) bool {
	if len(prevBull) == 0 || len(bull) == 0 || len(prevBear) == 0 || len(bear) == 0 {
		return false
	}

	bullSim, ok := cosineSimilarity(prevBull, bull)
	if !ok || bullSim < threshold {
		return false
	}
	bearSim, ok := cosineSimilarity(prevBear, bear)
	return ok && bearSim >= threshold
}

func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
