package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"trade-council/models"
	"trade-council/observability"
)

// runReviews fans the draft plan out to the three risk perspectives and
// joins them. The goroutines never return errors; a failed perspective
// lands as a degraded placeholder so the join always yields all three
// reviews in AllRiskPerspectives order.
func (o *Orchestrator) runReviews(ctx context.Context, rc models.RunContext, draft models.PlanDraft, snapshot *models.IndicatorSnapshot) []models.RiskReview {
	perspectives := models.AllRiskPerspectives()
	reviews := make([]models.RiskReview, len(perspectives))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range perspectives {
		g.Go(func() error {
			reviews[i] = o.runReview(gctx, rc, p, draft, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	return reviews
}

// runReview produces one perspective's verdict, degrading in place on
// failure.
func (o *Orchestrator) runReview(ctx context.Context, rc models.RunContext, p models.RiskPerspective, draft models.PlanDraft, snapshot *models.IndicatorSnapshot) models.RiskReview {
	log := observability.WithRun(rc.ID.String(), rc.Symbol).With("perspective", string(p))

	var payload reviewPayload
	err := o.completeValidated(ctx, string(p), reviewerSystemPrompt(p), reviewerUserPrompt(draft, snapshot), reviewSchema, &payload)
	if err != nil {
		log.Warn("risk reviewer degraded", "error", err)
		observability.GetMetrics().RecordDegradedArtifact(string(p))
		return models.NewDegradedReview(p, err.Error())
	}

	review := models.RiskReview{
		Perspective:     p,
		Stance:          models.RiskStance(payload.Stance),
		AdjustedSizePct: payload.AdjustedSizePct,
		AdjustedStop:    payload.AdjustedStop,
		Commentary:      payload.Commentary,
		CreatedAt:       time.Now(),
	}

	log.Debug("risk review ready", "stance", review.Stance)
	return review
}
