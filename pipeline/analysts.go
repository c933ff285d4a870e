package pipeline

import (
	"context"
	"sync"
	"time"

	"trade-council/models"
	"trade-council/observability"
)

// runAnalysts fans one reasoner call out per configured role and joins all
// of them. Every slot comes back filled: failed roles land as degraded
// placeholders, and the caller decides whether anything usable remains.
func (o *Orchestrator) runAnalysts(ctx context.Context, rc models.RunContext, snapshot *models.IndicatorSnapshot) []models.AnalystReport {
	roles := rc.Config.AnalystRoles
	reports := make([]models.AnalystReport, len(roles))

	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func(i int, role models.AnalystRole) {
			defer wg.Done()
			reports[i] = o.runAnalyst(ctx, rc, role, snapshot)
		}(i, role)
	}
	wg.Wait()

	return reports
}

// runAnalyst produces one role's report, degrading in place on failure.
func (o *Orchestrator) runAnalyst(ctx context.Context, rc models.RunContext, role models.AnalystRole, snapshot *models.IndicatorSnapshot) models.AnalystReport {
	log := observability.WithRun(rc.ID.String(), rc.Symbol).With("role", string(role))

	var payload analystPayload
	err := o.completeValidated(ctx, string(role), analystSystemPrompt(role), analystUserPrompt(role, snapshot), analystSchema, &payload)
	if err != nil {
		log.Warn("analyst degraded", "error", err)
		observability.GetMetrics().RecordDegradedArtifact(string(role))
		return models.NewDegradedReport(role, err.Error())
	}

	report := models.AnalystReport{
		Role:      role,
		Stance:    models.Stance(payload.Stance),
		Score:     models.ClampScore(payload.Score),
		Findings:  payload.Findings,
		KeyPoints: payload.KeyPoints,
		Sources:   payload.Sources,
		CreatedAt: time.Now(),
	}
	if len(report.Sources) == 0 {
		report.Sources = snapshot.Sources
	}

	log.Debug("analyst report ready", "stance", report.Stance, "score", report.Score)
	return report
}
