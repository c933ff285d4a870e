package app

import (
	"context"
	"fmt"
	"time"

	"trade-council/models"
	"trade-council/observability"

	"github.com/google/uuid"
)

// Outcome measurement horizons in calendar days. A recommendation
// becomes sweepable once the label horizon has elapsed; the longest
// horizon is measured with whatever history exists by then.
const (
	outcomeHorizon7D    = 7
	outcomeLabelHorizon = 30
	outcomeHorizon90D   = 90

	sweepBatchLimit = 100
)

// SweepResult summarizes one outcome sweep.
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Recorded int `json:"recorded"`
	Failed   int `json:"failed"`
}

// RecordOutcomes measures realized returns for recommendations whose
// label horizon has elapsed and records a WIN/LOSS/FLAT outcome for
// each. Safe to call repeatedly: recommendations that already have an
// outcome are excluded at the query and the insert ignores conflicts. A
// failure on one recommendation is counted and the sweep moves on.
func (a *App) RecordOutcomes(ctx context.Context) (*SweepResult, error) {
	if a.store == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if a.history == nil {
		return nil, fmt.Errorf("market data not initialized")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -outcomeLabelHorizon)
	recs, err := a.store.ListRecommendationsAwaitingOutcome(ctx, cutoff, sweepBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations for sweep: %w", err)
	}

	result := &SweepResult{Scanned: len(recs)}
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		rec := &recs[i]
		outcome, err := a.measureOutcome(ctx, rec)
		if err != nil {
			observability.Warn("outcome measurement failed",
				"recommendation_id", rec.ID, "symbol", rec.Symbol, "error", err)
			result.Failed++
			continue
		}
		if err := a.store.SaveOutcome(ctx, outcome); err != nil {
			observability.Warn("outcome save failed",
				"recommendation_id", rec.ID, "symbol", rec.Symbol, "error", err)
			result.Failed++
			continue
		}
		a.enrichMemory(ctx, rec, outcome)
		result.Recorded++
	}

	observability.Info("outcome sweep finished",
		"scanned", result.Scanned,
		"recorded", result.Recorded,
		"failed", result.Failed)
	return result, nil
}

// measureOutcome prices one recommendation after the fact. The entry is
// the close of the first session at or after the recommendation's
// as-of; each horizon uses the first close at or after its target date,
// falling back to the latest close for horizons still in the future.
func (a *App) measureOutcome(ctx context.Context, rec *models.Recommendation) (*models.TradeOutcome, error) {
	start := rec.AsOf.UTC().Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, outcomeHorizon90D+7) // buffer past the last horizon for holidays
	if now := time.Now().UTC(); end.After(now) {
		end = now
	}

	candles, err := a.history.History(ctx, rec.Symbol, start, end)
	if err != nil {
		return nil, err
	}

	entry, ok := closeAtOrAfter(candles, start)
	if !ok || entry <= 0 {
		return nil, fmt.Errorf("no usable session close at or after %s for %s",
			start.Format("2006-01-02"), rec.Symbol)
	}

	returnAt := func(days int) float64 {
		price, ok := closeAtOrAfter(candles, start.AddDate(0, 0, days))
		if !ok {
			price = candles[len(candles)-1].Close
		}
		return price/entry - 1
	}

	ret30 := returnAt(outcomeLabelHorizon)
	return &models.TradeOutcome{
		ID:               uuid.New(),
		RecommendationID: rec.ID,
		Symbol:           rec.Symbol,
		Decision:         rec.Decision,
		EntryPrice:       entry,
		Return7D:         returnAt(outcomeHorizon7D),
		Return30D:        ret30,
		Return90D:        returnAt(outcomeHorizon90D),
		Label:            models.LabelOutcome(rec.Decision, ret30),
		RecordedAt:       time.Now().UTC(),
	}, nil
}

// enrichMemory feeds the realized outcome back to the memory record the
// run wrote. Best effort: the index may not hold a record for older
// recommendations, and a miss only means future debates recall less.
func (a *App) enrichMemory(ctx context.Context, rec *models.Recommendation, outcome *models.TradeOutcome) {
	if a.memory == nil {
		return
	}

	record, ok := a.memory.FindBySymbolAsOf(rec.Symbol, rec.AsOf)
	if !ok {
		observability.Debug("no memory record to enrich", "symbol", rec.Symbol, "as_of", rec.AsOf)
		return
	}

	err := a.memory.EnrichOutcome(ctx, record.ID, models.Outcome{
		Return7D:   outcome.Return7D,
		Return30D:  outcome.Return30D,
		Return90D:  outcome.Return90D,
		Label:      outcome.Label,
		RecordedAt: outcome.RecordedAt,
	})
	if err != nil {
		observability.Warn("memory outcome enrichment failed", "symbol", rec.Symbol, "error", err)
	}
}

// closeAtOrAfter returns the close of the first candle dated at or
// after t. Candles are assumed oldest-first.
func closeAtOrAfter(candles []models.Candle, t time.Time) (float64, bool) {
	for _, c := range candles {
		if !c.Date.Before(t) {
			return c.Close, true
		}
	}
	return 0, false
}
