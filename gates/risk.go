package gates

import (
	"fmt"
	"strings"

	"trade-council/models"
)

// drawdownFailCap is the score ceiling applied when estimated drawdown
// breaches the configured limit, forcing the verdict to FAIL.
const drawdownFailCap = 30.0

// RiskScore rates volatility and drawdown, shifted by the risk review
// stances. Reviewer disagreement lowers the score; unanimous REDUCE
// lands strictly below unanimous MAINTAIN. Drawdown above the ceiling
// forces FAIL.
func RiskScore(snapshot *models.IndicatorSnapshot, reviews []models.RiskReview, drawdownCeiling float64) models.GateResult {
	dataAvailable := snapshot != nil && snapshot.HasTechnicals

	base := 35.0
	var vol, drawdown float64
	if dataAvailable {
		vol = snapshot.AnnualizedVol
		drawdown = snapshot.MaxDrawdownPct
		volScore := models.ClampScore(100 - vol*150)
		ddScore := models.ClampScore(100 - drawdown*250)
		base = volScore*0.5 + ddScore*0.5
	}

	usable := models.UsableReviews(reviews)
	var deltaSum float64
	for _, r := range usable {
		deltaSum += r.Stance.Delta()
	}
	spread := stanceSpread(usable)

	score := base + deltaSum - float64(spread)*5

	var parts []string
	parts = append(parts, fmt.Sprintf("volatility %.0f%%, drawdown %.0f%%", vol*100, drawdown*100))
	if len(usable) > 0 {
		parts = append(parts, fmt.Sprintf("stances %s (shift %+.0f, spread %d)", stanceSummary(usable), deltaSum, spread))
	}

	if !dataAvailable {
		if score > dataUnavailableCap {
			score = dataUnavailableCap
		}
		parts = append(parts, "market data unavailable")
	}

	if dataAvailable && drawdownCeiling > 0 && drawdown > drawdownCeiling {
		if score > drawdownFailCap {
			score = drawdownFailCap
		}
		parts = append(parts, fmt.Sprintf("drawdown exceeds %.0f%% ceiling", drawdownCeiling*100))
	}

	return models.NewGateResult(models.GateRisk, score, strings.Join(parts, "; "))
}

// stanceRank orders stances for the disagreement width. Higher is more
// risk-on.
func stanceRank(s models.RiskStance) int {
	switch s {
	case models.StanceIncrease:
		return 3
	case models.StanceMaintain:
		return 2
	case models.StanceReduce:
		return 1
	default: // ABORT
		return 0
	}
}

// stanceSpread is the width between the most and least risk-on usable
// reviews. Unanimity is zero.
func stanceSpread(reviews []models.RiskReview) int {
	if len(reviews) < 2 {
		return 0
	}

	lo, hi := stanceRank(reviews[0].Stance), stanceRank(reviews[0].Stance)
	for _, r := range reviews[1:] {
		rank := stanceRank(r.Stance)
		if rank < lo {
			lo = rank
		}
		if rank > hi {
			hi = rank
		}
	}
	return hi - lo
}

func stanceSummary(reviews []models.RiskReview) string {
	stances := make([]string, len(reviews))
	for i, r := range reviews {
		stances[i] = string(r.Stance)
	}
	return strings.Join(stances, "/")
}
