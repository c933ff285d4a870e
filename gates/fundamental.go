package gates

import (
	"fmt"

	"trade-council/models"
)

// dataUnavailableCap keeps a gate in FAIL territory when its inputs are
// missing: scores below 40 map to FAIL.
const dataUnavailableCap = 35.0

// Valuation component weights.
const (
	weightPE     = 0.35
	weightPEG    = 0.15
	weightPB     = 0.15
	weightDiv    = 0.10
	weightUpside = 0.25
)

// Blend between the valuation math and the fundamentals analyst.
const analystBlend = 0.4

// FundamentalScore rates valuation against sector norms and blends in
// the fundamentals analyst's view. Missing fundamentals cap the gate
// into FAIL territory.
func FundamentalScore(snapshot *models.IndicatorSnapshot, report *models.AnalystReport) models.GateResult {
	if snapshot == nil || !snapshot.HasFundamentals || snapshot.Fundamentals == nil {
		score := 20.0
		if report != nil && report.Usable() {
			score = report.Score
			if score > dataUnavailableCap {
				score = dataUnavailableCap
			}
		}
		return models.NewGateResult(models.GateFundamental, score,
			"fundamental data unavailable; valuation cannot be assessed")
	}

	f := snapshot.Fundamentals

	peScore := scorePE(f.PERatio, sectorPE(snapshot))
	pegScore := scorePEG(f.PEGRatio)
	pbScore := scorePB(f.PBRatio)
	divScore := scoreDividend(f.DividendYield)
	upside := targetUpside(f.AnalystTarget, snapshot.Price)
	upsideScore := scoreUpside(upside)

	valuation := peScore*weightPE + pegScore*weightPEG + pbScore*weightPB +
		divScore*weightDiv + upsideScore*weightUpside

	score := valuation
	reasoning := fmt.Sprintf("P/E %.1f (sector %.1f), PEG %.2f, P/B %.2f, yield %.1f%%, target upside %+.1f%%; valuation %.0f",
		f.PERatio, sectorPE(snapshot), f.PEGRatio, f.PBRatio, f.DividendYield*100, upside*100, valuation)

	if report != nil && report.Usable() {
		score = valuation*(1-analystBlend) + report.Score*analystBlend
		reasoning = fmt.Sprintf("%s, analyst %.0f", reasoning, report.Score)
	}

	return models.NewGateResult(models.GateFundamental, score, reasoning)
}

func sectorPE(snapshot *models.IndicatorSnapshot) float64 {
	if snapshot.SectorNorms == nil {
		return 0
	}
	return snapshot.SectorNorms.PERatio
}

// scorePE rates the P/E against the sector median when one is known,
// else against an absolute scale. Negative earnings score poorly.
func scorePE(pe, sector float64) float64 {
	if pe <= 0 {
		return 25
	}
	if sector > 0 {
		// At half the sector multiple: 100. At the sector multiple: 60.
		// At 1.75x: 0.
		rel := pe / sector
		return models.ClampScore(140 - rel*80)
	}
	// Absolute fallback: P/E 10 -> 75, 20 -> 50, 40 -> 0.
	return models.ClampScore(100 - pe*2.5)
}

// scorePEG treats growth-adjusted value under 1.0 as attractive.
func scorePEG(peg float64) float64 {
	if peg <= 0 {
		return 50
	}
	return models.ClampScore(125 - peg*50)
}

// scorePB follows the screener scale: low book multiples score high.
func scorePB(pb float64) float64 {
	if pb <= 0 {
		return 50
	}
	return models.ClampScore(110 - pb*30)
}

// scoreDividend rewards yield up to 5%.
func scoreDividend(yield float64) float64 {
	if yield <= 0 {
		return 0
	}
	return models.ClampScore(yield * 2000)
}

func targetUpside(target, price float64) float64 {
	if target <= 0 || price <= 0 {
		return 0
	}
	return target/price - 1
}

// scoreUpside centers on 50 at zero upside; +-20% covers the range.
func scoreUpside(upside float64) float64 {
	return models.ClampScore(50 + upside*250)
}
