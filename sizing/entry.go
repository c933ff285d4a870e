package sizing

import (
	"github.com/shopspring/decimal"

	"trade-council/config"
	"trade-council/models"
)

// ATR multiples for the protective stop and the fallback target when no
// analyst consensus target exists.
const (
	stopATRMult   = 2.0
	targetATRMult = 3.0
)

// EntryPlan is the deterministic entry strategy for a bullish decision:
// when to get in, at what band, where the stop and target sit, and what
// the position is expected to earn.
type EntryPlan struct {
	Timing      models.EntryTiming
	EntryLow    decimal.Decimal
	EntryHigh   decimal.Decimal
	StopLoss    decimal.Decimal
	TargetPrice decimal.Decimal
	Expected    models.ExpectedReturn
}

// Planner derives entry plans from the snapshot.
type Planner struct {
	stretchPct float64 // VWAP offset (percent) beyond which price is extended
	bandFactor float64 // entry band half-width in ATR multiples
}

// NewPlanner creates a Planner from the gate configuration, which owns the
// VWAP stretch and ATR band knobs shared with the timing gate.
func NewPlanner(gates config.GatesConfig) *Planner {
	return &Planner{
		stretchPct: gates.VWAPStretchPct,
		bandFactor: gates.ATRBandFactor,
	}
}

// Plan derives the full entry strategy for a snapshot. Indicator math
// stays float; prices are rounded to cents at this boundary.
func (p *Planner) Plan(snapshot *models.IndicatorSnapshot) EntryPlan {
	if snapshot == nil || snapshot.Price <= 0 {
		return EntryPlan{Timing: models.TimingBuyNow}
	}

	atr := 0.0
	if snapshot.HasTechnicals {
		atr = snapshot.ATR14
	}

	low, high := p.entryBand(snapshot, atr)
	stop := snapshot.Price - stopATRMult*atr
	if stop < 0 {
		stop = 0
	}
	target := targetPrice(snapshot, atr)

	return EntryPlan{
		Timing:      p.classify(snapshot),
		EntryLow:    toPrice(low),
		EntryHigh:   toPrice(high),
		StopLoss:    toPrice(stop),
		TargetPrice: toPrice(target),
		Expected:    expectedReturn(snapshot, (low+high)/2, target),
	}
}

// Draft assembles the plan handed to the risk reviewers: the debate's
// direction and thesis plus snapshot-derived levels, sized at the
// pre-confidence ceiling.
func Draft(planner *Planner, sizer *Sizer, snapshot *models.IndicatorSnapshot, direction models.Stance, thesis string) models.PlanDraft {
	plan := planner.Plan(snapshot)
	draft := models.PlanDraft{
		Direction:   direction,
		StopLoss:    plan.StopLoss,
		TargetPrice: plan.TargetPrice,
		SizePct:     sizer.ProvisionalPct(snapshot),
		Thesis:      thesis,
	}
	if snapshot != nil {
		draft.Symbol = snapshot.Symbol
		draft.EntryPrice = toPrice(snapshot.Price)
	}
	return draft
}

// classify places the current tape into one of the four entry timings.
// Order matters: an extended price wins over everything, a weak tape below
// VWAP wins over the breakout setup.
func (p *Planner) classify(snapshot *models.IndicatorSnapshot) models.EntryTiming {
	if !snapshot.HasTechnicals || snapshot.VWAP <= 0 {
		return models.TimingBuyNow
	}

	offset := snapshot.VWAPOffsetPct
	switch {
	case offset > p.stretchPct:
		return models.TimingWaitForPullback
	case offset < -p.stretchPct && snapshot.RSI14 <= 40:
		return models.TimingWaitForDip
	}

	// Pressing the top of the pivot band with hot momentum: wait for the
	// level to break rather than paying resistance.
	if snapshot.RSI14 >= 60 && snapshot.HasPivots {
		if _, zoneHigh, ok := snapshot.Zone().Bounds(snapshot.Pivots); ok {
			if zoneHigh-snapshot.Price <= p.bandFactor*snapshot.ATR14 {
				return models.TimingWaitForBreakout
			}
		}
	}

	return models.TimingBuyNow
}

// entryBand is price ± bandFactor×ATR intersected with the current pivot
// band. Price sits inside both, so the intersection is never empty.
func (p *Planner) entryBand(snapshot *models.IndicatorSnapshot, atr float64) (float64, float64) {
	low := snapshot.Price - p.bandFactor*atr
	high := snapshot.Price + p.bandFactor*atr
	if snapshot.HasPivots {
		if zoneLow, zoneHigh, ok := snapshot.Zone().Bounds(snapshot.Pivots); ok {
			if zoneLow > low {
				low = zoneLow
			}
			if zoneHigh < high {
				high = zoneHigh
			}
		}
	}
	if low < 0 {
		low = 0
	}
	return low, high
}

// targetPrice prefers the analyst consensus target; without one the target
// is an ATR-scaled extension consistent with the 2-ATR stop.
func targetPrice(snapshot *models.IndicatorSnapshot, atr float64) float64 {
	if snapshot.HasFundamentals && snapshot.Fundamentals != nil && snapshot.Fundamentals.AnalystTarget > 0 {
		return snapshot.Fundamentals.AnalystTarget
	}
	return snapshot.Price + targetATRMult*atr
}

// expectedReturn is appreciation to target from the entry midpoint plus
// the trailing annualized dividend yield, each reported separately.
func expectedReturn(snapshot *models.IndicatorSnapshot, entryMid, target float64) models.ExpectedReturn {
	var er models.ExpectedReturn
	if entryMid > 0 {
		er.AppreciationPct = (target - entryMid) / entryMid * 100
	}
	if snapshot.HasFundamentals && snapshot.Fundamentals != nil {
		er.DividendYieldPct = snapshot.Fundamentals.DividendYield * 100
	}
	er.TotalPct = er.AppreciationPct + er.DividendYieldPct
	return er
}

func toPrice(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
