package gates

import (
	"fmt"

	"trade-council/models"
)

// Timing component weights.
const (
	weightZone = 0.60
	weightATR  = 0.40
)

// Offset penalty scaling: each percent away from VWAP costs 4 points,
// up to 40.
const (
	offsetPenaltyPerPct = 4.0
	offsetPenaltyMax    = 40.0
)

// TimingScore rates entry quality from the VWAP offset, the pivot zone,
// and ATR-relative volatility. The same inputs drive the entry
// classifier; the gate reduces them to a score.
func TimingScore(snapshot *models.IndicatorSnapshot) models.GateResult {
	if snapshot == nil || !snapshot.HasTechnicals || snapshot.VWAP <= 0 {
		return models.NewGateResult(models.GateTiming, 20,
			"timing data unavailable; VWAP and volatility cannot be assessed")
	}

	zone := snapshot.Zone()
	zScore := zoneScore(zone)
	aScore := atrScore(snapshot.ATRPct())

	penalty := abs(snapshot.VWAPOffsetPct) * offsetPenaltyPerPct
	if penalty > offsetPenaltyMax {
		penalty = offsetPenaltyMax
	}

	score := zScore*weightZone + aScore*weightATR - penalty
	reasoning := fmt.Sprintf("VWAP offset %+.1f%% (penalty %.0f), zone %s (%.0f), ATR %.1f%% of price (%.0f)",
		snapshot.VWAPOffsetPct, penalty, zone, zScore, snapshot.ATRPct()*100, aScore)

	return models.NewGateResult(models.GateTiming, score, reasoning)
}

// zoneScore favors entries near support and penalizes extended or
// broken-down prices.
func zoneScore(zone models.PivotZone) float64 {
	switch zone {
	case models.ZoneBelowS2:
		return 20
	case models.ZoneS2S1:
		return 85
	case models.ZoneS1PP:
		return 75
	case models.ZonePPR1:
		return 55
	case models.ZoneR1R2:
		return 40
	case models.ZoneAboveR2:
		return 25
	default:
		return 50
	}
}

// atrScore penalizes wide daily ranges: a 2% ATR still scores 80, a 10%
// ATR scores zero.
func atrScore(atrPct float64) float64 {
	return models.ClampScore(100 - atrPct*1000)
}
