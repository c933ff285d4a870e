package gates

import (
	"fmt"

	"trade-council/models"
)

// Technical component weights.
const (
	weightTrend    = 0.40
	weightMomentum = 0.35
	weightSupport  = 0.25
)

// TechnicalScore rates trend alignment, momentum, and proximity to
// support from the snapshot. Missing technical data fails the gate.
func TechnicalScore(snapshot *models.IndicatorSnapshot) models.GateResult {
	if snapshot == nil || !snapshot.HasTechnicals {
		return models.NewGateResult(models.GateTechnical, 20,
			"technical data unavailable; trend and momentum cannot be assessed")
	}

	trend := trendScore(snapshot)
	momentum := momentumScore(snapshot)
	support := supportScore(snapshot)

	score := trend*weightTrend + momentum*weightMomentum + support*weightSupport
	reasoning := fmt.Sprintf("trend %.0f (price %.2f vs SMA50 %.2f / SMA200 %.2f), momentum %.0f (RSI %.1f, MACD hist %.3f), support %.0f",
		trend, snapshot.Price, snapshot.SMA50, snapshot.SMA200, momentum, snapshot.RSI14, snapshot.MACDHist, support)

	return models.NewGateResult(models.GateTechnical, score, reasoning)
}

// trendScore starts neutral and shifts for each alignment the snapshot
// can support. Averages that never filled their window stay out of the
// tally.
func trendScore(s *models.IndicatorSnapshot) float64 {
	score := 50.0

	if s.SMA50 > 0 {
		if s.Price > s.SMA50 {
			score += 15
		} else {
			score -= 15
		}
	}
	if s.SMA200 > 0 {
		if s.Price > s.SMA200 {
			score += 15
		} else {
			score -= 15
		}
	}
	if s.SMA50 > 0 && s.SMA200 > 0 {
		if s.SMA50 > s.SMA200 {
			score += 10
		} else {
			score -= 10
		}
	}
	if s.EMA20 > 0 {
		if s.Price > s.EMA20 {
			score += 10
		} else {
			score -= 10
		}
	}

	return models.ClampScore(score)
}

// momentumScore blends an RSI entry-zone component with the MACD
// histogram normalized by ATR.
func momentumScore(s *models.IndicatorSnapshot) float64 {
	// RSI 55 is the sweet spot for entries: strong but not overbought.
	rsi := models.ClampScore(100 - abs(s.RSI14-55)*2.5)

	hist := 50.0
	if s.ATR14 > 0 {
		hist = models.ClampScore(50 + s.MACDHist/s.ATR14*50)
	}

	return rsi*0.5 + hist*0.5
}

// supportScore rates the ATR-relative distance to the nearest floor
// support (PP, then S1). Entries close to support score high; chasing
// far above it scores low; broken support scores worst.
func supportScore(s *models.IndicatorSnapshot) float64 {
	if !s.HasPivots || s.ATR14 <= 0 {
		return 50
	}

	switch {
	case s.Price < s.Pivots.S2:
		return 15
	case s.Price < s.Pivots.S1:
		return 25
	}

	support := s.Pivots.S1
	if s.Price >= s.Pivots.PP {
		support = s.Pivots.PP
	}

	dist := (s.Price - support) / s.ATR14
	score := 100 - dist*25
	if score < 10 {
		return 10
	}
	return models.ClampScore(score)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
