// Package sizing converts a synthesized decision into a concrete order
// plan: a position size as a fraction of portfolio plus whole shares, and
// an entry strategy (price band, stop, target, timing classification,
// expected-return breakdown). Everything here is deterministic math over
// the snapshot and account; no external calls.
package sizing

import (
	"github.com/shopspring/decimal"

	"trade-council/config"
	"trade-council/models"
)

// Risk-tolerance multipliers. More risk appetite deploys more of the
// conviction-scaled base.
const (
	conservativeMult = 0.50
	moderateMult     = 0.75
	aggressiveMult   = 1.00
)

// Position is the sized slice of portfolio for an actionable decision.
type Position struct {
	// Pct is the recommended fraction of portfolio value, after all caps.
	Pct float64
	// Shares is floor(portfolio * Pct / price), bounded by the configured
	// share limits.
	Shares decimal.Decimal
}

// Sizer computes position sizes. Base size is the configured cap scaled by
// confidence, risk tolerance, and volatility, then limited by cash
// available after the reserve.
type Sizer struct {
	maxPositionPct float64
	riskTolerance  string
	cashReservePct float64
	minShares      int64
	maxShares      int64
}

// NewSizer creates a Sizer from the pipeline and sizing configuration.
func NewSizer(pipeline config.PipelineConfig, sizing config.SizingConfig) *Sizer {
	return &Sizer{
		maxPositionPct: pipeline.MaxPositionPct,
		riskTolerance:  pipeline.RiskTolerance,
		cashReservePct: sizing.CashReservePct,
		minShares:      sizing.MinShares,
		maxShares:      sizing.MaxShares,
	}
}

// Size returns the position for a decision. Only the bullish actionable
// decisions (BUY, and WAIT once the entry window opens) carry size; HOLD
// and SELL are advisory and size zero. Confidence at or below coin-flip
// sizes zero regardless of decision.
func (s *Sizer) Size(account models.Account, snapshot *models.IndicatorSnapshot, decision models.Decision, confidence float64) Position {
	if decision != models.DecisionBuy && decision != models.DecisionWait {
		return Position{Shares: decimal.Zero}
	}
	if snapshot == nil || snapshot.Price <= 0 || !account.PortfolioValue.IsPositive() {
		return Position{Shares: decimal.Zero}
	}

	pct := s.maxPositionPct *
		confidenceMultiplier(confidence) *
		riskMultiplier(s.riskTolerance) *
		volatilityMultiplier(snapshot.AnnualizedVol)
	if pct > s.maxPositionPct {
		pct = s.maxPositionPct
	}
	if pct <= 0 {
		return Position{Shares: decimal.Zero}
	}

	target := account.PortfolioValue.Mul(decimal.NewFromFloat(pct))
	if available := account.AvailableCash(s.cashReservePct); target.GreaterThan(available) {
		target = available
		pct, _ = target.Div(account.PortfolioValue).Float64()
	}
	if !target.IsPositive() {
		return Position{Shares: decimal.Zero}
	}

	price := decimal.NewFromFloat(snapshot.Price)
	shares := target.Div(price).Floor()

	if minShares := decimal.NewFromInt(s.minShares); shares.LessThan(minShares) {
		shares = minShares
	}
	if s.maxShares > 0 {
		if maxShares := decimal.NewFromInt(s.maxShares); shares.GreaterThan(maxShares) {
			shares = maxShares
		}
	}

	return Position{Pct: pct, Shares: shares}
}

// ProvisionalPct is the pre-synthesis size ceiling quoted in the draft
// plan the risk reviewers critique: the configured cap scaled by risk
// tolerance and volatility, before confidence is known.
func (s *Sizer) ProvisionalPct(snapshot *models.IndicatorSnapshot) float64 {
	pct := s.maxPositionPct * riskMultiplier(s.riskTolerance)
	if snapshot != nil {
		pct *= volatilityMultiplier(snapshot.AnnualizedVol)
	}
	return pct
}

// confidenceMultiplier maps confidence to [0,1]: zero at or below
// coin-flip confidence, full size only at 100.
func confidenceMultiplier(confidence float64) float64 {
	m := (confidence - 50) / 50
	if m < 0 {
		return 0
	}
	if m > 1 {
		return 1
	}
	return m
}

func riskMultiplier(tolerance string) float64 {
	switch tolerance {
	case "conservative":
		return conservativeMult
	case "aggressive":
		return aggressiveMult
	default:
		return moderateMult
	}
}

// volatilityMultiplier shrinks size as annualized volatility grows: a 25%
// vol name sizes at 80% of its calm-market equivalent.
func volatilityMultiplier(vol float64) float64 {
	if vol <= 0 {
		return 1
	}
	return 1 / (1 + vol)
}
