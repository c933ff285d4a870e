package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskPerspective identifies one of the three independent reviewers.
type RiskPerspective string

const (
	RiskAggressivePerspective   RiskPerspective = "aggressive"
	RiskConservativePerspective RiskPerspective = "conservative"
	RiskNeutralPerspective      RiskPerspective = "neutral"
)

func AllRiskPerspectives() []RiskPerspective {
	return []RiskPerspective{RiskAggressivePerspective, RiskConservativePerspective, RiskNeutralPerspective}
}

// RiskStance is a reviewer's sizing recommendation for the draft plan.
type RiskStance string

const (
	StanceIncrease RiskStance = "INCREASE"
	StanceMaintain RiskStance = "MAINTAIN"
	StanceReduce   RiskStance = "REDUCE"
	StanceAbort    RiskStance = "ABORT"
)

func (s RiskStance) Valid() bool {
	switch s {
	case StanceIncrease, StanceMaintain, StanceReduce, StanceAbort:
		return true
	}
	return false
}

// Delta is the stance's contribution to the risk gate score. Ordering is
// what matters: INCREASE > MAINTAIN > REDUCE > ABORT.
func (s RiskStance) Delta() float64 {
	switch s {
	case StanceIncrease:
		return 5
	case StanceMaintain:
		return 0
	case StanceReduce:
		return -10
	case StanceAbort:
		return -25
	default:
		return 0
	}
}

// PlanDraft is the trading plan derived from the debate position, handed to
// the risk reviewers before synthesis.
type PlanDraft struct {
	Symbol      string          `json:"symbol"`
	Direction   Stance          `json:"direction"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TargetPrice decimal.Decimal `json:"target_price"`
	SizePct     float64         `json:"size_pct"` // fraction of portfolio
	Thesis      string          `json:"thesis"`
}

// RiskReview is one reviewer's single-pass verdict on the draft plan.
// Disagreement between reviews is not resolved here; the risk gate
// consumes it raw.
type RiskReview struct {
	Perspective     RiskPerspective `json:"perspective"`
	Stance          RiskStance      `json:"stance"`
	AdjustedSizePct *float64        `json:"adjusted_size_pct,omitempty"`
	AdjustedStop    *float64        `json:"adjusted_stop,omitempty"`
	Commentary      string          `json:"commentary"`
	CreatedAt       time.Time       `json:"created_at"`
	Degraded        bool            `json:"degraded"`
	DegradedReason  string          `json:"degraded_reason,omitempty"`
}

// NewDegradedReview is the placeholder for a reviewer that failed after
// retries. MAINTAIN keeps it out of the stance-direction shift.
func NewDegradedReview(p RiskPerspective, reason string) RiskReview {
	return RiskReview{
		Perspective:    p,
		Stance:         StanceMaintain,
		Commentary:     "insufficient data",
		CreatedAt:      time.Now(),
		Degraded:       true,
		DegradedReason: reason,
	}
}

// UsableReviews filters degraded placeholders out.
func UsableReviews(reviews []RiskReview) []RiskReview {
	usable := make([]RiskReview, 0, len(reviews))
	for _, r := range reviews {
		if !r.Degraded {
			usable = append(usable, r)
		}
	}
	return usable
}
