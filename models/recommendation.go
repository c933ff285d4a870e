package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Decision is the final call for a run.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
	DecisionWait Decision = "WAIT"
)

// EntryTiming classifies how to approach the entry.
type EntryTiming string

const (
	TimingBuyNow           EntryTiming = "BUY_NOW"
	TimingWaitForDip       EntryTiming = "WAIT_FOR_DIP"
	TimingWaitForBreakout  EntryTiming = "WAIT_FOR_BREAKOUT"
	TimingWaitForPullback  EntryTiming = "WAIT_FOR_PULLBACK"
)

// ExpectedReturn is the labeled breakdown of what the position is expected
// to earn: price appreciation to target plus trailing dividend yield.
type ExpectedReturn struct {
	AppreciationPct  float64 `json:"appreciation_pct"`
	DividendYieldPct float64 `json:"dividend_yield_pct"`
	TotalPct         float64 `json:"total_pct"`
}

// Recommendation is the immutable final artifact of a completed run.
type Recommendation struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	Symbol     string    `json:"symbol"`
	AsOf       time.Time `json:"as_of"`
	Decision   Decision  `json:"decision"`
	Confidence float64   `json:"confidence"` // 0-100

	EntryLow    decimal.Decimal `json:"entry_low"`
	EntryHigh   decimal.Decimal `json:"entry_high"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Timing      EntryTiming     `json:"timing"`

	ExpectedReturn ExpectedReturn `json:"expected_return"`

	PositionPct float64         `json:"position_pct"` // fraction of portfolio
	Shares      decimal.Decimal `json:"shares"`

	Gates []GateResult `json:"gates"`
	Flags []string     `json:"flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasFlag reports whether the recommendation carries the given
// degradation flag.
func (r *Recommendation) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Degraded reports whether the recommendation was produced from partial
// data.
func (r *Recommendation) Degraded() bool {
	return len(r.Flags) > 0
}
