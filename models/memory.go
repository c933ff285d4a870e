package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// OutcomeLabel classifies a realized outcome against the recorded decision.
type OutcomeLabel string

const (
	OutcomeWin  OutcomeLabel = "WIN"
	OutcomeLoss OutcomeLabel = "LOSS"
	OutcomeFlat OutcomeLabel = "FLAT"
)

// Outcome is the realized result of a past recommendation over fixed
// horizons. Returns are fractions signed from the long side.
type Outcome struct {
	Return7D   float64      `json:"return_7d"`
	Return30D  float64      `json:"return_30d"`
	Return90D  float64      `json:"return_90d"`
	Label      OutcomeLabel `json:"label"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// MemoryRecord is one past situation held by the memory index. The
// embedding positions it for similarity retrieval; Outcome is nil until
// the realized result is known, and setting it is the only allowed
// mutation of an existing record.
type MemoryRecord struct {
	ID          uuid.UUID `json:"id"`
	Symbol      string    `json:"symbol"`
	AsOf        time.Time `json:"as_of"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Description string    `json:"description"`
	Decision    Decision  `json:"decision"`
	Advice      string    `json:"advice"`
	Outcome     *Outcome  `json:"outcome,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Enriched reports whether the realized outcome has been recorded.
func (m *MemoryRecord) Enriched() bool {
	return m.Outcome != nil
}

// ScoredMemory pairs a record with its distance from a query embedding.
// Lower distance means more similar.
type ScoredMemory struct {
	Record   MemoryRecord `json:"record"`
	Distance float64      `json:"distance"`
}

// TradeOutcome is the persisted realized-return row for one
// recommendation.
type TradeOutcome struct {
	ID               uuid.UUID    `json:"id"`
	RecommendationID uuid.UUID    `json:"recommendation_id"`
	Symbol           string       `json:"symbol"`
	Decision         Decision     `json:"decision"`
	EntryPrice       float64      `json:"entry_price"`
	Return7D         float64      `json:"return_7d"`
	Return30D        float64      `json:"return_30d"`
	Return90D        float64      `json:"return_90d"`
	Label            OutcomeLabel `json:"label"`
	RecordedAt       time.Time    `json:"recorded_at"`
}

// OutcomeFlatBand is the absolute 30-day return below which an outcome
// is FLAT regardless of direction.
const OutcomeFlatBand = 0.02

// LabelOutcome classifies a realized 30-day return against the decision
// that preceded it. BUY and HOLD endorse long exposure, so the label
// follows the return's sign; SELL and WAIT argue for staying out, so the
// sign inverts.
func LabelOutcome(decision Decision, return30D float64) OutcomeLabel {
	if math.Abs(return30D) < OutcomeFlatBand {
		return OutcomeFlat
	}

	directed := return30D
	if decision == DecisionSell || decision == DecisionWait {
		directed = -return30D
	}
	if directed > 0 {
		return OutcomeWin
	}
	return OutcomeLoss
}
