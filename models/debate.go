package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type DebateRole string

const (
	DebateBull DebateRole = "bull"
	DebateBear DebateRole = "bear"
)

// DebateState tracks where the debate is in its lifecycle.
type DebateState string

const (
	DebateOpen      DebateState = "OPEN"
	DebateArguing   DebateState = "ARGUING"
	DebateConverged DebateState = "CONVERGED"
	DebateExhausted DebateState = "EXHAUSTED"
)

func (s DebateState) Terminal() bool {
	return s == DebateConverged || s == DebateExhausted
}

// DebateTurn is one argument by one side in one round.
type DebateTurn struct {
	Round     int         `json:"round"` // 1-based
	Role      DebateRole  `json:"role"`
	Argument  string      `json:"argument"`
	MemoryIDs []uuid.UUID `json:"memory_ids,omitempty"`
	Degraded  bool        `json:"degraded,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// DebateTranscript is the append-only record of a debate. Turns may only be
// added while the transcript is OPEN or ARGUING; termination freezes it.
type DebateTranscript struct {
	Opening   string      `json:"opening"`
	Turns     []DebateTurn `json:"turns"`
	State     DebateState `json:"state"`
	Position  string      `json:"position,omitempty"` // judge synthesis, set at termination
	CreatedAt time.Time   `json:"created_at"`
}

func NewDebateTranscript(opening string) *DebateTranscript {
	return &DebateTranscript{
		Opening:   opening,
		State:     DebateOpen,
		CreatedAt: time.Now(),
	}
}

// AddTurn appends a turn, enforcing the append-only-until-terminal rule.
func (t *DebateTranscript) AddTurn(turn DebateTurn) error {
	if t.State.Terminal() {
		return fmt.Errorf("debate transcript is %s, no further turns allowed", t.State)
	}
	t.State = DebateArguing
	t.Turns = append(t.Turns, turn)
	return nil
}

// Terminate freezes the transcript in a terminal state with the judge's
// synthesized position.
func (t *DebateTranscript) Terminate(state DebateState, position string) error {
	if !state.Terminal() {
		return fmt.Errorf("%s is not a terminal debate state", state)
	}
	if t.State.Terminal() {
		return fmt.Errorf("debate transcript already terminated as %s", t.State)
	}
	t.State = state
	t.Position = position
	return nil
}

// Rounds is the number of completed round pairs.
func (t *DebateTranscript) Rounds() int {
	max := 0
	for _, turn := range t.Turns {
		if turn.Round > max {
			max = turn.Round
		}
	}
	return max
}

// TurnsFor returns all turns by one side, in order.
func (t *DebateTranscript) TurnsFor(role DebateRole) []DebateTurn {
	var turns []DebateTurn
	for _, turn := range t.Turns {
		if turn.Role == role {
			turns = append(turns, turn)
		}
	}
	return turns
}

// LastArgument returns the most recent argument by one side.
func (t *DebateTranscript) LastArgument(role DebateRole) (string, bool) {
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Role == role {
			return t.Turns[i].Argument, true
		}
	}
	return "", false
}
