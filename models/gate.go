package models

// GateName identifies one of the four deterministic gates.
type GateName string

const (
	GateFundamental GateName = "fundamental"
	GateTechnical   GateName = "technical"
	GateRisk        GateName = "risk"
	GateTiming      GateName = "timing"
)

func AllGateNames() []GateName {
	return []GateName{GateFundamental, GateTechnical, GateRisk, GateTiming}
}

type GateVerdict string

const (
	VerdictPass GateVerdict = "PASS"
	VerdictWarn GateVerdict = "WARN"
	VerdictFail GateVerdict = "FAIL"
)

// Score thresholds for the verdict mapping.
const (
	PassThreshold = 70.0
	WarnThreshold = 40.0
)

// VerdictFromScore maps a 0-100 score onto PASS/WARN/FAIL.
func VerdictFromScore(score float64) GateVerdict {
	switch {
	case score >= PassThreshold:
		return VerdictPass
	case score >= WarnThreshold:
		return VerdictWarn
	default:
		return VerdictFail
	}
}

func (v GateVerdict) rank() int {
	switch v {
	case VerdictPass:
		return 2
	case VerdictWarn:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether v is at least as favorable as other
// (PASS > WARN > FAIL).
func (v GateVerdict) AtLeast(other GateVerdict) bool {
	return v.rank() >= other.rank()
}

// GateResult is one gate's immutable outcome for a run.
type GateResult struct {
	Name      GateName    `json:"name"`
	Verdict   GateVerdict `json:"verdict"`
	Score     float64     `json:"score"` // 0-100
	Reasoning string      `json:"reasoning"`
}

// NewGateResult clamps the score into [0,100] and derives the verdict.
func NewGateResult(name GateName, score float64, reasoning string) GateResult {
	score = ClampScore(score)
	return GateResult{
		Name:      name,
		Verdict:   VerdictFromScore(score),
		Score:     score,
		Reasoning: reasoning,
	}
}

// GateByName returns the result for the given gate, if present.
func GateByName(gates []GateResult, name GateName) (GateResult, bool) {
	for _, g := range gates {
		if g.Name == name {
			return g, true
		}
	}
	return GateResult{}, false
}

// ClampScore bounds a score into [0,100].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
