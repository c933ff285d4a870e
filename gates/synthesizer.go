package gates

import (
	"trade-council/config"
	"trade-council/models"
	"trade-council/observability"
)

// Degraded artifact classes. Each class present costs 15 confidence
// points, capped at 45.
const (
	ClassAnalyst = "analyst"
	ClassDebate  = "debate"
	ClassRisk    = "risk"
)

const (
	degradedPenaltyPerClass = 15.0
	degradedPenaltyCap      = 45.0
)

// Input carries everything the synthesizer scores. Degradation of the
// debate is orchestrator knowledge; report and review degradation is
// read off the artifacts themselves.
type Input struct {
	Snapshot       *models.IndicatorSnapshot
	Reports        []models.AnalystReport
	Reviews        []models.RiskReview
	DebateDegraded bool
}

// Synthesis is the deterministic outcome of the four gates and the
// decision rule.
type Synthesis struct {
	Decision        models.Decision
	Confidence      float64
	Composite       float64
	Gates           []models.GateResult
	DegradedClasses []string
}

// Synthesizer runs the four gates and the decision rule under one
// strategy profile.
type Synthesizer struct {
	profile         Profile
	drawdownCeiling float64
}

// NewSynthesizer builds a synthesizer from the gate configuration.
func NewSynthesizer(cfg config.GatesConfig) *Synthesizer {
	return &Synthesizer{
		profile:         FromConfig(cfg),
		drawdownCeiling: cfg.DrawdownCeiling,
	}
}

// Profile exposes the active strategy profile.
func (s *Synthesizer) Profile() Profile {
	return s.profile
}

// Synthesize scores the four gates, applies the decision rule, and
// derives confidence. Same input, same output: nothing here consults a
// clock, a reasoner, or randomness.
func (s *Synthesizer) Synthesize(in Input) Synthesis {
	fundReport := reportPtr(in.Reports, models.RoleFundamentals)

	results := []models.GateResult{
		FundamentalScore(in.Snapshot, fundReport),
		TechnicalScore(in.Snapshot),
		RiskScore(in.Snapshot, in.Reviews, s.drawdownCeiling),
		TimingScore(in.Snapshot),
	}

	metrics := observability.GetMetrics()
	for _, g := range results {
		metrics.RecordGate(string(g.Name), string(g.Verdict), g.Score)
	}

	composite := s.profile.Composite(results)
	decision := s.decide(composite, results)

	degraded := degradedClasses(in)
	penalty := float64(len(degraded)) * degradedPenaltyPerClass
	if penalty > degradedPenaltyCap {
		penalty = degradedPenaltyCap
	}
	confidence := models.ClampScore(composite - penalty)

	observability.Debug("synthesis complete",
		"decision", decision,
		"composite", composite,
		"confidence", confidence,
		"degraded_classes", degraded)

	return Synthesis{
		Decision:        decision,
		Confidence:      confidence,
		Composite:       composite,
		Gates:           results,
		DegradedClasses: degraded,
	}
}

// decide applies the decision rule. BUY needs a bullish composite with
// every entry guard passing; a WARN timing gate alone downgrades BUY to
// WAIT; SELL is the symmetric negative and ignores timing. Everything
// else holds.
func (s *Synthesizer) decide(composite float64, results []models.GateResult) models.Decision {
	fund, _ := models.GateByName(results, models.GateFundamental)
	tech, _ := models.GateByName(results, models.GateTechnical)
	risk, _ := models.GateByName(results, models.GateRisk)
	timing, _ := models.GateByName(results, models.GateTiming)

	buyGuards := fund.Verdict.AtLeast(models.VerdictWarn) &&
		tech.Verdict.AtLeast(models.VerdictWarn) &&
		risk.Verdict != models.VerdictFail

	if composite >= s.profile.BuyThreshold && buyGuards {
		switch timing.Verdict {
		case models.VerdictPass:
			return models.DecisionBuy
		case models.VerdictWarn:
			return models.DecisionWait
		}
		// Timing FAIL: entry quality is too poor even to wait on.
		return models.DecisionHold
	}

	sellGuards := !fund.Verdict.AtLeast(models.VerdictPass) &&
		!tech.Verdict.AtLeast(models.VerdictPass) &&
		risk.Verdict != models.VerdictFail

	if composite <= s.profile.SellThreshold && sellGuards {
		return models.DecisionSell
	}

	return models.DecisionHold
}

// degradedClasses lists the artifact classes that carry degraded
// placeholders, in stable order.
func degradedClasses(in Input) []string {
	var classes []string

	for _, r := range in.Reports {
		if r.Degraded {
			classes = append(classes, ClassAnalyst)
			break
		}
	}
	if in.DebateDegraded {
		classes = append(classes, ClassDebate)
	}
	for _, r := range in.Reviews {
		if r.Degraded {
			classes = append(classes, ClassRisk)
			break
		}
	}

	return classes
}

func reportPtr(reports []models.AnalystReport, role models.AnalystRole) *models.AnalystReport {
	if r, ok := models.ReportByRole(reports, role); ok {
		return &r
	}
	return nil
}
