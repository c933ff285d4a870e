// Package gates holds the deterministic four-gate synthesizer: pure
// scoring over the run snapshot, analyst reports, and risk reviews,
// followed by the decision rule. No reasoner calls happen here.
package gates

import (
	"trade-council/config"
	"trade-council/models"
)

// Weights blends the four gate scores into the composite. Profiles keep
// the sum at 1.0.
type Weights struct {
	Fundamental float64
	Technical   float64
	Risk        float64
	Timing      float64
}

// Sum returns the total weight, 1.0 for every shipped profile.
func (w Weights) Sum() float64 {
	return w.Fundamental + w.Technical + w.Risk + w.Timing
}

// Profile bundles gate weights with the composite thresholds that admit
// BUY and SELL decisions.
type Profile struct {
	Name          string
	Weights       Weights
	BuyThreshold  float64
	SellThreshold float64
}

// DefaultProfile is the balanced profile and mirrors the configuration
// defaults.
func DefaultProfile() Profile {
	return Profile{
		Name: "default",
		Weights: Weights{
			Fundamental: 0.30,
			Technical:   0.30,
			Risk:        0.25,
			Timing:      0.15,
		},
		BuyThreshold:  60,
		SellThreshold: 35,
	}
}

// ConservativeProfile weights risk heavier and demands a stronger
// composite before buying.
func ConservativeProfile() Profile {
	return Profile{
		Name: "conservative",
		Weights: Weights{
			Fundamental: 0.25,
			Technical:   0.25,
			Risk:        0.35,
			Timing:      0.15,
		},
		BuyThreshold:  70,
		SellThreshold: 30,
	}
}

// AggressiveProfile favors technicals and timing and trades on weaker
// composites.
func AggressiveProfile() Profile {
	return Profile{
		Name: "aggressive",
		Weights: Weights{
			Fundamental: 0.25,
			Technical:   0.35,
			Risk:        0.15,
			Timing:      0.25,
		},
		BuyThreshold:  55,
		SellThreshold: 40,
	}
}

// FromConfig returns the profile named by the configuration. The custom
// profile reads its weights and thresholds from the environment; named
// profiles carry fixed values.
func FromConfig(cfg config.GatesConfig) Profile {
	switch cfg.StrategyProfile {
	case "conservative":
		return ConservativeProfile()
	case "aggressive":
		return AggressiveProfile()
	case "custom":
		return Profile{
			Name: "custom",
			Weights: Weights{
				Fundamental: cfg.WeightFundamental,
				Technical:   cfg.WeightTechnical,
				Risk:        cfg.WeightRisk,
				Timing:      cfg.WeightTiming,
			},
			BuyThreshold:  cfg.BuyThreshold,
			SellThreshold: cfg.SellThreshold,
		}
	default:
		return DefaultProfile()
	}
}

// Composite blends gate scores with the profile weights. Missing gates
// contribute zero.
func (p Profile) Composite(results []models.GateResult) float64 {
	var composite float64
	for _, g := range results {
		switch g.Name {
		case models.GateFundamental:
			composite += g.Score * p.Weights.Fundamental
		case models.GateTechnical:
			composite += g.Score * p.Weights.Technical
		case models.GateRisk:
			composite += g.Score * p.Weights.Risk
		case models.GateTiming:
			composite += g.Score * p.Weights.Timing
		}
	}
	return composite
}
