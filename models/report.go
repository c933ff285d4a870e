package models

import "time"

// AnalystRole identifies one of the independent analysis perspectives run
// during the Analyst Stage.
type AnalystRole string

const (
	RoleMarket       AnalystRole = "market"
	RoleSentiment    AnalystRole = "sentiment"
	RoleNews         AnalystRole = "news"
	RoleFundamentals AnalystRole = "fundamentals"
)

func AllAnalystRoles() []AnalystRole {
	return []AnalystRole{RoleMarket, RoleSentiment, RoleNews, RoleFundamentals}
}

func (r AnalystRole) Valid() bool {
	switch r {
	case RoleMarket, RoleSentiment, RoleNews, RoleFundamentals:
		return true
	}
	return false
}

type Stance string

const (
	StanceBullish Stance = "BULLISH"
	StanceBearish Stance = "BEARISH"
	StanceNeutral Stance = "NEUTRAL"
)

func (s Stance) Valid() bool {
	switch s {
	case StanceBullish, StanceBearish, StanceNeutral:
		return true
	}
	return false
}

// AnalystReport is the immutable output of one analyst role for one run.
// Exactly one exists per configured role, either usable or a degraded
// placeholder.
type AnalystReport struct {
	Role           AnalystRole        `json:"role"`
	Stance         Stance             `json:"stance"`
	Score          float64            `json:"score"` // 0-100
	Findings       string             `json:"findings"`
	KeyPoints      []string           `json:"key_points,omitempty"`
	Snapshot       *IndicatorSnapshot `json:"snapshot,omitempty"`
	Sources        []string           `json:"sources,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	Degraded       bool               `json:"degraded"`
	DegradedReason string             `json:"degraded_reason,omitempty"`
}

// NewDegradedReport builds the placeholder emitted when a role fails after
// retries. It is neutral and carries no score weight.
func NewDegradedReport(role AnalystRole, reason string) AnalystReport {
	return AnalystReport{
		Role:           role,
		Stance:         StanceNeutral,
		Score:          0,
		Findings:       "insufficient data",
		CreatedAt:      time.Now(),
		Degraded:       true,
		DegradedReason: reason,
	}
}

// Usable reports whether the report carries real analysis.
func (r AnalystReport) Usable() bool {
	return !r.Degraded
}

// UsableReports filters degraded placeholders out.
func UsableReports(reports []AnalystReport) []AnalystReport {
	usable := make([]AnalystReport, 0, len(reports))
	for _, r := range reports {
		if r.Usable() {
			usable = append(usable, r)
		}
	}
	return usable
}

// ReportByRole returns the report for the given role, if present.
func ReportByRole(reports []AnalystReport, role AnalystRole) (AnalystReport, bool) {
	for _, r := range reports {
		if r.Role == role {
			return r, true
		}
	}
	return AnalystReport{}, false
}
