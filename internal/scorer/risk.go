package scorer

import (
	"github.com/sells-group/practice-metrics/internal/model"
)

// Risk tier upper bounds. A score equal to a bound belongs to the lower tier.
const (
	riskLowMax    = 30
	riskMediumMax = 70
)

// Risk is a classified risk assessment.
type Risk struct {
	Score float64         `json:"score"`
	Level model.RiskLevel `json:"level"`
}

// ClassifyRisk maps a 0-100 risk score to its tier.
func ClassifyRisk(score float64) model.RiskLevel {
	switch {
	case score > riskMediumMax:
		return model.RiskHigh
	case score > riskLowMax:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// ComputeRisk classifies an assessment.
func ComputeRisk(a model.RiskAssessment) Risk {
	return Risk{Score: a.RiskScore, Level: ClassifyRisk(a.RiskScore)}
}

// RiskBucket counts assessments in one tier.
type RiskBucket struct {
	Level model.RiskLevel `json:"risk_level"`
	Count int             `json:"count"`
}

// RiskDistribution counts assessments per tier, always returning Low, Medium
// and High in that order.
func RiskDistribution(assessments []model.RiskAssessment) []RiskBucket {
	counts := make(map[model.RiskLevel]int, len(model.RiskLevels))
	for _, a := range assessments {
		counts[ClassifyRisk(a.RiskScore)]++
	}
	out := make([]RiskBucket, 0, len(model.RiskLevels))
	for _, l := range model.RiskLevels {
		out = append(out, RiskBucket{Level: l, Count: counts[l]})
	}
	return out
}
