// Package scorer implements the pure metric formulas behind matter and
// practitioner dashboards: weighted progress, efficiency, billing
// reconciliation, risk tiers and profile completeness.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/practice-metrics/internal/config"
)

// DefaultMetricsConfig returns a config.MetricsConfig with the production
// weighting constants.
func DefaultMetricsConfig() config.MetricsConfig {
	return config.MetricsConfig{
		FetchTimeoutMs:         3000,
		EfficiencyWindowDays:   30,
		ProductivityWindowDays: 7,
		FeedbackLimit:          10,
		Efficiency:             DefaultEfficiencyWeights(),
		Workflow:               DefaultWorkflowWeights(),
	}
}

// DefaultEfficiencyWeights returns the 70/30 completion/timeliness blend with
// a 10 point penalty per day late.
func DefaultEfficiencyWeights() config.EfficiencyWeights {
	return config.EfficiencyWeights{
		CompletionWeight:  0.7,
		DurationWeight:    0.3,
		PenaltyPerDayLate: 10,
	}
}

// DefaultWorkflowWeights returns the 30/40/15/15 completeness allocation.
// Points sum to 100.
func DefaultWorkflowWeights() config.WorkflowWeights {
	return config.WorkflowWeights{
		Baseline:       30,
		RequiredFields: 40,
		Certifications: 15,
		Avatar:         15,
	}
}

// ValidateConfig checks that a MetricsConfig is internally consistent.
func ValidateConfig(c config.MetricsConfig) error {
	var errs []string

	e := c.Efficiency
	if e.CompletionWeight < 0 || e.DurationWeight < 0 {
		errs = append(errs, "efficiency weights must be >= 0")
	}
	if math.Abs(e.CompletionWeight+e.DurationWeight-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("efficiency weights should sum to 1, got %.3f", e.CompletionWeight+e.DurationWeight))
	}
	if e.PenaltyPerDayLate < 0 {
		errs = append(errs, "efficiency penalty_per_day_late must be >= 0")
	}

	w := c.Workflow
	points := []struct {
		name string
		v    float64
	}{
		{"baseline", w.Baseline},
		{"required_fields", w.RequiredFields},
		{"certifications", w.Certifications},
		{"avatar", w.Avatar},
	}
	for _, p := range points {
		if p.v < 0 {
			errs = append(errs, fmt.Sprintf("workflow %s must be >= 0", p.name))
		}
	}

	if c.EfficiencyWindowDays < 0 {
		errs = append(errs, "efficiency_window_days must be >= 0")
	}
	if c.ProductivityWindowDays < 0 {
		errs = append(errs, "productivity_window_days must be >= 0")
	}
	if c.FeedbackLimit <= 0 {
		errs = append(errs, "feedback_limit must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// percent returns part/whole*100, or 0 when whole is not positive.
func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
