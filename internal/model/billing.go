package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// BillingRecord holds the billing inputs for one matter. Nil pointers mean
// the value was never recorded.
type BillingRecord struct {
	ID                string    `json:"id"`
	MatterID          string    `json:"matter_id"`
	RateValue         *float64  `json:"rate_value,omitempty"`
	HoursLoggedManual *float64  `json:"hours_logged_manual,omitempty"`
	HoursLoggedAuto   *float64  `json:"hours_logged_auto,omitempty"`
	TotalBilled       *float64  `json:"total_billed,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TotalHours returns manual plus automatically captured hours, treating
// missing values as zero.
func (b BillingRecord) TotalHours() float64 {
	return deref(b.HoursLoggedManual) + deref(b.HoursLoggedAuto)
}

// Validate checks that every recorded amount is finite and that rate and
// hours are not negative.
func (b BillingRecord) Validate() error {
	fields := []struct {
		name          string
		v             *float64
		allowNegative bool
	}{
		{"rate_value", b.RateValue, false},
		{"hours_logged_manual", b.HoursLoggedManual, false},
		{"hours_logged_auto", b.HoursLoggedAuto, false},
		{"total_billed", b.TotalBilled, true},
	}
	for _, f := range fields {
		if f.v == nil {
			continue
		}
		if !finite(*f.v) {
			return eris.Errorf("billing %s: %s must be finite, got %g", b.ID, f.name, *f.v)
		}
		if !f.allowNegative && *f.v < 0 {
			return eris.Errorf("billing %s: %s must be >= 0, got %g", b.ID, f.name, *f.v)
		}
	}
	return nil
}

// RiskLevel is the tiered label derived from a numeric risk score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevels lists levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// RiskAssessment is an externally produced risk score for a matter.
type RiskAssessment struct {
	MatterID         string    `json:"matter_id"`
	RiskScore        float64   `json:"risk_score"`
	ComplianceStatus string    `json:"compliance_status,omitempty"`
	AssessedAt       time.Time `json:"assessed_at"`
}

// Validate checks that the score is a finite value in [0,100].
func (r RiskAssessment) Validate() error {
	if !finite(r.RiskScore) || r.RiskScore < 0 || r.RiskScore > 100 {
		return eris.Errorf("risk %s: risk_score must be in [0,100], got %g", r.MatterID, r.RiskScore)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
