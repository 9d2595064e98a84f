package scorer

import (
	"math"

	"github.com/sells-group/practice-metrics/internal/model"
)

// Billing compares predicted billing (rate x hours) with the amount actually
// billed. EfficiencyRatio is a percentage and is deliberately not clamped:
// values above 100 mean more was billed than the logged hours predict.
type Billing struct {
	Predicted         float64 `json:"predicted"`
	Actual            float64 `json:"actual"`
	EfficiencyRatio   int     `json:"efficiency_ratio"`
	TotalHours        float64 `json:"total_hours"`
	HoursLoggedManual float64 `json:"hours_logged_manual"`
	HoursLoggedAuto   float64 `json:"hours_logged_auto"`
}

// ComputeBilling reconciles one billing record. Missing hours and amounts
// count as zero; a zero prediction yields a zero ratio.
func ComputeBilling(rec model.BillingRecord) Billing {
	b := Billing{
		HoursLoggedManual: valueOr(rec.HoursLoggedManual, 0),
		HoursLoggedAuto:   valueOr(rec.HoursLoggedAuto, 0),
		Actual:            valueOr(rec.TotalBilled, 0),
	}
	b.TotalHours = b.HoursLoggedManual + b.HoursLoggedAuto
	if rec.RateValue != nil {
		b.Predicted = *rec.RateValue * b.TotalHours
	}
	if b.Predicted > 0 {
		b.EfficiencyRatio = int(math.Round(b.Actual / b.Predicted * 100))
	}
	return b
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
