package scorer

import (
	"math"

	"github.com/sells-group/practice-metrics/internal/model"
)

// ClientFeedback summarizes recent client ratings.
type ClientFeedback struct {
	AverageRating float64 `json:"average_rating"`
	Ratings       int     `json:"ratings"`
	Excluded      int     `json:"excluded,omitempty"`
}

// ComputeClientFeedback averages the valid ratings to one decimal place.
// Ratings outside [1,5] are excluded; no valid ratings yields 0.
func ComputeClientFeedback(feedback []model.Feedback) ClientFeedback {
	var cf ClientFeedback
	var sum float64
	for _, f := range feedback {
		if f.Validate() != nil {
			cf.Excluded++
			continue
		}
		sum += f.Rating
		cf.Ratings++
	}
	if cf.Ratings > 0 {
		cf.AverageRating = math.Round(sum/float64(cf.Ratings)*10) / 10
	}
	return cf
}

// Productivity is the rounded completion rate of a practitioner's recent
// tasks.
func Productivity(tasks []model.Task) int {
	return int(math.Round(CompletionRate(tasks)))
}
