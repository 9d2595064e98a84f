package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/practice-metrics/internal/model"
)

func TestComputeClientFeedback(t *testing.T) {
	tests := []struct {
		name         string
		ratings      []float64
		wantAvg      float64
		wantRatings  int
		wantExcluded int
	}{
		{"none", nil, 0, 0, 0},
		{"single", []float64{4}, 4, 1, 0},
		{"rounds to one decimal", []float64{5, 4, 4}, 4.3, 3, 0},
		{"excludes out of range", []float64{5, 0, 6, 3}, 4, 2, 2},
		{"all invalid", []float64{0, 9}, 0, 0, 2},
		{"excludes non-finite", []float64{4, math.NaN(), math.Inf(1)}, 4, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := make([]model.Feedback, 0, len(tt.ratings))
			for _, r := range tt.ratings {
				fb = append(fb, model.Feedback{Rating: r})
			}
			got := ComputeClientFeedback(fb)
			assert.InDelta(t, tt.wantAvg, got.AverageRating, 1e-9)
			assert.Equal(t, tt.wantRatings, got.Ratings)
			assert.Equal(t, tt.wantExcluded, got.Excluded)
		})
	}
}

func TestProductivity(t *testing.T) {
	assert.Equal(t, 0, Productivity(nil))
	tasks := []model.Task{
		doneTask("a", testNow, 0),
		openTask("b", nil),
		openTask("c", nil),
	}
	assert.Equal(t, 33, Productivity(tasks))
}
