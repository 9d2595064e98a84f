package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/practice-metrics/internal/model"
)

const day = 24 * time.Hour

// doneTask is a completed task finished offset after its due date.
func doneTask(id string, completed time.Time, offset time.Duration) model.Task {
	return model.Task{
		ID:          id,
		Stage:       model.StageActiveWork,
		Weight:      1,
		Status:      model.TaskStatusCompleted,
		DueDate:     ptrTime(completed.Add(-offset)),
		CompletedAt: ptrTime(completed),
	}
}

func openTask(id string, due *time.Time) model.Task {
	return model.Task{ID: id, Stage: model.StageActiveWork, Weight: 1, Status: model.TaskStatusInProgress, DueDate: due}
}

func TestComputeEfficiency_Empty(t *testing.T) {
	e := ComputeEfficiency(nil, testNow, DefaultEfficiencyWeights())
	assert.Equal(t, 0, e.Score)
	assert.Equal(t, 0.0, e.CompletionRate)
	assert.Equal(t, 0.0, e.AverageDurationDays)
}

func TestComputeEfficiency(t *testing.T) {
	w := DefaultEfficiencyWeights()

	tests := []struct {
		name      string
		tasks     []model.Task
		wantScore int
		wantRate  float64
		wantAvg   float64
	}{
		{
			name:      "all on time",
			tasks:     []model.Task{doneTask("a", testNow, 0), doneTask("b", testNow, 0)},
			wantScore: 100, wantRate: 100, wantAvg: 0,
		},
		{
			name:      "two days late on average",
			tasks:     []model.Task{doneTask("a", testNow, 1*day), doneTask("b", testNow, 3*day)},
			wantScore: 94, wantRate: 100, wantAvg: 2,
		},
		{
			name:      "half complete, on time",
			tasks:     []model.Task{doneTask("a", testNow, 0), openTask("b", nil)},
			wantScore: 65, wantRate: 50, wantAvg: 0,
		},
		{
			name:      "very late floors duration term",
			tasks:     []model.Task{doneTask("a", testNow, 30*day)},
			wantScore: 70, wantRate: 100, wantAvg: 30,
		},
		{
			name:      "early completion caps duration term",
			tasks:     []model.Task{doneTask("a", testNow, -5*day), doneTask("b", testNow, -20*day)},
			wantScore: 100, wantRate: 100, wantAvg: -12.5,
		},
		{
			name:      "nothing complete",
			tasks:     []model.Task{openTask("a", nil), openTask("b", nil)},
			wantScore: 30, wantRate: 0, wantAvg: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ComputeEfficiency(tt.tasks, testNow, w)
			assert.Equal(t, tt.wantScore, e.Score)
			assert.InDelta(t, tt.wantRate, e.CompletionRate, 1e-9)
			assert.InDelta(t, tt.wantAvg, e.AverageDurationDays, 1e-9)
		})
	}
}

func TestComputeEfficiency_CompletedWithoutDueDateSkipsDuration(t *testing.T) {
	tasks := []model.Task{
		{ID: "a", Stage: model.StageIntake, Weight: 1, Status: model.TaskStatusCompleted, CompletedAt: ptrTime(testNow)},
		doneTask("b", testNow, 4*day),
	}
	e := ComputeEfficiency(tasks, testNow, DefaultEfficiencyWeights())
	assert.InDelta(t, 4, e.AverageDurationDays, 1e-9)
	assert.Equal(t, 2, e.CompletedTasks)
}

func TestComputeEfficiency_OverdueCount(t *testing.T) {
	tasks := []model.Task{
		openTask("past", ptrTime(testNow.Add(-day))),
		openTask("future", ptrTime(testNow.Add(day))),
		openTask("undated", nil),
		doneTask("done", testNow, 2*day),
	}
	e := ComputeEfficiency(tasks, testNow, DefaultEfficiencyWeights())
	assert.Equal(t, 1, e.OverdueTasks)
	assert.Equal(t, 4, e.TotalTasks)
	assert.Equal(t, 1, e.CompletedTasks)
}

func TestComputeEfficiency_AlwaysInRange(t *testing.T) {
	w := DefaultEfficiencyWeights()
	offsets := []time.Duration{-1000 * day, -3 * day, 0, 2 * time.Hour, 9 * day, 500 * day}
	for _, off := range offsets {
		for open := 0; open < 3; open++ {
			tasks := []model.Task{doneTask("a", testNow, off)}
			for i := 0; i < open; i++ {
				tasks = append(tasks, openTask("o", nil))
			}
			e := ComputeEfficiency(tasks, testNow, w)
			assert.GreaterOrEqual(t, e.Score, 0)
			assert.LessOrEqual(t, e.Score, 100)
		}
	}
}

func TestInWindow(t *testing.T) {
	recent := doneTask("recent", testNow.Add(-2*day), 0)
	old := doneTask("old", testNow.Add(-40*day), 0)
	open := openTask("open", nil)
	tasks := []model.Task{recent, old, open}

	got := InWindow(tasks, testNow, 30*day)
	ids := make([]string, 0, len(got))
	for _, tk := range got {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"recent", "open"}, ids)

	assert.Len(t, InWindow(tasks, testNow, 0), 3)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, CompletionRate(nil))
	assert.InDelta(t, 50, CompletionRate([]model.Task{doneTask("a", testNow, 0), openTask("b", nil)}), 1e-9)
}
