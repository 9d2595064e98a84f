package scorer

import (
	"math"
	"time"

	"github.com/sells-group/practice-metrics/internal/config"
	"github.com/sells-group/practice-metrics/internal/model"
)

// Efficiency blends task completion rate with timeliness.
type Efficiency struct {
	Score               int     `json:"score"`
	CompletionRate      float64 `json:"completion_rate"`
	AverageDurationDays float64 `json:"average_duration_days"`
	CompletedTasks      int     `json:"completed_tasks"`
	TotalTasks          int     `json:"total_tasks"`
	OverdueTasks        int     `json:"overdue_tasks"`
}

// InWindow restricts tasks to a trailing window ending at now. Completed
// tasks are kept when they were completed inside the window; open tasks are
// always kept because they still count against the completion rate. A
// non-positive window keeps every task.
func InWindow(tasks []model.Task, now time.Time, window time.Duration) []model.Task {
	if window <= 0 {
		return tasks
	}
	since := now.Add(-window)
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsCompleted() && t.CompletedAt != nil && t.CompletedAt.Before(since) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CompletionRate returns completed/total*100, or 0 for an empty list.
func CompletionRate(tasks []model.Task) float64 {
	var done int
	for _, t := range tasks {
		if t.IsCompleted() {
			done++
		}
	}
	return percent(float64(done), float64(len(tasks)))
}

// ComputeEfficiency scores a task list; an empty list scores 0. Duration is
// measured from due date to completion, so early completions contribute
// negative days. The timeliness term is capped to [0,100] either way.
func ComputeEfficiency(tasks []model.Task, now time.Time, w config.EfficiencyWeights) Efficiency {
	e := Efficiency{TotalTasks: len(tasks)}
	if e.TotalTasks == 0 {
		return e
	}

	var totalDays float64
	var timed int
	for _, t := range tasks {
		if !t.IsCompleted() {
			if t.DueDate != nil && t.DueDate.Before(now) {
				e.OverdueTasks++
			}
			continue
		}
		e.CompletedTasks++
		if t.DueDate != nil && t.CompletedAt != nil {
			totalDays += t.CompletedAt.Sub(*t.DueDate).Hours() / 24
			timed++
		}
	}

	e.CompletionRate = percent(float64(e.CompletedTasks), float64(e.TotalTasks))
	if timed > 0 {
		e.AverageDurationDays = totalDays / float64(timed)
	}

	timeliness := clamp(100-e.AverageDurationDays*w.PenaltyPerDayLate, 0, 100)
	raw := e.CompletionRate*w.CompletionWeight + timeliness*w.DurationWeight
	e.Score = int(clamp(math.Round(raw), 0, 100))
	return e
}
