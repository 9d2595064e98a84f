package scorer

import (
	"time"

	"github.com/sells-group/practice-metrics/internal/model"
)

// BillingTotals aggregates billing across a practitioner's matters.
type BillingTotals struct {
	Matters           int     `json:"matters"`
	TotalHours        float64 `json:"total_hours"`
	TotalBilled       float64 `json:"total_billed"`
	AverageHourlyRate float64 `json:"average_hourly_rate"`
}

// SumBilling totals hours and billed amounts. The average hourly rate is 0
// when no hours are logged.
func SumBilling(records []model.BillingRecord) BillingTotals {
	t := BillingTotals{Matters: len(records)}
	for _, r := range records {
		t.TotalHours += r.TotalHours()
		t.TotalBilled += valueOr(r.TotalBilled, 0)
	}
	if t.TotalHours > 0 {
		t.AverageHourlyRate = t.TotalBilled / t.TotalHours
	}
	return t
}

// TaskTotals summarizes task throughput across matters.
type TaskTotals struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	OverdueTasks   int     `json:"overdue_tasks"`
	CompletionRate float64 `json:"completion_rate"`
	OverdueRate    float64 `json:"overdue_rate"`
}

// SummarizeTasks counts completed and overdue tasks as of now.
func SummarizeTasks(tasks []model.Task, now time.Time) TaskTotals {
	t := TaskTotals{TotalTasks: len(tasks)}
	for _, task := range tasks {
		switch {
		case task.IsCompleted():
			t.CompletedTasks++
		case task.DueDate != nil && task.DueDate.Before(now):
			t.OverdueTasks++
		}
	}
	t.CompletionRate = percent(float64(t.CompletedTasks), float64(t.TotalTasks))
	t.OverdueRate = percent(float64(t.OverdueTasks), float64(t.TotalTasks))
	return t
}
