package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Stage is one of the fixed, ordered phases a task belongs to.
type Stage string

const (
	StageIntake     Stage = "Intake"
	StagePlanning   Stage = "Planning"
	StageActiveWork Stage = "Active Work"
	StageClosure    Stage = "Closure"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{StageIntake, StagePlanning, StageActiveWork, StageClosure}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	switch s {
	case StageIntake, StagePlanning, StageActiveWork, StageClosure:
		return true
	default:
		return false
	}
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "Not Started"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusNotStarted, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// Task is a unit of work on a matter.
type Task struct {
	ID          string     `json:"id"`
	MatterID    string     `json:"matter_id"`
	Label       string     `json:"label"`
	Stage       Stage      `json:"stage"`
	Weight      float64    `json:"weight"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// IsCompleted reports whether the task is done.
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// Validate checks the domain invariants of a task.
func (t Task) Validate() error {
	if !finite(t.Weight) || t.Weight <= 0 {
		return eris.Errorf("task %s: weight must be > 0, got %g", t.ID, t.Weight)
	}
	if !t.Stage.IsValid() {
		return eris.Errorf("task %s: unknown stage %q", t.ID, t.Stage)
	}
	if !t.Status.IsValid() {
		return eris.Errorf("task %s: unknown status %q", t.ID, t.Status)
	}
	if t.IsCompleted() != (t.CompletedAt != nil) {
		return eris.Errorf("task %s: completed_at must be set iff status is %s", t.ID, TaskStatusCompleted)
	}
	return nil
}

// Progress is the derived completion snapshot cached on a matter. It is
// always regenerable from the matter's tasks.
type Progress struct {
	Overall         float64           `json:"overall"`
	ByStage         map[Stage]float64 `json:"by_stage"`
	CompletedTasks  int               `json:"completed_tasks"`
	TotalTasks      int               `json:"total_tasks"`
	CompletedWeight float64           `json:"completed_weight"`
	TotalWeight     float64           `json:"total_weight"`
}

// Matter is a legal case or engagement.
type Matter struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profile_id"`
	Title     string    `json:"title"`
	Progress  *Progress `json:"progress,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
