// Package tasks applies task mutations and keeps each matter's progress
// snapshot in step with its tasks.
package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/scorer"
	"github.com/sells-group/practice-metrics/internal/store"
)

// ErrInvalid wraps validation failures of caller input.
var ErrInvalid = eris.New("tasks: invalid input")

// Transactor runs task mutations in a single transaction.
type Transactor interface {
	WithTaskTx(ctx context.Context, fn func(tx store.TaskTx) error) error
}

// Invalidator drops cached metrics for a matter.
type Invalidator interface {
	InvalidateMatter(ctx context.Context, matterID string)
}

// NewTask is the caller-supplied part of a task.
type NewTask struct {
	Label   string      `json:"label"`
	Stage   model.Stage `json:"stage"`
	Weight  float64     `json:"weight"`
	DueDate *time.Time  `json:"due_date,omitempty"`
}

// Result is a mutated task together with the recomputed progress of its
// matter. Task is nil after a delete.
type Result struct {
	Task     *model.Task    `json:"task,omitempty"`
	Progress model.Progress `json:"progress"`
}

// Service creates, updates and deletes tasks.
type Service struct {
	tx          Transactor
	invalidator Invalidator
	nowFunc     func() time.Time
	newID       func() string
}

// NewService creates a Service. inv may be nil.
func NewService(tx Transactor, inv Invalidator) *Service {
	return &Service{
		tx:          tx,
		invalidator: inv,
		nowFunc:     time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// Create adds a task to a matter in the Not Started state.
func (s *Service) Create(ctx context.Context, matterID string, in NewTask) (*Result, error) {
	if strings.TrimSpace(matterID) == "" {
		return nil, eris.Wrap(ErrInvalid, "matter id is required")
	}
	t := model.Task{
		ID:        s.newID(),
		MatterID:  matterID,
		Label:     strings.TrimSpace(in.Label),
		Stage:     in.Stage,
		Weight:    in.Weight,
		Status:    model.TaskStatusNotStarted,
		DueDate:   in.DueDate,
		CreatedAt: s.nowFunc().UTC(),
	}
	if err := t.Validate(); err != nil {
		return nil, eris.Wrap(ErrInvalid, err.Error())
	}

	res, err := s.mutate(ctx, matterID, "create", func(ctx context.Context, tx store.TaskTx) error {
		return tx.InsertTask(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	res.Task = &t
	return res, nil
}

// UpdateStatus moves a task to status. completed_at is set to now when the
// status becomes Completed and cleared otherwise.
func (s *Service) UpdateStatus(ctx context.Context, matterID, taskID string, status model.TaskStatus) (*Result, error) {
	if !status.IsValid() {
		return nil, eris.Wrapf(ErrInvalid, "unknown status %q", status)
	}
	var completedAt *time.Time
	if status == model.TaskStatusCompleted {
		now := s.nowFunc().UTC()
		completedAt = &now
	}

	var updated *model.Task
	res, err := s.mutate(ctx, matterID, "update_status", func(ctx context.Context, tx store.TaskTx) error {
		return tx.UpdateTaskStatus(ctx, matterID, taskID, status, completedAt)
	}, func(tasks []model.Task) {
		for i := range tasks {
			if tasks[i].ID == taskID {
				t := tasks[i]
				updated = &t
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	res.Task = updated
	return res, nil
}

// Delete removes a task from a matter.
func (s *Service) Delete(ctx context.Context, matterID, taskID string) (*Result, error) {
	return s.mutate(ctx, matterID, "delete", func(ctx context.Context, tx store.TaskTx) error {
		return tx.DeleteTask(ctx, matterID, taskID)
	})
}

// mutate applies change, reloads the matter's tasks, recomputes progress
// and saves the snapshot, all in one transaction.
func (s *Service) mutate(ctx context.Context, matterID, op string, change func(context.Context, store.TaskTx) error, inspect ...func([]model.Task)) (*Result, error) {
	var progress model.Progress
	err := s.tx.WithTaskTx(ctx, func(tx store.TaskTx) error {
		if err := change(ctx, tx); err != nil {
			return err
		}
		tasks, err := tx.GetTasks(ctx, matterID)
		if err != nil {
			return err
		}
		for _, fn := range inspect {
			fn(tasks)
		}
		progress = scorer.ComputeProgress(tasks)
		return tx.SaveMatterProgress(ctx, matterID, progress)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "tasks: %s on matter %s", op, matterID)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateMatter(ctx, matterID)
	}

	zap.L().Info("tasks: progress recomputed",
		zap.String("matter_id", matterID),
		zap.String("op", op),
		zap.Float64("overall", progress.Overall),
		zap.Int("total_tasks", progress.TotalTasks),
	)
	return &Result{Progress: progress}, nil
}
