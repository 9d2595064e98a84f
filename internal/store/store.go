package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/practice-metrics/internal/model"
)

// ErrNotFound is returned when a single requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Reader is the set of read contracts the metrics engine consumes. List
// methods return an empty slice, never ErrNotFound.
type Reader interface {
	GetTasks(ctx context.Context, matterID string) ([]model.Task, error)
	GetBillingRecord(ctx context.Context, matterID string) (*model.BillingRecord, error)
	GetRiskAssessment(ctx context.Context, matterID string) (*model.RiskAssessment, error)
	GetProfile(ctx context.Context, profileID string) (*model.Profile, error)
	GetProfessionalIDs(ctx context.Context, profileID string) ([]model.ProfessionalID, error)
	GetFeedback(ctx context.Context, profileID string, limit int) ([]model.Feedback, error)

	GetMatter(ctx context.Context, matterID string) (*model.Matter, error)

	// Portfolio reads across every matter owned by a profile. A zero since
	// means no lower bound.
	ListProfileTasks(ctx context.Context, profileID string, since time.Time) ([]model.Task, error)
	ListBillingRecords(ctx context.Context, profileID string) ([]model.BillingRecord, error)
	ListRiskAssessments(ctx context.Context, profileID string) ([]model.RiskAssessment, error)
}

// ProgressWriter persists a matter's derived progress snapshot.
type ProgressWriter interface {
	SaveMatterProgress(ctx context.Context, matterID string, p model.Progress) error
}

// TaskTx is the set of task operations available inside a transaction.
type TaskTx interface {
	ProgressWriter
	GetTasks(ctx context.Context, matterID string) ([]model.Task, error)
	InsertTask(ctx context.Context, t model.Task) error
	UpdateTaskStatus(ctx context.Context, matterID, taskID string, status model.TaskStatus, completedAt *time.Time) error
	DeleteTask(ctx context.Context, matterID, taskID string) error
}

// Store is the persistence interface for the metrics engine.
type Store interface {
	Reader
	ProgressWriter

	// WithTaskTx runs fn in a single transaction, committing when fn
	// returns nil and rolling back otherwise.
	WithTaskTx(ctx context.Context, fn func(tx TaskTx) error) error

	SaveProfileMetrics(ctx context.Context, m model.ProfileMetrics) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
