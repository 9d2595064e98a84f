package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/store"
)

// fakeReader serves fixed snapshots. A nil single-row value without an
// error is reported as store.ErrNotFound.
type fakeReader struct {
	matter   *model.Matter
	tasks    []model.Task
	billing  *model.BillingRecord
	risk     *model.RiskAssessment
	profile  *model.Profile
	ids      []model.ProfessionalID
	feedback []model.Feedback

	profileTasks []model.Task
	billings     []model.BillingRecord
	risks        []model.RiskAssessment

	errs map[string]error

	// hook runs at the start of every read with the read's name.
	hook func(ctx context.Context, name string) error

	calls     atomic.Int32
	mu        sync.Mutex
	lastLimit int
	lastSince time.Time
}

func (f *fakeReader) enter(ctx context.Context, name string) error {
	f.calls.Add(1)
	if f.hook != nil {
		if err := f.hook(ctx, name); err != nil {
			return err
		}
	}
	return f.errs[name]
}

func single[T any](v *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeReader) GetMatter(ctx context.Context, _ string) (*model.Matter, error) {
	return single(f.matter, f.enter(ctx, "matter"))
}

func (f *fakeReader) GetTasks(ctx context.Context, _ string) ([]model.Task, error) {
	if err := f.enter(ctx, "tasks"); err != nil {
		return nil, err
	}
	return f.tasks, nil
}

func (f *fakeReader) GetBillingRecord(ctx context.Context, _ string) (*model.BillingRecord, error) {
	return single(f.billing, f.enter(ctx, "billing"))
}

func (f *fakeReader) GetRiskAssessment(ctx context.Context, _ string) (*model.RiskAssessment, error) {
	return single(f.risk, f.enter(ctx, "risk"))
}

func (f *fakeReader) GetProfile(ctx context.Context, _ string) (*model.Profile, error) {
	return single(f.profile, f.enter(ctx, "profile"))
}

func (f *fakeReader) GetProfessionalIDs(ctx context.Context, _ string) ([]model.ProfessionalID, error) {
	if err := f.enter(ctx, "ids"); err != nil {
		return nil, err
	}
	return f.ids, nil
}

func (f *fakeReader) GetFeedback(ctx context.Context, _ string, limit int) ([]model.Feedback, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	if err := f.enter(ctx, "feedback"); err != nil {
		return nil, err
	}
	return f.feedback, nil
}

func (f *fakeReader) ListProfileTasks(ctx context.Context, _ string, since time.Time) ([]model.Task, error) {
	f.mu.Lock()
	f.lastSince = since
	f.mu.Unlock()
	if err := f.enter(ctx, "profile_tasks"); err != nil {
		return nil, err
	}
	return f.profileTasks, nil
}

func (f *fakeReader) ListBillingRecords(ctx context.Context, _ string) ([]model.BillingRecord, error) {
	if err := f.enter(ctx, "billings"); err != nil {
		return nil, err
	}
	return f.billings, nil
}

func (f *fakeReader) ListRiskAssessments(ctx context.Context, _ string) ([]model.RiskAssessment, error) {
	if err := f.enter(ctx, "risks"); err != nil {
		return nil, err
	}
	return f.risks, nil
}

// recordingWriter captures progress snapshots and profile rows.
type recordingWriter struct {
	mu        sync.Mutex
	snapshots map[string][]model.Progress
	rows      []model.ProfileMetrics
	err       error
}

func (w *recordingWriter) SaveMatterProgress(_ context.Context, matterID string, p model.Progress) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.snapshots == nil {
		w.snapshots = make(map[string][]model.Progress)
	}
	w.snapshots[matterID] = append(w.snapshots[matterID], p)
	return w.err
}

func (w *recordingWriter) SaveProfileMetrics(_ context.Context, m model.ProfileMetrics) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, m)
	return w.err
}

var _ store.Reader = (*fakeReader)(nil)
