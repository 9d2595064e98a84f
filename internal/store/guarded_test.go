package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/resilience"
)

// flakyReader fails the first failN calls of every method with err.
type flakyReader struct {
	failN int
	err   error
	calls int
}

func (f *flakyReader) attempt() error {
	f.calls++
	if f.calls <= f.failN {
		return f.err
	}
	return nil
}

func (f *flakyReader) GetTasks(context.Context, string) ([]model.Task, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.Task{{ID: "t1"}}, nil
}

func (f *flakyReader) GetBillingRecord(context.Context, string) (*model.BillingRecord, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &model.BillingRecord{ID: "b1"}, nil
}

func (f *flakyReader) GetRiskAssessment(context.Context, string) (*model.RiskAssessment, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &model.RiskAssessment{MatterID: "m1"}, nil
}

func (f *flakyReader) GetProfile(context.Context, string) (*model.Profile, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &model.Profile{ID: "p1"}, nil
}

func (f *flakyReader) GetProfessionalIDs(context.Context, string) ([]model.ProfessionalID, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.ProfessionalID{}, nil
}

func (f *flakyReader) GetFeedback(context.Context, string, int) ([]model.Feedback, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.Feedback{}, nil
}

func (f *flakyReader) GetMatter(context.Context, string) (*model.Matter, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return &model.Matter{ID: "m1"}, nil
}

func (f *flakyReader) ListProfileTasks(context.Context, string, time.Time) ([]model.Task, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.Task{}, nil
}

func (f *flakyReader) ListBillingRecords(context.Context, string) ([]model.BillingRecord, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.BillingRecord{}, nil
}

func (f *flakyReader) ListRiskAssessments(context.Context, string) ([]model.RiskAssessment, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.RiskAssessment{}, nil
}

func quickRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestGuarded_RetriesTransientReads(t *testing.T) {
	r := &flakyReader{failN: 1, err: resilience.NewTransientError(errors.New("connection reset by peer"))}
	g := Guarded(r, quickRetry(3), nil)

	tasks, err := g.GetTasks(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, 2, r.calls)
}

func TestGuarded_NotFoundIsNotRetried(t *testing.T) {
	r := &flakyReader{failN: 5, err: eris.Wrap(ErrNotFound, "get billing record m1")}
	g := Guarded(r, quickRetry(3), nil)

	_, err := g.GetBillingRecord(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, r.calls)
}

func TestGuarded_GivesUpAfterMaxAttempts(t *testing.T) {
	r := &flakyReader{failN: 10, err: resilience.NewTransientError(errors.New("i/o timeout"))}
	g := Guarded(r, quickRetry(2), nil)

	_, err := g.GetProfile(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestGuarded_BreakerOpensAndFailsFast(t *testing.T) {
	r := &flakyReader{failN: 100, err: resilience.NewTransientError(errors.New("connection refused"))}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	g := Guarded(r, quickRetry(1), breaker)

	_, _ = g.GetRiskAssessment(context.Background(), "m1")
	_, _ = g.GetRiskAssessment(context.Background(), "m1")
	assert.Equal(t, resilience.CircuitOpen, breaker.State())

	calls := r.calls
	_, err := g.GetMatter(context.Background(), "m1")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, calls, r.calls)
}

func TestGuarded_PassesEveryRead(t *testing.T) {
	g := Guarded(&flakyReader{}, quickRetry(1), resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()))
	ctx := context.Background()

	_, err := g.GetProfessionalIDs(ctx, "p1")
	require.NoError(t, err)
	_, err = g.GetFeedback(ctx, "p1", 10)
	require.NoError(t, err)
	_, err = g.ListProfileTasks(ctx, "p1", time.Time{})
	require.NoError(t, err)
	_, err = g.ListBillingRecords(ctx, "p1")
	require.NoError(t, err)
	_, err = g.ListRiskAssessments(ctx, "p1")
	require.NoError(t, err)
}

var _ Reader = (*GuardedReader)(nil)
var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
