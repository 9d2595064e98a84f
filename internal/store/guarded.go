package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/resilience"
)

// GuardedReader wraps a Reader so every read is retried on transient
// failures and short-circuited while the backing store is unhealthy.
// ErrNotFound is never retried.
type GuardedReader struct {
	next    Reader
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// Guarded returns a GuardedReader over r. A nil breaker disables circuit
// breaking.
func Guarded(r Reader, retry resilience.RetryConfig, breaker *resilience.CircuitBreaker) *GuardedReader {
	return &GuardedReader{next: r, retry: retry, breaker: breaker}
}

func guard[T any](ctx context.Context, g *GuardedReader, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := g.retry
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = func(err error) bool {
			return !errors.Is(err, ErrNotFound) && !errors.Is(err, resilience.ErrCircuitOpen) && resilience.IsTransient(err)
		}
	}
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(op)
	}

	call := fn
	if g.breaker != nil {
		call = func(ctx context.Context) (T, error) {
			return resilience.ExecuteVal(ctx, g.breaker, fn)
		}
	}
	return resilience.DoVal(ctx, cfg, call)
}

func (g *GuardedReader) GetTasks(ctx context.Context, matterID string) ([]model.Task, error) {
	return guard(ctx, g, "get_tasks", func(ctx context.Context) ([]model.Task, error) {
		return g.next.GetTasks(ctx, matterID)
	})
}

func (g *GuardedReader) GetBillingRecord(ctx context.Context, matterID string) (*model.BillingRecord, error) {
	return guard(ctx, g, "get_billing_record", func(ctx context.Context) (*model.BillingRecord, error) {
		return g.next.GetBillingRecord(ctx, matterID)
	})
}

func (g *GuardedReader) GetRiskAssessment(ctx context.Context, matterID string) (*model.RiskAssessment, error) {
	return guard(ctx, g, "get_risk_assessment", func(ctx context.Context) (*model.RiskAssessment, error) {
		return g.next.GetRiskAssessment(ctx, matterID)
	})
}

func (g *GuardedReader) GetProfile(ctx context.Context, profileID string) (*model.Profile, error) {
	return guard(ctx, g, "get_profile", func(ctx context.Context) (*model.Profile, error) {
		return g.next.GetProfile(ctx, profileID)
	})
}

func (g *GuardedReader) GetProfessionalIDs(ctx context.Context, profileID string) ([]model.ProfessionalID, error) {
	return guard(ctx, g, "get_professional_ids", func(ctx context.Context) ([]model.ProfessionalID, error) {
		return g.next.GetProfessionalIDs(ctx, profileID)
	})
}

func (g *GuardedReader) GetFeedback(ctx context.Context, profileID string, limit int) ([]model.Feedback, error) {
	return guard(ctx, g, "get_feedback", func(ctx context.Context) ([]model.Feedback, error) {
		return g.next.GetFeedback(ctx, profileID, limit)
	})
}

func (g *GuardedReader) GetMatter(ctx context.Context, matterID string) (*model.Matter, error) {
	return guard(ctx, g, "get_matter", func(ctx context.Context) (*model.Matter, error) {
		return g.next.GetMatter(ctx, matterID)
	})
}

func (g *GuardedReader) ListProfileTasks(ctx context.Context, profileID string, since time.Time) ([]model.Task, error) {
	return guard(ctx, g, "list_profile_tasks", func(ctx context.Context) ([]model.Task, error) {
		return g.next.ListProfileTasks(ctx, profileID, since)
	})
}

func (g *GuardedReader) ListBillingRecords(ctx context.Context, profileID string) ([]model.BillingRecord, error) {
	return guard(ctx, g, "list_billing_records", func(ctx context.Context) ([]model.BillingRecord, error) {
		return g.next.ListBillingRecords(ctx, profileID)
	})
}

func (g *GuardedReader) ListRiskAssessments(ctx context.Context, profileID string) ([]model.RiskAssessment, error) {
	return guard(ctx, g, "list_risk_assessments", func(ctx context.Context) ([]model.RiskAssessment, error) {
		return g.next.ListRiskAssessments(ctx, profileID)
	})
}
