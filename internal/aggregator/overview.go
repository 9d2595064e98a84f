package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/practice-metrics/internal/cache"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/scorer"
)

// Overview is a practitioner's portfolio summary across all their matters.
type Overview struct {
	ProfileID        string                 `json:"profile_id"`
	RiskDistribution []scorer.RiskBucket    `json:"risk_distribution"`
	Billing          *scorer.BillingTotals  `json:"billing_totals"`
	Tasks            *scorer.TaskTotals     `json:"tasks"`
	Errors           map[string]MetricError `json:"errors,omitempty"`
}

func (o *Overview) fail(metric string, e MetricError) {
	if o.Errors == nil {
		o.Errors = make(map[string]MetricError)
	}
	o.Errors[metric] = e
}

// Overview computes the risk distribution, billing totals and task totals
// of a profile's matters.
func (a *Aggregator) Overview(ctx context.Context, profileID string) (*Overview, error) {
	var hit Overview
	if a.cached(ctx, cache.OverviewKey(profileID), &hit) {
		return &hit, nil
	}

	timeout := a.fetchTimeout()
	var (
		risks   []model.RiskAssessment
		billing []model.BillingRecord
		tasks   []model.Task
	)
	var risksErr, billingErr, tasksErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		risks, risksErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.RiskAssessment, error) {
			return a.reader.ListRiskAssessments(ctx, profileID)
		})
		return nil
	})
	g.Go(func() error {
		billing, billingErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.BillingRecord, error) {
			return a.reader.ListBillingRecords(ctx, profileID)
		})
		return nil
	})
	g.Go(func() error {
		tasks, tasksErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.Task, error) {
			return a.reader.ListProfileTasks(ctx, profileID, time.Time{})
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Overview{ProfileID: profileID}

	if risksErr != nil {
		out.fail(MetricRiskDistribution, classify(risksErr))
	} else {
		kept := risks[:0:0]
		for _, r := range risks {
			if err := r.Validate(); err != nil {
				zap.L().Warn("aggregator: excluding invalid risk assessment", zap.Error(err))
				continue
			}
			kept = append(kept, r)
		}
		out.RiskDistribution = scorer.RiskDistribution(kept)
	}

	if billingErr != nil {
		out.fail(MetricBillingTotals, classify(billingErr))
	} else {
		kept := billing[:0:0]
		for _, b := range billing {
			if err := b.Validate(); err != nil {
				zap.L().Warn("aggregator: excluding invalid billing record", zap.Error(err))
				continue
			}
			kept = append(kept, b)
		}
		totals := scorer.SumBilling(kept)
		out.Billing = &totals
	}

	if tasksErr != nil {
		out.fail(MetricTaskTotals, classify(tasksErr))
	} else {
		valid, _ := scorer.ValidTasks(tasks)
		totals := scorer.SummarizeTasks(valid, a.nowFunc())
		out.Tasks = &totals
	}

	for name, e := range out.Errors {
		zap.L().Warn("aggregator: overview metric unavailable",
			zap.String("profile_id", profileID),
			zap.String("metric", name),
			zap.String("reason", string(e.Reason)),
			zap.String("detail", e.Message),
		)
	}

	if len(out.Errors) == 0 {
		a.remember(ctx, cache.OverviewKey(profileID), out)
	}
	return out, nil
}
