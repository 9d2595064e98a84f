package aggregator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/practice-metrics/internal/cache"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/scorer"
	"github.com/sells-group/practice-metrics/internal/store"
)

// MatterMetrics is the per-matter result. A nil metric is always paired
// with an entry in Errors.
type MatterMetrics struct {
	MatterID   string                 `json:"matter_id"`
	Progress   *model.Progress        `json:"progress"`
	Efficiency *scorer.Efficiency     `json:"efficiency"`
	Billing    *scorer.Billing        `json:"billing"`
	Risk       *scorer.Risk           `json:"risk"`
	Errors     map[string]MetricError `json:"errors,omitempty"`
}

func (m *MatterMetrics) fail(metric string, e MetricError) {
	if m.Errors == nil {
		m.Errors = make(map[string]MetricError)
	}
	m.Errors[metric] = e
}

// MatterMetrics computes progress, efficiency, billing and risk for a
// matter. It never fails because a single source is unavailable; only a
// cancelled ctx is returned as an error.
func (a *Aggregator) MatterMetrics(ctx context.Context, matterID string) (*MatterMetrics, error) {
	var hit MatterMetrics
	if a.cached(ctx, cache.MatterKey(matterID), &hit) {
		return &hit, nil
	}

	gen := a.generation(matterID)
	timeout := a.fetchTimeout()
	var (
		matter  *model.Matter
		tasks   []model.Task
		billing *model.BillingRecord
		risk    *model.RiskAssessment
	)
	var matterErr, tasksErr, billingErr, riskErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matter, matterErr = fetch(gctx, timeout, func(ctx context.Context) (*model.Matter, error) {
			return a.reader.GetMatter(ctx, matterID)
		})
		return nil
	})
	g.Go(func() error {
		tasks, tasksErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.Task, error) {
			return a.reader.GetTasks(ctx, matterID)
		})
		return nil
	})
	g.Go(func() error {
		billing, billingErr = fetch(gctx, timeout, func(ctx context.Context) (*model.BillingRecord, error) {
			return a.reader.GetBillingRecord(ctx, matterID)
		})
		return nil
	})
	g.Go(func() error {
		risk, riskErr = fetch(gctx, timeout, func(ctx context.Context) (*model.RiskAssessment, error) {
			return a.reader.GetRiskAssessment(ctx, matterID)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &MatterMetrics{MatterID: matterID}
	a.taskMetrics(ctx, out, gen, matter, matterErr, tasks, tasksErr)
	a.billingMetric(out, billing, billingErr)
	a.riskMetric(out, risk, riskErr)

	for name, e := range out.Errors {
		zap.L().Warn("aggregator: matter metric unavailable",
			zap.String("matter_id", matterID),
			zap.String("metric", name),
			zap.String("reason", string(e.Reason)),
			zap.String("detail", e.Message),
		)
	}

	if len(out.Errors) == 0 {
		a.publish(matterID, gen, "cache entry", func() {
			a.remember(ctx, cache.MatterKey(matterID), out)
		})
	}
	return out, nil
}

// taskMetrics fills progress and efficiency from the shared task fetch and
// writes the progress snapshot at most once, unless the matter was
// invalidated while its tasks were being read.
func (a *Aggregator) taskMetrics(ctx context.Context, out *MatterMetrics, gen uint64, matter *model.Matter, matterErr error, tasks []model.Task, tasksErr error) {
	if matterErr == nil && matter == nil {
		matterErr = store.ErrNotFound
	}
	if matterErr != nil {
		if e := classify(matterErr); e.Reason == ReasonNotFound {
			out.fail(MetricProgress, e)
			out.fail(MetricEfficiency, e)
			return
		}
	}
	if tasksErr != nil {
		e := classify(tasksErr)
		out.fail(MetricProgress, e)
		out.fail(MetricEfficiency, e)
		return
	}

	valid, rejected := scorer.ValidTasks(tasks)
	for _, err := range rejected {
		zap.L().Warn("aggregator: excluding invalid task",
			zap.String("matter_id", out.MatterID),
			zap.Error(err),
		)
	}

	progress := scorer.ComputeProgress(valid)
	out.Progress = &progress

	now := a.nowFunc()
	windowed := scorer.InWindow(valid, now, days(a.cfg.EfficiencyWindowDays))
	efficiency := scorer.ComputeEfficiency(windowed, now, a.cfg.Efficiency)
	out.Efficiency = &efficiency

	switch {
	case a.progress == nil:
	case matter == nil:
		zap.L().Warn("aggregator: skipping progress snapshot, matter lookup failed",
			zap.String("matter_id", out.MatterID),
			zap.Error(matterErr),
		)
	default:
		a.publish(out.MatterID, gen, "progress snapshot", func() {
			if err := a.progress.SaveMatterProgress(ctx, out.MatterID, progress); err != nil {
				zap.L().Warn("aggregator: save progress snapshot failed",
					zap.String("matter_id", out.MatterID),
					zap.Error(err),
				)
			}
		})
	}
}

func (a *Aggregator) billingMetric(out *MatterMetrics, rec *model.BillingRecord, err error) {
	if err == nil && rec == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		out.fail(MetricBilling, classify(err))
		return
	}
	if err := rec.Validate(); err != nil {
		out.fail(MetricBilling, invalid(err.Error()))
		return
	}
	b := scorer.ComputeBilling(*rec)
	out.Billing = &b
}

func (a *Aggregator) riskMetric(out *MatterMetrics, ra *model.RiskAssessment, err error) {
	if err == nil && ra == nil {
		err = store.ErrNotFound
	}
	if err != nil {
		out.fail(MetricRisk, classify(err))
		return
	}
	if err := ra.Validate(); err != nil {
		out.fail(MetricRisk, invalid(err.Error()))
		return
	}
	r := scorer.ComputeRisk(*ra)
	out.Risk = &r
}

// InvalidateMatter drops the cached metrics of a matter. Reads of the
// matter already in flight will neither cache their result nor write a
// progress snapshot.
func (a *Aggregator) InvalidateMatter(ctx context.Context, matterID string) {
	a.genMu.Lock()
	a.gens[matterID]++
	a.genMu.Unlock()

	if err := a.cache.Delete(ctx, cache.MatterKey(matterID)); err != nil {
		zap.L().Warn("aggregator: cache invalidation failed",
			zap.String("matter_id", matterID),
			zap.Error(err),
		)
	}
}
