package aggregator

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/practice-metrics/internal/cache"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/scorer"
	"github.com/sells-group/practice-metrics/internal/store"
)

// ProfileMetrics is the per-profile result.
type ProfileMetrics struct {
	ProfileID         string                 `json:"profile_id"`
	Workflow          *scorer.Workflow       `json:"workflow"`
	ProfileCompletion *int                   `json:"profile_completion"`
	ClientFeedback    *scorer.ClientFeedback `json:"client_feedback"`
	Productivity      *int                   `json:"productivity"`
	Errors            map[string]MetricError `json:"errors,omitempty"`
}

func (m *ProfileMetrics) fail(metric string, e MetricError) {
	if m.Errors == nil {
		m.Errors = make(map[string]MetricError)
	}
	m.Errors[metric] = e
}

// ProfileMetrics computes workflow completeness, profile completion, client
// feedback and productivity for a profile.
func (a *Aggregator) ProfileMetrics(ctx context.Context, profileID string) (*ProfileMetrics, error) {
	var hit ProfileMetrics
	if a.cached(ctx, cache.ProfileKey(profileID), &hit) {
		return &hit, nil
	}

	out, err := a.computeProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if len(out.Errors) == 0 {
		a.remember(ctx, cache.ProfileKey(profileID), out)
	}
	return out, nil
}

func (a *Aggregator) computeProfile(ctx context.Context, profileID string) (*ProfileMetrics, error) {
	timeout := a.fetchTimeout()
	now := a.nowFunc()
	window := days(a.cfg.ProductivityWindowDays)

	var (
		profile  *model.Profile
		ids      []model.ProfessionalID
		feedback []model.Feedback
		tasks    []model.Task
	)
	var profileErr, idsErr, feedbackErr, tasksErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, profileErr = fetch(gctx, timeout, func(ctx context.Context) (*model.Profile, error) {
			return a.reader.GetProfile(ctx, profileID)
		})
		return nil
	})
	g.Go(func() error {
		ids, idsErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.ProfessionalID, error) {
			return a.reader.GetProfessionalIDs(ctx, profileID)
		})
		return nil
	})
	g.Go(func() error {
		feedback, feedbackErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.Feedback, error) {
			return a.reader.GetFeedback(ctx, profileID, a.feedbackLimit())
		})
		return nil
	})
	g.Go(func() error {
		var since time.Time
		if window > 0 {
			since = now.Add(-window)
		}
		tasks, tasksErr = fetch(gctx, timeout, func(ctx context.Context) ([]model.Task, error) {
			return a.reader.ListProfileTasks(ctx, profileID, since)
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &ProfileMetrics{ProfileID: profileID}

	if profileErr == nil && profile == nil {
		profileErr = store.ErrNotFound
	}
	switch {
	case profileErr != nil:
		e := classify(profileErr)
		out.fail(MetricWorkflow, e)
		out.fail(MetricProfileCompletion, e)
	case idsErr != nil:
		e := classify(idsErr)
		out.fail(MetricWorkflow, e)
		out.fail(MetricProfileCompletion, e)
	default:
		wf := scorer.ComputeWorkflow(*profile, ids, a.cfg.Workflow)
		out.Workflow = &wf
		pc := scorer.ProfileCompletion(*profile, ids)
		out.ProfileCompletion = &pc
	}

	if feedbackErr != nil {
		out.fail(MetricClientFeedback, classify(feedbackErr))
	} else {
		cf := scorer.ComputeClientFeedback(feedback)
		if cf.Excluded > 0 {
			zap.L().Warn("aggregator: excluded out-of-range ratings",
				zap.String("profile_id", profileID),
				zap.Int("excluded", cf.Excluded),
			)
		}
		out.ClientFeedback = &cf
	}

	if tasksErr != nil {
		out.fail(MetricProductivity, classify(tasksErr))
	} else {
		valid, _ := scorer.ValidTasks(tasks)
		p := scorer.Productivity(scorer.InWindow(valid, now, window))
		out.Productivity = &p
	}

	for name, e := range out.Errors {
		zap.L().Warn("aggregator: profile metric unavailable",
			zap.String("profile_id", profileID),
			zap.String("metric", name),
			zap.String("reason", string(e.Reason)),
			zap.String("detail", e.Message),
		)
	}
	return out, nil
}

// RefreshProfile recomputes a profile's metrics, bypassing the cache, and
// persists them as the profile's metric row. Metrics that could not be
// computed are stored as 0. A profile that does not exist is an error.
func (a *Aggregator) RefreshProfile(ctx context.Context, profileID string) (*ProfileMetrics, error) {
	if a.profiles == nil {
		return nil, eris.New("aggregator: refresh profile: no profile writer configured")
	}

	out, err := a.computeProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if e, ok := out.Errors[MetricWorkflow]; ok && e.Reason == ReasonNotFound {
		return nil, eris.Wrapf(store.ErrNotFound, "aggregator: refresh profile %s", profileID)
	}

	row := model.ProfileMetrics{ProfileID: profileID, UpdatedAt: a.nowFunc().UTC()}
	if out.Workflow != nil {
		row.WorkflowScore = out.Workflow.Score
	}
	if out.ProfileCompletion != nil {
		row.ProfileCompletion = *out.ProfileCompletion
	}
	if out.ClientFeedback != nil {
		row.ClientFeedback = out.ClientFeedback.AverageRating
	}
	if out.Productivity != nil {
		row.Productivity = *out.Productivity
	}

	if err := a.profiles.SaveProfileMetrics(ctx, row); err != nil {
		return nil, eris.Wrapf(err, "aggregator: refresh profile %s", profileID)
	}
	if err := a.cache.Delete(ctx, cache.ProfileKey(profileID)); err != nil {
		zap.L().Warn("aggregator: cache invalidation failed", zap.String("profile_id", profileID), zap.Error(err))
	}

	zap.L().Info("aggregator: refreshed profile metrics",
		zap.String("profile_id", profileID),
		zap.Int("workflow_score", row.WorkflowScore),
		zap.Int("profile_completion", row.ProfileCompletion),
		zap.Float64("client_feedback", row.ClientFeedback),
		zap.Int("productivity", row.Productivity),
	)
	return out, nil
}
