// Package aggregator assembles matter, profile and portfolio metrics from
// the read contracts. Independent fetches run concurrently and a failed
// fetch degrades only the metrics that depend on it.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/practice-metrics/internal/cache"
	"github.com/sells-group/practice-metrics/internal/config"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/store"
)

// Reason classifies why a metric is missing from a result.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonFetchFailed Reason = "fetch_failed"
	ReasonInvalidData Reason = "invalid_data"
)

// MetricError is the marker attached to a metric reported as null.
type MetricError struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message,omitempty"`
}

// Metric names used as keys in result error maps.
const (
	MetricProgress          = "progress"
	MetricEfficiency        = "efficiency"
	MetricBilling           = "billing"
	MetricRisk              = "risk"
	MetricWorkflow          = "workflow"
	MetricProfileCompletion = "profile_completion"
	MetricClientFeedback    = "client_feedback"
	MetricProductivity      = "productivity"
	MetricRiskDistribution  = "risk_distribution"
	MetricBillingTotals     = "billing_totals"
	MetricTaskTotals        = "tasks"
)

// ProfileWriter persists the per-profile metric row.
type ProfileWriter interface {
	SaveProfileMetrics(ctx context.Context, m model.ProfileMetrics) error
}

// Aggregator computes metric sets for matters and profiles.
type Aggregator struct {
	reader   store.Reader
	progress store.ProgressWriter
	profiles ProfileWriter
	cache    cache.Cache
	cacheTTL time.Duration
	cfg      config.MetricsConfig
	nowFunc  func() time.Time

	// gens counts invalidations per matter. A read that started under an
	// older generation must not publish its result.
	genMu sync.Mutex
	gens  map[string]uint64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithProgressWriter persists each freshly computed matter progress
// snapshot through w.
func WithProgressWriter(w store.ProgressWriter) Option {
	return func(a *Aggregator) { a.progress = w }
}

// WithProfileWriter enables RefreshProfile persistence through w.
func WithProfileWriter(w ProfileWriter) Option {
	return func(a *Aggregator) { a.profiles = w }
}

// WithCache reads and writes complete results through c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for windows and overdue checks.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.nowFunc = now }
}

// New creates an Aggregator over r.
func New(r store.Reader, cfg config.MetricsConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		reader:  r,
		cache:   cache.Nop{},
		cfg:     cfg,
		nowFunc: time.Now,
		gens:    make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) generation(matterID string) uint64 {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	return a.gens[matterID]
}

// publish runs fn only if matterID has not been invalidated since gen was
// taken. fn runs under the generation lock so an invalidation cannot slip
// in between the check and the write.
func (a *Aggregator) publish(matterID string, gen uint64, what string, fn func()) {
	a.genMu.Lock()
	defer a.genMu.Unlock()
	if a.gens[matterID] != gen {
		zap.L().Info("aggregator: dropping stale "+what,
			zap.String("matter_id", matterID),
			zap.Uint64("generation", gen),
			zap.Uint64("current", a.gens[matterID]),
		)
		return
	}
	fn()
}

func (a *Aggregator) fetchTimeout() time.Duration {
	if a.cfg.FetchTimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(a.cfg.FetchTimeoutMs) * time.Millisecond
}

func (a *Aggregator) feedbackLimit() int {
	if a.cfg.FeedbackLimit <= 0 {
		return 10
	}
	return a.cfg.FeedbackLimit
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// fetch runs fn under the per-fetch timeout.
func fetch[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// classify maps a fetch error to a metric marker.
func classify(err error) MetricError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return MetricError{Reason: ReasonNotFound, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return MetricError{Reason: ReasonFetchFailed, Message: "fetch timed out"}
	default:
		return MetricError{Reason: ReasonFetchFailed, Message: err.Error()}
	}
}

func invalid(msg string) MetricError {
	return MetricError{Reason: ReasonInvalidData, Message: msg}
}

// cached returns true when key held a decodable value. Cache failures are
// logged and treated as a miss.
func (a *Aggregator) cached(ctx context.Context, key string, dst any) bool {
	ok, err := cache.GetJSON(ctx, a.cache, key, dst)
	if err != nil {
		zap.L().Warn("aggregator: cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (a *Aggregator) remember(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, a.cache, key, v, a.cacheTTL); err != nil {
		zap.L().Warn("aggregator: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
