package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/practice-metrics/internal/aggregator"
	"github.com/sells-group/practice-metrics/internal/cache"
	"github.com/sells-group/practice-metrics/internal/resilience"
	"github.com/sells-group/practice-metrics/internal/scorer"
	"github.com/sells-group/practice-metrics/internal/store"
	"github.com/sells-group/practice-metrics/internal/tasks"
)

// engineEnv holds the store, cache and services shared by the commands.
type engineEnv struct {
	Store      store.Store
	Cache      cache.Cache
	Aggregator *aggregator.Aggregator
	Tasks      *tasks.Service

	closers []func() error
}

// Close releases the cache and store connections.
func (e *engineEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

// initEngine opens the store, runs migrations, connects the cache and
// builds the aggregator over a retrying, circuit-broken reader. Callers
// should defer env.Close().
func initEngine(ctx context.Context) (*engineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(cfg.Metrics); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &engineEnv{Store: st, closers: []func() error{st.Close}}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	c, closeCache, err := initCache(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = c
	if closeCache != nil {
		env.closers = append(env.closers, closeCache)
	}

	retryCfg, breakerCfg := resilience.FromConfig(cfg.Resilience)
	reader := store.Guarded(st, retryCfg, resilience.NewCircuitBreaker(breakerCfg))

	env.Aggregator = aggregator.New(reader, cfg.Metrics,
		aggregator.WithProgressWriter(st),
		aggregator.WithProfileWriter(st),
		aggregator.WithCache(c, time.Duration(cfg.Cache.TTLSecs)*time.Second),
	)
	env.Tasks = tasks.NewService(st, env.Aggregator)

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "practice.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache returns the configured cache and, for network caches, a close
// func.
func initCache(ctx context.Context) (cache.Cache, func() error, error) {
	switch cfg.Cache.Driver {
	case "redis":
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	case "none":
		return cache.Nop{}, nil, nil
	case "memory", "":
		return cache.NewMemory(), nil, nil
	default:
		return nil, nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}
