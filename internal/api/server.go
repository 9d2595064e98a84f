// Package api serves matter, profile and portfolio metrics over HTTP and
// accepts task mutations from the dashboards.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/practice-metrics/internal/aggregator"
	"github.com/sells-group/practice-metrics/internal/config"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/tasks"
)

// Metrics computes the metric sets served by the API.
// *aggregator.Aggregator satisfies it.
type Metrics interface {
	MatterMetrics(ctx context.Context, matterID string) (*aggregator.MatterMetrics, error)
	ProfileMetrics(ctx context.Context, profileID string) (*aggregator.ProfileMetrics, error)
	Overview(ctx context.Context, profileID string) (*aggregator.Overview, error)
}

// Tasks applies task mutations. *tasks.Service satisfies it.
type Tasks interface {
	Create(ctx context.Context, matterID string, in tasks.NewTask) (*tasks.Result, error)
	UpdateStatus(ctx context.Context, matterID, taskID string, status model.TaskStatus) (*tasks.Result, error)
	Delete(ctx context.Context, matterID, taskID string) (*tasks.Result, error)
}

// Pinger reports backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the HTTP routes to the metrics engine.
type Server struct {
	metrics Metrics
	tasks   Tasks
	pinger  Pinger
	cfg     config.ServerConfig
}

// NewServer creates a Server. pinger may be nil, in which case /health
// only reports that the process is up.
func NewServer(m Metrics, t Tasks, pinger Pinger, cfg config.ServerConfig) *Server {
	return &Server{metrics: m, tasks: t, pinger: pinger, cfg: cfg}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

		r.Get("/matters/{id}/metrics", s.handleMatterMetrics)
		r.Post("/matters/{id}/tasks", s.handleCreateTask)
		r.Patch("/matters/{id}/tasks/{taskID}", s.handleUpdateTask)
		r.Delete("/matters/{id}/tasks/{taskID}", s.handleDeleteTask)

		r.Get("/profiles/{id}/metrics", s.handleProfileMetrics)
		r.Get("/profiles/{id}/overview", s.handleOverview)
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.CORSOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
