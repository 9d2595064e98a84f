package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *Server) handleMatterMetrics(w http.ResponseWriter, r *http.Request) {
	serveMetrics(w, r, "matter", s.metrics.MatterMetrics)
}

func (s *Server) handleProfileMetrics(w http.ResponseWriter, r *http.Request) {
	serveMetrics(w, r, "profile", s.metrics.ProfileMetrics)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	serveMetrics(w, r, "overview", s.metrics.Overview)
}

// serveMetrics answers 200 with whatever the engine could compute. Missing
// metrics are null in the body with a reason in "errors". Only a request
// abandoned before the result was assembled gets a non-200 status.
func serveMetrics[T any](w http.ResponseWriter, r *http.Request, kind string, compute func(context.Context, string) (*T, error)) {
	id := chi.URLParam(r, "id")
	res, err := compute(r.Context(), id)
	if err != nil {
		zap.L().Warn("api: metrics request abandoned",
			zap.String("kind", kind),
			zap.String("id", id),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "request_cancelled", "metrics request did not complete")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
