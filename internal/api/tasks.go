package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/store"
	"github.com/sells-group/practice-metrics/internal/tasks"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body tasks.NewTask
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	res, err := s.tasks.Create(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	res, err := s.tasks.UpdateStatus(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskID"), body.Status)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	res, err := s.tasks.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "taskID"))
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid_task", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		zap.L().Error("api: task mutation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "task update failed")
	}
}
