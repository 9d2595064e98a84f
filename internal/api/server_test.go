package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/practice-metrics/internal/aggregator"
	"github.com/sells-group/practice-metrics/internal/config"
	"github.com/sells-group/practice-metrics/internal/model"
	"github.com/sells-group/practice-metrics/internal/scorer"
	"github.com/sells-group/practice-metrics/internal/store"
	"github.com/sells-group/practice-metrics/internal/tasks"
)

type fakeMetrics struct {
	err    error
	lastID string
}

func (f *fakeMetrics) MatterMetrics(_ context.Context, id string) (*aggregator.MatterMetrics, error) {
	f.lastID = id
	if f.err != nil {
		return nil, f.err
	}
	return &aggregator.MatterMetrics{
		MatterID: id,
		Progress: &model.Progress{Overall: 50, TotalTasks: 2},
		Risk:     &scorer.Risk{Score: 82, Level: model.RiskHigh},
		Errors: map[string]aggregator.MetricError{
			aggregator.MetricBilling: {Reason: aggregator.ReasonFetchFailed, Message: "connection reset"},
		},
	}, nil
}

func (f *fakeMetrics) ProfileMetrics(_ context.Context, id string) (*aggregator.ProfileMetrics, error) {
	f.lastID = id
	score := 78
	return &aggregator.ProfileMetrics{ProfileID: id, ProfileCompletion: &score}, f.err
}

func (f *fakeMetrics) Overview(_ context.Context, id string) (*aggregator.Overview, error) {
	f.lastID = id
	return &aggregator.Overview{ProfileID: id, Tasks: &scorer.TaskTotals{TotalTasks: 4}}, f.err
}

type fakeTasks struct {
	err       error
	gotMatter string
	gotTask   string
	gotNew    tasks.NewTask
	gotStatus model.TaskStatus
}

func (f *fakeTasks) Create(_ context.Context, matterID string, in tasks.NewTask) (*tasks.Result, error) {
	f.gotMatter, f.gotNew = matterID, in
	if f.err != nil {
		return nil, f.err
	}
	t := model.Task{ID: "t1", MatterID: matterID, Stage: in.Stage, Weight: in.Weight, Status: model.TaskStatusNotStarted}
	return &tasks.Result{Task: &t, Progress: model.Progress{TotalTasks: 1}}, nil
}

func (f *fakeTasks) UpdateStatus(_ context.Context, matterID, taskID string, status model.TaskStatus) (*tasks.Result, error) {
	f.gotMatter, f.gotTask, f.gotStatus = matterID, taskID, status
	if f.err != nil {
		return nil, f.err
	}
	return &tasks.Result{Progress: model.Progress{Overall: 100, TotalTasks: 1, CompletedTasks: 1}}, nil
}

func (f *fakeTasks) Delete(_ context.Context, matterID, taskID string) (*tasks.Result, error) {
	f.gotMatter, f.gotTask = matterID, taskID
	if f.err != nil {
		return nil, f.err
	}
	return &tasks.Result{}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(m *fakeMetrics, tk *fakeTasks, cfg config.ServerConfig) http.Handler {
	return NewServer(m, tk, fakePinger{}, cfg).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := NewServer(&fakeMetrics{}, &fakeTasks{}, fakePinger{}, config.ServerConfig{}).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	h = NewServer(&fakeMetrics{}, &fakeTasks{}, fakePinger{err: errors.New("db down")}, config.ServerConfig{}).Handler()
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "db down", decode(t, rec)["error"])

	h = NewServer(&fakeMetrics{}, &fakeTasks{}, nil, config.ServerConfig{}).Handler()
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMatterMetrics_PartialResultIs200(t *testing.T) {
	m := &fakeMetrics{}
	rec := do(t, newTestServer(m, &fakeTasks{}, config.ServerConfig{}), http.MethodGet, "/v1/matters/m1/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "m1", m.lastID)

	body := decode(t, rec)
	assert.Nil(t, body["billing"])
	assert.Nil(t, body["efficiency"])
	assert.Equal(t, 50.0, body["progress"].(map[string]any)["overall"])
	assert.Equal(t, "High", body["risk"].(map[string]any)["level"])
	errs := body["errors"].(map[string]any)
	assert.Equal(t, "fetch_failed", errs["billing"].(map[string]any)["reason"])
}

func TestProfileEndpoints(t *testing.T) {
	tests := []struct {
		path string
		key  string
	}{
		{"/v1/profiles/p1/metrics", "profile_completion"},
		{"/v1/profiles/p1/overview", "tasks"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := &fakeMetrics{}
			rec := do(t, newTestServer(m, &fakeTasks{}, config.ServerConfig{}), http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "p1", m.lastID)
			body := decode(t, rec)
			assert.Equal(t, "p1", body["profile_id"])
			assert.NotNil(t, body[tt.key])
		})
	}
}

func TestMetrics_CancelledRequest(t *testing.T) {
	m := &fakeMetrics{err: context.Canceled}
	rec := do(t, newTestServer(m, &fakeTasks{}, config.ServerConfig{}), http.MethodGet, "/v1/matters/m1/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "request_cancelled", decode(t, rec)["code"])
}

func TestCreateTask(t *testing.T) {
	tk := &fakeTasks{}
	rec := do(t, newTestServer(&fakeMetrics{}, tk, config.ServerConfig{}), http.MethodPost, "/v1/matters/m1/tasks",
		`{"label":"Draft engagement letter","stage":"Intake","weight":2,"due_date":"2026-04-01T00:00:00Z"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "m1", tk.gotMatter)
	assert.Equal(t, model.StageIntake, tk.gotNew.Stage)
	assert.Equal(t, 2.0, tk.gotNew.Weight)
	require.NotNil(t, tk.gotNew.DueDate)
	assert.Equal(t, 2026, tk.gotNew.DueDate.Year())

	body := decode(t, rec)
	assert.Equal(t, "t1", body["task"].(map[string]any)["id"])
}

func TestCreateTask_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", `{"stage":`, nil, http.StatusBadRequest},
		{"empty body", ``, nil, http.StatusBadRequest},
		{"unknown field", `{"stage":"Intake","weight":1,"color":"red"}`, nil, http.StatusBadRequest},
		{"validation", `{"stage":"Discovery","weight":1}`, eris.Wrap(tasks.ErrInvalid, "unknown stage"), http.StatusBadRequest},
		{"unknown matter", `{"stage":"Intake","weight":1}`, eris.Wrap(store.ErrNotFound, "matter m1"), http.StatusNotFound},
		{"store failure", `{"stage":"Intake","weight":1}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := &fakeTasks{err: tt.err}
			rec := do(t, newTestServer(&fakeMetrics{}, tk, config.ServerConfig{}), http.MethodPost, "/v1/matters/m1/tasks", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestUpdateTask(t *testing.T) {
	tk := &fakeTasks{}
	rec := do(t, newTestServer(&fakeMetrics{}, tk, config.ServerConfig{}), http.MethodPatch, "/v1/matters/m1/tasks/t1", `{"status":"Completed"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m1", tk.gotMatter)
	assert.Equal(t, "t1", tk.gotTask)
	assert.Equal(t, model.TaskStatusCompleted, tk.gotStatus)
	assert.Equal(t, 100.0, decode(t, rec)["progress"].(map[string]any)["overall"])
}

func TestDeleteTask(t *testing.T) {
	tk := &fakeTasks{}
	h := newTestServer(&fakeMetrics{}, tk, config.ServerConfig{})

	rec := do(t, h, http.MethodDelete, "/v1/matters/m1/tasks/t9", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t9", tk.gotTask)

	tk.err = eris.Wrap(store.ErrNotFound, "task t9")
	rec = do(t, h, http.MethodDelete, "/v1/matters/m1/tasks/t9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(&fakeMetrics{}, &fakeTasks{}, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/matters/m1/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/v1/matters/m1/metrics", "").Code)

	rec := do(t, h, http.MethodGet, "/v1/matters/m1/metrics", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health checks are not throttled
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "").Code)
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeMetrics{}, &fakeTasks{}, config.ServerConfig{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/matters/m1/metrics", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/matters/m1/metrics", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(&fakeMetrics{}, &fakeTasks{}, config.ServerConfig{}), http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
