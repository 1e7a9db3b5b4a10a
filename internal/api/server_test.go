package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/settings"
	"github.com/IshaanNene/commentgoat/internal/storage"
	"github.com/IshaanNene/commentgoat/internal/types"
)

type fakeRunner struct {
	mu       sync.Mutex
	release  chan struct{}
	policies []types.Policy
	busy     map[string]bool
	err      error
	progress func(engine.Progress)
}

func (r *fakeRunner) Run(ctx context.Context, origin string, policy types.Policy, startURL string, sink engine.Sink) (*engine.RunState, error) {
	r.mu.Lock()
	r.policies = append(r.policies, policy)
	r.mu.Unlock()
	defer sink.Close()

	if r.progress != nil {
		r.progress(engine.Progress{Origin: origin, Pages: 1, Records: 20, Percent: 50, ETA: 3 * time.Second})
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return &engine.RunState{Origin: origin}, ctx.Err()
		}
	}
	if r.err != nil {
		return &engine.RunState{Origin: origin, Pages: 1}, r.err
	}
	return &engine.RunState{Origin: origin, Pages: 2, Records: 40, LastURL: startURL + "?p=2"}, nil
}

func (r *fakeRunner) Busy(origin string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy[origin]
}

type fakeChecker struct {
	disabled map[settings.Trigger]bool
}

func (f fakeChecker) CheckTrigger(_ context.Context, t settings.Trigger) error {
	if f.disabled[t] {
		return fmt.Errorf("%s: %w", t.Key(), types.ErrTriggerDisabled)
	}
	return nil
}

func newTestServer(t *testing.T, runner *fakeRunner, checker fakeChecker, cfg config.ServerConfig) *Server {
	t.Helper()
	cfg.Mode = "test"
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1000
		cfg.Burst = 1000
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(cfg, checker, logger,
		WithSinkFactory(func(string) (engine.Sink, error) { return storage.NewStagingSink(logger), nil }),
	)
	srv.SetRunner(runner)
	runner.progress = srv.Progress
	t.Cleanup(srv.Shutdown)
	return srv
}

func postRun(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func getJob(t *testing.T, h http.Handler, id string) (int, Job) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id, nil))
	var job Job
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	}
	return w.Code, job
}

func TestCreateRunCompletes(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(t, runner, fakeChecker{}, config.ServerConfig{})

	w := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/board/1", Policy: "count", Value: 1000})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := resp["id"]
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		_, job := getJob(t, srv.Handler(), id)
		return job.Status == JobCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, job := getJob(t, srv.Handler(), id)
	assert.Equal(t, "https://example.com", job.Origin)
	assert.Equal(t, "CONFIG_UI_ADD_1000", job.Trigger)
	assert.Equal(t, 40, job.Records)
	assert.Equal(t, float64(100), job.Percent)
	assert.Equal(t, "https://example.com/board/1?p=2", job.LastURL)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.policies, 1)
	assert.Equal(t, types.ByPageCount, runner.policies[0].Kind)
	assert.Equal(t, 50, runner.policies[0].DepthPages)
}

func TestCreateRunConflictWhileRunning(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv := newTestServer(t, runner, fakeChecker{}, config.ServerConfig{})

	first := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/a", Policy: "all"})
	require.Equal(t, http.StatusAccepted, first.Code)

	second := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/b", Policy: "days", Value: 7})
	assert.Equal(t, http.StatusConflict, second.Code)

	other := postRun(t, srv.Handler(), RunRequest{URL: "https://other.example/a", Policy: "days", Value: 1})
	assert.Equal(t, http.StatusAccepted, other.Code)

	close(runner.release)
}

func TestCreateRunConflictWithRunnerBusy(t *testing.T) {
	runner := &fakeRunner{busy: map[string]bool{"https://example.com": true}}
	srv := newTestServer(t, runner, fakeChecker{}, config.ServerConfig{})

	w := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/a", Policy: "all"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, runner.policies)
}

func TestCreateRunProgressVisible(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv := newTestServer(t, runner, fakeChecker{}, config.ServerConfig{})

	w := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/a", Policy: "all"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		_, job := getJob(t, srv.Handler(), resp["id"])
		return job.Records == 20
	}, 2*time.Second, 10*time.Millisecond)

	_, job := getJob(t, srv.Handler(), resp["id"])
	assert.Equal(t, JobRunning, job.Status)
	assert.Equal(t, float64(50), job.Percent)
	assert.Equal(t, "3s", job.ETA)

	close(runner.release)
}

func TestCreateRunFailure(t *testing.T) {
	runner := &fakeRunner{err: types.ErrStillBlocked}
	srv := newTestServer(t, runner, fakeChecker{}, config.ServerConfig{})

	w := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/a", Policy: "all"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Eventually(t, func() bool {
		_, job := getJob(t, srv.Handler(), resp["id"])
		return job.Status == JobFailed
	}, 2*time.Second, 10*time.Millisecond)

	_, job := getJob(t, srv.Handler(), resp["id"])
	assert.Contains(t, job.Error, types.ErrStillBlocked.Error())

	again := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com/a", Policy: "all"})
	assert.Equal(t, http.StatusAccepted, again.Code, "origin is released after a failed run")
}

func TestCreateRunBadRequests(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, fakeChecker{}, config.ServerConfig{})

	cases := map[string]RunRequest{
		"missing url":     {Policy: "all"},
		"bad scheme":      {URL: "ftp://example.com", Policy: "all"},
		"unknown policy":  {URL: "https://example.com", Policy: "weeks", Value: 2},
		"unsupported cnt": {URL: "https://example.com", Policy: "count", Value: 500},
		"unsupported day": {URL: "https://example.com", Policy: "days", Value: 3},
		"preload":         {URL: "https://example.com", Policy: "next", Value: 20},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			w := postRun(t, srv.Handler(), req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateRunDisabledTrigger(t *testing.T) {
	runner := &fakeRunner{}
	checker := fakeChecker{disabled: map[settings.Trigger]bool{settings.TriggerSave7Day: true}}
	srv := newTestServer(t, runner, checker, config.ServerConfig{})

	w := postRun(t, srv.Handler(), RunRequest{URL: "https://example.com", Policy: "days", Value: 7})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postRun(t, srv.Handler(), RunRequest{URL: "https://example.com", Policy: "days", Value: 1})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, fakeChecker{}, config.ServerConfig{RequestsPerSecond: 0.001, Burst: 1})

	h := srv.Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health is not rate limited")
}

func TestHealthAndUnknownRun(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, fakeChecker{}, config.ServerConfig{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(0), health["active_runs"])

	code, _ := getJob(t, srv.Handler(), "missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListRuns(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, fakeChecker{}, config.ServerConfig{})
	require.Equal(t, http.StatusAccepted, postRun(t, srv.Handler(), RunRequest{URL: "https://a.example", Policy: "all"}).Code)
	require.Equal(t, http.StatusAccepted, postRun(t, srv.Handler(), RunRequest{URL: "https://b.example", Policy: "all"}).Code)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Runs  []Job `json:"runs"`
		Count int   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func TestMetricsRoute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "commentgoat_pages_fetched_total 3\n")
	})
	srv := NewServer(config.ServerConfig{Mode: "test", RequestsPerSecond: 10, Burst: 10}, fakeChecker{}, logger, WithMetricsHandler(metrics))
	t.Cleanup(srv.Shutdown)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "commentgoat_pages_fetched_total")
}
