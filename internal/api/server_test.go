package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/gitsync"
	"github.com/foliolab/folio/internal/health"
	"github.com/foliolab/folio/internal/kv"
	"github.com/foliolab/folio/internal/metrics"
	"github.com/foliolab/folio/internal/project"
	"github.com/foliolab/folio/internal/snapcache"
	"github.com/foliolab/folio/internal/tracker"
)

type stubFetcher struct {
	fetches int
	budget  github.RateBudget
}

func (f *stubFetcher) FetchSnapshot(_ context.Context, owner, name string) (*github.Snapshot, error) {
	f.fetches++
	desc := "Stubbed description"
	return &github.Snapshot{
		Owner:       owner,
		Name:        name,
		Description: &desc,
		Stars:       10,
		Forks:       2,
		FetchedAt:   time.Now(),
	}, nil
}

func (f *stubFetcher) RateLimit(context.Context) (*github.RateBudget, error) {
	b := f.budget
	return &b, nil
}

type testServer struct {
	server   *Server
	fetcher  *stubFetcher
	tracker  *tracker.Store
	projects *project.KVStore
}

func newTestServer(t *testing.T, cronSecret string) *testServer {
	t.Helper()

	m := metrics.New()
	backend := kv.NewMemoryStore()
	projects := project.NewKVStore(backend, zerolog.Nop())
	trackerStore := tracker.NewStore(backend, m, zerolog.Nop())
	require.NoError(t, trackerStore.Load(context.Background()))

	fetcher := &stubFetcher{budget: github.RateBudget{Remaining: 5000, Limit: 5000}}
	engine := gitsync.New(fetcher, projects, m, zerolog.Nop(), gitsync.Options{})

	checker := health.NewChecker(zerolog.Nop())
	previews := snapcache.New[*github.Snapshot](8, time.Minute)

	handlers := NewHandlers(trackerStore, engine, checker, previews, cronSecret, zerolog.Nop())
	server := NewServer(ServerConfig{}, handlers, m, zerolog.Nop())

	return &testServer{server: server, fetcher: fetcher, tracker: trackerStore, projects: projects}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.server.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[HealthResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
}

func TestGoals_RoundTrip(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/api/v1/goals", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[GoalsPayload](t, resp).Goals)

	payload := GoalsPayload{Goals: []tracker.Goal{{
		ID:       "g1",
		Title:    "Submit paper",
		Status:   tracker.StatusActive,
		Priority: tracker.PriorityHigh,
		Type:     tracker.TypeDeadline,
	}}}
	resp = ts.do(t, http.MethodPost, "/api/v1/goals", payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/goals", nil)
	got := decode[GoalsPayload](t, resp)
	require.Len(t, got.Goals, 1)
	assert.Equal(t, "Submit paper", got.Goals[0].Title)
}

func TestGoals_SaveRejectsMissingArray(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodPost, "/api/v1/goals", map[string]string{"oops": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAddGoal_GeneratesID(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/api/v1/goals/item", tracker.Goal{
		Title:    "Finish draft",
		Priority: tracker.PriorityHigh,
		Type:     tracker.TypeOpenEnded,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	goal := decode[tracker.Goal](t, resp)
	assert.NotEmpty(t, goal.ID)
	assert.Equal(t, tracker.StatusActive, goal.Status)
	assert.Equal(t, goal.CreatedAt, goal.UpdatedAt)
}

func TestMoveGoal(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/api/v1/goals/item", tracker.Goal{
		Title:    "Goal",
		Priority: tracker.PriorityLow,
		Type:     tracker.TypeOpenEnded,
	})
	goal := decode[tracker.Goal](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/v1/goals/"+goal.ID+"/status", MoveGoalRequest{Status: tracker.StatusCompleted})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	moved := decode[tracker.Goal](t, resp)
	assert.Equal(t, tracker.StatusCompleted, moved.Status)
	assert.NotNil(t, moved.CompletedAt)

	resp = ts.do(t, http.MethodPost, "/api/v1/goals/missing/status", MoveGoalRequest{Status: tracker.StatusArchived})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteGoal(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodPost, "/api/v1/goals/item", tracker.Goal{
		Title:    "Goal",
		Priority: tracker.PriorityLow,
		Type:     tracker.TypeOpenEnded,
	})
	goal := decode[tracker.Goal](t, resp)

	resp = ts.do(t, http.MethodDelete, "/api/v1/goals/"+goal.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/v1/goals/"+goal.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_StartStopTimer(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/api/v1/timer", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/v1/sessions/start", StartSessionRequest{
		Title:          "Deep work",
		Type:           tracker.SessionWork,
		PlannedMinutes: 25,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[tracker.WorkSession](t, resp)
	assert.True(t, session.IsActive)

	resp = ts.do(t, http.MethodGet, "/api/v1/timer", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	timer := decode[tracker.Timer](t, resp)
	assert.Equal(t, session.ID, timer.SessionID)

	resp = ts.do(t, http.MethodPost, "/api/v1/sessions/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	stopped := decode[tracker.WorkSession](t, resp)
	assert.False(t, stopped.IsActive)
	assert.NotNil(t, stopped.EndedAt)

	resp = ts.do(t, http.MethodPost, "/api/v1/sessions/stop", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_SaveRejectsUnknownType(t *testing.T) {
	ts := newTestServer(t, "")
	payload := SessionsPayload{Sessions: []tracker.WorkSession{{ID: "s1", Title: "x", Type: "napping"}}}
	resp := ts.do(t, http.MethodPost, "/api/v1/sessions", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncProject(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := context.Background()
	require.NoError(t, ts.projects.Put(ctx, project.Project{ID: "p1", RepoURL: "https://github.com/octo/demo"}))

	resp := ts.do(t, http.MethodPost, "/api/v1/sync/p1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[gitsync.Result](t, resp)
	assert.True(t, result.Success)

	stored, err := ts.projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, stored.Stats)
	assert.Equal(t, 10, stored.Stats.Stars)
}

func TestSyncAll_QuotaLow(t *testing.T) {
	ts := newTestServer(t, "")
	ts.fetcher.budget = github.RateBudget{Remaining: 10, Limit: 5000}

	resp := ts.do(t, http.MethodPost, "/api/v1/sync", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPreview_CachesByRepo(t *testing.T) {
	ts := newTestServer(t, "")

	resp := ts.do(t, http.MethodGet, "/api/v1/sync/preview?url=https://github.com/octo/demo", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[PreviewResponse](t, resp)
	assert.False(t, first.Cached)
	assert.Equal(t, 10, first.Snapshot.Stars)

	resp = ts.do(t, http.MethodGet, "/api/v1/sync/preview?url=https://github.com/octo/demo.git", nil)
	second := decode[PreviewResponse](t, resp)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, ts.fetcher.fetches)

	resp = ts.do(t, http.MethodGet, "/api/v1/sync/preview?url=not-a-url", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/sync/preview", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateBudget(t *testing.T) {
	ts := newTestServer(t, "")
	resp := ts.do(t, http.MethodGet, "/api/v1/sync/rate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[RateResponse](t, resp)
	assert.Equal(t, 5000, body.Remaining)
}

func TestCronSync_Guard(t *testing.T) {
	t.Run("unconfigured secret", func(t *testing.T) {
		ts := newTestServer(t, "")
		resp := ts.do(t, http.MethodPost, "/api/v1/cron/sync", nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		ts := newTestServer(t, "s3cret")
		resp := ts.do(t, http.MethodPost, "/api/v1/cron/sync", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong token", func(t *testing.T) {
		ts := newTestServer(t, "s3cret")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/sync", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		resp, err := ts.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		ts := newTestServer(t, "s3cret")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cron/sync", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		resp, err := ts.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[CronResponse](t, resp)
		assert.Equal(t, "completed", body.Status)
	})

	t.Run("quota abort reported as 200", func(t *testing.T) {
		ts := newTestServer(t, "s3cret")
		ts.fetcher.budget = github.RateBudget{Remaining: 1, Limit: 5000}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/sync", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		resp, err := ts.server.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[CronResponse](t, resp)
		assert.Equal(t, "aborted", body.Status)
	})
}
