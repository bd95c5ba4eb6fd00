package gitsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/kv"
	"github.com/foliolab/folio/internal/metrics"
	"github.com/foliolab/folio/internal/project"
)

// fakeFetcher serves canned snapshots keyed by "owner/name" and can be told
// to fail specific repositories.
type fakeFetcher struct {
	mu      sync.Mutex
	fail    map[string]error
	budget  github.RateBudget
	fetches []string
}

func (f *fakeFetcher) FetchSnapshot(_ context.Context, owner, name string) (*github.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := owner + "/" + name
	f.fetches = append(f.fetches, key)
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	snap := sampleSnapshot()
	snap.Owner = owner
	snap.Name = name
	return snap, nil
}

func (f *fakeFetcher) RateLimit(context.Context) (*github.RateBudget, error) {
	b := f.budget
	return &b, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

type engineHarness struct {
	engine   *Engine
	fetcher  *fakeFetcher
	projects *project.KVStore
	sleeps   []time.Duration
}

func newHarness(t *testing.T, opts Options) *engineHarness {
	t.Helper()
	h := &engineHarness{
		fetcher:  &fakeFetcher{fail: map[string]error{}, budget: github.RateBudget{Remaining: 5000, Limit: 5000}},
		projects: project.NewKVStore(kv.NewMemoryStore(), zerolog.Nop()),
	}
	h.engine = New(h.fetcher, h.projects, metrics.New(), zerolog.Nop(), opts)
	h.engine.sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	return h
}

func (h *engineHarness) seed(t *testing.T, projects ...project.Project) {
	t.Helper()
	for _, p := range projects {
		require.NoError(t, h.projects.Put(context.Background(), p))
	}
}

func TestSyncOne_UpdatesRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	h.seed(t, project.Project{ID: "p1", RepoURL: "https://github.com/octo/demo"})

	p, err := h.projects.Get(ctx, "p1")
	require.NoError(t, err)

	res := h.engine.SyncOne(ctx, *p)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)

	got, err := h.projects.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 42, got.Stats.Stars)
	assert.NotNil(t, got.LastSyncedAt)
}

func TestSyncOne_BadURLDoesNotError(t *testing.T) {
	h := newHarness(t, Options{})

	res := h.engine.SyncOne(context.Background(), project.Project{ID: "p1", RepoURL: "https://gitlab.com/o/r"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unparseable")
	assert.Zero(t, h.fetcher.fetchCount())
}

func TestSyncOne_FetchFailureIsContained(t *testing.T) {
	h := newHarness(t, Options{})
	h.fetcher.fail["octo/demo"] = fmt.Errorf("%w: boom", ferrors.ErrUnavailable)

	res := h.engine.SyncOne(context.Background(), project.Project{ID: "p1", RepoURL: "https://github.com/octo/demo"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
}

func TestSyncByID_Missing(t *testing.T) {
	h := newHarness(t, Options{})
	res := h.engine.SyncByID(context.Background(), "nope")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSyncBatch_Pacing(t *testing.T) {
	h := newHarness(t, Options{BatchSize: 3, BatchDelay: 250 * time.Millisecond})

	var list []project.Project
	for i := 0; i < 7; i++ {
		list = append(list, project.Project{
			ID:      fmt.Sprintf("p%d", i),
			RepoURL: fmt.Sprintf("https://github.com/octo/repo%d", i),
		})
	}

	results := h.engine.SyncBatch(context.Background(), list)
	require.Len(t, results, 7)
	for _, r := range results {
		assert.True(t, r.Success, r.ProjectID)
	}

	// ceil(7/3) = 3 batches, so exactly 2 inter-batch delays and none trailing.
	require.Len(t, h.sleeps, 2)
	for _, d := range h.sleeps {
		assert.Equal(t, 250*time.Millisecond, d)
	}
	assert.Equal(t, 7, h.fetcher.fetchCount())
}

func TestSyncBatch_FailureIsolation(t *testing.T) {
	h := newHarness(t, Options{BatchSize: 2})
	h.fetcher.fail["octo/bad"] = errors.New("boom")

	list := []project.Project{
		{ID: "good1", RepoURL: "https://github.com/octo/good1"},
		{ID: "bad", RepoURL: "https://github.com/octo/bad"},
		{ID: "good2", RepoURL: "https://github.com/octo/good2"},
	}

	results := h.engine.SyncBatch(context.Background(), list)
	require.Len(t, results, 3)
	byID := map[string]Result{}
	for _, r := range results {
		byID[r.ProjectID] = r
	}
	assert.True(t, byID["good1"].Success)
	assert.False(t, byID["bad"].Success)
	assert.True(t, byID["good2"].Success)
}

func TestSyncStale_SkipsFreshProjects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{Freshness: 24 * time.Hour})

	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now().Add(-time.Hour)
	h.seed(t,
		project.Project{ID: "stale", RepoURL: "https://github.com/octo/stale", LastSyncedAt: &old},
		project.Project{ID: "fresh", RepoURL: "https://github.com/octo/fresh", LastSyncedAt: &fresh},
		project.Project{ID: "never", RepoURL: "https://github.com/octo/never"},
		project.Project{ID: "nourl"},
	)

	results, err := h.engine.SyncStale(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].ProjectID, results[1].ProjectID}
	assert.ElementsMatch(t, []string{"stale", "never"}, ids)
}

func TestSyncStale_AbortsUnderRateFloor(t *testing.T) {
	h := newHarness(t, Options{RateFloor: 100})
	h.fetcher.budget = github.RateBudget{Remaining: 40, Limit: 5000, ResetTime: time.Now().Add(time.Hour)}
	h.seed(t, project.Project{ID: "p1", RepoURL: "https://github.com/octo/demo"})

	results, err := h.engine.SyncStale(context.Background())
	assert.ErrorIs(t, err, ferrors.ErrRateLimit)
	assert.Nil(t, results)
	assert.Zero(t, h.fetcher.fetchCount())
}

func TestPreview(t *testing.T) {
	h := newHarness(t, Options{})

	snap, err := h.engine.Preview(context.Background(), "https://github.com/octo/demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", snap.Name)

	_, err = h.engine.Preview(context.Background(), "not a url")
	assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
}
