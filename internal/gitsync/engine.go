// Package gitsync reconciles GitHub repository metadata into project records.
package gitsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/metrics"
	"github.com/foliolab/folio/internal/project"
)

// Fetcher is the slice of the GitHub client the engine needs.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, owner, name string) (*github.Snapshot, error)
	RateLimit(ctx context.Context) (*github.RateBudget, error)
}

// Options tunes the engine's pacing policy. One consistent policy everywhere:
// fixed-size batches with a fixed delay between them, and a quota floor that
// pre-empts scheduled bulk runs only.
type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	Freshness  time.Duration
	RateFloor  int
}

// Result is the per-project outcome of a sync attempt.
type Result struct {
	ProjectID string `json:"projectId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Engine orchestrates snapshot fetches and record reconciliation.
type Engine struct {
	fetcher  Fetcher
	projects project.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	opts     Options

	sleep func(time.Duration) // test seam for batch pacing
	now   func() time.Time
}

// New creates a sync engine. Zero option fields get defaults.
func New(fetcher Fetcher, projects project.Store, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = time.Second
	}
	if opts.Freshness <= 0 {
		opts.Freshness = 24 * time.Hour
	}
	if opts.RateFloor <= 0 {
		opts.RateFloor = 100
	}
	return &Engine{
		fetcher:  fetcher,
		projects: projects,
		metrics:  m,
		logger:   logger.With().Str("component", "gitsync").Logger(),
		opts:     opts,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// SyncOne syncs a single project. It never returns an error: every failure
// is folded into the Result so one bad project cannot poison a batch.
func (e *Engine) SyncOne(ctx context.Context, p project.Project) Result {
	return e.syncOne(ctx, p, "manual")
}

// SyncByID loads a project by id and syncs it.
func (e *Engine) SyncByID(ctx context.Context, id string) Result {
	p, err := e.projects.Get(ctx, id)
	if err != nil {
		return Result{ProjectID: id, Error: err.Error()}
	}
	return e.syncOne(ctx, *p, "manual")
}

func (e *Engine) syncOne(ctx context.Context, p project.Project, trigger string) Result {
	started := e.now()

	result := func(err error) Result {
		if err != nil {
			e.metrics.RecordSync(trigger, "error")
			e.logger.Warn().Err(err).Str("project", p.ID).Msg("project sync failed")
			return Result{ProjectID: p.ID, Error: err.Error()}
		}
		e.metrics.RecordSync(trigger, "ok")
		e.metrics.ObserveSyncDuration(e.now().Sub(started).Seconds())
		return Result{ProjectID: p.ID, Success: true}
	}

	if p.RepoURL == "" {
		return result(fmt.Errorf("%w: project has no repository URL", ferrors.ErrInvalidInput))
	}
	owner, name, ok := github.ParseRepoURL(p.RepoURL)
	if !ok {
		return result(fmt.Errorf("%w: unparseable repository URL %q", ferrors.ErrInvalidInput, p.RepoURL))
	}

	snap, err := e.fetcher.FetchSnapshot(ctx, owner, name)
	if err != nil {
		return result(fmt.Errorf("fetching %s/%s: %w", owner, name, err))
	}

	updated := reconcile(p, snap, e.now())
	if err := e.projects.Put(ctx, updated); err != nil {
		return result(fmt.Errorf("persisting %s: %w", p.ID, err))
	}

	e.logger.Info().
		Str("project", p.ID).
		Str("repo", owner+"/"+name).
		Int("stars", snap.Stars).
		Msg("project synced")
	return result(nil)
}

// SyncBatch processes projects in fixed-size batches. Projects within one
// batch run concurrently; a fixed delay separates consecutive batches, with
// no delay after the last one.
func (e *Engine) SyncBatch(ctx context.Context, projects []project.Project) []Result {
	return e.syncBatch(ctx, projects, "manual")
}

func (e *Engine) syncBatch(ctx context.Context, list []project.Project, trigger string) []Result {
	results := make([]Result, 0, len(list))

	for start := 0; start < len(list); start += e.opts.BatchSize {
		end := start + e.opts.BatchSize
		if end > len(list) {
			end = len(list)
		}
		batch := list[start:end]

		batchResults := make([]Result, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				batchResults[i] = e.syncOne(ctx, batch[i], trigger)
			}(i)
		}
		wg.Wait()
		results = append(results, batchResults...)

		if end < len(list) {
			e.sleep(e.opts.BatchDelay)
		}
	}

	return results
}

// SyncStale syncs every project whose repository metadata is older than the
// freshness window. It aborts before any work when the remaining API quota is
// under the configured floor — that guard applies to this bulk path only,
// never to single-project syncs.
func (e *Engine) SyncStale(ctx context.Context) ([]Result, error) {
	budget, err := e.fetcher.RateLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("probing rate budget: %w", err)
	}
	e.metrics.SetRateRemaining(float64(budget.Remaining))
	if budget.Remaining < e.opts.RateFloor {
		return nil, fmt.Errorf("%w: %d requests remaining, floor is %d (resets %s)",
			ferrors.ErrRateLimit, budget.Remaining, e.opts.RateFloor,
			budget.ResetTime.Format(time.RFC3339))
	}

	all, err := e.projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	cutoff := e.now().Add(-e.opts.Freshness)
	candidates := make([]project.Project, 0, len(all))
	for _, p := range all {
		if p.StaleBefore(cutoff) {
			candidates = append(candidates, p)
		}
	}

	e.logger.Info().
		Int("candidates", len(candidates)).
		Int("total", len(all)).
		Int("rate_remaining", budget.Remaining).
		Msg("starting stale sync")

	return e.syncBatch(ctx, candidates, "scheduled"), nil
}

// RateBudget exposes the quota probe for the HTTP surface.
func (e *Engine) RateBudget(ctx context.Context) (*github.RateBudget, error) {
	budget, err := e.fetcher.RateLimit(ctx)
	if err == nil {
		e.metrics.SetRateRemaining(float64(budget.Remaining))
	}
	return budget, err
}

// Preview fetches a snapshot for a raw URL without touching any record.
func (e *Engine) Preview(ctx context.Context, rawURL string) (*github.Snapshot, error) {
	owner, name, ok := github.ParseRepoURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: unparseable repository URL %q", ferrors.ErrInvalidInput, rawURL)
	}
	return e.fetcher.FetchSnapshot(ctx, owner, name)
}
