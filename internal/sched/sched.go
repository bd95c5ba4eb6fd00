// Package sched runs the periodic stale-project sync.
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolab/folio/internal/gitsync"
	"github.com/foliolab/folio/internal/notify"
)

// Syncer is the slice of the sync engine the scheduler drives.
type Syncer interface {
	SyncStale(ctx context.Context) ([]gitsync.Result, error)
}

// Scheduler fires the bulk sync on a fixed interval. Backed by a plain
// time.Ticker; the interval granularity here does not justify a cron spec.
type Scheduler struct {
	syncer   Syncer
	notifier *notify.Notifier
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a scheduler. notifier may be nil.
func New(syncer Syncer, notifier *notify.Notifier, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		notifier: notifier,
		interval: interval,
		logger:   logger.With().Str("component", "sched").Logger(),
	}
}

// Run blocks until the context is canceled, firing one sync run per tick.
// A failed run is logged and reported; the ticker keeps going regardless.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sync scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	results, err := s.syncer.SyncStale(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scheduled sync aborted")
		s.notifier.SyncAborted(err)
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info().Int("synced", len(results)-failed).Int("failed", failed).Msg("scheduled sync finished")
	s.notifier.SyncSummary(results)
}
