package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliolab/folio/internal/gitsync"
)

type fakeSyncer struct {
	mu    sync.Mutex
	runs  int
	err   error
	items []gitsync.Result
}

func (f *fakeSyncer) SyncStale(context.Context) ([]gitsync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.items, f.err
}

func (f *fakeSyncer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestScheduler_FiresOnInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer := &fakeSyncer{items: []gitsync.Result{{ProjectID: "p1", Success: true}}}
	s := New(syncer, nil, 10*time.Millisecond, zerolog.Nop())

	go s.Run(ctx)

	require.Eventually(t, func() bool { return syncer.count() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_KeepsTickingAfterAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncer := &fakeSyncer{err: errors.New("quota low")}
	s := New(syncer, nil, 10*time.Millisecond, zerolog.Nop())

	go s.Run(ctx)

	require.Eventually(t, func() bool { return syncer.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	syncer := &fakeSyncer{}
	s := New(syncer, nil, 5*time.Millisecond, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
	assert.GreaterOrEqual(t, syncer.count(), 0)
}
