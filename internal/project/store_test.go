package project

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/kv"
)

func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(kv.NewMemoryStore(), zerolog.Nop())
}

func TestKVStore_EmptyList(t *testing.T) {
	store := newTestStore(t)
	projects, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestKVStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, Project{ID: "p1", Title: "Thesis code", RepoURL: "https://github.com/octo/thesis"}))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Thesis code", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestKVStore_PutReplacesAndKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Put(ctx, Project{ID: "p1", Title: "Old"}))
	first, err := store.Get(ctx, "p1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, Project{ID: "p1", Title: "New"}))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt) || got.UpdatedAt.Equal(first.UpdatedAt))

	projects, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}

func TestKVStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ferrors.ErrNotFound)
}

func TestKVStore_PutRequiresID(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), Project{Title: "no id"})
	assert.ErrorIs(t, err, ferrors.ErrInvalidInput)
}

func TestStaleBefore(t *testing.T) {
	cutoff := time.Now()
	old := cutoff.Add(-48 * time.Hour)
	fresh := cutoff.Add(time.Hour)

	tests := []struct {
		name string
		p    Project
		want bool
	}{
		{"no url", Project{}, false},
		{"never synced", Project{RepoURL: "https://github.com/o/r"}, true},
		{"stale", Project{RepoURL: "https://github.com/o/r", LastSyncedAt: &old}, true},
		{"fresh", Project{RepoURL: "https://github.com/o/r", LastSyncedAt: &fresh}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.StaleBefore(cutoff))
		})
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	path := filepath.Join(t.TempDir(), "projects.yaml")
	seed := `
- id: p1
  title: Thesis code
  description: Numerical experiments for chapter 3
  techStack: [go, python]
  displayOrder: 1
  repoUrl: https://github.com/octo/thesis
- id: p2
  title: Course site
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	require.NoError(t, Seed(ctx, store, path, zerolog.Nop()))

	projects, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Thesis code", projects[0].Title)
	assert.Equal(t, []string{"go", "python"}, projects[0].TechStack)
	assert.Nil(t, projects[0].Stats)
}

func TestSeed_SkipsWhenNotEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Put(ctx, Project{ID: "existing"}))

	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- id: p1\n  title: T\n"), 0o644))

	require.NoError(t, Seed(ctx, store, path, zerolog.Nop()))

	projects, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.Equal(t, "existing", projects[0].ID)
}

func TestSeed_RejectsMissingID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- title: no id\n"), 0o644))

	err := Seed(context.Background(), newTestStore(t), path, zerolog.Nop())
	assert.Error(t, err)
}
