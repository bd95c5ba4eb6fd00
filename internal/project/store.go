package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/kv"
)

// Store is the persistence contract for project records.
type Store interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	Put(ctx context.Context, p Project) error
}

// KVStore persists the full project collection as one JSON value in the
// key-value store. There are no per-record writes; every Put rewrites the
// whole collection (last writer wins, matching the backend's semantics).
type KVStore struct {
	mu     sync.Mutex
	kv     kv.Store
	logger zerolog.Logger
}

// NewKVStore creates a project store backed by the given key-value store.
func NewKVStore(backend kv.Store, logger zerolog.Logger) *KVStore {
	return &KVStore{
		kv:     backend,
		logger: logger.With().Str("component", "project_store").Logger(),
	}
}

func (s *KVStore) List(ctx context.Context) ([]Project, error) {
	raw, err := s.kv.Get(ctx, kv.KeyProjects)
	if errors.Is(err, ferrors.ErrNotFound) {
		return []Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}

	var projects []Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, fmt.Errorf("decoding projects: %w", err)
	}
	return projects, nil
}

func (s *KVStore) Get(ctx context.Context, id string) (*Project, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, ferrors.ErrNotFound
}

// Put inserts or replaces one record and rewrites the collection.
func (s *KVStore) Put(ctx context.Context, p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		return fmt.Errorf("%w: project id is required", ferrors.ErrInvalidInput)
	}

	projects, err := s.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	replaced := false
	for i := range projects {
		if projects[i].ID == p.ID {
			// Creation time survives updates.
			if !projects[i].CreatedAt.IsZero() {
				p.CreatedAt = projects[i].CreatedAt
			}
			projects[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append(projects, p)
	}

	return s.write(ctx, projects)
}

func (s *KVStore) write(ctx context.Context, projects []Project) error {
	raw, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("encoding projects: %w", err)
	}
	if err := s.kv.Set(ctx, kv.KeyProjects, raw); err != nil {
		return fmt.Errorf("persisting projects: %w", err)
	}
	return nil
}
