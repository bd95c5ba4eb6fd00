package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/kv"
	"github.com/foliolab/folio/internal/metrics"
)

// Store keeps goals and work sessions in memory and mirrors them to the
// key-value backend. Every mutation is optimistic: the in-memory state
// changes first, then the full collection is written out; a failed write
// rolls the in-memory state back and the error is returned to the caller.
type Store struct {
	mu       sync.Mutex
	kv       kv.Store
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	goals    []Goal
	sessions []WorkSession

	now func() time.Time
}

// NewStore creates an empty store; call Load to hydrate it from the backend.
func NewStore(backend kv.Store, m *metrics.Metrics, logger zerolog.Logger) *Store {
	return &Store{
		kv:      backend,
		metrics: m,
		logger:  logger.With().Str("component", "tracker").Logger(),
		now:     time.Now,
	}
}

// Load hydrates both collections from the backend. A missing key is an empty
// collection. Any session persisted as active is a corrupt leftover and is
// closed on load; an active session never survives a restart.
func (s *Store) Load(ctx context.Context) error {
	goals, err := s.loadGoals(ctx)
	if err != nil {
		return err
	}

	sessions := []WorkSession{}
	raw, err := s.kv.Get(ctx, kv.KeySessions)
	if err != nil && !errors.Is(err, ferrors.ErrNotFound) {
		return fmt.Errorf("loading sessions: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(raw, &sessions); err != nil {
			return fmt.Errorf("decoding sessions: %w", err)
		}
	}
	for i := range sessions {
		if sessions[i].IsActive {
			s.logger.Warn().Str("session", sessions[i].ID).Msg("discarding active flag on persisted session")
			ended := sessions[i].StartedAt
			sessions[i].IsActive = false
			if sessions[i].EndedAt == nil {
				sessions[i].EndedAt = &ended
			}
		}
	}

	s.mu.Lock()
	s.goals = goals
	s.sessions = sessions
	s.mu.Unlock()

	s.logger.Info().Int("goals", len(goals)).Int("sessions", len(sessions)).Msg("tracker state loaded")
	return nil
}

func (s *Store) loadGoals(ctx context.Context) ([]Goal, error) {
	raw, err := s.kv.Get(ctx, kv.KeyGoals)
	if errors.Is(err, ferrors.ErrNotFound) {
		return []Goal{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading goals: %w", err)
	}
	var goals []Goal
	if err := json.Unmarshal(raw, &goals); err != nil {
		return nil, fmt.Errorf("decoding goals: %w", err)
	}
	return goals, nil
}

// Goals returns a copy of the goal collection.
func (s *Store) Goals() []Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Goal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Sessions returns a copy of the session collection, active session included.
func (s *Store) Sessions() []WorkSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// ActiveSession returns the currently active session, if any.
func (s *Store) ActiveSession() *WorkSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *Store) activeLocked() *WorkSession {
	for i := range s.sessions {
		if s.sessions[i].IsActive {
			session := s.sessions[i]
			return &session
		}
	}
	return nil
}

// AddGoal creates a goal. ID and timestamps are assigned here.
func (s *Store) AddGoal(ctx context.Context, g Goal) (Goal, error) {
	now := s.now().UTC()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = StatusActive
	}
	if g.Status == StatusCompleted && g.CompletedAt == nil {
		g.CompletedAt = &now
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := g.Validate(); err != nil {
		s.metrics.RecordMutation("add_goal", "invalid")
		return Goal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutateGoalsLocked(ctx, "add_goal", func(goals []Goal) ([]Goal, error) {
		return append(goals, g), nil
	})
	if err != nil {
		return Goal{}, err
	}
	return g, nil
}

// UpdateGoal replaces the goal with a matching ID. CreatedAt is preserved;
// a transition to completed stamps the completion time if the caller did not.
func (s *Store) UpdateGoal(ctx context.Context, g Goal) (Goal, error) {
	if g.ID == "" {
		return Goal{}, fmt.Errorf("%w: goal id is required", ferrors.ErrInvalidInput)
	}
	now := s.now().UTC()
	if g.Status == StatusCompleted && g.CompletedAt == nil {
		g.CompletedAt = &now
	}
	g.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutateGoalsLocked(ctx, "update_goal", func(goals []Goal) ([]Goal, error) {
		for i := range goals {
			if goals[i].ID == g.ID {
				g.CreatedAt = goals[i].CreatedAt
				if err := g.Validate(); err != nil {
					return nil, err
				}
				next := make([]Goal, len(goals))
				copy(next, goals)
				next[i] = g
				return next, nil
			}
		}
		return nil, fmt.Errorf("%w: goal %s", ferrors.ErrNotFound, g.ID)
	})
	if err != nil {
		return Goal{}, err
	}
	return g, nil
}

// MoveGoal transitions a goal to a new status. Moving to completed stamps
// the completion time.
func (s *Store) MoveGoal(ctx context.Context, id string, status GoalStatus) (Goal, error) {
	s.mu.Lock()
	var moved Goal
	found := false
	for i := range s.goals {
		if s.goals[i].ID == id {
			moved = s.goals[i]
			found = true
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return Goal{}, fmt.Errorf("%w: goal %s", ferrors.ErrNotFound, id)
	}

	moved.Status = status
	if status == StatusCompleted && moved.CompletedAt == nil {
		now := s.now().UTC()
		moved.CompletedAt = &now
	}
	return s.UpdateGoal(ctx, moved)
}

// DeleteGoal removes a goal by ID.
func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutateGoalsLocked(ctx, "delete_goal", func(goals []Goal) ([]Goal, error) {
		next := make([]Goal, 0, len(goals))
		for _, g := range goals {
			if g.ID != id {
				next = append(next, g)
			}
		}
		if len(next) == len(goals) {
			return nil, fmt.Errorf("%w: goal %s", ferrors.ErrNotFound, id)
		}
		return next, nil
	})
}

// ReplaceGoals overwrites the whole goal collection. This backs the HTTP
// full-collection save.
func (s *Store) ReplaceGoals(ctx context.Context, goals []Goal) error {
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateGoalsLocked(ctx, "replace_goals", func([]Goal) ([]Goal, error) {
		return goals, nil
	})
}

// StartSession begins a new session, closing any currently active one first
// so that at most one session is ever active.
func (s *Store) StartSession(ctx context.Context, session WorkSession) (WorkSession, error) {
	if session.Type == "" {
		session.Type = SessionWork
	}
	if !ValidSessionType(session.Type) {
		s.metrics.RecordMutation("start_session", "invalid")
		return WorkSession{}, fmt.Errorf("%w: unknown session type %q", ferrors.ErrInvalidInput, session.Type)
	}
	now := s.now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.StartedAt = now
	session.EndedAt = nil
	session.IsActive = true

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.mutateSessionsLocked(ctx, "start_session", func(sessions []WorkSession) ([]WorkSession, error) {
		next := make([]WorkSession, len(sessions))
		copy(next, sessions)
		for i := range next {
			if next[i].IsActive {
				ended := now
				next[i].IsActive = false
				next[i].EndedAt = &ended
			}
		}
		return append(next, session), nil
	})
	if err != nil {
		return WorkSession{}, err
	}
	return session, nil
}

// StopSession closes the active session, stamping its end time.
func (s *Store) StopSession(ctx context.Context) (WorkSession, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var stopped WorkSession
	err := s.mutateSessionsLocked(ctx, "stop_session", func(sessions []WorkSession) ([]WorkSession, error) {
		next := make([]WorkSession, len(sessions))
		copy(next, sessions)
		for i := range next {
			if next[i].IsActive {
				ended := now
				next[i].IsActive = false
				next[i].EndedAt = &ended
				stopped = next[i]
				return next, nil
			}
		}
		return nil, fmt.Errorf("%w: no active session", ferrors.ErrNotFound)
	})
	if err != nil {
		return WorkSession{}, err
	}
	return stopped, nil
}

// ReplaceSessions overwrites the whole session collection. Incoming active
// flags are not honored; session activity is owned by this process.
func (s *Store) ReplaceSessions(ctx context.Context, sessions []WorkSession) error {
	for i := range sessions {
		if !ValidSessionType(sessions[i].Type) {
			return fmt.Errorf("%w: unknown session type %q", ferrors.ErrInvalidInput, sessions[i].Type)
		}
		sessions[i].IsActive = false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateSessionsLocked(ctx, "replace_sessions", func([]WorkSession) ([]WorkSession, error) {
		return sessions, nil
	})
}

// Run reconciles the goal collection from the backend on a fixed interval.
// Remote wins: whatever is persisted replaces the in-memory goals wholesale.
// Returns when the context is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("goal reconciliation started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("goal reconciliation stopped")
			return
		case <-ticker.C:
			goals, err := s.loadGoals(ctx)
			if err != nil {
				s.metrics.RecordError("tracker", "reconcile")
				s.logger.Warn().Err(err).Msg("goal reconciliation fetch failed")
				continue
			}
			s.mu.Lock()
			s.goals = goals
			s.mu.Unlock()
		}
	}
}

// mutateGoalsLocked applies next() optimistically and persists the result,
// restoring the previous collection when the write fails. Caller holds s.mu.
func (s *Store) mutateGoalsLocked(ctx context.Context, op string, next func([]Goal) ([]Goal, error)) error {
	snapshot := s.goals

	updated, err := next(s.goals)
	if err != nil {
		s.metrics.RecordMutation(op, "invalid")
		return err
	}
	s.goals = updated

	if err := s.persist(ctx, kv.KeyGoals, updated); err != nil {
		s.goals = snapshot
		s.metrics.RecordMutation(op, "error")
		s.metrics.RecordRollback()
		s.logger.Warn().Err(err).Str("op", op).Msg("goal write failed, state rolled back")
		return fmt.Errorf("persisting goals: %w", err)
	}
	s.metrics.RecordMutation(op, "ok")
	return nil
}

// mutateSessionsLocked mirrors mutateGoalsLocked for the session collection.
// Active sessions are filtered out of the durable write; they exist only in
// memory until stopped.
func (s *Store) mutateSessionsLocked(ctx context.Context, op string, next func([]WorkSession) ([]WorkSession, error)) error {
	snapshot := s.sessions

	updated, err := next(s.sessions)
	if err != nil {
		s.metrics.RecordMutation(op, "invalid")
		return err
	}
	s.sessions = updated

	durable := make([]WorkSession, 0, len(updated))
	for _, session := range updated {
		if !session.IsActive {
			durable = append(durable, session)
		}
	}

	if err := s.persist(ctx, kv.KeySessions, durable); err != nil {
		s.sessions = snapshot
		s.metrics.RecordMutation(op, "error")
		s.metrics.RecordRollback()
		s.logger.Warn().Err(err).Str("op", op).Msg("session write failed, state rolled back")
		return fmt.Errorf("persisting sessions: %w", err)
	}
	s.metrics.RecordMutation(op, "ok")
	return nil
}

func (s *Store) persist(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, raw)
}
