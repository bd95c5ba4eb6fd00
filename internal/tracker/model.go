// Package tracker holds the goals and work-session state store.
package tracker

import (
	"fmt"
	"time"

	ferrors "github.com/foliolab/folio/internal/errors"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	StatusActive      GoalStatus = "active"
	StatusCompleted   GoalStatus = "completed"
	StatusNotAchieved GoalStatus = "not_achieved"
	StatusArchived    GoalStatus = "archived"
)

// GoalPriority orders goals by urgency.
type GoalPriority string

const (
	PriorityLow      GoalPriority = "low"
	PriorityMedium   GoalPriority = "medium"
	PriorityHigh     GoalPriority = "high"
	PriorityCritical GoalPriority = "critical"
)

// GoalType selects which target payload applies.
type GoalType string

const (
	TypeDeadline  GoalType = "deadline"
	TypeDuration  GoalType = "duration"
	TypeOpenEnded GoalType = "open_ended"
	TypeRecurring GoalType = "recurring"
)

// DurationTarget is the payload for duration goals.
type DurationTarget struct {
	Amount    int       `json:"amount"`
	Unit      string    `json:"unit"` // hours | days | weeks
	StartedAt time.Time `json:"startedAt"`
}

// RecurringTarget is the payload for recurring goals.
type RecurringTarget struct {
	Frequency string `json:"frequency"` // daily | weekly | monthly
	Target    int    `json:"target"`
}

// Goal is one tracked goal.
type Goal struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      GoalStatus   `json:"status"`
	Priority    GoalPriority `json:"priority"`
	Category    string       `json:"category,omitempty"`
	Type        GoalType     `json:"goalType"`

	Deadline  *time.Time       `json:"deadline,omitempty"`
	Duration  *DurationTarget  `json:"duration,omitempty"`
	Recurring *RecurringTarget `json:"recurring,omitempty"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the goal's enums and cross-field invariants.
func (g Goal) Validate() error {
	if g.Title == "" {
		return fmt.Errorf("%w: goal title is required", ferrors.ErrInvalidInput)
	}
	switch g.Status {
	case StatusActive, StatusCompleted, StatusNotAchieved, StatusArchived:
	default:
		return fmt.Errorf("%w: unknown goal status %q", ferrors.ErrInvalidInput, g.Status)
	}
	switch g.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		return fmt.Errorf("%w: unknown goal priority %q", ferrors.ErrInvalidInput, g.Priority)
	}
	switch g.Type {
	case TypeDeadline, TypeDuration, TypeOpenEnded, TypeRecurring:
	default:
		return fmt.Errorf("%w: unknown goal type %q", ferrors.ErrInvalidInput, g.Type)
	}
	if g.Status == StatusCompleted && g.CompletedAt == nil {
		return fmt.Errorf("%w: completed goal needs a completion timestamp", ferrors.ErrInvalidInput)
	}
	return nil
}

// SessionType categorizes a work session.
type SessionType string

const (
	SessionWork     SessionType = "work"
	SessionBreak    SessionType = "break"
	SessionStudy    SessionType = "study"
	SessionResearch SessionType = "research"
	SessionWriting  SessionType = "writing"
	SessionCoding   SessionType = "coding"
)

// ValidSessionType reports whether t is a known session type.
func ValidSessionType(t SessionType) bool {
	switch t {
	case SessionWork, SessionBreak, SessionStudy, SessionResearch, SessionWriting, SessionCoding:
		return true
	}
	return false
}

// WorkSession is one timed focus session. At most one session is active at a
// time, and an active session is never written to durable storage.
type WorkSession struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Type           SessionType `json:"type"`
	StartedAt      time.Time   `json:"startedAt"`
	EndedAt        *time.Time  `json:"endedAt,omitempty"`
	PlannedMinutes int         `json:"plannedMinutes"`
	IsActive       bool        `json:"isActive"`
	Note           string      `json:"note,omitempty"`
	GoalID         string      `json:"goalId,omitempty"`
}
