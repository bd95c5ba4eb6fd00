package tracker

import "time"

// Timer is the derived view of the active session for countdown display.
type Timer struct {
	SessionID      string        `json:"sessionId"`
	Title          string        `json:"title"`
	Type           SessionType   `json:"type"`
	StartedAt      time.Time     `json:"startedAt"`
	PlannedMinutes int           `json:"plannedMinutes"`
	Elapsed        time.Duration `json:"elapsed"`
	Remaining      time.Duration `json:"remaining"`
	Overtime       bool          `json:"overtime"`
}

// ActiveTimer derives timer state from the active session, or nil when no
// session is running. Remaining is clamped at zero once the planned duration
// has elapsed; sessions without a planned duration count up only.
func (s *Store) ActiveTimer() *Timer {
	session := s.ActiveSession()
	if session == nil {
		return nil
	}

	elapsed := s.now().Sub(session.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	t := &Timer{
		SessionID:      session.ID,
		Title:          session.Title,
		Type:           session.Type,
		StartedAt:      session.StartedAt,
		PlannedMinutes: session.PlannedMinutes,
		Elapsed:        elapsed,
	}

	if session.PlannedMinutes > 0 {
		planned := time.Duration(session.PlannedMinutes) * time.Minute
		if elapsed >= planned {
			t.Overtime = true
		} else {
			t.Remaining = planned - elapsed
		}
	}

	return t
}
