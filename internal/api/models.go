// Package api exposes the HTTP surface for the portfolio backend.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/gitsync"
	"github.com/foliolab/folio/internal/tracker"
)

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

// GoalsPayload is the full-collection body for goal load/save.
type GoalsPayload struct {
	Goals []tracker.Goal `json:"goals"`
}

// SessionsPayload is the full-collection body for session load/save.
type SessionsPayload struct {
	Sessions []tracker.WorkSession `json:"sessions"`
}

// MoveGoalRequest is the body for a goal status transition.
type MoveGoalRequest struct {
	Status tracker.GoalStatus `json:"status"`
}

// StartSessionRequest is the body for starting a work session.
type StartSessionRequest struct {
	Title          string              `json:"title"`
	Type           tracker.SessionType `json:"type"`
	PlannedMinutes int                 `json:"plannedMinutes"`
	Note           string              `json:"note,omitempty"`
	GoalID         string              `json:"goalId,omitempty"`
}

// SyncResponse carries per-project outcomes of a bulk sync.
type SyncResponse struct {
	Results []gitsync.Result `json:"results"`
	Synced  int              `json:"synced"`
	Failed  int              `json:"failed"`
}

// CronResponse is the body returned to the cron trigger. An aborted run is
// reported with 200 so the scheduler provider does not retry.
type CronResponse struct {
	Status  string           `json:"status"` // completed | aborted
	Reason  string           `json:"reason,omitempty"`
	Results []gitsync.Result `json:"results,omitempty"`
}

// RateResponse reports the upstream API quota.
type RateResponse struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetTime time.Time `json:"resetTime"`
}

// PreviewResponse wraps a snapshot preview with its cache provenance.
type PreviewResponse struct {
	Snapshot *github.Snapshot `json:"snapshot"`
	Cached   bool             `json:"cached"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

func newSyncResponse(results []gitsync.Result) SyncResponse {
	resp := SyncResponse{Results: results}
	for _, r := range results {
		if r.Success {
			resp.Synced++
		} else {
			resp.Failed++
		}
	}
	return resp
}

// problemResponse returns an RFC 7807 Problem Detail error response.
func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
