package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/github"
	"github.com/foliolab/folio/internal/gitsync"
	"github.com/foliolab/folio/internal/health"
	"github.com/foliolab/folio/internal/snapcache"
	"github.com/foliolab/folio/internal/tracker"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	tracker    *tracker.Store
	engine     *gitsync.Engine
	checker    *health.Checker
	previews   *snapcache.Cache[*github.Snapshot]
	cronSecret string
	logger     zerolog.Logger
	startTime  time.Time
}

// NewHandlers creates a Handlers instance.
func NewHandlers(
	trackerStore *tracker.Store,
	engine *gitsync.Engine,
	checker *health.Checker,
	previews *snapcache.Cache[*github.Snapshot],
	cronSecret string,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		tracker:    trackerStore,
		engine:     engine,
		checker:    checker,
		previews:   previews,
		cronSecret: cronSecret,
		logger:     logger.With().Str("component", "handlers").Logger(),
		startTime:  time.Now(),
	}
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(results)
		}
	}
	return c.JSON(results)
}

// --- Goals ---

// GetGoals handles GET /api/v1/goals.
func (h *Handlers) GetGoals(c *fiber.Ctx) error {
	return c.JSON(GoalsPayload{Goals: h.tracker.Goals()})
}

// SaveGoals handles POST /api/v1/goals — a full-collection overwrite.
func (h *Handlers) SaveGoals(c *fiber.Ctx) error {
	var payload GoalsPayload
	if err := c.BodyParser(&payload); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if payload.Goals == nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_goals", "Bad Request",
			`Body must contain a "goals" array`)
	}
	if err := h.tracker.ReplaceGoals(c.Context(), payload.Goals); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(GoalsPayload{Goals: h.tracker.Goals()})
}

// AddGoal handles POST /api/v1/goals/item.
func (h *Handlers) AddGoal(c *fiber.Ctx) error {
	var goal tracker.Goal
	if err := c.BodyParser(&goal); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	created, err := h.tracker.AddGoal(c.Context(), goal)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateGoal handles PUT /api/v1/goals/:id.
func (h *Handlers) UpdateGoal(c *fiber.Ctx) error {
	var goal tracker.Goal
	if err := c.BodyParser(&goal); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	goal.ID = c.Params("id")
	updated, err := h.tracker.UpdateGoal(c.Context(), goal)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(updated)
}

// MoveGoal handles POST /api/v1/goals/:id/status.
func (h *Handlers) MoveGoal(c *fiber.Ctx) error {
	var req MoveGoalRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	moved, err := h.tracker.MoveGoal(c.Context(), c.Params("id"), req.Status)
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(moved)
}

// DeleteGoal handles DELETE /api/v1/goals/:id.
func (h *Handlers) DeleteGoal(c *fiber.Ctx) error {
	if err := h.tracker.DeleteGoal(c.Context(), c.Params("id")); err != nil {
		return h.storeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Sessions ---

// GetSessions handles GET /api/v1/sessions.
func (h *Handlers) GetSessions(c *fiber.Ctx) error {
	return c.JSON(SessionsPayload{Sessions: h.tracker.Sessions()})
}

// SaveSessions handles POST /api/v1/sessions — a full-collection overwrite.
func (h *Handlers) SaveSessions(c *fiber.Ctx) error {
	var payload SessionsPayload
	if err := c.BodyParser(&payload); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	if payload.Sessions == nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_sessions", "Bad Request",
			`Body must contain a "sessions" array`)
	}
	if err := h.tracker.ReplaceSessions(c.Context(), payload.Sessions); err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(SessionsPayload{Sessions: h.tracker.Sessions()})
}

// StartSession handles POST /api/v1/sessions/start.
func (h *Handlers) StartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}
	session, err := h.tracker.StartSession(c.Context(), tracker.WorkSession{
		Title:          req.Title,
		Type:           req.Type,
		PlannedMinutes: req.PlannedMinutes,
		Note:           req.Note,
		GoalID:         req.GoalID,
	})
	if err != nil {
		return h.storeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// StopSession handles POST /api/v1/sessions/stop.
func (h *Handlers) StopSession(c *fiber.Ctx) error {
	session, err := h.tracker.StopSession(c.Context())
	if err != nil {
		return h.storeError(c, err)
	}
	return c.JSON(session)
}

// GetTimer handles GET /api/v1/timer.
func (h *Handlers) GetTimer(c *fiber.Ctx) error {
	timer := h.tracker.ActiveTimer()
	if timer == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"no_active_session", "Not Found",
			"No session is currently active")
	}
	return c.JSON(timer)
}

// --- Sync ---

// SyncAll handles POST /api/v1/sync — syncs every stale project.
func (h *Handlers) SyncAll(c *fiber.Ctx) error {
	results, err := h.engine.SyncStale(c.Context())
	if err != nil {
		if errors.Is(err, ferrors.ErrRateLimit) {
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_budget_low", "Too Many Requests",
				err.Error())
		}
		return problemResponse(c, fiber.StatusBadGateway,
			"sync_failed", "Bad Gateway",
			err.Error())
	}
	return c.JSON(newSyncResponse(results))
}

// SyncProject handles POST /api/v1/sync/:id. The quota floor never applies
// here; a single manual sync is always attempted.
func (h *Handlers) SyncProject(c *fiber.Ctx) error {
	result := h.engine.SyncByID(c.Context(), c.Params("id"))
	return c.JSON(result)
}

// Preview handles GET /api/v1/sync/preview?url= — fetches a snapshot without
// persisting anything. Recent previews are served from cache.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	rawURL := c.Query("url")
	if rawURL == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_url", "Bad Request",
			`Query parameter "url" is required`)
	}
	owner, name, ok := github.ParseRepoURL(rawURL)
	if !ok {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_url", "Bad Request",
			"Not a valid repository URL: "+rawURL)
	}

	key := owner + "/" + name
	if snap, ok := h.previews.Get(key); ok {
		return c.JSON(PreviewResponse{Snapshot: snap, Cached: true})
	}

	snap, err := h.engine.Preview(c.Context(), rawURL)
	if err != nil {
		return problemResponse(c, fiber.StatusBadGateway,
			"preview_failed", "Bad Gateway",
			err.Error())
	}
	h.previews.Put(key, snap)
	return c.JSON(PreviewResponse{Snapshot: snap})
}

// RateBudget handles GET /api/v1/sync/rate.
func (h *Handlers) RateBudget(c *fiber.Ctx) error {
	budget, err := h.engine.RateBudget(c.Context())
	if err != nil {
		return problemResponse(c, fiber.StatusBadGateway,
			"rate_probe_failed", "Bad Gateway",
			err.Error())
	}
	return c.JSON(RateResponse{
		Remaining: budget.Remaining,
		Limit:     budget.Limit,
		ResetTime: budget.ResetTime,
	})
}

// CronSync handles GET|POST /api/v1/cron/sync, the external scheduler's
// entry point. The bearer secret must be configured and must match: an
// unconfigured secret is a deployment fault (500), a mismatch is 401.
// A quota-floor abort is reported as 200 so the provider does not retry.
func (h *Handlers) CronSync(c *fiber.Ctx) error {
	if h.cronSecret == "" {
		h.logger.Error().Msg("cron endpoint hit but no secret is configured")
		return problemResponse(c, fiber.StatusInternalServerError,
			"cron_secret_unconfigured", "Internal Server Error",
			"Cron secret is not configured")
	}

	auth := c.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if auth == "" || token == auth || token != h.cronSecret {
		h.logger.Warn().Str("ip", c.IP()).Msg("cron trigger rejected")
		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_cron_secret", "Unauthorized",
			"Missing or invalid cron secret")
	}

	results, err := h.engine.SyncStale(c.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("cron sync aborted")
		return c.JSON(CronResponse{Status: "aborted", Reason: err.Error()})
	}
	return c.JSON(CronResponse{Status: "completed", Results: results})
}

// storeError maps tracker errors onto problem responses.
func (h *Handlers) storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ferrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	case errors.Is(err, ferrors.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	default:
		// Persistence failed; local state has already been rolled back.
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"persistence_failed", "Service Unavailable", err.Error())
	}
}
