// Package kv provides the key-value persistence adapter used for durable
// collection snapshots (projects, goals, work sessions).
package kv

import "context"

// Collection keys. One key per collection, values are opaque JSON.
const (
	KeyProjects = "folio:projects"
	KeyGoals    = "folio:goals"
	KeySessions = "folio:sessions"
)

// Store is the minimal key-value contract: whole-value reads and writes,
// plus a liveness probe. There are no partial updates and no versioning —
// the last successful write wins.
type Store interface {
	// Get returns the value for key, or errors.ErrNotFound when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
