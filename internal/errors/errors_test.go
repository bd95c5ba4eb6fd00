package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError("github", 404, "repo not found")
	assert.Contains(t, err.Error(), "github")
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "repo not found")
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := &APIError{Service: "kv", StatusCode: 0, Message: "set failed", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil-ish not found", ErrNotFound, false},
		{"invalid input", ErrInvalidInput, false},
		{"timeout", ErrTimeout, true},
		{"rate limit", ErrRateLimit, true},
		{"unavailable", ErrUnavailable, true},
		{"api 429", NewAPIError("github", 429, "slow down"), true},
		{"api 500", NewAPIError("github", 500, "boom"), true},
		{"api 503", NewAPIError("kv", 503, "maintenance"), true},
		{"api 404", NewAPIError("github", 404, "missing"), false},
		{"api 401", NewAPIError("github", 401, "bad token"), false},
		{"wrapped timeout", fmt.Errorf("outer: %w", ErrTimeout), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
