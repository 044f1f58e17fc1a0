package dashauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when no valid session is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers unknown users, disabled accounts, wrong
	// secrets, malformed input and store failures during login alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is wrapped by [*RateLimitError].
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrPermissionDenied is returned when a valid session lacks a capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStoreUnavailable marks user or permission lookup failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionIssueFailed is returned when a token could not be produced.
	ErrSessionIssueFailed = errors.New("session issue failed")
	// ErrEngineNotReady is returned by a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidResource is returned for unknown resource or action names.
	ErrInvalidResource = errors.New("invalid resource or action")
)

// RateLimitError reports a denied login attempt and when the window resets.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s until %s", ErrLoginRateLimited, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error {
	return ErrLoginRateLimited
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (e *RateLimitError) RetryAfter(now time.Time) int {
	secs := int((e.ResetAt.Sub(now) + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
