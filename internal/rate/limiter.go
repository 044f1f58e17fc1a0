package rate

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrRedisUnavailable wraps failures talking to the shared counter store.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidLimit is returned for a non-positive max or window.
	ErrInvalidLimit = errors.New("rate: max and window must be > 0")
)

// Result is the outcome of a single attempt.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts per key inside fixed windows.
type Limiter interface {
	Check(ctx context.Context, key string, max int, window time.Duration) (Result, error)
}

// LoginKey builds the composite key used to gate login attempts. Both
// parts are always present so neither alone can exhaust the other's budget.
func LoginKey(clientIP, identifier string) string {
	return "login:" + clientIP + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

func validate(max int, window time.Duration) error {
	if max <= 0 || window <= 0 {
		return ErrInvalidLimit
	}
	return nil
}
