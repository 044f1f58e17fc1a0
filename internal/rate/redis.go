package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// A denied attempt is not counted, matching the in-memory backend.
const checkScript = `
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[1]) then
  return {0, count, redis.call("PTTL", KEYS[1])}
end
count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, count, redis.call("PTTL", KEYS[1])}
`

// Redis is a fixed-window limiter shared by every instance pointing at the
// same Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	script *redis.Script
	now    func() time.Time
}

// NewRedis returns a limiter storing counters under prefix.
func NewRedis(client redis.UniversalClient, prefix string, now func() time.Time) *Redis {
	if prefix == "" {
		prefix = "dashauth:rl:"
	}
	if now == nil {
		now = time.Now
	}
	return &Redis{
		client: client,
		prefix: prefix,
		script: redis.NewScript(checkScript),
		now:    now,
	}
}

func (l *Redis) Check(ctx context.Context, key string, max int, window time.Duration) (Result, error) {
	if err := validate(max, window); err != nil {
		return Result{}, err
	}

	windowMS := window.Milliseconds()
	if windowMS < 1 {
		windowMS = 1
	}

	raw, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, max, windowMS).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	ttl := time.Duration(raw[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	res := Result{
		Allowed: raw[0] == 1,
		ResetAt: l.now().Add(ttl),
	}
	if res.Allowed {
		res.Remaining = max - int(raw[1])
	}
	return res, nil
}
