// Package ratelimit caps how often a user may vote, shared across engine
// instances through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"
)

// KeyPrefix is the prefix for the rate limit keys in Redis.
const KeyPrefix = "ratelimit:votes"

// fixedWindow increments the counter for the current window and starts the
// window on the first hit.
const fixedWindow = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`

// Limiter is a fixed-window counter per key.
type Limiter struct {
	client rueidis.Client
	limit  int64
	window time.Duration
}

// New returns a limiter allowing limit hits per window for every key.
func New(client rueidis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one hit for key and reports whether it is within the limit.
// When Redis is unreachable the hit is allowed and the error returned, so
// callers decide whether to log or refuse.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.limit <= 0 {
		return true, nil
	}

	resp := l.client.Do(ctx, l.client.B().Eval().
		Script(fixedWindow).
		Numkeys(1).
		Key(fmt.Sprintf("%s:%s", KeyPrefix, key)).
		Arg(strconv.FormatInt(l.window.Milliseconds(), 10)).
		Build())

	count, err := resp.AsInt64()
	if err != nil {
		return true, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= l.limit, nil
}
