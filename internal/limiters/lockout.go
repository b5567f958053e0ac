package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for the failed-login lockout limiter.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
	// Window bounds how long a partial failure count survives without reaching
	// Threshold. Zero means Duration.
	Window time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// recordFailureLua increments the failure counter unless the identifier is
// already locked. Reaching the threshold sets the lock marker with NX, so
// concurrent winners cannot extend or shorten the lock, and clears the counter.
//
// KEYS[1] = counter key, KEYS[2] = lock key
// ARGV[1] = threshold, ARGV[2] = window ms, ARGV[3] = lock ms
// Returns {count, lock pttl ms (0 when not locked), 1 when this call set the lock}.
var recordFailureLua = redis.NewScript(`
local threshold = tonumber(ARGV[1])
local lockTTL = redis.call('PTTL', KEYS[2])
if lockTTL > 0 then
  return {threshold, lockTTL, 0}
end

local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end

if count >= threshold then
  local tripped = 0
  if redis.call('SET', KEYS[2], count, 'PX', ARGV[3], 'NX') then
    tripped = 1
  end
  redis.call('DEL', KEYS[1])
  return {count, redis.call('PTTL', KEYS[2]), tripped}
end

return {count, 0, 0}
`)

// FailureResult reports the state after a recorded failure.
type FailureResult struct {
	Count     int
	Locked    bool
	Remaining time.Duration
	// Tripped is true only for the attempt that set the lock.
	Tripped bool
}

// LockoutLimiter tracks consecutive failed logins per identifier.
// All methods are nil-safe and no-ops when the limiter is disabled.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	if cfg.Window <= 0 {
		cfg.Window = cfg.Duration
	}
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

// Hash tags keep both keys of one identifier in the same cluster slot.
func (l *LockoutLimiter) counterKey(id string) string {
	return "alo:{" + id + "}:c"
}

func (l *LockoutLimiter) lockKey(id string) string {
	return "alo:{" + id + "}:l"
}

func (l *LockoutLimiter) active(id string) bool {
	return l != nil && l.config.Enabled && id != ""
}

// RecordFailure counts one failed attempt for id. Failures recorded while id
// is locked leave the lock untouched.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, id string) (FailureResult, error) {
	if !l.active(id) {
		return FailureResult{}, nil
	}

	res, err := recordFailureLua.Run(ctx, l.redis,
		[]string{l.counterKey(id), l.lockKey(id)},
		l.config.Threshold,
		l.config.Window.Milliseconds(),
		l.config.Duration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return FailureResult{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 3 {
		return FailureResult{}, fmt.Errorf("%w: unexpected script reply", ErrLockoutUnavailable)
	}

	out := FailureResult{Count: int(res[0]), Tripped: res[2] == 1}
	if res[1] > 0 {
		out.Locked = true
		out.Remaining = time.Duration(res[1]) * time.Millisecond
	}
	return out, nil
}

// IsLocked reports whether id is locked and how long the lock has left.
func (l *LockoutLimiter) IsLocked(ctx context.Context, id string) (bool, time.Duration, error) {
	if !l.active(id) {
		return false, 0, nil
	}

	ttl, err := l.redis.PTTL(ctx, l.lockKey(id)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if ttl <= 0 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// Reset clears the failure counter and any lock for id in one command. It
// backs the admin unlock; logins use ClearFailures.
func (l *LockoutLimiter) Reset(ctx context.Context, id string) error {
	if !l.active(id) {
		return nil
	}

	if err := l.redis.Del(ctx, l.counterKey(id), l.lockKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// ClearFailures drops the partial failure count for id after a successful
// login. A lock set since the caller's IsLocked check stays in place.
func (l *LockoutLimiter) ClearFailures(ctx context.Context, id string) error {
	if !l.active(id) {
		return nil
	}

	if err := l.redis.Del(ctx, l.counterKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure count for id.
func (l *LockoutLimiter) FailureCount(ctx context.Context, id string) (int, error) {
	if !l.active(id) {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.counterKey(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}
