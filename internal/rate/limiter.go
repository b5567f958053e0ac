package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds throttle tuning parameters.
type Config struct {
	Enabled   bool
	MaxPerIP  int
	Window    time.Duration
	KeyPrefix string
}

var incrementLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Limiter enforces per-IP issuance budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ari"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Allow counts one issuance of action from ip and returns [ErrRateLimited]
// once the window budget is spent. Requests without an IP are not throttled.
func (l *Limiter) Allow(ctx context.Context, action, ip string) error {
	if l == nil || !l.config.Enabled || ip == "" {
		return nil
	}

	count, err := incrementLua.Run(ctx, l.redis, []string{l.key(action, ip)}, l.config.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count > int64(l.config.MaxPerIP) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) key(action, ip string) string {
	return l.config.KeyPrefix + ":" + action + ":" + ip
}
