package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSentinelUnavailable wraps backend failures.
var ErrSentinelUnavailable = errors.New("refresh sentinel unavailable")

// DefaultWindow is the sentinel lifetime used when none is configured.
const DefaultWindow = time.Minute

// Sentinel grants at most one refresh per user per window.
type Sentinel struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

// NewSentinel returns a Sentinel storing markers under "refresh:<userID>".
func NewSentinel(redisClient redis.UniversalClient, window time.Duration) *Sentinel {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sentinel{
		redis:  redisClient,
		prefix: "refresh",
		window: window,
	}
}

// Window returns the coalescing window.
func (s *Sentinel) Window() time.Duration {
	return s.window
}

// Claim reports whether the caller won the refresh slot for userID.
func (s *Sentinel) Claim(ctx context.Context, userID string) (bool, error) {
	won, err := s.redis.SetNX(ctx, s.prefix+":"+userID, 1, s.window).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrSentinelUnavailable, err)
	}
	return won, nil
}

// Release drops the marker so the next near-expiry request may refresh. Used
// when minting fails after a successful claim.
func (s *Sentinel) Release(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.prefix+":"+userID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSentinelUnavailable, err)
	}
	return nil
}
