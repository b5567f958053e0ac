package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrPermissionCacheMiss means no entry exists; callers recompute.
	ErrPermissionCacheMiss    = errors.New("permission cache miss")
	ErrPermissionCacheBackend = errors.New("permission cache backend unavailable")
)

// PermissionCache stores the encoded permission set of each user.
type PermissionCache struct {
	redis  redis.UniversalClient
	prefix string
}

func NewPermissionCache(redisClient redis.UniversalClient, prefix string) *PermissionCache {
	if prefix == "" {
		prefix = "perm"
	}
	return &PermissionCache{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (c *PermissionCache) key(userID string) string {
	return c.prefix + ":" + userID
}

// Set replaces the cached set for userID.
func (c *PermissionCache) Set(ctx context.Context, userID string, perms permission.Set, ttl time.Duration) error {
	encoded, err := permission.Encode(perms)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, c.key(userID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionCacheBackend, err)
	}
	return nil
}

// Get returns the cached set, or [ErrPermissionCacheMiss]. A corrupt entry is
// deleted and reported as a miss.
func (c *PermissionCache) Get(ctx context.Context, userID string) (permission.Set, error) {
	data, err := c.redis.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return permission.Set{}, ErrPermissionCacheMiss
		}
		return permission.Set{}, fmt.Errorf("%w: %v", ErrPermissionCacheBackend, err)
	}

	perms, err := permission.Decode(data)
	if err != nil {
		_ = c.redis.Del(ctx, c.key(userID)).Err()
		return permission.Set{}, ErrPermissionCacheMiss
	}
	return perms, nil
}

// Remove drops the entry for userID. Removing an absent entry is not an error.
func (c *PermissionCache) Remove(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionCacheBackend, err)
	}
	return nil
}
