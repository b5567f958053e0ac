package adminauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/internal/stores"
	"github.com/MrEthical07/adminauth/permission"
)

// Permissions returns the permission set of userID from the shared cache,
// recomputing it from the [UserProvider] and repopulating the cache on a miss.
// A missing entry never means "no permissions".
func (e *Engine) Permissions(ctx context.Context, userID string) (permission.Set, error) {
	if !e.ready() {
		return permission.Set{}, ErrEngineNotReady
	}

	perms, err := e.permCache.Get(ctx, userID)
	if err == nil {
		return perms, nil
	}
	if !errors.Is(err, stores.ErrPermissionCacheMiss) {
		return permission.Set{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	e.metricInc(MetricPermissionCacheMiss)
	return e.recomputePermissions(ctx, userID)
}

// HasPermission reports whether userID holds perm, honoring wildcards.
func (e *Engine) HasPermission(ctx context.Context, userID, perm string) (bool, error) {
	perms, err := e.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.Has(perm), nil
}

// RequirePermission returns [ErrPermissionDenied] unless userID holds perm.
func (e *Engine) RequirePermission(ctx context.Context, userID, perm string) error {
	ok, err := e.HasPermission(ctx, userID, perm)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricPermissionDenied)
		return ErrPermissionDenied
	}
	return nil
}

func (e *Engine) recomputePermissions(ctx context.Context, userID string) (permission.Set, error) {
	list, err := e.userProvider.GetPermissions(ctx, userID)
	if err != nil {
		return permission.Set{}, err
	}
	perms := permission.NewSet(list...)

	if err := e.permCache.Set(ctx, userID, perms, e.config.Permission.CacheTTL); err != nil {
		e.logger.Warn("permission cache write failed", "user_id", userID, "error", err)
	}
	return perms, nil
}

// populatePermissions runs at login so later checks hit the cache.
func (e *Engine) populatePermissions(ctx context.Context, userID string) error {
	_, err := e.recomputePermissions(ctx, userID)
	return err
}
