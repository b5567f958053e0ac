package flows

import (
	"context"

	"github.com/MrEthical07/adminauth/jwt"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Parse             func(string) (*jwt.SessionClaims, error)
	RemovePermissions func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

	LogoutMetric   int
	LogoutEvent    string
	EngineNotReady error
}

// RunLogout drops the permission cache entry of the token's user so the next
// permission check for that user recomputes. Tokens are stateless and stay
// valid until they expire.
func RunLogout(ctx context.Context, tokenStr string, deps LogoutDeps) (*jwt.SessionClaims, error) {
	if deps.Parse == nil || deps.RemovePermissions == nil {
		return nil, deps.EngineNotReady
	}

	claims, err := deps.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if err := deps.RemovePermissions(ctx, claims.UID); err != nil {
		return nil, err
	}

	if deps.MetricInc != nil {
		deps.MetricInc(deps.LogoutMetric)
	}
	if deps.EmitAudit != nil {
		deps.EmitAudit(ctx, deps.LogoutEvent, true, claims.UID, nil, nil)
	}
	return claims, nil
}
