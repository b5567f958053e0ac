package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
)

// AuthenticateResult carries the validated claims and, when the refresh guard
// fired for this request, the replacement token.
type AuthenticateResult struct {
	Claims          *jwt.SessionClaims
	RefreshedToken  string
	RefreshedClaims *jwt.SessionClaims
}

// AuthenticateMetrics carries metric IDs used by the authenticate flow.
type AuthenticateMetrics struct {
	RefreshIssued    int
	RefreshCoalesced int
}

// AuthenticateDeps captures token validation and refresh guard dependencies.
type AuthenticateDeps struct {
	Parse func(string) (*jwt.SessionClaims, error)
	Now   func() time.Time

	RefreshEnabled   bool
	RefreshThreshold time.Duration
	ClaimRefresh     func(ctx context.Context, userID string) (bool, error)
	ReleaseRefresh   func(ctx context.Context, userID string) error
	IssueToken       func(jwt.Subject) (string, *jwt.SessionClaims, error)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Info      func(msg string, args ...any)
	Warn      func(msg string, args ...any)

	Metrics             AuthenticateMetrics
	TokenRefreshedEvent string
	EngineNotReady      error
}

// RunAuthenticate validates tokenStr and runs the refresh guard. Only token
// errors fail the call; every refresh problem degrades to "no replacement".
func RunAuthenticate(ctx context.Context, tokenStr string, deps AuthenticateDeps) (*AuthenticateResult, error) {
	if deps.Parse == nil {
		return nil, deps.EngineNotReady
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Info == nil {
		deps.Info = func(string, ...any) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}

	claims, err := deps.Parse(tokenStr)
	if err != nil {
		return nil, err
	}

	res := &AuthenticateResult{Claims: claims}
	if !deps.RefreshEnabled || deps.ClaimRefresh == nil || deps.IssueToken == nil {
		return res, nil
	}
	if claims.ExpireTime().Sub(deps.Now()) >= deps.RefreshThreshold {
		return res, nil
	}

	won, err := deps.ClaimRefresh(ctx, claims.UID)
	if err != nil {
		deps.Warn("refresh sentinel unavailable", "user_id", claims.UID, "error", err)
		return res, nil
	}
	if !won {
		deps.MetricInc(deps.Metrics.RefreshCoalesced)
		return res, nil
	}

	token, fresh, err := deps.IssueToken(claims.Identity())
	if err != nil {
		deps.Warn("refresh token issue failed", "user_id", claims.UID, "error", err)
		if deps.ReleaseRefresh != nil {
			_ = deps.ReleaseRefresh(ctx, claims.UID)
		}
		return res, nil
	}

	deps.MetricInc(deps.Metrics.RefreshIssued)
	deps.Info("session token refreshed", "user_id", claims.UID)
	deps.EmitAudit(ctx, deps.TokenRefreshedEvent, true, claims.UID, nil, func() map[string]string {
		return map[string]string{
			"previous_jti": claims.ID,
			"jti":          fresh.ID,
		}
	})

	res.RefreshedToken = token
	res.RefreshedClaims = fresh
	return res, nil
}
