package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/MrEthical07/adminauth"
)

// RefreshTokenHeader carries a replacement token minted by the refresh guard.
const RefreshTokenHeader = "X-Refresh-Token"

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by [Guard].
func AuthResultFromContext(ctx context.Context) (*adminauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*adminauth.AuthResult)
	return res, ok
}

// Guard authenticates every request through a pipeline of stages. With no
// stages it extracts the bearer token and authenticates it.
//
// A refreshed token is written to [RefreshTokenHeader] even when a later
// stage rejects the request. Clients that send an "os" header get the header
// exposed for cross-origin reads.
func Guard(engine *adminauth.Engine, stages ...adminauth.GuardStage) func(http.Handler) http.Handler {
	pipeline := adminauth.NewPipeline(engine, stages...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := adminauth.WithClientIP(r.Context(), ClientIP(r))
			req, err := pipeline.Run(ctx, r.Header.Get("Authorization"))
			if req != nil && req.Auth != nil && req.Auth.RefreshedToken != "" {
				WriteRefreshHeader(w, r, req.Auth.RefreshedToken)
			}
			if err != nil {
				status := StatusFor(err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx = context.WithValue(ctx, authResultContextKey{}, req.Auth)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteRefreshHeader sets the refresh side channel headers on w.
func WriteRefreshHeader(w http.ResponseWriter, r *http.Request, token string) {
	if r.Header.Get("os") != "" {
		w.Header().Set("Access-Control-Expose-Headers", RefreshTokenHeader)
	}
	w.Header().Set(RefreshTokenHeader, token)
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, adminauth.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, adminauth.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, adminauth.ErrCacheUnavailable), errors.Is(err, adminauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
