package middleware

import (
	"net/http"

	"github.com/MrEthical07/adminauth"
)

// RequirePermission authenticates the request and requires perm, answering
// 403 when the user lacks it.
func RequirePermission(engine *adminauth.Engine, perm string) func(http.Handler) http.Handler {
	return Guard(engine,
		adminauth.BearerStage(),
		adminauth.AuthenticateStage(),
		adminauth.PermissionStage(perm),
	)
}
