package api

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/adminauth"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every reply.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Msg: "success", Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: status, Msg: msg})
}

// failErr answers with the status and message mapped from err. Unmapped
// errors are logged and reported as internal errors.
func (h *Handler) failErr(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	fail(c, status, msg)
}

func classify(err error) (int, string) {
	var locked *adminauth.LockedError
	switch {
	case errors.As(err, &locked):
		return http.StatusLocked, locked.Error()
	case errors.Is(err, adminauth.ErrCredentialInvalid):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, adminauth.ErrUserDisabled):
		return http.StatusForbidden, "user disabled"
	case errors.Is(err, adminauth.ErrCaptchaInvalid):
		return http.StatusBadRequest, "incorrect captcha"
	case errors.Is(err, adminauth.ErrPhoneCodeInvalid):
		return http.StatusBadRequest, "incorrect SMS verification code"
	case errors.Is(err, adminauth.ErrTokenExpired),
		errors.Is(err, adminauth.ErrTokenMalformed),
		errors.Is(err, adminauth.ErrTokenSignatureInvalid),
		errors.Is(err, adminauth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, adminauth.ErrHandshakeExpired):
		return http.StatusGone, "QR code has expired"
	case errors.Is(err, adminauth.ErrHandshakeConsumed):
		return http.StatusConflict, "QR code already confirmed"
	case errors.Is(err, adminauth.ErrPermissionDenied):
		return http.StatusForbidden, "permission denied"
	case errors.Is(err, adminauth.ErrRateLimited):
		return http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, adminauth.ErrRegistrationDisabled):
		return http.StatusForbidden, "registration is not enabled"
	case errors.Is(err, adminauth.ErrRegistrationInvalid):
		return http.StatusBadRequest, "invalid username or password format"
	case errors.Is(err, adminauth.ErrAccountExists):
		return http.StatusConflict, "account already exists"
	case errors.Is(err, adminauth.ErrPhoneBound):
		return http.StatusConflict, "phone number is already bound to another account"
	case errors.Is(err, adminauth.ErrQRLoginDisabled),
		errors.Is(err, adminauth.ErrSMSDisabled),
		errors.Is(err, adminauth.ErrAccountsUnsupported):
		return http.StatusNotFound, "feature disabled"
	case errors.Is(err, adminauth.ErrCacheUnavailable), errors.Is(err, adminauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
