package adminauth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventLoginLocked    = "login_locked"
	auditEventLogout         = "logout"
	auditEventTokenRefreshed = "token_refreshed"
	auditEventQRConfirmed    = "qr_confirmed"
	auditEventQRConsumed     = "qr_consumed"
	auditEventCaptchaFailed  = "captcha_failed"
	auditEventUnlock         = "user_unlocked"
	auditEventRateLimited    = "rate_limit_triggered"
	auditEventPhoneCodeSent  = "phone_code_sent"
	auditEventRegister       = "register"
	auditEventPhoneBound     = "phone_bound"
)

// AuditErrorCode is the stable error label written into [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrCredentialInvalid AuditErrorCode = "invalid_credentials"
	auditErrUserLocked        AuditErrorCode = "user_locked"
	auditErrUserDisabled      AuditErrorCode = "user_disabled"
	auditErrCaptchaInvalid    AuditErrorCode = "captcha_invalid"
	auditErrPhoneCodeInvalid  AuditErrorCode = "phone_code_invalid"
	auditErrInvalidToken      AuditErrorCode = "invalid_token"
	auditErrHandshakeExpired  AuditErrorCode = "handshake_expired"
	auditErrHandshakeConsumed AuditErrorCode = "handshake_consumed"
	auditErrRateLimited       AuditErrorCode = "rate_limited"
	auditErrAccountExists     AuditErrorCode = "account_exists"
	auditErrAccountInvalid    AuditErrorCode = "registration_invalid"
	auditErrPhoneBound        AuditErrorCode = "phone_bound"
	auditErrUnavailable       AuditErrorCode = "backend_unavailable"
	auditErrInternal          AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrCredentialInvalid):
		return auditErrCredentialInvalid
	case errors.Is(err, ErrUserLocked):
		return auditErrUserLocked
	case errors.Is(err, ErrUserDisabled):
		return auditErrUserDisabled
	case errors.Is(err, ErrCaptchaInvalid):
		return auditErrCaptchaInvalid
	case errors.Is(err, ErrPhoneCodeInvalid):
		return auditErrPhoneCodeInvalid
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrUnauthorized):
		return auditErrInvalidToken
	case errors.Is(err, ErrHandshakeExpired):
		return auditErrHandshakeExpired
	case errors.Is(err, ErrHandshakeConsumed):
		return auditErrHandshakeConsumed
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrRegistrationInvalid), errors.Is(err, ErrRegistrationDisabled):
		return auditErrAccountInvalid
	case errors.Is(err, ErrPhoneBound):
		return auditErrPhoneBound
	case errors.Is(err, ErrCacheUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
