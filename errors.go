package adminauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCredentialInvalid is returned for an unknown identifier or a wrong secret.
	// Both cases share one error so callers cannot tell which accounts exist.
	ErrCredentialInvalid = errors.New("invalid credentials")
	// ErrUserLocked is matched by every [*LockedError].
	ErrUserLocked = errors.New("user locked")
	// ErrUserDisabled is returned when the credentials matched a disabled account.
	ErrUserDisabled = errors.New("user disabled")
	// ErrCaptchaInvalid is returned when the captcha gate rejects a login.
	ErrCaptchaInvalid = errors.New("captcha invalid")
	// ErrPhoneCodeInvalid is returned when an SMS login code is wrong or already used.
	ErrPhoneCodeInvalid = errors.New("phone code invalid")
	// ErrTokenExpired is returned for a well-formed, correctly signed but expired token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned when a token cannot be decoded.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when a token signature does not verify.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrUnauthorized is returned when a request carries no usable bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrHandshakeExpired is returned when a QR handshake is absent, expired or
	// does not match the scanned correlation value.
	ErrHandshakeExpired = errors.New("qr code expired")
	// ErrHandshakeConsumed is returned when a QR handshake was already confirmed.
	ErrHandshakeConsumed = errors.New("qr code already confirmed")
	// ErrPermissionDenied is returned by permission guards.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRateLimited is returned when a client IP exceeds the issuance throttle.
	ErrRateLimited = errors.New("rate limited")
	// ErrCacheUnavailable wraps shared cache backend failures.
	ErrCacheUnavailable = errors.New("cache backend unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUserNotFound is returned by user providers for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrQRLoginDisabled is returned by the QR operations when QR login is off.
	ErrQRLoginDisabled = errors.New("qr login disabled")
	// ErrSMSDisabled is returned by the phone login operations when SMS login is off.
	ErrSMSDisabled = errors.New("sms login disabled")
	// ErrRegistrationDisabled is returned by [Engine.Register] when sign-up is off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrRegistrationInvalid is returned for a user name or password outside
	// the configured bounds, or a confirmation that does not match.
	ErrRegistrationInvalid = errors.New("registration invalid")
	// ErrAccountExists is returned when the requested user name is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrPhoneBound is returned when a phone number belongs to another account.
	ErrPhoneBound = errors.New("phone number already bound")
	// ErrAccountsUnsupported is returned when the user provider does not
	// implement [AccountStore].
	ErrAccountsUnsupported = errors.New("user provider cannot modify accounts")
)

// LockedError reports a locked identifier together with the time left on the lock.
// The message is identical for existing and unknown identifiers.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	minutes := int(e.Remaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("user locked, try again in %d minute(s)", minutes)
}

// Is lets errors.Is(err, ErrUserLocked) match.
func (e *LockedError) Is(target error) bool {
	return target == ErrUserLocked
}
