package adminauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/internal"
	internalflows "github.com/MrEthical07/adminauth/internal/flows"
)

// Register creates an account with the configured default roles. The captcha
// gate applies as it does for [Engine.Login]; the new user logs in separately.
//
// Errors: [ErrRegistrationDisabled], [ErrCaptchaInvalid],
// [ErrRegistrationInvalid], [ErrAccountExists].
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*UserRecord, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.Enabled {
		return nil, ErrRegistrationDisabled
	}
	if e.accounts == nil {
		return nil, ErrAccountsUnsupported
	}

	u, err := e.flows.Register(ctx, internalflows.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		CaptchaUUID:     req.CaptchaUUID,
		CaptchaCode:     req.CaptchaCode,
	})
	if err != nil {
		return nil, err
	}
	out := fromFlowUser(u)
	return &out, nil
}

// SendBindCode sends a code that lets a logged-in user bind phone with
// [Engine.BindPhone]. Unlike [Engine.SendPhoneCode] it refuses numbers that
// already belong to an account.
//
// Errors: [ErrSMSDisabled], [ErrPhoneBound], [ErrRateLimited].
func (e *Engine) SendBindCode(ctx context.Context, phone string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.SMS.Enabled {
		return ErrSMSDisabled
	}
	if e.accounts == nil {
		return ErrAccountsUnsupported
	}
	if phone == "" {
		return ErrPhoneCodeInvalid
	}
	if err := e.throttleIssue(ctx, "sms"); err != nil {
		return err
	}

	_, err := e.userProvider.GetUserByPhone(ctx, phone)
	switch {
	case err == nil:
		return ErrPhoneBound
	case !errors.Is(err, ErrUserNotFound):
		return err
	}

	code, err := internal.NewOTP(e.config.SMS.CodeLength)
	if err != nil {
		return err
	}
	if err := e.smsStore.Replace(ctx, bindCodeID(phone), code, e.config.SMS.CodeTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := e.codeSender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("send bind code: %w", err)
	}

	e.metricInc(MetricSMSSent)
	e.emitAudit(ctx, auditEventPhoneCodeSent, true, "", nil, func() map[string]string {
		return map[string]string{"purpose": "bind"}
	})
	return nil
}

// BindPhone binds phone to the holder of bearerToken after checking the code
// from [Engine.SendBindCode]. The token passes through the refresh guard; the
// result is returned with binding errors once the token was accepted.
//
// Errors: token errors, [ErrPhoneCodeInvalid], [ErrPhoneBound].
func (e *Engine) BindPhone(ctx context.Context, bearerToken, phone, code string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.SMS.Enabled {
		return nil, ErrSMSDisabled
	}
	if e.accounts == nil {
		return nil, ErrAccountsUnsupported
	}

	auth, claims, err := e.authenticate(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if err := e.flows.BindPhone(ctx, claims.UID, phone, code); err != nil {
		return auth, err
	}
	return auth, nil
}

// Bind codes live beside login codes under their own id so one cannot stand
// in for the other.
func bindCodeID(phone string) string {
	return "bind:" + phone
}
