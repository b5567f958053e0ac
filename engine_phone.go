package adminauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/adminauth/internal"
)

// SendPhoneCode issues a single-use login code for phone and hands it to the
// configured [CodeSender]. A new code replaces any outstanding one.
//
// Unknown numbers report success without sending anything, so the call does
// not reveal which numbers are registered.
func (e *Engine) SendPhoneCode(ctx context.Context, phone string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !e.config.SMS.Enabled {
		return ErrSMSDisabled
	}
	if phone == "" {
		return ErrPhoneCodeInvalid
	}
	if err := e.throttleIssue(ctx, "sms"); err != nil {
		return err
	}

	user, err := e.userProvider.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.Info("phone code requested for unknown number")
			return nil
		}
		return err
	}

	code, err := internal.NewOTP(e.config.SMS.CodeLength)
	if err != nil {
		return err
	}
	if err := e.smsStore.Replace(ctx, phone, code, e.config.SMS.CodeTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := e.codeSender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("send phone code: %w", err)
	}

	e.metricInc(MetricSMSSent)
	e.emitAudit(ctx, auditEventPhoneCodeSent, true, user.UserID, nil, nil)
	return nil
}

// PhoneLogin consumes the code for phone and issues a session for the user
// the number belongs to. The lockout of that user name is honored.
//
// Errors: [ErrPhoneCodeInvalid], [ErrCredentialInvalid], [ErrUserLocked],
// [ErrUserDisabled].
func (e *Engine) PhoneLogin(ctx context.Context, phone, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.SMS.Enabled {
		return nil, ErrSMSDisabled
	}
	res, err := e.flows.PhoneLogin(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sessionTokenFrom(res.Token, res.Claims)}, nil
}
