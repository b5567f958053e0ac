package flows

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// RegisterInput is a self-service sign-up with its captcha answer.
type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	CaptchaUUID     string
	CaptchaCode     string
}

// AccountCreateInput is what the provider stores for a new account.
type AccountCreateInput struct {
	UserName     string
	PasswordHash string
	RoleKeys     []string
}

type AccountMetrics struct {
	Registered     int
	PhoneBound     int
	CaptchaFailure int
}

type AccountEvents struct {
	Register      string
	PhoneBound    string
	CaptchaFailed string
}

type AccountErrors struct {
	EngineNotReady       error
	RegistrationDisabled error
	RegistrationInvalid  error
	AccountExists        error
	CaptchaInvalid       error
	PhoneCodeInvalid     error
	PhoneBound           error
	UserNotFound         error
}

// AccountDeps captures registration and phone binding dependencies.
type AccountDeps struct {
	Enabled         bool
	CaptchaEnabled  bool
	DefaultRoleKeys []string
	UsernameMin     int
	UsernameMax     int
	PasswordMin     int
	PasswordMax     int

	ConsumeCaptcha  func(ctx context.Context, uuid, answer string) (bool, error)
	ConsumeBindCode func(ctx context.Context, phone, code string) (bool, error)

	HashPassword   func(string) (string, error)
	CreateUser     func(ctx context.Context, in AccountCreateInput) (LoginUser, error)
	GetUserByPhone func(ctx context.Context, phone string) (LoginUser, error)
	BindPhone      func(ctx context.Context, userID, phone string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)

	Metrics AccountMetrics
	Events  AccountEvents
	Errors  AccountErrors
}

func (deps *AccountDeps) fill() {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
}

// RunRegister creates an account for in. The captcha is consumed before any
// validation so a rejected request still burns it.
func RunRegister(ctx context.Context, in RegisterInput, deps AccountDeps) (LoginUser, error) {
	deps.fill()

	if !deps.Enabled {
		return LoginUser{}, deps.Errors.RegistrationDisabled
	}
	if deps.HashPassword == nil || deps.CreateUser == nil || deps.ConsumeCaptcha == nil {
		return LoginUser{}, deps.Errors.EngineNotReady
	}

	username := strings.TrimSpace(in.Username)
	fail := func(err error, reason string) (LoginUser, error) {
		deps.EmitAudit(ctx, deps.Events.Register, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     reason,
			}
		})
		return LoginUser{}, err
	}

	if deps.CaptchaEnabled {
		ok, err := deps.ConsumeCaptcha(ctx, in.CaptchaUUID, in.CaptchaCode)
		if err != nil {
			return LoginUser{}, err
		}
		if !ok {
			deps.MetricInc(deps.Metrics.CaptchaFailure)
			deps.EmitAudit(ctx, deps.Events.CaptchaFailed, false, "", deps.Errors.CaptchaInvalid, func() map[string]string {
				return map[string]string{
					"identifier": username,
					"flow":       "register",
				}
			})
			return LoginUser{}, deps.Errors.CaptchaInvalid
		}
	}

	if n := utf8.RuneCountInString(username); n < deps.UsernameMin || n > deps.UsernameMax {
		return fail(deps.Errors.RegistrationInvalid, "username_length")
	}
	if n := utf8.RuneCountInString(in.Password); n < deps.PasswordMin || n > deps.PasswordMax {
		return fail(deps.Errors.RegistrationInvalid, "password_length")
	}
	if in.Password != in.ConfirmPassword {
		return fail(deps.Errors.RegistrationInvalid, "password_mismatch")
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return LoginUser{}, err
	}

	created, err := deps.CreateUser(ctx, AccountCreateInput{
		UserName:     username,
		PasswordHash: hash,
		RoleKeys:     append([]string(nil), deps.DefaultRoleKeys...),
	})
	if err != nil {
		if errors.Is(err, deps.Errors.AccountExists) {
			return fail(deps.Errors.AccountExists, "duplicate")
		}
		return fail(err, "provider_create_failed")
	}

	deps.MetricInc(deps.Metrics.Registered)
	deps.EmitAudit(ctx, deps.Events.Register, true, created.UserID, nil, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})
	return created, nil
}

// RunBindPhone attaches phone to userID after consuming the bind code that
// was sent to it. Binding a number the user already owns is a no-op.
func RunBindPhone(ctx context.Context, userID, phone, code string, deps AccountDeps) error {
	deps.fill()

	if deps.ConsumeBindCode == nil || deps.GetUserByPhone == nil || deps.BindPhone == nil {
		return deps.Errors.EngineNotReady
	}
	if phone == "" || code == "" {
		return deps.Errors.PhoneCodeInvalid
	}

	ok, err := deps.ConsumeBindCode(ctx, phone, code)
	if err != nil {
		return err
	}
	if !ok {
		deps.EmitAudit(ctx, deps.Events.PhoneBound, false, userID, deps.Errors.PhoneCodeInvalid, nil)
		return deps.Errors.PhoneCodeInvalid
	}

	owner, err := deps.GetUserByPhone(ctx, phone)
	switch {
	case err == nil && owner.UserID == userID:
		return nil
	case err == nil:
		deps.EmitAudit(ctx, deps.Events.PhoneBound, false, userID, deps.Errors.PhoneBound, nil)
		return deps.Errors.PhoneBound
	case !errors.Is(err, deps.Errors.UserNotFound):
		return err
	}

	if err := deps.BindPhone(ctx, userID, phone); err != nil {
		deps.EmitAudit(ctx, deps.Events.PhoneBound, false, userID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.PhoneBound)
	deps.EmitAudit(ctx, deps.Events.PhoneBound, true, userID, nil, nil)
	return nil
}
