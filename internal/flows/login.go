package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
)

// LoginUser is the flow-local user model used by the login flows.
type LoginUser struct {
	UserID       string
	UserName     string
	PasswordHash string
	Phone        string
	Disabled     bool
	RoleIDs      []int64
	RoleKeys     []string
}

// Subject returns the token subject for u.
func (u LoginUser) Subject() jwt.Subject {
	return jwt.Subject{
		UserID:   u.UserID,
		UserName: u.UserName,
		RoleIDs:  u.RoleIDs,
		RoleKeys: u.RoleKeys,
	}
}

// LoginInput is a username/password attempt with its captcha answer.
type LoginInput struct {
	Username    string
	Password    string
	CaptchaUUID string
	CaptchaCode string
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Token  string
	Claims *jwt.SessionClaims
	User   LoginUser
}

// LoginMetrics carries metric IDs needed by the login flows.
type LoginMetrics struct {
	LoginSuccess   int
	LoginFailure   int
	LoginLocked    int
	Lockout        int
	CaptchaFailure int
}

// LoginEvents carries audit event names used by the login flows.
type LoginEvents struct {
	LoginSuccess  string
	LoginFailure  string
	LoginLocked   string
	CaptchaFailed string
}

// LoginErrors carries host-level sentinel errors used by the login flows.
type LoginErrors struct {
	EngineNotReady    error
	CredentialInvalid error
	UserDisabled      error
	UserNotFound      error
	CaptchaInvalid    error
	PhoneCodeInvalid  error
	CacheUnavailable  error
	// Locked builds the lock error carrying the remaining lock time.
	Locked func(remaining time.Duration) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	CaptchaEnabled bool

	ConsumeCaptcha   func(ctx context.Context, uuid, answer string) (bool, error)
	ConsumePhoneCode func(ctx context.Context, phone, code string) (bool, error)

	IsLocked      func(ctx context.Context, id string) (bool, time.Duration, error)
	RecordFailure func(ctx context.Context, id string) (tripped bool, err error)
	ClearFailures func(ctx context.Context, id string) error

	GetUserByIdentifier func(ctx context.Context, identifier string) (LoginUser, error)
	GetUserByPhone      func(ctx context.Context, phone string) (LoginUser, error)
	VerifyPassword      func(secret, encoded string) (bool, error)

	LoadRoles           func(ctx context.Context, userID string) (ids []int64, keys []string, err error)
	IssueToken          func(jwt.Subject) (string, *jwt.SessionClaims, error)
	PopulatePermissions func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (deps *LoginDeps) fill() {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}

func (deps *LoginDeps) ready() bool {
	return deps.IsLocked != nil &&
		deps.RecordFailure != nil &&
		deps.ClearFailures != nil &&
		deps.GetUserByIdentifier != nil &&
		deps.VerifyPassword != nil &&
		deps.IssueToken != nil &&
		deps.Errors.Locked != nil
}

// RunLogin runs captcha gate, credential validation and session issuance.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	if deps.CaptchaEnabled {
		if deps.ConsumeCaptcha == nil {
			return nil, deps.Errors.EngineNotReady
		}
		ok, err := deps.ConsumeCaptcha(ctx, in.CaptchaUUID, in.CaptchaCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			deps.MetricInc(deps.Metrics.CaptchaFailure)
			deps.EmitAudit(ctx, deps.Events.CaptchaFailed, false, "", deps.Errors.CaptchaInvalid, func() map[string]string {
				return map[string]string{
					"identifier": in.Username,
				}
			})
			return nil, deps.Errors.CaptchaInvalid
		}
	}

	user, err := RunValidateCredentials(ctx, in.Username, in.Password, deps)
	if err != nil {
		return nil, err
	}
	return RunIssueSession(ctx, user, "password", deps)
}

// RunValidateCredentials checks identifier and secret against the lockout
// state and the user source. Unknown identifiers and wrong secrets fail with
// the same error and both count toward the lockout.
func RunValidateCredentials(ctx context.Context, identifier, secret string, deps LoginDeps) (LoginUser, error) {
	deps.fill()
	if !deps.ready() {
		return LoginUser{}, deps.Errors.EngineNotReady
	}

	if err := checkLocked(ctx, identifier, "", deps); err != nil {
		return LoginUser{}, err
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.Errors.UserNotFound != nil && !errors.Is(err, deps.Errors.UserNotFound) {
			return LoginUser{}, err
		}
		recordFailure(ctx, identifier, "", "user_not_found", deps)
		return LoginUser{}, deps.Errors.CredentialInvalid
	}

	ok, err := deps.VerifyPassword(secret, user.PasswordHash)
	if err != nil || !ok {
		recordFailure(ctx, identifier, user.UserID, "password_mismatch", deps)
		return LoginUser{}, deps.Errors.CredentialInvalid
	}

	if user.Disabled {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, user.UserID, deps.Errors.UserDisabled, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "disabled",
			}
		})
		return LoginUser{}, deps.Errors.UserDisabled
	}

	if err := deps.ClearFailures(ctx, identifier); err != nil {
		deps.Warn("lockout reset failed", "identifier", identifier, "error", err)
	}
	return user, nil
}

// RunPhoneLogin logs in with a single-use SMS code. The lockout is consulted
// for the user name the phone number resolves to.
func RunPhoneLogin(ctx context.Context, phone, code string, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if !deps.ready() || deps.ConsumePhoneCode == nil || deps.GetUserByPhone == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ok, err := deps.ConsumePhoneCode(ctx, phone, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.PhoneCodeInvalid, func() map[string]string {
			return map[string]string{
				"reason": "phone_code",
			}
		})
		return nil, deps.Errors.PhoneCodeInvalid
	}

	user, err := deps.GetUserByPhone(ctx, phone)
	if err != nil {
		if deps.Errors.UserNotFound != nil && !errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.CredentialInvalid
	}

	if err := checkLocked(ctx, user.UserName, user.UserID, deps); err != nil {
		return nil, err
	}
	if user.Disabled {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.UserDisabled
	}

	return RunIssueSession(ctx, user, "phone", deps)
}

// RunIssueSession mints a session token for user and populates the
// permission cache. A cache write failure is logged and does not fail the
// login: the next permission check recomputes.
func RunIssueSession(ctx context.Context, user LoginUser, method string, deps LoginDeps) (*LoginResult, error) {
	deps.fill()
	if deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if deps.LoadRoles != nil {
		ids, keys, err := deps.LoadRoles(ctx, user.UserID)
		if err != nil {
			return nil, fmt.Errorf("load roles: %w", err)
		}
		user.RoleIDs, user.RoleKeys = ids, keys
	}

	token, claims, err := deps.IssueToken(user.Subject())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	if deps.PopulatePermissions != nil {
		if err := deps.PopulatePermissions(ctx, user.UserID); err != nil {
			deps.Warn("permission cache populate failed", "user_id", user.UserID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"method": method,
		}
	})

	return &LoginResult{
		Token:  token,
		Claims: claims,
		User:   user,
	}, nil
}

func checkLocked(ctx context.Context, id, userID string, deps LoginDeps) error {
	locked, remaining, err := deps.IsLocked(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", deps.Errors.CacheUnavailable, err)
	}
	if !locked {
		return nil
	}

	lockErr := deps.Errors.Locked(remaining)
	deps.MetricInc(deps.Metrics.LoginLocked)
	deps.EmitAudit(ctx, deps.Events.LoginLocked, false, userID, lockErr, func() map[string]string {
		return map[string]string{
			"identifier": id,
		}
	})
	return lockErr
}

func recordFailure(ctx context.Context, identifier, userID, reason string, deps LoginDeps) {
	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.CredentialInvalid, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})

	tripped, err := deps.RecordFailure(ctx, identifier)
	if err != nil {
		deps.Warn("lockout record failed", "identifier", identifier, "error", err)
		return
	}
	if tripped {
		deps.MetricInc(deps.Metrics.Lockout)
	}
}
