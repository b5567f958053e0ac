package adminauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/adminauth/internal"
	internalflows "github.com/MrEthical07/adminauth/internal/flows"
	"github.com/MrEthical07/adminauth/internal/limiters"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/internal/stores"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/refresh"
)

// Engine runs the login protocol. It holds no per-user state in memory; every
// shared record lives in Redis, so any number of engines may serve the same
// users. Engine is safe for concurrent use.
type Engine struct {
	config Config
	logger *slog.Logger
	now    func() time.Time

	jwtManager   *jwt.Manager
	passwordHash *password.Argon2
	lockout      *limiters.LockoutLimiter
	issueLimiter *rate.Limiter
	captchaStore *stores.OneTimeCodeStore
	smsStore     *stores.OneTimeCodeStore
	permCache    *stores.PermissionCache
	qrStore      *stores.QRLoginStore
	sentinel     *refresh.Sentinel

	userProvider    UserProvider
	accounts        AccountStore
	codeSender      CodeSender
	captchaRenderer CaptchaRenderer

	audit   *auditDispatcher
	metrics *Metrics
	flows   internalflows.Service
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports events dropped because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Login checks the captcha, the lockout and the credentials, then issues a
// session token and populates the permission cache.
//
// Errors: [ErrCaptchaInvalid], [ErrUserLocked] (as [*LockedError]),
// [ErrCredentialInvalid], [ErrUserDisabled], [ErrCacheUnavailable].
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Login(ctx, internalflows.LoginInput{
		Username:    req.Username,
		Password:    req.Password,
		CaptchaUUID: req.CaptchaUUID,
		CaptchaCode: req.CaptchaCode,
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sessionTokenFrom(res.Token, res.Claims)}, nil
}

// ValidateCredentials runs only the credential check (lockout, lookup,
// secret, status) without issuing a token.
func (e *Engine) ValidateCredentials(ctx context.Context, identifier, secret string) (UserRecord, error) {
	if !e.ready() {
		return UserRecord{}, ErrEngineNotReady
	}
	u, err := e.flows.ValidateCredentials(ctx, identifier, secret)
	if err != nil {
		return UserRecord{}, err
	}
	return fromFlowUser(u), nil
}

// Authenticate validates a session token and runs the refresh guard. When the
// token is close to expiry and this request won the per-user refresh slot,
// the result carries a replacement token.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, _, err := e.authenticate(ctx, token)
	return out, err
}

// authenticate also returns the claims of the presented token for operations
// that act on the caller's identity.
func (e *Engine) authenticate(ctx context.Context, token string) (*AuthResult, *jwt.SessionClaims, error) {
	if token == "" {
		return nil, nil, ErrUnauthorized
	}

	start := time.Now()
	res, err := e.flows.Authenticate(ctx, token)
	e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	if err != nil {
		e.metricInc(MetricTokenRejected)
		return nil, nil, err
	}

	out := &AuthResult{Identity: identityFrom(res.Claims)}
	if res.RefreshedToken != "" {
		st := sessionTokenFrom(res.RefreshedToken, res.RefreshedClaims)
		out.RefreshedToken = res.RefreshedToken
		out.Refreshed = &st
	}
	return out, res.Claims, nil
}

// Logout clears the permission cache entry of the token's user. The token
// itself stays valid until it expires. Logout validates the token without the
// refresh guard: a session being closed is never extended.
func (e *Engine) Logout(ctx context.Context, token string) (*LogoutResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	claims, err := e.flows.Logout(ctx, token)
	if err != nil {
		return nil, err
	}
	return &LogoutResult{UserID: claims.UID, UserName: claims.UserName}, nil
}

// GetInfo authenticates token and returns the user's profile, role keys and
// permissions. The [AuthResult] carries a refreshed token when one was minted.
func (e *Engine) GetInfo(ctx context.Context, token string) (*UserInfo, *AuthResult, error) {
	auth, err := e.Authenticate(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	user, err := e.userProvider.GetUserByID(ctx, auth.Identity.UserID)
	if err != nil {
		return nil, auth, err
	}
	user.PasswordHash = ""

	roles, err := e.userProvider.GetRoles(ctx, auth.Identity.UserID)
	if err != nil {
		return nil, auth, err
	}
	roleKeys := make([]string, 0, len(roles))
	for _, r := range roles {
		roleKeys = append(roleKeys, r.RoleKey)
	}

	perms, err := e.Permissions(ctx, auth.Identity.UserID)
	if err != nil {
		return nil, auth, err
	}

	return &UserInfo{
		User:        user,
		Roles:       roleKeys,
		Permissions: perms.List(),
	}, auth, nil
}

// UnlockUser clears the lockout record of identifier.
func (e *Engine) UnlockUser(ctx context.Context, identifier string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.lockout.Reset(ctx, identifier); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	e.emitAudit(ctx, auditEventUnlock, true, "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return nil
}

// LockStatus reports whether identifier is locked and for how long.
func (e *Engine) LockStatus(ctx context.Context, identifier string) (bool, time.Duration, error) {
	if !e.ready() {
		return false, 0, ErrEngineNotReady
	}
	locked, remaining, err := e.lockout.IsLocked(ctx, identifier)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return locked, remaining, nil
}

func (e *Engine) lockedError(remaining time.Duration) error {
	return &LockedError{Remaining: remaining}
}

func (e *Engine) issueToken(sub jwt.Subject) (string, *jwt.SessionClaims, error) {
	return e.jwtManager.Issue(sub)
}

// parseToken maps token errors onto the package sentinels.
func (e *Engine) parseToken(token string) (*jwt.SessionClaims, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		return nil, mapTokenError(err)
	}
	return claims, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrQRHandshakeExpired):
		return ErrHandshakeExpired
	case errors.Is(err, stores.ErrQRHandshakeConsumed):
		return ErrHandshakeConsumed
	case errors.Is(err, stores.ErrQRHandshakeExists):
		return fmt.Errorf("%w: handshake id collision", ErrCacheUnavailable)
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

func (e *Engine) throttleIssue(ctx context.Context, action string) error {
	err := e.issueLimiter.Allow(ctx, action, clientIPFromContext(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimited, false, "", ErrRateLimited, func() map[string]string {
			return map[string]string{"scope": action}
		})
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
}

func identityFrom(c *jwt.SessionClaims) Identity {
	sub := c.Identity()
	return Identity{
		UserID:   sub.UserID,
		UserName: sub.UserName,
		RoleIDs:  sub.RoleIDs,
		RoleKeys: sub.RoleKeys,
		TokenID:  c.ID,
		ExpireAt: c.ExpireTime(),
	}
}

func toFlowUser(u UserRecord) internalflows.LoginUser {
	return internalflows.LoginUser{
		UserID:       u.UserID,
		UserName:     u.UserName,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Disabled:     u.Disabled,
	}
}

func fromFlowUser(u internalflows.LoginUser) UserRecord {
	return UserRecord{
		UserID:   u.UserID,
		UserName: u.UserName,
		Phone:    u.Phone,
		Disabled: u.Disabled,
	}
}

func (e *Engine) loadRoles(ctx context.Context, userID string) ([]int64, []string, error) {
	roles, err := e.userProvider.GetRoles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]int64, 0, len(roles))
	keys := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.RoleID)
		keys = append(keys, r.RoleKey)
	}
	return ids, keys, nil
}

func (e *Engine) buildFlows() internalflows.Service {
	emit := func(ctx context.Context, event string, success bool, userID string, err error, md func() map[string]string) {
		e.emitAudit(ctx, event, success, userID, err, md)
	}
	inc := func(id int) { e.metricInc(MetricID(id)) }

	login := internalflows.LoginDeps{
		CaptchaEnabled: e.config.Captcha.Enabled,
		ConsumeCaptcha: e.consumeCaptcha,
		ConsumePhoneCode: func(ctx context.Context, phone, code string) (bool, error) {
			return consumeCode(ctx, e.smsStore, phone, code)
		},
		IsLocked: e.lockout.IsLocked,
		RecordFailure: func(ctx context.Context, id string) (bool, error) {
			res, err := e.lockout.RecordFailure(ctx, id)
			return res.Tripped, err
		},
		ClearFailures: e.lockout.ClearFailures,
		GetUserByIdentifier: func(ctx context.Context, identifier string) (internalflows.LoginUser, error) {
			u, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
			return toFlowUser(u), err
		},
		GetUserByPhone: func(ctx context.Context, phone string) (internalflows.LoginUser, error) {
			u, err := e.userProvider.GetUserByPhone(ctx, phone)
			return toFlowUser(u), err
		},
		VerifyPassword:      e.passwordHash.Verify,
		LoadRoles:           e.loadRoles,
		IssueToken:          e.issueToken,
		PopulatePermissions: e.populatePermissions,
		MetricInc:           inc,
		EmitAudit:           emit,
		Warn:                e.logger.Warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:   int(MetricLoginSuccess),
			LoginFailure:   int(MetricLoginFailure),
			LoginLocked:    int(MetricLoginLocked),
			Lockout:        int(MetricLockout),
			CaptchaFailure: int(MetricCaptchaFailure),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:  auditEventLoginSuccess,
			LoginFailure:  auditEventLoginFailure,
			LoginLocked:   auditEventLoginLocked,
			CaptchaFailed: auditEventCaptchaFailed,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:    ErrEngineNotReady,
			CredentialInvalid: ErrCredentialInvalid,
			UserDisabled:      ErrUserDisabled,
			UserNotFound:      ErrUserNotFound,
			CaptchaInvalid:    ErrCaptchaInvalid,
			PhoneCodeInvalid:  ErrPhoneCodeInvalid,
			CacheUnavailable:  ErrCacheUnavailable,
			Locked:            e.lockedError,
		},
	}

	authenticate := internalflows.AuthenticateDeps{
		Parse:            e.parseToken,
		Now:              e.now,
		RefreshEnabled:   e.config.Refresh.Enabled,
		RefreshThreshold: e.config.Refresh.Threshold,
		ClaimRefresh:     e.sentinel.Claim,
		ReleaseRefresh:   e.sentinel.Release,
		IssueToken:       e.issueToken,
		MetricInc:        inc,
		EmitAudit:        emit,
		Info:             e.logger.Info,
		Warn:             e.logger.Warn,
		Metrics: internalflows.AuthenticateMetrics{
			RefreshIssued:    int(MetricRefreshIssued),
			RefreshCoalesced: int(MetricRefreshCoalesced),
		},
		TokenRefreshedEvent: auditEventTokenRefreshed,
		EngineNotReady:      ErrEngineNotReady,
	}

	logout := internalflows.LogoutDeps{
		Parse: e.parseToken,
		RemovePermissions: func(ctx context.Context, userID string) error {
			if err := e.permCache.Remove(ctx, userID); err != nil {
				return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
			}
			return nil
		},
		MetricInc:      inc,
		EmitAudit:      emit,
		LogoutMetric:   int(MetricLogout),
		LogoutEvent:    auditEventLogout,
		EngineNotReady: ErrEngineNotReady,
	}

	qr := internalflows.QRDeps{
		TTL:      e.config.QRLogin.TTL,
		NewID:    internal.CompactUUID,
		NewState: internal.NewCorrelationState,
		Create:   e.qrStore.Create,
		Poll: func(ctx context.Context, id string) (internalflows.QRPollOutcome, error) {
			res, err := e.qrStore.Poll(ctx, id)
			return internalflows.QRPollOutcome{Status: res.Status, Token: res.Token, UserID: res.UserID}, err
		},
		Confirm:             e.qrStore.Confirm,
		MapStoreError:       mapStoreError,
		IsLocked:            e.lockout.IsLocked,
		IssueToken:          e.issueToken,
		PopulatePermissions: e.populatePermissions,
		MetricInc:           inc,
		EmitAudit:           emit,
		Warn:                e.logger.Warn,
		StatusSuccess:       QRStatusSuccess,
		Metrics: internalflows.QRMetrics{
			Generated: int(MetricQRGenerated),
			Confirmed: int(MetricQRConfirmed),
			Consumed:  int(MetricQRConsumed),
		},
		Events: internalflows.QREvents{
			Confirmed: auditEventQRConfirmed,
			Consumed:  auditEventQRConsumed,
		},
		Errors: internalflows.QRErrors{
			EngineNotReady:   ErrEngineNotReady,
			CacheUnavailable: ErrCacheUnavailable,
			Locked:           e.lockedError,
		},
	}

	account := internalflows.AccountDeps{
		Enabled:         e.config.Registration.Enabled,
		CaptchaEnabled:  e.config.Captcha.Enabled,
		DefaultRoleKeys: e.config.Registration.DefaultRoleKeys,
		UsernameMin:     e.config.Registration.UsernameMinLength,
		UsernameMax:     e.config.Registration.UsernameMaxLength,
		PasswordMin:     e.config.Registration.PasswordMinLength,
		PasswordMax:     e.config.Registration.PasswordMaxLength,
		ConsumeCaptcha:  e.consumeCaptcha,
		ConsumeBindCode: func(ctx context.Context, phone, code string) (bool, error) {
			return consumeCode(ctx, e.smsStore, bindCodeID(phone), code)
		},
		HashPassword: e.passwordHash.Hash,
		GetUserByPhone: func(ctx context.Context, phone string) (internalflows.LoginUser, error) {
			u, err := e.userProvider.GetUserByPhone(ctx, phone)
			return toFlowUser(u), err
		},
		MetricInc: inc,
		EmitAudit: emit,
		Metrics: internalflows.AccountMetrics{
			Registered:     int(MetricRegistered),
			PhoneBound:     int(MetricPhoneBound),
			CaptchaFailure: int(MetricCaptchaFailure),
		},
		Events: internalflows.AccountEvents{
			Register:      auditEventRegister,
			PhoneBound:    auditEventPhoneBound,
			CaptchaFailed: auditEventCaptchaFailed,
		},
		Errors: internalflows.AccountErrors{
			EngineNotReady:       ErrEngineNotReady,
			RegistrationDisabled: ErrRegistrationDisabled,
			RegistrationInvalid:  ErrRegistrationInvalid,
			AccountExists:        ErrAccountExists,
			CaptchaInvalid:       ErrCaptchaInvalid,
			PhoneCodeInvalid:     ErrPhoneCodeInvalid,
			PhoneBound:           ErrPhoneBound,
			UserNotFound:         ErrUserNotFound,
		},
	}
	if e.accounts != nil {
		account.CreateUser = func(ctx context.Context, in internalflows.AccountCreateInput) (internalflows.LoginUser, error) {
			u, err := e.accounts.CreateUser(ctx, NewUser{
				UserName:     in.UserName,
				NickName:     in.UserName,
				PasswordHash: in.PasswordHash,
				RoleKeys:     in.RoleKeys,
			})
			return toFlowUser(u), err
		}
		account.BindPhone = e.accounts.BindPhone
	}

	return internalflows.New(internalflows.Deps{
		Login:        login,
		Authenticate: authenticate,
		Logout:       logout,
		QR:           qr,
		Account:      account,
	})
}
