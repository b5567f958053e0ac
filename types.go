package adminauth

import (
	"context"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
)

// QR handshake status codes reported by [Engine.QRPoll].
const (
	QRStatusAbsent  = -1
	QRStatusPending = 0
	QRStatusSuccess = 2
)

// UserRecord is the account record returned by [UserProvider].
type UserRecord struct {
	UserID       string
	UserName     string
	NickName     string
	Phone        string
	Email        string
	Avatar       string
	PasswordHash string
	Disabled     bool
}

// Role is one role assigned to a user.
type Role struct {
	RoleID   int64
	RoleKey  string
	RoleName string
}

// UserProvider is the authoritative user and role source. Implementations
// return [ErrUserNotFound] for unknown users; any other error is treated as a
// backend failure and is not counted toward the lockout.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	GetUserByPhone(ctx context.Context, phone string) (UserRecord, error)
	GetRoles(ctx context.Context, userID string) ([]Role, error)
	// GetPermissions returns the effective permission strings of the user.
	// Super admins should return "*:*:*".
	GetPermissions(ctx context.Context, userID string) ([]string, error)
}

// AccountStore is implemented by user providers that can create accounts and
// change phone bindings. [Engine.Register] and [Engine.BindPhone] need it.
//
// CreateUser returns [ErrAccountExists] when the user name is taken. BindPhone
// returns [ErrPhoneBound] when the number belongs to another user.
type AccountStore interface {
	CreateUser(ctx context.Context, in NewUser) (UserRecord, error)
	BindPhone(ctx context.Context, userID, phone string) error
}

// NewUser is an account to create. PasswordHash is already encoded.
type NewUser struct {
	UserName     string
	NickName     string
	PasswordHash string
	RoleKeys     []string
}

// CodeSender delivers SMS login codes.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// CaptchaRenderer turns a challenge into an image, usually a data URL.
type CaptchaRenderer interface {
	Render(challenge string) (string, error)
}

// SessionToken is a signed session token and its claims. Refresh mints a new
// one; a SessionToken is never mutated.
type SessionToken struct {
	Token    string
	ID       string
	UserID   string
	UserName string
	RoleIDs  []int64
	RoleKeys []string
	IssuedAt time.Time
	ExpireAt time.Time
}

func sessionTokenFrom(token string, c *jwt.SessionClaims) SessionToken {
	if c == nil {
		return SessionToken{Token: token}
	}
	return SessionToken{
		Token:    token,
		ID:       c.ID,
		UserID:   c.UID,
		UserName: c.UserName,
		RoleIDs:  append([]int64(nil), c.RoleIDs...),
		RoleKeys: append([]string(nil), c.RoleKeys...),
		IssuedAt: c.IssuedTime(),
		ExpireAt: c.ExpireTime(),
	}
}

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID   string
	UserName string
	RoleIDs  []int64
	RoleKeys []string
	TokenID  string
	ExpireAt time.Time
}

// LoginRequest is a username/password login attempt.
type LoginRequest struct {
	Username    string
	Password    string
	CaptchaUUID string
	CaptchaCode string
}

// RegisterRequest is a self-service sign-up.
type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
	CaptchaUUID     string
	CaptchaCode     string
}

type LoginResult struct {
	Session SessionToken
}

type LogoutResult struct {
	UserID   string
	UserName string
}

// AuthResult is the outcome of authenticating one request. RefreshedToken is
// set when the refresh guard minted a replacement; callers hand it back to the
// client alongside the normal response.
type AuthResult struct {
	Identity       Identity
	RefreshedToken string
	Refreshed      *SessionToken
}

// UserInfo is the profile returned by [Engine.GetInfo].
type UserInfo struct {
	User        UserRecord
	Roles       []string
	Permissions []string
}

// QRCode is a freshly generated cross-device login handshake. Payload is what
// the QR code encodes; Image is a PNG data URL of it (empty when rendering is
// off).
type QRCode struct {
	UUID      string
	State     string
	Payload   string
	Image     string
	ExpiresIn time.Duration
}

// QRPollResult reports a handshake status; Token is set only with
// [QRStatusSuccess].
type QRPollResult struct {
	Status int
	Token  string
}

// Captcha is an issued challenge. With Enabled false the gate is off and the
// other fields are empty.
type Captcha struct {
	Enabled   bool
	UUID      string
	Challenge string
	Image     string
}
