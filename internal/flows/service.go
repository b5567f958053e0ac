package flows

import (
	"context"

	"github.com/MrEthical07/adminauth/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Authenticate.Parse != nil
}

func (s Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	return RunLogin(ctx, in, s.deps.Login)
}

func (s Service) ValidateCredentials(ctx context.Context, identifier, secret string) (LoginUser, error) {
	return RunValidateCredentials(ctx, identifier, secret, s.deps.Login)
}

func (s Service) PhoneLogin(ctx context.Context, phone, code string) (*LoginResult, error) {
	return RunPhoneLogin(ctx, phone, code, s.deps.Login)
}

func (s Service) Authenticate(ctx context.Context, tokenStr string) (*AuthenticateResult, error) {
	return RunAuthenticate(ctx, tokenStr, s.deps.Authenticate)
}

func (s Service) Logout(ctx context.Context, tokenStr string) (*jwt.SessionClaims, error) {
	return RunLogout(ctx, tokenStr, s.deps.Logout)
}

func (s Service) Register(ctx context.Context, in RegisterInput) (LoginUser, error) {
	return RunRegister(ctx, in, s.deps.Account)
}

func (s Service) BindPhone(ctx context.Context, userID, phone, code string) error {
	return RunBindPhone(ctx, userID, phone, code, s.deps.Account)
}

func (s Service) QRGenerate(ctx context.Context, deviceID string) (*QRHandshake, error) {
	return RunQRGenerate(ctx, deviceID, s.deps.QR)
}

func (s Service) QRPoll(ctx context.Context, id string) (QRPollOutcome, error) {
	return RunQRPoll(ctx, id, s.deps.QR)
}

func (s Service) QRConfirm(ctx context.Context, id, state string, sub jwt.Subject) (*jwt.SessionClaims, error) {
	return RunQRConfirm(ctx, id, state, sub, s.deps.QR)
}
