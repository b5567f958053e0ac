package flows

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/adminauth/jwt"
)

// QRHandshake is a freshly created cross-device login handshake.
type QRHandshake struct {
	UUID      string
	State     string
	DeviceID  string
	ExpiresIn time.Duration
}

// QRPollOutcome mirrors the store poll result.
type QRPollOutcome struct {
	Status int
	Token  string
	UserID string
}

// QRMetrics carries metric IDs used by the QR flows.
type QRMetrics struct {
	Generated int
	Confirmed int
	Consumed  int
}

// QREvents carries audit event names used by the QR flows.
type QREvents struct {
	Confirmed string
	Consumed  string
}

// QRErrors carries host-level sentinel errors used by the QR flows.
type QRErrors struct {
	EngineNotReady   error
	CacheUnavailable error
	Locked           func(remaining time.Duration) error
}

// QRDeps captures QR login dependencies.
type QRDeps struct {
	TTL      time.Duration
	NewID    func() string
	NewState func() (string, error)

	Create  func(ctx context.Context, id, state, deviceID string, ttl time.Duration) error
	Poll    func(ctx context.Context, id string) (QRPollOutcome, error)
	Confirm func(ctx context.Context, id, state, token, userID string) error
	// MapStoreError converts store errors to host sentinels.
	MapStoreError func(error) error

	IsLocked            func(ctx context.Context, id string) (bool, time.Duration, error)
	IssueToken          func(jwt.Subject) (string, *jwt.SessionClaims, error)
	PopulatePermissions func(ctx context.Context, userID string) error

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Warn      func(msg string, args ...any)

	StatusSuccess int

	Metrics QRMetrics
	Events  QREvents
	Errors  QRErrors
}

func (deps *QRDeps) fill() {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
}

// RunQRGenerate creates a pending handshake for deviceID.
func RunQRGenerate(ctx context.Context, deviceID string, deps QRDeps) (*QRHandshake, error) {
	deps.fill()
	if deps.NewID == nil || deps.NewState == nil || deps.Create == nil {
		return nil, deps.Errors.EngineNotReady
	}

	state, err := deps.NewState()
	if err != nil {
		return nil, err
	}
	id := deps.NewID()
	if err := deps.Create(ctx, id, state, deviceID, deps.TTL); err != nil {
		return nil, deps.MapStoreError(err)
	}

	deps.MetricInc(deps.Metrics.Generated)
	return &QRHandshake{
		UUID:      id,
		State:     state,
		DeviceID:  deviceID,
		ExpiresIn: deps.TTL,
	}, nil
}

// RunQRPoll reports the handshake status. A success outcome has already
// removed the handshake.
func RunQRPoll(ctx context.Context, id string, deps QRDeps) (QRPollOutcome, error) {
	deps.fill()
	if deps.Poll == nil {
		return QRPollOutcome{}, deps.Errors.EngineNotReady
	}

	out, err := deps.Poll(ctx, id)
	if err != nil {
		return QRPollOutcome{}, deps.MapStoreError(err)
	}
	if out.Status == deps.StatusSuccess {
		deps.MetricInc(deps.Metrics.Consumed)
		deps.EmitAudit(ctx, deps.Events.Consumed, true, out.UserID, nil, func() map[string]string {
			return map[string]string{
				"uuid": id,
			}
		})
	}
	return out, nil
}

// RunQRConfirm completes the handshake id on behalf of the authenticated
// subject. The confirming device must echo the correlation state it scanned.
func RunQRConfirm(ctx context.Context, id, state string, sub jwt.Subject, deps QRDeps) (*jwt.SessionClaims, error) {
	deps.fill()
	if deps.IssueToken == nil || deps.Confirm == nil || deps.IsLocked == nil || deps.Errors.Locked == nil {
		return nil, deps.Errors.EngineNotReady
	}

	locked, remaining, err := deps.IsLocked(ctx, sub.UserName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.CacheUnavailable, err)
	}
	if locked {
		return nil, deps.Errors.Locked(remaining)
	}

	token, fresh, err := deps.IssueToken(sub)
	if err != nil {
		return nil, err
	}

	if err := deps.Confirm(ctx, id, state, token, sub.UserID); err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.Confirmed, false, sub.UserID, mapped, func() map[string]string {
			return map[string]string{
				"uuid": id,
			}
		})
		return nil, mapped
	}

	if deps.PopulatePermissions != nil {
		if err := deps.PopulatePermissions(ctx, sub.UserID); err != nil {
			deps.Warn("permission cache populate failed", "user_id", sub.UserID, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	deps.EmitAudit(ctx, deps.Events.Confirmed, true, sub.UserID, nil, func() map[string]string {
		return map[string]string{
			"uuid": id,
		}
	})
	return fresh, nil
}
