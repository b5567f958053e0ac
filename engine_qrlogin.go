package adminauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

type qrPayload struct {
	UUID     string `json:"uuid"`
	DeviceID string `json:"deviceId"`
	State    string `json:"state"`
}

// QRGenerate creates a pending cross-device handshake for the display device
// deviceID. The confirming device scans Payload and calls [Engine.QRConfirm]
// with the uuid and state it contains.
func (e *Engine) QRGenerate(ctx context.Context, deviceID string) (*QRCode, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.QRLogin.Enabled {
		return nil, ErrQRLoginDisabled
	}
	if err := e.throttleIssue(ctx, "qr"); err != nil {
		return nil, err
	}

	hs, err := e.flows.QRGenerate(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(qrPayload{UUID: hs.UUID, DeviceID: hs.DeviceID, State: hs.State})
	if err != nil {
		return nil, err
	}

	out := &QRCode{
		UUID:      hs.UUID,
		State:     hs.State,
		Payload:   string(payload),
		ExpiresIn: hs.ExpiresIn,
	}
	if e.config.QRLogin.ImageSize > 0 {
		img, err := renderQRDataURL(out.Payload, e.config.QRLogin.ImageSize)
		if err != nil {
			e.logger.Warn("qr image render failed", "error", err)
		} else {
			out.Image = img
		}
	}
	return out, nil
}

// QRPoll reports the handshake status for the display device:
// [QRStatusAbsent] (expired or already consumed), [QRStatusPending], or
// [QRStatusSuccess] with the minted token. The success result is delivered to
// exactly one poller.
func (e *Engine) QRPoll(ctx context.Context, id string) (*QRPollResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.QRLogin.Enabled {
		return nil, ErrQRLoginDisabled
	}
	if id == "" {
		return &QRPollResult{Status: QRStatusAbsent}, nil
	}

	out, err := e.flows.QRPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &QRPollResult{Status: out.Status}
	if out.Status == QRStatusSuccess {
		res.Token = out.Token
	}
	return res, nil
}

// QRConfirm completes handshake id for the user holding bearerToken. state
// must be the correlation value encoded in the scanned payload; a mismatch is
// reported as [ErrHandshakeExpired] so a guessed uuid reveals nothing.
//
// The bearer token passes through the same guard as [Engine.Authenticate], so
// a near-expiry token comes back refreshed in the result. The result is
// returned alongside handshake errors once the token has been accepted.
//
// Errors: token errors, [ErrUserLocked], [ErrHandshakeExpired],
// [ErrHandshakeConsumed].
func (e *Engine) QRConfirm(ctx context.Context, id, state, bearerToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if !e.config.QRLogin.Enabled {
		return nil, ErrQRLoginDisabled
	}
	if id == "" || state == "" {
		return nil, ErrHandshakeExpired
	}
	auth, claims, err := e.authenticate(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	if _, err := e.flows.QRConfirm(ctx, id, state, claims.Identity()); err != nil {
		return auth, err
	}
	return auth, nil
}

func renderQRDataURL(content string, size int) (string, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
