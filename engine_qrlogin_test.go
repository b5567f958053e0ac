package adminauth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestQRLoginLifecycle(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "admin")

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	if code.UUID == "" || code.State == "" {
		t.Fatalf("expected uuid and state, got %+v", code)
	}
	if code.ExpiresIn != 2*time.Minute {
		t.Fatalf("expected 2m expiry, got %v", code.ExpiresIn)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(code.Payload), &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["uuid"] != code.UUID || payload["deviceId"] != "desk-1" || payload["state"] != code.State {
		t.Fatalf("unexpected payload %v", payload)
	}
	if !strings.HasPrefix(code.Image, "data:image/png;base64,") {
		t.Fatalf("expected PNG data URL, got %.32q", code.Image)
	}

	res, err := engine.QRPoll(ctx, code.UUID)
	if err != nil || res.Status != QRStatusPending || res.Token != "" {
		t.Fatalf("expected pending, got %+v %v", res, err)
	}

	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); err != nil {
		t.Fatalf("QRConfirm failed: %v", err)
	}

	res, err = engine.QRPoll(ctx, code.UUID)
	if err != nil || res.Status != QRStatusSuccess || res.Token == "" {
		t.Fatalf("expected success with token, got %+v %v", res, err)
	}
	auth, err := engine.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatalf("handed-over token rejected: %v", err)
	}
	if auth.Identity.UserName != "admin" {
		t.Fatalf("expected admin identity, got %+v", auth.Identity)
	}
	if res.Token == phone.Token {
		t.Fatal("expected a newly minted token for the display device")
	}

	res, err = engine.QRPoll(ctx, code.UUID)
	if err != nil || res.Status != QRStatusAbsent {
		t.Fatalf("expected absent after consumption, got %+v %v", res, err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricQRGenerated] != 1 || snap.Counters[MetricQRConfirmed] != 1 || snap.Counters[MetricQRConsumed] != 1 {
		t.Fatalf("unexpected qr metrics %+v", snap.Counters)
	}
}

func TestQRLoginExpires(t *testing.T) {
	engine, mr := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "admin")

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	mr.FastForward(2*time.Minute + time.Second)

	res, err := engine.QRPoll(ctx, code.UUID)
	if err != nil || res.Status != QRStatusAbsent {
		t.Fatalf("expected absent after ttl, got %+v %v", res, err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); !errors.Is(err, ErrHandshakeExpired) {
		t.Fatalf("expected ErrHandshakeExpired, got %v", err)
	}
}

func TestQRConfirmRejectsWrongStateAndReuse(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "alice")

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}

	if _, err := engine.QRConfirm(ctx, code.UUID, "guessed", phone.Token); !errors.Is(err, ErrHandshakeExpired) {
		t.Fatalf("expected ErrHandshakeExpired for a wrong state, got %v", err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, "bogus"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected token error, got %v", err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); err != nil {
		t.Fatalf("QRConfirm failed: %v", err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); !errors.Is(err, ErrHandshakeConsumed) {
		t.Fatalf("expected ErrHandshakeConsumed, got %v", err)
	}
}

func TestQRConfirmLockedUser(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "alice")

	for i := 0; i < 5; i++ {
		_, _ = engine.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
	}

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); !errors.Is(err, ErrUserLocked) {
		t.Fatalf("expected ErrUserLocked, got %v", err)
	}
	res, err := engine.QRPoll(ctx, code.UUID)
	if err != nil || res.Status != QRStatusPending {
		t.Fatalf("expected handshake still pending, got %+v %v", res, err)
	}
}

func TestQRPollConcurrentDeliversTokenOnce(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "admin")

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	if _, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token); err != nil {
		t.Fatalf("QRConfirm failed: %v", err)
	}

	const n = 12
	var wg sync.WaitGroup
	start := make(chan struct{})
	statuses := make(chan int, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			res, err := engine.QRPoll(ctx, code.UUID)
			if err != nil {
				statuses <- -100
				return
			}
			statuses <- res.Status
		}()
	}
	close(start)
	wg.Wait()
	close(statuses)

	success := 0
	for s := range statuses {
		switch s {
		case QRStatusSuccess:
			success++
		case QRStatusAbsent:
		default:
			t.Fatalf("unexpected status %d", s)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly one success, got %d", success)
	}
}

func TestQRLoginDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.QRLogin.Enabled = false
	engine, _ := newTestEngine(t, cfg, newMockUserProvider(t))

	if _, err := engine.QRGenerate(context.Background(), "desk-1"); !errors.Is(err, ErrQRLoginDisabled) {
		t.Fatalf("expected ErrQRLoginDisabled, got %v", err)
	}
}

func TestQRGenerateWithoutImage(t *testing.T) {
	cfg := testConfig()
	cfg.QRLogin.ImageSize = 0
	engine, _ := newTestEngine(t, cfg, newMockUserProvider(t))

	code, err := engine.QRGenerate(context.Background(), "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	if code.Image != "" {
		t.Fatal("expected no image when rendering is off")
	}
}

func TestQRConfirmRefreshesNearExpiryToken(t *testing.T) {
	cfg := testConfig()
	clock := newTestClock()
	engine, _ := newTestEngine(t, cfg, newMockUserProvider(t), withClock(clock))
	ctx := context.Background()
	phone := mustLogin(t, engine, "admin")

	clock.Advance(cfg.JWT.TTL - cfg.Refresh.Threshold + time.Minute)

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	auth, err := engine.QRConfirm(ctx, code.UUID, code.State, phone.Token)
	if err != nil {
		t.Fatalf("QRConfirm failed: %v", err)
	}
	if auth == nil || auth.RefreshedToken == "" {
		t.Fatalf("expected a refreshed token for the scanning device, got %+v", auth)
	}
	if auth.Identity.UserName != "admin" {
		t.Fatalf("unexpected identity %+v", auth.Identity)
	}
	if _, err := engine.Authenticate(ctx, auth.RefreshedToken); err != nil {
		t.Fatalf("refreshed token rejected: %v", err)
	}
}

func TestQRConfirmReturnsAuthOnHandshakeError(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	ctx := context.Background()
	phone := mustLogin(t, engine, "admin")

	code, err := engine.QRGenerate(ctx, "desk-1")
	if err != nil {
		t.Fatalf("QRGenerate failed: %v", err)
	}
	auth, err := engine.QRConfirm(ctx, code.UUID, "guessed", phone.Token)
	if !errors.Is(err, ErrHandshakeExpired) {
		t.Fatalf("expected ErrHandshakeExpired, got %v", err)
	}
	if auth == nil || auth.Identity.UserName != "admin" {
		t.Fatalf("expected the accepted identity alongside the error, got %+v", auth)
	}
}
