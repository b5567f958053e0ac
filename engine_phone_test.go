package adminauth

import (
	"context"
	"errors"
	"testing"
)

func smsConfig() Config {
	cfg := testConfig()
	cfg.SMS.Enabled = true
	return cfg
}

func TestPhoneLogin(t *testing.T) {
	sender := &recordingSender{}
	engine, _ := newTestEngine(t, smsConfig(), newMockUserProvider(t), withSender(sender))
	ctx := context.Background()

	if err := engine.SendPhoneCode(ctx, "13800000002"); err != nil {
		t.Fatalf("SendPhoneCode failed: %v", err)
	}
	code := sender.last("13800000002")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	res, err := engine.PhoneLogin(ctx, "13800000002", code)
	if err != nil {
		t.Fatalf("PhoneLogin failed: %v", err)
	}
	if res.Session.UserName != "alice" {
		t.Fatalf("expected alice, got %+v", res.Session)
	}

	if _, err := engine.PhoneLogin(ctx, "13800000002", code); !errors.Is(err, ErrPhoneCodeInvalid) {
		t.Fatalf("expected reused code to fail, got %v", err)
	}
}

func TestPhoneLoginNewCodeReplacesOld(t *testing.T) {
	sender := &recordingSender{}
	engine, _ := newTestEngine(t, smsConfig(), newMockUserProvider(t), withSender(sender))
	ctx := context.Background()

	_ = engine.SendPhoneCode(ctx, "13800000002")
	first := sender.last("13800000002")
	_ = engine.SendPhoneCode(ctx, "13800000002")
	second := sender.last("13800000002")

	if first != second {
		if _, err := engine.PhoneLogin(ctx, "13800000002", first); !errors.Is(err, ErrPhoneCodeInvalid) {
			t.Fatalf("expected replaced code to fail, got %v", err)
		}
	}
}

func TestPhoneLoginHonorsLockout(t *testing.T) {
	sender := &recordingSender{}
	engine, _ := newTestEngine(t, smsConfig(), newMockUserProvider(t), withSender(sender))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = engine.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
	}
	_ = engine.SendPhoneCode(ctx, "13800000002")

	_, err := engine.PhoneLogin(ctx, "13800000002", sender.last("13800000002"))
	if !errors.Is(err, ErrUserLocked) {
		t.Fatalf("expected ErrUserLocked, got %v", err)
	}
}

func TestSendPhoneCodeUnknownNumberSendsNothing(t *testing.T) {
	sender := &recordingSender{}
	engine, _ := newTestEngine(t, smsConfig(), newMockUserProvider(t), withSender(sender))

	if err := engine.SendPhoneCode(context.Background(), "19900000000"); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if sender.sends != 0 {
		t.Fatalf("expected no SMS sent, got %d", sender.sends)
	}
}

func TestPhoneLoginDisabled(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))

	if err := engine.SendPhoneCode(context.Background(), "13800000002"); !errors.Is(err, ErrSMSDisabled) {
		t.Fatalf("expected ErrSMSDisabled, got %v", err)
	}
	if _, err := engine.PhoneLogin(context.Background(), "13800000002", "123456"); !errors.Is(err, ErrSMSDisabled) {
		t.Fatalf("expected ErrSMSDisabled, got %v", err)
	}
}
