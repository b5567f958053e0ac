package adminauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"abc", "abc", true},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := BearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPipelineDefaultStages(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	session := mustLogin(t, engine, "alice")

	req, err := NewPipeline(engine).Run(context.Background(), "Bearer "+session.Token)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if req.Token != session.Token || req.Auth == nil || req.Auth.Identity.UserID != "2" {
		t.Fatalf("unexpected request state %+v", req)
	}

	if _, err := NewPipeline(engine).Run(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPipelinePermissionStage(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	session := mustLogin(t, engine, "alice")
	ctx := context.Background()

	allowed := NewPipeline(engine, BearerStage(), AuthenticateStage(), PermissionStage("system:user:list"))
	if _, err := allowed.Run(ctx, "Bearer "+session.Token); err != nil {
		t.Fatalf("expected permission granted, got %v", err)
	}

	denied := NewPipeline(engine, BearerStage(), AuthenticateStage(), PermissionStage("system:role:remove"))
	if _, err := denied.Run(ctx, "Bearer "+session.Token); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	unordered := NewPipeline(engine, BearerStage(), PermissionStage("system:user:list"))
	if _, err := unordered.Run(ctx, "Bearer "+session.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without authentication, got %v", err)
	}
}

func TestPipelineKeepsRefreshedTokenOnLaterFailure(t *testing.T) {
	cfg := testConfig()
	clock := newTestClock()
	engine, _ := newTestEngine(t, cfg, newMockUserProvider(t), withClock(clock))
	session := mustLogin(t, engine, "alice")
	clock.Advance(cfg.JWT.TTL - time.Minute)

	p := NewPipeline(engine, BearerStage(), AuthenticateStage(), PermissionStage("system:role:remove"))
	req, err := p.Run(context.Background(), "Bearer "+session.Token)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if req.Auth == nil || req.Auth.RefreshedToken == "" {
		t.Fatal("expected refreshed token to survive the permission failure")
	}
}

func TestPipelineCustomStage(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig(), newMockUserProvider(t))
	session := mustLogin(t, engine, "alice")
	blocked := errors.New("blocked")

	p := NewPipeline(engine, BearerStage(), GuardStageFunc(func(context.Context, *Engine, *GuardRequest) error {
		return blocked
	}), AuthenticateStage())
	req, err := p.Run(context.Background(), "Bearer "+session.Token)
	if !errors.Is(err, blocked) {
		t.Fatalf("expected custom stage error, got %v", err)
	}
	if req.Auth != nil {
		t.Fatal("expected later stages skipped")
	}
}
