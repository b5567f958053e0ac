package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestAllowEnforcesWindowBudget(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := New(rdb, Config{Enabled: true, MaxPerIP: 2, Window: time.Minute})
	for i := 0; i < 2; i++ {
		if err := l.Allow(ctx, "captcha", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := l.Allow(ctx, "captcha", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Allow(ctx, "qr", "10.0.0.1"); err != nil {
		t.Fatalf("actions must be counted separately: %v", err)
	}
	if ttl := mr.TTL("ari:captcha:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("expected window ttl, got %v", ttl)
	}

	mr.FastForward(time.Minute)
	if err := l.Allow(ctx, "captcha", "10.0.0.1"); err != nil {
		t.Fatalf("expected fresh window, got %v", err)
	}
}

func TestAllowSkipsWithoutIPOrWhenDisabled(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	l := New(rdb, Config{Enabled: true, MaxPerIP: 0, Window: time.Minute})
	if err := l.Allow(ctx, "captcha", ""); err != nil {
		t.Fatalf("empty ip must not be throttled: %v", err)
	}

	off := New(rdb, Config{Enabled: false, MaxPerIP: 0, Window: time.Minute})
	if err := off.Allow(ctx, "captcha", "10.0.0.2"); err != nil {
		t.Fatalf("disabled limiter must allow: %v", err)
	}

	var nilLimiter *Limiter
	if err := nilLimiter.Allow(ctx, "captcha", "10.0.0.2"); err != nil {
		t.Fatalf("nil limiter must allow: %v", err)
	}
}
