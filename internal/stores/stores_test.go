package stores

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOneTimeCodeWrongThenCorrectBothFail(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewOneTimeCodeStore(rdb, "cap")

	if err := s.Issue(ctx, "u1", "AbCd", time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := s.Consume(ctx, "u1", "zzzz"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if err := s.Consume(ctx, "u1", "AbCd"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected not found after first attempt, got %v", err)
	}
}

func TestOneTimeCodeCaseInsensitiveAndSingleUse(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewOneTimeCodeStore(rdb, "cap")

	if err := s.Issue(ctx, "u2", "AbCd", time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := s.Issue(ctx, "u2", "other", time.Minute); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("expected ErrCodeExists, got %v", err)
	}
	if err := s.Consume(ctx, "u2", "abcd"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := s.Consume(ctx, "u2", "abcd"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected single use, got %v", err)
	}
}

func TestOneTimeCodeExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewOneTimeCodeStore(rdb, "sms")

	if err := s.Replace(ctx, "13800000000", "123456", time.Minute); err != nil {
		t.Fatalf("replace: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := s.Consume(ctx, "13800000000", "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected expired code, got %v", err)
	}
}

func TestOneTimeCodeConcurrentConsumeSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewOneTimeCodeStore(rdb, "cap")
	if err := s.Issue(ctx, "race", "k7m2", time.Minute); err != nil {
		t.Fatalf("issue: %v", err)
	}

	var ok atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.Consume(ctx, "race", "k7m2") == nil {
				ok.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok.Load() != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", ok.Load())
	}
}

func TestPermissionCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewPermissionCache(rdb, "")

	if _, err := c.Get(ctx, "7"); !errors.Is(err, ErrPermissionCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	if err := c.Set(ctx, "7", permission.NewSet(), time.Hour); err != nil {
		t.Fatalf("set empty: %v", err)
	}
	got, err := c.Get(ctx, "7")
	if err != nil {
		t.Fatalf("empty set must be a hit: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty set, got %v", got.List())
	}

	if err := c.Set(ctx, "7", permission.NewSet("system:user:list"), time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = c.Get(ctx, "7")
	if err != nil || !got.Has("system:user:list") {
		t.Fatalf("unexpected cached set %v err=%v", got.List(), err)
	}

	if err := c.Remove(ctx, "7"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := c.Get(ctx, "7"); !errors.Is(err, ErrPermissionCacheMiss) {
		t.Fatalf("expected miss after remove, got %v", err)
	}

	mr.Set("perm:8", "garbage")
	if _, err := c.Get(ctx, "8"); !errors.Is(err, ErrPermissionCacheMiss) {
		t.Fatalf("corrupt entry must read as miss, got %v", err)
	}
	if mr.Exists("perm:8") {
		t.Fatal("corrupt entry should be deleted")
	}
}

func TestQRHandshakeLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewQRLoginStore(rdb, "")

	if err := s.Create(ctx, "h1", "st", "dev", 2*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, "h1", "st2", "dev", 2*time.Minute); !errors.Is(err, ErrQRHandshakeExists) {
		t.Fatalf("expected exists, got %v", err)
	}

	res, err := s.Poll(ctx, "h1")
	if err != nil || res.Status != QRStatusPending {
		t.Fatalf("expected pending, got %+v err=%v", res, err)
	}

	if err := s.Confirm(ctx, "h1", "wrong", "tok", "1"); !errors.Is(err, ErrQRHandshakeExpired) {
		t.Fatalf("state mismatch must read as expired, got %v", err)
	}

	mr.FastForward(time.Minute)
	if err := s.Confirm(ctx, "h1", "st", "tok", "1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if ttl := mr.TTL("qrl:h1"); ttl != time.Minute {
		t.Fatalf("confirm must keep the remaining ttl, got %v", ttl)
	}
	if err := s.Confirm(ctx, "h1", "st", "tok2", "2"); !errors.Is(err, ErrQRHandshakeConsumed) {
		t.Fatalf("expected consumed, got %v", err)
	}

	res, err = s.Poll(ctx, "h1")
	if err != nil || res.Status != QRStatusSuccess || res.Token != "tok" || res.UserID != "1" {
		t.Fatalf("expected success with token, got %+v err=%v", res, err)
	}
	res, err = s.Poll(ctx, "h1")
	if err != nil || res.Status != QRStatusAbsent {
		t.Fatalf("expected absent after consume, got %+v err=%v", res, err)
	}
}

func TestQRHandshakeExpires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	s := NewQRLoginStore(rdb, "")

	if err := s.Create(ctx, "h2", "st", "dev", 2*time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	mr.FastForward(2*time.Minute + time.Second)

	res, err := s.Poll(ctx, "h2")
	if err != nil || res.Status != QRStatusAbsent {
		t.Fatalf("expected absent after ttl, got %+v err=%v", res, err)
	}
	if err := s.Confirm(ctx, "h2", "st", "tok", "1"); !errors.Is(err, ErrQRHandshakeExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestQRConcurrentPollHandsOutTokenOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	s := NewQRLoginStore(rdb, "")
	if err := s.Create(ctx, "h3", "st", "dev", time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Confirm(ctx, "h3", "st", "tok", "1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	var got atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := s.Poll(ctx, "h3")
			if err == nil && res.Status == QRStatusSuccess {
				got.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got.Load() != 1 {
		t.Fatalf("token must be delivered once, got %d", got.Load())
	}
}
