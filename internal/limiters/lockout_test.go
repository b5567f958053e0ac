package limiters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLockout(t *testing.T, threshold int, duration time.Duration) (*LockoutLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLockoutLimiter(rdb, LockoutConfig{
		Enabled:   true,
		Threshold: threshold,
		Duration:  duration,
	}), mr
}

func TestLockoutLocksAtThresholdForExactDuration(t *testing.T) {
	ctx := context.Background()
	l, mr := newLockout(t, 5, 10*time.Minute)

	for i := 1; i < 5; i++ {
		res, err := l.RecordFailure(ctx, "alice")
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if res.Locked || res.Count != i {
			t.Fatalf("attempt %d: unexpected result %+v", i, res)
		}
	}

	res, err := l.RecordFailure(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Locked || !res.Tripped || res.Remaining != 10*time.Minute {
		t.Fatalf("expected lock for 10m, got %+v", res)
	}

	mr.FastForward(10*time.Minute - time.Second)
	locked, remaining, err := l.IsLocked(ctx, "alice")
	if err != nil || !locked || remaining != time.Second {
		t.Fatalf("expected 1s remaining, got locked=%v remaining=%v err=%v", locked, remaining, err)
	}

	mr.FastForward(time.Second)
	locked, _, err = l.IsLocked(ctx, "alice")
	if err != nil || locked {
		t.Fatalf("expected lock to expire, got locked=%v err=%v", locked, err)
	}
}

func TestLockoutFailureDuringLockDoesNotChangeLock(t *testing.T) {
	ctx := context.Background()
	l, mr := newLockout(t, 2, time.Minute)

	_, _ = l.RecordFailure(ctx, "bob")
	_, _ = l.RecordFailure(ctx, "bob")

	mr.FastForward(20 * time.Second)
	res, err := l.RecordFailure(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Locked || res.Tripped || res.Remaining != 40*time.Second {
		t.Fatalf("lock must keep its original expiry, got %+v", res)
	}
	if count, _ := l.FailureCount(ctx, "bob"); count != 0 {
		t.Fatalf("counter must not grow while locked, got %d", count)
	}
}

func TestLockoutResetClearsCounterAndLock(t *testing.T) {
	ctx := context.Background()
	l, _ := newLockout(t, 3, time.Minute)

	_, _ = l.RecordFailure(ctx, "carol")
	_, _ = l.RecordFailure(ctx, "carol")
	if err := l.Reset(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	if count, _ := l.FailureCount(ctx, "carol"); count != 0 {
		t.Fatalf("expected counter reset, got %d", count)
	}

	for i := 0; i < 3; i++ {
		_, _ = l.RecordFailure(ctx, "carol")
	}
	if locked, _, _ := l.IsLocked(ctx, "carol"); !locked {
		t.Fatal("expected lock")
	}
	if err := l.Reset(ctx, "carol"); err != nil {
		t.Fatal(err)
	}
	if locked, _, _ := l.IsLocked(ctx, "carol"); locked {
		t.Fatal("expected unlock after reset")
	}
}

func TestLockoutClearFailuresKeepsLock(t *testing.T) {
	ctx := context.Background()
	l, _ := newLockout(t, 3, time.Minute)

	_, _ = l.RecordFailure(ctx, "dave")
	if err := l.ClearFailures(ctx, "dave"); err != nil {
		t.Fatal(err)
	}
	if count, _ := l.FailureCount(ctx, "dave"); count != 0 {
		t.Fatalf("expected counter cleared, got %d", count)
	}

	// A login that passed IsLocked before another request tripped the lock.
	locked, _, err := l.IsLocked(ctx, "dave")
	if err != nil || locked {
		t.Fatalf("expected unlocked, got %v %v", locked, err)
	}
	for i := 0; i < 3; i++ {
		_, _ = l.RecordFailure(ctx, "dave")
	}
	if err := l.ClearFailures(ctx, "dave"); err != nil {
		t.Fatal(err)
	}
	if locked, remaining, _ := l.IsLocked(ctx, "dave"); !locked || remaining <= 0 {
		t.Fatalf("expected the concurrent lock to survive, got %v %v", locked, remaining)
	}
}

func TestLockoutConcurrentFailuresLockOnce(t *testing.T) {
	ctx := context.Background()
	l, _ := newLockout(t, 5, time.Minute)

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	results := make(chan FailureResult, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			res, err := l.RecordFailure(ctx, "mallory")
			if err != nil {
				t.Errorf("RecordFailure: %v", err)
				return
			}
			results <- res
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	reachedThreshold := 0
	for res := range results {
		if res.Tripped {
			reachedThreshold++
		}
		if res.Remaining > time.Minute {
			t.Fatalf("lock extended past its duration: %v", res.Remaining)
		}
	}
	if reachedThreshold != 1 {
		t.Fatalf("expected exactly one attempt to trip the lock, got %d", reachedThreshold)
	}
}

func TestLockoutDisabledIsNoop(t *testing.T) {
	ctx := context.Background()
	var nilLimiter *LockoutLimiter
	if res, err := nilLimiter.RecordFailure(ctx, "x"); err != nil || res.Locked {
		t.Fatalf("nil limiter must be a no-op, got %+v %v", res, err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	l := NewLockoutLimiter(rdb, LockoutConfig{Enabled: false, Threshold: 1, Duration: time.Minute})
	for i := 0; i < 3; i++ {
		_, _ = l.RecordFailure(ctx, "x")
	}
	if locked, _, _ := l.IsLocked(ctx, "x"); locked {
		t.Fatal("disabled limiter must never lock")
	}
}
