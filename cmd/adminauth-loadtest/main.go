// Command adminauth-loadtest measures authenticate, permission check and
// refresh contention throughput against Redis (or an embedded miniredis).
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

type provider struct {
	users map[string]adminauth.UserRecord
}

func (p *provider) GetUserByIdentifier(_ context.Context, id string) (adminauth.UserRecord, error) {
	u, ok := p.users[id]
	if !ok {
		return adminauth.UserRecord{}, adminauth.ErrUserNotFound
	}
	return u, nil
}

func (p *provider) GetUserByID(ctx context.Context, id string) (adminauth.UserRecord, error) {
	return p.GetUserByIdentifier(ctx, "user-"+id)
}

func (p *provider) GetUserByPhone(context.Context, string) (adminauth.UserRecord, error) {
	return adminauth.UserRecord{}, adminauth.ErrUserNotFound
}

func (p *provider) GetRoles(context.Context, string) ([]adminauth.Role, error) {
	return []adminauth.Role{{RoleID: 2, RoleKey: "common"}}, nil
}

func (p *provider) GetPermissions(context.Context, string) ([]string, error) {
	return []string{"system:user:list", "system:user:query"}, nil
}

// clock lets the refresh phase jump every token into its refresh threshold.
type clock struct {
	offset atomic.Int64
}

func (c *clock) Now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to log in")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := adminauth.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("loadtest-signing-key-0123456789ab")
	cfg.Captcha.Enabled = false
	cfg.Security.EnableIssueThrottle = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1

	up := &provider{users: make(map[string]adminauth.UserRecord, *users)}
	clk := &clock{}
	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(up).
		WithClock(clk.Now).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	hash, err := hashPassword(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < *users; i++ {
		id := strconv.Itoa(i + 1)
		up.users["user-"+id] = adminauth.UserRecord{UserID: id, UserName: "user-" + id, PasswordHash: hash}
	}

	fmt.Printf("logging in %d users...\n", *users)
	startLogin := time.Now()
	tokens := make([]string, *users)
	for i := range tokens {
		res, err := engine.Login(ctx, adminauth.LoginRequest{Username: "user-" + strconv.Itoa(i+1), Password: loadPassword})
		if err != nil {
			fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = res.Session.Token
	}
	fmt.Printf("logged in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	permStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		return engine.RequirePermission(ctx, strconv.Itoa(r.Intn(len(tokens))+1), "system:user:list")
	})

	clk.offset.Store(int64(cfg.JWT.TTL - cfg.Refresh.Threshold + time.Minute))
	before := engine.MetricsSnapshot().Counters[adminauth.MetricRefreshIssued]
	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})
	minted := engine.MetricsSnapshot().Counters[adminauth.MetricRefreshIssued] - before

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("permission", permStats)
	printStats("refresh", refreshStats)
	fmt.Printf("refresh: minted=%d users=%d\n", minted, *users)
}

const loadPassword = "loadtest-password"

func hashPassword(cfg adminauth.Config) (string, error) {
	h, err := newHasher(cfg)
	if err != nil {
		return "", err
	}
	return h.Hash(loadPassword)
}

func runPhase(ops, concurrency int, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func newHasher(cfg adminauth.Config) (*password.Argon2, error) {
	return password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
}
