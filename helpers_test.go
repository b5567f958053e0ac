package adminauth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/adminauth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Captcha.Enabled = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	cfg := testConfig().Password
	h, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

type mockUserProvider struct {
	mu          sync.Mutex
	users       map[string]UserRecord
	roles       map[string][]Role
	permissions map[string][]string
	permCalls   map[string]int
}

func newMockUserProvider(t *testing.T) *mockUserProvider {
	t.Helper()

	hash, err := newTestHasher(t).Hash(testPassword)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	return &mockUserProvider{
		users: map[string]UserRecord{
			"1": {UserID: "1", UserName: "admin", NickName: "Admin", Phone: "13800000001", PasswordHash: hash},
			"2": {UserID: "2", UserName: "alice", NickName: "Alice", Phone: "13800000002", PasswordHash: hash},
			"3": {UserID: "3", UserName: "bob", Phone: "13800000003", PasswordHash: hash, Disabled: true},
		},
		roles: map[string][]Role{
			"1": {{RoleID: 1, RoleKey: "admin", RoleName: "Administrator"}},
			"2": {{RoleID: 2, RoleKey: "common", RoleName: "Common"}},
		},
		permissions: map[string][]string{
			"1": {"*:*:*"},
			"2": {"system:user:list", "system:user:query"},
		},
		permCalls: map[string]int{},
	}
}

func (p *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.UserName == identifier {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (p *mockUserProvider) GetUserByPhone(_ context.Context, phone string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return UserRecord{}, ErrUserNotFound
}

func (p *mockUserProvider) GetRoles(_ context.Context, userID string) ([]Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Role(nil), p.roles[userID]...), nil
}

func (p *mockUserProvider) GetPermissions(_ context.Context, userID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permCalls[userID]++
	return append([]string(nil), p.permissions[userID]...), nil
}

func (p *mockUserProvider) CreateUser(_ context.Context, in NewUser) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.UserName == in.UserName {
			return UserRecord{}, ErrAccountExists
		}
	}
	id := strconv.Itoa(len(p.users) + 1)
	u := UserRecord{UserID: id, UserName: in.UserName, NickName: in.NickName, PasswordHash: in.PasswordHash}
	p.users[id] = u
	for i, key := range in.RoleKeys {
		p.roles[id] = append(p.roles[id], Role{RoleID: int64(100 + i), RoleKey: key})
	}
	return u, nil
}

func (p *mockUserProvider) BindPhone(_ context.Context, userID, phone string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, u := range p.users {
		if u.Phone == phone && id != userID {
			return ErrPhoneBound
		}
	}
	u, ok := p.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Phone = phone
	p.users[userID] = u
	return nil
}

// readOnlyProvider hides the AccountStore methods of the wrapped provider.
type readOnlyProvider struct {
	UserProvider
}

func (p *mockUserProvider) setPermissions(userID string, perms ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permissions[userID] = perms
}

func (p *mockUserProvider) permissionCalls(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.permCalls[userID]
}

// testClock is a settable clock shared by the engine and the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu    sync.Mutex
	codes map[string]string
	sends int
}

func (s *recordingSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[phone] = code
	s.sends++
	return nil
}

func (s *recordingSender) last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

type engineOption func(*Builder)

func withClock(c *testClock) engineOption {
	return func(b *Builder) { b.WithClock(c.Now) }
}

func withSender(s CodeSender) engineOption {
	return func(b *Builder) { b.WithCodeSender(s) }
}

func withAuditSink(s AuditSink) engineOption {
	return func(b *Builder) { b.WithAuditSink(s) }
}

func newTestEngine(t *testing.T, cfg Config, up UserProvider, opts ...engineOption) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(up)
	for _, opt := range opts {
		opt(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func mustLogin(t *testing.T, e *Engine, username string) SessionToken {
	t.Helper()

	res, err := e.Login(context.Background(), LoginRequest{Username: username, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s failed: %v", username, err)
	}
	return res.Session
}

func ipContext(n int) context.Context {
	return WithClientIP(context.Background(), "198.51.100."+strconv.Itoa(n))
}
