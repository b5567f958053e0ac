package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHSManager(t *testing.T, ttl time.Duration, now func() time.Time) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		TTL:           ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    testSecret,
		Issuer:        "adminauth",
		Now:           now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}

func TestIssueExpiryIsIssuedAtPlusTTL(t *testing.T) {
	mgr := newHSManager(t, 30*time.Minute, nil)

	token, claims, err := mgr.Issue(Subject{UserID: "7", UserName: "alice", RoleIDs: []int64{2}, RoleKeys: []string{"common"}})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := claims.ExpireTime().Sub(claims.IssuedTime()); got != 30*time.Minute {
		t.Fatalf("expected exp-iat == ttl, got %v", got)
	}
	if claims.ID == "" {
		t.Fatal("expected unique token id")
	}

	parsed, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id := parsed.Identity()
	if id.UserID != "7" || id.UserName != "alice" || len(id.RoleIDs) != 1 || id.RoleKeys[0] != "common" {
		t.Fatalf("unexpected identity %+v", id)
	}
	if !parsed.ExpireTime().Equal(claims.ExpireTime()) {
		t.Fatal("expiry changed across round trip")
	}
}

func TestIssueProducesDistinctTokenIDs(t *testing.T) {
	mgr := newHSManager(t, time.Minute, nil)
	_, a, err := mgr.Issue(Subject{UserID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	_, b, err := mgr.Issue(Subject{UserID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct jti values")
	}
}

func TestParseClassifiesFailures(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	mgr := newHSManager(t, time.Minute, clock)

	token, _, err := mgr.Issue(Subject{UserID: "1"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := mgr.Parse("garbage"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
	if _, err := mgr.Parse(""); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed for empty token, got %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := mgr.Parse(tampered); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid, got %v", err)
	}

	other, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("ffffffffffffffffffffffffffffffff"),
		Issuer:        "adminauth",
		Now:           clock,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Parse(token); !errors.Is(err, ErrTokenSignatureInvalid) {
		t.Fatalf("expected ErrTokenSignatureInvalid for foreign key, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := mgr.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		{TTL: time.Minute, SigningMethod: "rs512", PrivateKey: testSecret},
		{TTL: time.Minute, SigningMethod: MethodEd25519},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: testSecret, Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
