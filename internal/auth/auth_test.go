package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newStore(t *testing.T, env map[string]string, now time.Time) *Store {
	t.Helper()
	return &Store{
		Dir:    t.TempDir(),
		Getenv: func(k string) string { return env[k] },
		Now:    func() time.Time { return now },
	}
}

func TestStoreNotLoggedIn(t *testing.T) {
	s := newStore(t, nil, time.Now())
	ti, err := s.Get()
	if err != nil || ti != nil {
		t.Fatalf("expected no token, got %+v, %v", ti, err)
	}
	if _, err := s.Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestStoreEnvOverride(t *testing.T) {
	s := newStore(t, map[string]string{EnvToken: "Bearer abc"}, time.Now())
	if err := s.Set("file-token", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	ti, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ti.Source != SourceEnv || ti.Token != "abc" {
		t.Fatalf("expected env token, got %+v", ti)
	}
}

func TestStoreSetGetDelete(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStore(t, nil, now)
	if err := s.Set("  bearer tok  ", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	tok, err := s.Token(context.Background())
	if err != nil || tok != "tok" {
		t.Fatalf("expected tok, got %q, %v", tok, err)
	}
	ti, _ := s.Get()
	if ti.Source != SourceFile || !ti.CreatedAt.Equal(now) || ti.ExpiresAt != nil {
		t.Fatalf("unexpected info %+v", ti)
	}
	if err := s.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ti, _ := s.Get(); ti != nil {
		t.Fatalf("expected logged out, got %+v", ti)
	}
}

func TestStoreSetRejectsEmpty(t *testing.T) {
	s := newStore(t, nil, time.Now())
	if err := s.Set("Bearer   ", nil); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestStoreUsesJWTExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(-time.Minute)
	tok := signed(t, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()})

	s := newStore(t, nil, now)
	if err := s.Set(tok, nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	ti, _ := s.Get()
	if ti.ExpiresAt == nil || !ti.ExpiresAt.Equal(time.Unix(exp.Unix(), 0)) {
		t.Fatalf("expected expiry from jwt, got %+v", ti.ExpiresAt)
	}
	if _, err := s.Token(context.Background()); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestStoreTokenHonoursContext(t *testing.T) {
	s := newStore(t, map[string]string{EnvToken: "abc"}, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Token(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	tok := signed(t, jwt.MapClaims{"sub": "user-1", "iss": "https://tenant/", "exp": int64(1700000000)})
	c, err := Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if c.Subject != "user-1" || c.Issuer != "https://tenant/" {
		t.Fatalf("unexpected claims %+v", c)
	}
	if c.ExpiresAt == nil || c.ExpiresAt.Unix() != 1700000000 {
		t.Fatalf("unexpected expiry %v", c.ExpiresAt)
	}
	if _, err := Inspect("opaque"); err == nil {
		t.Fatalf("expected error for opaque token")
	}
}

func TestStaticToken(t *testing.T) {
	if tok, err := StaticToken("x").Token(context.Background()); err != nil || tok != "x" {
		t.Fatalf("unexpected %q, %v", tok, err)
	}
	if _, err := StaticToken("").Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}
