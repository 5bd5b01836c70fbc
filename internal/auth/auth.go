// Package auth supplies bearer tokens for API requests. Tokens come from the
// POSTS_TOKEN environment variable or from a credentials file written by
// `posts auth login`; acquiring and refreshing them is the identity provider's job.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/idilsaglam/posts/internal/store/jsonstore"
)

const (
	EnvToken     = "POSTS_TOKEN"
	credFileName = "credentials.json"

	SourceEnv  = "env"
	SourceFile = "file"
)

var (
	ErrNoToken      = errors.New("no token found")
	ErrTokenExpired = errors.New("token expired")
)

// TokenSource yields the bearer token for the next request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, mostly useful in tests.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional (JWT or server-provided)
}

// Expired reports whether the token has a known expiry before now.
func (ti TokenInfo) Expired(now time.Time) bool {
	return ti.ExpiresAt != nil && !now.Before(*ti.ExpiresAt)
}

// Store reads and writes the credentials file under Dir.
type Store struct {
	Dir    string
	Getenv func(string) string
	Now    func() time.Time
}

// NewStore returns a Store rooted at ~/.posts.
func NewStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home: %w", err)
	}
	return &Store{Dir: filepath.Join(home, ".posts")}, nil
}

func (s *Store) path() string { return filepath.Join(s.Dir, credFileName) }

func (s *Store) getenv(k string) string {
	if s.Getenv != nil {
		return s.Getenv(k)
	}
	return os.Getenv(k)
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Get returns the current token info, or (nil, nil) when not logged in.
func (s *Store) Get() (*TokenInfo, error) {
	// 1) env override
	if env := strings.TrimSpace(s.getenv(EnvToken)); env != "" {
		ti := &TokenInfo{Token: stripBearer(env), Source: SourceEnv}
		if c, err := Inspect(ti.Token); err == nil {
			ti.ExpiresAt = c.ExpiresAt
		}
		return ti, nil
	}

	// 2) file
	var ti TokenInfo
	if err := jsonstore.Load(s.path(), &ti); err != nil {
		if errors.Is(err, jsonstore.ErrNotFound) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	return &ti, nil
}

// Set saves token to the credentials file. When expires is nil the JWT exp
// claim is used if the token is a JWT.
func (s *Store) Set(token string, expires *time.Time) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if expires == nil {
		if c, err := Inspect(token); err == nil {
			expires = c.ExpiresAt
		}
	}
	ti := TokenInfo{
		Token:     token,
		Source:    SourceFile,
		CreatedAt: s.now(),
		ExpiresAt: expires,
	}
	if err := jsonstore.Save(s.path(), ti); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *Store) Delete() error {
	return jsonstore.Remove(s.path())
}

// Token implements TokenSource.
func (s *Store) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ti, err := s.Get()
	if err != nil {
		return "", err
	}
	if ti == nil || ti.Token == "" {
		return "", ErrNoToken
	}
	if ti.Expired(s.now()) {
		return "", ErrTokenExpired
	}
	return ti.Token, nil
}

// Claims is what the client can learn from a token without verifying it.
type Claims struct {
	Subject   string
	Issuer    string
	ExpiresAt *time.Time
	Raw       jwt.MapClaims
}

// Inspect decodes a JWT without checking its signature. Opaque tokens fail.
func Inspect(token string) (Claims, error) {
	if strings.Count(token, ".") != 2 {
		return Claims{}, errors.New("not a jwt")
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("parse jwt: %w", err)
	}
	c := Claims{Raw: mc}
	c.Subject, _ = mc["sub"].(string)
	c.Issuer, _ = mc["iss"].(string)
	if exp, ok := mc["exp"].(float64); ok {
		t := time.Unix(int64(exp), 0)
		c.ExpiresAt = &t
	}
	return c, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
