// Package config holds the static endpoint and identity settings of the client.
// A Config is built once at startup and passed by value; nothing here is global.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	EnvAPIEndpoint     = "POSTS_API_ENDPOINT"
	EnvResource        = "POSTS_RESOURCE"
	EnvAuthDomain      = "POSTS_AUTH_DOMAIN"
	EnvAuthClientID    = "POSTS_AUTH_CLIENT_ID"
	EnvAuthCallbackURL = "POSTS_AUTH_CALLBACK_URL"
	EnvVotePolicy      = "POSTS_VOTE_POLICY"
	EnvTimeout         = "POSTS_TIMEOUT"

	VoteIncrement = "increment"
	VoteEcho      = "echo"

	fileName = "config.toml"
)

// Auth are the identity provider parameters.
type Auth struct {
	Domain      string
	ClientID    string
	CallbackURL string
}

// Config is the immutable client configuration.
type Config struct {
	APIEndpoint string
	Resource    string
	Auth        Auth
	VotePolicy  string
	Timeout     time.Duration
}

// Default returns the settings of the deployed backend.
func Default() Config {
	return Config{
		APIEndpoint: "https://68tx2jwbxb.execute-api.us-east-1.amazonaws.com/dev",
		Resource:    "todos",
		Auth: Auth{
			Domain:      "dev-epvki6b2ihs1xfr7.us.auth0.com",
			ClientID:    "RmSmFo2Sny15nIl5HQpg2qVUUF8XdQPG",
			CallbackURL: "http://localhost:3000/callback",
		},
		VotePolicy: VoteIncrement,
		Timeout:    10 * time.Second,
	}
}

type fileConfig struct {
	APIEndpoint string `toml:"api_endpoint"`
	Resource    string `toml:"resource"`
	VotePolicy  string `toml:"vote_policy"`
	Timeout     string `toml:"timeout"`
	Auth        struct {
		Domain      string `toml:"domain"`
		ClientID    string `toml:"client_id"`
		CallbackURL string `toml:"callback_url"`
	} `toml:"auth"`
}

// DefaultPath is ~/.posts/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".posts", fileName), nil
}

// Load overlays the TOML file at path (if any) and the environment on the defaults.
// An explicit path must exist; the default path may be missing.
func Load(path string) (Config, error) {
	return load(path, path != "", os.Getenv)
}

// LoadDefault behaves like Load for DefaultPath.
func LoadDefault() (Config, error) {
	p, err := DefaultPath()
	if err != nil {
		return Config{}, err
	}
	return load(p, false, os.Getenv)
}

// LoadDotEnv sets variables from the given .env files without overriding the
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func load(path string, required bool, getenv func(string) string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := applyFile(&cfg, path, required); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string, required bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}
	if meta.IsDefined("api_endpoint") {
		cfg.APIEndpoint = strings.TrimSpace(raw.APIEndpoint)
	}
	if meta.IsDefined("resource") {
		cfg.Resource = strings.TrimSpace(raw.Resource)
	}
	if meta.IsDefined("vote_policy") {
		cfg.VotePolicy = strings.ToLower(strings.TrimSpace(raw.VotePolicy))
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("auth", "domain") {
		cfg.Auth.Domain = strings.TrimSpace(raw.Auth.Domain)
	}
	if meta.IsDefined("auth", "client_id") {
		cfg.Auth.ClientID = strings.TrimSpace(raw.Auth.ClientID)
	}
	if meta.IsDefined("auth", "callback_url") {
		cfg.Auth.CallbackURL = strings.TrimSpace(raw.Auth.CallbackURL)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.APIEndpoint, EnvAPIEndpoint)
	set(&cfg.Resource, EnvResource)
	set(&cfg.Auth.Domain, EnvAuthDomain)
	set(&cfg.Auth.ClientID, EnvAuthClientID)
	set(&cfg.Auth.CallbackURL, EnvAuthCallbackURL)
	if v := strings.TrimSpace(getenv(EnvVotePolicy)); v != "" {
		cfg.VotePolicy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}

// Validate checks the endpoint, resource, vote policy and timeout.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIEndpoint)
	if err != nil {
		return fmt.Errorf("invalid api endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid api endpoint %q: want http(s)://host", c.APIEndpoint)
	}
	if strings.Trim(c.Resource, "/") == "" {
		return errors.New("resource must not be empty")
	}
	switch c.VotePolicy {
	case VoteIncrement, VoteEcho:
	default:
		return fmt.Errorf("unknown vote policy %q (want %q or %q)", c.VotePolicy, VoteIncrement, VoteEcho)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be greater than zero")
	}
	return nil
}

// AuthorizeURL builds the implicit-flow login URL of the identity provider.
func (a Auth) AuthorizeURL(nonce string) string {
	q := url.Values{}
	q.Set("response_type", "token id_token")
	q.Set("client_id", a.ClientID)
	q.Set("redirect_uri", a.CallbackURL)
	q.Set("scope", "openid")
	q.Set("nonce", nonce)
	return (&url.URL{Scheme: "https", Host: a.Domain, Path: "/authorize", RawQuery: q.Encode()}).String()
}

// Issuer is the token issuer for the configured domain.
func (a Auth) Issuer() string { return "https://" + a.Domain + "/" }

// JWKSURL is where the provider publishes its signing keys.
func (a Auth) JWKSURL() string { return "https://" + a.Domain + "/.well-known/jwks.json" }
