// Package api is the REST client for the remote item collection.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/auth"
	"github.com/idilsaglam/posts/internal/config"
	"github.com/idilsaglam/posts/internal/model"
)

const maxErrorBody = 512

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

// Client talks to <endpoint>/<resource>.
type Client struct {
	base     *url.URL
	resource string
	tokens   auth.TokenSource
	http     *http.Client
	log      *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

func WithLogger(l *log.Logger) Option { return func(c *Client) { c.log = l } }

// New builds a client from the endpoint and resource of cfg.
func New(cfg config.Config, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.APIEndpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:     base,
		resource: strings.Trim(cfg.Resource, "/"),
		tokens:   tokens,
		http:     &http.Client{Timeout: timeout},
		log:      log.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type listEnvelope struct {
	Items []model.Item `json:"items"`
}

type itemEnvelope struct {
	Item *model.Item `json:"item"`
}

// List fetches the whole collection in server order.
func (c *Client) List(ctx context.Context) ([]model.Item, error) {
	body, err := c.do(ctx, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []model.Item
		if err := sonic.ConfigStd.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return items, nil
	}
	var env listEnvelope
	if err := sonic.ConfigStd.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if env.Items == nil {
		env.Items = []model.Item{}
	}
	return env.Items, nil
}

// Create posts a new item and returns it with its server-assigned id.
func (c *Client) Create(ctx context.Context, req model.CreateRequest) (model.Item, error) {
	body, err := c.do(ctx, http.MethodPost, "", req)
	if err != nil {
		return model.Item{}, err
	}
	var env itemEnvelope
	if err := sonic.ConfigStd.Unmarshal(body, &env); err != nil {
		return model.Item{}, fmt.Errorf("decode item: %w", err)
	}
	item := env.Item
	if item == nil {
		item = &model.Item{}
		if err := sonic.ConfigStd.Unmarshal(body, item); err != nil {
			return model.Item{}, fmt.Errorf("decode item: %w", err)
		}
	}
	if item.ID == "" {
		return model.Item{}, fmt.Errorf("decode item: missing id")
	}
	return *item, nil
}

// Update replaces the mutable fields of item id. The response body is ignored.
func (c *Client) Update(ctx context.Context, id string, req model.UpdateRequest) error {
	_, err := c.do(ctx, http.MethodPatch, id, req)
	return err
}

// Delete removes item id. The response body is ignored.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, id, nil)
	return err
}

func (c *Client) url(id string) string {
	if id == "" {
		return c.base.JoinPath(c.resource).String()
	}
	return c.base.JoinPath(c.resource, id).String()
}

func (c *Client) do(ctx context.Context, method, id string, in any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}

	var body io.Reader
	if in != nil {
		b, err := sonic.ConfigStd.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := c.url(id)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.log.WithFields(log.Fields{
		"method":   method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: req.URL.Path, Code: resp.StatusCode, Body: errorBody(out)}
	}
	return out, nil
}

// errorBody trims a failed response body to maxErrorBody bytes without
// splitting a rune.
func errorBody(b []byte) string {
	msg := strings.TrimSpace(string(b))
	if len(msg) <= maxErrorBody {
		return msg
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
