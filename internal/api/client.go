package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/posscan/internal/clock"
)

// RefreshLeeway is how close to expiry an access token is refreshed
// before it is sent.
const RefreshLeeway = 30 * time.Second

// DefaultTimeout bounds each HTTP round trip.
const DefaultTimeout = 15 * time.Second

// Client talks to the backend. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	clock   clock.Clock
	logger  *slog.Logger

	refreshGroup singleflight.Group

	mu      sync.Mutex
	loaded  bool
	access  string
	refresh string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTokenStore persists tokens. Default: MemoryTokens.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithClock sets the clock used for token expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for baseURL, e.g. "https://shop.example/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		store:   &MemoryTokens{},
		clock:   clock.System{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokens stores a new token pair.
func (c *Client) SetTokens(ctx context.Context, access, refresh string) error {
	c.mu.Lock()
	c.access, c.refresh, c.loaded = access, refresh, true
	c.mu.Unlock()
	if err := c.store.SaveTokens(ctx, access, refresh); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

// LoggedIn reports whether a refresh token is available.
func (c *Client) LoggedIn(ctx context.Context) (bool, error) {
	_, refresh, err := c.tokens(ctx)
	if err != nil {
		return false, err
	}
	return refresh != "", nil
}

// Do sends an authenticated request. body, if non-nil, is sent as JSON; out,
// if non-nil, receives the decoded response body.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, true)
}

// DoAnonymous sends a request without a bearer token and without the
// refresh-and-retry step.
func (c *Client) DoAnonymous(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, false)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
	}

	if !auth {
		status, data, err := c.send(ctx, method, path, payload, "")
		if err != nil {
			return err
		}
		return decodeResponse(method, path, status, data, out)
	}

	token, err := c.freshAccessToken(ctx)
	if err != nil {
		return err
	}

	status, data, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.logger.Debug("access token rejected, refreshing", "method", method, "path", path)
		token, err = c.refreshAfter(ctx, token)
		if err != nil {
			return err
		}
		status, data, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
	}

	return decodeResponse(method, path, status, data, out)
}

// freshAccessToken returns the access token, refreshing first when it
// expires within RefreshLeeway.
func (c *Client) freshAccessToken(ctx context.Context) (string, error) {
	access, refresh, err := c.tokens(ctx)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return access, nil
	}
	exp, ok := tokenExpiry(access)
	if access != "" && (!ok || exp.Sub(c.clock.Now()) > RefreshLeeway) {
		return access, nil
	}
	c.logger.Debug("access token expiring, refreshing", "expires", exp)
	return c.refreshAfter(ctx, access)
}

// refreshAfter exchanges the refresh token, unless another caller already
// replaced stale since it was read. Concurrent callers share one request.
//
// The refresh itself is detached from ctx: a caller that gives up returns
// ctx.Err() while the flight completes for everyone else.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		c.mu.Lock()
		current := c.access
		c.mu.Unlock()
		if current != stale && current != "" {
			return current, nil
		}
		return c.refreshTokens(flightCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight token refresh")
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

type refreshResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"data"`
}

func (c *Client) refreshTokens(ctx context.Context) (string, error) {
	const path = "/auth/refresh"

	_, refresh, err := c.tokens(ctx)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", c.expire(ctx, nil, "no refresh token")
	}

	payload, err := json.Marshal(map[string]string{"refreshToken": refresh})
	if err != nil {
		return "", fmt.Errorf("encode refresh body: %w", err)
	}

	status, data, err := c.send(ctx, http.MethodPost, path, payload, "")
	if err != nil {
		// Network trouble is not a verdict on the session: keep the tokens.
		return "", err
	}

	var resp refreshResponse
	if status >= 500 {
		// A backend outage is not a verdict on the session either.
		_ = json.Unmarshal(data, &resp)
		return "", &APIError{Code: ErrCodeStatus, Method: http.MethodPost, Path: path, Status: status, Message: resp.Message}
	}
	if err := json.Unmarshal(data, &resp); err != nil || status/100 != 2 || resp.Status != "success" || resp.Data == nil || resp.Data.AccessToken == "" {
		msg := resp.Message
		if msg == "" {
			msg = fmt.Sprintf("refresh rejected with HTTP %d", status)
		}
		return "", c.expire(ctx, err, msg)
	}

	if err := c.SetTokens(ctx, resp.Data.AccessToken, resp.Data.RefreshToken); err != nil {
		return "", err
	}
	c.logger.Info("access token refreshed")
	return resp.Data.AccessToken, nil
}

// expire clears the stored tokens and returns a session-expired error.
func (c *Client) expire(ctx context.Context, cause error, msg string) error {
	c.mu.Lock()
	c.access, c.refresh, c.loaded = "", "", true
	c.mu.Unlock()
	if err := c.store.ClearTokens(ctx); err != nil {
		c.logger.Error("failed to clear tokens", "error", err)
	}
	c.logger.Warn("session expired", "reason", msg)
	return &APIError{
		Code:    ErrCodeSessionExpired,
		Method:  http.MethodPost,
		Path:    "/auth/refresh",
		Message: msg,
		Err:     cause,
	}
}

func (c *Client) tokens(ctx context.Context) (access, refresh string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.access, c.refresh, err = c.store.LoadTokens(ctx)
		if err != nil {
			return "", "", fmt.Errorf("load tokens: %w", err)
		}
		c.loaded = true
	}
	return c.access, c.refresh, nil
}

// send performs one round trip and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	return resp.StatusCode, data, nil
}

// envelope is the part of every response the client inspects.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func decodeResponse(method, path string, status int, data []byte, out any) error {
	if status/100 != 2 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		return &APIError{Code: ErrCodeStatus, Method: method, Path: path, Status: status, Message: env.Message}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Code: ErrCodeDecode, Method: method, Path: path, Status: status, Err: err}
	}
	return nil
}

// errUnsuccessful builds the error for a 2xx response whose envelope status
// is not "success".
func errUnsuccessful(method, path string, env envelope) error {
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("status %q", env.Status)
	}
	return &APIError{Code: ErrCodeStatus, Method: method, Path: path, Message: msg, Err: errors.New("unsuccessful response")}
}
