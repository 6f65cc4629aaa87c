// Package gateway is the HTTP client for the remote commerce cart API.
//
// Every response is decoded strictly at this boundary: callers receive either
// a typed result or a *Error carrying the operation, HTTP status and the
// server's message. Credentials travel as cookies through a shared jar, the
// equivalent of `credentials: "include"` in a browser.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds every gateway call unless overridden.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 1 << 20

// Client talks to the remote cart API.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. If it has no cookie
// jar, one is installed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Error is a non-2xx response or an undecodable success body.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ErrMissingCartID is returned when create-cart succeeds without a cartId.
var ErrMissingCartID = errors.New("cartId missing in response")

// StatusCode extracts the HTTP status from a gateway error, or 0.
func StatusCode(err error) int {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Status
	}
	return 0
}

// do sends one request and decodes a 2xx body into out (when non-nil).
// Non-2xx responses become *Error using the body's "error" string when it has
// one, and fallback otherwise.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, fallback string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("gateway call failed", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	c.logger.Debug("gateway call", "op", op, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(data, fmt.Sprintf("%s (%d)", fallback, resp.StatusCode)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// errorMessage returns the body's "error" field when it is a string.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if s, ok := payload.Error.(string); ok && s != "" {
		return s
	}
	return fallback
}
