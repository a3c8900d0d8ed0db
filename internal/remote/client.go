// Package remote is the HTTP/JSON client of the restaurant backend.
//
// Every call reports either a value or an error, never both; callers check
// the error before trusting the value.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpgfer/mws-restaurant-1/internal/ratelimit"
)

const (
	// DefaultTimeout bounds a single backend request.
	DefaultTimeout = 15 * time.Second

	defaultRPS   = 20.0
	defaultBurst = 10

	// maxErrorBody caps how much of an error response is kept as the message.
	maxErrorBody = 512

	userAgent = "mws-restaurant/1.0"
)

// Config holds Remote Client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Client is a rate-limited backend client.
type Client struct {
	http    *http.Client
	base    *url.URL
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger
}

// New creates a client for the backend at cfg.BaseURL.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps, burst := cfg.RPS, cfg.Burst
	if rps == 0 {
		rps = defaultRPS
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		base:    base,
		limiter: ratelimit.New(rps, burst),
		logger:  logger,
	}, nil
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchCollection GETs path and returns the raw JSON body. Success only on 200.
func (c *Client) FetchCollection(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, "fetch", http.MethodGet, path, query, nil, http.StatusOK)
}

// Create POSTs payload as JSON and returns the raw created record. Success only on 201.
func (c *Client) Create(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	return c.do(ctx, "create", http.MethodPost, path, nil, payload, http.StatusCreated)
}

// Update PUTs payload (may be nil) with optional query parameters. Success only on 200.
func (c *Client) Update(ctx context.Context, path string, payload any, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, "update", http.MethodPut, path, query, payload, http.StatusOK)
}

// Ping checks that the backend answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, "/health", nil, nil, http.StatusOK)
	return err
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do executes an HTTP request with rate limiting.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload any, want int) (json.RawMessage, error) {
	target := c.resolve(path, query)
	fail := func(status int, msg string, err error) error {
		return &Error{Op: op, URL: target, Status: status, Message: msg, Err: err}
	}

	// Wait for rate limit
	if err := c.limiter.Wait(ctx, c.base.Host); err != nil {
		return nil, fail(0, "rate limit wait", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "op", op, "url", target, "error", err)
		return nil, fail(0, "network error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(resp.StatusCode, "read response", err)
	}

	c.logger.Debug("backend request",
		"op", op,
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != want {
		return nil, fail(resp.StatusCode, errorMessage(resp, data), nil)
	}
	return data, nil
}

func errorMessage(resp *http.Response, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		return resp.Status
	}
	return msg
}

// decode unmarshals a raw response into T.
func decode[T any](op string, raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s response: %w", op, err)
	}
	return v, nil
}
