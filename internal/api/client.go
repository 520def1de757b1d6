package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Client reads the dashboard backend's REST endpoints. Transient failures
// (5xx and 429) are retried with jittered exponential backoff; everything
// else is returned on the first attempt.
type Client struct {
	base   string
	hc     *http.Client
	logger *slog.Logger

	retries int
	backoff time.Duration
}

// Option configures a Client.
type Option func(*Client)

// NewClient returns a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 5 * time.Second},
		logger:  slog.Default(),
		retries: 2,
		backoff: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "api")
	return c
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithRetries sets how many times a transient failure is retried and the
// initial delay between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.backoff = backoff
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// get fetches path and hands the body to decode, retrying transient
// backend errors.
func (c *Client) get(ctx context.Context, path string, decode func([]byte) error) error {
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		body, err := c.fetch(ctx, path)
		if err == nil {
			if err := decode(body); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}
		if attempt >= c.retries {
			return fmt.Errorf("gave up after %d attempts: %w", attempt+1, err)
		}

		wait := delay
		if delay > 0 {
			wait = delay/2 + rand.N(delay)
		}
		c.logger.Debug("backend busy, retrying", "path", path, "status", apiErr.StatusCode, "attempt", attempt+1, "wait", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}

// fetch performs one GET against the backend.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, newAPIError(path, resp.StatusCode, body)
	}
	return body, nil
}
