// Package portal talks to the Loggamera public views.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/retry"
)

const (
	DefaultBaseURL   = "https://portal.loggamera.se"
	OverviewPath     = "/PublicViews/OverviewInside"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "loggamera-bridge/1.0"

	maxBodyBytes = 4 << 20
	previewBytes = 500
)

// StatusError is a non-2xx answer
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from portal", e.Code)
}

// TransportError is a connection level failure, including attempt timeouts
type TransportError struct {
	Err     error
	timeout bool
}

func (e *TransportError) Error() string {
	if e.timeout {
		return fmt.Sprintf("timeout: %v", e.Err)
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a transport failure
func NewTransportError(err error, timeout bool) *TransportError {
	return &TransportError{Err: err, timeout: timeout}
}

// Timeout reports whether the attempt deadline elapsed
func (e *TransportError) Timeout() bool { return e.timeout }

// Observer is notified of every attempt
type Observer interface {
	ObserveAttempt(locationID int, err error)
}

// Page is the body of a successful fetch
type Page struct {
	Body     string
	Attempts int
}

// Config holds client options; zero values take the defaults
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retry      retry.Policy
	UserAgent  string
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Client posts location ids to the overview endpoint
type Client struct {
	endpoint  string
	timeout   time.Duration
	policy    retry.Policy
	userAgent string
	http      *http.Client
	observer  Observer
	logger    *slog.Logger
}

// NewClient validates the base url and applies defaults
func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid portal base url %q", base)
	}

	c := &Client{
		endpoint:  strings.TrimRight(base, "/") + OverviewPath,
		timeout:   cfg.Timeout,
		policy:    cfg.Retry,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		observer:  cfg.Observer,
		logger:    logging.Component(cfg.Logger, "Portal"),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.policy.MaxAttempts <= 0 {
		c.policy = retry.DefaultPolicy()
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// Endpoint is the full overview url
func (c *Client) Endpoint() string { return c.endpoint }

// Budget is the longest a Fetch can take
func (c *Client) Budget() time.Duration { return c.policy.Budget(c.timeout) }

// Fetch posts id=<locationID> and returns the body of the first 2xx answer.
// Every failure is retried under the client's policy.
func (c *Client) Fetch(ctx context.Context, locationID int) (Page, error) {
	var page Page
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		page.Attempts = attempt
		c.logger.Debug("fetching", "location", locationID, "attempt", attempt)

		body, err := c.post(ctx, locationID)
		if c.observer != nil {
			c.observer.ObserveAttempt(locationID, err)
		}
		if err != nil {
			c.logger.Warn("attempt failed", "location", locationID, "attempt", attempt, "error", err)
			return err
		}
		page.Body = body
		return nil
	})
	if err != nil {
		return page, fmt.Errorf("fetch location %d: %w", locationID, err)
	}

	c.logger.Debug("fetched", "location", locationID, "bytes", len(page.Body), "attempts", page.Attempts)
	if logging.DebugEnabled() {
		c.logger.Debug("response preview", "location", locationID, "html", preview(page.Body))
	}
	return page, nil
}

func (c *Client) post(ctx context.Context, locationID int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{"id": {strconv.Itoa(locationID)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &StatusError{Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classify(ctx, err)
	}
	return string(data), nil
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	return &TransportError{Err: err, timeout: timeout}
}

// IsTimeout reports whether err ended with an attempt timeout
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

func preview(s string) string {
	if len(s) <= previewBytes {
		return s
	}
	return s[:previewBytes] + "..."
}
