package discovery

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// maxErrorBody caps how much of an error response is kept for logs.
const maxErrorBody = 2048

// Client talks to the discovery appliance REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	policy  RetryPolicy
	pool    *Pool
	logger  *zap.Logger
	metrics Observer
}

// Observer receives one call per completed HTTP exchange.
type Observer interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int, time.Duration) {}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.metrics = o }
}

// NewClient creates a client for the configured appliance.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = max(cfg.Concurrency, 10)
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // appliances commonly use self-signed certificates
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		policy:  RetryPolicy{MaxAttempts: attempts, InitialDelay: cfg.RetryDelay},
		pool:    NewPool(cfg.Concurrency),
		logger:  logger,
		metrics: noopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Pool returns the fetch pool shared by all detail fetches of this client.
func (c *Client) Pool() *Pool {
	return c.pool
}

// Get performs a GET with the retry policy and returns the raw response body.
//
// 5xx responses, session auto-logouts, timeouts and transport errors are retried
// with exponential backoff. Other 4xx responses fail immediately. A 400 complaining
// about an offset without results_id is retried once with the offset removed.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		last := attempt == c.policy.MaxAttempts-1
		wait := c.policy.Delay(attempt)

		status, body, err := c.do(ctx, path, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.Warn("Request failed",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if last {
				break
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch classify(status, body) {
		case outcomeOK:
			return body, nil
		case outcomeOffsetWithoutResultsID:
			return c.retryWithoutOffset(ctx, path, params, body)
		case outcomeFatal:
			statusErr := c.statusError(path, status, body)
			c.logger.Error("Request rejected", zap.String("path", path), zap.Int("status", status), zap.String("body", statusErr.Body))
			return nil, statusErr
		}

		lastErr = c.statusError(path, status, body)
		c.logger.Warn("Transient upstream error",
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)
		if last {
			break
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.policy.MaxAttempts, lastErr)
}

// retryWithoutOffset is the one-shot corrective request for a page fetched with
// an offset but no results_id. It does not count against the retry budget.
func (c *Client) retryWithoutOffset(ctx context.Context, path string, params url.Values, body []byte) ([]byte, error) {
	c.logger.Error("Pagination error", zap.String("path", path), zap.String("body", truncate(body)))
	if params.Get("offset") == "" || params.Has("results_id") {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, path)
	}

	c.logger.Warn("Removing offset parameter since results_id is missing", zap.String("path", path))
	corrected := cloneValues(params)
	corrected.Del("offset")

	status, retryBody, err := c.do(ctx, path, corrected)
	if err != nil {
		return nil, fmt.Errorf("%w: corrective request failed: %w", ErrProtocolViolation, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, c.statusError(path, status, retryBody))
	}
	return retryBody, nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpointLabel(path), 0, time.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(endpointLabel(path), resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) statusError(path string, status int, body []byte) *StatusError {
	return &StatusError{Method: http.MethodGet, Path: path, Code: status, Body: truncate(body)}
}

// GetJSON performs Get and decodes the body into v. Numbers decode as json.Number
// so large identifiers keep every digit.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v any) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	return decode(body, v)
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsFatal reports whether err is a client error that retrying cannot fix.
func IsFatal(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Fatal()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

// endpointLabel collapses ids out of a path so metrics stay low cardinality.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/")
}
