// Package httpclient is the HTTP plumbing shared by every remote API the bots
// talk to: default headers, request logging, rate limiting, per-request
// retries and status code mapping onto typed errors.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/ratelimit"
	"describer/pkg/retry"
)

// RequestFunc builds a fresh request for every try so bodies can be resent
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Client wraps http.Client for one remote service
type Client struct {
	service    string
	httpClient *http.Client
	headers    map[string]string
	limiter    ratelimit.Limiter
	attempts   int
	backoff    retry.BackoffStrategy
	logger     logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient swaps the underlying http.Client (tests, custom transports)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLimiter gates every request through l
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithAttempts sets how many times a retryable failure is tried
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithBackoff fixes the delay between tries instead of picking one per error type
func WithBackoff(b retry.BackoffStrategy) Option {
	return func(c *Client) { c.backoff = b }
}

// WithHeader adds a default header
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// New creates a client for service
func New(service string, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Client{
		service:    service,
		httpClient: &http.Client{Timeout: timeout},
		headers:    map[string]string{"Accept": "application/json"},
		attempts:   1,
		logger:     log.WithField("service", service),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the service name used in logs and errors
func (c *Client) Service() string { return c.service }

// SetHeader sets a default header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Do sends the request built by build and returns a response with a 2xx or
// 3xx status. Other statuses are turned into *errors.Error and retried when
// the error type allows it. The caller closes the body.
func (c *Client) Do(ctx context.Context, build RequestFunc) (*http.Response, error) {
	return c.send(ctx, build, c.attempts)
}

// DoOnce is Do without retries, for requests that must not be repeated
func (c *Client) DoOnce(ctx context.Context, build RequestFunc) (*http.Response, error) {
	return c.send(ctx, build, 1)
}

func (c *Client) send(ctx context.Context, build RequestFunc, attempts int) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(ctx, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return errs.New(c.service, errs.ErrorTypeUnknown, 0, fmt.Sprintf("failed to create request: %v", err))
		}

		r, err := c.doRequest(ctx, req)
		if err != nil {
			return err
		}
		if err := c.checkResponseStatus(r); err != nil {
			drain(r)
			return err
		}
		resp = r
		return nil
	}, &retry.Config{MaxAttempts: attempts, Backoff: c.backoff, Logger: c.logger})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    redact(req),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WithError(err).ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redact(req),
			"duration": duration,
		})
		return nil, errs.New(c.service, errs.ErrorTypeNetwork, 0, fmt.Sprintf("network error: %v", err))
	}

	logger.LogRequest(c.logger, c.service, req.Method, redact(req), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus maps HTTP status codes onto typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	message := http.StatusText(resp.StatusCode)
	if body := preview(resp.Body, 300); body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}
	return errs.New(c.service, errs.TypeForStatus(resp.StatusCode), resp.StatusCode, message)
}

// GetJSON fetches url and decodes the JSON body into target
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.DecodeJSON(resp, target)
}

// DecodeJSON decodes resp's body into target, mapping failures to parsing errors
func (c *Client) DecodeJSON(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(c.service, errs.ErrorTypeNetwork, resp.StatusCode, fmt.Sprintf("failed to read response body: %v", err))
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.WithError(err).ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"status":       resp.StatusCode,
			"body_preview": bodyPreview,
		})
		return errs.New(c.service, errs.ErrorTypeParsing, resp.StatusCode, fmt.Sprintf("failed to parse JSON: %v", err))
	}
	return nil
}

// GetBytes downloads url. maxBytes > 0 bounds the body size.
func (c *Client) GetBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	resp, err := c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.New(c.service, errs.ErrorTypeNetwork, resp.StatusCode, fmt.Sprintf("failed to read body: %v", err))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errs.New(c.service, errs.ErrorTypeUnknown, resp.StatusCode, fmt.Sprintf("body exceeds %d bytes", maxBytes))
	}
	return data, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func preview(r io.Reader, n int) string {
	b, _ := io.ReadAll(io.LimitReader(r, int64(n)))
	return string(b)
}

// redact drops the query string, which may carry API keys
func redact(req *http.Request) string {
	u := *req.URL
	if u.RawQuery != "" {
		u.RawQuery = "..."
	}
	return u.String()
}
