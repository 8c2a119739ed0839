package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting and retries.
// It satisfies the Do interface expected by API SDKs.
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter

	maxRetries      int
	maxRetryTimeout time.Duration
	initialInterval time.Duration
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
	InitialInterval time.Duration
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 30 * time.Second
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:         rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		maxRetries:      opts.MaxRetries,
		maxRetryTimeout: opts.MaxRetryTimeout,
		initialInterval: opts.InitialInterval,
	}
}

// Do performs req with the request's own context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoRequest(req.Context(), req)
}

// DoRequest performs an HTTP request with rate limiting and retries.
// 429 and 5xx responses are retried; any other non-2xx status fails at once.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
	)

	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		r := req
		if attempt > 0 && req.Body != nil {
			if req.GetBody == nil {
				return backoff.Permanent(fmt.Errorf("cannot retry %s %s: body is not replayable", req.Method, req.URL.Path))
			}
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			r = req.Clone(ctx)
			r.Body = body
		}
		attempt++

		res, err := c.HTTPClient.Do(r)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			resp = res
			return nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		res.Body.Close()
		statusErr := &StatusError{StatusCode: res.StatusCode, Body: string(snippet)}
		if statusErr.Retryable() {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.initialInterval
	expo.MaxElapsedTime = c.maxRetryTimeout

	var strategy backoff.BackOff = expo
	if c.maxRetries > 0 {
		strategy = backoff.WithMaxRetries(strategy, uint64(c.maxRetries))
	}

	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

// StatusError represents an error due to a non-2xx HTTP status code
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
