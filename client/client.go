// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package client provides an HTTP client for calling microhttp servers.
//
// Requests are retried only when they fail to reach the server. A 500
// from a microhttp server is a handler diagnostic and is returned as is.
package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/z5labs/microhttp/dispatch"
	"github.com/z5labs/microhttp/internal/try"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type options struct {
	logger      *zap.Logger
	transport   http.RoundTripper
	timeout     time.Duration
	maxAttempts int
	waitMin     time.Duration
	waitMax     time.Duration
	tripCount   uint32
	openFor     time.Duration
}

// Option configures a Client.
type Option func(*options)

// Logger configures the zap logger used for request attempts and
// circuit state changes.
func Logger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Transport configures the underlying [http.RoundTripper].
func Transport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// Timeout bounds a single request attempt, including reading the body.
// Default is 10 seconds.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// MaxAttempts is the total number of times a request is sent before
// giving up. Default is 3.
func MaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// RetryWait bounds the backoff between attempts.
func RetryWait(min, max time.Duration) Option {
	return func(o *options) {
		o.waitMin = min
		o.waitMax = max
	}
}

// TripCount is the number of consecutive connection failures which
// opens the circuit. Default is 5.
func TripCount(n uint32) Option {
	return func(o *options) {
		o.tripCount = n
	}
}

// OpenFor is how long the circuit stays open before letting a single
// request through. Default is 30 seconds.
func OpenFor(d time.Duration) Option {
	return func(o *options) {
		o.openFor = d
	}
}

// Result is a response read from a microhttp server.
type Result struct {
	StatusCode  int
	ContentType string

	// Elapsed is the server side processing time reported by the
	// ProcessSeconds header. It is zero if the header is missing.
	Elapsed time.Duration

	Payload []byte
}

// Client sends requests to microhttp servers.
type Client struct {
	http    *http.Client
	log     *zap.Logger
	circuit *circuitRoundTripper
}

// New returns a Client.
func New(opts ...Option) *Client {
	o := &options{
		logger:      zap.NewNop(),
		transport:   http.DefaultTransport,
		timeout:     10 * time.Second,
		maxAttempts: 3,
		waitMin:     100 * time.Millisecond,
		waitMax:     2 * time.Second,
		tripCount:   5,
		openFor:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	rt := newCircuitRoundTripper(otelhttp.NewTransport(o.transport), o)

	log := o.logger
	rc := &retryablehttp.Client{
		HTTPClient: &http.Client{
			Timeout:   o.timeout,
			Transport: rt,
		},
		Logger:       nil,
		RetryWaitMin: o.waitMin,
		RetryWaitMax: o.waitMax,
		RetryMax:     o.maxAttempts - 1,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			log.Debug(
				"sending http request",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("request_attempt_count", attempt),
			)
		},
		ResponseLogHook: func(_ retryablehttp.Logger, resp *http.Response) {
			log.Debug(
				"received http response",
				zap.String("url", resp.Request.URL.String()),
				zap.Int("http_status_code", resp.StatusCode),
			)
		},
		CheckRetry:   retryConnErrors,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}

	return &Client{
		http:    rc.StandardClient(),
		log:     log,
		circuit: rt,
	}
}

// Post sends body to url with the POST method.
func (c *Client) Post(ctx context.Context, url string, body []byte) (Result, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

// Do sends body to url with the given method and reads the whole response.
// Any status code is a valid Result.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (_ Result, err error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", dispatch.DefaultContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("request failed", zap.String("url", url), zap.Error(err))
		return Result{}, err
	}
	defer try.Close(&err, resp.Body)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	return Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Elapsed:     parseElapsed(resp.Header.Get(dispatch.ProcessSecondsHeader)),
		Payload:     payload,
	}, nil
}

// parseElapsed reads the ProcessSeconds header, which carries milliseconds.
func parseElapsed(s string) time.Duration {
	if s == "" {
		return 0
	}
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil || ms < 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func retryConnErrors(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, err
	}
	return true, nil
}
