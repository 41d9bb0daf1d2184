// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package dispatch runs the per request lifecycle of a microhttp server:
// parse the request, route it by path key, invoke the handler and write
// back either its Response or a diagnostic error.
package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/microhttp/internal/try"
	"github.com/z5labs/microhttp/pkg/noop"
	"github.com/z5labs/microhttp/pkg/slogfield"
	"github.com/z5labs/microhttp/route"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ProcessSecondsHeader carries the time spent dispatching the request,
	// in milliseconds, despite its name.
	ProcessSecondsHeader = "ProcessSeconds"

	// EmptyBody is passed to handlers in place of a body for requests
	// whose method does not carry one.
	EmptyBody = "empty"
)

const instrumentationName = "github.com/z5labs/microhttp/dispatch"

// Router resolves a path key to its Handler.
type Router interface {
	Lookup(key string) (Handler, bool)
}

type options struct {
	logHandler    slog.Handler
	meterProvider metric.MeterProvider
}

// Option configures a Dispatcher.
type Option func(*options)

// LogHandler sets the [slog.Handler] used for access and error logs.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// MeterProvider sets the [metric.MeterProvider] the dispatch metrics are
// recorded with. Default is the global provider.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Dispatcher is a [http.Handler] which dispatches every request
// to the Handler registered for its path key.
type Dispatcher struct {
	router Router
	log    *slog.Logger
	now    func() time.Time

	duration metric.Float64Histogram
	requests metric.Int64Counter
}

// New returns a Dispatcher which looks up handlers with router.
func New(router Router, opts ...Option) *Dispatcher {
	o := &options{
		logHandler:    noop.LogHandler{},
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	d := &Dispatcher{
		router: router,
		log:    slog.New(o.logHandler),
		now:    time.Now,
	}

	meter := o.meterProvider.Meter(instrumentationName)
	duration, err := meter.Float64Histogram(
		"microhttp.dispatch.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Time spent dispatching a request."),
	)
	if err != nil {
		d.log.Warn("failed to create dispatch duration histogram", slogfield.Error(err))
		duration = metricnoop.Float64Histogram{}
	}
	requests, err := meter.Int64Counter(
		"microhttp.dispatch.requests",
		metric.WithDescription("Number of dispatched requests."),
	)
	if err != nil {
		d.log.Warn("failed to create dispatch request counter", slogfield.Error(err))
		requests = metricnoop.Int64Counter{}
	}
	d.duration = duration
	d.requests = requests
	return d
}

// ServeHTTP implements the [http.Handler] interface. Errors are already
// reflected in the response by the time they reach here, so they are
// only logged. A failed request never affects subsequent ones.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := d.dispatch(w, r)
	if err == nil {
		return
	}
	d.log.ErrorContext(
		r.Context(),
		"failed to dispatch request",
		slogfield.String("uri", requestURI(r)),
		slogfield.String("client", r.RemoteAddr),
		slogfield.Error(err),
	)
}

// request is the transient state of a single dispatch.
type request struct {
	client string
	uri    string
	method string
	body   string
	key    string
	start  time.Time
}

func (d *Dispatcher) dispatch(w http.ResponseWriter, r *http.Request) (err error) {
	defer try.Recover(&err)

	ctx := r.Context()
	req := &request{
		client: r.RemoteAddr,
		uri:    requestURI(r),
		method: r.Method,
		body:   EmptyBody,
		start:  d.now(),
	}

	if carriesBody(req.method) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return d.fail(ctx, w, req, BodyReadError{Cause: err})
		}
		req.body = string(b)
	}

	req.key = route.KeyFromURI(req.uri)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("microhttp.path_key", req.key))

	h, ok := d.router.Lookup(req.key)
	if !ok {
		return d.fail(ctx, w, req, RouteNotFoundError{Key: req.key})
	}

	resp, err := invoke(ctx, h, req.uri, req.body)
	if err != nil {
		return d.fail(ctx, w, req, HandlerError{Key: req.key, Cause: err})
	}

	err = d.write(ctx, w, req, http.StatusOK, resp.contentType(), resp.Payload)
	if err != nil {
		return err
	}

	d.log.InfoContext(
		ctx,
		"requested",
		slogfield.String("uri", req.uri),
		slogfield.String("client", req.client),
		slogfield.String("body", req.body),
	)
	return nil
}

// fail writes err as the diagnostic body of a 500 response and then hands
// err back so the caller can report it.
func (d *Dispatcher) fail(ctx context.Context, w http.ResponseWriter, req *request, err error) error {
	werr := d.write(ctx, w, req, http.StatusInternalServerError, DefaultContentType, []byte(err.Error()))
	if werr != nil {
		d.log.WarnContext(ctx, "failed to write error response", slogfield.Error(werr))
	}
	return err
}

func (d *Dispatcher) write(ctx context.Context, w http.ResponseWriter, req *request, status int, contentType string, payload []byte) error {
	elapsed := d.now().Sub(req.start)
	ms := float64(elapsed) / float64(time.Millisecond)

	attrs := metric.WithAttributes(attribute.Int("http.status_code", status))
	d.duration.Record(ctx, ms, attrs)
	d.requests.Add(ctx, 1, attrs)

	hdr := w.Header()
	hdr.Set("Content-Type", contentType)
	hdr.Set(ProcessSecondsHeader, strconv.FormatFloat(ms, 'f', -1, 64))
	w.WriteHeader(status)

	_, err := w.Write(payload)
	if err != nil {
		return ResponseWriteError{Cause: err}
	}
	return nil
}

func invoke(ctx context.Context, h Handler, uri, body string) (resp Response, err error) {
	defer try.Recover(&err)
	return h.Handle(ctx, uri, body)
}

func carriesBody(method string) bool {
	return strings.Contains(method, http.MethodPost)
}

// requestURI rebuilds the absolute URI the client requested.
func requestURI(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}
	return "http://" + requestHost(r) + target
}

// requestHost falls back to the local address the request was accepted
// on for clients which sent no Host header.
func requestHost(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok || addr == nil {
		return "localhost"
	}
	return addr.String()
}
