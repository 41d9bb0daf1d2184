// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package microhttp

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/z5labs/microhttp/dispatch"
	"github.com/z5labs/microhttp/listener"
	"github.com/z5labs/microhttp/pkg/health"
	"github.com/z5labs/microhttp/pkg/noop"
	"github.com/z5labs/microhttp/route"

	"go.opentelemetry.io/otel/metric"
)

// Response is the value a route handler replies with.
type Response = dispatch.Response

// Handler is the interface implemented by route handlers.
type Handler = dispatch.Handler

// HandlerFunc is a func implementation of the Handler interface.
type HandlerFunc = dispatch.HandlerFunc

type options struct {
	address       string
	loopbackAlias string
	port          uint
	serialize     bool
	readTimeout   time.Duration
	logHandler    slog.Handler
	meterProvider metric.MeterProvider
	routes        map[string]Handler
}

// Option configures a Server.
type Option func(*options)

// ListenOnPort will configure the Server to listen on the given port.
//
// Default port is 8080.
func ListenOnPort(port uint) Option {
	return func(o *options) {
		o.port = port
	}
}

// Address configures the external host the Server binds. By default
// the first IPv4 address of the machine is used.
func Address(host string) Option {
	return func(o *options) {
		o.address = host
	}
}

// LoopbackAlias configures the loopback host bound alongside the
// external address. Default is "localhost".
func LoopbackAlias(host string) Option {
	return func(o *options) {
		o.loopbackAlias = host
	}
}

// SerializeRequests makes the Server handle one request at a time, in
// the order connections were accepted. By default requests are
// handled concurrently.
func SerializeRequests() Option {
	return func(o *options) {
		o.serialize = true
	}
}

// ReadTimeout bounds reading a whole request, body included. Serialized
// Servers default to [listener.DefaultSerialReadTimeout].
func ReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// LogHandler configures the [slog.Handler] used for all Server logs.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// MeterProvider configures the [metric.MeterProvider] the dispatch
// metrics are recorded with. Default is the global provider.
func MeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// Route registers h for key when the Server is created.
func Route(key string, h Handler) Option {
	return func(o *options) {
		o.routes[key] = h
	}
}

// Server dispatches requests to handlers by the first segment of their path.
type Server struct {
	log *slog.Logger

	// mu makes route registration and listener lifecycle changes atomic
	mu      sync.Mutex
	routes  *route.Table[Handler]
	ln      *listener.Listener
	started health.Binary
}

// New returns a Server which isn't accepting connections yet.
func New(opts ...Option) *Server {
	o := &options{
		loopbackAlias: listener.DefaultLoopbackAlias,
		port:          listener.DefaultPort,
		logHandler:    noop.LogHandler{},
		routes:        make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(o)
	}

	routes := route.NewTable[Handler]()
	for key, h := range o.routes {
		routes.Set(key, h)
	}

	dispatchOpts := []dispatch.Option{dispatch.LogHandler(o.logHandler)}
	if o.meterProvider != nil {
		dispatchOpts = append(dispatchOpts, dispatch.MeterProvider(o.meterProvider))
	}
	d := dispatch.New(routes, dispatchOpts...)

	lnOpts := []listener.Option{
		listener.Address(o.address),
		listener.LoopbackAlias(o.loopbackAlias),
		listener.Port(o.port),
		listener.LogHandler(o.logHandler),
		listener.ReadTimeout(o.readTimeout),
	}
	if o.serialize {
		lnOpts = append(lnOpts, listener.Serialize())
	}

	return &Server{
		log:    slog.New(o.logHandler),
		routes: routes,
		ln:     listener.New(d, lnOpts...),
	}
}

// AddRoute registers h for key, replacing any handler already registered
// for it. It is safe to call before or after Start. Once the Server is
// running a new key is also bound as a prefix on every listening host.
func (s *Server) AddRoute(key string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.routes.Set(key, h)
	s.ln.BindPrefix(key)
}

// AddFunction registers f for key. See AddRoute.
func (s *Server) AddFunction(key string, f func(ctx context.Context, uri, body string) (Response, error)) {
	s.AddRoute(key, HandlerFunc(f))
}

// Start binds the listening sockets and starts accepting connections in
// the background. The default echo route is registered at the empty key
// unless a handler is already registered there. Calling Start on a
// running Server does nothing.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ln.Start(ctx)
	if err != nil {
		return StartError{Cause: err}
	}

	s.routes.SetIfAbsent("", dispatch.Echo())
	for _, key := range s.routes.Keys() {
		s.ln.BindPrefix(key)
	}
	s.started.Set(true)
	return nil
}

// Stop immediately closes the listening sockets and every open connection.
// In flight requests are not waited on.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started.Set(false)
	return s.ln.Stop()
}

// Run starts the Server and blocks until ctx is cancelled, in which case
// the Server is stopped and nil is returned, or until the accept loops
// fail, in which case their error is returned.
func (s *Server) Run(ctx context.Context) error {
	err := s.Start(ctx)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return s.Stop()
	case <-s.ln.Done():
		err := s.ln.Err()
		s.Stop()
		return err
	}
}

// Healthy implements the [health.Metric] interface. A Server is healthy
// while it is started and its accept loops are running.
func (s *Server) Healthy(ctx context.Context) bool {
	return health.And(&s.started, s.ln).Healthy(ctx)
}

// Addrs returns the addresses the Server is accepting connections on.
func (s *Server) Addrs() []net.Addr {
	return s.ln.Addrs()
}

// Prefixes returns the URL prefixes bound for the registered routes.
func (s *Server) Prefixes() []string {
	return s.ln.Prefixes()
}
