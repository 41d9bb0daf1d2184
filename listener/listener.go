// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package listener binds the sockets of a microhttp server and runs
// its accept loops in the background.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/microhttp/internal/try"
	"github.com/z5labs/microhttp/pkg/health"
	"github.com/z5labs/microhttp/pkg/noop"
	"github.com/z5labs/microhttp/pkg/slogfield"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the port bound when none is configured.
const DefaultPort = 8080

// DefaultLoopbackAlias is the loopback host bound alongside the external address.
const DefaultLoopbackAlias = "localhost"

// DefaultSerialReadTimeout bounds reading a whole request when requests
// are serialized, so a stalled client can not hold up every other one.
const DefaultSerialReadTimeout = 10 * time.Second

type options struct {
	address           string
	loopback          string
	port              uint
	serialize         bool
	readHeaderTimeout time.Duration
	readTimeout       time.Duration
	logHandler        slog.Handler
}

// Option configures a Listener.
type Option func(*options)

// Address sets the external host to bind. If empty, the first IPv4
// address of the machine is discovered with [ExternalIPv4].
func Address(host string) Option {
	return func(o *options) {
		o.address = host
	}
}

// LoopbackAlias sets the loopback host bound alongside the external
// address. Default is "localhost". An empty alias disables the
// second binding.
func LoopbackAlias(host string) Option {
	return func(o *options) {
		o.loopback = host
	}
}

// Port sets the port bound on every host. A port of 0 picks a free
// port for the first host and reuses it for the rest.
//
// Default port is 8080.
func Port(port uint) Option {
	return func(o *options) {
		o.port = port
	}
}

// Serialize processes requests one at a time in the order their
// connections were accepted. Keep-alives are disabled so that every
// connection carries a single request.
func Serialize() Option {
	return func(o *options) {
		o.serialize = true
	}
}

// ReadHeaderTimeout bounds the time spent reading request headers.
// The default is 2 seconds.
func ReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readHeaderTimeout = d
	}
}

// ReadTimeout bounds the time spent reading a whole request, body
// included. There is no limit by default unless requests are
// serialized, in which case [DefaultSerialReadTimeout] applies.
func ReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readTimeout = d
	}
}

// LogHandler sets the [slog.Handler] used by the Listener.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Listener owns the bound sockets and the accept loops serving them.
type Listener struct {
	handler    http.Handler
	logHandler slog.Handler
	log        *slog.Logger

	address           string
	loopback          string
	port              uint
	serialize         bool
	readHeaderTimeout time.Duration
	readTimeout       time.Duration

	listen   func(ctx context.Context, network, address string) (net.Listener, error)
	discover func() (net.IP, error)

	serving health.Binary

	mu   sync.Mutex
	cur  *run
	last *run
}

// run is the state of a single Start to Stop cycle.
type run struct {
	srv      *http.Server
	lns      []net.Listener
	hosts    []string
	port     uint
	prefixes map[string]struct{}
	keys     map[string]struct{}

	// err is written before done is closed
	done chan struct{}
	err  error
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// New returns a Listener which serves every request with h.
func New(h http.Handler, opts ...Option) *Listener {
	o := &options{
		loopback:          DefaultLoopbackAlias,
		port:              DefaultPort,
		readHeaderTimeout: 2 * time.Second,
		logHandler:        noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.serialize && o.readTimeout == 0 {
		o.readTimeout = DefaultSerialReadTimeout
	}

	var lc net.ListenConfig
	return &Listener{
		handler:           h,
		logHandler:        o.logHandler,
		log:               slog.New(o.logHandler),
		address:           o.address,
		loopback:          o.loopback,
		port:              o.port,
		serialize:         o.serialize,
		readHeaderTimeout: o.readHeaderTimeout,
		readTimeout:       o.readTimeout,
		listen:            lc.Listen,
		discover:          ExternalIPv4,
	}
}

// Start binds every configured host and starts accepting connections
// in the background. It returns once the sockets are bound. Calling
// Start on a running Listener does nothing.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur != nil && !l.cur.finished() {
		l.log.DebugContext(ctx, "listener already started")
		return nil
	}
	if l.cur != nil {
		l.last = l.cur
		l.cur = nil
	}

	hosts := l.hosts(ctx)
	lns, port, err := l.bind(ctx, hosts)
	if err != nil {
		l.log.ErrorContext(ctx, "failed to bind listener", slogfield.Error(err))
		return err
	}

	srv := &http.Server{
		Handler: otelhttp.NewHandler(
			l.handler,
			"microhttp",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
		ReadHeaderTimeout: l.readHeaderTimeout,
		ReadTimeout:       l.readTimeout,
		ErrorLog:          slog.NewLogLogger(l.logHandler, slog.LevelError),
	}
	if l.serialize {
		srv.SetKeepAlivesEnabled(false)
		lns = serializeListeners(lns)
	}

	r := &run{
		srv:      srv,
		lns:      lns,
		hosts:    hosts,
		port:     port,
		prefixes: make(map[string]struct{}),
		keys:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	l.cur = r
	l.serving.Set(true)
	go l.serve(r)

	l.log.InfoContext(
		ctx,
		"started listener",
		slogfield.String("address", net.JoinHostPort(hosts[0], strconv.FormatUint(uint64(port), 10))),
		slogfield.Addrs("bound", addrs(lns)),
		slogfield.Bool("serialized", l.serialize),
	)
	return nil
}

func (l *Listener) serve(r *run) {
	defer close(r.done)
	defer l.serving.Set(false)

	var g errgroup.Group
	for _, ln := range r.lns {
		ln := ln
		g.Go(func() (err error) {
			defer try.Recover(&err)

			err = r.srv.Serve(ln)
			if err == nil || errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			// one broken accept loop takes the others down with it
			r.srv.Close()
			return AcceptError{Addr: ln.Addr(), Cause: err}
		})
	}

	r.err = g.Wait()
	if r.err != nil {
		l.log.Error("accept loop terminated", slogfield.Error(r.err))
	}
}

// Stop closes the bound sockets and every active connection without
// waiting for in flight requests to complete. Once Stop returns new
// connections are refused. Calling Stop on a stopped Listener does nothing.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.cur
	if r == nil {
		return nil
	}
	l.cur = nil
	l.last = r

	err := r.srv.Close()

	// Serve may not have taken ownership of a socket yet
	for _, ln := range r.lns {
		ln.Close()
	}
	<-r.done

	l.log.Info("stopped listener")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// BindPrefix records the URL prefixes of key on every configured host.
// It reports whether key was newly bound, which is never the case for
// a Listener which isn't running.
func (l *Listener) BindPrefix(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.cur
	if r == nil || r.finished() {
		return false
	}
	if _, exists := r.keys[key]; exists {
		return false
	}
	r.keys[key] = struct{}{}
	for _, host := range r.hosts {
		r.prefixes[Prefix(host, r.port, key)] = struct{}{}
	}
	l.log.Debug("bound prefix", slogfield.String("key", key))
	return true
}

// Prefixes returns the sorted URL prefixes bound since the last Start.
func (l *Listener) Prefixes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return nil
	}
	prefixes := make([]string, 0, len(l.cur.prefixes))
	for prefix := range l.cur.prefixes {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Prefix formats the URL prefix for a path key on the given host and port.
func Prefix(host string, port uint, key string) string {
	hostport := net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
	return strings.TrimRight(fmt.Sprintf("http://%s/%s", hostport, key), "/") + "/"
}

// Addrs returns the addresses currently being accepted on.
func (l *Listener) Addrs() []net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return nil
	}
	return addrs(l.cur.lns)
}

// Port returns the bound port, or 0 if the Listener isn't running.
func (l *Listener) Port() uint {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cur == nil {
		return 0
	}
	return l.cur.port
}

// Done returns a channel which is closed once the accept loops of the
// most recent Start have exited. If the Listener was never started the
// channel is already closed.
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if r := l.current(); r != nil {
		return r.done
	}
	done := make(chan struct{})
	close(done)
	return done
}

// Err returns the error which terminated the accept loops, if any.
// It is nil while the Listener is running or after a clean Stop.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := l.current()
	if r == nil || !r.finished() {
		return nil
	}
	return r.err
}

func (l *Listener) current() *run {
	if l.cur != nil {
		return l.cur
	}
	return l.last
}

// Healthy implements the [health.Metric] interface. It reports
// whether the accept loops are running.
func (l *Listener) Healthy(ctx context.Context) bool {
	return l.serving.Healthy(ctx)
}

func (l *Listener) hosts(ctx context.Context) []string {
	external := l.address
	if external == "" {
		ip, err := l.discover()
		if err != nil {
			l.log.WarnContext(ctx, "failed to discover external address, using loopback", slogfield.Error(err))
			ip = net.IPv4(127, 0, 0, 1)
		}
		external = ip.String()
	}

	hosts := []string{external}
	if l.loopback != "" && l.loopback != external {
		hosts = append(hosts, l.loopback)
	}
	return hosts
}

func (l *Listener) bind(ctx context.Context, hosts []string) ([]net.Listener, uint, error) {
	port := l.port
	lns := make([]net.Listener, 0, len(hosts))
	for _, host := range hosts {
		if covered(ctx, lns, host) {
			l.log.DebugContext(ctx, "host already bound", slogfield.String("host", host))
			continue
		}

		addr := net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))
		ln, err := l.listen(ctx, "tcp", addr)
		if err != nil {
			for _, ln := range lns {
				ln.Close()
			}
			return nil, 0, BindError{Addr: addr, Cause: err}
		}
		lns = append(lns, ln)

		if port == 0 {
			port = tcpPort(ln.Addr())
		}
	}
	return lns, port, nil
}

// covered reports whether a socket bound to host would collide with
// one already in lns.
func covered(ctx context.Context, lns []net.Listener, host string) bool {
	if len(lns) == 0 {
		return false
	}
	ip := resolve(ctx, host)
	for _, ln := range lns {
		bound := tcpIP(ln.Addr())
		if bound == nil {
			continue
		}
		if bound.IsUnspecified() {
			return true
		}
		if ip != nil && bound.Equal(ip) {
			return true
		}
	}
	return false
}

// resolve mirrors the address selection of [net.Listen] for host names,
// which listens on the first IPv4 address.
func resolve(ctx context.Context, host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil || len(ips) == 0 {
		return nil
	}
	if ip := firstIPv4(ips); ip != nil {
		return ip
	}
	return ips[0]
}

func tcpIP(addr net.Addr) net.IP {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil
	}
	return tcpAddr.IP
}

func tcpPort(addr net.Addr) uint {
	if addr == nil {
		return 0
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return uint(tcpAddr.Port)
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return 0
	}
	return uint(n)
}

func addrs(lns []net.Listener) []net.Addr {
	as := make([]net.Addr, 0, len(lns))
	for _, ln := range lns {
		as = append(as, ln.Addr())
	}
	return as
}
