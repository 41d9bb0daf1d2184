// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig builds OpenTelemetry tracer providers for the
// supported trace exporters.
package otelconfig

import (
	"context"
	"errors"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Provider is a [trace.TracerProvider] which must be shut down to
// flush any buffered spans.
type Provider interface {
	trace.TracerProvider

	Shutdown(context.Context) error
}

// Initializer creates a Provider.
type Initializer interface {
	Init(context.Context) (Provider, error)
}

// Common holds the settings shared by every exporter.
type Common struct {
	ServiceName string
}

// CommonOption configures any Initializer.
type CommonOption interface {
	GoogleCloudOption
	LocalOption
	OTLPOption
}

type commonOptionFunc func(*Common)

func (f commonOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(&cfg.Common)
}

func (f commonOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(&cfg.Common)
}

// ServiceName sets the service.name resource attribute.
func ServiceName(name string) CommonOption {
	return commonOptionFunc(func(c *Common) {
		c.ServiceName = name
	})
}

// Noop creates a Provider which never records spans.
var Noop Initializer = noopInitializer{}

type noopInitializer struct{}

type noopProvider struct {
	tracenoop.TracerProvider
}

func (noopProvider) Shutdown(context.Context) error {
	return nil
}

// Init implements the [Initializer] interface.
func (noopInitializer) Init(context.Context) (Provider, error) {
	return noopProvider{TracerProvider: tracenoop.NewTracerProvider()}, nil
}

// LocalConfig writes spans as JSON lines to Out.
type LocalConfig struct {
	Common

	Out io.Writer
}

// LocalOption configures the Local Initializer.
type LocalOption interface {
	ApplyLocal(*LocalConfig)
}

type localOptionFunc func(*LocalConfig)

func (f localOptionFunc) ApplyLocal(cfg *LocalConfig) {
	f(cfg)
}

// Output sets where the Local Initializer writes spans. Default is stdout.
func Output(w io.Writer) LocalOption {
	return localOptionFunc(func(cfg *LocalConfig) {
		cfg.Out = w
	})
}

// Local returns an Initializer which exports spans to a writer.
func Local(opts ...LocalOption) Initializer {
	cfg := LocalConfig{
		Out: os.Stdout,
	}
	for _, opt := range opts {
		opt.ApplyLocal(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface.
func (cfg LocalConfig) Init(ctx context.Context) (Provider, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(cfg.Out),
	)
	if err != nil {
		return nil, InitError{Exporter: "stdout", Cause: err}
	}

	res, err := newResource(ctx, cfg.Common)
	if err != nil {
		return nil, InitError{Exporter: "stdout", Cause: err}
	}

	// spans are written as they end so nothing is lost on a crash
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}

func newResource(ctx context.Context, common Common, opts ...resource.Option) (*resource.Resource, error) {
	opts = append(
		opts,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(common.ServiceName),
		),
	)
	return resource.New(ctx, opts...)
}

// InitError is returned when an exporter could not be set up.
type InitError struct {
	Exporter string
	Cause    error
}

// Error implements the [builtin.error] interface.
func (e InitError) Error() string {
	return "failed to initialize " + e.Exporter + " trace exporter: " + e.Cause.Error()
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InitError) Unwrap() error {
	return e.Cause
}

type closingProvider struct {
	*sdktrace.TracerProvider

	close func() error
}

// Shutdown flushes the provider before releasing the exporter connection.
func (p closingProvider) Shutdown(ctx context.Context) error {
	return errors.Join(p.TracerProvider.Shutdown(ctx), p.close())
}
