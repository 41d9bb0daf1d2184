// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelconfig

import (
	"context"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// OTLPConfig exports spans to an OTLP collector over gRPC.
type OTLPConfig struct {
	Common

	// Target is the gRPC dial target of the collector.
	Target string
}

// OTLPOption configures the OTLP Initializer.
type OTLPOption interface {
	ApplyOTLP(*OTLPConfig)
}

type otlpOptionFunc func(*OTLPConfig)

func (f otlpOptionFunc) ApplyOTLP(cfg *OTLPConfig) {
	f(cfg)
}

// Target sets the collector address.
func Target(target string) OTLPOption {
	return otlpOptionFunc(func(cfg *OTLPConfig) {
		cfg.Target = target
	})
}

// OTLP returns an Initializer which exports spans to an OTLP collector.
func OTLP(opts ...OTLPOption) Initializer {
	cfg := OTLPConfig{}
	for _, opt := range opts {
		opt.ApplyOTLP(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface. The connection to the
// collector is established lazily so Init does not block on it.
func (cfg OTLPConfig) Init(ctx context.Context) (Provider, error) {
	res, err := newResource(ctx, cfg.Common)
	if err != nil {
		return nil, InitError{Exporter: "otlp", Cause: err}
	}

	// TLS is expected to be terminated by a local collector sidecar
	conn, err := grpc.DialContext(
		ctx,
		cfg.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, InitError{Exporter: "otlp", Cause: err}
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		conn.Close()
		return nil, InitError{Exporter: "otlp", Cause: err}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	return closingProvider{TracerProvider: tp, close: conn.Close}, nil
}
