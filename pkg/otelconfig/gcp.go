// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otelconfig

import (
	"context"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"go.opentelemetry.io/contrib/detectors/gcp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/api/option"
)

// GoogleCloudConfig exports spans directly to Cloud Trace.
type GoogleCloudConfig struct {
	Common

	ProjectID string
}

// GoogleCloudOption configures the GoogleCloud Initializer.
type GoogleCloudOption interface {
	ApplyGCP(*GoogleCloudConfig)
}

type gcpOptionFunc func(*GoogleCloudConfig)

func (f gcpOptionFunc) ApplyGCP(cfg *GoogleCloudConfig) {
	f(cfg)
}

// GoogleCloudProjectID sets the project spans are written to.
func GoogleCloudProjectID(id string) GoogleCloudOption {
	return gcpOptionFunc(func(cfg *GoogleCloudConfig) {
		cfg.ProjectID = id
	})
}

// GoogleCloud returns an Initializer for Cloud Trace.
func GoogleCloud(opts ...GoogleCloudOption) Initializer {
	cfg := GoogleCloudConfig{}
	for _, opt := range opts {
		opt.ApplyGCP(&cfg)
	}
	return cfg
}

// Init implements the [Initializer] interface.
func (cfg GoogleCloudConfig) Init(ctx context.Context) (Provider, error) {
	exporter, err := texporter.New(
		texporter.WithContext(ctx),
		texporter.WithProjectID(cfg.ProjectID),
		texporter.WithTraceClientOptions([]option.ClientOption{option.WithTelemetryDisabled()}),
	)
	if err != nil {
		return nil, InitError{Exporter: "gcp", Cause: err}
	}

	res, err := newResource(ctx, cfg.Common, resource.WithDetectors(gcp.NewDetector()))
	if err != nil {
		return nil, InitError{Exporter: "gcp", Cause: err}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return tp, nil
}
