// Package observability provides OpenTelemetry integration for distributed
// tracing.
//
// Traces are exported via OTLP HTTP to a local collector (or any OTLP
// endpoint), which handles authentication and forwarding to the backend.
// The store emits spans for search and ingest operations; with an endpoint
// configured they become visible end to end.
//
// Environment variables (optional):
//   - KR8_OTEL_ENDPOINT: Override collector endpoint (default: none, tracing off)
//
// Config file (~/.kr8vector/config.yaml):
//
//	otel:
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "kr8-vector"
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config for the OTEL trace pipeline.
type Config struct {
	// Endpoint is the OTLP HTTP collector endpoint (host:port). Empty
	// disables tracing entirely.
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown in the APM backend
	ServiceName string
}

// Setup installs a global TracerProvider exporting to the configured OTLP
// endpoint. Returns a shutdown function that flushes pending spans.
//
// An empty endpoint returns a no-op shutdown and leaves the default
// provider in place. Exporter creation failure degrades the same way so a
// missing collector never breaks retrieval.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		slog.Debug("tracing disabled, no otel endpoint configured")
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(), // local collector doesn't need TLS
	)
	if err != nil {
		slog.Warn("failed to create otlp exporter, tracing disabled", "error", err)
		return noop, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return noop, fmt.Errorf("building otel resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	slog.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return provider.Shutdown, nil
}
