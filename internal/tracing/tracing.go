// Package tracing sets up the OpenTelemetry tracer provider that exports Daedalus spans.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/config"
)

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

// TracingConfig holds configuration for tracing setup
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port, the exporter adds the path
	SampleRatio    float64
}

// FromConfig derives a tracing configuration for a service from the loaded settings.
func FromConfig(serviceName string, cfg *config.Config) TracingConfig {
	return TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    string(cfg.Environment),
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.SampleRatio,
	}
}

// SetupTracing installs a global tracer provider exporting over OTLP/HTTP.
func SetupTracing(ctx context.Context, tc TracingConfig, logger *zap.Logger) (ShutdownFunc, error) {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if tc.OTLPEndpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required for service '%s'", tc.ServiceName)
	}

	logger.Info("Setting up tracing",
		zap.String("service_name", tc.ServiceName),
		zap.String("otlp_endpoint", tc.OTLPEndpoint),
		zap.String("environment", tc.Environment),
		zap.Float64("sample_ratio", tc.SampleRatio))

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tc.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Error("Failed to create OTLP exporter", zap.Error(err))
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(tc.ServiceName),
			semconv.ServiceVersion(tc.ServiceVersion),
			semconv.DeploymentEnvironment(tc.Environment),
		),
	)
	if err != nil {
		logger.Error("Failed to create resource", zap.Error(err))
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(tc.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("Tracing setup completed")
	return tp.Shutdown, nil
}

// Setup configures tracing from the loaded settings. When no OTLP endpoint is configured
// it leaves the global no-op provider in place and returns a no-op shutdown.
func Setup(ctx context.Context, serviceName string, cfg *config.Config, logger *zap.Logger) (ShutdownFunc, error) {
	if !cfg.TracingEnabled() {
		return func(context.Context) error { return nil }, nil
	}
	return SetupTracing(ctx, FromConfig(serviceName, cfg), logger)
}

// ShutdownTracing flushes pending spans, waiting at most ten seconds.
func ShutdownTracing(shutdown ShutdownFunc, logger *zap.Logger) error {
	if shutdown == nil {
		return nil
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown tracing", zap.Error(err))
		return err
	}
	logger.Debug("Tracing shutdown completed")
	return nil
}
