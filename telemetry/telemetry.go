// Package telemetry wires OpenTelemetry trace and log export for the fluxfsm
// tools. Spans opened by the statemachine packages go to the global tracer
// provider installed here; log records reach the collector through an slog
// handler that callers add to the logger fan-out.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fluxstate/fluxfsm/config"
	"github.com/fluxstate/fluxfsm/logger"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const scopeName = "github.com/fluxstate/fluxfsm"

// Provider owns the exporters created by Initialize. The zero value is a
// disabled provider.
type Provider struct {
	traces *sdktrace.TracerProvider
	logs   *sdklog.LoggerProvider
}

// Initialize sets up trace and log export according to cfg. Each signal is
// exported only when its endpoint is set. The tracer provider is installed
// globally.
func Initialize(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	log := logger.Get(ctx)

	if !cfg.Enabled {
		log.Debug("OpenTelemetry is disabled")

		return &Provider{}, nil
	}

	if cfg.TracesEndpoint == "" && cfg.LogsEndpoint == "" {
		log.Warn("OpenTelemetry endpoints not configured, export will be disabled")

		return &Provider{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}
	client := exporterClient(cfg.Timeout, cfg.DNSCache)

	if cfg.TracesEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.TracesEndpoint),
			otlptracehttp.WithTimeout(cfg.Timeout),
			otlptracehttp.WithHTTPClient(client),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		p.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)

		otel.SetTracerProvider(p.traces)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if cfg.LogsEndpoint != "" {
		exporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(cfg.LogsEndpoint),
			otlploghttp.WithTimeout(cfg.Timeout),
			otlploghttp.WithHTTPClient(client),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create OTLP log exporter: %w", err), p.Shutdown(ctx))
		}

		p.logs = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)
	}

	log.Info("OpenTelemetry initialized",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"traces_endpoint", cfg.TracesEndpoint,
		"logs_endpoint", cfg.LogsEndpoint,
	)

	return p, nil
}

// TracingEnabled reports whether spans are exported.
func (p *Provider) TracingEnabled() bool {
	return p != nil && p.traces != nil
}

// LogHandler returns an slog handler that forwards records to the log
// exporter, or nil when log export is disabled.
func (p *Provider) LogHandler() slog.Handler { //nolint:ireturn
	if p == nil || p.logs == nil {
		return nil
	}

	return otelslog.NewHandler(scopeName, otelslog.WithLoggerProvider(p.logs))
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.traces != nil {
		errs = append(errs, p.traces.Shutdown(ctx))
		p.traces = nil
	}

	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
		p.logs = nil
	}

	return errors.Join(errs...)
}
