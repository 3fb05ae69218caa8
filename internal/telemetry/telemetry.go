// Package telemetry wires OpenTelemetry tracing and metrics for the
// pipeline, exported via Prometheus. Observability itself is not excluded
// by the Non-goals (those name strict latency budgets and horizontal
// scaling, not instrumentation), and the otel + Prometheus exporter stack
// is the pack's own choice for this concern (vanducng-goclaw's go.mod).
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider bundles the tracer and meter used across the pipeline stages.
type Provider struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider

	Tracer trace.Tracer

	ActiveSessions metric.Int64UpDownCounter
	StageDuration  metric.Float64Histogram
	WorkerPoolUsed metric.Int64UpDownCounter
}

// New builds a Provider with an in-process Prometheus exporter. Callers
// expose the registry at /metrics themselves (spec §6 is silent on a
// metrics endpoint; this is ambient observability, not a spec'd route).
func New(serviceName string) (*Provider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	tracerProvider := sdktrace.NewTracerProvider()

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)

	meter := meterProvider.Meter(serviceName)

	activeSessions, err := meter.Int64UpDownCounter("doorbell_active_sessions",
		metric.WithDescription("number of sessions currently held by the orchestrator"))
	if err != nil {
		return nil, fmt.Errorf("create active_sessions gauge: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("doorbell_stage_duration_seconds",
		metric.WithDescription("wall time spent in each pipeline stage"))
	if err != nil {
		return nil, fmt.Errorf("create stage_duration histogram: %w", err)
	}

	workerPoolUsed, err := meter.Int64UpDownCounter("doorbell_workpool_slots_in_use",
		metric.WithDescription("CPU-bound worker pool slots currently occupied"))
	if err != nil {
		return nil, fmt.Errorf("create workpool gauge: %w", err)
	}

	return &Provider{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(serviceName),
		ActiveSessions: activeSessions,
		StageDuration:  stageDuration,
		WorkerPoolUsed: workerPoolUsed,
	}, nil
}

// Shutdown flushes and releases the tracer/meter providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		return err
	}
	return p.MeterProvider.Shutdown(ctx)
}

// StageSpan starts a span for one pipeline stage, tagged with the session
// id, used around each of the nine pipeline task steps (spec §4.7).
func (p *Provider) StageSpan(ctx context.Context, stage, sessionID string) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, stage, trace.WithAttributes(attribute.String("session_id", sessionID)))
}
