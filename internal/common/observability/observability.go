// internal/common/observability/observability.go
package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Config selects the exporters.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
	// Registerer receives the otel prometheus collector. Defaults to prometheus.DefaultRegisterer.
	Registerer promclient.Registerer
}

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

// New wires the otel meter provider to a prometheus exporter and, when a jaeger
// endpoint is configured, a batching tracer provider.
func New(cfg Config) (*Observability, error) {
	opts := []prometheus.Option{}
	if cfg.Registerer != nil {
		opts = append(opts, prometheus.WithRegisterer(cfg.Registerer))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewWithAttributes("", attribute.String("service.name", cfg.ServiceName))

	o := &Observability{
		meterProvider: metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res)),
	}
	otel.SetMeterProvider(o.meterProvider)

	if cfg.JaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("failed to create jaeger exporter: %w", err)
		}
		o.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(o.tracerProvider)
		o.tracer = o.tracerProvider.Tracer(cfg.ServiceName)
	} else {
		o.tracer = tracenoop.NewTracerProvider().Tracer(cfg.ServiceName)
	}

	if err := o.initInstruments(o.meterProvider.Meter(cfg.ServiceName)); err != nil {
		return nil, err
	}
	return o, nil
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	o := &Observability{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
	_ = o.initInstruments(noop.NewMeterProvider().Meter("noop"))
	return o
}

func (o *Observability) initInstruments(meter otelmetric.Meter) error {
	var err error
	o.jobCounter, err = meter.Int64Counter(
		"automation.jobs.processed",
		otelmetric.WithDescription("Number of automation jobs that reached a terminal state"),
	)
	if err != nil {
		return fmt.Errorf("failed to create job counter: %w", err)
	}

	o.jobDuration, err = meter.Float64Histogram(
		"automation.jobs.duration",
		otelmetric.WithDescription("Automation run duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create job duration histogram: %w", err)
	}
	return nil
}

// StartSpan starts a span named name. Callers must End the returned span.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// Shutdown flushes pending spans and stops the providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	var firstErr error
	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if o.meterProvider != nil {
		if err := o.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
