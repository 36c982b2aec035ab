package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPublish records one publish call: how many handlers it reached,
	// how long it took, and whether middleware rejected it.
	RecordPublish(ctx context.Context, kind string, handlers int, duration time.Duration, err error)

	// RecordHandlerError records an isolated handler failure.
	RecordHandlerError(ctx context.Context, kind string)

	// RecordFrame records one update loop iteration.
	RecordFrame(ctx context.Context, duration time.Duration, systemErrors int)

	// RecordServiceConstruction records a singleton construction attempt.
	RecordServiceConstruction(ctx context.Context, key string, duration time.Duration, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsPublished metric.Int64Counter
	eventsHandled   metric.Int64Counter
	eventErrors     metric.Int64Counter
	publishLatency  metric.Float64Histogram
	frames          metric.Int64Counter
	frameDuration   metric.Float64Histogram
	systemErrors    metric.Int64Counter
	constructions   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("rpgengine")
	m := &otelMetrics{}
	var err error

	if m.eventsPublished, err = meter.Int64Counter("rpgengine.events.published",
		metric.WithDescription("Number of publish calls"),
	); err != nil {
		return nil, err
	}

	if m.eventsHandled, err = meter.Int64Counter("rpgengine.events.handled",
		metric.WithDescription("Number of handler invocations completed"),
	); err != nil {
		return nil, err
	}

	if m.eventErrors, err = meter.Int64Counter("rpgengine.events.errors",
		metric.WithDescription("Number of middleware rejections and handler failures"),
	); err != nil {
		return nil, err
	}

	if m.publishLatency, err = meter.Float64Histogram("rpgengine.publish.latency_ms",
		metric.WithDescription("Publish latency including handler fan-out"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.frames, err = meter.Int64Counter("rpgengine.frames",
		metric.WithDescription("Number of update loop frames"),
	); err != nil {
		return nil, err
	}

	if m.frameDuration, err = meter.Float64Histogram("rpgengine.frame.duration_ms",
		metric.WithDescription("Update loop frame duration"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.systemErrors, err = meter.Int64Counter("rpgengine.system.errors",
		metric.WithDescription("Number of failed per-frame system updates"),
	); err != nil {
		return nil, err
	}

	if m.constructions, err = meter.Int64Counter("rpgengine.service.constructions",
		metric.WithDescription("Number of singleton construction attempts"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPublish records a publish call.
func (m *otelMetrics) RecordPublish(ctx context.Context, kind string, handlers int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))

	m.eventsPublished.Add(ctx, 1, attrs)
	if err != nil {
		m.eventErrors.Add(ctx, 1, attrs)
		return
	}
	m.eventsHandled.Add(ctx, int64(handlers), attrs)
	m.publishLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordHandlerError records a handler failure.
func (m *otelMetrics) RecordHandlerError(ctx context.Context, kind string) {
	m.eventErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordFrame records a frame.
func (m *otelMetrics) RecordFrame(ctx context.Context, duration time.Duration, systemErrors int) {
	m.frames.Add(ctx, 1)
	m.frameDuration.Record(ctx, float64(duration.Microseconds())/1000)
	if systemErrors > 0 {
		m.systemErrors.Add(ctx, int64(systemErrors))
	}
}

// RecordServiceConstruction records a construction attempt.
func (m *otelMetrics) RecordServiceConstruction(ctx context.Context, key string, _ time.Duration, err error) {
	m.constructions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", key),
		attribute.Bool("success", err == nil),
	))
}
