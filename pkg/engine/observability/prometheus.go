package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder with Prometheus collectors.
// Hosts that scrape instead of push use it in place of the OTel recorder.
type PrometheusMetrics struct {
	eventsPublished *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
	eventErrors     *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	frames          prometheus.Counter
	frameDuration   prometheus.Histogram
	systemErrors    prometheus.Counter
	constructions   *prometheus.CounterVec
}

// NewPrometheusMetrics creates the engine collectors and registers them with
// reg. A nil reg uses prometheus.DefaultRegisterer. Registering twice with
// the same registerer fails with prometheus.AlreadyRegisteredError.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total publish calls",
		}, []string{"kind"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "events",
			Name:      "handled_total",
			Help:      "Total handler invocations completed",
		}, []string{"kind"}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "events",
			Name:      "errors_total",
			Help:      "Total middleware rejections and handler failures",
		}, []string{"kind"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rpgengine",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Publish latency including handler fan-out",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"kind"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "loop",
			Name:      "frames_total",
			Help:      "Total update loop frames",
		}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rpgengine",
			Subsystem: "loop",
			Name:      "frame_duration_seconds",
			Help:      "Update loop frame duration",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		systemErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "loop",
			Name:      "system_errors_total",
			Help:      "Total failed per-frame system updates",
		}),
		constructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpgengine",
			Subsystem: "services",
			Name:      "constructions_total",
			Help:      "Total singleton construction attempts",
		}, []string{"service", "success"}),
	}

	for _, c := range []prometheus.Collector{
		m.eventsPublished, m.eventsHandled, m.eventErrors, m.publishDuration,
		m.frames, m.frameDuration, m.systemErrors, m.constructions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordPublish records a publish call.
func (m *PrometheusMetrics) RecordPublish(_ context.Context, kind string, handlers int, duration time.Duration, err error) {
	m.eventsPublished.WithLabelValues(kind).Inc()
	if err != nil {
		m.eventErrors.WithLabelValues(kind).Inc()
		return
	}
	m.eventsHandled.WithLabelValues(kind).Add(float64(handlers))
	m.publishDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordHandlerError records a handler failure.
func (m *PrometheusMetrics) RecordHandlerError(_ context.Context, kind string) {
	m.eventErrors.WithLabelValues(kind).Inc()
}

// RecordFrame records a frame.
func (m *PrometheusMetrics) RecordFrame(_ context.Context, duration time.Duration, systemErrors int) {
	m.frames.Inc()
	m.frameDuration.Observe(duration.Seconds())
	if systemErrors > 0 {
		m.systemErrors.Add(float64(systemErrors))
	}
}

// RecordServiceConstruction records a construction attempt.
func (m *PrometheusMetrics) RecordServiceConstruction(_ context.Context, key string, _ time.Duration, err error) {
	m.constructions.WithLabelValues(key, strconv.FormatBool(err == nil)).Inc()
}

var _ MetricsRecorder = (*PrometheusMetrics)(nil)
