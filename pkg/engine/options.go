package engine

import (
	"log/slog"

	"github.com/randalmurphal/rpgengine/pkg/engine/config"
	"github.com/randalmurphal/rpgengine/pkg/engine/event"
	"github.com/randalmurphal/rpgengine/pkg/engine/journal"
	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
	"github.com/randalmurphal/rpgengine/pkg/engine/service"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
// Default: config.Default()
//
// Example:
//
//	cfg, err := config.Load("engine.yaml")
//	if err != nil {
//	    return err
//	}
//	eng := engine.New(engine.WithConfig(cfg))
func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger used by the engine and, unless they are
// supplied separately, its bus and container.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.baseLogger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics for publishes, frames, and
// service construction. Disabled by default.
func WithMetrics(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.metrics = observability.NewMetricsRecorder()
		} else {
			e.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets the recorder directly, for example an
// observability.PrometheusMetrics. A nil recorder disables metrics.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		e.metrics = m
	}
}

// WithTracing enables OpenTelemetry spans for publishes and service
// construction. Disabled by default.
func WithTracing(enabled bool) Option {
	return func(e *Engine) {
		if enabled {
			e.spans = observability.NewSpanManager()
		} else {
			e.spans = observability.NoopSpanManager{}
		}
	}
}

// WithBus supplies the event bus instead of creating one from the config.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithContainer supplies the service container. Services registered on it
// before Initialize are constructed during Initialize.
func WithContainer(c *service.Container) Option {
	return func(e *Engine) {
		e.container = c
	}
}

// WithJournal records lifecycle events to store. The recorder is attached
// during Initialize and detached during Shutdown. The store is not closed by
// the engine.
func WithJournal(store journal.Store) Option {
	return func(e *Engine) {
		e.journal = store
	}
}
