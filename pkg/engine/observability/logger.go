// Package observability provides structured logging, metrics, and tracing
// for the engine runtime.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when disabled.
// Every Log helper tolerates a nil logger.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds a JSON logger writing to w. Debug mode lowers the level
// to Debug; otherwise Info.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// EnrichLogger tags a logger with the component emitting records.
//
// Example:
//
//	busLog := EnrichLogger(logger, "event_bus")
//	busLog.Info("started") // includes component=event_bus
func EnrichLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("component", component))
}

// LogStateTransition logs an engine state change.
func LogStateTransition(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Info("engine state changed",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogInvalidTransition logs a command ignored because of the current state.
func LogInvalidTransition(logger *slog.Logger, command, state string) {
	if logger == nil {
		return
	}
	logger.Warn("engine command ignored",
		slog.String("command", command),
		slog.String("state", state),
	)
}

// LogEventPublished logs an event that passed the middleware chain.
func LogEventPublished(logger *slog.Logger, kind, eventID, source string) {
	if logger == nil {
		return
	}
	logger.Debug("event published",
		slog.String("kind", kind),
		slog.String("event_id", eventID),
		slog.String("source", source),
	)
}

// LogPublishRejected logs a middleware step that aborted a publish.
func LogPublishRejected(logger *slog.Logger, kind string, step int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("event rejected by middleware",
		slog.String("kind", kind),
		slog.Int("step", step),
		slog.String("error", err.Error()),
	)
}

// LogHandlerError logs an isolated handler failure.
func LogHandlerError(logger *slog.Logger, kind, handler string, err error) {
	if logger == nil {
		return
	}
	logger.Error("event handler failed",
		slog.String("kind", kind),
		slog.String("handler", handler),
		slog.String("error", err.Error()),
	)
}

// LogUnsubscribeMissing logs an unsubscribe for a subscription the bus no longer holds.
func LogUnsubscribeMissing(logger *slog.Logger, kind string) {
	if logger == nil {
		return
	}
	logger.Warn("unsubscribe: handler not registered",
		slog.String("kind", kind),
	)
}

// LogServiceConstructed logs a singleton construction.
func LogServiceConstructed(logger *slog.Logger, key string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("service constructed",
		slog.String("service", key),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogServiceError logs a non-fatal service lifecycle failure, e.g. a
// shutdown hook error during teardown.
func LogServiceError(logger *slog.Logger, key, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("service hook failed",
		slog.String("service", key),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogSystemError logs a per-frame system failure.
func LogSystemError(logger *slog.Logger, system string, frame int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("system update failed",
		slog.String("system", system),
		slog.Int64("frame", frame),
		slog.String("error", err.Error()),
	)
}

// LogSlowFrame logs a frame that overran its interval.
func LogSlowFrame(logger *slog.Logger, frame int64, duration, budget time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("frame overran interval",
		slog.Int64("frame", frame),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
		slog.Float64("budget_ms", float64(budget.Microseconds())/1000),
	)
}

// LogLoopFailure logs a fatal update loop error.
func LogLoopFailure(logger *slog.Logger, frame int64, err error) {
	if logger == nil {
		return
	}
	logger.Error("update loop failed",
		slog.Int64("frame", frame),
		slog.String("error", err.Error()),
	)
}

// LogTaskError logs a background task that returned an error.
func LogTaskError(logger *slog.Logger, task string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("background task ended with error",
		slog.String("task", task),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
