package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
)

// Middleware transforms or validates an event before it is recorded and
// dispatched. Returning a different event replaces it for the rest of the
// chain; returning an error aborts the publish.
type Middleware interface {
	Process(ctx context.Context, evt Event) (Event, error)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, evt Event) (Event, error)

// Process implements Middleware.
func (f MiddlewareFunc) Process(ctx context.Context, evt Event) (Event, error) {
	return f(ctx, evt)
}

// ErrInvalidTimestamp is returned by ValidateTimestamp.
var ErrInvalidTimestamp = errors.New("event timestamp must be positive")

// ErrMissingSource is returned by RequireSource.
var ErrMissingSource = errors.New("event source is required")

// ValidateTimestamp rejects events whose timestamp is zero or not after the
// Unix epoch.
func ValidateTimestamp() Middleware {
	return MiddlewareFunc(func(_ context.Context, evt Event) (Event, error) {
		ts := evt.Timestamp()
		if ts.IsZero() || ts.UnixNano() <= 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, ts)
		}
		return evt, nil
	})
}

// RequireSource rejects events with an empty source.
func RequireSource() Middleware {
	return MiddlewareFunc(func(_ context.Context, evt Event) (Event, error) {
		if evt.Source() == "" {
			return nil, ErrMissingSource
		}
		return evt, nil
	})
}

// LoggingMiddleware logs every event at debug level and passes it through.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return MiddlewareFunc(func(_ context.Context, evt Event) (Event, error) {
		observability.LogEventPublished(logger, string(evt.Kind()), evt.ID(), evt.Source())
		return evt, nil
	})
}
