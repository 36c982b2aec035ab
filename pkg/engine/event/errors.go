package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for publishing.
var (
	// ErrMiddlewareRejected is matched by every *MiddlewareError.
	ErrMiddlewareRejected = errors.New("event rejected by middleware")

	// ErrNilEvent indicates Publish was called with a nil event, or a
	// middleware step returned nil without an error.
	ErrNilEvent = errors.New("nil event")

	// ErrReentrantPublish indicates a handler tried to publish on the bus
	// that is currently dispatching to it. Publish is serialized, so waiting
	// would deadlock.
	ErrReentrantPublish = errors.New("publish called from a handler of the same bus")
)

// MiddlewareError reports the middleware step that aborted a publish.
// The event was neither recorded in history nor dispatched.
type MiddlewareError struct {
	// Event is the event as it entered the failing step.
	Event Event
	// Step is the zero-based position of the failing middleware.
	Step int
	// Err is the error the step returned.
	Err error
}

// Error implements the error interface.
func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("event %s (%s): middleware %d: %v", e.Event.ID(), e.Event.Kind(), e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *MiddlewareError) Unwrap() error {
	return e.Err
}

// Is reports ErrMiddlewareRejected as a match.
func (e *MiddlewareError) Is(target error) bool {
	return target == ErrMiddlewareRejected
}

// HandlerError describes an isolated handler failure. Publish never returns
// it; the bus logs it, counts it, and passes it to BusConfig.OnHandlerError.
type HandlerError struct {
	Event   Event
	Handler string
	// Panic holds the recovered value when the handler panicked.
	Panic any
	Err   error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("event %s (%s): handler %s panicked: %v", e.Event.ID(), e.Event.Kind(), e.Handler, e.Panic)
	}
	return fmt.Sprintf("event %s (%s): handler %s: %v", e.Event.ID(), e.Event.Kind(), e.Handler, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
