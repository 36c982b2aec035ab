package engine

import (
	"errors"
	"fmt"
)

// ErrLoopFailed is matched by every *LoopError.
var ErrLoopFailed = errors.New("update loop failed")

// LoopError reports a failure in the update loop's own control flow, as
// opposed to an isolated system failure. It stops the engine.
type LoopError struct {
	// Frame is the frame being processed.
	Frame int64
	// Err is the underlying error. Nil when the loop panicked.
	Err error
	// Panic holds the recovered value when the loop panicked.
	Panic any
	// Stack is the stack trace captured at the panic.
	Stack string
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("update loop panicked at frame %d: %v", e.Frame, e.Panic)
	}
	return fmt.Sprintf("update loop failed at frame %d: %v", e.Frame, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LoopError) Unwrap() error {
	return e.Err
}

// Is reports ErrLoopFailed as a match.
func (e *LoopError) Is(target error) bool {
	return target == ErrLoopFailed
}

// SystemError wraps a per-frame system failure.
type SystemError struct {
	System string
	Frame  int64
	Err    error
	Panic  any
}

// Error implements the error interface.
func (e *SystemError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("system %s panicked at frame %d: %v", e.System, e.Frame, e.Panic)
	}
	return fmt.Sprintf("system %s at frame %d: %v", e.System, e.Frame, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SystemError) Unwrap() error {
	return e.Err
}
