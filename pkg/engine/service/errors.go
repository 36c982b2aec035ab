package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for service resolution.
var (
	// ErrServiceNotFound indicates a key has no descriptor of any kind.
	ErrServiceNotFound = errors.New("service not found")

	// ErrConstructionFailed is matched by every *ConstructionError.
	ErrConstructionFailed = errors.New("service construction failed")

	// ErrCircularDependency indicates a constructor resolved, directly or
	// through other constructors, the key it is building.
	ErrCircularDependency = errors.New("circular service dependency")

	// ErrNilService indicates a constructor or factory returned a nil
	// instance without an error.
	ErrNilService = errors.New("constructor returned nil service")

	// ErrTypeMismatch indicates a typed resolution found an instance of a
	// different type under the key.
	ErrTypeMismatch = errors.New("service type mismatch")
)

// NotFoundError reports the key that could not be resolved.
type NotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("service %q not found", e.Key)
}

// Unwrap returns ErrServiceNotFound for errors.Is support.
func (e *NotFoundError) Unwrap() error {
	return ErrServiceNotFound
}

// ConstructionError wraps a constructor, factory, or Initialize hook failure.
type ConstructionError struct {
	// Key is the service being constructed.
	Key string
	// Err is the underlying error. Nil when the constructor panicked.
	Err error
	// Panic holds the recovered value when the constructor panicked.
	Panic any
	// Stack is the stack trace captured at the panic.
	Stack string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("construct service %q: panicked: %v", e.Key, e.Panic)
	}
	return fmt.Sprintf("construct service %q: %v", e.Key, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// Is reports ErrConstructionFailed as a match.
func (e *ConstructionError) Is(target error) bool {
	return target == ErrConstructionFailed
}
