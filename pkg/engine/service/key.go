package service

import (
	"context"
	"fmt"
	"reflect"
)

// Key names a service and fixes its Go type. The zero Key is invalid.
type Key[T any] struct {
	name string
}

// NewKey creates a typed key. An empty name defaults to T's type name.
func NewKey[T any](name string) Key[T] {
	if name == "" {
		name = reflect.TypeOf((*T)(nil)).Elem().String()
	}
	return Key[T]{name: name}
}

// Name returns the untyped key used by the container.
func (k Key[T]) Name() string { return k.name }

// String implements fmt.Stringer.
func (k Key[T]) String() string { return k.name }

// ProvideInstance registers v under k.
func ProvideInstance[T any](c *Container, k Key[T], v T) {
	c.RegisterInstance(k.name, v)
}

// ProvideSingleton registers a typed constructor under k.
func ProvideSingleton[T any](c *Container, k Key[T], fn func(ctx context.Context, c *Container) (T, error)) {
	c.RegisterSingleton(k.name, func(ctx context.Context, c *Container) (any, error) {
		v, err := fn(ctx, c)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// ProvideTransient registers a typed factory under k.
func ProvideTransient[T any](c *Container, k Key[T], fn func(ctx context.Context, c *Container) (T, error)) {
	c.RegisterTransient(k.name, func(ctx context.Context, c *Container) (any, error) {
		v, err := fn(ctx, c)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// Resolve resolves k and asserts the result to T.
func Resolve[T any](ctx context.Context, c *Container, k Key[T]) (T, error) {
	var zero T
	v, err := c.Get(ctx, k.name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, want %s", ErrTypeMismatch, k.name, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}

// MustResolve is Resolve that panics on error. Use it in setup code where a
// missing service is a programming error.
func MustResolve[T any](ctx context.Context, c *Container, k Key[T]) T {
	v, err := Resolve(ctx, c, k)
	if err != nil {
		panic(err)
	}
	return v
}
