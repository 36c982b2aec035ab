package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
	"github.com/randalmurphal/rpgengine/pkg/engine/registry"
)

// Kind is a descriptor kind, as reported by List.
type Kind string

// Descriptor kinds.
const (
	KindInstance  Kind = "instance"
	KindSingleton Kind = "singleton"
	KindTransient Kind = "transient"
	KindOverride  Kind = "override"
)

// Constructor builds a singleton. It may resolve its own dependencies
// through c using the ctx it was given.
type Constructor func(ctx context.Context, c *Container) (any, error)

// Factory builds a fresh instance on every resolution.
type Factory func(ctx context.Context, c *Container) (any, error)

// Initializer is implemented by services that need setup after
// construction. The container calls Initialize once, before caching.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Shutdowner is implemented by services that release resources.
// ShutdownAll calls it on every constructed singleton.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Config configures a Container.
type Config struct {
	// Logger receives construction and teardown diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records construction counts.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans traces construction.
	// Default: observability.NoopSpanManager{}
	Spans observability.SpanManager
}

type descriptor struct {
	kind      Kind
	instance  any
	construct Constructor
	factory   Factory
}

// Container resolves services by key.
//
// Resolution precedence is override, cached singleton, instance, singleton
// descriptor, then transient factory. Singletons are constructed at most once
// using double-checked acquisition: a lock-free cache check, then a
// container-wide lock, a second check, and construction.
//
// The lock is re-entrant for the resolution that holds it, including any
// goroutines its constructors start with the ctx they were given. Those
// callers share the lock, so each key also has an in-flight marker: a second
// caller for a key under construction waits for the first instead of
// building it again.
//
// Registration is expected during setup, before concurrent resolution. It is
// safe to call concurrently but does not coordinate with in-flight
// construction.
type Container struct {
	config Config
	logger *slog.Logger

	descriptors *registry.Registry[string, descriptor]
	overrides   *registry.Registry[string, any]
	// singletons holds constructed singletons in construction order.
	singletons *registry.Registry[string, any]

	// constructSem is the container-wide construction lock. A channel lets
	// waiters give up when their ctx ends.
	constructSem chan struct{}
	// holder identifies the resolution currently holding constructSem.
	holder atomic.Pointer[lockOwner]

	flightMu sync.Mutex
	inflight map[string]chan struct{}

	initialized   atomic.Bool
	constructions atomic.Int64
}

// New creates an empty container.
func New(config Config) *Container {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}

	return &Container{
		config:       config,
		logger:       observability.EnrichLogger(config.Logger, "container"),
		descriptors:  registry.New[string, descriptor](),
		overrides:    registry.New[string, any](),
		singletons:   registry.New[string, any](),
		constructSem: make(chan struct{}, 1),
		inflight:     make(map[string]chan struct{}),
	}
}

// RegisterInstance registers an existing value under key.
// It replaces any earlier descriptor for key.
func (c *Container) RegisterInstance(key string, instance any) {
	if instance == nil {
		panic(fmt.Sprintf("service: nil instance for %q", key))
	}
	c.register(key, descriptor{kind: KindInstance, instance: instance})
}

// RegisterSingleton registers a constructor whose result is built once and
// cached. It replaces any earlier descriptor for key.
func (c *Container) RegisterSingleton(key string, construct Constructor) {
	if construct == nil {
		panic(fmt.Sprintf("service: nil constructor for %q", key))
	}
	c.register(key, descriptor{kind: KindSingleton, construct: construct})
}

// RegisterTransient registers a factory called on every resolution.
// It replaces any earlier descriptor for key.
func (c *Container) RegisterTransient(key string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("service: nil factory for %q", key))
	}
	c.register(key, descriptor{kind: KindTransient, factory: factory})
}

func (c *Container) register(key string, d descriptor) {
	// A cached singleton would otherwise shadow the new descriptor.
	// Its Shutdown hook is not called.
	c.singletons.Delete(key)
	c.descriptors.Register(key, d)
}

// Override forces key to resolve to instance, ahead of every descriptor.
// It is meant for substituting test doubles.
func (c *Container) Override(key string, instance any) {
	c.overrides.Register(key, instance)
}

// RemoveOverride drops an override and reports whether one existed.
func (c *Container) RemoveOverride(key string) bool {
	return c.overrides.Delete(key)
}

// Has reports whether key resolves to anything.
func (c *Container) Has(key string) bool {
	return c.overrides.Has(key) || c.descriptors.Has(key)
}

// Get resolves key.
//
// It returns a *NotFoundError when key has no descriptor and a
// *ConstructionError when building the service fails. A caller waiting for
// the construction lock gives up with ctx.Err() when ctx ends.
func (c *Container) Get(ctx context.Context, key string) (any, error) {
	if v, ok := c.overrides.Get(key); ok {
		return v, nil
	}
	if v, ok := c.singletons.Get(key); ok {
		return v, nil
	}

	d, ok := c.descriptors.Get(key)
	if !ok {
		return nil, &NotFoundError{Key: key}
	}

	switch d.kind {
	case KindInstance:
		return d.instance, nil
	case KindSingleton:
		return c.singleton(ctx, key)
	default:
		return c.build(ctx, key, d.factory)
	}
}

type lockKey struct{ c *Container }

type chainKey struct{ c *Container }

// lockOwner is a per-acquisition token. Only the token stored in holder
// grants re-entry; a ctx that outlives its acquisition grants nothing.
type lockOwner struct{}

func (c *Container) holdsLock(ctx context.Context) bool {
	tok, _ := ctx.Value(lockKey{c}).(*lockOwner)
	return tok != nil && c.holder.Load() == tok
}

// singleton is the locked half of double-checked acquisition.
func (c *Container) singleton(ctx context.Context, key string) (any, error) {
	if !c.holdsLock(ctx) {
		select {
		case c.constructSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		tok := &lockOwner{}
		c.holder.Store(tok)
		defer func() {
			c.holder.Store(nil)
			<-c.constructSem
		}()
		ctx = context.WithValue(ctx, lockKey{c}, tok)
	}

	for {
		d, ok := c.descriptors.Get(key)
		if !ok {
			return nil, &NotFoundError{Key: key}
		}
		if d.kind != KindSingleton {
			// Re-registered while this caller waited.
			return c.Get(ctx, key)
		}

		c.flightMu.Lock()
		if v, ok := c.singletons.Get(key); ok {
			c.flightMu.Unlock()
			return v, nil
		}
		done, busy := c.inflight[key]
		if !busy {
			done = make(chan struct{})
			c.inflight[key] = done
		}
		c.flightMu.Unlock()

		if !busy {
			return c.construct(ctx, key, d.construct, done)
		}

		// Waiting on our own construction would never finish.
		if err := c.cycleError(ctx, key); err != nil {
			return nil, err
		}
		select {
		case <-done:
			// Cached on success. After a failure the next pass builds it here.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// construct builds key's singleton, caches it on success, and releases the
// key's in-flight marker.
func (c *Container) construct(ctx context.Context, key string, fn Constructor, done chan struct{}) (any, error) {
	instance, err := c.build(ctx, key, Factory(fn))

	c.flightMu.Lock()
	if err == nil {
		c.singletons.Register(key, instance)
	}
	delete(c.inflight, key)
	c.flightMu.Unlock()
	close(done)

	if err != nil {
		return nil, err
	}
	return instance, nil
}

// cycleError returns an ErrCircularDependency error when key is already
// being built further up ctx's resolution chain.
func (c *Container) cycleError(ctx context.Context, key string) error {
	chain, _ := ctx.Value(chainKey{c}).([]string)
	if !slices.Contains(chain, key) {
		return nil
	}
	path := strings.Join(append(slices.Clone(chain), key), " -> ")
	return fmt.Errorf("%w: %s", ErrCircularDependency, path)
}

// build runs fn and the optional Initialize hook for key.
func (c *Container) build(ctx context.Context, key string, fn Factory) (any, error) {
	if err := c.cycleError(ctx, key); err != nil {
		return nil, err
	}
	chain, _ := ctx.Value(chainKey{c}).([]string)
	ctx = context.WithValue(ctx, chainKey{c}, append(slices.Clone(chain), key))

	ctx, span := c.config.Spans.StartConstructSpan(ctx, key)
	elapsed := observability.TimedOperation()

	instance, err := c.invoke(ctx, key, fn)

	durationMs := elapsed()
	c.config.Metrics.RecordServiceConstruction(ctx, key, time.Duration(durationMs*float64(time.Millisecond)), err)
	c.config.Spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogServiceError(c.logger, key, "construct", err)
		return nil, err
	}

	c.constructions.Add(1)
	observability.LogServiceConstructed(c.logger, key, durationMs)
	return instance, nil
}

func (c *Container) invoke(ctx context.Context, key string, fn Factory) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &ConstructionError{Key: key, Panic: r, Stack: string(debug.Stack())}
		}
	}()

	instance, err = fn(ctx, c)
	if err == nil && instance == nil {
		err = ErrNilService
	}
	if err == nil {
		if init, ok := instance.(Initializer); ok {
			if ierr := init.Initialize(ctx); ierr != nil {
				err = fmt.Errorf("initialize: %w", ierr)
			}
		}
	}
	if err != nil {
		return nil, &ConstructionError{Key: key, Err: err}
	}
	return instance, nil
}

// InitializeAll constructs every registered singleton in registration order.
// Once it has succeeded, later calls return nil without doing anything until
// ShutdownAll resets the container.
func (c *Container) InitializeAll(ctx context.Context) error {
	if c.initialized.Load() {
		return nil
	}

	var err error
	c.descriptors.Range(func(key string, d descriptor) bool {
		if d.kind != KindSingleton {
			return true
		}
		if _, err = c.Get(ctx, key); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}

	c.initialized.Store(true)
	return nil
}

// Initialized reports whether InitializeAll has completed since the last
// ShutdownAll.
func (c *Container) Initialized() bool {
	return c.initialized.Load()
}

// ShutdownAll calls Shutdown on every constructed singleton in reverse
// construction order. A failing hook is logged and teardown continues; all
// failures are returned joined. Afterwards every table is cleared and the
// container may be reused.
//
// Registered instances and overrides are owned by whoever registered them
// and are not shut down.
func (c *Container) ShutdownAll(ctx context.Context) error {
	var errs []error
	c.singletons.RangeReverse(func(key string, instance any) bool {
		s, ok := instance.(Shutdowner)
		if !ok {
			return true
		}
		if err := shutdownOne(ctx, s); err != nil {
			observability.LogServiceError(c.logger, key, "shutdown", err)
			errs = append(errs, fmt.Errorf("shutdown %s: %w", key, err))
		}
		return true
	})

	c.singletons.Clear()
	c.descriptors.Clear()
	c.overrides.Clear()
	c.initialized.Store(false)

	return errors.Join(errs...)
}

func shutdownOne(ctx context.Context, s Shutdowner) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return s.Shutdown(ctx)
}

// List returns every resolvable key with the kind that resolves it.
// Overrides take precedence over descriptors.
func (c *Container) List() map[string]Kind {
	out := make(map[string]Kind, c.descriptors.Len()+c.overrides.Len())
	c.descriptors.Range(func(key string, d descriptor) bool {
		out[key] = d.kind
		return true
	})
	for _, key := range c.overrides.Keys() {
		out[key] = KindOverride
	}
	return out
}

// Constructed returns the keys of cached singletons in construction order.
func (c *Container) Constructed() []string {
	return c.singletons.Keys()
}

// Constructions returns how many times a constructor or factory has
// succeeded, including transient builds.
func (c *Container) Constructions() int64 {
	return c.constructions.Load()
}
