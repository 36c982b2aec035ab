package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/rpgengine/pkg/engine/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foo struct{ n int }

func newTestContainer() *service.Container {
	return service.New(service.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// counting returns a constructor that counts its calls.
func counting(calls *atomic.Int32, delay time.Duration) service.Constructor {
	return func(context.Context, *service.Container) (any, error) {
		n := calls.Add(1)
		time.Sleep(delay)
		return &foo{n: int(n)}, nil
	}
}

func TestSingletonConstructedOnceUnderConcurrency(t *testing.T) {
	c := newTestContainer()
	var calls atomic.Int32
	c.RegisterSingleton("foo", counting(&calls, 5*time.Millisecond))

	const n = 50
	results := make([]any, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "foo")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0].(*foo), r.(*foo))
	}
	assert.Equal(t, []string{"foo"}, c.Constructed())
}

func TestGetNotFound(t *testing.T) {
	c := newTestContainer()

	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrServiceNotFound)

	var nf *service.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Key)
}

func TestInstance(t *testing.T) {
	c := newTestContainer()
	inst := &foo{n: 7}
	c.RegisterInstance("foo", inst)

	v, err := c.Get(context.Background(), "foo")
	require.NoError(t, err)
	assert.Same(t, inst, v)
	assert.Empty(t, c.Constructed(), "instances are not constructed")
}

func TestTransientIsFreshEachTime(t *testing.T) {
	c := newTestContainer()
	var calls atomic.Int32
	c.RegisterTransient("foo", service.Factory(counting(&calls, 0)))

	a, err := c.Get(context.Background(), "foo")
	require.NoError(t, err)
	b, err := c.Get(context.Background(), "foo")
	require.NoError(t, err)

	assert.NotSame(t, a.(*foo), b.(*foo))
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, c.Constructed(), "transients are never cached")
	assert.Equal(t, int64(2), c.Constructions())
}

func TestRegistrationOverwritesAnyKind(t *testing.T) {
	c := newTestContainer()
	ctx := context.Background()
	var calls atomic.Int32

	c.RegisterSingleton("svc", counting(&calls, 0))
	first, err := c.Get(ctx, "svc")
	require.NoError(t, err)

	inst := &foo{n: 99}
	c.RegisterInstance("svc", inst)
	v, err := c.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Same(t, inst, v, "the new instance replaces the cached singleton")
	assert.NotSame(t, first.(*foo), v.(*foo))

	c.RegisterTransient("svc", service.Factory(counting(&calls, 0)))
	assert.Equal(t, service.KindTransient, c.List()["svc"])
	v, err = c.Get(ctx, "svc")
	require.NoError(t, err)
	assert.Equal(t, 2, v.(*foo).n)
}

func TestOverrideTakesPrecedence(t *testing.T) {
	c := newTestContainer()
	ctx := context.Background()
	var calls atomic.Int32
	c.RegisterSingleton("foo", counting(&calls, 0))

	_, err := c.Get(ctx, "foo")
	require.NoError(t, err)

	double := &foo{n: -1}
	c.Override("foo", double)
	v, err := c.Get(ctx, "foo")
	require.NoError(t, err)
	assert.Same(t, double, v)
	assert.Equal(t, service.KindOverride, c.List()["foo"])

	assert.True(t, c.RemoveOverride("foo"))
	assert.False(t, c.RemoveOverride("foo"))
	v, err = c.Get(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, 1, v.(*foo).n, "cached singleton is visible again")
}

func TestOverrideWithoutDescriptor(t *testing.T) {
	c := newTestContainer()
	c.Override("only", "value")

	assert.True(t, c.Has("only"))
	v, err := c.Get(context.Background(), "only")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestConstructionFailure(t *testing.T) {
	c := newTestContainer()
	boom := errors.New("boom")
	c.RegisterSingleton("bad", func(context.Context, *service.Container) (any, error) {
		return nil, boom
	})
	c.RegisterInstance("good", "ok")

	_, err := c.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrConstructionFailed)
	assert.ErrorIs(t, err, boom)

	var cerr *service.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "bad", cerr.Key)
	assert.Empty(t, c.Constructed())

	v, err := c.Get(context.Background(), "good")
	require.NoError(t, err, "the container stays usable")
	assert.Equal(t, "ok", v)
}

func TestConstructorPanic(t *testing.T) {
	c := newTestContainer()
	c.RegisterSingleton("bad", func(context.Context, *service.Container) (any, error) {
		panic("exploded")
	})

	_, err := c.Get(context.Background(), "bad")
	var cerr *service.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "exploded", cerr.Panic)
	assert.NotEmpty(t, cerr.Stack)
	assert.Contains(t, err.Error(), "panicked")
}

func TestConstructorReturningNil(t *testing.T) {
	c := newTestContainer()
	c.RegisterSingleton("nil", func(context.Context, *service.Container) (any, error) {
		return nil, nil
	})

	_, err := c.Get(context.Background(), "nil")
	assert.ErrorIs(t, err, service.ErrNilService)
}

func TestWaiterRetriesAfterFailure(t *testing.T) {
	c := newTestContainer()
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	c.RegisterSingleton("flaky", func(context.Context, *service.Container) (any, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return nil, errors.New("first attempt fails")
		}
		return &foo{n: 2}, nil
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "flaky")
		firstErr <- err
	}()
	<-entered

	waiter := make(chan any, 1)
	go func() {
		v, err := c.Get(context.Background(), "flaky")
		assert.NoError(t, err)
		waiter <- v
	}()

	close(release)
	require.Error(t, <-firstErr, "the caller that ran the failing constructor sees the failure")
	v := <-waiter
	assert.Equal(t, 2, v.(*foo).n, "the waiter builds the service itself")
	assert.Equal(t, int32(2), calls.Load())
}

func TestWaitHonoursContext(t *testing.T) {
	c := newTestContainer()
	entered := make(chan struct{})
	release := make(chan struct{})
	c.RegisterSingleton("slow", func(context.Context, *service.Container) (any, error) {
		close(entered)
		<-release
		return &foo{}, nil
	})
	c.RegisterSingleton("other", func(context.Context, *service.Container) (any, error) {
		return &foo{}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), "slow")
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "other")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestNestedDependencyResolution(t *testing.T) {
	c := newTestContainer()
	ctx := context.Background()

	c.RegisterSingleton("db", func(context.Context, *service.Container) (any, error) {
		return &foo{n: 1}, nil
	})
	c.RegisterSingleton("repo", func(ctx context.Context, c *service.Container) (any, error) {
		db, err := c.Get(ctx, "db")
		if err != nil {
			return nil, err
		}
		return &foo{n: db.(*foo).n + 1}, nil
	})

	v, err := c.Get(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, v.(*foo).n)
	assert.Equal(t, []string{"db", "repo"}, c.Constructed(), "dependencies finish constructing first")
}

func TestConcurrentResolutionInsideConstructor(t *testing.T) {
	c := newTestContainer()
	var depCalls atomic.Int32
	c.RegisterSingleton("dep", counting(&depCalls, 10*time.Millisecond))

	results := make([]any, 4)
	c.RegisterSingleton("root", func(ctx context.Context, c *service.Container) (any, error) {
		var wg sync.WaitGroup
		for i := range results {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				v, err := c.Get(ctx, "dep")
				assert.NoError(t, err)
				results[i] = v
			}()
		}
		wg.Wait()
		return &foo{}, nil
	})

	_, err := c.Get(context.Background(), "root")
	require.NoError(t, err)

	assert.Equal(t, int32(1), depCalls.Load())
	for _, r := range results {
		assert.Same(t, results[0].(*foo), r.(*foo))
	}
	assert.Equal(t, []string{"dep", "root"}, c.Constructed())
}

func TestRetainedConstructorContextDoesNotBypassLock(t *testing.T) {
	c := newTestContainer()

	var retained context.Context
	c.RegisterSingleton("root", func(ctx context.Context, _ *service.Container) (any, error) {
		retained = ctx
		return &foo{}, nil
	})
	_, err := c.Get(context.Background(), "root")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	c.RegisterSingleton("slow", func(context.Context, *service.Container) (any, error) {
		close(entered)
		<-release
		return &foo{}, nil
	})
	var otherCalls atomic.Int32
	c.RegisterSingleton("other", counting(&otherCalls, 0))

	go func() {
		_, err := c.Get(context.Background(), "slow")
		assert.NoError(t, err)
	}()
	<-entered

	got := make(chan error, 1)
	go func() {
		_, err := c.Get(retained, "other")
		got <- err
	}()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, otherCalls.Load(), "a finished construction's ctx must wait for the lock")

	close(release)
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("resolution with retained ctx never completed")
	}
	assert.Equal(t, int32(1), otherCalls.Load())
}

func TestCircularDependency(t *testing.T) {
	c := newTestContainer()
	c.RegisterSingleton("a", func(ctx context.Context, c *service.Container) (any, error) {
		return c.Get(ctx, "b")
	})
	c.RegisterSingleton("b", func(ctx context.Context, c *service.Container) (any, error) {
		return c.Get(ctx, "a")
	})

	_, err := c.Get(context.Background(), "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrCircularDependency)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestCircularTransient(t *testing.T) {
	c := newTestContainer()
	c.RegisterTransient("self", func(ctx context.Context, c *service.Container) (any, error) {
		return c.Get(ctx, "self")
	})

	_, err := c.Get(context.Background(), "self")
	assert.ErrorIs(t, err, service.ErrCircularDependency)
}

type lifecycle struct {
	name        string
	initErr     error
	shutdownErr error
	initialized bool
	order       *[]string
}

func (l *lifecycle) Initialize(context.Context) error {
	l.initialized = true
	return l.initErr
}

func (l *lifecycle) Shutdown(context.Context) error {
	*l.order = append(*l.order, l.name)
	return l.shutdownErr
}

func TestInitializerHook(t *testing.T) {
	c := newTestContainer()
	var order []string
	c.RegisterSingleton("svc", func(context.Context, *service.Container) (any, error) {
		return &lifecycle{name: "svc", order: &order}, nil
	})

	v, err := c.Get(context.Background(), "svc")
	require.NoError(t, err)
	assert.True(t, v.(*lifecycle).initialized)
}

func TestInitializerFailureIsNotCached(t *testing.T) {
	c := newTestContainer()
	var order []string
	var calls atomic.Int32
	c.RegisterSingleton("svc", func(context.Context, *service.Container) (any, error) {
		calls.Add(1)
		return &lifecycle{name: "svc", order: &order, initErr: errors.New("not ready")}, nil
	})

	_, err := c.Get(context.Background(), "svc")
	assert.ErrorIs(t, err, service.ErrConstructionFailed)
	assert.ErrorContains(t, err, "initialize: not ready")

	_, err = c.Get(context.Background(), "svc")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInitializeAllIsIdempotent(t *testing.T) {
	c := newTestContainer()
	var a, b atomic.Int32
	c.RegisterSingleton("a", counting(&a, 0))
	c.RegisterInstance("inst", "x")
	c.RegisterSingleton("b", counting(&b, 0))

	require.NoError(t, c.InitializeAll(context.Background()))
	require.NoError(t, c.InitializeAll(context.Background()))

	assert.True(t, c.Initialized())
	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(1), b.Load())
	assert.Equal(t, []string{"a", "b"}, c.Constructed())
}

func TestInitializeAllStopsOnFailure(t *testing.T) {
	c := newTestContainer()
	var later atomic.Int32
	c.RegisterSingleton("bad", func(context.Context, *service.Container) (any, error) {
		return nil, errors.New("nope")
	})
	c.RegisterSingleton("later", counting(&later, 0))

	err := c.InitializeAll(context.Background())
	assert.ErrorIs(t, err, service.ErrConstructionFailed)
	assert.False(t, c.Initialized())
	assert.Equal(t, int32(0), later.Load())
}

func TestShutdownAllReverseOrder(t *testing.T) {
	c := newTestContainer()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		c.RegisterSingleton(name, func(context.Context, *service.Container) (any, error) {
			return &lifecycle{name: name, order: &order}, nil
		})
	}
	c.RegisterInstance("external", &lifecycle{name: "external", order: &order})

	require.NoError(t, c.InitializeAll(context.Background()))
	require.NoError(t, c.ShutdownAll(context.Background()))

	assert.Equal(t, []string{"third", "second", "first"}, order, "registered instances are not shut down")
	assert.False(t, c.Initialized())
	assert.Empty(t, c.List())
	assert.Empty(t, c.Constructed())
}

func TestShutdownAllContinuesPastFailures(t *testing.T) {
	c := newTestContainer()
	var order []string
	c.RegisterSingleton("a", func(context.Context, *service.Container) (any, error) {
		return &lifecycle{name: "a", order: &order}, nil
	})
	c.RegisterSingleton("b", func(context.Context, *service.Container) (any, error) {
		return &lifecycle{name: "b", order: &order, shutdownErr: errors.New("stuck")}, nil
	})

	require.NoError(t, c.InitializeAll(context.Background()))
	err := c.ShutdownAll(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "shutdown b: stuck")
	assert.Equal(t, []string{"b", "a"}, order)
	assert.Empty(t, c.List())
}

func TestContainerReusableAfterShutdown(t *testing.T) {
	c := newTestContainer()
	var calls atomic.Int32
	c.RegisterSingleton("foo", counting(&calls, 0))
	require.NoError(t, c.InitializeAll(context.Background()))
	require.NoError(t, c.ShutdownAll(context.Background()))

	_, err := c.Get(context.Background(), "foo")
	assert.ErrorIs(t, err, service.ErrServiceNotFound)

	c.RegisterSingleton("foo", counting(&calls, 0))
	require.NoError(t, c.InitializeAll(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestList(t *testing.T) {
	c := newTestContainer()
	c.RegisterInstance("i", 1)
	c.RegisterSingleton("s", func(context.Context, *service.Container) (any, error) { return 1, nil })
	c.RegisterTransient("t", func(context.Context, *service.Container) (any, error) { return 1, nil })
	c.Override("o", 1)

	assert.Equal(t, map[string]service.Kind{
		"i": service.KindInstance,
		"s": service.KindSingleton,
		"t": service.KindTransient,
		"o": service.KindOverride,
	}, c.List())
}

func TestRegisterNilPanics(t *testing.T) {
	c := newTestContainer()
	assert.Panics(t, func() { c.RegisterInstance("x", nil) })
	assert.Panics(t, func() { c.RegisterSingleton("x", nil) })
	assert.Panics(t, func() { c.RegisterTransient("x", nil) })
}
