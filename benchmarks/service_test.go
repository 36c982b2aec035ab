package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/rpgengine/pkg/engine/service"
)

type component struct{ id int }

func newContainer() *service.Container {
	return service.New(service.Config{Logger: quietLogger()})
}

// BenchmarkResolve_CachedSingleton measures the lock-free fast path.
func BenchmarkResolve_CachedSingleton(b *testing.B) {
	c := newContainer()
	c.RegisterSingleton("svc", func(context.Context, *service.Container) (any, error) {
		return &component{}, nil
	})
	ctx := context.Background()
	_, _ = c.Get(ctx, "svc")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, "svc")
	}
}

// BenchmarkResolve_CachedSingleton_Parallel measures the fast path under contention.
func BenchmarkResolve_CachedSingleton_Parallel(b *testing.B) {
	c := newContainer()
	c.RegisterSingleton("svc", func(context.Context, *service.Container) (any, error) {
		return &component{}, nil
	})
	ctx := context.Background()
	_, _ = c.Get(ctx, "svc")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = c.Get(ctx, "svc")
		}
	})
}

// BenchmarkResolve_Transient measures factory invocation per resolve.
func BenchmarkResolve_Transient(b *testing.B) {
	c := newContainer()
	c.RegisterTransient("svc", func(context.Context, *service.Container) (any, error) {
		return &component{}, nil
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, "svc")
	}
}

// BenchmarkResolve_Typed measures generic resolution overhead.
func BenchmarkResolve_Typed(b *testing.B) {
	c := newContainer()
	key := service.NewKey[*component]("svc")
	service.ProvideInstance(c, key, &component{id: 1})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = service.Resolve(ctx, c, key)
	}
}

// BenchmarkInitializeAll_100 measures constructing 100 singletons.
func BenchmarkInitializeAll_100(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		c := newContainer()
		for n := 0; n < 100; n++ {
			n := n
			c.RegisterSingleton(fmt.Sprintf("svc-%d", n), func(context.Context, *service.Container) (any, error) {
				return &component{id: n}, nil
			})
		}
		b.StartTimer()

		_ = c.InitializeAll(ctx)
	}
}
