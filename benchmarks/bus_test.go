package benchmarks

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/rpgengine/pkg/engine/event"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBus(handlers int) *event.Bus {
	bus := event.NewBus(event.BusConfig{Logger: quietLogger()})
	for i := 0; i < handlers; i++ {
		bus.Subscribe(event.KindPing, event.HandlerFunc(func(context.Context, event.Event) error {
			return nil
		}))
	}
	return bus
}

func benchmarkPublish(b *testing.B, handlers int) {
	bus := newBus(handlers)
	ctx := context.Background()
	ping := event.NewPing("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(ctx, ping)
	}
}

// BenchmarkPublish_NoHandlers measures middleware-free publish overhead.
func BenchmarkPublish_NoHandlers(b *testing.B) { benchmarkPublish(b, 0) }

// BenchmarkPublish_1Handler measures the inline single-handler path.
func BenchmarkPublish_1Handler(b *testing.B) { benchmarkPublish(b, 1) }

// BenchmarkPublish_10Handlers measures concurrent fan-out.
func BenchmarkPublish_10Handlers(b *testing.B) { benchmarkPublish(b, 10) }

// BenchmarkPublish_DefaultMiddleware measures the engine's default chain.
func BenchmarkPublish_DefaultMiddleware(b *testing.B) {
	bus := newBus(1)
	bus.Use(event.ValidateTimestamp())
	bus.Use(event.LoggingMiddleware(quietLogger()))
	ctx := context.Background()
	ping := event.NewPing("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(ctx, ping)
	}
}

// BenchmarkPublish_Parallel measures contention on the publish slot.
func BenchmarkPublish_Parallel(b *testing.B) {
	bus := newBus(1)
	ctx := context.Background()
	ping := event.NewPing("bench")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = bus.Publish(ctx, ping)
		}
	})
}

// BenchmarkHistoryOf measures typed history scans over a full ring.
func BenchmarkHistoryOf(b *testing.B) {
	bus := newBus(0)
	ctx := context.Background()
	for i := 0; i < event.DefaultMaxHistory; i++ {
		if i%2 == 0 {
			_ = bus.Publish(ctx, event.NewPing("bench"))
		} else {
			_ = bus.Publish(ctx, event.EngineStarted{Meta: event.NewMeta("bench")})
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = event.HistoryOf[event.LifecycleEvent](bus, 10)
	}
}
