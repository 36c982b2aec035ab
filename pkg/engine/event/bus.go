package event

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
	"go.opentelemetry.io/otel/attribute"
)

// BusConfig configures bus behavior.
type BusConfig struct {
	// MaxHistory bounds the history ring.
	// Default: 1000
	MaxHistory int

	// Logger receives handler failures and middleware rejections.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics records publish and handler metrics.
	// Default: observability.NoopMetrics{}
	Metrics observability.MetricsRecorder

	// Spans traces publish calls.
	// Default: observability.NoopSpanManager{}
	Spans observability.SpanManager

	// OnHandlerError is called for every isolated handler failure, after it
	// has been logged and counted. It must not block.
	OnHandlerError func(err *HandlerError)
}

// DefaultMaxHistory is the history capacity used when BusConfig.MaxHistory is unset.
const DefaultMaxHistory = 1000

// Stats is a point-in-time snapshot of bus activity.
type Stats struct {
	EventsPublished int64
	EventsHandled   int64
	Errors          int64
	Handlers        int
	SubscribedKinds int
	Middleware      int
	History         int
}

// HistoryQuery selects entries from the history ring.
type HistoryQuery struct {
	// Kind keeps only events of this exact kind. Empty keeps all.
	Kind Kind
	// Limit keeps only the most recent matches. Zero keeps all.
	Limit int
}

// Bus routes published events through middleware, records them in a bounded
// history, and fans them out to the handlers subscribed to their kind.
//
// Publish calls are serialized: one publish, including its full handler
// fan-out, completes before the next begins. Handlers for a single event run
// concurrently with no ordering guarantee.
type Bus struct {
	config BusConfig
	logger *slog.Logger

	// publishSem is a one-slot semaphore so acquisition can honour ctx.
	publishSem chan struct{}

	mu         sync.RWMutex
	handlers   map[Kind][]*Subscription
	middleware []Middleware

	historyMu sync.RWMutex
	history   *ring[Event]

	published atomic.Int64
	handled   atomic.Int64
	errors    atomic.Int64
	nextID    atomic.Uint64
}

// NewBus creates a new event bus.
func NewBus(config BusConfig) *Bus {
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultMaxHistory
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}

	return &Bus{
		config:     config,
		logger:     observability.EnrichLogger(config.Logger, "event_bus"),
		publishSem: make(chan struct{}, 1),
		handlers:   make(map[Kind][]*Subscription),
		history:    newRing[Event](config.MaxHistory),
	}
}

// Subscribe appends handler to kind's handler list. Registering the same
// handler twice invokes it twice per matching event.
//
// The bus does not own the handler. Callers unsubscribe before disposing of it.
func (b *Bus) Subscribe(kind Kind, handler Handler) *Subscription {
	if handler == nil {
		panic("event: nil handler")
	}
	return b.subscribe(kind, handler, handlerName(handler))
}

func (b *Bus) subscribe(kind Kind, handler Handler, name string) *Subscription {
	sub := &Subscription{
		id:      b.nextID.Add(1),
		kind:    kind,
		name:    name,
		handler: handler,
		bus:     b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], sub)
	return sub
}

// Unsubscribe removes sub from its kind's handler list. It logs and returns
// false when the subscription is not registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[sub.kind]
	for i, s := range subs {
		if s == sub {
			b.handlers[sub.kind] = slices.Delete(slices.Clone(subs), i, i+1)
			if len(b.handlers[sub.kind]) == 0 {
				delete(b.handlers, sub.kind)
			}
			return true
		}
	}

	observability.LogUnsubscribeMissing(b.logger, string(sub.kind))
	return false
}

// Use appends a middleware step. Steps run in registration order.
func (b *Bus) Use(m Middleware) {
	if m == nil {
		panic("event: nil middleware")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, m)
}

// publishingKey marks contexts handed to handlers of a specific bus. The
// value is cleared once that dispatch finishes, so a handler's ctx kept by a
// goroutine may publish after the handler returns.
type publishingKey struct{ bus *Bus }

func (b *Bus) dispatching(ctx context.Context) bool {
	active, _ := ctx.Value(publishingKey{b}).(*atomic.Bool)
	return active != nil && active.Load()
}

// Publish runs evt through the middleware chain, records the result in
// history, and invokes every handler subscribed to its kind concurrently.
//
// A middleware failure is returned as a *MiddlewareError and the event is
// dropped. Handler failures are isolated: they are logged and counted but
// never returned. ctx bounds only the wait for the publish slot; once
// dispatch begins the publish runs to completion.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if b.dispatching(ctx) {
		return ErrReentrantPublish
	}

	select {
	case b.publishSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.publishSem }()

	b.published.Add(1)

	if evt == nil {
		b.errors.Add(1)
		return ErrNilEvent
	}

	start := time.Now()
	ctx, span := b.config.Spans.StartPublishSpan(ctx, string(evt.Kind()), evt.ID())

	b.mu.RLock()
	chain := slices.Clone(b.middleware)
	b.mu.RUnlock()

	final, err := b.applyMiddleware(ctx, chain, evt)
	if err != nil {
		b.errors.Add(1)
		b.config.Metrics.RecordPublish(ctx, string(evt.Kind()), 0, time.Since(start), err)
		b.config.Spans.EndSpanWithError(span, err)
		return err
	}

	b.historyMu.Lock()
	b.history.push(final)
	b.historyMu.Unlock()

	b.mu.RLock()
	subs := slices.Clone(b.handlers[final.Kind()])
	b.mu.RUnlock()

	active := &atomic.Bool{}
	active.Store(true)
	dispatchCtx := context.WithValue(context.WithoutCancel(ctx), publishingKey{b}, active)
	b.dispatch(dispatchCtx, final, subs)
	active.Store(false)
	b.handled.Add(int64(len(subs)))

	b.config.Metrics.RecordPublish(ctx, string(final.Kind()), len(subs), time.Since(start), nil)
	b.config.Spans.EndSpanWithError(span, nil)
	return nil
}

// applyMiddleware threads evt through chain, returning the final event.
func (b *Bus) applyMiddleware(ctx context.Context, chain []Middleware, evt Event) (Event, error) {
	current := evt
	for i, m := range chain {
		next, err := m.Process(ctx, current)
		if err == nil && next == nil {
			err = ErrNilEvent
		}
		if err != nil {
			observability.LogPublishRejected(b.logger, string(current.Kind()), i, err)
			return nil, &MiddlewareError{Event: current, Step: i, Err: err}
		}
		current = next
	}
	return current, nil
}

// dispatch invokes every subscription and waits for all of them.
func (b *Bus) dispatch(ctx context.Context, evt Event, subs []*Subscription) {
	switch len(subs) {
	case 0:
		return
	case 1:
		b.invoke(ctx, evt, subs[0])
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		sub := sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.invoke(ctx, evt, sub)
		}()
	}
	wg.Wait()
}

// invoke runs one handler, converting errors and panics into counted,
// logged HandlerErrors.
func (b *Bus) invoke(ctx context.Context, evt Event, sub *Subscription) {
	herr := b.call(ctx, evt, sub)
	if herr == nil {
		return
	}

	b.errors.Add(1)
	observability.LogHandlerError(b.logger, string(evt.Kind()), sub.name, herr)
	b.config.Metrics.RecordHandlerError(ctx, string(evt.Kind()))
	b.config.Spans.AddSpanEvent(ctx, "handler.failed",
		attribute.String("handler", sub.name),
		attribute.String("error", herr.Error()),
	)
	if b.config.OnHandlerError != nil {
		b.config.OnHandlerError(herr)
	}
}

func (b *Bus) call(ctx context.Context, evt Event, sub *Subscription) (herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{Event: evt, Handler: sub.name, Panic: r}
		}
	}()
	if err := sub.handler.Handle(ctx, evt); err != nil {
		return &HandlerError{Event: evt, Handler: sub.name, Err: err}
	}
	return nil
}

// History returns recorded events oldest first, filtered by q.
// It does not block on an in-flight publish.
func (b *Bus) History(q HistoryQuery) []Event {
	b.historyMu.RLock()
	all := b.history.items()
	b.historyMu.RUnlock()

	if q.Kind != "" {
		filtered := all[:0]
		for _, evt := range all {
			if evt.Kind() == q.Kind {
				filtered = append(filtered, evt)
			}
		}
		all = filtered
	}
	return lastN(all, q.Limit)
}

// HistoryOf returns recorded events assignable to T, oldest first, keeping
// the most recent limit matches (zero keeps all). Unlike dispatch, T may be
// an interface such as LifecycleEvent that matches several kinds.
func HistoryOf[T Event](b *Bus, limit int) []T {
	var matches []T
	for _, evt := range b.History(HistoryQuery{}) {
		if typed, ok := evt.(T); ok {
			matches = append(matches, typed)
		}
	}
	return lastN(matches, limit)
}

func lastN[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

// Stats returns a snapshot of the bus counters. It never waits for the
// publish slot, so it may trail an in-flight publish.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	handlers := 0
	for _, subs := range b.handlers {
		handlers += len(subs)
	}
	kinds := len(b.handlers)
	middleware := len(b.middleware)
	b.mu.RUnlock()

	b.historyMu.RLock()
	history := b.history.len()
	b.historyMu.RUnlock()

	return Stats{
		EventsPublished: b.published.Load(),
		EventsHandled:   b.handled.Load(),
		Errors:          b.errors.Load(),
		Handlers:        handlers,
		SubscribedKinds: kinds,
		Middleware:      middleware,
		History:         history,
	}
}

// Shutdown clears every subscription, middleware step, and history entry.
// Counters are kept. Calling Shutdown more than once is safe.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	b.handlers = make(map[Kind][]*Subscription)
	b.middleware = nil
	b.mu.Unlock()

	b.historyMu.Lock()
	b.history.clear()
	b.historyMu.Unlock()

	b.logger.Debug("event bus shut down")
}
