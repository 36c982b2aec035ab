package event

import (
	"context"
	"fmt"
)

// Handler processes events delivered by the bus.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Subscription is one entry in a kind's handler list. Subscribing the same
// handler twice yields two subscriptions and two invocations per event.
type Subscription struct {
	id      uint64
	kind    Kind
	name    string
	handler Handler
	bus     *Bus
}

// Kind returns the subscribed event kind.
func (s *Subscription) Kind() Kind { return s.kind }

// Name identifies the handler in logs.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe removes this subscription from its bus.
// It reports false if the subscription was already removed.
func (s *Subscription) Unsubscribe() bool {
	return s.bus.Unsubscribe(s)
}

// On subscribes a typed function to T's kind. T must be a concrete event
// type whose zero value reports its Kind; interface types panic.
//
// Events of T's kind that are not a T are skipped. A type that embeds a
// variant inherits its Kind, so new variants declare their own Kind method.
//
//	event.On(bus, func(ctx context.Context, p event.Ping) error {
//	    log.Println("ping from", p.Source())
//	    return nil
//	})
func On[T Event](b *Bus, fn func(ctx context.Context, evt T) error) *Subscription {
	var zero T
	if any(zero) == nil {
		panic("event.On: type parameter must be a concrete event type")
	}
	h := HandlerFunc(func(ctx context.Context, evt Event) error {
		typed, ok := evt.(T)
		if !ok {
			return nil
		}
		return fn(ctx, typed)
	})
	return b.subscribe(zero.Kind(), h, fmt.Sprintf("On[%T]", zero))
}

func handlerName(h Handler) string {
	return fmt.Sprintf("%T", h)
}
