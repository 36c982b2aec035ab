// Package event provides the engine's typed publish/subscribe bus.
//
// # Events
//
// Every event implements Event. Concrete variants embed Meta, which carries
// the identity, source and creation timestamp, and report a Kind:
//
//	type DamageDealt struct {
//	    event.Meta
//	    Target string
//	    Amount int
//	}
//
//	func (DamageDealt) Kind() event.Kind { return "combat.damage_dealt" }
//
//	evt := DamageDealt{Meta: event.NewMeta("combat"), Target: "orc", Amount: 7}
//
// Events are immutable values. Handlers may read them concurrently without
// copying.
//
// # Subscribing
//
// Handlers subscribe to exactly one kind. Dispatch is nominal: a handler for
// one kind never sees another kind, even when both share Go interfaces.
//
//	sub := bus.Subscribe(event.KindPing, event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
//	    return nil
//	}))
//	defer sub.Unsubscribe()
//
//	// Typed variant
//	event.On(bus, func(ctx context.Context, p event.Ping) error { return nil })
//
// # Publishing
//
// Publish applies middleware in registration order, appends the result to a
// bounded history, and invokes the kind's handlers concurrently:
//
//	bus.Use(event.ValidateTimestamp())
//	bus.Use(event.LoggingMiddleware(logger))
//
//	if err := bus.Publish(ctx, event.NewPing("host")); err != nil {
//	    // middleware rejected the event; it was not recorded or dispatched
//	}
//
// Publish calls on one bus are serialized, so history order is the publish
// order. Handler errors and panics are logged and counted in Stats but never
// returned to the publisher. A handler must not publish on the bus that is
// dispatching to it; doing so with the handler's context returns
// ErrReentrantPublish. Once the dispatch has finished, that context may be
// used to publish again.
//
// # History
//
// History returns recorded events oldest first, optionally filtered by kind
// and limited to the most recent entries. HistoryOf filters by Go type, so an
// interface such as LifecycleEvent selects a whole family of kinds:
//
//	recent := bus.History(event.HistoryQuery{Kind: event.KindPing, Limit: 10})
//	lifecycle := event.HistoryOf[event.LifecycleEvent](bus, 0)
package event
