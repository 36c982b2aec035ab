// Package registry provides a generic thread-safe registry for values indexed
// by key that preserves insertion order.
//
// The engine uses it wherever registration order carries meaning: the service
// container constructs singletons in registration order and tears them down
// in reverse construction order, and the engine runs per-frame systems in the
// order they were added.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	r.Register("two", 2)
//
//	r.Keys() // [one two]
//
// # Ordered Teardown
//
// RangeReverse visits the newest entry first:
//
//	constructed.RangeReverse(func(name string, svc any) bool {
//	    closeService(svc)
//	    return true
//	})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range and RangeReverse
// iterate over a snapshot, so the callback may mutate the registry.
package registry
