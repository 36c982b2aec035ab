// Package service provides the dependency container the engine and its
// feature modules resolve shared services from.
//
// Three descriptor kinds are supported. Instances are registered values.
// Singletons are built by a Constructor at most once, even under concurrent
// resolution. Transients are built by a Factory on every resolution.
// Override substitutes a value for any key, which is how tests inject doubles.
//
// # Typed Keys
//
// Key[T] ties a name to a Go type so callers do not type-assert:
//
//	var StoreKey = service.NewKey[*Store]("store")
//
//	service.ProvideSingleton(c, StoreKey, func(ctx context.Context, c *service.Container) (*Store, error) {
//	    cfg, err := service.Resolve(ctx, c, ConfigKey)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return OpenStore(cfg)
//	})
//
//	store, err := service.Resolve(ctx, c, StoreKey)
//
// # Lifecycle Hooks
//
// A constructed value implementing Initializer is initialized before it is
// cached. ShutdownAll calls Shutdowner on constructed singletons newest
// first, so a service is torn down before the services it depends on.
//
// # Construction Failures
//
// A failed construction is returned to the caller that ran it and nothing is
// cached. A caller that was waiting for the lock re-checks the cache and, if
// it is still empty, attempts construction itself.
package service
