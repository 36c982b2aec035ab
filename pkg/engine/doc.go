/*
Package engine provides the runtime core of a turn-and-tick RPG: an event
bus, a service container, and a fixed-rate update loop tied together by a
small lifecycle state machine.

# Overview

An Engine owns one event.Bus and one service.Container. Feature modules
register services on the container and subscribe to events on the bus;
per-frame work is added as Systems. The engine drives systems at the
configured target frame rate and publishes lifecycle notifications as it
moves between states:

	Stopped -> Initializing -> Running <-> Paused -> ShuttingDown -> Stopped

# Basic Usage

	cfg, err := config.Load("engine.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	eng := engine.New(
	    engine.WithConfig(cfg),
	    engine.WithLogger(observability.NewLogger(os.Stderr, cfg.DebugMode)),
	)

	eng.AddSystem("regen", engine.SystemFunc(func(ctx context.Context, f engine.Frame) error {
	    return party.Regenerate(f.Delta)
	}))

	event.On(eng.Bus(), func(ctx context.Context, s event.EngineStopped) error {
	    fmt.Println("ran", s.Frames, "frames")
	    return nil
	})

	if err := eng.Start(ctx); err != nil {
	    log.Fatal(err)
	}
	defer eng.Shutdown(context.Background())

# Update Loop

Each running frame updates every system concurrently and waits for all of
them. A system that returns an error or panics is logged, counted in
Stats.SystemErrors, and reported as an event.SystemFailed; the loop keeps
going. A failure in the loop itself, such as a rejected SystemFailed
publish, is a *LoopError: it is logged, retained for Err, and the engine
stops.

After a frame the loop sleeps for whatever remains of the frame interval.
A slow frame is not compensated by shortening later sleeps.

# Background Tasks

AddBackgroundTask runs work alongside the loop. Stop cancels the task's
context and waits for it to return; its error, if any, is only logged.

# Services

Initialize registers the engine, bus, and container under ServiceEngine,
ServiceBus, and ServiceContainer, then constructs every registered
singleton. Shutdown tears them down in reverse construction order.
*/
package engine
