package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/rpgengine/pkg/engine/config"
	"github.com/randalmurphal/rpgengine/pkg/engine/event"
	"github.com/randalmurphal/rpgengine/pkg/engine/journal"
	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
	"github.com/randalmurphal/rpgengine/pkg/engine/registry"
	"github.com/randalmurphal/rpgengine/pkg/engine/service"
)

// Built-in services registered as instances during Initialize.
var (
	ServiceEngine    = service.NewKey[*Engine]("engine")
	ServiceBus       = service.NewKey[*event.Bus]("event_bus")
	ServiceContainer = service.NewKey[*service.Container]("service_container")
)

// EventSource is the source of every event the engine publishes.
const EventSource = "engine"

// Engine owns the event bus and service container and drives registered
// systems at a fixed frame rate.
//
// Lifecycle commands are serialized with each other. State and Stats never
// wait for a command. Commands must not be called synchronously from a bus
// handler: Stop waits for the update loop, which may be waiting for that
// handler's publish to finish.
type Engine struct {
	cfg        config.EngineConfig
	baseLogger *slog.Logger
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	bus        *event.Bus
	container  *service.Container
	journal    journal.Store

	systems *registry.Registry[string, System]

	state atomic.Int32

	// cmdMu serializes lifecycle commands and guards the fields below it.
	cmdMu               sync.Mutex
	middlewareInstalled bool
	detachJournal       func()
	loopCancel          context.CancelFunc
	loopDone            chan struct{}

	tasksMu     sync.Mutex
	tasksCtx    context.Context
	tasksCancel context.CancelFunc
	tasksWG     *sync.WaitGroup
	activeTasks atomic.Int64

	startedAt    atomic.Int64
	stoppedAt    atomic.Int64
	frames       atomic.Int64
	lastFrame    atomic.Int64
	systemErrors atomic.Int64
	loopErr      atomic.Pointer[LoopError]
}

// New creates a stopped engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cfg:        config.Default(),
		baseLogger: slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
		systems:    registry.New[string, System](),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = observability.EnrichLogger(e.baseLogger, "engine")
	if e.bus == nil {
		e.bus = event.NewBus(event.BusConfig{
			MaxHistory: e.cfg.MaxHistory,
			Logger:     e.baseLogger,
			Metrics:    e.metrics,
			Spans:      e.spans,
		})
	}
	if e.container == nil {
		e.container = service.New(service.Config{
			Logger:  e.baseLogger,
			Metrics: e.metrics,
			Spans:   e.spans,
		})
	}
	e.resetTasks()
	return e
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Container returns the engine's service container.
func (e *Engine) Container() *service.Container { return e.container }

// Config returns the engine configuration.
func (e *Engine) Config() config.EngineConfig { return e.cfg }

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Err returns the loop failure that stopped the most recent run, if any.
func (e *Engine) Err() error {
	if lerr := e.loopErr.Load(); lerr != nil {
		return lerr
	}
	return nil
}

func (e *Engine) setState(to State) {
	from := State(e.state.Swap(int32(to)))
	if from != to {
		observability.LogStateTransition(e.logger, from.String(), to.String())
	}
}

func (e *Engine) ignore(command string) {
	observability.LogInvalidTransition(e.logger, command, e.State().String())
}

// Initialize registers the built-in services, installs the default
// middleware, constructs every registered singleton, and publishes
// EngineInitialized. It is a logged no-op unless the engine is stopped.
//
// A construction failure returns the engine to StateStopped.
func (e *Engine) Initialize(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	return e.initialize(ctx)
}

func (e *Engine) initialize(ctx context.Context) error {
	if e.State() != StateStopped {
		e.ignore("initialize")
		return nil
	}
	e.setState(StateInitializing)

	service.ProvideInstance(e.container, ServiceEngine, e)
	service.ProvideInstance(e.container, ServiceBus, e.bus)
	service.ProvideInstance(e.container, ServiceContainer, e.container)

	if !e.middlewareInstalled {
		e.bus.Use(event.ValidateTimestamp())
		e.bus.Use(event.LoggingMiddleware(e.logger))
		e.middlewareInstalled = true
	}
	if e.journal != nil && e.detachJournal == nil {
		e.detachJournal = journal.NewRecorder(e.journal, e.baseLogger).Attach(e.bus, event.LifecycleKinds()...)
	}

	if err := e.container.InitializeAll(ctx); err != nil {
		e.setState(StateStopped)
		return fmt.Errorf("initialize services: %w", err)
	}

	evt := event.EngineInitialized{Meta: event.NewMeta(EventSource), Services: len(e.container.List())}
	if err := e.bus.Publish(ctx, evt); err != nil {
		e.setState(StateStopped)
		return fmt.Errorf("publish initialized: %w", err)
	}
	return nil
}

// Start initializes the engine if needed, then starts the update loop and
// publishes EngineStarted. Starting a running or paused engine is a logged
// no-op.
//
// The loop outlives ctx; use Stop to end it.
func (e *Engine) Start(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	switch e.State() {
	case StateRunning, StatePaused:
		e.ignore("start")
		return nil
	case StateStopped:
		if err := e.initialize(ctx); err != nil {
			return err
		}
	}

	e.startedAt.Store(time.Now().UnixNano())
	e.stoppedAt.Store(0)
	e.frames.Store(0)
	e.lastFrame.Store(0)
	e.systemErrors.Store(0)
	e.loopErr.Store(nil)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.loopCancel, e.loopDone = cancel, done

	e.setState(StateRunning)
	go e.run(loopCtx, done)

	evt := event.EngineStarted{Meta: event.NewMeta(EventSource), TargetFPS: e.cfg.TargetFPS}
	if err := e.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish started: %w", err)
	}
	return nil
}

// Pause suspends system updates. The loop keeps ticking at the frame rate.
// Pausing an engine that is not running is a logged no-op.
func (e *Engine) Pause(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	if e.State() != StateRunning {
		e.ignore("pause")
		return nil
	}
	e.setState(StatePaused)

	evt := event.EnginePaused{Meta: event.NewMeta(EventSource), Frame: e.frames.Load()}
	if err := e.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish paused: %w", err)
	}
	return nil
}

// Resume continues a paused engine. Resuming an engine that is not paused
// is a logged no-op.
func (e *Engine) Resume(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	if e.State() != StatePaused {
		e.ignore("resume")
		return nil
	}
	e.setState(StateRunning)

	evt := event.EngineResumed{Meta: event.NewMeta(EventSource), Frame: e.frames.Load()}
	if err := e.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish resumed: %w", err)
	}
	return nil
}

// Stop cancels the update loop and every background task, waits for them to
// exit, and publishes EngineStopped. Stopping a stopped engine is a no-op.
func (e *Engine) Stop(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()
	return e.stop(ctx)
}

func (e *Engine) stop(ctx context.Context) error {
	if e.State() == StateStopped {
		return nil
	}
	e.setState(StateShuttingDown)

	if e.loopCancel != nil {
		e.loopCancel()
		<-e.loopDone
		e.loopCancel, e.loopDone = nil, nil
	}
	e.stopTasks()

	if e.startedAt.Load() != 0 {
		e.stoppedAt.Store(time.Now().UnixNano())
	}
	e.setState(StateStopped)

	evt := event.EngineStopped{
		Meta:   event.NewMeta(EventSource),
		Frames: e.frames.Load(),
		Uptime: e.uptime(),
	}
	// The notification goes out even when the caller's ctx is already done.
	if err := e.bus.Publish(context.WithoutCancel(ctx), evt); err != nil {
		return fmt.Errorf("publish stopped: %w", err)
	}
	return nil
}

// stopAfterLoopFailure runs Stop once the failed loop identified by done
// has exited, unless a command has already replaced that loop.
func (e *Engine) stopAfterLoopFailure(done chan struct{}) {
	<-done

	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	if e.loopDone != done {
		return
	}
	if err := e.stop(context.Background()); err != nil {
		e.logger.Error("stop after loop failure", slog.String("error", err.Error()))
	}
}

// Shutdown stops the engine, shuts down every constructed service, and
// clears the bus. The engine can be initialized again afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cmdMu.Lock()
	defer e.cmdMu.Unlock()

	stopErr := e.stop(ctx)

	if e.detachJournal != nil {
		e.detachJournal()
		e.detachJournal = nil
	}
	servicesErr := e.container.ShutdownAll(ctx)
	e.bus.Shutdown()
	e.middlewareInstalled = false

	return errors.Join(stopErr, servicesErr)
}

// AddSystem registers a system under name. Re-adding a name replaces the
// system and keeps its position. Systems added while running take effect on
// the next frame.
func (e *Engine) AddSystem(name string, sys System) {
	if sys == nil {
		panic(fmt.Sprintf("engine: nil system %q", name))
	}
	e.systems.Register(name, sys)
}

// RemoveSystem unregisters a system and reports whether it existed.
func (e *Engine) RemoveSystem(name string) bool {
	return e.systems.Delete(name)
}

// Systems returns the registered system names in registration order.
func (e *Engine) Systems() []string {
	return e.systems.Keys()
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	State        State
	Uptime       time.Duration
	Frames       int64
	FPS          float64
	LastFrame    time.Duration
	SystemErrors int64
	Tasks        int64
	Systems      []string
	Bus          event.Stats
	Services     map[string]service.Kind
}

// Stats returns current statistics. It never waits for a command, a
// publish, or a service construction.
func (e *Engine) Stats() Stats {
	return Stats{
		State:        e.State(),
		Uptime:       e.uptime(),
		Frames:       e.frames.Load(),
		FPS:          e.fps(),
		LastFrame:    time.Duration(e.lastFrame.Load()),
		SystemErrors: e.systemErrors.Load(),
		Tasks:        e.activeTasks.Load(),
		Systems:      e.systems.Keys(),
		Bus:          e.bus.Stats(),
		Services:     e.container.List(),
	}
}

// uptime is the time since Start, frozen once the engine stops.
func (e *Engine) uptime() time.Duration {
	started := e.startedAt.Load()
	if started == 0 {
		return 0
	}
	end := e.stoppedAt.Load()
	if end == 0 {
		end = time.Now().UnixNano()
	}
	return time.Duration(end - started)
}

func (e *Engine) fps() float64 {
	uptime := e.uptime()
	if uptime <= 0 {
		return 0
	}
	return float64(e.frames.Load()) / uptime.Seconds()
}
