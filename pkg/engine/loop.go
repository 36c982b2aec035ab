package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/rpgengine/pkg/engine/event"
	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
)

// run is the update loop. It ticks at the configured frame interval while
// the engine is running or paused and updates systems only while running.
// Paused ticks still advance prev, so a frame's Delta never spans a pause.
// Sleep is max(0, interval - elapsed); a slow frame is not made up.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := e.cfg.FrameInterval()
	var prev time.Time
	for {
		start := time.Now()
		if e.State() == StateRunning {
			if lerr := e.frame(ctx, start, prev); lerr != nil {
				if ctx.Err() == nil {
					e.loopErr.Store(lerr)
					observability.LogLoopFailure(e.logger, lerr.Frame, lerr)
					go e.stopAfterLoopFailure(done)
				}
				return
			}
		}
		prev = start

		if !sleep(ctx, interval-time.Since(start)) {
			return
		}
	}
}

// frame runs one update. Panics outside the systems become a LoopError.
func (e *Engine) frame(ctx context.Context, start, prev time.Time) (lerr *LoopError) {
	n := e.frames.Load() + 1
	defer func() {
		if r := recover(); r != nil {
			lerr = &LoopError{Frame: n, Panic: r, Stack: string(debug.Stack())}
		}
	}()

	info := Frame{Number: n, Start: start}
	if !prev.IsZero() {
		info.Delta = start.Sub(prev)
	}

	failures := e.updateSystems(ctx, info)

	e.frames.Store(n)
	duration := time.Since(start)
	e.lastFrame.Store(int64(duration))
	e.metrics.RecordFrame(ctx, duration, len(failures))
	if budget := e.cfg.FrameInterval(); duration > budget {
		observability.LogSlowFrame(e.logger, n, duration, budget)
	}

	for _, f := range failures {
		evt := event.SystemFailed{
			Meta:   event.NewMeta(EventSource),
			System: f.System,
			Frame:  n,
			Error:  f.Error(),
		}
		if err := e.bus.Publish(ctx, evt); err != nil {
			return &LoopError{Frame: n, Err: fmt.Errorf("publish system failure: %w", err)}
		}
	}

	if every := int64(e.cfg.TelemetryInterval); every > 0 && n%every == 0 {
		evt := event.FrameCompleted{
			Meta:     event.NewMeta(EventSource),
			Frame:    n,
			Duration: duration,
			FPS:      e.fps(),
		}
		if err := e.bus.Publish(ctx, evt); err != nil {
			return &LoopError{Frame: n, Err: fmt.Errorf("publish frame telemetry: %w", err)}
		}
	}
	return nil
}

// updateSystems runs every system concurrently and returns the failures
// sorted by system name.
func (e *Engine) updateSystems(ctx context.Context, frame Frame) []*SystemError {
	var (
		mu       sync.Mutex
		failures []*SystemError
		wg       sync.WaitGroup
	)
	e.systems.Range(func(name string, sys System) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if serr := runSystem(ctx, name, sys, frame); serr != nil {
				mu.Lock()
				failures = append(failures, serr)
				mu.Unlock()
			}
		}()
		return true
	})
	wg.Wait()

	slices.SortFunc(failures, func(a, b *SystemError) int {
		return strings.Compare(a.System, b.System)
	})
	for _, f := range failures {
		e.systemErrors.Add(1)
		observability.LogSystemError(e.logger, f.System, f.Frame, f)
	}
	return failures
}

func runSystem(ctx context.Context, name string, sys System, frame Frame) (serr *SystemError) {
	defer func() {
		if r := recover(); r != nil {
			serr = &SystemError{System: name, Frame: frame.Number, Panic: r}
		}
	}()
	if err := sys.Update(ctx, frame); err != nil {
		return &SystemError{System: name, Frame: frame.Number, Err: err}
	}
	return nil
}

// sleep waits for d or until ctx ends. It reports whether the loop should
// continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
