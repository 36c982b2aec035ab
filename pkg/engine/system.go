package engine

import (
	"context"
	"time"
)

// Frame describes one update loop iteration.
type Frame struct {
	// Number counts frames since Start, beginning at 1.
	Number int64
	// Start is when the frame began.
	Start time.Time
	// Delta is the time since the previous loop tick began. Zero on the first
	// frame of a run. Time spent paused is not included.
	Delta time.Duration
}

// System is updated once per running frame. Systems of one frame run
// concurrently; a failing system is counted and reported but does not stop
// the loop.
type System interface {
	Update(ctx context.Context, frame Frame) error
}

// SystemFunc adapts a function to the System interface.
type SystemFunc func(ctx context.Context, frame Frame) error

// Update implements System.
func (f SystemFunc) Update(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}

// Task is background work started with AddBackgroundTask. It must return
// when ctx is cancelled.
type Task func(ctx context.Context) error
