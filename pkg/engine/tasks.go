package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/randalmurphal/rpgengine/pkg/engine/observability"
)

// AddBackgroundTask starts task in its own goroutine. The task's ctx is
// cancelled by the next Stop, which waits for the task to return. Errors
// and panics from tasks are logged at debug level and otherwise ignored.
//
// A task must not call engine commands synchronously: Stop holds the command
// lock while it waits for the task. Run them in a new goroutine instead.
func (e *Engine) AddBackgroundTask(name string, task Task) {
	if task == nil {
		panic(fmt.Sprintf("engine: nil task %q", name))
	}

	e.tasksMu.Lock()
	ctx, wg := e.tasksCtx, e.tasksWG
	wg.Add(1)
	e.tasksMu.Unlock()

	e.activeTasks.Add(1)
	go func() {
		defer wg.Done()
		defer e.activeTasks.Add(-1)
		if err := runTask(ctx, task); err != nil && !errors.Is(err, context.Canceled) {
			observability.LogTaskError(e.logger, name, err)
		}
	}()
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return task(ctx)
}

// stopTasks cancels the current task generation and waits for it. Tasks
// added afterwards belong to a fresh generation.
func (e *Engine) stopTasks() {
	e.tasksMu.Lock()
	cancel, wg := e.tasksCancel, e.tasksWG
	e.resetTasksLocked()
	e.tasksMu.Unlock()

	cancel()
	wg.Wait()
}

func (e *Engine) resetTasks() {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	e.resetTasksLocked()
}

func (e *Engine) resetTasksLocked() {
	e.tasksCtx, e.tasksCancel = context.WithCancel(context.Background())
	e.tasksWG = &sync.WaitGroup{}
}
