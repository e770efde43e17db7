package worker

import (
	"context"
	"sync/atomic"

	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/value"
)

// TaskContext is the handler-facing execution context: progress
// reporting, cooperative cancellation, and subtask spawning, scoped to a
// single task attempt. It has no checkpoint save or load.
type TaskContext struct {
	ctx       context.Context
	task      *task.Task
	results   resultbackend.Store
	result    *value.Container
	cancelled atomic.Bool
}

// Context returns the per-attempt context.Context, cancelled when the
// attempt's timeout elapses.
func (tc *TaskContext) Context() context.Context { return tc.ctx }

// TaskID returns the task's identifier.
func (tc *TaskContext) TaskID() string { return tc.task.ID }

// TaskName returns the task's handler name.
func (tc *TaskContext) TaskName() string { return tc.task.Name }

// Attempt returns the current (1-based) attempt number.
func (tc *TaskContext) Attempt() int { return tc.task.Attempt + 1 }

// Payload returns the task's input payload.
func (tc *TaskContext) Payload() *value.Container { return tc.task.Payload }

// UpdateProgress reports incremental progress without ending the task.
func (tc *TaskContext) UpdateProgress(percent int, message string) {
	tc.results.StoreProgress(tc.task.ID, percent, message)
}

// SetResult stages the value returned to the caller when the handler
// completes successfully. Calling it is optional; handlers that only
// produce side effects can omit it.
func (tc *TaskContext) SetResult(result *value.Container) {
	tc.result = result
}

// IsCancelled reports whether the task has been asked to cancel
// cooperatively. Long-running handlers should poll this periodically.
func (tc *TaskContext) IsCancelled() bool {
	if tc.cancelled.Load() {
		return true
	}
	rec, err := tc.results.Get(tc.task.ID)
	if err == nil && rec.State == task.StateCancelled {
		tc.cancelled.Store(true)
		return true
	}
	return false
}

// SpawnSubtask records a child task ID so parent/child relationships can
// be queried later via AsyncResult.Children.
func (tc *TaskContext) SpawnSubtask(childID string) {
	tc.task.Children = append(tc.task.Children, childID)
}

// Children returns the IDs of subtasks spawned so far, across all attempts.
func (tc *TaskContext) Children() []string {
	out := make([]string, len(tc.task.Children))
	copy(out, tc.task.Children)
	return out
}
