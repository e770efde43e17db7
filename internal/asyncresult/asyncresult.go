// Package asyncresult implements the client-facing future: a handle
// returned to callers that enqueue a task, letting them poll, block,
// chain continuations, or revoke it.
package asyncresult

import (
	"context"
	"time"

	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/taskqueue"
	"github.com/oriys/novafabric/internal/value"
)

// AsyncResult is a future over a task's eventual outcome.
type AsyncResult struct {
	taskID  string
	results resultbackend.Waiter
	tq      *taskqueue.Registry
}

// New wraps taskID with the backend used to observe its outcome.
func New(taskID string, results resultbackend.Waiter, tq *taskqueue.Registry) *AsyncResult {
	return &AsyncResult{taskID: taskID, results: results, tq: tq}
}

// TaskID returns the wrapped task's ID.
func (a *AsyncResult) TaskID() string { return a.taskID }

// State returns the task's current state.
func (a *AsyncResult) State() (task.State, error) {
	rec, err := a.results.Get(a.taskID)
	if err != nil {
		return "", err
	}
	return rec.State, nil
}

// IsReady reports whether the task has reached a terminal state.
func (a *AsyncResult) IsReady() bool {
	rec, err := a.results.Get(a.taskID)
	if err != nil {
		return false
	}
	switch rec.State {
	case task.StateSucceeded, task.StateFailed, task.StateCancelled, task.StateExpired:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the task succeeded.
func (a *AsyncResult) IsSuccessful() bool {
	rec, err := a.results.Get(a.taskID)
	return err == nil && rec.State == task.StateSucceeded
}

// IsFailed reports whether the task failed (including expiry and
// cancellation, which are terminal-but-unsuccessful outcomes).
func (a *AsyncResult) IsFailed() bool {
	rec, err := a.results.Get(a.taskID)
	if err != nil {
		return false
	}
	switch rec.State {
	case task.StateFailed, task.StateCancelled, task.StateExpired:
		return true
	default:
		return false
	}
}

// Progress returns the task's last reported progress percentage and
// message.
func (a *AsyncResult) Progress() (percent int, message string, err error) {
	rec, err := a.results.Get(a.taskID)
	if err != nil {
		return 0, "", err
	}
	return rec.Progress, rec.ProgressMessage, nil
}

// Get blocks until the task reaches a terminal state or timeout elapses,
// returning the stored result container on success.
func (a *AsyncResult) Get(ctx context.Context, timeout time.Duration) (*value.Container, error) {
	rec, err := a.results.WaitForResult(ctx, a.taskID, timeout)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

// Then registers callbacks invoked once the task reaches a terminal state.
// It blocks the calling goroutine until resolution; callers wanting a
// non-blocking chain should invoke it from their own goroutine.
func (a *AsyncResult) Then(onSuccess func(*value.Container), onFailure func(error)) {
	rec, err := a.results.WaitForResult(context.Background(), a.taskID, 0)
	if err != nil {
		if onFailure != nil {
			onFailure(err)
		}
		return
	}
	switch rec.State {
	case task.StateSucceeded:
		if onSuccess != nil {
			onSuccess(rec.Result)
		}
	default:
		if onFailure != nil {
			onFailure(errorsNew(rec.Error))
		}
	}
}

// Revoke cancels the task if it has not yet started running.
func (a *AsyncResult) Revoke() error {
	return a.tq.Cancel(a.taskID)
}

// Children returns the task IDs of subtasks spawned while processing this
// task, as last reported via TaskContext.SpawnSubtask and stored alongside
// the task record.
func (a *AsyncResult) Children() []string {
	t, ok := a.tq.Get(a.taskID)
	if !ok {
		return nil
	}
	return t.Children
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func errorsNew(msg string) error {
	if msg == "" {
		msg = "task did not succeed"
	}
	return simpleError(msg)
}
