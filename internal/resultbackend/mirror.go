package resultbackend

import (
	"context"
	"time"

	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/value"
)

var _ Waiter = (*MirroredStore)(nil)

// MirroredStore wraps a fast in-process Waiter and write-throughs every
// mutation to a durable secondary Store, so WaitForResult keeps its
// in-memory wakeup semantics while task state survives a process restart
// in the secondary. Reads are served from the primary; writes that fail
// on the secondary are logged but do not fail the call, since the primary
// write already succeeded and is what callers are waiting on.
type MirroredStore struct {
	primary   Waiter
	secondary Store
}

// NewMirroredStore returns a Waiter that mirrors writes from primary into
// secondary. Both must be non-nil.
func NewMirroredStore(primary Waiter, secondary Store) *MirroredStore {
	return &MirroredStore{primary: primary, secondary: secondary}
}

func (m *MirroredStore) StoreState(taskID string, state task.State) error {
	err := m.primary.StoreState(taskID, state)
	if serr := m.secondary.StoreState(taskID, state); serr != nil {
		logging.Op().Warn("mirrored store: secondary StoreState failed", "task_id", taskID, "error", serr)
	}
	return err
}

func (m *MirroredStore) StoreResult(taskID string, result *value.Container) error {
	err := m.primary.StoreResult(taskID, result)
	if serr := m.secondary.StoreResult(taskID, result); serr != nil {
		logging.Op().Warn("mirrored store: secondary StoreResult failed", "task_id", taskID, "error", serr)
	}
	return err
}

func (m *MirroredStore) StoreError(taskID string, errMsg string) error {
	err := m.primary.StoreError(taskID, errMsg)
	if serr := m.secondary.StoreError(taskID, errMsg); serr != nil {
		logging.Op().Warn("mirrored store: secondary StoreError failed", "task_id", taskID, "error", serr)
	}
	return err
}

func (m *MirroredStore) StoreProgress(taskID string, percent int, message string) error {
	err := m.primary.StoreProgress(taskID, percent, message)
	if serr := m.secondary.StoreProgress(taskID, percent, message); serr != nil {
		logging.Op().Warn("mirrored store: secondary StoreProgress failed", "task_id", taskID, "error", serr)
	}
	return err
}

// Get reads from the primary, falling back to the secondary if the
// primary has no record (e.g. after a restart that cleared memory).
func (m *MirroredStore) Get(taskID string) (Record, error) {
	rec, err := m.primary.Get(taskID)
	if err == nil {
		return rec, nil
	}
	return m.secondary.Get(taskID)
}

func (m *MirroredStore) WaitForResult(ctx context.Context, taskID string, timeout time.Duration) (Record, error) {
	return m.primary.WaitForResult(ctx, taskID, timeout)
}
