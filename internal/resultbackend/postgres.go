package resultbackend

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/value"
)

// opTimeout bounds each individual query so a stalled connection can't
// wedge a caller that only expects to satisfy the ctx-free Store
// interface.
const opTimeout = 5 * time.Second

var (
	_ Store = (*PostgresBackend)(nil)
)

// PostgresBackend is a durable result backend for deployments that need
// task state to survive a process restart: a pgxpool.Pool, an
// ensureSchema migration on construction, and upsert-by-primary-key
// writes. Its Store methods take no context of their own, each using an
// internally bounded timeout, so it satisfies the same ctx-free Store
// interface as the in-memory Backend. It does not implement WaitForResult's
// in-process waiter-channel wakeup since that requires the process holding
// the channel to also be the one polling the database; callers needing to
// block should poll Get on an interval or wrap this backend in a
// MirroredStore layered in front of an in-memory Backend.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend opens a pool against dsn and ensures its schema
// exists.
func NewPostgresBackend(ctx context.Context, dsn string, maxConns, minConns int32) (*PostgresBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("resultbackend: postgres DSN is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("resultbackend: parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		poolCfg.MinConns = minConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("resultbackend: create pool: %w", err)
	}
	b := &PostgresBackend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_results (
			task_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			result BYTEA,
			error TEXT,
			progress INTEGER NOT NULL DEFAULT 0,
			progress_message TEXT,
			updated_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("resultbackend: ensure schema: %w", err)
	}
	return nil
}

func (b *PostgresBackend) upsertState(ctx context.Context, taskID string, state task.State, progress int) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, state, progress, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (task_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, taskID, string(state), progress)
	return err
}

// StoreState records a task's current state.
func (b *PostgresBackend) StoreState(taskID string, state task.State) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := b.upsertState(ctx, taskID, state, 0); err != nil {
		return ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.StoreState", err)
	}
	return nil
}

// StoreResult records a task's successful result and marks it succeeded.
func (b *PostgresBackend) StoreResult(taskID string, result *value.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var payload []byte
	if result != nil {
		data, err := result.Serialize(value.FormatBinary)
		if err != nil {
			return ferrors.Wrap(ferrors.InvalidMessage, "resultbackend.PostgresBackend.StoreResult", err)
		}
		payload = data
	}
	_, err := b.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, state, result, progress, updated_at)
		VALUES ($1, $2, $3, 100, now())
		ON CONFLICT (task_id) DO UPDATE SET
			state = EXCLUDED.state,
			result = EXCLUDED.result,
			progress = EXCLUDED.progress,
			updated_at = EXCLUDED.updated_at
	`, taskID, string(task.StateSucceeded), payload)
	if err != nil {
		return ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.StoreResult", err)
	}
	return nil
}

// StoreError records a task's failure and marks it failed.
func (b *PostgresBackend) StoreError(taskID string, errMsg string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := b.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, state, error, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (task_id) DO UPDATE SET
			state = EXCLUDED.state,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, taskID, string(task.StateFailed), errMsg)
	if err != nil {
		return ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.StoreError", err)
	}
	return nil
}

// StoreProgress updates a task's progress percentage and message.
func (b *PostgresBackend) StoreProgress(taskID string, percent int, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := b.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, state, progress, progress_message, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (task_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			progress_message = EXCLUDED.progress_message,
			updated_at = EXCLUDED.updated_at
	`, taskID, string(task.StatePending), percent, message)
	if err != nil {
		return ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.StoreProgress", err)
	}
	return nil
}

// Get returns the stored record for taskID.
func (b *PostgresBackend) Get(taskID string) (Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var (
		rec     Record
		result  []byte
		errMsg  *string
		progMsg *string
		expires *time.Time
	)
	rec.TaskID = taskID
	row := b.pool.QueryRow(ctx, `
		SELECT state, result, error, progress, progress_message, updated_at, expires_at
		FROM task_results WHERE task_id = $1
	`, taskID)
	var state string
	if err := row.Scan(&state, &result, &errMsg, &rec.Progress, &progMsg, &rec.UpdatedAt, &expires); err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, ferrors.New(ferrors.TaskNotFound, "resultbackend.PostgresBackend.Get", "no record for task: "+taskID)
		}
		return Record{}, ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.Get", err)
	}
	rec.State = task.State(state)
	if errMsg != nil {
		rec.Error = *errMsg
	}
	if progMsg != nil {
		rec.ProgressMessage = *progMsg
	}
	if expires != nil {
		rec.ExpiresAt = *expires
	}
	if len(result) > 0 {
		container, err := value.Deserialize(result, value.DefaultMaxDepth)
		if err != nil {
			return Record{}, ferrors.Wrap(ferrors.InvalidMessage, "resultbackend.PostgresBackend.Get", err)
		}
		rec.Result = container
	}
	return rec, nil
}

// CleanupExpired removes every record past its expiry, returning the
// count removed.
func (b *PostgresBackend) CleanupExpired(ctx context.Context) (int, error) {
	tag, err := b.pool.Exec(ctx, `
		DELETE FROM task_results WHERE expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return 0, ferrors.Wrap(ferrors.Timeout, "resultbackend.PostgresBackend.CleanupExpired", err)
	}
	return int(tag.RowsAffected()), nil
}
