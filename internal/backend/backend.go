// Package backend defines the pluggable executor/logger/monitoring
// contract: it decouples the bus/broker/task core from whatever runs
// handlers and collects their telemetry, following a small-interface,
// two-implementation style (embedded vs. host-integrated).
package backend

import (
	"context"
	"log/slog"

	"github.com/oriys/novafabric/internal/monitor"
)

// Executor submits a unit of work and runs it to completion. id is an
// opaque label (a task ID, a message ID) used for monitoring and tracing;
// implementations may run the work inline, on a goroutine pool, or
// dispatch it to a remote worker fleet. Both the bus (dispatching
// messages to subscribers) and the worker pool (invoking task handlers)
// submit through the same Executor.
type Executor interface {
	Execute(ctx context.Context, id string, fn func(ctx context.Context) error) error
}

// Backend is the contract every deployment mode (embedded vs. networked)
// must satisfy: initialize/shutdown lifecycle plus accessors for the
// collaborators the core needs.
type Backend interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Executor() Executor
	Logger() *slog.Logger
	Monitoring() *monitor.Monitor
	IsReady() bool
}
