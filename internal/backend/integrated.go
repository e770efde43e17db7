package backend

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/oriys/novafabric/internal/monitor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Integrated wraps caller-supplied collaborators instead of owning them,
// for deployments embedding novafabric inside a larger service that
// already has its own executor, logger, and metrics pipeline.
type Integrated struct {
	exec    Executor
	logger  *slog.Logger
	mon     *monitor.Monitor
	tracer  trace.Tracer
	ready   atomic.Bool
}

// IntegratedOption configures an Integrated backend.
type IntegratedOption func(*Integrated)

// WithTracer attaches an OpenTelemetry tracer so every executed task gets
// a span, correlating bus activity with the host application's traces.
func WithTracer(tracer trace.Tracer) IntegratedOption {
	return func(i *Integrated) { i.tracer = tracer }
}

// NewIntegrated creates an Integrated backend over exec/logger/mon, which
// must all be non-nil. Absent a WithTracer option, it falls back to the
// global tracer provider so spans are emitted even when the host
// application has not wired its own tracer into this package.
func NewIntegrated(exec Executor, logger *slog.Logger, mon *monitor.Monitor, opts ...IntegratedOption) *Integrated {
	i := &Integrated{exec: exec, logger: logger, mon: mon, tracer: otel.Tracer("novafabric/backend")}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Integrated) Initialize(ctx context.Context) error {
	i.ready.Store(true)
	i.logger.Info("integrated backend initialized")
	return nil
}

func (i *Integrated) Shutdown(ctx context.Context) error {
	i.ready.Store(false)
	i.logger.Info("integrated backend shut down")
	return nil
}

func (i *Integrated) Executor() Executor {
	if i.tracer == nil {
		return i.exec
	}
	return tracedExecutor{inner: i.exec, tracer: i.tracer}
}

func (i *Integrated) Logger() *slog.Logger { return i.logger }

func (i *Integrated) Monitoring() *monitor.Monitor { return i.mon }

func (i *Integrated) IsReady() bool { return i.ready.Load() }

// tracedExecutor wraps another Executor, opening a span per unit of work
// so trace IDs propagate into the task's or message's logs.
type tracedExecutor struct {
	inner  Executor
	tracer trace.Tracer
}

func (t tracedExecutor) Execute(ctx context.Context, id string, fn func(context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "backend.execute."+id)
	defer span.End()
	return t.inner.Execute(ctx, id, fn)
}
