package backend

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/monitor"
)

// Standalone is a self-contained Backend that runs handlers on an
// in-process goroutine pool and uses the package-global logger and a
// fresh Monitor. It needs no external collaborators, serving as the
// zero-dependency default alongside the pluggable Integrated backend.
type Standalone struct {
	concurrency int
	sem         chan struct{}
	logger      *slog.Logger
	monitor     *monitor.Monitor
	ready       atomic.Bool
}

// NewStandalone creates a Standalone backend with the given handler
// concurrency (default 8 when <= 0).
func NewStandalone(concurrency int) *Standalone {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Standalone{
		concurrency: concurrency,
		sem:         make(chan struct{}, concurrency),
		logger:      logging.Op(),
		monitor:     monitor.New(monitor.Callbacks{}, nil),
	}
}

func (s *Standalone) Initialize(ctx context.Context) error {
	s.ready.Store(true)
	s.logger.Info("standalone backend initialized", "concurrency", s.concurrency)
	return nil
}

func (s *Standalone) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.logger.Info("standalone backend shut down")
	return nil
}

func (s *Standalone) Executor() Executor { return standaloneExecutor{s} }

func (s *Standalone) Logger() *slog.Logger { return s.logger }

func (s *Standalone) Monitoring() *monitor.Monitor { return s.monitor }

func (s *Standalone) IsReady() bool { return s.ready.Load() }

type standaloneExecutor struct{ s *Standalone }

func (e standaloneExecutor) Execute(ctx context.Context, id string, fn func(context.Context) error) error {
	select {
	case e.s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.s.sem }()

	e.s.monitor.TaskStarted(id)
	err := fn(ctx)
	e.s.monitor.TaskCompleted(id, err == nil)
	if err != nil {
		e.s.monitor.TaskFailed(id, err)
	}
	return err
}
