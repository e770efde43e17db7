package backend

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/oriys/novafabric/internal/monitor"
)

func TestStandaloneExecutesAndTracksMonitor(t *testing.T) {
	s := NewStandalone(2)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	if !s.IsReady() {
		t.Fatalf("expected backend to be ready after initialize")
	}

	err := s.Executor().Execute(context.Background(), "job-1", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	totals := s.Monitoring().Totals()
	if totals.Started != 1 || totals.Succeeded != 1 {
		t.Fatalf("expected monitor to record started+succeeded, got %+v", totals)
	}
}

func TestStandaloneExecuteRecordsFailure(t *testing.T) {
	s := NewStandalone(1)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	err := s.Executor().Execute(context.Background(), "job-1", func(ctx context.Context) error { return errors.New("boom") })
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
	totals := s.Monitoring().Totals()
	if totals.Failed != 1 {
		t.Fatalf("expected failed count 1, got %+v", totals)
	}
}

type fakeExecutor struct{ calls int }

func (f *fakeExecutor) Execute(ctx context.Context, id string, fn func(context.Context) error) error {
	f.calls++
	return fn(ctx)
}

func TestIntegratedDelegatesToSuppliedExecutor(t *testing.T) {
	exec := &fakeExecutor{}
	logger := slog.Default()
	mon := monitor.New(monitor.Callbacks{}, nil)
	i := NewIntegrated(exec, logger, mon)

	if err := i.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer i.Shutdown(context.Background())

	if err := i.Executor().Execute(context.Background(), "job-1", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected supplied executor to be invoked, calls=%d", exec.calls)
	}
}
