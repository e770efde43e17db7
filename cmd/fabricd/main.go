// Command fabricd runs the messaging fabric as a long-lived daemon: it
// wires config, backend, bus, broker, task queue, worker pool, result
// backend, and scheduler together and keeps them running until signaled
// to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/novafabric/internal/backend"
	"github.com/oriys/novafabric/internal/broker"
	"github.com/oriys/novafabric/internal/bus"
	"github.com/oriys/novafabric/internal/config"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/monitor"
	"github.com/oriys/novafabric/internal/queue"
	"github.com/oriys/novafabric/internal/resultbackend"
	"github.com/oriys/novafabric/internal/scheduler"
	"github.com/oriys/novafabric/internal/task"
	"github.com/oriys/novafabric/internal/taskqueue"
	"github.com/oriys/novafabric/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "fabricd",
		Short: "novafabric - in-process messaging fabric and task queue",
		Long:  "Run and inspect the pub/sub bus, route broker, and task worker pool.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (optional, env vars override)")

	rootCmd.AddCommand(runCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = config.Default()
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("fabricd dev")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var (
		httpLogLevel string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fabric daemon (bus, broker, worker pool, scheduler)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = httpLogLevel
			}
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)
			logger := logging.Op()

			mode := queue.ModeFIFO
			if cfg.Queue.PriorityEnabled || cfg.Bus.EnablePriorityQueue {
				mode = queue.ModePriority
			}
			overflow := queue.OverflowReject
			if cfg.Queue.DropOnFull {
				overflow = queue.OverflowDropOldest
			}

			var be backend.Backend
			switch cfg.Backend.Type {
			case "integrated":
				standalone := backend.NewStandalone(cfg.Backend.Concurrency)
				mon := monitor.New(monitor.Callbacks{
					OnWorkerOffline: func(id string) {
						logger.Warn("worker offline", "worker_id", id)
					},
				}, nil)
				be = backend.NewIntegrated(standalone.Executor(), logger, mon)
			default:
				be = backend.NewStandalone(cfg.Backend.Concurrency)
			}
			if err := be.Initialize(cmd.Context()); err != nil {
				return fmt.Errorf("initialize backend: %w", err)
			}
			defer be.Shutdown(context.Background())

			var notifier queue.Notifier = queue.NewChannelNotifier()
			if cfg.Redis.Enabled {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
				notifier = queue.NewRedisListNotifier(rdb)
				logger.Info("queue notifier using redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
			}
			defer notifier.Close()

			b := bus.New(bus.Config{
				Backend:           be,
				Workers:           cfg.Bus.WorkerThreads,
				QueueSize:         cfg.Queue.MaxSize,
				QueueMode:         mode,
				Overflow:          overflow,
				ProcessingTimeout: cfg.Bus.ProcessingTimeout,
				DrainTimeout:      cfg.Bus.DrainTimeout,
				Notifier:          notifier,
			})
			b.Start()
			defer b.Stop()

			br := broker.New(b, broker.Config{MaxRoutes: cfg.Broker.MaxRoutes})

			tq := taskqueue.New()
			defer tq.Stop()

			results, cleanupResults, err := buildResultStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build result backend: %w", err)
			}
			defer cleanupResults()

			pool := worker.New(tq, results, be, worker.Config{
				Concurrency:     cfg.Worker.Concurrency,
				Queues:          cfg.Worker.Queues,
				PollInterval:    cfg.Worker.PollInterval,
				ShutdownTimeout: cfg.Worker.ShutdownTimeout,
			})
			registerBuiltinHandlers(pool, br, logger)
			pool.Start()
			defer pool.Stop()

			sched := scheduler.New()
			sched.Start()
			defer sched.Stop()

			if err := br.AddRoute("task.enqueue", "task.#", 0, taskEnqueueRoute(tq)); err != nil {
				logger.Warn("route registration skipped", "route", "task.enqueue", "error", err)
			}

			logger.Info("fabricd started",
				"bus_workers", cfg.Bus.WorkerThreads,
				"worker_concurrency", cfg.Worker.Concurrency,
				"backend", cfg.Backend.Type,
			)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					logger.Info("shutdown signal received")
					return nil
				case <-ticker.C:
					stats := b.Stats()
					logger.Info("fabric stats",
						"published", stats.Published,
						"processed", stats.Processed,
						"failed", stats.Failed,
						"routes", len(br.GetRoutes()),
					)
				}
			}
		},
	}

	cmd.Flags().StringVar(&httpLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	return cmd
}

// buildResultStore selects the result backend per cfg.ResultBackend.Type,
// mirroring the cfg.Backend.Type switch above. "memory" (default) uses
// only the in-process Backend. "postgres" and "mirrored" both require
// cfg.Postgres.DSN and layer PostgresBackend behind a MirroredStore over
// an in-memory Backend: PostgresBackend alone has no WaitForResult
// wakeup (see its doc comment), so any durable option needs the
// in-memory layer in front to keep that blocking semantics. The returned
// cleanup func releases whatever resources were opened.
func buildResultStore(ctx context.Context, cfg *config.Config) (resultbackend.Waiter, func(), error) {
	switch cfg.ResultBackend.Type {
	case "postgres", "mirrored":
		if cfg.Postgres.DSN == "" {
			return nil, func() {}, fmt.Errorf("result_backend.type %q requires postgres.dsn", cfg.ResultBackend.Type)
		}
		pg, err := resultbackend.NewPostgresBackend(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, cfg.Postgres.MinConns)
		if err != nil {
			return nil, func() {}, err
		}
		memory := resultbackend.New(cfg.ResultBackend.TTL)
		mirrored := resultbackend.NewMirroredStore(memory, pg)
		return mirrored, func() { memory.Stop(); pg.Close() }, nil
	default:
		memory := resultbackend.New(cfg.ResultBackend.TTL)
		return memory, func() { memory.Stop() }, nil
	}
}

// registerBuiltinHandlers wires a no-op "ping" handler so a freshly
// started daemon has at least one runnable task name, useful for
// smoke-testing a deployment before real handlers are registered.
func registerBuiltinHandlers(pool *worker.Pool, br *broker.Broker, logger interface {
	Info(msg string, args ...any)
}) {
	pool.RegisterHandler("ping", func(tc *worker.TaskContext) error {
		tc.UpdateProgress(100, "pong")
		return nil
	})
}

// taskEnqueueRoute builds a route callback that turns a "task.#"
// message's payload into a task and enqueues it for the worker pool,
// bridging the pub/sub surface into the task subsystem.
func taskEnqueueRoute(tq *taskqueue.Registry) func(env *message.Envelope) error {
	return func(env *message.Envelope) error {
		name := env.Topic
		if env.Payload != nil {
			if v, ok := env.Payload.GetString("task_name"); ok && v != "" {
				name = v
			}
		}
		t := task.New(name, nil, env.Payload)
		return tq.Enqueue(t)
	}
}
