// Package config holds the central configuration struct for a fabric
// deployment: a struct-of-structs with one nested type per component,
// each tagged for YAML, loaded with a LoadFromFile/LoadFromEnv pair.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// QueueConfig controls the bounded message queue backing each bus/broker.
type QueueConfig struct {
	MaxSize         int  `yaml:"max_size"`         // Default: 10000
	DropOnFull      bool `yaml:"drop_on_full"`     // true: drop-oldest, false: reject
	PriorityEnabled bool `yaml:"priority_enabled"` // Use heap ordering instead of FIFO
}

// BusConfig controls the in-process message bus.
type BusConfig struct {
	WorkerThreads       int           `yaml:"worker_threads"`       // Default: 4
	ProcessingTimeout   time.Duration `yaml:"processing_timeout"`   // Default: 5s
	EnablePriorityQueue bool          `yaml:"enable_priority_queue"`
	DrainTimeout        time.Duration `yaml:"drain_timeout"` // Default: 10s
}

// BrokerConfig controls the named-route registry layered on the bus.
type BrokerConfig struct {
	MaxRoutes      int           `yaml:"max_routes"`      // Default: 256, 0 = unlimited
	DefaultTimeout time.Duration `yaml:"default_timeout"` // Default: 5s
}

// WorkerConfig controls the task worker pool.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`      // Default: 8
	Queues          []string      `yaml:"queues"`           // Default: ["default"]
	PollInterval    time.Duration `yaml:"poll_interval"`    // Default: 200ms
	PrefetchCount   int           `yaml:"prefetch_count"`   // Default: 1, reserved for batched dequeue
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Default: 10s
}

// SchedulerConfig controls cron/interval scheduling.
type SchedulerConfig struct {
	Timezone string `yaml:"timezone"` // IANA zone name, default "UTC"
}

// ResultBackendConfig controls task result/state storage.
type ResultBackendConfig struct {
	Type string        `yaml:"type"` // "memory", "postgres", or "mirrored" (both)
	TTL  time.Duration `yaml:"ttl"`  // Default: 1h, applies to the in-memory backend
}

// PostgresConfig holds connection settings for the durable result
// backend (internal/resultbackend/postgres.go), kept optional since
// most deployments run the in-memory backend alone.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"` // Default: 10
	MinConns int32  `yaml:"min_conns"` // Default: 0
}

// RedisConfig holds connection settings for the optional Redis-backed
// queue notifier, mirroring MetricsConfig's enabled-flag-plus-settings
// shape.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // Default: "localhost:6379"
	DB      int    `yaml:"db"`
}

// BackendConfig selects and configures the execution backend.
type BackendConfig struct {
	Type        string `yaml:"type"` // "standalone" or "integrated"
	Concurrency int    `yaml:"concurrency"`
}

// MetricsConfig controls the optional Prometheus sink.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"` // Default: "novafabric"
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Config is the root configuration object embedding every component's
// settings under one nested struct per concern.
type Config struct {
	Queue         QueueConfig         `yaml:"queue"`
	Bus           BusConfig           `yaml:"bus"`
	Broker        BrokerConfig        `yaml:"broker"`
	Worker        WorkerConfig        `yaml:"worker"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	ResultBackend ResultBackendConfig `yaml:"result_backend"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	Backend       BackendConfig       `yaml:"backend"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// Default returns a Config populated with the daemon's defaults, so a
// caller loading no file still gets a runnable configuration. Some of
// these differ from the fallbacks a component applies to zero-valued
// options when constructed directly: a zero queue MaxSize or broker
// MaxRoutes means unbounded there, and the bus falls back to a 30s
// processing timeout.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			MaxSize:         10000,
			DropOnFull:      false,
			PriorityEnabled: false,
		},
		Bus: BusConfig{
			WorkerThreads:     4,
			ProcessingTimeout: 5 * time.Second,
			DrainTimeout:      10 * time.Second,
		},
		Broker: BrokerConfig{
			MaxRoutes:      256,
			DefaultTimeout: 5 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:     8,
			Queues:          []string{"default"},
			PollInterval:    200 * time.Millisecond,
			PrefetchCount:   1,
			ShutdownTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Timezone: "UTC",
		},
		ResultBackend: ResultBackendConfig{
			Type: "memory",
			TTL:  time.Hour,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
		},
		Backend: BackendConfig{
			Type:        "standalone",
			Concurrency: 8,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "novafabric",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile reads a YAML config file over top of Default, so a file
// only needs to set the fields it wants to override.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv overlays NOVAFABRIC_* environment variables onto cfg.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NOVAFABRIC_QUEUE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxSize = n
		}
	}
	if v := os.Getenv("NOVAFABRIC_BUS_WORKER_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.WorkerThreads = n
		}
	}
	if v := os.Getenv("NOVAFABRIC_BUS_PROCESSING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bus.ProcessingTimeout = d
		}
	}
	if v := os.Getenv("NOVAFABRIC_WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Concurrency = n
		}
	}
	if v := os.Getenv("NOVAFABRIC_WORKER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.PollInterval = d
		}
	}
	if v := os.Getenv("NOVAFABRIC_SCHEDULER_TIMEZONE"); v != "" {
		cfg.Scheduler.Timezone = v
	}
	if v := os.Getenv("NOVAFABRIC_BACKEND_TYPE"); v != "" {
		cfg.Backend.Type = v
	}
	if v := os.Getenv("NOVAFABRIC_RESULT_BACKEND_TYPE"); v != "" {
		cfg.ResultBackend.Type = v
	}
	if v := os.Getenv("NOVAFABRIC_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NOVAFABRIC_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("NOVAFABRIC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("NOVAFABRIC_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("NOVAFABRIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NOVAFABRIC_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
