// Package task implements the task envelope and state machine: a unit
// of deferred work with its own identity, configuration and payload,
// separate from a message envelope.
package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/message"
	"github.com/oriys/novafabric/internal/value"
)

// State is a task's position in its execution state machine.
type State string

const (
	StatePending   State = "pending"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateRetrying  State = "retrying"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// transitions enumerates the legal state machine edges.
var transitions = map[State][]State{
	StatePending:   {StateQueued, StateCancelled, StateExpired},
	StateQueued:    {StateRunning, StateCancelled, StateExpired},
	StateRunning:   {StateSucceeded, StateFailed, StateRetrying, StateCancelled},
	StateRetrying:  {StateQueued, StateCancelled, StateExpired},
	StateSucceeded: {},
	StateFailed:    {},
	StateCancelled: {},
	StateExpired:   {},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Config holds the tunables that govern how a task is scheduled, retried,
// and expired.
type Config struct {
	Timeout               time.Duration
	MaxRetries            int
	RetryDelay            time.Duration
	RetryBackoffMultiplier float64
	Priority              message.Priority
	ETA                   time.Time // zero means run as soon as queued
	Expires               time.Time // zero means never expires
	QueueName             string
	Tags                  []string
}

// DefaultConfig returns the baseline configuration New uses when given a
// nil Config; a non-nil Config is used as given, without per-field
// defaulting.
func DefaultConfig() Config {
	return Config{
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		RetryDelay:             time.Second,
		RetryBackoffMultiplier: 2.0,
		Priority:               message.PriorityNormal,
		QueueName:              "default",
	}
}

// Task is the unit of deferred work processed by the worker pool. It
// carries its own fields and a value.Container payload; it neither
// embeds nor holds a message envelope.
type Task struct {
	ID        string
	Name      string
	State     State
	Config    Config
	Payload   *value.Container
	CreatedAt time.Time

	Attempt     int
	LastError   string
	ParentID    string
	Children    []string
	Result      *value.Container
	UpdatedAt   time.Time
}

// New creates a pending task for the named handler with the given config.
// A nil config falls back to DefaultConfig.
func New(name string, cfg *Config, payload *value.Container) *Task {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if payload == nil {
		payload = value.New()
	}
	now := time.Now()
	return &Task{
		ID:        uuid.NewString(),
		Name:      name,
		State:     StatePending,
		Config:    c,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the task to 'to' if legal, updating UpdatedAt.
func (t *Task) Transition(to State) error {
	if !CanTransition(t.State, to) {
		return ferrors.New(ferrors.InvalidTransition, "task.Transition",
			"illegal transition from "+string(t.State)+" to "+string(to))
	}
	t.State = to
	t.UpdatedAt = time.Now()
	return nil
}

// Expired reports whether the task has outlived its Config.Expires
// deadline. A zero Expires means the task never expires.
func (t *Task) Expired() bool {
	if t.Config.Expires.IsZero() {
		return false
	}
	return time.Now().After(t.Config.Expires)
}

// Due reports whether the task's ETA has arrived (zero ETA means due
// immediately).
func (t *Task) Due() bool {
	return t.Config.ETA.IsZero() || !time.Now().Before(t.Config.ETA)
}

// NextRetryDelay computes the backoff delay for the upcoming retry attempt,
// using Config.RetryDelay scaled by RetryBackoffMultiplier^attempt.
func (t *Task) NextRetryDelay() time.Duration {
	mult := t.Config.RetryBackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	delay := float64(t.Config.RetryDelay)
	for i := 0; i < t.Attempt; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// HasTag reports whether tag is present in Config.Tags.
func (t *Task) HasTag(tag string) bool {
	for _, tg := range t.Config.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}
