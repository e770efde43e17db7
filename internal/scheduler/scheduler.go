// Package scheduler implements the cron and fixed-interval task
// scheduler, wrapping robfig/cron/v3 for the cron half and a
// per-entry ticker goroutine for the interval half.
package scheduler

import (
	"sync"
	"time"

	"github.com/oriys/novafabric/internal/ferrors"
	"github.com/oriys/novafabric/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is invoked when a schedule fires.
type Job func()

// Scheduler manages cron-expression and fixed-interval triggers, backed by
// robfig/cron/v3 for the cron half and one ticker goroutine per entry for
// the interval half.
type Scheduler struct {
	cron *cron.Cron

	mu          sync.Mutex
	cronEntries map[string]cron.EntryID
	intervals   map[string]*intervalEntry

	changed chan struct{}
	started bool
}

type intervalEntry struct {
	stop chan struct{}
}

// New creates a Scheduler using the standard 5-field cron parser
// (minute hour dom month dow).
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		cronEntries: make(map[string]cron.EntryID),
		intervals:   make(map[string]*intervalEntry),
		changed:     make(chan struct{}, 1),
	}
}

// Start launches the underlying cron scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	logging.Op().Info("scheduler started")
}

// Stop halts the cron scheduler and every interval trigger.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	s.cron.Stop()
	for _, e := range s.intervals {
		close(e.stop)
	}
	s.intervals = make(map[string]*intervalEntry)
	logging.Op().Info("scheduler stopped")
}

// AddCron registers a 5-field cron expression under name, replacing any
// existing schedule with that name.
func (s *Scheduler) AddCron(name, expr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.cronEntries[name]; ok {
		s.cron.Remove(id)
		delete(s.cronEntries, name)
	}
	id, err := s.cron.AddFunc(expr, func() {
		logging.Op().Debug("cron schedule firing", "name", name)
		job()
	})
	if err != nil {
		return ferrors.Wrap(ferrors.InvalidMessage, "scheduler.AddCron", err)
	}
	s.cronEntries[name] = id
	s.signalChanged()
	return nil
}

// AddInterval registers a fixed-interval trigger under name, replacing any
// existing schedule with that name.
func (s *Scheduler) AddInterval(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return ferrors.New(ferrors.InvalidMessage, "scheduler.AddInterval", "interval must be positive")
	}
	s.mu.Lock()
	if e, ok := s.intervals[name]; ok {
		close(e.stop)
	}
	entry := &intervalEntry{stop: make(chan struct{})}
	s.intervals[name] = entry
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-entry.stop:
				return
			case <-ticker.C:
				logging.Op().Debug("interval schedule firing", "name", name)
				job()
			}
		}
	}()
	s.signalChanged()
	return nil
}

// Remove unregisters a cron or interval schedule by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.cronEntries[name]; ok {
		s.cron.Remove(id)
		delete(s.cronEntries, name)
		s.signalChanged()
		return
	}
	if e, ok := s.intervals[name]; ok {
		close(e.stop)
		delete(s.intervals, name)
		s.signalChanged()
	}
}

// Changed returns a channel that receives a signal whenever a schedule is
// added or removed, letting observers wake on schedule-set changes instead
// of polling.
func (s *Scheduler) Changed() <-chan struct{} { return s.changed }

func (s *Scheduler) signalChanged() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
