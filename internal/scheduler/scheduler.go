// Package scheduler arms timers for future work and keeps them durable.
// Every armed timer is mirrored in the scheduled_jobs table, so a process
// restart rearms everything that was pending instead of losing it.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/foreman/internal/ports/secondary"
)

// HandlerFunc executes a fired job. Handlers are registered per job kind.
type HandlerFunc func(ctx context.Context, job *secondary.ScheduledJobRecord) error

// ErrorFunc receives handler failures; the scheduler itself has no one
// to return an error to when a timer fires.
type ErrorFunc func(job *secondary.ScheduledJobRecord, err error)

// Scheduler manages keyed one-shot timers backed by the job store.
// Scheduling an existing key replaces its timer; keys make retries
// idempotent across duplicate hook deliveries.
type Scheduler struct {
	jobs    secondary.JobRepository
	onError ErrorFunc

	mu       sync.Mutex
	timers   map[string]*time.Timer
	handlers map[string]HandlerFunc
	stopped  bool
}

// New creates a scheduler over the given job store. onError may be nil.
func New(jobs secondary.JobRepository, onError ErrorFunc) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		onError:  onError,
		timers:   make(map[string]*time.Timer),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register installs the handler for a job kind. Must be called for every
// kind before Rearm; firing a kind without a handler is reported to
// onError and the job is dropped.
func (s *Scheduler) Register(kind string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// Schedule persists the job and arms its timer for delay from now.
// An existing job with the same key is replaced.
func (s *Scheduler) Schedule(ctx context.Context, job *secondary.ScheduledJobRecord, delay time.Duration) error {
	job.FireAt = time.Now().UTC().Add(delay).Format(time.RFC3339)
	if err := s.jobs.Upsert(ctx, job); err != nil {
		return fmt.Errorf("failed to persist scheduled job %s: %w", job.Key, err)
	}
	s.arm(job, delay)
	return nil
}

// Cancel stops the timer for key and removes the stored job. Cancelling an
// unknown key is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
	s.mu.Unlock()
	return s.jobs.Delete(ctx, key)
}

// Rearm loads all pending jobs and arms their timers. Jobs whose fire
// time already passed fire immediately. Returns the number rearmed.
func (s *Scheduler) Rearm(ctx context.Context) (int, error) {
	pending, err := s.jobs.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	now := time.Now().UTC()
	for _, job := range pending {
		fireAt, err := time.Parse(time.RFC3339, job.FireAt)
		if err != nil {
			fireAt = now
		}
		delay := fireAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		s.arm(job, delay)
	}
	return len(pending), nil
}

// Stop cancels all armed timers without touching the store, so a later
// Rearm picks the jobs back up.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) arm(job *secondary.ScheduledJobRecord, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if timer, ok := s.timers[job.Key]; ok {
		timer.Stop()
	}
	s.timers[job.Key] = time.AfterFunc(delay, func() { s.fire(job) })
}

func (s *Scheduler) fire(job *secondary.ScheduledJobRecord) {
	s.mu.Lock()
	delete(s.timers, job.Key)
	handler, ok := s.handlers[job.Kind]
	s.mu.Unlock()

	ctx := context.Background()

	if !ok {
		s.report(job, fmt.Errorf("no handler registered for kind %s", job.Kind))
		_ = s.jobs.Delete(ctx, job.Key)
		return
	}

	// The row is deleted before running so a handler that reschedules the
	// same key does not race its own cleanup.
	if err := s.jobs.Delete(ctx, job.Key); err != nil {
		s.report(job, fmt.Errorf("failed to delete fired job: %w", err))
	}
	if err := handler(ctx, job); err != nil {
		s.report(job, err)
	}
}

func (s *Scheduler) report(job *secondary.ScheduledJobRecord, err error) {
	if s.onError != nil {
		s.onError(job, err)
	}
}
