// Package schedule runs reconciliation jobs on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler manages cron-based job execution. A job that is still running
// when its next tick arrives skips that tick.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID // job name → cron entry
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers job under name with a standard five-field cron expression
// or a descriptor such as "@daily" or "@every 6h".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("job %q is already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()

		started := time.Now()
		s.logger.Info("scheduled job started", "job", name)
		if err := job(ctx); err != nil {
			s.logger.Warn("scheduled job failed", "job", name, "error", err, "duration", time.Since(started))
			return
		}
		s.logger.Info("scheduled job finished", "job", name, "duration", time.Since(started))
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	s.entries[name] = entryID
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
	return nil
}

// Next returns the next activation time of the named job. It is zero when
// the job is unknown or the scheduler has not been started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Run starts the scheduler and blocks until ctx is done. Jobs receive ctx;
// running jobs are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops the scheduler and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
