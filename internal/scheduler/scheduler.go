// Package scheduler runs the periodic maintenance jobs: the daily spend reset, voucher
// expiry and the pending top-up sweep.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// JobFunc is one run of a scheduled job.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner whose jobs share a base context and never overlap with
// themselves.
type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	jobTimeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating schedules in UTC. Schedules use the standard
// five-field cron syntax and the @every/@daily descriptors.
func New(logger *slog.Logger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	cronLogger := &slogAdapter{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:     logger,
		jobTimeout: jobTimeout,
		ctx:        context.Background(),
	}
}

// Add registers a job. An empty schedule leaves the job disabled.
func (s *Scheduler) Add(name, schedule string, job JobFunc) error {
	if schedule == "" {
		s.logger.Info("scheduled job disabled", slog.String("job", name))
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.logger.Info("scheduled job registered", slog.String("job", name), slog.String("schedule", schedule))
	return nil
}

func (s *Scheduler) run(name string, job JobFunc) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(base, s.jobTimeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Debug("scheduled job finished",
		slog.String("job", name),
		slog.Duration("duration", time.Since(start)),
	)
}

// Start runs the scheduler in its own goroutine. Running jobs see ctx cancelled on Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop halts scheduling, cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slogAdapter satisfies cron.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a *slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append(keysAndValues, slog.Any("error", err))...)
}
