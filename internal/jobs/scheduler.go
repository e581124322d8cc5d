package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PassRunner runs one scheduled analytics sweep over every known user.
type PassRunner interface {
	RunScheduledPasses(ctx context.Context)
}

// Scheduler runs recurring analytics passes on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	runner     PassRunner
	logger     *zap.SugaredLogger
	spec       string
	runTimeout time.Duration

	mu      sync.Mutex
	running bool
	entryID cron.EntryID
}

type SchedulerConfig struct {
	// CronSpec is a standard 5-field cron expression.
	CronSpec string
	// RunTimeout bounds a single sweep across all users.
	RunTimeout time.Duration
}

func NewScheduler(runner PassRunner, logger *zap.SugaredLogger, config SchedulerConfig) *Scheduler {
	timeout := config.RunTimeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(),
		runner:     runner,
		logger:     logger,
		spec:       config.CronSpec,
		runTimeout: timeout,
	}
}

// Start registers the analytics sweep and begins the cron loop. The sweep
// stops picking up new users once ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule analytics pass %q: %w", s.spec, err)
	}
	s.entryID = entryID
	s.running = true

	s.cron.Start()
	s.logger.Infow("Analytics scheduler started", "cron", s.spec, "run_timeout", s.runTimeout)
	return nil
}

func (s *Scheduler) runOnce(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, s.runTimeout)
	defer cancel()

	start := time.Now()
	s.logger.Infow("Scheduled analytics pass starting")

	s.runner.RunScheduledPasses(ctx)

	s.logger.Infow("Scheduled analytics pass finished", "duration", time.Since(start))
}

// Stop halts the cron loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Infow("Analytics scheduler stopped")
}

// NextRun reports when the sweep fires next; zero when not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}
