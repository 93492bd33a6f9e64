// Package scheduler reruns the pipeline on a cron schedule in serve mode.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/totals-edge/internal/logger"
	"github.com/yourusername/totals-edge/internal/service"
)

// Runner executes one pipeline pass
type Runner interface {
	Run(ctx context.Context, opts service.RunOptions) (*service.RunResult, error)
}

// Scheduler manages scheduled pipeline runs
type Scheduler struct {
	cron       *cron.Cron
	runner     Runner
	logger     *logrus.Logger
	runTimeout time.Duration

	mu        sync.RWMutex
	isRunning bool
	jobIDs    []cron.EntryID
	lastErr   error
	lastRun   time.Time
}

// NewScheduler creates a scheduler in UTC. runTimeout bounds each job; zero means no bound.
func NewScheduler(runner Runner, runTimeout time.Duration, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		runner:     runner,
		logger:     logger.OrDiscard(log),
		runTimeout: runTimeout,
		jobIDs:     make([]cron.EntryID, 0),
	}
}

// SchedulePipeline adds a pipeline job on a standard five-field cron expression
func (s *Scheduler) SchedulePipeline(cronExpression string, opts service.RunOptions) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		s.RunNow(context.Background(), opts)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithField("schedule", cronExpression).Info("Scheduled pipeline run")
	return entryID, nil
}

// RunNow executes the pipeline immediately and records the outcome
func (s *Scheduler) RunNow(ctx context.Context, opts service.RunOptions) error {
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	s.logger.WithField("evaluate_only", opts.EvaluateOnly).Info("Starting scheduled pipeline run")
	result, err := s.runner.Run(ctx, opts)

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("Scheduled pipeline run failed")
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":  result.Report.RunID,
		"matches": result.Report.Matches,
		"bets":    len(result.Report.Recommendations),
	}).Info("Scheduled pipeline run completed")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler, waiting up to timeout for a running job
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduler stop timed out after %s", timeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastRun returns when the last job finished and its error
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		if entry := s.cron.Entry(jobID); entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(jobID cron.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}

	s.cron.Remove(jobID)
	for i, id := range s.jobIDs {
		if id == jobID {
			s.jobIDs = append(s.jobIDs[:i], s.jobIDs[i+1:]...)
			break
		}
	}
	s.logger.WithField("job_id", jobID).Info("Removed job")
	return nil
}
