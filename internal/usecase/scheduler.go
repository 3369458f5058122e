package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// RunReport describes the most recent scheduled run.
type RunReport struct {
	Trigger  time.Time
	Duration time.Duration
	Stats    domain.RunStats
	Err      error
}

// Scheduler wires the cron-like driver with the smart refresh workflow.
type Scheduler struct {
	driver     ports.Scheduler
	pipeline   *Pipeline
	runTimeout time.Duration
	logger     *slog.Logger

	mu   sync.RWMutex
	last *RunReport
}

// NewScheduler returns a helper to start/stop recurring refreshes.
// A positive runTimeout bounds each scheduled run.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:     driver,
		pipeline:   pipeline,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start registers SmartRefresh with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		runCtx := ctx
		if s.runTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
			defer cancel()
		}

		started := time.Now()
		stats, err := s.pipeline.SmartRefresh(runCtx)
		if err != nil {
			s.logger.Error("scheduled refresh failed", "trigger", trigger, "error", err)
		}
		s.mu.Lock()
		s.last = &RunReport{Trigger: trigger, Duration: time.Since(started), Stats: stats, Err: err}
		s.mu.Unlock()
	}

	return s.driver.Start(ctx, job)
}

// LastRun reports the latest scheduled run, if any has finished.
func (s *Scheduler) LastRun() (RunReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return RunReport{}, false
	}
	return *s.last, true
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
