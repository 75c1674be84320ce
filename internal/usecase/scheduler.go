package usecase

import (
	"context"
	"log/slog"
	"time"

	"OlxWatcher/internal/ports"
)

// Scheduler wires the interval driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper that runs the pipeline on every driver tick.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Run blocks until ctx is cancelled. Failed cycles are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(ctx context.Context, trigger time.Time) {
		if err := s.pipeline.RunCycle(ctx, trigger); err != nil && ctx.Err() == nil && s.logger != nil {
			s.logger.Error("cycle failed", slog.String("error", err.Error()))
		}
	}

	return s.driver.Run(ctx, job)
}
