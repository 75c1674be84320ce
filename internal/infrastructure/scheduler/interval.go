package scheduler

import (
	"context"
	"errors"
	"time"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/ports"
)

// IntervalScheduler runs a job immediately and then once per interval.
// The interval is measured from the end of one run to the start of the next.
type IntervalScheduler struct {
	interval time.Duration
	clock    clock.Clock
}

var _ ports.Scheduler = (*IntervalScheduler)(nil)

// NewIntervalScheduler builds a scheduler; c defaults to the wall clock.
func NewIntervalScheduler(interval time.Duration, c clock.Clock) *IntervalScheduler {
	if c == nil {
		c = clock.Real{}
	}
	return &IntervalScheduler{interval: interval, clock: c}
}

// Run blocks until ctx is cancelled and returns nil on a clean stop.
func (s *IntervalScheduler) Run(ctx context.Context, job func(ctx context.Context, trigger time.Time)) error {
	if job == nil {
		return nil
	}
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		job(ctx, s.clock.Now())
		if err := s.clock.Sleep(ctx, s.interval); err != nil {
			return nil
		}
	}
}
