package scheduler

import (
	"context"
	"testing"
	"time"

	"OlxWatcher/internal/clock"
)

func TestIntervalSchedulerRunsImmediatelyThenEveryInterval(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFake(start)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeps := 0
	fake.OnSleep = func(time.Duration) {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
	}

	var triggers []time.Time
	s := NewIntervalScheduler(2*time.Minute, fake)
	err := s.Run(ctx, func(_ context.Context, trigger time.Time) {
		triggers = append(triggers, trigger)
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(triggers) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(triggers))
	}
	if !triggers[0].Equal(start) || !triggers[1].Equal(start.Add(2*time.Minute)) {
		t.Fatalf("unexpected triggers: %v", triggers)
	}
	got := fake.Sleeps()
	if len(got) != 2 || got[0] != 2*time.Minute || got[1] != 2*time.Minute {
		t.Fatalf("unexpected sleeps: %v", got)
	}
}

func TestIntervalSchedulerRejectsZeroInterval(t *testing.T) {
	t.Parallel()

	err := NewIntervalScheduler(0, clock.NewFake(time.Time{})).Run(context.Background(), func(context.Context, time.Time) {})
	if err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestIntervalSchedulerStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs := 0
	err := NewIntervalScheduler(time.Minute, clock.NewFake(time.Time{})).Run(ctx, func(context.Context, time.Time) { runs++ })
	if err != nil || runs != 0 {
		t.Fatalf("expected clean stop without runs, got err=%v runs=%d", err, runs)
	}
}
