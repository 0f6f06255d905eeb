package janitor

import (
	"context"
	"time"

	"carelog-backend/internal/shared/telemetry"
)

// FireFunc starts one run of job, inline or by enqueueing a trigger.
type FireFunc func(ctx context.Context, job Job) error

// Schedule fires a job on a fixed interval. A run that outlasts the interval delays the
// next tick instead of overlapping it.
type Schedule struct {
	job      Job
	interval time.Duration
	fire     FireFunc
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSchedule creates a schedule but does not start it.
func NewSchedule(job Job, interval time.Duration, fire FireFunc) *Schedule {
	return &Schedule{
		job:      job,
		interval: interval,
		fire:     fire,
		done:     make(chan struct{}),
	}
}

// Start fires once immediately, then on every interval until ctx ends or Stop is called.
// A non-positive interval disables the schedule.
func (s *Schedule) Start(ctx context.Context) {
	if s.interval <= 0 {
		telemetry.Warn("janitor.schedule.disabled", map[string]any{"job": string(s.job)})
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)

	telemetry.Info("janitor.schedule.started", map[string]any{
		"job":      string(s.job),
		"interval": s.interval.String(),
	})
}

// Stop signals the loop to exit and waits for the current run to finish.
func (s *Schedule) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Schedule) loop(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Schedule) tick(ctx context.Context) {
	if err := s.fire(ctx, s.job); err != nil {
		telemetry.Error("janitor.schedule.fire_failed", map[string]any{
			"job":   string(s.job),
			"error": err.Error(),
		})
	}
}
