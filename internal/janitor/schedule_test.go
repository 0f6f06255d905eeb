package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleFiresOnStartAndOnInterval(t *testing.T) {
	captureLogs(t)
	var fired atomic.Int32
	s := NewSchedule(JobSweep, 10*time.Millisecond, func(ctx context.Context, job Job) error {
		require.Equal(t, JobSweep, job)
		fired.Add(1)
		return nil
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := fired.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, fired.Load())
}

func TestScheduleKeepsFiringAfterErrors(t *testing.T) {
	logs := captureLogs(t)
	var fired atomic.Int32
	s := NewSchedule(JobReconcile, 5*time.Millisecond, func(ctx context.Context, job Job) error {
		fired.Add(1)
		return errors.New("queue unavailable")
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return fired.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	require.Contains(t, logs.String(), "janitor.schedule.fire_failed")
}

func TestScheduleDisabledWithoutInterval(t *testing.T) {
	captureLogs(t)
	var fired atomic.Int32
	s := NewSchedule(JobSweep, 0, func(ctx context.Context, job Job) error {
		fired.Add(1)
		return nil
	})

	s.Start(context.Background())
	s.Stop()
	require.Zero(t, fired.Load())
}

func TestScheduleStopsWithContext(t *testing.T) {
	captureLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSchedule(JobSweep, time.Hour, func(ctx context.Context, job Job) error { return nil })

	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("schedule did not stop after context cancel")
	}
}
