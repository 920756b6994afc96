package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJobs(t *testing.T) {
	var count int32
	sched := NewScheduler(10*time.Millisecond, nil)
	sched.Add("count", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sched.Start(ctx)
	if c := atomic.LoadInt32(&count); c == 0 {
		t.Fatalf("expected jobs to run, got %d", c)
	}
}

func TestSchedulerRunOnceContinuesAfterFailure(t *testing.T) {
	var count int32
	sched := NewScheduler(time.Hour, nil)
	sched.Add("broken", func(ctx context.Context) error { return errors.New("boom") })
	sched.Add("count", func(ctx context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	sched.RunOnce(context.Background())
	if c := atomic.LoadInt32(&count); c != 1 {
		t.Fatalf("expected second job to run once, got %d", c)
	}
}
