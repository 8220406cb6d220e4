package queue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

func newMemoryDriver(t *testing.T, cfg queue.DriverConfig) *queue.MemoryDriver {
	t.Helper()
	d, err := queue.NewMemoryDriver(cfg, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new memory driver: %v", err)
	}
	return d
}

func TestMemoryDriverDelayedOrdering(t *testing.T) {
	d := newMemoryDriver(t, queue.DriverConfig{Name: "memory"})

	slow := &recordJob{name: "slow"}
	fast := &recordJob{name: "fast"}

	_ = d.Enqueue("record", slow, queue.EnqueueOptions{Delay: 100 * time.Millisecond})
	_ = d.Enqueue("record", fast, queue.EnqueueOptions{Delay: 0})

	time.Sleep(10 * time.Millisecond)
	_ = d.ProcessOne(context.Background())

	if !fast.executed.Load() {
		t.Error("expected fast job to run first")
	}
	if slow.executed.Load() {
		t.Error("expected slow job not to have run yet")
	}

	time.Sleep(150 * time.Millisecond)
	_ = d.ProcessOne(context.Background())

	if !slow.executed.Load() {
		t.Error("expected slow job to run on second ProcessOne")
	}
	if d.Stats()["queue_depth"] != 0 {
		t.Errorf("queue_depth = %v, want 0", d.Stats()["queue_depth"])
	}
}

func TestMemoryDriverPriorityOrdering(t *testing.T) {
	d := newMemoryDriver(t, queue.DriverConfig{Name: "memory"})

	mk := func(name string) *recordJob { return &recordJob{name: name} }

	low, crit, high := mk("low"), mk("critical"), mk("high")
	_ = d.Enqueue("record", low, queue.EnqueueOptions{Priority: queue.PriorityLow})
	_ = d.Enqueue("record", crit, queue.EnqueueOptions{Priority: queue.PriorityCritical})
	_ = d.Enqueue("record", high, queue.EnqueueOptions{Priority: queue.PriorityHigh})

	for i, j := range []*recordJob{crit, high, low} {
		_ = d.ProcessOne(context.Background())
		if !j.executed.Load() {
			t.Errorf("call %d: expected %s to have executed", i+1, j.name)
		}
	}
}

func TestMemoryDriverRetryThenSuccess(t *testing.T) {
	d := newMemoryDriver(t, queue.DriverConfig{
		Name:  "memory",
		Retry: queue.RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Backoff: queue.LinearBackoff},
	})

	executed := &atomic.Bool{}
	failN := &atomic.Int32{}
	failN.Store(2)
	job := &countingJob{executed: executed, failN: failN}

	_ = d.Enqueue("counting", job, queue.EnqueueOptions{})

	for i := 0; i < 5 && !job.executed.Load(); i++ {
		_ = d.ProcessOne(context.Background())
		time.Sleep(15 * time.Millisecond)
	}

	if !job.executed.Load() {
		t.Fatal("expected job to eventually succeed")
	}

	stats := d.Stats()
	if stats["total_retried"] != int64(2) {
		t.Errorf("total_retried = %v, want 2", stats["total_retried"])
	}
	if stats["total_completed"] != int64(1) {
		t.Errorf("total_completed = %v, want 1", stats["total_completed"])
	}
	if stats["total_failed"] != int64(0) {
		t.Errorf("total_failed = %v, want 0", stats["total_failed"])
	}
}

func TestMemoryDriverDeadLetterOnExhaustion(t *testing.T) {
	dlq := queue.NewMemoryDLQ()
	d, err := queue.NewMemoryDriver(queue.DriverConfig{
		Name:   "memory",
		UseDLQ: true,
		Retry:  queue.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Backoff: queue.LinearBackoff},
	}, nil, nil, dlq, nil, nil)
	if err != nil {
		t.Fatalf("new memory driver: %v", err)
	}

	job := &alwaysFailJob{}
	_ = d.Enqueue("alwaysFail", job, queue.EnqueueOptions{})

	for i := 0; i < 3; i++ {
		_ = d.ProcessOne(context.Background())
		time.Sleep(5 * time.Millisecond)
	}

	if dlq.Count() != 1 {
		t.Fatalf("dlq count = %d, want 1", dlq.Count())
	}
	all := dlq.GetAll(0, 0)
	if all[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", all[0].Attempts)
	}
}
