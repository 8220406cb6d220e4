package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

type countingJob struct {
	executed *atomic.Bool
	failN    *atomic.Int32 // fails while > 0, decrementing each call
}

func (j *countingJob) Handle(ctx context.Context) error {
	if j.failN != nil && j.failN.Load() > 0 {
		j.failN.Add(-1)
		return errors.New("not yet")
	}
	if j.executed != nil {
		j.executed.Store(true)
	}
	return nil
}

func (j *countingJob) ToMap() map[string]any { return map[string]any{} }

func newSyncDriver(t *testing.T, cfg queue.DriverConfig) *queue.SyncDriver {
	t.Helper()
	d, err := queue.NewSyncDriver(cfg, nil, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("new sync driver: %v", err)
	}
	return d
}

func TestSyncDriverExecutesImmediately(t *testing.T) {
	d := newSyncDriver(t, queue.DriverConfig{Name: "sync"})

	executed := &atomic.Bool{}
	if err := d.Enqueue("counting", &countingJob{executed: executed}, queue.EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if !executed.Load() {
		t.Error("expected handler to run within Enqueue")
	}

	stats := d.Stats()
	if stats["queue_depth"] != 0 {
		t.Errorf("queue_depth = %v, want 0", stats["queue_depth"])
	}
	if stats["total_completed"] != int64(1) {
		t.Errorf("total_completed = %v, want 1", stats["total_completed"])
	}
}
