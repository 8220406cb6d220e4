package queue_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

func sampleFailedJob(id, jobType string) queue.FailedJob {
	return queue.FailedJob{
		ID: id, JobType: jobType, Payload: map[string]any{"x": 1},
		Error: "boom", FailedAt: time.Now(), Attempts: 2,
	}
}

func TestMemoryDLQStoreAndGet(t *testing.T) {
	dlq := queue.NewMemoryDLQ()
	job := sampleFailedJob("1", "greet")
	if err := dlq.Store(job); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok := dlq.Get("1")
	if !ok {
		t.Fatal("expected job to be found")
	}
	if got.Error != "boom" {
		t.Errorf("error = %q, want boom", got.Error)
	}
	if dlq.Count() != 1 {
		t.Errorf("count = %d, want 1", dlq.Count())
	}
}

func TestMemoryDLQGetByType(t *testing.T) {
	dlq := queue.NewMemoryDLQ()
	_ = dlq.Store(sampleFailedJob("1", "greet"))
	_ = dlq.Store(sampleFailedJob("2", "other"))

	got := dlq.GetByType("greet")
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("GetByType(greet) = %+v, want one record with id 1", got)
	}
}

func TestFileDLQPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dlq.json")

	dlq1, err := queue.NewFileDLQ(path)
	if err != nil {
		t.Fatalf("new file dlq: %v", err)
	}
	_ = dlq1.Store(sampleFailedJob("1", "greet"))

	dlq2, err := queue.NewFileDLQ(path)
	if err != nil {
		t.Fatalf("reload file dlq: %v", err)
	}
	if dlq2.Count() != 1 {
		t.Errorf("count after reload = %d, want 1", dlq2.Count())
	}
}

func TestMemoryDLQRemoveAndClear(t *testing.T) {
	dlq := queue.NewMemoryDLQ()
	_ = dlq.Store(sampleFailedJob("1", "greet"))
	_ = dlq.Remove("1")
	if dlq.Count() != 0 {
		t.Errorf("count after remove = %d, want 0", dlq.Count())
	}

	_ = dlq.Store(sampleFailedJob("2", "greet"))
	dlq.Clear()
	if dlq.Count() != 0 {
		t.Errorf("count after clear = %d, want 0", dlq.Count())
	}
}
