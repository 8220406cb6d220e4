package queue_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

func TestMetricsBasicCounters(t *testing.T) {
	m := queue.NewMetrics()

	m.JobQueued("greet", queue.PriorityNormal)
	m.JobStarted()
	m.JobCompleted("greet", 50*time.Millisecond)

	snap := m.ToMap()
	if snap["total_queued"] != int64(1) {
		t.Errorf("total_queued = %v, want 1", snap["total_queued"])
	}
	if snap["total_completed"] != int64(1) {
		t.Errorf("total_completed = %v, want 1", snap["total_completed"])
	}
	if snap["currently_processing"] != int64(0) {
		t.Errorf("currently_processing = %v, want 0", snap["currently_processing"])
	}
}

func TestMetricsPercentileOfEmptySampleIsZero(t *testing.T) {
	m := queue.NewMetrics()
	snap := m.ToMap()
	if snap["p95_processing_time_ms"] != 0.0 {
		t.Errorf("p95 of empty sample set = %v, want 0", snap["p95_processing_time_ms"])
	}
}

func TestMetricsToPrometheusFormat(t *testing.T) {
	m := queue.NewMetrics()
	m.JobQueued("greet", queue.PriorityNormal)

	text := m.ToPrometheus("myqueue")
	if !strings.Contains(text, "# HELP myqueue_total_queued") {
		t.Error("expected HELP line for total_queued")
	}
	if !strings.Contains(text, "# TYPE myqueue_total_queued counter") {
		t.Error("expected TYPE line for total_queued")
	}
	if !strings.Contains(text, `myqueue_processing_time_seconds{quantile="0.95"}`) {
		t.Error("expected p95 summary line")
	}
}

func TestMetricsInvariantStartedEqualsOutcomes(t *testing.T) {
	m := queue.NewMetrics()
	m.JobStarted()
	m.JobCompleted("t", time.Millisecond)
	m.JobStarted()
	m.JobFailed("t")
	m.JobStarted() // left currently processing

	snap := m.ToMap()
	started := snap["total_started"].(int64)
	completed := snap["total_completed"].(int64)
	failed := snap["total_failed"].(int64)
	timedOut := snap["total_timed_out"].(int64)
	processing := snap["currently_processing"].(int64)

	if completed+failed+timedOut+processing != started {
		t.Errorf("invariant violated: %d+%d+%d+%d != %d", completed, failed, timedOut, processing, started)
	}
}
