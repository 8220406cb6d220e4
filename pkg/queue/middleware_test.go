package queue_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

func execThroughPipeline(t *testing.T, p *queue.Pipeline, jc *queue.JobContext, terminal queue.Next) *queue.Context {
	t.Helper()
	ctx := &queue.Context{JobCtx: jc, Metadata: jc.Metadata, StartedAt: time.Now()}
	_ = p.Execute(ctx, terminal)
	return ctx
}

func TestTimingMiddlewareRecordsProcessingTime(t *testing.T) {
	var captured time.Duration
	p := queue.NewPipeline().Add(&queue.TimingMiddleware{
		OnComplete: func(_ string, d time.Duration) { captured = d },
	})

	jc := queue.NewJobContext("noop", &recordJob{}, queue.PriorityNormal, 0)
	execThroughPipeline(t, p, jc, func() error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	if captured < 5*time.Millisecond {
		t.Errorf("captured duration %v, want >= 5ms", captured)
	}
	if _, ok := jc.Metadata["processingTime"]; !ok {
		t.Error("expected processingTime in metadata")
	}
}

func TestTimeoutMiddlewareExceedsDeadline(t *testing.T) {
	p := queue.NewPipeline().Add(&queue.TimeoutMiddleware{Deadline: 10 * time.Millisecond})

	jc := queue.NewJobContext("noop", &recordJob{}, queue.PriorityNormal, 0)
	ctx := execThroughPipeline(t, p, jc, func() error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})

	if !errors.Is(ctx.Err, queue.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", ctx.Err)
	}
}

func TestDedupeMiddlewareSkipsWithinWindow(t *testing.T) {
	calls := 0
	mw := &queue.DedupeMiddleware{Window: time.Hour}
	p := queue.NewPipeline().Add(mw)

	run := func() {
		jc := queue.NewJobContext("noop", &recordJob{}, queue.PriorityNormal, 0)
		jc.Metadata["job_id"] = "fixed-key"
		execThroughPipeline(t, p, jc, func() error {
			calls++
			return nil
		})
	}

	run()
	run()

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second call should have been deduped)", calls)
	}
}

func TestDedupeMiddlewareAllowsAfterWindowExpiry(t *testing.T) {
	calls := 0
	mw := &queue.DedupeMiddleware{Window: 10 * time.Millisecond}
	p := queue.NewPipeline().Add(mw)

	run := func() {
		jc := queue.NewJobContext("noop", &recordJob{}, queue.PriorityNormal, 0)
		jc.Metadata["job_id"] = "fixed-key"
		execThroughPipeline(t, p, jc, func() error {
			calls++
			return nil
		})
	}

	run()
	time.Sleep(20 * time.Millisecond)
	run()

	if calls != 2 {
		t.Errorf("calls = %d, want 2 (window should have expired)", calls)
	}
}

func TestRetryMiddlewareRespectsPermanentError(t *testing.T) {
	attempts := 0
	mw := &queue.RetryMiddleware{MaxAttempts: 5, BaseDelay: time.Millisecond}
	p := queue.NewPipeline().Add(mw)

	jc := queue.NewJobContext("noop", &recordJob{}, queue.PriorityNormal, 0)
	ctx := execThroughPipeline(t, p, jc, func() error {
		attempts++
		return queue.Permanent(errors.New("no point retrying"))
	})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (permanent error should not retry)", attempts)
	}
	if ctx.Err == nil {
		t.Error("expected error to propagate")
	}
}
