package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EnqueueOptions carries per-enqueue overrides: Delay (default zero, meaning
// immediately ready) and Priority. Priority is used as given; its zero value
// is PriorityLow, and no PriorityNormal default is applied when it is unset.
type EnqueueOptions struct {
	Delay    time.Duration
	Priority Priority
}

// Driver is a backend implementation of the queue contract (spec 4.4):
// synchronous, in-memory, file, or network. All variants share the base
// enqueue/success/failure bookkeeping below; they differ only in how they
// store pending contexts and select the next ready one.
type Driver interface {
	Enqueue(typeName string, job Job, opts EnqueueOptions) error
	ProcessOne(ctx context.Context) error
	Clear() error
	Dispose() error
	Stats() map[string]any
}

// base holds everything shared across driver variants: the job registry
// (for redis's wire envelope), the metrics sink, the DLQ, the middleware
// pipeline, and the retry policy. It is never used directly as a Driver —
// variants embed it and supply their own storage/selection.
//
// Per spec 9 ("cyclic references among components"), metrics and the DLQ
// are constructor-injected ports; base never constructs a concrete
// implementation itself.
type base struct {
	registry *Registry
	metrics  *Metrics
	dlq      DLQ
	pipeline *Pipeline
	retry    RetryPolicy
	useDLQ   bool
	log      Logger
}

func newBase(cfg DriverConfig, registry *Registry, metrics *Metrics, dlq DLQ, pipeline *Pipeline, log Logger) (base, error) {
	if cfg.Name == "" {
		return base{}, fmt.Errorf("%w: empty driver name", ErrValidation)
	}
	if registry == nil {
		registry = DefaultRegistry
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	if log == nil {
		log = DiscardLogger{}
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return base{
		registry: registry,
		metrics:  metrics,
		dlq:      dlq,
		pipeline: pipeline,
		retry:    retry,
		useDLQ:   cfg.UseDLQ,
		log:      log,
	}, nil
}

// newJobContext validates opts and constructs a fresh pending JobContext,
// recording the jobQueued metric.
func (b *base) newJobContext(typeName string, job Job, opts EnqueueOptions) (*JobContext, error) {
	if typeName == "" {
		return nil, fmt.Errorf("%w: empty job type", ErrValidation)
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("%w: negative delay", ErrValidation)
	}

	priority := opts.Priority
	jc := NewJobContext(typeName, job, priority, opts.Delay)
	b.metrics.JobQueued(typeName, priority)
	return jc, nil
}

// runOnce executes jc through the middleware pipeline exactly once,
// recording jobStarted beforehand. It returns the handler/middleware error,
// if any; callers decide retry vs. dead-letter via finishAttempt.
func (b *base) runOnce(ctx context.Context, jc *JobContext) error {
	jc.Status = StatusProcessing
	jc.Attempts++
	b.metrics.JobStarted()

	mwCtx := &Context{
		JobCtx:    jc,
		Metadata:  jc.Metadata,
		StartedAt: time.Now(),
	}

	err := b.pipeline.Execute(mwCtx, terminalHandle(ctx, mwCtx))
	return err
}

// finishAttempt applies spec 4.4's success/failure bookkeeping after a
// runOnce call. On success it marks the context completed. On failure it
// either schedules a retry (status back to pending, scheduledFor bumped by
// the backoff delay) or dead-letters the job, pushing a FailedJob snapshot
// and invoking an optional OnFailer hook. Returns true when jc should be
// removed from the driver's store (completed or dead-lettered), false when
// it should be kept around pending retry.
func (b *base) finishAttempt(ctx context.Context, jc *JobContext, err error) (remove bool) {
	name := displayName(jc.TypeName, jc.Job)

	if err == nil {
		jc.Status = StatusCompleted
		elapsed, _ := jc.Metadata["processingTime"].(time.Duration)
		b.metrics.JobCompleted(name, elapsed)
		return true
	}

	jc.Err = err.Error()

	isTimeout := errors.Is(err, ErrTimeout)
	if isTimeout {
		b.metrics.JobTimedOut(name)
	}

	permanent := IsPermanent(err)
	if !permanent && jc.Attempts < b.retry.MaxAttempts {
		delay := b.retry.delay(jc.Attempts)
		readyAt := time.Now().Add(delay)
		jc.ScheduledFor = &readyAt
		jc.Status = StatusPending
		b.metrics.JobRetried(name)
		return false
	}

	jc.Status = StatusDeadLettered
	b.metrics.JobFailed(name)

	if hook, ok := jc.Job.(OnFailer); ok {
		hook.OnFailure(ctx, err)
	}

	if b.useDLQ && b.dlq != nil {
		_ = b.dlq.Store(FailedJob{
			ID:         jc.ID,
			JobType:    jc.TypeName,
			Payload:    jc.Job.ToMap(),
			Error:      jc.Err,
			StackTrace: jc.StackTrace,
			FailedAt:   time.Now(),
			Attempts:   jc.Attempts,
			Metadata:   jc.Metadata,
		})
	}
	return true
}
