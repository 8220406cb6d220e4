package queue

import (
	"context"
	"time"
)

// SyncDriver runs jobs inline at Enqueue time (sleeping first if a delay was
// requested); ProcessOne is a no-op since nothing is ever pending, and
// Stats().queue_depth is always 0.
type SyncDriver struct {
	base
}

// NewSyncDriver returns a Driver that executes synchronously on Enqueue.
func NewSyncDriver(cfg DriverConfig, registry *Registry, metrics *Metrics, dlq DLQ, pipeline *Pipeline, log Logger) (*SyncDriver, error) {
	b, err := newBase(cfg, registry, metrics, dlq, pipeline, log)
	if err != nil {
		return nil, err
	}
	return &SyncDriver{base: b}, nil
}

func (d *SyncDriver) Enqueue(typeName string, job Job, opts EnqueueOptions) error {
	jc, err := d.newJobContext(typeName, job, opts)
	if err != nil {
		return err
	}

	if opts.Delay > 0 {
		time.Sleep(opts.Delay)
	}

	for {
		runErr := d.runOnce(context.Background(), jc)
		if done := d.finishAttempt(context.Background(), jc, runErr); done {
			return nil
		}
		// Retry inline — a synchronous driver has no background
		// scheduler to honor ScheduledFor, so it waits out the backoff itself.
		if jc.ScheduledFor != nil {
			time.Sleep(time.Until(*jc.ScheduledFor))
		}
		jc.Status = StatusPending
	}
}

func (d *SyncDriver) ProcessOne(ctx context.Context) error { return nil }

func (d *SyncDriver) Clear() error { return nil }

func (d *SyncDriver) Dispose() error { return nil }

func (d *SyncDriver) Stats() map[string]any {
	stats := d.metrics.ToMap()
	stats["queue_depth"] = 0
	return stats
}
