package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryDriver stores pending contexts in a PriorityQueue, scanning for the
// next ready one (selection tiebreaks per spec 4.2). Retries re-insert the
// same context with an updated ScheduledFor rather than mutating in place,
// since the heap only reorders on insert. No persistence.
//
// Grounded on the teacher's pkg/queue/memory_driver.go (a plain channel
// FIFO with no priority or delay awareness); generalized here to the
// priority+ready-time selection spec 4.4 requires.
type MemoryDriver struct {
	base
	mu    sync.Mutex
	queue *PriorityQueue
}

// NewMemoryDriver returns a priority-queue-backed in-memory Driver.
func NewMemoryDriver(cfg DriverConfig, registry *Registry, metrics *Metrics, dlq DLQ, pipeline *Pipeline, log Logger) (*MemoryDriver, error) {
	b, err := newBase(cfg, registry, metrics, dlq, pipeline, log)
	if err != nil {
		return nil, err
	}
	return &MemoryDriver{base: b, queue: NewPriorityQueue()}, nil
}

func (d *MemoryDriver) Enqueue(typeName string, job Job, opts EnqueueOptions) error {
	jc, err := d.newJobContext(typeName, job, opts)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.queue.Add(jc)
	depth := d.queue.Length()
	d.mu.Unlock()
	d.metrics.RecordQueueDepth(depth)
	return nil
}

// selectReady scans the sorted view for the first ready context and removes
// it. A plain PriorityQueue only exposes RemoveFirst (highest priority
// regardless of readiness), so the queue is drained and every other context
// is reinserted in the order it came out, which keeps FIFO order within each
// priority level — acceptable at the bounded sizes this driver targets, and
// it keeps PriorityQueue itself free of readiness concerns.
func (d *MemoryDriver) selectReady(now time.Time) *JobContext {
	var setAside []*JobContext
	var selected *JobContext

	for {
		jc := d.queue.RemoveFirst()
		if jc == nil {
			break
		}
		if selected == nil && jc.IsReady(now) {
			selected = jc
			continue
		}
		setAside = append(setAside, jc)
	}
	for _, jc := range setAside {
		d.queue.Add(jc)
	}
	return selected
}

func (d *MemoryDriver) ProcessOne(ctx context.Context) error {
	d.mu.Lock()
	jc := d.selectReady(time.Now())
	d.mu.Unlock()

	if jc == nil {
		return nil
	}

	runErr := d.runOnce(ctx, jc)
	remove := d.finishAttempt(ctx, jc, runErr)

	d.mu.Lock()
	if !remove {
		d.queue.Add(jc)
	}
	depth := d.queue.Length()
	d.mu.Unlock()
	d.metrics.RecordQueueDepth(depth)

	return nil
}

func (d *MemoryDriver) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Clear()
	return nil
}

func (d *MemoryDriver) Dispose() error { return nil }

func (d *MemoryDriver) Stats() map[string]any {
	d.mu.Lock()
	depth := d.queue.Length()
	d.mu.Unlock()

	stats := d.metrics.ToMap()
	stats["queue_depth"] = depth
	return stats
}
