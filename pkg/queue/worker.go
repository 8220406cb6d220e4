package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerConfig governs one worker's consumer loop (spec 4.5).
type WorkerConfig struct {
	MaxJobs                 int // 0 = unbounded
	Delay                    time.Duration
	Timeout                  time.Duration // 0 = unbounded total run time
	GracefulShutdownTimeout  time.Duration
	OnError                  func(err error, stackTrace string)
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Delay <= 0 {
		c.Delay = time.Second
	}
	if c.GracefulShutdownTimeout <= 0 {
		c.GracefulShutdownTimeout = 30 * time.Second
	}
	return c
}

// Worker repeatedly calls ProcessOne on a shared driver until stopped,
// maxJobs is reached, or timeout elapses. A panic inside ProcessOne is
// recovered (mirroring the teacher's pkg/workerpool.safeRun) and reported
// via OnError rather than killing the worker goroutine.
type Worker struct {
	driver  Driver
	cfg     WorkerConfig
	metrics *Metrics

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	processed int64
	active    int32
}

// NewWorker returns a Worker consuming from driver.
func NewWorker(driver Driver, cfg WorkerConfig, metrics *Metrics) *Worker {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Worker{
		driver:  driver,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the consumer loop in a new goroutine. It returns
// immediately; the loop runs until ctx is cancelled, Stop is called, or the
// worker's own MaxJobs/Timeout bound is reached.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	deadline := time.Time{}
	if w.cfg.Timeout > 0 {
		deadline = time.Now().Add(w.cfg.Timeout)
	}

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if w.cfg.MaxJobs > 0 && atomic.LoadInt64(&w.processed) >= int64(w.cfg.MaxJobs) {
			return
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}

		atomic.StoreInt32(&w.active, 1)
		w.safeProcessOne(ctx)
		atomic.StoreInt32(&w.active, 0)
		atomic.AddInt64(&w.processed, 1)

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.Delay):
		}
	}
}

func (w *Worker) safeProcessOne(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			if w.cfg.OnError != nil {
				w.cfg.OnError(fmt.Errorf("%w: panic: %v", ErrHandlerFailure, r), "")
			}
		}
	}()

	if err := w.driver.ProcessOne(ctx); err != nil {
		if w.cfg.OnError != nil {
			w.cfg.OnError(err, "")
		}
	}
}

// Stop signals the worker to finish its current ProcessOne and exit. It
// blocks until the loop exits or GracefulShutdownTimeout elapses, whichever
// comes first — it always returns, even if the worker is still draining.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stopCh) })
	select {
	case <-w.doneCh:
	case <-time.After(w.cfg.GracefulShutdownTimeout):
	}
}

// isActive reports whether the worker is mid-ProcessOne right now.
func (w *Worker) isActive() bool { return atomic.LoadInt32(&w.active) == 1 }

// WorkerPool maintains n Workers sharing one Driver.
type WorkerPool struct {
	mu      sync.Mutex
	driver  Driver
	cfg     WorkerConfig
	metrics *Metrics
	ctx     context.Context
	cancel  context.CancelFunc
	workers []*Worker
}

// NewWorkerPool returns a pool of n workers sharing driver.
func NewWorkerPool(driver Driver, n int, cfg WorkerConfig, metrics *Metrics) *WorkerPool {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if n < 1 {
		n = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{driver: driver, cfg: cfg.withDefaults(), metrics: metrics, ctx: ctx, cancel: cancel}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, NewWorker(driver, p.cfg, metrics))
	}
	return p
}

// Start launches all workers.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.workers {
		w.Start(p.ctx)
	}
	p.recordUtilizationLocked()
}

// Scale adjusts the worker count to m: excess workers are stopped, a
// shortfall is launched immediately against the running pool context.
func (p *WorkerPool) Scale(m int) {
	if m < 0 {
		m = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := len(p.workers)
	if m < current {
		excess := p.workers[m:]
		p.workers = p.workers[:m]
		p.mu.Unlock()
		for _, w := range excess {
			w.Stop()
		}
		p.mu.Lock()
	} else if m > current {
		for i := current; i < m; i++ {
			w := NewWorker(p.driver, p.cfg, p.metrics)
			w.Start(p.ctx)
			p.workers = append(p.workers, w)
		}
	}
	p.recordUtilizationLocked()
}

// Stop stops all workers, returning once every worker has exited or its
// graceful timeout elapsed.
func (p *WorkerPool) Stop() {
	p.cancel()

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()
}

func (p *WorkerPool) recordUtilizationLocked() {
	active := 0
	for _, w := range p.workers {
		if w.isActive() {
			active++
		}
	}
	p.metrics.RecordWorkerUtilization(active, len(p.workers))
}

// Stats returns {workerCount, activeWorkers, ...driver stats}.
func (p *WorkerPool) Stats() map[string]any {
	p.mu.Lock()
	active := 0
	for _, w := range p.workers {
		if w.isActive() {
			active++
		}
	}
	count := len(p.workers)
	p.mu.Unlock()

	stats := p.driver.Stats()
	stats["workerCount"] = count
	stats["activeWorkers"] = active
	return stats
}
