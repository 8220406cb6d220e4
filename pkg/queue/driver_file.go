package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileRecord is the on-disk JSON shape for one pending job, per spec
// section 6's file-backed driver schema. Encoding is UTF-8, pretty-printed
// with two-space indent (json.MarshalIndent below).
type fileRecord struct {
	ID           string         `json:"id"`
	JobType      string         `json:"jobType"`
	Payload      map[string]any `json:"payload"`
	QueuedAt     time.Time      `json:"queuedAt"`
	ScheduledFor *time.Time     `json:"scheduledFor"`
	Attempts     int            `json:"attempts"`
	Status       string         `json:"status"`
	Metadata     map[string]any `json:"metadata"`
	Error        *string        `json:"error"`
	StackTrace   *string        `json:"stackTrace"`
}

// FileDriver stores pending contexts as a JSON array at
// <storagePath>/jobs.json, loaded lazily on first operation and persisted
// after every enqueue, retry reschedule, or terminal outcome. Concurrent
// access within one process is serialized by mu; cross-process ownership is
// not guaranteed (spec 9's documented ambiguity — inherited, not resolved).
type FileDriver struct {
	base
	mu      sync.Mutex
	path    string
	loaded  bool
	pending []*JobContext
}

// NewFileDriver returns a file-backed Driver persisting to
// <storagePath>/jobs.json. storagePath comes from cfg.Settings["storagePath"].
func NewFileDriver(cfg DriverConfig, registry *Registry, metrics *Metrics, dlq DLQ, pipeline *Pipeline, log Logger) (*FileDriver, error) {
	b, err := newBase(cfg, registry, metrics, dlq, pipeline, log)
	if err != nil {
		return nil, err
	}
	storagePath := cfg.setting("storagePath", "storage/queue")
	return &FileDriver{base: b, path: filepath.Join(storagePath, "jobs.json")}, nil
}

func (d *FileDriver) ensureLoaded() {
	if d.loaded {
		return
	}
	d.loaded = true

	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		d.log.Errorw("queue: file driver load failed", "path", d.path, "error", err)
		return
	}
	if len(data) == 0 {
		return
	}

	var records []fileRecord
	if err := json.Unmarshal(data, &records); err != nil {
		d.log.Errorw("queue: file driver decode failed", "path", d.path, "error", err)
		return
	}

	for _, r := range records {
		job, err := d.registry.Create(r.JobType, r.Payload)
		if err != nil {
			d.log.Warnw("queue: file driver skipping unknown job type on load", "type", r.JobType, "id", r.ID)
			continue
		}
		jc := &JobContext{
			ID:           r.ID,
			TypeName:     r.JobType,
			Job:          job,
			QueuedAt:     r.QueuedAt,
			ScheduledFor: r.ScheduledFor,
			Status:       Status(r.Status),
			Attempts:     r.Attempts,
			Metadata:     r.Metadata,
		}
		if r.Error != nil {
			jc.Err = *r.Error
		}
		if r.StackTrace != nil {
			jc.StackTrace = *r.StackTrace
		}
		if jc.Metadata == nil {
			jc.Metadata = make(map[string]any)
		}
		d.pending = append(d.pending, jc)
	}
}

// persist rewrites the whole file atomically (write to temp, rename).
// Persistence failures are logged, never fatal — the in-memory store
// remains the source of truth for the running process (spec 4.4).
func (d *FileDriver) persist() {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		d.log.Errorw("queue: file driver mkdir failed", "path", d.path, "error", err)
		return
	}

	records := make([]fileRecord, 0, len(d.pending))
	for _, jc := range d.pending {
		r := fileRecord{
			ID:           jc.ID,
			JobType:      jc.TypeName,
			Payload:      jc.Job.ToMap(),
			QueuedAt:     jc.QueuedAt,
			ScheduledFor: jc.ScheduledFor,
			Attempts:     jc.Attempts,
			Status:       string(jc.Status),
			Metadata:     jc.Metadata,
		}
		if jc.Err != "" {
			r.Error = &jc.Err
		}
		if jc.StackTrace != "" {
			r.StackTrace = &jc.StackTrace
		}
		records = append(records, r)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		d.log.Errorw("queue: file driver encode failed", "error", err)
		return
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		d.log.Errorw("queue: file driver write failed", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, d.path); err != nil {
		d.log.Errorw("queue: file driver rename failed", "path", d.path, "error", err)
	}
}

func (d *FileDriver) Enqueue(typeName string, job Job, opts EnqueueOptions) error {
	jc, err := d.newJobContext(typeName, job, opts)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded()
	d.pending = append(d.pending, jc)
	d.persist()
	d.metrics.RecordQueueDepth(len(d.pending))
	return nil
}

// selectReady finds the highest-priority, earliest-queued ready context and
// removes it from d.pending. Caller must hold d.mu.
func (d *FileDriver) selectReady(now time.Time) *JobContext {
	bestIdx := -1
	for i, jc := range d.pending {
		if !jc.IsReady(now) {
			continue
		}
		if bestIdx == -1 {
			bestIdx = i
			continue
		}
		best := d.pending[bestIdx]
		if jc.Priority > best.Priority || (jc.Priority == best.Priority && jc.QueuedAt.Before(best.QueuedAt)) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}
	jc := d.pending[bestIdx]
	d.pending = append(d.pending[:bestIdx], d.pending[bestIdx+1:]...)
	return jc
}

func (d *FileDriver) ProcessOne(ctx context.Context) error {
	d.mu.Lock()
	d.ensureLoaded()
	jc := d.selectReady(time.Now())
	d.mu.Unlock()

	if jc == nil {
		return nil
	}

	runErr := d.runOnce(ctx, jc)
	remove := d.finishAttempt(ctx, jc, runErr)

	d.mu.Lock()
	if !remove {
		d.pending = append(d.pending, jc)
	}
	d.persist()
	d.metrics.RecordQueueDepth(len(d.pending))
	d.mu.Unlock()

	return nil
}

func (d *FileDriver) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ensureLoaded()
	d.pending = nil
	d.persist()
	return nil
}

func (d *FileDriver) Dispose() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		d.persist()
	}
	return nil
}

func (d *FileDriver) Stats() map[string]any {
	d.mu.Lock()
	d.ensureLoaded()
	depth := len(d.pending)
	d.mu.Unlock()

	stats := d.metrics.ToMap()
	stats["queue_depth"] = depth
	return stats
}
