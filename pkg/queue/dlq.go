package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shashiranjanraj/taskqueue/pkg/collection"
)

// DLQ is the dead-letter queue contract: terminal-failure storage with
// filter/query access. Concurrent access is serialized per-DLQ by the
// implementation.
type DLQ interface {
	Store(job FailedJob) error
	Get(id string) (FailedJob, bool)
	GetAll(limit, offset int) []FailedJob
	GetByType(typeName string) []FailedJob
	GetByDateRange(from, to time.Time) []FailedJob
	Remove(id string) error
	Clear()
	Count() int
	Stats() map[string]any
}

// ── In-memory DLQ ──────────────────────────────────────────────────────────

// MemoryDLQ is a map-backed DLQ. Order from GetAll/GetByType/GetByDateRange
// is failedAt ascending.
type MemoryDLQ struct {
	mu      sync.Mutex
	byID    map[string]FailedJob
	ordered []string
}

func NewMemoryDLQ() *MemoryDLQ {
	return &MemoryDLQ{byID: make(map[string]FailedJob)}
}

func (d *MemoryDLQ) Store(job FailedJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[job.ID]; !exists {
		d.ordered = append(d.ordered, job.ID)
	}
	d.byID[job.ID] = job
	return nil
}

func (d *MemoryDLQ) Get(id string) (FailedJob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.byID[id]
	return job, ok
}

func (d *MemoryDLQ) all() []FailedJob {
	out := make([]FailedJob, 0, len(d.ordered))
	for _, id := range d.ordered {
		out = append(out, d.byID[id])
	}
	return collection.SortBy(out, func(a, b FailedJob) bool { return a.FailedAt.Before(b.FailedAt) })
}

func (d *MemoryDLQ) GetAll(limit, offset int) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return paginate(d.all(), limit, offset)
}

func (d *MemoryDLQ) GetByType(typeName string) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return collection.Filter(d.all(), func(job FailedJob) bool { return job.JobType == typeName })
}

func (d *MemoryDLQ) GetByDateRange(from, to time.Time) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return collection.Filter(d.all(), func(job FailedJob) bool {
		return !job.FailedAt.Before(from) && !job.FailedAt.After(to)
	})
}

func (d *MemoryDLQ) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; !ok {
		return nil
	}
	delete(d.byID, id)
	for i, existing := range d.ordered {
		if existing == id {
			d.ordered = append(d.ordered[:i], d.ordered[i+1:]...)
			break
		}
	}
	return nil
}

func (d *MemoryDLQ) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[string]FailedJob)
	d.ordered = nil
}

func (d *MemoryDLQ) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

func (d *MemoryDLQ) Stats() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	grouped := collection.GroupBy(d.all(), func(job FailedJob) string { return job.JobType })
	byType := make(map[string]int, len(grouped))
	for jobType, jobs := range grouped {
		byType[jobType] = len(jobs)
	}
	return map[string]any{"total": len(d.byID), "byType": byType}
}

// paginate returns jobs[offset:offset+limit], built from collection.Skip and
// collection.Take rather than collection.Paginate directly: Paginate assumes
// a 1-indexed, limit-sized page number, and DLQ callers pass an arbitrary
// 0-indexed record offset instead.
func paginate(jobs []FailedJob, limit, offset int) []FailedJob {
	rest := collection.Skip(jobs, offset)
	if limit <= 0 {
		return rest
	}
	return collection.Take(rest, limit)
}

// ── File-backed DLQ ─────────────────────────────────────────────────────────

// FileDLQ persists FailedJob records to a JSON array on disk, rewriting the
// whole file on each mutation (per spec 4.6: "append to JSON array, full
// rewrite on mutation"). Writes use the same atomic temp-file-then-rename
// pattern as the file-backed driver.
type FileDLQ struct {
	mu   sync.Mutex
	path string
	mem  *MemoryDLQ
}

// NewFileDLQ returns a FileDLQ persisting to path, loading any existing
// records immediately.
func NewFileDLQ(path string) (*FileDLQ, error) {
	d := &FileDLQ{path: path, mem: NewMemoryDLQ()}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDLQ) load() error {
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrPersistence, d.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var jobs []FailedJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrPersistence, d.path, err)
	}
	for _, job := range jobs {
		_ = d.mem.Store(job)
	}
	return nil
}

func (d *FileDLQ) persist() error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrPersistence, err)
	}

	data, err := json.MarshalIndent(d.mem.all(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write temp: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrPersistence, err)
	}
	return nil
}

func (d *FileDLQ) Store(job FailedJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.mem.Store(job)
	return d.persist()
}

func (d *FileDLQ) Get(id string) (FailedJob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.Get(id)
}

func (d *FileDLQ) GetAll(limit, offset int) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.GetAll(limit, offset)
}

func (d *FileDLQ) GetByType(typeName string) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.GetByType(typeName)
}

func (d *FileDLQ) GetByDateRange(from, to time.Time) []FailedJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.GetByDateRange(from, to)
}

func (d *FileDLQ) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.mem.Remove(id)
	return d.persist()
}

func (d *FileDLQ) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem.Clear()
	_ = d.persist()
}

func (d *FileDLQ) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.Count()
}

func (d *FileDLQ) Stats() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem.Stats()
}
