package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// failedJobRecord is the GORM model backing SQLDLQ. Auto-migrated on
// NewSQLDLQ. Grounded on the teacher's FailedJobRecord/failedJobDB pair
// (pkg/queue/failed_jobs.go), generalized from a single global table to a
// DLQ implementation usable alongside MemoryDLQ and FileDLQ.
type failedJobRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	JobType    string `gorm:"size:255;not null;index"`
	Payload    string `gorm:"type:text;not null"`
	Error      string `gorm:"type:text"`
	StackTrace string `gorm:"type:text"`
	Attempts   int    `gorm:"not null;default:0"`
	Metadata   string `gorm:"type:text"`
	FailedAt   time.Time `gorm:"index"`
}

func (failedJobRecord) TableName() string { return "queue_failed_jobs" }

// SQLDLQ is a durable, queryable DLQ backend on top of GORM, supplementing
// the spec's in-memory/file pair with a third store a deployment can query
// with SQL directly. Any of the teacher's supported dialects (sqlite,
// postgres, mysql, sqlserver — see pkg/database.Connect) work unmodified.
type SQLDLQ struct {
	db *gorm.DB
}

// NewSQLDLQ auto-migrates failedJobRecord on db and returns a DLQ backed by
// it.
func NewSQLDLQ(db *gorm.DB) (*SQLDLQ, error) {
	if err := db.AutoMigrate(&failedJobRecord{}); err != nil {
		return nil, fmt.Errorf("%w: automigrate: %v", ErrPersistence, err)
	}
	return &SQLDLQ{db: db}, nil
}

func toRecord(job FailedJob) (failedJobRecord, error) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return failedJobRecord{}, fmt.Errorf("%w: marshal payload: %v", ErrPersistence, err)
	}
	metadata, err := json.Marshal(job.Metadata)
	if err != nil {
		return failedJobRecord{}, fmt.Errorf("%w: marshal metadata: %v", ErrPersistence, err)
	}
	return failedJobRecord{
		ID:         job.ID,
		JobType:    job.JobType,
		Payload:    string(payload),
		Error:      job.Error,
		StackTrace: job.StackTrace,
		Attempts:   job.Attempts,
		Metadata:   string(metadata),
		FailedAt:   job.FailedAt,
	}, nil
}

func fromRecord(r failedJobRecord) FailedJob {
	var payload map[string]any
	_ = json.Unmarshal([]byte(r.Payload), &payload)
	var metadata map[string]any
	_ = json.Unmarshal([]byte(r.Metadata), &metadata)
	return FailedJob{
		ID:         r.ID,
		JobType:    r.JobType,
		Payload:    payload,
		Error:      r.Error,
		StackTrace: r.StackTrace,
		FailedAt:   r.FailedAt,
		Attempts:   r.Attempts,
		Metadata:   metadata,
	}
}

func (d *SQLDLQ) Store(job FailedJob) error {
	record, err := toRecord(job)
	if err != nil {
		return err
	}
	if err := d.db.Save(&record).Error; err != nil {
		return fmt.Errorf("%w: save: %v", ErrPersistence, err)
	}
	return nil
}

func (d *SQLDLQ) Get(id string) (FailedJob, bool) {
	var r failedJobRecord
	if err := d.db.First(&r, "id = ?", id).Error; err != nil {
		return FailedJob{}, false
	}
	return fromRecord(r), true
}

func (d *SQLDLQ) GetAll(limit, offset int) []FailedJob {
	var rows []failedJobRecord
	q := d.db.Order("failed_at asc")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil
	}
	return toFailedJobs(rows)
}

func (d *SQLDLQ) GetByType(typeName string) []FailedJob {
	var rows []failedJobRecord
	if err := d.db.Where("job_type = ?", typeName).Order("failed_at asc").Find(&rows).Error; err != nil {
		return nil
	}
	return toFailedJobs(rows)
}

func (d *SQLDLQ) GetByDateRange(from, to time.Time) []FailedJob {
	var rows []failedJobRecord
	if err := d.db.Where("failed_at BETWEEN ? AND ?", from, to).Order("failed_at asc").Find(&rows).Error; err != nil {
		return nil
	}
	return toFailedJobs(rows)
}

func (d *SQLDLQ) Remove(id string) error {
	if err := d.db.Delete(&failedJobRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("%w: delete: %v", ErrPersistence, err)
	}
	return nil
}

func (d *SQLDLQ) Clear() {
	d.db.Where("1 = 1").Delete(&failedJobRecord{})
}

func (d *SQLDLQ) Count() int {
	var count int64
	d.db.Model(&failedJobRecord{}).Count(&count)
	return int(count)
}

func (d *SQLDLQ) Stats() map[string]any {
	type row struct {
		JobType string
		N       int64
	}
	var rows []row
	d.db.Model(&failedJobRecord{}).
		Select("job_type as job_type, count(*) as n").
		Group("job_type").
		Scan(&rows)

	byType := make(map[string]int)
	total := 0
	for _, r := range rows {
		byType[r.JobType] = int(r.N)
		total += int(r.N)
	}
	return map[string]any{"total": total, "byType": byType}
}

func toFailedJobs(rows []failedJobRecord) []FailedJob {
	out := make([]FailedJob, len(rows))
	for i, r := range rows {
		out[i] = fromRecord(r)
	}
	return out
}
