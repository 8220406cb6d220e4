package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a JobContext. It advances monotonically:
// pending -> processing -> (completed | failed | deadLettered). A failed
// context that still has retry budget re-enters at pending via the
// scheduling path, incrementing Attempts.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusDeadLettered Status = "deadLettered"
)

// JobContext is the runtime envelope a driver owns around a Job from
// enqueue to terminal outcome.
type JobContext struct {
	ID           string
	TypeName     string
	Job          Job
	QueuedAt     time.Time
	ScheduledFor *time.Time
	Status       Status
	Priority     Priority
	Attempts     int
	Err          string
	StackTrace   string
	Metadata     map[string]any
}

// NewJobContext constructs a pending context for job, ready at now+delay.
func NewJobContext(typeName string, job Job, priority Priority, delay time.Duration) *JobContext {
	ctx := &JobContext{
		ID:       uuid.NewString(),
		TypeName: typeName,
		Job:      job,
		QueuedAt: time.Now(),
		Status:   StatusPending,
		Priority: priority,
		Metadata: make(map[string]any),
	}
	if delay > 0 {
		readyAt := ctx.QueuedAt.Add(delay)
		ctx.ScheduledFor = &readyAt
	}
	return ctx
}

// IsReady reports whether the context is eligible for selection: pending and
// either unscheduled or past its ready time.
func (c *JobContext) IsReady(now time.Time) bool {
	if c.Status != StatusPending {
		return false
	}
	return c.ScheduledFor == nil || !now.Before(*c.ScheduledFor)
}

// FailedJob is an immutable snapshot of a terminal failure, stored in a DLQ.
// Round-trip JSON serializable.
type FailedJob struct {
	ID         string         `json:"id"`
	JobType    string         `json:"jobType"`
	Payload    map[string]any `json:"payload"`
	Error      string         `json:"error"`
	StackTrace string         `json:"stackTrace,omitempty"`
	FailedAt   time.Time      `json:"failedAt"`
	Attempts   int            `json:"attempts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RetryPolicy governs how many times a job is attempted and the delay
// before each re-attempt. Backoff is linear by default (baseDelay *
// attempt), matching the source; alternative strategies are modeled as a
// swappable BackoffStrategy so exponential/jittered variants can be
// supplied without changing the policy's shape.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     BackoffStrategy
}

// BackoffStrategy computes the delay before re-attempt number `attempt`
// (1-indexed: the delay before the second try is strategy(baseDelay, 1)).
type BackoffStrategy func(baseDelay time.Duration, attempt int) time.Duration

// LinearBackoff is the source-matching default: baseDelay * attempt.
func LinearBackoff(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay * time.Duration(attempt)
}

// ExponentialBackoff doubles the delay per attempt: baseDelay * 2^(attempt-1).
func ExponentialBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseDelay * time.Duration(1<<uint(attempt-1))
}

// DefaultRetryPolicy matches spec defaults: 3 attempts, 30s base delay,
// linear backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 30 * time.Second, Backoff: LinearBackoff}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	backoff := p.Backoff
	if backoff == nil {
		backoff = LinearBackoff
	}
	return backoff(p.BaseDelay, attempt)
}

// DriverConfig is an opaque bag of per-driver settings: a name, a
// driver-specific string map (storage path, host/port, password, ...), the
// retry policy, and feature flags.
type DriverConfig struct {
	Name     string
	Settings map[string]string
	Retry    RetryPolicy
	UseDLQ   bool
}

func (c DriverConfig) setting(key, fallback string) string {
	if c.Settings == nil {
		return fallback
	}
	if v, ok := c.Settings[key]; ok && v != "" {
		return v
	}
	return fallback
}
