package queue

import "context"

// Priority determines selection order among ready jobs within a driver.
// Higher values run first; ties within a level are broken FIFO by enqueue time.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Job is the minimal capability set the runtime needs from caller-defined
// work. Callers implement Handle and ToMap; DisplayName is optional (a job
// that doesn't implement it falls back to its registered type name).
type Job interface {
	Handle(ctx context.Context) error
	ToMap() map[string]any
}

// DisplayNamer is an optional Job capability for a human-readable name used
// in logs and metrics breakdowns.
type DisplayNamer interface {
	DisplayName() string
}

// OnFailer is an optional Job capability invoked once a job is finally
// dead-lettered (by exhaustion or a PermanentError), right before the DLQ
// push. Not part of the distilled spec — see PermanentError for the
// grounding of this addition.
type OnFailer interface {
	OnFailure(ctx context.Context, err error)
}

// Factory reconstructs a Job from its serialized field map (the envelope
// minus "type" and "created_at").
type Factory func(payload map[string]any) (Job, error)

func displayName(typeName string, job Job) string {
	if dn, ok := job.(DisplayNamer); ok {
		return dn.DisplayName()
	}
	return typeName
}
