package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
)

// recordJob marks itself executed and otherwise does nothing.
type recordJob struct {
	name     string
	executed atomic.Bool
}

func (j *recordJob) Handle(ctx context.Context) error {
	j.executed.Store(true)
	return nil
}

func (j *recordJob) ToMap() map[string]any { return map[string]any{"name": j.name} }

// alwaysFailJob fails on every attempt.
type alwaysFailJob struct {
	attempts atomic.Int32
}

func (j *alwaysFailJob) Handle(ctx context.Context) error {
	j.attempts.Add(1)
	return errors.New("always fails")
}

func (j *alwaysFailJob) ToMap() map[string]any { return map[string]any{} }
