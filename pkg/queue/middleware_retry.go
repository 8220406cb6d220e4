package queue

import "time"

// RetryMiddleware retries next() up to MaxAttempts-1 additional times on
// error, waiting BaseDelay*attempt between tries (matches RetryPolicy's
// linear default), writing the final attempt count into ctx.Metadata. A
// ShouldRetry predicate can veto retrying a given error (default: always
// retry). Rethrows the final error once attempts are exhausted.
//
// This middleware is independent of the driver's own retry/DLQ bookkeeping
// (spec 4.4) — it exists for callers who want in-process retries within a
// single ProcessOne call, e.g. for transient errors that shouldn't count
// against the driver's attempt budget.
type RetryMiddleware struct {
	MaxAttempts int
	BaseDelay   time.Duration
	ShouldRetry func(err error) bool
}

func (m *RetryMiddleware) Handle(ctx *Context, next Next) error {
	maxAttempts := m.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	shouldRetry := m.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = next()
		ctx.Metadata["attempts"] = attempt
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts {
			time.Sleep(m.BaseDelay * time.Duration(attempt))
		}
	}
	return lastErr
}
