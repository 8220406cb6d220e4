package queue

import "time"

// TimingMiddleware measures wall-clock time around next(), stores it in
// ctx.Metadata["processingTime"], and invokes an optional OnComplete
// callback (even when next fails).
type TimingMiddleware struct {
	OnComplete func(jobName string, duration time.Duration)
}

func (m *TimingMiddleware) Handle(ctx *Context, next Next) error {
	start := time.Now()
	err := next()
	duration := time.Since(start)

	ctx.Metadata["processingTime"] = duration

	if m.OnComplete != nil {
		m.OnComplete(displayName(ctx.JobCtx.TypeName, ctx.JobCtx.Job), duration)
	}
	return err
}
