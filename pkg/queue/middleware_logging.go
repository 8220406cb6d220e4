package queue

// LoggingMiddleware emits "starting" before next() and "completed"/"failed
// in N ms" after, via an injected log sink (see Logger in logger.go).
type LoggingMiddleware struct {
	Log Logger
}

func NewLoggingMiddleware(log Logger) *LoggingMiddleware {
	if log == nil {
		log = DiscardLogger{}
	}
	return &LoggingMiddleware{Log: log}
}

func (m *LoggingMiddleware) Handle(ctx *Context, next Next) error {
	name := displayName(ctx.JobCtx.TypeName, ctx.JobCtx.Job)
	m.Log.Infow("queue: job starting", "type", name, "job_id", ctx.JobCtx.ID)

	err := next()

	elapsed := ctx.Elapsed()
	if err != nil {
		m.Log.Warnw("queue: job failed", "type", name, "job_id", ctx.JobCtx.ID,
			"elapsed_ms", elapsed.Milliseconds(), "error", err)
	} else {
		m.Log.Infow("queue: job completed", "type", name, "job_id", ctx.JobCtx.ID,
			"elapsed_ms", elapsed.Milliseconds())
	}
	return err
}
