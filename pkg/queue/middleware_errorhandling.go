package queue

// ErrorHandlingMiddleware invokes OnError on failure with the job, the
// error, and its stack trace metadata (if any was recorded upstream).
// Rethrow determines whether the error continues to propagate up the
// chain — set false to swallow errors this middleware has already reported.
type ErrorHandlingMiddleware struct {
	OnError  func(job Job, err error, stackTrace string)
	Rethrow  bool
}

func (m *ErrorHandlingMiddleware) Handle(ctx *Context, next Next) error {
	err := next()
	if err == nil {
		return nil
	}

	if m.OnError != nil {
		stack, _ := ctx.Metadata["stackTrace"].(string)
		m.OnError(ctx.JobCtx.Job, err, stack)
	}

	if m.Rethrow {
		return err
	}
	return nil
}
