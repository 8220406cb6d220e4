package queue

// HookMiddleware invokes Before ahead of next() and After once next()
// returns — even when it fails.
type HookMiddleware struct {
	Before func(ctx *Context)
	After  func(ctx *Context)
}

func (m *HookMiddleware) Handle(ctx *Context, next Next) error {
	if m.Before != nil {
		m.Before(ctx)
	}
	err := next()
	if m.After != nil {
		m.After(ctx)
	}
	return err
}
