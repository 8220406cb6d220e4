package queue

// ConditionalMiddleware runs Wrapped only when Predicate(ctx) is true;
// otherwise it passes straight through to next().
type ConditionalMiddleware struct {
	Predicate func(ctx *Context) bool
	Wrapped   Middleware
}

func (m *ConditionalMiddleware) Handle(ctx *Context, next Next) error {
	if m.Predicate != nil && !m.Predicate(ctx) {
		return next()
	}
	return m.Wrapped.Handle(ctx, next)
}
