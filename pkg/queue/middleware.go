package queue

import (
	"context"
	"fmt"
	"time"
)

// Context is shared across a single job execution as it passes through the
// middleware pipeline and into the job's own handler.
type Context struct {
	JobCtx    *JobContext
	Metadata  map[string]any
	StartedAt time.Time
	Err       error
	Result    any
}

// Elapsed returns the wall-clock duration since StartedAt.
func (c *Context) Elapsed() time.Duration { return time.Since(c.StartedAt) }

// HasError reports whether the execution has already failed.
func (c *Context) HasError() bool { return c.Err != nil }

// IsSuccess reports whether the execution has not (yet) failed.
func (c *Context) IsSuccess() bool { return c.Err == nil }

// Next is the zero-arg continuation a Middleware invokes to run the rest of
// the chain.
type Next func() error

// Middleware wraps job execution in onion order: Handle runs before and
// after calling next(), which resumes the remainder of the chain.
type Middleware interface {
	Handle(ctx *Context, next Next) error
}

// MiddlewareFunc adapts a plain function to the Middleware interface.
type MiddlewareFunc func(ctx *Context, next Next) error

func (f MiddlewareFunc) Handle(ctx *Context, next Next) error { return f(ctx, next) }

// Pipeline is an ordered list of Middleware terminating in the job's own
// Handle call. Middleware runs in insertion order around next (onion model):
// the first added middleware is outermost.
type Pipeline struct {
	chain []Middleware
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Add appends m to the end of the chain.
func (p *Pipeline) Add(m Middleware) *Pipeline {
	p.chain = append(p.chain, m)
	return p
}

// AddAt inserts m at index, shifting later entries back.
func (p *Pipeline) AddAt(index int, m Middleware) error {
	if index < 0 || index > len(p.chain) {
		return fmt.Errorf("%w: index %d out of range [0,%d]", ErrValidation, index, len(p.chain))
	}
	p.chain = append(p.chain, nil)
	copy(p.chain[index+1:], p.chain[index:])
	p.chain[index] = m
	return nil
}

// Remove deletes the middleware at index.
func (p *Pipeline) Remove(index int) error {
	if index < 0 || index >= len(p.chain) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrMiddlewareNotFound, index, len(p.chain))
	}
	p.chain = append(p.chain[:index], p.chain[index+1:]...)
	return nil
}

// Clear removes all middleware.
func (p *Pipeline) Clear() { p.chain = nil }

// Execute runs the chain around terminal, which invokes the job's own
// Handle and records success/failure on ctx.
func (p *Pipeline) Execute(ctx *Context, terminal Next) error {
	next := terminal
	for i := len(p.chain) - 1; i >= 0; i-- {
		mw := p.chain[i]
		captured := next
		next = func() error { return mw.Handle(ctx, captured) }
	}
	err := next()
	ctx.Err = err
	return err
}

// terminalHandle is the default terminal continuation: it invokes the job's
// own Handle() and stashes nothing beyond the returned error into ctx.Err
// (Execute does that after the chain returns).
func terminalHandle(jobCtx context.Context, c *Context) Next {
	return func() error {
		return c.JobCtx.Job.Handle(jobCtx)
	}
}
