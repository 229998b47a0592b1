package command

import "context"

// Executor runs contexts somewhere: in the calling goroutine, on a worker
// pool or through a message exchange. Callers must use the returned context,
// which may be a different value when execution crossed a process boundary.
type Executor interface {
	Do(ctx context.Context, c *Context) *Context
	Undo(ctx context.Context, c *Context) *Context
}

// Local executes contexts immediately in the caller's goroutine.
type Local struct{}

// Do implements Executor.
func (Local) Do(ctx context.Context, c *Context) *Context {
	return Do(ctx, c)
}

// Undo implements Executor.
func (Local) Undo(ctx context.Context, c *Context) *Context {
	return Undo(ctx, c)
}
