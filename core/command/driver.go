package command

import (
	"context"
	"fmt"
	"time"
)

// Do runs the forward operation of the context's command.
//
// The context must be READY with a non-empty redo parameter; otherwise it is
// failed with ErrInvalidState or ErrInvalidInput and ExecuteDo is never
// called. Errors and panics from ExecuteDo end up on the context as FAIL.
// Do returns c so calls can be chained.
func Do(ctx context.Context, c *Context) *Context {
	return drive(ctx, c, false)
}

// Undo runs the compensation of a DONE context. Guards mirror Do:
// a context that is not DONE or has no undo parameter fails immediately.
func Undo(ctx context.Context, c *Context) *Context {
	return drive(ctx, c, true)
}

func drive(ctx context.Context, c *Context, undo bool) *Context {
	if c == nil {
		return nil
	}

	startedAt := time.Now()
	defer c.record(startedAt)

	cmd := c.Command()
	if cmd == nil {
		c.Fail(fmt.Errorf("%w: context has no command", ErrInvalidState))
		return c
	}

	if err := c.begin(undo, startedAt); err != nil {
		c.Fail(err)
		return c
	}

	var err error
	if undo {
		err = safeExecute(cmd, func() error { return cmd.ExecuteUndo(ctx, c) })
	} else {
		err = safeExecute(cmd, func() error { return cmd.ExecuteDo(ctx, c) })
	}

	switch {
	case err != nil:
		c.Fail(err)
	case c.IsWorking():
		c.Fail(fmt.Errorf("%w: %s", ErrNotFinished, cmd.ID()))
	}
	return c
}

// safeExecute runs fn and converts a panic into an error wrapping ErrCommandPanicked.
func safeExecute(cmd Command, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCommandPanicked, cmd.ID(), r)
		}
	}()
	return fn()
}
