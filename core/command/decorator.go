package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/orchestra/core/logger"
)

// ExecFunc is the shape of ExecuteDo and ExecuteUndo.
type ExecFunc func(ctx context.Context, c *Context) error

// Decorator wraps a Command to add cross-cutting behavior around ExecuteDo
// and ExecuteUndo.
type Decorator func(Command) Command

// Decorate applies decorators to cmd. The first decorator becomes the
// outermost wrapper and executes first.
//
// Example:
//
//	cmd := command.Decorate(createStudent,
//	    command.WithLogging(log),
//	    command.WithTransaction(pg.NewTxRunner(pool)),
//	)
func Decorate(cmd Command, decorators ...Decorator) Command {
	for i := len(decorators) - 1; i >= 0; i-- {
		cmd = decorators[i](cmd)
	}
	return cmd
}

// decoratedCommand wraps a Command. Contexts created through it are bound to
// the wrapper so the drivers dispatch through the decoration.
type decoratedCommand struct {
	next Command
	do   func(ctx context.Context, c *Context, next ExecFunc) error
	undo func(ctx context.Context, c *Context, next ExecFunc) error
}

// Wrap builds a decorated command. do and undo receive the wrapped operation
// as next; a nil func passes straight through.
func Wrap(next Command, do, undo func(ctx context.Context, c *Context, next ExecFunc) error) Command {
	return &decoratedCommand{next: next, do: do, undo: undo}
}

func (d *decoratedCommand) ID() string {
	return d.next.ID()
}

func (d *decoratedCommand) CreateContext(input Input) *Context {
	c := d.next.CreateContext(input)
	c.bind(d)
	return c
}

func (d *decoratedCommand) ExecuteDo(ctx context.Context, c *Context) error {
	if d.do == nil {
		return d.next.ExecuteDo(ctx, c)
	}
	return d.do(ctx, c, d.next.ExecuteDo)
}

func (d *decoratedCommand) ExecuteUndo(ctx context.Context, c *Context) error {
	if d.undo == nil {
		return d.next.ExecuteUndo(ctx, c)
	}
	return d.undo(ctx, c, d.next.ExecuteUndo)
}

// Unwrap returns the decorated command.
func (d *decoratedCommand) Unwrap() Command {
	return d.next
}

// WithLogging logs every Do and Undo with its duration and final state.
func WithLogging(log *slog.Logger) Decorator {
	return func(cmd Command) Command {
		logged := func(op string) func(ctx context.Context, c *Context, next ExecFunc) error {
			return func(ctx context.Context, c *Context, next ExecFunc) error {
				start := time.Now()
				log.DebugContext(ctx, "command started",
					logger.CommandID(cmd.ID()),
					logger.Action(op),
					logger.CorrelationID(CorrelationID(ctx)))

				err := next(ctx, c)
				if err == nil {
					err = c.Err()
				}

				if err != nil {
					log.ErrorContext(ctx, "command failed",
						logger.CommandID(cmd.ID()),
						logger.Action(op),
						logger.Duration(time.Since(start)),
						logger.Error(err))
					return err
				}

				log.InfoContext(ctx, "command completed",
					logger.CommandID(cmd.ID()),
					logger.Action(op),
					logger.State(c.State()),
					logger.Duration(time.Since(start)))
				return nil
			}
		}
		return Wrap(cmd, logged("do"), logged("undo"))
	}
}

// TxRunner runs fn inside a unit of work: it begins a transaction, commits
// when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunnerFunc adapts a function to TxRunner.
type TxRunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// InTx implements TxRunner.
func (f TxRunnerFunc) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// WithTransaction runs ExecuteDo and ExecuteUndo inside runner's unit of
// work. The transaction is rolled back when the operation leaves the context
// FAIL, and a commit failure fails the context.
func WithTransaction(runner TxRunner) Decorator {
	return func(cmd Command) Command {
		inTx := func(ctx context.Context, c *Context, next ExecFunc) error {
			return runner.InTx(ctx, func(ctx context.Context) error {
				if err := next(ctx, c); err != nil {
					return err
				}
				return c.Err()
			})
		}
		return Wrap(cmd, inTx, inTx)
	}
}
