package macro

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/pkg/async"
)

// TransferFunc moves the result of a DONE nested context into the redo
// parameter of the next one. Sequential macros call it before next starts.
type TransferFunc func(done, next *command.Context) error

// ReduceFunc computes the macro result from its nested contexts.
type ReduceFunc func(nested []*command.Context) (any, error)

// Pool schedules nested work of parallel macros. *async.Pool implements it.
type Pool interface {
	Submit(ctx context.Context, fn func(context.Context) error) *async.ExecFuture
}

// Option configures a macro Command.
type Option func(*Command)

// WithPrepare sets how nested contexts are built from the macro input for
// nested commands that do not implement NestedPreparer.
func WithPrepare(fn PrepareFunc) Option {
	return func(m *Command) {
		m.prepare = fn
	}
}

// WithTransfer sets the result transfer between consecutive nested commands.
// It has no effect on parallel macros.
func WithTransfer(fn TransferFunc) Option {
	return func(m *Command) {
		m.transfer = fn
	}
}

// WithReduce sets how the macro result is computed. Default: the result of
// the last nested context.
func WithReduce(fn ReduceFunc) Option {
	return func(m *Command) {
		m.reduce = fn
	}
}

// WithExecutor sets where nested contexts run. Default: command.Local.
func WithExecutor(exec command.Executor) Option {
	return func(m *Command) {
		if exec != nil {
			m.executor = exec
		}
	}
}

// WithPool sets the pool parallel macros submit nested work to.
// Default: one goroutine per nested context.
func WithPool(pool Pool) Option {
	return func(m *Command) {
		m.pool = pool
	}
}

// WithLogger sets a custom logger for the macro.
func WithLogger(log *slog.Logger) Option {
	return func(m *Command) {
		if log != nil {
			m.logger = log
		}
	}
}

// TransferInto builds a TransferFunc from a typed merge: the DONE result R is
// merged into the next redo parameter In.
//
//	macro.WithTransfer(macro.TransferInto(func(p Profile, in CreatePerson) CreatePerson {
//	    in.ProfileID = p.ID
//	    return in
//	}))
func TransferInto[R, In any](merge func(result R, input In) In) TransferFunc {
	return func(done, next *command.Context) error {
		result, ok := command.ResultAs[R](done)
		if !ok {
			return ErrNoResult
		}
		in, err := command.InputAs[In](next.RedoParameter())
		if err != nil {
			return err
		}
		return next.SetRedoParameter(command.InputOf(merge(result, in)))
	}
}
