package macro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/logger"
	"github.com/dmitrymomot/orchestra/pkg/async"
)

// Command is a command made of nested commands that run as one logical
// operation. It implements command.Command, so macros nest into macros.
type Command struct {
	id   string
	kind Kind

	mu     sync.RWMutex
	nest   []command.Command
	frozen bool

	prepare  PrepareFunc
	transfer TransferFunc
	reduce   ReduceFunc
	executor command.Executor
	pool     Pool
	logger   *slog.Logger
}

// New creates an empty macro command of the given kind.
func New(id string, kind Kind, opts ...Option) *Command {
	m := &Command{
		id:       id,
		kind:     kind,
		executor: command.Local{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID implements command.Command.
func (m *Command) ID() string {
	return m.id
}

// Kind returns how the macro runs its nested commands.
func (m *Command) Kind() Kind {
	return m.kind
}

// PutToNest appends nested commands in declaration order. It fails with
// ErrNestFrozen once the macro created its first context.
func (m *Command) PutToNest(cmds ...command.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frozen {
		return fmt.Errorf("%w: %s", ErrNestFrozen, m.id)
	}
	m.nest = append(m.nest, cmds...)
	return nil
}

// Nest returns the nested commands in declaration order.
func (m *Command) Nest() []command.Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]command.Command(nil), m.nest...)
}

// CreateContext prepares one nested context per nested command from input
// and wraps them into a Parameter. If any nested context cannot be prepared
// the macro context is FAIL with the first failure and nothing runs.
func (m *Command) CreateContext(input command.Input) *command.Context {
	m.mu.Lock()
	m.frozen = true
	nest := append([]command.Command(nil), m.nest...)
	m.mu.Unlock()

	if input.IsEmpty() {
		return command.NewContext(m, input)
	}

	nested := make([]*command.Context, 0, len(nest))
	var failure error
	for _, cmd := range nest {
		nc, err := PrepareNested(m.kind, cmd, input, m.prepare)
		switch {
		case err != nil:
		case nc == nil:
			err = errors.New("no context prepared")
		case nc.IsFailed():
			err = nc.Err()
		}
		if err != nil {
			failure = fmt.Errorf("%w: %s: %w", ErrPrepareFailed, cmd.ID(), err)
			break
		}
		nested = append(nested, nc)
	}

	c := command.NewContext(m, command.InputOf(Parameter{Root: input, Nested: nested}))
	switch {
	case failure != nil:
		c.Fail(failure)
	case len(nest) == 0:
		c.Fail(fmt.Errorf("%w: %s", ErrEmptyNest, m.id))
	}
	return c
}

// ExecuteDo runs the nested contexts and completes c with the reduced
// result. A nested failure fails c; nested contexts that already finished
// are left as they are until Rollback is called.
func (m *Command) ExecuteDo(ctx context.Context, c *command.Context) error {
	param, err := command.InputAs[Parameter](c.RedoParameter())
	if err != nil {
		return err
	}

	switch m.kind {
	case Sequential:
		err = m.doSequential(ctx, param.Nested)
	case Parallel:
		err = m.doParallel(ctx, param.Nested)
	default:
		err = fmt.Errorf("%w: unknown macro kind %s", command.ErrInvalidState, m.kind)
	}
	if err != nil {
		return err
	}

	result, err := m.FinalResult(param.Nested)
	if err != nil {
		return err
	}
	if err := c.SetUndoParameter(command.InputOf(param)); err != nil {
		return err
	}
	return c.Complete(result)
}

// ExecuteUndo rolls back every nested context. c becomes UNDONE only when
// all of them were undone.
func (m *Command) ExecuteUndo(ctx context.Context, c *command.Context) error {
	param, err := command.InputAs[Parameter](c.UndoParameter())
	if err != nil {
		return err
	}
	if err := m.Rollback(ctx, param.Nested); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRollbackFailed, m.id, err)
	}
	for _, nc := range param.Nested {
		if !nc.IsUndone() {
			return fmt.Errorf("%w: %s: %s is %s", ErrRollbackFailed, m.id, nc.Command().ID(), nc.State())
		}
	}
	return c.CompleteUndo()
}

// FinalResult reduces nested contexts to the macro result. It may be called
// on the contexts of a failed macro, e.g. to check which nested parts succeeded.
func (m *Command) FinalResult(nested []*command.Context) (any, error) {
	if m.reduce != nil {
		return m.reduce(nested)
	}
	if len(nested) == 0 {
		return nil, ErrNoResult
	}
	return ResultOf(len(nested) - 1)(nested)
}

// Rollback undoes every DONE nested context and leaves the others untouched.
// Sequential macros undo in reverse declaration order, parallel macros
// concurrently. The returned error joins every failed undo.
func (m *Command) Rollback(ctx context.Context, nested []*command.Context) error {
	var errs []error
	if m.kind == Parallel {
		errs = m.rollbackParallel(ctx, nested)
	} else {
		for i := len(nested) - 1; i >= 0; i-- {
			if !nested[i].IsDone() {
				continue
			}
			nested[i] = m.executor.Undo(ctx, nested[i])
			if err := undoError(nested[i]); err != nil {
				errs = append(errs, err)
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.DebugContext(ctx, "rollback incomplete",
			logger.CommandID(m.id),
			logger.Errors(errs...))
	}
	return err
}

func (m *Command) rollbackParallel(ctx context.Context, nested []*command.Context) []error {
	errs := make([]error, len(nested))
	var g errgroup.Group
	for i, nc := range nested {
		if !nc.IsDone() {
			continue
		}
		run := func(ctx context.Context) error {
			nested[i] = m.executor.Undo(ctx, nc)
			errs[i] = undoError(nested[i])
			return nil
		}
		if m.pool == nil {
			g.Go(func() error { return run(ctx) })
			continue
		}
		f := m.pool.Submit(ctx, run)
		g.Go(func() error {
			if err := f.Await(); err != nil && nc.IsDone() {
				errs[i] = fmt.Errorf("%s: %w", nc.Command().ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (m *Command) doSequential(ctx context.Context, nested []*command.Context) error {
	for i := range nested {
		var next *command.Context
		if m.transfer != nil && i+1 < len(nested) {
			next = nested[i+1]
		}

		var once sync.Once
		transfer := func(done *command.Context) {
			once.Do(func() {
				if err := m.transfer(done, next); err != nil {
					next.Fail(fmt.Errorf("transfer from %s: %w", done.Command().ID(), err))
				}
			})
		}

		remove := func() {}
		if next != nil {
			remove = nested[i].AddStateListener(func(c *command.Context, _, to command.State) {
				if to == command.StateDone {
					transfer(c)
				}
			})
		}

		nc := m.executor.Do(ctx, nested[i])
		remove()
		if nc == nil {
			nc = nested[i]
		}
		nested[i] = nc

		if !nc.IsDone() {
			m.cancelRest(nested[i+1:])
			return m.nestedFailure(ctx, nc)
		}
		// The executor may return a copy that came back over the wire; its
		// transition was not observed by the listener.
		if next != nil {
			transfer(nc)
		}
	}
	return nil
}

func (m *Command) doParallel(ctx context.Context, nested []*command.Context) error {
	futures := make([]*async.ExecFuture, len(nested))
	for i, nc := range nested {
		run := func(ctx context.Context) error {
			nested[i] = m.executor.Do(ctx, nc)
			return nil
		}
		if m.pool != nil {
			futures[i] = m.pool.Submit(ctx, run)
		} else {
			futures[i] = async.Exec(ctx, i, func(ctx context.Context, _ int) error { return run(ctx) })
		}
	}

	for i, f := range futures {
		if err := f.Await(); err != nil && nested[i].IsReady() {
			nested[i].Fail(err)
		}
	}

	for _, nc := range nested {
		if nc == nil || !nc.IsDone() {
			return m.nestedFailure(ctx, nc)
		}
	}
	return nil
}

func (m *Command) cancelRest(rest []*command.Context) {
	for _, nc := range rest {
		_ = nc.Cancel()
	}
}

func (m *Command) nestedFailure(ctx context.Context, nc *command.Context) error {
	if nc == nil {
		return fmt.Errorf("%w: %s: executor returned no context", ErrNestedFailed, m.id)
	}
	cause := nc.Err()
	if cause == nil {
		cause = fmt.Errorf("%w: nested context is %s", command.ErrInvalidState, nc.State())
	}
	m.logger.DebugContext(ctx, "nested command failed",
		logger.CommandID(m.id),
		logger.Component(nc.Command().ID()),
		logger.State(nc.State()),
		logger.Error(cause))
	return fmt.Errorf("%w: %s: %w", ErrNestedFailed, nc.Command().ID(), cause)
}

func undoError(nc *command.Context) error {
	if nc.IsUndone() {
		return nil
	}
	cause := nc.Err()
	if cause == nil {
		cause = fmt.Errorf("%w: nested context is %s", command.ErrInvalidState, nc.State())
	}
	return fmt.Errorf("%s: %w", nc.Command().ID(), cause)
}
