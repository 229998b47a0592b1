package command

import (
	"context"
	"fmt"
)

// Command is a named unit of work with a forward (Do) and a compensating
// (Undo) operation. Commands are stateless per call: everything about one
// invocation lives in its Context.
//
// ExecuteDo and ExecuteUndo mutate the context in place. They finish it with
// Context.Complete / Context.CompleteUndo or fail it with Context.Fail. A
// returned error is stored on the context by the driver; it is never
// propagated further. Use Do and Undo to run them: the drivers enforce the
// state machine around both methods.
type Command interface {
	// ID returns the stable identity of the command.
	ID() string

	// CreateContext builds a fresh context for input. Most commands return NewContext(cmd, input).
	CreateContext(input Input) *Context

	// ExecuteDo performs the forward operation on a WORK context.
	ExecuteDo(ctx context.Context, c *Context) error

	// ExecuteUndo performs the compensation on a WORK context whose Do completed.
	ExecuteUndo(ctx context.Context, c *Context) error
}

// DoFunc performs a typed forward operation. It returns the result and the
// value the undo operation needs.
type DoFunc[In, Out, U any] func(ctx context.Context, in In) (result Out, undo U, err error)

// UndoFunc compensates a previous DoFunc call using the value it returned.
type UndoFunc[U any] func(ctx context.Context, undo U) error

// funcCommand is a Command assembled from typed functions.
type funcCommand[In, Out, U any] struct {
	id   string
	do   DoFunc[In, Out, U]
	undo UndoFunc[U]
}

// New builds a Command from typed functions. A nil undo makes ExecuteUndo
// fail with ErrUndoNotSupported.
//
// Example:
//
//	createCourse := command.New("course.create",
//	    func(ctx context.Context, in CourseInput) (Course, string, error) {
//	        course, err := repo.Create(ctx, in)
//	        return course, course.ID, err
//	    },
//	    func(ctx context.Context, id string) error {
//	        return repo.Delete(ctx, id)
//	    },
//	)
func New[In, Out, U any](id string, do DoFunc[In, Out, U], undo UndoFunc[U]) Command {
	return &funcCommand[In, Out, U]{id: id, do: do, undo: undo}
}

func (f *funcCommand[In, Out, U]) ID() string {
	return f.id
}

func (f *funcCommand[In, Out, U]) CreateContext(input Input) *Context {
	return NewContext(f, input)
}

func (f *funcCommand[In, Out, U]) ExecuteDo(ctx context.Context, c *Context) error {
	in, err := InputAs[In](c.RedoParameter())
	if err != nil {
		return err
	}

	result, undo, err := f.do(ctx, in)
	if err != nil {
		return err
	}

	if u := InputOf(undo); !u.IsEmpty() {
		if err := c.SetUndoParameter(u); err != nil {
			return err
		}
	}
	return c.Complete(result)
}

func (f *funcCommand[In, Out, U]) ExecuteUndo(ctx context.Context, c *Context) error {
	if f.undo == nil {
		return fmt.Errorf("%w: %s", ErrUndoNotSupported, f.id)
	}

	undo, err := InputAs[U](c.UndoParameter())
	if err != nil {
		return err
	}

	if err := f.undo(ctx, undo); err != nil {
		return err
	}
	return c.CompleteUndo()
}
