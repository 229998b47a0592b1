package command

import (
	"fmt"
	"sync"
	"time"
)

// Context is the mutable record of one command invocation: its state,
// redo and undo parameters, result, failure and timing history.
//
// A Context is created by its Command in INIT, moves to READY once a
// non-empty redo parameter is attached and is then driven by Do and Undo.
// The result is visible only while the context is DONE and the error only
// while it is FAIL.
//
// Context is safe for concurrent use. Normally a single goroutine owns it at
// a time, but a watchdog timeout can fail a context that a worker is still
// executing; FAIL is never left by a late completion.
type Context struct {
	mu sync.RWMutex

	command   Command
	state     State
	undoing   bool
	redo      Input
	undo      Input
	result    any
	err       error
	startedAt time.Time
	duration  time.Duration
	history   []StateEntry

	listeners    []listenerEntry
	nextListener uint64
}

type listenerEntry struct {
	id uint64
	fn StateListener
}

// NewContext creates a context owned by cmd and attaches input as its redo
// parameter. An empty input leaves the context FAIL with ErrInvalidInput.
// Commands use it as their default CreateContext implementation.
func NewContext(cmd Command, input Input) *Context {
	c := &Context{command: cmd, state: StateInit}
	if err := c.SetRedoParameter(input); err != nil {
		c.Fail(err)
	}
	return c
}

// Command returns the command that owns the context.
func (c *Context) Command() Command {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.command
}

// State returns the current state.
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Context) IsReady() bool     { return c.State() == StateReady }
func (c *Context) IsWorking() bool   { return c.State() == StateWork }
func (c *Context) IsDone() bool      { return c.State() == StateDone }
func (c *Context) IsFailed() bool    { return c.State() == StateFail }
func (c *Context) IsUndone() bool    { return c.State() == StateUndone }
func (c *Context) IsCancelled() bool { return c.State() == StateCancel }

// RedoParameter returns the input of the Do operation.
func (c *Context) RedoParameter() Input {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redo
}

// UndoParameter returns the input of the Undo operation.
// It is empty until a Do completes successfully.
func (c *Context) UndoParameter() Input {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.undo
}

// Result returns the Do result. The boolean is false unless the context is DONE.
func (c *Context) Result() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateDone {
		return nil, false
	}
	return c.result, true
}

// Err returns the failure cause. It is nil unless the context is FAIL.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateFail {
		return nil
	}
	return c.err
}

// StartedAt returns the start time of the latest Do or Undo attempt.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// Duration returns the duration of the latest Do or Undo attempt.
func (c *Context) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duration
}

// History returns a copy of the attempt log.
func (c *Context) History() []StateEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]StateEntry, len(c.history))
	copy(out, c.history)
	return out
}

// AddStateListener registers fn for every following transition.
// The returned func removes it.
func (c *Context) AddStateListener(fn StateListener) (remove func()) {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetRedoParameter attaches the Do input. It is accepted in INIT, which moves
// the context to READY, and in READY, where it replaces the previous input.
// An empty input fails the context.
func (c *Context) SetRedoParameter(in Input) error {
	c.mu.Lock()
	from := c.state
	if from != StateInit && from != StateReady {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot set redo parameter in %s", ErrInvalidState, from)
	}
	if in.IsEmpty() {
		c.mu.Unlock()
		err := fmt.Errorf("%w: redo parameter is empty", ErrInvalidInput)
		c.Fail(err)
		return err
	}
	c.redo = in
	c.state = StateReady
	listeners := c.snapshotListeners(from, StateReady)
	c.mu.Unlock()

	notify(c, listeners, from, StateReady)
	return nil
}

// SetUndoParameter stores the Undo input. It is only accepted while a Do is in progress.
func (c *Context) SetUndoParameter(in Input) error {
	if in.IsEmpty() {
		return fmt.Errorf("%w: undo parameter is empty", ErrInvalidInput)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateWork || c.undoing {
		return fmt.Errorf("%w: undo parameter can only be set during Do, state is %s", ErrInvalidState, c.state)
	}
	c.undo = in
	return nil
}

// Complete finishes a Do with result: WORK -> DONE.
// Calling it outside of a Do fails the context unless it is already FAIL.
func (c *Context) Complete(result any) error {
	c.mu.Lock()
	from := c.state
	if from != StateWork || c.undoing {
		c.mu.Unlock()
		err := fmt.Errorf("%w: complete called in %s", ErrInvalidState, from)
		c.Fail(err)
		return err
	}
	c.result = result
	c.state = StateDone
	listeners := c.snapshotListeners(from, StateDone)
	c.mu.Unlock()

	notify(c, listeners, from, StateDone)
	return nil
}

// CompleteUndo finishes an Undo: WORK -> UNDONE.
func (c *Context) CompleteUndo() error {
	c.mu.Lock()
	from := c.state
	if from != StateWork || !c.undoing {
		c.mu.Unlock()
		err := fmt.Errorf("%w: complete undo called in %s", ErrInvalidState, from)
		c.Fail(err)
		return err
	}
	c.state = StateUndone
	listeners := c.snapshotListeners(from, StateUndone)
	c.mu.Unlock()

	notify(c, listeners, from, StateUndone)
	return nil
}

// Cancel marks a context that will never run: INIT|READY -> CANCEL.
func (c *Context) Cancel() error {
	c.mu.Lock()
	from := c.state
	if !canTransition(from, StateCancel) {
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel in %s", ErrInvalidState, from)
	}
	c.state = StateCancel
	listeners := c.snapshotListeners(from, StateCancel)
	c.mu.Unlock()

	notify(c, listeners, from, StateCancel)
	return nil
}

// Fail moves the context to FAIL and stores err. It is the only way into FAIL.
// A context that is already FAIL keeps its original cause.
func (c *Context) Fail(err error) {
	if err == nil {
		err = ErrUnknownFailure
	}

	c.mu.Lock()
	from := c.state
	if from == StateFail {
		c.mu.Unlock()
		return
	}
	c.err = err
	c.state = StateFail
	listeners := c.snapshotListeners(from, StateFail)
	c.mu.Unlock()

	notify(c, listeners, from, StateFail)
}

// begin moves the context into WORK for a Do (READY) or an Undo (DONE).
func (c *Context) begin(undo bool, startedAt time.Time) error {
	required := StateReady
	if undo {
		required = StateDone
	}

	c.mu.Lock()
	from := c.state
	if from != required {
		c.mu.Unlock()
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidState, required, from)
	}
	param := c.redo
	if undo {
		param = c.undo
	}
	if param.IsEmpty() {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s parameter is empty", ErrInvalidInput, direction(undo))
	}
	c.undoing = undo
	c.startedAt = startedAt
	c.state = StateWork
	listeners := c.snapshotListeners(from, StateWork)
	c.mu.Unlock()

	notify(c, listeners, from, StateWork)
	return nil
}

// record appends the attempt that started at startedAt to the history.
func (c *Context) record(startedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = startedAt
	c.duration = time.Since(startedAt)
	c.history = append(c.history, StateEntry{
		State:     c.state,
		StartedAt: startedAt,
		Duration:  c.duration,
	})
}

// bind replaces the owning command. Used by decorators so that drivers
// dispatch to the outermost wrapper.
func (c *Context) bind(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.command = cmd
}

func (c *Context) snapshotListeners(from, to State) []StateListener {
	if len(c.listeners) == 0 || from == to {
		return nil
	}
	out := make([]StateListener, len(c.listeners))
	for i, l := range c.listeners {
		out[i] = l.fn
	}
	return out
}

func notify(c *Context, listeners []StateListener, from, to State) {
	for _, fn := range listeners {
		fn(c, from, to)
	}
}

func direction(undo bool) string {
	if undo {
		return "undo"
	}
	return "redo"
}

// ResultAs returns the Do result as T. ok is false when the context is not
// DONE or the result has another type.
func ResultAs[T any](c *Context) (T, bool) {
	var zero T
	v, ok := c.Result()
	if !ok {
		return zero, false
	}
	if v == nil {
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}
