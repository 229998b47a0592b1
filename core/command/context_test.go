package command_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orchestra/core/command"
)

// spyCommand counts calls and delegates to optional funcs.
type spyCommand struct {
	id        string
	doCalls   atomic.Int32
	undoCalls atomic.Int32
	do        func(ctx context.Context, c *command.Context) error
	undo      func(ctx context.Context, c *command.Context) error
}

func newSpy(id string) *spyCommand {
	return &spyCommand{
		id: id,
		do: func(_ context.Context, c *command.Context) error {
			if err := c.SetUndoParameter(c.RedoParameter()); err != nil {
				return err
			}
			return c.Complete(c.RedoParameter().Value())
		},
		undo: func(_ context.Context, c *command.Context) error {
			return c.CompleteUndo()
		},
	}
}

func (p *spyCommand) ID() string { return p.id }

func (p *spyCommand) CreateContext(input command.Input) *command.Context {
	return command.NewContext(p, input)
}

func (p *spyCommand) ExecuteDo(ctx context.Context, c *command.Context) error {
	p.doCalls.Add(1)
	return p.do(ctx, c)
}

func (p *spyCommand) ExecuteUndo(ctx context.Context, c *command.Context) error {
	p.undoCalls.Add(1)
	return p.undo(ctx, c)
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	t.Run("non-empty input makes the context ready", func(t *testing.T) {
		t.Parallel()

		cmd := newSpy("spy")
		c := cmd.CreateContext(command.InputOf("value"))

		assert.Equal(t, command.StateReady, c.State())
		assert.True(t, c.IsReady())
		assert.Same(t, cmd, c.Command())
		assert.Equal(t, "value", c.RedoParameter().Value())
		assert.True(t, c.UndoParameter().IsEmpty())
	})

	t.Run("empty input fails the context", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.EmptyInput())

		assert.True(t, c.IsFailed())
		assert.ErrorIs(t, c.Err(), command.ErrInvalidInput)
	})

	t.Run("nil and empty values are empty inputs", func(t *testing.T) {
		t.Parallel()

		for _, v := range []any{nil, "", []string{}, map[string]int{}} {
			c := newSpy("spy").CreateContext(command.InputOf(v))
			assert.True(t, c.IsFailed(), "value %#v", v)
		}
	})
}

func TestContextInvariants(t *testing.T) {
	t.Parallel()

	t.Run("result is visible only when done", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(7))
		_, ok := c.Result()
		assert.False(t, ok)

		command.Do(context.Background(), c)
		require.True(t, c.IsDone())
		result, ok := c.Result()
		assert.True(t, ok)
		assert.Equal(t, 7, result)
		assert.NoError(t, c.Err())

		command.Undo(context.Background(), c)
		require.True(t, c.IsUndone())
		_, ok = c.Result()
		assert.False(t, ok)
	})

	t.Run("error is visible only when failed", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("student not found")
		cmd := newSpy("spy")
		cmd.do = func(context.Context, *command.Context) error { return cause }

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		assert.True(t, c.IsFailed())
		assert.ErrorIs(t, c.Err(), cause)
		_, ok := c.Result()
		assert.False(t, ok)
	})

	t.Run("fail keeps the original cause", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		c := newSpy("spy").CreateContext(command.InputOf(1))
		c.Fail(first)
		c.Fail(errors.New("second"))

		assert.Equal(t, first, c.Err())
	})

	t.Run("fail without cause stores a default error", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(1))
		c.Fail(nil)

		assert.ErrorIs(t, c.Err(), command.ErrUnknownFailure)
	})

	t.Run("undo parameter cannot be set outside of do", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(1))
		err := c.SetUndoParameter(command.InputOf(2))

		assert.ErrorIs(t, err, command.ErrInvalidState)
		assert.True(t, c.UndoParameter().IsEmpty())
		assert.True(t, c.IsReady())
	})

	t.Run("complete outside of work fails the context", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(1))
		err := c.Complete("result")

		assert.ErrorIs(t, err, command.ErrInvalidState)
		assert.True(t, c.IsFailed())
	})

	t.Run("a failed context is not resurrected by a late completion", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		started := make(chan struct{})
		cmd := newSpy("spy")
		cmd.do = func(_ context.Context, c *command.Context) error {
			close(started)
			<-release
			return c.Complete("late")
		}

		c := cmd.CreateContext(command.InputOf(1))
		done := make(chan struct{})
		go func() {
			defer close(done)
			command.Do(context.Background(), c)
		}()

		<-started
		timeout := errors.New("timed out")
		c.Fail(timeout)
		close(release)
		<-done

		assert.True(t, c.IsFailed())
		assert.Equal(t, timeout, c.Err())
	})
}

func TestContextRedoParameter(t *testing.T) {
	t.Parallel()

	t.Run("replaces the input of a ready context", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf("first"))
		require.NoError(t, c.SetRedoParameter(command.InputOf("second")))

		assert.True(t, c.IsReady())
		assert.Equal(t, "second", c.RedoParameter().Value())
	})

	t.Run("is rejected once the context ran", func(t *testing.T) {
		t.Parallel()

		c := command.Do(context.Background(), newSpy("spy").CreateContext(command.InputOf(1)))
		err := c.SetRedoParameter(command.InputOf(2))

		assert.ErrorIs(t, err, command.ErrInvalidState)
		assert.True(t, c.IsDone())
		assert.Equal(t, 1, c.RedoParameter().Value())
	})
}

func TestContextCancel(t *testing.T) {
	t.Parallel()

	c := newSpy("spy").CreateContext(command.InputOf(1))
	require.NoError(t, c.Cancel())
	assert.True(t, c.IsCancelled())

	assert.ErrorIs(t, c.Cancel(), command.ErrInvalidState)

	done := command.Do(context.Background(), newSpy("spy").CreateContext(command.InputOf(1)))
	assert.ErrorIs(t, done.Cancel(), command.ErrInvalidState)
}

func TestContextListeners(t *testing.T) {
	t.Parallel()

	t.Run("observes every transition in order", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(1))

		var mu sync.Mutex
		var seen []string
		c.AddStateListener(func(_ *command.Context, from, to command.State) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, from.String()+"->"+to.String())
		})

		command.Do(context.Background(), c)
		command.Undo(context.Background(), c)

		assert.Equal(t, []string{
			"READY->WORK", "WORK->DONE",
			"DONE->WORK", "WORK->UNDONE",
		}, seen)
	})

	t.Run("removed listeners are not called", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf(1))

		var calls atomic.Int32
		remove := c.AddStateListener(func(*command.Context, command.State, command.State) {
			calls.Add(1)
		})
		remove()

		command.Do(context.Background(), c)
		assert.Zero(t, calls.Load())
	})

	t.Run("listeners may read the context", func(t *testing.T) {
		t.Parallel()

		c := newSpy("spy").CreateContext(command.InputOf("v"))

		var result any
		c.AddStateListener(func(c *command.Context, _, to command.State) {
			if to == command.StateDone {
				result, _ = c.Result()
			}
		})

		command.Do(context.Background(), c)
		assert.Equal(t, "v", result)
	})
}

func TestStateText(t *testing.T) {
	t.Parallel()

	for _, s := range []command.State{
		command.StateInit, command.StateReady, command.StateWork, command.StateDone,
		command.StateFail, command.StateCancel, command.StateUndone,
	} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var decoded command.State
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, s, decoded)
	}

	var s command.State
	assert.ErrorIs(t, s.UnmarshalText([]byte("BROKEN")), command.ErrMalformedWire)
	assert.Equal(t, "State(42)", command.State(42).String())
}
