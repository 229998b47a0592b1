package command_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orchestra/core/command"
)

// fakeTx records unit-of-work outcomes.
type fakeTx struct {
	mu        sync.Mutex
	begun     int
	committed int
	rolled    int
	commitErr error
}

func (f *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.begun++
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		f.rolled++
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		f.rolled++
		return f.commitErr
	}
	f.committed++
	return nil
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	t.Run("first decorator is outermost", func(t *testing.T) {
		t.Parallel()

		var order []string
		trace := func(name string) command.Decorator {
			return func(cmd command.Command) command.Command {
				return command.Wrap(cmd,
					func(ctx context.Context, c *command.Context, next command.ExecFunc) error {
						order = append(order, name)
						return next(ctx, c)
					},
					nil,
				)
			}
		}

		cmd := command.Decorate(newSpy("spy"), trace("outer"), trace("inner"))
		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		require.True(t, c.IsDone())
		assert.Equal(t, []string{"outer", "inner"}, order)
		assert.Equal(t, "spy", cmd.ID())
		assert.Same(t, cmd, c.Command())
	})

	t.Run("nil undo passes through", func(t *testing.T) {
		t.Parallel()

		spy := newSpy("spy")
		cmd := command.Wrap(spy, nil, nil)

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))
		command.Undo(context.Background(), c)

		assert.True(t, c.IsUndone())
		assert.EqualValues(t, 1, spy.undoCalls.Load())
	})
}

func TestWithTransaction(t *testing.T) {
	t.Parallel()

	t.Run("commits a successful do and undo", func(t *testing.T) {
		t.Parallel()

		tx := &fakeTx{}
		cmd := command.Decorate(newSpy("spy"), command.WithTransaction(tx))

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))
		command.Undo(context.Background(), c)

		assert.True(t, c.IsUndone())
		assert.Equal(t, 2, tx.begun)
		assert.Equal(t, 2, tx.committed)
		assert.Zero(t, tx.rolled)
	})

	t.Run("rolls back when the context fails", func(t *testing.T) {
		t.Parallel()

		spy := newSpy("spy")
		spy.do = func(_ context.Context, c *command.Context) error {
			c.Fail(errors.New("faculty not found"))
			return nil
		}
		tx := &fakeTx{}
		cmd := command.Decorate(spy, command.WithTransaction(tx))

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		assert.EqualError(t, c.Err(), "faculty not found")
		assert.Equal(t, 1, tx.rolled)
		assert.Zero(t, tx.committed)
	})

	t.Run("commit failure fails a done context", func(t *testing.T) {
		t.Parallel()

		commitErr := errors.New("serialization failure")
		tx := &fakeTx{commitErr: commitErr}
		cmd := command.Decorate(newSpy("spy"), command.WithTransaction(tx))

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		assert.True(t, c.IsFailed())
		assert.ErrorIs(t, c.Err(), commitErr)
		_, ok := c.Result()
		assert.False(t, ok)
	})

	t.Run("runner func adapter", func(t *testing.T) {
		t.Parallel()

		var called bool
		runner := command.TxRunnerFunc(func(ctx context.Context, fn func(context.Context) error) error {
			called = true
			return fn(ctx)
		})

		cmd := command.Decorate(newSpy("spy"), command.WithTransaction(runner))
		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		assert.True(t, c.IsDone())
		assert.True(t, called)
	})
}

func TestWithLogging(t *testing.T) {
	t.Parallel()

	t.Run("logs completion", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		cmd := command.Decorate(newSpy("profile.create"), command.WithLogging(log))

		ctx := command.WithCorrelationID(context.Background(), "abc-123")
		command.Do(ctx, cmd.CreateContext(command.InputOf(1)))

		out := buf.String()
		assert.Contains(t, out, "command started")
		assert.Contains(t, out, "command completed")
		assert.Contains(t, out, "command=profile.create")
		assert.Contains(t, out, "correlation_id=abc-123")
		assert.Contains(t, out, "state=DONE")
	})

	t.Run("logs failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))
		spy := newSpy("profile.create")
		spy.do = func(context.Context, *command.Context) error {
			return errors.New("duplicate email")
		}
		cmd := command.Decorate(spy, command.WithLogging(log))

		c := command.Do(context.Background(), cmd.CreateContext(command.InputOf(1)))

		assert.True(t, c.IsFailed())
		assert.Contains(t, buf.String(), "command failed")
		assert.Contains(t, buf.String(), "duplicate email")
	})
}
