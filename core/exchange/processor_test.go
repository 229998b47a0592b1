package exchange_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/exchange"
	"github.com/dmitrymomot/orchestra/pkg/async"
)

func message(id string) exchange.Message {
	return exchange.Message{
		Context:       echo("echo").CreateContext(command.InputOf(id)),
		CorrelationID: id,
		Direction:     exchange.DirectionDo,
	}
}

func TestProcessor(t *testing.T) {
	t.Parallel()

	t.Run("handles messages in order until the empty message", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(8)
		var mu sync.Mutex
		var seen []string
		p := exchange.NewProcessor("requests", q, func(_ context.Context, m exchange.Message) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, m.CorrelationID)
		})

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, q.Put(context.Background(), message(id)))
		}
		require.NoError(t, q.Put(context.Background(), exchange.Message{}))
		require.NoError(t, q.Put(context.Background(), message("after")))

		require.NoError(t, p.Run(context.Background()))
		assert.Equal(t, []string{"a", "b", "c"}, seen)
		assert.EqualValues(t, 3, p.Taken())
		assert.Equal(t, 1, q.Len(), "messages after the empty message stay queued")
	})

	t.Run("stop condition ignores foreign wake-ups", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(8)
		var stopping atomic.Bool
		var handled atomic.Int32
		p := exchange.NewProcessor("requests", q,
			func(context.Context, exchange.Message) { handled.Add(1) },
			exchange.WithStopCondition(stopping.Load),
		)

		require.NoError(t, q.Put(context.Background(), exchange.Message{}))
		require.NoError(t, q.Put(context.Background(), message("a")))

		go func() {
			assert.Eventually(t, func() bool { return handled.Load() == 1 }, time.Second, time.Millisecond)
			stopping.Store(true)
			_ = q.Put(context.Background(), exchange.Message{})
		}()

		require.NoError(t, p.Run(context.Background()))
		assert.EqualValues(t, 1, handled.Load())
	})

	t.Run("exits when the queue is closed", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(8)
		p := exchange.NewProcessor("responses", q, func(context.Context, exchange.Message) {})
		require.NoError(t, q.Close())

		assert.NoError(t, p.Run(context.Background()))
	})

	t.Run("stop is idempotent and ends a blocked loop", func(t *testing.T) {
		t.Parallel()

		p := exchange.NewProcessor("responses", exchange.NewMemoryQueue(1), func(context.Context, exchange.Message) {})
		require.NoError(t, p.Stop(context.Background()), "stop before run")

		q := exchange.NewMemoryQueue(1)
		p = exchange.NewProcessor("responses", q, func(context.Context, exchange.Message) {})
		go func() { _ = p.Run(context.Background()) }()
		require.NoError(t, q.Put(context.Background(), message("a")))
		require.Eventually(t, func() bool { return p.Taken() == 1 }, time.Second, time.Millisecond)

		require.NoError(t, p.Stop(context.Background()))

		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatal("loop did not stop")
		}
		assert.NoError(t, p.Stop(context.Background()))
		assert.ErrorIs(t, p.Run(context.Background()), exchange.ErrAlreadyActive)
	})

	t.Run("panicking handler does not end the loop", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		q := exchange.NewMemoryQueue(8)
		var handled atomic.Int32
		p := exchange.NewProcessor("requests", q, func(_ context.Context, m exchange.Message) {
			handled.Add(1)
			if m.CorrelationID == "boom" {
				panic("boom")
			}
		}, exchange.WithProcessorLogger(slog.New(slog.NewTextHandler(&buf, nil))))

		require.NoError(t, q.Put(context.Background(), message("boom")))
		require.NoError(t, q.Put(context.Background(), message("ok")))
		require.NoError(t, q.Put(context.Background(), exchange.Message{}))

		require.NoError(t, p.Run(context.Background()))
		assert.EqualValues(t, 2, handled.Load())

		logged := buf.String()
		assert.Contains(t, logged, "message handler panicked")
		assert.Contains(t, logged, "panic=boom")
		assert.Contains(t, logged, "correlation_id=boom")
		assert.Contains(t, logged, "stack=")
	})

	t.Run("dispatches to a pool", func(t *testing.T) {
		t.Parallel()

		pool := async.NewPool(3)
		defer pool.Stop(context.Background())

		q := exchange.NewMemoryQueue(16)
		var wg sync.WaitGroup
		var handled atomic.Int32
		p := exchange.NewProcessor("requests", q, func(context.Context, exchange.Message) {
			defer wg.Done()
			handled.Add(1)
		}, exchange.WithDispatcher(pool))

		for i := range 10 {
			wg.Add(1)
			require.NoError(t, q.Put(context.Background(), message(string(rune('a'+i)))))
		}
		require.NoError(t, q.Put(context.Background(), exchange.Message{}))

		require.NoError(t, p.Run(context.Background()))
		wg.Wait()
		assert.EqualValues(t, 10, handled.Load())
	})

	t.Run("rejected dispatch is handled inline", func(t *testing.T) {
		t.Parallel()

		pool := async.NewPool(1)
		require.NoError(t, pool.Stop(context.Background()))

		q := exchange.NewMemoryQueue(4)
		var handled atomic.Int32
		p := exchange.NewProcessor("requests", q,
			func(context.Context, exchange.Message) { handled.Add(1) },
			exchange.WithDispatcher(pool))

		require.NoError(t, q.Put(context.Background(), message("a")))
		require.NoError(t, q.Put(context.Background(), exchange.Message{}))

		require.NoError(t, p.Run(context.Background()))
		assert.EqualValues(t, 1, handled.Load())
	})

	t.Run("retries after take errors", func(t *testing.T) {
		t.Parallel()

		q := &flakyQueue{MemoryQueue: exchange.NewMemoryQueue(4), failures: 2}
		p := exchange.NewProcessor("requests", q, func(context.Context, exchange.Message) {},
			exchange.WithRetryDelay(time.Millisecond))
		require.NoError(t, q.Put(context.Background(), exchange.Message{}))

		require.NoError(t, p.Run(context.Background()))
		assert.Zero(t, q.failures)
	})
}

// flakyQueue fails the first Take calls.
type flakyQueue struct {
	*exchange.MemoryQueue
	failures int
}

func (q *flakyQueue) Take(ctx context.Context) (exchange.Message, error) {
	if q.failures > 0 {
		q.failures--
		return exchange.Message{}, errors.New("connection reset")
	}
	return q.MemoryQueue.Take(ctx)
}

func TestMemoryQueue(t *testing.T) {
	t.Parallel()

	t.Run("fifo", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(4)
		require.NoError(t, q.Put(context.Background(), message("1")))
		require.NoError(t, q.Put(context.Background(), message("2")))

		m, err := q.Take(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "1", m.CorrelationID)
		m, err = q.Take(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2", m.CorrelationID)
	})

	t.Run("blocking operations respect the context", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(1)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := q.Take(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, q.Put(context.Background(), message("1")))
		assert.ErrorIs(t, q.Put(ctx, message("2")), context.DeadlineExceeded)
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()

		q := exchange.NewMemoryQueue(2)
		require.NoError(t, q.Put(context.Background(), message("1")))
		require.NoError(t, q.Close())

		assert.ErrorIs(t, q.Put(context.Background(), message("2")), exchange.ErrQueueClosed)
		m, err := q.Take(context.Background())
		require.NoError(t, err, "buffered messages can still be taken")
		assert.Equal(t, "1", m.CorrelationID)
		_, err = q.Take(context.Background())
		assert.ErrorIs(t, err, exchange.ErrQueueClosed)
		assert.ErrorIs(t, q.Close(), exchange.ErrQueueClosed)
	})
}
