package exchange_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/exchange"
)

// gate blocks command execution per key until released.
type gate struct {
	mu     sync.Mutex
	chans  map[string]chan struct{}
	closed map[string]bool
}

func newGate() *gate {
	return &gate{chans: make(map[string]chan struct{}), closed: make(map[string]bool)}
}

func (g *gate) ch(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.chans[key]
	if !ok {
		ch = make(chan struct{})
		g.chans[key] = ch
	}
	return ch
}

func (g *gate) release(key string) {
	ch := g.ch(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed[key] {
		g.closed[key] = true
		close(ch)
	}
}

func (g *gate) releaseAll() {
	g.mu.Lock()
	keys := make([]string, 0, len(g.chans))
	for k := range g.chans {
		keys = append(keys, k)
	}
	g.mu.Unlock()
	for _, k := range keys {
		g.release(k)
	}
}

// command returns a command whose Do waits for its input key to be released.
func (g *gate) command(id string) command.Command {
	return command.New(id,
		func(_ context.Context, key string) (string, string, error) {
			<-g.ch(key)
			return "done:" + key, key, nil
		},
		func(context.Context, string) error { return nil },
	)
}

func testConfig() exchange.Config {
	return exchange.Config{
		WaitTimeout:         2 * time.Second,
		OperationalPoolSize: 4,
		QueueSize:           16,
		ShutdownTimeout:     5 * time.Second,
	}
}

// startExchange starts an exchange that is shut down when the test ends.
func startExchange(t *testing.T, opts ...exchange.Option) *exchange.Exchange {
	t.Helper()

	ex := exchange.New(append([]exchange.Option{exchange.WithConfig(testConfig())}, opts...)...)
	require.NoError(t, ex.Start(context.Background()))
	t.Cleanup(func() {
		_ = ex.Shutdown(context.Background())
	})
	return ex
}

// echo completes with its input.
func echo(id string) command.Command {
	return command.New(id,
		func(_ context.Context, in string) (string, string, error) {
			return in, in, nil
		},
		func(context.Context, string) error { return nil },
	)
}

// dropQueue accepts messages but only ever delivers the empty message.
type dropQueue struct {
	wake chan exchange.Message
}

func newDropQueue() *dropQueue {
	return &dropQueue{wake: make(chan exchange.Message, 1)}
}

func (q *dropQueue) Put(_ context.Context, m exchange.Message) error {
	if m.IsEmpty() {
		q.wake <- m
	}
	return nil
}

func (q *dropQueue) Take(ctx context.Context) (exchange.Message, error) {
	select {
	case m := <-q.wake:
		return m, nil
	case <-ctx.Done():
		return exchange.Message{}, ctx.Err()
	}
}

func (q *dropQueue) Close() error { return nil }
