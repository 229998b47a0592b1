package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/exchange"
	"github.com/dmitrymomot/orchestra/core/logger"
)

// Queue is an exchange.Queue backed by a Redis list. Put appends with RPUSH,
// Take pops with BLPOP, so several processes may share the same list.
// Messages travel in their JSON wire form and are bound back to commands
// through a command.Registry on Take.
type Queue struct {
	client       redis.UniversalClient
	key          string
	registry     *command.Registry
	blockTimeout time.Duration
	logger       *slog.Logger
	closed       atomic.Bool
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithRegistry sets the registry used to bind decoded contexts to commands.
// Default: command.DefaultRegistry.
func WithRegistry(reg *command.Registry) QueueOption {
	return func(q *Queue) {
		q.registry = reg
	}
}

// WithBlockTimeout sets how long a single BLPOP waits before Take checks
// its context again. Default is one second.
func WithBlockTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.blockTimeout = d
		}
	}
}

// WithQueueLogger sets a custom logger for the queue.
func WithQueueLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) {
		if log != nil {
			q.logger = log
		}
	}
}

// NewQueue creates a queue over the list stored at key.
// The client is not closed by Close.
func NewQueue(client redis.UniversalClient, key string, opts ...QueueOption) *Queue {
	q := &Queue{
		client:       client,
		key:          key,
		blockTimeout: time.Second,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Put implements exchange.Queue.
func (q *Queue) Put(ctx context.Context, m exchange.Message) error {
	if q.closed.Load() {
		return exchange.ErrQueueClosed
	}

	data, err := exchange.EncodeMessage(m)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push message to %s: %w", q.key, err)
	}
	return nil
}

// Take implements exchange.Queue. A message that cannot be decoded is
// dropped and its error returned.
func (q *Queue) Take(ctx context.Context) (exchange.Message, error) {
	for {
		if q.closed.Load() {
			return exchange.Message{}, exchange.ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return exchange.Message{}, err
		}

		res, err := q.client.BLPop(ctx, q.blockTimeout, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return exchange.Message{}, ctx.Err()
			}
			return exchange.Message{}, fmt.Errorf("failed to pop message from %s: %w", q.key, err)
		}

		// BLPOP replies with the key and the value.
		m, err := exchange.DecodeMessage([]byte(res[1]), q.registry)
		if err != nil {
			q.logger.ErrorContext(ctx, "dropping undecodable message",
				logger.Queue(q.key),
				logger.Error(err))
			return exchange.Message{}, err
		}
		return m, nil
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Healthcheck pings Redis.
func (q *Queue) Healthcheck(ctx context.Context) error {
	return Healthcheck(q.client)(ctx)
}

// Close stops the queue. Messages left in the list stay there.
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return exchange.ErrQueueClosed
	}
	return nil
}

var _ exchange.Queue = (*Queue)(nil)
