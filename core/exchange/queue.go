package exchange

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// DefaultQueueSize is the buffer size of memory queues created by New.
const DefaultQueueSize = 100

// Queue is a FIFO of messages shared by a producer and a processing loop.
type Queue interface {
	// Put appends m, blocking while the queue is full.
	Put(ctx context.Context, m Message) error
	// Take removes the oldest message, blocking while the queue is empty.
	Take(ctx context.Context) (Message, error)
	// Close releases the queue. Put and Take fail with ErrQueueClosed afterwards.
	Close() error
}

// MemoryQueue is an in-process Queue backed by a buffered channel.
type MemoryQueue struct {
	ch     chan Message
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// MemoryQueueOption configures a MemoryQueue.
type MemoryQueueOption func(*MemoryQueue)

// WithQueueLogger configures structured logging for the queue.
func WithQueueLogger(logger *slog.Logger) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// NewMemoryQueue creates a memory queue holding up to size messages.
// A non-positive size uses DefaultQueueSize.
func NewMemoryQueue(size int, opts ...MemoryQueueOption) *MemoryQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &MemoryQueue{
		ch:     make(chan Message, size),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Put implements Queue.
func (q *MemoryQueue) Put(ctx context.Context, m Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- m:
		return nil
	}
}

// Take implements Queue.
func (q *MemoryQueue) Take(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case m, ok := <-q.ch:
		if !ok {
			return Message{}, ErrQueueClosed
		}
		return m, nil
	}
}

// Len returns the number of buffered messages.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Close implements Queue. Messages still buffered can be taken until the
// queue is drained.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.closed = true
	close(q.ch)
	q.logger.Info("memory queue closed")
	return nil
}
