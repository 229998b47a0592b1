package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/orchestra/core/logger"
	"github.com/dmitrymomot/orchestra/pkg/async"
)

// HandlerFunc handles one message taken from a queue.
type HandlerFunc func(ctx context.Context, m Message)

// Dispatcher runs handler work. *async.Pool implements it.
type Dispatcher interface {
	Submit(ctx context.Context, fn func(context.Context) error) *async.ExecFuture
}

// Processor is a messages processing loop: it takes messages from a queue
// and hands them to a handler until it takes the empty message, the queue is
// closed or it is stopped.
//
// Example:
//
//	p := exchange.NewProcessor("requests", queue, handle,
//	    exchange.WithDispatcher(pool),
//	)
//	go p.Run(ctx)
//	defer p.Stop(ctx)
type Processor struct {
	name        string
	queue       Queue
	handle      HandlerFunc
	dispatcher  Dispatcher
	logger      *slog.Logger
	retryDelay  time.Duration
	stopOnEmpty func() bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	taken atomic.Uint64
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDispatcher runs each handler call through d instead of inline.
func WithDispatcher(d Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.dispatcher = d
	}
}

// WithProcessorLogger sets the logger for the processor.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRetryDelay sets the pause after a failed Take. Default is 100ms.
func WithRetryDelay(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.retryDelay = d
		}
	}
}

// WithStopCondition makes the empty message end the loop only while cond
// reports true. Loops sharing a queue with other processes use it to ignore
// wake-ups meant for someone else.
func WithStopCondition(cond func() bool) ProcessorOption {
	return func(p *Processor) {
		p.stopOnEmpty = cond
	}
}

// NewProcessor creates a processor named name for queue.
func NewProcessor(name string, queue Queue, handle HandlerFunc, opts ...ProcessorOption) *Processor {
	p := &Processor{
		name:       name,
		queue:      queue,
		handle:     handle,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		retryDelay: 100 * time.Millisecond,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages and blocks until the loop ends. A processor runs once.
func (p *Processor) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("processor %s: %w", p.name, ErrAlreadyActive)
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()
	defer close(p.done)

	p.logger.DebugContext(ctx, "processor started", logger.Queue(p.name))
	defer p.logger.DebugContext(ctx, "processor stopped", logger.Queue(p.name),
		logger.Count("taken", int(p.taken.Load())))

	for {
		m, err := p.queue.Take(ctx)
		switch {
		case errors.Is(err, ErrQueueClosed), ctx.Err() != nil:
			return nil
		case err != nil:
			p.logger.ErrorContext(ctx, "failed to take message",
				logger.Queue(p.name),
				logger.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		case m.IsEmpty():
			if p.stopOnEmpty == nil || p.stopOnEmpty() {
				return nil
			}
			continue
		}

		p.taken.Add(1)
		p.dispatch(ctx, m)
	}
}

func (p *Processor) dispatch(ctx context.Context, m Message) {
	if p.dispatcher == nil {
		p.safeHandle(context.WithoutCancel(ctx), m)
		return
	}
	f := p.dispatcher.Submit(ctx, func(ctx context.Context) error {
		p.safeHandle(context.WithoutCancel(ctx), m)
		return nil
	})
	// A rejected submission never runs the handler; run it here so the
	// message is not lost.
	if f.IsComplete() {
		if err := f.Await(); err != nil {
			p.logger.WarnContext(ctx, "dispatcher rejected message, handling inline",
				logger.Queue(p.name),
				logger.CorrelationID(m.CorrelationID),
				logger.Error(err))
			p.safeHandle(context.WithoutCancel(ctx), m)
		}
	}
}

func (p *Processor) safeHandle(ctx context.Context, m Message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "message handler panicked",
				logger.Queue(p.name),
				logger.CorrelationID(m.CorrelationID),
				logger.Panic(r),
				logger.Stack())
		}
	}()
	p.handle(ctx, m)
}

// Stop ends the loop and waits for it to return or for ctx to end.
// It is safe to call more than once and before Run.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Taken returns the number of messages taken from the queue.
func (p *Processor) Taken() uint64 {
	return p.taken.Load()
}
