package async

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pool runs submitted functions on a fixed number of worker goroutines.
//
// Submit blocks while every worker is busy and the backlog is full, which
// bounds the amount of concurrent work. A stopped pool rejects new work with
// ErrPoolClosed but finishes everything already accepted.
type Pool struct {
	tasks   chan poolTask
	workers int
	running atomic.Int64
	wg      sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

type poolTask struct {
	ctx    context.Context
	fn     func(context.Context) error
	future *ExecFuture
}

// PoolOption configures a Pool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	backlog int
}

// WithBacklog sets how many submitted tasks may wait for a free worker.
// Default equals the number of workers.
func WithBacklog(n int) PoolOption {
	return func(o *poolOptions) {
		if n >= 0 {
			o.backlog = n
		}
	}
}

// NewPool starts a pool with the given number of workers (at least one).
func NewPool(workers int, opts ...PoolOption) *Pool {
	if workers < 1 {
		workers = 1
	}
	o := poolOptions{backlog: workers}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool{
		tasks:   make(chan poolTask, o.backlog),
		workers: workers,
	}
	for range workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit schedules fn and returns its future. The future fails with
// ErrPoolClosed when the pool is stopped and with ctx.Err() when ctx ends
// before a worker picks the task up.
func (p *Pool) Submit(ctx context.Context, fn func(context.Context) error) *ExecFuture {
	f := newExecFuture()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		f.complete(ErrPoolClosed)
		return f
	}

	select {
	case p.tasks <- poolTask{ctx: ctx, fn: fn, future: f}:
	case <-ctx.Done():
		f.complete(ctx.Err())
	}
	return f
}

// Stop rejects new work and waits until the accepted tasks finish or ctx ends.
// It is safe to call more than once.
func (p *Pool) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		if err := task.ctx.Err(); err != nil {
			task.future.complete(err)
			continue
		}

		p.running.Add(1)
		err := safeCall(func() error { return task.fn(task.ctx) })
		p.running.Add(-1)
		task.future.complete(err)
	}
}
