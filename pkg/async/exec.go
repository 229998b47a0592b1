package async

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ExecFuture represents the result of an asynchronous computation that only returns an error.
type ExecFuture struct {
	err  error
	once sync.Once
	done chan struct{}
}

func newExecFuture() *ExecFuture {
	return &ExecFuture{done: make(chan struct{})}
}

// complete stores err and releases waiters. Only the first call has effect.
func (f *ExecFuture) complete(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Await waits for the asynchronous function to complete and returns its error.
func (f *ExecFuture) Await() error {
	<-f.done
	return f.err
}

// AwaitWithTimeout waits for the asynchronous function to complete with a timeout.
// Returns the error if the function completes before the timeout.
// If the timeout occurs before completion, returns a timeout error.
func (f *ExecFuture) AwaitWithTimeout(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.err
	case <-timer.C:
		return ErrTimeout
	}
}

// AwaitContext waits for completion or for ctx to be done, whichever comes first.
// The function keeps running when ctx ends first.
func (f *ExecFuture) AwaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsComplete checks if the asynchronous function is complete without blocking.
// Returns true if the function has completed, false otherwise.
func (f *ExecFuture) IsComplete() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Exec executes a function asynchronously that only returns an error.
// The function accepts a context.Context and a parameter of any type T, and returns error.
// A panic in fn is returned as an error wrapping ErrPanicked.
func Exec[T any](ctx context.Context, param T, fn func(context.Context, T) error) *ExecFuture {
	f := newExecFuture()

	go func() {
		// Early exit prevents goroutine leak when context is pre-canceled
		select {
		case <-ctx.Done():
			f.complete(ctx.Err())
			return
		default:
		}

		f.complete(safeCall(func() error { return fn(ctx, param) }))
	}()

	return f
}

// ExecAll waits for all futures to complete and returns an error
// if any of the futures returned an error.
func ExecAll(futures ...*ExecFuture) error {
	for _, future := range futures {
		if err := future.Await(); err != nil {
			return err
		}
	}
	return nil
}

// ExecAny waits for any of the futures to complete and returns the index of the completed future
// and any error it might have returned.
// Note: This function spawns one goroutine per future. All goroutines will complete naturally
// when their respective futures finish.
func ExecAny(futures ...*ExecFuture) (int, error) {
	if len(futures) == 0 {
		return -1, ErrNoFutures
	}

	type outcome struct {
		index int
		err   error
	}
	// Buffered so that late finishers never block.
	done := make(chan outcome, len(futures))

	for i, future := range futures {
		go func(index int, f *ExecFuture) {
			done <- outcome{index: index, err: f.Await()}
		}(i, future)
	}

	res := <-done
	return res.index, res.err
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn()
}
