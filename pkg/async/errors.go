package async

import "errors"

var (
	// ErrTimeout is returned by AwaitWithTimeout when the deadline passes first.
	ErrTimeout = errors.New("async: await timed out")

	// ErrNoFutures is returned by ExecAny when called without futures.
	ErrNoFutures = errors.New("async: no futures provided")

	// ErrPoolClosed is returned by futures submitted to a stopped Pool.
	ErrPoolClosed = errors.New("async: pool is closed")

	// ErrPanicked wraps a panic recovered from an asynchronous function.
	ErrPanicked = errors.New("async: function panicked")
)
