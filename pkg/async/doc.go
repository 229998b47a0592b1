// Package async provides futures and a fixed-size worker pool.
//
// Exec starts a function in its own goroutine and returns an ExecFuture that
// can be awaited with or without a deadline:
//
//	future := async.Exec(ctx, studentID, deleteStudent)
//
//	// Do other work...
//
//	if err := future.AwaitWithTimeout(time.Second); errors.Is(err, async.ErrTimeout) {
//		log.Println("delete is still running")
//	}
//
// ExecAll waits for every future and returns the first error; ExecAny returns
// as soon as one future completes.
//
// # Pool
//
// Pool bounds concurrency to a fixed number of workers. Submit returns the
// same ExecFuture type, so callers can mix pooled and unpooled work:
//
//	pool := async.NewPool(runtime.NumCPU())
//	defer pool.Stop(ctx)
//
//	f := pool.Submit(ctx, func(ctx context.Context) error {
//		return command.Do(ctx, c).Err()
//	})
//	err := f.Await()
//
// Stop rejects new work with ErrPoolClosed and waits for accepted tasks.
//
// # Error Handling
//
//   - ErrTimeout: returned when AwaitWithTimeout exceeds its duration
//   - ErrNoFutures: returned when ExecAny is called with no futures
//   - ErrPoolClosed: returned by futures submitted to a stopped Pool
//   - ErrPanicked: wraps a panic recovered from the function
//
// Context cancellation is checked before a function starts; once running,
// the function is responsible for observing ctx itself.
package async
