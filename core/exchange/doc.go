// Package exchange moves command contexts between producers and the workers
// that execute them, over a pair of queues.
//
// A producer puts a request message on the requests queue and blocks on a
// watchdog keyed by the message correlation id. The requests loop takes the
// message, runs command.Do or command.Undo on the operational pool and puts
// the resulting context on the responses queue. The responses loop completes
// the matching watchdog, which wakes the producer.
//
//	ex := exchange.New(exchange.WithConfig(cfg), exchange.WithLogger(log))
//	if err := ex.Start(ctx); err != nil {
//	    return err
//	}
//	defer ex.Shutdown(context.Background())
//
//	c := ex.Do(ctx, createStudent.CreateContext(command.InputOf(form)))
//
// Exchange implements command.Executor, so macro commands can run their
// nested commands through it with macro.WithExecutor.
//
// A response that does not arrive within Config.WaitTimeout fails the
// request context with ErrTimeout. Shutdown wakes both loops with the empty
// message and expires every pending watchdog with ErrNotActive.
//
// Queues are pluggable. MemoryQueue keeps messages in process; the redis
// integration package provides a Queue that carries messages in their JSON
// wire form (see EncodeMessage and DecodeMessage).
package exchange
