// Package command runs business operations as explicit state machines with
// redo and undo.
//
// Every invocation of a Command is recorded in a Context. The context moves
// through a checked life cycle:
//
//	INIT -> READY -> WORK -> DONE -> WORK -> UNDONE
//	                      \-> FAIL        \-> FAIL
//
// INIT and READY contexts may also be cancelled (CANCEL) when they are known
// never to run. Any state but FAIL can be forced into FAIL. The result is
// only visible while a context is DONE and the error only while it is FAIL.
//
// # Quick Start
//
//	type CreateStudent struct {
//	    FirstName string
//	    LastName  string
//	}
//
//	createStudent := command.New("student.create",
//	    func(ctx context.Context, in CreateStudent) (Student, int64, error) {
//	        s, err := repo.Save(ctx, in)
//	        return s, s.ID, err
//	    },
//	    func(ctx context.Context, id int64) error {
//	        return repo.Delete(ctx, id)
//	    },
//	)
//
//	c := createStudent.CreateContext(command.InputOf(CreateStudent{FirstName: "Ada"}))
//	command.Do(ctx, c)
//	if c.IsFailed() {
//	    return c.Err()
//	}
//	student, _ := command.ResultAs[Student](c)
//
//	// Later, compensate:
//	command.Undo(ctx, c)
//
// # Drivers
//
// Do and Undo are the only way to run a command. Do requires a READY context
// and Undo a DONE one; a context in any other state is failed with
// ErrInvalidState without calling the command. Returned errors and panics
// become FAIL; nothing is thrown past the driver. Each attempt appends a
// StateEntry to the context history.
//
// # Executors
//
// Executor abstracts where a context runs. Local runs it in the caller's
// goroutine; the exchange package runs it through a request/response queue
// pipeline. Macro commands accept any Executor and never know which one they
// use.
//
// # Decorators
//
// Decorate wraps a command with cross-cutting behavior:
//
//	cmd := command.Decorate(createStudent,
//	    command.WithLogging(log),
//	    command.WithTransaction(txRunner),
//	)
//
// WithTransaction makes the unit of work an explicit collaborator: Do and
// Undo run inside TxRunner.InTx, and a failed context rolls the transaction
// back.
//
// # Wire Format
//
// MarshalContext and UnmarshalContext encode a context as JSON with the
// fields command {id, type}, redo-input, undo-input, result, error,
// started-at, duration, state and history. Parameter and result values carry
// a type tag registered with RegisterType; commands are resolved by id
// through a Registry.
package command
