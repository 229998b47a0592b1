// Package macro composes commands into macro commands that run as one
// logical operation.
//
// A macro owns an ordered nest of commands. Creating a macro context prepares
// one nested context per nested command; Do runs them and reduces their
// results into the macro result.
//
//	signup := macro.New("student.signup", macro.Sequential,
//	    macro.WithPrepare(prepareSignup),
//	    macro.WithTransfer(macro.TransferInto(func(p Profile, in CreatePerson) CreatePerson {
//	        in.ProfileID = p.ID
//	        return in
//	    })),
//	    macro.WithReduce(macro.ResultOf(1)),
//	)
//	_ = signup.PutToNest(createProfile, createPerson)
//
//	c := command.Do(ctx, signup.CreateContext(command.InputOf(form)))
//
// Sequential macros run nested commands in declaration order, each one to
// completion before the next starts, and transfer results forward. Parallel
// macros run all nested commands concurrently on a Pool and wait for all.
//
// A nested failure fails the macro but does not undo nested commands that
// already finished. Compensation is explicit:
//
//	if c.IsFailed() {
//	    err := signup.Rollback(ctx, macro.NestedContexts(c))
//	}
//
// Rollback undoes DONE nested contexts in reverse order (sequential) or
// concurrently (parallel). Undo of a DONE macro rolls back everything.
//
// Nested commands that need to build their own context for a particular
// owner implement NestedPreparer and switch on the owner Kind.
package macro
