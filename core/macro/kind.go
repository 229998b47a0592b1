package macro

import (
	"fmt"

	"github.com/dmitrymomot/orchestra/core/command"
)

// Kind is how a macro runs its nested commands.
type Kind uint8

const (
	// Sequential runs nested commands one after another in declaration order.
	Sequential Kind = iota + 1
	// Parallel runs nested commands concurrently.
	Parallel
)

func (k Kind) String() string {
	switch k {
	case Sequential:
		return "SEQUENTIAL"
	case Parallel:
		return "PARALLEL"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// NestedPreparer is implemented by commands that build their own context
// when they run inside a macro. The owner kind tells which macro variant is
// asking, so one command can prepare differently for each.
//
//	func (c *createPerson) PrepareNestedContext(owner macro.Kind, in command.Input) (*command.Context, error) {
//	    switch owner {
//	    case macro.Sequential:
//	        return c.CreateContext(command.InputOf(personFrom(in))), nil
//	    default:
//	        return nil, fmt.Errorf("unsupported owner %s", owner)
//	    }
//	}
type NestedPreparer interface {
	PrepareNestedContext(owner Kind, input command.Input) (*command.Context, error)
}

// PrepareFunc builds the context of a nested command from the macro input.
type PrepareFunc func(owner Kind, nested command.Command, input command.Input) (*command.Context, error)

// PrepareNested builds the context of nested for a macro of kind owner.
// Commands implementing NestedPreparer prepare themselves; otherwise prepare
// is used when set, and nested.CreateContext as a last resort.
func PrepareNested(owner Kind, nested command.Command, input command.Input, prepare PrepareFunc) (*command.Context, error) {
	if p, ok := nested.(NestedPreparer); ok {
		return p.PrepareNestedContext(owner, input)
	}
	if prepare != nil {
		return prepare(owner, nested, input)
	}
	return nested.CreateContext(input), nil
}
