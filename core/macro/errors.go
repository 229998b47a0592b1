package macro

import (
	"errors"

	"github.com/dmitrymomot/orchestra/core/command"
)

var (
	// ErrNestFrozen is returned by PutToNest once the macro created a context.
	ErrNestFrozen = errors.New("macro nest is frozen")

	// ErrEmptyNest is stored on contexts of a macro without nested commands.
	ErrEmptyNest = errors.New("macro has no nested commands")

	// ErrPrepareFailed is stored on a macro context when a nested context could not be prepared.
	ErrPrepareFailed = errors.New("failed to prepare nested context")

	// ErrNestedFailed is stored on a macro context when a nested command failed during Do.
	ErrNestedFailed = errors.New("nested command failed")

	// ErrRollbackFailed is stored on a macro context when a nested command could not be undone.
	ErrRollbackFailed = errors.New("nested rollback failed")

	// ErrNoResult is returned by reducers that cannot produce a result.
	ErrNoResult = errors.New("nested result not available")
)

func init() {
	command.RegisterError(ErrEmptyNest, ErrPrepareFailed, ErrNestedFailed, ErrRollbackFailed, ErrNoResult)
}
