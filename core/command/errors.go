package command

import "errors"

var (
	// ErrInvalidInput is stored on a context whose redo or undo parameter is missing or has the wrong type.
	ErrInvalidInput = errors.New("invalid command input")

	// ErrInvalidState is stored on a context when a driver or mutator is called from the wrong state.
	ErrInvalidState = errors.New("invalid context state transition")

	// ErrNotFinished is stored on a context when ExecuteDo or ExecuteUndo returned without finishing it.
	ErrNotFinished = errors.New("command returned without finishing the context")

	// ErrCommandPanicked wraps a panic recovered from ExecuteDo or ExecuteUndo.
	ErrCommandPanicked = errors.New("command panicked")

	// ErrUndoNotSupported is returned by commands built without an undo function.
	ErrUndoNotSupported = errors.New("command does not support undo")

	// ErrUnknownFailure replaces a nil error passed to Context.Fail.
	ErrUnknownFailure = errors.New("command failed without a cause")

	// ErrCommandNotRegistered is returned when a command id cannot be resolved through a Registry.
	ErrCommandNotRegistered = errors.New("command not registered")

	// ErrCommandAlreadyRegistered is returned when registering a duplicate command id.
	ErrCommandAlreadyRegistered = errors.New("command already registered")

	// ErrTypeNotRegistered is returned when decoding a typed wire value with an unknown type tag.
	ErrTypeNotRegistered = errors.New("type not registered")

	// ErrMalformedWire is returned when a wire document cannot be decoded into a context.
	ErrMalformedWire = errors.New("malformed context wire format")
)

func init() {
	RegisterError(
		ErrInvalidInput,
		ErrInvalidState,
		ErrNotFinished,
		ErrCommandPanicked,
		ErrUndoNotSupported,
		ErrUnknownFailure,
		ErrCommandNotRegistered,
	)
}
