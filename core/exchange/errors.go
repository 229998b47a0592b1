package exchange

import (
	"errors"

	"github.com/dmitrymomot/orchestra/core/command"
)

var (
	// ErrTimeout is stored on a context whose response did not arrive in time.
	ErrTimeout = errors.New("exchange response timed out")

	// ErrInvalidDirection is returned for messages that are neither DO nor UNDO.
	ErrInvalidDirection = errors.New("invalid message direction")

	// ErrInvalidMessage is returned for messages without a context or correlation id.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrDuplicateCorrelation is returned when a correlation id is already in flight.
	ErrDuplicateCorrelation = errors.New("correlation id already in flight")

	// ErrUnknownCorrelation is returned by Receive for correlation ids that were never sent.
	ErrUnknownCorrelation = errors.New("unknown correlation id")

	// ErrNotActive is returned when the exchange is not accepting work.
	ErrNotActive = errors.New("exchange is not active")

	// ErrAlreadyActive is returned by Start on a running exchange.
	ErrAlreadyActive = errors.New("exchange is already active")

	// ErrQueueClosed is returned by queues after Close.
	ErrQueueClosed = errors.New("queue is closed")
)

func init() {
	command.RegisterError(ErrTimeout, ErrInvalidDirection, ErrNotActive)
}
