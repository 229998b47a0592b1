package exchange

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/orchestra/core/command"
)

// Direction selects the driver a message runs: Do or Undo.
type Direction uint8

const (
	// DirectionDo runs command.Do.
	DirectionDo Direction = iota + 1
	// DirectionUndo runs command.Undo.
	DirectionUndo
)

func (d Direction) String() string {
	switch d {
	case DirectionDo:
		return "DO"
	case DirectionUndo:
		return "UNDO"
	}
	return fmt.Sprintf("Direction(%d)", uint8(d))
}

// Valid reports whether d is DO or UNDO.
func (d Direction) Valid() bool {
	return d == DirectionDo || d == DirectionUndo
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "DO":
		*d = DirectionDo
	case "UNDO":
		*d = DirectionUndo
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, text)
	}
	return nil
}

// Message carries a context through the exchange. It is a value and is not
// modified after it was sent; the context it points to is.
type Message struct {
	Context       *command.Context
	CorrelationID string
	Direction     Direction
	Action        command.ActionContext
}

// NewMessage creates a message with a fresh correlation id.
func NewMessage(c *command.Context, dir Direction, action command.ActionContext) Message {
	return Message{
		Context:       c,
		CorrelationID: uuid.NewString(),
		Direction:     dir,
		Action:        action,
	}
}

// IsEmpty reports whether m is the empty message. Processing loops stop on it.
func (m Message) IsEmpty() bool {
	return m.Context == nil && m.CorrelationID == ""
}

func (m Message) validate() error {
	if !m.Direction.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidDirection, m.Direction)
	}
	if m.Context == nil {
		return fmt.Errorf("%w: no context", ErrInvalidMessage)
	}
	if m.CorrelationID == "" {
		return fmt.Errorf("%w: no correlation id", ErrInvalidMessage)
	}
	return nil
}

type wireMessage struct {
	CorrelationID string                 `json:"correlation-id"`
	Direction     *Direction             `json:"direction,omitempty"`
	Action        *command.ActionContext `json:"action,omitempty"`
	Context       json.RawMessage        `json:"context,omitempty"`
}

// EncodeMessage encodes m as JSON with the context in its wire format.
// The empty message encodes to a document without context.
func EncodeMessage(m Message) ([]byte, error) {
	w := wireMessage{CorrelationID: m.CorrelationID}
	if m.Direction.Valid() {
		w.Direction = &m.Direction
	}
	if !m.Action.IsZero() {
		w.Action = &m.Action
	}
	if m.Context != nil {
		data, err := command.MarshalContext(m.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to encode message %s: %w", m.CorrelationID, err)
		}
		w.Context = data
	}
	return json.Marshal(w)
}

// DecodeMessage decodes a message encoded by EncodeMessage. The context is
// bound to its command through reg, or command.DefaultRegistry when reg is nil.
func DecodeMessage(data []byte, reg *command.Registry) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}

	m := Message{CorrelationID: w.CorrelationID}
	if w.Direction != nil {
		m.Direction = *w.Direction
	}
	if w.Action != nil {
		m.Action = *w.Action
	}
	if len(w.Context) > 0 && string(w.Context) != "null" {
		c, err := command.UnmarshalContext(w.Context, reg)
		if err != nil {
			return Message{}, fmt.Errorf("failed to decode message %s: %w", w.CorrelationID, err)
		}
		m.Context = c
	}
	return m, nil
}
