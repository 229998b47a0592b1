package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TypedValue is a self-describing wire value: the registered type tag and the
// JSON encoding of the value. A generic reader reconstructs the concrete type
// through RegisterType without a schema.
type TypedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// EncodeValue wraps v with its type tag. A nil value encodes to nil.
func EncodeValue(v any) (*TypedValue, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return &TypedValue{Type: typeTag(v), Value: raw}, nil
}

// WireUnmarshaler is implemented by values that carry contexts of their own.
// DecodeValueWith hands them the registry the enclosing context is decoded
// with, instead of calling json.Unmarshal.
type WireUnmarshaler interface {
	UnmarshalWire(data []byte, reg *Registry) error
}

// DecodeValue rebuilds the value of tv using the registered type for its tag.
// Nested contexts are bound through DefaultRegistry.
func DecodeValue(tv *TypedValue) (any, error) {
	return DecodeValueWith(tv, nil)
}

// DecodeValueWith is DecodeValue with nested contexts bound through reg.
// A nil registry means DefaultRegistry.
func DecodeValueWith(tv *TypedValue, reg *Registry) (any, error) {
	if tv == nil {
		return nil, nil
	}
	t, ok := lookupType(tv.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, tv.Type)
	}

	ptr := reflect.New(t)
	var err error
	if u, ok := ptr.Interface().(WireUnmarshaler); ok {
		err = u.UnmarshalWire(tv.Value, reg)
	} else {
		err = json.Unmarshal(tv.Value, ptr.Interface())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", tv.Type, err)
	}
	return ptr.Elem().Interface(), nil
}

// WireError is a failure decoded from the wire. It keeps the original error
// type name and message, and unwraps to the registered sentinel the message
// starts with, so errors.Is keeps working across the boundary.
type WireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *WireError) Error() string {
	return e.Message
}

// Unwrap returns the matching sentinel registered with RegisterError, or nil.
func (e *WireError) Unwrap() error {
	sentinelsMu.RLock()
	defer sentinelsMu.RUnlock()
	for _, s := range sentinels {
		if strings.HasPrefix(e.Message, s.Error()) {
			return s
		}
	}
	return nil
}

func encodeError(err error) *WireError {
	if err == nil {
		return nil
	}
	var we *WireError
	if errors.As(err, &we) && we.Message == err.Error() {
		return we
	}
	return &WireError{Type: typeName(reflect.TypeOf(err)), Message: err.Error()}
}

type wireCommand struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type wireContext struct {
	Command   wireCommand   `json:"command"`
	RedoInput *TypedValue   `json:"redo-input,omitempty"`
	UndoInput *TypedValue   `json:"undo-input,omitempty"`
	Result    *TypedValue   `json:"result,omitempty"`
	Error     *WireError    `json:"error,omitempty"`
	StartedAt time.Time     `json:"started-at,omitzero"`
	Duration  time.Duration `json:"duration"`
	State     State         `json:"state"`
	History   []StateEntry  `json:"history"`
}

// MarshalContext encodes c into the context wire format.
func MarshalContext(c *Context) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil context", ErrMalformedWire)
	}

	c.mu.RLock()
	w := wireContext{
		StartedAt: c.startedAt,
		Duration:  c.duration,
		State:     c.state,
		History:   append([]StateEntry{}, c.history...),
	}
	if c.command != nil {
		w.Command = wireCommand{ID: c.command.ID(), Type: typeName(reflect.TypeOf(c.command))}
	}
	redo, undo, result, cause := c.redo, c.undo, c.result, c.err
	state := c.state
	c.mu.RUnlock()

	var err error
	if w.RedoInput, err = EncodeValue(redo.Value()); err != nil {
		return nil, fmt.Errorf("redo-input: %w", err)
	}
	if w.UndoInput, err = EncodeValue(undo.Value()); err != nil {
		return nil, fmt.Errorf("undo-input: %w", err)
	}
	if state == StateDone {
		if w.Result, err = EncodeValue(result); err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
	}
	if state == StateFail {
		w.Error = encodeError(cause)
	}

	return json.Marshal(w)
}

// UnmarshalContext decodes a context from the wire format and binds it to
// the command registered under its id. A nil registry means DefaultRegistry.
// Listeners are not part of the wire format.
func UnmarshalContext(data []byte, reg *Registry) (*Context, error) {
	if reg == nil {
		reg = DefaultRegistry
	}

	var w wireContext
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedWire, err)
	}

	cmd, ok := reg.Get(w.Command.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCommandNotRegistered, w.Command.ID)
	}

	c := &Context{
		command:   cmd,
		state:     w.State,
		startedAt: w.StartedAt,
		duration:  w.Duration,
		history:   w.History,
	}

	redo, err := DecodeValueWith(w.RedoInput, reg)
	if err != nil {
		return nil, fmt.Errorf("redo-input: %w", err)
	}
	c.redo = InputOf(redo)

	undo, err := DecodeValueWith(w.UndoInput, reg)
	if err != nil {
		return nil, fmt.Errorf("undo-input: %w", err)
	}
	c.undo = InputOf(undo)

	if c.result, err = DecodeValueWith(w.Result, reg); err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}

	if w.State == StateFail {
		if w.Error == nil {
			c.err = ErrUnknownFailure
		} else {
			c.err = w.Error
		}
	}

	return c, nil
}

// MarshalJSON implements json.Marshaler with the context wire format.
func (c *Context) MarshalJSON() ([]byte, error) {
	return MarshalContext(c)
}

// UnmarshalJSON implements json.Unmarshaler, resolving the command through DefaultRegistry.
func (c *Context) UnmarshalJSON(data []byte) error {
	decoded, err := UnmarshalContext(data, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.command = decoded.command
	c.state = decoded.state
	c.redo = decoded.redo
	c.undo = decoded.undo
	c.result = decoded.result
	c.err = decoded.err
	c.startedAt = decoded.startedAt
	c.duration = decoded.duration
	c.history = decoded.history
	return nil
}
