package command

import (
	"fmt"
	"reflect"
)

// Input is an opaque redo or undo parameter.
// The zero value is the empty input.
type Input struct {
	value any
	set   bool
}

// InputOf wraps v as an Input. nil, zero-length strings, slices and maps
// produce the empty input. An Input passed in is returned as is.
func InputOf(v any) Input {
	if in, ok := v.(Input); ok {
		return in
	}
	if isEmptyValue(v) {
		return Input{}
	}
	return Input{value: v, set: true}
}

// EmptyInput returns the empty input.
func EmptyInput() Input {
	return Input{}
}

// IsEmpty reports whether the input carries no value.
func (in Input) IsEmpty() bool {
	return !in.set
}

// Value returns the wrapped value or nil.
func (in Input) Value() any {
	return in.value
}

func (in Input) String() string {
	if !in.set {
		return "<empty>"
	}
	return fmt.Sprintf("%v", in.value)
}

// InputAs returns the input value as T.
// Empty inputs and type mismatches wrap ErrInvalidInput.
func InputAs[T any](in Input) (T, error) {
	var zero T
	if in.IsEmpty() {
		return zero, fmt.Errorf("%w: parameter is empty", ErrInvalidInput)
	}
	v, ok := in.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidInput, zero, in.value)
	}
	return v, nil
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
