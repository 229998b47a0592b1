package macro

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrymomot/orchestra/core/command"
)

func init() {
	command.RegisterType[Parameter]("macro.Parameter")
}

// Parameter is the redo and undo parameter of a macro context: the input the
// macro was created with and the contexts of its nested commands.
type Parameter struct {
	Root   command.Input
	Nested []*command.Context
}

type wireParameter struct {
	Root   *command.TypedValue `json:"root,omitempty"`
	Nested []*command.Context  `json:"nested"`
}

// MarshalJSON encodes the root input as a typed value and nested contexts in
// the context wire format.
func (p Parameter) MarshalJSON() ([]byte, error) {
	root, err := command.EncodeValue(p.Root.Value())
	if err != nil {
		return nil, fmt.Errorf("macro root input: %w", err)
	}
	return json.Marshal(wireParameter{Root: root, Nested: p.Nested})
}

// UnmarshalJSON decodes nested contexts through command.DefaultRegistry.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	return p.UnmarshalWire(data, nil)
}

// UnmarshalWire implements command.WireUnmarshaler: nested contexts are bound
// through reg, the registry the macro context itself is decoded with.
func (p *Parameter) UnmarshalWire(data []byte, reg *command.Registry) error {
	var w struct {
		Root   *command.TypedValue `json:"root,omitempty"`
		Nested []json.RawMessage   `json:"nested"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	root, err := command.DecodeValueWith(w.Root, reg)
	if err != nil {
		return fmt.Errorf("macro root input: %w", err)
	}

	nested := make([]*command.Context, 0, len(w.Nested))
	for i, raw := range w.Nested {
		nc, err := command.UnmarshalContext(raw, reg)
		if err != nil {
			return fmt.Errorf("macro nested context %d: %w", i, err)
		}
		nested = append(nested, nc)
	}

	p.Root = command.InputOf(root)
	p.Nested = nested
	return nil
}

// NestedContexts returns the nested contexts of a macro context. After a
// successful Do they come from the undo parameter, before it from the redo
// parameter. It returns nil for contexts of other commands.
func NestedContexts(c *command.Context) []*command.Context {
	if c == nil {
		return nil
	}
	if p, err := command.InputAs[Parameter](c.UndoParameter()); err == nil {
		return p.Nested
	}
	if p, err := command.InputAs[Parameter](c.RedoParameter()); err == nil {
		return p.Nested
	}
	return nil
}
