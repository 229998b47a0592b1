package command

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	// Global type registry for wire decoding: tag <-> reflect.Type.
	typesByTag   = make(map[string]reflect.Type)
	tagsByType   = make(map[reflect.Type]string)
	typeRegistry sync.RWMutex

	// Sentinel errors restored by WireError.Unwrap.
	sentinels   []error
	sentinelsMu sync.RWMutex

	// typeNameCache caches reflection results for type tag derivation.
	typeNameCache sync.Map
)

func init() {
	RegisterType[string]("string")
	RegisterType[bool]("bool")
	RegisterType[int]("int")
	RegisterType[int64]("int64")
	RegisterType[float64]("float64")
	RegisterType[[]string]("[]string")
	RegisterType[[]any]("[]any")
	RegisterType[map[string]any]("map[string]any")
}

// RegisterType registers T under tag so that typed wire values can be
// decoded back into T. Without a tag the Go type name is used.
// Registering the same tag twice replaces the previous type.
//
// Example:
//
//	command.RegisterType[StudentInput]()
//	command.RegisterType[Course]("course")
func RegisterType[T any](tag ...string) {
	t := reflect.TypeFor[T]()
	name := typeName(t)
	if len(tag) > 0 && tag[0] != "" {
		name = tag[0]
	}

	typeRegistry.Lock()
	defer typeRegistry.Unlock()
	typesByTag[name] = t
	tagsByType[t] = name
}

// typeTag returns the registered tag for v's type, or its Go type name.
func typeTag(v any) string {
	t := reflect.TypeOf(v)
	typeRegistry.RLock()
	tag, ok := tagsByType[t]
	typeRegistry.RUnlock()
	if ok {
		return tag
	}
	return typeName(t)
}

// lookupType resolves a wire type tag.
func lookupType(tag string) (reflect.Type, bool) {
	typeRegistry.RLock()
	defer typeRegistry.RUnlock()
	t, ok := typesByTag[tag]
	return t, ok
}

// typeName derives a tag from a reflect.Type: "pkg.Name" for named types,
// the type literal otherwise. Pointers keep their star.
func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	if name, ok := typeNameCache.Load(t); ok {
		return name.(string)
	}

	name := t.String()
	typeNameCache.Store(t, name)
	return name
}

// RegisterError registers sentinel errors so that failures decoded from the
// wire still match them with errors.Is.
func RegisterError(errs ...error) {
	sentinelsMu.Lock()
	defer sentinelsMu.Unlock()
	sentinels = append(sentinels, errs...)
}

// Registry resolves commands by id. Wire decoding uses it to bind decoded
// contexts back to live commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// DefaultRegistry is used by decoders that are not given an explicit Registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds commands. It fails on the first duplicate id.
func (r *Registry) Register(cmds ...Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range cmds {
		if _, exists := r.commands[cmd.ID()]; exists {
			return fmt.Errorf("%w: %s", ErrCommandAlreadyRegistered, cmd.ID())
		}
		r.commands[cmd.ID()] = cmd
	}
	return nil
}

// MustRegister is like Register but panics on duplicates.
func (r *Registry) MustRegister(cmds ...Command) {
	if err := r.Register(cmds...); err != nil {
		panic(fmt.Sprintf("command: %v", err))
	}
}

// Get returns the command registered under id.
func (r *Registry) Get(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// IDs returns the registered command ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	return ids
}
