package macro_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/orchestra/core/command"
	"github.com/dmitrymomot/orchestra/core/macro"
)

func TestParameterWire(t *testing.T) {
	t.Parallel()

	j := &journal{}
	a, b := step(j, "wire.a", nil, nil), step(j, "wire.b", nil, nil)
	m := macro.New("wire.macro", macro.Sequential)
	require.NoError(t, m.PutToNest(a, b))
	command.DefaultRegistry.MustRegister(m, a, b)

	c := command.Do(context.Background(), m.CreateContext(command.InputOf("x")))
	require.True(t, c.IsDone(), "err: %v", c.Err())

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded command.Context
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.IsDone())
	assert.Same(t, m, decoded.Command())

	nested := macro.NestedContexts(&decoded)
	require.Len(t, nested, 2)
	assert.Same(t, a, nested[0].Command())
	assert.True(t, nested[1].IsDone())

	param, err := command.InputAs[macro.Parameter](decoded.RedoParameter())
	require.NoError(t, err)
	assert.Equal(t, "x", param.Root.Value())

	command.Undo(context.Background(), &decoded)
	assert.True(t, decoded.IsUndone(), "err: %v", decoded.Err())
	assert.Equal(t, []string{"do:wire.a", "do:wire.b", "undo:wire.b", "undo:wire.a"}, j.list())
}

func TestNestedContextsOfPlainCommand(t *testing.T) {
	t.Parallel()

	j := &journal{}
	c := step(j, "plain", nil, nil).CreateContext(command.InputOf("x"))
	assert.Nil(t, macro.NestedContexts(c))
	assert.Nil(t, macro.NestedContexts(nil))
}

func TestParameterWireCustomRegistry(t *testing.T) {
	t.Parallel()

	j := &journal{}
	a, b := step(j, "private.a", nil, nil), step(j, "private.b", nil, nil)
	m := macro.New("private.macro", macro.Parallel)
	require.NoError(t, m.PutToNest(a, b))
	reg := command.NewRegistry()
	reg.MustRegister(m, a, b)

	c := command.Do(context.Background(), m.CreateContext(command.InputOf("x")))
	require.True(t, c.IsDone(), "err: %v", c.Err())

	data, err := command.MarshalContext(c)
	require.NoError(t, err)

	_, err = command.UnmarshalContext(data, command.DefaultRegistry)
	assert.ErrorIs(t, err, command.ErrCommandNotRegistered)

	decoded, err := command.UnmarshalContext(data, reg)
	require.NoError(t, err)
	nested := macro.NestedContexts(decoded)
	require.Len(t, nested, 2)
	assert.Same(t, a, nested[0].Command())
	assert.Same(t, b, nested[1].Command())

	command.Undo(context.Background(), decoded)
	assert.True(t, decoded.IsUndone(), "err: %v", decoded.Err())
	assert.ElementsMatch(t, []string{"do:private.a", "do:private.b", "undo:private.a", "undo:private.b"}, j.list())
}
