package scope

import (
	"testing"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFactory(t *testing.T) {

	t.Run("variables are written to the wrapped map", func(t *testing.T) {
		vars := map[string]any{"a": 1}
		f := NewMapFactory(vars)

		_, err := f.CreateVariable("b", 2, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, vars)

		resolver, err := f.GetVariableResolver("a")
		require.NoError(t, err)
		require.NoError(t, resolver.SetValue(3))
		assert.Equal(t, 3, vars["a"])
	})

	t.Run("unresolvable variable", func(t *testing.T) {
		f := NewMapFactory(nil)

		_, err := f.GetVariableResolver("a")
		assert.ErrorIs(t, err, ErrUnresolvableVariable)
		assert.False(t, f.IsResolvable("a"))
	})

	t.Run("typed variable", func(t *testing.T) {
		f := NewMapFactory(nil)

		resolver, err := f.CreateVariable("n", "12", convert.INT_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 12, resolver.Value())

		err = resolver.SetValue("x")
		assert.ErrorIs(t, err, convert.ErrCannotConvert)
	})
}

func TestBlockFactory(t *testing.T) {
	root := NewMapFactory(map[string]any{"x": 1})
	block := NewBlockFactory(root)

	_, err := Assign(block, "x", 5)
	require.NoError(t, err)
	_, err = Assign(block, "y", 6)
	require.NoError(t, err)

	assert.Equal(t, 5, root.Map()["x"])
	assert.False(t, root.IsResolvable("y"))
	assert.True(t, block.IsResolvable("y"))
	assert.True(t, block.IsTarget("y"))
	assert.False(t, block.IsTarget("x"))
	assert.Equal(t, []string{"x", "y"}, AllVariables(block))
}

func TestIndexedFactory(t *testing.T) {
	root := NewMapFactory(map[string]any{"z": 0})
	frame := NewIndexedFactory([]string{"a", "b"}, []any{1, 2}, root)

	resolver, ok := frame.GetIndexedVariableResolver(1)
	require.True(t, ok)
	assert.Equal(t, "b", resolver.Name())
	assert.Equal(t, 2, resolver.Value())

	byName, err := frame.GetVariableResolver("a")
	require.NoError(t, err)
	assert.Equal(t, 1, byName.Value())

	_, err = frame.CreateVariable("local", 3, nil)
	require.NoError(t, err)
	assert.True(t, frame.IsTarget("local"))
	assert.False(t, root.IsResolvable("local"))

	_, ok = frame.GetIndexedVariableResolver(5)
	assert.False(t, ok)

	t.Run("block inside a frame delegates indexed lookups", func(t *testing.T) {
		block := NewBlockFactory(frame)
		resolver, ok := block.GetIndexedVariableResolver(0)
		require.True(t, ok)
		assert.Equal(t, 1, resolver.Value())
	})
}

func TestItemFactory(t *testing.T) {
	root := NewMapFactory(nil)
	items := NewItemFactory("item", nil, root)

	require.NoError(t, items.SetItem(3))
	v, err := Resolve(items, "item")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = items.CreateVariable("other", 1, nil)
	require.NoError(t, err)
	assert.True(t, root.IsTarget("other"))
}

func TestImmutableDefaultFactory(t *testing.T) {
	defaults := NewImmutableDefaultFactory(map[string]any{"pi": 3.14})
	root := NewMapFactory(nil)
	root.SetNext(defaults)

	v, err := Resolve(root, "pi")
	require.NoError(t, err)
	assert.Equal(t, 3.14, v)

	resolver, err := root.GetVariableResolver("pi")
	require.NoError(t, err)
	assert.ErrorIs(t, resolver.SetValue(1), ErrImmutableVariable)
}

func TestTilt(t *testing.T) {

	t.Run("blocks delegate to the root", func(t *testing.T) {
		root := NewMapFactory(nil)
		block := NewBlockFactory(NewBlockFactory(root))

		block.SetTilted(true)
		assert.True(t, root.IsTilted())
		assert.True(t, block.IsTilted())

		ResetTilt(block)
		assert.False(t, root.IsTilted())
	})

	t.Run("call frames are boundaries", func(t *testing.T) {
		root := NewMapFactory(nil)
		frame := NewIndexedFactory(nil, nil, root)
		block := NewBlockFactory(frame)

		block.SetTilted(true)
		assert.True(t, frame.IsTilted())
		assert.False(t, root.IsTilted())
		assert.Same(t, root, Root(block))
	})
}
