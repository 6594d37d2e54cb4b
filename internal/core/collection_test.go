package core

import (
	"bytes"
	"testing"

	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineCollections(t *testing.T) {

	t.Run("list", func(t *testing.T) {
		assert.Equal(t, []any{1, "a", 3}, execute(t, "x = 3; [1, 'a', x]", nil, nil))
	})

	t.Run("map", func(t *testing.T) {
		assert.Equal(t, map[string]any{"a": 1, "b": []any{2, 3}}, execute(t, "x = 1; ['a': x, 'b': [2, 3]]", nil, nil))
	})

	t.Run("typed array", func(t *testing.T) {
		assert.Equal(t, []int{1, 2}, execute(t, "x = 2; new int[] {1, x}", nil, nil))
	})

	t.Run("each evaluation creates a new collection", func(t *testing.T) {
		expr := compileExpr(t, "[x]")
		first, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"x": 1}))
		require.NoError(t, err)
		second, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"x": 2}))
		require.NoError(t, err)

		assert.Equal(t, []any{1}, first)
		assert.Equal(t, []any{2}, second)
	})
}

func TestNewArray(t *testing.T) {
	t.Run("nested dimensions", func(t *testing.T) {
		result := execute(t, "n = 2; new int[n][3]", nil, nil)
		array, ok := result.([][]int)
		require.True(t, ok)
		require.Len(t, array, 2)
		assert.Len(t, array[1], 3)
	})

	t.Run("negative size", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "n = -1; new int[n]"), nil, nil)
		assert.ErrorIs(t, err, ErrInvalidArrayDimension)
	})
}

func TestNewObject(t *testing.T) {
	t.Run("imported factory", func(t *testing.T) {
		pctx := parse.MustNewParserContext(parse.ParserConfiguration{
			Imports: map[string]any{"Buffer": bytes.NewBufferString},
		})
		expr, err := parse.Compile("b = new Buffer('abc'); b.len()", pctx)
		require.NoError(t, err)

		result, err := Execute(expr, nil, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 3, result)
	})
}
