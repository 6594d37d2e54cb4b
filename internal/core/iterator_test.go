package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, collection any) []any {
	t.Helper()
	var items []any
	err := Iterate(collection, func(item any) (bool, error) {
		items = append(items, item)
		return true, nil
	})
	require.NoError(t, err)
	return items
}

func TestIterate(t *testing.T) {

	t.Run("slice", func(t *testing.T) {
		assert.Equal(t, []any{1, 2, 3}, collect(t, []int{1, 2, 3}))
		assert.Equal(t, []any{"a", 2}, collect(t, []any{"a", 2}))
	})

	t.Run("array and pointer to array", func(t *testing.T) {
		array := [2]string{"x", "y"}
		assert.Equal(t, []any{"x", "y"}, collect(t, array))
		assert.Equal(t, []any{"x", "y"}, collect(t, &array))
	})

	t.Run("map keys in natural order", func(t *testing.T) {
		m := map[string]any{"item10": 1, "item2": 2, "item1": 3}
		assert.Equal(t, []any{"item1", "item2", "item10"}, collect(t, m))

		ints := map[int]bool{10: true, 2: true, 1: true}
		assert.Equal(t, []any{1, 2, 10}, collect(t, ints))
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, []any{"h", "é", "!"}, collect(t, "hé!"))
	})

	t.Run("integer", func(t *testing.T) {
		assert.Equal(t, []any{1, 2, 3}, collect(t, 3))
		assert.Empty(t, collect(t, 0))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Empty(t, collect(t, nil))
	})

	t.Run("not iterable", func(t *testing.T) {
		err := Iterate(1.5, func(item any) (bool, error) { return true, nil })
		assert.ErrorIs(t, err, ErrNotIterable)
	})

	t.Run("stop", func(t *testing.T) {
		count := 0
		err := Iterate([]int{1, 2, 3}, func(item any) (bool, error) {
			count++
			return item != 2, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestForEach(t *testing.T) {

	t.Run("items are visited in order", func(t *testing.T) {
		vars := map[string]any{"list": []int{1, 2, 3}}
		assert.Equal(t, "1,2,3,", execute(t, "s = ''; foreach (item : list) { s = s + item + ',' }; s", nil, vars))
	})

	t.Run("inline list", func(t *testing.T) {
		assert.Equal(t, "1-2-3-", execute(t, "s = ''; foreach (n : [1, 2, 3]) { s = s + n + '-' }; s", nil, nil))
	})

	t.Run("typed item", func(t *testing.T) {
		vars := map[string]any{"list": []string{"1", "2"}}
		assert.EqualValues(t, 3, execute(t, "total = 0; for (int n : list) { total += n }; total", nil, vars))
	})

	t.Run("the item is not visible after the loop", func(t *testing.T) {
		vars := map[string]any{"list": []int{1}}
		execute(t, "foreach (item : list) { item }", nil, vars)
		assert.NotContains(t, vars, "item")
	})

	t.Run("return in the body", func(t *testing.T) {
		vars := map[string]any{"list": []int{1, 2, 3}}
		assert.EqualValues(t, 2, execute(t, "foreach (item : list) { if (item == 2) return item; }; 10", nil, vars))
	})

	t.Run("integer range", func(t *testing.T) {
		assert.EqualValues(t, 6, execute(t, "total = 0; foreach (i : 3) { total += i }; total", nil, nil))
	})
}
