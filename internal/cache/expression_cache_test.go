package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpressionCache(t *testing.T) {

	t.Run("get and put", func(t *testing.T) {
		c := NewExpressionCache[string](10)
		value := "compiled"

		_, ok := c.Get("ctx", "a + b")
		assert.False(t, ok)

		c.Put("ctx", "a + b", &value)
		cached, ok := c.Get("ctx", "a + b")
		if assert.True(t, ok) {
			assert.Same(t, &value, cached)
		}

		_, ok = c.Get("other ctx", "a + b")
		assert.False(t, ok)

		hits, misses := c.Stats()
		assert.EqualValues(t, 1, hits)
		assert.EqualValues(t, 2, misses)
	})

	t.Run("capacity", func(t *testing.T) {
		c := NewExpressionCache[int](2)
		one, two, three := 1, 2, 3

		c.Put("", "1", &one)
		c.Put("", "2", &two)
		c.Put("", "3", &three)

		assert.Equal(t, 2, c.Len())
		_, ok := c.Get("", "1")
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		c := NewExpressionCache[int](0)
		one := 1

		c.Put("", "1", &one)
		c.Delete("", "1")
		assert.Zero(t, c.Len())
	})
}
