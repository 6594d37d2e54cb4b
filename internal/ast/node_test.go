package ast

import (
	"reflect"
	"sync"
	"testing"

	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constantAccessor struct {
	value any
}

func (a *constantAccessor) GetValue(ctx, this any, vars scope.Factory) (any, error) {
	return a.value, nil
}

func (a *constantAccessor) SetValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return nil, nil
}

func (a *constantAccessor) KnownEgressType() reflect.Type {
	return nil
}

func TestFlags(t *testing.T) {
	lit := NewLiteral(1, NodeSpan{Start: 0, End: 1})
	assert.True(t, lit.IsLiteral())
	assert.False(t, lit.HasFlag(FLAG_DEOPTIMIZED))

	lit.SetFlag(FLAG_DEOPTIMIZED | FLAG_DISCARD)
	assert.True(t, lit.HasFlag(FLAG_DEOPTIMIZED))
	assert.True(t, lit.HasFlag(FLAG_LITERAL|FLAG_DISCARD))

	lit.ClearFlag(FLAG_DISCARD)
	assert.False(t, lit.HasFlag(FLAG_DISCARD))
	assert.True(t, lit.HasFlag(FLAG_DEOPTIMIZED))
}

func TestAccessorCache(t *testing.T) {

	t.Run("transitions", func(t *testing.T) {
		var cache AccessorCache

		accessor, state := cache.Load()
		assert.Nil(t, accessor)
		assert.Equal(t, UNCOMPILED, state)

		specialized := &constantAccessor{1}
		assert.Same(t, specialized, cache.Install(specialized))

		other := &constantAccessor{2}
		assert.Same(t, specialized, cache.Install(other), "the first installed accessor should be kept")

		safe := &constantAccessor{3}
		assert.Same(t, safe, cache.Deoptimize(func() Accessor { return safe }))

		calls := 0
		assert.Same(t, safe, cache.Deoptimize(func() Accessor {
			calls++
			return &constantAccessor{4}
		}))
		assert.Zero(t, calls)

		accessor, state = cache.Load()
		assert.Same(t, safe, accessor)
		assert.Equal(t, DEOPTIMIZED, state)
	})

	t.Run("concurrent deoptimization", func(t *testing.T) {
		var cache AccessorCache
		cache.Install(&constantAccessor{1})

		var wg sync.WaitGroup
		results := make([]Accessor, 20)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = cache.Deoptimize(func() Accessor { return &constantAccessor{i} })
			}(i)
		}
		wg.Wait()

		for _, result := range results {
			assert.Same(t, results[0], result)
		}
	})
}

func TestTypeCache(t *testing.T) {
	var cache TypeCache

	_, ok := cache.Get(1)
	assert.False(t, ok)

	first := &constantAccessor{1}
	assert.Same(t, first, cache.SetIfAbsent(1, first))
	assert.Same(t, first, cache.SetIfAbsent(1, &constantAccessor{2}))
	assert.Equal(t, 1, cache.Count())
}

func TestWalkAndDump(t *testing.T) {
	sum := &BinaryOperation{
		Operator: values.ADD,
		Left:     NewLiteral(1, NodeSpan{}),
		Right:    &Property{Path: "x", Root: "x", SlotIndex: -1},
	}
	assignment := &Assignment{
		Name:  "y",
		Value: &Sequence{Head: sum},
	}
	assignment.Next = &Property{Path: "y", Root: "y", SlotIndex: -1}

	var visited []string
	err := Walk(assignment, func(n Node) error {
		visited = append(visited, reflect.TypeOf(n).Elem().Name())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Assignment", "BinaryOperation", "Literal", "Property", "Property"}, visited)

	assert.Equal(t, `assign[y]{+(1:int, x)}; y`, Dump(assignment))

	count := 0
	err = Walk(assignment, func(n Node) error {
		count++
		if _, ok := n.(*Literal); ok {
			return ErrStopWalk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
