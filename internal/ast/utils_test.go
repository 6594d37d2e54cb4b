package ast

import (
	"testing"

	"github.com/inoxlang/evalx/internal/values"
	"github.com/stretchr/testify/assert"
)

func makeChain() Node {
	left := NewLiteral(1, NodeSpan{Start: 0, End: 1})
	right := &Property{Path: "x", Root: "x", SlotIndex: -1}
	right.Span = NodeSpan{Start: 4, End: 5}

	add := &BinaryOperation{Operator: values.ADD, Left: left, Right: right}
	add.Span = NodeSpan{Start: 0, End: 5}

	label := &LineLabel{Line: 2}
	label.SetFlag(FLAG_NON_EXECUTABLE)
	add.Next = label

	last := NewLiteral("s", NodeSpan{Start: 7, End: 10})
	label.Next = last
	return add
}

func TestWalk(t *testing.T) {

	t.Run("stop", func(t *testing.T) {
		visited := 0
		err := Walk(makeChain(), func(n Node) error {
			visited++
			if _, ok := n.(*Property); ok {
				return ErrStopWalk
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, visited)
	})

	t.Run("count", func(t *testing.T) {
		assert.Equal(t, 5, CountNodes(makeChain()))
	})
}

func TestShiftNodeSpans(t *testing.T) {
	chain := makeChain()
	ShiftNodeSpans(chain, 10)

	assert.Equal(t, NodeSpan{Start: 10, End: 15}, chain.Base().Span)
	assert.Equal(t, NodeSpan{Start: 14, End: 15}, chain.(*BinaryOperation).Right.Base().Span)
}

func TestFindNodes(t *testing.T) {
	chain := makeChain()

	literals := FindNodes(chain, (*Literal)(nil), nil)
	assert.Len(t, literals, 2)

	strings := FindNodes(chain, (*Literal)(nil), func(n *Literal) bool {
		_, ok := n.Literal.(string)
		return ok
	})
	assert.Len(t, strings, 1)

	prop := FindFirstNode(chain, (*Property)(nil))
	if assert.NotNil(t, prop) {
		assert.Equal(t, "x", prop.Path)
	}
	assert.Nil(t, FindFirstNode(chain, (*Ternary)(nil)))
}

func TestStatements(t *testing.T) {
	statements := Statements(makeChain())
	assert.Len(t, statements, 2)
	assert.True(t, NodeIs(statements[1], (*Literal)(nil)))
	assert.True(t, NodeIsLiteralValue(statements[1]))
}
