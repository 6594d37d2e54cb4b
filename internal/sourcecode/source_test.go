package sourcecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource(t *testing.T) {

	t.Run("single line", func(t *testing.T) {
		src := NewSource("expr", []rune("a + b"))

		line, col := src.GetLineColumn(4)
		assert.EqualValues(t, 1, line)
		assert.EqualValues(t, 5, col)
		assert.EqualValues(t, 1, src.LineCount())
	})

	t.Run("several lines", func(t *testing.T) {
		src := NewSource("expr", []rune("a = 1;\nb = 2;\n\nc"))

		assert.EqualValues(t, 4, src.LineCount())
		assert.EqualValues(t, 1, src.GetLine(0))
		assert.EqualValues(t, 1, src.GetLine(6))
		assert.EqualValues(t, 2, src.GetLine(7))
		assert.EqualValues(t, 3, src.GetLine(14))

		line, col := src.GetLineColumn(15)
		assert.EqualValues(t, 4, line)
		assert.EqualValues(t, 1, col)

		pos := src.GetSourcePosition(NodeSpan{7, 12})
		assert.Equal(t, PositionRange{
			SourceName:  "expr",
			StartLine:   2,
			StartColumn: 1,
			EndLine:     2,
			EndColumn:   6,
			Span:        NodeSpan{7, 12},
		}, pos)
		assert.Equal(t, "expr:2:1:", pos.String())
	})

	t.Run("line cut", func(t *testing.T) {
		src := NewSource("expr", []rune("a = 1;\nb = 2;"))

		before, after := src.GetLineCut(9)
		assert.Equal(t, "b ", before)
		assert.Equal(t, "= 2;", after)
	})
}
