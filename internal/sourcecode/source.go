package sourcecode

import (
	"fmt"
	"io"
	"sort"
)

// Source is an immutable piece of expression code together with the offsets of its line starts.
type Source struct {
	name       string
	runes      []rune
	lineStarts []int32
}

func NewSource(name string, runes []rune) *Source {
	src := &Source{
		name:       name,
		runes:      runes,
		lineStarts: []int32{0},
	}

	for i, r := range runes {
		if r == '\n' {
			src.lineStarts = append(src.lineStarts, int32(i+1))
		}
	}
	return src
}

func (s *Source) Name() string {
	return s.name
}

// result should not be modified.
func (s *Source) Runes() []rune {
	return s.runes
}

func (s *Source) LineCount() int32 {
	return len32(s.lineStarts)
}

// GetLine returns the 1-indexed line of the rune at offset.
func (s *Source) GetLine(offset int32) int32 {
	index := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	})
	return int32(index)
}

func (s *Source) GetLineColumn(offset int32) (int32, int32) {
	if offset < 0 {
		offset = 0
	}
	line := s.GetLine(offset)
	return line, offset - s.lineStarts[line-1] + 1
}

func (s *Source) GetSpanLineColumn(span NodeSpan) (int32, int32) {
	return s.GetLineColumn(span.Start)
}

func (s *Source) GetSourcePosition(span NodeSpan) PositionRange {
	line, col := s.GetLineColumn(span.Start)
	endLine, endCol := s.GetLineColumn(span.End)

	return PositionRange{
		SourceName:  s.name,
		StartLine:   line,
		StartColumn: col,
		EndLine:     endLine,
		EndColumn:   endCol,
		Span:        span,
	}
}

func (s *Source) FormatNodeSpanLocation(w io.Writer, nodeSpan NodeSpan) (int, error) {
	line, col := s.GetSpanLineColumn(nodeSpan)
	return fmt.Fprintf(w, "%s:%d:%d:", s.name, line, col)
}

// GetLineCut returns the parts of the line containing cutIndex that are located before and after cutIndex.
func (s *Source) GetLineCut(cutIndex int32) (beforeSpan string, afterSpan string) {
	runes := s.runes
	if cutIndex > len32(runes) {
		cutIndex = len32(runes)
	}

	i := cutIndex
	for i > 0 && runes[i-1] != '\n' {
		i--
	}
	beforeSpan = string(runes[i:cutIndex])

	i = cutIndex
	for i < len32(runes) && runes[i] != '\n' {
		i++
	}
	afterSpan = string(runes[cutIndex:i])
	return
}

func len32[E any](s []E) int32 {
	return int32(len(s))
}
