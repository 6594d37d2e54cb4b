package parse

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPath = errors.New(INVALID_PROPERTY_PATH)

type SegmentKind int

const (
	PropertySegment SegmentKind = iota
	IndexSegment
	CallSegment
)

func (k SegmentKind) String() string {
	switch k {
	case IndexSegment:
		return "index"
	case CallSegment:
		return "call"
	}
	return "property"
}

type PathSegment struct {
	Kind SegmentKind
	Name string   //property or method name
	Expr string   //index expression
	Args []string //call arguments
	// NullSafe is set if the segment is preceded by ?. or ?[: a nil value at this point ends the path.
	NullSafe bool
	Offset   int32 //rune offset of the segment in the path
}

func (s PathSegment) String() string {
	prefix := ""
	if s.NullSafe {
		prefix = "?"
	}
	switch s.Kind {
	case IndexSegment:
		return prefix + "[" + s.Expr + "]"
	case CallSegment:
		return prefix + s.Name + "(" + strings.Join(s.Args, ", ") + ")"
	}
	return prefix + s.Name
}

// SplitPath splits a property path such as a.b[i + 1]?.c(1, x) into segments.
// A path can start with a '.' or a '[' when it is applied to the value of another expression.
func SplitPath(path string) ([]PathSegment, error) {
	s := []rune(path)
	n := len32(s)
	i := int32(0)

	var segments []PathSegment
	nullSafe := false
	expectName := false

	for i < n {
		r := s[i]
		switch {
		case isSpace(r):
			i++
		case r == '?' && i+1 < n && (s[i+1] == '.' || s[i+1] == '['):
			nullSafe = true
			i++
			if s[i] == '.' {
				i++
				expectName = true
			}
		case r == '.':
			if expectName {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			expectName = true
			i++
		case r == '[':
			end := balancedEnd(s, i, n)
			if end < 0 {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			expr := strings.TrimSpace(string(s[i+1 : end]))
			if expr == "" {
				return nil, fmt.Errorf("%w: empty index in %s", ErrInvalidPath, path)
			}
			segments = append(segments, PathSegment{Kind: IndexSegment, Expr: expr, NullSafe: nullSafe, Offset: i})
			nullSafe = false
			expectName = false
			i = end + 1
		case r == '(':
			if len(segments) == 0 || segments[len(segments)-1].Kind != PropertySegment {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			end := balancedEnd(s, i, n)
			if end < 0 {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			last := &segments[len(segments)-1]
			last.Kind = CallSegment
			last.Args = splitArgs(s, i+1, end)
			i = end + 1
		case IsFirstIdentChar(r):
			if len(segments) > 0 && !expectName {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
			}
			start := i
			for i < n && IsIdentChar(s[i]) {
				i++
			}
			segments = append(segments, PathSegment{Kind: PropertySegment, Name: string(s[start:i]), NullSafe: nullSafe, Offset: start})
			nullSafe = false
			expectName = false
		default:
			return nil, fmt.Errorf("%w: unexpected character '%c' in %s", ErrInvalidPath, r, path)
		}
	}

	if expectName || nullSafe || len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return segments, nil
}

func splitArgs(s []rune, start, end int32) []string {
	if isBlank(s, NodeSpan{Start: start, End: end}) {
		return nil
	}
	var args []string
	for _, span := range splitTopLevel(s, start, end, ',') {
		args = append(args, strings.TrimSpace(string(s[span.Start:span.End])))
	}
	return args
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []PathSegment) string {
	buf := strings.Builder{}
	for i, seg := range segments {
		switch {
		case seg.NullSafe && seg.Kind == IndexSegment:
			buf.WriteString("?")
		case seg.NullSafe:
			buf.WriteString("?.")
		case i > 0 && seg.Kind != IndexSegment:
			buf.WriteString(".")
		}
		switch seg.Kind {
		case IndexSegment:
			buf.WriteString("[" + seg.Expr + "]")
		case CallSegment:
			buf.WriteString(seg.Name + "(" + strings.Join(seg.Args, ", ") + ")")
		default:
			buf.WriteString(seg.Name)
		}
	}
	return buf.String()
}
