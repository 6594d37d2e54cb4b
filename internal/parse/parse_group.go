package parse

import (
	"reflect"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
)

func (p *Parser) parseGroup() ast.Node {
	start := p.i
	inner := trimSpan(p.s, p.captureDelimited())
	if inner.IsEmpty() {
		p.fail(start, UNEXPECTED_END_OF_EXPRESSION)
	}

	if t, ok := p.castType(inner); ok {
		j := p.peekNonSpace(p.i)
		if j < p.end && startsOperand(p.s[j]) {
			p.i = j
			operand := p.operand(start)
			span := NodeSpan{Start: start, End: operand.Base().Span.End}
			if operand.Base().IsLiteral() {
				if v, err := convert.Convert(operand.Base().Literal, t); err == nil {
					return ast.NewLiteral(v, span)
				}
			}
			cast := &ast.TypeCast{Type: t, Operand: operand}
			cast.Span = span
			cast.EgressType = t
			return cast
		}
	}

	seq := p.subSequence(inner)
	span := NodeSpan{Start: start, End: p.i}

	var node ast.Node
	if seq.LiteralOnly {
		node = ast.NewLiteral(seq.Value, span)
	} else {
		sub := &ast.Substatement{Inner: seq}
		sub.Span = span
		sub.EgressType = seq.EgressType
		sub.Literal = p.ctx
		node = sub
	}
	return p.maybeUnion(node)
}

// castType reports whether the content of a group is a type name: (int), (String[]), (Foo).
func (p *Parser) castType(inner NodeSpan) (reflect.Type, bool) {
	text := strings.ReplaceAll(string(p.s[inner.Start:inner.End]), " ", "")
	base := strings.TrimRight(text, "[]")
	if !isIdentifier(base) || p.ctx.HasVariable(base) {
		return nil, false
	}
	return p.ctx.ResolveType(text)
}

func startsOperand(r rune) bool {
	return IsFirstIdentChar(r) || isDecDigit(r) || isQuote(r) || r == '(' || r == '['
}

// parseInlineCollection parses [a, b], [k: v, ...] or {a, b}.
func (p *Parser) parseInlineCollection(kind ast.CollectionKind) ast.Node {
	start := p.i
	inner := p.captureDelimited()
	node := p.collection(kind, inner, nil)
	node.Base().Span = NodeSpan{Start: start, End: p.i}
	return p.maybeUnion(node)
}

func (p *Parser) collection(kind ast.CollectionKind, inner NodeSpan, elemType reflect.Type) ast.Node {
	node := &ast.InlineCollection{Kind: kind, ElemType: elemType}
	node.Literal = p.ctx
	node.SetFlag(ast.FLAG_COLLECTION)

	var parts []NodeSpan
	if !isBlank(p.s, inner) {
		parts = splitTopLevel(p.s, inner.Start, inner.End, ',')
	}

	if kind == ast.ListCollection && len(parts) > 0 && mapEntrySeparator(p.s, parts[0]) >= 0 {
		node.Kind = ast.MapCollection
	}

	for _, part := range parts {
		part = trimSpan(p.s, part)
		if part.IsEmpty() {
			p.fail(part.Start, MISSING_OPERAND)
		}

		if node.Kind != ast.MapCollection {
			node.Elements = append(node.Elements, p.subSequence(part))
			continue
		}

		sep := mapEntrySeparator(p.s, part)
		if sep < 0 {
			p.fail(part.Start, INVALID_MAP_ENTRY)
		}
		key := trimSpan(p.s, NodeSpan{Start: part.Start, End: sep})
		value := trimSpan(p.s, NodeSpan{Start: sep + 1, End: part.End})
		if key.IsEmpty() || value.IsEmpty() {
			p.fail(part.Start, INVALID_MAP_ENTRY)
		}
		node.Keys = append(node.Keys, p.subSequence(key))
		node.Elements = append(node.Elements, p.subSequence(value))
	}

	switch {
	case node.Kind == ast.MapCollection:
		node.EgressType = convert.MAP_TYPE
	case elemType != nil:
		node.EgressType = reflect.SliceOf(elemType)
	default:
		node.EgressType = convert.LIST_TYPE
	}
	return node
}

// mapEntrySeparator returns the index of the ':' separating the key and the value of a map entry, a ':'
// preceded by a ternary '?' is not a separator.
func mapEntrySeparator(s []rune, span NodeSpan) int32 {
	for i := span.Start; i < span.End; i++ {
		switch c := s[i]; {
		case isQuote(c):
			i = skipString(s, i, span.End) - 1
		case isOpeningDelim(c):
			closing := balancedEnd(s, i, span.End)
			if closing < 0 {
				return -1
			}
			i = closing
		case c == '?':
			if i+1 < span.End && (s[i+1] == '.' || s[i+1] == '[') {
				continue
			}
			return -1
		case c == ':':
			return i
		}
	}
	return -1
}

func (p *Parser) parseNew(start int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end || !IsFirstIdentChar(p.s[p.i]) {
		p.fail(start, MISSING_NEW_TYPE)
	}
	typeStart := p.i
	typeName := p.readIdent()

	var (
		t       reflect.Type
		factory any
	)
	if resolved, ok := p.ctx.ResolveType(typeName); ok {
		t = resolved
	} else if imported, ok := p.ctx.Import(typeName); ok && imported != nil && reflect.TypeOf(imported).Kind() == reflect.Func {
		factory = imported
	} else {
		p.fail(typeStart, fmtUnknownType(typeName))
	}

	switch {
	case p.i < p.end && p.s[p.i] == '(':
		argsSpan := p.captureDelimited()
		node := &ast.NewObject{TypeName: typeName, Type: t, Factory: factory}
		for _, span := range p.argumentSpans(argsSpan.Start, argsSpan.End) {
			node.Args = append(node.Args, p.subSequence(span))
		}
		return p.maybeUnion(p.finishNew(node, start, t))
	case p.i < p.end && p.s[p.i] == '[':
		if t == nil {
			p.fail(typeStart, fmtUnknownType(typeName))
		}
		return p.parseNewArray(start, t)
	}

	node := &ast.NewObject{TypeName: typeName, Type: t, Factory: factory}
	return p.finishNew(node, start, t)
}

func (p *Parser) finishNew(node ast.Node, start int32, t reflect.Type) ast.Node {
	base := node.Base()
	base.Span = NodeSpan{Start: start, End: p.i}
	base.Literal = p.ctx
	if t != nil && t.Kind() == reflect.Struct {
		base.EgressType = reflect.PointerTo(t)
	} else {
		base.EgressType = t
	}
	return node
}

// parseNewArray parses new T[n][m] and new T[] {...}, the cursor is on the first '['.
func (p *Parser) parseNewArray(start int32, elemType reflect.Type) ast.Node {
	var dimensions []NodeSpan
	emptyDims := 0

	for p.i < p.end && p.s[p.i] == '[' {
		inner := trimSpan(p.s, p.captureDelimited())
		if inner.IsEmpty() {
			emptyDims++
		} else {
			if emptyDims > 0 {
				p.fail(inner.Start, INVALID_PROPERTY_PATH)
			}
			dimensions = append(dimensions, inner)
		}
	}

	j := p.peekNonSpace(p.i)
	hasInitializer := j < p.end && p.s[j] == '{'

	if hasInitializer && len(dimensions) > 0 {
		p.fail(start, NEW_ARRAY_WITH_INITIALIZER_AND_SIZE)
	}

	if hasInitializer {
		for i := 1; i < emptyDims; i++ {
			elemType = reflect.SliceOf(elemType)
		}
		p.i = j
		inner := p.captureDelimited()
		node := p.collection(ast.ArrayCollection, inner, elemType)
		node.Base().Span = NodeSpan{Start: start, End: p.i}
		return p.maybeUnion(node)
	}

	if len(dimensions) == 0 {
		p.fail(start, MISSING_OPERAND)
	}
	for i := 0; i < emptyDims; i++ {
		elemType = reflect.SliceOf(elemType)
	}

	node := &ast.NewArray{ElemType: elemType}
	for _, dim := range dimensions {
		node.Dimensions = append(node.Dimensions, p.subSequence(dim))
	}
	arrayType := elemType
	for range dimensions {
		arrayType = reflect.SliceOf(arrayType)
	}
	node.Span = NodeSpan{Start: start, End: p.i}
	node.Literal = p.ctx
	node.EgressType = arrayType
	return p.maybeUnion(node)
}
