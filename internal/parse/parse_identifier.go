package parse

import (
	"reflect"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/values"
)

func (p *Parser) parseIdentifierStart() ast.Node {
	start := p.i
	name := p.readIdent()
	span := NodeSpan{Start: start, End: p.i}

	if v, ok := values.LITERALS[name]; ok {
		return ast.NewLiteral(v, span)
	}
	if op, ok := values.OPERATOR_TOKENS[name]; ok {
		return p.operatorNode(op, span)
	}

	switch name {
	case "if":
		return p.parseIf(start)
	case "else":
		p.fail(start, ELSE_WITHOUT_IF)
	case "while", "until":
		return p.parseWhileUntil(start, name == "until")
	case "do":
		return p.parseDo(start)
	case "for":
		return p.parseFor(start)
	case "foreach":
		return p.parseForEach(start)
	case "with":
		return p.parseWith(start)
	case "def", "function":
		return p.parseFunction(start)
	case "return":
		return p.parseReturn(start)
	case "assert":
		return p.parseAssert(start)
	case "new":
		return p.parseNew(start)
	case "isdef":
		return p.parseIsDef(start)
	case "var":
		return p.parseVar(start)
	case "proto":
		p.fail(start, PROTO_NOT_SUPPORTED)
	}

	if decl := p.tryTypedDeclaration(start, name); decl != nil {
		return decl
	}

	p.i = start
	return p.parsePropertyPath()
}

// capturePath moves the cursor to the end of the property path starting at the cursor.
func (p *Parser) capturePath() {
	for p.i < p.end && IsIdentChar(p.s[p.i]) {
		p.i++
	}
	p.capturePathTail()
}

// capturePathTail captures the accessors (.name, ?.name, [index], ?[index], (args)) following a primary expression.
func (p *Parser) capturePathTail() {
	for p.i < p.end {
		r := p.s[p.i]
		switch {
		case r == '.' && p.i+1 < p.end && IsFirstIdentChar(p.s[p.i+1]):
			p.i++
			p.readIdent()
		case r == '?' && p.hasPrefixAt(p.i, "?.") && p.i+2 < p.end && IsFirstIdentChar(p.s[p.i+2]):
			p.i += 2
			p.readIdent()
		case r == '?' && p.hasPrefixAt(p.i, "?["):
			p.i++
			p.captureDelimited()
		case r == '[' || r == '(':
			p.captureDelimited()
		default:
			return
		}
	}
}

// captureDelimited moves the cursor after the delimiter closing the one at the cursor.
func (p *Parser) captureDelimited() NodeSpan {
	open := p.s[p.i]
	closing := balancedEnd(p.s, p.i, p.end)
	if closing < 0 {
		p.fail(p.i, fmtUnterminatedDelimiter(open))
	}
	inner := NodeSpan{Start: p.i + 1, End: closing}
	p.i = closing + 1
	return inner
}

// hasPathTail reports whether the cursor is at the start of an accessor applied to the previous token.
func (p *Parser) hasPathTail() bool {
	if p.i >= p.end {
		return false
	}
	switch r := p.s[p.i]; {
	case r == '.':
		return p.i+1 < p.end && IsFirstIdentChar(p.s[p.i+1])
	case r == '[':
		return true
	case r == '?':
		return p.hasPrefixAt(p.i, "?[") || p.hasPrefixAt(p.i, "?.") && p.i+2 < p.end && IsFirstIdentChar(p.s[p.i+2])
	}
	return false
}

// maybeUnion wraps primary in a Union node if it is followed by accessors.
func (p *Parser) maybeUnion(primary ast.Node) ast.Node {
	if !p.hasPathTail() {
		return primary
	}
	start := p.i
	p.capturePathTail()
	path := string(p.s[start:p.i])
	segments, err := SplitPath(path)
	if err != nil {
		p.fail(start, INVALID_PROPERTY_PATH)
	}

	union := &ast.Union{Primary: primary, Path: path}
	union.Span = NodeSpan{Start: primary.Base().Span.Start, End: p.i}
	union.Literal = p.ctx
	union.SetFlag(ast.FLAG_DEEP_PROPERTY)
	if strings.Contains(path, "?") {
		union.SetFlag(ast.FLAG_NULL_SAFE)
	}
	if p.ctx.IsStrictTyping() && primary.Base().EgressType != nil {
		union.EgressType = p.verifySegments(start, primary.Base().EgressType, segments)
	}
	return union
}

func (p *Parser) parsePropertyPath() ast.Node {
	start := p.i
	p.capturePath()
	pathEnd := p.i
	path := string(p.s[start:pathEnd])

	segments, err := SplitPath(path)
	if err != nil {
		p.fail(start, INVALID_PROPERTY_PATH)
	}
	span := NodeSpan{Start: start, End: pathEnd}

	j := p.peekNonSpace(pathEnd)
	switch {
	case p.hasPrefixAt(j, "++") || p.hasPrefixAt(j, "--"):
		p.i = j + 2
		return p.incDec(start, path, segments, p.s[j] == '+', false)
	case j < p.end && p.s[j] == '=' && !p.hasPrefixAt(j, "=="):
		p.i = j + 1
		return p.assignment(span, path, segments, values.NOOP)
	}
	if op, length := p.assignmentOperatorAt(j); length > 0 {
		p.i = j + length
		return p.assignment(span, path, segments, op)
	}

	return p.makeProperty(span, path, segments)
}

func (p *Parser) makeProperty(span NodeSpan, path string, segments []PathSegment) ast.Node {
	root := segments[0]

	if len(segments) == 1 && root.Kind == PropertySegment && !p.ctx.HasVariable(root.Name) {
		if imported, ok := p.ctx.Import(root.Name); ok {
			return ast.NewLiteral(imported, span)
		}
		if t, ok := values.BUILTIN_TYPES[root.Name]; ok {
			return ast.NewLiteral(t, span)
		}
	}

	if len(segments) == 1 && root.Kind == CallSegment {
		_, isFunction := p.ctx.Function(root.Name)
		if isFunction || p.ctx.HasVariable(root.Name) {
			call := &ast.FunctionCall{Name: root.Name, Index: p.ctx.IndexOf(root.Name)}
			call.Span = span
			argStart := span.Start + int32(len([]rune(root.Name))) + 1
			for _, argSpan := range p.argumentSpans(argStart, span.End-1) {
				call.Args = append(call.Args, p.subSequence(argSpan))
			}
			call.SetFlag(ast.FLAG_METHOD)
			call.Literal = p.ctx
			return call
		}
	}

	prop := &ast.Property{Path: path, Root: root.Name, SlotIndex: -1}
	prop.Span = span
	prop.Literal = p.ctx
	prop.SetFlag(ast.FLAG_IDENTIFIER)

	if root.Name == "this" {
		prop.SetFlag(ast.FLAG_THIS_REF)
	} else if root.Kind == PropertySegment {
		prop.SlotIndex = p.ctx.IndexOf(root.Name)
	}
	if len(segments) > 1 || root.Kind != PropertySegment {
		prop.SetFlag(ast.FLAG_DEEP_PROPERTY)
	}
	for _, seg := range segments {
		if seg.Kind == CallSegment {
			prop.SetFlag(ast.FLAG_METHOD)
		}
		if seg.NullSafe {
			prop.SetFlag(ast.FLAG_NULL_SAFE)
		}
	}

	prop.EgressType = p.verifyProperty(span.Start, segments)
	if p.ctx.IsStrongTyping() {
		prop.SetFlag(ast.FLAG_STRONG_TYPING)
	}
	return prop
}

// argumentSpans splits the arguments located between start and end.
func (p *Parser) argumentSpans(start, end int32) []NodeSpan {
	if isBlank(p.s, NodeSpan{Start: start, End: end}) {
		return nil
	}
	spans := splitTopLevel(p.s, start, end, ',')
	for i, span := range spans {
		spans[i] = trimSpan(p.s, span)
		if spans[i].IsEmpty() {
			p.fail(span.Start, MISSING_OPERAND)
		}
	}
	return spans
}

// captureStatement captures the rest of the current statement, the cursor is left on the terminating ';'.
func (p *Parser) captureStatement() NodeSpan {
	start := p.i
	end := statementEnd(p.s, p.i, p.end)
	p.i = end
	return trimSpan(p.s, NodeSpan{Start: start, End: end})
}

func (p *Parser) assignment(span NodeSpan, path string, segments []PathSegment, op values.Operator) ast.Node {
	valueSpan := p.captureStatement()
	if valueSpan.IsEmpty() {
		p.fail(span.End, MISSING_ASSIGNED_VALUE)
	}

	if last := segments[len(segments)-1]; last.Kind == CallSegment {
		p.fail(span.Start, INVALID_ASSIGNMENT_TARGET)
	}

	value := p.subSequence(valueSpan)
	fullSpan := NodeSpan{Start: span.Start, End: valueSpan.End}
	deep := len(segments) > 1 || segments[0].Kind != PropertySegment
	name := segments[0].Name

	var node ast.Node
	switch {
	case deep && op == values.NOOP:
		node = &ast.DeepAssignment{Path: path, Value: value}
		p.verifyProperty(span.Start, segments)
	case deep:
		node = &ast.DeepOperativeAssign{Path: path, Operator: op, Value: value}
		p.verifyProperty(span.Start, segments)
	default:
		index := p.ctx.IndexOf(name)
		p.checkAssignedType(span.Start, name, value.EgressType)

		switch {
		case index >= 0 && op == values.NOOP:
			node = &ast.IndexedAssignment{Name: name, Index: index, Value: value}
		case index >= 0:
			node = &ast.IndexedOperativeAssign{Name: name, Index: index, Operator: op, Value: value}
		case op == values.NOOP:
			node = &ast.Assignment{Name: name, Value: value}
			if !p.ctx.HasVariable(name) {
				p.ctx.AddVariable(name, value.EgressType)
			}
		default:
			if !p.ctx.HasVariable(name) {
				p.ctx.AddInput(name, nil)
			}
			node = &ast.OperativeAssign{Name: name, Operator: op, Value: value}
		}
	}

	base := node.Base()
	base.Span = fullSpan
	base.Literal = p.ctx
	base.EgressType = value.EgressType
	base.SetFlag(ast.FLAG_ASSIGNMENT)
	if deep {
		base.SetFlag(ast.FLAG_DEEP_PROPERTY)
	}
	if p.ctx.IsStrongTyping() {
		base.SetFlag(ast.FLAG_STRONG_TYPING)
	}
	return node
}

// checkAssignedType checks, in strongly typed mode, that a value of type valueType can be assigned to name.
func (p *Parser) checkAssignedType(offset int32, name string, valueType reflect.Type) {
	if !p.ctx.IsStrongTyping() || valueType == nil {
		return
	}
	declared, ok := p.ctx.VariableType(name)
	if !ok || declared == convert.ANY_TYPE || valueType == convert.ANY_TYPE {
		return
	}
	if !convert.CanConvert(declared, valueType) {
		p.fail(offset, fmtCannotAssignToTypedVariable(name, declared.String(), valueType.String()))
	}
}

func (p *Parser) incDec(start int32, path string, segments []PathSegment, increment, prefix bool) ast.Node {
	if last := segments[len(segments)-1]; last.Kind == CallSegment {
		p.fail(start, INVALID_ASSIGNMENT_TARGET)
	}
	deep := len(segments) > 1 || segments[0].Kind != PropertySegment

	node := &ast.IncDec{Name: path, Index: -1, Deep: deep, Delta: 1, Prefix: prefix}
	if !increment {
		node.Delta = -1
	}
	if !deep {
		node.Index = p.ctx.IndexOf(path)
		if !p.ctx.HasVariable(path) {
			p.ctx.AddInput(path, nil)
		}
		if t, ok := p.ctx.VariableType(path); ok && t != convert.ANY_TYPE {
			node.EgressType = t
		}
	} else {
		node.EgressType = p.verifyProperty(start, segments)
	}
	node.Span = NodeSpan{Start: start, End: p.i}
	node.Literal = p.ctx
	node.SetFlag(ast.FLAG_ASSIGNMENT)
	return node
}

func (p *Parser) parsePrefixIncDec() ast.Node {
	start := p.i
	increment := p.s[p.i] == '+'
	p.i += 2
	p.skipSpaces()
	if p.i >= p.end || !IsFirstIdentChar(p.s[p.i]) {
		p.fail(start, INVALID_ASSIGNMENT_TARGET)
	}
	pathStart := p.i
	p.capturePath()
	path := string(p.s[pathStart:p.i])
	segments, err := SplitPath(path)
	if err != nil {
		p.fail(pathStart, INVALID_PROPERTY_PATH)
	}
	return p.incDec(start, path, segments, increment, true)
}

// tryTypedDeclaration parses declarations such as int x = 1, String[] names or Foo f, the cursor is after
// the type name. Nil is returned and the cursor is restored if there is no declaration.
func (p *Parser) tryTypedDeclaration(start int32, typeName string) ast.Node {
	if p.ctx.HasVariable(typeName) {
		return nil
	}
	saved := p.i

	for {
		j := p.peekNonSpace(p.i)
		if !p.hasPrefixAt(j, "[") {
			break
		}
		k := p.peekNonSpace(j + 1)
		if !p.hasPrefixAt(k, "]") {
			p.i = saved
			return nil
		}
		typeName += "[]"
		p.i = k + 1
	}

	t, ok := p.ctx.ResolveType(typeName)
	nameStart := p.peekNonSpace(p.i)
	if !ok || nameStart == p.i || nameStart >= p.end || !IsFirstIdentChar(p.s[nameStart]) {
		p.i = saved
		return nil
	}

	p.i = nameStart
	name := p.readIdent()
	if _, isOperator := values.OPERATOR_TOKENS[name]; isOperator {
		p.i = saved
		return nil
	}
	if _, isLiteral := values.LITERALS[name]; isLiteral {
		p.i = saved
		return nil
	}

	j := p.peekNonSpace(p.i)
	hasValue := j < p.end && p.s[j] == '=' && !p.hasPrefixAt(j, "==")
	if !hasValue && j < p.end && p.s[j] != ';' && !isClosingDelim(p.s[j]) && p.s[j] != ',' {
		p.i = saved
		return nil
	}

	if declared, exists := p.ctx.VariableType(name); exists && declared != t && p.ctx.IsStrongTyping() {
		p.fail(nameStart, fmtVariableAlreadyDeclared(name))
	}

	decl := &ast.TypedVarDeclaration{Name: name, Type: t, Index: -1}
	if hasValue {
		p.i = j + 1
		valueSpan := p.captureStatement()
		if valueSpan.IsEmpty() {
			p.fail(j, MISSING_ASSIGNED_VALUE)
		}
		decl.Value = p.subSequence(valueSpan)
		if p.ctx.IsStrongTyping() && decl.Value.EgressType != nil && decl.Value.EgressType != convert.ANY_TYPE &&
			!convert.CanConvert(t, decl.Value.EgressType) {
			p.fail(j, fmtCannotAssignToTypedVariable(name, t.String(), decl.Value.EgressType.String()))
		}
	}

	decl.Index = p.ctx.IndexOf(name)
	p.ctx.AddVariable(name, t)

	decl.Span = NodeSpan{Start: start, End: p.i}
	decl.EgressType = t
	decl.Literal = p.ctx
	decl.SetFlag(ast.FLAG_ASSIGNMENT)
	return decl
}
