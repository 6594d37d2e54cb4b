package parse

import (
	"reflect"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/values"
)

// subSequence compiles s[span.Start:span.End] in compile mode, in interpreted mode the span is kept.
func (p *Parser) subSequence(span NodeSpan) *ast.Sequence {
	if p.mode == InterpretedMode {
		return &ast.Sequence{Source: p.s, Span: span}
	}
	seq, err := compileSequence(p.ctx, p.s, span)
	if err != nil {
		p.failWith(span.Start, err)
	}
	return seq
}

// subBlock is like subSequence but the variables declared in the block are not visible after it.
func (p *Parser) subBlock(span NodeSpan) *ast.Sequence {
	if p.mode == CompileMode {
		p.ctx.PushScope()
		defer p.ctx.PopScope()
	}
	return p.subSequence(span)
}

// parseCondition parses a parenthesized condition.
func (p *Parser) parseCondition(keywordStart int32) *ast.Sequence {
	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '(' {
		p.fail(keywordStart, MISSING_CONDITION)
	}
	inner := trimSpan(p.s, p.captureDelimited())
	if inner.IsEmpty() {
		p.fail(keywordStart, EMPTY_CONDITION)
	}
	return p.subSequence(inner)
}

// parseBody parses a block body: a {...} block or a single statement.
func (p *Parser) parseBody(keywordStart int32) *ast.Sequence {
	p.skipSpaces()
	if p.i >= p.end {
		p.fail(keywordStart, MISSING_BLOCK_BODY)
	}
	if p.s[p.i] == '{' {
		return p.subBlock(trimSpan(p.s, p.captureDelimited()))
	}
	span := p.captureStatement()
	if span.IsEmpty() {
		p.fail(keywordStart, MISSING_BLOCK_BODY)
	}
	return p.subBlock(span)
}

func (p *Parser) finishBlock(node ast.Node, start int32) ast.Node {
	base := node.Base()
	base.Span = NodeSpan{Start: start, End: p.i}
	base.Literal = p.ctx
	if p.mode == InterpretedMode {
		base.SetFlag(ast.FLAG_INTERPRETED)
	}
	return node
}

func (p *Parser) parseIf(start int32) ast.Node {
	node := &ast.If{}
	node.Condition = p.parseCondition(start)
	node.Then = p.parseBody(start)

	saved := p.i
	j := p.peekNonSpace(p.i)
	if j < p.end && p.s[j] == ';' {
		j = p.peekNonSpace(j + 1)
	}
	if p.keywordAt(j, "else") {
		p.i = j + 4
		k := p.peekNonSpace(p.i)
		if p.keywordAt(k, "if") {
			p.i = k + 2
			node.ElseIf = p.parseIf(k).(*ast.If)
		} else {
			node.Else = p.parseBody(j)
		}
	} else {
		p.i = saved
	}
	return p.finishBlock(node, start)
}

func (p *Parser) parseWhileUntil(start int32, until bool) ast.Node {
	condition := p.parseCondition(start)
	body := p.parseBody(start)
	if until {
		return p.finishBlock(&ast.Until{Condition: condition, Body: body}, start)
	}
	return p.finishBlock(&ast.While{Condition: condition, Body: body}, start)
}

func (p *Parser) parseDo(start int32) ast.Node {
	body := p.parseBody(start)

	j := p.peekNonSpace(p.i)
	if j < p.end && p.s[j] == ';' {
		j = p.peekNonSpace(j + 1)
	}
	switch {
	case p.keywordAt(j, "while"):
		p.i = j + 5
		condition := p.parseCondition(j)
		return p.finishBlock(&ast.DoWhile{Body: body, Condition: condition}, start)
	case p.keywordAt(j, "until"):
		p.i = j + 5
		condition := p.parseCondition(j)
		return p.finishBlock(&ast.DoUntil{Body: body, Condition: condition}, start)
	}
	p.fail(start, MISSING_DO_CONDITION)
	return nil
}

func (p *Parser) parseFor(start int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '(' {
		p.fail(start, INVALID_FOR_HEADER)
	}
	headerStart := p.i
	header := p.captureDelimited()
	parts := splitTopLevel(p.s, header.Start, header.End, ';')

	switch len(parts) {
	case 1:
		if topLevelIndex(p.s, header, ':') >= 0 {
			p.i = headerStart
			return p.parseForEach(start)
		}
	case 3:
		if p.mode == CompileMode {
			p.ctx.PushScope()
			defer p.ctx.PopScope()
		}

		node := &ast.For{}
		if init := trimSpan(p.s, parts[0]); !init.IsEmpty() {
			node.Init = p.subSequence(init)
		}
		if cond := trimSpan(p.s, parts[1]); !cond.IsEmpty() {
			node.Condition = p.subSequence(cond)
		}
		if after := trimSpan(p.s, parts[2]); !after.IsEmpty() {
			node.After = p.subSequence(after)
		}
		node.Body = p.parseBody(start)
		return p.finishBlock(node, start)
	}

	p.fail(start, INVALID_FOR_HEADER)
	return nil
}

func (p *Parser) parseForEach(start int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '(' {
		p.fail(start, INVALID_FOREACH_HEADER)
	}
	header := p.captureDelimited()
	colon := topLevelIndex(p.s, header, ':')
	if colon < 0 {
		p.fail(header.Start, INVALID_FOREACH_HEADER)
	}

	itemSpan := trimSpan(p.s, NodeSpan{Start: header.Start, End: colon})
	collectionSpan := trimSpan(p.s, NodeSpan{Start: colon + 1, End: header.End})
	if collectionSpan.IsEmpty() {
		p.fail(colon, INVALID_FOREACH_HEADER)
	}

	name, typ, ok := p.parseTypedName(string(p.s[itemSpan.Start:itemSpan.End]))
	if !ok {
		p.fail(itemSpan.Start, INVALID_FOREACH_HEADER)
	}

	node := &ast.ForEach{Item: name, ItemType: typ}
	node.Collection = p.subSequence(collectionSpan)

	if p.mode == CompileMode {
		p.ctx.PushScope()
		defer p.ctx.PopScope()
		p.ctx.AddVariable(name, typ)
	}
	node.Body = p.parseBody(start)
	return p.finishBlock(node, start)
}

// parseTypedName parses 'name' or 'Type name'.
func (p *Parser) parseTypedName(text string) (string, reflect.Type, bool) {
	fields := strings.Fields(text)
	var typ reflect.Type

	switch len(fields) {
	case 1:
	case 2:
		t, ok := p.ctx.ResolveType(fields[0])
		if !ok {
			return "", nil, false
		}
		typ = t
		fields = fields[1:]
	default:
		return "", nil, false
	}

	name := fields[0]
	if !isIdentifier(name) {
		return "", nil, false
	}
	return name, typ, true
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if i == 0 && !IsFirstIdentChar(r) || !IsIdentChar(r) {
			return false
		}
	}
	return s != ""
}

// topLevelIndex returns the index of the first occurrence of r at depth 0, -1 if there is none.
func topLevelIndex(s []rune, span NodeSpan, r rune) int32 {
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
		case c == r:
			return i
		}
	}
	return -1
}

func (p *Parser) parseWith(start int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '(' {
		p.fail(start, MISSING_CONDITION)
	}
	target := trimSpan(p.s, p.captureDelimited())
	if target.IsEmpty() {
		p.fail(start, EMPTY_CONDITION)
	}

	node := &ast.With{Target: p.subSequence(target)}

	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '{' {
		p.fail(start, MISSING_BLOCK_BODY)
	}
	body := p.captureDelimited()

	for _, stmtSpan := range splitTopLevel(p.s, body.Start, body.End, ';') {
		for _, span := range splitTopLevel(p.s, stmtSpan.Start, stmtSpan.End, ',') {
			span = trimSpan(p.s, span)
			if span.IsEmpty() {
				continue
			}
			node.Statements = append(node.Statements, p.withStatement(span))
		}
	}
	return p.finishBlock(node, start)
}

func (p *Parser) withStatement(span NodeSpan) *ast.WithStatement {
	stmt := &ast.WithStatement{Span: span}

	opStart, valueStart, op, found := findAssignment(p.s, span)
	pathSpan := span
	if found {
		pathSpan = trimSpan(p.s, NodeSpan{Start: span.Start, End: opStart})
		valueSpan := trimSpan(p.s, NodeSpan{Start: valueStart, End: span.End})
		if valueSpan.IsEmpty() {
			p.fail(opStart, MISSING_ASSIGNED_VALUE)
		}
		stmt.Operator = op
		stmt.Value = p.subSequence(valueSpan)
	}

	stmt.Path = string(p.s[pathSpan.Start:pathSpan.End])
	if _, err := SplitPath(stmt.Path); err != nil {
		p.fail(pathSpan.Start, INVALID_WITH_STATEMENT)
	}
	return stmt
}

// findAssignment finds the first assignment operator located at depth 0 in span.
func findAssignment(s []rune, span NodeSpan) (opStart, valueStart int32, op values.Operator, found bool) {
	for i := span.Start; i < span.End; i++ {
		switch c := s[i]; {
		case isQuote(c):
			i = skipString(s, i, span.End) - 1
		case isOpeningDelim(c):
			closing := balancedEnd(s, i, span.End)
			if closing < 0 {
				return 0, 0, values.NOOP, false
			}
			i = closing
		case c == '=':
			if i+1 < span.End && s[i+1] == '=' {
				i++
				continue
			}
			for length := int32(3); length >= 1; length-- {
				if i-length < span.Start {
					continue
				}
				if op, ok := values.ASSIGNMENT_OPERATORS[string(s[i-length:i+1])]; ok {
					return i - length, i + 1, op, true
				}
			}
			if i > span.Start && strings.ContainsRune("!<>=", s[i-1]) {
				continue
			}
			return i, i + 1, values.NOOP, true
		}
	}
	return 0, 0, values.NOOP, false
}

func (p *Parser) parseFunction(start int32) ast.Node {
	p.skipSpaces()
	var name string
	if p.i < p.end && IsFirstIdentChar(p.s[p.i]) {
		name = p.readIdent()
		p.skipSpaces()
	}
	if p.i >= p.end || p.s[p.i] != '(' {
		p.fail(start, MISSING_FUNCTION_PARAMS)
	}

	fn := &ast.Function{Name: name}
	paramsSpan := p.captureDelimited()
	for _, span := range p.argumentSpans(paramsSpan.Start, paramsSpan.End) {
		paramName, paramType, ok := p.parseTypedName(string(p.s[span.Start:span.End]))
		if !ok {
			p.fail(span.Start, INVALID_PARAMETER)
		}
		fn.Params = append(fn.Params, paramName)
		fn.ParamTypes = append(fn.ParamTypes, paramType)
	}

	p.skipSpaces()
	if p.i >= p.end || p.s[p.i] != '{' {
		p.fail(start, MISSING_FUNCTION_BODY)
	}
	bodySpan := trimSpan(p.s, p.captureDelimited())

	if name != "" {
		p.ctx.DeclareFunction(fn)
		if !p.ctx.HasVariable(name) {
			p.ctx.AddVariable(name, nil)
		}
	}

	sub := p.ctx.Subcontext(fn.Params, fn.ParamTypes)
	if p.mode == InterpretedMode {
		fn.Body = &ast.Sequence{Source: p.s, Span: bodySpan}
	} else {
		body, err := compileSequence(sub, p.s, bodySpan)
		if err != nil {
			p.failWith(bodySpan.Start, err)
		}
		fn.Body = body
	}

	fn.Inputs = sub.InputNames()
	for _, input := range fn.Inputs {
		if !p.ctx.HasVariable(input) {
			p.ctx.AddInput(input, nil)
		}
	}

	p.finishBlock(fn, start)
	fn.Literal = sub
	return fn
}

func (p *Parser) parseReturn(start int32) ast.Node {
	node := &ast.Return{}
	if span := p.captureStatement(); !span.IsEmpty() {
		node.Value = p.subSequence(span)
		node.EgressType = node.Value.EgressType
	}
	return p.finishBlock(node, start)
}

func (p *Parser) parseAssert(start int32) ast.Node {
	span := p.captureStatement()
	if span.IsEmpty() {
		p.fail(start, MISSING_OPERAND)
	}
	node := &ast.Assert{Value: p.subSequence(span)}
	node.EgressType = convert.BOOL_TYPE
	return p.finishBlock(node, start)
}

func (p *Parser) parseIsDef(start int32) ast.Node {
	p.skipSpaces()
	var name string
	switch {
	case p.i < p.end && p.s[p.i] == '(':
		inner := trimSpan(p.s, p.captureDelimited())
		name = string(p.s[inner.Start:inner.End])
	case p.i < p.end && IsFirstIdentChar(p.s[p.i]):
		name = p.readIdent()
	}
	if !isIdentifier(name) {
		p.fail(start, MISSING_ISDEF_NAME)
	}

	node := &ast.IsDef{Name: name}
	node.Span = NodeSpan{Start: start, End: p.i}
	node.EgressType = convert.BOOL_TYPE
	return node
}

func (p *Parser) parseVar(start int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end || !IsFirstIdentChar(p.s[p.i]) {
		p.fail(start, MISSING_VAR_NAME)
	}
	name := p.readIdent()

	j := p.peekNonSpace(p.i)
	if j < p.end && p.s[j] == '=' && !p.hasPrefixAt(j, "==") {
		p.i = j + 1
		valueSpan := p.captureStatement()
		if valueSpan.IsEmpty() {
			p.fail(j, MISSING_ASSIGNED_VALUE)
		}
		node := &ast.Assignment{Name: name, Declare: true, Value: p.subSequence(valueSpan)}
		node.EgressType = node.Value.EgressType
		node.SetFlag(ast.FLAG_ASSIGNMENT)
		p.ctx.AddVariable(name, node.Value.EgressType)
		return p.finishBlock(node, start)
	}

	decl := &ast.TypedVarDeclaration{Name: name, Type: convert.ANY_TYPE, Index: p.ctx.IndexOf(name)}
	decl.SetFlag(ast.FLAG_ASSIGNMENT)
	p.ctx.AddVariable(name, nil)
	return p.finishBlock(decl, start)
}
