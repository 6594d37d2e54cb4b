package parse

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/inoxlang/evalx/internal/values"
)

type Mode int

const (
	// CompileMode: nested bodies are compiled when they are met.
	CompileMode Mode = iota

	// InterpretedMode: nested bodies keep their span and are parsed when they are evaluated.
	InterpretedMode
)

// A Parser tokenizes and builds nodes at the same time: every token returned by NextToken is a node.
// Note that there is no separate lexer.
type Parser struct {
	s     []rune //shared source buffer, comments are blanked
	i     int32  //rune index
	start int32
	end   int32

	ctx  *ParserContext
	mode Mode

	lastNode ast.Node
	pushback []ast.Node
}

// NewParser creates a parser for s[span.Start:span.End], s should have been returned by BlankComments.
func NewParser(ctx *ParserContext, s []rune, span NodeSpan, mode Mode) *Parser {
	if span.End > len32(s) {
		span.End = len32(s)
	}
	ctx.setSource(s)
	return &Parser{
		s:     s,
		i:     span.Start,
		start: span.Start,
		end:   span.End,
		ctx:   ctx,
		mode:  mode,
	}
}

func (p *Parser) Context() *ParserContext {
	return p.ctx
}

func (p *Parser) Source() []rune {
	return p.s
}

func (p *Parser) Mode() Mode {
	return p.mode
}

// Cursor returns the index of the next rune to parse.
func (p *Parser) Cursor() int32 {
	return p.i
}

func (p *Parser) LastNode() ast.Node {
	return p.lastNode
}

// Unread makes node the next token returned by NextToken.
func (p *Parser) Unread(node ast.Node) {
	p.pushback = append(p.pushback, node)
}

// NextToken returns the next node, nil is returned at the end of the input.
func (p *Parser) NextToken() (node ast.Node, err error) {
	if n := len(p.pushback); n > 0 {
		node = p.pushback[n-1]
		p.pushback = p.pushback[:n-1]
		p.lastNode = node
		return node, nil
	}

	defer func() {
		if e := recover(); e != nil {
			node = nil
			if cerr, ok := e.(*CompileError); ok {
				err = cerr
				return
			}
			err = p.ctx.newError(p.i, utils.ConvertPanicValueToError(e).Error(), true)
		}
	}()

	node = p.nextToken()
	if node != nil {
		p.lastNode = node
	}
	return node, nil
}

func (p *Parser) fail(offset int32, msg string) {
	panic(p.ctx.newError(offset, msg, true))
}

func (p *Parser) failWith(offset int32, err error) {
	var cerr *CompileError
	if errors.As(err, &cerr) {
		panic(cerr)
	}
	p.fail(offset, err.Error())
}

func (p *Parser) warn(offset int32, msg string) {
	p.ctx.newError(offset, msg, false)
}

func (p *Parser) skipSpaces() {
	for p.i < p.end && isSpace(p.s[p.i]) {
		p.i++
	}
}

// peekNonSpace returns the index of the first non-space rune at or after i.
func (p *Parser) peekNonSpace(i int32) int32 {
	for i < p.end && isSpace(p.s[i]) {
		i++
	}
	return i
}

func (p *Parser) hasPrefixAt(i int32, prefix string) bool {
	for _, r := range prefix {
		if i >= p.end || p.s[i] != r {
			return false
		}
		i++
	}
	return true
}

// isOperandPosition reports whether the next token is expected to be an operand.
func (p *Parser) isOperandPosition() bool {
	switch p.lastNode.(type) {
	case nil, *ast.OperatorNode, *ast.EndOfStatement, *ast.LineLabel:
		return true
	}
	return false
}

func (p *Parser) nextToken() ast.Node {
	p.skipSpaces()
	if p.i >= p.end {
		return nil
	}

	switch p.lastNode.(type) {
	case nil, *ast.EndOfStatement:
		if line, ok := p.ctx.markLine(p.i); ok {
			label := &ast.LineLabel{SourceName: p.ctx.SourceName(), Line: line}
			label.Span = NodeSpan{Start: p.i, End: p.i}
			label.SetFlag(ast.FLAG_NON_EXECUTABLE)
			return label
		}
	}

	return p.token()
}

func (p *Parser) token() ast.Node {
	p.skipSpaces()
	if p.i >= p.end {
		return nil
	}

	r := p.s[p.i]
	switch {
	case r == ';':
		eos := &ast.EndOfStatement{}
		eos.Span = NodeSpan{Start: p.i, End: p.i + 1}
		eos.SetFlag(ast.FLAG_END_OF_STATEMENT)
		p.i++
		return eos
	case isQuote(r):
		return p.parseStringLiteral()
	case isDecDigit(r) || (r == '.' && p.i+1 < p.end && isDecDigit(p.s[p.i+1])):
		return p.parseNumberLiteral(p.i)
	case IsFirstIdentChar(r):
		return p.parseIdentifierStart()
	case r == '(':
		return p.parseGroup()
	case r == '[':
		return p.parseInlineCollection(ast.ListCollection)
	case r == '{':
		return p.parseInlineCollection(ast.ArrayCollection)
	case isOperatorChar(r):
		return p.parseOperator()
	case isClosingDelim(r):
		p.fail(p.i, fmtUnexpectedChar(r))
	default:
		p.fail(p.i, fmtUnexpectedChar(r))
	}
	return nil
}

// operand parses the operand of a unary operator.
func (p *Parser) operand(opStart int32) ast.Node {
	p.skipSpaces()
	if p.i >= p.end {
		p.fail(opStart, MISSING_OPERAND)
	}
	node := p.token()
	switch node.(type) {
	case nil, *ast.OperatorNode, *ast.EndOfStatement:
		p.fail(opStart, MISSING_OPERAND)
	}
	return node
}

func (p *Parser) parseOperator() ast.Node {
	start := p.i
	r := p.s[p.i]
	var next rune
	if p.i+1 < p.end {
		next = p.s[p.i+1]
	}

	if p.isOperandPosition() {
		switch {
		case (r == '+' && next == '+') || (r == '-' && next == '-'):
			return p.parsePrefixIncDec()
		case r == '-' && (isDecDigit(next) || next == '.'):
			p.i++
			p.skipSpaces()
			return p.parseNumberLiteral(start)
		case r == '-':
			p.i++
			operand := p.operand(start)
			if operand.Base().IsLiteral() {
				if v, err := values.Negate(operand.Base().Literal); err == nil {
					return ast.NewLiteral(v, NodeSpan{Start: start, End: operand.Base().Span.End})
				}
			}
			sign := &ast.Sign{Operand: operand}
			sign.Span = NodeSpan{Start: start, End: operand.Base().Span.End}
			sign.EgressType = operand.Base().EgressType
			return sign
		case r == '+':
			p.i++
			return p.operand(start)
		case r == '!' && next != '=':
			p.i++
			operand := p.operand(start)
			if b, ok := operand.Base().Literal.(bool); ok && operand.Base().IsLiteral() {
				return ast.NewLiteral(!b, NodeSpan{Start: start, End: operand.Base().Span.End})
			}
			negation := &ast.Negation{Operand: operand}
			negation.Span = NodeSpan{Start: start, End: operand.Base().Span.End}
			negation.EgressType = convert.BOOL_TYPE
			return negation
		case r == '~' && next != '=':
			p.i++
			operand := p.operand(start)
			if operand.Base().IsLiteral() {
				if v, err := values.BitwiseNot(operand.Base().Literal); err == nil {
					return ast.NewLiteral(v, NodeSpan{Start: start, End: operand.Base().Span.End})
				}
			}
			invert := &ast.BitwiseInvert{Operand: operand}
			invert.Span = NodeSpan{Start: start, End: operand.Base().Span.End}
			invert.EgressType = operand.Base().EgressType
			return invert
		}
	}

	if _, length := p.assignmentOperatorAt(p.i); length > 0 {
		p.fail(start, INVALID_ASSIGNMENT_TARGET)
	}

	//longest match
	for length := int32(3); length >= 1; length-- {
		if p.i+length > p.end {
			continue
		}
		text := string(p.s[p.i : p.i+length])
		if op, ok := values.OPERATOR_TOKENS[text]; ok {
			p.i += length
			return p.operatorNode(op, NodeSpan{Start: start, End: p.i})
		}
	}

	if r == '=' {
		p.fail(start, INVALID_ASSIGNMENT_TARGET)
	}
	p.fail(start, fmtUnknownOperator(string(r)))
	return nil
}

func (p *Parser) operatorNode(op values.Operator, span NodeSpan) *ast.OperatorNode {
	node := &ast.OperatorNode{Operator: op}
	node.Span = span
	node.SetFlag(ast.FLAG_OPERATOR)
	return node
}

func (p *Parser) parseStringLiteral() ast.Node {
	start := p.i
	quote := p.s[p.i]
	p.i++

	buf := strings.Builder{}
	for {
		if p.i >= p.end {
			p.fail(start, UNTERMINATED_STRING_LIT)
		}
		r := p.s[p.i]
		if r == quote {
			p.i++
			break
		}
		if r != '\\' {
			buf.WriteRune(r)
			p.i++
			continue
		}

		p.i++
		if p.i >= p.end {
			p.fail(start, UNTERMINATED_STRING_LIT)
		}
		switch esc := p.s[p.i]; esc {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case 'b':
			buf.WriteByte('\b')
		case 'f':
			buf.WriteByte('\f')
		case '0':
			buf.WriteByte(0)
		case 'u':
			if p.i+4 >= p.end {
				p.fail(p.i, UNTERMINATED_STRING_LIT)
			}
			code, err := strconv.ParseUint(string(p.s[p.i+1:p.i+5]), 16, 32)
			if err != nil {
				p.fail(p.i, "invalid unicode escape sequence")
			}
			buf.WriteRune(rune(code))
			p.i += 4
		default:
			buf.WriteRune(esc)
		}
		p.i++
	}

	lit := ast.NewLiteral(buf.String(), NodeSpan{Start: start, End: p.i})
	return p.maybeUnion(lit)
}

// parseNumberLiteral parses a number, start is the index of the leading '-' for negative numbers.
func (p *Parser) parseNumberLiteral(start int32) ast.Node {
	negative := start < p.i && p.s[start] == '-'
	numStart := p.i
	isFloat := false
	base := 10

	if p.hasPrefixAt(p.i, "0x") || p.hasPrefixAt(p.i, "0X") {
		base = 16
		p.i += 2
		for p.i < p.end && isHexDigit(p.s[p.i]) {
			p.i++
		}
	} else {
		for p.i < p.end && isDecDigit(p.s[p.i]) {
			p.i++
		}
		if p.i+1 < p.end && p.s[p.i] == '.' && isDecDigit(p.s[p.i+1]) ||
			p.i < p.end && p.s[p.i] == '.' && p.i == numStart {
			isFloat = true
			p.i++
			for p.i < p.end && isDecDigit(p.s[p.i]) {
				p.i++
			}
		}
		if p.i < p.end && (p.s[p.i] == 'e' || p.s[p.i] == 'E') {
			j := p.i + 1
			if j < p.end && (p.s[j] == '+' || p.s[j] == '-') {
				j++
			}
			if j < p.end && isDecDigit(p.s[j]) {
				isFloat = true
				for j < p.end && isDecDigit(p.s[j]) {
					j++
				}
				p.i = j
			}
		}
	}

	text := string(p.s[numStart:p.i])
	if negative {
		text = "-" + text
	}

	var suffix rune
	if p.i < p.end && strings.ContainsRune("lLdDfFIB", p.s[p.i]) {
		suffix = p.s[p.i]
		p.i++
	}
	if p.i < p.end && IsIdentChar(p.s[p.i]) {
		p.fail(numStart, fmtInvalidNumber(string(p.s[numStart:p.i+1])))
	}

	value, ok := parseNumber(text, base, isFloat, suffix)
	if !ok {
		p.fail(numStart, fmtInvalidNumber(text))
	}
	return ast.NewLiteral(value, NodeSpan{Start: start, End: p.i})
}

func parseNumber(text string, base int, isFloat bool, suffix rune) (any, bool) {
	digits := text
	if base == 16 {
		negative := strings.HasPrefix(digits, "-")
		digits = strings.TrimPrefix(strings.TrimPrefix(digits, "-"), "0x")
		digits = strings.TrimPrefix(digits, "0X")
		if negative {
			digits = "-" + digits
		}
	}

	switch suffix {
	case 'l', 'L':
		i, err := strconv.ParseInt(digits, base, 64)
		return i, err == nil && !isFloat
	case 'd', 'D':
		f, err := strconv.ParseFloat(text, 64)
		return f, err == nil && base == 10
	case 'f', 'F':
		f, err := strconv.ParseFloat(text, 32)
		return float32(f), err == nil && base == 10
	case 'I':
		i, ok := new(big.Int).SetString(digits, base)
		return i, ok && !isFloat
	case 'B':
		f, _, err := big.ParseFloat(text, 10, convert.BIG_DECIMAL_PRECISION, big.ToNearestEven)
		return f, err == nil && base == 10
	}

	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		return f, err == nil
	}

	i, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
			bigInt, ok := new(big.Int).SetString(digits, base)
			return bigInt, ok
		}
		return nil, false
	}
	if i >= math.MinInt && i <= math.MaxInt {
		return int(i), true
	}
	return i, true
}

func (p *Parser) readIdent() string {
	start := p.i
	for p.i < p.end && IsIdentChar(p.s[p.i]) {
		p.i++
	}
	return string(p.s[start:p.i])
}

// keywordAt reports whether the identifier starting at i is keyword.
func (p *Parser) keywordAt(i int32, keyword string) bool {
	if !p.hasPrefixAt(i, keyword) {
		return false
	}
	after := i + int32(len(keyword))
	return after >= p.end || !IsIdentChar(p.s[after])
}

// assignmentOperatorAt returns the operator of the compound assignment starting at i and its length,
// the length is zero if there is no compound assignment.
func (p *Parser) assignmentOperatorAt(i int32) (values.Operator, int32) {
	for length := int32(4); length >= 2; length-- {
		if i+length > p.end {
			continue
		}
		if op, ok := values.ASSIGNMENT_OPERATORS[string(p.s[i:i+length])]; ok {
			return op, length
		}
	}
	return values.NOOP, 0
}
