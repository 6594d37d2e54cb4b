package parse

import (
	"reflect"
	"time"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/values"
)

var (
	TIME_TYPE     = reflect.TypeOf(time.Time{})
	DURATION_TYPE = reflect.TypeOf(time.Duration(0))
)

// BuildExpression turns a flat run of operands and operators into a tree. Each operator is spliced
// into the rightmost operand of the last built node while that node binds looser than the operator.
func (c *Compiler) BuildExpression(tokens []ast.Node) (ast.Node, error) {
	if len(tokens) == 0 {
		return nil, c.ctx.newError(0, UNEXPECTED_END_OF_EXPRESSION, true)
	}

	//ternary: the condition is located before the first '?' at this level
	for i, tok := range tokens {
		opNode, ok := tok.(*ast.OperatorNode)
		if !ok {
			continue
		}
		switch opNode.Operator {
		case values.TERNARY:
			return c.buildTernary(tokens, i)
		case values.TERNARY_ELSE:
			return nil, c.ctx.newError(opNode.Span.Start, INVALID_TERNARY, true)
		}
	}

	b := builder{c: c, precedences: map[ast.Node]int{}}
	return b.build(tokens)
}

func (c *Compiler) buildTernary(tokens []ast.Node, questionMark int) (ast.Node, error) {
	depth := 0
	colon := -1

loop:
	for i := questionMark + 1; i < len(tokens); i++ {
		opNode, ok := tokens[i].(*ast.OperatorNode)
		if !ok {
			continue
		}
		switch opNode.Operator {
		case values.TERNARY:
			depth++
		case values.TERNARY_ELSE:
			if depth == 0 {
				colon = i
				break loop
			}
			depth--
		}
	}

	qmark := tokens[questionMark].Base().Span.Start
	if colon < 0 {
		return nil, c.ctx.newError(qmark, INVALID_TERNARY, true)
	}
	if questionMark == 0 || colon == questionMark+1 || colon == len(tokens)-1 {
		return nil, c.ctx.newError(qmark, MISSING_OPERAND, true)
	}

	condition, err := c.BuildExpression(tokens[:questionMark])
	if err != nil {
		return nil, err
	}
	then, err := c.BuildExpression(tokens[questionMark+1 : colon])
	if err != nil {
		return nil, err
	}
	otherwise, err := c.BuildExpression(tokens[colon+1:])
	if err != nil {
		return nil, err
	}

	ternary := &ast.Ternary{Condition: condition, Then: then, Else: otherwise}
	ternary.Span = NodeSpan{Start: condition.Base().Span.Start, End: otherwise.Base().Span.End}
	if then.Base().EgressType == otherwise.Base().EgressType {
		ternary.EgressType = then.Base().EgressType
	}
	return ternary, nil
}

type builder struct {
	c *Compiler

	//nodes built by the builder and the precedence of their operator
	precedences map[ast.Node]int
}

func (b *builder) build(tokens []ast.Node) (ast.Node, error) {
	if _, ok := tokens[0].(*ast.OperatorNode); ok {
		return nil, b.c.ctx.newError(tokens[0].Base().Span.Start, UNEXPECTED_OPERATOR, true)
	}

	root := tokens[0]
	for i := 1; i < len(tokens); i += 2 {
		opNode, ok := tokens[i].(*ast.OperatorNode)
		if !ok {
			return nil, b.c.ctx.newError(tokens[i].Base().Span.Start, UNEXPECTED_END_OF_STATEMENT, true)
		}
		if i+1 >= len(tokens) {
			return nil, b.c.ctx.newError(opNode.Span.Start, MISSING_OPERAND, true)
		}
		operand := tokens[i+1]
		if _, ok := operand.(*ast.OperatorNode); ok {
			return nil, b.c.ctx.newError(operand.Base().Span.Start, UNEXPECTED_OPERATOR, true)
		}

		var err error
		root, err = b.splice(root, opNode.Operator, operand)
		if err != nil {
			return nil, err
		}
	}
	return root, nil
}

// splice inserts 'op operand' in the tree, left associativity is preserved by not descending into
// nodes of equal precedence.
func (b *builder) splice(root ast.Node, op values.Operator, operand ast.Node) (ast.Node, error) {
	precedence := op.Precedence()

	if rootPrecedence, built := b.precedences[root]; !built || rootPrecedence >= precedence {
		return b.makeNode(op, root, operand)
	}

	parent := root
	for {
		child := rightmost(parent)
		childPrecedence, built := b.precedences[child]
		if !built || childPrecedence >= precedence {
			node, err := b.makeNode(op, child, operand)
			if err != nil {
				return nil, err
			}
			setRightmost(parent, node)
			return root, nil
		}
		parent = child
	}
}

func (b *builder) makeNode(op values.Operator, left, right ast.Node) (ast.Node, error) {
	span := NodeSpan{Start: left.Base().Span.Start, End: right.Base().Span.End}

	var node ast.Node
	switch op {
	case values.AND:
		node = &ast.And{Left: left, Right: right}
	case values.OR:
		node = &ast.Or{Left: left, Right: right}
	case values.INSTANCEOF:
		node = &ast.InstanceOf{Value: left, Type: right}
	case values.CONVERTABLE_TO:
		node = &ast.ConvertableTo{Value: left, Type: right}
	case values.REGEX:
		match := &ast.RegexMatch{Value: left, Pattern: right}
		if pattern, ok := right.Base().Literal.(string); ok && right.Base().IsLiteral() {
			compiled, err := values.CompilePattern(pattern)
			if err != nil {
				return nil, b.c.ctx.newError(right.Base().Span.Start, fmtInvalidPattern(err), true)
			}
			match.Compiled = compiled
		}
		node = match
	default:
		node = &ast.BinaryOperation{Operator: op, Left: left, Right: right}
	}

	node.Base().Span = span
	b.precedences[node] = op.Precedence()
	return node, nil
}

func rightmost(node ast.Node) ast.Node {
	switch n := node.(type) {
	case *ast.BinaryOperation:
		return n.Right
	case *ast.And:
		return n.Right
	case *ast.Or:
		return n.Right
	case *ast.InstanceOf:
		return n.Type
	case *ast.ConvertableTo:
		return n.Type
	case *ast.RegexMatch:
		return n.Pattern
	}
	return nil
}

func setRightmost(node ast.Node, child ast.Node) {
	switch n := node.(type) {
	case *ast.BinaryOperation:
		n.Right = child
	case *ast.And:
		n.Right = child
	case *ast.Or:
		n.Right = child
	case *ast.InstanceOf:
		n.Type = child
	case *ast.ConvertableTo:
		n.Type = child
	case *ast.RegexMatch:
		n.Pattern = child
		n.Compiled = nil
	}
	node.Base().Span.End = child.Base().Span.End
}

// finalize computes the egress types of a built tree, specializes integer operations, folds ternaries
// with a literal condition and checks operand types in strongly typed mode.
func (c *Compiler) finalize(node ast.Node) (ast.Node, error) {
	var err error

	switch n := node.(type) {
	case *ast.Ternary:
		if n.Condition, err = c.finalize(n.Condition); err != nil {
			return nil, err
		}
		if n.Then, err = c.finalize(n.Then); err != nil {
			return nil, err
		}
		if n.Else, err = c.finalize(n.Else); err != nil {
			return nil, err
		}
		if b, ok := n.Condition.Base().Literal.(bool); ok && n.Condition.Base().IsLiteral() {
			if b {
				return n.Then, nil
			}
			return n.Else, nil
		}
		if n.Then.Base().EgressType == n.Else.Base().EgressType {
			n.EgressType = n.Then.Base().EgressType
		}
		return n, nil
	case *ast.And:
		if n.Left, err = c.finalize(n.Left); err != nil {
			return nil, err
		}
		if n.Right, err = c.finalize(n.Right); err != nil {
			return nil, err
		}
		n.EgressType = convert.BOOL_TYPE
		return n, nil
	case *ast.Or:
		if n.Left, err = c.finalize(n.Left); err != nil {
			return nil, err
		}
		if n.Right, err = c.finalize(n.Right); err != nil {
			return nil, err
		}
		n.EgressType = convert.BOOL_TYPE
		return n, nil
	case *ast.InstanceOf:
		if n.Value, err = c.finalize(n.Value); err != nil {
			return nil, err
		}
		if n.Type, err = c.finalize(n.Type); err != nil {
			return nil, err
		}
		n.EgressType = convert.BOOL_TYPE
		return n, nil
	case *ast.ConvertableTo:
		if n.Value, err = c.finalize(n.Value); err != nil {
			return nil, err
		}
		if n.Type, err = c.finalize(n.Type); err != nil {
			return nil, err
		}
		n.EgressType = convert.BOOL_TYPE
		return n, nil
	case *ast.RegexMatch:
		if n.Value, err = c.finalize(n.Value); err != nil {
			return nil, err
		}
		if n.Pattern, err = c.finalize(n.Pattern); err != nil {
			return nil, err
		}
		if pattern, ok := n.Pattern.Base().Literal.(string); ok && n.Pattern.Base().IsLiteral() && n.Compiled == nil {
			compiled, err := values.CompilePattern(pattern)
			if err != nil {
				return nil, c.ctx.newError(n.Pattern.Base().Span.Start, fmtInvalidPattern(err), true)
			}
			n.Compiled = compiled
		}
		n.EgressType = convert.BOOL_TYPE
		return n, nil
	case *ast.BinaryOperation:
		if n.Left, err = c.finalize(n.Left); err != nil {
			return nil, err
		}
		if n.Right, err = c.finalize(n.Right); err != nil {
			return nil, err
		}
		return c.finalizeBinary(n)
	}
	return node, nil
}

func (c *Compiler) finalizeBinary(n *ast.BinaryOperation) (ast.Node, error) {
	left, right := n.Left.Base().EgressType, n.Right.Base().EgressType

	if c.ctx.IsStrongTyping() && !compatibleOperands(n.Operator, left, right) {
		return nil, c.ctx.newError(n.Span.Start, fmtIncompatibleTypes(n.Operator.String(), left.String(), right.String()), true)
	}
	n.EgressType = values.ResultType(n.Operator, left, right)

	if left == convert.INT_TYPE && right == convert.INT_TYPE {
		switch n.Operator {
		case values.ADD:
			node := &ast.IntAdd{}
			specialize(&node.BinaryOperation, n)
			return node, nil
		case values.SUB:
			node := &ast.IntSub{}
			specialize(&node.BinaryOperation, n)
			return node, nil
		case values.MULT:
			node := &ast.IntMul{}
			specialize(&node.BinaryOperation, n)
			return node, nil
		case values.DIV:
			node := &ast.IntDiv{}
			specialize(&node.BinaryOperation, n)
			return node, nil
		}
	}
	return n, nil
}

func specialize(dst, src *ast.BinaryOperation) {
	dst.Operator = src.Operator
	dst.Left, dst.Right = src.Left, src.Right
	dst.Span = src.Span
	dst.EgressType = src.EgressType
}

func compatibleOperands(op values.Operator, left, right reflect.Type) bool {
	if left == nil || right == nil || left.Kind() == reflect.Interface || right.Kind() == reflect.Interface {
		return true
	}
	if !op.IsArithmetic() && !op.IsBitwise() {
		return true
	}
	switch {
	case op == values.STR_APPEND:
		return true
	case op == values.ADD && (left == convert.STRING_TYPE || right == convert.STRING_TYPE):
		return true
	case left == TIME_TYPE || left == DURATION_TYPE:
		return right == TIME_TYPE || right == DURATION_TYPE
	}
	return convert.IsNumericType(left) && convert.IsNumericType(right)
}
