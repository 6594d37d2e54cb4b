package core

import (
	"fmt"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/sourcecode"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/inoxlang/evalx/internal/values"
)

// EvalInterpreted evaluates a node created by the interpreter, nothing is cached in the node.
func EvalInterpreted(node ast.Node, ctx, this any, vars scope.Factory) (any, error) {
	return INTERPRETED.evalNode(node, ctx, this, vars)
}

// Interpret evaluates source without compiling it: statements are parsed and evaluated token by token.
func Interpret(pctx *parse.ParserContext, source string, ctx, this any, vars scope.Factory) (result any, err error) {
	defer func() {
		if e := recover(); e != nil {
			result = nil
			err = fmt.Errorf("interpreter: %w", utils.ConvertPanicValueToError(e))
		}
	}()

	if vars == nil {
		vars = scope.NewMapFactory(nil)
	}
	defer scope.ResetTilt(vars)

	s := parse.BlankComments(source)
	return interpretSpan(pctx, s, sourcecode.NodeSpan{Start: 0, End: int32(len(s))}, ctx, this, vars)
}

type interpreter struct {
	p      *parse.Parser
	source []rune
	line   int32

	ctx, this any
	vars      scope.Factory
}

func interpretSpan(pctx *parse.ParserContext, s []rune, span sourcecode.NodeSpan, ctx, this any, vars scope.Factory) (any, error) {
	if pctx == nil {
		pctx = defaultParserContext
	}
	in := &interpreter{
		p:      parse.NewParser(pctx.Clone(), s, span, parse.InterpretedMode),
		source: s,
		ctx:    ctx,
		this:   this,
		vars:   vars,
	}
	return in.run()
}

func (in *interpreter) run() (result any, err error) {
	for {
		tok, err := in.p.NextToken()
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case nil:
			return result, nil
		case *ast.EndOfStatement:
			continue
		case *ast.LineLabel:
			in.line = t.Line
			continue
		}

		in.p.Unread(tok)
		if result, err = in.expression(false); err != nil {
			return nil, err
		}
		if in.vars.IsTilted() {
			return result, nil
		}
	}
}

func isOperator(tok ast.Node, op values.Operator) bool {
	opNode, ok := tok.(*ast.OperatorNode)
	return ok && opNode.Operator == op
}

func isEndOfExpression(tok ast.Node) bool {
	switch tok.(type) {
	case nil, *ast.EndOfStatement, *ast.LineLabel:
		return true
	}
	return false
}

// operand reads and evaluates the next operand.
func (in *interpreter) operand() (any, error) {
	tok, err := in.p.NextToken()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(*ast.OperatorNode); ok || isEndOfExpression(tok) {
		return nil, in.unexpected(tok)
	}
	v, err := EvalInterpreted(tok, in.ctx, in.this, in.vars)
	if err != nil {
		return nil, locate(err, tok, in.source, in.line)
	}
	return v, nil
}

func (in *interpreter) unexpected(tok ast.Node) error {
	if tok == nil {
		return fmt.Errorf("%w: end of expression", ErrUnexpectedToken)
	}
	return locate(ErrUnexpectedToken, tok, in.source, in.line)
}

// expression evaluates operands and operators until the end of the statement. If stopAtElse is set the
// expression is the 'then' branch of a ternary and it ends at the ':' of the ternary.
func (in *interpreter) expression(stopAtElse bool) (any, error) {
	first, err := in.operand()
	if err != nil {
		return nil, err
	}
	reducer := parse.NewReducer(first)

	for {
		tok, err := in.p.NextToken()
		if err != nil {
			return nil, err
		}

		opNode, isOp := tok.(*ast.OperatorNode)
		switch {
		case isEndOfExpression(tok):
			if tok != nil {
				in.p.Unread(tok)
			}
			return reducer.Finish()
		case !isOp:
			//an operand following an operand starts a new statement
			in.p.Unread(tok)
			return reducer.Finish()
		case opNode.Operator == values.TERNARY_ELSE:
			if !stopAtElse {
				return nil, in.unexpected(tok)
			}
			in.p.Unread(tok)
			return reducer.Finish()
		case opNode.Operator == values.TERNARY:
			return in.ternary(reducer, stopAtElse)
		}

		signal, err := reducer.Precheck(opNode.Operator)
		if err != nil {
			return nil, locate(err, tok, in.source, in.line)
		}
		if signal == parse.Terminate {
			if err := in.skipOperand(opNode.Operator); err != nil {
				return nil, err
			}
			continue
		}

		right, err := in.operand()
		if err != nil {
			return nil, err
		}
		if _, err := reducer.Apply(opNode.Operator, right); err != nil {
			return nil, locate(err, tok, in.source, in.line)
		}
	}
}

func (in *interpreter) ternary(reducer *parse.Reducer, stopAtElse bool) (any, error) {
	condition, err := reducer.Finish()
	if err != nil {
		return nil, err
	}
	ok, err := values.AsBool(condition)
	if err != nil {
		return nil, err
	}

	if !ok {
		if err := in.skipBranch(true); err != nil {
			return nil, err
		}
		return in.expression(stopAtElse)
	}

	v, err := in.expression(true)
	if err != nil {
		return nil, err
	}
	tok, err := in.p.NextToken()
	if err != nil {
		return nil, err
	}
	if !isOperator(tok, values.TERNARY_ELSE) {
		return nil, fmt.Errorf("%w: missing ':' in ternary", ErrUnexpectedToken)
	}
	if err := in.skipBranch(stopAtElse); err != nil {
		return nil, err
	}
	return v, nil
}

// skipBranch skips the tokens of a ternary branch without evaluating them. If toElse is set the
// branch ends with the ':' of the ternary, which is consumed, otherwise the branch ends at the end of
// the statement or at the ':' of an enclosing ternary.
func (in *interpreter) skipBranch(toElse bool) error {
	depth := 0
	for {
		tok, err := in.p.NextToken()
		if err != nil {
			return err
		}
		switch {
		case isEndOfExpression(tok):
			if toElse {
				return fmt.Errorf("%w: missing ':' in ternary", ErrUnexpectedToken)
			}
			if tok != nil {
				in.p.Unread(tok)
			}
			return nil
		case isOperator(tok, values.TERNARY):
			depth++
		case isOperator(tok, values.TERNARY_ELSE):
			if depth > 0 {
				depth--
				continue
			}
			if !toElse {
				in.p.Unread(tok)
			}
			return nil
		}
	}
}

// skipOperand skips the right operand of a short-circuited operator: the operand extends over the
// operators binding tighter than op.
func (in *interpreter) skipOperand(op values.Operator) error {
	tok, err := in.p.NextToken()
	if err != nil {
		return err
	}
	if _, isOp := tok.(*ast.OperatorNode); isOp || isEndOfExpression(tok) {
		return in.unexpected(tok)
	}

	for {
		tok, err := in.p.NextToken()
		if err != nil {
			return err
		}
		opNode, isOp := tok.(*ast.OperatorNode)
		if !isOp || opNode.Operator.Precedence() <= op.Precedence() {
			if tok != nil {
				in.p.Unread(tok)
			}
			return nil
		}

		operand, err := in.p.NextToken()
		if err != nil {
			return err
		}
		if _, isOp := operand.(*ast.OperatorNode); isOp || isEndOfExpression(operand) {
			return in.unexpected(operand)
		}
	}
}
