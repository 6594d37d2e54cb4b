package parse

import (
	"errors"
	"reflect"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/values"
	"github.com/oklog/ulid/v2"
)

// A CompiledExpression is the result of a compilation, it can be evaluated concurrently.
type CompiledExpression struct {
	ID ulid.ULID

	Sequence *ast.Sequence
	Head     ast.Node //first node of the chain

	EgressType  reflect.Type
	LiteralOnly bool
	Value       any //value of a literal-only expression

	// ImportInjection is set if the imports have to be made available to the evaluation as variables.
	ImportInjection bool
	SourceName      string
	Inputs          map[string]reflect.Type

	Context *ParserContext
}

func (e *CompiledExpression) String() string {
	return ast.Dump(e.Head)
}

// Source returns the compiled source code, comments blanked.
func (e *CompiledExpression) Source() string {
	return e.Sequence.Text()
}

type Compiler struct {
	ctx  *ParserContext
	s    []rune
	span NodeSpan
}

func NewCompiler(source string, ctx *ParserContext) *Compiler {
	s := BlankComments(source)
	return &Compiler{ctx: ctx, s: s, span: NodeSpan{Start: 0, End: len32(s)}}
}

func Compile(source string, ctx *ParserContext) (*CompiledExpression, error) {
	return NewCompiler(source, ctx).Compile()
}

func (c *Compiler) Context() *ParserContext {
	return c.ctx
}

func (c *Compiler) Compile() (*CompiledExpression, error) {
	seq, err := c.compileSequence()
	if err != nil {
		errs := c.ctx.Errors()
		if len(errs) == 0 {
			return nil, err
		}
		return nil, &CompileErrors{Errors: errs}
	}

	return &CompiledExpression{
		ID:              ulid.Make(),
		Sequence:        seq,
		Head:            seq.Head,
		EgressType:      seq.EgressType,
		LiteralOnly:     seq.LiteralOnly,
		Value:           seq.Value,
		ImportInjection: len(c.ctx.Imports()) > 0,
		SourceName:      c.ctx.SourceName(),
		Inputs:          c.ctx.Inputs(),
		Context:         c.ctx,
	}, nil
}

// Verify compiles the expression and returns its static type, nil if unknown. The inputs found
// during the verification are available through the parser context.
func (c *Compiler) Verify() (reflect.Type, error) {
	expr, err := c.Compile()
	if err != nil {
		return nil, err
	}
	return expr.EgressType, nil
}

func compileSequence(ctx *ParserContext, s []rune, span NodeSpan) (*ast.Sequence, error) {
	c := &Compiler{ctx: ctx, s: s, span: span}
	return c.compileSequence()
}

// CompileSubExpression compiles an expression found in a property path (index, argument) during evaluation.
// The compiled sequences are cached by source and context fingerprint.
func CompileSubExpression(ctx *ParserContext, source string) (*ast.Sequence, error) {
	fingerprint := ctx.Fingerprint()
	if seq, ok := ctx.Cache().Get(fingerprint, source); ok {
		return seq, nil
	}

	s := BlankComments(source)
	seq, err := compileSequence(ctx.Clone(), s, NodeSpan{Start: 0, End: len32(s)})
	if err != nil {
		return nil, err
	}
	ctx.Cache().Put(fingerprint, source, seq)
	return seq, nil
}

func isOperatorToken(node ast.Node) bool {
	_, ok := node.(*ast.OperatorNode)
	return ok
}

func (c *Compiler) compileSequence() (*ast.Sequence, error) {
	p := NewParser(c.ctx, c.s, c.span, CompileMode)

	var (
		statements []ast.Node
		tokens     []ast.Node
	)

	flush := func() error {
		if len(tokens) == 0 {
			return nil
		}
		stmt, err := c.compileStatement(tokens)
		tokens = nil
		if err != nil {
			return err
		}
		statements = append(statements, stmt)
		return nil
	}

	for {
		tok, err := p.NextToken()
		if err != nil {
			return nil, err
		}
		if tok == nil {
			break
		}

		switch tok.(type) {
		case *ast.EndOfStatement:
			if err := flush(); err != nil {
				return nil, err
			}
		case *ast.LineLabel:
			if err := flush(); err != nil {
				return nil, err
			}
			statements = append(statements, tok)
		default:
			//an operand following an operand starts a new statement
			if n := len(tokens); n > 0 && !isOperatorToken(tokens[n-1]) && !isOperatorToken(tok) {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			tokens = append(tokens, tok)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	seq := &ast.Sequence{Source: c.s, Span: c.span}

	var (
		prev       ast.Node
		executable []ast.Node
	)
	for _, stmt := range statements {
		if prev == nil {
			seq.Head = stmt
		} else {
			prev.Base().Next = stmt
		}
		prev = stmt
		if !stmt.Base().HasFlag(ast.FLAG_NON_EXECUTABLE) {
			executable = append(executable, stmt)
		}
	}

	switch len(executable) {
	case 0:
		seq.LiteralOnly = true
	case 1:
		if lit, ok := executable[0].(*ast.Literal); ok {
			seq.LiteralOnly = true
			seq.Value = lit.Literal
		}
	}
	if n := len(executable); n > 0 {
		seq.EgressType = executable[n-1].Base().EgressType
	}
	return seq, nil
}

func (c *Compiler) compileStatement(tokens []ast.Node) (ast.Node, error) {
	if len(tokens) == 1 {
		if isOperatorToken(tokens[0]) {
			return nil, c.ctx.newError(tokens[0].Base().Span.Start, UNEXPECTED_OPERATOR, true)
		}
		return c.finalize(tokens[0])
	}

	folded, err := c.fold(tokens)
	if err != nil {
		return nil, err
	}
	if len(folded) == 1 {
		return c.finalize(folded[0])
	}

	node, err := c.BuildExpression(folded)
	if err != nil {
		return nil, err
	}
	return c.finalize(node)
}

// fold reduces the runs of literal operands joined by foldable operators. A run never absorbs an
// operator binding looser than, or as tight as, the operator preceding it.
func (c *Compiler) fold(tokens []ast.Node) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(tokens))

	for i := 0; i < len(tokens); {
		tok := tokens[i]

		limit := -1
		if n := len(out); n > 0 {
			if opNode, ok := out[n-1].(*ast.OperatorNode); ok {
				limit = opNode.Operator.Precedence()
			}
		}

		if !tok.Base().IsLiteral() || !foldableAt(tokens, i+1, limit) {
			out = append(out, tok)
			i++
			continue
		}

		reducer := NewTokenReducer(tok)
		j := i + 1
		overflow := false

	run:
		for foldableAt(tokens, j, limit) {
			opNode := tokens[j].(*ast.OperatorNode)

			switch reducer.ApplyToken(opNode, tokens[j+1]) {
			case Continue:
				j += 2
			case Terminate:
				j = skipOperand(tokens, j, opNode.Operator)
				reducer.extendTop(tokens[j-1].Base().Span.End)
			case Overflow:
				overflow = true
				break run
			}
		}

		if !overflow {
			v, err := reducer.TryFinish()
			if err == nil {
				out = append(out, ast.NewLiteral(v, reducer.Span()))
				i = j
				continue
			}
			if errors.Is(err, ErrUnreducedStack) {
				return nil, c.ctx.newError(reducer.Span().Start, UNREDUCED_STACK, true)
			}
			//the failing operation is left to the runtime
		}

		out = append(out, reducer.UnwindNodes()...)
		i = j
	}
	return out, nil
}

// foldableAt reports whether tokens[i] is a foldable operator followed by an operand and binding tighter than limit.
func foldableAt(tokens []ast.Node, i int, limit int) bool {
	if i+1 >= len(tokens) {
		return false
	}
	opNode, ok := tokens[i].(*ast.OperatorNode)
	if !ok || !opNode.Operator.IsFoldable() || opNode.Operator.Precedence() <= limit {
		return false
	}
	return !isOperatorToken(tokens[i+1])
}

// skipOperand returns the index following the right operand of the operator at opIndex: the operand
// extends over the operators binding tighter than op.
func skipOperand(tokens []ast.Node, opIndex int, op values.Operator) int {
	k := opIndex + 2
	for k+1 < len(tokens) {
		opNode, ok := tokens[k].(*ast.OperatorNode)
		if !ok || opNode.Operator.Precedence() <= op.Precedence() {
			break
		}
		k += 2
	}
	return k
}
