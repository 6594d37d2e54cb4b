package parse

import (
	"errors"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/values"
)

var ErrUnreducedStack = errors.New(UNREDUCED_STACK)

type ReductionSignal int

const (
	// Continue: the operand has been pushed.
	Continue ReductionSignal = iota

	// Terminate: the left value decides the result of the boolean operator, the right operand
	// must not be evaluated.
	Terminate

	// Overflow: the operand is not a literal or the reduction failed, the pending operations
	// have to be unwound and emitted.
	Overflow
)

func (s ReductionSignal) String() string {
	switch s {
	case Terminate:
		return "terminate"
	case Overflow:
		return "overflow"
	}
	return "continue"
}

// A Reducer evaluates a left-to-right run of operands and binary operators while honoring precedence.
// Operands are stored in the primary stack, operators waiting for an operand of higher precedence
// to be reduced are stored in the auxiliary stack. It is used by the compiler to fold literals and
// by the interpreted runtime with actual values.
type Reducer struct {
	values []any
	ops    []values.Operator

	//source spans of the operands and operators, only tracked by token reducers.
	tracked bool
	spans   []NodeSpan
	opSpans []NodeSpan
}

type reducerState struct {
	values  []any
	ops     []values.Operator
	spans   []NodeSpan
	opSpans []NodeSpan
}

func NewReducer(first any) *Reducer {
	return &Reducer{values: []any{first}}
}

// NewTokenReducer returns a reducer whose first operand is a literal token, the spans of the
// operands and operators are kept so that an unwound run can be re-emitted at its original location.
func NewTokenReducer(first ast.Node) *Reducer {
	return &Reducer{
		values:  []any{first.Base().Literal},
		tracked: true,
		spans:   []NodeSpan{first.Base().Span},
	}
}

func (r *Reducer) Reset(first any) {
	r.values = append(r.values[:0], first)
	r.ops = r.ops[:0]
	r.tracked = false
	r.spans = r.spans[:0]
	r.opSpans = r.opSpans[:0]
}

func (r *Reducer) Len() int {
	return len(r.values)
}

// Top returns the value at the top of the primary stack.
func (r *Reducer) Top() any {
	return r.values[len(r.values)-1]
}

// Span returns the span covered by the operands of a token reducer.
func (r *Reducer) Span() NodeSpan {
	if len(r.spans) == 0 {
		return NodeSpan{}
	}
	return NodeSpan{Start: r.spans[0].Start, End: r.spans[len(r.spans)-1].End}
}

// extendTop makes the span of the top operand end at end, end is the end of a skipped operand.
func (r *Reducer) extendTop(end int32) {
	if n := len(r.spans); n > 0 {
		r.spans[n-1].End = end
	}
}

func (r *Reducer) save() reducerState {
	return reducerState{
		values:  append([]any(nil), r.values...),
		ops:     append([]values.Operator(nil), r.ops...),
		spans:   append([]NodeSpan(nil), r.spans...),
		opSpans: append([]NodeSpan(nil), r.opSpans...),
	}
}

func (r *Reducer) restore(state reducerState) {
	r.values, r.ops = state.values, state.ops
	r.spans, r.opSpans = state.spans, state.opSpans
}

// reduce applies the pending operators whose precedence is greater or equal to minPrecedence.
func (r *Reducer) reduce(minPrecedence int) error {
	for len(r.ops) > 0 {
		op := r.ops[len(r.ops)-1]
		if op.Precedence() < minPrecedence {
			return nil
		}
		n := len(r.values)
		result, err := values.DoOperation(op, r.values[n-2], r.values[n-1])
		if err != nil {
			return err
		}
		r.ops = r.ops[:len(r.ops)-1]
		r.values = append(r.values[:n-2], result)
		if r.tracked {
			r.spans[n-2].End = r.spans[n-1].End
			r.spans = r.spans[:n-1]
			r.opSpans = r.opSpans[:len(r.opSpans)-1]
		}
	}
	return nil
}

// Precheck reduces the operations binding tighter than op and reports whether the right operand of
// op needs to be evaluated.
func (r *Reducer) Precheck(op values.Operator) (ReductionSignal, error) {
	if err := r.reduce(op.Precedence()); err != nil {
		return Overflow, err
	}

	if op.IsBoolean() {
		if b, ok := r.Top().(bool); ok && (op == values.AND && !b || op == values.OR && b) {
			return Terminate, nil
		}
	}
	return Continue, nil
}

// Apply pushes op and its right operand, the operand is ignored if Terminate is returned.
func (r *Reducer) Apply(op values.Operator, operand any) (ReductionSignal, error) {
	signal, err := r.Precheck(op)
	if err != nil || signal != Continue {
		return signal, err
	}
	r.ops = append(r.ops, op)
	r.values = append(r.values, operand)
	return Continue, nil
}

// ApplyToken is the compile-time variant of Apply, it is called on token reducers. Overflow is
// returned (with no error) if the operand is not a literal or if the reduction of the pending operations
// failed, in the latter case the state of the reducer is restored.
func (r *Reducer) ApplyToken(opNode *ast.OperatorNode, operand ast.Node) ReductionSignal {
	saved := r.save()

	signal, err := r.Precheck(opNode.Operator)
	if err != nil {
		r.restore(saved)
		return Overflow
	}
	if signal == Terminate {
		return Terminate
	}
	if !operand.Base().IsLiteral() {
		return Overflow
	}
	r.ops = append(r.ops, opNode.Operator)
	r.values = append(r.values, operand.Base().Literal)
	r.opSpans = append(r.opSpans, opNode.Span)
	r.spans = append(r.spans, operand.Base().Span)
	return Continue
}

// Finish reduces the remaining operations and returns the single value left.
func (r *Reducer) Finish() (any, error) {
	if err := r.reduce(-1); err != nil {
		return nil, err
	}
	if len(r.values) != 1 || len(r.ops) != 0 {
		return nil, ErrUnreducedStack
	}
	return r.values[0], nil
}

// TryFinish is like Finish but the state of the reducer is restored if an operation fails. An
// ErrUnreducedStack error leaves the reducer as is.
func (r *Reducer) TryFinish() (any, error) {
	saved := r.save()

	v, err := r.Finish()
	if err != nil {
		if !errors.Is(err, ErrUnreducedStack) {
			r.restore(saved)
		}
		return nil, err
	}
	return v, nil
}

// Unwind empties the reducer and returns its content in source order: operands are interleaved
// with values.Operator items.
func (r *Reducer) Unwind() []any {
	items := make([]any, 0, len(r.values)+len(r.ops))
	for i, v := range r.values {
		if i > 0 {
			items = append(items, r.ops[i-1])
		}
		items = append(items, v)
	}
	r.values = r.values[:0]
	r.ops = r.ops[:0]
	return items
}

// UnwindNodes is like Unwind but returns literal and operator nodes located at the spans of the
// original tokens, it is called on token reducers.
func (r *Reducer) UnwindNodes() []ast.Node {
	spans, opSpans := r.spans, r.opSpans
	items := r.Unwind()
	r.spans, r.opSpans = r.spans[:0], r.opSpans[:0]

	nodes := make([]ast.Node, 0, len(items))
	for i, item := range items {
		if op, ok := item.(values.Operator); ok {
			opNode := &ast.OperatorNode{Operator: op}
			opNode.Span = opSpans[i/2]
			opNode.SetFlag(ast.FLAG_OPERATOR)
			nodes = append(nodes, opNode)
			continue
		}
		nodes = append(nodes, ast.NewLiteral(item, spans[i/2]))
	}
	return nodes
}
