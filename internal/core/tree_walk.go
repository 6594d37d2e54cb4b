package core

import (
	"errors"
	"fmt"
	"reflect"

	goreflect "github.com/goccy/go-reflect"
	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/values"
)

// EvalAccelerated evaluates a compiled node, accessors are optimized for the types met by the
// first evaluation and cached in the node.
func EvalAccelerated(node ast.Node, ctx, this any, vars scope.Factory) (any, error) {
	return ACCELERATED.evalNode(node, ctx, this, vars)
}

func (m runtimeMode) cacheOf(cache *ast.AccessorCache) *ast.AccessorCache {
	if m == INTERPRETED {
		return nil
	}
	return cache
}

func (m runtimeMode) evalNode(node ast.Node, ctx, this any, vars scope.Factory) (any, error) {
	switch n := node.(type) {
	case *ast.Literal:
		return n.Literal, nil
	case *ast.Property:
		access := pathAccess{
			node:  n,
			cache: m.cacheOf(&n.Accessor),
			pctx:  contextOf(n),
			path:  n.Path,
			slot:  n.SlotIndex,
		}
		return access.get(ctx, this, vars)
	case *ast.Union:
		return m.evalUnion(n, ctx, this, vars)
	case *ast.Substatement:
		return m.sequence(n.Inner, contextOf(n), ctx, this, vars)
	case *ast.TypeCast:
		v, err := m.eval(n.Operand, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return convert.Convert(v, n.Type)
	case *ast.Sign:
		v, err := m.eval(n.Operand, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return values.Negate(v)
	case *ast.Negation:
		v, err := m.eval(n.Operand, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		b, err := values.AsBool(v)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case *ast.BitwiseInvert:
		v, err := m.eval(n.Operand, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return values.BitwiseNot(v)
	case *ast.IsDef:
		return m.isDef(n, ctx, vars), nil
	case *ast.BinaryOperation:
		left, right, err := m.operands(n.Left, n.Right, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return values.DoOperation(n.Operator, left, right)
	case *ast.IntAdd:
		return m.intOperation(&n.BinaryOperation, ctx, this, vars)
	case *ast.IntSub:
		return m.intOperation(&n.BinaryOperation, ctx, this, vars)
	case *ast.IntMul:
		return m.intOperation(&n.BinaryOperation, ctx, this, vars)
	case *ast.IntDiv:
		return m.intOperation(&n.BinaryOperation, ctx, this, vars)
	case *ast.And:
		return m.and(n, ctx, this, vars)
	case *ast.Or:
		return m.or(n, ctx, this, vars)
	case *ast.Ternary:
		return m.ternary(n, ctx, this, vars)
	case *ast.InstanceOf:
		v, t, err := m.operands(n.Value, n.Type, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return values.InstanceOf(v, t)
	case *ast.ConvertableTo:
		v, t, err := m.operands(n.Value, n.Type, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return values.ConvertableTo(v, t)
	case *ast.RegexMatch:
		return m.regexMatch(n, ctx, this, vars)
	case *ast.Assignment:
		return m.assign(n, ctx, this, vars)
	case *ast.IndexedAssignment:
		value, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		if resolver, ok := vars.GetIndexedVariableResolver(n.Index); ok {
			return value, resolver.SetValue(value)
		}
		_, err = vars.CreateIndexedVariable(n.Index, n.Name, value, nil)
		return value, err
	case *ast.TypedVarDeclaration:
		return m.declare(n, ctx, this, vars)
	case *ast.OperativeAssign:
		value, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		resolver, err := vars.GetVariableResolver(n.Name)
		if err != nil {
			return nil, err
		}
		return update(resolver, n.Operator, value)
	case *ast.IndexedOperativeAssign:
		value, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		resolver, err := indexedResolver(vars, n.Index, n.Name)
		if err != nil {
			return nil, err
		}
		return update(resolver, n.Operator, value)
	case *ast.DeepAssignment:
		pctx := contextOf(n)
		value, err := m.sequence(n.Value, pctx, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		access := pathAccess{node: n, cache: m.cacheOf(&n.Accessor), pctx: pctx, path: n.Path, slot: -1}
		if _, err := access.set(ctx, this, vars, value); err != nil {
			return nil, err
		}
		return value, nil
	case *ast.DeepOperativeAssign:
		pctx := contextOf(n)
		value, err := m.sequence(n.Value, pctx, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		access := pathAccess{node: n, cache: m.cacheOf(&n.Accessor), pctx: pctx, path: n.Path, slot: -1}
		old, err := access.get(ctx, this, vars)
		if err != nil {
			return nil, err
		}
		updated, err := values.DoOperation(n.Operator, old, value)
		if err != nil {
			return nil, err
		}
		if _, err := access.set(ctx, this, vars, updated); err != nil {
			return nil, err
		}
		return updated, nil
	case *ast.IncDec:
		return m.incDec(n, ctx, this, vars)
	case *ast.If:
		return m.evalIf(n, ctx, this, vars)
	case *ast.While:
		return m.loop(n, n.Condition, n.Body, false, true, ctx, this, vars)
	case *ast.Until:
		return m.loop(n, n.Condition, n.Body, true, true, ctx, this, vars)
	case *ast.DoWhile:
		return m.loop(n, n.Condition, n.Body, false, false, ctx, this, vars)
	case *ast.DoUntil:
		return m.loop(n, n.Condition, n.Body, true, false, ctx, this, vars)
	case *ast.For:
		return m.evalFor(n, ctx, this, vars)
	case *ast.ForEach:
		return m.forEach(n, ctx, this, vars)
	case *ast.Return:
		v, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		vars.SetTilted(true)
		return v, nil
	case *ast.Assert:
		v, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		ok, err := values.AsBool(v)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAssertionFailed, n.Value.Text())
		}
		return true, nil
	case *ast.With:
		return m.with(n, ctx, this, vars)
	case *ast.NewObject:
		return m.newObject(n, ctx, this, vars)
	case *ast.NewArray:
		return m.newArray(n, ctx, this, vars)
	case *ast.InlineCollection:
		return m.inlineCollection(n, ctx, this, vars)
	case *ast.Function:
		closure := NewClosure(n, ctx, this, vars)
		if n.Name != "" {
			if _, err := vars.CreateVariable(n.Name, closure, nil); err != nil {
				return nil, err
			}
		}
		return closure, nil
	case *ast.FunctionCall:
		return m.call(n, ctx, this, vars)
	case *ast.LineLabel, *ast.EndOfStatement:
		return nil, nil
	case *ast.OperatorNode:
		return nil, fmt.Errorf("%w: operator %s", ErrUnexpectedToken, n.Operator)
	}
	return nil, fmt.Errorf("cannot evaluate a node of type %T", node)
}

func (m runtimeMode) operands(left, right ast.Node, ctx, this any, vars scope.Factory) (any, any, error) {
	l, err := m.eval(left, ctx, this, vars)
	if err != nil {
		return nil, nil, err
	}
	r, err := m.eval(right, ctx, this, vars)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// intOperation evaluates the operations whose operands have an int static type, values of other
// types are handled by the generic arithmetic.
func (m runtimeMode) intOperation(n *ast.BinaryOperation, ctx, this any, vars scope.Factory) (any, error) {
	left, right, err := m.operands(n.Left, n.Right, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	a, okA := left.(int)
	b, okB := right.(int)
	if !okA || !okB {
		return values.DoOperation(n.Operator, left, right)
	}

	switch n.Operator {
	case values.ADD:
		return a + b, nil
	case values.SUB:
		return a - b, nil
	case values.MULT:
		return a * b, nil
	case values.DIV:
		if b == 0 {
			return nil, values.ErrIntDivisionByZero
		}
		return a / b, nil
	}
	return values.DoOperation(n.Operator, a, b)
}

func (m runtimeMode) boolOperand(node ast.Node, ctx, this any, vars scope.Factory) (bool, error) {
	v, err := m.eval(node, ctx, this, vars)
	if err != nil {
		return false, err
	}
	return values.AsBool(v)
}

func (m runtimeMode) and(n *ast.And, ctx, this any, vars scope.Factory) (any, error) {
	if m == INTERPRETED {
		return nil, fmt.Errorf("%w: &&", ErrNotSupportedInInterpretedMode)
	}
	left, err := m.boolOperand(n.Left, ctx, this, vars)
	if err != nil || !left {
		return false, err
	}
	return m.boolOperand(n.Right, ctx, this, vars)
}

func (m runtimeMode) or(n *ast.Or, ctx, this any, vars scope.Factory) (any, error) {
	if m == INTERPRETED {
		return nil, fmt.Errorf("%w: ||", ErrNotSupportedInInterpretedMode)
	}
	left, err := m.boolOperand(n.Left, ctx, this, vars)
	if err != nil {
		return false, err
	}
	if left {
		return true, nil
	}
	return m.boolOperand(n.Right, ctx, this, vars)
}

func (m runtimeMode) ternary(n *ast.Ternary, ctx, this any, vars scope.Factory) (any, error) {
	condition, err := m.boolOperand(n.Condition, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	if condition {
		return m.eval(n.Then, ctx, this, vars)
	}
	return m.eval(n.Else, ctx, this, vars)
}

func (m runtimeMode) regexMatch(n *ast.RegexMatch, ctx, this any, vars scope.Factory) (any, error) {
	v, err := m.eval(n.Value, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	if n.Compiled != nil {
		if v == nil {
			return false, nil
		}
		return n.Compiled.MatchString(convert.ToString(v))
	}
	pattern, err := m.eval(n.Pattern, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return values.RegexMatch(v, pattern)
}

func (m runtimeMode) isDef(n *ast.IsDef, ctx any, vars scope.Factory) bool {
	if vars.IsResolvable(n.Name) {
		return true
	}
	if isNilValue(ctx) {
		return false
	}
	return NewOptimizer(contextOf(n)).hasMember(ctx, parse.PathSegment{Kind: parse.PropertySegment, Name: n.Name})
}

func (m runtimeMode) assign(n *ast.Assignment, ctx, this any, vars scope.Factory) (any, error) {
	value, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
	if err != nil {
		return nil, err
	}
	if n.Declare {
		_, err = vars.CreateVariable(n.Name, value, nil)
	} else {
		_, err = scope.Assign(vars, n.Name, value)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (m runtimeMode) declare(n *ast.TypedVarDeclaration, ctx, this any, vars scope.Factory) (any, error) {
	var value any
	if n.Value != nil {
		v, err := m.sequence(n.Value, contextOf(n), ctx, this, vars)
		if err != nil {
			return nil, err
		}
		value = v
	} else if n.Type != nil && n.Type != convert.ANY_TYPE {
		value = reflect.Zero(n.Type).Interface()
	}

	if value != nil && n.Type != nil && n.Type != convert.ANY_TYPE {
		converted, err := convert.Convert(value, n.Type)
		if err != nil {
			return nil, fmt.Errorf("cannot assign to variable %s of type %s: %w", n.Name, n.Type, err)
		}
		value = converted
	}

	var err error
	if n.Index >= 0 {
		_, err = vars.CreateIndexedVariable(n.Index, n.Name, value, n.Type)
	} else {
		_, err = vars.CreateVariable(n.Name, value, n.Type)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func indexedResolver(vars scope.Factory, index int, name string) (scope.Resolver, error) {
	if resolver, ok := vars.GetIndexedVariableResolver(index); ok {
		return resolver, nil
	}
	return vars.GetVariableResolver(name)
}

func update(resolver scope.Resolver, op values.Operator, operand any) (any, error) {
	updated, err := values.DoOperation(op, resolver.Value(), operand)
	if err != nil {
		return nil, err
	}
	if err := resolver.SetValue(updated); err != nil {
		return nil, err
	}
	return resolver.Value(), nil
}

func (m runtimeMode) incDec(n *ast.IncDec, ctx, this any, vars scope.Factory) (any, error) {
	var (
		old, updated any
		err          error
	)

	if n.Deep {
		access := pathAccess{node: n, cache: m.cacheOf(&n.Accessor), pctx: contextOf(n), path: n.Name, slot: -1}
		if old, err = access.get(ctx, this, vars); err != nil {
			return nil, err
		}
		if updated, err = values.DoOperation(values.ADD, old, n.Delta); err != nil {
			return nil, err
		}
		if _, err = access.set(ctx, this, vars, updated); err != nil {
			return nil, err
		}
	} else {
		var resolver scope.Resolver
		if n.Index >= 0 {
			resolver, err = indexedResolver(vars, n.Index, n.Name)
		} else {
			resolver, err = vars.GetVariableResolver(n.Name)
		}
		if err != nil {
			return nil, err
		}
		old = resolver.Value()
		if updated, err = update(resolver, values.ADD, n.Delta); err != nil {
			return nil, err
		}
	}

	if n.Prefix {
		return updated, nil
	}
	return old, nil
}

func (m runtimeMode) condition(seq *ast.Sequence, pctx *parse.ParserContext, ctx, this any, vars scope.Factory) (bool, error) {
	if seq == nil {
		return true, nil
	}
	v, err := m.sequence(seq, pctx, ctx, this, vars)
	if err != nil {
		return false, err
	}
	return values.AsBool(v)
}

func (m runtimeMode) evalIf(n *ast.If, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	ok, err := m.condition(n.Condition, pctx, ctx, this, vars)
	if err != nil {
		return nil, err
	}

	switch {
	case ok:
		return m.sequence(n.Then, pctx, ctx, this, scope.NewBlockFactory(vars))
	case n.ElseIf != nil:
		return m.evalIf(n.ElseIf, ctx, this, vars)
	case n.Else != nil:
		return m.sequence(n.Else, pctx, ctx, this, scope.NewBlockFactory(vars))
	}
	return nil, nil
}

// loop evaluates while, until, do-while and do-until loops: the loop stops when the condition is
// equal to negate, the condition is checked before the body if pre is set.
func (m runtimeMode) loop(node ast.Node, cond, body *ast.Sequence, negate, pre bool, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(node)
	block := scope.NewBlockFactory(vars)

	for first := true; ; first = false {
		if pre || !first {
			ok, err := m.condition(cond, pctx, ctx, this, vars)
			if err != nil {
				return nil, err
			}
			if ok == negate {
				return nil, nil
			}
		}

		v, err := m.sequence(body, pctx, ctx, this, block)
		if err != nil {
			return nil, err
		}
		if vars.IsTilted() {
			return v, nil
		}
	}
}

func (m runtimeMode) evalFor(n *ast.For, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	header := scope.NewBlockFactory(vars)
	body := scope.NewBlockFactory(header)

	if _, err := m.sequence(n.Init, pctx, ctx, this, header); err != nil {
		return nil, err
	}
	for {
		ok, err := m.condition(n.Condition, pctx, ctx, this, header)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		v, err := m.sequence(n.Body, pctx, ctx, this, body)
		if err != nil {
			return nil, err
		}
		if vars.IsTilted() {
			return v, nil
		}

		if _, err := m.sequence(n.After, pctx, ctx, this, header); err != nil {
			return nil, err
		}
	}
}

func (m runtimeMode) with(n *ast.With, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	target, err := m.sequence(n.Target, pctx, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	if isNilValue(target) {
		return nil, fmt.Errorf("%w: with target %s", ErrNullSafeViolation, n.Target.Text())
	}

	for _, stmt := range n.Statements {
		if err := m.withStatement(n, stmt, pctx, target, this, vars); err != nil {
			return nil, fmt.Errorf("with statement %s: %w", stmt.Path, err)
		}
	}
	return target, nil
}

// withStatement applies a statement to the target of a with block, values are evaluated with the
// target as context.
func (m runtimeMode) withStatement(n *ast.With, stmt *ast.WithStatement, pctx *parse.ParserContext, target, this any, vars scope.Factory) error {
	access := pathAccess{node: n, cache: m.cacheOf(&stmt.Setter), pctx: pctx, path: stmt.Path, slot: -1, rootless: true}

	if stmt.Value == nil {
		_, err := access.get(target, this, vars)
		return err
	}

	value, err := m.sequence(stmt.Value, pctx, target, this, vars)
	if err != nil {
		return err
	}
	if stmt.Operator != values.NOOP {
		old, err := access.get(target, this, vars)
		if err != nil {
			return err
		}
		if value, err = values.DoOperation(stmt.Operator, old, value); err != nil {
			return err
		}
	}
	_, err = access.set(target, this, vars, value)
	return err
}

func (m runtimeMode) evalUnion(n *ast.Union, ctx, this any, vars scope.Factory) (any, error) {
	primary, err := m.eval(n.Primary, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	pctx := contextOf(n)

	if m == INTERPRETED {
		o := newRootlessOptimizer(pctx)
		_, err := o.OptimizeAccessor(n.Path, primary, this, vars, nil)
		return o.Result(), err
	}

	id := goreflect.TypeID(primary)
	if accessor, ok := n.Chains.Get(id); ok {
		v, err := accessor.GetValue(primary, this, vars)
		if err == nil || !errors.Is(err, ErrAccessorTypeMismatch) {
			return v, err
		}
		safe := pathAccess{pctx: pctx, path: n.Path, slot: -1, rootless: true}.safe()
		n.Chains.Set(id, safe)
		n.SetFlag(ast.FLAG_DEOPTIMIZED)
		return safe.GetValue(primary, this, vars)
	}

	o := newRootlessOptimizer(pctx)
	accessor, err := o.OptimizeAccessor(n.Path, primary, this, vars, nil)
	if err != nil {
		return nil, err
	}
	n.Chains.SetIfAbsent(id, accessor)
	return o.Result(), nil
}

func (m runtimeMode) newObject(n *ast.NewObject, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	pass := func() (ast.Accessor, any, error) {
		o := NewOptimizer(pctx)
		accessor, err := o.OptimizeObjectCreation(n, ctx, this, vars)
		return accessor, o.Result(), err
	}
	if m == INTERPRETED {
		_, v, err := pass()
		return v, err
	}
	return accessCached(n, &n.Accessor, pass, nil, func(accessor ast.Accessor) (any, error) {
		return accessor.GetValue(ctx, this, vars)
	})
}

func (m runtimeMode) inlineCollection(n *ast.InlineCollection, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	pass := func() (ast.Accessor, any, error) {
		o := NewOptimizer(pctx)
		accessor, err := o.OptimizeCollection(n, ctx, this, vars)
		return accessor, o.Result(), err
	}
	if m == INTERPRETED {
		_, v, err := pass()
		return v, err
	}
	return accessCached(n, &n.Accessor, pass, nil, func(accessor ast.Accessor) (any, error) {
		return accessor.GetValue(ctx, this, vars)
	})
}

func (m runtimeMode) call(n *ast.FunctionCall, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	fn, err := resolveCallee(n, pctx, ctx, this, vars)
	if err != nil {
		return nil, err
	}

	args := make([]any, len(n.Args))
	for i, arg := range n.Args {
		if args[i], err = m.sequence(arg, pctx, ctx, this, vars); err != nil {
			return nil, fmt.Errorf("%s(): argument %d: %w", n.Name, i, err)
		}
	}

	v, err := callValue(fn, args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", n.Name, err)
	}
	return v, nil
}

// resolveCallee returns the closure or the Go function called by n. A function declared later in
// the source is resolved by its definition.
func resolveCallee(n *ast.FunctionCall, pctx *parse.ParserContext, ctx, this any, vars scope.Factory) (any, error) {
	if n.Index >= 0 {
		if resolver, ok := vars.GetIndexedVariableResolver(n.Index); ok {
			return resolver.Value(), nil
		}
	}
	if vars.IsResolvable(n.Name) {
		return scope.Resolve(vars, n.Name)
	}
	if imported, ok := pctx.Import(n.Name); ok {
		return imported, nil
	}
	if def, ok := pctx.Function(n.Name); ok {
		return NewClosure(def, ctx, this, vars), nil
	}
	return nil, fmt.Errorf("%w: function %s", scope.ErrUnresolvableVariable, n.Name)
}
