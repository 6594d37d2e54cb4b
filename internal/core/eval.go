package core

import (
	"errors"
	"reflect"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
)

// runtimeMode selects the evaluator of the nodes met during a tree walk.
type runtimeMode uint8

const (
	ACCELERATED runtimeMode = iota
	INTERPRETED
)

func (m runtimeMode) String() string {
	if m == INTERPRETED {
		return "interpreted"
	}
	return "accelerated"
}

func (m runtimeMode) eval(node ast.Node, ctx, this any, vars scope.Factory) (any, error) {
	if m == INTERPRETED {
		return EvalInterpreted(node, ctx, this, vars)
	}
	return EvalAccelerated(node, ctx, this, vars)
}

// sequence evaluates a block body, the value of an assignment, a condition... Compiled sequences are
// executed as chains, sequences kept as spans by the interpreter are interpreted.
func (m runtimeMode) sequence(seq *ast.Sequence, pctx *parse.ParserContext, ctx, this any, vars scope.Factory) (any, error) {
	switch {
	case seq == nil:
		return nil, nil
	case seq.LiteralOnly:
		return seq.Value, nil
	case seq.IsInterpreted():
		return interpretSpan(pctx, seq.Source, seq.Span, ctx, this, vars)
	}
	return runChain(seq.Head, seq.Source, ctx, this, vars)
}

// runChain executes the statements of a compiled chain and returns the value of the last one. The
// execution stops after a return statement.
func runChain(head ast.Node, source []rune, ctx, this any, vars scope.Factory) (result any, err error) {
	var line int32

	for node := head; node != nil; node = node.Base().Next {
		base := node.Base()
		if base.HasFlag(ast.FLAG_NON_EXECUTABLE) {
			if label, ok := node.(*ast.LineLabel); ok {
				line = label.Line
			}
			continue
		}

		result, err = EvalAccelerated(node, ctx, this, vars)
		if err != nil {
			return nil, locate(err, node, source, line)
		}
		if vars.IsTilted() {
			return result, nil
		}
	}
	return result, nil
}

// contextOf returns the parser context a node was created with.
func contextOf(node ast.Node) *parse.ParserContext {
	if pctx, ok := node.Base().Literal.(*parse.ParserContext); ok {
		return pctx
	}
	return defaultParserContext
}

// pathAccess locates the accessor of a property path: the cache of the node and how the path is resolved.
type pathAccess struct {
	node     ast.Node
	cache    *ast.AccessorCache //nil in interpreted mode
	pctx     *parse.ParserContext
	path     string
	slot     int
	rootless bool
}

func (a pathAccess) optimizer() *Optimizer {
	o := NewOptimizer(a.pctx).WithSlot(a.slot)
	o.rootless = o.rootless || a.rootless
	return o
}

func (a pathAccess) safe() ast.Accessor {
	o := a.optimizer()
	segments, err := o.split(a.path)
	if err != nil {
		//the path has already been split by the optimization pass
		panic(err)
	}
	return newSafeAccessor(a.pctx, a.slot, segments, o.rootless)
}

func (a pathAccess) get(ctx, this any, vars scope.Factory) (any, error) {
	pass := func() (ast.Accessor, any, error) {
		o := a.optimizer()
		accessor, err := o.OptimizeAccessor(a.path, ctx, this, vars, nil)
		return accessor, o.Result(), err
	}
	return a.access(pass, func(accessor ast.Accessor) (any, error) {
		return accessor.GetValue(ctx, this, vars)
	})
}

func (a pathAccess) set(ctx, this any, vars scope.Factory, value any) (any, error) {
	pass := func() (ast.Accessor, any, error) {
		o := a.optimizer()
		accessor, err := o.OptimizeSetter(a.path, ctx, this, vars, value)
		return accessor, o.Result(), err
	}
	return a.access(pass, func(accessor ast.Accessor) (any, error) {
		return accessor.SetValue(ctx, this, vars, value)
	})
}

func (a pathAccess) access(pass func() (ast.Accessor, any, error), use func(ast.Accessor) (any, error)) (any, error) {
	if a.cache == nil {
		_, result, err := pass()
		return result, err
	}
	return accessCached(a.node, a.cache, pass, a.safe, use)
}

// accessCached runs the optimization pass of an uncompiled node and caches its accessor. A compiled accessor
// failing with ErrAccessorTypeMismatch is replaced by the accessor returned by makeSafe and the access is
// retried, makeSafe is nil for the accessors that are not type specialized.
func accessCached(
	node ast.Node,
	cache *ast.AccessorCache,
	pass func() (ast.Accessor, any, error),
	makeSafe func() ast.Accessor,
	use func(ast.Accessor) (any, error),
) (any, error) {
	accessor, state := cache.Load()

	switch state {
	case ast.UNCOMPILED:
		accessor, result, err := pass()
		if err != nil {
			return nil, err
		}
		cache.Install(accessor)
		return result, nil
	case ast.COMPILED:
		v, err := use(accessor)
		if err == nil || makeSafe == nil || !errors.Is(err, ErrAccessorTypeMismatch) {
			return v, err
		}

		accessor = cache.Deoptimize(makeSafe)
		node.Base().SetFlag(ast.FLAG_DEOPTIMIZED)
		Logger().Debug().Err(err).Str(PATH_LOG_FIELD_NAME, describeAccessor(accessor)).Msg("node deoptimized")
	}
	return use(accessor)
}

func describeAccessor(accessor ast.Accessor) string {
	if a, ok := accessor.(*safeAccessor); ok {
		return parse.JoinPath(a.segments)
	}
	return reflect.TypeOf(accessor).String()
}
