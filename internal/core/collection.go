package core

import (
	"fmt"
	"reflect"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/introspect"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
)

// OptimizeCollection builds the accessor creating the value of an inline list, map or array and
// evaluates it. Each evaluation of the accessor creates a new collection.
func (o *Optimizer) OptimizeCollection(node *ast.InlineCollection, ctx, this any, vars scope.Factory) (ast.Accessor, error) {
	accessor := &collectionAccessor{node: node, pctx: o.pctx}
	if node.ElemType != nil {
		accessor.sliceType = reflect.SliceOf(node.ElemType)
	}

	v, err := accessor.GetValue(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	o.result = v
	return accessor, nil
}

type collectionAccessor struct {
	node      *ast.InlineCollection
	pctx      *parse.ParserContext
	sliceType reflect.Type //set for typed arrays
}

func (a *collectionAccessor) element(seq *ast.Sequence, ctx, this any, vars scope.Factory) (any, error) {
	return ACCELERATED.sequence(seq, a.pctx, ctx, this, vars)
}

func (a *collectionAccessor) GetValue(ctx, this any, vars scope.Factory) (any, error) {
	node := a.node

	switch {
	case node.Kind == ast.MapCollection:
		m := make(map[string]any, len(node.Elements))
		for i, seq := range node.Elements {
			key, err := a.element(node.Keys[i], ctx, this, vars)
			if err != nil {
				return nil, err
			}
			value, err := a.element(seq, ctx, this, vars)
			if err != nil {
				return nil, err
			}
			m[convert.ToString(key)] = value
		}
		return m, nil
	case a.sliceType != nil:
		slice := reflect.MakeSlice(a.sliceType, len(node.Elements), len(node.Elements))
		for i, seq := range node.Elements {
			v, err := a.element(seq, ctx, this, vars)
			if err != nil {
				return nil, err
			}
			elem, err := introspect.Coerce(v, node.ElemType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			slice.Index(i).Set(elem)
		}
		return slice.Interface(), nil
	}

	list := make([]any, len(node.Elements))
	for i, seq := range node.Elements {
		v, err := a.element(seq, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

func (a *collectionAccessor) SetValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return nil, fmt.Errorf("%w: inline collection", introspect.ErrNotSettable)
}

func (a *collectionAccessor) KnownEgressType() reflect.Type {
	return a.node.EgressType
}

// OptimizeObjectCreation resolves the constructor of a new expression and creates the object.
func (o *Optimizer) OptimizeObjectCreation(node *ast.NewObject, ctx, this any, vars scope.Factory) (ast.Accessor, error) {
	accessor := &constructorAccessor{node: node, pctx: o.pctx}

	switch {
	case node.Factory != nil:
		accessor.fn = reflect.ValueOf(node.Factory)
	case node.Type != nil:
		if fn, ok := introspect.Constructor(node.Type); ok {
			accessor.fn = fn
		}
	default:
		return nil, fmt.Errorf("%w for %s", introspect.ErrNoConstructor, node.TypeName)
	}

	v, err := accessor.GetValue(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	o.result = v
	return accessor, nil
}

type constructorAccessor struct {
	node *ast.NewObject
	pctx *parse.ParserContext
	fn   reflect.Value //invalid if the type is instantiated by introspection
}

func (a *constructorAccessor) GetValue(ctx, this any, vars scope.Factory) (any, error) {
	args := make([]any, len(a.node.Args))
	for i, seq := range a.node.Args {
		v, err := ACCELERATED.sequence(seq, a.pctx, ctx, this, vars)
		if err != nil {
			return nil, fmt.Errorf("new %s: argument %d: %w", a.node.TypeName, i, err)
		}
		args[i] = v
	}

	if a.fn.IsValid() {
		return introspect.CallFunc(a.fn, adaptArgs(args, funcParamType(a.fn.Type())))
	}
	return introspect.NewInstance(a.node.Type, args)
}

func (a *constructorAccessor) SetValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return nil, fmt.Errorf("%w: new %s", introspect.ErrNotSettable, a.node.TypeName)
}

func (a *constructorAccessor) KnownEgressType() reflect.Type {
	return a.node.EgressType
}

// newArray creates the nested slices of new T[n][m], every dimension is allocated.
func (m runtimeMode) newArray(n *ast.NewArray, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	dims := make([]int, len(n.Dimensions))
	for i, seq := range n.Dimensions {
		v, err := m.sequence(seq, pctx, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		size, err := convert.ConvertTo[int](v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArrayDimension, err)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: negative size %d", ErrInvalidArrayDimension, size)
		}
		dims[i] = size
	}

	t := n.ElemType
	for range dims {
		t = reflect.SliceOf(t)
	}
	return makeArray(t, dims).Interface(), nil
}

func makeArray(t reflect.Type, dims []int) reflect.Value {
	slice := reflect.MakeSlice(t, dims[0], dims[0])
	if len(dims) > 1 {
		for i := 0; i < dims[0]; i++ {
			slice.Index(i).Set(makeArray(t.Elem(), dims[1:]))
		}
	}
	return slice
}
