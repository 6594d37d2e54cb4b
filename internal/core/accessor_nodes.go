package core

import (
	"fmt"
	"reflect"
	"unicode/utf8"

	goreflect "github.com/goccy/go-reflect"
	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/introspect"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
)

// An accessorNode is a link of an accessor chain: it computes a value from the value produced by
// the previous link (ctx) and forwards it to the next link. Links are immutable once chained.
type accessorNode interface {
	getValue(ctx, this any, vars scope.Factory) (any, error)

	// setValue forwards its own value to the next link, the last link of the chain performs the assignment.
	setValue(ctx, this any, vars scope.Factory, value any) (any, error)

	setNext(next accessorNode)
}

type link struct {
	next accessorNode
}

func (l *link) setNext(next accessorNode) {
	l.next = next
}

func (l *link) forward(v, this any, vars scope.Factory) (any, error) {
	if l.next == nil {
		return v, nil
	}
	return l.next.getValue(v, this, vars)
}

func (l *link) forwardSet(v, this any, vars scope.Factory, value any) (any, error) {
	if l.next == nil {
		return nil, fmt.Errorf("%w: the end of the path is not writable", introspect.ErrNotSettable)
	}
	return l.next.setValue(v, this, vars, value)
}

// typeGuard makes a link fail with ErrAccessorTypeMismatch if its input is not of the type it was
// specialized for.
type typeGuard struct {
	id  uintptr
	typ reflect.Type
}

func guardFor(v any) typeGuard {
	return typeGuard{id: goreflect.TypeID(v), typ: reflect.TypeOf(v)}
}

func (g typeGuard) check(v any) error {
	if v == nil || goreflect.TypeID(v) != g.id {
		return fmt.Errorf("%w: %s expected, got %s", ErrAccessorTypeMismatch, g.typ, convert.TypeOf(v))
	}
	return nil
}

type variableNode struct {
	link
	name string
}

func (n *variableNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	if !vars.IsResolvable(n.name) {
		return nil, fmt.Errorf("%w: variable %s is no longer resolvable", ErrAccessorTypeMismatch, n.name)
	}
	v, err := scope.Resolve(vars, n.name)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *variableNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	if n.next == nil {
		_, err := scope.Assign(vars, n.name, value)
		return value, err
	}
	v, err := scope.Resolve(vars, n.name)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

// indexedVariableNode reads a closure parameter by slot.
type indexedVariableNode struct {
	link
	index int
	name  string
}

func (n *indexedVariableNode) resolver(vars scope.Factory) (scope.Resolver, error) {
	if resolver, ok := vars.GetIndexedVariableResolver(n.index); ok {
		return resolver, nil
	}
	return vars.GetVariableResolver(n.name)
}

func (n *indexedVariableNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	resolver, err := n.resolver(vars)
	if err != nil {
		return nil, err
	}
	return n.forward(resolver.Value(), this, vars)
}

func (n *indexedVariableNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	resolver, err := n.resolver(vars)
	if err != nil {
		return nil, err
	}
	if n.next == nil {
		return value, resolver.SetValue(value)
	}
	return n.forwardSet(resolver.Value(), this, vars, value)
}

type thisNode struct {
	link
}

func (n *thisNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	return n.forward(this, this, vars)
}

func (n *thisNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return n.forwardSet(this, this, vars, value)
}

// constantNode is the root of paths starting with an import or a class literal.
type constantNode struct {
	link
	value any
}

func (n *constantNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	return n.forward(n.value, this, vars)
}

func (n *constantNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return n.forwardSet(n.value, this, vars, value)
}

type nullSafeNode struct {
	link
}

func (n *nullSafeNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	if isNilValue(ctx) {
		return nil, nil
	}
	return n.forward(ctx, this, vars)
}

func (n *nullSafeNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	if isNilValue(ctx) {
		return nil, nil
	}
	return n.forwardSet(ctx, this, vars, value)
}

// memberNode reads and writes a field, a getter/setter pair or a property bag entry.
type memberNode struct {
	link
	guard  typeGuard
	name   string
	getter introspect.MemberInfo
	setter introspect.MemberInfo
}

func newMemberNode(v any, name string) (*memberNode, bool) {
	t := reflect.TypeOf(v)
	getter, readable := introspect.Member(t, name)
	setter, writable := introspect.Setter(t, name)
	if !readable && !writable {
		return nil, false
	}
	return &memberNode{guard: guardFor(v), name: name, getter: getter, setter: setter}, true
}

func (n *memberNode) get(ctx any) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	if n.getter.Kind == 0 {
		return nil, fmt.Errorf("%w: %s of %s is write-only", ErrNoSuchProperty, n.name, n.guard.typ)
	}
	return n.getter.Get(reflect.ValueOf(ctx))
}

func (n *memberNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.get(ctx)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *memberNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	if n.next != nil {
		v, err := n.get(ctx)
		if err != nil {
			return nil, err
		}
		return n.forwardSet(v, this, vars, value)
	}

	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	if n.setter.Kind == 0 {
		return nil, fmt.Errorf("%w: %s of %s", introspect.ErrNotSettable, n.name, n.guard.typ)
	}
	return value, n.setter.Set(reflect.ValueOf(ctx), value)
}

func (n *memberNode) egressType() reflect.Type {
	return n.getter.Type
}

// mapNode reads and writes a map entry, the key is either a constant or a sub-expression.
type mapNode struct {
	link
	guard   typeGuard
	key     any
	keyExpr *ast.Sequence
	pctx    *parse.ParserContext
}

func (n *mapNode) getKey(this any, vars scope.Factory) (any, error) {
	if n.keyExpr == nil {
		return n.key, nil
	}
	return evalSubExpression(n.keyExpr, n.pctx, this, vars)
}

func (n *mapNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	key, err := n.getKey(this, vars)
	if err != nil {
		return nil, err
	}
	v, err := mapGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *mapNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	key, err := n.getKey(this, vars)
	if err != nil {
		return nil, err
	}
	if n.next == nil {
		return value, mapSet(ctx, key, value)
	}
	v, err := mapGet(ctx, key)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

// indexNode reads and writes an element of a slice, an array or a string.
type indexNode struct {
	link
	guard     typeGuard
	index     int
	indexExpr *ast.Sequence
	pctx      *parse.ParserContext
}

func (n *indexNode) getIndex(this any, vars scope.Factory) (int, error) {
	if n.indexExpr == nil {
		return n.index, nil
	}
	v, err := evalSubExpression(n.indexExpr, n.pctx, this, vars)
	if err != nil {
		return 0, err
	}
	return toIndex(v)
}

func (n *indexNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	i, err := n.getIndex(this, vars)
	if err != nil {
		return nil, err
	}
	v, err := indexGet(ctx, i)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *indexNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	i, err := n.getIndex(this, vars)
	if err != nil {
		return nil, err
	}
	if n.next == nil {
		return value, indexSet(ctx, i, value)
	}
	v, err := indexGet(ctx, i)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

// methodNode calls a method of the value, the arguments are sub-expressions.
type methodNode struct {
	link
	guard  typeGuard
	method introspect.MethodInfo
	args   []*ast.Sequence
	pctx   *parse.ParserContext
}

func (n *methodNode) call(ctx, this any, vars scope.Factory) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	args, err := evalArgs(n.args, n.pctx, this, vars)
	if err != nil {
		return nil, err
	}
	if !n.method.AcceptsArgCount(len(args)) {
		return nil, fmt.Errorf("%w: method %s of %s called with %d arguments", introspect.ErrArgumentCount,
			n.method.Name(), n.guard.typ, len(args))
	}
	args = adaptArgs(args, n.method.ParamType)

	recv := reflect.ValueOf(ctx)
	if in, ok := assignableArgs(args, n.method.ParamType); ok {
		return n.method.CallValues(recv, in)
	}
	return n.method.Call(recv, args)
}

func (n *methodNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *methodNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

func (n *methodNode) egressType() reflect.Type {
	return n.method.Result
}

// typeMethodNode calls a method expression of a class literal: Person.Greeting(p), the first argument is the receiver.
type typeMethodNode struct {
	link
	typ    reflect.Type
	method reflect.Method
	args   []*ast.Sequence
	pctx   *parse.ParserContext
}

func (n *typeMethodNode) call(ctx, this any, vars scope.Factory) (any, error) {
	if t, ok := ctx.(reflect.Type); !ok || t != n.typ {
		return nil, fmt.Errorf("%w: class literal %s expected", ErrAccessorTypeMismatch, n.typ)
	}
	args, err := evalArgs(n.args, n.pctx, this, vars)
	if err != nil {
		return nil, err
	}
	return introspect.CallFunc(n.method.Func, adaptArgs(args, funcParamType(n.method.Type)))
}

func (n *typeMethodNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *typeMethodNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

// invokeNode calls the value produced by the previous link: a closure or a Go function.
type invokeNode struct {
	link
	name string
	args []*ast.Sequence
	pctx *parse.ParserContext
}

func (n *invokeNode) call(fn, this any, vars scope.Factory) (any, error) {
	args, err := evalArgs(n.args, n.pctx, this, vars)
	if err != nil {
		return nil, err
	}
	v, err := callValue(fn, args)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", n.name, err)
	}
	return v, nil
}

func (n *invokeNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *invokeNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	v, err := n.call(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

type pseudoProperty int

const (
	LENGTH pseudoProperty = iota
	IS_EMPTY
)

// pseudoNode implements length, size() and isEmpty() on the values having a length.
type pseudoNode struct {
	link
	guard    typeGuard
	property pseudoProperty
}

func (n *pseudoNode) get(ctx any) (any, error) {
	if err := n.guard.check(ctx); err != nil {
		return nil, err
	}
	length, _ := lengthOf(ctx)
	if n.property == IS_EMPTY {
		return length == 0, nil
	}
	return length, nil
}

func (n *pseudoNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.get(ctx)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *pseudoNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	v, err := n.get(ctx)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

// deferredNode ends a chain whose remaining links could not be specialized because a null-safe
// segment was nil during the optimization pass.
type deferredNode struct {
	link
	rest *safeAccessor
}

func (n *deferredNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	return n.rest.GetValue(ctx, this, vars)
}

func (n *deferredNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return n.rest.SetValue(ctx, this, vars, value)
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func isMap(v any) bool {
	if _, ok := v.(map[string]any); ok {
		return true
	}
	return reflect.TypeOf(v).Kind() == reflect.Map
}

func isIndexable(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		return true
	case reflect.Pointer:
		return reflect.TypeOf(v).Elem().Kind() == reflect.Array
	}
	return false
}

func lengthOf(v any) (int, bool) {
	switch val := v.(type) {
	case string:
		return utf8.RuneCountInString(val), true
	case []any:
		return len(val), true
	case map[string]any:
		return len(val), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.Type().Elem().Kind() == reflect.Array {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return rv.Len(), true
	}
	return 0, false
}

func mapGet(m, key any) (any, error) {
	if sm, ok := m.(map[string]any); ok {
		k, ok := key.(string)
		if !ok {
			k = convert.ToString(key)
		}
		return sm[k], nil
	}

	rv := reflect.ValueOf(m)
	k, err := introspect.Coerce(key, rv.Type().Key())
	if err != nil {
		return nil, fmt.Errorf("invalid map key: %w", err)
	}
	v := rv.MapIndex(k)
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func mapSet(m, key, value any) error {
	if sm, ok := m.(map[string]any); ok {
		if sm == nil {
			return fmt.Errorf("%w: nil map", introspect.ErrNotSettable)
		}
		k, ok := key.(string)
		if !ok {
			k = convert.ToString(key)
		}
		sm[k] = value
		return nil
	}

	rv := reflect.ValueOf(m)
	if rv.IsNil() {
		return fmt.Errorf("%w: nil map", introspect.ErrNotSettable)
	}
	k, err := introspect.Coerce(key, rv.Type().Key())
	if err != nil {
		return fmt.Errorf("invalid map key: %w", err)
	}
	v, err := introspect.Coerce(value, rv.Type().Elem())
	if err != nil {
		return err
	}
	rv.SetMapIndex(k, v)
	return nil
}

func toIndex(v any) (int, error) {
	i, err := convert.ConvertTo[int](v)
	if err != nil {
		return 0, fmt.Errorf("invalid index: %w", err)
	}
	return i, nil
}

func indexGet(v any, i int) (any, error) {
	switch val := v.(type) {
	case []any:
		if i < 0 || i >= len(val) {
			return nil, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, len(val))
		}
		return val[i], nil
	case string:
		runes := []rune(val)
		if i < 0 || i >= len(runes) {
			return nil, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, len(runes))
		}
		return string(runes[i]), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if i < 0 || i >= rv.Len() {
		return nil, fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, rv.Len())
	}
	return rv.Index(i).Interface(), nil
}

func indexSet(v any, i int, value any) error {
	if val, ok := v.([]any); ok {
		if i < 0 || i >= len(val) {
			return fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, len(val))
		}
		val[i] = value
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.String {
		return fmt.Errorf("%w: strings are immutable", introspect.ErrNotSettable)
	}
	if i < 0 || i >= rv.Len() {
		return fmt.Errorf("%w: %d (length %d)", ErrIndexOutOfRange, i, rv.Len())
	}
	elem := rv.Index(i)
	if !elem.CanSet() {
		return fmt.Errorf("%w: element of a non-addressable %s", introspect.ErrNotSettable, rv.Type())
	}
	converted, err := introspect.Coerce(value, elem.Type())
	if err != nil {
		return err
	}
	elem.Set(converted)
	return nil
}

func funcParamType(fnType reflect.Type) func(i int) reflect.Type {
	return func(i int) reflect.Type {
		if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
			return fnType.In(fnType.NumIn() - 1).Elem()
		}
		if i < fnType.NumIn() {
			return fnType.In(i)
		}
		return nil
	}
}

// assignableArgs returns the reflect values of args if every argument is directly assignable to its parameter.
func assignableArgs(args []any, paramType func(i int) reflect.Type) ([]reflect.Value, bool) {
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		t := paramType(i)
		if arg == nil || t == nil || !reflect.TypeOf(arg).AssignableTo(t) {
			return nil, false
		}
		in[i] = reflect.ValueOf(arg)
	}
	return in, true
}
