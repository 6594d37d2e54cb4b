package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/introspect"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/inoxlang/evalx/internal/values"
)

var defaultParserContext = parse.MustNewParserContext(parse.ParserConfiguration{})

// An Optimizer builds accessors specialized for the concrete types met during its pass, the value
// computed by the pass is available through Result. An Optimizer is used for a single pass.
type Optimizer struct {
	pctx *parse.ParserContext

	slot     int  //slot of the root variable, -1 if the root is resolved by name
	rootless bool //the first segment applies to ctx

	result any
}

func NewOptimizer(pctx *parse.ParserContext) *Optimizer {
	if pctx == nil {
		pctx = defaultParserContext
	}
	return &Optimizer{pctx: pctx, slot: -1}
}

// WithSlot makes the root of the optimized paths resolve to the closure parameter at index slot.
func (o *Optimizer) WithSlot(slot int) *Optimizer {
	o.slot = slot
	return o
}

func newRootlessOptimizer(pctx *parse.ParserContext) *Optimizer {
	o := NewOptimizer(pctx)
	o.rootless = true
	return o
}

// Result returns the value computed by the last optimization pass.
func (o *Optimizer) Result() any {
	return o.result
}

// OptimizeAccessor builds the accessor of a property path and evaluates it. If ingress is not nil the
// values returned by the accessor are converted to it. Paths starting with '.', '[' or '?' are applied to ctx.
func (o *Optimizer) OptimizeAccessor(path string, ctx, this any, vars scope.Factory, ingress reflect.Type) (ast.Accessor, error) {
	segments, err := o.split(path)
	if err != nil {
		return nil, err
	}

	head, last, value, err := o.build(segments, ctx, this, vars)
	if err != nil {
		return nil, err
	}

	accessor := &chainAccessor{head: head, path: path}
	if typed, ok := last.(interface{ egressType() reflect.Type }); ok {
		accessor.known = typed.egressType()
	}
	if ingress != nil && ingress != convert.ANY_TYPE {
		accessor.egress = ingress
		accessor.known = ingress
		value, err = convert.Convert(value, ingress)
		if err != nil {
			return nil, err
		}
	}
	o.result = value
	return accessor, nil
}

// OptimizeSetter builds the accessor assigning the value located by path and performs the assignment.
func (o *Optimizer) OptimizeSetter(path string, ctx, this any, vars scope.Factory, value any) (ast.Accessor, error) {
	segments, err := o.split(path)
	if err != nil {
		return nil, err
	}
	lastSeg := segments[len(segments)-1]
	if lastSeg.Kind == parse.CallSegment {
		return nil, fmt.Errorf("%w: %s", introspect.ErrNotSettable, path)
	}

	if len(segments) == 1 && !o.rootless {
		nodes, err := o.makeRoot(lastSeg, ctx, this, vars)
		if err != nil {
			return nil, err
		}
		head := chain(nodes)
		if _, err := head.setValue(ctx, this, vars, value); err != nil {
			return nil, err
		}
		o.result = value
		return &chainAccessor{head: head, path: path}, nil
	}

	var (
		head, tail accessorNode
		target     = ctx
	)
	if len(segments) > 1 || !o.rootless {
		head, tail, target, err = o.build(segments[:len(segments)-1], ctx, this, vars)
		if err != nil {
			return nil, err
		}
	}

	if _, deferred := tail.(*deferredNode); deferred || isNilValue(target) {
		if lastSeg.NullSafe || deferred {
			rest := o.safe(segments[len(segments)-1:], true)
			node := &deferredNode{rest: rest}
			if head == nil {
				head = node
			} else if !deferred {
				tail.setNext(node)
			}
			if !isNilValue(target) {
				if _, err := rest.SetValue(target, this, vars, value); err != nil {
					return nil, err
				}
			}
			o.result = value
			return &chainAccessor{head: head, path: path}, nil
		}
		return nil, nilError(lastSeg)
	}

	terminal, err := o.makeLink(lastSeg, target)
	if err != nil {
		return nil, err
	}
	if _, err := terminal.setValue(target, this, vars, value); err != nil {
		return nil, err
	}
	if head == nil {
		head = terminal
	} else {
		tail.setNext(terminal)
	}
	o.result = value
	return &chainAccessor{head: head, path: path}, nil
}

func (o *Optimizer) split(path string) ([]parse.PathSegment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", parse.ErrInvalidPath)
	}
	switch path[0] {
	case '.', '[', '?':
		o.rootless = true
	}
	return parse.SplitPath(path)
}

// build specializes and evaluates the links of segments, it returns the first and the last link and the computed value.
func (o *Optimizer) build(segments []parse.PathSegment, ctx, this any, vars scope.Factory) (head, tail accessorNode, value any, err error) {
	add := func(n accessorNode) {
		if head == nil {
			head = n
		} else {
			tail.setNext(n)
		}
		tail = n
	}

	current := ctx
	start := 0
	if !o.rootless {
		nodes, err := o.makeRoot(segments[0], ctx, this, vars)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, n := range nodes {
			if current, err = n.getValue(current, this, vars); err != nil {
				return nil, nil, nil, err
			}
			add(n)
		}
		start = 1
	}

	for i := start; i < len(segments); i++ {
		seg := segments[i]
		if isNilValue(current) {
			if !seg.NullSafe {
				return nil, nil, nil, nilError(seg)
			}
			add(&deferredNode{rest: o.safe(segments[i:], true)})
			return head, tail, nil, nil
		}
		if seg.NullSafe {
			add(&nullSafeNode{})
		}

		n, err := o.makeLink(seg, current)
		if err != nil {
			return nil, nil, nil, err
		}
		if current, err = n.getValue(current, this, vars); err != nil {
			return nil, nil, nil, err
		}
		add(n)
	}
	return head, tail, current, nil
}

// makeRoot resolves the first segment of a path: this, a closure slot, a variable, a member of the context
// object, an import or a builtin type.
func (o *Optimizer) makeRoot(seg parse.PathSegment, ctx, this any, vars scope.Factory) ([]accessorNode, error) {
	withCall := func(root accessorNode) ([]accessorNode, error) {
		if seg.Kind != parse.CallSegment {
			return []accessorNode{root}, nil
		}
		invoke, err := o.invoke(seg)
		if err != nil {
			return nil, err
		}
		return []accessorNode{root, invoke}, nil
	}

	name := seg.Name
	switch {
	case name == "this":
		return withCall(&thisNode{})
	case o.slot >= 0:
		return withCall(&indexedVariableNode{index: o.slot, name: name})
	case vars != nil && vars.IsResolvable(name):
		return withCall(&variableNode{name: name})
	}

	if !isNilValue(ctx) && o.hasMember(ctx, seg) {
		n, err := o.makeLink(seg, ctx)
		if err != nil {
			return nil, err
		}
		return []accessorNode{n}, nil
	}

	if imported, ok := o.pctx.Import(name); ok {
		return withCall(&constantNode{value: imported})
	}
	if t, ok := values.BUILTIN_TYPES[name]; ok && seg.Kind == parse.PropertySegment {
		return []accessorNode{&constantNode{value: t}}, nil
	}

	if seg.Kind == parse.CallSegment && !isNilValue(ctx) && !o.pctx.AllowNakedMethodCalls() {
		if _, ok := introspect.Method(reflect.TypeOf(ctx), name); ok {
			return nil, fmt.Errorf("%w: %s(): methods of the context object require the this. prefix", scope.ErrUnresolvableVariable, name)
		}
	}
	return nil, unresolvableError(name, vars)
}

const MAX_NAME_SUGGESTION_DIFF = 2

func unresolvableError(name string, vars scope.Factory) error {
	if vars != nil {
		closest, _, found := utils.FindClosestString(nil, scope.AllVariables(vars), name, MAX_NAME_SUGGESTION_DIFF)
		if found && closest != name {
			return fmt.Errorf("%w: %s (did you mean %s?)", scope.ErrUnresolvableVariable, name, closest)
		}
	}
	return fmt.Errorf("%w: %s", scope.ErrUnresolvableVariable, name)
}

// hasMember reports whether the first segment of a path can be resolved on the context object.
func (o *Optimizer) hasMember(ctx any, seg parse.PathSegment) bool {
	if m, ok := ctx.(map[string]any); ok {
		_, found := m[seg.Name]
		return found
	}

	t := reflect.TypeOf(ctx)
	if seg.Kind == parse.CallSegment {
		if _, ok := introspect.Method(t, seg.Name); ok {
			return o.pctx.AllowNakedMethodCalls()
		}
		info, ok := introspect.Member(t, seg.Name)
		return ok && info.Kind != introspect.PropertyBagMember && isFuncType(info.Type)
	}

	if t.Kind() == reflect.Map {
		rv := reflect.ValueOf(ctx)
		key, err := introspect.Coerce(seg.Name, t.Key())
		return err == nil && rv.MapIndex(key).IsValid()
	}

	if info, ok := introspect.Member(t, seg.Name); ok {
		if info.Kind != introspect.PropertyBagMember {
			return true
		}
		_, found := ctx.(introspect.PropertyGetter).GetProperty(seg.Name)
		return found
	}
	return false
}

func isFuncType(t reflect.Type) bool {
	return t != nil && (t.Kind() == reflect.Func || t.Kind() == reflect.Interface)
}

// makeLink specializes a segment for the type of v, v must not be nil.
func (o *Optimizer) makeLink(seg parse.PathSegment, v any) (accessorNode, error) {
	switch seg.Kind {
	case parse.PropertySegment:
		return o.propertyLink(seg, v)
	case parse.IndexSegment:
		return o.indexLink(seg, v)
	default:
		return o.callLink(seg, v)
	}
}

func (o *Optimizer) propertyLink(seg parse.PathSegment, v any) (accessorNode, error) {
	if isMap(v) {
		return &mapNode{guard: guardFor(v), key: seg.Name}, nil
	}
	if seg.Name == "length" {
		if _, ok := lengthOf(v); ok {
			return &pseudoNode{guard: guardFor(v), property: LENGTH}, nil
		}
	}
	if n, ok := newMemberNode(v, seg.Name); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w %s on %s", ErrNoSuchProperty, seg.Name, convert.TypeOf(v))
}

func (o *Optimizer) indexLink(seg parse.PathSegment, v any) (accessorNode, error) {
	seq, err := parse.CompileSubExpression(o.pctx, seg.Expr)
	if err != nil {
		return nil, err
	}

	switch {
	case isMap(v):
		n := &mapNode{guard: guardFor(v), pctx: o.pctx}
		if seq.LiteralOnly {
			n.key = seq.Value
		} else {
			n.keyExpr = seq
		}
		return n, nil
	case isIndexable(v):
		n := &indexNode{guard: guardFor(v), pctx: o.pctx}
		if seq.LiteralOnly {
			if n.index, err = toIndex(seq.Value); err != nil {
				return nil, err
			}
		} else {
			n.indexExpr = seq
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s is not indexable", ErrNoSuchProperty, convert.TypeOf(v))
}

func (o *Optimizer) compileArgs(seg parse.PathSegment) ([]*ast.Sequence, error) {
	args := make([]*ast.Sequence, 0, len(seg.Args))
	for _, arg := range seg.Args {
		seq, err := parse.CompileSubExpression(o.pctx, arg)
		if err != nil {
			return nil, err
		}
		args = append(args, seq)
	}
	return args, nil
}

func (o *Optimizer) invoke(seg parse.PathSegment) (accessorNode, error) {
	args, err := o.compileArgs(seg)
	if err != nil {
		return nil, err
	}
	return &invokeNode{name: seg.Name, args: args, pctx: o.pctx}, nil
}

func (o *Optimizer) callLink(seg parse.PathSegment, v any) (accessorNode, error) {
	args, err := o.compileArgs(seg)
	if err != nil {
		return nil, err
	}

	if t, ok := v.(reflect.Type); ok {
		if method, found := t.MethodByName(introspect.Capitalize(seg.Name)); found {
			return &typeMethodNode{typ: t, method: method, args: args, pctx: o.pctx}, nil
		}
	}

	t := reflect.TypeOf(v)
	if method, ok := introspect.Method(t, seg.Name); ok {
		return &methodNode{guard: guardFor(v), method: method, args: args, pctx: o.pctx}, nil
	}

	if len(args) == 0 {
		if _, ok := lengthOf(v); ok {
			switch seg.Name {
			case "size", "length":
				return &pseudoNode{guard: guardFor(v), property: LENGTH}, nil
			case "isEmpty":
				return &pseudoNode{guard: guardFor(v), property: IS_EMPTY}, nil
			}
		}
	}

	//function stored in a field or a map entry
	property, err := o.propertyLink(parse.PathSegment{Kind: parse.PropertySegment, Name: seg.Name}, v)
	if err != nil {
		return nil, fmt.Errorf("%w: no method %s on %s", ErrNoSuchProperty, seg.Name, convert.TypeOf(v))
	}
	property.setNext(&invokeNode{name: seg.Name, args: args, pctx: o.pctx})
	return &compositeNode{first: property}, nil
}

// compositeNode wraps a pre-linked pair of links so that it can be used as a single link.
type compositeNode struct {
	link
	first accessorNode
}

func (n *compositeNode) getValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := n.first.getValue(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forward(v, this, vars)
}

func (n *compositeNode) setValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	v, err := n.first.getValue(ctx, this, vars)
	if err != nil {
		return nil, err
	}
	return n.forwardSet(v, this, vars, value)
}

func (o *Optimizer) safe(segments []parse.PathSegment, rootless bool) *safeAccessor {
	return newSafeAccessor(o.pctx, o.slot, segments, rootless)
}

func chain(nodes []accessorNode) accessorNode {
	for i := 1; i < len(nodes); i++ {
		nodes[i-1].setNext(nodes[i])
	}
	return nodes[0]
}

func nilError(seg parse.PathSegment) error {
	name := seg.Name
	if seg.Kind == parse.IndexSegment {
		name = "[" + seg.Expr + "]"
	}
	return fmt.Errorf("%w: %s", ErrNullSafeViolation, name)
}

// chainAccessor is a monomorphic accessor: its links fail with ErrAccessorTypeMismatch when they
// meet a type they were not specialized for.
type chainAccessor struct {
	head   accessorNode
	path   string
	egress reflect.Type //the result is converted to egress if not nil
	known  reflect.Type
}

func (a *chainAccessor) GetValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := a.head.getValue(ctx, this, vars)
	if err != nil || a.egress == nil {
		return v, err
	}
	return convert.Convert(v, a.egress)
}

func (a *chainAccessor) SetValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	return a.head.setValue(ctx, this, vars, value)
}

func (a *chainAccessor) KnownEgressType() reflect.Type {
	return a.known
}

func (a *chainAccessor) String() string {
	return a.path
}

// evalSubExpression evaluates an index or an argument, sub-expressions are evaluated against this.
func evalSubExpression(seq *ast.Sequence, pctx *parse.ParserContext, this any, vars scope.Factory) (any, error) {
	return ACCELERATED.sequence(seq, pctx, this, this, vars)
}

func evalArgs(args []*ast.Sequence, pctx *parse.ParserContext, this any, vars scope.Factory) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	evaluated := make([]any, len(args))
	for i, arg := range args {
		v, err := evalSubExpression(arg, pctx, this, vars)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		evaluated[i] = v
	}
	return evaluated, nil
}
