package core

import (
	"reflect"

	goreflect "github.com/goccy/go-reflect"
	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
)

var reflectTypeType = reflect.TypeOf(reflect.TypeOf(0))

// safeAccessor is the accessor of deoptimized nodes: it specializes every segment for each concrete
// type it meets and never fails with ErrAccessorTypeMismatch.
type safeAccessor struct {
	pctx     *parse.ParserContext
	slot     int
	segments []parse.PathSegment
	rootless bool
	egress   reflect.Type

	links []ast.TypeCache //one cache per segment, keyed by the type of the segment input
}

func newSafeAccessor(pctx *parse.ParserContext, slot int, segments []parse.PathSegment, rootless bool) *safeAccessor {
	return &safeAccessor{
		pctx:     pctx,
		slot:     slot,
		segments: segments,
		rootless: rootless,
		links:    make([]ast.TypeCache, len(segments)),
	}
}

// newSafePathAccessor returns the safe accessor of a full property path.
func newSafePathAccessor(pctx *parse.ParserContext, slot int, path string, egress reflect.Type) (*safeAccessor, error) {
	o := NewOptimizer(pctx).WithSlot(slot)
	segments, err := o.split(path)
	if err != nil {
		return nil, err
	}
	a := newSafeAccessor(o.pctx, slot, segments, o.rootless)
	if egress != convert.ANY_TYPE {
		a.egress = egress
	}
	return a, nil
}

func (a *safeAccessor) GetValue(ctx, this any, vars scope.Factory) (any, error) {
	v, err := a.walk(len(a.segments), ctx, this, vars)
	if err != nil || v == nil || a.egress == nil {
		return v, err
	}
	return convert.Convert(v, a.egress)
}

func (a *safeAccessor) SetValue(ctx, this any, vars scope.Factory, value any) (any, error) {
	last := len(a.segments) - 1
	if last == 0 && !a.rootless {
		o := NewOptimizer(a.pctx).WithSlot(a.slot)
		nodes, err := o.makeRoot(a.segments[0], ctx, this, vars)
		if err != nil {
			return nil, err
		}
		return chain(nodes).setValue(ctx, this, vars, value)
	}

	target, err := a.walk(last, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	seg := a.segments[last]
	if isNilValue(target) {
		if seg.NullSafe || a.nilBeforeEnd(last) {
			return nil, nil
		}
		return nil, nilError(seg)
	}
	l, err := a.linkFor(last, seg, target)
	if err != nil {
		return nil, err
	}
	return l.SetValue(target, this, vars, value)
}

// nilBeforeEnd reports whether a null-safe segment precedes the segment at index end.
func (a *safeAccessor) nilBeforeEnd(end int) bool {
	for _, seg := range a.segments[:end] {
		if seg.NullSafe {
			return true
		}
	}
	return false
}

// walk evaluates the first n segments.
func (a *safeAccessor) walk(n int, ctx, this any, vars scope.Factory) (any, error) {
	current := ctx
	start := 0
	if !a.rootless && n > 0 {
		v, err := a.root(ctx, this, vars)
		if err != nil {
			return nil, err
		}
		current = v
		start = 1
	}

	for i := start; i < n; i++ {
		seg := a.segments[i]
		if isNilValue(current) {
			if seg.NullSafe {
				return nil, nil
			}
			return nil, nilError(seg)
		}
		l, err := a.linkFor(i, seg, current)
		if err != nil {
			return nil, err
		}
		if current, err = l.GetValue(current, this, vars); err != nil {
			return nil, err
		}
	}
	return current, nil
}

func (a *safeAccessor) root(ctx, this any, vars scope.Factory) (any, error) {
	seg := a.segments[0]
	cacheable := seg.Name != "this" && a.slot < 0 && !isNilValue(ctx) && !isMap(ctx) && !vars.IsResolvable(seg.Name)

	var id uintptr
	if cacheable {
		id = goreflect.TypeID(ctx)
		if cached, ok := a.links[0].Get(id); ok {
			return cached.GetValue(ctx, this, vars)
		}
	}

	o := NewOptimizer(a.pctx).WithSlot(a.slot)
	nodes, err := o.makeRoot(seg, ctx, this, vars)
	if err != nil {
		return nil, err
	}
	root := &chainAccessor{head: chain(nodes)}
	if cacheable {
		a.links[0].SetIfAbsent(id, root)
	}
	return root.GetValue(ctx, this, vars)
}

func (a *safeAccessor) linkFor(i int, seg parse.PathSegment, v any) (ast.Accessor, error) {
	//the values of class literals all have the same dynamic type
	cacheable := reflect.TypeOf(v) != reflectTypeType

	id := goreflect.TypeID(v)
	if cacheable {
		if cached, ok := a.links[i].Get(id); ok {
			return cached, nil
		}
	}

	n, err := NewOptimizer(a.pctx).makeLink(seg, v)
	if err != nil {
		return nil, err
	}
	var acc ast.Accessor = &chainAccessor{head: n}
	if cacheable {
		acc = a.links[i].SetIfAbsent(id, acc)
	}
	return acc, nil
}

func (a *safeAccessor) KnownEgressType() reflect.Type {
	return a.egress
}
