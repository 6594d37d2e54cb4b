package parse

import (
	"reflect"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/introspect"
)

// verifyProperty returns the static type of a property path, nil if it cannot be determined.
// In strict mode unknown roots and members are fatal errors, otherwise unknown roots become inputs.
func (p *Parser) verifyProperty(offset int32, segments []PathSegment) reflect.Type {
	root := segments[0]
	strict := p.ctx.IsStrictTyping()

	var t reflect.Type
	switch {
	case root.Name == "this":
		t, _ = p.ctx.VariableType("this")
	case root.Kind == CallSegment:
		if fn, ok := p.ctx.Function(root.Name); ok && fn.Body != nil && len(segments) == 1 {
			return fn.Body.EgressType
		}
		return nil
	default:
		varType, ok := p.ctx.VariableType(root.Name)
		if ok {
			t = varType
			break
		}
		if imported, ok := p.ctx.Import(root.Name); ok {
			if _, isType := imported.(reflect.Type); isType {
				return nil
			}
			t = reflect.TypeOf(imported)
			break
		}
		if strict {
			p.fail(offset, fmtUnqualifiedTypeInStrictMode(root.Name))
		}
		p.ctx.AddInput(root.Name, nil)
		return nil
	}

	if len(segments) == 1 {
		return t
	}
	return p.verifySegments(offset, t, segments[1:])
}

func (p *Parser) verifySegments(offset int32, t reflect.Type, segments []PathSegment) reflect.Type {
	strict := p.ctx.IsStrictTyping()

	for _, seg := range segments {
		if t == nil || t.Kind() == reflect.Interface {
			return nil
		}
		elem := t
		for elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}

		switch seg.Kind {
		case PropertySegment:
			if seg.Name == "length" && isSized(elem) {
				t = convert.INT_TYPE
				continue
			}
			if member, ok := introspect.Member(t, seg.Name); ok {
				t = member.Type
				continue
			}
			if elem.Kind() == reflect.Map && elem.Key().Kind() == reflect.String {
				t = elem.Elem()
				continue
			}
			if strict {
				p.fail(offset+seg.Offset, fmtUnknownPropertyOfType(seg.Name, t.String()))
			}
			p.warn(offset+seg.Offset, fmtUnknownPropertyOfType(seg.Name, t.String()))
			return nil
		case IndexSegment:
			switch elem.Kind() {
			case reflect.Slice, reflect.Array, reflect.Map:
				t = elem.Elem()
			case reflect.String:
				t = convert.STRING_TYPE
			default:
				return nil
			}
		case CallSegment:
			switch {
			case seg.Name == "size" && len(seg.Args) == 0 && isSized(elem):
				t = convert.INT_TYPE
				continue
			case seg.Name == "isEmpty" && len(seg.Args) == 0 && isSized(elem):
				t = convert.BOOL_TYPE
				continue
			}
			if method, ok := introspect.Method(t, seg.Name); ok {
				t = method.Result
				continue
			}
			if field, ok := introspect.Member(t, seg.Name); ok && field.Type.Kind() == reflect.Func {
				t = nil
				continue
			}
			if strict {
				p.fail(offset+seg.Offset, fmtUnknownMethodOfType(seg.Name, t.String()))
			}
			return nil
		}
	}
	return t
}

func isSized(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String, reflect.Chan:
		return true
	}
	return false
}
