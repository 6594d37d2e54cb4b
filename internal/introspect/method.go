package introspect

import (
	"fmt"
	"reflect"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/utils"
)

// MethodInfo describes a method of a type, receiver excluded from the parameters.
type MethodInfo struct {
	Method          reflect.Method
	PointerReceiver bool //the method is declared on *T and the type is T
	NumIn           int
	Params          []reflect.Type
	Variadic        bool
	Result          reflect.Type //nil if the method returns nothing
	ReturnsError    bool         //the last result is an error
}

func (m MethodInfo) Name() string {
	return m.Method.Name
}

// Method resolves the exported method named name or Name on t, methods declared on *T are also found for T.
func Method(t reflect.Type, name string) (MethodInfo, bool) {
	key := memberKey{typ: t, name: name}
	if info, ok := methods.Get(key); ok {
		return info, info.Method.Type != nil
	}

	info, ok := findMethod(t, name)
	if !ok && Capitalize(name) != name {
		info, ok = findMethod(t, Capitalize(name))
	}
	methods.Set(key, info)
	return info, ok
}

func findMethod(t reflect.Type, name string) (MethodInfo, bool) {
	method, ok := t.MethodByName(name)
	pointerReceiver := false

	if !ok && t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		method, ok = reflect.PointerTo(t).MethodByName(name)
		pointerReceiver = ok
	}
	if !ok || !method.IsExported() {
		return MethodInfo{}, false
	}

	methodType := method.Type
	firstParam := 1
	if t.Kind() == reflect.Interface {
		//the receiver is not part of the signature
		firstParam = 0
	}

	info := MethodInfo{
		Method:          method,
		PointerReceiver: pointerReceiver,
		NumIn:           methodType.NumIn() - firstParam,
		Variadic:        methodType.IsVariadic(),
	}
	for i := firstParam; i < methodType.NumIn(); i++ {
		info.Params = append(info.Params, methodType.In(i))
	}

	switch methodType.NumOut() {
	case 0:
	case 1:
		if methodType.Out(0) == convert.ERROR_TYPE {
			info.ReturnsError = true
		} else {
			info.Result = methodType.Out(0)
		}
	default:
		info.Result = methodType.Out(0)
		info.ReturnsError = methodType.Out(methodType.NumOut()-1) == convert.ERROR_TYPE
	}
	return info, true
}

// ParamType returns the type of the argument at index i, taking variadic parameters into account.
func (m MethodInfo) ParamType(i int) reflect.Type {
	if m.Variadic && i >= m.NumIn-1 {
		return m.Params[m.NumIn-1].Elem()
	}
	if i < len(m.Params) {
		return m.Params[i]
	}
	return nil
}

// AcceptsArgCount reports whether the method can be called with n arguments.
func (m MethodInfo) AcceptsArgCount(n int) bool {
	if m.Variadic {
		return n >= m.NumIn-1
	}
	return n == m.NumIn
}

// Call invokes the method on recv, args are coerced to the parameter types.
func (m MethodInfo) Call(recv reflect.Value, args []any) (any, error) {
	in, err := m.CoerceArgs(args)
	if err != nil {
		return nil, err
	}
	return m.CallValues(recv, in)
}

func (m MethodInfo) CoerceArgs(args []any) ([]reflect.Value, error) {
	if !m.AcceptsArgCount(len(args)) {
		return nil, fmt.Errorf("method %s: %w", m.Method.Name, ErrArgumentCount)
	}
	return CoerceArgs(args, m.ParamType)
}

// CallValues invokes the method with arguments that are already of the right types.
func (m MethodInfo) CallValues(recv reflect.Value, args []reflect.Value) (result any, err error) {
	if !recv.IsValid() {
		return nil, fmt.Errorf("%w: cannot call %s", ErrNilReceiver, m.Method.Name)
	}

	if m.PointerReceiver && recv.Kind() != reflect.Pointer {
		if recv.CanAddr() {
			recv = recv.Addr()
		} else {
			ptr := reflect.New(recv.Type())
			ptr.Elem().Set(recv)
			recv = ptr
		}
	}

	defer func() {
		if e := recover(); e != nil {
			result = nil
			err = fmt.Errorf("method %s: %w", m.Method.Name, utils.ConvertPanicValueToError(e))
		}
	}()

	var out []reflect.Value
	if m.Method.Func.IsValid() {
		out = m.Method.Func.Call(append([]reflect.Value{recv}, args...))
	} else {
		//method of an interface type
		out = recv.MethodByName(m.Method.Name).Call(args)
	}

	return Results(out)
}

// Results converts the results of a reflective call into a value and an error.
func Results(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}

	last := out[len(out)-1]
	if last.Type() == convert.ERROR_TYPE {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		if len(out) == 1 {
			return nil, nil
		}
	}
	return out[0].Interface(), nil
}

// CoerceArgs coerces args to the types returned by paramType.
func CoerceArgs(args []any, paramType func(i int) reflect.Type) ([]reflect.Value, error) {
	values := make([]reflect.Value, len(args))
	for i, arg := range args {
		t := paramType(i)
		if t == nil {
			return nil, ErrArgumentCount
		}
		v, err := Coerce(arg, t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}
