package introspect

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/utils"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrNoConstructor      = errors.New("no suitable constructor")
	ErrInvalidConstructor = errors.New("a constructor should be a function returning a value and optionally an error")

	constructors = cmap.NewWithCustomShardingFunction[reflect.Type, reflect.Value](func(key reflect.Type) uint32 {
		return fnv32(key.String())
	})
)

// RegisterConstructor registers fn as the constructor of the type it returns, a constructor returning *T
// is also registered for T.
func RegisterConstructor(fn any) error {
	fnValue := reflect.ValueOf(fn)
	if fnValue.Kind() != reflect.Func {
		return ErrInvalidConstructor
	}

	fnType := fnValue.Type()
	switch {
	case fnType.NumOut() == 1 && fnType.Out(0) != convert.ERROR_TYPE:
	case fnType.NumOut() == 2 && fnType.Out(1) == convert.ERROR_TYPE:
	default:
		return ErrInvalidConstructor
	}

	result := fnType.Out(0)
	constructors.Set(result, fnValue)
	if result.Kind() == reflect.Pointer {
		constructors.Set(result.Elem(), fnValue)
	}
	return nil
}

func Constructor(t reflect.Type) (reflect.Value, bool) {
	return constructors.Get(t)
}

// NewInstance creates a value of type t from args. The registered constructor is used if any, otherwise
// a pointer to a zero struct is created when there are no arguments and the exported fields of the struct
// are assigned in order when there are as many arguments as exported fields.
func NewInstance(t reflect.Type, args []any) (any, error) {
	if fn, ok := Constructor(t); ok {
		return CallFunc(fn, args)
	}

	if t.Kind() == reflect.Func {
		return nil, fmt.Errorf("%w for %s", ErrNoConstructor, t)
	}

	structType := t
	if t.Kind() == reflect.Pointer {
		structType = t.Elem()
	}

	if len(args) == 0 {
		if structType.Kind() == reflect.Struct || t.Kind() == reflect.Pointer {
			return reflect.New(structType).Interface(), nil
		}
		return reflect.Zero(t).Interface(), nil
	}

	if structType.Kind() != reflect.Struct {
		if len(args) == 1 {
			return convert.Convert(args[0], t)
		}
		return nil, fmt.Errorf("%w for %s with %d arguments", ErrNoConstructor, t, len(args))
	}

	var fields []reflect.StructField
	for _, field := range reflect.VisibleFields(structType) {
		if field.IsExported() && len(field.Index) == 1 {
			fields = append(fields, field)
		}
	}

	if len(fields) != len(args) {
		return nil, fmt.Errorf("%w for %s with %d arguments", ErrNoConstructor, t, len(args))
	}

	ptr := reflect.New(structType)
	for i, field := range fields {
		v, err := Coerce(args[i], field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		ptr.Elem().Field(field.Index[0]).Set(v)
	}
	return ptr.Interface(), nil
}

// CallFunc calls a Go function, args are coerced to the parameter types.
func CallFunc(fn reflect.Value, args []any) (result any, err error) {
	fnType := fn.Type()

	if fnType.IsVariadic() {
		if len(args) < fnType.NumIn()-1 {
			return nil, ErrArgumentCount
		}
	} else if len(args) != fnType.NumIn() {
		return nil, fmt.Errorf("%w: %d expected, %d given", ErrArgumentCount, fnType.NumIn(), len(args))
	}

	in, err := CoerceArgs(args, func(i int) reflect.Type {
		if fnType.IsVariadic() && i >= fnType.NumIn()-1 {
			return fnType.In(fnType.NumIn() - 1).Elem()
		}
		return fnType.In(i)
	})
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			result = nil
			err = fmt.Errorf("function call: %w", utils.ConvertPanicValueToError(e))
		}
	}()

	return Results(fn.Call(in))
}
