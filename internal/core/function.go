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

var CLOSURE_TYPE = reflect.TypeOf((*Closure)(nil))

// A Closure is a function defined by an expression, it captures the variables of the scope it was defined in.
type Closure struct {
	Def      *ast.Function
	Captured scope.Factory

	ctx, this any
	pctx      *parse.ParserContext
}

func NewClosure(def *ast.Function, ctx, this any, captured scope.Factory) *Closure {
	return &Closure{
		Def:      def,
		Captured: captured,
		ctx:      ctx,
		this:     this,
		pctx:     contextOf(def),
	}
}

func (c *Closure) Name() string {
	if c.Def.Name == "" {
		return "<anonymous>"
	}
	return c.Def.Name
}

func (c *Closure) String() string {
	return "function " + c.Name()
}

// Call runs the body of the closure in a new call frame, parameters are accessible by slot.
func (c *Closure) Call(args []any) (any, error) {
	params := c.Def.Params
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, %d given", introspect.ErrArgumentCount, c.Name(), len(params), len(args))
	}

	values := make([]any, len(args))
	for i, arg := range args {
		if i < len(c.Def.ParamTypes) && c.Def.ParamTypes[i] != nil && arg != nil {
			converted, err := convert.Convert(arg, c.Def.ParamTypes[i])
			if err != nil {
				return nil, fmt.Errorf("parameter %s of %s: %w", params[i], c.Name(), err)
			}
			arg = converted
		}
		values[i] = arg
	}

	frame := scope.NewIndexedFactory(params, values, c.Captured)
	defer scope.ResetTilt(frame)

	return ACCELERATED.sequence(c.Def.Body, c.pctx, c.ctx, c.this, frame)
}

// MakeFunc returns a Go function of type fnType calling the closure. Since the function cannot return
// an error unless its last result is an error, call errors are raised as panics.
func (c *Closure) MakeFunc(fnType reflect.Type) reflect.Value {
	return reflect.MakeFunc(fnType, func(in []reflect.Value) []reflect.Value {
		args := make([]any, 0, len(in))
		for i, arg := range in {
			if fnType.IsVariadic() && i == len(in)-1 {
				for j := 0; j < arg.Len(); j++ {
					args = append(args, arg.Index(j).Interface())
				}
				continue
			}
			args = append(args, arg.Interface())
		}
		result, err := c.Call(args)
		return closureResults(fnType, result, err)
	})
}

func closureResults(fnType reflect.Type, result any, err error) []reflect.Value {
	numOut := fnType.NumOut()
	returnsError := numOut > 0 && fnType.Out(numOut-1) == convert.ERROR_TYPE

	if err != nil && !returnsError {
		panic(err)
	}

	out := make([]reflect.Value, numOut)
	for i := 0; i < numOut; i++ {
		out[i] = reflect.Zero(fnType.Out(i))
	}
	if returnsError && err != nil {
		out[numOut-1] = reflect.ValueOf(&err).Elem()
		return out
	}

	if numOut > 0 && !(returnsError && numOut == 1) && result != nil {
		resultType := fnType.Out(0)
		converted, convErr := introspect.Coerce(result, resultType)
		if convErr != nil {
			if returnsError {
				out[numOut-1] = reflect.ValueOf(&convErr).Elem()
				return out
			}
			panic(convErr)
		}
		out[0] = converted
	}
	return out
}

// callValue calls a closure or a Go function with already evaluated arguments.
func callValue(fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case *Closure:
		return f.Call(args)
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotCallable)
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, rv.Type())
	}
	if rv.IsNil() {
		return nil, fmt.Errorf("%w: nil function", ErrNotCallable)
	}
	return introspect.CallFunc(rv, adaptArgs(args, funcParamType(rv.Type())))
}

// adaptArgs turns the closures passed to function parameters into Go functions of the parameter type.
func adaptArgs(args []any, paramType func(i int) reflect.Type) []any {
	var adapted []any
	for i, arg := range args {
		closure, ok := arg.(*Closure)
		if !ok {
			continue
		}
		t := paramType(i)
		if t == nil || t.Kind() != reflect.Func {
			continue
		}
		if adapted == nil {
			adapted = make([]any, len(args))
			copy(adapted, args)
		}
		adapted[i] = closure.MakeFunc(t).Interface()
	}
	if adapted == nil {
		return args
	}
	return adapted
}
