package values

import (
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/inoxlang/evalx/internal/convert"
)

// EmptyValue is the value of the 'empty' literal, it is equal to nil, blank strings and zero-length collections.
type EmptyValue struct{}

func (EmptyValue) String() string {
	return "empty"
}

var EMPTY = EmptyValue{}

// LITERALS maps the literal keywords to their value.
var LITERALS = map[string]any{
	"true":  true,
	"false": false,
	"null":  nil,
	"nil":   nil,
	"empty": EMPTY,
}

// BUILTIN_TYPES maps the type names usable in declarations, casts and class literals to their Go type.
var BUILTIN_TYPES = map[string]reflect.Type{
	"int":        convert.INT_TYPE,
	"long":       convert.INT64_TYPE,
	"int64":      convert.INT64_TYPE,
	"int32":      reflect.TypeOf(int32(0)),
	"short":      reflect.TypeOf(int16(0)),
	"byte":       convert.BYTE_TYPE,
	"char":       convert.RUNE_TYPE,
	"rune":       convert.RUNE_TYPE,
	"float":      convert.FLOAT32_TYPE,
	"float32":    convert.FLOAT32_TYPE,
	"double":     convert.FLOAT64_TYPE,
	"float64":    convert.FLOAT64_TYPE,
	"boolean":    convert.BOOL_TYPE,
	"bool":       convert.BOOL_TYPE,
	"String":     convert.STRING_TYPE,
	"string":     convert.STRING_TYPE,
	"Object":     convert.ANY_TYPE,
	"any":        convert.ANY_TYPE,
	"BigInteger": convert.BIG_INT_TYPE,
	"BigDecimal": convert.BIG_DECIMAL_TYPE,
	"List":       convert.LIST_TYPE,
	"Map":        convert.MAP_TYPE,
	"Time":       reflect.TypeOf(time.Time{}),
	"Duration":   reflect.TypeOf(time.Duration(0)),
	"Class":      convert.TYPE_TYPE,
}

func IsBuiltinTypeName(name string) bool {
	_, ok := BUILTIN_TYPES[name]
	return ok
}

// IsEmpty reports whether v is nil, a blank string, a zero-length collection or EMPTY.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil, EmptyValue:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	case *big.Int, *big.Float, bool:
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() == 0
	case reflect.String:
		return strings.TrimSpace(rv.String()) == ""
	case reflect.Pointer, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
