package convert

import (
	"math/big"
	"reflect"
)

const BIG_DECIMAL_PRECISION = 128

var (
	ANY_TYPE         = reflect.TypeOf((*any)(nil)).Elem()
	ERROR_TYPE       = reflect.TypeOf((*error)(nil)).Elem()
	STRING_TYPE      = reflect.TypeOf("")
	BOOL_TYPE        = reflect.TypeOf(false)
	INT_TYPE         = reflect.TypeOf(0)
	INT64_TYPE       = reflect.TypeOf(int64(0))
	FLOAT32_TYPE     = reflect.TypeOf(float32(0))
	FLOAT64_TYPE     = reflect.TypeOf(float64(0))
	RUNE_TYPE        = reflect.TypeOf(rune(0))
	BYTE_TYPE        = reflect.TypeOf(byte(0))
	BIG_INT_TYPE     = reflect.TypeOf((*big.Int)(nil))
	BIG_DECIMAL_TYPE = reflect.TypeOf((*big.Float)(nil))
	TYPE_TYPE        = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	LIST_TYPE        = reflect.TypeOf([]any(nil))
	MAP_TYPE         = reflect.TypeOf(map[string]any(nil))
	ANY_MAP_TYPE     = reflect.TypeOf(map[any]any(nil))
)

func NewBigDecimal() *big.Float {
	return new(big.Float).SetPrec(BIG_DECIMAL_PRECISION)
}

// TypeOf returns the type of v, ANY_TYPE for nil.
func TypeOf(v any) reflect.Type {
	if v == nil {
		return ANY_TYPE
	}
	return reflect.TypeOf(v)
}

func IsIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func IsFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// IsNumericType reports whether t is a Go numeric type or one of the two big number types.
func IsNumericType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t == BIG_INT_TYPE || t == BIG_DECIMAL_TYPE {
		return true
	}
	return IsIntegerKind(t.Kind()) || IsFloatKind(t.Kind())
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
