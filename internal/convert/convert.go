package convert

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrCannotConvert = errors.New("cannot convert")

	//custom converters, keyed by target type.
	converters = cmap.NewWithCustomShardingFunction[reflect.Type, Converter](func(key reflect.Type) uint32 {
		return fnv32(key.String())
	})
)

type Converter func(value any) (any, error)

// RegisterConverter registers a converter that takes precedence over the built-in rules for the target type.
func RegisterConverter(to reflect.Type, fn Converter) {
	converters.Set(to, fn)
}

func UnregisterConverter(to reflect.Type) {
	converters.Remove(to)
}

func customConverter(to reflect.Type) (Converter, bool) {
	if converters.Count() == 0 {
		return nil, false
	}
	return converters.Get(to)
}

// CanConvert reports whether a value of type from may be converted to type to, a nil from stands for the nil value.
// Conversions from strings to numbers are considered possible even if they can fail for some values.
func CanConvert(to, from reflect.Type) bool {
	if to == nil {
		return false
	}
	if from == nil {
		return isNilable(to)
	}
	if to == from || to == ANY_TYPE || from.AssignableTo(to) {
		return true
	}
	if _, ok := customConverter(to); ok {
		return true
	}
	if from.Kind() == reflect.Interface {
		//only known at runtime
		return true
	}

	switch {
	case to.Kind() == reflect.String:
		return true
	case IsNumericType(to):
		return IsNumericType(from) || from.Kind() == reflect.String || from.Kind() == reflect.Bool
	case to.Kind() == reflect.Bool:
		return from.Kind() == reflect.String || IsNumericType(from)
	}

	switch to.Kind() {
	case reflect.Slice, reflect.Array:
		switch from.Kind() {
		case reflect.Slice, reflect.Array:
			return CanConvert(to.Elem(), from.Elem())
		case reflect.String:
			return to.Elem() == RUNE_TYPE || to.Elem() == BYTE_TYPE
		}
		return false
	case reflect.Map:
		return from.Kind() == reflect.Map && CanConvert(to.Key(), from.Key()) && CanConvert(to.Elem(), from.Elem())
	case reflect.Pointer:
		return CanConvert(to.Elem(), from)
	}

	return from.ConvertibleTo(to)
}

// Convert converts value to the type to, it returns an error wrapping ErrCannotConvert on failure.
func Convert(value any, to reflect.Type) (any, error) {
	if to == ANY_TYPE {
		return value, nil
	}

	if fn, ok := customConverter(to); ok {
		return fn(value)
	}

	if value == nil {
		if isNilable(to) {
			return reflect.Zero(to).Interface(), nil
		}
		return nil, fmt.Errorf("%w nil to %s", ErrCannotConvert, to)
	}

	from := reflect.TypeOf(value)
	if from == to {
		return value, nil
	}

	if from.AssignableTo(to) {
		if to.Kind() == reflect.Interface {
			return value, nil
		}
		return reflect.ValueOf(value).Convert(to).Interface(), nil
	}

	switch to {
	case BIG_INT_TYPE:
		return toBigInt(value)
	case BIG_DECIMAL_TYPE:
		return toBigDecimal(value)
	}

	switch {
	case to.Kind() == reflect.String:
		s := ToString(value)
		if to == STRING_TYPE {
			return s, nil
		}
		return reflect.ValueOf(s).Convert(to).Interface(), nil
	case IsIntegerKind(to.Kind()) || IsFloatKind(to.Kind()):
		return toGoNumber(value, to)
	case to.Kind() == reflect.Bool:
		b, err := ToBool(value)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(b).Convert(to).Interface(), nil
	}

	v := reflect.ValueOf(value)

	switch to.Kind() {
	case reflect.Slice:
		switch from.Kind() {
		case reflect.Slice, reflect.Array:
			slice := reflect.MakeSlice(to, v.Len(), v.Len())
			for i := 0; i < v.Len(); i++ {
				elem, err := Convert(v.Index(i).Interface(), to.Elem())
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				setValue(slice.Index(i), elem, to.Elem())
			}
			return slice.Interface(), nil
		case reflect.String:
			if to.Elem() == RUNE_TYPE || to.Elem() == BYTE_TYPE {
				return v.Convert(to).Interface(), nil
			}
		}
	case reflect.Array:
		if from.Kind() == reflect.Slice || from.Kind() == reflect.Array {
			if v.Len() != to.Len() {
				return nil, fmt.Errorf("%w a sequence of length %d to %s", ErrCannotConvert, v.Len(), to)
			}
			array := reflect.New(to).Elem()
			for i := 0; i < v.Len(); i++ {
				elem, err := Convert(v.Index(i).Interface(), to.Elem())
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				setValue(array.Index(i), elem, to.Elem())
			}
			return array.Interface(), nil
		}
	case reflect.Map:
		if from.Kind() == reflect.Map {
			m := reflect.MakeMapWithSize(to, v.Len())
			iter := v.MapRange()
			for iter.Next() {
				key, err := Convert(iter.Key().Interface(), to.Key())
				if err != nil {
					return nil, err
				}
				elem, err := Convert(iter.Value().Interface(), to.Elem())
				if err != nil {
					return nil, err
				}
				m.SetMapIndex(valueOf(key, to.Key()), valueOf(elem, to.Elem()))
			}
			return m.Interface(), nil
		}
	case reflect.Pointer:
		elem, err := Convert(value, to.Elem())
		if err == nil {
			ptr := reflect.New(to.Elem())
			setValue(ptr.Elem(), elem, to.Elem())
			return ptr.Interface(), nil
		}
	}

	if from.ConvertibleTo(to) {
		return v.Convert(to).Interface(), nil
	}

	return nil, fmt.Errorf("%w %s to %s", ErrCannotConvert, from, to)
}

// ConvertTo is the generic version of Convert.
func ConvertTo[T any](value any) (T, error) {
	var zero T
	converted, err := Convert(value, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	if converted == nil {
		return zero, nil
	}
	return converted.(T), nil
}

func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}

func setValue(dst reflect.Value, v any, t reflect.Type) {
	dst.Set(valueOf(v, t))
}

// ToString returns the textual representation of a value, nil is represented by "null".
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case []rune:
		return string(val)
	case *big.Float:
		return val.Text('f', -1)
	case *big.Int:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case reflect.Type:
		return val.String()
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	}
	return fmt.Sprint(v)
}

func ToBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("%w %q to bool", ErrCannotConvert, val)
		}
		return b, nil
	case *big.Int:
		return val.Sign() != 0, nil
	case *big.Float:
		return val.Sign() != 0, nil
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Bool:
		return rv.Bool(), nil
	case IsIntegerKind(rv.Kind()) || IsFloatKind(rv.Kind()):
		f, _ := toFloat64(rv)
		return f != 0, nil
	}
	return false, fmt.Errorf("%w %T to bool", ErrCannotConvert, v)
}

func toFloat64(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toGoNumber(value any, to reflect.Type) (any, error) {
	var rv reflect.Value

	switch val := value.(type) {
	case string:
		s := strings.TrimSpace(val)
		switch {
		case IsFloatKind(to.Kind()):
			f, err := strconv.ParseFloat(s, to.Bits())
			if err != nil {
				return nil, fmt.Errorf("%w %q to %s", ErrCannotConvert, val, to)
			}
			rv = reflect.ValueOf(f)
		case to.Kind() >= reflect.Uint && to.Kind() <= reflect.Uintptr:
			u, err := strconv.ParseUint(s, 0, to.Bits())
			if err != nil {
				return nil, fmt.Errorf("%w %q to %s", ErrCannotConvert, val, to)
			}
			rv = reflect.ValueOf(u)
		default:
			i, err := strconv.ParseInt(s, 0, to.Bits())
			if err != nil {
				return nil, fmt.Errorf("%w %q to %s", ErrCannotConvert, val, to)
			}
			rv = reflect.ValueOf(i)
		}
	case *big.Int:
		if IsFloatKind(to.Kind()) {
			f, _ := new(big.Float).SetInt(val).Float64()
			rv = reflect.ValueOf(f)
		} else if !val.IsInt64() {
			return nil, fmt.Errorf("%w %s to %s: overflow", ErrCannotConvert, val, to)
		} else {
			rv = reflect.ValueOf(val.Int64())
		}
	case *big.Float:
		if IsFloatKind(to.Kind()) {
			f, _ := val.Float64()
			rv = reflect.ValueOf(f)
		} else {
			i, acc := val.Int64()
			if val.IsInf() || (i == math.MaxInt64 && acc == big.Below) || (i == math.MinInt64 && acc == big.Above) {
				return nil, fmt.Errorf("%w %s to %s: overflow", ErrCannotConvert, val.Text('g', 10), to)
			}
			rv = reflect.ValueOf(i)
		}
	case bool:
		if val {
			rv = reflect.ValueOf(1)
		} else {
			rv = reflect.ValueOf(0)
		}
	default:
		rv = reflect.ValueOf(value)
		if !IsIntegerKind(rv.Kind()) && !IsFloatKind(rv.Kind()) {
			return nil, fmt.Errorf("%w %T to %s", ErrCannotConvert, value, to)
		}
	}

	return rv.Convert(to).Interface(), nil
}

func toBigInt(value any) (*big.Int, error) {
	switch val := value.(type) {
	case *big.Int:
		return val, nil
	case *big.Float:
		i, _ := val.Int(nil)
		return i, nil
	case string:
		i, ok := new(big.Int).SetString(strings.TrimSpace(val), 0)
		if !ok {
			return nil, fmt.Errorf("%w %q to big integer", ErrCannotConvert, val)
		}
		return i, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		i, _ := big.NewFloat(rv.Float()).Int(nil)
		return i, nil
	}
	return nil, fmt.Errorf("%w %T to big integer", ErrCannotConvert, value)
}

func toBigDecimal(value any) (*big.Float, error) {
	switch val := value.(type) {
	case *big.Float:
		return val, nil
	case *big.Int:
		return NewBigDecimal().SetInt(val), nil
	case string:
		f, ok := NewBigDecimal().SetString(strings.TrimSpace(val))
		if !ok {
			return nil, fmt.Errorf("%w %q to big decimal", ErrCannotConvert, val)
		}
		return f, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewBigDecimal().SetInt64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewBigDecimal().SetUint64(rv.Uint()), nil
	case reflect.Float32:
		//go through the decimal representation to avoid exposing binary noise (0.1f)
		f, _ := NewBigDecimal().SetString(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
		return f, nil
	case reflect.Float64:
		if math.IsInf(rv.Float(), 0) || math.IsNaN(rv.Float()) {
			return nil, fmt.Errorf("%w %v to big decimal", ErrCannotConvert, rv.Float())
		}
		return NewBigDecimal().SetFloat64(rv.Float()), nil
	}
	return nil, fmt.Errorf("%w %T to big decimal", ErrCannotConvert, value)
}

func fnv32(key string) uint32 {
	hash := uint32(2166136261)
	const prime32 = uint32(16777619)
	for i := 0; i < len(key); i++ {
		hash *= prime32
		hash ^= uint32(key[i])
	}
	return hash
}
