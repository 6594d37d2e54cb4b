package values

import (
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/inoxlang/evalx/internal/convert"
	"golang.org/x/exp/constraints"
)

// numKind is the position of a numeric value in the promotion lattice.
type numKind int8

const (
	notNumeric numKind = iota
	intKind
	int64Kind
	float32Kind
	float64Kind
	bigIntKind
	bigDecimalKind
)

var NUM_KIND_TYPES = [...]reflect.Type{
	intKind:        convert.INT_TYPE,
	int64Kind:      convert.INT64_TYPE,
	float32Kind:    convert.FLOAT32_TYPE,
	float64Kind:    convert.FLOAT64_TYPE,
	bigIntKind:     convert.BIG_INT_TYPE,
	bigDecimalKind: convert.BIG_DECIMAL_TYPE,
}

func kindOf(v any) numKind {
	switch v.(type) {
	case int, int8, int16, int32, uint8, uint16:
		return intKind
	case int64, uint32, uint, uint64, uintptr:
		return int64Kind
	case float32:
		return float32Kind
	case float64:
		return float64Kind
	case *big.Int:
		return bigIntKind
	case *big.Float:
		return bigDecimalKind
	case nil, string, bool:
		return notNumeric
	}
	if v == nil {
		return notNumeric
	}
	return kindOfType(reflect.TypeOf(v))
}

func kindOfType(t reflect.Type) numKind {
	switch t {
	case convert.BIG_INT_TYPE:
		return bigIntKind
	case convert.BIG_DECIMAL_TYPE:
		return bigDecimalKind
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return intKind
	case reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return int64Kind
	case reflect.Float32:
		return float32Kind
	case reflect.Float64:
		return float64Kind
	}
	return notNumeric
}

func promote(a, b numKind) numKind {
	if (a == bigIntKind && (b == float32Kind || b == float64Kind)) || (b == bigIntKind && (a == float32Kind || a == float64Kind)) {
		return bigDecimalKind
	}
	return max(a, b)
}

func IsNumber(v any) bool {
	return kindOf(v) != notNumeric
}

// PromotedType returns the type of the result of an arithmetic operation between values of types a and b,
// nil is returned if one of the types is not numeric.
func PromotedType(a, b reflect.Type) reflect.Type {
	if !convert.IsNumericType(a) || !convert.IsNumericType(b) {
		return nil
	}
	return NUM_KIND_TYPES[promote(kindOfType(a), kindOfType(b))]
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case *big.Int:
		return n.Int64()
	case *big.Float:
		i, _ := n.Int64()
		return i
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return rv.Int()
	case rv.CanUint():
		return int64(rv.Uint())
	case rv.CanFloat():
		return int64(rv.Float())
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case *big.Float:
		f, _ := n.Float64()
		return f
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int())
	case rv.CanUint():
		return float64(rv.Uint())
	case rv.CanFloat():
		return rv.Float()
	}
	return 0
}

func asBigInt(v any) *big.Int {
	i, err := convert.ConvertTo[*big.Int](v)
	if err != nil {
		return new(big.Int)
	}
	return i
}

func asBigDecimal(v any) *big.Float {
	f, err := convert.ConvertTo[*big.Float](v)
	if err != nil {
		return convert.NewBigDecimal()
	}
	return f
}

func arithmetic(op Operator, left, right any) (any, error) {
	lk, rk := kindOf(left), kindOf(right)
	if lk == notNumeric || rk == notNumeric {
		return nil, fmt.Errorf("%w: %s %s %s", ErrIncompatibleOperands, describe(left), op, describe(right))
	}

	switch promote(lk, rk) {
	case intKind:
		return integerOperation(op, int(asInt64(left)), int(asInt64(right)))
	case int64Kind:
		return integerOperation(op, asInt64(left), asInt64(right))
	case float32Kind:
		return floatOperation(op, float32(asFloat64(left)), float32(asFloat64(right)))
	case float64Kind:
		return floatOperation(op, asFloat64(left), asFloat64(right))
	case bigIntKind:
		return bigIntOperation(op, asBigInt(left), asBigInt(right))
	default:
		return bigDecimalOperation(op, asBigDecimal(left), asBigDecimal(right))
	}
}

func integerOperation[T constraints.Signed](op Operator, a, b T) (any, error) {
	switch op {
	case ADD:
		return a + b, nil
	case SUB:
		return a - b, nil
	case MULT:
		return a * b, nil
	case DIV:
		if b == 0 {
			return nil, ErrIntDivisionByZero
		}
		return a / b, nil
	case MOD:
		if b == 0 {
			return nil, ErrIntDivisionByZero
		}
		return a % b, nil
	case POWER:
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		return intPow(a, b), nil
	case BW_AND:
		return a & b, nil
	case BW_OR:
		return a | b, nil
	case BW_XOR:
		return a ^ b, nil
	case BW_SHIFT_LEFT, BW_SHIFT_RIGHT, BW_USHIFT_RIGHT:
		if b < 0 {
			return nil, ErrNegativeShiftCount
		}
		switch op {
		case BW_SHIFT_LEFT:
			return a << b, nil
		case BW_SHIFT_RIGHT:
			return a >> b, nil
		default:
			return T(uint64(a) >> b), nil
		}
	}
	return nil, fmt.Errorf("%w: %s on integers", ErrUnsupportedOperator, op)
}

func intPow[T constraints.Signed](base, exp T) T {
	result := T(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func floatOperation[T constraints.Float](op Operator, a, b T) (any, error) {
	switch op {
	case ADD:
		return a + b, nil
	case SUB:
		return a - b, nil
	case MULT:
		return a * b, nil
	case DIV:
		return a / b, nil
	case MOD:
		return T(math.Mod(float64(a), float64(b))), nil
	case POWER:
		return T(math.Pow(float64(a), float64(b))), nil
	}
	return nil, fmt.Errorf("%w: %s on floating point numbers", ErrUnsupportedOperator, op)
}

func bigIntOperation(op Operator, a, b *big.Int) (any, error) {
	result := new(big.Int)

	switch op {
	case ADD:
		return result.Add(a, b), nil
	case SUB:
		return result.Sub(a, b), nil
	case MULT:
		return result.Mul(a, b), nil
	case DIV:
		if b.Sign() == 0 {
			return nil, ErrIntDivisionByZero
		}
		return result.Quo(a, b), nil
	case MOD:
		if b.Sign() == 0 {
			return nil, ErrIntDivisionByZero
		}
		return result.Rem(a, b), nil
	case POWER:
		if b.Sign() < 0 {
			return bigDecimalOperation(op, convert.NewBigDecimal().SetInt(a), convert.NewBigDecimal().SetInt(b))
		}
		return result.Exp(a, b, nil), nil
	case BW_AND:
		return result.And(a, b), nil
	case BW_OR:
		return result.Or(a, b), nil
	case BW_XOR:
		return result.Xor(a, b), nil
	case BW_SHIFT_LEFT, BW_SHIFT_RIGHT, BW_USHIFT_RIGHT:
		if b.Sign() < 0 {
			return nil, ErrNegativeShiftCount
		}
		if op == BW_SHIFT_LEFT {
			return result.Lsh(a, uint(b.Uint64())), nil
		}
		return result.Rsh(a, uint(b.Uint64())), nil
	}
	return nil, fmt.Errorf("%w: %s on big integers", ErrUnsupportedOperator, op)
}

func bigDecimalOperation(op Operator, a, b *big.Float) (any, error) {
	result := convert.NewBigDecimal()

	switch op {
	case ADD:
		return result.Add(a, b), nil
	case SUB:
		return result.Sub(a, b), nil
	case MULT:
		return result.Mul(a, b), nil
	case DIV:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		return result.Quo(a, b), nil
	case MOD:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		quotient, _ := result.Quo(a, b).Int(nil)
		truncated := convert.NewBigDecimal().SetInt(quotient)
		return convert.NewBigDecimal().Sub(a, truncated.Mul(truncated, b)), nil
	case POWER:
		if !b.IsInt() {
			f, _ := a.Float64()
			e, _ := b.Float64()
			pow := math.Pow(f, e)
			if math.IsNaN(pow) || math.IsInf(pow, 0) {
				return nil, fmt.Errorf("%w: %s ** %s is not a finite number", ErrIncompatibleOperands, a.Text('g', 10), b.Text('g', 10))
			}
			return result.SetFloat64(pow), nil
		}
		exp, _ := b.Int64()
		negative := exp < 0
		if negative {
			exp = -exp
		}
		result.SetInt64(1)
		base := convert.NewBigDecimal().Set(a)
		for exp > 0 {
			if exp&1 == 1 {
				result.Mul(result, base)
			}
			base.Mul(base, base)
			exp >>= 1
		}
		if negative {
			return convert.NewBigDecimal().Quo(convert.NewBigDecimal().SetInt64(1), result), nil
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: %s on big decimals", ErrUnsupportedOperator, op)
}

// Negate returns the opposite of a number, big numbers are negated without going through a Go number.
func Negate(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return -n, nil
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	case float32:
		return -n, nil
	case *big.Int:
		return new(big.Int).Neg(n), nil
	case *big.Float:
		return convert.NewBigDecimal().Neg(n), nil
	}

	switch kindOf(v) {
	case intKind:
		return -int(asInt64(v)), nil
	case int64Kind:
		return -asInt64(v), nil
	case float32Kind:
		return -float32(asFloat64(v)), nil
	case float64Kind:
		return -asFloat64(v), nil
	}
	return nil, fmt.Errorf("%w: cannot negate %s", ErrIncompatibleOperands, describe(v))
}

func BitwiseNot(v any) (any, error) {
	switch kindOf(v) {
	case intKind:
		return ^int(asInt64(v)), nil
	case int64Kind:
		return ^asInt64(v), nil
	case bigIntKind:
		return new(big.Int).Not(v.(*big.Int)), nil
	}
	return nil, fmt.Errorf("%w: cannot invert the bits of %s", ErrIncompatibleOperands, describe(v))
}

func compareNumbers(left, right any) int {
	switch promote(kindOf(left), kindOf(right)) {
	case intKind, int64Kind:
		a, b := asInt64(left), asInt64(right)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case float32Kind, float64Kind:
		a, b := asFloat64(left), asFloat64(right)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	case bigIntKind:
		return asBigInt(left).Cmp(asBigInt(right))
	default:
		return asBigDecimal(left).Cmp(asBigDecimal(right))
	}
}
