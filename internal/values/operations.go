package values

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/inoxlang/evalx/internal/convert"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrIntDivisionByZero    = errors.New("integer division by zero")
	ErrDivisionByZero       = errors.New("division by zero")
	ErrIncompatibleOperands = errors.New("incompatible operands")
	ErrUnsupportedOperator  = errors.New("unsupported operator")
	ErrNotComparable        = errors.New("values are not comparable")
	ErrNonBooleanOperand    = errors.New("operand is not a boolean")
	ErrNegativeShiftCount   = errors.New("negative shift count")
	ErrNotAType             = errors.New("right operand is not a type")
	ErrInvalidPattern       = errors.New("invalid regular expression")

	compiledPatterns = cmap.New[*regexp2.Regexp]()
)

// DoOperation applies a binary operator to two values, && and || are applied without short-circuiting.
func DoOperation(op Operator, left, right any) (any, error) {
	switch op {
	case EQUAL:
		return Equal(left, right), nil
	case NEQUAL:
		return !Equal(left, right), nil
	case LTHAN, GTHAN, LETHAN, GETHAN:
		c, err := Compare(left, right)
		if err != nil {
			return nil, err
		}
		switch op {
		case LTHAN:
			return c < 0, nil
		case GTHAN:
			return c > 0, nil
		case LETHAN:
			return c <= 0, nil
		default:
			return c >= 0, nil
		}
	case AND, OR:
		l, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: left operand of %s is %s", ErrNonBooleanOperand, op, describe(left))
		}
		r, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: right operand of %s is %s", ErrNonBooleanOperand, op, describe(right))
		}
		if op == AND {
			return l && r, nil
		}
		return l || r, nil
	case STR_APPEND:
		return convert.ToString(left) + convert.ToString(right), nil
	case CONTAINS:
		return Contains(left, right)
	case INSTANCEOF:
		return InstanceOf(left, right)
	case CONVERTABLE_TO:
		return ConvertableTo(left, right)
	case REGEX:
		return RegexMatch(left, right)
	case ADD:
		_, isLeftString := left.(string)
		_, isRightString := right.(string)
		if isLeftString || isRightString {
			return convert.ToString(left) + convert.ToString(right), nil
		}
		if t, ok := left.(time.Time); ok {
			if d, ok := right.(time.Duration); ok {
				return t.Add(d), nil
			}
		}
	case SUB:
		if t, ok := left.(time.Time); ok {
			switch r := right.(type) {
			case time.Duration:
				return t.Add(-r), nil
			case time.Time:
				return t.Sub(r), nil
			}
		}
	}

	if op.IsArithmetic() || op.IsBitwise() {
		return arithmetic(op, left, right)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

// ResultType returns the static type of the result of op applied to operands of the given types, nil if unknown.
func ResultType(op Operator, left, right reflect.Type) reflect.Type {
	switch {
	case op.IsComparison(), op.IsBoolean(), op == CONTAINS, op == INSTANCEOF, op == CONVERTABLE_TO, op == REGEX:
		return convert.BOOL_TYPE
	case op == STR_APPEND:
		return convert.STRING_TYPE
	case op == ADD && (left == convert.STRING_TYPE || right == convert.STRING_TYPE):
		return convert.STRING_TYPE
	case op.IsArithmetic() || op.IsBitwise():
		if op == POWER && left != nil && right != nil && left.Kind() != reflect.Float64 && left.Kind() != reflect.Float32 {
			//a negative exponent produces a float
			return nil
		}
		return PromotedType(left, right)
	}
	return nil
}

func Equal(left, right any) bool {
	if _, ok := left.(EmptyValue); ok {
		return IsEmpty(right)
	}
	if _, ok := right.(EmptyValue); ok {
		return IsEmpty(left)
	}

	leftNil, rightNil := isNil(left), isNil(right)
	if leftNil || rightNil {
		return leftNil == rightNil
	}

	if IsNumber(left) && IsNumber(right) {
		return compareNumbers(left, right) == 0
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case time.Time:
		r, ok := right.(time.Time)
		return ok && l.Equal(r)
	}

	lt, rt := reflect.TypeOf(left), reflect.TypeOf(right)
	if lt == rt && lt.Comparable() {
		comparable := true
		if lt.Kind() == reflect.Struct || lt.Kind() == reflect.Array {
			comparable = reflect.ValueOf(left).Comparable()
		}
		if comparable {
			return left == right
		}
	}
	return reflect.DeepEqual(left, right)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Compare returns -1, 0 or +1 depending on whether left is less, equal or greater than right.
func Compare(left, right any) (int, error) {
	if IsNumber(left) && IsNumber(right) {
		return compareNumbers(left, right), nil
	}

	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return strings.Compare(l, r), nil
		}
	case time.Time:
		if r, ok := right.(time.Time); ok {
			return l.Compare(r), nil
		}
	}

	return 0, fmt.Errorf("%w: %s and %s", ErrNotComparable, describe(left), describe(right))
}

// Contains reports whether a string contains a substring, a sequence an element, or a map a key.
func Contains(container, element any) (bool, error) {
	switch c := container.(type) {
	case nil:
		return false, nil
	case string:
		if r, ok := element.(rune); ok {
			return strings.ContainsRune(c, r), nil
		}
		return strings.Contains(c, convert.ToString(element)), nil
	case []any:
		for _, e := range c {
			if Equal(e, element) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		key, ok := element.(string)
		if !ok {
			return false, nil
		}
		_, ok = c[key]
		return ok, nil
	}

	rv := reflect.ValueOf(container)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if Equal(rv.Index(i).Interface(), element) {
				return true, nil
			}
		}
		return false, nil
	case reflect.Map:
		key, err := convert.Convert(element, rv.Type().Key())
		if err != nil {
			return false, nil
		}
		var keyValue reflect.Value
		if key == nil {
			keyValue = reflect.Zero(rv.Type().Key())
		} else {
			keyValue = reflect.ValueOf(key)
		}
		return rv.MapIndex(keyValue).IsValid(), nil
	case reflect.String:
		return strings.Contains(rv.String(), convert.ToString(element)), nil
	}

	return false, fmt.Errorf("%w: %s cannot contain elements", ErrIncompatibleOperands, describe(container))
}

func InstanceOf(value, typ any) (bool, error) {
	t, ok := typ.(reflect.Type)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotAType, describe(typ))
	}
	if value == nil {
		return false, nil
	}
	if t == convert.ANY_TYPE {
		return true, nil
	}
	return reflect.TypeOf(value).AssignableTo(t), nil
}

func ConvertableTo(value, typ any) (bool, error) {
	t, ok := typ.(reflect.Type)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotAType, describe(typ))
	}
	var from reflect.Type
	if value != nil {
		from = reflect.TypeOf(value)
	}
	return convert.CanConvert(t, from), nil
}

// CompilePattern compiles a pattern that has to match whole subjects, compiled patterns are shared.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	if re, ok := compiledPatterns.Get(pattern); ok {
		return re, nil
	}

	re, err := regexp2.Compile(`\A(?:`+pattern+`)\z`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	compiledPatterns.Set(pattern, re)
	return re, nil
}

// RegexMatch reports whether the textual representation of subject entirely matches pattern.
func RegexMatch(subject, pattern any) (bool, error) {
	var re *regexp2.Regexp

	switch p := pattern.(type) {
	case *regexp2.Regexp:
		re = p
	case string:
		compiled, err := CompilePattern(p)
		if err != nil {
			return false, err
		}
		re = compiled
	default:
		return false, fmt.Errorf("%w: pattern is %s", ErrIncompatibleOperands, describe(pattern))
	}

	if subject == nil {
		return false, nil
	}
	return re.MatchString(convert.ToString(subject))
}

// AsBool returns the boolean value of a condition.
func AsBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case *bool:
		if b != nil {
			return *b, nil
		}
	}
	return false, fmt.Errorf("%w: condition is %s", ErrNonBooleanOperand, describe(v))
}

func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("a string (%q)", val)
	case *big.Int:
		return "a big integer"
	case *big.Float:
		return "a big decimal"
	}
	return fmt.Sprintf("a value of type %T", v)
}
