package values

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoOperation(t *testing.T) {

	testCases := []struct {
		name   string
		op     Operator
		left   any
		right  any
		result any
	}{
		{"int addition", ADD, 1, 2, 3},
		{"int and int64 promotion", ADD, 1, int64(2), int64(3)},
		{"int and float64 promotion", MULT, 2, 1.5, 3.0},
		{"float32", ADD, float32(1.5), float32(1), float32(2.5)},
		{"float32 and float64 promotion", ADD, float32(1), 2.0, 3.0},
		{"integer division", DIV, 7, 2, 3},
		{"modulo", MOD, 7, 3, 1},
		{"power", POWER, 2, 10, 1024},
		{"negative power", POWER, 2, -1, 0.5},
		{"string concatenation", ADD, "a", 1, "a1"},
		{"string append", STR_APPEND, 1, 2, "12"},
		{"bitwise and", BW_AND, 6, 3, 2},
		{"bitwise or", BW_OR, 4, 1, 5},
		{"bitwise xor", BW_XOR, 5, 1, 4},
		{"shift left", BW_SHIFT_LEFT, 1, 4, 16},
		{"shift right", BW_SHIFT_RIGHT, 16, 2, 4},
		{"unsigned shift right", BW_USHIFT_RIGHT, int64(-1), int64(60), int64(15)},
		{"less than", LTHAN, 1, 2.5, true},
		{"greater or equal", GETHAN, 2, 2, true},
		{"string comparison", LTHAN, "a", "b", true},
		{"numeric equality across types", EQUAL, 1, 1.0, true},
		{"inequality", NEQUAL, "a", "b", true},
		{"nil equality", EQUAL, nil, nil, true},
		{"empty equality", EQUAL, "  ", EMPTY, true},
		{"and", AND, true, false, false},
		{"or", OR, false, true, true},
		{"string contains", CONTAINS, "foobar", "oba", true},
		{"slice contains", CONTAINS, []any{1, 2, 3}, 2, true},
		{"map contains", CONTAINS, map[string]int{"a": 1}, "a", true},
		{"instanceof", INSTANCEOF, "a", convert.STRING_TYPE, true},
		{"convertable_to", CONVERTABLE_TO, "12", convert.INT_TYPE, true},
		{"regex", REGEX, "abc123", "[a-z]+\\d+", true},
		{"partial regex", REGEX, "abc123!", "[a-z]+\\d+", false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result, err := DoOperation(testCase.op, testCase.left, testCase.right)
			require.NoError(t, err)
			assert.Equal(t, testCase.result, result)
		})
	}

	t.Run("integer division by zero", func(t *testing.T) {
		_, err := DoOperation(DIV, 1, 0)
		assert.ErrorIs(t, err, ErrIntDivisionByZero)

		_, err = DoOperation(MOD, int64(1), int64(0))
		assert.ErrorIs(t, err, ErrIntDivisionByZero)
	})

	t.Run("float division by zero", func(t *testing.T) {
		result, err := DoOperation(DIV, 1.0, 0)
		require.NoError(t, err)
		assert.True(t, result.(float64) > 1e300)
	})

	t.Run("incompatible operands", func(t *testing.T) {
		_, err := DoOperation(SUB, "a", 1)
		assert.ErrorIs(t, err, ErrIncompatibleOperands)

		_, err = DoOperation(LTHAN, true, 1)
		assert.ErrorIs(t, err, ErrNotComparable)

		_, err = DoOperation(AND, 1, true)
		assert.ErrorIs(t, err, ErrNonBooleanOperand)
	})

	t.Run("big integers", func(t *testing.T) {
		big1, _ := new(big.Int).SetString("100000000000000000000", 10)
		result, err := DoOperation(ADD, big1, 1)
		require.NoError(t, err)
		assert.Equal(t, "100000000000000000001", result.(*big.Int).String())

		result, err = DoOperation(MULT, big.NewInt(3), 0.5)
		require.NoError(t, err)
		assert.Equal(t, "1.5", result.(*big.Float).Text('f', -1))
	})

	t.Run("big decimals", func(t *testing.T) {
		a, _ := convert.NewBigDecimal().SetString("10.5")
		result, err := DoOperation(MOD, a, 4)
		require.NoError(t, err)
		assert.Equal(t, "2.5", result.(*big.Float).Text('f', -1))

		result, err = DoOperation(POWER, a, 2)
		require.NoError(t, err)
		assert.Equal(t, "110.25", result.(*big.Float).Text('f', -1))
	})

	t.Run("time arithmetic", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		result, err := DoOperation(ADD, start, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, start.Add(time.Hour), result)

		result, err = DoOperation(SUB, start.Add(time.Minute), start)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, result)
	})
}

func TestNegate(t *testing.T) {
	v, err := Negate(3)
	require.NoError(t, err)
	assert.Equal(t, -3, v)

	huge, _ := new(big.Int).SetString("-100000000000000000000", 10)
	v, err = Negate(huge)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", v.(*big.Int).String())

	_, err = Negate("a")
	assert.ErrorIs(t, err, ErrIncompatibleOperands)
}

func TestResultType(t *testing.T) {
	assert.Equal(t, convert.INT_TYPE, ResultType(ADD, convert.INT_TYPE, convert.INT_TYPE))
	assert.Equal(t, convert.FLOAT64_TYPE, ResultType(MULT, convert.INT_TYPE, convert.FLOAT64_TYPE))
	assert.Equal(t, convert.BIG_DECIMAL_TYPE, ResultType(ADD, convert.BIG_INT_TYPE, convert.FLOAT32_TYPE))
	assert.Equal(t, convert.STRING_TYPE, ResultType(ADD, convert.STRING_TYPE, convert.INT_TYPE))
	assert.Equal(t, convert.BOOL_TYPE, ResultType(LTHAN, nil, nil))
	assert.Nil(t, ResultType(ADD, convert.ANY_TYPE, convert.INT_TYPE))
	assert.Nil(t, ResultType(SUB, reflect.TypeOf(struct{}{}), convert.INT_TYPE))
}

func TestPrecedence(t *testing.T) {
	assert.Greater(t, MULT.Precedence(), ADD.Precedence())
	assert.Greater(t, ADD.Precedence(), LTHAN.Precedence())
	assert.Greater(t, LTHAN.Precedence(), EQUAL.Precedence())
	assert.Greater(t, AND.Precedence(), OR.Precedence())
	assert.Greater(t, OR.Precedence(), TERNARY.Precedence())
	assert.Equal(t, -1, Operator(1000).Precedence())
}
