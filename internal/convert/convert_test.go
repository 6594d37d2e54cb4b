package convert

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type celsius float64

func TestConvert(t *testing.T) {

	t.Run("numbers", func(t *testing.T) {
		v, err := Convert(3, FLOAT64_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 3.0, v)

		v, err = Convert(3.9, INT_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 3, v)

		v, err = Convert(int64(7), reflect.TypeOf(celsius(0)))
		require.NoError(t, err)
		assert.Equal(t, celsius(7), v)
	})

	t.Run("strings", func(t *testing.T) {
		v, err := Convert("42", INT_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 42, v)

		v, err = Convert(" 2.5 ", FLOAT32_TYPE)
		require.NoError(t, err)
		assert.Equal(t, float32(2.5), v)

		v, err = Convert(12, STRING_TYPE)
		require.NoError(t, err)
		assert.Equal(t, "12", v)

		v, err = Convert("true", BOOL_TYPE)
		require.NoError(t, err)
		assert.Equal(t, true, v)

		_, err = Convert("abc", INT_TYPE)
		assert.ErrorIs(t, err, ErrCannotConvert)
	})

	t.Run("big numbers", func(t *testing.T) {
		v, err := Convert(10, BIG_INT_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 0, v.(*big.Int).Cmp(big.NewInt(10)))

		v, err = Convert("1.25", BIG_DECIMAL_TYPE)
		require.NoError(t, err)
		assert.Equal(t, "1.25", v.(*big.Float).Text('f', -1))

		v, err = Convert(big.NewInt(5), INT_TYPE)
		require.NoError(t, err)
		assert.Equal(t, 5, v)

		huge, _ := new(big.Int).SetString("100000000000000000000000", 10)
		_, err = Convert(huge, INT64_TYPE)
		assert.ErrorIs(t, err, ErrCannotConvert)
	})

	t.Run("nil", func(t *testing.T) {
		v, err := Convert(nil, LIST_TYPE)
		require.NoError(t, err)
		assert.Equal(t, []any(nil), v)

		_, err = Convert(nil, INT_TYPE)
		assert.ErrorIs(t, err, ErrCannotConvert)
	})

	t.Run("collections", func(t *testing.T) {
		v, err := Convert([]any{1, "2", 3.0}, reflect.TypeOf([]int(nil)))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, v)

		v, err = Convert([]int{1, 2}, reflect.TypeOf([2]string{}))
		require.NoError(t, err)
		assert.Equal(t, [2]string{"1", "2"}, v)

		v, err = Convert(map[string]any{"a": 1}, reflect.TypeOf(map[string]float64(nil)))
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"a": 1}, v)
	})

	t.Run("custom converter", func(t *testing.T) {
		type point struct{ X, Y int }
		pointType := reflect.TypeOf(point{})

		RegisterConverter(pointType, func(value any) (any, error) {
			n, err := ConvertTo[int](value)
			if err != nil {
				return nil, err
			}
			return point{n, n}, nil
		})
		defer UnregisterConverter(pointType)

		v, err := Convert("3", pointType)
		require.NoError(t, err)
		assert.Equal(t, point{3, 3}, v)
		assert.True(t, CanConvert(pointType, STRING_TYPE))
	})
}

func TestCanConvert(t *testing.T) {
	assert.True(t, CanConvert(INT_TYPE, FLOAT64_TYPE))
	assert.True(t, CanConvert(INT_TYPE, STRING_TYPE))
	assert.True(t, CanConvert(STRING_TYPE, INT_TYPE))
	assert.True(t, CanConvert(ANY_TYPE, INT_TYPE))
	assert.True(t, CanConvert(reflect.TypeOf([]int(nil)), LIST_TYPE))
	assert.True(t, CanConvert(LIST_TYPE, nil))
	assert.False(t, CanConvert(INT_TYPE, nil))
	assert.False(t, CanConvert(reflect.TypeOf(struct{}{}), INT_TYPE))
	assert.False(t, CanConvert(MAP_TYPE, LIST_TYPE))
}
