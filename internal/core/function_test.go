package core

import (
	"reflect"
	"strings"
	"testing"

	"github.com/inoxlang/evalx/internal/introspect"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosure(t *testing.T) {

	t.Run("named function", func(t *testing.T) {
		assert.EqualValues(t, 3, execute(t, "def add(a, b) { a + b }; add(1, 2)", nil, nil))
	})

	t.Run("recursion", func(t *testing.T) {
		source := "def fact(n) { if (n <= 1) { return 1 } return n * fact(n - 1) }; fact(5)"
		assert.EqualValues(t, 120, execute(t, source, nil, nil))
	})

	t.Run("return only leaves the function", func(t *testing.T) {
		source := "def first() { return 1; 2 }; x = first(); x + 10"
		assert.EqualValues(t, 11, execute(t, source, nil, nil))
	})

	t.Run("captured variables", func(t *testing.T) {
		vars := map[string]any{"base": 10}
		assert.EqualValues(t, 15, execute(t, "def plus(n) { base + n }; plus(5)", nil, vars))

		//the function is stored as a variable
		assert.IsType(t, (*Closure)(nil), vars["plus"])
	})

	t.Run("wrong argument count", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "def add(a, b) { a + b }; add(1)"), nil, nil)
		assert.ErrorIs(t, err, introspect.ErrArgumentCount)
	})

	t.Run("typed parameters are converted", func(t *testing.T) {
		assert.EqualValues(t, 3, execute(t, "def inc(int n) { n + 1 }; inc('2')", nil, nil))
	})

	t.Run("Go function", func(t *testing.T) {
		vars := map[string]any{"upper": strings.ToUpper}
		assert.Equal(t, "ABC", execute(t, "upper('abc')", nil, vars))
	})

	t.Run("closure passed to a Go function", func(t *testing.T) {
		vars := map[string]any{
			"apply": func(f func(int) int, v int) int { return f(v) },
		}
		assert.Equal(t, 42, execute(t, "apply(def (x) { x * 2 }, 21)", nil, vars))
	})

	t.Run("not callable", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "f(1)"), nil, scope.NewMapFactory(map[string]any{"f": 1}))
		assert.ErrorIs(t, err, ErrNotCallable)
	})
}

func TestClosureMakeFunc(t *testing.T) {
	result, err := Execute(compileExpr(t, "def (a, b) { a * b }"), nil, nil)
	require.NoError(t, err)
	closure := result.(*Closure)

	t.Run("function without error result", func(t *testing.T) {
		fn := closure.MakeFunc(reflect.TypeOf(func(int, int) int { return 0 })).Interface().(func(int, int) int)
		assert.Equal(t, 6, fn(2, 3))
	})

	t.Run("function with error result", func(t *testing.T) {
		fn := closure.MakeFunc(reflect.TypeOf(func(int) (int, error) { return 0, nil })).Interface().(func(int) (int, error))
		_, err := fn(2)
		assert.ErrorIs(t, err, introspect.ErrArgumentCount)
	})

	t.Run("variadic function", func(t *testing.T) {
		fn := closure.MakeFunc(reflect.TypeOf(func(...int) int { return 0 })).Interface().(func(...int) int)
		assert.Equal(t, 20, fn(4, 5))
	})
}
