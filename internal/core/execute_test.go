package core

import (
	"strings"
	"testing"

	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAddress struct {
	City string
}

type testPerson struct {
	Name    string
	Age     int
	Address *testAddress
	Tags    []string
}

func (p *testPerson) Greet(greeting string) string {
	return greeting + " " + p.Name
}

func newTestPerson() *testPerson {
	return &testPerson{
		Name:    "Bob",
		Age:     30,
		Address: &testAddress{City: "Paris"},
		Tags:    []string{"a", "b"},
	}
}

func compileExpr(t *testing.T, source string) *parse.CompiledExpression {
	t.Helper()
	expr, err := parse.Compile(source, parse.MustNewParserContext(parse.ParserConfiguration{}))
	require.NoError(t, err)
	return expr
}

func execute(t *testing.T, source string, ctx any, vars map[string]any) any {
	t.Helper()
	result, err := Execute(compileExpr(t, source), ctx, scope.NewMapFactory(vars))
	require.NoError(t, err)
	return result
}

func TestExecute(t *testing.T) {

	t.Run("literal only", func(t *testing.T) {
		result, err := Execute(compileExpr(t, "1 + 2"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, result)
	})

	t.Run("statements", func(t *testing.T) {
		assert.EqualValues(t, 8, execute(t, "x = 2; y = 3; x + y * 2", nil, nil))
	})

	t.Run("created variables are stored in the map", func(t *testing.T) {
		vars := map[string]any{}
		execute(t, "total = 40 + 2", nil, vars)
		assert.EqualValues(t, 42, vars["total"])
	})

	t.Run("existing variables are updated", func(t *testing.T) {
		vars := map[string]any{"count": 1}
		execute(t, "count += 2; count++", nil, vars)
		assert.EqualValues(t, 4, vars["count"])
	})

	t.Run("for loop with return", func(t *testing.T) {
		result := execute(t, "for (int i = 0; i < 5; i++) { if (i == 3) return i; }", nil, nil)
		assert.EqualValues(t, 3, result)
	})

	t.Run("return stops the execution", func(t *testing.T) {
		vars := map[string]any{}
		result := execute(t, "x = 1; return x + 1; x = 10", nil, vars)
		assert.EqualValues(t, 2, result)
		assert.EqualValues(t, 1, vars["x"])
	})

	t.Run("the tilt flag is reset after the execution", func(t *testing.T) {
		vars := scope.NewMapFactory(nil)
		_, err := Execute(compileExpr(t, "return 1"), nil, vars)
		require.NoError(t, err)
		assert.False(t, vars.IsTilted())
	})

	t.Run("while", func(t *testing.T) {
		assert.EqualValues(t, 4, execute(t, "i = 0; while (i < 4) { i++ }; i", nil, nil))
	})

	t.Run("until", func(t *testing.T) {
		assert.EqualValues(t, 3, execute(t, "i = 0; until (i == 3) { i += 1 }; i", nil, nil))
	})

	t.Run("do while runs the body once", func(t *testing.T) {
		assert.EqualValues(t, 11, execute(t, "i = 10; do { i++ } while (i < 3); i", nil, nil))
	})

	t.Run("if else", func(t *testing.T) {
		source := "if (x > 3) { 'big' } else if (x > 1) { 'medium' } else { 'small' }"
		assert.Equal(t, "big", execute(t, source, nil, map[string]any{"x": 5}))
		assert.Equal(t, "medium", execute(t, source, nil, map[string]any{"x": 2}))
		assert.Equal(t, "small", execute(t, source, nil, map[string]any{"x": 0}))
	})

	t.Run("ternary", func(t *testing.T) {
		assert.Equal(t, "yes", execute(t, "a > 1 ? 'yes' : 'no'", nil, map[string]any{"a": 2}))
		assert.Equal(t, "no", execute(t, "a > 1 ? 'yes' : 'no'", nil, map[string]any{"a": 0}))
	})

	t.Run("short circuit", func(t *testing.T) {
		//the right operand would fail
		result := execute(t, "x == null || x.name == 'a'", nil, map[string]any{"x": nil})
		assert.Equal(t, true, result)

		result = execute(t, "x != null && x.name == 'a'", nil, map[string]any{"x": nil})
		assert.Equal(t, false, result)
	})

	t.Run("blocks do not leak their variables", func(t *testing.T) {
		vars := map[string]any{}
		execute(t, "if (true) { var inner = 1 }", nil, vars)
		assert.NotContains(t, vars, "inner")
	})

	t.Run("assertion", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "assert x > 1"), nil, scope.NewMapFactory(map[string]any{"x": 0}))
		assert.ErrorIs(t, err, ErrAssertionFailed)
	})

	t.Run("integer division by zero", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "x / 0"), nil, scope.NewMapFactory(map[string]any{"x": 1}))
		assert.Error(t, err)
	})

	t.Run("errors are located", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "a = 1;\nb.c"), nil, nil)
		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.EqualValues(t, 2, evalErr.Line)
		assert.True(t, strings.Contains(evalErr.Error(), "b.c"))
	})
}

func TestExecuteProperties(t *testing.T) {

	t.Run("properties of the context object", func(t *testing.T) {
		assert.Equal(t, "Bob 30", execute(t, "name + ' ' + age", newTestPerson(), nil))
	})

	t.Run("deep property", func(t *testing.T) {
		vars := map[string]any{"p": newTestPerson()}
		assert.Equal(t, "Paris", execute(t, "p.address.city", nil, vars))
	})

	t.Run("deep property set and get", func(t *testing.T) {
		person := newTestPerson()
		vars := map[string]any{"p": person}
		assert.Equal(t, "Rome", execute(t, "p.address.city = 'Rome'; p.address.city", nil, vars))
		assert.Equal(t, "Rome", person.Address.City)
	})

	t.Run("null safe access", func(t *testing.T) {
		person := newTestPerson()
		person.Address = nil
		vars := map[string]any{"p": person}
		assert.Nil(t, execute(t, "p.address?.city", nil, vars))

		_, err := Execute(compileExpr(t, "p.address.city"), nil, scope.NewMapFactory(vars))
		assert.ErrorIs(t, err, ErrNullSafeViolation)
	})

	t.Run("method call", func(t *testing.T) {
		vars := map[string]any{"p": newTestPerson()}
		assert.Equal(t, "Hi Bob", execute(t, "p.greet('Hi')", nil, vars))
	})

	t.Run("maps and indexes", func(t *testing.T) {
		vars := map[string]any{
			"m":    map[string]any{"a": 1},
			"list": []int{1, 2, 3},
		}
		assert.EqualValues(t, 2, execute(t, "m.a + m['a']", nil, vars))
		assert.EqualValues(t, 2, execute(t, "list[1]", nil, vars))
		assert.EqualValues(t, 3, execute(t, "list.size()", nil, vars))
		assert.Equal(t, "b", execute(t, "p.tags[1]", nil, map[string]any{"p": newTestPerson()}))
	})

	t.Run("map entry set", func(t *testing.T) {
		m := map[string]any{}
		execute(t, "m.a = 1; m['b'] = 2", nil, map[string]any{"m": m})
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, m)
	})

	t.Run("unresolvable variable", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "unknown + 1"), nil, nil)
		assert.ErrorIs(t, err, scope.ErrUnresolvableVariable)

		_, err = Execute(compileExpr(t, "totl + 1"), nil, scope.NewMapFactory(map[string]any{"total": 1}))
		assert.ErrorContains(t, err, "did you mean total?")
	})

	t.Run("with", func(t *testing.T) {
		person := newTestPerson()
		result := execute(t, "with (p) { name = 'Alice', age += 1 }", nil, map[string]any{"p": person})
		assert.Same(t, person, result)
		assert.Equal(t, "Alice", person.Name)
		assert.Equal(t, 31, person.Age)
	})

	t.Run("with on a nil target", func(t *testing.T) {
		_, err := Execute(compileExpr(t, "with (p) { name = 'Alice' }"), nil, scope.NewMapFactory(map[string]any{"p": nil}))
		assert.ErrorIs(t, err, ErrNullSafeViolation)
	})
}
