package core

import (
	"testing"

	"github.com/inoxlang/evalx/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interpret(t *testing.T, source string, ctx any, vars map[string]any) any {
	t.Helper()
	result, err := Interpret(nil, source, ctx, ctx, scope.NewMapFactory(vars))
	require.NoError(t, err)
	return result
}

func TestInterpret(t *testing.T) {

	testCases := []struct {
		source string
		result any
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"2 * 3 + 4 * 5", 26},
		{"10 - 4 - 3", 3},
		{"'a' + 1 + 2", "a12"},
		{"1 < 2 && 2 < 3", true},
		{"x = 2; y = 3; x + y * 2", 8},
		{"true ? 1 : 2", 1},
		{"false ? 1 : 2", 2},
		{"false ? 1 : true ? 2 : 3", 2},
		{"true ? false ? 1 : 2 : 3", 2},
		{"1 + 1 == 2 ? 'two' : 'other'", "two"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.source, func(t *testing.T) {
			assert.EqualValues(t, testCase.result, interpret(t, testCase.source, nil, nil))
		})
	}

	t.Run("short circuit skips the right operand", func(t *testing.T) {
		vars := map[string]any{"x": nil}
		assert.Equal(t, false, interpret(t, "x != null && x.name == 'a'", nil, vars))
		assert.Equal(t, true, interpret(t, "x == null || x.name == 'a'", nil, vars))
		assert.Equal(t, true, interpret(t, "false && x.name == 'a' || true", nil, vars))
	})

	t.Run("ternary skips the branch that is not taken", func(t *testing.T) {
		vars := map[string]any{"x": nil}
		assert.Equal(t, "none", interpret(t, "x == null ? 'none' : x.name", nil, vars))
		assert.Equal(t, "none", interpret(t, "x != null ? x.name : 'none'", nil, vars))
	})

	t.Run("operand following an operand", func(t *testing.T) {
		assert.EqualValues(t, 3, interpret(t, "a = 1; b = 2; a\na + b", nil, nil))
	})

	t.Run("control blocks", func(t *testing.T) {
		assert.EqualValues(t, 3, interpret(t, "for (int i = 0; i < 5; i++) { if (i == 3) return i; }", nil, nil))
		assert.EqualValues(t, 4, interpret(t, "i = 0; while (i < 4) { i++ }; i", nil, nil))
		assert.EqualValues(t, 6, interpret(t, "total = 0; foreach (item : list) { total += item }; total", nil, map[string]any{
			"list": []int{1, 2, 3},
		}))
	})

	t.Run("properties", func(t *testing.T) {
		assert.Equal(t, "Paris", interpret(t, "address.city", newTestPerson(), nil))
		assert.Equal(t, "Hi Bob", interpret(t, "p.greet('Hi')", nil, map[string]any{"p": newTestPerson()}))
	})

	t.Run("closures", func(t *testing.T) {
		assert.EqualValues(t, 3, interpret(t, "def add(a, b) { a + b }; add(1, 2)", nil, nil))
	})

	t.Run("return", func(t *testing.T) {
		vars := map[string]any{}
		assert.EqualValues(t, 1, interpret(t, "x = 1; return x; x = 2", nil, vars))
		assert.EqualValues(t, 1, vars["x"])
	})

	t.Run("unexpected operator", func(t *testing.T) {
		_, err := Interpret(nil, "1 : 2", nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("the interpreted result matches the compiled one", func(t *testing.T) {
		sources := []string{
			"x = 5; y = x * 2; y - 1",
			"s = ''; foreach (c : 'abc') { s = s + c + '-' }; s",
			"m = ['a': 1, 'b': 2]; m.a + m.b",
			"list = [1, 2, 3]; list[2] * list.size()",
		}
		for _, source := range sources {
			compiled := execute(t, source, nil, nil)
			interpreted := interpret(t, source, nil, nil)
			assert.EqualValues(t, compiled, interpreted, source)
		}
	})
}
