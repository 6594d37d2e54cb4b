package parse

import (
	"errors"
	"reflect"
	"testing"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *ParserContext {
	return MustNewParserContext(ParserConfiguration{})
}

func mustCompile(t *testing.T, source string) *CompiledExpression {
	t.Helper()
	expr, err := Compile(source, newTestContext())
	require.NoError(t, err)
	return expr
}

func TestCompileLiteralFolding(t *testing.T) {

	testCases := []struct {
		source string
		value  any
	}{
		{"1 + 2 * 3 - 4", 3},
		{"2 * 3 + 4 * 5", 26},
		{"(1 + 2) * 3", 9},
		{"10 / 2 - 3", 2},
		{"2 ** 3 ** 2", 64},
		{"'a' + 1 + 2", "a12"},
		{"1 + 2 + 'a'", "3a"},
		{"'a' # 1", "a1"},
		{"1 < 2 && 2 < 3", true},
		{"!true", false},
		{"-(3)", -3},
		{"~0", -1},
		{"true ? 1 : 2", 1},
		{"false ? 1 : 2", 2},
		{"1e+2 * 2", float64(200)},
		{"(String) 12", "12"},
		{"null == empty", true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.source, func(t *testing.T) {
			expr := mustCompile(t, testCase.source)
			assert.True(t, expr.LiteralOnly)
			assert.Equal(t, testCase.value, expr.Value)
		})
	}
}

func TestCompileShortCircuit(t *testing.T) {

	t.Run("false && ...", func(t *testing.T) {
		expr := mustCompile(t, "false && (1/0 == 0)")
		assert.True(t, expr.LiteralOnly)
		assert.Equal(t, false, expr.Value)
	})

	t.Run("true || ...", func(t *testing.T) {
		expr := mustCompile(t, "true || (1/0 == 0)")
		assert.True(t, expr.LiteralOnly)
		assert.Equal(t, true, expr.Value)
	})

	t.Run("the skipped operand extends over tighter operators", func(t *testing.T) {
		expr := mustCompile(t, "false && 1 / 0 == 0 || true")
		assert.True(t, expr.LiteralOnly)
		assert.Equal(t, true, expr.Value)
	})

	t.Run("division by zero is not folded", func(t *testing.T) {
		expr := mustCompile(t, "1 / 0")
		assert.False(t, expr.LiteralOnly)
		assert.IsType(t, (*ast.IntDiv)(nil), expr.Head)
	})
}

func TestCompilePartialFolding(t *testing.T) {

	testCases := []struct {
		source string
		dump   string
	}{
		{"x - 1 + 2", "+(-(x, 1:int), 2:int)"},
		{"1 + 2 + x", "+(3:int, x)"},
		{"1 + 2 * x", "+(1:int, *(2:int, x))"},
		{"2 * 3 + 4 * x", "+(6:int, *(4:int, x))"},
		{"x * 2 + 3", "+(*(x, 2:int), 3:int)"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.source, func(t *testing.T) {
			expr := mustCompile(t, testCase.source)
			assert.False(t, expr.LiteralOnly)
			assert.Equal(t, testCase.dump, expr.String())
		})
	}
}

func TestCompileFailedFolding(t *testing.T) {
	expr := mustCompile(t, "x + 10 / 0")
	assert.False(t, expr.LiteralOnly)

	//the operands of the operation left to the runtime keep their own location
	zeros := ast.FindNodes(expr.Head, (*ast.Literal)(nil), func(n *ast.Literal) bool {
		return n.Literal == 0
	})
	require.Len(t, zeros, 1)
	assert.Equal(t, NodeSpan{Start: 9, End: 10}, zeros[0].Span)

	tens := ast.FindNodes(expr.Head, (*ast.Literal)(nil), func(n *ast.Literal) bool {
		return n.Literal == 10
	})
	require.Len(t, tens, 1)
	assert.Equal(t, NodeSpan{Start: 4, End: 6}, tens[0].Span)
}

func TestCompileIdempotence(t *testing.T) {
	sources := []string{
		"x = 2; y = 3; x + y * 2",
		"a.b[c + 1]?.d(1, 'e') > 3 ? f : g",
		"for (int i = 0; i < 5; i++) { if (i == 3) return i; }",
		"foreach (item : list) { total += item }",
		"def add(a, b) { a + b }; add(1, 2)",
		"with (p) { name = 'x', age += 1 }",
		"['a': 1, 'b': [1, 2, {3}]]",
	}

	for _, source := range sources {
		t.Run(source, func(t *testing.T) {
			first := mustCompile(t, source)
			second := mustCompile(t, source)
			assert.Equal(t, first.String(), second.String())
			assert.NotEqual(t, first.ID, second.ID)
		})
	}
}

func TestCompileStatements(t *testing.T) {

	t.Run("assignments followed by an expression", func(t *testing.T) {
		expr := mustCompile(t, "x = 2; y = 3; x + y * 2")
		assert.Equal(t, "assign[x]{2:int}; assign[y]{3:int}; int+(x, int*(y, 2:int))", expr.String())
		assert.Equal(t, convert.INT_TYPE, expr.EgressType)
		assert.Len(t, ast.Statements(expr.Head), 3)
	})

	t.Run("operand following an operand", func(t *testing.T) {
		expr := mustCompile(t, "a\nb + 1")
		assert.Len(t, ast.Statements(expr.Head), 2)

		//the value of an assignment extends to the next ';'
		expr = mustCompile(t, "a = 1\nb = 2")
		assert.Len(t, ast.Statements(expr.Head), 1)
	})

	t.Run("empty source", func(t *testing.T) {
		expr := mustCompile(t, "  // nothing\n")
		assert.True(t, expr.LiteralOnly)
		assert.Nil(t, expr.Value)
		assert.Nil(t, expr.Head)
	})

	t.Run("comments", func(t *testing.T) {
		expr := mustCompile(t, "1 /* one */ + // plus\n 2")
		assert.True(t, expr.LiteralOnly)
		assert.Equal(t, 3, expr.Value)
	})

	t.Run("inputs", func(t *testing.T) {
		expr := mustCompile(t, "a + b.c * 2; d = 1")
		assert.Contains(t, expr.Inputs, "a")
		assert.Contains(t, expr.Inputs, "b")
		assert.NotContains(t, expr.Inputs, "d")
	})
}

func TestCompileNodes(t *testing.T) {

	t.Run("collections", func(t *testing.T) {
		expr := mustCompile(t, "['a': 1, 'b': 2]")
		coll := expr.Head.(*ast.InlineCollection)
		assert.Equal(t, ast.MapCollection, coll.Kind)
		assert.Len(t, coll.Keys, 2)
		assert.Equal(t, convert.MAP_TYPE, coll.EgressType)

		expr = mustCompile(t, "[1, x ? 2 : 3]")
		coll = expr.Head.(*ast.InlineCollection)
		assert.Equal(t, ast.ListCollection, coll.Kind)
		assert.Len(t, coll.Elements, 2)

		expr = mustCompile(t, "{1, 2, 3}")
		assert.Equal(t, ast.ArrayCollection, expr.Head.(*ast.InlineCollection).Kind)

		expr = mustCompile(t, "new int[] {1, 2}")
		coll = expr.Head.(*ast.InlineCollection)
		assert.Equal(t, reflect.TypeOf([]int(nil)), coll.EgressType)
	})

	t.Run("new array", func(t *testing.T) {
		expr := mustCompile(t, "new int[3][4]")
		array := expr.Head.(*ast.NewArray)
		assert.Len(t, array.Dimensions, 2)
		assert.Equal(t, reflect.TypeOf([][]int(nil)), array.EgressType)
	})

	t.Run("cast of a non literal operand", func(t *testing.T) {
		expr := mustCompile(t, "(int) x")
		cast := expr.Head.(*ast.TypeCast)
		assert.Equal(t, convert.INT_TYPE, cast.Type)
	})

	t.Run("substatement and union", func(t *testing.T) {
		expr := mustCompile(t, "(a + b).length")
		union := expr.Head.(*ast.Union)
		assert.Equal(t, ".length", union.Path)
		assert.IsType(t, (*ast.Substatement)(nil), union.Primary)
	})

	t.Run("property path", func(t *testing.T) {
		expr := mustCompile(t, "a.b[0]?.c")
		prop := expr.Head.(*ast.Property)
		assert.Equal(t, "a", prop.Root)
		assert.True(t, prop.HasFlag(ast.FLAG_DEEP_PROPERTY))
		assert.True(t, prop.HasFlag(ast.FLAG_NULL_SAFE))
	})

	t.Run("compound assignments", func(t *testing.T) {
		assert.IsType(t, (*ast.OperativeAssign)(nil), mustCompile(t, "x += 1").Head)
		assert.IsType(t, (*ast.DeepOperativeAssign)(nil), mustCompile(t, "a.b <<= 2").Head)
		assert.IsType(t, (*ast.DeepAssignment)(nil), mustCompile(t, "a.b = 2").Head)
		assert.IsType(t, (*ast.IncDec)(nil), mustCompile(t, "x++").Head)
		assert.IsType(t, (*ast.IncDec)(nil), mustCompile(t, "--x").Head)
	})

	t.Run("closure", func(t *testing.T) {
		expr := mustCompile(t, "def add(a, b) { a + b }; add(1, 2)")
		fn := ast.FindFirstNode(expr.Head, (*ast.Function)(nil))
		require.NotNil(t, fn)
		assert.Equal(t, []string{"a", "b"}, fn.Params)
		assert.Equal(t, "+(a@0, b@1)", ast.Dump(fn.Body.Head))

		call := ast.FindFirstNode(expr.Head, (*ast.FunctionCall)(nil))
		require.NotNil(t, call)
		assert.Len(t, call.Args, 2)
	})

	t.Run("typed declaration", func(t *testing.T) {
		expr := mustCompile(t, "int x = 1; String[] names")
		statements := ast.Statements(expr.Head)
		require.Len(t, statements, 2)
		assert.Equal(t, convert.INT_TYPE, statements[0].(*ast.TypedVarDeclaration).Type)
		assert.Equal(t, reflect.TypeOf([]string(nil)), statements[1].(*ast.TypedVarDeclaration).Type)
	})

	t.Run("control blocks", func(t *testing.T) {
		expr := mustCompile(t, "if (a) { 1 } else if (b) { 2 } else { 3 }")
		ifNode := expr.Head.(*ast.If)
		require.NotNil(t, ifNode.ElseIf)
		assert.NotNil(t, ifNode.ElseIf.Else)

		assert.IsType(t, (*ast.DoUntil)(nil), mustCompile(t, "do { x++ } until (x > 3)").Head)
		assert.IsType(t, (*ast.ForEach)(nil), mustCompile(t, "for (i : list) { i }").Head)
		assert.IsType(t, (*ast.IsDef)(nil), mustCompile(t, "isdef foo").Head)
	})

	t.Run("with", func(t *testing.T) {
		with := mustCompile(t, "with (p) { name = 'x', age += 1; flag }").Head.(*ast.With)
		require.Len(t, with.Statements, 3)
		assert.Equal(t, "name", with.Statements[0].Path)
		assert.Equal(t, "age", with.Statements[1].Path)
		assert.Nil(t, with.Statements[2].Value)
	})

	t.Run("imports are rewritten to literals", func(t *testing.T) {
		ctx := MustNewParserContext(ParserConfiguration{Imports: map[string]any{"Answer": 42}})
		expr, err := Compile("Answer + 1", ctx)
		require.NoError(t, err)
		assert.True(t, expr.LiteralOnly)
		assert.Equal(t, 43, expr.Value)
	})
}

func TestCompileErrors(t *testing.T) {

	testCases := []struct {
		source  string
		message string
	}{
		{"proto Foo { }", PROTO_NOT_SUPPORTED},
		{"'abc", UNTERMINATED_STRING_LIT},
		{"new int[3] {1, 2, 3}", NEW_ARRAY_WITH_INITIALIZER_AND_SIZE},
		{"else { 1 }", ELSE_WITHOUT_IF},
		{"a.b(", fmtUnterminatedDelimiter('(')},
		{"1 +", MISSING_OPERAND},
		{"1 ? 2", INVALID_TERNARY},
		{"do { x }", MISSING_DO_CONDITION},
		{"x = ", MISSING_ASSIGNED_VALUE},
	}

	for _, testCase := range testCases {
		t.Run(testCase.source, func(t *testing.T) {
			_, err := Compile(testCase.source, newTestContext())
			require.Error(t, err)
			assert.ErrorContains(t, err, testCase.message)
			assert.True(t, errors.Is(err, ErrCompilation))

			var errs *CompileErrors
			if assert.ErrorAs(t, err, &errs) {
				assert.True(t, errs.HasFatal())
			}
		})
	}

	t.Run("error location", func(t *testing.T) {
		_, err := Compile("a = 1;\nb = 'x", newTestContext())
		var cerr *CompileError
		require.ErrorAs(t, err, &cerr)
		assert.EqualValues(t, 2, cerr.Line)
		assert.EqualValues(t, 5, cerr.Column)
	})

	t.Run("debug symbols without source name", func(t *testing.T) {
		_, err := NewParserContext(ParserConfiguration{DebugSymbols: true})
		assert.ErrorContains(t, err, DEBUG_SYMBOLS_WITHOUT_SOURCE_NAME)
	})

	t.Run("unknown identifier in strict mode", func(t *testing.T) {
		ctx := MustNewParserContext(ParserConfiguration{StrictTyping: true})
		_, err := Compile("foo + 1", ctx)
		assert.Error(t, err)
	})

	t.Run("incompatible operands in strong mode", func(t *testing.T) {
		ctx := MustNewParserContext(ParserConfiguration{
			StrongTyping: true,
			InputTypes:   map[string]reflect.Type{"b": convert.BOOL_TYPE},
		})
		_, err := Compile("b * 2", ctx)
		assert.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	type person struct {
		Name string
		Age  int
	}

	ctx := MustNewParserContext(ParserConfiguration{
		StrictTyping: true,
		InputTypes:   map[string]reflect.Type{"p": reflect.TypeOf(&person{})},
	})

	typ, err := NewCompiler("p.name", ctx).Verify()
	require.NoError(t, err)
	assert.Equal(t, convert.STRING_TYPE, typ)

	typ, err = NewCompiler("p.age * 2", ctx).Verify()
	require.NoError(t, err)
	assert.Equal(t, convert.INT_TYPE, typ)

	_, err = NewCompiler("p.salary", ctx).Verify()
	assert.Error(t, err)
}

func TestDebugSymbols(t *testing.T) {
	ctx := MustNewParserContext(ParserConfiguration{DebugSymbols: true, SourceName: "test.mvel"})
	expr, err := Compile("x = 1;\ny = 2;\nx + y", ctx)
	require.NoError(t, err)

	labels := ast.FindNodes(expr.Head, (*ast.LineLabel)(nil), nil)
	require.Len(t, labels, 3)
	for i, label := range labels {
		assert.EqualValues(t, i+1, label.Line)
		assert.Equal(t, "test.mvel", label.SourceName)
	}
	assert.Len(t, ast.Statements(expr.Head), 3)
}

func TestCompileSubExpression(t *testing.T) {
	ctx := MustNewParserContext(ParserConfiguration{Cache: NewSubExpressionCache(16)})

	first, err := CompileSubExpression(ctx, "i + 1")
	require.NoError(t, err)

	second, err := CompileSubExpression(ctx, "i + 1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	hits, _ := ctx.Cache().Stats()
	assert.EqualValues(t, 1, hits)
}

func TestSubExpressionFingerprint(t *testing.T) {

	t.Run("import values", func(t *testing.T) {
		cache := NewSubExpressionCache(16)
		zero := MustNewParserContext(ParserConfiguration{Cache: cache, Imports: map[string]any{"K": 0}})
		two := MustNewParserContext(ParserConfiguration{Cache: cache, Imports: map[string]any{"K": 2}})
		assert.NotEqual(t, zero.Fingerprint(), two.Fingerprint())

		first, err := CompileSubExpression(zero, "K + 1")
		require.NoError(t, err)
		second, err := CompileSubExpression(two, "K + 1")
		require.NoError(t, err)

		assert.Equal(t, 1, first.Value)
		assert.Equal(t, 3, second.Value)
	})

	t.Run("same import values", func(t *testing.T) {
		a := MustNewParserContext(ParserConfiguration{Imports: map[string]any{"K": 2, "name": "a"}})
		b := MustNewParserContext(ParserConfiguration{Imports: map[string]any{"K": 2, "name": "a"}})
		assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	})

	t.Run("reference values are identified by their address", func(t *testing.T) {
		type limit struct{ Max int }
		a := MustNewParserContext(ParserConfiguration{Imports: map[string]any{"L": &limit{1}}})
		b := MustNewParserContext(ParserConfiguration{Imports: map[string]any{"L": &limit{1}}})
		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	})
}
