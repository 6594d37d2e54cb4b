package core

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type valueField struct {
	Value int
}

type valueGetter struct {
	v int
}

func (g valueGetter) Value() int {
	return g.v
}

func TestOptimizeAccessor(t *testing.T) {

	t.Run("variable root", func(t *testing.T) {
		vars := scope.NewMapFactory(map[string]any{"p": newTestPerson()})
		o := NewOptimizer(nil)

		accessor, err := o.OptimizeAccessor("p.address.city", nil, nil, vars, nil)
		require.NoError(t, err)
		assert.Equal(t, "Paris", o.Result())

		other := newTestPerson()
		other.Address.City = "Lyon"
		v, err := accessor.GetValue(nil, nil, scope.NewMapFactory(map[string]any{"p": other}))
		require.NoError(t, err)
		assert.Equal(t, "Lyon", v)
	})

	t.Run("context root", func(t *testing.T) {
		o := NewOptimizer(nil)
		_, err := o.OptimizeAccessor("address.city", newTestPerson(), nil, scope.NewMapFactory(nil), nil)
		require.NoError(t, err)
		assert.Equal(t, "Paris", o.Result())
	})

	t.Run("ingress type", func(t *testing.T) {
		o := NewOptimizer(nil)
		accessor, err := o.OptimizeAccessor("age", newTestPerson(), nil, scope.NewMapFactory(nil), convert.STRING_TYPE)
		require.NoError(t, err)
		assert.Equal(t, "30", o.Result())
		assert.Equal(t, convert.STRING_TYPE, accessor.KnownEgressType())
	})

	t.Run("monomorphic accessor fails on another type", func(t *testing.T) {
		o := NewOptimizer(nil)
		accessor, err := o.OptimizeAccessor("value", valueField{Value: 1}, nil, scope.NewMapFactory(nil), nil)
		require.NoError(t, err)

		_, err = accessor.GetValue(valueGetter{v: 2}, nil, scope.NewMapFactory(nil))
		assert.ErrorIs(t, err, ErrAccessorTypeMismatch)
	})

	t.Run("setter", func(t *testing.T) {
		person := newTestPerson()
		vars := scope.NewMapFactory(map[string]any{"p": person})
		o := NewOptimizer(nil)

		accessor, err := o.OptimizeSetter("p.address.city", nil, nil, vars, "Rome")
		require.NoError(t, err)
		assert.Equal(t, "Rome", person.Address.City)

		_, err = accessor.SetValue(nil, nil, vars, "Oslo")
		require.NoError(t, err)
		assert.Equal(t, "Oslo", person.Address.City)
	})

	t.Run("method calls are not settable", func(t *testing.T) {
		vars := scope.NewMapFactory(map[string]any{"p": newTestPerson()})
		_, err := NewOptimizer(nil).OptimizeSetter("p.greet('x')", nil, nil, vars, 1)
		assert.Error(t, err)
	})
}

func TestDeoptimization(t *testing.T) {

	t.Run("property of values of different types", func(t *testing.T) {
		expr := compileExpr(t, "obj.value")
		prop := ast.FindFirstNode(expr.Head, (*ast.Property)(nil))
		require.NotNil(t, prop)

		result, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueField{Value: 1}}))
		require.NoError(t, err)
		assert.EqualValues(t, 1, result)
		assert.False(t, prop.HasFlag(ast.FLAG_DEOPTIMIZED))

		result, err = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueGetter{v: 2}}))
		require.NoError(t, err)
		assert.EqualValues(t, 2, result)
		assert.True(t, prop.HasFlag(ast.FLAG_DEOPTIMIZED))

		//the safe accessor handles both types
		result, err = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueField{Value: 3}}))
		require.NoError(t, err)
		assert.EqualValues(t, 3, result)
	})

	t.Run("deoptimizations are logged", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		prev := *Logger()
		SetLogger(zerolog.New(io.MultiWriter(buf, &utils.TestWriter{T: t})).Level(zerolog.DebugLevel))
		defer packageLogger.Store(&prev)

		expr := compileExpr(t, "obj.value")
		_, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueField{Value: 1}}))
		require.NoError(t, err)
		_, err = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueGetter{v: 2}}))
		require.NoError(t, err)

		assert.Contains(t, buf.String(), "node deoptimized")
		assert.Contains(t, buf.String(), `"path":"obj.value"`)
		assert.Contains(t, buf.String(), `"src":"/evalx/core"`)
	})

	t.Run("failures after the deoptimization are not retried", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		prev := *Logger()
		SetLogger(zerolog.New(io.MultiWriter(buf, &utils.TestWriter{T: t})).Level(zerolog.DebugLevel))
		defer packageLogger.Store(&prev)

		expr := compileExpr(t, "obj.value")
		prop := ast.FindFirstNode(expr.Head, (*ast.Property)(nil))
		require.NotNil(t, prop)

		_, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueField{Value: 1}}))
		require.NoError(t, err)
		_, err = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueGetter{v: 2}}))
		require.NoError(t, err)
		require.True(t, prop.HasFlag(ast.FLAG_DEOPTIMIZED))

		_, err = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": 5}))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrAccessorTypeMismatch)
		assert.True(t, prop.HasFlag(ast.FLAG_DEOPTIMIZED))
		assert.Equal(t, 1, strings.Count(buf.String(), "node deoptimized"))

		//the node keeps the safe accessor
		result, err := Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": valueField{Value: 3}}))
		require.NoError(t, err)
		assert.EqualValues(t, 3, result)
	})

	t.Run("context object of different types", func(t *testing.T) {
		expr := compileExpr(t, "value * 2")

		result, err := Execute(expr, valueField{Value: 1}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 2, result)

		result, err = Execute(expr, valueGetter{v: 5}, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 10, result)
	})

	t.Run("concurrent executions", func(t *testing.T) {
		expr := compileExpr(t, "obj.value + 1")

		wg := sync.WaitGroup{}
		errs := make([]error, 20)
		results := make([]any, 20)

		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var obj any = valueField{Value: i}
				if i%2 == 1 {
					obj = valueGetter{v: i}
				}
				results[i], errs[i] = Execute(expr, nil, scope.NewMapFactory(map[string]any{"obj": obj}))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 20; i++ {
			if assert.NoError(t, errs[i]) {
				assert.EqualValues(t, i+1, results[i])
			}
		}
	})
}

func TestSafeAccessor(t *testing.T) {
	pctx := parse.MustNewParserContext(parse.ParserConfiguration{})
	accessor, err := newSafePathAccessor(pctx, -1, "p.value", nil)
	require.NoError(t, err)

	for i, obj := range []any{valueField{Value: 1}, valueGetter{v: 2}, map[string]any{"value": 3}} {
		v, err := accessor.GetValue(nil, nil, scope.NewMapFactory(map[string]any{"p": obj}))
		require.NoError(t, err)
		assert.EqualValues(t, i+1, v)
	}
}
