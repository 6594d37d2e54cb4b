package core

import (
	"fmt"
	"time"

	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/inoxlang/evalx/internal/utils"
)

// Execute evaluates a compiled expression against ctx, ctx is also the value of 'this'. If vars is nil
// the variables created by the expression are stored in a throwaway map. A compiled expression can be
// executed concurrently by several goroutines as long as they do not share vars.
func Execute(expr *parse.CompiledExpression, ctx any, vars scope.Factory) (result any, err error) {
	if expr.LiteralOnly {
		return expr.Value, nil
	}

	defer func() {
		if e := recover(); e != nil {
			result = nil
			err = fmt.Errorf("execution of %s: %w", describeExpression(expr), utils.ConvertPanicValueToError(e))
		}
	}()

	if vars == nil {
		vars = scope.NewMapFactory(nil)
	}
	if expr.ImportInjection {
		injectImports(expr.Context, vars)
	}
	defer scope.ResetTilt(vars)

	logger := Logger()
	var start time.Time
	if logger.Debug().Enabled() {
		start = time.Now()
	}

	result, err = runChain(expr.Head, expr.Sequence.Source, ctx, ctx, vars)

	if !start.IsZero() {
		logger.Debug().
			Str(EXPR_ID_LOG_FIELD, expr.ID.String()).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("expression executed")
	}
	return result, err
}

// injectImports makes the imports resolvable as read-only variables, they are appended to the end of
// the factory chain unless they already are.
func injectImports(pctx *parse.ParserContext, vars scope.Factory) {
	root := scope.Root(vars)
	if _, ok := root.(*scope.ImmutableDefaultFactory); ok {
		return
	}
	root.SetNext(scope.NewImmutableDefaultFactory(pctx.Imports()))
}

func describeExpression(expr *parse.CompiledExpression) string {
	if expr.SourceName != "" {
		return expr.SourceName
	}
	return expr.ID.String()
}
