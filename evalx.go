// Package evalx compiles and evaluates expressions against Go values.
//
// A compiled expression is evaluated many times, possibly concurrently: property paths are
// specialized for the runtime types they meet and fall back to a slower generic path when the
// types change.
//
//	expr, err := evalx.Compile("order.total * (1 - discount)", nil)
//	...
//	result, err := evalx.Execute(expr, nil, map[string]any{"order": order, "discount": 0.1})
package evalx

import (
	"context"
	"reflect"

	"github.com/inoxlang/evalx/internal/config"
	"github.com/inoxlang/evalx/internal/core"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/rs/zerolog"
)

type (
	CompiledExpression = parse.CompiledExpression
	Config             = config.Config
	Factory            = scope.Factory
	Resolver           = scope.Resolver
	Closure            = core.Closure

	CompileError    = parse.CompileError
	CompileErrors   = parse.CompileErrors
	EvaluationError = core.EvaluationError
)

var (
	ErrCompilation          = parse.ErrCompilation
	ErrUnresolvableVariable = scope.ErrUnresolvableVariable
	ErrNullSafeViolation    = core.ErrNullSafeViolation
	ErrAssertionFailed      = core.ErrAssertionFailed
	ErrNotIterable          = core.ErrNotIterable
	ErrNotCallable          = core.ErrNotCallable
)

// Compile compiles source, a nil cfg selects the default configuration.
func Compile(source string, cfg *Config) (*CompiledExpression, error) {
	pctx, err := newParserContext(cfg)
	if err != nil {
		return nil, err
	}

	expr, err := parse.Compile(source, pctx)
	if err != nil {
		return nil, err
	}

	core.Logger().Debug().
		Str(core.EXPR_ID_LOG_FIELD, expr.ID.String()).
		Str("source-name", expr.SourceName).
		Bool("literal", expr.LiteralOnly).
		Msg("expression compiled")
	return expr, nil
}

// Verify compiles source and returns its static type, nil if it is only known at runtime. Strict
// typing makes unknown variables compile errors.
func Verify(source string, cfg *Config) (reflect.Type, error) {
	pctx, err := newParserContext(cfg)
	if err != nil {
		return nil, err
	}
	return parse.NewCompiler(source, pctx).Verify()
}

// Execute evaluates expr, the variables of the expression are read from and written to vars. The
// properties of ctx are accessible without prefix.
func Execute(expr *CompiledExpression, ctx any, vars map[string]any) (any, error) {
	return core.Execute(expr, ctx, scope.NewMapFactory(vars))
}

// ExecuteWithFactory evaluates expr with a caller provided chain of variable factories.
func ExecuteWithFactory(expr *CompiledExpression, ctx any, vars Factory) (any, error) {
	return core.Execute(expr, ctx, vars)
}

// Eval interprets source without compiling it, this is faster for expressions evaluated once.
func Eval(source string, ctx any, vars map[string]any) (any, error) {
	return EvalWithConfig(source, nil, ctx, vars)
}

func EvalWithConfig(source string, cfg *Config, ctx any, vars map[string]any) (any, error) {
	pctx, err := newParserContext(cfg)
	if err != nil {
		return nil, err
	}

	factory := scope.Factory(scope.NewMapFactory(vars))
	if imports := pctx.Imports(); len(imports) > 0 {
		factory.SetNext(scope.NewImmutableDefaultFactory(imports))
	}
	return core.Interpret(pctx, source, ctx, ctx, factory)
}

// NewMapFactory returns a factory storing the variables in vars, a nil map is allowed.
func NewMapFactory(vars map[string]any) Factory {
	return scope.NewMapFactory(vars)
}

// NewDefaultFactory returns a factory of read-only variables, it is usually the last factory of a chain.
func NewDefaultFactory(vars map[string]any) Factory {
	return scope.NewImmutableDefaultFactory(vars)
}

// LoadConfig loads a YAML or JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// WatchConfig reloads the configuration file at path each time it changes until ctx is done. The
// runtime settings of a reloaded configuration are applied before onReload is called, the
// expressions compiled with the previous configuration are not affected.
func WatchConfig(ctx context.Context, path string, onReload func(*Config, error)) error {
	return config.Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			err = Configure(cfg)
		}
		onReload(cfg, err)
	})
}

// Configure applies the runtime settings of cfg: the log level.
func Configure(cfg *Config) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	core.SetLogLevel(level)
	return nil
}

// SetLogger sets the logger of the runtime.
func SetLogger(logger zerolog.Logger) {
	core.SetLogger(logger)
}

func newParserContext(cfg *Config) (*parse.ParserContext, error) {
	if cfg == nil {
		cfg = defaultConfig
	}
	parserConfig, err := cfg.ParserConfiguration()
	if err != nil {
		return nil, err
	}
	return parse.NewParserContext(parserConfig)
}

var defaultConfig = config.Default()
