package parse

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/cache"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/sourcecode"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/inoxlang/evalx/internal/values"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SubExpressionCache holds the compiled index and argument expressions of property paths.
type SubExpressionCache = cache.ExpressionCache[ast.Sequence]

var defaultSubExpressionCache = cache.NewExpressionCache[ast.Sequence](cache.DEFAULT_CAPACITY)

func DefaultSubExpressionCache() *SubExpressionCache {
	return defaultSubExpressionCache
}

func NewSubExpressionCache(capacity int) *SubExpressionCache {
	return cache.NewExpressionCache[ast.Sequence](capacity)
}

type ParserConfiguration struct {
	// Imports maps names to types (class literals, constructors, casts), Go functions or constant values.
	Imports map[string]any

	StrictTyping bool
	StrongTyping bool //implies StrictTyping

	// AllowNakedMethodCalls allows calling a method of the context object without the this. prefix.
	AllowNakedMethodCalls bool

	// DebugSymbols makes the compiler emit line labels, a source name is required.
	DebugSymbols bool
	SourceName   string

	// InputTypes are the static types of the variables provided at evaluation time.
	InputTypes map[string]reflect.Type

	// Cache defaults to a shared cache.
	Cache *SubExpressionCache
}

// A ParserContext holds the compile-time state shared by a compilation and its sub-compilations:
// declared variables and functions, closure slots and diagnostics.
type ParserContext struct {
	config ParserConfiguration
	parent *ParserContext

	variables map[string]reflect.Type
	inputs    map[string]reflect.Type
	scopes    []map[string]reflect.Type
	functions map[string]*ast.Function

	//closure slots
	indexedVariables []string
	indexAllocation  bool
	usedSlots        *bitset.BitSet

	errors       []*CompileError
	source       *sourcecode.Source
	labeledLines *bitset.BitSet
}

func NewParserContext(config ParserConfiguration) (*ParserContext, error) {
	if config.DebugSymbols && config.SourceName == "" {
		return nil, &CompileError{Message: DEBUG_SYMBOLS_WITHOUT_SOURCE_NAME, Fatal: true}
	}
	if config.StrongTyping {
		config.StrictTyping = true
	}
	if config.Cache == nil {
		config.Cache = defaultSubExpressionCache
	}

	ctx := &ParserContext{
		config:       config,
		variables:    map[string]reflect.Type{},
		inputs:       map[string]reflect.Type{},
		functions:    map[string]*ast.Function{},
		usedSlots:    bitset.New(0),
		labeledLines: bitset.New(0),
	}
	for name, t := range config.InputTypes {
		ctx.inputs[name] = t
	}
	return ctx, nil
}

// MustNewParserContext panics if the configuration is invalid.
func MustNewParserContext(config ParserConfiguration) *ParserContext {
	return utils.Must(NewParserContext(config))
}

func (ctx *ParserContext) Config() ParserConfiguration {
	return ctx.config
}

func (ctx *ParserContext) IsStrictTyping() bool {
	return ctx.config.StrictTyping
}

func (ctx *ParserContext) IsStrongTyping() bool {
	return ctx.config.StrongTyping
}

func (ctx *ParserContext) AllowNakedMethodCalls() bool {
	return ctx.config.AllowNakedMethodCalls
}

func (ctx *ParserContext) SourceName() string {
	return ctx.config.SourceName
}

func (ctx *ParserContext) Cache() *SubExpressionCache {
	return ctx.config.Cache
}

func (ctx *ParserContext) Import(name string) (any, bool) {
	for c := ctx; c != nil; c = c.parent {
		if v, ok := c.config.Imports[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (ctx *ParserContext) Imports() map[string]any {
	return ctx.config.Imports
}

// ResolveType resolves a builtin type name, an imported type or an array type such as int[] or Foo[][].
func (ctx *ParserContext) ResolveType(name string) (reflect.Type, bool) {
	dims := 0
	for strings.HasSuffix(name, "[]") {
		name = strings.TrimSpace(name[:len(name)-2])
		dims++
	}

	t, ok := values.BUILTIN_TYPES[name]
	if !ok {
		imported, found := ctx.Import(name)
		if !found {
			return nil, false
		}
		t, ok = imported.(reflect.Type)
		if !ok {
			return nil, false
		}
	}

	for i := 0; i < dims; i++ {
		t = reflect.SliceOf(t)
	}
	return t, true
}

// AddVariable declares a variable in the innermost scope.
func (ctx *ParserContext) AddVariable(name string, t reflect.Type) {
	if t == nil {
		t = convert.ANY_TYPE
	}
	if n := len(ctx.scopes); n > 0 {
		ctx.scopes[n-1][name] = t
		return
	}
	ctx.variables[name] = t
}

func (ctx *ParserContext) AddInput(name string, t reflect.Type) {
	if t == nil {
		t = convert.ANY_TYPE
	}
	if _, ok := ctx.inputs[name]; ok {
		return
	}
	ctx.inputs[name] = t
}

func (ctx *ParserContext) HasVariable(name string) bool {
	_, ok := ctx.VariableType(name)
	return ok
}

func (ctx *ParserContext) HasInput(name string) bool {
	_, ok := ctx.inputs[name]
	return ok
}

// VariableType returns the static type of a declared variable, closure parameter or input.
func (ctx *ParserContext) VariableType(name string) (reflect.Type, bool) {
	for c := ctx; c != nil; c = c.parent {
		for i := len(c.scopes) - 1; i >= 0; i-- {
			if t, ok := c.scopes[i][name]; ok {
				return t, true
			}
		}
		if t, ok := c.variables[name]; ok {
			return t, true
		}
		if slices.Contains(c.indexedVariables, name) {
			return convert.ANY_TYPE, true
		}
		if t, ok := c.inputs[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Inputs returns the variables that are not declared by the expression itself.
func (ctx *ParserContext) Inputs() map[string]reflect.Type {
	return maps.Clone(ctx.inputs)
}

func (ctx *ParserContext) InputNames() []string {
	names := maps.Keys(ctx.inputs)
	slices.Sort(names)
	return names
}

func (ctx *ParserContext) Variables() map[string]reflect.Type {
	return maps.Clone(ctx.variables)
}

func (ctx *ParserContext) PushScope() {
	ctx.scopes = append(ctx.scopes, map[string]reflect.Type{})
}

func (ctx *ParserContext) PopScope() {
	if len(ctx.scopes) > 0 {
		ctx.scopes = ctx.scopes[:len(ctx.scopes)-1]
	}
}

func (ctx *ParserContext) DeclareFunction(fn *ast.Function) {
	ctx.functions[fn.Name] = fn
}

func (ctx *ParserContext) Function(name string) (*ast.Function, bool) {
	for c := ctx; c != nil; c = c.parent {
		if fn, ok := c.functions[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// IndexOf returns the slot of a closure parameter, -1 if name is not a parameter of the current closure.
func (ctx *ParserContext) IndexOf(name string) int {
	if !ctx.indexAllocation {
		return -1
	}
	for i := len(ctx.indexedVariables) - 1; i >= 0; i-- {
		if ctx.indexedVariables[i] == name {
			ctx.usedSlots.Set(uint(i))
			return i
		}
	}
	return -1
}

func (ctx *ParserContext) IndexedVariables() []string {
	return slices.Clone(ctx.indexedVariables)
}

// UsedSlots returns the slots referenced by the compiled body of a closure.
func (ctx *ParserContext) UsedSlots() []int {
	var used []int
	for i, ok := ctx.usedSlots.NextSet(0); ok; i, ok = ctx.usedSlots.NextSet(i + 1) {
		used = append(used, int(i))
	}
	return used
}

// Subcontext creates the context of a closure body, params are allocated indexed slots.
func (ctx *ParserContext) Subcontext(params []string, paramTypes []reflect.Type) *ParserContext {
	sub := &ParserContext{
		config:           ctx.config,
		parent:           ctx,
		variables:        map[string]reflect.Type{},
		inputs:           map[string]reflect.Type{},
		functions:        map[string]*ast.Function{},
		indexedVariables: slices.Clone(params),
		indexAllocation:  true,
		usedSlots:        bitset.New(uint(len(params))),
		source:           ctx.source,
		labeledLines:     ctx.labeledLines,
	}
	sub.PushScope()
	for i, name := range params {
		var t reflect.Type
		if i < len(paramTypes) {
			t = paramTypes[i]
		}
		sub.AddVariable(name, t)
	}
	return sub
}

// importIdentity identifies an imported value: reference values by their address, other values by
// their type and Go representation.
func importIdentity(v any) string {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return "nil"
	case reflect.Slice:
		return fmt.Sprintf("%s@%#x/%d", rv.Type(), rv.Pointer(), rv.Len())
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%#x", rv.Type(), rv.Pointer())
	}
	return fmt.Sprintf("%T:%#v", v, v)
}

// Clone returns a context sharing the configuration and the declarations of ctx, the clone
// has no diagnostics. Clones are used by sub-compilations made during evaluation.
func (ctx *ParserContext) Clone() *ParserContext {
	clone := &ParserContext{
		config:           ctx.config,
		parent:           ctx.parent,
		variables:        maps.Clone(ctx.variables),
		inputs:           maps.Clone(ctx.inputs),
		functions:        maps.Clone(ctx.functions),
		indexedVariables: slices.Clone(ctx.indexedVariables),
		indexAllocation:  ctx.indexAllocation,
		usedSlots:        bitset.New(uint(len(ctx.indexedVariables))),
		source:           ctx.source,
		labeledLines:     bitset.New(0),
	}
	for _, scope := range ctx.scopes {
		clone.scopes = append(clone.scopes, maps.Clone(scope))
	}
	return clone
}

// Fingerprint identifies the parts of the context that change the result of a compilation.
func (ctx *ParserContext) Fingerprint() string {
	buf := strings.Builder{}
	buf.WriteString(strconv.FormatBool(ctx.config.StrictTyping))
	buf.WriteString(strconv.FormatBool(ctx.config.StrongTyping))
	buf.WriteString(strconv.FormatBool(ctx.config.AllowNakedMethodCalls))

	for c := ctx; c != nil; c = c.parent {
		//imported constants are folded, so the values are part of the fingerprint
		imports := maps.Keys(c.config.Imports)
		slices.Sort(imports)
		buf.WriteString("|i:")
		for _, name := range imports {
			buf.WriteString(name + "=" + importIdentity(c.config.Imports[name]) + ",")
		}

		buf.WriteString("|s:")
		buf.WriteString(strings.Join(c.indexedVariables, ","))

		functions := maps.Keys(c.functions)
		slices.Sort(functions)
		buf.WriteString("|f:")
		buf.WriteString(strings.Join(functions, ","))

		if c.config.StrictTyping {
			inputs := maps.Keys(c.inputs)
			slices.Sort(inputs)
			for _, name := range inputs {
				buf.WriteString("|" + name + ":" + c.inputs[name].String())
			}
		}
	}
	return buf.String()
}

func (ctx *ParserContext) setSource(runes []rune) {
	if ctx.source == nil || !sameBuffer(ctx.source.Runes(), runes) {
		ctx.source = sourcecode.NewSource(ctx.config.SourceName, runes)
	}
}

func sameBuffer(a, b []rune) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (ctx *ParserContext) Source() *sourcecode.Source {
	return ctx.source
}

func (ctx *ParserContext) newError(offset int32, message string, fatal bool) *CompileError {
	err := &CompileError{
		Message:    message,
		SourceName: ctx.config.SourceName,
		Offset:     offset,
		Fatal:      fatal,
	}
	if ctx.source != nil {
		err.Line, err.Column = ctx.source.GetLineColumn(offset)
		before, after := ctx.source.GetLineCut(offset)
		err.LineText = strings.TrimSpace(before + after)
	}
	ctx.addError(err)
	return err
}

func (ctx *ParserContext) addError(err *CompileError) {
	for c := ctx; c != nil; c = c.parent {
		c.errors = append(c.errors, err)
	}
}

func (ctx *ParserContext) Errors() []*CompileError {
	return slices.Clone(ctx.errors)
}

// markLine reports whether a line label has to be emitted for the line containing offset.
func (ctx *ParserContext) markLine(offset int32) (int32, bool) {
	if !ctx.config.DebugSymbols || ctx.source == nil {
		return 0, false
	}
	line := ctx.source.GetLine(offset)
	if ctx.labeledLines.Test(uint(line)) {
		return line, false
	}
	ctx.labeledLines.Set(uint(line))
	return line, true
}
