package scope

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/inoxlang/evalx/internal/convert"
)

var (
	ErrUnresolvableVariable = errors.New("unresolvable variable")
	ErrImmutableVariable    = errors.New("variable cannot be modified")
	ErrNoIndexedVariable    = errors.New("no indexed variable")
)

// A Factory creates and resolves variables, lookups that fail are delegated to the next factory of the chain.
type Factory interface {
	CreateVariable(name string, value any, typ reflect.Type) (Resolver, error)
	CreateIndexedVariable(index int, name string, value any, typ reflect.Type) (Resolver, error)

	GetVariableResolver(name string) (Resolver, error)
	GetIndexedVariableResolver(index int) (Resolver, bool)

	// IsResolvable reports whether the variable is defined in this factory or in one of the next ones.
	IsResolvable(name string) bool

	// IsTarget reports whether the variable is defined in this factory.
	IsTarget(name string) bool

	IsIndexedFactory() bool

	// IsBoundary reports whether the factory is the root factory or a call frame.
	IsBoundary() bool

	Next() Factory
	SetNext(next Factory) Factory

	// KnownVariables returns the names of the variables defined in this factory.
	KnownVariables() []string

	// IsTilted reports whether a return statement has been executed in the enclosing call frame.
	IsTilted() bool
	SetTilted(tilted bool)
}

// A Resolver is a handle on a single variable.
type Resolver interface {
	Name() string

	// Type returns the declared type of the variable, nil if the variable is untyped.
	Type() reflect.Type
	SetStaticType(t reflect.Type)

	Value() any
	SetValue(value any) error
}

type base struct {
	next     Factory
	tilted   bool
	boundary bool
}

func (b *base) Next() Factory {
	return b.next
}

func (b *base) IsBoundary() bool {
	return b.boundary || b.next == nil
}

func (b *base) IsTilted() bool {
	if !b.IsBoundary() {
		return b.next.IsTilted()
	}
	return b.tilted
}

func (b *base) SetTilted(tilted bool) {
	if !b.IsBoundary() {
		b.next.SetTilted(tilted)
		return
	}
	b.tilted = tilted
}

func (b *base) nextResolver(name string) (Resolver, error) {
	if b.next != nil {
		return b.next.GetVariableResolver(name)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnresolvableVariable, name)
}

func (b *base) nextIsResolvable(name string) bool {
	return b.next != nil && b.next.IsResolvable(name)
}

func (b *base) nextIndexedResolver(index int) (Resolver, bool) {
	if b.next != nil {
		return b.next.GetIndexedVariableResolver(index)
	}
	return nil, false
}

// Resolve returns the value of the variable named name in the chain starting at f.
func Resolve(f Factory, name string) (any, error) {
	resolver, err := f.GetVariableResolver(name)
	if err != nil {
		return nil, err
	}
	return resolver.Value(), nil
}

// Assign sets the value of a variable if it is resolvable, otherwise the variable is created in f.
func Assign(f Factory, name string, value any) (Resolver, error) {
	if f.IsResolvable(name) {
		resolver, err := f.GetVariableResolver(name)
		if err != nil {
			return nil, err
		}
		return resolver, resolver.SetValue(value)
	}
	return f.CreateVariable(name, value, nil)
}

// ResetTilt clears the tilt flag of the boundary enclosing f.
func ResetTilt(f Factory) {
	f.SetTilted(false)
}

// Root returns the last factory of the chain.
func Root(f Factory) Factory {
	for f.Next() != nil {
		f = f.Next()
	}
	return f
}

// AllVariables returns the sorted names of the variables resolvable from f.
func AllVariables(f Factory) []string {
	seen := map[string]struct{}{}
	var names []string

	for current := f; current != nil; current = current.Next() {
		for _, name := range current.KnownVariables() {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// variable is the resolver of the map backed factories.
type variable struct {
	name  string
	typ   reflect.Type
	value any
}

func (v *variable) Name() string {
	return v.name
}

func (v *variable) Type() reflect.Type {
	return v.typ
}

func (v *variable) SetStaticType(t reflect.Type) {
	v.typ = t
}

func (v *variable) Value() any {
	return v.value
}

func (v *variable) SetValue(value any) error {
	converted, err := coerce(v.name, v.typ, value)
	if err != nil {
		return err
	}
	v.value = converted
	return nil
}

func coerce(name string, typ reflect.Type, value any) (any, error) {
	if typ == nil || typ == convert.ANY_TYPE || value == nil {
		return value, nil
	}
	if reflect.TypeOf(value) == typ {
		return value, nil
	}
	converted, err := convert.Convert(value, typ)
	if err != nil {
		return nil, fmt.Errorf("cannot assign to variable %s of type %s: %w", name, typ, err)
	}
	return converted, nil
}
