package scope

import (
	"fmt"
	"reflect"

	"github.com/inoxlang/evalx/internal/utils"
	"golang.org/x/exp/maps"
)

// MapFactory stores its variables in a map[string]any, a MapFactory created by NewMapFactory is a root
// factory: it is a boundary for the tilt flag.
type MapFactory struct {
	base
	vars  map[string]any
	types map[string]reflect.Type
}

func NewMapFactory(vars map[string]any) *MapFactory {
	if vars == nil {
		vars = map[string]any{}
	}
	return &MapFactory{
		base: base{boundary: true},
		vars: vars,
	}
}

// Map returns the underlying map, variables created by expressions are visible in it.
func (f *MapFactory) Map() map[string]any {
	return f.vars
}

func (f *MapFactory) CreateVariable(name string, value any, typ reflect.Type) (Resolver, error) {
	if typ != nil {
		if f.types == nil {
			f.types = map[string]reflect.Type{}
		}
		f.types[name] = typ
	} else if f.types != nil {
		delete(f.types, name)
	}

	resolver := &mapVariable{factory: f, name: name}
	if err := resolver.SetValue(value); err != nil {
		return nil, err
	}
	return resolver, nil
}

func (f *MapFactory) CreateIndexedVariable(index int, name string, value any, typ reflect.Type) (Resolver, error) {
	return f.CreateVariable(name, value, typ)
}

func (f *MapFactory) GetVariableResolver(name string) (Resolver, error) {
	if _, ok := f.vars[name]; ok {
		return &mapVariable{factory: f, name: name}, nil
	}
	return f.nextResolver(name)
}

func (f *MapFactory) GetIndexedVariableResolver(index int) (Resolver, bool) {
	return f.nextIndexedResolver(index)
}

func (f *MapFactory) IsResolvable(name string) bool {
	return f.IsTarget(name) || f.nextIsResolvable(name)
}

func (f *MapFactory) IsTarget(name string) bool {
	_, ok := f.vars[name]
	return ok
}

func (f *MapFactory) IsIndexedFactory() bool {
	return false
}

func (f *MapFactory) SetNext(next Factory) Factory {
	f.next = next
	return next
}

func (f *MapFactory) KnownVariables() []string {
	return maps.Keys(f.vars)
}

type mapVariable struct {
	factory *MapFactory
	name    string
}

func (v *mapVariable) Name() string {
	return v.name
}

func (v *mapVariable) Type() reflect.Type {
	return v.factory.types[v.name]
}

func (v *mapVariable) SetStaticType(t reflect.Type) {
	if v.factory.types == nil {
		v.factory.types = map[string]reflect.Type{}
	}
	v.factory.types[v.name] = t
}

func (v *mapVariable) Value() any {
	return v.factory.vars[v.name]
}

func (v *mapVariable) SetValue(value any) error {
	converted, err := coerce(v.name, v.Type(), value)
	if err != nil {
		return err
	}
	v.factory.vars[v.name] = converted
	return nil
}

// BlockFactory holds the variables created inside a block, assignments to variables of the enclosing
// factories are delegated.
type BlockFactory struct {
	MapFactory
}

func NewBlockFactory(next Factory) *BlockFactory {
	return &BlockFactory{
		MapFactory: MapFactory{
			base: base{next: next},
			vars: map[string]any{},
		},
	}
}

// IndexedFactory is the frame of a closure call: parameters are stored in slots accessible by index.
// It is a boundary for the tilt flag.
type IndexedFactory struct {
	base
	slots  []*variable
	locals map[string]*variable
}

func NewIndexedFactory(names []string, values []any, next Factory) *IndexedFactory {
	f := &IndexedFactory{
		base:  base{next: next, boundary: true},
		slots: make([]*variable, len(names)),
	}
	for i, name := range names {
		f.slots[i] = &variable{name: name}
		if i < len(values) {
			f.slots[i].value = values[i]
		}
	}
	return f
}

func (f *IndexedFactory) slot(name string) *variable {
	for _, slot := range f.slots {
		if slot != nil && slot.name == name {
			return slot
		}
	}
	return nil
}

func (f *IndexedFactory) CreateVariable(name string, value any, typ reflect.Type) (Resolver, error) {
	if slot := f.slot(name); slot != nil {
		slot.typ = typ
		return slot, slot.SetValue(value)
	}

	if f.locals == nil {
		f.locals = map[string]*variable{}
	}
	local := &variable{name: name, typ: typ}
	if err := local.SetValue(value); err != nil {
		return nil, err
	}
	f.locals[name] = local
	return local, nil
}

func (f *IndexedFactory) CreateIndexedVariable(index int, name string, value any, typ reflect.Type) (Resolver, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w at index %d", ErrNoIndexedVariable, index)
	}
	for index >= len(f.slots) {
		f.slots = append(f.slots, nil)
	}
	slot := &variable{name: name, typ: typ}
	if err := slot.SetValue(value); err != nil {
		return nil, err
	}
	f.slots[index] = slot
	return slot, nil
}

func (f *IndexedFactory) GetVariableResolver(name string) (Resolver, error) {
	if slot := f.slot(name); slot != nil {
		return slot, nil
	}
	if local, ok := f.locals[name]; ok {
		return local, nil
	}
	return f.nextResolver(name)
}

func (f *IndexedFactory) GetIndexedVariableResolver(index int) (Resolver, bool) {
	if index >= 0 && index < len(f.slots) && f.slots[index] != nil {
		return f.slots[index], true
	}
	return nil, false
}

func (f *IndexedFactory) IsResolvable(name string) bool {
	return f.IsTarget(name) || f.nextIsResolvable(name)
}

func (f *IndexedFactory) IsTarget(name string) bool {
	if f.slot(name) != nil {
		return true
	}
	_, ok := f.locals[name]
	return ok
}

func (f *IndexedFactory) IsIndexedFactory() bool {
	return true
}

func (f *IndexedFactory) SetNext(next Factory) Factory {
	f.next = next
	return next
}

func (f *IndexedFactory) KnownVariables() []string {
	names := utils.FilterMapSlice(f.slots, func(slot *variable) (string, bool) {
		if slot == nil {
			return "", false
		}
		return slot.name, true
	})
	return append(names, maps.Keys(f.locals)...)
}

// ItemFactory holds the item variable of a foreach loop, other variables are created in the next factory.
type ItemFactory struct {
	base
	item *variable
}

func NewItemFactory(name string, typ reflect.Type, next Factory) *ItemFactory {
	return &ItemFactory{
		base: base{next: next},
		item: &variable{name: name, typ: typ},
	}
}

// SetItem sets the value of the item variable for the next iteration.
func (f *ItemFactory) SetItem(value any) error {
	return f.item.SetValue(value)
}

func (f *ItemFactory) CreateVariable(name string, value any, typ reflect.Type) (Resolver, error) {
	if name == f.item.name {
		return f.item, f.item.SetValue(value)
	}
	return f.next.CreateVariable(name, value, typ)
}

func (f *ItemFactory) CreateIndexedVariable(index int, name string, value any, typ reflect.Type) (Resolver, error) {
	return f.next.CreateIndexedVariable(index, name, value, typ)
}

func (f *ItemFactory) GetVariableResolver(name string) (Resolver, error) {
	if name == f.item.name {
		return f.item, nil
	}
	return f.nextResolver(name)
}

func (f *ItemFactory) GetIndexedVariableResolver(index int) (Resolver, bool) {
	return f.nextIndexedResolver(index)
}

func (f *ItemFactory) IsResolvable(name string) bool {
	return name == f.item.name || f.nextIsResolvable(name)
}

func (f *ItemFactory) IsTarget(name string) bool {
	return name == f.item.name
}

func (f *ItemFactory) IsIndexedFactory() bool {
	return false
}

func (f *ItemFactory) SetNext(next Factory) Factory {
	f.next = next
	return next
}

func (f *ItemFactory) KnownVariables() []string {
	return []string{f.item.name}
}

// ImmutableDefaultFactory exposes read-only variables, typically the imports of an expression.
type ImmutableDefaultFactory struct {
	base
	vars map[string]any
}

func NewImmutableDefaultFactory(vars map[string]any) *ImmutableDefaultFactory {
	return &ImmutableDefaultFactory{vars: utils.CopyMap(vars)}
}

func (f *ImmutableDefaultFactory) CreateVariable(name string, value any, typ reflect.Type) (Resolver, error) {
	if f.next == nil {
		return nil, fmt.Errorf("%w: cannot create %s", ErrImmutableVariable, name)
	}
	return f.next.CreateVariable(name, value, typ)
}

func (f *ImmutableDefaultFactory) CreateIndexedVariable(index int, name string, value any, typ reflect.Type) (Resolver, error) {
	return f.CreateVariable(name, value, typ)
}

func (f *ImmutableDefaultFactory) GetVariableResolver(name string) (Resolver, error) {
	if value, ok := f.vars[name]; ok {
		return immutableVariable{name: name, value: value}, nil
	}
	return f.nextResolver(name)
}

func (f *ImmutableDefaultFactory) GetIndexedVariableResolver(index int) (Resolver, bool) {
	return f.nextIndexedResolver(index)
}

func (f *ImmutableDefaultFactory) IsResolvable(name string) bool {
	return f.IsTarget(name) || f.nextIsResolvable(name)
}

func (f *ImmutableDefaultFactory) IsTarget(name string) bool {
	_, ok := f.vars[name]
	return ok
}

func (f *ImmutableDefaultFactory) IsIndexedFactory() bool {
	return false
}

func (f *ImmutableDefaultFactory) SetNext(next Factory) Factory {
	f.next = next
	return next
}

func (f *ImmutableDefaultFactory) KnownVariables() []string {
	return maps.Keys(f.vars)
}

type immutableVariable struct {
	name  string
	value any
}

func (v immutableVariable) Name() string               { return v.name }
func (v immutableVariable) Type() reflect.Type         { return nil }
func (v immutableVariable) SetStaticType(reflect.Type) {}
func (v immutableVariable) Value() any                 { return v.value }

func (v immutableVariable) SetValue(any) error {
	return fmt.Errorf("%w: %s", ErrImmutableVariable, v.name)
}
