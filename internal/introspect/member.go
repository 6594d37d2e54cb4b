package introspect

import (
	"errors"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/inoxlang/evalx/internal/convert"
	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrNoSuchMember  = errors.New("no such member")
	ErrNilReceiver   = errors.New("nil receiver")
	ErrNotSettable   = errors.New("member is not settable")
	ErrArgumentCount = errors.New("wrong number of arguments")

	members = cmap.NewWithCustomShardingFunction[memberKey, MemberInfo](func(key memberKey) uint32 {
		return fnv32(key.name) ^ fnv32(key.typ.String())
	})
	methods = cmap.NewWithCustomShardingFunction[memberKey, MethodInfo](func(key memberKey) uint32 {
		return fnv32(key.name) ^ fnv32(key.typ.String())
	})
)

type MemberKind int

const (
	FieldMember MemberKind = iota + 1
	GetterMember
	SetterMember
	PropertyBagMember
)

func (k MemberKind) String() string {
	switch k {
	case FieldMember:
		return "field"
	case GetterMember:
		return "getter"
	case SetterMember:
		return "setter"
	case PropertyBagMember:
		return "property bag entry"
	}
	return "unknown"
}

// PropertyGetter is implemented by host objects exposing dynamic properties.
type PropertyGetter interface {
	GetProperty(name string) (any, bool)
}

type PropertySetter interface {
	SetProperty(name string, value any) error
}

var (
	PROPERTY_GETTER_TYPE = reflect.TypeOf((*PropertyGetter)(nil)).Elem()
	PROPERTY_SETTER_TYPE = reflect.TypeOf((*PropertySetter)(nil)).Elem()
)

type memberKey struct {
	typ    reflect.Type
	name   string
	setter bool
}

// MemberInfo describes how a named member of a type is read or written.
type MemberInfo struct {
	Kind       MemberKind
	Name       string       //name of the property as written in expressions
	GoName     string       //name of the field or method
	Type       reflect.Type //declared type of the field, return type of the getter or parameter type of the setter
	FieldIndex []int
	Method     MethodInfo
}

// Member resolves a readable property of t: an exported field (exact or capitalized name), then a Name() method,
// then a GetName() method, then IsName() for booleans. Types implementing PropertyGetter get a property bag entry.
func Member(t reflect.Type, name string) (MemberInfo, bool) {
	key := memberKey{typ: t, name: name}
	if info, ok := members.Get(key); ok {
		return info, info.Kind != 0
	}

	info, _ := resolveMember(t, name)
	members.Set(key, info)
	return info, info.Kind != 0
}

func resolveMember(t reflect.Type, name string) (MemberInfo, bool) {
	capitalized := Capitalize(name)

	if field, ok := exportedField(t, name, capitalized); ok {
		return MemberInfo{
			Kind:       FieldMember,
			Name:       name,
			GoName:     field.Name,
			Type:       field.Type,
			FieldIndex: field.Index,
		}, true
	}

	for _, methodName := range [...]string{capitalized, "Get" + capitalized, "Is" + capitalized} {
		method, ok := findMethod(t, methodName)
		if !ok || method.NumIn != 0 || method.Variadic || method.Result == nil {
			continue
		}
		if methodName[0] == 'I' && methodName != capitalized && method.Result != convert.BOOL_TYPE {
			continue
		}
		return MemberInfo{
			Kind:   GetterMember,
			Name:   name,
			GoName: methodName,
			Type:   method.Result,
			Method: method,
		}, true
	}

	if t.Implements(PROPERTY_GETTER_TYPE) {
		return MemberInfo{Kind: PropertyBagMember, Name: name, Type: convert.ANY_TYPE}, true
	}

	return MemberInfo{}, false
}

// Setter resolves a writable property of t: an exported field, then a SetName(v) method.
// Types implementing PropertySetter get a property bag entry.
func Setter(t reflect.Type, name string) (MemberInfo, bool) {
	key := memberKey{typ: t, name: name, setter: true}
	if info, ok := members.Get(key); ok {
		return info, info.Kind != 0
	}

	info, _ := resolveSetter(t, name)
	members.Set(key, info)
	return info, info.Kind != 0
}

func resolveSetter(t reflect.Type, name string) (MemberInfo, bool) {
	capitalized := Capitalize(name)

	if field, ok := exportedField(t, name, capitalized); ok {
		return MemberInfo{
			Kind:       FieldMember,
			Name:       name,
			GoName:     field.Name,
			Type:       field.Type,
			FieldIndex: field.Index,
		}, true
	}

	if method, ok := findMethod(t, "Set"+capitalized); ok && method.NumIn == 1 && !method.Variadic {
		return MemberInfo{
			Kind:   SetterMember,
			Name:   name,
			GoName: "Set" + capitalized,
			Type:   method.Params[0],
			Method: method,
		}, true
	}

	if t.Implements(PROPERTY_SETTER_TYPE) {
		return MemberInfo{Kind: PropertyBagMember, Name: name, Type: convert.ANY_TYPE}, true
	}

	return MemberInfo{}, false
}

func exportedField(t reflect.Type, names ...string) (reflect.StructField, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for _, name := range names {
		field, ok := t.FieldByName(name)
		if ok && field.IsExported() {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// Get reads the member on recv.
func (m MemberInfo) Get(recv reflect.Value) (any, error) {
	switch m.Kind {
	case FieldMember:
		v := recv
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, fmt.Errorf("%w: cannot read field %s", ErrNilReceiver, m.GoName)
			}
			v = v.Elem()
		}
		field, err := v.FieldByIndexErr(m.FieldIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read field %s: %w", ErrNilReceiver, m.GoName, err)
		}
		return field.Interface(), nil
	case GetterMember:
		return m.Method.Call(recv, nil)
	case PropertyBagMember:
		getter, ok := recv.Interface().(PropertyGetter)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchMember, m.Name)
		}
		value, ok := getter.GetProperty(m.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchMember, m.Name)
		}
		return value, nil
	}
	return nil, fmt.Errorf("%w: %s is not readable", ErrNoSuchMember, m.Name)
}

// Set writes value to the member on recv, value is converted to the member's type if necessary.
func (m MemberInfo) Set(recv reflect.Value, value any) error {
	switch m.Kind {
	case FieldMember:
		v := recv
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return fmt.Errorf("%w: cannot set field %s", ErrNilReceiver, m.GoName)
			}
			v = v.Elem()
		}
		field, err := v.FieldByIndexErr(m.FieldIndex)
		if err != nil {
			return fmt.Errorf("%w: cannot set field %s: %w", ErrNilReceiver, m.GoName, err)
		}
		if !field.CanSet() {
			return fmt.Errorf("%w: field %s of a non-addressable %s", ErrNotSettable, m.GoName, v.Type())
		}
		converted, err := Coerce(value, m.Type)
		if err != nil {
			return fmt.Errorf("cannot set field %s: %w", m.GoName, err)
		}
		field.Set(converted)
		return nil
	case SetterMember:
		_, err := m.Method.Call(recv, []any{value})
		return err
	case PropertyBagMember:
		setter, ok := recv.Interface().(PropertySetter)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotSettable, m.Name)
		}
		return setter.SetProperty(m.Name, value)
	}
	return fmt.Errorf("%w: %s", ErrNotSettable, m.Name)
}

// Coerce returns a value of type t from v, converting v only if it is not assignable to t.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("%w nil to %s", convert.ErrCannotConvert, t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	converted, err := convert.Convert(v, t)
	if err != nil {
		return reflect.Value{}, err
	}
	if converted == nil {
		return reflect.Zero(t), nil
	}
	return reflect.ValueOf(converted), nil
}

func Capitalize(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || unicode.IsUpper(r) {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func fnv32(key string) uint32 {
	hash := uint32(2166136261)
	const prime32 = uint32(16777619)
	for i := 0; i < len(key); i++ {
		hash *= prime32
		hash ^= uint32(key[i])
	}
	return hash
}
