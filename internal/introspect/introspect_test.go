package introspect

import (
	"errors"
	"reflect"
	"testing"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string
}

type person struct {
	Name    string
	Age     int
	Address *address
	secret  string
}

func (p person) Greeting() string {
	return "hello " + p.Name
}

func (p *person) GetNickname() string {
	return "nick"
}

func (p *person) IsAdult() bool {
	return p.Age >= 18
}

func (p *person) SetTitle(title string) {
	p.Name = title + " " + p.Name
}

func (p person) Fail() (int, error) {
	return 0, errors.New("failure")
}

func (p person) Join(sep string, parts ...string) string {
	result := p.Name
	for _, part := range parts {
		result += sep + part
	}
	return result
}

type bag map[string]any

func (b bag) GetProperty(name string) (any, bool) {
	v, ok := b[name]
	return v, ok
}

func TestMember(t *testing.T) {
	personType := reflect.TypeOf(person{})
	personPtrType := reflect.TypeOf(&person{})

	t.Run("field with capitalized name", func(t *testing.T) {
		info, ok := Member(personType, "name")
		require.True(t, ok)
		assert.Equal(t, FieldMember, info.Kind)
		assert.Equal(t, convert.STRING_TYPE, info.Type)

		v, err := info.Get(reflect.ValueOf(person{Name: "ann"}))
		require.NoError(t, err)
		assert.Equal(t, "ann", v)
	})

	t.Run("unexported fields are not members", func(t *testing.T) {
		_, ok := Member(personType, "secret")
		assert.False(t, ok)
	})

	t.Run("field through a pointer", func(t *testing.T) {
		info, ok := Member(personPtrType, "Age")
		require.True(t, ok)

		v, err := info.Get(reflect.ValueOf(&person{Age: 3}))
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("plain getter", func(t *testing.T) {
		info, ok := Member(personType, "greeting")
		require.True(t, ok)
		assert.Equal(t, GetterMember, info.Kind)

		v, err := info.Get(reflect.ValueOf(person{Name: "bob"}))
		require.NoError(t, err)
		assert.Equal(t, "hello bob", v)
	})

	t.Run("Get getter with pointer receiver on a value", func(t *testing.T) {
		info, ok := Member(personType, "nickname")
		require.True(t, ok)
		assert.True(t, info.Method.PointerReceiver)

		v, err := info.Get(reflect.ValueOf(person{}))
		require.NoError(t, err)
		assert.Equal(t, "nick", v)
	})

	t.Run("Is getter", func(t *testing.T) {
		info, ok := Member(personPtrType, "adult")
		require.True(t, ok)

		v, err := info.Get(reflect.ValueOf(&person{Age: 20}))
		require.NoError(t, err)
		assert.Equal(t, true, v)
	})

	t.Run("property bag", func(t *testing.T) {
		info, ok := Member(reflect.TypeOf(bag{}), "color")
		require.True(t, ok)
		assert.Equal(t, PropertyBagMember, info.Kind)

		v, err := info.Get(reflect.ValueOf(bag{"color": "red"}))
		require.NoError(t, err)
		assert.Equal(t, "red", v)
	})

	t.Run("nil embedded pointer", func(t *testing.T) {
		type wrapper struct{ *address }
		info, ok := Member(reflect.TypeOf(wrapper{}), "city")
		require.True(t, ok)

		_, err := info.Get(reflect.ValueOf(wrapper{}))
		assert.ErrorIs(t, err, ErrNilReceiver)
	})
}

func TestSetter(t *testing.T) {

	t.Run("field", func(t *testing.T) {
		p := &person{}
		info, ok := Setter(reflect.TypeOf(p), "age")
		require.True(t, ok)

		require.NoError(t, info.Set(reflect.ValueOf(p), "42"))
		assert.Equal(t, 42, p.Age)
	})

	t.Run("field of a non addressable struct", func(t *testing.T) {
		info, ok := Setter(reflect.TypeOf(person{}), "age")
		require.True(t, ok)

		err := info.Set(reflect.ValueOf(person{}), 1)
		assert.ErrorIs(t, err, ErrNotSettable)
	})

	t.Run("setter method", func(t *testing.T) {
		p := &person{Name: "ann"}
		info, ok := Setter(reflect.TypeOf(p), "title")
		require.True(t, ok)
		assert.Equal(t, SetterMember, info.Kind)

		require.NoError(t, info.Set(reflect.ValueOf(p), "dr"))
		assert.Equal(t, "dr ann", p.Name)
	})
}

func TestMethod(t *testing.T) {
	personType := reflect.TypeOf(person{})

	t.Run("error result", func(t *testing.T) {
		method, ok := Method(personType, "fail")
		require.True(t, ok)
		assert.True(t, method.ReturnsError)

		_, err := method.Call(reflect.ValueOf(person{}), nil)
		assert.EqualError(t, err, "failure")
	})

	t.Run("variadic", func(t *testing.T) {
		method, ok := Method(personType, "Join")
		require.True(t, ok)
		assert.True(t, method.AcceptsArgCount(1))
		assert.True(t, method.AcceptsArgCount(3))
		assert.False(t, method.AcceptsArgCount(0))

		v, err := method.Call(reflect.ValueOf(person{Name: "a"}), []any{"-", "b", 3})
		require.NoError(t, err)
		assert.Equal(t, "a-b-3", v)
	})

	t.Run("missing", func(t *testing.T) {
		_, ok := Method(personType, "missing")
		assert.False(t, ok)

		_, ok = Method(personType, "missing")
		assert.False(t, ok)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		method, _ := Method(personType, "Greeting")
		_, err := method.Call(reflect.ValueOf(person{}), []any{1})
		assert.ErrorIs(t, err, ErrArgumentCount)
	})
}

func TestNewInstance(t *testing.T) {

	t.Run("zero value", func(t *testing.T) {
		v, err := NewInstance(reflect.TypeOf(address{}), nil)
		require.NoError(t, err)
		assert.Equal(t, &address{}, v)
	})

	t.Run("positional fields", func(t *testing.T) {
		v, err := NewInstance(reflect.TypeOf(address{}), []any{"Paris"})
		require.NoError(t, err)
		assert.Equal(t, &address{City: "Paris"}, v)
	})

	t.Run("registered constructor", func(t *testing.T) {
		type point struct{ X, Y int }
		require.NoError(t, RegisterConstructor(func(x int) *point { return &point{x, x} }))

		v, err := NewInstance(reflect.TypeOf(point{}), []any{int64(2)})
		require.NoError(t, err)
		assert.Equal(t, &point{2, 2}, v)
	})

	t.Run("invalid constructor", func(t *testing.T) {
		assert.ErrorIs(t, RegisterConstructor(3), ErrInvalidConstructor)
		assert.ErrorIs(t, RegisterConstructor(func() {}), ErrInvalidConstructor)
	})
}
