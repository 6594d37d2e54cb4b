package core

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/scope"
	"github.com/maruel/natural"
)

func (m runtimeMode) forEach(n *ast.ForEach, ctx, this any, vars scope.Factory) (any, error) {
	pctx := contextOf(n)
	collection, err := m.sequence(n.Collection, pctx, ctx, this, vars)
	if err != nil {
		return nil, err
	}

	items := scope.NewItemFactory(n.Item, n.ItemType, scope.NewBlockFactory(vars))
	var result any

	err = Iterate(collection, func(item any) (bool, error) {
		if err := items.SetItem(item); err != nil {
			return false, err
		}
		v, err := m.sequence(n.Body, pctx, ctx, this, items)
		if err != nil {
			return false, err
		}
		if items.IsTilted() {
			result = v
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Iterate calls yield for each element of collection until yield returns false:
//   - slices and arrays are iterated in order
//   - the keys of maps are iterated in natural order
//   - strings are iterated by character, each character is a string
//   - an integer n iterates from 1 to n
//   - nil has no elements
func Iterate(collection any, yield func(item any) (bool, error)) error {
	switch c := collection.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range c {
			if more, err := yield(item); err != nil || !more {
				return err
			}
		}
		return nil
	case string:
		for _, r := range c {
			if more, err := yield(string(r)); err != nil || !more {
				return err
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		sort.Sort(natural.StringSlice(keys))
		for _, k := range keys {
			if more, err := yield(k); err != nil || !more {
				return err
			}
		}
		return nil
	}

	rv := reflect.ValueOf(collection)
	if rv.Kind() == reflect.Pointer && rv.Type().Elem().Kind() == reflect.Array {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if more, err := yield(rv.Index(i).Interface()); err != nil || !more {
				return err
			}
		}
		return nil
	case reflect.Map:
		for _, key := range sortedKeys(rv) {
			if more, err := yield(key.Interface()); err != nil || !more {
				return err
			}
		}
		return nil
	}

	if convert.IsIntegerKind(rv.Kind()) {
		n, err := convert.ConvertTo[int](collection)
		if err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			if more, err := yield(i); err != nil || !more {
				return err
			}
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ErrNotIterable, rv.Type())
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	texts := make([]string, len(keys))
	for i, key := range keys {
		texts[i] = convert.ToString(key.Interface())
	}
	sort.Sort(keySorter{keys: keys, texts: texts})
	return keys
}

type keySorter struct {
	keys  []reflect.Value
	texts []string
}

func (s keySorter) Len() int {
	return len(s.keys)
}

func (s keySorter) Less(i, j int) bool {
	return natural.Less(s.texts[i], s.texts[j])
}

func (s keySorter) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.texts[i], s.texts[j] = s.texts[j], s.texts[i]
}
