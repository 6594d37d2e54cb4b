package ast

import (
	"reflect"
)

func NodeIs[T Node](node Node, typ T) bool {
	return reflect.TypeOf(typ) == reflect.TypeOf(node)
}

// NodeIsLiteralValue returns true if node is a literal holding a scalar value (not a type).
func NodeIsLiteralValue(node Node) bool {
	lit, ok := node.(*Literal)
	if !ok {
		return false
	}
	_, isType := lit.Literal.(reflect.Type)
	return !isType
}

// ShiftNodeSpans shifts the span of all nodes in the chain starting at node by offset.
func ShiftNodeSpans(node Node, offset int32) {
	Walk(node, func(n Node) error {
		n.Base().Span.Start += offset
		n.Base().Span.End += offset
		return nil
	})
}

func CountNodes(n Node) (count int) {
	Walk(n, func(node Node) error {
		count += 1
		return nil
	})
	return
}

// FindNodes returns the nodes of type $typ for which $handle returns true.
// If $handle is nil only the type is checked.
func FindNodes[T Node](root Node, typ T, handle func(n T) bool) []T {
	searchedType := reflect.TypeOf(typ)
	var found []T

	Walk(root, func(node Node) error {
		if reflect.TypeOf(node) == searchedType {
			if handle == nil || handle(node.(T)) {
				found = append(found, node.(T))
			}
		}
		return nil
	})
	return found
}

// FindFirstNode walks over a chain of nodes and returns the first node of type $typ.
func FindFirstNode[T Node](root Node, typ T) T {
	searchedType := reflect.TypeOf(typ)
	var found T

	Walk(root, func(node Node) error {
		if reflect.TypeOf(node) == searchedType {
			found = node.(T)
			return ErrStopWalk
		}
		return nil
	})
	return found
}

// Statements returns the nodes of a chain, the non executable ones are skipped.
func Statements(head Node) []Node {
	var statements []Node
	for current := head; current != nil; current = current.Base().Next {
		if !current.Base().HasFlag(FLAG_NON_EXECUTABLE) {
			statements = append(statements, current)
		}
	}
	return statements
}
