package ast

import (
	"errors"
)

var ErrStopWalk = errors.New("stop walk")

// Walk calls fn on node and its descendants in depth-first order, the statements following node
// (Next links) are also visited. Returning ErrStopWalk from fn stops the walk without error.
func Walk(node Node, fn func(n Node) error) error {
	err := walk(node, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walk(node Node, fn func(n Node) error) error {
	for current := node; current != nil; current = current.Base().Next {
		if err := fn(current); err != nil {
			return err
		}
		for _, child := range Children(current) {
			if err := walk(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

func sequenceHeads(seqs ...*Sequence) []Node {
	var heads []Node
	for _, seq := range seqs {
		if seq != nil && seq.Head != nil {
			heads = append(heads, seq.Head)
		}
	}
	return heads
}

// Children returns the direct children of a node, the heads of compiled sequences included.
func Children(node Node) []Node {
	switch n := node.(type) {
	case *BinaryOperation:
		return []Node{n.Left, n.Right}
	case *IntAdd:
		return []Node{n.Left, n.Right}
	case *IntSub:
		return []Node{n.Left, n.Right}
	case *IntMul:
		return []Node{n.Left, n.Right}
	case *IntDiv:
		return []Node{n.Left, n.Right}
	case *And:
		return []Node{n.Left, n.Right}
	case *Or:
		return []Node{n.Left, n.Right}
	case *Ternary:
		return []Node{n.Condition, n.Then, n.Else}
	case *InstanceOf:
		return []Node{n.Value, n.Type}
	case *ConvertableTo:
		return []Node{n.Value, n.Type}
	case *RegexMatch:
		return []Node{n.Value, n.Pattern}
	case *Negation:
		return []Node{n.Operand}
	case *Sign:
		return []Node{n.Operand}
	case *BitwiseInvert:
		return []Node{n.Operand}
	case *TypeCast:
		return []Node{n.Operand}
	case *Union:
		return []Node{n.Primary}
	case *Substatement:
		return sequenceHeads(n.Inner)
	case *Assignment:
		return sequenceHeads(n.Value)
	case *IndexedAssignment:
		return sequenceHeads(n.Value)
	case *DeepAssignment:
		return sequenceHeads(n.Value)
	case *TypedVarDeclaration:
		return sequenceHeads(n.Value)
	case *OperativeAssign:
		return sequenceHeads(n.Value)
	case *IndexedOperativeAssign:
		return sequenceHeads(n.Value)
	case *DeepOperativeAssign:
		return sequenceHeads(n.Value)
	case *If:
		children := sequenceHeads(n.Condition, n.Then, n.Else)
		if n.ElseIf != nil {
			children = append(children, n.ElseIf)
		}
		return children
	case *While:
		return sequenceHeads(n.Condition, n.Body)
	case *Until:
		return sequenceHeads(n.Condition, n.Body)
	case *DoWhile:
		return sequenceHeads(n.Body, n.Condition)
	case *DoUntil:
		return sequenceHeads(n.Body, n.Condition)
	case *For:
		return sequenceHeads(n.Init, n.Condition, n.After, n.Body)
	case *ForEach:
		return sequenceHeads(n.Collection, n.Body)
	case *Return:
		return sequenceHeads(n.Value)
	case *Assert:
		return sequenceHeads(n.Value)
	case *With:
		children := sequenceHeads(n.Target)
		for _, stmt := range n.Statements {
			children = append(children, sequenceHeads(stmt.Value)...)
		}
		return children
	case *NewObject:
		return sequenceHeads(n.Args...)
	case *NewArray:
		return sequenceHeads(n.Dimensions...)
	case *InlineCollection:
		return append(sequenceHeads(n.Keys...), sequenceHeads(n.Elements...)...)
	case *Function:
		return sequenceHeads(n.Body)
	case *FunctionCall:
		return sequenceHeads(n.Args...)
	}
	return nil
}
