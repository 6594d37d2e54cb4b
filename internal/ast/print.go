package ast

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/inoxlang/evalx/internal/convert"
)

// Dump returns a one-line structural representation of a chain of nodes, spans and caches are ignored.
func Dump(node Node) string {
	buf := bytes.NewBuffer(nil)
	first := true
	for current := node; current != nil; current = current.Base().Next {
		if !first {
			buf.WriteString("; ")
		}
		first = false
		dump(buf, current)
	}
	return buf.String()
}

func dumpSequence(buf *bytes.Buffer, seq *Sequence) {
	switch {
	case seq == nil:
		buf.WriteString("<nil>")
	case seq.LiteralOnly:
		buf.WriteString("{")
		writeLiteral(buf, seq.Value)
		buf.WriteString("}")
	case seq.Head == nil:
		buf.WriteString("{`")
		buf.WriteString(seq.Text())
		buf.WriteString("`}")
	default:
		buf.WriteString("{")
		buf.WriteString(Dump(seq.Head))
		buf.WriteString("}")
	}
}

func writeLiteral(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case string:
		fmt.Fprintf(buf, "%q", val)
	case reflect.Type:
		fmt.Fprintf(buf, "class(%s)", val)
	default:
		if v == nil {
			buf.WriteString("null")
			return
		}
		fmt.Fprintf(buf, "%s:%T", convert.ToString(v), v)
	}
}

func dumpChildren(buf *bytes.Buffer, name string, children ...Node) {
	buf.WriteString(name)
	buf.WriteString("(")
	for i, child := range children {
		if i > 0 {
			buf.WriteString(", ")
		}
		if child == nil {
			buf.WriteString("<nil>")
			continue
		}
		dump(buf, child)
	}
	buf.WriteString(")")
}

func dumpSequences(buf *bytes.Buffer, name string, seqs ...*Sequence) {
	buf.WriteString(name)
	for _, seq := range seqs {
		dumpSequence(buf, seq)
	}
}

func dump(buf *bytes.Buffer, node Node) {
	switch n := node.(type) {
	case *Literal:
		writeLiteral(buf, n.Literal)
	case *Property:
		buf.WriteString(n.Path)
		if n.SlotIndex >= 0 {
			fmt.Fprintf(buf, "@%d", n.SlotIndex)
		}
	case *OperatorNode:
		buf.WriteString(n.Operator.String())
	case *EndOfStatement:
		buf.WriteString(";")
	case *LineLabel:
		fmt.Fprintf(buf, "line(%d)", n.Line)
	case *BinaryOperation:
		dumpChildren(buf, n.Operator.String(), n.Left, n.Right)
	case *IntAdd:
		dumpChildren(buf, "int+", n.Left, n.Right)
	case *IntSub:
		dumpChildren(buf, "int-", n.Left, n.Right)
	case *IntMul:
		dumpChildren(buf, "int*", n.Left, n.Right)
	case *IntDiv:
		dumpChildren(buf, "int/", n.Left, n.Right)
	case *And:
		dumpChildren(buf, "and", n.Left, n.Right)
	case *Or:
		dumpChildren(buf, "or", n.Left, n.Right)
	case *Ternary:
		dumpChildren(buf, "ternary", n.Condition, n.Then, n.Else)
	case *InstanceOf:
		dumpChildren(buf, "instanceof", n.Value, n.Type)
	case *ConvertableTo:
		dumpChildren(buf, "convertable_to", n.Value, n.Type)
	case *RegexMatch:
		dumpChildren(buf, "regex", n.Value, n.Pattern)
	case *Negation:
		dumpChildren(buf, "not", n.Operand)
	case *Sign:
		dumpChildren(buf, "sign", n.Operand)
	case *BitwiseInvert:
		dumpChildren(buf, "invert", n.Operand)
	case *TypeCast:
		dumpChildren(buf, "cast<"+n.Type.String()+">", n.Operand)
	case *Union:
		dumpChildren(buf, "union["+n.Path+"]", n.Primary)
	case *Substatement:
		dumpSequences(buf, "sub", n.Inner)
	case *IsDef:
		buf.WriteString("isdef(" + n.Name + ")")
	case *Assignment:
		prefix := "assign[" + n.Name + "]"
		if n.Declare {
			prefix = "var[" + n.Name + "]"
		}
		dumpSequences(buf, prefix, n.Value)
	case *IndexedAssignment:
		dumpSequences(buf, fmt.Sprintf("assign[%s@%d]", n.Name, n.Index), n.Value)
	case *DeepAssignment:
		dumpSequences(buf, "assign["+n.Path+"]", n.Value)
	case *TypedVarDeclaration:
		dumpSequences(buf, fmt.Sprintf("declare[%s %s]", n.Type, n.Name), n.Value)
	case *OperativeAssign:
		dumpSequences(buf, "assign["+n.Name+" "+n.Operator.String()+"]", n.Value)
	case *IndexedOperativeAssign:
		dumpSequences(buf, fmt.Sprintf("assign[%s@%d %s]", n.Name, n.Index, n.Operator), n.Value)
	case *DeepOperativeAssign:
		dumpSequences(buf, "assign["+n.Path+" "+n.Operator.String()+"]", n.Value)
	case *IncDec:
		op := "++"
		if n.Delta < 0 {
			op = "--"
		}
		if n.Prefix {
			buf.WriteString(op + n.Name)
		} else {
			buf.WriteString(n.Name + op)
		}
	case *If:
		dumpSequences(buf, "if", n.Condition, n.Then)
		if n.ElseIf != nil {
			buf.WriteString("else ")
			dump(buf, n.ElseIf)
		} else if n.Else != nil {
			dumpSequences(buf, "else", n.Else)
		}
	case *While:
		dumpSequences(buf, "while", n.Condition, n.Body)
	case *Until:
		dumpSequences(buf, "until", n.Condition, n.Body)
	case *DoWhile:
		dumpSequences(buf, "do", n.Body, n.Condition)
	case *DoUntil:
		dumpSequences(buf, "do-until", n.Body, n.Condition)
	case *For:
		dumpSequences(buf, "for", n.Init, n.Condition, n.After, n.Body)
	case *ForEach:
		dumpSequences(buf, "foreach["+n.Item+"]", n.Collection, n.Body)
	case *Return:
		dumpSequences(buf, "return", n.Value)
	case *Assert:
		dumpSequences(buf, "assert", n.Value)
	case *With:
		dumpSequences(buf, "with", n.Target)
		for _, stmt := range n.Statements {
			dumpSequences(buf, "["+stmt.Path+"]", stmt.Value)
		}
	case *NewObject:
		dumpSequences(buf, "new["+n.TypeName+"]", n.Args...)
	case *NewArray:
		dumpSequences(buf, "new["+n.ElemType.String()+"[]]", n.Dimensions...)
	case *InlineCollection:
		switch n.Kind {
		case MapCollection:
			buf.WriteString("map[")
			for i := range n.Elements {
				if i > 0 {
					buf.WriteString(" ")
				}
				dumpSequence(buf, n.Keys[i])
				buf.WriteString(":")
				dumpSequence(buf, n.Elements[i])
			}
			buf.WriteString("]")
		default:
			name := "list"
			if n.Kind == ArrayCollection {
				name = "array"
				if n.ElemType != nil {
					name = n.ElemType.String() + "[]"
				}
			}
			dumpSequences(buf, name, n.Elements...)
		}
	case *Function:
		dumpSequences(buf, "def "+n.Name+"("+strings.Join(n.Params, ",")+")", n.Body)
	case *FunctionCall:
		dumpSequences(buf, "call["+n.Name+"]", n.Args...)
	default:
		fmt.Fprintf(buf, "%T", node)
	}
}
