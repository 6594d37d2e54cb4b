package ast

import (
	"reflect"

	"github.com/dlclark/regexp2"
	"github.com/inoxlang/evalx/internal/values"
)

// Sequence is a chain of statements: a block body, the value of an assignment, an argument...
type Sequence struct {
	Source []rune //shared source buffer
	Span   NodeSpan

	// Head is the first node of the compiled chain, it is nil if the sequence is evaluated in interpreted mode.
	Head Node

	EgressType  reflect.Type
	LiteralOnly bool
	Value       any //value of a literal-only sequence
}

func (s *Sequence) IsInterpreted() bool {
	return s.Head == nil && !s.LiteralOnly
}

func (s *Sequence) Text() string {
	if s.Span.End > int32(len(s.Source)) || s.Span.IsEmpty() {
		return ""
	}
	return string(s.Source[s.Span.Start:s.Span.End])
}

// Literal is a literal value or the result of folding an operation between literals.
type Literal struct {
	NodeBase
}

func NewLiteral(value any, span NodeSpan) *Literal {
	lit := &Literal{NodeBase: NodeBase{Span: span, Literal: value}}
	if value != nil {
		lit.EgressType = reflect.TypeOf(value)
	}
	lit.SetFlag(FLAG_LITERAL)
	return lit
}

// Property is an identifier or a property path such as a.b[0]?.c(1, x).
type Property struct {
	NodeBase
	Path      string
	Root      string //first identifier of the path
	SlotIndex int    //slot of the closure parameter named Root, -1 if Root is resolved by name
}

func (p *Property) IsSimpleIdentifier() bool {
	return !p.HasFlag(FLAG_DEEP_PROPERTY)
}

// OperatorNode only exists in flat token lists.
type OperatorNode struct {
	NodeBase
	Operator values.Operator
}

type EndOfStatement struct {
	NodeBase
}

type LineLabel struct {
	NodeBase
	SourceName string
	Line       int32
}

type BinaryOperation struct {
	NodeBase
	Operator    values.Operator
	Left, Right Node
}

// Integer specialized operations, both operands have an int egress type.
type (
	IntAdd struct{ BinaryOperation }
	IntSub struct{ BinaryOperation }
	IntMul struct{ BinaryOperation }
	IntDiv struct{ BinaryOperation }
)

type And struct {
	NodeBase
	Left, Right Node
}

type Or struct {
	NodeBase
	Left, Right Node
}

type Ternary struct {
	NodeBase
	Condition, Then, Else Node
}

type InstanceOf struct {
	NodeBase
	Value, Type Node
}

type ConvertableTo struct {
	NodeBase
	Value, Type Node
}

type RegexMatch struct {
	NodeBase
	Value, Pattern Node
	Compiled       *regexp2.Regexp //set if the pattern is a literal
}

type Negation struct {
	NodeBase
	Operand Node
}

type Sign struct {
	NodeBase
	Operand Node
}

type BitwiseInvert struct {
	NodeBase
	Operand Node
}

type Substatement struct {
	NodeBase
	Inner *Sequence
}

// Union applies a property path to the result of a primary expression: (a + b).length, new Foo().bar ...
type Union struct {
	NodeBase
	Primary Node
	Path    string
	Chains  TypeCache
}

type TypeCast struct {
	NodeBase
	Type    reflect.Type
	Operand Node
}

type IsDef struct {
	NodeBase
	Name string
}

type Assignment struct {
	NodeBase
	Name    string
	Value   *Sequence
	Declare bool //'var' declaration: the variable is created in the current scope
}

type IndexedAssignment struct {
	NodeBase
	Name  string
	Index int
	Value *Sequence
}

// DeepAssignment assigns a value at the end of a property path: a.b.c = 1, list[0] = 2.
type DeepAssignment struct {
	NodeBase
	Path  string
	Value *Sequence
}

type TypedVarDeclaration struct {
	NodeBase
	Name  string
	Type  reflect.Type
	Index int       //-1 if the variable is not a slot
	Value *Sequence //nil without initializer
}

type OperativeAssign struct {
	NodeBase
	Name     string
	Operator values.Operator
	Value    *Sequence
}

type IndexedOperativeAssign struct {
	NodeBase
	Name     string
	Index    int
	Operator values.Operator
	Value    *Sequence
}

type DeepOperativeAssign struct {
	NodeBase
	Path     string
	Operator values.Operator
	Value    *Sequence
}

// IncDec is ++ or -- applied to a variable, a slot or a property path.
type IncDec struct {
	NodeBase
	Name   string //name or path
	Index  int    //-1 if the target is not a slot
	Deep   bool
	Delta  int
	Prefix bool
}

type If struct {
	NodeBase
	Condition *Sequence
	Then      *Sequence
	ElseIf    *If
	Else      *Sequence
}

type While struct {
	NodeBase
	Condition, Body *Sequence
}

type Until struct {
	NodeBase
	Condition, Body *Sequence
}

type DoWhile struct {
	NodeBase
	Body, Condition *Sequence
}

type DoUntil struct {
	NodeBase
	Body, Condition *Sequence
}

type For struct {
	NodeBase
	Init, Condition, After *Sequence //Init and After can be nil
	Body                   *Sequence
}

type ForEach struct {
	NodeBase
	Item       string
	ItemType   reflect.Type
	Collection *Sequence
	Body       *Sequence
}

type Return struct {
	NodeBase
	Value *Sequence //nil for a bare return
}

type Assert struct {
	NodeBase
	Value *Sequence
}

type With struct {
	NodeBase
	Target     *Sequence
	Statements []*WithStatement
}

type WithStatement struct {
	Span     NodeSpan
	Path     string
	Operator values.Operator //NOOP for a plain assignment
	Value    *Sequence
	Setter   AccessorCache
}

type NewObject struct {
	NodeBase
	TypeName string
	Type     reflect.Type
	Factory  any //imported function creating the object, nil if Type is instantiated
	Args     []*Sequence
}

type NewArray struct {
	NodeBase
	ElemType   reflect.Type
	Dimensions []*Sequence
}

type CollectionKind int

const (
	ListCollection CollectionKind = iota
	ArrayCollection
	MapCollection
)

// InlineCollection is a list, map or array literal, its elements can be nested collections.
type InlineCollection struct {
	NodeBase
	Kind     CollectionKind
	ElemType reflect.Type //element type of typed arrays, nil otherwise
	Keys     []*Sequence  //keys of map literals
	Elements []*Sequence
}

// Function defines a closure, named functions are also stored in a variable.
type Function struct {
	NodeBase
	Name       string //empty for anonymous functions
	Params     []string
	ParamTypes []reflect.Type
	Body       *Sequence
	Inputs     []string //names referenced by the body that are not parameters or locals
}

// FunctionCall invokes a closure or a Go function stored in a variable.
type FunctionCall struct {
	NodeBase
	Name  string
	Index int //slot of the variable holding the function, -1 if resolved by name
	Args  []*Sequence
}
