package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inoxlang/evalx/internal/sourcecode"
	"github.com/inoxlang/evalx/internal/utils"
)

type NodeSpan = sourcecode.NodeSpan

const (
	UNTERMINATED_STRING_LIT             = "unterminated string literal"
	UNEXPECTED_END_OF_STATEMENT         = "unexpected end of statement"
	UNEXPECTED_END_OF_EXPRESSION        = "unexpected end of expression"
	PROTO_NOT_SUPPORTED                 = "proto definitions are not supported"
	ELSE_WITHOUT_IF                     = "'else' without 'if'"
	MISSING_CONDITION                   = "missing condition: a condition between parentheses is expected"
	MISSING_BLOCK_BODY                  = "missing block body"
	EMPTY_CONDITION                     = "empty condition"
	MISSING_NEW_TYPE                    = "a type name is expected after 'new'"
	NEW_ARRAY_WITH_INITIALIZER_AND_SIZE = "an array literal cannot have both a size and an initializer"
	MISSING_FUNCTION_BODY               = "missing function body"
	MISSING_FUNCTION_PARAMS             = "missing parameter list"
	INVALID_PARAMETER                   = "invalid parameter"
	MISSING_DO_CONDITION                = "'while' or 'until' expected after the body of a do block"
	INVALID_FOREACH_HEADER              = "invalid foreach header: (item : collection) expected"
	INVALID_FOR_HEADER                  = "invalid for header: (init; condition; after) expected"
	MISSING_ISDEF_NAME                  = "a variable name is expected after 'isdef'"
	MISSING_VAR_NAME                    = "a variable name is expected after 'var'"
	INVALID_ASSIGNMENT_TARGET           = "invalid assignment target"
	MISSING_ASSIGNED_VALUE              = "missing value after '='"
	INVALID_MAP_ENTRY                   = "invalid map entry: key : value expected"
	INVALID_WITH_STATEMENT              = "invalid statement in with block"
	INVALID_PROPERTY_PATH               = "invalid property path"
	UNEXPECTED_OPERATOR                 = "unexpected operator: an operand is expected"
	MISSING_OPERAND                     = "missing operand after operator"
	INVALID_TERNARY                     = "invalid ternary expression: ':' expected"
	DEBUG_SYMBOLS_WITHOUT_SOURCE_NAME   = "debug symbols require a source name"
	UNREDUCED_STACK                     = "internal error: the reduction stack is not empty"
)

var ErrCompilation = errors.New("compilation error")

func fmtUnterminatedDelimiter(r rune) string {
	return fmt.Sprintf("unbalanced delimiter: '%c' is not closed", r)
}

func fmtUnexpectedChar(r rune) string {
	return fmt.Sprintf("unexpected character '%c'", r)
}

func fmtUnknownOperator(s string) string {
	return fmt.Sprintf("unknown operator '%s'", s)
}

func fmtUnknownType(name string) string {
	return fmt.Sprintf("unknown type: %s", name)
}

func fmtUnqualifiedTypeInStrictMode(name string) string {
	return fmt.Sprintf("unqualified type in strict mode for: %s", name)
}

func fmtUnknownPropertyOfType(name, typ string) string {
	return fmt.Sprintf("could not access property (%s) in: %s", name, typ)
}

func fmtUnknownMethodOfType(name, typ string) string {
	return fmt.Sprintf("unable to resolve method %s() on type %s", name, typ)
}

func fmtIncompatibleTypes(op, left, right string) string {
	return fmt.Sprintf("incompatible types in statement: %s %s %s", left, op, right)
}

func fmtInvalidNumber(s string) string {
	return fmt.Sprintf("invalid number literal: %s", s)
}

func fmtCannotAssignToTypedVariable(name, typ, valueType string) string {
	return fmt.Sprintf("cannot assign a value of type %s to variable %s of type %s", valueType, name, typ)
}

func fmtVariableAlreadyDeclared(name string) string {
	return fmt.Sprintf("variable %s is already declared with a different type", name)
}

func fmtInvalidPattern(err error) string {
	return fmt.Sprintf("invalid regular expression: %s", err)
}

// A CompileError is located at an offset of the compiled source, fatal errors abort the compilation.
type CompileError struct {
	Message    string `json:"message"`
	SourceName string `json:"sourceName,omitempty"`
	Offset     int32  `json:"offset"`
	Line       int32  `json:"line"`
	Column     int32  `json:"column"`
	LineText   string `json:"lineText,omitempty"`
	Fatal      bool   `json:"fatal"`
}

func (err *CompileError) Error() string {
	buf := strings.Builder{}
	if err.SourceName != "" {
		buf.WriteString(err.SourceName)
		buf.WriteByte(':')
	}
	fmt.Fprintf(&buf, "%d:%d: %s", err.Line, err.Column, err.Message)
	if err.LineText != "" {
		buf.WriteString("\n  ")
		buf.WriteString(err.LineText)
	}
	return buf.String()
}

func (err *CompileError) MessageWithoutLocation() string {
	return err.Message
}

func (err *CompileError) LocationRange() sourcecode.PositionRange {
	return sourcecode.PositionRange{
		SourceName:  err.SourceName,
		StartLine:   err.Line,
		StartColumn: err.Column,
		EndLine:     err.Line,
		EndColumn:   err.Column + 1,
		Span:        sourcecode.NodeSpan{Start: err.Offset, End: err.Offset + 1},
	}
}

func (err *CompileError) Is(target error) bool {
	return target == ErrCompilation
}

// CompileErrors aggregates the errors reported during a compilation.
type CompileErrors struct {
	Errors []*CompileError
}

func (errs *CompileErrors) Error() string {
	return utils.CombineErrors(errs.Unwrap()...).Error()
}

func (errs *CompileErrors) Unwrap() []error {
	list := make([]error, len(errs.Errors))
	for i, err := range errs.Errors {
		list[i] = err
	}
	return list
}

func (errs *CompileErrors) HasFatal() bool {
	for _, err := range errs.Errors {
		if err.Fatal {
			return true
		}
	}
	return false
}
