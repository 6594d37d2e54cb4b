package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/inoxlang/evalx/internal/ast"
	"github.com/inoxlang/evalx/internal/sourcecode"
)

var (
	ErrNullSafeViolation             = errors.New("cannot access a property of a nil value")
	ErrAssertionFailed               = errors.New("assertion failed")
	ErrNotSupportedInInterpretedMode = errors.New("not supported in interpreted mode")
	ErrAccessorTypeMismatch          = errors.New("accessor type mismatch")
	ErrNotIterable                   = errors.New("value is not iterable")
	ErrNotCallable                   = errors.New("value is not callable")
	ErrUnexpectedToken               = errors.New("unexpected token")
	ErrIndexOutOfRange               = errors.New("index out of range")
	ErrNoSuchProperty                = errors.New("could not access property")
	ErrInvalidArrayDimension         = errors.New("invalid array dimension")
)

// An EvaluationError is an error located in the source of the evaluated expression.
type EvaluationError struct {
	Message string
	Span    sourcecode.NodeSpan
	Line    int32 //1-based, 0 if unknown
	Err     error
}

func (e *EvaluationError) Error() string {
	buf := strings.Builder{}
	if e.Line > 0 {
		fmt.Fprintf(&buf, "line %d: ", e.Line)
	}
	buf.WriteString(e.Message)
	if e.Err != nil && (e.Message == "" || !strings.Contains(e.Message, e.Err.Error())) {
		if e.Message != "" {
			buf.WriteString(": ")
		}
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// locate wraps err in an EvaluationError located at the span of node, errors that are already
// located are returned as is.
func locate(err error, node ast.Node, source []rune, line int32) error {
	if err == nil {
		return nil
	}
	var located *EvaluationError
	if errors.As(err, &located) {
		if located.Line == 0 && line > 0 {
			located.Line = line
		}
		return err
	}

	span := node.Base().Span
	evalErr := &EvaluationError{Span: span, Line: line, Err: err}
	if source != nil && span.End <= int32(len(source)) && span.Start < span.End {
		evalErr.Message = "in '" + strings.TrimSpace(string(source[span.Start:span.End])) + "'"
		if line == 0 {
			evalErr.Line = sourcecode.NewSource("", source).GetLine(span.Start)
		}
	}
	return evalErr
}
