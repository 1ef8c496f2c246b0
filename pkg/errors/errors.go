package errors

import (
	"fmt"
	"io"
	"strings"
)

// DecompileError is the interface implemented by all decompiler errors.
type DecompileError interface {
	error
	Pos() Position
	Kind() string // "UnresolvedSymbol", "StackUnderflow", "MalformedInstruction"
	// Message returns the specific error message without position info.
	Message() string
	Unwrap() error
}

// --- Concrete Error Types ---

// UnresolvedSymbolError is raised when a handler, variable or function id
// is absent from the symbol database. Fatal for the enclosing class.
type UnresolvedSymbolError struct {
	Position
	Msg   string
	Cause error
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("Unresolved Symbol at %s: %s", e.Position.String(), e.Msg)
}
func (e *UnresolvedSymbolError) Pos() Position   { return e.Position }
func (e *UnresolvedSymbolError) Kind() string    { return "UnresolvedSymbol" }
func (e *UnresolvedSymbolError) Message() string { return e.Msg }
func (e *UnresolvedSymbolError) Unwrap() error   { return e.Cause }
func (e *UnresolvedSymbolError) CausedBy(cause error) *UnresolvedSymbolError {
	e.Cause = cause
	return e
}

// StackUnderflowError is raised when a pop is requested and neither the
// operand stack nor the current block can supply a value.
type StackUnderflowError struct {
	Position
	Msg   string
	Cause error
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("Stack Underflow at %s: %s", e.Position.String(), e.Msg)
}
func (e *StackUnderflowError) Pos() Position   { return e.Position }
func (e *StackUnderflowError) Kind() string    { return "StackUnderflow" }
func (e *StackUnderflowError) Message() string { return e.Msg }
func (e *StackUnderflowError) Unwrap() error   { return e.Cause }
func (e *StackUnderflowError) CausedBy(cause error) *StackUnderflowError {
	e.Cause = cause
	return e
}

// MalformedInstructionError reports an instruction missing an expected operand
// or carrying one that cannot be parsed. The tokenizer only warns with it; the
// lifter fails the class when it cannot continue.
type MalformedInstructionError struct {
	Position
	Msg   string
	Cause error
}

func (e *MalformedInstructionError) Error() string {
	return fmt.Sprintf("Malformed Instruction at %s: %s", e.Position.String(), e.Msg)
}
func (e *MalformedInstructionError) Pos() Position   { return e.Position }
func (e *MalformedInstructionError) Kind() string    { return "MalformedInstruction" }
func (e *MalformedInstructionError) Message() string { return e.Msg }
func (e *MalformedInstructionError) Unwrap() error   { return e.Cause }
func (e *MalformedInstructionError) CausedBy(cause error) *MalformedInstructionError {
	e.Cause = cause
	return e
}

func (p Position) String() string {
	switch {
	case p.Class != "" && p.Line > 0:
		return fmt.Sprintf("%s:%d", p.Class, p.Line)
	case p.Class != "":
		return p.Class
	default:
		return fmt.Sprintf("line %d", p.Line)
	}
}

// --- Error Reporting ---

// DisplayErrors prints a list of decompiler errors in a user-friendly format,
// including the offending listing line when it is known.
func DisplayErrors(w io.Writer, errs []DecompileError) {
	for _, err := range errs {
		pos := err.Pos()
		fmt.Fprintf(w, "%s Error at %s: %s\n", err.Kind(), pos.String(), err.Message())

		if pos.Source == nil || pos.Line <= 0 {
			continue
		}
		line := strings.TrimRight(pos.Source.Line(pos.Line), "\r\n\t ")
		if line == "" {
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", pos.Source.DisplayPath(), line)
		fmt.Fprintln(w)
	}
}
