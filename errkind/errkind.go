// Package errkind implements the structured error model from spec.md §7.
package errkind

import (
	"fmt"
	"strings"
)

// Kind enumerates the error kinds named in spec.md §7.
type Kind string

const (
	ParseError         Kind = "PARSE_ERROR"
	VariableRedef      Kind = "VARIABLE_REDEFINITION"
	UndefinedRef       Kind = "UNDEFINED_REFERENCE"
	FieldAccess        Kind = "FIELD_ACCESS_ERROR"
	ImportResolution   Kind = "IMPORT_RESOLUTION_ERROR"
	Integrity          Kind = "INTEGRITY_ERROR"
	NeedsUnsatisfied   Kind = "NEEDS_UNSATISFIED"
	Execution          Kind = "EXECUTION_ERROR"
	GuardDenial        Kind = "GUARD_DENIAL"
	Bail               Kind = "BAIL_ERROR"
	Cancellation       Kind = "CANCELLATION_ERROR"
)

// retryable marks kinds that the pipeline engine (§4.6) may retry
// automatically, distinct from an explicit `retry` guard/when outcome.
var retryable = map[Kind]bool{
	Execution: true,
}

// Location mirrors ast.Position without importing the ast package, so
// errkind stays leaf-level in the dependency graph.
type Location struct {
	Line   int
	Column int
	Offset int
}

func (l Location) String() string {
	if l.Line == 0 && l.Column == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// TraceEntry records one pipeline/stage/guard breadcrumb for an error.
type TraceEntry struct {
	Pipeline string
	Stage    int
	Guard    string
	Note     string
}

// Error is the single concrete error type produced by every component
// of the interpreter. Kind, Message, Location, SourceFile, Cause, and
// Trace are exactly the fields spec.md §7 requires errors to carry.
type Error struct {
	Kind       Kind
	Message    string
	Location   Location
	SourceFile string
	Cause      error
	Context    map[string]any
	Trace      []TraceEntry
}

// New creates an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: map[string]any{}}
}

// Wrap creates an Error wrapping an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause, Context: map[string]any{}}
}

// At sets the source location and returns the receiver for chaining.
func (e *Error) At(loc Location, sourceFile string) *Error {
	e.Location = loc
	e.SourceFile = sourceFile
	return e
}

// WithContext attaches a key/value pair of diagnostic context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// WithTrace appends a pipeline/stage/guard breadcrumb.
func (e *Error) WithTrace(t TraceEntry) *Error {
	e.Trace = append(e.Trace, t)
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if loc := e.Location.String(); loc != "" {
		fmt.Fprintf(&b, " (%s", loc)
		if e.SourceFile != "" {
			fmt.Fprintf(&b, " in %s", e.SourceFile)
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Matches reports whether err is an *Error of the given kind.
func Matches(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if me, ok := err.(*Error); ok {
			e = me
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// Retryable reports whether the pipeline engine may automatically retry
// an error of this kind (distinct from an explicit `retry` outcome).
func (k Kind) Retryable() bool {
	return retryable[k]
}

// ExitCode maps an error kind to the exit codes from spec.md §6.
func (k Kind) ExitCode() int {
	switch k {
	case ParseError:
		return 2
	case ImportResolution, Integrity, NeedsUnsatisfied:
		return 3
	case GuardDenial:
		return 4
	case Bail:
		return 5
	default:
		return 1
	}
}
