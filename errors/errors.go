package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad     Phase = "load"     // module compilation
	PhaseInit     Phase = "init"     // engine setup
	PhaseGenerate Phase = "generate" // allocate-and-generate path
	PhaseMutate   Phase = "mutate"   // in-place path
	PhaseConfig   Phase = "config"   // configuration
	PhaseRuntime  Phase = "runtime"  // other runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindEngine           Kind = "engine_failure"
	KindNotInitialized   Kind = "not_initialized"
	KindMissingExport    Kind = "missing_export"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindAllocation       Kind = "allocation"
	KindOverflow         Kind = "overflow"
	KindUnsupported      Kind = "unsupported"
	KindInvalidInput     Kind = "invalid_input"
	KindInstantiation    Kind = "instantiation"
	KindNotFound         Kind = "not_found"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Engine string
	Export string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Engine != "" {
		b.WriteString(" (")
		b.WriteString(e.Engine)
		b.WriteByte(')')
	}

	if e.Export != "" {
		b.WriteString(" at ")
		b.WriteString(e.Export)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err or anything it wraps is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Engine sets the engine backend name
func (b *Builder) Engine(name string) *Builder {
	b.err.Engine = name
	return b
}

// Export sets the engine entry point involved
func (b *Builder) Export(name string) *Builder {
	b.err.Export = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// CapacityExceeded reports an engine that claimed more output than the buffer holds.
func CapacityExceeded(phase Phase, reported, capacity int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCapacityExceeded,
		Detail: fmt.Sprintf("engine reported %d bytes for a %d byte buffer", reported, capacity),
		Value:  reported,
	}
}

// EngineFailure wraps an error returned by an engine entry point
func EngineFailure(phase Phase, export string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngine,
		Export: export,
		Cause:  cause,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Value:  size,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error for a guest memory range
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) outside guest memory", offset, uint64(offset)+uint64(length)),
		Value:  offset,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized reports use of an engine before its setup ran
func NotInitialized(phase Phase, engine string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Engine: engine,
		Detail: "engine used before Init",
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation wraps a failure to create an engine instance
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInit,
		Kind:   KindInstantiation,
		Detail: "failed to instantiate engine module",
		Cause:  cause,
	}
}

// Load wraps a failure to load or compile an engine module
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidInput,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExportsError is returned when an engine module lacks required entry points
type MissingExportsError struct {
	Module  string
	Exports []string
}

// NewMissingExportsError creates an error listing the missing exports in sorted order
func NewMissingExportsError(module string, exports []string) *MissingExportsError {
	sorted := make([]string, len(exports))
	copy(sorted, exports)
	sort.Strings(sorted)
	return &MissingExportsError{
		Module:  module,
		Exports: sorted,
	}
}

func (e *MissingExportsError) Error() string {
	var b strings.Builder
	b.WriteString("engine module")
	if e.Module != "" {
		b.WriteString(" ")
		b.WriteString(e.Module)
	}
	fmt.Fprintf(&b, " is missing %d required export", len(e.Exports))
	if len(e.Exports) != 1 {
		b.WriteByte('s')
	}
	b.WriteString(": ")
	b.WriteString(strings.Join(e.Exports, ", "))
	return b.String()
}

// Is matches any *Error of KindMissingExport, so callers can test with
// errors.Is(err, &Error{Phase: PhaseInit, Kind: KindMissingExport}).
func (e *MissingExportsError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == KindMissingExport
	}
	_, ok := target.(*MissingExportsError)
	return ok
}
