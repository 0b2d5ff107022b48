// Package errors defines the runtime error kinds of the reactive VM (spec
// §7), in the category/code/context shape the teacher's
// internal/errors/standard.go uses for its own standardized errors.
package errors

import "fmt"

// Kind identifies one of the runtime error categories the VM can raise.
// All of them terminate the running program with a stack trace.
type Kind string

const (
	TypeMismatch    Kind = "TYPE_MISMATCH"
	OutOfBounds     Kind = "OUT_OF_BOUNDS"
	UndeclaredField Kind = "UNDECLARED_FIELD"
	UndefinedName   Kind = "UNDEFINED_NAME"
	ReactiveCycle   Kind = "REACTIVE_CYCLE"
	AssertFailed    Kind = "ASSERT_FAILED"
	UserError       Kind = "USER_ERROR"
	ImmutableWrite  Kind = "IMMUTABLE_WRITE"
	LoaderError     Kind = "LOADER_ERROR"
)

// RuntimeError is the error type every VM-level failure is reported as.
// Context carries whatever values are useful for diagnostics (an index and
// a length for OutOfBounds, a field name for UndeclaredField, and so on) —
// the same free-form map the teacher's StandardError carries.
type RuntimeError struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates a RuntimeError of the given kind.
func New(kind Kind, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithContext attaches diagnostic context and returns the same error, so
// call sites can chain it onto New(...).
func (e *RuntimeError) WithContext(ctx map[string]interface{}) *RuntimeError {
	e.Context = ctx
	return e
}

func OutOfBoundsErr(index, length int) *RuntimeError {
	return New(OutOfBounds, "index %d out of bounds for length %d", index, length).
		WithContext(map[string]interface{}{"index": index, "length": length})
}

func UndeclaredFieldErr(layout string, field int) *RuntimeError {
	return New(UndeclaredField, "field %d is not declared on layout %q", field, layout).
		WithContext(map[string]interface{}{"layout": layout, "field": field})
}

func UndefinedNameErr(name string) *RuntimeError {
	return New(UndefinedName, "undefined name %q", name).
		WithContext(map[string]interface{}{"name": name})
}

func ReactiveCycleErr(exprID int) *RuntimeError {
	return New(ReactiveCycle, "reactive cycle detected while evaluating expr %d", exprID).
		WithContext(map[string]interface{}{"expr_id": exprID})
}

func ImmutableWriteErr(name string) *RuntimeError {
	return New(ImmutableWrite, "cannot write to immutable binding %q", name).
		WithContext(map[string]interface{}{"name": name})
}

func LoaderErr(format string, args ...interface{}) *RuntimeError {
	return New(LoaderError, format, args...)
}

func TypeMismatchErr(format string, args ...interface{}) *RuntimeError {
	return New(TypeMismatch, format, args...)
}
