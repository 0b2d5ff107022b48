// Package builtins implements spec §4.7's print/println formatting, the four
// filesystem primitives behind a HostFS seam that CALL_NATIVE dispatches to,
// and the assert/error builtins behind the ASSERT and ERROR opcodes. Error
// construction follows the
// teacher's internal/errors/standard.go context-map style.
package builtins

import (
	"fmt"
	"io"
	"os"

	"github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/value"
)

// HostFS is the filesystem seam spec §6 calls "host interfaces consumed by
// builtins." A real OSHostFS satisfies it with os.*; tests substitute a
// go.uber.org/mock-generated double so the suite never touches disk.
type HostFS interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Exists(path string) bool
	Remove(path string) error
}

// OSHostFS is the production HostFS, backed directly by the os package.
type OSHostFS struct{}

func (OSHostFS) ReadFile(path string) ([]byte, error)      { return os.ReadFile(path) }
func (OSHostFS) WriteFile(path string, data []byte) error  { return os.WriteFile(path, data, 0o644) }
func (OSHostFS) Exists(path string) bool                   { _, err := os.Stat(path); return err == nil }
func (OSHostFS) Remove(path string) error                  { return os.Remove(path) }

// AsString renders a heap value as a Go string if it is an array whose
// elements are all Char (spec §4.1's "strings are arrays of Char"), and
// reports whether the conversion applied.
func AsString(v value.Value, heap *value.Heap) (string, bool) {
	if v.Tag != value.TagHeapRef {
		return "", false
	}
	obj, err := heap.Get(v.H)
	if err != nil || obj.Kind != value.ObjArray {
		return "", false
	}
	runes := make([]rune, 0, len(obj.Slots))
	for _, s := range obj.Slots {
		if s.Val.Tag != value.TagChar {
			return "", false
		}
		runes = append(runes, s.Val.C)
	}
	return string(runes), true
}

// NewStringArray allocates a fresh heap array of Char from a Go string,
// the inverse of AsString, used by file_read and the ERROR/string-constant
// materialization path.
func NewStringArray(heap *value.Heap, s string) value.Value {
	runes := []rune(s)
	id := heap.AllocArray(len(runes))
	obj, _ := heap.Get(id)
	for i, r := range runes {
		obj.Slots[i] = value.NewMutSlot(value.Char(r))
	}
	return value.HeapRef(id)
}

// Render implements print/println's operand inspection: Char prints as a
// single character, a Char array prints as the string it spells, any other
// value prints as its integer form (arrays as length, records as a stable
// "<record LayoutName>" form).
func Render(v value.Value, heap *value.Heap, layoutName func(layoutID int) string) (string, error) {
	switch v.Tag {
	case value.TagChar:
		return string(v.C), nil
	case value.TagInt:
		return fmt.Sprintf("%d", v.I), nil
	case value.TagUnit:
		return "0", nil
	case value.TagHeapRef:
		if s, ok := AsString(v, heap); ok {
			return s, nil
		}
		obj, err := heap.Get(v.H)
		if err != nil {
			return "", err
		}
		if obj.Kind == value.ObjArray {
			return fmt.Sprintf("%d", len(obj.Slots)), nil
		}
		return fmt.Sprintf("<record %s>", layoutName(obj.LayoutID)), nil
	default:
		return "", errors.TypeMismatchErr("cannot render value of unknown tag")
	}
}

// Print writes a value's rendered form to w with no trailing newline.
func Print(w io.Writer, v value.Value, heap *value.Heap, layoutName func(int) string) error {
	s, err := Render(v, heap, layoutName)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s)
	return err
}

// Println writes a value's rendered form to w followed by a newline.
func Println(w io.Writer, v value.Value, heap *value.Heap, layoutName func(int) string) error {
	s, err := Render(v, heap, layoutName)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s+"\n")
	return err
}

// Assert implements `assert expr`: fails with AssertFailed when v is falsy.
func Assert(v value.Value, heap *value.Heap) error {
	truthy, err := value.Truthy(v, heap)
	if err != nil {
		return err
	}
	if !truthy {
		return errors.New(errors.AssertFailed, "assertion failed")
	}
	return nil
}

// Error implements `error "msg"`: always fails, with msg as the message.
func Error(msg string) error {
	return errors.New(errors.UserError, "%s", msg)
}
