// Package value implements the reactive VM's tagged value representation
// and heap (spec §3, §4.1). It has no dependency on the environment,
// bytecode, or reactive packages — everything here is plain data, dispatched
// on a tag, the way the teacher's own enum+String() types (ModuleLoadStatus,
// SymbolType in internal/modules/modules.go) dispatch without interfaces.
package value

import "github.com/reactive-lang/reactive/internal/errors"

// Tag identifies which variant a Value holds.
type Tag uint8

const (
	TagUnit Tag = iota
	TagInt
	TagChar
	TagHeapRef
)

func (t Tag) String() string {
	switch t {
	case TagUnit:
		return "unit"
	case TagInt:
		return "int"
	case TagChar:
		return "char"
	case TagHeapRef:
		return "heapref"
	default:
		return "unknown"
	}
}

// Value is the tagged sum described in spec §3: Int(i32), Char(u32),
// HeapRef(id), Unit. Only the field matching Tag is meaningful.
type Value struct {
	Tag Tag
	I   int32
	C   rune
	H   HeapID
}

func Unit() Value             { return Value{Tag: TagUnit} }
func Int(i int32) Value       { return Value{Tag: TagInt, I: i} }
func Char(c rune) Value       { return Value{Tag: TagChar, C: c} }
func HeapRef(id HeapID) Value { return Value{Tag: TagHeapRef, H: id} }

// MaxCodePoint is the highest valid Unicode scalar value; casts to Char that
// would fall outside [0, MaxCodePoint] raise TypeMismatch (spec §9 Open
// Question, resolved per the spec's own recommendation).
const MaxCodePoint = 0x10FFFF

// AsInt coerces a Value to an int32 the way arithmetic/logic opcodes require:
// Int passes through, Char coerces implicitly, HeapRef to an array yields its
// length (spec §3 "array used in integer context"), Unit and record refs are
// a TypeMismatch.
func AsInt(v Value, heap *Heap) (int32, error) {
	switch v.Tag {
	case TagInt:
		return v.I, nil
	case TagChar:
		return int32(v.C), nil
	case TagHeapRef:
		obj, err := heap.Get(v.H)
		if err != nil {
			return 0, err
		}
		if obj.Kind == ObjArray {
			return int32(len(obj.Slots)), nil
		}
		return 0, errors.TypeMismatchErr("record reference used in integer context")
	default:
		return 0, errors.TypeMismatchErr("unit value used in integer context")
	}
}

// Truthy implements spec §3's boolean semantics: 0 is false, any other
// integer is true.
func Truthy(v Value, heap *Heap) (bool, error) {
	i, err := AsInt(v, heap)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

// CastInt implements the (int) cast: identity on Int, widening on Char.
func CastInt(v Value) (Value, error) {
	switch v.Tag {
	case TagInt:
		return v, nil
	case TagChar:
		return Int(int32(v.C)), nil
	default:
		return Value{}, errors.TypeMismatchErr("cannot cast %s to int", v.Tag)
	}
}

// CastChar implements the (char) cast, raising TypeMismatch for code points
// outside the valid Unicode scalar range.
func CastChar(v Value) (Value, error) {
	var n int32
	switch v.Tag {
	case TagInt:
		n = v.I
	case TagChar:
		return v, nil
	default:
		return Value{}, errors.TypeMismatchErr("cannot cast %s to char", v.Tag)
	}
	if n < 0 || n > MaxCodePoint {
		return Value{}, errors.TypeMismatchErr("code point %d out of range [0, 0x10FFFF]", n)
	}
	return Char(rune(n)), nil
}
