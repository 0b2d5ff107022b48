package value

import "github.com/reactive-lang/reactive/internal/errors"

// HeapID is a stable identifier for a heap-allocated Array or Record,
// assigned at allocation time and never reused while the object is live.
type HeapID int64

// ObjKind distinguishes the two heap object shapes spec §3 defines.
type ObjKind uint8

const (
	ObjArray ObjKind = iota
	ObjRecord
)

// HeapObject is a contiguous run of Slots: an Array indexes them 0..len-1,
// a Record indexes them by declared field position against LayoutID.
type HeapObject struct {
	Kind     ObjKind
	LayoutID int
	Slots    []*Slot
	marked   bool
}

// Heap owns every Array/Record allocated during a run, plus a simple
// mark-sweep collector for the unreachable-cycle case spec §9 calls out
// (a Reactive slot's CapturedEnv can hold a heap reference that nothing
// else reaches once the enclosing scope is popped).
type Heap struct {
	objects []*HeapObject
	nextID  HeapID
	free    map[HeapID]bool
}

func NewHeap() *Heap {
	return &Heap{free: make(map[HeapID]bool)}
}

func (h *Heap) alloc(obj *HeapObject) HeapID {
	id := h.nextID
	h.nextID++
	if int(id) >= len(h.objects) {
		grown := make([]*HeapObject, id+1)
		copy(grown, h.objects)
		h.objects = grown
	}
	h.objects[id] = obj
	return id
}

// AllocArray allocates an array of the given length, every slot initialized
// mutable and holding Unit.
func (h *Heap) AllocArray(length int) HeapID {
	slots := make([]*Slot, length)
	for i := range slots {
		slots[i] = NewMutSlot(Unit())
	}
	return h.alloc(&HeapObject{Kind: ObjArray, Slots: slots})
}

// AllocRecord allocates a record against the given layout id, with fieldCount
// slots, each initialized mutable and holding Unit.
func (h *Heap) AllocRecord(layoutID, fieldCount int) HeapID {
	slots := make([]*Slot, fieldCount)
	for i := range slots {
		slots[i] = NewMutSlot(Unit())
	}
	return h.alloc(&HeapObject{Kind: ObjRecord, LayoutID: layoutID, Slots: slots})
}

// Get returns the heap object for id, or OutOfBounds-shaped error if it was
// never allocated or has since been collected.
func (h *Heap) Get(id HeapID) (*HeapObject, error) {
	if id < 0 || int(id) >= len(h.objects) || h.objects[id] == nil {
		return nil, errors.New(errors.OutOfBounds, "heap reference %d is not live", int64(id))
	}
	return h.objects[id], nil
}

// Len reports the element count of an Array; records have no length.
func (h *Heap) Len(id HeapID) (int, error) {
	obj, err := h.Get(id)
	if err != nil {
		return 0, err
	}
	if obj.Kind != ObjArray {
		return 0, errors.TypeMismatchErr("record reference used where an array was expected")
	}
	return len(obj.Slots), nil
}

// ArrayGet returns the slot at index in the array id, bounds-checked per
// spec §7's OutOfBounds kind.
func (h *Heap) ArrayGet(id HeapID, index int) (*Slot, error) {
	obj, err := h.Get(id)
	if err != nil {
		return nil, err
	}
	if obj.Kind != ObjArray {
		return nil, errors.TypeMismatchErr("record reference used where an array was expected")
	}
	if index < 0 || index >= len(obj.Slots) {
		return nil, errors.OutOfBoundsErr(index, len(obj.Slots))
	}
	return obj.Slots[index], nil
}

// RecordField returns the slot for field on the record id, raising
// UndeclaredField if the index is outside the record's declared shape.
func (h *Heap) RecordField(id HeapID, field int, layoutName string) (*Slot, error) {
	obj, err := h.Get(id)
	if err != nil {
		return nil, err
	}
	if obj.Kind != ObjRecord {
		return nil, errors.TypeMismatchErr("array reference used where a record was expected")
	}
	if field < 0 || field >= len(obj.Slots) {
		return nil, errors.UndeclaredFieldErr(layoutName, field)
	}
	return obj.Slots[field], nil
}

// CollectGarbage runs a mark phase from roots (typically the top-level
// environment's live slots) and frees every heap object not reached,
// breaking reference cycles between arrays/records that nothing else holds.
func (h *Heap) CollectGarbage(roots []Value) {
	for _, obj := range h.objects {
		if obj != nil {
			obj.marked = false
		}
	}
	var mark func(id HeapID)
	mark = func(id HeapID) {
		if id < 0 || int(id) >= len(h.objects) || h.objects[id] == nil || h.objects[id].marked {
			return
		}
		obj := h.objects[id]
		obj.marked = true
		for _, s := range obj.Slots {
			if s.Val.Tag == TagHeapRef {
				mark(s.Val.H)
			}
		}
	}
	for _, v := range roots {
		if v.Tag == TagHeapRef {
			mark(v.H)
		}
	}
	for id, obj := range h.objects {
		if obj != nil && !obj.marked {
			h.objects[id] = nil
			h.free[HeapID(id)] = true
		}
	}
}

// SlotKind distinguishes the three binding forms spec §4.2 defines: `=`
// (Mut), `:=` (Imm), `::=` (Reactive).
type SlotKind uint8

const (
	SlotMut SlotKind = iota
	SlotImm
	SlotReactive
)

// LocKind distinguishes where a Location points: a named scope binding, an
// array element, or a record field — the three places spec §4.3 says a
// dependency fingerprint can be anchored.
type LocKind uint8

const (
	LocScope LocKind = iota
	LocArray
	LocRecord
)

// Location is a comparable key identifying one storage cell for dependency
// fingerprinting (spec §4.3): a (ScopeID, SlotIdx) pair for scope bindings,
// or a (HeapID, Index) pair for array/record elements.
type Location struct {
	Kind    LocKind
	ScopeID int64
	SlotIdx int
	HeapID  HeapID
	Index   int
}

// Slot is the single storage cell every binding kind is built from. Mut and
// Imm slots use only Val/Version; Reactive slots additionally cache the
// expression to re-run, the environment it closed over, and the dependency
// fingerprint recorded the last time it was evaluated.
type Slot struct {
	Kind    SlotKind
	Val     Value
	Version uint64

	// Reactive-only fields.
	HasCached   bool
	ExprID      int
	CapturedEnv interface{} // *env.Scope, or *vm.RecordCtx for a record-field slot; kept opaque to avoid an import cycle
	Deps        map[Location]uint64
}

func NewMutSlot(v Value) *Slot {
	return &Slot{Kind: SlotMut, Val: v}
}

func NewImmSlot(v Value) *Slot {
	return &Slot{Kind: SlotImm, Val: v}
}

// NewReactiveSlot creates an uncached reactive slot bound to exprID, closing
// over capturedEnv (stored opaquely — see CapturedEnv for its concrete types).
func NewReactiveSlot(exprID int, capturedEnv interface{}) *Slot {
	return &Slot{Kind: SlotReactive, ExprID: exprID, CapturedEnv: capturedEnv}
}

// Clock is the global monotonic version counter spec §4.3 uses to stamp
// every write, so a reactive slot can tell whether a dependency it read last
// time has changed since without keeping an observer list.
type Clock struct {
	version uint64
}

// Tick advances the clock and returns the new version. Single-threaded per
// spec §5, so no atomics are needed.
func (c *Clock) Tick() uint64 {
	c.version++
	return c.version
}

func (c *Clock) Now() uint64 {
	return c.version
}
