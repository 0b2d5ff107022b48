package value

import "testing"

func TestArrayOutOfBounds(t *testing.T) {
	h := NewHeap()
	id := h.AllocArray(3)
	if _, err := h.ArrayGet(id, 3); err == nil {
		t.Fatal("expected OutOfBounds error")
	} else if re, ok := err.(interface{ Error() string }); !ok || re.Error() == "" {
		t.Fatal("expected a formatted error")
	}
	if _, err := h.ArrayGet(id, -1); err == nil {
		t.Fatal("expected OutOfBounds error for negative index")
	}
}

func TestRecordFieldUndeclared(t *testing.T) {
	h := NewHeap()
	id := h.AllocRecord(0, 2)
	if _, err := h.RecordField(id, 5, "Point"); err == nil {
		t.Fatal("expected UndeclaredField error")
	}
}

func TestHeapSharing(t *testing.T) {
	h := NewHeap()
	id := h.AllocRecord(0, 1)
	a := HeapRef(id)
	b := a // two names aliasing the same heap object

	slot, _ := h.RecordField(a.H, 0, "R")
	slot.Val = Int(42)

	slotViaB, _ := h.RecordField(b.H, 0, "R")
	if slotViaB.Val.I != 42 {
		t.Errorf("expected shared mutation visible through alias, got %v", slotViaB.Val)
	}
}

func TestCollectGarbageBreaksCycles(t *testing.T) {
	h := NewHeap()
	a := h.AllocArray(1)
	b := h.AllocArray(1)
	slotA, _ := h.ArrayGet(a, 0)
	slotA.Val = HeapRef(b)
	slotB, _ := h.ArrayGet(b, 0)
	slotB.Val = HeapRef(a)

	h.CollectGarbage(nil) // no roots hold a or b
	if _, err := h.Get(a); err == nil {
		t.Error("expected unreachable cyclic object a to be collected")
	}
	if _, err := h.Get(b); err == nil {
		t.Error("expected unreachable cyclic object b to be collected")
	}
}

func TestCollectGarbageKeepsReachable(t *testing.T) {
	h := NewHeap()
	id := h.AllocArray(1)
	h.CollectGarbage([]Value{HeapRef(id)})
	if _, err := h.Get(id); err != nil {
		t.Errorf("reachable object was collected: %v", err)
	}
}
