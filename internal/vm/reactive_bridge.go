package vm

import (
	"github.com/reactive-lang/reactive/internal/env"
	"github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/value"
)

// RecordCtx is the captured-environment shape for a record-field Reactive
// slot (spec §4.3: "evaluation uses only the owning record as its lookup
// root for bare identifiers"). Outer is the scope active when the slot was
// installed (ALLOC_RECORD or FIELD_SET_REACTIVE); EvalTracked makes it the
// live scope chain while the expression runs. Bare identifiers, including
// an immutable-capture field (`xx := x`), resolve against RecordID's fields
// by name, never against Outer.
type RecordCtx struct {
	RecordID   value.HeapID
	LayoutName string
	Outer      *env.Scope
}

// load resolves a bare identifier the way LOAD/DECL_REACTIVE evaluation
// requires: against the live global environment during ordinary execution,
// tracking the location+version read when track is non-nil (a reactive
// expression is being evaluated by m.run via runWithTracking).
func (m *Machine) load(name string, track map[value.Location]uint64) (value.Value, error) {
	if len(m.fieldCtx) > 0 {
		return m.loadRecordField(m.fieldCtx[len(m.fieldCtx)-1], name, track)
	}
	h, ok := m.genv.Lookup(name)
	if !ok {
		return value.Value{}, errors.UndefinedNameErr(name)
	}
	return m.readSlotHandle(h, track)
}

// loadRecordField implements spec §4.3's record-field reactive lookup root:
// a bare identifier resolves against the owning record's declared fields by
// name, not the scope chain. A name that isn't a field is UndefinedName —
// the language's escape hatch is an explicit immutable-capture field
// (`xx := x`) declared on the layout itself, which this resolves like any
// other field since it's already part of RecordID's slots.
func (m *Machine) loadRecordField(ctx *RecordCtx, name string, track map[value.Location]uint64) (value.Value, error) {
	_, layout, ok := m.prog.LayoutByName(ctx.LayoutName)
	if !ok {
		return value.Value{}, errors.UndefinedNameErr(name)
	}
	for i, f := range layout.Fields {
		if f.Name == name {
			return m.readHeapSlot(ctx.RecordID, i, track, false, ctx.LayoutName)
		}
	}
	return value.Value{}, errors.UndefinedNameErr(name)
}

// readSlotHandle reads through a scope handle, evaluating a Reactive slot
// via the engine if needed, and recording the dependency if tracking.
func (m *Machine) readSlotHandle(h env.Handle, track map[value.Location]uint64) (value.Value, error) {
	slot := h.Slot()
	m.touch(slot)
	v, err := m.engine.Read(slot, m.locationVersion)
	if err != nil {
		return value.Value{}, err
	}
	if track != nil {
		track[h.Loc()] = slot.Version
	}
	return v, nil
}

// readHeapSlot reads an array element or record field, evaluating through
// the reactive engine and recording the dependency location if tracking.
func (m *Machine) readHeapSlot(id value.HeapID, index int, track map[value.Location]uint64, isArray bool, layoutName string) (value.Value, error) {
	var slot *value.Slot
	var err error
	if isArray {
		slot, err = m.heap.ArrayGet(id, index)
	} else {
		slot, err = m.heap.RecordField(id, index, layoutName)
	}
	if err != nil {
		return value.Value{}, err
	}
	m.touch(slot)
	v, err := m.engine.Read(slot, m.locationVersion)
	if err != nil {
		return value.Value{}, err
	}
	if track != nil {
		kind := value.LocArray
		if !isArray {
			kind = value.LocRecord
		}
		track[value.Location{Kind: kind, HeapID: id, Index: index}] = slot.Version
	}
	return v, nil
}

// locationVersion resolves a value.Location back to its slot's current
// Version, for the reactive engine's freshness check (spec §4.3 step 1).
func (m *Machine) locationVersion(loc value.Location) uint64 {
	switch loc.Kind {
	case value.LocScope:
		s, ok := m.genv.ScopeByID(env.ScopeID(loc.ScopeID))
		if !ok {
			return 0
		}
		return s.SlotAt(loc.SlotIdx).Version
	case value.LocArray:
		slot, err := m.heap.ArrayGet(loc.HeapID, loc.Index)
		if err != nil {
			return 0
		}
		return slot.Version
	case value.LocRecord:
		obj, err := m.heap.Get(loc.HeapID)
		if err != nil || loc.Index < 0 || loc.Index >= len(obj.Slots) {
			return 0
		}
		return obj.Slots[loc.Index].Version
	default:
		return 0
	}
}

// EvalTracked implements reactive.Evaluator: it runs the expression exprID
// under tracking, using capturedEnv as the lookup root for bare
// identifiers — an *env.Scope for a scope-bound reactive slot, or a
// *RecordCtx for a record-field one.
func (m *Machine) EvalTracked(exprID int, capturedEnv interface{}) (value.Value, map[value.Location]uint64, error) {
	expr, ok := m.prog.ExprByID(exprID)
	if !ok {
		return value.Value{}, nil, errors.LoaderErr("reactive expression %d not found", exprID)
	}

	track := make(map[value.Location]uint64)
	saved := m.genv.Mark()
	defer m.genv.Restore(saved)

	// Make track the ambient dependency map for the duration of this
	// evaluation so a CALL reached while running expr.Code keeps recording
	// into it (run/runWithTracking pick up m.track for any nested function
	// body). Saved and restored rather than pushed on a stack because this
	// nests correctly on its own: an inner EvalTracked invoked recursively
	// via engine.Read (evaluating a reactive dependency of this one) saves
	// and restores its own track around its own activation, so m.track is
	// back to this one by the time control returns here.
	savedTrack := m.track
	m.track = track
	defer func() { m.track = savedTrack }()

	switch ctx := capturedEnv.(type) {
	case *env.Scope:
		m.genv.Restore(ctx)
	case *RecordCtx:
		m.genv.Restore(ctx.Outer)
		m.fieldCtx = append(m.fieldCtx, ctx)
		defer func() { m.fieldCtx = m.fieldCtx[:len(m.fieldCtx)-1] }()
	default:
		// Any other context (the VM itself always installs an *env.Scope
		// or a *RecordCtx) leaves the current top scope in place.
	}

	v, err := m.runWithTracking(expr.Code, track, -1)
	return v, track, err
}
