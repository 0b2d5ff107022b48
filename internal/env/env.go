// Package env implements the environment component of spec §4.2: a chain of
// scopes searched inside-out by name, with the loop iteration-scope split
// that keeps `:=` bindings created inside a loop body from leaking across
// iterations while `Mut`/`Reactive` bindings persist. Mirrors the plain
// map-plus-parent-link bookkeeping style the teacher's
// internal/modules/modules.go uses for its own scope-like registries — no
// interfaces, just structs and maps.
package env

import (
	"github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/value"
)

// ScopeID is a stable identifier for a scope, used as the ScopeID half of a
// value.Location so dependency fingerprints survive a scope being looked up
// again later.
type ScopeID int64

// Scope is one frame of the environment chain: a name-to-slot-index table
// over a backing slice of slots, plus a parent link. isIteration marks a
// scope pushed for one loop iteration (ENTER_ITER_SCOPE), distinguishing it
// from an ordinary ENTER_SCOPE for the "innermost non-iteration scope" rule
// spec §4.2 gives for `=` lookup-or-declare.
type Scope struct {
	id          ScopeID
	parent      *Scope
	isIteration bool
	names       map[string]int
	slots       []*value.Slot
}

// Env owns the active scope chain and assigns ScopeIDs. One Env exists per
// run: imported modules execute on the importer's Machine and therefore
// against the same Env as the importer.
type Env struct {
	top      *Scope
	nextID   ScopeID
	registry map[ScopeID]*Scope
}

func New() *Env {
	e := &Env{registry: make(map[ScopeID]*Scope)}
	e.top = e.newScope(nil, false)
	return e
}

func (e *Env) newScope(parent *Scope, isIteration bool) *Scope {
	id := e.nextID
	e.nextID++
	s := &Scope{id: id, parent: parent, isIteration: isIteration, names: make(map[string]int)}
	e.registry[id] = s
	return s
}

// ScopeByID looks up a scope by id, for resolving a value.Location's
// ScopeID back to the slot it names (the reactive engine does this to read
// a dependency's current version without holding a live pointer to it).
func (e *Env) ScopeByID(id ScopeID) (*Scope, bool) {
	s, ok := e.registry[id]
	return s, ok
}

// Mark captures the current top scope as an opaque restore point, for call
// frames to save/restore across CALL/RET (spec §4.5's "previous scope-chain
// pointer").
func (e *Env) Mark() *Scope {
	return e.top
}

// Restore resets the active scope chain to a previously captured Mark.
func (e *Env) Restore(s *Scope) {
	e.top = s
}

// PushScope enters an ordinary lexical scope (ENTER_SCOPE / function call).
func (e *Env) PushScope() {
	e.top = e.newScope(e.top, false)
}

// PopScope leaves the innermost scope (LEAVE_SCOPE).
func (e *Env) PopScope() {
	if e.top.parent != nil {
		e.top = e.top.parent
	}
}

// PushIterScope enters a fresh per-iteration scope (ENTER_ITER_SCOPE) sitting
// on top of the long-lived scope that holds Mut/Reactive bindings from the loop
// body, per spec §4.2.
func (e *Env) PushIterScope() {
	e.top = e.newScope(e.top, true)
}

// PopIterScope discards the current iteration's scope along with every `:=`
// binding it declared (LEAVE_ITER_SCOPE), run once per loop iteration before
// PushIterScope starts the next one.
func (e *Env) PopIterScope() {
	if e.top.isIteration && e.top.parent != nil {
		e.top = e.top.parent
	}
}

// Handle is the "location handle" spec §4.2 describes a lookup as returning:
// which scope a name resolved to, and its slot index within that scope.
type Handle struct {
	Scope   *Scope
	SlotIdx int
}

// Loc converts a Handle into the value.Location dependency key the reactive
// engine fingerprints against.
func (h Handle) Loc() value.Location {
	return value.Location{Kind: value.LocScope, ScopeID: int64(h.Scope.id), SlotIdx: h.SlotIdx}
}

func (h Handle) Slot() *value.Slot {
	return h.Scope.slots[h.SlotIdx]
}

// ID returns the scope's stable identifier.
func (s *Scope) ID() ScopeID { return s.id }

// SlotAt returns the slot at idx within s, for resolving a value.Location
// whose ScopeID names this scope.
func (s *Scope) SlotAt(idx int) *value.Slot { return s.slots[idx] }

// Lookup searches scopes inside-out for name, returning its handle.
func (e *Env) Lookup(name string) (Handle, bool) {
	for s := e.top; s != nil; s = s.parent {
		if idx, ok := s.names[name]; ok {
			return Handle{Scope: s, SlotIdx: idx}, true
		}
	}
	return Handle{}, false
}

// LookupFrom searches scopes inside-out starting at from, rather than the
// live chain's top — used to resolve names during a reactive evaluation
// rooted at a captured environment (spec §4.3's "environment captured at
// ::= time", which may no longer be the Env's live top scope).
func LookupFrom(from *Scope, name string) (Handle, bool) {
	for s := from; s != nil; s = s.parent {
		if idx, ok := s.names[name]; ok {
			return Handle{Scope: s, SlotIdx: idx}, true
		}
	}
	return Handle{}, false
}

// innermostNonIteration finds the nearest enclosing scope that isn't a
// per-iteration scope, for `=` lookup-or-declare (spec §4.2).
func (e *Env) innermostNonIteration() *Scope {
	for s := e.top; s != nil; s = s.parent {
		if !s.isIteration {
			return s
		}
	}
	return e.top
}

func (s *Scope) declare(name string, slot *value.Slot) Handle {
	idx := len(s.slots)
	s.slots = append(s.slots, slot)
	s.names[name] = idx
	return Handle{Scope: s, SlotIdx: idx}
}

// DeclareMut implements `=` when no existing binding of name is found:
// declares a fresh Mut slot in the innermost non-iteration scope, per the
// "mutable variables are local to the function unless they refer to an
// existing location" rule.
func (e *Env) DeclareMut(name string, v value.Value) Handle {
	return e.innermostNonIteration().declare(name, value.NewMutSlot(v))
}

// DeclareImm implements `:=`: always declares into the current top scope
// (which may be an iteration scope — that's exactly how loop-body `:=`
// bindings stay local to one iteration).
func (e *Env) DeclareImm(name string, v value.Value) Handle {
	return e.top.declare(name, value.NewImmSlot(v))
}

// DeclareReactive implements `::=`: declares into the innermost
// non-iteration scope, so a reactive binding created in a loop body persists
// across iterations, and captures the current top scope (not a copy) as the
// slot's evaluation context per spec §4.3's "environment captured at ::=
// time", so the expression still sees that iteration's `:=` bindings.
func (e *Env) DeclareReactive(name string, exprID int) Handle {
	return e.innermostNonIteration().declare(name, value.NewReactiveSlot(exprID, e.top))
}

// Assign implements `=` against an existing binding, per the §4.2 lookup
// policy: mutate the existing location if name resolves, else declare fresh.
func (e *Env) Assign(name string, v value.Value, clock *value.Clock) (Handle, error) {
	if h, ok := e.Lookup(name); ok {
		slot := h.Slot()
		if slot.Kind == value.SlotImm {
			return Handle{}, errors.ImmutableWriteErr(name)
		}
		slot.Val = v
		slot.Version = clock.Tick()
		return h, nil
	}
	h := e.DeclareMut(name, v)
	h.Slot().Version = clock.Tick()
	return h, nil
}
