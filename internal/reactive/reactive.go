// Package reactive implements the evaluation protocol of spec §4.3: reading
// a Reactive slot re-evaluates its expression only when a location it last
// read has a newer version than the one recorded in its fingerprint, and
// detects re-entrant (cyclic) evaluation via an evaluating-set stack.
//
// The engine never imports internal/vm — it accepts an Evaluator, a
// consumer-supplied closure the same way the teacher's codebase favors
// accepting interfaces over importing concrete dependents. internal/vm
// implements Evaluator and is the only caller.
package reactive

import (
	"github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/value"
)

// Evaluator runs an expression (by id) under a tracking context and reports
// every location read during that run. It is implemented by *vm.Machine;
// reactive never references vm's types, only this interface.
type Evaluator interface {
	// EvalTracked evaluates exprID using capturedEnv as its lookup root (an
	// *env.Scope, or a *vm.RecordCtx naming the owning record for
	// record-field reactive slots, passed opaquely) and returns the
	// resulting value plus the set of locations read with their versions
	// at the time of read.
	EvalTracked(exprID int, capturedEnv interface{}) (value.Value, map[value.Location]uint64, error)
}

// Engine owns the evaluating-set stack that detects reactive cycles
// (spec §4.3's "re-entrance and cycles") and the global clock every write
// bumps, used to compare against a slot's stored dependency fingerprint.
type Engine struct {
	eval      Evaluator
	clock     *value.Clock
	evaluating map[*value.Slot]bool
	stack      []*value.Slot
}

func New(eval Evaluator, clock *value.Clock) *Engine {
	return &Engine{eval: eval, clock: clock, evaluating: make(map[*value.Slot]bool)}
}

// Read implements the four-step protocol of spec §4.3: return the cache if
// every dependency's version is unchanged, otherwise re-evaluate under
// tracking and refresh the cache and fingerprint.
func (e *Engine) Read(slot *value.Slot, currentVersions func(value.Location) uint64) (value.Value, error) {
	if slot.Kind != value.SlotReactive {
		return slot.Val, nil
	}

	if slot.HasCached && e.fresh(slot, currentVersions) {
		return slot.Val, nil
	}

	if e.evaluating[slot] {
		return value.Value{}, errors.ReactiveCycleErr(slot.ExprID)
	}
	e.evaluating[slot] = true
	e.stack = append(e.stack, slot)
	defer func() {
		e.stack = e.stack[:len(e.stack)-1]
		delete(e.evaluating, slot)
	}()

	result, deps, err := e.eval.EvalTracked(slot.ExprID, slot.CapturedEnv)
	if err != nil {
		return value.Value{}, err
	}

	slot.Val = result
	slot.HasCached = true
	slot.Deps = deps
	slot.Version = e.clock.Now()
	return result, nil
}

// fresh reports whether every location in slot's recorded fingerprint still
// has the version it had at the last evaluation.
func (e *Engine) fresh(slot *value.Slot, currentVersions func(value.Location) uint64) bool {
	for loc, recordedVersion := range slot.Deps {
		if currentVersions(loc) != recordedVersion {
			return false
		}
	}
	return true
}

// Depth reports how many reactive evaluations are currently nested. Stack
// traces (vm.Machine.Trace) list call frames only; nested reactive
// evaluations do not appear in them.
func (e *Engine) Depth() int {
	return len(e.stack)
}
