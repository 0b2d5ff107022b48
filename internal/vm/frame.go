package vm

import "github.com/reactive-lang/reactive/internal/env"

// frame is one call frame, holding exactly what spec §4.5 requires: the
// running instruction pointer, the previous stack-base pointer, the
// previous scope-chain pointer, and a local-slot count isn't tracked
// separately — locals live in the pushed scope, and its size is whatever
// DECL_* instructions put there. Frame-field shape cross-checked against
// the other example VMs' call-frame layout (risor/smog's instruction
// pointer/stack pointer/frame pointer), adapted to this spec's
// environment-chain model instead of a flat locals array.
type frame struct {
	fnName     string
	pc         int // instruction pointer within fnName's code, kept live by runWithTracking for stack-trace capture
	stackBase  int // callFunc leaves this zero; RET/RET_VAL do not unwind the operand stack to it
	savedScope *env.Scope
}
