package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/reactive-lang/reactive/internal/builtins"
	"github.com/reactive-lang/reactive/internal/bytecode"
	"github.com/reactive-lang/reactive/internal/env"
	"github.com/reactive-lang/reactive/internal/value"
)

func newTestMachine() (*Machine, *bytes.Buffer) {
	var out bytes.Buffer
	m := New(value.NewHeap(), &value.Clock{}, env.New(), builtins.OSHostFS{}, &out, &out)
	return m, &out
}

func in(op bytecode.Opcode, a, b int32) bytecode.Instr {
	return bytecode.Instr{Op: op, A: a, B: b}
}
func inName(op bytecode.Opcode, name string, a int32) bytecode.Instr {
	return bytecode.Instr{Op: op, Name: name, A: a}
}

func runProgram(t *testing.T, prog *bytecode.Program) (*Machine, string) {
	t.Helper()
	m, out := newTestMachine()
	if err := m.Run(prog); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return m, out.String()
}

// TestArithmeticAndPrintln exercises PUSH_CONST/ADD/PRINTLN: a minimal
// function computing 2+3 and printing it.
func TestArithmeticAndPrintln(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 2}, {Kind: bytecode.ConstInt, I: 3}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				in(bytecode.OpPushConst, 1, 0),
				in(bytecode.OpAdd, 0, 0),
				in(bytecode.OpPrintln, 0, 0),
				{Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	_, out := runProgram(t, prog)
	if out != "5\n" {
		t.Errorf("got %q, want %q", out, "5\n")
	}
}

// TestAssignLookupOrDeclare exercises env's `=` policy at the bytecode
// level: DECL_MUT declares x, STORE mutates the same location rather than
// shadowing it.
func TestAssignLookupOrDeclare(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}, {Kind: bytecode.ConstInt, I: 9}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				inName(bytecode.OpDeclMut, "x", 0),
				in(bytecode.OpPushConst, 1, 0),
				inName(bytecode.OpStore, "x", 0),
				inName(bytecode.OpLoad, "x", 0),
				in(bytecode.OpPrintln, 0, 0),
				{Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	_, out := runProgram(t, prog)
	if out != "9\n" {
		t.Errorf("got %q, want %q", out, "9\n")
	}
}

// TestReactiveFreshnessAndLaziness covers invariants 1 and 2 (spec §8):
// dx ::= x + 1 is stale on the first read (forcing evaluation), then
// re-evaluates once x's version changes.
func TestReactiveFreshnessAndLaziness(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}, {Kind: bytecode.ConstInt, I: 5}},
		Exprs: []bytecode.ExprDef{{ID: 0, Code: []bytecode.Instr{
			inName(bytecode.OpLoad, "x", 0),
			in(bytecode.OpPushConst, 0, 0),
			in(bytecode.OpAdd, 0, 0),
			{Op: bytecode.OpRetVal},
		}}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				inName(bytecode.OpDeclMut, "x", 0),
				inName(bytecode.OpDeclReactive, "dx", 0),
				inName(bytecode.OpLoad, "dx", 0),
				in(bytecode.OpPrintln, 0, 0), // 2
				in(bytecode.OpPushConst, 1, 0),
				inName(bytecode.OpStore, "x", 0), // x = 5
				inName(bytecode.OpLoad, "dx", 0),
				in(bytecode.OpPrintln, 0, 0), // 6
				{Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	_, out := runProgram(t, prog)
	if out != "2\n6\n" {
		t.Errorf("got %q, want %q", out, "2\n6\n")
	}
}

// TestReactiveCachesHeapValueAcrossReads covers scenario (c): a reactive
// binding whose expression allocates a fresh record caches that same heap
// object once evaluated (its only recorded dependency is buildcounter's
// immutable parameter n, whose version never changes, so it stays fresh),
// so mutating a field through one read of the binding is visible
// through the next — there is no hidden re-allocation on every read.
func TestReactiveCachesHeapValueAcrossReads(t *testing.T) {
	// buildcounter(n): allocate a Counter{x MUT}, set x = n, return it.
	buildcounter := bytecode.FuncDef{
		Name:      "buildcounter",
		Arity:     1,
		NumLocals: 1,
		Code: []bytecode.Instr{
			inName(bytecode.OpDeclImm, "n", 0),
			in(bytecode.OpAllocRecord, 0, 0),
			{Op: bytecode.OpDup},
			inName(bytecode.OpLoad, "n", 0),
			{Op: bytecode.OpFieldSetMut, A: 0},
			{Op: bytecode.OpRetVal},
		},
	}

	prog := &bytecode.Program{
		Kind:    bytecode.KindProgram,
		Consts:  []bytecode.Const{{Kind: bytecode.ConstInt, I: 10}, {Kind: bytecode.ConstInt, I: 20}},
		Layouts: []bytecode.Layout{{Name: "Counter", Fields: []bytecode.FieldDef{{Name: "x", Kind: bytecode.FieldMut, ExprID: -1}}}},
		Exprs: []bytecode.ExprDef{{ID: 0, Code: []bytecode.Instr{
			in(bytecode.OpPushConst, 0, 0),
			{Op: bytecode.OpCall, A: 1},
			{Op: bytecode.OpRetVal},
		}}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				inName(bytecode.OpDeclReactive, "counter", 0),
				inName(bytecode.OpLoad, "counter", 0),
				{Op: bytecode.OpFieldGet, A: 0},
				in(bytecode.OpPrintln, 0, 0), // 10: first evaluation
				inName(bytecode.OpLoad, "counter", 0),
				in(bytecode.OpPushConst, 1, 0),
				{Op: bytecode.OpFieldSetMut, A: 0}, // mutate the cached object directly
				inName(bytecode.OpLoad, "counter", 0),
				{Op: bytecode.OpFieldGet, A: 0},
				in(bytecode.OpPrintln, 0, 0), // 20: same object, mutation visible
				{Op: bytecode.OpRet},
			},
		}, buildcounter},
		Entry: 0,
	}

	_, out := runProgram(t, prog)
	if out != "10\n20\n" {
		t.Errorf("got %q, want %q", out, "10\n20\n")
	}
}

// TestReactiveDependencyTracksThroughFunctionCall reproduces spec §8
// scenario (b): a reactive binding whose expression reads a dependency only
// indirectly, through a called function's own LOAD/ARRAY_GET, must still
// pick up that dependency — re-evaluating once the callee's read location
// changes version, not just locations the reactive expression's own code
// mentions by name.
func TestReactiveDependencyTracksThroughFunctionCall(t *testing.T) {
	// get(arr) = arr[0]; the read happens entirely inside the callee.
	get := bytecode.FuncDef{
		Name:      "get",
		Arity:     1,
		NumLocals: 1,
		Code: []bytecode.Instr{
			inName(bytecode.OpDeclImm, "arr", 0),
			inName(bytecode.OpLoad, "arr", 0),
			in(bytecode.OpPushConst, 2, 0), // index 0
			{Op: bytecode.OpArrayGet},
			{Op: bytecode.OpRetVal},
		},
	}

	prog := &bytecode.Program{
		Kind: bytecode.KindProgram,
		Consts: []bytecode.Const{
			{Kind: bytecode.ConstInt, I: 1},   // array length
			{Kind: bytecode.ConstInt, I: 100}, // initial value
			{Kind: bytecode.ConstInt, I: 0},   // index
			{Kind: bytecode.ConstInt, I: 999}, // updated value
		},
		Exprs: []bytecode.ExprDef{{ID: 0, Code: []bytecode.Instr{ // y ::= get(store)
			inName(bytecode.OpLoad, "store", 0),
			{Op: bytecode.OpCall, A: 1},
			{Op: bytecode.OpRetVal},
		}}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				{Op: bytecode.OpAllocArray},
				inName(bytecode.OpDeclMut, "store", 0),
				inName(bytecode.OpLoad, "store", 0),
				in(bytecode.OpPushConst, 2, 0),
				in(bytecode.OpPushConst, 1, 0),
				{Op: bytecode.OpArraySetMut}, // store[0] = 100
				inName(bytecode.OpDeclReactive, "y", 0),
				inName(bytecode.OpLoad, "y", 0),
				in(bytecode.OpPrintln, 0, 0), // 100: first evaluation, through get()
				inName(bytecode.OpLoad, "store", 0),
				in(bytecode.OpPushConst, 2, 0),
				in(bytecode.OpPushConst, 3, 0),
				{Op: bytecode.OpArraySetMut}, // store[0] = 999, never touching y directly
				inName(bytecode.OpLoad, "y", 0),
				in(bytecode.OpPrintln, 0, 0), // 999: dependency recorded through get()'s own ARRAY_GET
				{Op: bytecode.OpRet},
			},
		}, get},
		Entry: 0,
	}

	_, out := runProgram(t, prog)
	if out != "100\n999\n" {
		t.Errorf("got %q, want %q", out, "100\n999\n")
	}
}

// TestRecordScopeReactiveResolvesFields reproduces scenario (e): a
// record-field reactive expression resolves bare identifiers against the
// record's own fields, not the enclosing scope.
func TestRecordScopeReactiveResolvesFields(t *testing.T) {
	prog := &bytecode.Program{
		Kind: bytecode.KindProgram,
		Layouts: []bytecode.Layout{{
			Name: "Example",
			Fields: []bytecode.FieldDef{
				{Name: "y", Kind: bytecode.FieldMut, ExprID: -1},
				{Name: "x", Kind: bytecode.FieldMut, ExprID: -1},
				{Name: "sum", Kind: bytecode.FieldReactive, ExprID: 0},
			},
		}},
		Exprs: []bytecode.ExprDef{{ID: 0, Code: []bytecode.Instr{
			inName(bytecode.OpLoad, "x", 0),
			inName(bytecode.OpLoad, "y", 0),
			in(bytecode.OpAdd, 0, 0),
			{Op: bytecode.OpRetVal},
		}}},
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpAllocRecord, 0, 0),
				inName(bytecode.OpDeclMut, "e", 0),
				inName(bytecode.OpLoad, "e", 0),
				in(bytecode.OpPushConst, 0, 0),
				{Op: bytecode.OpFieldSetMut, A: 0}, // e.y = 1
				inName(bytecode.OpLoad, "e", 0),
				in(bytecode.OpPushConst, 0, 0),
				{Op: bytecode.OpFieldSetMut, A: 1}, // e.x = 1
				inName(bytecode.OpLoad, "e", 0),
				{Op: bytecode.OpFieldGet, A: 2},
				in(bytecode.OpPrintln, 0, 0),
				{Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	_, out := runProgram(t, prog)
	if out != "2\n" {
		t.Errorf("got %q, want %q", out, "2\n")
	}
}

// TestRecordScopeReactiveUndefinedName covers the same scenario's negative
// case: a free identifier that isn't a declared field is UndefinedName,
// even if a name of that spelling exists in the outer scope.
func TestRecordScopeReactiveUndefinedName(t *testing.T) {
	prog := &bytecode.Program{
		Kind: bytecode.KindProgram,
		Layouts: []bytecode.Layout{{
			Name: "Example",
			Fields: []bytecode.FieldDef{
				{Name: "y", Kind: bytecode.FieldMut, ExprID: -1},
				{Name: "sum", Kind: bytecode.FieldReactive, ExprID: 0},
			},
		}},
		Exprs: []bytecode.ExprDef{{ID: 0, Code: []bytecode.Instr{
			inName(bytecode.OpLoad, "x", 0), // not a field of Example
			{Op: bytecode.OpRetVal},
		}}},
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 10}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				inName(bytecode.OpDeclImm, "x", 0), // top-level x := 10, irrelevant to field resolution
				in(bytecode.OpAllocRecord, 0, 0),
				inName(bytecode.OpDeclMut, "e", 0),
				inName(bytecode.OpLoad, "e", 0),
				{Op: bytecode.OpFieldGet, A: 1},
				{Op: bytecode.OpRetVal},
			},
		}},
		Entry: 0,
	}
	m, _ := newTestMachine()
	err := m.Run(prog)
	if err == nil {
		t.Fatal("expected UndefinedName error")
	}
	if !strings.Contains(err.Error(), "UNDEFINED_NAME") {
		t.Errorf("got %v, want an UndefinedName error", err)
	}
}

// TestReactiveCycleDetection reproduces scenario (f).
func TestReactiveCycleDetection(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}},
		Exprs: []bytecode.ExprDef{
			{ID: 0, Code: []bytecode.Instr{ // a ::= b + 1
				inName(bytecode.OpLoad, "b", 0),
				in(bytecode.OpPushConst, 0, 0),
				in(bytecode.OpAdd, 0, 0),
				{Op: bytecode.OpRetVal},
			}},
			{ID: 1, Code: []bytecode.Instr{ // b ::= a + 1
				inName(bytecode.OpLoad, "a", 0),
				in(bytecode.OpPushConst, 0, 0),
				in(bytecode.OpAdd, 0, 0),
				{Op: bytecode.OpRetVal},
			}},
		},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				inName(bytecode.OpDeclReactive, "a", 0),
				inName(bytecode.OpDeclReactive, "b", 1),
				inName(bytecode.OpLoad, "a", 0),
				{Op: bytecode.OpRetVal},
			},
		}},
		Entry: 0,
	}
	m, _ := newTestMachine()
	err := m.Run(prog)
	if err == nil {
		t.Fatal("expected ReactiveCycle error")
	}
	if !strings.Contains(err.Error(), "REACTIVE_CYCLE") {
		t.Errorf("got %v, want a ReactiveCycle error", err)
	}
}

// TestImmutableWrite covers invariant 4: a `:=` binding cannot be written.
func TestImmutableWrite(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}, {Kind: bytecode.ConstInt, I: 2}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				inName(bytecode.OpDeclImm, "c", 0),
				in(bytecode.OpPushConst, 1, 0),
				inName(bytecode.OpStore, "c", 0),
				{Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	m, _ := newTestMachine()
	if err := m.Run(prog); err == nil {
		t.Fatal("expected ImmutableWrite error")
	} else if !strings.Contains(err.Error(), "IMMUTABLE_WRITE") {
		t.Errorf("got %v, want an ImmutableWrite error", err)
	}
}

// TestOutOfBoundsArrayAccess covers the OutOfBounds error kind.
func TestOutOfBoundsArrayAccess(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 2}, {Kind: bytecode.ConstInt, I: 5}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				in(bytecode.OpPushConst, 0, 0),
				{Op: bytecode.OpAllocArray},
				inName(bytecode.OpDeclMut, "arr", 0),
				inName(bytecode.OpLoad, "arr", 0),
				in(bytecode.OpPushConst, 1, 0), // index 5, array length 2
				{Op: bytecode.OpArrayGet},
				{Op: bytecode.OpRetVal},
			},
		}},
		Entry: 0,
	}
	m, _ := newTestMachine()
	if err := m.Run(prog); err == nil {
		t.Fatal("expected OutOfBounds error")
	} else if !strings.Contains(err.Error(), "OUT_OF_BOUNDS") {
		t.Errorf("got %v, want an OutOfBounds error", err)
	}
}

// TestTraceCapturesFramesAtRaiseSite covers spec §4.7/§7: when a call deep
// in the stack fails, Run's caller must be able to recover every active
// frame, innermost first, with each frame's own paused instruction offset —
// not an empty slice, since callFunc unwinds every frame as the error
// propagates back up past it.
func TestTraceCapturesFramesAtRaiseSite(t *testing.T) {
	// helper allocates a length-1 array and reads an out-of-bounds index,
	// raising at its own instruction 3 (after PUSH_CONST/ALLOC_ARRAY/PUSH_CONST).
	helper := bytecode.FuncDef{
		Name: "helper",
		Code: []bytecode.Instr{
			in(bytecode.OpPushConst, 0, 0), // array length 1
			{Op: bytecode.OpAllocArray},
			in(bytecode.OpPushConst, 1, 0), // index 5
			{Op: bytecode.OpArrayGet},
			{Op: bytecode.OpRetVal},
		},
	}
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 1}, {Kind: bytecode.ConstInt, I: 5}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				{Op: bytecode.OpCall, A: 1}, // pc 0, paused here while helper raises
				{Op: bytecode.OpRet},
			},
		}, helper},
		Entry: 0,
	}

	m, _ := newTestMachine()
	if err := m.Run(prog); err == nil {
		t.Fatal("expected an OutOfBounds error")
	}

	trace := m.Trace()
	if len(trace) != 2 {
		t.Fatalf("got %d frames, want 2 (helper, main): %+v", len(trace), trace)
	}
	if trace[0].FuncName != "helper" || trace[0].PC != 3 {
		t.Errorf("innermost frame = %+v, want {helper 3}", trace[0])
	}
	if trace[1].FuncName != "main" || trace[1].PC != 0 {
		t.Errorf("outer frame = %+v, want {main 0}", trace[1])
	}

	// Frames() reflects the live call stack, which has fully unwound by
	// the time Run returns — Trace is what diagnostics should use instead.
	if live := m.Frames(); len(live) != 0 {
		t.Errorf("Frames() after Run returned = %+v, want empty", live)
	}
}

// TestBreakExitsLoop exercises LOOP_BEGIN/LOOP_END/BREAK: a loop counting
// up from 0 breaks once x reaches 3, leaving x at 3.
func TestBreakExitsLoop(t *testing.T) {
	prog := &bytecode.Program{
		Kind:   bytecode.KindProgram,
		Consts: []bytecode.Const{{Kind: bytecode.ConstInt, I: 0}, {Kind: bytecode.ConstInt, I: 3}, {Kind: bytecode.ConstInt, I: 1}},
		Funcs: []bytecode.FuncDef{{
			Name: "main",
			Code: []bytecode.Instr{
				/*0*/ in(bytecode.OpPushConst, 0, 0),
				/*1*/ inName(bytecode.OpDeclMut, "x", 0),
				/*2*/ in(bytecode.OpLoopBegin, 3, 14),
				/*3*/ inName(bytecode.OpLoad, "x", 0),
				/*4*/ in(bytecode.OpPushConst, 1, 0),
				/*5*/ in(bytecode.OpGe, 0, 0),
				/*6*/ in(bytecode.OpJmpIfFalse, 8, 0),
				/*7*/ {Op: bytecode.OpBreak, A: 1},
				/*8*/ inName(bytecode.OpLoad, "x", 0),
				/*9*/ in(bytecode.OpPushConst, 2, 0),
				/*10*/ in(bytecode.OpAdd, 0, 0),
				/*11*/ inName(bytecode.OpStore, "x", 0),
				/*12*/ in(bytecode.OpJmp, 3, 0),
				/*13*/ {Op: bytecode.OpLoopEnd},
				/*14*/ inName(bytecode.OpLoad, "x", 0),
				/*15*/ in(bytecode.OpPrintln, 0, 0),
				/*16*/ {Op: bytecode.OpRet},
			},
		}},
		Entry: 0,
	}
	_, out := runProgram(t, prog)
	if out != "3\n" {
		t.Errorf("got %q, want %q", out, "3\n")
	}
}
