// Package vm implements the stack-machine interpreter of spec §4.5: a
// switch-dispatched loop over Value operands, call frames, and the
// environment/heap/reactive-engine wiring that gives DECL_REACTIVE,
// LOAD, ARRAY_GET, and FIELD_GET their pull-based evaluation semantics.
// Dispatch-loop shape (instruction pointer, operand stack, a stack of call
// frames) is cross-checked against the other example VMs in the corpus
// (a plain Go switch over the opcode, no interface dispatch per
// opcode) rather than any teacher file — the teacher's own runtime is a
// native-codegen backend, not a bytecode interpreter.
package vm

import (
	"io"

	"github.com/reactive-lang/reactive/internal/builtins"
	"github.com/reactive-lang/reactive/internal/bytecode"
	"github.com/reactive-lang/reactive/internal/env"
	"github.com/reactive-lang/reactive/internal/errors"
	"github.com/reactive-lang/reactive/internal/reactive"
	"github.com/reactive-lang/reactive/internal/value"
)

// Machine is the running interpreter state for one program or module
// execution: shared heap, global clock, the live environment chain, and
// the reactive engine that reads through Reactive slots.
type Machine struct {
	prog   *bytecode.Program
	heap   *value.Heap
	clock  *value.Clock
	genv   *env.Env
	engine *reactive.Engine
	fs     builtins.HostFS
	stdout io.Writer
	stderr io.Writer

	stack    []value.Value
	frames   []frame
	fieldCtx []*RecordCtx
	importer Importer
	touched  []*value.Slot
	seen     map[*value.Slot]bool

	// track is the dependency map of the reactive evaluation currently in
	// progress, or nil outside of one. It is ambient rather than
	// parameter-threaded so that a CALL reached while evaluating a
	// reactive expression keeps recording into the same map as the
	// callee's own LOAD/ARRAY_GET/FIELD_GET instructions run (spec §4.3:
	// the tracking evaluator records every location read during the
	// evaluation, including reads inside nested calls).
	track map[value.Location]uint64

	// trace is the call-frame snapshot captured at the point the most
	// recent Run's error was first raised, before any frame unwound.
	trace []FrameInfo
}

// Importer is satisfied by *modules.Loader; kept as an interface here so
// this package never imports internal/modules (which itself only imports
// bytecode — the layering stays one-directional).
type Importer interface {
	ImportPath(path string) error
}

// SetImporter wires the module loader the OpImport instruction dispatches
// to. Left unset, an IMPORT instruction is a LoaderError.
func (m *Machine) SetImporter(imp Importer) {
	m.importer = imp
}

// New creates a Machine sharing heap/clock/env across module and program
// executions within one run (spec §4.6: imported modules' top-level effects
// land in the same global scope as the importer).
func New(heap *value.Heap, clock *value.Clock, genv *env.Env, fs builtins.HostFS, stdout, stderr io.Writer) *Machine {
	m := &Machine{heap: heap, clock: clock, genv: genv, fs: fs, stdout: stdout, stderr: stderr, seen: make(map[*value.Slot]bool)}
	m.engine = reactive.New(m, clock)
	return m
}

// Heap exposes the shared heap, for builtins and the CLI's debug-graph
// inspection.
func (m *Machine) Heap() *value.Heap { return m.heap }

// touch records a reactive slot as having been read this run, for the
// debug-graph subcommand's dependency report (SPEC_FULL.md A.5).
func (m *Machine) touch(slot *value.Slot) {
	if slot.Kind != value.SlotReactive || m.seen[slot] {
		return
	}
	m.seen[slot] = true
	m.touched = append(m.touched, slot)
}

// TouchedReactive returns every reactive slot read during this run, for
// the debug-graph subcommand.
func (m *Machine) TouchedReactive() []*value.Slot {
	return m.touched
}

// Run executes prog's entry function to completion. Callers (cmd/reactive,
// internal/modules) select whether the entry is a runnable program's main
// body or a module's once-only init body; the Machine itself just runs it.
func (m *Machine) Run(prog *bytecode.Program) error {
	m.prog = prog
	m.trace = nil
	_, err := m.callFunc(prog.Entry)
	return err
}

func (m *Machine) layoutName(layoutID int) string {
	if layoutID < 0 || layoutID >= len(m.prog.Layouts) {
		return "?"
	}
	return m.prog.Layouts[layoutID].Name
}

// Frames returns a snapshot of the currently active call-frame names and
// instruction offsets, innermost first. Only meaningful while a call is in
// progress (e.g. from within a host callback); by the time Run returns,
// every frame it pushed has unwound. Error reporting after Run returns
// should use Trace instead.
func (m *Machine) Frames() []FrameInfo {
	out := make([]FrameInfo, len(m.frames))
	for i, f := range m.frames {
		out[len(m.frames)-1-i] = FrameInfo{FuncName: f.fnName, PC: f.pc}
	}
	return out
}

// Trace returns the call-stack snapshot captured at the point the most
// recent Run's error was first raised, innermost first, for
// diagnostics.FormatTrace. Nil if Run succeeded or hasn't been called.
func (m *Machine) Trace() []FrameInfo {
	return m.trace
}

// FrameInfo is the diagnostics-facing view of a call frame.
type FrameInfo struct {
	FuncName string
	PC       int
}

// push/pop operate on the shared operand stack.
func (m *Machine) push(v value.Value) { m.stack = append(m.stack, v) }

func (m *Machine) pop() (value.Value, error) {
	if len(m.stack) == 0 {
		return value.Value{}, errors.New(errors.LoaderError, "operand stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// callFunc invokes function fnIdx; args are expected to already be on the
// operand stack in the convention described in run's CALL case (reverse
// parameter order, so the callee's prologue DECL_IMM instructions consume
// them in declaration order).
func (m *Machine) callFunc(fnIdx int) (value.Value, error) {
	if fnIdx < 0 || fnIdx >= len(m.prog.Funcs) {
		return value.Value{}, errors.LoaderErr("call to out-of-range function %d", fnIdx)
	}
	fn := &m.prog.Funcs[fnIdx]
	saved := m.genv.Mark()
	m.genv.PushScope()
	m.frames = append(m.frames, frame{fnName: fn.Name, savedScope: saved})
	frameIdx := len(m.frames) - 1
	result, err := m.runWithTracking(fn.Code, m.track, frameIdx)
	if err != nil && m.trace == nil {
		// Snapshot before this (or any outer) frame unwinds: every frame
		// from here to the entry call is still on m.frames at this point,
		// since callFunc pops its own frame only after this check runs, in
		// innermost-to-outermost order as the error propagates back up.
		m.trace = m.Frames()
	}
	m.genv.Restore(saved)
	m.frames = m.frames[:len(m.frames)-1]
	return result, err
}

// loopCtx tracks one active loop's targets for BREAK/CONTINUE, local to a
// single run() invocation since loops never span a function call.
type loopCtx struct {
	continuePC int
	breakPC    int
	scopeAtTop *env.Scope
}

// run executes one instruction stream (a record field initializer; a
// function body run from outside callFunc has its own frame-aware call
// below) until RET/RET_VAL, returning the function's result (Unit for a
// plain RET). It is not itself a call frame, but it still runs under
// whatever reactive tracking is ambiently active via m.track.
func (m *Machine) run(code []bytecode.Instr) (value.Value, error) {
	return m.runWithTracking(code, m.track, -1)
}

// runWithTracking executes code exactly like run, but if track is non-nil,
// every location read via LOAD/ARRAY_GET/FIELD_GET — including reads
// performed by a function called from code — records its location and the
// version it was read at into track. This is the "tracking evaluator" spec
// §4.3 requires for reactive re-evaluation: a reactive expression that
// calls a function must see dependencies the callee reads, not just the
// names the expression itself mentions.
//
// frameIdx, when >= 0, names the slot in m.frames this invocation is
// running on behalf of (callFunc pushes the frame, then passes its index
// here) so the frame's pc stays live for Trace to snapshot if an error is
// raised beneath it. Record-field initializers and reactive-expression
// bodies aren't call frames, so they pass -1.
func (m *Machine) runWithTracking(code []bytecode.Instr, track map[value.Location]uint64, frameIdx int) (value.Value, error) {
	pc := 0
	var loops []loopCtx

	for pc < len(code) {
		if frameIdx >= 0 {
			m.frames[frameIdx].pc = pc
		}
		in := code[pc]
		switch in.Op {

		case bytecode.OpPushConst:
			v, err := m.constValue(int(in.A))
			if err != nil {
				return value.Value{}, err
			}
			m.push(v)

		case bytecode.OpDup:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			m.push(v)
			m.push(v)

		case bytecode.OpPop:
			if _, err := m.pop(); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpSwap:
			b, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			a, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			m.push(b)
			m.push(a)

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
			bytecode.OpEq, bytecode.OpNe, bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe,
			bytecode.OpAnd, bytecode.OpOr:
			if err := m.binOp(in.Op); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpNeg:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.AsInt(v, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			m.push(value.Int(-n))

		case bytecode.OpNot:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			t, err := value.Truthy(v, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			if t {
				m.push(value.Int(0))
			} else {
				m.push(value.Int(1))
			}

		case bytecode.OpCastInt:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			cv, err := value.CastInt(v)
			if err != nil {
				return value.Value{}, err
			}
			m.push(cv)

		case bytecode.OpCastChar:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			cv, err := value.CastChar(v)
			if err != nil {
				return value.Value{}, err
			}
			m.push(cv)

		case bytecode.OpAsInt:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.AsInt(v, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			m.push(value.Int(n))

		case bytecode.OpJmp:
			pc = int(in.A)
			continue

		case bytecode.OpJmpIfFalse:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			t, err := value.Truthy(v, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			if !t {
				pc = int(in.A)
				continue
			}

		case bytecode.OpCall:
			result, err := m.callFunc(int(in.A))
			if err != nil {
				return value.Value{}, err
			}
			// The callee's own DECL_IMM prologue consumed its argc
			// arguments from the shared operand stack; push its result.
			m.push(result)

		case bytecode.OpRet:
			return value.Unit(), nil

		case bytecode.OpRetVal:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			return v, nil

		case bytecode.OpDeclMut:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			m.genv.DeclareMut(in.Name, v)

		case bytecode.OpDeclImm:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			m.genv.DeclareImm(in.Name, v)

		case bytecode.OpDeclReactive:
			m.genv.DeclareReactive(in.Name, int(in.A))

		case bytecode.OpLoad:
			v, err := m.load(in.Name, track)
			if err != nil {
				return value.Value{}, err
			}
			m.push(v)

		case bytecode.OpStore:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			if _, err := m.genv.Assign(in.Name, v, m.clock); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpEnterScope:
			m.genv.PushScope()

		case bytecode.OpLeaveScope:
			m.genv.PopScope()

		case bytecode.OpEnterIter:
			m.genv.PushIterScope()

		case bytecode.OpLeaveIter:
			m.genv.PopIterScope()

		case bytecode.OpAllocArray:
			lenV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			n, err := value.AsInt(lenV, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			id := m.heap.AllocArray(int(n))
			m.push(value.HeapRef(id))

		case bytecode.OpArrayGet:
			idxV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			arrV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			idx, err := value.AsInt(idxV, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			v, err := m.readHeapSlot(arrV.H, int(idx), track, true, "")
			if err != nil {
				return value.Value{}, err
			}
			m.push(v)

		case bytecode.OpArraySetMut:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			idxV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			arrV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			idx, err := value.AsInt(idxV, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			slot, err := m.heap.ArrayGet(arrV.H, int(idx))
			if err != nil {
				return value.Value{}, err
			}
			slot.Val = v
			slot.Version = m.clock.Tick()

		case bytecode.OpArraySetReact:
			idxV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			arrV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			idx, err := value.AsInt(idxV, m.heap)
			if err != nil {
				return value.Value{}, err
			}
			slot, err := m.heap.ArrayGet(arrV.H, int(idx))
			if err != nil {
				return value.Value{}, err
			}
			*slot = *value.NewReactiveSlot(int(in.A), m.genv.Mark())
			slot.Version = m.clock.Tick()

		case bytecode.OpAllocRecord:
			id := m.heap.AllocRecord(int(in.A), len(m.prog.Layouts[in.A].Fields))
			if err := m.initRecordFields(id, int(in.A)); err != nil {
				return value.Value{}, err
			}
			m.push(value.HeapRef(id))

		case bytecode.OpFieldGet:
			recV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			layout := m.layoutName(m.mustLayoutID(recV))
			v, err := m.readHeapSlot(recV.H, int(in.A), track, false, layout)
			if err != nil {
				return value.Value{}, err
			}
			m.push(v)

		case bytecode.OpFieldSetMut:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			recV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			slot, err := m.heap.RecordField(recV.H, int(in.A), m.layoutName(m.mustLayoutID(recV)))
			if err != nil {
				return value.Value{}, err
			}
			slot.Val = v
			slot.Version = m.clock.Tick()

		case bytecode.OpFieldSetReact:
			recV, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			slot, err := m.heap.RecordField(recV.H, int(in.A), m.layoutName(m.mustLayoutID(recV)))
			if err != nil {
				return value.Value{}, err
			}
			ctx := &RecordCtx{RecordID: recV.H, LayoutName: m.layoutName(m.mustLayoutID(recV)), Outer: m.genv.Mark()}
			*slot = *value.NewReactiveSlot(int(in.B), ctx)
			slot.Version = m.clock.Tick()

		case bytecode.OpLoopBegin:
			loops = append(loops, loopCtx{continuePC: int(in.A), breakPC: int(in.B), scopeAtTop: m.genv.Mark()})

		case bytecode.OpLoopEnd:
			if len(loops) > 0 {
				loops = loops[:len(loops)-1]
			}

		case bytecode.OpBreak:
			level := int(in.A)
			if level < 1 {
				level = 1
			}
			if level > len(loops) {
				return value.Value{}, errors.New(errors.LoaderError, "break level %d exceeds loop nesting", level)
			}
			target := loops[len(loops)-level]
			m.genv.Restore(target.scopeAtTop)
			loops = loops[:len(loops)-level]
			pc = target.breakPC
			continue

		case bytecode.OpContinue:
			level := int(in.A)
			if level < 1 {
				level = 1
			}
			if level > len(loops) {
				return value.Value{}, errors.New(errors.LoaderError, "continue level %d exceeds loop nesting", level)
			}
			target := loops[len(loops)-level]
			m.genv.Restore(target.scopeAtTop)
			loops = loops[:len(loops)-level+1]
			pc = target.continuePC
			continue

		case bytecode.OpPrint:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			if err := builtins.Print(m.stdout, v, m.heap, m.layoutName); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpPrintln:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			if err := builtins.Println(m.stdout, v, m.heap, m.layoutName); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpAssert:
			v, err := m.pop()
			if err != nil {
				return value.Value{}, err
			}
			if err := builtins.Assert(v, m.heap); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpError:
			c, err := m.constValue(int(in.A))
			if err != nil {
				return value.Value{}, err
			}
			msg, _ := builtins.AsString(c, m.heap)
			return value.Value{}, builtins.Error(msg)

		case bytecode.OpImport:
			if m.importer == nil {
				return value.Value{}, errors.LoaderErr("no module loader wired for import %q", in.Name)
			}
			if err := m.importer.ImportPath(in.Name); err != nil {
				return value.Value{}, err
			}

		case bytecode.OpCallNative:
			argc := int(in.A)
			args := make([]value.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				v, err := m.pop()
				if err != nil {
					return value.Value{}, err
				}
				args[i] = v
			}
			result, err := m.callNative(in.Name, args)
			if err != nil {
				return value.Value{}, err
			}
			m.push(result)

		default:
			return value.Value{}, errors.New(errors.LoaderError, "unimplemented opcode %s", in.Op)
		}
		pc++
	}
	return value.Unit(), nil
}

func (m *Machine) mustLayoutID(recV value.Value) int {
	obj, err := m.heap.Get(recV.H)
	if err != nil {
		return -1
	}
	return obj.LayoutID
}

func (m *Machine) constValue(idx int) (value.Value, error) {
	if idx < 0 || idx >= len(m.prog.Consts) {
		return value.Value{}, errors.LoaderErr("const index %d out of range", idx)
	}
	c := m.prog.Consts[idx]
	switch c.Kind {
	case bytecode.ConstInt:
		return value.Int(c.I), nil
	case bytecode.ConstChar:
		return value.Char(c.C), nil
	case bytecode.ConstString:
		return builtins.NewStringArray(m.heap, string(c.S)), nil
	default:
		return value.Value{}, errors.LoaderErr("unknown const kind")
	}
}

func (m *Machine) binOp(op bytecode.Opcode) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	an, err := value.AsInt(a, m.heap)
	if err != nil {
		return err
	}
	bn, err := value.AsInt(b, m.heap)
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpAdd:
		m.push(value.Int(an + bn))
	case bytecode.OpSub:
		m.push(value.Int(an - bn))
	case bytecode.OpMul:
		m.push(value.Int(an * bn))
	case bytecode.OpDiv:
		if bn == 0 {
			return errors.TypeMismatchErr("division by zero")
		}
		m.push(value.Int(an / bn))
	case bytecode.OpMod:
		if bn == 0 {
			return errors.TypeMismatchErr("modulo by zero")
		}
		m.push(value.Int(an % bn))
	case bytecode.OpEq:
		m.push(boolInt(an == bn))
	case bytecode.OpNe:
		m.push(boolInt(an != bn))
	case bytecode.OpLt:
		m.push(boolInt(an < bn))
	case bytecode.OpLe:
		m.push(boolInt(an <= bn))
	case bytecode.OpGt:
		m.push(boolInt(an > bn))
	case bytecode.OpGe:
		m.push(boolInt(an >= bn))
	case bytecode.OpAnd:
		m.push(boolInt(an != 0 && bn != 0))
	case bytecode.OpOr:
		m.push(boolInt(an != 0 || bn != 0))
	default:
		return errors.New(errors.LoaderError, "not a binary opcode: %s", op)
	}
	return nil
}

func boolInt(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}

// initRecordFields evaluates each non-reactive field's declared initializer
// (Mut/Imm fields start Unit unless FIELD_SET_MUT follows in the compiled
// constructor body; Reactive fields are wired up immediately since their
// expression and captured context are both already known at ALLOC_RECORD
// time) and installs Reactive slots for every REACTIVE field up front.
func (m *Machine) initRecordFields(id value.HeapID, layoutID int) error {
	obj, err := m.heap.Get(id)
	if err != nil {
		return err
	}
	layout := &m.prog.Layouts[layoutID]
	for i, f := range layout.Fields {
		switch {
		case f.Kind == bytecode.FieldReactive:
			ctx := &RecordCtx{RecordID: id, LayoutName: layout.Name, Outer: m.genv.Mark()}
			obj.Slots[i] = value.NewReactiveSlot(f.ExprID, ctx)
		case f.ExprID >= 0:
			expr, ok := m.prog.ExprByID(f.ExprID)
			if !ok {
				return errors.LoaderErr("field %q initializer references missing expr %d", f.Name, f.ExprID)
			}
			v, err := m.run(expr.Code)
			if err != nil {
				return err
			}
			if f.Kind == bytecode.FieldImm {
				obj.Slots[i] = value.NewImmSlot(v)
			} else {
				obj.Slots[i].Val = v
			}
		}
	}
	return nil
}

// callNative dispatches CALL_NATIVE to the builtins filesystem primitives
// (spec §6's host interfaces); any other name is an undefined-name error.
func (m *Machine) callNative(name string, args []value.Value) (value.Value, error) {
	str := func(v value.Value) string {
		s, _ := builtins.AsString(v, m.heap)
		return s
	}
	switch name {
	case "file_read":
		return builtins.FileRead(m.fs, m.heap, str(args[0])), nil
	case "file_write":
		return builtins.FileWrite(m.fs, str(args[0]), str(args[1])), nil
	case "file_exists":
		return builtins.FileExists(m.fs, str(args[0])), nil
	case "file_remove":
		return builtins.FileRemove(m.fs, str(args[0])), nil
	default:
		return value.Value{}, errors.UndefinedNameErr(name)
	}
}
