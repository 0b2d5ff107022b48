package bytecode

// Opcode enumerates every instruction spec §4.5 requires, grouped the way
// the spec groups them (constants/stack, arithmetic/logic, casts, control,
// environment, heap, loops, builtins).
type Opcode string

const (
	OpPushConst Opcode = "PUSH_CONST"
	OpDup       Opcode = "DUP"
	OpPop       Opcode = "POP"
	OpSwap      Opcode = "SWAP"

	OpAdd Opcode = "ADD"
	OpSub Opcode = "SUB"
	OpMul Opcode = "MUL"
	OpDiv Opcode = "DIV"
	OpMod Opcode = "MOD"
	OpNeg Opcode = "NEG"
	OpEq  Opcode = "EQ"
	OpNe  Opcode = "NE"
	OpLt  Opcode = "LT"
	OpLe  Opcode = "LE"
	OpGt  Opcode = "GT"
	OpGe  Opcode = "GE"
	OpAnd Opcode = "AND"
	OpOr  Opcode = "OR"
	OpNot Opcode = "NOT"

	OpCastInt  Opcode = "CAST_INT"
	OpCastChar Opcode = "CAST_CHAR"
	OpAsInt    Opcode = "AS_INT"

	OpJmp         Opcode = "JMP"
	OpJmpIfFalse  Opcode = "JMP_IF_FALSE"
	OpCall        Opcode = "CALL"
	OpRet         Opcode = "RET"
	OpRetVal      Opcode = "RET_VAL"

	OpDeclMut      Opcode = "DECL_MUT"
	OpDeclImm      Opcode = "DECL_IMM"
	OpDeclReactive Opcode = "DECL_REACTIVE"
	OpLoad         Opcode = "LOAD"
	OpStore        Opcode = "STORE"
	OpEnterScope   Opcode = "ENTER_SCOPE"
	OpLeaveScope   Opcode = "LEAVE_SCOPE"
	OpEnterIter    Opcode = "ENTER_ITER_SCOPE"
	OpLeaveIter    Opcode = "LEAVE_ITER_SCOPE"

	OpAllocArray      Opcode = "ALLOC_ARRAY"
	OpArrayGet        Opcode = "ARRAY_GET"
	OpArraySetMut     Opcode = "ARRAY_SET_MUT"
	OpArraySetReact   Opcode = "ARRAY_SET_REACTIVE"
	OpAllocRecord     Opcode = "ALLOC_RECORD"
	OpFieldGet        Opcode = "FIELD_GET"
	OpFieldSetMut     Opcode = "FIELD_SET_MUT"
	OpFieldSetReact   Opcode = "FIELD_SET_REACTIVE"

	// OpLoopBegin/OpLoopEnd bracket a loop body and are this implementation's
	// own convention for resolving BREAK/CONTINUE targets (spec §4.5 leaves
	// the exact encoding of "jump offsets plus scope-pop counts" to the
	// compiler; this is the concrete choice that compiler makes here).
	// A=continue target, B=break target, both absolute instruction indices.
	OpLoopBegin Opcode = "LOOP_BEGIN"
	OpLoopEnd   Opcode = "LOOP_END"

	OpBreak    Opcode = "BREAK"
	OpContinue Opcode = "CONTINUE"

	// OpImport triggers the load-once import registry (spec §4.6) for the
	// dotted path carried in Instr.Name, at the point the import statement
	// appears in program order.
	OpImport Opcode = "IMPORT"

	OpPrint      Opcode = "PRINT"
	OpPrintln    Opcode = "PRINTLN"
	OpAssert     Opcode = "ASSERT"
	OpError      Opcode = "ERROR"
	OpCallNative Opcode = "CALL_NATIVE"
)
