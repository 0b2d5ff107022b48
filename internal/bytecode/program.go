// Package bytecode implements the RXB1 program image (spec §4.4, §6): the
// in-memory representation the VM executes, and a line-oriented text loader.
// The loading flow — parse the whole image, then validate it structurally
// before anything runs — follows the shape of the teacher's
// internal/modules/modules.go ModuleLoader, narrowed to a single program
// image instead of a whole dependency graph (internal/modules owns the graph
// and the load-once registry, one level up).
package bytecode

// ConstKind distinguishes the three literal forms the constant pool holds.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstChar
	ConstString
)

// Const is one constant-pool entry. Strings have no Value representation
// (spec §3's Value is a closed four-variant sum with no string tag); the VM
// materializes a String constant as a fresh heap array of Char each time
// PUSH_CONST references it, matching spec §4.1's "strings are arrays of
// Char" note.
type Const struct {
	Kind ConstKind
	I    int32
	C    rune
	S    []rune
}

// FieldKind mirrors value.SlotKind for a struct layout's declared fields.
type FieldKind uint8

const (
	FieldMut FieldKind = iota
	FieldImm
	FieldReactive
)

// FieldDef is one declared field of a struct layout: its kind, and an
// optional initializer expression (spec §4.4). For a Reactive field ExprID
// is the expression re-run on every stale read; for a Mut/Imm field it is a
// one-shot default-value expression run once at allocation, or -1 if the
// field simply starts at Unit.
type FieldDef struct {
	Name   string
	Kind   FieldKind
	ExprID int
}

// Layout is a struct-layout table entry (spec §4.4): a name and an ordered
// field list, giving every record allocated against LayoutID a stable shape.
type Layout struct {
	Name   string
	Fields []FieldDef
}

// Instr is one bytecode instruction: an opcode plus up to two integer
// operands (covers every opcode in spec §4.5 — the widest is two operands,
// e.g. DECL_REACTIVE name expr_id, which is encoded with Name set and A the
// expr id).
type Instr struct {
	Op   Opcode
	A    int32
	B    int32
	Name string
}

// FuncDef is a function-table entry: its arity, local-slot count, and
// instruction stream (spec §4.4).
type FuncDef struct {
	Name      string
	Arity     int
	NumLocals int
	Code      []Instr
}

// ExprDef is a standalone instruction stream for a reactive expression,
// evaluated on demand rather than called (spec §4.4's "expression table").
type ExprDef struct {
	ID   int
	Code []Instr
}

// Kind distinguishes a runnable top-level program from a module (spec §6's
// "two entry forms"). Both name an entry function: a module's entry is its
// once-only top-level init body, run by internal/modules on first import.
type Kind uint8

const (
	KindProgram Kind = iota
	KindModule
)

// Program is the fully materialized image the VM interpreter runs: the
// loader's job is to produce one of these with every cross-reference
// (const/expr/function index) validated.
type Program struct {
	Kind    Kind
	Version string // optional VERSION record; empty if the image didn't carry one
	Consts  []Const
	Layouts []Layout
	Funcs   []FuncDef
	Exprs   []ExprDef
	Entry   int // index into Funcs: a program's main body or a module's init body
}

// ExprByID returns the expression definition with the given id. Expression
// ids are assigned densely by the compiler and match their slice index.
func (p *Program) ExprByID(id int) (*ExprDef, bool) {
	if id < 0 || id >= len(p.Exprs) {
		return nil, false
	}
	return &p.Exprs[id], true
}

func (p *Program) LayoutByName(name string) (int, *Layout, bool) {
	for i := range p.Layouts {
		if p.Layouts[i].Name == name {
			return i, &p.Layouts[i], true
		}
	}
	return 0, nil, false
}
