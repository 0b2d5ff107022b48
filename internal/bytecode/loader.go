package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/reactive-lang/reactive/internal/errors"
)

// RuntimeVersion is the version this implementation satisfies; a loaded
// image's optional VERSION record is checked against it as a semver
// constraint (SPEC_FULL.md §B), the supplemental compatibility check spec
// §4.4 leaves to "an external-interface contract."
const RuntimeVersion = "1.0.0"

const magic = "RXB1"

// Load parses an RXB1 text image from r and returns a validated Program.
// The loader's job, per spec §4.4, is to materialize the program image and
// validate structural invariants — not to interpret anything.
func Load(r io.Reader) (*Program, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return nil, errors.LoaderErr("empty bytecode image")
	}
	if strings.TrimSpace(sc.Text()) != magic {
		return nil, errors.LoaderErr("bad magic: expected %q", magic)
	}

	p := &Program{Kind: KindProgram}
	funcIndex := map[string]int{}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "VERSION":
			if len(fields) < 2 {
				return nil, errors.LoaderErr("VERSION record missing constraint")
			}
			p.Version = fields[1]
			if err := checkVersion(p.Version); err != nil {
				return nil, err
			}
		case "KIND":
			if len(fields) < 2 {
				return nil, errors.LoaderErr("KIND record missing value")
			}
			switch fields[1] {
			case "PROGRAM":
				p.Kind = KindProgram
			case "MODULE":
				p.Kind = KindModule
			default:
				return nil, errors.LoaderErr("unknown KIND %q", fields[1])
			}
		case "CONSTS":
			if err := loadConsts(sc, p); err != nil {
				return nil, err
			}
		case "LAYOUTS":
			if err := loadLayouts(sc, p); err != nil {
				return nil, err
			}
		case "FUNCS":
			if err := loadFuncs(sc, p, funcIndex); err != nil {
				return nil, err
			}
		case "EXPRS":
			if err := loadExprs(sc, p); err != nil {
				return nil, err
			}
		case "ENTRY":
			if len(fields) < 2 {
				return nil, errors.LoaderErr("ENTRY record missing function reference")
			}
			idx, ok := funcIndex[fields[1]]
			if !ok {
				n, err := strconv.Atoi(fields[1])
				if err != nil {
					return nil, errors.LoaderErr("ENTRY references unknown function %q", fields[1])
				}
				idx = n
			}
			p.Entry = idx
		default:
			return nil, errors.LoaderErr("unexpected top-level record %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.LoaderErr("reading bytecode image: %v", err)
	}

	if err := validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

func checkVersion(v string) error {
	c, err := semver.NewConstraint("^" + RuntimeVersion)
	if err != nil {
		return errors.LoaderErr("internal: bad runtime version constraint: %v", err)
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return errors.LoaderErr("malformed VERSION %q: %v", v, err)
	}
	if !c.Check(sv) {
		return errors.LoaderErr("bytecode image version %s is incompatible with runtime %s", v, RuntimeVersion)
	}
	return nil
}

func loadConsts(sc *bufio.Scanner, p *Program) error {
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "END" {
			return nil
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 3 {
			return errors.LoaderErr("malformed CONSTS record %q", line)
		}
		switch fields[1] {
		case "INT":
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return errors.LoaderErr("malformed INT constant %q", line)
			}
			p.Consts = append(p.Consts, Const{Kind: ConstInt, I: int32(n)})
		case "CHAR":
			r := []rune(fields[2])
			if len(r) != 1 {
				return errors.LoaderErr("malformed CHAR constant %q", line)
			}
			p.Consts = append(p.Consts, Const{Kind: ConstChar, C: r[0]})
		case "STRING":
			s, err := strconv.Unquote(fields[2])
			if err != nil {
				return errors.LoaderErr("malformed STRING constant %q", line)
			}
			p.Consts = append(p.Consts, Const{Kind: ConstString, S: []rune(s)})
		default:
			return errors.LoaderErr("unknown constant kind %q", fields[1])
		}
	}
	return errors.LoaderErr("unterminated CONSTS section")
}

func loadLayouts(sc *bufio.Scanner, p *Program) error {
	var cur *Layout
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "END" {
			if cur != nil {
				return errors.LoaderErr("unterminated LAYOUT")
			}
			return nil
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "LAYOUT":
			if len(fields) < 2 {
				return errors.LoaderErr("malformed LAYOUT record %q", line)
			}
			p.Layouts = append(p.Layouts, Layout{Name: fields[1]})
			cur = &p.Layouts[len(p.Layouts)-1]
		case "FIELD":
			if cur == nil || len(fields) < 3 {
				return errors.LoaderErr("malformed FIELD record %q", line)
			}
			fd := FieldDef{Name: fields[1], ExprID: -1}
			switch fields[2] {
			case "MUT":
				fd.Kind = FieldMut
				if len(fields) >= 4 {
					n, err := strconv.Atoi(fields[3])
					if err != nil {
						return errors.LoaderErr("malformed expr id in FIELD record %q", line)
					}
					fd.ExprID = n
				}
			case "IMM":
				fd.Kind = FieldImm
				if len(fields) >= 4 {
					n, err := strconv.Atoi(fields[3])
					if err != nil {
						return errors.LoaderErr("malformed expr id in FIELD record %q", line)
					}
					fd.ExprID = n
				}
			case "REACTIVE":
				fd.Kind = FieldReactive
				if len(fields) < 4 {
					return errors.LoaderErr("REACTIVE field %q missing expr id", fd.Name)
				}
				n, err := strconv.Atoi(fields[3])
				if err != nil {
					return errors.LoaderErr("malformed expr id in FIELD record %q", line)
				}
				fd.ExprID = n
			default:
				return errors.LoaderErr("unknown field kind %q", fields[2])
			}
			cur.Fields = append(cur.Fields, fd)
		case "ENDLAYOUT":
			cur = nil
		default:
			return errors.LoaderErr("unexpected record %q in LAYOUTS section", fields[0])
		}
	}
	return errors.LoaderErr("unterminated LAYOUTS section")
}

func loadFuncs(sc *bufio.Scanner, p *Program, funcIndex map[string]int) error {
	var cur *FuncDef
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "END" {
			if cur != nil {
				return errors.LoaderErr("unterminated FUNC")
			}
			return nil
		}
		fields := strings.Fields(line)
		if cur == nil {
			if fields[0] != "FUNC" || len(fields) < 4 {
				return errors.LoaderErr("malformed FUNC record %q", line)
			}
			arity, err1 := strconv.Atoi(fields[2])
			locals, err2 := strconv.Atoi(fields[3])
			if err1 != nil || err2 != nil {
				return errors.LoaderErr("malformed FUNC record %q", line)
			}
			p.Funcs = append(p.Funcs, FuncDef{Name: fields[1], Arity: arity, NumLocals: locals})
			cur = &p.Funcs[len(p.Funcs)-1]
			funcIndex[fields[1]] = len(p.Funcs) - 1
			continue
		}
		if fields[0] == "ENDFUNC" {
			cur = nil
			continue
		}
		instr, err := parseInstr(fields)
		if err != nil {
			return err
		}
		cur.Code = append(cur.Code, instr)
	}
	return errors.LoaderErr("unterminated FUNCS section")
}

func loadExprs(sc *bufio.Scanner, p *Program) error {
	var cur *ExprDef
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "END" {
			if cur != nil {
				return errors.LoaderErr("unterminated EXPR")
			}
			return nil
		}
		fields := strings.Fields(line)
		if cur == nil {
			if fields[0] != "EXPR" || len(fields) < 2 {
				return errors.LoaderErr("malformed EXPR record %q", line)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return errors.LoaderErr("malformed EXPR record %q", line)
			}
			p.Exprs = append(p.Exprs, ExprDef{ID: id})
			cur = &p.Exprs[len(p.Exprs)-1]
			continue
		}
		if fields[0] == "ENDEXPR" {
			cur = nil
			continue
		}
		instr, err := parseInstr(fields)
		if err != nil {
			return err
		}
		cur.Code = append(cur.Code, instr)
	}
	return errors.LoaderErr("unterminated EXPRS section")
}

// nameOperandOps take a bare identifier as their first operand rather than
// an integer.
var nameOperandOps = map[Opcode]bool{
	OpDeclMut: true, OpDeclImm: true, OpDeclReactive: true,
	OpLoad: true, OpStore: true, OpCallNative: true, OpImport: true,
}

func parseInstr(fields []string) (Instr, error) {
	op := Opcode(fields[0])
	instr := Instr{Op: op}
	args := fields[1:]

	if nameOperandOps[op] {
		if len(args) < 1 {
			return Instr{}, errors.LoaderErr("opcode %s missing name operand", op)
		}
		instr.Name = args[0]
		if len(args) >= 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return Instr{}, fmt.Errorf("opcode %s: malformed integer operand %q", op, args[1])
			}
			instr.A = int32(n)
		}
		return instr, nil
	}

	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return Instr{}, errors.LoaderErr("opcode %s: malformed integer operand %q", op, args[0])
		}
		instr.A = int32(n)
	}
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return Instr{}, errors.LoaderErr("opcode %s: malformed integer operand %q", op, args[1])
		}
		instr.B = int32(n)
	}
	return instr, nil
}

// validate checks every cross-reference a program image makes: constant,
// expression, and function indices, per spec §4.4's structural-invariant
// requirement.
func validate(p *Program) error {
	checkRefs := func(code []Instr) error {
		for _, in := range code {
			switch in.Op {
			case OpPushConst, OpError:
				if int(in.A) < 0 || int(in.A) >= len(p.Consts) {
					return errors.LoaderErr("instruction %s references out-of-range const %d", in.Op, in.A)
				}
			case OpAllocRecord:
				if int(in.A) < 0 || int(in.A) >= len(p.Layouts) {
					return errors.LoaderErr("instruction %s references out-of-range layout %d", in.Op, in.A)
				}
			case OpDeclReactive, OpArraySetReact:
				if int(in.A) < 0 || int(in.A) >= len(p.Exprs) {
					return errors.LoaderErr("instruction %s references out-of-range expr %d", in.Op, in.A)
				}
			case OpFieldSetReact:
				if int(in.B) < 0 || int(in.B) >= len(p.Exprs) {
					return errors.LoaderErr("instruction %s references out-of-range expr %d", in.Op, in.B)
				}
			case OpCall:
				if int(in.A) < 0 || int(in.A) >= len(p.Funcs) {
					return errors.LoaderErr("instruction %s references out-of-range function %d", in.Op, in.A)
				}
			}
		}
		return nil
	}

	for _, fn := range p.Funcs {
		if err := checkRefs(fn.Code); err != nil {
			return fmt.Errorf("in function %q: %w", fn.Name, err)
		}
	}
	for _, ex := range p.Exprs {
		if err := checkRefs(ex.Code); err != nil {
			return fmt.Errorf("in expr %d: %w", ex.ID, err)
		}
	}
	for _, l := range p.Layouts {
		for _, f := range l.Fields {
			if f.ExprID >= 0 && f.ExprID >= len(p.Exprs) {
				return errors.LoaderErr("layout %q field %q references out-of-range expr %d", l.Name, f.Name, f.ExprID)
			}
			if f.Kind == FieldReactive && f.ExprID < 0 {
				return errors.LoaderErr("layout %q reactive field %q missing expr id", l.Name, f.Name)
			}
		}
	}
	// Both program and module images name an entry function: a runnable
	// program's main body, or a module's once-only top-level init body
	// (spec §6's "two entry forms" differ in whether a caller is expected
	// to invoke anything further afterward, not in whether an entry exists).
	if p.Entry < 0 || p.Entry >= len(p.Funcs) {
		return errors.LoaderErr("entry point references out-of-range function %d", p.Entry)
	}
	return nil
}
