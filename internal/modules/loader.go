package modules

import (
	"os"

	"github.com/reactive-lang/reactive/internal/bytecode"
	"github.com/reactive-lang/reactive/internal/errors"
)

// Machine is the subset of *vm.Machine the loader needs: run one program
// image's entry body. Declared here rather than importing internal/vm
// directly to keep this package's dependency surface to bytecode only —
// cmd/reactive wires the concrete *vm.Machine in.
type Machine interface {
	Run(prog *bytecode.Program) error
}

// Loader resolves and runs imports exactly once per path (spec §4.6),
// sharing one Machine (and therefore one heap/environment/clock) across
// every module it loads so an imported module's top-level definitions and
// side-effects land in the same global scope as the importer.
type Loader struct {
	root    string
	machine Machine
	loaded  map[Path]bool
	graph   *DependencyGraph
}

func NewLoader(root string, machine Machine) *Loader {
	return &Loader{root: root, machine: machine, loaded: make(map[Path]bool), graph: NewDependencyGraph()}
}

// ResolveModules builds the dependency graph for a program's static import
// set and rejects it up front if it contains a cycle, per spec §9's
// resolved Open Question. importsOf is called once per newly-discovered
// path to find that module's own immediate imports. The RXB1 loader in
// internal/bytecode reads no import-list record (it rejects unknown
// top-level records), so callers obtain this list themselves.
func (l *Loader) ResolveModules(entry Path, importsOf func(Path) ([]Path, error)) ([]Path, error) {
	var visit func(Path) error
	visited := map[Path]bool{}
	visit = func(p Path) error {
		if visited[p] {
			return nil
		}
		visited[p] = true
		l.graph.AddModule(p)
		deps, err := importsOf(p)
		if err != nil {
			return err
		}
		for _, d := range deps {
			l.graph.AddDependency(p, d)
			if err := visit(d); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(entry); err != nil {
		return nil, err
	}
	return l.graph.TopologicalSort()
}

// Import loads and executes the module at path exactly once (spec §4.6's
// "module-once" invariant): the second and later calls for the same path
// are no-ops that return nil.
func (l *Loader) Import(path Path) error {
	if l.loaded[path] {
		return nil
	}
	l.loaded[path] = true

	filePath := path.FilePath(l.root)
	f, err := os.Open(filePath)
	if err != nil {
		return errors.LoaderErr("cannot resolve import %q: %v", path, err)
	}
	defer f.Close()

	prog, err := bytecode.Load(f)
	if err != nil {
		return errors.LoaderErr("loading module %q: %v", path, err)
	}
	if prog.Kind != bytecode.KindModule {
		return errors.LoaderErr("import %q does not refer to a module image", path)
	}
	return l.machine.Run(prog)
}

// ImportPath is Import for a raw dotted-path string, the form the VM's
// IMPORT instruction carries (internal/vm depends on this package only
// through the narrow Importer interface it declares, not this type).
func (l *Loader) ImportPath(path string) error {
	return l.Import(Path(path))
}

// Loaded reports whether path has already been imported this run.
func (l *Loader) Loaded(path Path) bool {
	return l.loaded[path]
}
