// Package modules implements the load-once import registry of spec §4.6:
// `import a.b.c` resolves to a `.rxb` path, and a registry of loaded paths
// gates every import to executing exactly once per program run, regardless
// of how many times it is imported.
//
// The dependency-graph/cycle-detection/topological-sort machinery here is
// adapted directly from the teacher's internal/modules/modules.go
// DependencyGraph — the same AddDependency/DetectCycles/TopologicalSort
// trio, stripped of its HIR module-id generation and semantic-versioning
// concerns (this spec has no package manager, only a load-once gate), and
// repurposed so cycle detection runs the resolved import graph before any
// module body executes rather than, as the teacher uses it, ordering HIR
// compilation units.
package modules

import (
	"path/filepath"
	"strings"

	"github.com/reactive-lang/reactive/internal/errors"
)

// Path is a canonical, dot-separated import path such as "a.b.c".
type Path string

// FilePath resolves an import path to its compiled-module location on disk,
// per spec §4.6: `import a.b.c` -> `<program-root>/a/b/c.rxb`.
func (p Path) FilePath(root string) string {
	segs := strings.Split(string(p), ".")
	return filepath.Join(append([]string{root}, segs...)...) + ".rxb"
}

// LoadStatus tracks where a module is in the load pipeline, the same
// small state machine the teacher's ModuleLoadStatus uses.
type LoadStatus int

const (
	StatusPending LoadStatus = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Module is one resolved import: its path, load status, and the error if
// loading failed. It does not hold the loaded program image.
type Module struct {
	Path   Path
	Status LoadStatus
	Err    error
}

// DependencyGraph records the import edges Loader.ResolveModules discovers,
// purely to reject cycles before any module executes (spec §9 Open
// Question, resolved: ResolveModules reports a cyclic import set as a
// LoaderError). Loader.Import does not consult it: an IMPORT of a path
// already marked loaded, including one reached through a cycle, returns nil
// without running the module again.
type DependencyGraph struct {
	Modules      map[Path]*Module
	Dependencies map[Path][]Path
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		Modules:      make(map[Path]*Module),
		Dependencies: make(map[Path][]Path),
	}
}

func (dg *DependencyGraph) AddModule(path Path) {
	if _, ok := dg.Modules[path]; !ok {
		dg.Modules[path] = &Module{Path: path}
	}
	if dg.Dependencies[path] == nil {
		dg.Dependencies[path] = []Path{}
	}
}

func (dg *DependencyGraph) AddDependency(from, to Path) {
	dg.AddModule(from)
	dg.AddModule(to)
	dg.Dependencies[from] = append(dg.Dependencies[from], to)
}

// DetectCycles walks the graph with the teacher's three-color DFS
// (visited/recursionStack/path) and returns the first cycle found, if any.
func (dg *DependencyGraph) DetectCycles() []Path {
	visited := make(map[Path]bool)
	onStack := make(map[Path]bool)

	var dfs func(Path, []Path) []Path
	dfs = func(m Path, path []Path) []Path {
		visited[m] = true
		onStack[m] = true
		path = append(path, m)

		for _, dep := range dg.Dependencies[m] {
			if !visited[dep] {
				if cycle := dfs(dep, path); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				start := -1
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := make([]Path, len(path)-start)
				copy(cycle, path[start:])
				return append(cycle, dep)
			}
		}

		onStack[m] = false
		return nil
	}

	for m := range dg.Modules {
		if !visited[m] {
			if cycle := dfs(m, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopologicalSort orders modules dependencies-first via Kahn's algorithm,
// the import execution order spec §4.6 requires ("execution happens in
// import order at the point of the import statement").
func (dg *DependencyGraph) TopologicalSort() ([]Path, error) {
	if cycle := dg.DetectCycles(); cycle != nil {
		return nil, errors.LoaderErr("circular import: %s", formatCycle(cycle))
	}

	inDegree := make(map[Path]int)
	for m := range dg.Modules {
		inDegree[m] = 0
	}
	for _, deps := range dg.Dependencies {
		for _, dep := range deps {
			inDegree[dep]++
		}
	}

	var queue []Path
	for m, d := range inDegree {
		if d == 0 {
			queue = append(queue, m)
		}
	}

	var result []Path
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		result = append(result, cur)
		for _, dep := range dg.Dependencies[cur] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if len(result) != len(dg.Modules) {
		return nil, errors.LoaderErr("topological sort failed: dependency graph is inconsistent")
	}

	reversed := make([]Path, len(result))
	for i, m := range result {
		reversed[len(result)-1-i] = m
	}
	return reversed, nil
}

func formatCycle(cycle []Path) string {
	parts := make([]string, len(cycle))
	for i, p := range cycle {
		parts[i] = string(p)
	}
	return strings.Join(parts, " -> ")
}
