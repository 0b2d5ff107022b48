package main

import (
	"fmt"
	"os"

	"github.com/m1gwings/treedrawer/tree"

	"github.com/reactive-lang/reactive/internal/value"
	"github.com/reactive-lang/reactive/internal/vm"
)

// printDependencyGraph renders every reactive slot touched during the run
// as a tree: the slot itself as the root of one subtree, its last-read
// dependency locations as leaves. Pure observability (SPEC_FULL.md A.5),
// grounded on the pumped-go example's GraphDebugExtension, which renders
// its own dependency graph the same way — one root node per graph entry,
// status-annotated leaves.
func printDependencyGraph(m *vm.Machine) {
	touched := m.TouchedReactive()
	if len(touched) == 0 {
		fmt.Println("(no reactive slots were read during this run)")
		return
	}

	for i, slot := range touched {
		root := tree.NewTree(tree.NodeString(fmt.Sprintf("expr#%d (version %d)", slot.ExprID, slot.Version)))
		if len(slot.Deps) == 0 {
			root.AddChild(tree.NodeString("(no dependencies)"))
		}
		for loc, ver := range slot.Deps {
			root.AddChild(tree.NodeString(locationLabel(loc, ver)))
		}
		fmt.Fprintf(os.Stdout, "root %d:\n%s\n", i, root.String())
	}
}

func locationLabel(loc value.Location, ver uint64) string {
	switch loc.Kind {
	case value.LocScope:
		return fmt.Sprintf("scope[%d].slot[%d] @v%d", loc.ScopeID, loc.SlotIdx, ver)
	case value.LocArray:
		return fmt.Sprintf("array[%d][%d] @v%d", loc.HeapID, loc.Index, ver)
	case value.LocRecord:
		return fmt.Sprintf("record[%d].field[%d] @v%d", loc.HeapID, loc.Index, ver)
	default:
		return fmt.Sprintf("unknown location @v%d", ver)
	}
}
