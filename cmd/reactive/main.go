// Command reactive is the launcher spec §6 describes as an external
// collaborator to the runtime core: it wires the bytecode loader, the
// module loader, and the VM together behind a handful of subcommands.
// Flag parsing follows the teacher's own cmd/ convention — stdlib flag,
// flag.Usage overridden for help text, no third-party CLI framework (see
// cmd/orizon-repl/main.go).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/reactive-lang/reactive/internal/builtins"
	"github.com/reactive-lang/reactive/internal/bytecode"
	"github.com/reactive-lang/reactive/internal/cliutil"
	"github.com/reactive-lang/reactive/internal/diagnostics"
	"github.com/reactive-lang/reactive/internal/env"
	"github.com/reactive-lang/reactive/internal/modules"
	"github.com/reactive-lang/reactive/internal/value"
	"github.com/reactive-lang/reactive/internal/vm"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "compile", "compile-module":
		fmt.Fprintln(os.Stderr, "reactive: compilation is outside this repository's scope (the lexer/parser/compiler are external collaborators)")
		os.Exit(2)
	case "run":
		err = runCmd(args[1:])
	case "debug-graph":
		err = debugGraphCmd(args[1:])
	case "version":
		cliutil.PrintVersion("reactive", false)
		return
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		cliutil.ExitWithError("%v", err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: reactive <command> [args]

commands:
  run <input.rxb>          execute a program image
  debug-graph <input.rxb>  execute a program image and print its reactive dependency graph
  compile <input.rx>       (outside this repository's scope)
  compile-module <input.rx> (outside this repository's scope)
  version                  print version information`)
}

// newMachine builds the shared heap/clock/env/VM/module-loader stack every
// subcommand that executes a program needs.
func newMachine(root string) (*vm.Machine, *modules.Loader) {
	heap := value.NewHeap()
	clock := &value.Clock{}
	genv := env.New()
	m := vm.New(heap, clock, genv, builtins.OSHostFS{}, os.Stdout, os.Stderr)
	loader := modules.NewLoader(root, m)
	m.SetImporter(loader)
	return m, loader
}

func loadProgram(path string) (*bytecode.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return bytecode.Load(f)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: reactive run <input.rxb>")
	}
	path := fs.Arg(0)
	prog, err := loadProgram(path)
	if err != nil {
		return err
	}

	m, _ := newMachine(filepath.Dir(path))
	if runErr := m.Run(prog); runErr != nil {
		report := diagnostics.Report{Err: runErr}
		for _, fr := range m.Trace() {
			report.Frames = append(report.Frames, diagnostics.Frame{FuncName: fr.FuncName, PC: fr.PC})
		}
		fmt.Fprint(os.Stderr, diagnostics.FormatTrace(report))
		os.Exit(1)
	}
	return nil
}

func debugGraphCmd(args []string) error {
	fs := flag.NewFlagSet("debug-graph", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: reactive debug-graph <input.rxb>")
	}
	path := fs.Arg(0)
	prog, err := loadProgram(path)
	if err != nil {
		return err
	}

	m, _ := newMachine(filepath.Dir(path))
	runErr := m.Run(prog)
	printDependencyGraph(m)
	if runErr != nil {
		return runErr
	}
	return nil
}
