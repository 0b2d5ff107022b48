// Package diagnostics formats a runtime failure into the stack-trace report
// spec §4.7 requires: the error message, then one line per active frame —
// function name and instruction offset, innermost first. Narrowed from the
// teacher's internal/diagnostics package, which formats static-analysis
// diagnostics (source spans, severities, fix suggestions) down to this
// runtime's much smaller surface: one error, one frame list, one report.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/reactive-lang/reactive/internal/errors"
)

// Frame is one active call frame at the point of failure: a function name
// and the bytecode instruction offset it was at.
type Frame struct {
	FuncName string
	PC       int
}

// Report is a fully formatted failure: the error plus the call stack that
// was active when it was raised.
type Report struct {
	Err    error
	Frames []Frame
}

// FormatTrace renders a Report the way spec §4.7 describes: the failing
// message first, then innermost-first frame lines.
func FormatTrace(r Report) string {
	var b strings.Builder

	if re, ok := r.Err.(*errors.RuntimeError); ok {
		fmt.Fprintf(&b, "%s: %s\n", re.Kind, re.Message)
	} else {
		fmt.Fprintf(&b, "%v\n", r.Err)
	}

	for _, f := range r.Frames {
		fmt.Fprintf(&b, "  at %s (instr %d)\n", f.FuncName, f.PC)
	}
	return b.String()
}
