package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/ir"
)

// CallableModes is the inferred signature of one declared callable.
type CallableModes struct {
	Name   string          `json:"name"`
	Method bool            `json:"method,omitempty"`
	Modes  []ir.AccessMode `json:"modes"`
}

// ProgramReport summarises the compilation of one program.
type ProgramReport struct {
	Name          string                  `json:"name"`
	Backend       string                  `json:"backend,omitempty"`
	Callables     []CallableModes         `json:"callables"`
	Passes        int                     `json:"passes"`
	StablePass    int                     `json:"stable_pass"`
	MaxPasses     int                     `json:"max_passes"`
	Converged     bool                    `json:"converged"`
	Seeded        bool                    `json:"seeded,omitempty"`
	Diagnostics   []ir.Diagnostic         `json:"diagnostics"`
	Cycles        []compiler.CycleWarning `json:"cycles"`
	Consequences  map[ir.Consequence]int  `json:"consequences,omitempty"`
	CompilationID string                  `json:"compilation_id,omitempty"`
	Output        string                  `json:"output,omitempty"`
}

func newProgramReport(comp *compiler.Compilation) ProgramReport {
	stats := comp.Inference.Stats
	report := ProgramReport{
		Name:        comp.Program.Name,
		Callables:   make([]CallableModes, 0, len(comp.Program.Callables)),
		Passes:      stats.Passes,
		StablePass:  stats.StablePass,
		MaxPasses:   comp.MaxPasses,
		Converged:   stats.Converged,
		Diagnostics: comp.Inference.Diagnostics,
		Cycles:      comp.Cycles,
	}
	if report.Diagnostics == nil {
		report.Diagnostics = []ir.Diagnostic{}
	}
	for _, c := range comp.Program.Callables {
		modes := comp.Inference.Registry.Modes(c.Name)
		if modes == nil {
			modes = []ir.AccessMode{}
		}
		report.Callables = append(report.Callables, CallableModes{
			Name:   c.Name,
			Method: c.Method,
			Modes:  modes,
		})
	}
	return report
}

// reportedConsequences lists the consequences counted in reports, in
// display order. No-op sites are not counted.
var reportedConsequences = []ir.Consequence{
	ir.InsertShared, ir.InsertExclusive, ir.InsertDuplicate,
	ir.InsertDereference, ir.HoistTemporary,
}

// consequenceCounts tallies planned sites by consequence.
func consequenceCounts(comp *compiler.Compilation) map[ir.Consequence]int {
	counts := map[ir.Consequence]int{}
	for _, c := range reportedConsequences {
		if n := comp.Unit.Count(c); n > 0 {
			counts[c] = n
		}
	}
	return counts
}

// signature renders "scale(exclusive_write, owned)".
func (c CallableModes) signature() string {
	modes := make([]string, len(c.Modes))
	for i, m := range c.Modes {
		modes[i] = string(m)
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(modes, ", "))
}

// writeProgramText prints one report in the text format shared by the
// compile and infer commands.
func writeProgramText(w io.Writer, r ProgramReport, verbose bool) {
	mark := okMark(w)
	state := fmt.Sprintf("converged after %d pass(es), stable at pass %d", r.Passes, r.StablePass)
	if !r.Converged {
		mark = warnMark(w)
		state = fmt.Sprintf("not converged after %d pass(es)", r.Passes)
	}
	fmt.Fprintf(w, "%s %s: %s\n", mark, r.Name, state)

	for _, c := range r.Callables {
		fmt.Fprintf(w, "  %s\n", c.signature())
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  %s %s\n", warnMark(w), d)
	}
	for _, c := range r.Cycles {
		if c.Level == "info" && !verbose {
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s\n", warnMark(w), c.Level, c.Message)
	}
	if verbose && len(r.Consequences) > 0 {
		fmt.Fprintln(w, "  consequences:")
		for _, c := range reportedConsequences {
			if n := r.Consequences[c]; n > 0 {
				fmt.Fprintf(w, "    %s: %d\n", c, n)
			}
		}
	}
	if r.Seeded {
		fmt.Fprintln(w, "  seeded from journal")
	}
	if r.CompilationID != "" {
		fmt.Fprintf(w, "  journaled as %s\n", r.CompilationID)
	}
}
