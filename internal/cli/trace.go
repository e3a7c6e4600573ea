package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Unit     string // latest compilation of this unit
	ID       string // a specific compilation
	Callable string // optional - filter to one callable
}

// TraceResult holds the pass-by-pass history of one compilation.
type TraceResult struct {
	Compilation  store.Compilation         `json:"compilation"`
	Passes       []store.PassSummary       `json:"passes"`
	Diagnostics  []store.DiagnosticRecord  `json:"diagnostics"`
	Consequences []store.ConsequenceRecord `json:"consequences"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the pass history of a journaled compilation",
		Long: `Show how inference reached its result for a journaled compilation.

The output includes:
- Passes: the modes of every callable after each pass, changes marked *
- Diagnostics: non-convergence and aborted runs
- Consequences: the planned transformation of every use site

Without --id or --unit the journaled compilations are listed.

Examples:
  ownc trace --db ./ownc.db
  ownc trace --db ./ownc.db --unit vec
  ownc trace --db ./ownc.db --id 0190... --callable scale --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "trace the latest compilation of this program")
	cmd.Flags().StringVar(&opts.ID, "id", "", "trace a specific compilation")
	cmd.Flags().StringVar(&opts.Callable, "callable", "", "filter to one callable")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.ID == "" && opts.Unit == "" {
		list, err := st.ListCompilations(ctx, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list compilations", err)
		}
		return outputCompilationList(cmd, opts, list)
	}

	id := opts.ID
	if id == "" {
		list, err := st.ListCompilations(ctx, opts.Unit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list compilations", err)
		}
		if len(list) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("no compilations of %s in journal", opts.Unit))
		}
		id = list[len(list)-1].ID
	}

	result, err := buildTrace(ctx, st, id, opts.Callable)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("compilation %s not found", id), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read compilation", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result, TraceID: result.Compilation.ID})
	}
	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

// buildTrace reads everything journaled for one compilation. A non-empty
// callable keeps only its snapshots and consequences.
func buildTrace(ctx context.Context, st *store.Store, id, callable string) (*TraceResult, error) {
	comp, err := st.GetCompilation(ctx, id)
	if err != nil {
		return nil, err
	}
	passes, err := st.PassHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	diags, err := st.ReadDiagnostics(ctx, id)
	if err != nil {
		return nil, err
	}
	consequences, err := st.ReadConsequences(ctx, id, callable)
	if err != nil {
		return nil, err
	}

	if callable != "" {
		for i := range passes {
			var kept []store.PassSnapshot
			for _, snap := range passes[i].Snapshots {
				if snap.Callable == callable {
					kept = append(kept, snap)
				}
			}
			passes[i].Snapshots = kept
		}
	}

	return &TraceResult{
		Compilation:  comp,
		Passes:       passes,
		Diagnostics:  diags,
		Consequences: consequences,
	}, nil
}

// outputTraceText renders a trace for humans.
func outputTraceText(w io.Writer, r *TraceResult) {
	c := r.Compilation
	state := fmt.Sprintf("converged, stable at pass %d", c.StablePass)
	if !c.Converged {
		state = "not converged"
	}
	fmt.Fprintf(w, "Compilation %s (%s, %s)\n", c.ID, c.Unit, c.Backend)
	fmt.Fprintf(w, "  seq %d, %d pass(es), %s\n\n", c.Seq, c.Passes, state)

	for _, p := range r.Passes {
		changed := "no changes"
		if len(p.Changed) > 0 {
			changed = "changed " + strings.Join(p.Changed, ", ")
		}
		fmt.Fprintf(w, "Pass %d: %s\n", p.Pass, changed)
		for _, snap := range p.Snapshots {
			marker := ""
			if snap.Changed {
				marker = " *"
			}
			fmt.Fprintf(w, "  %s%s\n", snapshotSignature(snap), marker)
		}
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "\nDiagnostics:")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s %s\n", warnMark(w), d.Diagnostic)
		}
	}

	if len(r.Consequences) > 0 {
		fmt.Fprintln(w, "\nConsequences:")
		for _, rec := range r.Consequences {
			if rec.Consequence == ir.NoOp {
				continue
			}
			fmt.Fprintf(w, "  %s: %s -> %s\n", rec.Callable, rec.Label, rec.Consequence)
		}
	}
}

func snapshotSignature(snap store.PassSnapshot) string {
	modes := make([]string, len(snap.Modes))
	for i, m := range snap.Modes {
		modes[i] = string(m)
	}
	return fmt.Sprintf("%s(%s)", snap.Callable, strings.Join(modes, ", "))
}

// outputCompilationList prints one line per journaled compilation.
func outputCompilationList(cmd *cobra.Command, opts *TraceOptions, list []store.Compilation) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: list})
	}

	w := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(w, "No compilations found in journal.")
		return nil
	}
	for _, c := range list {
		mark := okMark(w)
		if !c.Converged {
			mark = warnMark(w)
		}
		fmt.Fprintf(w, "%s %4d  %s  %-12s %-5s %d pass(es)\n", mark, c.Seq, c.ID, c.Unit, c.Backend, c.Passes)
	}
	return nil
}

// openExisting opens a journal that must already exist; store.Open would
// otherwise create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
