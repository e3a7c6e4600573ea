package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Unit     string // optional - one program only
}

// ReplayCompilationResult holds the replay result for one journaled
// compilation.
type ReplayCompilationResult struct {
	ID            string   `json:"id"`
	Unit          string   `json:"unit"`
	Passes        int      `json:"passes"`
	Skipped       bool     `json:"skipped,omitempty"` // program changed since it was journaled
	Deterministic bool     `json:"deterministic"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Compilations     []ReplayCompilationResult `json:"compilations"`
	Total            int                       `json:"total"`
	Skipped          int                       `json:"skipped"`
	AllDeterministic bool                      `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <programs-dir>",
		Short: "Re-run journaled compilations and verify determinism",
		Long: `Re-run inference for every journaled compilation whose program is
unchanged and verify that it reaches the same registry, pass by pass.

Each compilation is replayed with its journaled pass count as the ceiling.
Runs that started from a journaled seed are replayed from their own
final registry. Compilations of programs that have changed since they
were journaled are skipped.

Exit codes:
  0 - All compilations are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  ownc replay ./programs --db ./ownc.db
  ownc replay ./programs --db ./ownc.db --unit vec
  ownc replay ./programs --db ./ownc.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "replay one program only")

	return cmd
}

func runReplay(opts *ReplayOptions, programsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loadResult, loadErrors := LoadPrograms(programsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return WrapExitError(ExitCommandError, "failed to load programs", loadErrors[0])
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListCompilations(ctx, opts.Unit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list compilations", err)
	}

	// Index the current programs by hash; journaled rows name programs by
	// content, not by file.
	byHash := map[string]*ir.Program{}
	for _, prog := range loadResult.Programs {
		hash, err := ir.ProgramHash(prog)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to hash %s", prog.Name), err)
		}
		byHash[hash] = prog
	}

	result := ReplayResult{
		Compilations:     make([]ReplayCompilationResult, 0, len(rows)),
		Total:            len(rows),
		AllDeterministic: true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for _, row := range rows {
		prog, ok := byHash[row.ProgramHash]
		if !ok {
			result.Skipped++
			result.Compilations = append(result.Compilations, ReplayCompilationResult{
				ID: row.ID, Unit: row.Unit, Passes: row.Passes, Skipped: true, Deterministic: true,
			})
			continue
		}

		rc, err := replayCompilation(ctx, st, row, prog, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay compilation %s", row.ID), err)
		}
		result.Compilations = append(result.Compilations, rc)
		if !rc.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayCompilation recompiles prog with the journaled pass ceiling and
// compares every pass and the final registry with the journal.
func replayCompilation(ctx context.Context, st *store.Store, row store.Compilation, prog *ir.Program, logger *slog.Logger) (ReplayCompilationResult, error) {
	rc := ReplayCompilationResult{ID: row.ID, Unit: row.Unit, Passes: row.Passes}

	copts := compiler.CompileOptions{
		Backend:   row.Backend,
		MaxPasses: row.Passes,
		Logger:    logger,
	}
	// A stable pass of zero means the run started from a journaled seed.
	// Replay it from its own fixed point.
	if row.Converged && row.StablePass == 0 {
		seed, err := st.ReplayRegistry(ctx, row.ID, 0)
		if err != nil {
			return rc, err
		}
		copts.Seed = seed
	}

	comp, err := compiler.Compile(ctx, prog, copts)
	if err != nil {
		return rc, err
	}
	history, err := st.PassHistory(ctx, row.ID)
	if err != nil {
		return rc, err
	}

	hash, err := comp.Inference.Registry.Hash()
	if err != nil {
		return rc, err
	}
	if hash != row.RegistryHash {
		rc.Mismatches = append(rc.Mismatches, fmt.Sprintf("registry hash %s, journaled %s", hash, row.RegistryHash))
	}
	if got := comp.Inference.Stats.Passes; got != len(history) {
		rc.Mismatches = append(rc.Mismatches, fmt.Sprintf("%d pass(es), journaled %d", got, len(history)))
	}

	for i, rec := range comp.Inference.History {
		if i >= len(history) {
			break
		}
		for _, snap := range history[i].Snapshots {
			got := rec.Registry.Modes(snap.Callable)
			if !slices.Equal(got, snap.Modes) {
				rc.Mismatches = append(rc.Mismatches,
					fmt.Sprintf("pass %d: %s%v, journaled %v", rec.Pass, snap.Callable, got, snap.Modes))
			}
		}
	}

	rc.Deterministic = len(rc.Mismatches) == 0
	return rc, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No compilations found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d compilation(s), %d skipped\n\n", result.Total, result.Skipped)

	for _, c := range result.Compilations {
		switch {
		case c.Skipped:
			if verbose {
				fmt.Fprintf(w, "- %s (%s): program changed, skipped\n", c.Unit, c.ID)
			}
		case c.Deterministic:
			fmt.Fprintf(w, "%s %s (%s): %d pass(es) reproduced\n", okMark(w), c.Unit, c.ID, c.Passes)
		default:
			fmt.Fprintf(w, "%s %s (%s)\n", failMark(w), c.Unit, c.ID)
			for _, m := range c.Mismatches {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
	}
	fmt.Fprintln(w)

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All compilations verified deterministic\n", okMark(w))
		return nil
	}

	fmt.Fprintf(w, "%s Determinism verification failed\n", failMark(w))
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
