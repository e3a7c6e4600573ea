package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/infer"
)

// InferOptions holds flags for the infer command.
type InferOptions struct {
	*RootOptions
	Unit      string
	MaxPasses int
	Timeout   time.Duration
}

// InferenceResult holds the inferred modes of every program.
type InferenceResult struct {
	Programs  []ProgramReport `json:"programs"`
	Converged bool            `json:"converged"`
}

// NewInferCommand creates the infer command.
func NewInferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "infer <programs-dir>",
		Short: "Infer parameter access modes",
		Long: `Run access-mode inference over every program in a CUE package and
report the inferred signatures, pass statistics and diagnostics.
Nothing is emitted or journaled.

With --verbose each pass is logged with the callables whose modes changed.

Examples:
  ownc infer ./programs
  ownc infer ./programs --unit parity --max-passes 2
  ownc infer ./programs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfer(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Unit, "unit", "", "infer only the named program")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 0, "pass ceiling (0 derives it from the call graph)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abort inference after this duration (0 disables)")

	return cmd
}

func runInfer(opts *InferOptions, programsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.MaxPasses < 0 {
		return outputCompileError(formatter, ErrCodeGeneric, "--max-passes must be non-negative", nil)
	}

	loadResult, loadErrors := LoadPrograms(programsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	progs, err := selectPrograms(loadResult, opts.Unit)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	result := &InferenceResult{
		Programs:  make([]ProgramReport, 0, len(progs)),
		Converged: true,
	}

	for _, prog := range progs {
		name := prog.Name
		comp, err := compiler.Compile(ctx, prog, compiler.CompileOptions{
			MaxPasses: opts.MaxPasses,
			Logger:    logger,
			Observer: func(pass int, _ *infer.Registry, changed []string) {
				formatter.VerboseLog("%s: pass %d changed [%s]", name, pass, strings.Join(changed, ", "))
			},
		})
		if err != nil {
			return outputProgramError(formatter, name, err)
		}

		report := newProgramReport(comp)
		if !report.Converged {
			result.Converged = false
		}
		result.Programs = append(result.Programs, report)
	}

	if formatter.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}

	w := formatter.Writer
	for _, report := range result.Programs {
		writeProgramText(w, report, formatter.Verbose)
	}
	fmt.Fprintln(w)
	if result.Converged {
		fmt.Fprintf(w, "%s Inferred %d program(s)\n", okMark(w), len(result.Programs))
	} else {
		fmt.Fprintf(w, "%s Inferred %d program(s); some did not converge\n", warnMark(w), len(result.Programs))
	}
	return nil
}
