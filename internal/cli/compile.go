package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/emit"
	"github.com/roach88/ownc/internal/infer"
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Backend   string        // emitter name
	Output    string        // output file path
	Database  string        // journal path; enables seeding
	Unit      string        // compile one program only
	MaxPasses int           // pass ceiling override
	Timeout   time.Duration // abort inference between passes after this long
}

// CompilationResult holds the reports of every compiled program.
type CompilationResult struct {
	Backend  string          `json:"backend"`
	Programs []ProgramReport `json:"programs"`
	Output   string          `json:"output_file,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <programs-dir>",
		Short: "Infer access modes and emit target code",
		Long: `Compile every program in a CUE package: infer parameter access
modes, plan the consequence of every use site and emit target code.

With --db the compilation is journaled and a later run of the same
program starts from the journaled registry.

Examples:
  ownc compile ./programs
  ownc compile ./programs --backend js --output out.js
  ownc compile ./programs --db ./ownc.db --unit vec`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Backend, "backend", "rust", fmt.Sprintf("target backend (%s)", strings.Join(emit.Names(), "|")))
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "compile only the named program")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 0, "pass ceiling (0 derives it from the call graph)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "abort inference after this duration (0 disables)")

	return cmd
}

func runCompile(opts *CompileOptions, programsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if _, err := emit.Lookup(opts.Backend); err != nil {
		return outputCompileError(formatter, ErrCodeUnknownBackend, err.Error(), emit.Names())
	}
	if opts.MaxPasses < 0 {
		return outputCompileError(formatter, ErrCodeGeneric, "--max-passes must be non-negative", nil)
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadPrograms(programsDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, programsDir)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	progs, err := selectPrograms(loadResult, opts.Unit)
	if err != nil {
		code, message := parseCompileError(err)
		return outputCompileError(formatter, code, message, nil)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("opening journal: %v", err), nil)
		}
		defer st.Close()
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
	result := &CompilationResult{
		Backend:  opts.Backend,
		Programs: make([]ProgramReport, 0, len(progs)),
	}
	var outputs []string

	for _, prog := range progs {
		formatter.VerboseLog("Compiling program: %s", prog.Name)

		copts := compiler.CompileOptions{
			Backend:   opts.Backend,
			MaxPasses: opts.MaxPasses,
			Logger:    logger,
		}
		if st != nil {
			seed, err := seedFromJournal(ctx, st, prog)
			if err != nil {
				return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("reading journal: %v", err), nil)
			}
			copts.Seed = seed
		}

		comp, err := compiler.Compile(ctx, prog, copts)
		if err != nil {
			return outputProgramError(formatter, prog.Name, err)
		}

		report := newProgramReport(comp)
		report.Backend = comp.Backend
		report.Seeded = copts.Seed != nil
		report.Consequences = consequenceCounts(comp)

		if st != nil {
			row, err := st.Record(ctx, store.UUIDv7Generator{}, prog.Name, comp)
			if err != nil {
				return outputCompileError(formatter, ErrCodeStore, fmt.Sprintf("journaling %s: %v", prog.Name, err), nil)
			}
			report.CompilationID = row.ID
		}

		if opts.Output == "" {
			report.Output = comp.Output
		}
		outputs = append(outputs, comp.Output)
		result.Programs = append(result.Programs, report)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(strings.Join(outputs, "\n")), 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result)
}

// seedFromJournal returns the registry of the latest converged
// compilation of prog, or nil when the journal has none.
func seedFromJournal(ctx context.Context, st *store.Store, prog *ir.Program) (*infer.Registry, error) {
	hash, err := ir.ProgramHash(prog)
	if err != nil {
		return nil, err
	}
	return st.SeedFor(ctx, hash)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compiled %d program(s) for %s\n\n", okMark(w), len(result.Programs), result.Backend)
	for _, report := range result.Programs {
		writeProgramText(w, report, formatter.Verbose)
		fmt.Fprintln(w)
	}

	if result.Output != "" {
		fmt.Fprintf(w, "Wrote %s output to %s\n", result.Backend, result.Output)
		return nil
	}
	for _, report := range result.Programs {
		fmt.Fprint(w, report.Output)
	}
	return nil
}

// outputProgramError reports a program that loaded but failed to compile.
// Validation failures keep their E1xx codes.
func outputProgramError(formatter *OutputFormatter, name string, err error) error {
	var verrs compiler.ValidationErrors
	if !errors.As(err, &verrs) {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("%s: %v", name, err), nil)
	}
	errs := make([]error, len(verrs))
	for i, v := range verrs {
		errs[i] = &LoadError{Code: v.Code, Message: fmt.Sprintf("%s: %s: %s", name, v.Field, v.Message)}
	}
	return outputCompileErrors(formatter, errs)
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compilation failed\n\n", failMark(w))

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(w, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
