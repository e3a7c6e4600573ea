package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/ownc/internal/codegen"
	"github.com/roach88/ownc/internal/emit"
	"github.com/roach88/ownc/internal/infer"
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/types"
)

// CompileOptions configures Compile.
type CompileOptions struct {
	// Backend names the emitter. Empty selects "rust".
	Backend string

	// MaxPasses overrides the pass ceiling. Zero sizes it with PassBudget.
	MaxPasses int

	// Seed starts inference from a previously converged registry.
	Seed *infer.Registry

	// Oracle overrides the duplicable-type table derived from the program.
	Oracle types.Oracle

	Logger   *slog.Logger
	Observer infer.Observer
}

// Compilation is everything Compile produced for one program.
type Compilation struct {
	Program   *ir.Program
	Inference *infer.Result
	Unit      *codegen.Unit
	Backend   string
	Output    string
	Cycles    []CycleWarning
	MaxPasses int
}

// ValidationErrors is the error returned by Compile when the program is
// rejected before inference.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(msgs, "; "))
}

// Compile validates prog, infers access modes, plans consequences and
// renders the result with the selected backend.
//
// Inference diagnostics never fail compilation; they are returned in
// Inference.Diagnostics alongside the emitted text.
func Compile(ctx context.Context, prog *ir.Program, opts CompileOptions) (*Compilation, error) {
	if errs := Validate(prog); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	name := opts.Backend
	if name == "" {
		name = "rust"
	}
	backend, err := emit.Lookup(name)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	oracle := opts.Oracle
	if oracle == nil {
		oracle = types.ForProgram(prog)
	}
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = PassBudget(prog)
	}

	cycles := AnalyzeCycles(prog)
	for _, c := range cycles {
		logger.Debug("call cycle", "path", strings.Join(c.Path, " -> "), "level", c.Level)
	}

	inferOpts := []infer.Option{
		infer.WithMaxPasses(maxPasses),
		infer.WithOracle(oracle),
		infer.WithLogger(logger),
	}
	if opts.Seed != nil {
		inferOpts = append(inferOpts, infer.WithSeed(opts.Seed))
	}
	if opts.Observer != nil {
		inferOpts = append(inferOpts, infer.WithObserver(opts.Observer))
	}

	res, err := infer.Infer(ctx, prog, inferOpts...)
	if err != nil {
		return nil, fmt.Errorf("infer %s: %w", prog.Name, err)
	}

	unit := codegen.Plan(res.Annotated, oracle)
	out, err := backend.Emit(unit)
	if err != nil {
		return nil, err
	}

	logger.Info("compiled",
		"program", prog.Name,
		"backend", name,
		"passes", res.Stats.Passes,
		"converged", res.Stats.Converged,
		"sites", len(unit.Sites))

	return &Compilation{
		Program:   prog,
		Inference: res,
		Unit:      unit,
		Backend:   name,
		Output:    out,
		Cycles:    cycles,
		MaxPasses: maxPasses,
	}, nil
}
