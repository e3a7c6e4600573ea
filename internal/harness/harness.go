package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/store"
	"github.com/roach88/ownc/internal/testutil"
)

// Harness is the test execution engine.
// It runs one scenario against a private in-memory journal.
type Harness struct {
	store  *store.Store
	ids    *testutil.SequentialIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the CUE program and select the scenario's unit
// 2. Run the pipeline and journal the compilation
// 3. Re-run seeded from the journal and require the same registry
// 4. Evaluate expectations
//
// An error is returned when the program cannot be compiled at all;
// expectation failures are reported through Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequentialIDGenerator(scenario.Name),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	prog, err := selectProgram(scenario)
	if err != nil {
		return nil, err
	}

	opts := compiler.CompileOptions{
		Backend:   scenario.Backend,
		MaxPasses: scenario.MaxPasses,
		Logger:    h.logger,
	}
	comp, err := compiler.Compile(ctx, prog, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", prog.Name, err)
	}

	row, err := h.store.Record(ctx, h.ids, prog.Name, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to journal %s: %w", prog.Name, err)
	}

	result := NewResult()
	fill(result, comp)
	result.RegistryHash = row.RegistryHash

	if err := h.checkSeededRerun(ctx, prog, opts, row, comp, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateExpectations(result, comp, scenario) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"compilation_id", row.ID,
		"passes", result.Passes,
		"pass", result.Pass,
	)
	return result, nil
}

// checkSeededRerun compiles prog again from the journaled registry. A
// converged program must reproduce the same registry and output.
func (h *Harness) checkSeededRerun(ctx context.Context, prog *ir.Program, opts compiler.CompileOptions,
	row store.Compilation, first *compiler.Compilation, result *Result) error {
	seed, err := h.store.SeedFor(ctx, row.ProgramHash)
	if err != nil {
		return fmt.Errorf("failed to load seed for %s: %w", prog.Name, err)
	}
	if seed == nil {
		return nil
	}

	opts.Seed = seed
	again, err := compiler.Compile(ctx, prog, opts)
	if err != nil {
		return fmt.Errorf("failed to recompile %s: %w", prog.Name, err)
	}
	hash, err := again.Inference.Registry.Hash()
	if err != nil {
		return fmt.Errorf("failed to hash registry: %w", err)
	}

	if hash != row.RegistryHash {
		result.AddError((&AssertionError{
			Type:     "idempotence",
			Expected: "seeded re-run reaches registry " + row.RegistryHash,
			Actual:   "registry " + hash,
			Detail:   dump(modesOf(again), result.Modes),
		}).Error())
	}
	if again.Output != first.Output {
		result.AddError((&AssertionError{
			Type:     "idempotence",
			Expected: "seeded re-run emits identical output",
			Actual:   "output differs",
			Detail:   dump(again.Output),
		}).Error())
	}
	return nil
}

// selectProgram compiles the scenario source and picks its unit. A file
// with a single program needs no unit.
func selectProgram(scenario *Scenario) (*ir.Program, error) {
	progs, err := compiler.CompileSource(scenario.Source, scenario.SourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load program: %w", err)
	}
	if scenario.Unit == "" {
		if len(progs) != 1 {
			return nil, fmt.Errorf("%s declares %d programs; set unit", scenario.SourceName, len(progs))
		}
		return progs[0], nil
	}
	for _, p := range progs {
		if p.Name == scenario.Unit {
			return p, nil
		}
	}
	return nil, fmt.Errorf("program %q not found in %s", scenario.Unit, scenario.SourceName)
}

func fill(r *Result, comp *compiler.Compilation) {
	stats := comp.Inference.Stats
	r.Passes = stats.Passes
	r.StablePass = stats.StablePass
	r.Converged = stats.Converged
	r.Output = comp.Output
	r.Modes = modesOf(comp)
	for _, d := range comp.Inference.Diagnostics {
		r.Diagnostics = append(r.Diagnostics, string(d.Kind))
	}
}

func modesOf(comp *compiler.Compilation) map[string][]string {
	out := make(map[string][]string, len(comp.Program.Callables))
	for _, c := range comp.Program.Callables {
		modes := []string{}
		for _, m := range comp.Inference.Registry.Modes(c.Name) {
			modes = append(modes, string(m))
		}
		out[c.Name] = modes
	}
	return out
}
