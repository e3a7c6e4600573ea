package infer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/types"
)

// DefaultMaxPasses is the pass ceiling when none is configured.
const DefaultMaxPasses = 16

// Observer is called after every completed pass with the registry that
// pass produced. It must not modify the registry.
type Observer func(pass int, next *Registry, changed []string)

// Option configures Infer.
type Option func(*config)

type config struct {
	maxPasses int
	oracle    types.Oracle
	seed      *Registry
	logger    *slog.Logger
	observer  Observer
}

// WithMaxPasses sets the pass ceiling. Values below 1 select
// DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(c *config) {
		c.maxPasses = n
	}
}

// WithOracle replaces the default table oracle.
func WithOracle(o types.Oracle) Option {
	return func(c *config) {
		c.oracle = o
	}
}

// WithSeed starts iteration from a previously converged registry instead
// of the foreign-only seed. Foreign signatures still come from the
// program, and seed entries that do not match a declared callable's
// parameter count are ignored.
func WithSeed(r *Registry) Option {
	return func(c *config) {
		c.seed = r
	}
}

// WithLogger sets the logger for per-pass debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver installs a per-pass hook.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observer = o
	}
}

// Stats summarises one run of the driver.
type Stats struct {
	// Passes is the number of passes executed.
	Passes int `json:"passes"`

	// StablePass is the first pass whose output equals the final
	// registry. Zero when the starting registry was already final; equal
	// to Passes when the run did not converge.
	StablePass int `json:"stable_pass"`

	Converged bool `json:"converged"`
}

// PassRecord is the outcome of one pass.
type PassRecord struct {
	Pass     int
	Registry *Registry
	Changed  []string
}

// Result is the output of Infer.
type Result struct {
	Annotated   *ir.Annotated
	Registry    *Registry
	Diagnostics []ir.Diagnostic
	Stats       Stats
	History     []PassRecord
}

// Infer runs per-callable passes over prog until the registry reaches a
// fixed point or the pass ceiling is hit.
//
// A parameter whose only uses forward it to positions the previous pass
// left unresolved holds Owned as a placeholder and does not count as
// evidence for its callers. Forwards therefore only ever add evidence from
// one pass to the next, so the modes move in one direction and settle.
//
// Non-convergence yields one NotConverged diagnostic per callable whose
// modes changed in the final pass. Cancellation of ctx is observed between
// passes only and yields the last completed registry plus an Aborted
// diagnostic. In both cases err is nil.
func Infer(ctx context.Context, prog *ir.Program, opts ...Option) (*Result, error) {
	if prog == nil {
		return nil, errors.New("infer: nil program")
	}

	cfg := &config{maxPasses: DefaultMaxPasses}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxPasses < 1 {
		cfg.maxPasses = DefaultMaxPasses
	}
	if cfg.oracle == nil {
		cfg.oracle = types.ForProgram(prog)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	registry := seedRegistry(prog, cfg.seed)
	res := &Result{}
	var verdicts map[*ir.Param]ir.Verdict
	var lastChanged []string

	for pass := 1; pass <= cfg.maxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			cfg.logger.Warn("inference aborted", "passes", res.Stats.Passes, "error", err)
			res.Diagnostics = append(res.Diagnostics, ir.Aborted(res.Stats.Passes, err))
			res.Registry = registry
			res.Annotated = annotate(prog, registry, verdicts)
			return res, nil
		}

		next := SeedForeign(prog)
		verdicts = make(map[*ir.Param]ir.Verdict)
		for _, c := range prog.Callables {
			sig, vs, waiting := inferCallable(prog, c, registry, cfg.oracle)
			if err := next.Set(sig); err != nil {
				// Validation rejects callables that collide with foreign
				// declarations; keep the foreign entry.
				cfg.logger.Warn("signature not recorded", "callable", c.Name, "error", err)
				continue
			}
			next.markWaiting(c.Name, waiting)
			for i, p := range c.Params {
				if !p.Tag.IsExplicit() {
					verdicts[p] = vs[i]
				}
			}
		}

		changed := registry.Changed(next)
		if len(changed) == 0 {
			// Parameters forwarded only around a cycle never resolve on
			// their own. Accept their Owned placeholder and run once more so
			// callers classify against the final modes.
			changed = next.settle()
			if len(changed) > 0 {
				cfg.logger.Debug("settled forwarded parameters", "pass", pass, "callables", changed)
			}
		}
		res.Stats.Passes = pass
		res.History = append(res.History, PassRecord{Pass: pass, Registry: next, Changed: changed})
		cfg.logger.Debug("inference pass", "pass", pass, "changed", len(changed))
		if cfg.observer != nil {
			cfg.observer(pass, next, changed)
		}

		registry = next
		if len(changed) == 0 {
			res.Stats.Converged = true
			res.Stats.StablePass = pass - 1
			break
		}
		lastChanged = changed
	}

	if !res.Stats.Converged {
		res.Stats.StablePass = res.Stats.Passes
		for _, name := range lastChanged {
			if prog.Callable(name) == nil {
				continue
			}
			res.Diagnostics = append(res.Diagnostics, ir.NotConverged(name, res.Stats.Passes))
		}
		cfg.logger.Warn("inference did not converge", "passes", res.Stats.Passes, "callables", len(res.Diagnostics))
	}

	res.Registry = registry
	res.Annotated = annotate(prog, registry, verdicts)
	return res, nil
}

// seedRegistry builds the pass-1 snapshot: foreign signatures plus any
// compatible entries of a caller-supplied seed.
func seedRegistry(prog *ir.Program, seed *Registry) *Registry {
	r := SeedForeign(prog)
	if seed == nil {
		return r
	}
	for _, name := range seed.Names() {
		sig, _ := seed.Get(name)
		c := prog.Callable(name)
		if c == nil || len(c.Params) != len(sig.Params) {
			continue
		}
		sig.Foreign = false
		// A seed entry cannot replace a foreign declaration of the same
		// name; validation reports that collision as E103.
		_ = r.Set(sig)
	}
	return r
}

func annotate(prog *ir.Program, r *Registry, verdicts map[*ir.Param]ir.Verdict) *ir.Annotated {
	a := ir.NewAnnotated(prog)
	for _, c := range prog.Callables {
		modes := r.Modes(c.Name)
		for i, p := range c.Params {
			switch {
			case p.Tag.IsExplicit():
				a.Modes[p] = p.Tag.Mode
			case i < len(modes):
				a.Modes[p] = modes[i]
			default:
				a.Modes[p] = ir.Owned
			}
			if v, ok := verdicts[p]; ok {
				a.Verdicts[p] = v
			}
		}
	}
	return a
}
