package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/ir"
)

// Record journals a finished compilation of unit: the compilation row,
// one snapshot per declared callable per pass, the diagnostics and the
// planned consequences. It returns the stored compilation row.
func (s *Store) Record(ctx context.Context, gen IDGenerator, unit string, c *compiler.Compilation) (Compilation, error) {
	if c == nil || c.Inference == nil || c.Unit == nil {
		return Compilation{}, fmt.Errorf("record %s: incomplete compilation", unit)
	}

	programHash, err := ir.ProgramHash(c.Program)
	if err != nil {
		return Compilation{}, fmt.Errorf("record %s: %w", unit, err)
	}
	registryHash, err := c.Inference.Registry.Hash()
	if err != nil {
		return Compilation{}, fmt.Errorf("record %s: %w", unit, err)
	}
	seq, err := s.NextSeq(ctx)
	if err != nil {
		return Compilation{}, fmt.Errorf("record %s: %w", unit, err)
	}

	stats := c.Inference.Stats
	row := Compilation{
		ID:              gen.Generate(),
		Unit:            unit,
		ProgramHash:     programHash,
		RegistryHash:    registryHash,
		Backend:         c.Backend,
		Passes:          stats.Passes,
		StablePass:      stats.StablePass,
		Converged:       stats.Converged,
		Seq:             seq,
		CompilerVersion: ir.CompilerVersion,
		TreeVersion:     ir.TreeVersion,
	}
	if err := s.WriteCompilation(ctx, row); err != nil {
		return Compilation{}, err
	}

	var snaps []PassSnapshot
	for _, rec := range c.Inference.History {
		for _, callable := range c.Program.Callables {
			snaps = append(snaps, PassSnapshot{
				CompilationID: row.ID,
				Pass:          rec.Pass,
				Callable:      callable.Name,
				Modes:         rec.Registry.Modes(callable.Name),
				Method:        callable.Method,
				Changed:       slices.Contains(rec.Changed, callable.Name),
			})
		}
	}
	if err := s.WritePassSnapshots(ctx, snaps); err != nil {
		return Compilation{}, err
	}

	diags := make([]DiagnosticRecord, len(c.Inference.Diagnostics))
	for i, d := range c.Inference.Diagnostics {
		diags[i] = DiagnosticRecord{CompilationID: row.ID, Ordinal: i, Diagnostic: d}
	}
	if err := s.WriteDiagnostics(ctx, diags); err != nil {
		return Compilation{}, err
	}

	recs := make([]ConsequenceRecord, len(c.Unit.Sites))
	for i, site := range c.Unit.Sites {
		recs[i] = ConsequenceRecord{
			CompilationID: row.ID,
			SiteID:        site.ID,
			Callable:      site.Callable,
			Kind:          string(site.Kind),
			Label:         site.Label,
			Consequence:   site.Consequence,
			Mutable:       site.Mutable,
			Temp:          site.Temp,
		}
	}
	if err := s.WriteConsequences(ctx, recs); err != nil {
		return Compilation{}, err
	}
	return row, nil
}
