package store

import (
	"context"
	"fmt"

	"github.com/roach88/ownc/internal/infer"
	"github.com/roach88/ownc/internal/ir"
)

// PassHistory returns the snapshots of a compilation grouped by pass.
// Returns an error wrapping ErrNotFound for an unknown compilation.
func (s *Store) PassHistory(ctx context.Context, compilationID string) ([]PassSummary, error) {
	if _, err := s.GetCompilation(ctx, compilationID); err != nil {
		return nil, fmt.Errorf("pass history: %w", err)
	}
	snaps, err := s.ReadPassSnapshots(ctx, compilationID)
	if err != nil {
		return nil, fmt.Errorf("pass history: %w", err)
	}

	out := []PassSummary{}
	for _, snap := range snaps {
		if len(out) == 0 || out[len(out)-1].Pass != snap.Pass {
			out = append(out, PassSummary{Pass: snap.Pass, Changed: []string{}})
		}
		cur := &out[len(out)-1]
		cur.Snapshots = append(cur.Snapshots, snap)
		if snap.Changed {
			cur.Changed = append(cur.Changed, snap.Callable)
		}
	}
	return out, nil
}

// ReplayRegistry rebuilds the registry a compilation held after the given
// pass. A pass of zero selects the last recorded pass. Foreign signatures
// are not journaled and are absent from the result.
func (s *Store) ReplayRegistry(ctx context.Context, compilationID string, pass int) (*infer.Registry, error) {
	history, err := s.PassHistory(ctx, compilationID)
	if err != nil {
		return nil, fmt.Errorf("replay registry: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("replay registry: compilation %s has no passes", compilationID)
	}

	var summary *PassSummary
	if pass == 0 {
		summary = &history[len(history)-1]
	} else {
		for i := range history {
			if history[i].Pass == pass {
				summary = &history[i]
				break
			}
		}
	}
	if summary == nil {
		return nil, fmt.Errorf("replay registry: compilation %s has no pass %d", compilationID, pass)
	}

	r := infer.NewRegistry()
	for _, snap := range summary.Snapshots {
		if err := r.Set(ir.CallableSignature{
			Name:       snap.Callable,
			Params:     snap.Modes,
			ReturnMode: ir.Owned,
			Method:     snap.Method,
		}); err != nil {
			return nil, fmt.Errorf("replay registry: %w", err)
		}
	}
	return r, nil
}

// SeedFor returns the final registry of the latest converged compilation
// of programHash, or nil when there is none.
func (s *Store) SeedFor(ctx context.Context, programHash string) (*infer.Registry, error) {
	c, ok, err := s.LatestConverged(ctx, programHash)
	if err != nil || !ok {
		return nil, err
	}
	return s.ReplayRegistry(ctx, c.ID, 0)
}
