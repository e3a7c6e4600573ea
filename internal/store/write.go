package store

import (
	"context"
	"fmt"
)

// WriteCompilation inserts a compilation record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// Other constraint violations (e.g., NOT NULL) will still return errors.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(id, unit, program_hash, registry_hash, backend, passes, stable_pass, converged, seq, compiler_version, tree_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.Unit,
		c.ProgramHash,
		c.RegistryHash,
		c.Backend,
		c.Passes,
		c.StablePass,
		boolToInt(c.Converged),
		c.Seq,
		c.CompilerVersion,
		c.TreeVersion,
	)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}
	return nil
}

// WritePassSnapshots inserts pass snapshots in one transaction.
//
// Note: The compilation referenced by each snapshot must exist (foreign key constraint).
func (s *Store) WritePassSnapshots(ctx context.Context, snaps []PassSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write pass snapshots: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, snap := range snaps {
		modes, err := marshalModes(snap.Modes)
		if err != nil {
			return fmt.Errorf("write pass snapshots: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pass_snapshots
			(compilation_id, pass, callable, modes, method, changed)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(compilation_id, pass, callable) DO NOTHING
		`,
			snap.CompilationID,
			snap.Pass,
			snap.Callable,
			modes,
			boolToInt(snap.Method),
			boolToInt(snap.Changed),
		)
		if err != nil {
			return fmt.Errorf("write pass snapshots: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write pass snapshots: commit: %w", err)
	}
	return nil
}

// WriteDiagnostics inserts diagnostics in one transaction.
func (s *Store) WriteDiagnostics(ctx context.Context, diags []DiagnosticRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write diagnostics: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, d := range diags {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO diagnostics
			(compilation_id, ordinal, kind, callable, passes, message)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(compilation_id, ordinal) DO NOTHING
		`,
			d.CompilationID,
			d.Ordinal,
			string(d.Kind),
			d.Callable,
			d.Passes,
			d.Message,
		)
		if err != nil {
			return fmt.Errorf("write diagnostics: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write diagnostics: commit: %w", err)
	}
	return nil
}

// WriteConsequences inserts planned use sites in one transaction.
func (s *Store) WriteConsequences(ctx context.Context, recs []ConsequenceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write consequences: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, r := range recs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO consequences
			(compilation_id, site_id, callable, kind, label, consequence, mutable, temp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(compilation_id, site_id) DO NOTHING
		`,
			r.CompilationID,
			r.SiteID,
			r.Callable,
			r.Kind,
			r.Label,
			string(r.Consequence),
			boolToInt(r.Mutable),
			r.Temp,
		)
		if err != nil {
			return fmt.Errorf("write consequences: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write consequences: commit: %w", err)
	}
	return nil
}

// NextSeq returns the next value of the journal's logical clock.
func (s *Store) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}
