package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ownc/internal/ir"
)

// ErrNotFound is returned when a compilation does not exist.
var ErrNotFound = errors.New("compilation not found")

const compilationColumns = `id, unit, program_hash, registry_hash, backend, passes, stable_pass, converged, seq, compiler_version, tree_version`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row rowScanner) (Compilation, error) {
	var c Compilation
	var converged int
	err := row.Scan(
		&c.ID,
		&c.Unit,
		&c.ProgramHash,
		&c.RegistryHash,
		&c.Backend,
		&c.Passes,
		&c.StablePass,
		&converged,
		&c.Seq,
		&c.CompilerVersion,
		&c.TreeVersion,
	)
	if err != nil {
		return Compilation{}, err
	}
	c.Converged = converged != 0
	return c, nil
}

// GetCompilation returns the compilation with the given ID.
func (s *Store) GetCompilation(ctx context.Context, id string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+compilationColumns+` FROM compilations WHERE id = ?`, id)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("get compilation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Compilation{}, fmt.Errorf("get compilation %s: %w", id, err)
	}
	return c, nil
}

// ListCompilations returns the compilations of a unit, oldest first.
// An empty unit lists every compilation.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListCompilations(ctx context.Context, unit string) ([]Compilation, error) {
	query := `SELECT ` + compilationColumns + ` FROM compilations`
	var args []any
	if unit != "" {
		query += ` WHERE unit = ?`
		args = append(args, unit)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

// LatestConverged returns the most recent converged compilation of the
// program with the given hash. ok is false when there is none.
func (s *Store) LatestConverged(ctx context.Context, programHash string) (c Compilation, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		WHERE program_hash = ? AND converged = 1
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, programHash)
	c, err = scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, false, nil
	}
	if err != nil {
		return Compilation{}, false, fmt.Errorf("latest converged: %w", err)
	}
	return c, true, nil
}

// ReadPassSnapshots returns every snapshot of a compilation ordered by
// pass, then callable.
func (s *Store) ReadPassSnapshots(ctx context.Context, compilationID string) ([]PassSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT compilation_id, pass, callable, modes, method, changed
		FROM pass_snapshots
		WHERE compilation_id = ?
		ORDER BY pass ASC, callable COLLATE BINARY ASC
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("query pass snapshots: %w", err)
	}
	defer rows.Close()

	out := []PassSnapshot{}
	for rows.Next() {
		var snap PassSnapshot
		var modes string
		var method, changed int
		if err := rows.Scan(&snap.CompilationID, &snap.Pass, &snap.Callable, &modes, &method, &changed); err != nil {
			return nil, fmt.Errorf("scan pass snapshot: %w", err)
		}
		if snap.Modes, err = unmarshalModes(modes); err != nil {
			return nil, fmt.Errorf("pass %d %s: %w", snap.Pass, snap.Callable, err)
		}
		snap.Method = method != 0
		snap.Changed = changed != 0
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pass snapshots: %w", err)
	}
	return out, nil
}

// ReadDiagnostics returns the diagnostics of a compilation in emission
// order.
func (s *Store) ReadDiagnostics(ctx context.Context, compilationID string) ([]DiagnosticRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT compilation_id, ordinal, kind, callable, passes, message
		FROM diagnostics
		WHERE compilation_id = ?
		ORDER BY ordinal ASC
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	out := []DiagnosticRecord{}
	for rows.Next() {
		var d DiagnosticRecord
		var kind string
		if err := rows.Scan(&d.CompilationID, &d.Ordinal, &kind, &d.Callable, &d.Passes, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Kind = ir.DiagnosticKind(kind)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return out, nil
}

// ReadConsequences returns the planned sites of a compilation in site
// order. A non-empty callable restricts the result to that callable.
func (s *Store) ReadConsequences(ctx context.Context, compilationID, callable string) ([]ConsequenceRecord, error) {
	query := `
		SELECT compilation_id, site_id, callable, kind, label, consequence, mutable, temp
		FROM consequences
		WHERE compilation_id = ?`
	args := []any{compilationID}
	if callable != "" {
		query += ` AND callable = ?`
		args = append(args, callable)
	}
	query += ` ORDER BY site_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query consequences: %w", err)
	}
	defer rows.Close()

	out := []ConsequenceRecord{}
	for rows.Next() {
		var r ConsequenceRecord
		var consequence string
		var mutable int
		if err := rows.Scan(&r.CompilationID, &r.SiteID, &r.Callable, &r.Kind, &r.Label, &consequence, &mutable, &r.Temp); err != nil {
			return nil, fmt.Errorf("scan consequence: %w", err)
		}
		r.Consequence = ir.Consequence(consequence)
		r.Mutable = mutable != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consequences: %w", err)
	}
	return out, nil
}
