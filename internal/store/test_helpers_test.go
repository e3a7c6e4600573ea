package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/ownc/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation creates a compilation row with minimal required fields.
func createTestCompilation(id, unit, programHash string, seq int64, converged bool) Compilation {
	return Compilation{
		ID:              id,
		Unit:            unit,
		ProgramHash:     programHash,
		RegistryHash:    "registry-" + id,
		Backend:         "rust",
		Passes:          2,
		StablePass:      1,
		Converged:       converged,
		Seq:             seq,
		CompilerVersion: ir.CompilerVersion,
		TreeVersion:     ir.TreeVersion,
	}
}
