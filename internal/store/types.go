package store

import "github.com/roach88/ownc/internal/ir"

// Compilation is one journaled run of the compiler over a unit.
type Compilation struct {
	ID              string `json:"id"`
	Unit            string `json:"unit"`
	ProgramHash     string `json:"program_hash"`
	RegistryHash    string `json:"registry_hash"`
	Backend         string `json:"backend"`
	Passes          int    `json:"passes"`
	StablePass      int    `json:"stable_pass"`
	Converged       bool   `json:"converged"`
	Seq             int64  `json:"seq"`
	CompilerVersion string `json:"compiler_version"`
	TreeVersion     string `json:"tree_version"`
}

// PassSnapshot is the mode sequence of one declared callable after one
// pass.
type PassSnapshot struct {
	CompilationID string          `json:"compilation_id"`
	Pass          int             `json:"pass"`
	Callable      string          `json:"callable"`
	Modes         []ir.AccessMode `json:"modes"`
	Method        bool            `json:"method,omitempty"`

	// Changed marks callables whose modes differ from the previous pass.
	Changed bool `json:"changed"`
}

// DiagnosticRecord is a journaled inference diagnostic.
type DiagnosticRecord struct {
	CompilationID string `json:"compilation_id"`
	Ordinal       int    `json:"ordinal"`
	ir.Diagnostic
}

// ConsequenceRecord is one planned use site.
type ConsequenceRecord struct {
	CompilationID string         `json:"compilation_id"`
	SiteID        int            `json:"site_id"`
	Callable      string         `json:"callable"`
	Kind          string         `json:"kind"`
	Label         string         `json:"label"`
	Consequence   ir.Consequence `json:"consequence"`
	Mutable       bool           `json:"mutable,omitempty"`
	Temp          string         `json:"temp,omitempty"`
}

// PassSummary groups the snapshots of one pass.
type PassSummary struct {
	Pass      int            `json:"pass"`
	Snapshots []PassSnapshot `json:"snapshots"`
	Changed   []string       `json:"changed"`
}
