// Package store provides the SQLite-backed inference journal.
//
// Every compilation appends:
//   - Compilations: one row per run (unit, hashes, pass counts, convergence)
//   - Pass snapshots: the mode sequence of every declared callable after every pass
//   - Diagnostics: NotConverged and Aborted outcomes
//   - Consequences: the planned use-site transformations
//
// # Ordering
//
// All ordering uses the seq column (a logical clock), never timestamps.
// Queries order by seq ASC, id ASC COLLATE BINARY so results are identical
// across runs.
//
// # Seeding
//
// LatestConverged finds the most recent converged compilation of a program
// hash; ReplayRegistry rebuilds its final registry so a re-run can start
// from it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Mode sequences are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
