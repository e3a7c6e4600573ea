// Package infer recovers the access mode of every parameter and receiver
// in a program by whole-program fixed-point iteration.
//
// One pass classifies how each binding is used in its callable body
// (Classify), resolves the verdicts to modes against a frozen snapshot of
// the previous pass (InferCallable), and writes the results into a fresh
// Registry. Infer repeats passes until two consecutive registries are
// equal or the pass ceiling is reached.
//
// Key constraints:
//   - Passes never write into the snapshot they read.
//   - Foreign signatures are seeded before pass 1 and never overwritten.
//   - Non-convergence and cancellation are reported as ir.Diagnostic
//     values. Infer returns an error only for invalid input.
//   - Infer performs no I/O. Observers see each pass after it completes.
package infer
