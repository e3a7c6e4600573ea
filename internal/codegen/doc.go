// Package codegen decides the textual consequences of inferred access
// modes: for every parameter and local declaration, call argument and
// match arm, one ir.Consequence, plus the operand groupings emitters must
// parenthesize.
//
// Decisions are type directed. When the relevant type cannot be resolved
// the decision is NoOp, so the backend reports its own error instead of
// receiving a plausible but wrong transformation.
package codegen
