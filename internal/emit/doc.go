// Package emit renders planned units as backend source text.
//
// Emitters do no analysis of their own. Every access-syntax decision comes
// from the codegen.Unit: parameter, local, argument and arm sites carry a
// Consequence, and Unit.Parens reports the grouping the planner decided.
// Beyond that, emitters add only the parentheses their own operator
// precedence needs to keep the tree's shape.
//
// Two backends are registered:
//
//	rust  full access syntax: &T, &mut T, &x, &mut x, x.clone(), *x,
//	      hoisted "let _tmpN" temporaries and "let mut"
//	js    no access syntax; duplication is structuredClone(x) and
//	      temporaries are hoisted as "const _tmpN"
//
// Control flow is emitted plainly. Output is deterministic for a given
// unit.
package emit
