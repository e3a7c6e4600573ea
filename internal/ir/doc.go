// Package ir provides the program tree and access-mode types for ownc.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the tree the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The tree is immutable once built. Analyses attach results by node
//     identity (map[*Param]..., map[Node]...), never by rewriting nodes.
//   - Node kinds form a closed set. Stmt and Expr are sealed by unexported
//     marker methods so every type switch over them can be exhaustive.
//   - A nil *Type means "not statically resolved". Consumers must treat it
//     as unknown and perform no type-directed transformation.
//   - All JSON tags use snake_case.
package ir
