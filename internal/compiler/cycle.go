package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ownc/internal/ir"
)

// CycleWarning represents recursion in the call graph.
//
// Cycles are warnings, not errors: recursive callables are legal and the
// fixed-point driver resolves them. They are reported because a cycle whose
// modes only forward to each other settles on the owned fallback.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["even", "odd", "even"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on the call graph of prog.
//
// The algorithm:
//  1. Build callable → callee graph from call and method-call sites
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// Direct self-recursion is reported at "info" level; mutual recursion at
// "warning". An acyclic program returns an empty warning list.
func AnalyzeCycles(prog *ir.Program) []CycleWarning {
	if prog == nil || len(prog.Callables) == 0 {
		return []CycleWarning{}
	}

	graph := buildCallGraph(prog)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return strings.Join(warnings[i].Path, ",") < strings.Join(warnings[j].Path, ",")
	})
	return warnings
}

// callGraph maps callable name → declared callables it calls, in first-call
// order. Foreign and unknown callees are not nodes.
type callGraph map[string][]string

// buildCallGraph constructs the call graph over declared callables.
func buildCallGraph(prog *ir.Program) callGraph {
	graph := make(callGraph, len(prog.Callables))
	for _, c := range prog.Callables {
		// Ensure node exists even without edges
		if graph[c.Name] == nil {
			graph[c.Name] = []string{}
		}
		seen := make(map[string]bool)
		ir.InspectBody(c.Body, func(n ir.Node) bool {
			callee, _, ok := ir.CallArgs(asExpr(n))
			if !ok || seen[callee] || prog.Callable(callee) == nil {
				return true
			}
			seen[callee] = true
			graph[c.Name] = append(graph[c.Name], callee)
			return true
		})
	}
	return graph
}

func asExpr(n ir.Node) ir.Expr {
	e, _ := n.(ir.Expr)
	return e
}

// nodes returns the graph's nodes in sorted order.
func (g callGraph) nodes() []string {
	out := make([]string, 0, len(g))
	for n := range g {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph callGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// SCCs are returned in reverse topological order: every component appears
// after the components it calls into. Nodes are visited in sorted order so
// the result is deterministic.
func tarjanSCC(graph callGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range graph.nodes() {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph callGraph) CycleWarning {
	if len(scc) == 1 {
		name := scc[0]
		return CycleWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("Self-recursive callable: %s → %s", name, name),
			Level:   "info",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Mutually recursive callables: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph callGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}

// PassBudget sizes the driver's pass ceiling for prog.
//
// Modes propagate one call edge per pass along forwarding chains, so the
// budget is the longest chain through the condensed call graph, where a
// component counts as many steps as it has members, plus two: one pass to
// produce the final registry and one to observe that nothing changed.
// The budget is never below minPassBudget.
func PassBudget(prog *ir.Program) int {
	if prog == nil || len(prog.Callables) == 0 {
		return minPassBudget
	}
	graph := buildCallGraph(prog)
	sccs := tarjanSCC(graph)

	component := make(map[string]int, len(graph))
	for i, scc := range sccs {
		for _, n := range scc {
			component[n] = i
		}
	}

	// Reverse topological order means callees are settled first.
	depth := make([]int, len(sccs))
	longest := 0
	for i, scc := range sccs {
		best := 0
		for _, n := range scc {
			for _, w := range graph[n] {
				if j := component[w]; j != i && depth[j] > best {
					best = depth[j]
				}
			}
		}
		depth[i] = best + len(scc)
		longest = max(longest, depth[i])
	}
	return max(longest+2, minPassBudget)
}

const minPassBudget = 4
