package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ownc/internal/ir"
	tu "github.com/roach88/ownc/internal/testutil"
)

// caller returns a callable whose body calls each callee with one argument.
func caller(name string, callees ...string) *ir.Callable {
	var body []ir.Stmt
	for _, c := range callees {
		body = append(body, tu.Do(tu.Call(c, tu.Id("x"))))
	}
	return tu.Fn(name, tu.Params(tu.Param("x", "")), body...)
}

// TestAnalyzeCycles_Empty tests that empty input produces no warnings.
func TestAnalyzeCycles_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCycles(nil))
	assert.Empty(t, AnalyzeCycles(tu.Program("empty")))
}

// TestAnalyzeCycles_DAG tests that an acyclic call graph produces no warnings.
func TestAnalyzeCycles_DAG(t *testing.T) {
	prog := tu.Program("dag",
		caller("main", "a", "b"),
		caller("a", "leaf"),
		caller("b", "leaf"),
		caller("leaf"),
	)
	assert.Empty(t, AnalyzeCycles(prog), "DAG should produce no cycle warnings")
}

// TestAnalyzeCycles_SelfLoop tests detection of direct recursion.
func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	prog := tu.Program("rec", caller("countdown", "countdown"))

	warnings := AnalyzeCycles(prog)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"countdown", "countdown"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
	assert.Contains(t, warnings[0].Message, "Self-recursive")
}

// TestAnalyzeCycles_TwoNodeCycle tests mutual recursion.
func TestAnalyzeCycles_TwoNodeCycle(t *testing.T) {
	prog := tu.Program("parity",
		caller("even", "odd"),
		caller("odd", "even"),
	)

	warnings := AnalyzeCycles(prog)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"even", "odd", "even"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Equal(t, "Mutually recursive callables: even → odd → even", warnings[0].Message)
}

// TestAnalyzeCycles_ThreeNodeCycle tests a longer ring.
func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	prog := tu.Program("ring",
		caller("a", "b"),
		caller("b", "c"),
		caller("c", "a"),
	)

	warnings := AnalyzeCycles(prog)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
}

// TestAnalyzeCycles_MultipleIndependentCycles tests that each SCC is reported.
func TestAnalyzeCycles_MultipleIndependentCycles(t *testing.T) {
	prog := tu.Program("two",
		caller("main", "a", "x"),
		caller("a", "b"),
		caller("b", "a"),
		caller("x", "x"),
	)

	warnings := AnalyzeCycles(prog)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"x", "x"}, warnings[1].Path)
}

// TestAnalyzeCycles_IgnoresForeignCallees tests that only declared callables are nodes.
func TestAnalyzeCycles_IgnoresForeignCallees(t *testing.T) {
	prog := tu.Program("io", caller("main", "log", "print"))
	prog.Foreign = []*ir.ForeignDecl{tu.Foreign("log", ir.SharedRead)}

	assert.Empty(t, AnalyzeCycles(prog))
	graph := buildCallGraph(prog)
	assert.Equal(t, callGraph{"main": {}}, graph)
}

// TestAnalyzeCycles_MethodCalls tests that method calls are edges.
func TestAnalyzeCycles_MethodCalls(t *testing.T) {
	prog := tu.Program("methods",
		tu.Method("Node.walk", tu.Params(tu.Param("self", "")), "",
			tu.Do(tu.MCall(tu.Path("self.next"), "Node.walk"))),
	)

	warnings := AnalyzeCycles(prog)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Node.walk", "Node.walk"}, warnings[0].Path)
}

func TestBuildCallGraph_Basic(t *testing.T) {
	prog := tu.Program("g",
		caller("main", "a", "a", "b"),
		caller("a"),
		caller("b", "a"),
	)
	graph := buildCallGraph(prog)

	assert.Equal(t, []string{"a", "b"}, graph["main"], "repeated calls are one edge")
	assert.Empty(t, graph["a"])
	assert.Equal(t, []string{"a"}, graph["b"])
}

func TestHasSelfLoop(t *testing.T) {
	graph := callGraph{"a": {"a"}, "b": {"a"}}
	assert.True(t, hasSelfLoop("a", graph))
	assert.False(t, hasSelfLoop("b", graph))
}

func TestTarjanSCC_SingleNode(t *testing.T) {
	sccs := tarjanSCC(callGraph{"a": {}})
	assert.Equal(t, [][]string{{"a"}}, sccs)
}

func TestTarjanSCC_TwoNodeCycle(t *testing.T) {
	sccs := tarjanSCC(callGraph{"a": {"b"}, "b": {"a"}})
	assert.Equal(t, [][]string{{"a", "b"}}, sccs)
}

func TestTarjanSCC_ReverseTopologicalOrder(t *testing.T) {
	sccs := tarjanSCC(callGraph{"a": {"b"}, "b": {"c"}, "c": {}})
	assert.Equal(t, [][]string{{"c"}, {"b"}, {"a"}}, sccs)
}

func TestReconstructCyclePath_Empty(t *testing.T) {
	assert.Equal(t, []string{}, reconstructCyclePath(nil, callGraph{}))
}

func TestPassBudget(t *testing.T) {
	tests := []struct {
		name string
		prog *ir.Program
		want int
	}{
		{"nil", nil, minPassBudget},
		{"single", tu.Program("one", caller("a")), minPassBudget},
		{"chain", tu.Program("chain",
			caller("a", "b"),
			caller("b", "c"),
			caller("c", "d"),
			caller("d", "e"),
			caller("e"),
		), 7},
		{"cycle in chain", tu.Program("mixed",
			caller("main", "even"),
			caller("even", "odd"),
			caller("odd", "even", "leaf"),
			caller("leaf"),
		), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PassBudget(tt.prog))
		})
	}
}
