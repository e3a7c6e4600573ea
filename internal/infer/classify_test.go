package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ownc/internal/ir"
	tu "github.com/roach88/ownc/internal/testutil"
	"github.com/roach88/ownc/internal/types"
)

// classify runs the classifier for binding in the named callable against
// the given snapshot (foreign-only when nil).
func classify(t *testing.T, prog *ir.Program, callable, binding string, snapshot *Registry) ir.Verdict {
	t.Helper()
	c := prog.Callable(callable)
	if c == nil {
		t.Fatalf("no callable %q", callable)
	}
	if snapshot == nil {
		snapshot = SeedForeign(prog)
	}
	return Classify(prog, c, binding, snapshot, types.ForProgram(prog))
}

func TestClassify_FieldReadsAreReadOnly(t *testing.T) {
	prog := tu.Program("p", tu.Fn("lenSq", tu.Params(tu.Param("v", "")),
		tu.Ret(tu.Bin("+",
			tu.Bin("*", tu.Path("v.x"), tu.Path("v.x")),
			tu.Bin("*", tu.Path("v.y"), tu.Path("v.y")))),
	))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "lenSq", "v", nil).Kind)
}

func TestClassify_FieldAssignmentIsMutated(t *testing.T) {
	prog := tu.Program("p", tu.Fn("setX", tu.Params(tu.Param("v", ""), tu.Param("n", "")),
		tu.Set(tu.Path("v.x"), tu.Id("n")),
	))
	assert.Equal(t, ir.Mutated, classify(t, prog, "setX", "v", nil).Kind)
	assert.Equal(t, ir.Consumed, classify(t, prog, "setX", "n", nil).Kind, "stored values are consumed")
}

func TestClassify_MutationDominatesEarlierRead(t *testing.T) {
	prog := tu.Program("p", tu.Fn("bump", tu.Params(tu.Param("v", "")),
		tu.Let("old", tu.Path("v.count")),
		tu.If(tu.Bin(">", tu.Id("old"), tu.Int("10")), tu.Ret(nil)),
		tu.Set(tu.Path("v.count"), tu.Bin("+", tu.Id("old"), tu.Int("1"))),
	))
	assert.Equal(t, ir.Mutated, classify(t, prog, "bump", "v", nil).Kind)
}

func TestClassify_MutationInsideBranchAndLoop(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Param("v", ""), tu.Param("xs", "")),
		&ir.For{Var: "x", Iter: tu.Id("xs"), Body: []ir.Stmt{
			tu.If(tu.Bin("==", tu.Id("x"), tu.Int("0")),
				tu.Set(tu.Idx(tu.Path("v.slots"), tu.Id("x")), tu.Int("1"))),
		}},
	))
	assert.Equal(t, ir.Mutated, classify(t, prog, "f", "v", nil).Kind)
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "f", "xs", nil).Kind, "loop iteration is a read")
}

func TestClassify_ConsumingSites(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("ret", tu.Params(tu.Param("v", "")), tu.Ret(tu.Id("v"))),
		tu.Fn("build", tu.Params(tu.Param("v", "")), tu.Ret(tu.New("Box", "inner", tu.Id("v")))),
		tu.Fn("store", tu.Params(tu.Param("v", ""), tu.Param("acc", "")), tu.Do(&ir.Insert{Target: tu.Id("acc"), Value: tu.Id("v")})),
		tu.Fn("rebind", tu.Params(tu.Param("v", "String")), tu.Let("w", tu.Id("v")), tu.Do(tu.Call("print", tu.Fmt("{}", tu.Id("w"))))),
	)
	for _, name := range []string{"ret", "build", "store", "rebind"} {
		assert.Equal(t, ir.Consumed, classify(t, prog, name, "v", nil).Kind, name)
	}
	assert.Equal(t, ir.Mutated, classify(t, prog, "store", "acc", nil).Kind, "insertion mutates the collection")
}

func TestClassify_DuplicableValuesAreReads(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("double", tu.Params(tu.Param("v", "i64")), tu.Ret(tu.Bin("+", tu.Id("v"), tu.Id("v")))),
		tu.Fn("keep", tu.Params(tu.Param("v", "i64")), tu.Let("w", tu.Id("v")), tu.Ret(tu.Id("v"))),
	)
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "double", "v", nil).Kind)
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "keep", "v", nil).Kind)
}

func TestClassify_NonDuplicableArithmeticConsumes(t *testing.T) {
	prog := tu.Program("p", tu.Fn("greet", tu.Params(tu.Param("s", "String")),
		tu.Ret(tu.Bin("+", tu.Id("s"), tu.Str("!"))),
	))
	assert.Equal(t, ir.Consumed, classify(t, prog, "greet", "s", nil).Kind)
}

func TestClassify_UnknownArithmeticIsRead(t *testing.T) {
	prog := tu.Program("p", tu.Fn("inc", tu.Params(tu.Param("n", "")),
		tu.Ret(tu.Bin("+", tu.Id("n"), tu.Int("1"))),
	))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "inc", "n", nil).Kind)
}

func TestClassify_SnapshotPositions(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Param("v", "")),
		tu.Do(tu.Call("g", tu.Id("v"))),
	))
	for mode, want := range map[ir.AccessMode]ir.VerdictKind{
		ir.SharedRead:     ir.ReadOnly,
		ir.ExclusiveWrite: ir.Mutated,
		ir.Owned:          ir.Consumed,
	} {
		snap := NewRegistry()
		_ = snap.Set(sig("g", mode))
		assert.Equal(t, want, classify(t, prog, "f", "v", snap).Kind, string(mode))
	}
}

func TestClassify_ForeignReceiverMutation(t *testing.T) {
	prog := tu.Program("p", tu.Fn("add", tu.Params(tu.Param("self", "Bag"), tu.Param("x", "String")),
		tu.Do(tu.MCall(tu.Path("self.items"), "Vec.push", tu.Id("x"))),
	))
	prog.Foreign = []*ir.ForeignDecl{tu.Foreign("Vec.push", ir.ExclusiveWrite, ir.Owned)}

	assert.Equal(t, ir.Mutated, classify(t, prog, "add", "self", nil).Kind)
	assert.Equal(t, ir.Consumed, classify(t, prog, "add", "x", nil).Kind)
}

func TestClassify_PendingForwards(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("wrap", tu.Params(tu.Param("id", "")), tu.Ret(tu.Call("leaf", tu.Id("id")))),
		tu.Fn("both", tu.Params(tu.Param("id", "")), tu.Do(tu.Call("leaf", tu.Id("id"))), tu.Do(tu.Call("other", tu.Id("id")))),
		tu.Fn("mixed", tu.Params(tu.Param("id", "")), tu.Do(tu.Call("leaf", tu.Id("id"))), tu.If(tu.Bin("==", tu.Id("id"), tu.Str("x")))),
		tu.Fn("leaf", tu.Params(tu.Param("id", "")), tu.Ret(tu.Bin("==", tu.Id("id"), tu.Str("x")))),
		tu.Fn("other", tu.Params(tu.Param("id", ""))),
	)

	v := classify(t, prog, "wrap", "id", nil)
	assert.Equal(t, ir.Verdict{Kind: ir.PassThrough, Callee: "leaf", Position: 0}, v)
	assert.Equal(t, "pass_through(leaf, 0)", v.String())

	assert.Equal(t, ir.Consumed, classify(t, prog, "both", "id", nil).Kind, "several pending forwards are conservative")
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "mixed", "id", nil).Kind, "pending forward next to a read")
	assert.Equal(t, ir.Unused, classify(t, prog, "other", "id", nil).Kind)
}

func TestClassify_UndeclaredCalleeTakesOwnership(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Param("v", "")), tu.Do(tu.Call("mystery", tu.Id("v")))))
	assert.Equal(t, ir.Consumed, classify(t, prog, "f", "v", nil).Kind)
}

func TestClassify_ShadowingStopsTracking(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("let", tu.Params(tu.Param("v", "")),
			tu.Let("v", tu.New("Point")),
			tu.Set(tu.Path("v.x"), tu.Int("1")),
		),
		tu.Fn("arm", tu.Params(tu.Param("v", ""), tu.Param("opt", "Option<Point>")),
			&ir.Match{Subject: tu.Id("opt"), Arms: []*ir.MatchArm{
				{Pattern: ir.Pattern{Variant: "Some", Bindings: []string{"v"}}, Body: []ir.Stmt{tu.Set(tu.Path("v.x"), tu.Int("1"))}},
				{Pattern: ir.Pattern{}, Body: []ir.Stmt{tu.Do(tu.Call("print", tu.Fmt("{}", tu.Path("v.x"))))}},
			}},
		),
		tu.Fn("loop", tu.Params(tu.Param("v", ""), tu.Param("vs", "")),
			&ir.For{Var: "v", Iter: tu.Id("vs"), Body: []ir.Stmt{tu.Set(tu.Path("v.x"), tu.Int("1"))}},
		),
		tu.Fn("scoped", tu.Params(tu.Param("v", "")),
			&ir.Block{Body: []ir.Stmt{tu.Let("v", tu.Int("0"))}},
			tu.Set(tu.Path("v.x"), tu.Int("1")),
		),
	)
	assert.Equal(t, ir.Unused, classify(t, prog, "let", "v", nil).Kind)
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "arm", "v", nil).Kind, "only the wildcard arm sees the parameter")
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "arm", "opt", nil).Kind)
	assert.Equal(t, ir.Unused, classify(t, prog, "loop", "v", nil).Kind)
	assert.Equal(t, ir.Mutated, classify(t, prog, "scoped", "v", nil).Kind, "shadowing ends with its block")
}

func TestClassify_LetValueIsEvaluatedBeforeShadowing(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Param("v", "")),
		tu.Let("v", tu.Path("v.inner")),
		tu.Set(tu.Path("v.x"), tu.Int("1")),
	))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "f", "v", nil).Kind)
}

func TestClassify_IndexedElementMoveIsRead(t *testing.T) {
	prog := tu.Program("p", tu.Fn("first", tu.Params(tu.Param("items", "Vec<String>")),
		tu.Ret(tu.Idx(tu.Id("items"), tu.Int("0"))),
	))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "first", "items", nil).Kind)
}

func TestClassify_BindingInIndexPosition(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Param("i", ""), tu.Param("grid", "")),
		tu.Set(tu.Idx(tu.Path("grid.cells"), tu.Id("i")), tu.Int("0")),
	))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "f", "i", nil).Kind)
	assert.Equal(t, ir.Mutated, classify(t, prog, "f", "grid", nil).Kind)
}

func TestClassify_WaitingPositionIsPending(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("f", tu.Params(tu.Param("v", "")), tu.Do(tu.Call("g", tu.Id("v")))),
		tu.Fn("h", tu.Params(tu.Param("v", "")), tu.Do(tu.Call("g", tu.Path("v.inner")))),
		tu.Fn("g", tu.Params(tu.Param("b", ""))),
	)
	snap := NewRegistry()
	require.NoError(t, snap.Set(sig("g", ir.Owned)))
	snap.markWaiting("g", []bool{true})

	assert.Equal(t, ir.Verdict{Kind: ir.PassThrough, Callee: "g", Position: 0}, classify(t, prog, "f", "v", snap))

	cl := classifyBinding(prog, prog.Callable("h"), "v", snap, types.ForProgram(prog))
	assert.Equal(t, ir.Consumed, cl.verdict().Kind)
	assert.True(t, cl.waiting(), "a path into a waiting position waits too")

	require.NoError(t, snap.Set(sig("g", ir.SharedRead)))
	assert.Equal(t, ir.ReadOnly, classify(t, prog, "h", "v", snap).Kind)
}
