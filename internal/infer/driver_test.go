package infer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ownc/internal/ir"
	tu "github.com/roach88/ownc/internal/testutil"
	"github.com/roach88/ownc/internal/types"
)

func modesOf(t *testing.T, res *Result, callable string) []ir.AccessMode {
	t.Helper()
	return res.Registry.Modes(callable)
}

func wrapLeaf() *ir.Program {
	return tu.Program("chain",
		tu.Fn("wrap", tu.Params(tu.Param("id", "")), tu.Ret(tu.Call("leaf", tu.Id("id")))),
		tu.Fn("leaf", tu.Params(tu.Param("id", "")), tu.Ret(tu.Bin("==", tu.Id("id"), tu.Str("x")))),
	)
}

func TestInfer_NilProgram(t *testing.T) {
	_, err := Infer(context.Background(), nil)
	assert.Error(t, err)
}

func TestInfer_LenSqIsSharedRead(t *testing.T) {
	prog := tu.Program("shapes", tu.Fn("lenSq", tu.Params(tu.Param("v", "")),
		tu.Ret(tu.Bin("+",
			tu.Bin("*", tu.Path("v.x"), tu.Path("v.x")),
			tu.Bin("*", tu.Path("v.y"), tu.Path("v.y")))),
	))
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "lenSq"))
	assert.Equal(t, ir.SharedRead, res.Annotated.Mode(prog.Callables[0].Params[0]))
	assert.Equal(t, ir.ReadOnly, res.Annotated.Verdicts[prog.Callables[0].Params[0]].Kind)
}

func TestInfer_SetXIsExclusiveWrite(t *testing.T) {
	prog := tu.Program("shapes", tu.Fn("setX", tu.Params(tu.Param("v", ""), tu.Param("n", "")),
		tu.Set(tu.Path("v.x"), tu.Id("n")),
	))
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.ExclusiveWrite, ir.Owned}, modesOf(t, res, "setX"))
}

func TestInfer_PassThroughChainSharpens(t *testing.T) {
	prog := wrapLeaf()
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)

	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "wrap"))
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "leaf"))

	require.Len(t, res.History, 3)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, res.History[0].Registry.Modes("wrap"), "pass 1 is conservative")
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, res.History[1].Registry.Modes("wrap"))
	assert.Equal(t, []string{"wrap"}, res.History[1].Changed)
	assert.Empty(t, res.History[2].Changed)

	assert.Equal(t, Stats{Passes: 3, StablePass: 2, Converged: true}, res.Stats)
	assert.Empty(t, res.Diagnostics)
}

func TestInfer_DeclarationOrderDoesNotMatter(t *testing.T) {
	prog := wrapLeaf()
	prog.Callables[0], prog.Callables[1] = prog.Callables[1], prog.Callables[0]

	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "wrap"))
	assert.Equal(t, 2, res.Stats.StablePass)
}

func TestInfer_AcyclicWithoutForwardingConvergesInTwoPasses(t *testing.T) {
	prog := tu.Program("flat",
		tu.Fn("a", tu.Params(tu.Param("v", "")), tu.Ret(tu.Path("v.x"))),
		tu.Fn("b", tu.Params(tu.Param("v", "")), tu.Set(tu.Path("v.x"), tu.Int("1"))),
		tu.Fn("c", tu.Params(tu.Param("v", ""))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.True(t, res.Stats.Converged)
	assert.LessOrEqual(t, res.Stats.Passes, 2)
	assert.Equal(t, 1, res.Stats.StablePass)
}

func TestInfer_CyclicConvergesToSharedRead(t *testing.T) {
	prog := tu.Program("cycle",
		tu.Fn("f", tu.Params(tu.Param("a", "")),
			tu.If(tu.Bin(">", tu.Path("a.n"), tu.Int("0")), tu.Do(tu.Call("g", tu.Id("a"))))),
		tu.Fn("g", tu.Params(tu.Param("b", "")),
			tu.If(tu.Bin(">", tu.Path("b.n"), tu.Int("0")), tu.Do(tu.Call("f", tu.Id("b"))))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)

	assert.True(t, res.Stats.Converged)
	assert.LessOrEqual(t, res.Stats.Passes, 4)
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "f"))
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "g"))

	again, err := Infer(context.Background(), prog, WithSeed(res.Registry))
	require.NoError(t, err)
	assert.True(t, again.Registry.Equal(res.Registry), "remains stable")
}

func TestInfer_OneSidedCycleConverges(t *testing.T) {
	prog := tu.Program("cycle",
		tu.Fn("f", tu.Params(tu.Param("a", "")),
			tu.If(tu.Bin(">", tu.Path("a.n"), tu.Int("0")), tu.Do(tu.Call("g", tu.Id("a"))))),
		tu.Fn("g", tu.Params(tu.Param("b", "")), tu.Do(tu.Call("f", tu.Id("b")))),
	)
	for _, ceiling := range []int{0, 15, 16} {
		res, err := Infer(context.Background(), prog, WithMaxPasses(ceiling))
		require.NoError(t, err)

		assert.True(t, res.Stats.Converged, "ceiling %d", ceiling)
		assert.LessOrEqual(t, res.Stats.Passes, 4)
		assert.Empty(t, res.Diagnostics)
		assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "f"))
		assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "g"))
	}

	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	require.Len(t, res.History, 3)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, res.History[0].Registry.Modes("g"), "g waits on f in pass 1")
	assert.True(t, res.History[0].Registry.Waiting("g", 0))
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, res.History[0].Registry.Modes("f"))

	again, err := Infer(context.Background(), prog, WithSeed(res.Registry))
	require.NoError(t, err)
	assert.True(t, again.Registry.Equal(res.Registry))
	assert.Equal(t, 1, again.Stats.Passes)
}

func TestInfer_ModesNeverFlipBack(t *testing.T) {
	prog := tu.Program("cycle",
		tu.Fn("f", tu.Params(tu.Param("a", "")),
			tu.If(tu.Bin(">", tu.Path("a.n"), tu.Int("0")), tu.Do(tu.Call("g", tu.Id("a"))))),
		tu.Fn("g", tu.Params(tu.Param("b", "")), tu.Do(tu.Call("f", tu.Id("b")))),
		tu.Fn("h", tu.Params(tu.Param("c", "")), tu.Do(tu.Call("g", tu.Path("c.inner")))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	require.True(t, res.Stats.Converged)

	// Once a callable leaves its placeholder its modes only settle.
	seen := map[string][][]ir.AccessMode{}
	for _, rec := range res.History {
		for _, name := range []string{"f", "g", "h"} {
			if rec.Registry.Waiting(name, 0) {
				continue
			}
			seen[name] = append(seen[name], rec.Registry.Modes(name))
		}
	}
	for name, history := range seen {
		visited := map[ir.AccessMode]bool{}
		for i, modes := range history {
			if i > 0 && modes[0] != history[i-1][0] {
				assert.False(t, visited[modes[0]], "%s returned to %s", name, modes[0])
			}
			visited[modes[0]] = true
		}
	}
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "h"))
}

func TestInfer_LongPassThroughChain(t *testing.T) {
	prog := tu.Program("chain",
		tu.Fn("a", tu.Params(tu.Param("x", "")), tu.Do(tu.Call("b", tu.Id("x")))),
		tu.Fn("b", tu.Params(tu.Param("x", "")), tu.Do(tu.Call("c", tu.Id("x")))),
		tu.Fn("c", tu.Params(tu.Param("x", "")), tu.Do(tu.Call("d", tu.Id("x")))),
		tu.Fn("d", tu.Params(tu.Param("x", "")), tu.Ret(tu.Bin("==", tu.Id("x"), tu.Str("x")))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)

	assert.Equal(t, Stats{Passes: 5, StablePass: 4, Converged: true}, res.Stats)
	for _, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, name), name)
	}
	assert.Equal(t, []string{"c"}, res.History[1].Changed)
	assert.Equal(t, []string{"b"}, res.History[2].Changed)
	assert.Equal(t, []string{"a"}, res.History[3].Changed)
}

func TestInfer_CallerOfPureCycleTakesOwnership(t *testing.T) {
	prog := tu.Program("cycle",
		tu.Fn("f", tu.Params(tu.Param("a", "")), tu.Do(tu.Call("g", tu.Id("a")))),
		tu.Fn("g", tu.Params(tu.Param("b", "")), tu.Do(tu.Call("f", tu.Id("b")))),
		tu.Fn("h", tu.Params(tu.Param("x", "")),
			tu.If(tu.Bin("==", tu.Id("x"), tu.Str("y"))),
			tu.Do(tu.Call("f", tu.Id("x")))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)

	assert.True(t, res.Stats.Converged)
	assert.Equal(t, 4, res.Stats.Passes)
	assert.Equal(t, []string{"f", "g"}, res.History[1].Changed, "placeholders settle once nothing moves")
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "f"))
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "h"))
	assert.False(t, res.Registry.Waiting("f", 0))
}

func TestInfer_PureCycleFallsBackToOwned(t *testing.T) {
	prog := tu.Program("cycle",
		tu.Fn("f", tu.Params(tu.Param("a", "")), tu.Do(tu.Call("g", tu.Id("a")))),
		tu.Fn("g", tu.Params(tu.Param("b", "")), tu.Do(tu.Call("f", tu.Id("b")))),
	)
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.True(t, res.Stats.Converged)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "f"))
}

func TestInfer_Idempotent(t *testing.T) {
	prog := wrapLeaf()
	first, err := Infer(context.Background(), prog)
	require.NoError(t, err)

	second, err := Infer(context.Background(), prog, WithSeed(first.Registry))
	require.NoError(t, err)
	assert.True(t, second.Registry.Equal(first.Registry))
	assert.Equal(t, Stats{Passes: 1, StablePass: 0, Converged: true}, second.Stats)
}

func TestInfer_SeedIgnoresIncompatibleEntries(t *testing.T) {
	prog := wrapLeaf()
	seed := NewRegistry()
	require.NoError(t, seed.Set(sig("wrap", ir.SharedRead, ir.SharedRead)))
	require.NoError(t, seed.Set(sig("gone", ir.SharedRead)))

	res, err := Infer(context.Background(), prog, WithSeed(seed))
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "wrap"))
	_, ok := res.Registry.Get("gone")
	assert.False(t, ok)
}

func TestInfer_UnusedParameterIsOwnedRegardlessOfOrder(t *testing.T) {
	build := func(reverse bool) *ir.Program {
		cs := []*ir.Callable{
			tu.Fn("user", tu.Params(tu.Param("x", "")), tu.Do(tu.Call("ignore", tu.Id("x")))),
			tu.Fn("ignore", tu.Params(tu.Param("unused", ""))),
		}
		if reverse {
			cs[0], cs[1] = cs[1], cs[0]
		}
		return tu.Program("p", cs...)
	}
	for _, reverse := range []bool{false, true} {
		res, err := Infer(context.Background(), build(reverse))
		require.NoError(t, err)
		assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "ignore"))
		assert.Equal(t, ir.Unused, res.Annotated.Verdicts[res.Annotated.Program.Callable("ignore").Params[0]].Kind)
	}
}

func TestInfer_BuilderReturnIsOwned(t *testing.T) {
	counter := tu.Struct("Counter", false, "n", "i64", "label", "String")
	prog := tu.Program("builder",
		tu.Method("Counter.doubled", tu.Params(tu.Param("self", "Counter")), "Counter",
			tu.Ret(tu.New("Counter", "n", tu.Bin("*", tu.Path("self.n"), tu.Int("2")), "label", tu.Str("d")))),
		tu.Method("Counter.get", tu.Params(tu.Param("self", "Counter")), "i64",
			tu.Ret(tu.Path("self.n"))),
		tu.Method("Counter.reset", tu.Params(tu.Param("self", "Counter")), "Counter",
			tu.Set(tu.Path("self.n"), tu.Int("0")),
			tu.Ret(tu.New("Counter", "n", tu.Int("0"), "label", tu.Str("r")))),
		tu.Method("Counter.same", tu.Params(tu.Param("self", "")), "Self",
			tu.Ret(tu.New("Counter", "n", tu.Path("self.n"), "label", tu.Str("s")))),
	)
	prog.Types = append(prog.Types, counter)

	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "Counter.doubled"))
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "Counter.get"))
	assert.Equal(t, []ir.AccessMode{ir.ExclusiveWrite}, modesOf(t, res, "Counter.reset"), "mutation wins over the builder rule")
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "Counter.same"))
}

func TestInfer_DuplicableParametersPassByValue(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("sum", tu.Params(tu.Param("a", "i64"), tu.Param("b", "Vec2")), tu.Ret(tu.Bin("+", tu.Id("a"), tu.Path("b.x")))),
	)
	prog.Types = append(prog.Types, tu.Struct("Vec2", true, "x", "i64"))

	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.Owned, ir.Owned}, modesOf(t, res, "sum"))
}

func TestInfer_ExplicitTagShortCircuits(t *testing.T) {
	prog := tu.Program("p", tu.Fn("f", tu.Params(tu.Tagged("v", "", ir.SharedRead)),
		tu.Set(tu.Path("v.x"), tu.Int("1")),
	))
	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "f"))
	_, classified := res.Annotated.Verdicts[prog.Callables[0].Params[0]]
	assert.False(t, classified)
}

func TestInfer_ForeignSignaturesAreFixed(t *testing.T) {
	prog := tu.Program("p",
		tu.Fn("add", tu.Params(tu.Param("bag", ""), tu.Param("x", "")), tu.Do(tu.Call("push", tu.Id("bag"), tu.Id("x")))),
	)
	prog.Foreign = []*ir.ForeignDecl{tu.Foreign("push", ir.ExclusiveWrite, ir.Owned)}

	res, err := Infer(context.Background(), prog)
	require.NoError(t, err)
	assert.Equal(t, []ir.AccessMode{ir.ExclusiveWrite, ir.Owned}, modesOf(t, res, "add"))
	for _, rec := range res.History {
		pushSig, ok := rec.Registry.Get("push")
		require.True(t, ok)
		assert.True(t, pushSig.Foreign)
		assert.Equal(t, []ir.AccessMode{ir.ExclusiveWrite, ir.Owned}, pushSig.Params)
	}
}

func TestInfer_PassCeilingReportsNotConverged(t *testing.T) {
	res, err := Infer(context.Background(), wrapLeaf(), WithMaxPasses(1))
	require.NoError(t, err)

	assert.False(t, res.Stats.Converged)
	assert.Equal(t, 1, res.Stats.Passes)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Equal(t, ir.DiagNotConverged, d.Kind)
		assert.Equal(t, 1, d.Passes)
	}
	assert.Equal(t, "leaf", res.Diagnostics[0].Callable)
	assert.Equal(t, "wrap", res.Diagnostics[1].Callable)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "wrap"), "best result is returned")
}

func TestInfer_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prog := wrapLeaf()
	res, err := Infer(ctx, prog)
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, ir.DiagAborted, res.Diagnostics[0].Kind)
	assert.Equal(t, 0, res.Stats.Passes)
	assert.Equal(t, ir.Owned, res.Annotated.Mode(prog.Callables[0].Params[0]))
}

func TestInfer_CancelledBetweenPassesKeepsLastRegistry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []int
	res, err := Infer(ctx, wrapLeaf(), WithObserver(func(pass int, next *Registry, changed []string) {
		seen = append(seen, pass)
		if pass == 1 {
			cancel()
		}
	}))
	require.NoError(t, err)

	assert.Equal(t, []int{1}, seen)
	assert.Equal(t, 1, res.Stats.Passes)
	assert.False(t, res.Stats.Converged)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, ir.DiagAborted, res.Diagnostics[0].Kind)
	assert.Equal(t, []ir.AccessMode{ir.Owned}, modesOf(t, res, "wrap"))
	assert.Equal(t, []ir.AccessMode{ir.SharedRead}, modesOf(t, res, "leaf"))
}

func TestInferCallable_SignatureLengthMatchesParams(t *testing.T) {
	prog := tu.Program("p", tu.Returning(tu.Fn("f", tu.Params(tu.Param("a", ""), tu.Param("b", ""), tu.Param("c", ""))), "&String"))
	s, verdicts := InferCallable(prog, prog.Callables[0], NewRegistry(), types.ForProgram(prog))
	assert.Len(t, s.Params, 3)
	assert.Len(t, verdicts, 3)
	assert.Equal(t, ir.SharedRead, s.ReturnMode)
}
