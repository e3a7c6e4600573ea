package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lenSqProgram() *Program {
	vx := &FieldAccess{Target: &Ident{Name: "v"}, Field: "x"}
	vy := &FieldAccess{Target: &Ident{Name: "v"}, Field: "y"}
	return &Program{
		Name: "shapes",
		Types: []*TypeDecl{{
			Name:       "Vec2",
			Fields:     []Field{{Name: "x", Type: Prim("f64")}, {Name: "y", Type: Prim("f64")}},
			Duplicable: true,
		}},
		Foreign: []*ForeignDecl{{Name: "log", Modes: []AccessMode{SharedRead}}},
		Callables: []*Callable{{
			Name:    "lenSq",
			Params:  []*Param{{Name: "v", Type: Named("Vec2")}},
			Returns: Prim("f64"),
			Body: []Stmt{
				&Return{Value: &Binary{
					Op:    "+",
					Left:  &Binary{Op: "*", Left: vx, Right: vx},
					Right: &Binary{Op: "*", Left: vy, Right: vy},
				}},
			},
		}},
	}
}

func TestPrint_Program(t *testing.T) {
	want := `(program shapes
  (type Vec2 (field x f64) (field y f64) duplicable)
  (foreign log (params shared_read))
  (fn lenSq (param v Vec2) (returns f64)
    (return (+ (* (. v x) (. v x)) (* (. v y) (. v y))))
  )
)
`
	assert.Equal(t, want, Print(lenSqProgram()))
}

func TestPrint_ControlFlow(t *testing.T) {
	p := &Program{
		Name: "flow",
		Callables: []*Callable{{
			Name:   "Counter.step",
			Method: true,
			Params: []*Param{
				{Name: "self", Type: Named("Counter")},
				{Name: "opt", Type: OptionOf(Prim("i32")), Tag: Explicit(SharedRead)},
			},
			Body: []Stmt{
				&If{
					Cond: &Unary{Op: "!", Operand: &Ident{Name: "done"}},
					Then: []Stmt{&Assign{
						Target: &FieldAccess{Target: &Ident{Name: "self"}, Field: "n"},
						Value:  &Literal{Kind: LitInt, Value: "1"},
					}},
				},
				&Match{
					Subject: &Ident{Name: "opt"},
					Arms: []*MatchArm{
						{Pattern: Pattern{Variant: "Some", Bindings: []string{"x"}}, Body: []Stmt{
							&ExprStmt{X: &Call{Callee: "log", Args: []Expr{&Format{Template: "{}", Args: []Expr{&Ident{Name: "x"}}}}}},
						}},
						{Pattern: Pattern{}},
					},
				},
				&Return{},
			},
		}},
	}

	want := `(program flow
  (method Counter.step (param self Counter) (param opt Option<i32> :shared_read)
    (if (un! done)
      (then
        (assign (. self n) 1)
      )
    )
    (match opt
      (arm Some (x)
        (expr (call log (format "{}" x)))
      )
      (arm _)
    )
    (return)
  )
)
`
	assert.Equal(t, want, Print(p))
}

func TestProgramHash_StableAndContentAddressed(t *testing.T) {
	h1, err := ProgramHash(lenSqProgram())
	require.NoError(t, err)
	h2, err := ProgramHash(lenSqProgram())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	changed := lenSqProgram()
	changed.Callables[0].Params[0].Tag = Explicit(Owned)
	assert.NotEqual(t, h1, MustProgramHash(changed))

	_, err = ProgramHash(nil)
	assert.Error(t, err)
}

func TestRegistryHash_ModesOnly(t *testing.T) {
	a := map[string]CallableSignature{
		"f": {Name: "f", Params: []AccessMode{SharedRead}, Returns: Prim("i32")},
	}
	b := map[string]CallableSignature{
		"f": {Name: "f", Params: []AccessMode{SharedRead}, Returns: StringType()},
	}
	c := map[string]CallableSignature{
		"f": {Name: "f", Params: []AccessMode{Owned}},
	}

	ha, err := RegistryHash(a)
	require.NoError(t, err)
	hb, err := RegistryHash(b)
	require.NoError(t, err)
	hc, err := RegistryHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "return types do not take part")
	assert.NotEqual(t, ha, hc)
}

func TestInspect_SourceOrder(t *testing.T) {
	body := []Stmt{
		&Let{Name: "a", Value: &Index{Target: &Ident{Name: "items"}, Index: &Ident{Name: "i"}}},
		&ExprStmt{X: &MethodCall{Receiver: &Ident{Name: "acc"}, Method: "push", Callee: "Vec.push", Args: []Expr{&Ident{Name: "a"}}}},
		&Return{},
	}

	var idents []string
	InspectBody(body, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			idents = append(idents, id.Name)
		}
		return true
	})
	assert.Equal(t, []string{"items", "i", "acc", "a"}, idents)
}

func TestInspect_SkipChildren(t *testing.T) {
	body := []Stmt{&ExprStmt{X: &Call{Callee: "f", Args: []Expr{&Ident{Name: "x"}}}}}
	count := 0
	InspectBody(body, func(n Node) bool {
		count++
		_, isCall := n.(*Call)
		return !isCall
	})
	assert.Equal(t, 2, count, "ExprStmt and Call, not the argument")
}

func TestMentionsAndRoot(t *testing.T) {
	e := &FieldAccess{Target: &Index{Target: &Ident{Name: "rows"}, Index: &Literal{Kind: LitInt, Value: "0"}}, Field: "name"}
	root, ok := Root(e)
	require.True(t, ok)
	assert.Equal(t, "rows", root.Name)
	assert.True(t, Mentions(e, "rows"))
	assert.False(t, Mentions(e, "name"))

	_, ok = Root(&Call{Callee: "f"})
	assert.False(t, ok)
}

func TestCallArgs_ReceiverFirst(t *testing.T) {
	callee, args, ok := CallArgs(&MethodCall{Receiver: &Ident{Name: "v"}, Method: "scale", Callee: "Vec2.scale", Args: []Expr{&Literal{Kind: LitInt, Value: "2"}}})
	require.True(t, ok)
	assert.Equal(t, "Vec2.scale", callee)
	require.Len(t, args, 2)
	assert.True(t, IsIdent(args[0], "v"))
}
