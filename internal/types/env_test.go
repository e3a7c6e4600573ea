package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ownc/internal/ir"
)

func envProgram() *ir.Program {
	return &ir.Program{
		Name: "env",
		Types: []*ir.TypeDecl{
			{Name: "Item", Fields: []ir.Field{{Name: "name", Type: ir.StringType()}, {Name: "qty", Type: ir.Prim("u32")}}},
			{Name: "Event", Variants: []ir.Variant{{Name: "Added", Payload: []*ir.Type{ir.Named("Item"), ir.Prim("u32")}}, {Name: "Cleared"}}},
		},
		Callables: []*ir.Callable{{
			Name:    "first",
			Params:  []*ir.Param{{Name: "items", Type: ir.MustParseType("&Vec<Item>")}},
			Returns: ir.Named("Item"),
		}},
		Foreign: []*ir.ForeignDecl{{Name: "now", Returns: ir.Prim("u64")}},
	}
}

func TestEnv_TypeOf(t *testing.T) {
	prog := envProgram()
	env := NewEnv(prog, prog.Callables[0])
	items := &ir.Ident{Name: "items"}
	elem := &ir.Index{Target: items, Index: &ir.Literal{Kind: ir.LitInt, Value: "0"}}

	tests := []struct {
		name string
		expr ir.Expr
		want string
	}{
		{"param", items, "&Vec<Item>"},
		{"index through ref", elem, "Item"},
		{"field of element", &ir.FieldAccess{Target: elem, Field: "qty"}, "u32"},
		{"comparison", &ir.Binary{Op: "==", Left: items, Right: items}, "bool"},
		{"arithmetic", &ir.Binary{Op: "+", Left: &ir.FieldAccess{Target: elem, Field: "qty"}, Right: &ir.Literal{Kind: ir.LitInt, Value: "1"}}, "u32"},
		{"call return", &ir.Call{Callee: "first", Args: []ir.Expr{items}}, "Item"},
		{"foreign return", &ir.Call{Callee: "now"}, "u64"},
		{"construct", &ir.Construct{Type: "Item"}, "Item"},
		{"cast", &ir.Cast{Value: items, To: ir.Prim("usize")}, "usize"},
		{"format", &ir.Format{Template: "{}"}, "String"},
		{"string literal", &ir.Literal{Kind: ir.LitString, Value: "x"}, "String"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.TypeOf(tt.expr)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestEnv_Unresolved(t *testing.T) {
	prog := envProgram()
	env := NewEnv(prog, prog.Callables[0])

	assert.Nil(t, env.TypeOf(&ir.Ident{Name: "nope"}))
	assert.Nil(t, env.TypeOf(&ir.FieldAccess{Target: &ir.Ident{Name: "items"}, Field: "missing"}))
	assert.Nil(t, env.TypeOf(&ir.Call{Callee: "undeclared"}))
	assert.Nil(t, env.TypeOf(nil))
}

func TestEnv_ScopesAndShadowing(t *testing.T) {
	prog := envProgram()
	env := NewEnv(prog, prog.Callables[0])

	env.Push()
	env.Bind("items", nil)
	assert.Nil(t, env.Lookup("items"), "shadowed by a binding of unknown type")
	env.Pop()
	assert.Equal(t, "&Vec<Item>", env.Lookup("items").String())
}

func TestEnv_BindingForms(t *testing.T) {
	prog := envProgram()
	env := NewEnv(prog, prog.Callables[0])

	env.BindFor(&ir.For{Var: "it", Iter: &ir.Ident{Name: "items"}})
	assert.Equal(t, "Item", env.Lookup("it").String())

	env.BindLet(&ir.Let{Name: "n", Value: &ir.FieldAccess{Target: &ir.Ident{Name: "it"}, Field: "qty"}})
	assert.Equal(t, "u32", env.Lookup("n").String())

	env.BindLet(&ir.Let{Name: "s", Type: ir.StringType(), Value: &ir.Ident{Name: "unknown"}})
	assert.Equal(t, "String", env.Lookup("s").String())

	env.BindPattern(ir.RefTo(ir.Named("Event")), ir.Pattern{Variant: "Added", Bindings: []string{"item", "count"}})
	assert.Equal(t, "Item", env.Lookup("item").String())
	assert.Equal(t, "u32", env.Lookup("count").String())

	env.BindPattern(ir.OptionOf(ir.Prim("i32")), ir.Pattern{Variant: "Some", Bindings: []string{"v"}})
	assert.Equal(t, "i32", env.Lookup("v").String())

	assert.Empty(t, env.PayloadTypes(ir.Named("Event"), "Cleared"))
	assert.Empty(t, env.PayloadTypes(nil, "Added"))
}
