package testutil

import (
	"strings"

	"github.com/roach88/ownc/internal/ir"
)

// Builders for program trees in tests. Type strings use the ir.ParseType
// grammar; an empty string leaves the type unresolved.

func typeOf(s string) *ir.Type {
	if s == "" {
		return nil
	}
	return ir.MustParseType(s)
}

// Param declares an inferred parameter.
func Param(name, typ string) *ir.Param {
	return &ir.Param{Name: name, Type: typeOf(typ)}
}

// Tagged declares a parameter whose mode is pinned by the source.
func Tagged(name, typ string, m ir.AccessMode) *ir.Param {
	return &ir.Param{Name: name, Type: typeOf(typ), Tag: ir.Explicit(m)}
}

// Params is shorthand for a parameter list.
func Params(ps ...*ir.Param) []*ir.Param {
	return ps
}

// Fn declares a free callable.
func Fn(name string, params []*ir.Param, body ...ir.Stmt) *ir.Callable {
	return &ir.Callable{Name: name, Params: params, Body: body}
}

// Method declares a receiver method; params[0] is the receiver.
func Method(name string, params []*ir.Param, returns string, body ...ir.Stmt) *ir.Callable {
	return &ir.Callable{Name: name, Method: true, Params: params, Returns: typeOf(returns), Body: body}
}

// Returning sets c's return type and returns c.
func Returning(c *ir.Callable, typ string) *ir.Callable {
	c.Returns = typeOf(typ)
	return c
}

// Program assembles callables into a program.
func Program(name string, callables ...*ir.Callable) *ir.Program {
	return &ir.Program{Name: name, Callables: callables}
}

// Struct declares an aggregate type from alternating field name/type
// strings.
func Struct(name string, duplicable bool, fields ...string) *ir.TypeDecl {
	d := &ir.TypeDecl{Name: name, Duplicable: duplicable}
	for i := 0; i+1 < len(fields); i += 2 {
		d.Fields = append(d.Fields, ir.Field{Name: fields[i], Type: typeOf(fields[i+1])})
	}
	return d
}

// Foreign declares a boundary signature.
func Foreign(name string, modes ...ir.AccessMode) *ir.ForeignDecl {
	return &ir.ForeignDecl{Name: name, Modes: modes}
}

// Id references a binding.
func Id(name string) *ir.Ident {
	return &ir.Ident{Name: name}
}

// Path builds a field access chain from "v.x.y".
func Path(s string) ir.Expr {
	parts := strings.Split(s, ".")
	var e ir.Expr = Id(parts[0])
	for _, f := range parts[1:] {
		e = &ir.FieldAccess{Target: e, Field: f}
	}
	return e
}

// Int is an integer literal.
func Int(v string) *ir.Literal {
	return &ir.Literal{Kind: ir.LitInt, Value: v}
}

// Str is a string literal.
func Str(v string) *ir.Literal {
	return &ir.Literal{Kind: ir.LitString, Value: v}
}

// Bin applies an infix operator.
func Bin(op string, l, r ir.Expr) *ir.Binary {
	return &ir.Binary{Op: op, Left: l, Right: r}
}

// Idx indexes target.
func Idx(target, index ir.Expr) *ir.Index {
	return &ir.Index{Target: target, Index: index}
}

// Call invokes a free callable.
func Call(callee string, args ...ir.Expr) *ir.Call {
	return &ir.Call{Callee: callee, Args: args}
}

// MCall invokes the qualified method callee ("Type.method") on recv.
func MCall(recv ir.Expr, callee string, args ...ir.Expr) *ir.MethodCall {
	method := callee
	if i := strings.LastIndexByte(callee, '.'); i >= 0 {
		method = callee[i+1:]
	}
	return &ir.MethodCall{Receiver: recv, Method: method, Callee: callee, Args: args}
}

// New constructs an aggregate from alternating field names and values.
func New(typ string, fields ...any) *ir.Construct {
	c := &ir.Construct{Type: typ}
	for i := 0; i+1 < len(fields); i += 2 {
		c.Fields = append(c.Fields, ir.FieldInit{Name: fields[i].(string), Value: fields[i+1].(ir.Expr)})
	}
	return c
}

// Fmt builds a format expression.
func Fmt(template string, args ...ir.Expr) *ir.Format {
	return &ir.Format{Template: template, Args: args}
}

// Let declares a local.
func Let(name string, value ir.Expr) *ir.Let {
	return &ir.Let{Name: name, Value: value}
}

// Set assigns value to target.
func Set(target, value ir.Expr) *ir.Assign {
	return &ir.Assign{Target: target, Value: value}
}

// Do evaluates an expression statement.
func Do(e ir.Expr) *ir.ExprStmt {
	return &ir.ExprStmt{X: e}
}

// Ret returns e; nil returns nothing.
func Ret(e ir.Expr) *ir.Return {
	return &ir.Return{Value: e}
}

// If builds a conditional without an else branch.
func If(cond ir.Expr, then ...ir.Stmt) *ir.If {
	return &ir.If{Cond: cond, Then: then}
}
