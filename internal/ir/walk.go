package ir

// Inspect traverses n depth-first, left to right, in source order. It calls
// f for each node; if f returns false, the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch x := n.(type) {
	case *Let:
		inspectExpr(x.Value, f)
	case *Assign:
		inspectExpr(x.Target, f)
		inspectExpr(x.Value, f)
	case *ExprStmt:
		inspectExpr(x.X, f)
	case *If:
		inspectExpr(x.Cond, f)
		InspectBody(x.Then, f)
		InspectBody(x.Else, f)
	case *While:
		inspectExpr(x.Cond, f)
		InspectBody(x.Body, f)
	case *For:
		inspectExpr(x.Iter, f)
		InspectBody(x.Body, f)
	case *Match:
		inspectExpr(x.Subject, f)
		for _, arm := range x.Arms {
			Inspect(arm, f)
		}
	case *MatchArm:
		InspectBody(x.Body, f)
	case *Return:
		inspectExpr(x.Value, f)
	case *Block:
		InspectBody(x.Body, f)
	case *Ident, *Literal:
	case *FieldAccess:
		inspectExpr(x.Target, f)
	case *Index:
		inspectExpr(x.Target, f)
		inspectExpr(x.Index, f)
	case *Binary:
		inspectExpr(x.Left, f)
		inspectExpr(x.Right, f)
	case *Unary:
		inspectExpr(x.Operand, f)
	case *Call:
		for _, a := range x.Args {
			inspectExpr(a, f)
		}
	case *MethodCall:
		inspectExpr(x.Receiver, f)
		for _, a := range x.Args {
			inspectExpr(a, f)
		}
	case *Construct:
		for _, fi := range x.Fields {
			inspectExpr(fi.Value, f)
		}
	case *Insert:
		inspectExpr(x.Target, f)
		inspectExpr(x.Value, f)
	case *Cast:
		inspectExpr(x.Value, f)
	case *Format:
		for _, a := range x.Args {
			inspectExpr(a, f)
		}
	}
}

// InspectBody applies Inspect to each statement in order.
func InspectBody(body []Stmt, f func(Node) bool) {
	for _, s := range body {
		Inspect(s, f)
	}
}

// inspectExpr guards against typed-nil expressions such as an absent
// return value.
func inspectExpr(e Expr, f func(Node) bool) {
	if e == nil {
		return
	}
	Inspect(e, f)
}

// Mentions reports whether the identifier name occurs anywhere under n.
func Mentions(n Node, name string) bool {
	found := false
	Inspect(n, func(m Node) bool {
		if found {
			return false
		}
		if id, ok := m.(*Ident); ok && id.Name == name {
			found = true
		}
		return !found
	})
	return found
}
