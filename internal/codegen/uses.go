package codegen

import "github.com/roach88/ownc/internal/ir"

// branch is one step on the way from a callable body to an occurrence:
// the If or Match passed through and which side or arm was taken.
type branch struct {
	node ir.Node
	arm  int
}

// occurrence is one identifier use. decl numbers the declaration the
// identifier resolves to, so uses of a shadowing binding never count as
// uses of the one it shadows.
type occurrence struct {
	seq      int
	decl     int
	branches []branch
}

// exclusive reports whether no single run reaches both a and b: they sit
// on different arms of the same If or Match.
func exclusive(a, b []branch) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i].node != b[i].node {
			return false
		}
		if a[i].arm != b[i].arm {
			return true
		}
	}
	return false
}

// indexer numbers the identifier occurrences of a callable body in
// source order, resolving each against lexical scopes.
type indexer struct {
	seq      int
	decls    int
	scopes   []map[string]int
	branches []branch

	occurrences map[*ir.Ident]occurrence
	uses        map[int][]occurrence
}

func indexUses(c *ir.Callable) *indexer {
	x := &indexer{
		occurrences: make(map[*ir.Ident]occurrence),
		uses:        make(map[int][]occurrence),
	}
	x.push()
	for _, prm := range c.Params {
		x.declare(prm.Name)
	}
	x.body(c.Body)
	return x
}

func (x *indexer) push() { x.scopes = append(x.scopes, make(map[string]int)) }
func (x *indexer) pop()  { x.scopes = x.scopes[:len(x.scopes)-1] }

func (x *indexer) declare(name string) {
	x.decls++
	x.scopes[len(x.scopes)-1][name] = x.decls
}

// resolve returns the declaration name refers to, or 0 for free names.
func (x *indexer) resolve(name string) int {
	for i := len(x.scopes) - 1; i >= 0; i-- {
		if d, ok := x.scopes[i][name]; ok {
			return d
		}
	}
	return 0
}

func (x *indexer) enter(node ir.Node, arm int) {
	x.branches = append(x.branches, branch{node: node, arm: arm})
}

func (x *indexer) leave() { x.branches = x.branches[:len(x.branches)-1] }

func (x *indexer) body(stmts []ir.Stmt) {
	x.push()
	for _, s := range stmts {
		x.stmt(s)
	}
	x.pop()
}

func (x *indexer) stmt(s ir.Stmt) {
	switch st := s.(type) {
	case *ir.Let:
		x.expr(st.Value)
		x.declare(st.Name)
	case *ir.Assign:
		x.expr(st.Target)
		x.expr(st.Value)
	case *ir.ExprStmt:
		x.expr(st.X)
	case *ir.If:
		x.expr(st.Cond)
		x.enter(st, 0)
		x.body(st.Then)
		x.leave()
		x.enter(st, 1)
		x.body(st.Else)
		x.leave()
	case *ir.While:
		x.expr(st.Cond)
		x.body(st.Body)
	case *ir.For:
		x.expr(st.Iter)
		x.push()
		x.declare(st.Var)
		x.body(st.Body)
		x.pop()
	case *ir.Match:
		x.expr(st.Subject)
		for i, arm := range st.Arms {
			x.enter(st, i)
			x.push()
			for _, b := range arm.Pattern.Bindings {
				x.declare(b)
			}
			x.body(arm.Body)
			x.pop()
			x.leave()
		}
	case *ir.Return:
		x.expr(st.Value)
	case *ir.Block:
		x.body(st.Body)
	}
}

func (x *indexer) expr(e ir.Expr) {
	if e == nil {
		return
	}
	ir.Inspect(e, func(n ir.Node) bool {
		id, ok := n.(*ir.Ident)
		if !ok {
			return true
		}
		o := occurrence{
			seq:      x.seq,
			decl:     x.resolve(id.Name),
			branches: append([]branch(nil), x.branches...),
		}
		x.seq++
		x.occurrences[id] = o
		if o.decl != 0 {
			x.uses[o.decl] = append(x.uses[o.decl], o)
		}
		return true
	})
}

// usedLater reports whether the binding id resolves to occurs again after
// id on some run that passes through id.
func (x *indexer) usedLater(id *ir.Ident) bool {
	at, ok := x.occurrences[id]
	if !ok || at.decl == 0 {
		return true
	}
	for _, o := range x.uses[at.decl] {
		if o.seq > at.seq && !exclusive(at.branches, o.branches) {
			return true
		}
	}
	return false
}
