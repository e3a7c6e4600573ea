package codegen

import (
	"fmt"

	"github.com/roach88/ownc/internal/infer"
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/types"
)

// Plan decides the consequence of every site in an annotated program. A
// nil oracle selects the program's table oracle.
func Plan(a *ir.Annotated, oracle types.Oracle) *Unit {
	if oracle == nil {
		oracle = types.ForProgram(a.Program)
	}
	u := newUnit(a)
	reg := infer.FromAnnotated(a)
	for _, c := range a.Program.Callables {
		p := &planner{
			unit:     u,
			prog:     a.Program,
			reg:      reg,
			oracle:   oracle,
			callable: c,
			env:      types.NewEnv(a.Program, c),
			labels:   make(map[string]int),
		}
		p.plan()
	}
	return u
}

// binding is what the planner knows about a name in scope.
type binding struct {
	// access is how the name holds its value: Owned for a value,
	// SharedRead or ExclusiveWrite for an indirection.
	access ir.AccessMode

	typ       *ir.Type
	loopDepth int
	site      *Site
}

type planner struct {
	unit     *Unit
	prog     *ir.Program
	reg      *infer.Registry
	oracle   types.Oracle
	callable *ir.Callable
	env      *types.Env

	scopes    []map[string]*binding
	loopDepth int

	uses *indexer

	// leaving is set while planning a returned value; nothing after a
	// return runs on the same path.
	leaving bool

	labels map[string]int
	temps  int
}

func (p *planner) plan() {
	p.index()
	p.push()
	for _, prm := range p.callable.Params {
		mode := p.unit.Annotated.Mode(prm)
		site := p.site(SiteParam, "param "+prm.Name, paramConsequence(mode))
		site.Param = prm
		if mode == ir.Owned && infer.Classify(p.prog, p.callable, prm.Name, p.reg, p.oracle).Kind == ir.Mutated {
			site.Mutable = true
		}
		p.unit.params[prm] = site
		p.bind(prm.Name, &binding{access: mode, typ: prm.Type.Deref(), site: site})
	}
	p.body(p.callable.Body)
	p.pop()
}

func paramConsequence(m ir.AccessMode) ir.Consequence {
	switch m {
	case ir.SharedRead:
		return ir.InsertShared
	case ir.ExclusiveWrite:
		return ir.InsertExclusive
	}
	return ir.NoOp
}

func (p *planner) index() {
	p.uses = indexUses(p.callable)
}

// usedAfter reports whether the value named by id is needed again after
// this occurrence: a later occurrence of the same binding that is not on
// another arm of a branch, or a loop entered since the binding was
// declared.
func (p *planner) usedAfter(id *ir.Ident, b *binding) bool {
	if p.leaving {
		return false
	}
	if p.loopDepth > b.loopDepth {
		return true
	}
	return p.uses.usedLater(id)
}

func (p *planner) push() {
	p.scopes = append(p.scopes, make(map[string]*binding))
}

func (p *planner) pop() {
	p.scopes = p.scopes[:len(p.scopes)-1]
}

func (p *planner) bind(name string, b *binding) {
	p.scopes[len(p.scopes)-1][name] = b
}

func (p *planner) lookup(name string) *binding {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if b, ok := p.scopes[i][name]; ok {
			return b
		}
	}
	return nil
}

func (p *planner) site(kind SiteKind, label string, c ir.Consequence) *Site {
	p.labels[label]++
	if n := p.labels[label]; n > 1 {
		label = fmt.Sprintf("%s#%d", label, n)
	}
	s := &Site{
		ID:          len(p.unit.Sites) + 1,
		Callable:    p.callable.Name,
		Kind:        kind,
		Label:       label,
		Consequence: c,
	}
	p.unit.Sites = append(p.unit.Sites, s)
	return s
}

// classifyLocal classifies how name is used in stmts, with the final
// registry as snapshot.
func (p *planner) classifyLocal(name string, typ *ir.Type, stmts []ir.Stmt) ir.VerdictKind {
	synth := &ir.Callable{
		Name:   p.callable.Name,
		Params: []*ir.Param{{Name: name, Type: typ}},
		Body:   stmts,
	}
	return infer.Classify(p.prog, synth, name, p.reg, p.oracle).Kind
}

func (p *planner) body(stmts []ir.Stmt) {
	p.push()
	p.env.Push()
	for i, s := range stmts {
		p.stmt(s, stmts[i+1:])
	}
	p.env.Pop()
	p.pop()
}

func (p *planner) stmt(s ir.Stmt, rest []ir.Stmt) {
	switch x := s.(type) {
	case *ir.Let:
		p.expr(x.Value)
		p.let(x, rest)
	case *ir.Assign:
		p.expr(x.Target)
		p.move(x.Value, "assign", false)
	case *ir.ExprStmt:
		p.expr(x.X)
	case *ir.If:
		p.expr(x.Cond)
		p.body(x.Then)
		p.body(x.Else)
	case *ir.While:
		p.expr(x.Cond)
		p.loopDepth++
		p.body(x.Body)
		p.loopDepth--
	case *ir.For:
		p.expr(x.Iter)
		p.loopDepth++
		p.push()
		p.env.Push()
		p.env.BindFor(x)
		p.bind(x.Var, &binding{access: ir.SharedRead, typ: p.env.Lookup(x.Var), loopDepth: p.loopDepth})
		p.body(x.Body)
		p.env.Pop()
		p.pop()
		p.loopDepth--
	case *ir.Match:
		p.expr(x.Subject)
		subject := p.env.TypeOf(x.Subject)
		access := p.indirection(x.Subject)
		for _, arm := range x.Arms {
			p.arm(arm, subject, access)
		}
	case *ir.Return:
		p.move(x.Value, "return", true)
	case *ir.Block:
		p.body(x.Body)
	}
}

// indirection returns the access through which e is reached: the access
// of its root binding, or Owned for anything that is not a binding path.
func (p *planner) indirection(e ir.Expr) ir.AccessMode {
	root, ok := ir.Root(e)
	if !ok {
		return ir.Owned
	}
	if b := p.lookup(root.Name); b != nil {
		return b.access
	}
	return ir.Owned
}

func (p *planner) let(x *ir.Let, rest []ir.Stmt) {
	typ := x.Type.Deref()
	if typ == nil {
		typ = p.env.TypeOf(x.Value).Deref()
	}
	verdict := p.classifyLocal(x.Name, typ, rest)
	c, access := p.letValue(x.Value, verdict)

	mutable := verdict == ir.Mutated
	if mutable && c == ir.NoOp {
		c = ir.InsertExclusive
	}
	site := p.site(SiteLet, "let "+x.Name, c)
	site.Node = x
	site.Mutable = mutable
	p.unit.lets[x] = site

	p.env.BindLet(x)
	p.bind(x.Name, &binding{access: access, typ: typ, loopDepth: p.loopDepth, site: site})
}

// letValue decides the consequence for the initializer of a local and the
// access the local ends up with.
func (p *planner) letValue(value ir.Expr, verdict ir.VerdictKind) (ir.Consequence, ir.AccessMode) {
	root, rooted := ir.Root(value)
	if !rooted {
		return ir.NoOp, ir.Owned
	}
	takes := verdict == ir.Consumed || verdict == ir.Mutated
	t := p.env.TypeOf(value).Deref()
	b := p.lookup(root.Name)

	switch {
	case hasIndex(value):
		switch {
		case types.KnownDuplicable(p.oracle, t):
			return ir.NoOp, ir.Owned
		case types.KnownNonDuplicable(p.oracle, t):
			if takes {
				return ir.InsertDuplicate, ir.Owned
			}
			return ir.InsertShared, ir.SharedRead
		}
		return ir.NoOp, ir.Owned

	case b == nil:
		return ir.NoOp, ir.Owned

	case value == ir.Expr(root):
		if b.access != ir.Owned {
			return ir.NoOp, b.access
		}
		if types.KnownNonDuplicable(p.oracle, b.typ) && p.usedAfter(root, b) {
			return ir.InsertDuplicate, ir.Owned
		}
		return ir.NoOp, ir.Owned
	}

	// Field path below a binding.
	switch {
	case types.KnownDuplicable(p.oracle, t):
		return ir.NoOp, ir.Owned
	case types.KnownNonDuplicable(p.oracle, t):
		if b.access != ir.Owned {
			if takes {
				return ir.InsertDuplicate, ir.Owned
			}
			return ir.InsertShared, ir.SharedRead
		}
		if p.usedAfter(root, b) {
			return ir.InsertDuplicate, ir.Owned
		}
	}
	return ir.NoOp, ir.Owned
}

func (p *planner) arm(arm *ir.MatchArm, subject *ir.Type, access ir.AccessMode) {
	variant := arm.Pattern.Variant
	if variant == "" {
		variant = "_"
	}
	payload := p.env.PayloadTypes(subject, arm.Pattern.Variant)

	p.push()
	p.env.Push()
	cons := make([]ir.Consequence, len(arm.Pattern.Bindings))
	for i, name := range arm.Pattern.Bindings {
		var t *ir.Type
		if i < len(payload) {
			t = payload[i]
		}
		c := ir.NoOp
		bound := ir.Owned
		if access != ir.Owned {
			bound = access
			verdict := p.classifyLocal(name, t, arm.Body)
			switch {
			case types.KnownDuplicable(p.oracle, t) && verdict != ir.Unused && verdict != ir.Mutated:
				c, bound = ir.InsertDereference, ir.Owned
			case types.KnownNonDuplicable(p.oracle, t) && (verdict == ir.Consumed || verdict == ir.Mutated):
				c, bound = ir.InsertDuplicate, ir.Owned
			}
		}
		cons[i] = c
		p.env.Bind(name, t)
		p.bind(name, &binding{access: bound, typ: t.Deref(), loopDepth: p.loopDepth})
	}

	site := p.site(SiteArm, "match arm "+variant, strongest(cons))
	site.Node = arm
	site.Bindings = cons
	p.unit.arms[arm] = site

	p.body(arm.Body)
	p.env.Pop()
	p.pop()
}

// strongest folds per-binding arm decisions into one arm consequence.
func strongest(cs []ir.Consequence) ir.Consequence {
	out := ir.NoOp
	for _, c := range cs {
		switch {
		case c == ir.InsertDuplicate:
			return c
		case c == ir.InsertDereference:
			out = c
		}
	}
	return out
}

func (p *planner) expr(e ir.Expr) {
	switch x := e.(type) {
	case nil, *ir.Ident, *ir.Literal:
	case *ir.FieldAccess:
		p.expr(x.Target)
	case *ir.Index:
		p.expr(x.Target)
		p.expr(x.Index)
	case *ir.Binary:
		p.group(x)
		p.expr(x.Left)
		p.expr(x.Right)
	case *ir.Unary:
		p.group(x)
		p.expr(x.Operand)
	case *ir.Call:
		p.call(x, x.Callee, x.Args)
	case *ir.MethodCall:
		_, args, _ := ir.CallArgs(x)
		p.call(x, x.Callee, args)
	case *ir.Construct:
		for _, f := range x.Fields {
			p.move(f.Value, fmt.Sprintf("new %s field %s", x.Type, f.Name), false)
		}
	case *ir.Insert:
		p.expr(x.Target)
		p.move(x.Value, "insert value", false)
	case *ir.Cast:
		p.expr(x.Value)
	case *ir.Format:
		for _, a := range x.Args {
			p.expr(a)
		}
	}
}

// move plans a value moved into a new owner. Values reached through a
// binding get a site with the consequence of an owned argument.
func (p *planner) move(value ir.Expr, label string, leaving bool) {
	root, ok := ir.Root(value)
	if !ok || p.lookup(root.Name) == nil {
		p.expr(value)
		return
	}
	p.leaving = leaving
	c, _ := p.argConsequence(value, ir.Owned)
	p.leaving = false
	site := p.site(SiteMove, label, c)
	site.Node = value
	p.unit.moves[value] = site
	p.expr(value)
}

func (p *planner) call(node ir.Expr, callee string, args []ir.Expr) {
	for pos, a := range args {
		mode, ok := p.reg.Mode(callee, pos)
		if !ok {
			mode = ir.Owned
		}
		c, temp := p.argConsequence(a, mode)
		site := p.site(SiteArg, fmt.Sprintf("call %s arg %d", callee, pos), c)
		site.Node = a
		site.Temp = temp
		site.Mutable = temp != "" && mode == ir.ExclusiveWrite
		p.unit.args[argKey{node, pos}] = site
		p.expr(a)
	}
}

func (p *planner) argConsequence(a ir.Expr, mode ir.AccessMode) (ir.Consequence, string) {
	if _, ok := a.(*ir.Format); ok {
		if mode == ir.Owned {
			return ir.NoOp, ""
		}
		p.temps++
		return ir.HoistTemporary, fmt.Sprintf("_tmp%d", p.temps)
	}

	root, rooted := ir.Root(a)
	var b *binding
	if rooted {
		b = p.lookup(root.Name)
	}
	if b == nil {
		return paramConsequence(mode), ""
	}
	exact := a == ir.Expr(root)

	switch mode {
	case ir.SharedRead:
		if exact && b.access != ir.Owned {
			return ir.NoOp, ""
		}
		return ir.InsertShared, ""
	case ir.ExclusiveWrite:
		if exact && b.access == ir.ExclusiveWrite {
			return ir.NoOp, ""
		}
		if b.access == ir.Owned && b.site != nil {
			b.site.Mutable = true
		}
		return ir.InsertExclusive, ""
	}

	t := b.typ
	if !exact {
		t = p.env.TypeOf(a).Deref()
	}
	switch {
	case hasIndex(a):
		if types.KnownNonDuplicable(p.oracle, t) {
			return ir.InsertDuplicate, ""
		}
	case types.KnownDuplicable(p.oracle, t):
		if exact && b.access != ir.Owned {
			return ir.InsertDereference, ""
		}
	case types.KnownNonDuplicable(p.oracle, t):
		if b.access != ir.Owned || p.usedAfter(root, b) {
			return ir.InsertDuplicate, ""
		}
	}
	return ir.NoOp, ""
}

// hasIndex reports whether a binding path passes through an index step.
func hasIndex(e ir.Expr) bool {
	for {
		switch x := e.(type) {
		case *ir.Index:
			return true
		case *ir.FieldAccess:
			e = x.Target
		default:
			return false
		}
	}
}
