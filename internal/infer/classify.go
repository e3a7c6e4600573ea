package infer

import (
	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/types"
)

// Classify determines how binding is used in the body of c, given the
// frozen registry snapshot of the previous pass.
//
// The body is walked once, depth first and left to right, through every
// branch, loop and match arm. Each use site records a classification and
// the walk never stops early; the strongest classification wins
// (Mutated > Consumed > ReadOnly). Passing the binding, or a path below
// it, to a declared callable at a position the snapshot has not resolved
// is recorded as a pending forward and only decides the verdict when
// nothing else does.
func Classify(prog *ir.Program, c *ir.Callable, binding string, snapshot *Registry, oracle types.Oracle) ir.Verdict {
	return classifyBinding(prog, c, binding, snapshot, oracle).verdict()
}

func classifyBinding(prog *ir.Program, c *ir.Callable, binding string, snapshot *Registry, oracle types.Oracle) *classifier {
	cl := &classifier{
		prog:     prog,
		snapshot: snapshot,
		oracle:   oracle,
		binding:  binding,
		env:      types.NewEnv(prog, c),
	}
	cl.body(c.Body)
	return cl
}

// forward is an argument rooted at the binding, passed to a declared
// callable at a position the snapshot has not resolved. whole is set when
// the argument is the binding itself rather than a path below it.
type forward struct {
	callee string
	pos    int
	whole  bool
}

type classifier struct {
	prog     *ir.Program
	snapshot *Registry
	oracle   types.Oracle
	binding  string
	env      *types.Env

	// shadowed is set while an inner declaration hides the binding.
	shadowed bool

	mutated  bool
	consumed bool
	read     bool
	forwards []forward
}

func (c *classifier) verdict() ir.Verdict {
	switch {
	case c.mutated:
		return ir.Verdict{Kind: ir.Mutated}
	case c.consumed:
		return ir.Verdict{Kind: ir.Consumed}
	case c.read:
		return ir.Verdict{Kind: ir.ReadOnly}
	case len(c.forwards) == 1 && c.forwards[0].whole:
		return ir.Verdict{Kind: ir.PassThrough, Callee: c.forwards[0].callee, Position: c.forwards[0].pos}
	case len(c.forwards) > 0:
		return ir.Verdict{Kind: ir.Consumed}
	}
	return ir.Verdict{Kind: ir.Unused}
}

// waiting reports whether the verdict rests on pending forwards alone.
func (c *classifier) waiting() bool {
	return !c.mutated && !c.consumed && !c.read && len(c.forwards) > 0
}

// isBinding reports whether e is exactly the tracked binding.
func (c *classifier) isBinding(e ir.Expr) bool {
	return !c.shadowed && ir.IsIdent(e, c.binding)
}

// rooted reports whether e is the binding or a field/index path below it.
func (c *classifier) rooted(e ir.Expr) bool {
	if c.shadowed {
		return false
	}
	root, ok := ir.Root(e)
	return ok && root.Name == c.binding
}

// hasIndex reports whether a path passes through an index step.
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

// pathIndexes walks the index sub-expressions of a path as reads.
func (c *classifier) pathIndexes(e ir.Expr) {
	for {
		switch x := e.(type) {
		case *ir.Index:
			c.expr(x.Index)
			e = x.Target
		case *ir.FieldAccess:
			e = x.Target
		default:
			return
		}
	}
}

// take records a by-value use of the binding or of a field path below it.
// Duplicable values are reads; unknown and non-duplicable values are
// consumed.
func (c *classifier) take(e ir.Expr) {
	c.pathIndexes(e)
	if hasIndex(e) {
		// Element moves out of collections are resolved at the use site by
		// duplication, so the collection itself is only read.
		c.read = true
		return
	}
	if types.KnownDuplicable(c.oracle, c.env.TypeOf(e)) {
		c.read = true
		return
	}
	c.consumed = true
}

// move handles an expression whose value is moved into a new owner: a
// returned value, a constructor field, an inserted element or the right
// side of an assignment.
func (c *classifier) move(e ir.Expr) {
	if c.rooted(e) {
		c.take(e)
		return
	}
	c.expr(e)
}

func (c *classifier) body(stmts []ir.Stmt) {
	saved := c.shadowed
	c.env.Push()
	for _, s := range stmts {
		c.stmt(s)
	}
	c.env.Pop()
	c.shadowed = saved
}

func (c *classifier) stmt(s ir.Stmt) {
	switch x := s.(type) {
	case *ir.Let:
		if c.isBinding(x.Value) {
			c.take(x.Value)
		} else {
			c.expr(x.Value)
		}
		c.env.BindLet(x)
		if x.Name == c.binding {
			c.shadowed = true
		}
	case *ir.Assign:
		if c.rooted(x.Target) {
			c.mutated = true
		}
		c.pathIndexes(x.Target)
		c.move(x.Value)
	case *ir.ExprStmt:
		c.expr(x.X)
	case *ir.If:
		c.expr(x.Cond)
		c.body(x.Then)
		c.body(x.Else)
	case *ir.While:
		c.expr(x.Cond)
		c.body(x.Body)
	case *ir.For:
		c.expr(x.Iter)
		saved := c.shadowed
		c.env.Push()
		c.env.BindFor(x)
		if x.Var == c.binding {
			c.shadowed = true
		}
		c.body(x.Body)
		c.env.Pop()
		c.shadowed = saved
	case *ir.Match:
		c.expr(x.Subject)
		subject := c.env.TypeOf(x.Subject)
		for _, arm := range x.Arms {
			saved := c.shadowed
			c.env.Push()
			c.env.BindPattern(subject, arm.Pattern)
			for _, b := range arm.Pattern.Bindings {
				if b == c.binding {
					c.shadowed = true
				}
			}
			c.body(arm.Body)
			c.env.Pop()
			c.shadowed = saved
		}
	case *ir.Return:
		if x.Value != nil {
			c.move(x.Value)
		}
	case *ir.Block:
		c.body(x.Body)
	}
}

func (c *classifier) expr(e ir.Expr) {
	switch x := e.(type) {
	case nil:
	case *ir.Ident:
		if c.isBinding(x) {
			c.read = true
		}
	case *ir.Literal:
	case *ir.FieldAccess:
		c.expr(x.Target)
	case *ir.Index:
		c.expr(x.Target)
		c.expr(x.Index)
	case *ir.Binary:
		if ir.IsArithmetic(x.Op) || ir.IsBitwise(x.Op) {
			c.operand(x.Left)
			c.operand(x.Right)
			return
		}
		c.expr(x.Left)
		c.expr(x.Right)
	case *ir.Unary:
		c.expr(x.Operand)
	case *ir.Call:
		c.call(x.Callee, x.Args)
	case *ir.MethodCall:
		_, args, _ := ir.CallArgs(x)
		c.call(x.Callee, args)
	case *ir.Construct:
		for _, f := range x.Fields {
			c.move(f.Value)
		}
	case *ir.Insert:
		if c.rooted(x.Target) {
			c.mutated = true
		}
		c.pathIndexes(x.Target)
		c.move(x.Value)
	case *ir.Cast:
		c.expr(x.Value)
	case *ir.Format:
		for _, a := range x.Args {
			c.expr(a)
		}
	}
}

// operand handles one side of an arithmetic or bitwise operator. Such
// operators take their operands by value, which only consumes values of
// known non-duplicable type.
func (c *classifier) operand(e ir.Expr) {
	if !c.rooted(e) {
		c.expr(e)
		return
	}
	c.pathIndexes(e)
	if !hasIndex(e) && types.KnownNonDuplicable(c.oracle, c.env.TypeOf(e)) {
		c.consumed = true
		return
	}
	c.read = true
}

func (c *classifier) call(callee string, args []ir.Expr) {
	for pos, a := range args {
		if !c.rooted(a) {
			c.expr(a)
			continue
		}
		if mode, ok := c.snapshot.Resolved(callee, pos); ok {
			c.arg(a, mode)
			continue
		}
		if c.prog.Callable(callee) != nil {
			// Indexes inside the path are read now; the path itself waits
			// for the callee.
			c.pathIndexes(a)
			c.forwards = append(c.forwards, forward{callee: callee, pos: pos, whole: c.isBinding(a)})
			continue
		}
		// Undeclared callees are treated as taking ownership.
		c.arg(a, ir.Owned)
	}
}

func (c *classifier) arg(a ir.Expr, mode ir.AccessMode) {
	switch mode {
	case ir.ExclusiveWrite:
		c.pathIndexes(a)
		c.mutated = true
	case ir.SharedRead:
		c.pathIndexes(a)
		c.read = true
	default:
		c.take(a)
	}
}
