package types

import (
	"strconv"

	"github.com/roach88/ownc/internal/ir"
)

// Env resolves static types of expressions inside one callable body. It
// keeps a stack of lexical scopes; the outermost holds the parameters.
type Env struct {
	prog   *ir.Program
	scopes []map[string]*ir.Type
}

// NewEnv returns an environment for c's body with its parameters bound.
func NewEnv(prog *ir.Program, c *ir.Callable) *Env {
	e := &Env{prog: prog}
	e.Push()
	if c != nil {
		for _, p := range c.Params {
			e.Bind(p.Name, p.Type)
		}
	}
	return e
}

// Push opens a nested scope.
func (e *Env) Push() {
	e.scopes = append(e.scopes, make(map[string]*ir.Type))
}

// Pop closes the innermost scope.
func (e *Env) Pop() {
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Bind records name in the innermost scope. A nil type is recorded too, so
// that a shadowing binding of unknown type hides the outer one.
func (e *Env) Bind(name string, t *ir.Type) {
	e.scopes[len(e.scopes)-1][name] = t
}

// Lookup returns the type bound to name, or nil.
func (e *Env) Lookup(name string) *ir.Type {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if t, ok := e.scopes[i][name]; ok {
			return t
		}
	}
	return nil
}

// BindLet binds a let statement's name to its declared type, or to the
// type of its value when no type was written.
func (e *Env) BindLet(l *ir.Let) {
	t := l.Type
	if t == nil {
		t = e.TypeOf(l.Value)
	}
	e.Bind(l.Name, t)
}

// BindFor binds a loop variable to the element type of the iterated value.
func (e *Env) BindFor(f *ir.For) {
	e.Bind(f.Var, e.TypeOf(f.Iter).Deref().Elem())
}

// BindPattern binds the names of a match arm to the payload types of the
// matched variant.
func (e *Env) BindPattern(subject *ir.Type, pt ir.Pattern) {
	payload := e.PayloadTypes(subject, pt.Variant)
	for i, name := range pt.Bindings {
		var t *ir.Type
		if i < len(payload) {
			t = payload[i]
		}
		e.Bind(name, t)
	}
}

// PayloadTypes returns the payload types of variant when destructuring a
// value of type subject. References are looked through.
func (e *Env) PayloadTypes(subject *ir.Type, variant string) []*ir.Type {
	s := subject.Deref()
	if s == nil {
		return nil
	}
	switch s.Kind {
	case ir.KindOption:
		if variant == "Some" {
			return []*ir.Type{s.Elem()}
		}
	case ir.KindNamed:
		if d := e.prog.TypeDecl(s.Name); d != nil {
			if v, ok := d.Variant(variant); ok {
				return v.Payload
			}
		}
	}
	return nil
}

// Returns looks up the declared return type of a callable or foreign
// declaration.
func (e *Env) Returns(callee string) *ir.Type {
	if c := e.prog.Callable(callee); c != nil {
		return c.Returns
	}
	if f := e.prog.ForeignDecl(callee); f != nil {
		return f.Returns
	}
	return nil
}

// TypeOf returns the static type of x, or nil when it cannot be resolved.
func (e *Env) TypeOf(x ir.Expr) *ir.Type {
	switch x := x.(type) {
	case nil:
		return nil
	case *ir.Ident:
		return e.Lookup(x.Name)
	case *ir.Literal:
		switch x.Kind {
		case ir.LitInt:
			return ir.Prim("i64")
		case ir.LitFloat:
			return ir.Prim("f64")
		case ir.LitBool:
			return ir.Prim("bool")
		case ir.LitString:
			return ir.StringType()
		}
	case *ir.FieldAccess:
		return e.fieldType(e.TypeOf(x.Target), x.Field)
	case *ir.Index:
		return e.TypeOf(x.Target).Deref().Elem()
	case *ir.Binary:
		if ir.IsComparison(x.Op) || ir.IsLogical(x.Op) {
			return ir.Prim("bool")
		}
		if t := e.TypeOf(x.Left); t != nil {
			return t.Deref()
		}
		return e.TypeOf(x.Right).Deref()
	case *ir.Unary:
		return e.TypeOf(x.Operand).Deref()
	case *ir.Call:
		return e.Returns(x.Callee)
	case *ir.MethodCall:
		return e.Returns(x.Callee)
	case *ir.Construct:
		return ir.Named(x.Type)
	case *ir.Insert:
		return ir.TupleOf()
	case *ir.Cast:
		return x.To
	case *ir.Format:
		return ir.StringType()
	}
	return nil
}

func (e *Env) fieldType(target *ir.Type, field string) *ir.Type {
	t := target.Deref()
	if t == nil {
		return nil
	}
	switch t.Kind {
	case ir.KindNamed:
		if d := e.prog.TypeDecl(t.Name); d != nil {
			return d.FieldType(field)
		}
	case ir.KindTuple:
		if i, err := strconv.Atoi(field); err == nil && i >= 0 && i < len(t.Args) {
			return t.Args[i]
		}
	}
	return nil
}
