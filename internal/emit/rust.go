package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/ownc/internal/codegen"
	"github.com/roach88/ownc/internal/ir"
)

// Rust renders units with full access syntax.
type Rust struct{}

func (Rust) Name() string { return "rust" }

func (Rust) Emit(u *codegen.Unit) (string, error) {
	r := &rustPrinter{
		u:    u,
		prog: u.Program(),
		w:    &writer{indent: "    "},
	}
	for _, d := range r.prog.Types {
		r.typeDecl(d)
	}
	for _, c := range r.prog.Callables {
		r.callable(c)
	}
	if r.w.err != nil {
		return "", fmt.Errorf("emit rust %s: %w", r.prog.Name, r.w.err)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "// Generated by ownc from program %s.\n", r.prog.Name)
	if r.usesMap {
		out.WriteString("use std::collections::HashMap;\n")
	}
	out.WriteByte('\n')
	out.WriteString(strings.TrimRight(r.w.buf.String(), "\n"))
	out.WriteByte('\n')
	return out.String(), nil
}

type rustPrinter struct {
	u    *codegen.Unit
	prog *ir.Program
	w    *writer

	// self is the receiver parameter of the method being emitted.
	self    string
	usesMap bool
}

func (r *rustPrinter) typeDecl(d *ir.TypeDecl) {
	if d.Duplicable {
		r.w.line("#[derive(Clone, Copy)]")
	} else {
		r.w.line("#[derive(Clone)]")
	}
	if d.IsEnum() {
		r.w.line("enum %s {", d.Name)
		r.w.depth++
		for _, v := range d.Variants {
			if len(v.Payload) == 0 {
				r.w.line("%s,", v.Name)
				continue
			}
			r.w.line("%s(%s),", v.Name, r.types(v.Payload))
		}
	} else {
		r.w.line("struct %s {", d.Name)
		r.w.depth++
		for _, f := range d.Fields {
			r.w.line("%s: %s,", f.Name, r.typ(f.Type))
		}
	}
	r.w.depth--
	r.w.line("}")
	r.w.blank()
}

func (r *rustPrinter) callable(c *ir.Callable) {
	owner, name, qualified := splitQualified(c.Name)
	if qualified {
		r.w.line("impl %s {", owner)
		r.w.depth++
	}

	params := make([]string, 0, len(c.Params))
	for i, p := range c.Params {
		site := r.u.ParamSite(p)
		if i == 0 && c.Method && qualified {
			r.self = p.Name
			params = append(params, receiver(site))
			continue
		}
		params = append(params, r.param(p, site))
	}
	sig := fmt.Sprintf("fn %s(%s)", name, strings.Join(params, ", "))
	if c.Returns != nil {
		sig += " -> " + r.typ(c.Returns)
	}
	r.w.line("%s {", sig)
	r.block(c.Body)
	r.w.line("}")
	r.self = ""

	if qualified {
		r.w.depth--
		r.w.line("}")
	}
	r.w.blank()
}

func receiver(site *codegen.Site) string {
	if site == nil {
		return "self"
	}
	switch site.Consequence {
	case ir.InsertShared:
		return "&self"
	case ir.InsertExclusive:
		return "&mut self"
	}
	if site.Mutable {
		return "mut self"
	}
	return "self"
}

func (r *rustPrinter) param(p *ir.Param, site *codegen.Site) string {
	name, typ := p.Name, r.typ(p.Type.Deref())
	if site == nil {
		return name + ": " + typ
	}
	switch site.Consequence {
	case ir.InsertShared:
		typ = "&" + typ
	case ir.InsertExclusive:
		typ = "&mut " + typ
	}
	if site.Mutable {
		name = "mut " + name
	}
	return name + ": " + typ
}

func (r *rustPrinter) typ(t *ir.Type) string {
	if t == nil {
		return "_"
	}
	switch t.Kind {
	case ir.KindPrim:
		switch t.Name {
		case "int":
			return "i64"
		case "uint":
			return "u64"
		case "float":
			return "f64"
		}
		return t.Name
	case ir.KindString:
		return "String"
	case ir.KindRef:
		return "&" + r.typ(t.Elem())
	case ir.KindMutRef:
		return "&mut " + r.typ(t.Elem())
	case ir.KindTuple:
		return "(" + r.types(t.Args) + ")"
	case ir.KindMap:
		r.usesMap = true
		return "HashMap<" + r.types(t.Args) + ">"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	return t.Name + "<" + r.types(t.Args) + ">"
}

func (r *rustPrinter) types(ts []*ir.Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = r.typ(t)
	}
	return strings.Join(parts, ", ")
}

func (r *rustPrinter) block(stmts []ir.Stmt) {
	r.w.depth++
	for _, s := range stmts {
		r.stmt(s)
	}
	r.w.depth--
}

func (r *rustPrinter) stmt(s ir.Stmt) {
	switch x := s.(type) {
	case *ir.Let:
		r.let(x)
	case *ir.Assign:
		target := r.expr(x.Target)
		r.w.line("%s = %s;", target, r.moved(x.Value))
	case *ir.ExprStmt:
		r.w.line("%s;", r.expr(x.X))
	case *ir.If:
		r.w.line("if %s {", r.expr(x.Cond))
		r.block(x.Then)
		if len(x.Else) > 0 {
			r.w.line("} else {")
			r.block(x.Else)
		}
		r.w.line("}")
	case *ir.While:
		r.w.line("while %s {", r.expr(x.Cond))
		r.block(x.Body)
		r.w.line("}")
	case *ir.For:
		r.w.line("for %s in %s.iter() {", x.Var, r.postfix(x.Iter))
		r.block(x.Body)
		r.w.line("}")
	case *ir.Match:
		r.w.line("match %s {", r.expr(x.Subject))
		r.w.depth++
		for _, arm := range x.Arms {
			r.arm(arm)
		}
		r.w.depth--
		r.w.line("}")
	case *ir.Return:
		if x.Value == nil {
			r.w.line("return;")
			return
		}
		r.w.line("return %s;", r.moved(x.Value))
	case *ir.Block:
		r.w.line("{")
		r.block(x.Body)
		r.w.line("}")
	default:
		r.w.fail(fmt.Errorf("unsupported statement %T", s))
	}
}

func (r *rustPrinter) let(x *ir.Let) {
	site := r.u.LetSite(x)
	c := ir.NoOp
	decl := "let "
	if site != nil {
		c = site.Consequence
		if site.Mutable {
			decl += "mut "
		}
	}
	decl += x.Name
	if x.Type != nil {
		typ := r.typ(x.Type)
		if c == ir.InsertShared {
			typ = "&" + typ
		}
		decl += ": " + typ
	}

	var value string
	switch c {
	case ir.InsertShared, ir.InsertDuplicate, ir.InsertDereference:
		value = r.apply(c, x.Value)
	default:
		value = r.expr(x.Value)
	}
	r.w.line("%s = %s;", decl, value)
}

func (r *rustPrinter) arm(arm *ir.MatchArm) {
	site := r.u.ArmSite(arm)
	bindingConsequence := func(i int) ir.Consequence {
		if site == nil || i >= len(site.Bindings) {
			return ir.NoOp
		}
		return site.Bindings[i]
	}

	pattern := "_"
	if v := arm.Pattern.Variant; v != "" {
		pattern = v
		if owner := variantOwner(r.prog, v); owner != "" {
			pattern = owner + "::" + v
		}
		if len(arm.Pattern.Bindings) > 0 {
			names := make([]string, len(arm.Pattern.Bindings))
			for i, b := range arm.Pattern.Bindings {
				if bindingConsequence(i) == ir.InsertDereference {
					b = "&" + b
				}
				names[i] = b
			}
			pattern += "(" + strings.Join(names, ", ") + ")"
		}
	}

	r.w.line("%s => {", pattern)
	r.w.depth++
	for i, b := range arm.Pattern.Bindings {
		if bindingConsequence(i) == ir.InsertDuplicate {
			r.w.line("let %s = %s.clone();", b, b)
		}
	}
	for _, s := range arm.Body {
		r.stmt(s)
	}
	r.w.depth--
	r.w.line("}")
}

// apply renders e with the access syntax of c.
func (r *rustPrinter) apply(c ir.Consequence, e ir.Expr) string {
	switch c {
	case ir.InsertShared:
		return "&" + r.prefixOperand(e)
	case ir.InsertExclusive:
		return "&mut " + r.prefixOperand(e)
	case ir.InsertDuplicate:
		return r.postfix(e) + ".clone()"
	case ir.InsertDereference:
		return "*" + r.prefixOperand(e)
	}
	return r.expr(e)
}

// moved renders a value that moves into a new owner.
func (r *rustPrinter) moved(e ir.Expr) string {
	if site := r.u.MoveSite(e); site != nil {
		return r.apply(site.Consequence, e)
	}
	return r.expr(e)
}

func (r *rustPrinter) arg(call ir.Expr, pos int, e ir.Expr) string {
	site := r.u.ArgSite(call, pos)
	if site == nil {
		return r.expr(e)
	}
	if site.Consequence == ir.HoistTemporary {
		decl, ref := "let ", "&"
		if site.Mutable {
			decl, ref = "let mut ", "&mut "
		}
		r.w.hoist(fmt.Sprintf("%s%s = %s;", decl, site.Temp, r.expr(e)))
		return ref + site.Temp
	}
	return r.apply(site.Consequence, e)
}

func (r *rustPrinter) args(call ir.Expr, args []ir.Expr, offset int) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = r.arg(call, i+offset, a)
	}
	return strings.Join(parts, ", ")
}

func (r *rustPrinter) postfix(e ir.Expr) string {
	if isPrimary(e) {
		return r.expr(e)
	}
	return "(" + r.expr(e) + ")"
}

func (r *rustPrinter) prefixOperand(e ir.Expr) string {
	switch e.(type) {
	case *ir.Binary, *ir.Cast:
		return "(" + r.expr(e) + ")"
	}
	return r.expr(e)
}

func (r *rustPrinter) grouped(e ir.Expr) string {
	if r.u.Parens(e) {
		return "(" + r.expr(e) + ")"
	}
	return r.expr(e)
}

func (r *rustPrinter) expr(e ir.Expr) string {
	switch x := e.(type) {
	case nil:
		return "()"
	case *ir.Ident:
		if r.self != "" && x.Name == r.self {
			return "self"
		}
		return x.Name
	case *ir.Literal:
		if x.Kind == ir.LitString {
			return "String::from(" + strconv.Quote(x.Value) + ")"
		}
		return x.Value
	case *ir.FieldAccess:
		return r.postfix(x.Target) + "." + x.Field
	case *ir.Index:
		return r.postfix(x.Target) + "[" + r.expr(x.Index) + "]"
	case *ir.Binary:
		if !ir.IsKnownBinaryOp(x.Op) {
			r.w.fail(fmt.Errorf("unsupported operator %q", x.Op))
		}
		return r.side(x.Op, x.Left, false) + " " + x.Op + " " + r.side(x.Op, x.Right, true)
	case *ir.Unary:
		return x.Op + r.grouped(x.Operand)
	case *ir.Call:
		return strings.ReplaceAll(x.Callee, ".", "::") + "(" + r.args(x, x.Args, 0) + ")"
	case *ir.MethodCall:
		recv := r.postfix(x.Receiver)
		if site := r.u.ArgSite(x, 0); site != nil && site.Consequence == ir.InsertDuplicate {
			recv += ".clone()"
		}
		return recv + "." + x.Method + "(" + r.args(x, x.Args, 1) + ")"
	case *ir.Construct:
		if len(x.Fields) == 0 {
			return x.Type + " {}"
		}
		parts := make([]string, len(x.Fields))
		for i, f := range x.Fields {
			parts[i] = f.Name + ": " + r.moved(f.Value)
		}
		return x.Type + " { " + strings.Join(parts, ", ") + " }"
	case *ir.Insert:
		return r.postfix(x.Target) + ".push(" + r.moved(x.Value) + ")"
	case *ir.Cast:
		return r.prefixOperand(x.Value) + " as " + r.typ(x.To)
	case *ir.Format:
		parts := []string{strconv.Quote(x.Template)}
		for _, a := range x.Args {
			parts = append(parts, r.expr(a))
		}
		return "format!(" + strings.Join(parts, ", ") + ")"
	}
	r.w.fail(fmt.Errorf("unsupported expression %T", e))
	return ""
}

func (r *rustPrinter) side(op string, e ir.Expr, right bool) string {
	if r.u.Parens(e) || rustPrecedence.wrap(op, e, right) {
		return "(" + r.expr(e) + ")"
	}
	return r.expr(e)
}
