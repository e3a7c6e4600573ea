package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/ownc/internal/codegen"
	"github.com/roach88/ownc/internal/ir"
)

// JS renders units without access syntax. Only duplication and hoisting
// survive, as structuredClone and const temporaries.
type JS struct{}

func (JS) Name() string { return "js" }

func (JS) Emit(u *codegen.Unit) (string, error) {
	j := &jsPrinter{
		u:    u,
		prog: u.Program(),
		w:    &writer{indent: "  "},
	}
	j.w.line("// Generated by ownc from program %s.", j.prog.Name)
	j.w.line("\"use strict\";")
	for _, c := range j.prog.Callables {
		j.w.blank()
		j.callable(c)
	}
	if j.w.err != nil {
		return "", fmt.Errorf("emit js %s: %w", j.prog.Name, j.w.err)
	}
	return j.w.buf.String(), nil
}

type jsPrinter struct {
	u    *codegen.Unit
	prog *ir.Program
	w    *writer

	subjects int
}

// jsName flattens a qualified callable name: "Vec2.scale" -> "Vec2_scale".
func jsName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func (j *jsPrinter) callable(c *ir.Callable) {
	params := make([]string, len(c.Params))
	for i, p := range c.Params {
		params[i] = p.Name
	}
	j.w.line("function %s(%s) {", jsName(c.Name), strings.Join(params, ", "))
	j.subjects = 0
	j.block(c.Body)
	j.w.line("}")
}

func (j *jsPrinter) block(stmts []ir.Stmt) {
	j.w.depth++
	for _, s := range stmts {
		j.stmt(s)
	}
	j.w.depth--
}

func (j *jsPrinter) stmt(s ir.Stmt) {
	switch x := s.(type) {
	case *ir.Let:
		site := j.u.LetSite(x)
		decl := "const"
		value := j.expr(x.Value)
		if site != nil {
			if site.Mutable {
				decl = "let"
			}
			if site.Consequence == ir.InsertDuplicate {
				value = "structuredClone(" + value + ")"
			}
		}
		j.w.line("%s %s = %s;", decl, x.Name, value)
	case *ir.Assign:
		target := j.expr(x.Target)
		j.w.line("%s = %s;", target, j.moved(x.Value))
	case *ir.ExprStmt:
		j.w.line("%s;", j.expr(x.X))
	case *ir.If:
		j.w.line("if (%s) {", j.expr(x.Cond))
		j.block(x.Then)
		if len(x.Else) > 0 {
			j.w.line("} else {")
			j.block(x.Else)
		}
		j.w.line("}")
	case *ir.While:
		j.w.line("while (%s) {", j.expr(x.Cond))
		j.block(x.Body)
		j.w.line("}")
	case *ir.For:
		j.w.line("for (const %s of %s) {", x.Var, j.expr(x.Iter))
		j.block(x.Body)
		j.w.line("}")
	case *ir.Match:
		j.match(x)
	case *ir.Return:
		if x.Value == nil {
			j.w.line("return;")
			return
		}
		j.w.line("return %s;", j.moved(x.Value))
	case *ir.Block:
		j.w.line("{")
		j.block(x.Body)
		j.w.line("}")
	default:
		j.w.fail(fmt.Errorf("unsupported statement %T", s))
	}
}

// match lowers a match to an if chain. Options are nullable values and
// enum values are {tag, values} records.
func (j *jsPrinter) match(m *ir.Match) {
	subject := j.expr(m.Subject)
	if _, simple := m.Subject.(*ir.Ident); !simple {
		j.subjects++
		name := fmt.Sprintf("_m%d", j.subjects)
		j.w.line("const %s = %s;", name, subject)
		subject = name
	}

	for i, arm := range m.Arms {
		cond := armCondition(subject, arm.Pattern)
		switch {
		case cond == "" && i == 0:
			j.w.line("{")
		case cond == "":
			j.w.line("} else {")
		case i == 0:
			j.w.line("if (%s) {", cond)
		default:
			j.w.line("} else if (%s) {", cond)
		}
		j.w.depth++
		j.armBindings(subject, arm)
		for _, s := range arm.Body {
			j.stmt(s)
		}
		j.w.depth--
		if cond == "" {
			break
		}
	}
	if len(m.Arms) > 0 {
		j.w.line("}")
	}
}

func armCondition(subject string, p ir.Pattern) string {
	switch p.Variant {
	case "":
		return ""
	case "Some":
		return subject + " != null"
	case "None":
		return subject + " == null"
	}
	return subject + ".tag === " + strconv.Quote(p.Variant)
}

func (j *jsPrinter) armBindings(subject string, arm *ir.MatchArm) {
	site := j.u.ArmSite(arm)
	for i, b := range arm.Pattern.Bindings {
		value := subject
		if arm.Pattern.Variant != "Some" {
			value = fmt.Sprintf("%s.values[%d]", subject, i)
		}
		if site != nil && i < len(site.Bindings) && site.Bindings[i] == ir.InsertDuplicate {
			value = "structuredClone(" + value + ")"
		}
		j.w.line("const %s = %s;", b, value)
	}
}

func (j *jsPrinter) arg(call ir.Expr, pos int, e ir.Expr) string {
	site := j.u.ArgSite(call, pos)
	text := j.expr(e)
	if site == nil {
		return text
	}
	switch site.Consequence {
	case ir.HoistTemporary:
		j.w.hoist(fmt.Sprintf("const %s = %s;", site.Temp, text))
		return site.Temp
	case ir.InsertDuplicate:
		return "structuredClone(" + text + ")"
	}
	return text
}

func (j *jsPrinter) moved(e ir.Expr) string {
	text := j.expr(e)
	if site := j.u.MoveSite(e); site != nil && site.Consequence == ir.InsertDuplicate {
		return "structuredClone(" + text + ")"
	}
	return text
}

func (j *jsPrinter) args(call ir.Expr, args []ir.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = j.arg(call, i, a)
	}
	return strings.Join(parts, ", ")
}

func (j *jsPrinter) postfix(e ir.Expr) string {
	if isPrimary(e) {
		return j.expr(e)
	}
	return "(" + j.expr(e) + ")"
}

func (j *jsPrinter) expr(e ir.Expr) string {
	switch x := e.(type) {
	case nil:
		return "undefined"
	case *ir.Ident:
		return x.Name
	case *ir.Literal:
		if x.Kind == ir.LitString {
			return strconv.Quote(x.Value)
		}
		return x.Value
	case *ir.FieldAccess:
		return j.postfix(x.Target) + "." + x.Field
	case *ir.Index:
		return j.postfix(x.Target) + "[" + j.expr(x.Index) + "]"
	case *ir.Binary:
		if !ir.IsKnownBinaryOp(x.Op) {
			j.w.fail(fmt.Errorf("unsupported operator %q", x.Op))
		}
		op := x.Op
		switch op {
		case "==":
			op = "==="
		case "!=":
			op = "!=="
		}
		return j.side(x.Op, x.Left, false) + " " + op + " " + j.side(x.Op, x.Right, true)
	case *ir.Unary:
		if j.u.Parens(x.Operand) {
			return x.Op + "(" + j.expr(x.Operand) + ")"
		}
		return x.Op + j.expr(x.Operand)
	case *ir.Call:
		return jsName(x.Callee) + "(" + j.args(x, x.Args) + ")"
	case *ir.MethodCall:
		_, args, _ := ir.CallArgs(x)
		return jsName(x.Callee) + "(" + j.args(x, args) + ")"
	case *ir.Construct:
		if len(x.Fields) == 0 {
			return "{}"
		}
		parts := make([]string, len(x.Fields))
		for i, f := range x.Fields {
			parts[i] = f.Name + ": " + j.moved(f.Value)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case *ir.Insert:
		return j.postfix(x.Target) + ".push(" + j.moved(x.Value) + ")"
	case *ir.Cast:
		return j.expr(x.Value)
	case *ir.Format:
		return j.template(x)
	}
	j.w.fail(fmt.Errorf("unsupported expression %T", e))
	return ""
}

func (j *jsPrinter) side(op string, e ir.Expr, right bool) string {
	if j.u.Parens(e) || jsPrecedence.wrap(op, e, right) {
		return "(" + j.expr(e) + ")"
	}
	return j.expr(e)
}

// template renders a format expression as a template literal, filling the
// "{}" placeholders in order.
func (j *jsPrinter) template(f *ir.Format) string {
	var b strings.Builder
	b.WriteByte('`')
	rest := f.Template
	for i := 0; ; i++ {
		k := strings.Index(rest, "{}")
		if k < 0 || i >= len(f.Args) {
			b.WriteString(escapeTemplate(rest))
			break
		}
		b.WriteString(escapeTemplate(rest[:k]))
		b.WriteString("${" + j.expr(f.Args[i]) + "}")
		rest = rest[k+2:]
	}
	b.WriteByte('`')
	return b.String()
}

func escapeTemplate(s string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${").Replace(s)
}
