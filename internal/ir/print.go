package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders p as an indented S-expression. The output is deterministic
// and is the input to ProgramHash, so any change here is a TreeVersion bump.
func Print(p *Program) string {
	pr := &printer{}
	pr.line("(program %s", p.Name)
	pr.indent++
	for _, d := range p.Types {
		pr.typeDecl(d)
	}
	for _, f := range p.Foreign {
		modes := make([]string, len(f.Modes))
		for i, m := range f.Modes {
			modes[i] = string(m)
		}
		s := fmt.Sprintf("(foreign %s (params %s)", f.Name, strings.Join(modes, " "))
		if f.Returns != nil {
			s += " (returns " + f.Returns.String() + ")"
		}
		if f.Method {
			s += " method"
		}
		pr.line("%s)", s)
	}
	for _, c := range p.Callables {
		pr.callable(c)
	}
	pr.indent--
	pr.line(")")
	return pr.sb.String()
}

// PrintExpr renders a single expression on one line.
func PrintExpr(e Expr) string {
	return exprString(e)
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) typeDecl(d *TypeDecl) {
	var parts []string
	for _, f := range d.Fields {
		parts = append(parts, fmt.Sprintf("(field %s %s)", f.Name, f.Type))
	}
	for _, v := range d.Variants {
		s := "(variant " + v.Name
		for _, t := range v.Payload {
			s += " " + t.String()
		}
		parts = append(parts, s+")")
	}
	if d.Duplicable {
		parts = append(parts, "duplicable")
	}
	if len(parts) == 0 {
		p.line("(type %s)", d.Name)
		return
	}
	p.line("(type %s %s)", d.Name, strings.Join(parts, " "))
}

func (p *printer) callable(c *Callable) {
	head := "(fn " + c.Name
	if c.Method {
		head = "(method " + c.Name
	}
	for _, prm := range c.Params {
		s := " (param " + prm.Name
		if prm.Type != nil {
			s += " " + prm.Type.String()
		}
		if prm.Tag.IsExplicit() {
			s += " :" + string(prm.Tag.Mode)
		}
		head += s + ")"
	}
	if c.Returns != nil {
		head += " (returns " + c.Returns.String() + ")"
	}
	if len(c.Body) == 0 {
		p.line("%s)", head)
		return
	}
	p.line("%s", head)
	p.indent++
	p.body(c.Body)
	p.indent--
	p.line(")")
}

func (p *printer) body(stmts []Stmt) {
	for _, s := range stmts {
		p.stmt(s)
	}
}

func (p *printer) nested(head string, stmts []Stmt) {
	if len(stmts) == 0 {
		p.line("%s)", head)
		return
	}
	p.line("%s", head)
	p.indent++
	p.body(stmts)
	p.indent--
	p.line(")")
}

func (p *printer) stmt(s Stmt) {
	switch x := s.(type) {
	case *Let:
		if x.Type != nil {
			p.line("(let %s %s %s)", x.Name, x.Type, exprString(x.Value))
		} else {
			p.line("(let %s %s)", x.Name, exprString(x.Value))
		}
	case *Assign:
		p.line("(assign %s %s)", exprString(x.Target), exprString(x.Value))
	case *ExprStmt:
		p.line("(expr %s)", exprString(x.X))
	case *If:
		p.line("(if %s", exprString(x.Cond))
		p.indent++
		p.nested("(then", x.Then)
		if len(x.Else) > 0 {
			p.nested("(else", x.Else)
		}
		p.indent--
		p.line(")")
	case *While:
		p.nested("(while "+exprString(x.Cond), x.Body)
	case *For:
		p.nested(fmt.Sprintf("(for %s %s", x.Var, exprString(x.Iter)), x.Body)
	case *Match:
		p.line("(match %s", exprString(x.Subject))
		p.indent++
		for _, arm := range x.Arms {
			p.nested("(arm "+patternString(arm.Pattern), arm.Body)
		}
		p.indent--
		p.line(")")
	case *Return:
		if x.Value == nil {
			p.line("(return)")
		} else {
			p.line("(return %s)", exprString(x.Value))
		}
	case *Block:
		p.nested("(block", x.Body)
	default:
		p.line("(? %T)", s)
	}
}

func patternString(pt Pattern) string {
	name := pt.Variant
	if name == "" {
		name = "_"
	}
	if len(pt.Bindings) == 0 {
		return name
	}
	return name + " (" + strings.Join(pt.Bindings, " ") + ")"
}

func exprString(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "()"
	case *Ident:
		return x.Name
	case *Literal:
		if x.Kind == LitString {
			return strconv.Quote(x.Value)
		}
		return x.Value
	case *FieldAccess:
		return fmt.Sprintf("(. %s %s)", exprString(x.Target), x.Field)
	case *Index:
		return fmt.Sprintf("(index %s %s)", exprString(x.Target), exprString(x.Index))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", x.Op, exprString(x.Left), exprString(x.Right))
	case *Unary:
		return fmt.Sprintf("(un%s %s)", x.Op, exprString(x.Operand))
	case *Call:
		return "(call " + x.Callee + joinExprs(x.Args) + ")"
	case *MethodCall:
		return "(method " + x.Callee + " " + exprString(x.Receiver) + joinExprs(x.Args) + ")"
	case *Construct:
		s := "(new " + x.Type
		for _, fi := range x.Fields {
			s += " (" + fi.Name + " " + exprString(fi.Value) + ")"
		}
		return s + ")"
	case *Insert:
		return fmt.Sprintf("(insert %s %s)", exprString(x.Target), exprString(x.Value))
	case *Cast:
		return fmt.Sprintf("(cast %s %s)", exprString(x.Value), x.To)
	case *Format:
		return "(format " + strconv.Quote(x.Template) + joinExprs(x.Args) + ")"
	}
	return fmt.Sprintf("(? %T)", e)
}

func joinExprs(args []Expr) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(exprString(a))
	}
	return sb.String()
}
