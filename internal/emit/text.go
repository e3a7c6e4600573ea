package emit

import (
	"fmt"
	"strings"

	"github.com/roach88/ownc/internal/ir"
)

// writer accumulates indented lines. Statements hoisted while rendering an
// expression are flushed ahead of the next line written.
type writer struct {
	buf     strings.Builder
	indent  string
	depth   int
	pending []string
	err     error
}

func (w *writer) line(format string, args ...any) {
	for _, h := range w.pending {
		w.raw(h)
	}
	w.pending = w.pending[:0]
	w.raw(fmt.Sprintf(format, args...))
}

func (w *writer) raw(s string) {
	w.buf.WriteString(strings.Repeat(w.indent, w.depth))
	w.buf.WriteString(s)
	w.buf.WriteByte('\n')
}

func (w *writer) blank() {
	w.buf.WriteByte('\n')
}

func (w *writer) hoist(s string) {
	w.pending = append(w.pending, s)
}

// fail records the first error; rendering continues so that callers need
// not check after every node.
func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// precedence ranks binary operators; higher binds tighter.
type precedence map[string]int

var rustPrecedence = precedence{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"<<": 7, ">>": 7,
	"+": 8, "-": 8,
	"*": 9, "/": 9, "%": 9,
}

var jsPrecedence = precedence{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

// wrap reports whether child needs parentheses as an operand of parent.
// Comparisons never chain.
func (p precedence) wrap(parent string, child ir.Expr, right bool) bool {
	b, ok := child.(*ir.Binary)
	if !ok {
		return false
	}
	pp, cp := p[parent], p[b.Op]
	if cp != pp {
		return cp < pp
	}
	return right || ir.IsComparison(parent)
}

// isPrimary reports whether e renders as a single postfix-safe term.
func isPrimary(e ir.Expr) bool {
	switch e.(type) {
	case *ir.Ident, *ir.Literal, *ir.FieldAccess, *ir.Index, *ir.Call, *ir.MethodCall, *ir.Format:
		return true
	}
	return false
}

// splitQualified splits "Owner.member" at the last dot.
func splitQualified(name string) (owner, member string, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return "", name, false
	}
	return name[:i], name[i+1:], true
}

// wellKnownVariants are pattern names that need no enum qualification.
var wellKnownVariants = map[string]bool{"Some": true, "None": true, "Ok": true, "Err": true}

// variantOwner returns the declared enum that has variant, or "".
func variantOwner(prog *ir.Program, variant string) string {
	if wellKnownVariants[variant] {
		return ""
	}
	for _, d := range prog.Types {
		if _, ok := d.Variant(variant); ok {
			return d.Name
		}
	}
	return ""
}
