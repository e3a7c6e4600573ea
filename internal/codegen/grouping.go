package codegen

import "github.com/roach88/ownc/internal/ir"

// castGroupingOps are the binary operators whose operands must be
// parenthesised when they are casts: a bare cast on either side of a shift
// or bitwise operator binds differently in the target, and "x as T < y"
// parses as the start of generic arguments.
var castGroupingOps = map[string]bool{
	"<<": true,
	">>": true,
	"|":  true,
	"&":  true,
	"^":  true,
	"<":  true,
}

// group records the parentheses that operator precedence in the target
// requires around the operands of e. Casts with an unresolved target type
// are left alone.
func (p *planner) group(e ir.Expr) {
	switch x := e.(type) {
	case *ir.Unary:
		switch op := x.Operand.(type) {
		case *ir.Binary:
			p.unit.parens[op] = true
		case *ir.Cast:
			if op.To != nil {
				p.unit.parens[op] = true
			}
		}
	case *ir.Binary:
		if !castGroupingOps[x.Op] {
			return
		}
		for _, side := range []ir.Expr{x.Left, x.Right} {
			if c, ok := side.(*ir.Cast); ok && c.To != nil {
				p.unit.parens[c] = true
			}
		}
	}
}
