package codegen

import (
	"fmt"

	"github.com/roach88/ownc/internal/ir"
)

// SiteKind identifies what a Site annotates.
type SiteKind string

const (
	SiteParam SiteKind = "param"
	SiteLet   SiteKind = "let"
	SiteArg   SiteKind = "arg"
	SiteArm   SiteKind = "arm"
	SiteMove  SiteKind = "move"
)

// Site is one annotated use site.
type Site struct {
	ID       int      `json:"id"`
	Callable string   `json:"callable"`
	Kind     SiteKind `json:"kind"`

	// Label addresses the site within its callable: "param v", "let x",
	// "call consume arg 0", "match arm Some", "return". Repeated labels
	// get a "#n" suffix.
	Label string `json:"label"`

	Consequence ir.Consequence `json:"consequence"`

	// Mutable marks a declaration that needs a mutable binding.
	Mutable bool `json:"mutable,omitempty"`

	// Temp names the hoisted temporary for HoistTemporary sites.
	Temp string `json:"temp,omitempty"`

	// Bindings holds one consequence per pattern binding of an arm site.
	Bindings []ir.Consequence `json:"bindings,omitempty"`

	// Exactly one of Param and Node is set.
	Param *ir.Param `json:"-"`
	Node  ir.Node   `json:"-"`
}

func (s *Site) String() string {
	return fmt.Sprintf("%s: %s -> %s", s.Callable, s.Label, s.Consequence)
}

type argKey struct {
	call ir.Expr
	pos  int
}

// Unit is the planned output for one program: the annotated tree, its
// sites in deterministic walk order and the grouping decisions.
type Unit struct {
	Annotated *ir.Annotated
	Sites     []*Site

	params map[*ir.Param]*Site
	lets   map[*ir.Let]*Site
	args   map[argKey]*Site
	arms   map[*ir.MatchArm]*Site
	moves  map[ir.Expr]*Site
	parens map[ir.Expr]bool
}

func newUnit(a *ir.Annotated) *Unit {
	return &Unit{
		Annotated: a,
		params:    make(map[*ir.Param]*Site),
		lets:      make(map[*ir.Let]*Site),
		args:      make(map[argKey]*Site),
		arms:      make(map[*ir.MatchArm]*Site),
		moves:     make(map[ir.Expr]*Site),
		parens:    make(map[ir.Expr]bool),
	}
}

// Program returns the planned program.
func (u *Unit) Program() *ir.Program {
	return u.Annotated.Program
}

// ParamSite returns the declaration site of p.
func (u *Unit) ParamSite(p *ir.Param) *Site { return u.params[p] }

// LetSite returns the declaration site of l.
func (u *Unit) LetSite(l *ir.Let) *Site { return u.lets[l] }

// ArgSite returns the site of argument pos of a Call or MethodCall. The
// receiver of a method call is position 0.
func (u *Unit) ArgSite(call ir.Expr, pos int) *Site { return u.args[argKey{call, pos}] }

// ArmSite returns the site of a match arm.
func (u *Unit) ArmSite(arm *ir.MatchArm) *Site { return u.arms[arm] }

// MoveSite returns the site of a value moved into a return, a constructor
// field, an insert or an assignment. Only values reached through a binding
// have one.
func (u *Unit) MoveSite(value ir.Expr) *Site { return u.moves[value] }

// Parens reports whether e must be parenthesized where it appears as an
// operand.
func (u *Unit) Parens(e ir.Expr) bool { return u.parens[e] }

// Find returns the site with the given callable and label.
func (u *Unit) Find(callable, label string) (*Site, bool) {
	for _, s := range u.Sites {
		if s.Callable == callable && s.Label == label {
			return s, true
		}
	}
	return nil, false
}

// SitesOf returns the sites of one callable in walk order.
func (u *Unit) SitesOf(callable string) []*Site {
	var out []*Site
	for _, s := range u.Sites {
		if s.Callable == callable {
			out = append(out, s)
		}
	}
	return out
}

// Count returns how many sites carry consequence c.
func (u *Unit) Count(c ir.Consequence) int {
	n := 0
	for _, s := range u.Sites {
		if s.Consequence == c {
			n++
		}
	}
	return n
}
