package compiler

import (
	"fmt"

	"github.com/roach88/ownc/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrNilProgram = "E100" // nothing to validate

	// Program errors (E101-E109)
	ErrDuplicateCallable = "E101" // callable declared twice
	ErrDuplicateParam    = "E102" // parameter name repeated in one callable
	ErrForeignCollision  = "E103" // foreign declaration shadows a declared callable
	ErrUnknownType       = "E104" // named type is not declared
	ErrMissingReceiver   = "E105" // method has no receiver parameter
	ErrArityMismatch     = "E106" // call passes the wrong number of arguments
	ErrUnknownVariant    = "E107" // pattern names an undeclared enum variant
	ErrDuplicateType     = "E108" // type declared twice
)

// builtinVariants may appear in patterns without a declaring enum.
var builtinVariants = map[string]int{"Some": 1, "None": 0, "Ok": 1, "Err": 1}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled program before inference.
// Returns all errors found (does not fail-fast).
func Validate(prog *ir.Program) []ValidationError {
	if prog == nil {
		return []ValidationError{{
			Field:   "program",
			Message: "program is nil",
			Code:    ErrNilProgram,
		}}
	}

	v := &validator{prog: prog}
	v.types()
	v.foreign()
	v.callables()
	return v.errs
}

type validator struct {
	prog *ir.Program
	errs []ValidationError
}

func (v *validator) add(code, field, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

// checkType reports every named type under t that the program does not
// declare.
func (v *validator) checkType(t *ir.Type, field string) {
	if t == nil {
		return
	}
	if t.Kind == ir.KindNamed && v.prog.TypeDecl(t.Name) == nil {
		v.add(ErrUnknownType, field, "unknown type %q", t.Name)
	}
	for _, a := range t.Args {
		v.checkType(a, field)
	}
}

func (v *validator) types() {
	seen := make(map[string]bool)
	for _, d := range v.prog.Types {
		path := "types." + d.Name
		if seen[d.Name] {
			v.add(ErrDuplicateType, path, "type %q declared more than once", d.Name)
		}
		seen[d.Name] = true
		for _, f := range d.Fields {
			v.checkType(f.Type, path+".fields."+f.Name)
		}
		for _, vr := range d.Variants {
			for i, t := range vr.Payload {
				v.checkType(t, fmt.Sprintf("%s.variants.%s[%d]", path, vr.Name, i))
			}
		}
	}
}

func (v *validator) foreign() {
	seen := make(map[string]bool)
	for _, f := range v.prog.Foreign {
		path := "foreign." + f.Name
		// E103: a callable is either inferred or given, never both
		if v.prog.Callable(f.Name) != nil {
			v.add(ErrForeignCollision, path, "foreign declaration %q collides with a declared callable", f.Name)
		}
		if seen[f.Name] {
			v.add(ErrDuplicateCallable, path, "duplicate foreign declaration: %q", f.Name)
		}
		seen[f.Name] = true
		// E105: a foreign method needs a mode for its receiver
		if f.Method && len(f.Modes) == 0 {
			v.add(ErrMissingReceiver, path+".params", "foreign method %q has no receiver mode", f.Name)
		}
		v.checkType(f.Returns, path+".returns")
	}
}

func (v *validator) callables() {
	seen := make(map[string]bool)
	for _, c := range v.prog.Callables {
		path := "fn." + c.Name

		// E101: duplicate callable name
		if seen[c.Name] {
			v.add(ErrDuplicateCallable, path, "duplicate callable name: %q", c.Name)
		}
		seen[c.Name] = true

		// E105: receiver is Params[0]
		if c.Method && len(c.Params) == 0 {
			v.add(ErrMissingReceiver, path+".params", "method %q has no receiver parameter", c.Name)
		}

		params := make(map[string]bool)
		for i, p := range c.Params {
			field := fmt.Sprintf("%s.params[%d]", path, i)
			// E102: duplicate parameter name
			if params[p.Name] {
				v.add(ErrDuplicateParam, field, "duplicate parameter name: %q", p.Name)
			}
			params[p.Name] = true
			v.checkType(p.Type, field+".type")
		}
		v.checkType(c.Returns, path+".returns")

		ir.InspectBody(c.Body, func(n ir.Node) bool {
			v.node(path+".body", n)
			return true
		})
	}
}

func (v *validator) node(path string, n ir.Node) {
	switch x := n.(type) {
	case *ir.Let:
		v.checkType(x.Type, path+": let "+x.Name)
	case *ir.Cast:
		v.checkType(x.To, path+": cast")
	case *ir.Construct:
		if v.prog.TypeDecl(x.Type) == nil {
			v.add(ErrUnknownType, path, "construct of unknown type %q", x.Type)
		}
	case *ir.Call:
		v.arity(path, x.Callee, len(x.Args))
	case *ir.MethodCall:
		v.arity(path, x.Callee, len(x.Args)+1)
	case *ir.MatchArm:
		v.pattern(path, x.Pattern)
	}
}

// arity checks calls to callees whose parameter lists are known. Calls to
// unknown callees are left to the owned fallback.
func (v *validator) arity(path, callee string, got int) {
	want := -1
	if c := v.prog.Callable(callee); c != nil {
		want = len(c.Params)
	} else if f := v.prog.ForeignDecl(callee); f != nil {
		want = len(f.Modes)
	}
	if want >= 0 && want != got {
		v.add(ErrArityMismatch, path, "call to %q passes %d arguments, want %d", callee, got, want)
	}
}

func (v *validator) pattern(path string, p ir.Pattern) {
	if p.Variant == "" {
		return
	}
	want, ok := builtinVariants[p.Variant]
	if !ok {
		want = -1
		for _, d := range v.prog.Types {
			if vr, found := d.Variant(p.Variant); found {
				want = len(vr.Payload)
				break
			}
		}
	}
	if want < 0 {
		v.add(ErrUnknownVariant, path, "pattern names undeclared variant %q", p.Variant)
		return
	}
	if len(p.Bindings) != 0 && len(p.Bindings) != want {
		v.add(ErrUnknownVariant, path, "pattern %s binds %d values, variant carries %d", p.Variant, len(p.Bindings), want)
	}
}
