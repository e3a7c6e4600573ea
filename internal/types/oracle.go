package types

import "github.com/roach88/ownc/internal/ir"

// Oracle reports whether values of a resolved type may be implicitly
// duplicated without an explicit operation. known is false when the type
// is unresolved or undeclared; dup is then meaningless.
type Oracle interface {
	IsDuplicable(t *ir.Type) (dup, known bool)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(t *ir.Type) (dup, known bool)

// IsDuplicable calls f(t).
func (f OracleFunc) IsDuplicable(t *ir.Type) (bool, bool) {
	return f(t)
}

// TableOracle is the default oracle backed by the program's type
// declarations.
//
// Duplicable: scalar primitives, shared references, tuples and options of
// duplicable types, declared types marked duplicable, and enums whose
// variants carry no payload. Not duplicable: strings, vectors, maps,
// exclusive references, and any other declared type.
type TableOracle struct {
	decls map[string]*ir.TypeDecl
}

// NewTableOracle builds an oracle over the given declarations.
func NewTableOracle(decls []*ir.TypeDecl) *TableOracle {
	m := make(map[string]*ir.TypeDecl, len(decls))
	for _, d := range decls {
		m[d.Name] = d
	}
	return &TableOracle{decls: m}
}

// ForProgram builds an oracle over a program's declared types.
func ForProgram(p *ir.Program) *TableOracle {
	return NewTableOracle(p.Types)
}

// IsDuplicable implements Oracle.
func (o *TableOracle) IsDuplicable(t *ir.Type) (bool, bool) {
	if t == nil {
		return false, false
	}
	switch t.Kind {
	case ir.KindPrim, ir.KindRef:
		return true, true
	case ir.KindString, ir.KindVec, ir.KindMap, ir.KindMutRef:
		return false, true
	case ir.KindOption:
		return o.IsDuplicable(t.Elem())
	case ir.KindTuple:
		return o.all(t.Args)
	case ir.KindNamed:
		d, ok := o.decls[t.Name]
		if !ok {
			return false, false
		}
		if d.Duplicable {
			return true, true
		}
		if d.IsEnum() {
			for _, v := range d.Variants {
				if len(v.Payload) > 0 {
					return false, true
				}
			}
			return true, true
		}
		return false, true
	}
	return false, false
}

// all combines element answers: any known non-duplicable element decides
// false, otherwise any unknown element makes the whole unknown.
func (o *TableOracle) all(elems []*ir.Type) (bool, bool) {
	unknown := false
	for _, e := range elems {
		dup, known := o.IsDuplicable(e)
		if !known {
			unknown = true
			continue
		}
		if !dup {
			return false, true
		}
	}
	if unknown {
		return false, false
	}
	return true, true
}

// KnownDuplicable is true only when the oracle positively answers yes.
func KnownDuplicable(o Oracle, t *ir.Type) bool {
	dup, known := o.IsDuplicable(t)
	return known && dup
}

// KnownNonDuplicable is true only when the oracle positively answers no.
func KnownNonDuplicable(o Oracle, t *ir.Type) bool {
	dup, known := o.IsDuplicable(t)
	return known && !dup
}
