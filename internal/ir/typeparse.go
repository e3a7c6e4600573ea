package ir

import (
	"fmt"
	"unicode"
)

// ParseType parses the source type grammar:
//
//	type  := "&" ["mut"] type | "(" [type {"," type}] ")" | ident ["<" type {"," type} ">"]
//
// Well-known names resolve to their kinds (String, Vec, Map, Option and the
// scalar primitives); every other identifier is a Named type.
func ParseType(s string) (*Type, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("type %q: unexpected %q at offset %d", s, p.src[p.pos:], p.pos)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseType(s string) *Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("type %q: expected %q at offset %d", p.src, c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != ':' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (*Type, error) {
	switch p.peek() {
	case '&':
		p.pos++
		save := p.pos
		if id := p.ident(); id == "mut" {
			inner, err := p.parse()
			if err != nil {
				return nil, err
			}
			return MutRefTo(inner), nil
		}
		p.pos = save
		inner, err := p.parse()
		if err != nil {
			return nil, err
		}
		return RefTo(inner), nil
	case '(':
		p.pos++
		var elems []*Type
		if p.peek() == ')' {
			p.pos++
			return TupleOf(), nil
		}
		for {
			elem, err := p.parse()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect(')'); err != nil {
				return nil, err
			}
			return TupleOf(elems...), nil
		}
	case 0:
		return nil, fmt.Errorf("type %q: unexpected end of input", p.src)
	}

	name := p.ident()
	if name == "" {
		return nil, fmt.Errorf("type %q: expected type name at offset %d", p.src, p.pos)
	}

	var args []*Type
	if p.peek() == '<' {
		p.pos++
		for {
			arg, err := p.parse()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek() == ',' {
				p.pos++
				continue
			}
			if err := p.expect('>'); err != nil {
				return nil, err
			}
			break
		}
	}

	return resolveTypeName(p.src, name, args)
}

func resolveTypeName(src, name string, args []*Type) (*Type, error) {
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("type %q: %s takes %d type argument(s), got %d", src, name, n, len(args))
		}
		return nil
	}

	switch {
	case IsPrimitiveName(name):
		if err := arity(0); err != nil {
			return nil, err
		}
		return Prim(name), nil
	case name == "String" || name == "string" || name == "str":
		if err := arity(0); err != nil {
			return nil, err
		}
		return StringType(), nil
	case name == "Vec" || name == "List":
		if err := arity(1); err != nil {
			return nil, err
		}
		return VecOf(args[0]), nil
	case name == "Map" || name == "HashMap":
		if err := arity(2); err != nil {
			return nil, err
		}
		return MapOf(args[0], args[1]), nil
	case name == "Option":
		if err := arity(1); err != nil {
			return nil, err
		}
		return OptionOf(args[0]), nil
	}
	return &Type{Kind: KindNamed, Name: name, Args: args}, nil
}
