package ir

import "strings"

// TypeKind is the shape of a resolved type.
type TypeKind string

const (
	KindPrim   TypeKind = "prim"    // integers, floats, bool, char
	KindString TypeKind = "string"  // owned text
	KindNamed  TypeKind = "named"   // user-declared aggregate or enum
	KindTuple  TypeKind = "tuple"   // (A, B, ...)
	KindVec    TypeKind = "vec"     // Vec<T>
	KindMap    TypeKind = "map"     // Map<K, V>
	KindOption TypeKind = "option"  // Option<T>
	KindRef    TypeKind = "ref"     // &T
	KindMutRef TypeKind = "mut_ref" // &mut T
)

// Type is a resolved type reference. A nil *Type means the front end could
// not resolve the type statically.
type Type struct {
	Kind TypeKind `json:"kind"`
	Name string   `json:"name,omitempty"`
	Args []*Type  `json:"args,omitempty"`
}

// primitiveNames lists the scalar names the front end resolves to KindPrim.
var primitiveNames = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true, "bool": true, "char": true,
	"int": true, "uint": true, "float": true,
}

// IsPrimitiveName reports whether name is a scalar primitive.
func IsPrimitiveName(name string) bool {
	return primitiveNames[name]
}

// Prim returns a primitive type.
func Prim(name string) *Type { return &Type{Kind: KindPrim, Name: name} }

// StringType returns the owned string type.
func StringType() *Type { return &Type{Kind: KindString, Name: "String"} }

// Named returns a reference to a declared type.
func Named(name string) *Type { return &Type{Kind: KindNamed, Name: name} }

// VecOf returns Vec<elem>.
func VecOf(elem *Type) *Type { return &Type{Kind: KindVec, Name: "Vec", Args: []*Type{elem}} }

// MapOf returns Map<key, val>.
func MapOf(key, val *Type) *Type { return &Type{Kind: KindMap, Name: "Map", Args: []*Type{key, val}} }

// OptionOf returns Option<elem>.
func OptionOf(elem *Type) *Type { return &Type{Kind: KindOption, Name: "Option", Args: []*Type{elem}} }

// TupleOf returns (elems...).
func TupleOf(elems ...*Type) *Type { return &Type{Kind: KindTuple, Args: elems} }

// RefTo returns &elem.
func RefTo(elem *Type) *Type { return &Type{Kind: KindRef, Args: []*Type{elem}} }

// MutRefTo returns &mut elem.
func MutRefTo(elem *Type) *Type { return &Type{Kind: KindMutRef, Args: []*Type{elem}} }

// Elem returns the element type reached by indexing, unwrapping or
// dereferencing t. Returns nil when t has no element type.
func (t *Type) Elem() *Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case KindVec, KindOption, KindRef, KindMutRef:
		if len(t.Args) == 1 {
			return t.Args[0]
		}
	case KindMap:
		if len(t.Args) == 2 {
			return t.Args[1]
		}
	}
	return nil
}

// Deref strips reference layers.
func (t *Type) Deref() *Type {
	for t != nil && (t.Kind == KindRef || t.Kind == KindMutRef) {
		t = t.Elem()
	}
	return t
}

// Equal reports structural equality. Two unresolved types are never equal.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return false
	}
	if t.Kind != o.Kind || t.Name != o.Name || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// String renders t in the source type grammar accepted by ParseType.
func (t *Type) String() string {
	if t == nil {
		return "?"
	}
	switch t.Kind {
	case KindRef:
		return "&" + t.Elem().String()
	case KindMutRef:
		return "&mut " + t.Elem().String()
	case KindTuple:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// TypeDecl is a user-declared aggregate (Fields) or enum (Variants).
type TypeDecl struct {
	Name     string    `json:"name"`
	Fields   []Field   `json:"fields,omitempty"`
	Variants []Variant `json:"variants,omitempty"`

	// Duplicable is the type subsystem's verdict that values may be copied
	// implicitly (the source's derive-copy marker).
	Duplicable bool `json:"duplicable,omitempty"`
}

// Field is one named aggregate field.
type Field struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// Variant is one enum case with positional payload types.
type Variant struct {
	Name    string  `json:"name"`
	Payload []*Type `json:"payload,omitempty"`
}

// IsEnum reports whether the declaration is an enum.
func (d *TypeDecl) IsEnum() bool {
	return len(d.Variants) > 0
}

// FieldType returns the declared type of a field, or nil.
func (d *TypeDecl) FieldType(name string) *Type {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

// Variant looks up an enum case by name.
func (d *TypeDecl) Variant(name string) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i], true
		}
	}
	return nil, false
}
