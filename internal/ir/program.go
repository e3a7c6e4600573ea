package ir

// Program is one compilation unit as delivered by the front end.
// Callables are kept in declaration order; every pass iterates them in that
// order so inference is deterministic.
type Program struct {
	Name      string         `json:"name"`
	Types     []*TypeDecl    `json:"types,omitempty"`
	Callables []*Callable    `json:"callables"`
	Foreign   []*ForeignDecl `json:"foreign,omitempty"`
}

// Callable is a function or receiver method declaration.
type Callable struct {
	Name string `json:"name"` // "lenSq", or "Vec2.scale" for methods

	// Method marks a receiver method. The receiver is Params[0].
	Method bool `json:"method,omitempty"`

	Params  []*Param `json:"params"`
	Returns *Type    `json:"returns,omitempty"`
	Body    []Stmt   `json:"-"`
}

// Param is a parameter or receiver declaration.
type Param struct {
	Name string  `json:"name"`
	Type *Type   `json:"type,omitempty"`
	Tag  ModeTag `json:"tag"`
}

// ForeignDecl is a cross-boundary signature whose modes are given by the
// source text. Foreign signatures are never inferred or overwritten.
type ForeignDecl struct {
	Name       string       `json:"name"`
	Modes      []AccessMode `json:"modes"`
	Returns    *Type        `json:"returns,omitempty"`
	ReturnMode AccessMode   `json:"return_mode,omitempty"`
	Method     bool         `json:"method,omitempty"`
}

// CallableSignature is the access-mode signature of one callable.
type CallableSignature struct {
	Name       string       `json:"name"`
	Params     []AccessMode `json:"params"`
	Returns    *Type        `json:"returns,omitempty"`
	ReturnMode AccessMode   `json:"return_mode"`
	Method     bool         `json:"method,omitempty"`
	Foreign    bool         `json:"foreign,omitempty"`
}

// Clone returns a copy whose Params slice is not shared.
func (s CallableSignature) Clone() CallableSignature {
	out := s
	out.Params = append([]AccessMode(nil), s.Params...)
	return out
}

// Signature converts a foreign declaration into its fixed signature.
func (f *ForeignDecl) Signature() CallableSignature {
	ret := f.ReturnMode
	if ret == "" {
		ret = Owned
	}
	return CallableSignature{
		Name:       f.Name,
		Params:     append([]AccessMode(nil), f.Modes...),
		Returns:    f.Returns,
		ReturnMode: ret,
		Method:     f.Method,
		Foreign:    true,
	}
}

// Receiver returns the receiver parameter of a method, or nil.
func (c *Callable) Receiver() *Param {
	if !c.Method || len(c.Params) == 0 {
		return nil
	}
	return c.Params[0]
}

// Param looks up a parameter by name.
func (c *Callable) Param(name string) (*Param, int) {
	for i, p := range c.Params {
		if p.Name == name {
			return p, i
		}
	}
	return nil, -1
}

// Callable looks up a declared callable by name.
func (p *Program) Callable(name string) *Callable {
	for _, c := range p.Callables {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TypeDecl looks up a declared type by name.
func (p *Program) TypeDecl(name string) *TypeDecl {
	for _, d := range p.Types {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// ForeignDecl looks up a foreign declaration by name.
func (p *Program) ForeignDecl(name string) *ForeignDecl {
	for _, f := range p.Foreign {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Annotated is the program tree plus the per-parameter results of
// inference, attached by identity. The tree itself is shared, not copied.
type Annotated struct {
	Program  *Program
	Modes    map[*Param]AccessMode
	Verdicts map[*Param]Verdict
}

// NewAnnotated creates an empty annotation set over prog.
func NewAnnotated(prog *Program) *Annotated {
	return &Annotated{
		Program:  prog,
		Modes:    make(map[*Param]AccessMode),
		Verdicts: make(map[*Param]Verdict),
	}
}

// Mode returns the resolved mode of p, falling back to Owned.
func (a *Annotated) Mode(p *Param) AccessMode {
	if m, ok := a.Modes[p]; ok {
		return m
	}
	return Owned
}
