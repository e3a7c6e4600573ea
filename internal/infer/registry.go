package infer

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/ownc/internal/ir"
)

// ErrForeignSignature is returned when a write would replace a foreign
// signature.
var ErrForeignSignature = errors.New("foreign signature is fixed")

// Registry maps callable names to access-mode signatures. A Registry is
// created fresh per compilation and passed explicitly; there is no global
// instance.
type Registry struct {
	sigs map[string]ir.CallableSignature

	// waiting marks parameter positions whose Owned mode is a placeholder:
	// the parameter is only forwarded to positions that are not resolved
	// yet. Entries always hold at least one true.
	waiting map[string][]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sigs:    make(map[string]ir.CallableSignature),
		waiting: make(map[string][]bool),
	}
}

// SeedForeign returns a registry holding exactly the program's foreign
// signatures.
func SeedForeign(prog *ir.Program) *Registry {
	r := NewRegistry()
	for _, f := range prog.Foreign {
		r.sigs[f.Name] = f.Signature()
	}
	return r
}

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		sigs:    make(map[string]ir.CallableSignature, len(r.sigs)),
		waiting: make(map[string][]bool, len(r.waiting)),
	}
	for k, v := range r.sigs {
		out.sigs[k] = v.Clone()
	}
	for k, v := range r.waiting {
		out.waiting[k] = slices.Clone(v)
	}
	return out
}

// Get returns the signature registered under name.
func (r *Registry) Get(name string) (ir.CallableSignature, bool) {
	sig, ok := r.sigs[name]
	return sig, ok
}

// Set registers sig under sig.Name with every position resolved. It
// refuses to replace a foreign entry with anything but an identical
// foreign entry.
func (r *Registry) Set(sig ir.CallableSignature) error {
	if cur, ok := r.sigs[sig.Name]; ok && cur.Foreign {
		if sig.Foreign && slices.Equal(cur.Params, sig.Params) {
			return nil
		}
		return fmt.Errorf("set %s: %w", sig.Name, ErrForeignSignature)
	}
	r.sigs[sig.Name] = sig.Clone()
	delete(r.waiting, sig.Name)
	return nil
}

// markWaiting flags the positions of name whose modes are placeholders.
func (r *Registry) markWaiting(name string, waiting []bool) {
	if !slices.Contains(waiting, true) {
		delete(r.waiting, name)
		return
	}
	r.waiting[name] = slices.Clone(waiting)
}

// Waiting reports whether position pos of callee holds a placeholder.
func (r *Registry) Waiting(callee string, pos int) bool {
	w := r.waiting[callee]
	return pos >= 0 && pos < len(w) && w[pos]
}

// Resolved is Mode for positions whose mode is final for this pass. A
// waiting position is reported as unknown.
func (r *Registry) Resolved(callee string, pos int) (ir.AccessMode, bool) {
	if r.Waiting(callee, pos) {
		return "", false
	}
	return r.Mode(callee, pos)
}

// settle accepts every placeholder as the final Owned mode and returns the
// affected names in sorted order.
func (r *Registry) settle() []string {
	names := make([]string, 0, len(r.waiting))
	for name := range r.waiting {
		names = append(names, name)
	}
	sort.Strings(names)
	clear(r.waiting)
	return names
}

// Mode returns the mode at argument position pos of callee. A position
// beyond the signature is Owned.
func (r *Registry) Mode(callee string, pos int) (ir.AccessMode, bool) {
	sig, ok := r.sigs[callee]
	if !ok {
		return "", false
	}
	if pos < 0 || pos >= len(sig.Params) {
		return ir.Owned, true
	}
	return sig.Params[pos], true
}

// Modes returns the parameter modes of name, or nil.
func (r *Registry) Modes(name string) []ir.AccessMode {
	sig, ok := r.sigs[name]
	if !ok {
		return nil
	}
	return append([]ir.AccessMode(nil), sig.Params...)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sigs))
	for n := range r.sigs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered signatures.
func (r *Registry) Len() int {
	return len(r.sigs)
}

// Signatures returns a copy of the underlying map.
func (r *Registry) Signatures() map[string]ir.CallableSignature {
	out := make(map[string]ir.CallableSignature, len(r.sigs))
	for k, v := range r.sigs {
		out[k] = v.Clone()
	}
	return out
}

// Equal reports whether both registries hold the same names with the same
// per-parameter mode sequences. Types, return modes and waiting marks are
// not compared.
func (r *Registry) Equal(o *Registry) bool {
	if len(r.sigs) != len(o.sigs) {
		return false
	}
	for name, sig := range r.sigs {
		other, ok := o.sigs[name]
		if !ok || !slices.Equal(sig.Params, other.Params) {
			return false
		}
	}
	return true
}

// Changed is the convergence test. It lists, in sorted order, the names
// whose mode sequences or waiting marks differ between r and o, including
// names present in only one of them.
func (r *Registry) Changed(o *Registry) []string {
	var changed []string
	for name, sig := range r.sigs {
		other, ok := o.sigs[name]
		if !ok || !slices.Equal(sig.Params, other.Params) || !slices.Equal(r.waiting[name], o.waiting[name]) {
			changed = append(changed, name)
		}
	}
	for name := range o.sigs {
		if _, ok := r.sigs[name]; !ok {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// Hash returns the content hash of the registry's modes.
func (r *Registry) Hash() (string, error) {
	return ir.RegistryHash(r.sigs)
}

// FromAnnotated rebuilds the final registry from an annotated program:
// foreign signatures plus one entry per callable with its resolved modes.
func FromAnnotated(a *ir.Annotated) *Registry {
	r := SeedForeign(a.Program)
	for _, c := range a.Program.Callables {
		modes := make([]ir.AccessMode, len(c.Params))
		for i, p := range c.Params {
			modes[i] = a.Mode(p)
		}
		// Validation rejects callables named like a foreign declaration
		// (E103); the foreign entry stays.
		_ = r.Set(ir.CallableSignature{
			Name:       c.Name,
			Params:     modes,
			Returns:    c.Returns,
			ReturnMode: returnMode(c.Returns),
			Method:     c.Method,
		})
	}
	return r
}
