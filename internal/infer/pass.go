package infer

import (
	"strings"

	"github.com/roach88/ownc/internal/ir"
	"github.com/roach88/ownc/internal/types"
)

// InferCallable computes the signature of c against the frozen snapshot.
// The returned verdicts are parallel to c.Params; explicitly tagged
// parameters are not classified and carry the zero Verdict.
func InferCallable(prog *ir.Program, c *ir.Callable, snapshot *Registry, oracle types.Oracle) (ir.CallableSignature, []ir.Verdict) {
	sig, verdicts, _ := inferCallable(prog, c, snapshot, oracle)
	return sig, verdicts
}

// inferCallable also reports, per parameter, whether the mode is only a
// placeholder because every use forwards it to an unresolved position.
func inferCallable(prog *ir.Program, c *ir.Callable, snapshot *Registry, oracle types.Oracle) (ir.CallableSignature, []ir.Verdict, []bool) {
	modes := make([]ir.AccessMode, len(c.Params))
	verdicts := make([]ir.Verdict, len(c.Params))
	waiting := make([]bool, len(c.Params))

	for i, p := range c.Params {
		if p.Tag.IsExplicit() {
			modes[i] = p.Tag.Mode
			continue
		}
		cl := classifyBinding(prog, c, p.Name, snapshot, oracle)
		v := cl.verdict()
		verdicts[i] = v
		modes[i] = resolveVerdict(v, snapshot)
		waiting[i] = cl.waiting()

		if v.Kind == ir.Mutated {
			continue
		}
		if i == 0 && c.Method && returnsReceiver(c) {
			modes[i] = ir.Owned
			continue
		}
		if types.KnownDuplicable(oracle, p.Type) {
			modes[i] = ir.Owned
		}
	}

	return ir.CallableSignature{
		Name:       c.Name,
		Params:     modes,
		Returns:    c.Returns,
		ReturnMode: returnMode(c.Returns),
		Method:     c.Method,
	}, verdicts, waiting
}

// resolveVerdict maps a verdict to a mode. A pass-through takes the mode
// the snapshot records for the callee position, or Owned when that
// position is not resolved yet.
func resolveVerdict(v ir.Verdict, snapshot *Registry) ir.AccessMode {
	switch v.Kind {
	case ir.ReadOnly:
		return ir.SharedRead
	case ir.Mutated:
		return ir.ExclusiveWrite
	case ir.PassThrough:
		if m, ok := snapshot.Resolved(v.Callee, v.Position); ok {
			return m
		}
		return ir.Owned
	}
	return ir.Owned
}

// returnsReceiver reports whether a method returns its own receiver's
// aggregate type. The receiver type comes from its declaration, or from
// the qualified method name when the receiver is untyped.
func returnsReceiver(c *ir.Callable) bool {
	ret := c.Returns.Deref()
	if ret == nil || ret.Kind != ir.KindNamed {
		return false
	}
	if ret.Name == "Self" {
		return true
	}
	if recv := c.Receiver(); recv != nil && recv.Type != nil {
		return recv.Type.Deref().Equal(ret)
	}
	owner, _, ok := strings.Cut(c.Name, ".")
	return ok && owner == ret.Name
}

func returnMode(t *ir.Type) ir.AccessMode {
	if t == nil {
		return ir.Owned
	}
	switch t.Kind {
	case ir.KindRef:
		return ir.SharedRead
	case ir.KindMutRef:
		return ir.ExclusiveWrite
	}
	return ir.Owned
}
