package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ownc/internal/ir"
)

// CompileProgram parses a CUE value into a program tree.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: vec: { fn: lenSq: { ... } }`)
//	prog, err := CompileProgram(v.LookupPath(cue.ParsePath("program.vec")))
//
// Field order in the source is preserved: callables, parameters, fields and
// variants appear in the tree in the order they were written.
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	prog := &ir.Program{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		prog.Name = labels[len(labels)-1].Unquoted()
	}

	var err error
	if prog.Types, err = parseTypes(v); err != nil {
		return nil, err
	}
	if prog.Foreign, err = parseForeign(v); err != nil {
		return nil, err
	}
	if prog.Callables, err = parseCallables(v); err != nil {
		return nil, err
	}
	if len(prog.Callables) == 0 {
		return nil, &CompileError{
			Field:   "fn",
			Message: "at least one callable is required",
			Pos:     v.Pos(),
		}
	}
	return prog, nil
}

// ProgramsIn compiles every program declared under the top-level
// "program" field of v, in source order.
func ProgramsIn(v cue.Value) ([]*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	root := v.LookupPath(cue.ParsePath("program"))
	if !root.Exists() {
		return nil, &CompileError{Field: "program", Message: "no programs declared", Pos: v.Pos()}
	}
	_, values, err := fields(root)
	if err != nil {
		return nil, err
	}
	progs := make([]*ir.Program, 0, len(values))
	for _, pv := range values {
		prog, err := CompileProgram(pv)
		if err != nil {
			return nil, err
		}
		progs = append(progs, prog)
	}
	return progs, nil
}

// CompileSource compiles a single CUE file's text and returns its programs.
func CompileSource(src []byte, filename string) ([]*ir.Program, error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return ProgramsIn(v)
}

// lookup finds a direct field by label. Labels are compared unquoted so
// that keywords such as "if" and "for" can be used as keys.
func lookup(v cue.Value, name string) (cue.Value, bool) {
	iter, err := v.Fields()
	if err != nil {
		return cue.Value{}, false
	}
	for iter.Next() {
		if iter.Selector().Unquoted() == name {
			return iter.Value(), true
		}
	}
	return cue.Value{}, false
}

// fields returns the labels and values of a struct in source order.
func fields(v cue.Value) ([]string, []cue.Value, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}
	var names []string
	var values []cue.Value
	for iter.Next() {
		names = append(names, iter.Selector().Unquoted())
		values = append(values, iter.Value())
	}
	return names, values, nil
}

func list(v cue.Value) ([]cue.Value, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []cue.Value
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out, nil
}

func stringField(v cue.Value, name, path string) (string, bool, error) {
	f, ok := lookup(v, name)
	if !ok {
		return "", false, nil
	}
	s, err := f.String()
	if err != nil {
		return "", true, &CompileError{Field: path, Message: "must be a string", Pos: f.Pos()}
	}
	return s, true, nil
}

func boolField(v cue.Value, name, path string) (bool, error) {
	f, ok := lookup(v, name)
	if !ok {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, &CompileError{Field: path, Message: "must be a bool", Pos: f.Pos()}
	}
	return b, nil
}

// typeField parses an optional type string. A missing field leaves the
// type unresolved.
func typeField(v cue.Value, name, path string) (*ir.Type, error) {
	s, ok, err := stringField(v, name, path)
	if err != nil || !ok {
		return nil, err
	}
	return parseType(s, path, v.Pos())
}

func parseType(s, path string, pos token.Pos) (*ir.Type, error) {
	t, err := ir.ParseType(s)
	if err != nil {
		return nil, &CompileError{Field: path, Message: err.Error(), Pos: pos}
	}
	return t, nil
}

// parseTypes extracts type declarations:
//
//	types: Vec2: { fields: { x: "f64", y: "f64" }, duplicable: true }
//	types: Shape: { variants: { Circle: ["f64"], Empty: [] } }
func parseTypes(v cue.Value) ([]*ir.TypeDecl, error) {
	typesVal, ok := lookup(v, "types")
	if !ok {
		return nil, nil
	}
	names, values, err := fields(typesVal)
	if err != nil {
		return nil, err
	}

	decls := make([]*ir.TypeDecl, 0, len(names))
	for i, name := range names {
		tv := values[i]
		path := "types." + name
		d := &ir.TypeDecl{Name: name}

		if d.Duplicable, err = boolField(tv, "duplicable", path+".duplicable"); err != nil {
			return nil, err
		}

		if fv, ok := lookup(tv, "fields"); ok {
			fnames, fvals, err := fields(fv)
			if err != nil {
				return nil, err
			}
			for j, fname := range fnames {
				s, err := fvals[j].String()
				if err != nil {
					return nil, &CompileError{Field: path + ".fields." + fname, Message: "field type must be a string", Pos: fvals[j].Pos()}
				}
				t, err := parseType(s, path+".fields."+fname, fvals[j].Pos())
				if err != nil {
					return nil, err
				}
				d.Fields = append(d.Fields, ir.Field{Name: fname, Type: t})
			}
		}

		if vv, ok := lookup(tv, "variants"); ok {
			vnames, vvals, err := fields(vv)
			if err != nil {
				return nil, err
			}
			for j, vname := range vnames {
				vpath := path + ".variants." + vname
				payload, err := typeList(vvals[j], vpath)
				if err != nil {
					return nil, err
				}
				d.Variants = append(d.Variants, ir.Variant{Name: vname, Payload: payload})
			}
		}

		if len(d.Fields) > 0 && len(d.Variants) > 0 {
			return nil, &CompileError{Field: path, Message: "a type has either fields or variants, not both", Pos: tv.Pos()}
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func typeList(v cue.Value, path string) ([]*ir.Type, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	var out []*ir.Type
	for k, item := range items {
		s, err := item.String()
		if err != nil {
			return nil, &CompileError{Field: fmt.Sprintf("%s[%d]", path, k), Message: "type must be a string", Pos: item.Pos()}
		}
		t, err := parseType(s, fmt.Sprintf("%s[%d]", path, k), item.Pos())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseForeign extracts boundary signatures:
//
//	foreign: log: { params: ["shared_read"] }
//	foreign: "Vec.push": { params: ["exclusive_write", "owned"], method: true }
func parseForeign(v cue.Value) ([]*ir.ForeignDecl, error) {
	fv, ok := lookup(v, "foreign")
	if !ok {
		return nil, nil
	}
	names, values, err := fields(fv)
	if err != nil {
		return nil, err
	}

	out := make([]*ir.ForeignDecl, 0, len(names))
	for i, name := range names {
		path := "foreign." + name
		d := &ir.ForeignDecl{Name: name}

		if pv, ok := lookup(values[i], "params"); ok {
			items, err := list(pv)
			if err != nil {
				return nil, err
			}
			for k, item := range items {
				s, err := item.String()
				if err != nil {
					return nil, &CompileError{Field: fmt.Sprintf("%s.params[%d]", path, k), Message: "mode must be a string", Pos: item.Pos()}
				}
				m, err := ir.ParseAccessMode(s)
				if err != nil {
					return nil, &CompileError{Field: fmt.Sprintf("%s.params[%d]", path, k), Message: err.Error(), Pos: item.Pos()}
				}
				d.Modes = append(d.Modes, m)
			}
		}
		if d.Returns, err = typeField(values[i], "returns", path+".returns"); err != nil {
			return nil, err
		}
		if s, ok, err := stringField(values[i], "return_mode", path+".return_mode"); err != nil {
			return nil, err
		} else if ok {
			if d.ReturnMode, err = ir.ParseAccessMode(s); err != nil {
				return nil, &CompileError{Field: path + ".return_mode", Message: err.Error(), Pos: values[i].Pos()}
			}
		}
		if d.Method, err = boolField(values[i], "method", path+".method"); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// parseCallables extracts callable definitions:
//
//	fn: lenSq: {
//		params: [{name: "v", type: "Vec2"}]
//		returns: "f64"
//		body: [{"return": {bin: "+", l: "v.x", r: "v.y"}}]
//	}
func parseCallables(v cue.Value) ([]*ir.Callable, error) {
	fv, ok := lookup(v, "fn")
	if !ok {
		return nil, nil
	}
	names, values, err := fields(fv)
	if err != nil {
		return nil, err
	}

	out := make([]*ir.Callable, 0, len(names))
	for i, name := range names {
		path := "fn." + name
		cv := values[i]
		c := &ir.Callable{Name: name}

		if c.Method, err = boolField(cv, "method", path+".method"); err != nil {
			return nil, err
		}
		if c.Returns, err = typeField(cv, "returns", path+".returns"); err != nil {
			return nil, err
		}
		if pv, ok := lookup(cv, "params"); ok {
			items, err := list(pv)
			if err != nil {
				return nil, err
			}
			for k, item := range items {
				p, err := parseParam(item, fmt.Sprintf("%s.params[%d]", path, k))
				if err != nil {
					return nil, err
				}
				c.Params = append(c.Params, p)
			}
		}
		if bv, ok := lookup(cv, "body"); ok {
			if c.Body, err = parseBody(bv, path+".body"); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func parseParam(v cue.Value, path string) (*ir.Param, error) {
	name, ok, err := stringField(v, "name", path+".name")
	if err != nil {
		return nil, err
	}
	if !ok || name == "" {
		return nil, &CompileError{Field: path + ".name", Message: "parameter name is required", Pos: v.Pos()}
	}
	p := &ir.Param{Name: name}
	if p.Type, err = typeField(v, "type", path+".type"); err != nil {
		return nil, err
	}
	mode, ok, err := stringField(v, "mode", path+".mode")
	if err != nil {
		return nil, err
	}
	if ok {
		m, err := ir.ParseAccessMode(mode)
		if err != nil {
			return nil, &CompileError{Field: path + ".mode", Message: err.Error(), Pos: v.Pos()}
		}
		p.Tag = ir.Explicit(m)
	}
	return p, nil
}

func parseBody(v cue.Value, path string) ([]ir.Stmt, error) {
	items, err := list(v)
	if err != nil {
		return nil, err
	}
	out := make([]ir.Stmt, 0, len(items))
	for k, item := range items {
		s, err := parseStmt(item, fmt.Sprintf("%s[%d]", path, k))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// stmtKeys are the discriminating keys of statement structs.
var stmtKeys = []string{"let", "assign", "expr", "if", "while", "for", "match", "return", "block"}

// exprKeys are the discriminating keys of expression structs.
var exprKeys = []string{"str", "float", "call", "method", "bin", "un", "index", "new", "insert", "cast", "format", "field"}

// discriminator returns the single key of keys present in v.
func discriminator(v cue.Value, keys []string, what, path string) (string, error) {
	found := ""
	for _, k := range keys {
		if _, ok := lookup(v, k); !ok {
			continue
		}
		if found != "" {
			return "", &CompileError{Field: path, Message: fmt.Sprintf("ambiguous %s: both %q and %q present", what, found, k), Pos: v.Pos()}
		}
		found = k
	}
	if found == "" {
		return "", &CompileError{Field: path, Message: fmt.Sprintf("%s must have one of: %s", what, strings.Join(keys, ", ")), Pos: v.Pos()}
	}
	return found, nil
}

func parseStmt(v cue.Value, path string) (ir.Stmt, error) {
	// A bare "return" returns nothing.
	if s, err := v.String(); err == nil {
		if s == "return" {
			return &ir.Return{}, nil
		}
		return nil, &CompileError{Field: path, Message: fmt.Sprintf("unknown statement %q", s), Pos: v.Pos()}
	}

	key, err := discriminator(v, stmtKeys, "statement", path)
	if err != nil {
		return nil, err
	}
	kv, _ := lookup(v, key)
	sub := path + "." + key

	switch key {
	case "let":
		name, err := kv.String()
		if err != nil {
			return nil, &CompileError{Field: sub, Message: "let name must be a string", Pos: kv.Pos()}
		}
		s := &ir.Let{Name: name}
		if s.Type, err = typeField(v, "type", path+".type"); err != nil {
			return nil, err
		}
		if s.Value, err = requiredExpr(v, "value", path); err != nil {
			return nil, err
		}
		return s, nil

	case "assign":
		target, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		value, err := requiredExpr(v, "value", path)
		if err != nil {
			return nil, err
		}
		return &ir.Assign{Target: target, Value: value}, nil

	case "expr":
		x, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		return &ir.ExprStmt{X: x}, nil

	case "if":
		cond, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		s := &ir.If{Cond: cond}
		if s.Then, err = optionalBody(v, "then", path); err != nil {
			return nil, err
		}
		if s.Else, err = optionalBody(v, "else", path); err != nil {
			return nil, err
		}
		return s, nil

	case "while":
		cond, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		body, err := optionalBody(v, "body", path)
		if err != nil {
			return nil, err
		}
		return &ir.While{Cond: cond, Body: body}, nil

	case "for":
		name, err := kv.String()
		if err != nil {
			return nil, &CompileError{Field: sub, Message: "loop variable must be a string", Pos: kv.Pos()}
		}
		iter, err := requiredExpr(v, "over", path)
		if err != nil {
			return nil, err
		}
		body, err := optionalBody(v, "body", path)
		if err != nil {
			return nil, err
		}
		return &ir.For{Var: name, Iter: iter, Body: body}, nil

	case "match":
		subject, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		av, ok := lookup(v, "arms")
		if !ok {
			return nil, &CompileError{Field: path + ".arms", Message: "match arms are required", Pos: v.Pos()}
		}
		items, err := list(av)
		if err != nil {
			return nil, err
		}
		m := &ir.Match{Subject: subject}
		for k, item := range items {
			arm, err := parseArm(item, fmt.Sprintf("%s.arms[%d]", path, k))
			if err != nil {
				return nil, err
			}
			m.Arms = append(m.Arms, arm)
		}
		return m, nil

	case "return":
		if kv.IncompleteKind() == cue.NullKind {
			return &ir.Return{}, nil
		}
		x, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		return &ir.Return{Value: x}, nil

	case "block":
		body, err := parseBody(kv, sub)
		if err != nil {
			return nil, err
		}
		return &ir.Block{Body: body}, nil
	}
	return nil, &CompileError{Field: path, Message: "unknown statement", Pos: v.Pos()}
}

func optionalBody(v cue.Value, name, path string) ([]ir.Stmt, error) {
	bv, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}
	return parseBody(bv, path+"."+name)
}

func requiredExpr(v cue.Value, name, path string) (ir.Expr, error) {
	ev, ok := lookup(v, name)
	if !ok {
		return nil, &CompileError{Field: path + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return parseExpr(ev, path+"."+name)
}

// parseArm parses {"case": "Some(x)", body: [...]}. The case is a variant
// name with optional bindings, or "_".
func parseArm(v cue.Value, path string) (*ir.MatchArm, error) {
	c, ok, err := stringField(v, "case", path+".case")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{Field: path + ".case", Message: "arm case is required", Pos: v.Pos()}
	}
	pattern, err := parsePattern(c)
	if err != nil {
		return nil, &CompileError{Field: path + ".case", Message: err.Error(), Pos: v.Pos()}
	}
	body, err := optionalBody(v, "body", path)
	if err != nil {
		return nil, err
	}
	return &ir.MatchArm{Pattern: pattern, Body: body}, nil
}

func parsePattern(s string) (ir.Pattern, error) {
	s = strings.TrimSpace(s)
	if s == "_" {
		return ir.Pattern{}, nil
	}
	name, rest, hasArgs := strings.Cut(s, "(")
	name = strings.TrimSpace(name)
	if !isIdentifier(name) {
		return ir.Pattern{}, fmt.Errorf("invalid pattern %q", s)
	}
	p := ir.Pattern{Variant: name}
	if !hasArgs {
		return p, nil
	}
	inner, ok := strings.CutSuffix(strings.TrimSpace(rest), ")")
	if !ok {
		return ir.Pattern{}, fmt.Errorf("invalid pattern %q: missing )", s)
	}
	for _, b := range strings.Split(inner, ",") {
		b = strings.TrimSpace(b)
		if !isIdentifier(b) {
			return ir.Pattern{}, fmt.Errorf("invalid binding %q in pattern %q", b, s)
		}
		p.Bindings = append(p.Bindings, b)
	}
	return p, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// parseExpr parses an expression. Strings are identifiers or dotted paths,
// integers and booleans are literals, and structs are discriminated by key.
func parseExpr(v cue.Value, path string) (ir.Expr, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return parsePath(s, path, v.Pos())
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &ir.Literal{Kind: ir.LitInt, Value: fmt.Sprint(n)}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &ir.Literal{Kind: ir.LitBool, Value: fmt.Sprint(b)}, nil
	case cue.StructKind:
		return parseExprStruct(v, path)
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{Field: path, Message: `float literals are written {float: "1.5"}`, Pos: v.Pos()}
	}
	return nil, &CompileError{Field: path, Message: fmt.Sprintf("unsupported expression kind: %v", v.IncompleteKind()), Pos: v.Pos()}
}

func parsePath(s, path string, pos token.Pos) (ir.Expr, error) {
	parts := strings.Split(s, ".")
	if !isIdentifier(parts[0]) {
		return nil, &CompileError{Field: path, Message: fmt.Sprintf("invalid identifier %q", s), Pos: pos}
	}
	var e ir.Expr = &ir.Ident{Name: parts[0]}
	for _, f := range parts[1:] {
		if f == "" {
			return nil, &CompileError{Field: path, Message: fmt.Sprintf("empty field in %q", s), Pos: pos}
		}
		e = &ir.FieldAccess{Target: e, Field: f}
	}
	return e, nil
}

func parseExprStruct(v cue.Value, path string) (ir.Expr, error) {
	key, err := discriminator(v, exprKeys, "expression", path)
	if err != nil {
		return nil, err
	}
	kv, _ := lookup(v, key)
	sub := path + "." + key

	str := func() (string, error) {
		s, err := kv.String()
		if err != nil {
			return "", &CompileError{Field: sub, Message: "must be a string", Pos: kv.Pos()}
		}
		return s, nil
	}
	args := func() ([]ir.Expr, error) {
		av, ok := lookup(v, "args")
		if !ok {
			return nil, nil
		}
		items, err := list(av)
		if err != nil {
			return nil, err
		}
		out := make([]ir.Expr, 0, len(items))
		for k, item := range items {
			a, err := parseExpr(item, fmt.Sprintf("%s.args[%d]", path, k))
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}

	switch key {
	case "str":
		s, err := str()
		if err != nil {
			return nil, err
		}
		return &ir.Literal{Kind: ir.LitString, Value: s}, nil

	case "float":
		s, err := str()
		if err != nil {
			return nil, err
		}
		return &ir.Literal{Kind: ir.LitFloat, Value: s}, nil

	case "call":
		callee, err := str()
		if err != nil {
			return nil, err
		}
		as, err := args()
		if err != nil {
			return nil, err
		}
		return &ir.Call{Callee: callee, Args: as}, nil

	case "method":
		callee, err := str()
		if err != nil {
			return nil, err
		}
		recv, err := requiredExpr(v, "recv", path)
		if err != nil {
			return nil, err
		}
		as, err := args()
		if err != nil {
			return nil, err
		}
		method := callee
		if i := strings.LastIndexByte(callee, '.'); i >= 0 {
			method = callee[i+1:]
		}
		return &ir.MethodCall{Receiver: recv, Method: method, Callee: callee, Args: as}, nil

	case "bin":
		op, err := str()
		if err != nil {
			return nil, err
		}
		if !ir.IsKnownBinaryOp(op) {
			return nil, &CompileError{Field: sub, Message: fmt.Sprintf("unknown operator %q", op), Pos: kv.Pos()}
		}
		l, err := requiredExpr(v, "l", path)
		if err != nil {
			return nil, err
		}
		r, err := requiredExpr(v, "r", path)
		if err != nil {
			return nil, err
		}
		return &ir.Binary{Op: op, Left: l, Right: r}, nil

	case "un":
		op, err := str()
		if err != nil {
			return nil, err
		}
		x, err := requiredExpr(v, "x", path)
		if err != nil {
			return nil, err
		}
		return &ir.Unary{Op: op, Operand: x}, nil

	case "index":
		target, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		at, err := requiredExpr(v, "at", path)
		if err != nil {
			return nil, err
		}
		return &ir.Index{Target: target, Index: at}, nil

	case "field":
		name, err := str()
		if err != nil {
			return nil, err
		}
		of, err := requiredExpr(v, "of", path)
		if err != nil {
			return nil, err
		}
		return &ir.FieldAccess{Target: of, Field: name}, nil

	case "new":
		typ, err := str()
		if err != nil {
			return nil, err
		}
		c := &ir.Construct{Type: typ}
		if fv, ok := lookup(v, "fields"); ok {
			names, values, err := fields(fv)
			if err != nil {
				return nil, err
			}
			for k, name := range names {
				x, err := parseExpr(values[k], path+".fields."+name)
				if err != nil {
					return nil, err
				}
				c.Fields = append(c.Fields, ir.FieldInit{Name: name, Value: x})
			}
		}
		return c, nil

	case "insert":
		target, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		value, err := requiredExpr(v, "value", path)
		if err != nil {
			return nil, err
		}
		return &ir.Insert{Target: target, Value: value}, nil

	case "cast":
		x, err := parseExpr(kv, sub)
		if err != nil {
			return nil, err
		}
		to, err := typeField(v, "to", path+".to")
		if err != nil {
			return nil, err
		}
		return &ir.Cast{Value: x, To: to}, nil

	case "format":
		tmpl, err := str()
		if err != nil {
			return nil, err
		}
		as, err := args()
		if err != nil {
			return nil, err
		}
		return &ir.Format{Template: tmpl, Args: as}, nil
	}
	return nil, &CompileError{Field: path, Message: "unknown expression", Pos: v.Pos()}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
