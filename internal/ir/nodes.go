package ir

// Node is any element of a callable body. The set of implementations is
// closed: every type switch over Node, Stmt or Expr in this module lists all
// of them.
type Node interface {
	node()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Statements.

// Let declares a local binding. Type is optional.
type Let struct {
	Name  string
	Type  *Type
	Value Expr
}

// Assign stores Value into Target (an Ident, FieldAccess or Index).
type Assign struct {
	Target Expr
	Value  Expr
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	X Expr
}

// If is a two-way conditional. Else may be empty.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// While loops while Cond holds.
type While struct {
	Cond Expr
	Body []Stmt
}

// For iterates Var over the elements of Iter.
type For struct {
	Var  string
	Iter Expr
	Body []Stmt
}

// Match dispatches on the enum case of Subject.
type Match struct {
	Subject Expr
	Arms    []*MatchArm
}

// MatchArm is one pattern and its body. Arms are annotation sites, so
// they implement Node even though they are not statements.
type MatchArm struct {
	Pattern Pattern
	Body    []Stmt
}

// Pattern destructures an enum case. An empty Variant is the wildcard.
type Pattern struct {
	Variant  string
	Bindings []string
}

// Return leaves the callable. Value may be nil.
type Return struct {
	Value Expr
}

// Block is a nested scope.
type Block struct {
	Body []Stmt
}

// Expressions.

// Ident references a parameter or local.
type Ident struct {
	Name string
}

// LitKind is the kind of a literal.
type LitKind string

const (
	LitInt    LitKind = "int"
	LitFloat  LitKind = "float"
	LitString LitKind = "string"
	LitBool   LitKind = "bool"
)

// Literal is a constant. Value keeps the source spelling.
type Literal struct {
	Kind  LitKind
	Value string
}

// FieldAccess reads Target.Field.
type FieldAccess struct {
	Target Expr
	Field  string
}

// Index reads Target[Index].
type Index struct {
	Target Expr
	Index  Expr
}

// Binary applies an infix operator.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

// Unary applies a prefix operator.
type Unary struct {
	Op      string
	Operand Expr
}

// Call invokes a free callable by name.
type Call struct {
	Callee string
	Args   []Expr
}

// MethodCall invokes a receiver method. Callee is the qualified name the
// front end resolved ("Vec2.scale"); the receiver is argument position 0.
type MethodCall struct {
	Receiver Expr
	Method   string
	Callee   string
	Args     []Expr
}

// Construct builds an aggregate value.
type Construct struct {
	Type   string
	Fields []FieldInit
}

// FieldInit is one field of a Construct.
type FieldInit struct {
	Name  string
	Value Expr
}

// Insert moves Value into the collection Target.
type Insert struct {
	Target Expr
	Value  Expr
}

// Cast converts Value to a numeric type.
type Cast struct {
	Value Expr
	To    *Type
}

// Format builds a string from a template with "{}" holes.
type Format struct {
	Template string
	Args     []Expr
}

func (*Let) node()         {}
func (*Assign) node()      {}
func (*ExprStmt) node()    {}
func (*If) node()          {}
func (*While) node()       {}
func (*For) node()         {}
func (*Match) node()       {}
func (*MatchArm) node()    {}
func (*Return) node()      {}
func (*Block) node()       {}
func (*Ident) node()       {}
func (*Literal) node()     {}
func (*FieldAccess) node() {}
func (*Index) node()       {}
func (*Binary) node()      {}
func (*Unary) node()       {}
func (*Call) node()        {}
func (*MethodCall) node()  {}
func (*Construct) node()   {}
func (*Insert) node()      {}
func (*Cast) node()        {}
func (*Format) node()      {}

func (*Let) stmtNode()      {}
func (*Assign) stmtNode()   {}
func (*ExprStmt) stmtNode() {}
func (*If) stmtNode()       {}
func (*While) stmtNode()    {}
func (*For) stmtNode()      {}
func (*Match) stmtNode()    {}
func (*Return) stmtNode()   {}
func (*Block) stmtNode()    {}

func (*Ident) exprNode()       {}
func (*Literal) exprNode()     {}
func (*FieldAccess) exprNode() {}
func (*Index) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Call) exprNode()        {}
func (*MethodCall) exprNode()  {}
func (*Construct) exprNode()   {}
func (*Insert) exprNode()      {}
func (*Cast) exprNode()        {}
func (*Format) exprNode()      {}

// Operator classes.
var (
	comparisonOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}
	arithmeticOps = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true}
	bitwiseOps    = map[string]bool{"&": true, "|": true, "^": true, "<<": true, ">>": true}
	logicalOps    = map[string]bool{"&&": true, "||": true}
)

// IsComparison reports whether op compares its operands.
func IsComparison(op string) bool { return comparisonOps[op] }

// IsArithmetic reports whether op is +, -, *, / or %.
func IsArithmetic(op string) bool { return arithmeticOps[op] }

// IsBitwise reports whether op is a bitwise or shift operator.
func IsBitwise(op string) bool { return bitwiseOps[op] }

// IsLogical reports whether op is && or ||.
func IsLogical(op string) bool { return logicalOps[op] }

// IsKnownBinaryOp reports whether op is any supported infix operator.
func IsKnownBinaryOp(op string) bool {
	return IsComparison(op) || IsArithmetic(op) || IsBitwise(op) || IsLogical(op)
}

// Root returns the identifier at the base of a FieldAccess/Index chain.
func Root(e Expr) (*Ident, bool) {
	for {
		switch x := e.(type) {
		case *Ident:
			return x, true
		case *FieldAccess:
			e = x.Target
		case *Index:
			e = x.Target
		default:
			return nil, false
		}
	}
}

// IsIdent reports whether e is exactly the identifier name.
func IsIdent(e Expr, name string) bool {
	id, ok := e.(*Ident)
	return ok && id.Name == name
}

// CallArgs returns the argument list of a call site with the receiver of a
// method call at position 0, along with the callee name.
func CallArgs(e Expr) (string, []Expr, bool) {
	switch x := e.(type) {
	case *Call:
		return x.Callee, x.Args, true
	case *MethodCall:
		args := make([]Expr, 0, len(x.Args)+1)
		args = append(args, x.Receiver)
		args = append(args, x.Args...)
		return x.Callee, args, true
	}
	return "", nil, false
}
