package ir

import "fmt"

// AccessMode classifies how a binding may be touched by the callable that
// receives it. The three modes are mutually exclusive and carry no implied
// ordering.
type AccessMode string

const (
	// SharedRead: the callable only reads the value.
	SharedRead AccessMode = "shared_read"

	// ExclusiveWrite: the callable mutates the value in place.
	ExclusiveWrite AccessMode = "exclusive_write"

	// Owned: the callable takes the value. This is the fallback whenever
	// analysis is inconclusive, since it is always memory-safe.
	Owned AccessMode = "owned"
)

// ValidAccessModes defines the allowed access mode strings.
var ValidAccessModes = map[AccessMode]bool{
	SharedRead:     true,
	ExclusiveWrite: true,
	Owned:          true,
}

// ParseAccessMode converts a mode string from source text.
func ParseAccessMode(s string) (AccessMode, error) {
	m := AccessMode(s)
	if !ValidAccessModes[m] {
		return "", fmt.Errorf("invalid access mode %q, must be \"shared_read\", \"exclusive_write\", or \"owned\"", s)
	}
	return m, nil
}

// TagKind distinguishes modes pinned by source text from inferred ones.
type TagKind int

const (
	// TagInferred is the zero value: the mode is left to inference.
	TagInferred TagKind = iota
	// TagExplicit means the source text pinned the mode.
	TagExplicit
)

// ModeTag is the {Explicit(mode) | Inferred} tag attached to a parameter by
// the front end. The zero value is Inferred.
type ModeTag struct {
	Kind TagKind    `json:"kind"`
	Mode AccessMode `json:"mode,omitempty"`
}

// Inferred returns the Inferred tag.
func Inferred() ModeTag {
	return ModeTag{Kind: TagInferred}
}

// Explicit returns a tag pinning the given mode.
func Explicit(m AccessMode) ModeTag {
	return ModeTag{Kind: TagExplicit, Mode: m}
}

// IsExplicit reports whether the source text pinned the mode.
func (t ModeTag) IsExplicit() bool {
	return t.Kind == TagExplicit
}

// VerdictKind is the usage classification of one binding in one body.
type VerdictKind string

const (
	Unused      VerdictKind = "unused"
	ReadOnly    VerdictKind = "read_only"
	Mutated     VerdictKind = "mutated"
	Consumed    VerdictKind = "consumed"
	PassThrough VerdictKind = "pass_through"
)

// Verdict is a UsageVerdict. Callee and Position are set only for
// PassThrough.
type Verdict struct {
	Kind     VerdictKind `json:"kind"`
	Callee   string      `json:"callee,omitempty"`
	Position int         `json:"position,omitempty"`
}

func (v Verdict) String() string {
	if v.Kind == PassThrough {
		return fmt.Sprintf("%s(%s, %d)", v.Kind, v.Callee, v.Position)
	}
	return string(v.Kind)
}

// Consequence is the textual transformation decided for one use site.
type Consequence string

const (
	NoOp              Consequence = "noop"
	InsertShared      Consequence = "insert_shared"
	InsertExclusive   Consequence = "insert_exclusive"
	InsertDuplicate   Consequence = "insert_duplicate"
	InsertDereference Consequence = "insert_dereference"
	HoistTemporary    Consequence = "hoist_temporary"
)

// DiagnosticKind categorizes non-fatal inference diagnostics.
type DiagnosticKind string

const (
	// DiagNotConverged: a callable's modes were still changing when the
	// pass ceiling was reached.
	DiagNotConverged DiagnosticKind = "NOT_CONVERGED"

	// DiagAborted: the caller cancelled between passes; the last completed
	// registry was returned.
	DiagAborted DiagnosticKind = "ABORTED"
)

// Diagnostic is a non-fatal inference outcome. It never blocks emission.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Callable string         `json:"callable,omitempty"`
	Passes   int            `json:"passes"`
	Message  string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Callable != "" {
		return fmt.Sprintf("%s(%s, %d): %s", d.Kind, d.Callable, d.Passes, d.Message)
	}
	return fmt.Sprintf("%s(%d): %s", d.Kind, d.Passes, d.Message)
}

// NotConverged builds a NotConverged diagnostic for one callable.
func NotConverged(callable string, passes int) Diagnostic {
	return Diagnostic{
		Kind:     DiagNotConverged,
		Callable: callable,
		Passes:   passes,
		Message:  fmt.Sprintf("access modes still changing after %d passes", passes),
	}
}

// Aborted builds an Aborted diagnostic.
func Aborted(passes int, cause error) Diagnostic {
	return Diagnostic{
		Kind:    DiagAborted,
		Passes:  passes,
		Message: fmt.Sprintf("inference stopped between passes: %v", cause),
	}
}
