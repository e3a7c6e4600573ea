package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/roach88/ownc/internal/compiler"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Expectation kind for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Detail   string // Dumped state for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Detail != "" {
		fmt.Fprintf(&buf, "\nDetail:\n%s", e.Detail)
	}
	return buf.String()
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func dump(vs ...any) string {
	return dumper.Sdump(vs...)
}

// EvaluateExpectations checks a compilation against a scenario's
// expectations. Returns a slice of error messages for failed checks.
func EvaluateExpectations(result *Result, comp *compiler.Compilation, scenario *Scenario) []string {
	var errors []string
	add := func(err error) {
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	exp := scenario.Expect
	add(assertConvergence(result, exp))
	add(assertPassBound(result, exp))
	for _, callable := range sortedKeys(exp.Modes) {
		add(assertModes(result, callable, exp.Modes[callable]))
	}
	for _, c := range exp.Consequences {
		add(assertConsequence(comp, c))
	}
	for _, want := range exp.Emitted {
		add(assertEmitted(result, want))
	}
	if scenario.Emitted != nil {
		add(assertEmittedExact(result, *scenario.Emitted))
	}
	add(assertDiagnostics(result, exp))

	return errors
}

func assertConvergence(r *Result, exp Expectations) error {
	if exp.Converged == nil || *exp.Converged == r.Converged {
		return nil
	}
	return &AssertionError{
		Type:     "converged",
		Expected: fmt.Sprintf("converged = %v", *exp.Converged),
		Actual:   fmt.Sprintf("converged = %v after %d passes", r.Converged, r.Passes),
		Detail:   dump(r.Diagnostics),
	}
}

func assertPassBound(r *Result, exp Expectations) error {
	if exp.MaxPasses == 0 || r.Passes <= exp.MaxPasses {
		return nil
	}
	return &AssertionError{
		Type:     "max_passes",
		Expected: fmt.Sprintf("at most %d passes", exp.MaxPasses),
		Actual:   fmt.Sprintf("%d passes (stable after %d)", r.Passes, r.StablePass),
	}
}

func assertModes(r *Result, callable string, want []string) error {
	got, ok := r.Modes[callable]
	if !ok {
		return &AssertionError{
			Type:     "modes",
			Expected: fmt.Sprintf("callable %s", callable),
			Actual:   "not declared",
			Detail:   dump(r.Modes),
		}
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     "modes",
		Expected: fmt.Sprintf("%s%v", callable, want),
		Actual:   fmt.Sprintf("%s%v", callable, got),
		Detail:   dump(r.Modes),
	}
}

func assertConsequence(comp *compiler.Compilation, want ConsequenceExpectation) error {
	site, ok := comp.Unit.Find(want.Callable, want.Label)
	if !ok {
		var labels []string
		for _, s := range comp.Unit.SitesOf(want.Callable) {
			labels = append(labels, s.Label)
		}
		return &AssertionError{
			Type:     "consequence",
			Expected: fmt.Sprintf("site %q in %s", want.Label, want.Callable),
			Actual:   "site not found",
			Detail:   dump(labels),
		}
	}
	if string(site.Consequence) == want.Is {
		return nil
	}
	return &AssertionError{
		Type:     "consequence",
		Expected: fmt.Sprintf("%s: %s -> %s", want.Callable, want.Label, want.Is),
		Actual:   site.String(),
	}
}

func assertEmitted(r *Result, want string) error {
	if strings.Contains(r.Output, want) {
		return nil
	}
	return &AssertionError{
		Type:     "emitted",
		Expected: fmt.Sprintf("output containing %q", want),
		Actual:   "not found",
		Detail:   r.Output,
	}
}

func assertEmittedExact(r *Result, want string) error {
	if r.Output == want {
		return nil
	}
	return &AssertionError{
		Type:     "emitted",
		Expected: "output equal to the bundle's emitted file",
		Actual:   "output differs",
		Detail:   r.Output,
	}
}

func assertDiagnostics(r *Result, exp Expectations) error {
	if exp.Diagnostics == nil || slices.Equal(r.Diagnostics, exp.Diagnostics) {
		return nil
	}
	return &AssertionError{
		Type:     "diagnostics",
		Expected: fmt.Sprintf("%v", exp.Diagnostics),
		Actual:   fmt.Sprintf("%v", r.Diagnostics),
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
