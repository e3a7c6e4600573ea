package harness

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matched.
	Pass bool `json:"pass"`

	// Modes holds the inferred parameter modes of every declared callable.
	Modes map[string][]string `json:"modes"`

	// Passes is the number of passes the driver ran.
	Passes int `json:"passes"`

	// StablePass is the first pass whose output equalled the final registry.
	StablePass int `json:"stable_pass"`

	Converged bool `json:"converged"`

	// Diagnostics lists the diagnostic kinds in emission order.
	Diagnostics []string `json:"diagnostics"`

	// Output is the emitted backend text.
	Output string `json:"output"`

	// RegistryHash identifies the final registry.
	RegistryHash string `json:"registry_hash"`

	// Errors contains expectation failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Modes:       make(map[string][]string),
		Diagnostics: []string{},
		Errors:      []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
