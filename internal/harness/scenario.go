package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ownc/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario names one program, compiles it through the full pipeline and
// checks the inferred modes, the planned consequences and the emitted text.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path of the CUE file holding the program, relative to
	// the scenario file. In a txtar bundle it names a file in the archive
	// and defaults to the first .cue file.
	Program string `yaml:"program"`

	// Unit selects a program when the file declares more than one.
	Unit string `yaml:"unit,omitempty"`

	// Backend is the emitter name. Defaults to "rust".
	Backend string `yaml:"backend,omitempty"`

	// MaxPasses overrides the pass ceiling. Zero keeps the budget derived
	// from the call graph.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// Expect holds the checks run against the compilation.
	Expect Expectations `yaml:"expect"`

	// Source is the CUE text of Program, filled in by the loaders.
	Source []byte `yaml:"-"`

	// SourceName is the file name reported in CUE positions.
	SourceName string `yaml:"-"`

	// Emitted, when set, must equal the whole emitted output. Only txtar
	// bundles carry it, as an "emitted" file.
	Emitted *string `yaml:"-"`
}

// Expectations lists what a compilation must satisfy. Every field is
// optional; an empty Expectations checks only that compilation succeeds.
type Expectations struct {
	// Converged, when set, must equal the driver's convergence flag.
	Converged *bool `yaml:"converged,omitempty"`

	// MaxPasses bounds the number of passes the driver ran.
	MaxPasses int `yaml:"max_passes,omitempty"`

	// Modes maps a callable to its expected parameter modes.
	Modes map[string][]string `yaml:"modes,omitempty"`

	// Consequences are checked by callable and site label.
	Consequences []ConsequenceExpectation `yaml:"consequences,omitempty"`

	// Emitted lists substrings the emitted text must contain.
	Emitted []string `yaml:"emitted,omitempty"`

	// Diagnostics lists the expected diagnostic kinds in order. An empty
	// list expects no diagnostics; nil skips the check.
	Diagnostics []string `yaml:"diagnostics"`
}

// ConsequenceExpectation expects one planned site.
type ConsequenceExpectation struct {
	Callable string `yaml:"callable"`
	Label    string `yaml:"label"`
	Is       string `yaml:"is"`
}

// LoadScenario reads and parses a scenario YAML file, resolving the
// program path relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the program path relative to basePath. The program file is
// read eagerly.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := decodeScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Program == "" {
		return nil, fmt.Errorf("invalid scenario: program is required")
	}

	progPath := scenario.Program
	if !filepath.IsAbs(progPath) && basePath != "" {
		progPath = filepath.Join(basePath, progPath)
	}
	if scenario.Source, err = os.ReadFile(progPath); err != nil {
		return nil, fmt.Errorf("invalid scenario: program file: %w", err)
	}
	scenario.SourceName = progPath

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// LoadBundle reads a txtar archive whose comment section is the scenario
// YAML and whose files carry the program and, optionally, the exact
// emitted output.
func LoadBundle(path string) (*Scenario, error) {
	ar, err := txtar.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario bundle: %w", err)
	}
	return parseBundle(ar, path)
}

func parseBundle(ar *txtar.Archive, path string) (*Scenario, error) {
	scenario, err := decodeScenario(ar.Comment)
	if err != nil {
		return nil, err
	}

	for _, f := range ar.Files {
		switch {
		case f.Name == "emitted":
			text := string(f.Data)
			scenario.Emitted = &text
		case scenario.Source == nil && matchesProgram(scenario.Program, f.Name):
			scenario.Source = f.Data
			scenario.SourceName = path + "/" + f.Name
		}
	}
	if scenario.Source == nil {
		return nil, fmt.Errorf("invalid scenario: bundle %s has no program file", path)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func matchesProgram(want, name string) bool {
	if want != "" {
		return name == want
	}
	return strings.HasSuffix(name, ".cue")
}

// LoadDir loads every scenario in dir: "*.yaml" files and "*.txtar"
// bundles, in file name order. YAML program paths resolve against
// basePath, or against dir when basePath is empty.
func LoadDir(dir, basePath string) ([]*Scenario, error) {
	if basePath == "" {
		basePath = dir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".txtar":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		var s *Scenario
		if filepath.Ext(name) == ".txtar" {
			s, err = LoadBundle(path)
		} else {
			s, err = LoadScenarioWithBasePath(path, basePath)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// decodeScenario parses YAML with strict field validation (catches typos
// like "expects:" vs "expect:").
func decodeScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Source) == 0 {
		return fmt.Errorf("program source is empty")
	}
	if s.MaxPasses < 0 {
		return fmt.Errorf("max_passes must be non-negative")
	}

	exp := s.Expect
	if exp.MaxPasses < 0 {
		return fmt.Errorf("expect.max_passes must be non-negative")
	}
	for callable, modes := range exp.Modes {
		for i, m := range modes {
			if _, err := ir.ParseAccessMode(m); err != nil {
				return fmt.Errorf("expect.modes[%s][%d]: %w", callable, i, err)
			}
		}
	}
	for i, c := range exp.Consequences {
		if c.Callable == "" || c.Label == "" {
			return fmt.Errorf("expect.consequences[%d]: callable and label are required", i)
		}
		if !knownConsequence(c.Is) {
			return fmt.Errorf("expect.consequences[%d]: unknown consequence %q", i, c.Is)
		}
	}
	for i, d := range exp.Diagnostics {
		switch ir.DiagnosticKind(d) {
		case ir.DiagNotConverged, ir.DiagAborted:
		default:
			return fmt.Errorf("expect.diagnostics[%d]: unknown diagnostic %q", i, d)
		}
	}
	return nil
}

func knownConsequence(s string) bool {
	switch ir.Consequence(s) {
	case ir.NoOp, ir.InsertShared, ir.InsertExclusive, ir.InsertDuplicate,
		ir.InsertDereference, ir.HoistTemporary:
		return true
	}
	return false
}
