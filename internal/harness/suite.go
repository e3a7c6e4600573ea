package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// ProgramsDir resolves YAML program paths. Defaults to the scenario
	// directory.
	ProgramsDir string

	// GoldenDir holds {name}.golden files compared against the emitted
	// text. Scenarios without a golden file are checked by expectations
	// only. Defaults to <scenarios>/golden.
	GoldenDir string

	// Update rewrites golden files instead of comparing them.
	Update bool

	// Filter is a glob matched against scenario names.
	Filter string
}

// Outcome is the result of one scenario in a suite.
type Outcome struct {
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	GoldenUpdated bool     `json:"golden_updated,omitempty"`
	Passes        int      `json:"passes"`
	Converged     bool     `json:"converged"`
	Errors        []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Scenarios []Outcome `json:"scenarios"`
	Total     int       `json:"total"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
}

// RunSuite loads every scenario in dir and runs the ones matching the
// filter. A scenario that fails to load aborts the suite; a scenario that
// fails to run is recorded as a failure.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	if opts.GoldenDir == "" {
		opts.GoldenDir = filepath.Join(dir, "golden")
	}

	scenarios, err := LoadDir(dir, opts.ProgramsDir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: []Outcome{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}

		out := runOne(s, opts)
		result.Scenarios = append(result.Scenarios, out)
		result.Total++
		if out.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func runOne(s *Scenario, opts SuiteOptions) Outcome {
	out := Outcome{Name: s.Name}

	res, err := Run(s)
	if err != nil {
		out.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return out
	}
	out.Passes = res.Passes
	out.Converged = res.Converged
	out.Errors = res.Errors

	goldenPath := filepath.Join(opts.GoldenDir, s.Name+".golden")
	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0755); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			return out
		}
		if err := os.WriteFile(goldenPath, []byte(res.Output), 0644); err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("failed to write golden file: %v", err))
			return out
		}
		out.GoldenUpdated = true
	} else if want, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(want, []byte(res.Output)) {
			out.Errors = append(out.Errors, "output does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
	}

	out.Pass = len(out.Errors) == 0
	return out
}
