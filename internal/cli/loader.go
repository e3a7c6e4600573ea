package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ownc/internal/compiler"
	"github.com/roach88/ownc/internal/ir"
)

// LoadMode controls how errors are handled during program loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the programs loaded from a directory.
type LoadResult struct {
	Programs  []*ir.Program
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Program returns the loaded program with the given name.
func (r *LoadResult) Program(name string) *ir.Program {
	for _, p := range r.Programs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// LoadError represents an error that occurred during program loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPrograms loads the CUE package in dir and compiles every program
// declared under its top-level "program" field, in source order.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
//
// A nil result means nothing could be loaded; a non-nil result with errors
// holds the programs that compiled.
func LoadPrograms(dir string, mode LoadMode) (*LoadResult, []error) {
	// Verify directory exists
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("programs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing programs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	var errs []error
	programsVal := value.LookupPath(cue.ParsePath("program"))
	if !programsVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoPrograms, Message: "no programs declared in " + dir}}
	}

	iter, err := programsVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating programs: %v", err)}}
	}
	for iter.Next() {
		prog, compileErr := compiler.CompileProgram(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "program."+iter.Selector().Unquoted()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Programs = append(result.Programs, prog)
	}

	if len(result.Programs) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoPrograms, Message: "no programs declared in " + dir})
	}
	return result, errs
}

// selectPrograms narrows loaded programs to unit when it is set.
func selectPrograms(result *LoadResult, unit string) ([]*ir.Program, error) {
	if unit == "" {
		return result.Programs, nil
	}
	prog := result.Program(unit)
	if prog == nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program %q not found", unit)}
	}
	return []*ir.Program{prog}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != dir && info.Name() == "cue.mod" {
			return filepath.SkipDir
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Journal open/read/write error
	ErrCodeNoPrograms  = "E009" // No "program" field in the package

	// Program shape errors
	ErrCodeNoCallables    = "E010" // Program declares no callables
	ErrCodeInvalidTypes   = "E011" // Malformed types block
	ErrCodeInvalidForeign = "E012" // Malformed foreign declaration
	ErrCodeInvalidParam   = "E013" // Malformed parameter
	ErrCodeInvalidBody    = "E014" // Malformed statement or expression
	ErrCodeCUESyntax      = "E015" // CUE evaluation error
	ErrCodeUnknownBackend = "E016" // --backend names no emitter
)

// MapFieldToErrorCode maps a compiler error field to an error code.
// Fields are paths such as "fn.scale.params[0]" or "types.Vec2.fields.x".
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCUESyntax
	case field == "program":
		return ErrCodeNoPrograms
	case field == "fn":
		return ErrCodeNoCallables
	case strings.HasPrefix(field, "types."):
		return ErrCodeInvalidTypes
	case strings.HasPrefix(field, "foreign."):
		return ErrCodeInvalidForeign
	case strings.HasPrefix(field, "fn.") && strings.Contains(field, ".params"):
		return ErrCodeInvalidParam
	case strings.HasPrefix(field, "fn."):
		return ErrCodeInvalidBody
	default:
		return ErrCodeGeneric
	}
}
