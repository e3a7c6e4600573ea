package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ownc/internal/ir"
)

func TestInferText(t *testing.T) {
	out, err := execute(t, NewInferCommand(&RootOptions{Format: "text"}), programsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "lenSq(shared_read)")
	assert.Contains(t, out, "scale(exclusive_write, owned)")
	assert.Contains(t, out, "main()")
	assert.Contains(t, out, "even(owned)")
	assert.Contains(t, out, "✓ Inferred 2 program(s)")
	assert.NotContains(t, out, "fn lenSq", "infer does not emit")
}

func TestInferJSON(t *testing.T) {
	out, err := execute(t, NewInferCommand(&RootOptions{Format: "json"}), programsDir)
	require.NoError(t, err)

	var result InferenceResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Converged)
	require.Len(t, result.Programs, 2)

	parity := findReport(t, result.Programs, "parity")
	assert.True(t, parity.Converged)
	assert.Equal(t, []CallableModes{
		{Name: "even", Modes: []ir.AccessMode{ir.Owned}},
		{Name: "odd", Modes: []ir.AccessMode{ir.Owned}},
	}, parity.Callables)
	require.Len(t, parity.Cycles, 1)
	assert.Equal(t, "warning", parity.Cycles[0].Level)
	assert.Empty(t, parity.Output)
}

func TestInferNotConverged(t *testing.T) {
	out, err := execute(t, NewInferCommand(&RootOptions{Format: "json"}), programsDir, "--unit", "parity", "--max-passes", "1")
	require.NoError(t, err)

	var result InferenceResult
	decodeResponse(t, out, &result)
	assert.False(t, result.Converged)
	require.Len(t, result.Programs, 1)

	parity := result.Programs[0]
	assert.Equal(t, 1, parity.Passes)
	assert.Equal(t, 1, parity.MaxPasses)
	require.Len(t, parity.Diagnostics, 2)
	assert.Equal(t, ir.DiagNotConverged, parity.Diagnostics[0].Kind)
	assert.Equal(t, "even", parity.Diagnostics[0].Callable)
	assert.Equal(t, "odd", parity.Diagnostics[1].Callable)
}

func TestInferNotConvergedText(t *testing.T) {
	out, err := execute(t, NewInferCommand(&RootOptions{Format: "text"}), programsDir, "--unit", "parity", "--max-passes", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "some did not converge")
}

func TestInferVerboseLogsPasses(t *testing.T) {
	cmd := NewInferCommand(&RootOptions{Format: "text", Verbose: true})
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{programsDir, "--unit", "vec"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, errOut.String(), "vec: pass 1 changed [lenSq, main, scale]")
	assert.NotContains(t, out.String(), "pass 1 changed")
}

func TestInferValidationFailure(t *testing.T) {
	out, err := execute(t, NewInferCommand(&RootOptions{Format: "text"}), "testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E102")
}

func TestInferNonExistentDirectory(t *testing.T) {
	_, err := execute(t, NewInferCommand(&RootOptions{Format: "text"}), "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
