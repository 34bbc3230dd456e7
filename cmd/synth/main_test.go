package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/synth/pkg/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runFlags, parallelFlags = searchFlags{}, searchFlags{}
	parallelWorkers, parallelRounds, parallelServers = 0, 0, nil
	dir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--config", filepath.Join(dir, "synth.yaml"),
		"--languages", filepath.Join(dir, "languages.yaml"),
		"--log-level", "error",
	))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunBuiltinProblem(t *testing.T) {
	resultPath := filepath.Join(t.TempDir(), "result.json")
	out, err := execute(t, "run", "identity", "--seed", "4", "--out", resultPath)
	require.NoError(t, err)
	assert.Contains(t, out, "CORRECT")

	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind": "result"`)
}

func TestRunProblemFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "double.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
language: arith
name: double
intypes:
  - {kind: input, name: x, type: int}
  - {kind: output, type: int}
io:
  - {in: {x: 1}, out: 2}
  - {in: {x: 4}, out: 8}
  - {in: {x: -3}, out: -6}
depth: 3
budget: 5000
`), 0o644))
	out, err := execute(t, "run", path, "--seed", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "CORRECT")
}

func TestRunUnknownProblem(t *testing.T) {
	_, err := execute(t, "run", "no-such-problem")
	assert.Error(t, err)
}

func TestParallelLocal(t *testing.T) {
	out, err := execute(t, "parallel", "identity", "--workers", "2", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "CORRECT")
}

func TestHealthcheck(t *testing.T) {
	srv := httptest.NewServer(server.New(server.Options{}).Handler())
	defer srv.Close()

	out, err := execute(t, "healthcheck", "--url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Health check passed")
}
