package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scribble/internal/config"
	"github.com/oxhq/scribble/internal/diag"
)

// writeBundle writes a one-contract compiler-JSON bundle whose source
// path points inside dir, so arm/disarm touch only the temp tree.
func writeBundle(t *testing.T, dir string) (bundlePath, sourcePath string, original []byte) {
	t.Helper()
	sourcePath = filepath.Join(dir, "counter.sol")
	original = []byte("contract Counter { uint x; function inc() public { x += 1; } }")
	require.NoError(t, os.WriteFile(sourcePath, original, 0o644))

	bundle := map[string]any{
		"compilerVersion": "0.8.19",
		"units": []map[string]any{{
			"path":   sourcePath,
			"source": string(original),
			"contracts": []map[string]any{{
				"name": "Counter",
				"doc":  "/// #invariant x >= 0;",
				"variables": []map[string]any{
					{"name": "x", "type": "uint256"},
				},
				"functions": []map[string]any{{
					"name": "inc",
					"doc":  "/// #if_succeeds old(x) + 1 == x;",
					"body": []string{"x += 1;"},
				}},
			}},
		}},
	}
	data, err := json.Marshal(bundle)
	require.NoError(t, err)
	bundlePath = filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(bundlePath, data, 0o644))
	return bundlePath, sourcePath, original
}

func runScribble(t *testing.T, opts *config.Options) (*Runner, *bytes.Buffer, error) {
	t.Helper()
	var stdout bytes.Buffer
	r := &Runner{
		Opts:   opts,
		Stdout: &stdout,
		Stderr: &bytes.Buffer{},
		Stdin:  strings.NewReader(""),
	}
	return r, &stdout, r.Run()
}

func baseOptions(dir string, inputs ...string) *config.Options {
	opts := config.Default()
	opts.Inputs = inputs
	opts.InputMode = "json"
	opts.CompilerVersion = "0.8.19"
	opts.UtilsOutputPath = dir
	opts.LedgerDSN = filepath.Join(dir, "ledger.db")
	opts.Quiet = true
	return &opts
}

func TestRunnerFilesMode(t *testing.T) {
	dir := t.TempDir()
	bundlePath, sourcePath, original := writeBundle(t, dir)

	opts := baseOptions(dir, bundlePath)
	_, _, err := runScribble(t, opts)
	require.NoError(t, err)

	// original untouched, .instrumented sibling written
	got, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	assert.Equal(t, original, got)

	instr, err := os.ReadFile(sourcePath + ".instrumented")
	require.NoError(t, err)
	assert.Contains(t, string(instr), "function inc_original() internal")
	assert.Contains(t, string(instr), "__scribble_check_state_invariants_Counter")

	utils, err := os.ReadFile(filepath.Join(dir, "__scribble_ReentrancyUtils.sol"))
	require.NoError(t, err)
	assert.Contains(t, string(utils), "contract __scribble_ReentrancyUtils {")
}

func TestRunnerFlatModeToStdout(t *testing.T) {
	dir := t.TempDir()
	bundlePath, _, _ := writeBundle(t, dir)

	opts := baseOptions(dir, bundlePath)
	opts.OutputMode = "flat"
	opts.Output = "--"
	_, stdout, err := runScribble(t, opts)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "pragma solidity 0.8.19;")
	assert.Contains(t, stdout.String(), "contract __scribble_ReentrancyUtils {")
	assert.Contains(t, stdout.String(), "contract Counter is __scribble_ReentrancyUtils {")
}

func TestRunnerJSONModeBundle(t *testing.T) {
	dir := t.TempDir()
	bundlePath, _, _ := writeBundle(t, dir)

	outPath := filepath.Join(dir, "out.json")
	opts := baseOptions(dir, bundlePath)
	opts.OutputMode = "json"
	opts.Output = outPath
	_, _, err := runScribble(t, opts)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "sources")
	assert.Contains(t, decoded, "instrumentationMetadata")
}

func TestRunnerMetadataFile(t *testing.T) {
	dir := t.TempDir()
	bundlePath, _, _ := writeBundle(t, dir)

	metaPath := filepath.Join(dir, "meta.json")
	opts := baseOptions(dir, bundlePath)
	opts.MetadataFile = metaPath
	_, _, err := runScribble(t, opts)
	require.NoError(t, err)

	data, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "propertyMap")
	assert.Contains(t, string(data), "instrToOriginalMap")
}

func TestRunnerArmDisarmRoundTrip(t *testing.T) {
	// file bytes equal their pre-arm bytes after disarm
	dir := t.TempDir()
	bundlePath, sourcePath, original := writeBundle(t, dir)

	opts := baseOptions(dir, bundlePath)
	opts.Arm = true
	_, _, err := runScribble(t, opts)
	require.NoError(t, err)

	armed, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	assert.NotEqual(t, original, armed, "armed file is the instrumented copy")
	parked, err := os.ReadFile(sourcePath + ".original")
	require.NoError(t, err)
	assert.Equal(t, original, parked)

	disarmOpts := baseOptions(dir)
	disarmOpts.Inputs = nil
	disarmOpts.Disarm = true
	_, _, err = runScribble(t, disarmOpts)
	require.NoError(t, err)

	restored, err := os.ReadFile(sourcePath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
	_, err = os.Stat(sourcePath + ".original")
	assert.True(t, os.IsNotExist(err))
}

func TestRunnerAmbiguousVersionRejected(t *testing.T) {
	// two source files pinning different compiler majors with no
	// explicit --compiler-version abort before any compilation
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sol")
	b := filepath.Join(dir, "b.sol")
	require.NoError(t, os.WriteFile(a, []byte("pragma solidity ^0.7.6;\ncontract A {}"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("pragma solidity ^0.8.19;\ncontract B {}"), 0o644))

	opts := config.Default()
	opts.Inputs = []string{a, b}
	opts.CompilerVersion = "auto"
	opts.CompilerPath = "/nonexistent/compiler"
	opts.Quiet = true

	_, _, err := runScribble(t, &opts)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.AmbiguousVersion, d.Kind)
	assert.Contains(t, d.Message, "0.7")
	assert.Contains(t, d.Message, "0.8")
}

func TestRunnerDisarmKeepInstrumented(t *testing.T) {
	dir := t.TempDir()
	bundlePath, sourcePath, _ := writeBundle(t, dir)

	opts := baseOptions(dir, bundlePath)
	opts.Arm = true
	_, _, err := runScribble(t, opts)
	require.NoError(t, err)

	disarmOpts := baseOptions(dir)
	disarmOpts.Inputs = nil
	disarmOpts.Disarm = true
	disarmOpts.KeepInstrumented = true
	_, _, err = runScribble(t, disarmOpts)
	require.NoError(t, err)

	_, err = os.Stat(sourcePath + ".instrumented")
	assert.NoError(t, err, "--keep-instrumented retains the sibling")
}
