package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts, err := BuildFromFlags([]string{"a.sol"})
	require.NoError(t, err)
	assert.Equal(t, "source", opts.InputMode)
	assert.Equal(t, "auto", opts.CompilerVersion)
	assert.Equal(t, "files", opts.OutputMode)
	assert.Equal(t, "log", opts.UserAssertMode)
	assert.Equal(t, []string{"a.sol"}, opts.Inputs)
}

func TestAllFlags(t *testing.T) {
	opts, err := BuildFromFlags([]string{
		"--input-mode", "json",
		"--compiler-version", "0.8.19",
		"--path-remapping", "a=b;c=d",
		"--filter-type", "invariant",
		"--filter-message", "overflow",
		"--output-mode", "flat",
		"--output", "out.sol",
		"--utils-output-path", "utils",
		"--user-assert-mode", "mstore",
		"--no-assert",
		"--debug-events",
		"--instrumentation-metadata-file", "meta.json",
		"--quiet",
		"in.json",
	})
	require.NoError(t, err)
	assert.Equal(t, "json", opts.InputMode)
	assert.Equal(t, "0.8.19", opts.CompilerVersion)
	assert.Equal(t, "a=b;c=d", opts.PathRemapping)
	assert.Equal(t, "invariant", opts.FilterType)
	assert.Equal(t, "overflow", opts.FilterMessage)
	assert.Equal(t, "flat", opts.OutputMode)
	assert.Equal(t, "out.sol", opts.Output)
	assert.Equal(t, "utils", opts.UtilsOutputPath)
	assert.Equal(t, "mstore", opts.UserAssertMode)
	assert.True(t, opts.NoAssert)
	assert.True(t, opts.DebugEvents)
	assert.Equal(t, "meta.json", opts.MetadataFile)
	assert.True(t, opts.Quiet)
}

func TestJSONInputRequiresExplicitVersion(t *testing.T) {
	_, err := BuildFromFlags([]string{"--input-mode", "json", "in.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--compiler-version")
}

func TestArmDisarmExclusive(t *testing.T) {
	_, err := BuildFromFlags([]string{"--arm", "--disarm", "a.sol"})
	require.Error(t, err)
}

func TestKeepInstrumentedNeedsDisarm(t *testing.T) {
	_, err := BuildFromFlags([]string{"--keep-instrumented", "a.sol"})
	require.Error(t, err)
}

func TestDisarmNeedsNoInputs(t *testing.T) {
	opts, err := BuildFromFlags([]string{"--disarm"})
	require.NoError(t, err)
	assert.True(t, opts.Disarm)
	assert.Empty(t, opts.Inputs)
}

func TestNoInputsRejected(t *testing.T) {
	_, err := BuildFromFlags(nil)
	require.Error(t, err)
}

func TestBadEnumValues(t *testing.T) {
	for _, args := range [][]string{
		{"--input-mode", "weird", "a.sol"},
		{"--output-mode", "weird", "a.sol"},
		{"--user-assert-mode", "weird", "a.sol"},
	} {
		_, err := BuildFromFlags(args)
		assert.Error(t, err, "%v", args)
	}
}
