package scanio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("contract X {}"), 0o644))
	}
}

func TestExpandLiteralAndStdin(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "a.sol")

	got, err := ExpandInputs([]string{filepath.Join(dir, "a.sol"), "--"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.sol"), "--"}, got)
}

func TestExpandGlob(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "b.sol", "a.sol", "sub/c.sol", "readme.md")

	got, err := ExpandInputs([]string{filepath.Join(dir, "**", "*.sol")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.sol"),
		filepath.Join(dir, "b.sol"),
		filepath.Join(dir, "sub", "c.sol"),
	}, got)
}

func TestExpandDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "z.sol", "a.sol", "nested/deep/d.sol", "skip.txt")

	got, err := ExpandInputs([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.sol"),
		filepath.Join(dir, "nested", "deep", "d.sol"),
		filepath.Join(dir, "z.sol"),
	}, got)
}

func TestExpandMissingInput(t *testing.T) {
	_, err := ExpandInputs([]string{"/does/not/exist.sol"})
	require.Error(t, err)
}

func TestExpandEmptyGlob(t *testing.T) {
	dir := t.TempDir()
	_, err := ExpandInputs([]string{filepath.Join(dir, "*.sol")})
	require.Error(t, err)
}

func TestExpandDeduplicates(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, "a.sol")
	p := filepath.Join(dir, "a.sol")

	got, err := ExpandInputs([]string{p, p})
	require.NoError(t, err)
	assert.Equal(t, []string{p}, got)
}
