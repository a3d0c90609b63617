package fswriter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	w := New(DefaultConfig())
	path := filepath.Join(dir, "a.sol")

	require.NoError(t, w.WriteFile(path, []byte("contract A {}"), 0))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "contract A {}", string(got))

	// no temp residue
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFilePreservesMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.sol")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	w := New(DefaultConfig())
	require.NoError(t, w.WriteFile(path, []byte("new"), 0))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode())
}

func TestArmDisarmRoundTrip(t *testing.T) {
	// disarm restores the pre-arm bytes
	dir := t.TempDir()
	path := filepath.Join(dir, "c.sol")
	original := []byte("contract C { uint x; }")
	require.NoError(t, os.WriteFile(path, original, 0o644))

	w := New(DefaultConfig())
	instrumented := []byte("contract C is __scribble_ReentrancyUtils { uint x; }")
	require.NoError(t, w.Arm(map[string][]byte{path: instrumented}))

	// armed: instrumented in place, original parked
	inPlace, _ := os.ReadFile(path)
	assert.Equal(t, instrumented, inPlace)
	parked, _ := os.ReadFile(OriginalPath(path))
	assert.Equal(t, original, parked)
	sibling, _ := os.ReadFile(InstrumentedPath(path))
	assert.Equal(t, instrumented, sibling)

	require.NoError(t, w.Disarm([]string{path}, false))
	restored, _ := os.ReadFile(path)
	assert.Equal(t, original, restored)
	_, err := os.Stat(OriginalPath(path))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(InstrumentedPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestDisarmKeepInstrumented(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.sol")
	require.NoError(t, os.WriteFile(path, []byte("orig"), 0o644))

	w := New(DefaultConfig())
	require.NoError(t, w.Arm(map[string][]byte{path: []byte("instr")}))
	require.NoError(t, w.Disarm([]string{path}, true))

	kept, err := os.ReadFile(InstrumentedPath(path))
	require.NoError(t, err)
	assert.Equal(t, "instr", string(kept))
}

func TestDisarmWithoutOriginalFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-armed.sol")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := New(DefaultConfig())
	require.Error(t, w.Disarm([]string{path}, false))
}
