package difftool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnified(t *testing.T) {
	orig := []byte("contract C {\n    uint x;\n}\n")
	instr := []byte("import \"__scribble_ReentrancyUtils.sol\";\n\ncontract C is __scribble_ReentrancyUtils {\n    uint x;\n}\n")

	d, err := Unified("c.sol", orig, instr)
	require.NoError(t, err)
	assert.Contains(t, d, "--- c.sol")
	assert.Contains(t, d, "+++ c.sol.instrumented")
	assert.Contains(t, d, "+import \"__scribble_ReentrancyUtils.sol\";")
	assert.Contains(t, d, "-contract C {")
}

func TestUnifiedIdentical(t *testing.T) {
	same := []byte("contract C {}\n")
	d, err := Unified("c.sol", same, same)
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestStat(t *testing.T) {
	orig := []byte("a\nb\nc\n")
	instr := []byte("a\nB\nc\nd\n")
	d, err := Unified("x.sol", orig, instr)
	require.NoError(t, err)

	added, removed := Stat(d)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)
}
