package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticError(t *testing.T) {
	d := New(Semantic, Position{File: "A.sol", Line: 3, Col: 5}, "old() is forbidden inside invariant")
	d = d.WithSource("old(x) == x")
	assert.Equal(t, "A.sol:3:5 semantic: old() is forbidden inside invariant\nold(x) == x", d.Error())
}

func TestDiagnosticWrapUnwrap(t *testing.T) {
	cause := errors.New("unexpected token")
	d := Wrap(Syntax, Position{File: "B.sol", Line: 1, Col: 1}, "failed to parse annotation", cause)
	require.ErrorIs(t, d, cause)
}

func TestResolverPosition(t *testing.T) {
	src := []byte("line one\nline two\nline three")
	r := NewResolver("f.sol", src)

	cases := []struct {
		offset int
		want   Position
	}{
		{0, Position{"f.sol", 1, 1}},
		{9, Position{"f.sol", 2, 1}},
		{14, Position{"f.sol", 2, 6}},
		{len(src) - 1, Position{"f.sol", 3, 10}},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, r.Position(c.offset))
	}
}
