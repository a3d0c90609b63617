package sast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeEqualStructural(t *testing.T) {
	a := IntegerType{Signed: false, Bits: 256}
	b := IntegerType{Signed: false, Bits: 256}
	c := IntegerType{Signed: true, Bits: 256}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	arrA := DynamicArrayType{Elem: a}
	arrB := DynamicArrayType{Elem: b}
	assert.True(t, arrA.Equal(arrB))
}

func TestPrintRendersOldAndQuantifier(t *testing.T) {
	expr := &Quantifier{
		Kind:      Forall,
		Binder:    "i",
		BoundType: IntegerType{Bits: 256},
		Range:     &Identifier{Name: "indices"},
		Body: &BinaryOp{
			Op:    "==",
			Left:  &Old{Operand: &Identifier{Name: "balances"}},
			Right: &Identifier{Name: "balances"},
		},
	}
	got := Print(expr)
	assert.Equal(t, "forall (uint256 i in indices) old(balances) == balances", got)
}

func TestAnnotationIsProperty(t *testing.T) {
	a := &Annotation{Kind: IfSucceeds}
	assert.True(t, a.IsProperty())

	d := &Annotation{Kind: Define}
	assert.False(t, d.IsProperty())
}
