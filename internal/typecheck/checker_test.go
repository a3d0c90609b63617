package typecheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scribble/internal/cha"
	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/extractor"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/hostast/fixture"
	"github.com/oxhq/scribble/internal/sast"
)

// harness builds a one-unit world, extracts its annotations, and returns
// everything a checker test needs.
type harness struct {
	arena     *hostast.Arena
	unit      hostast.NodeID
	hierarchy *cha.CHA
	checker   *Checker
	anns      []*sast.Annotation
}

func setup(t *testing.T, contracts []fixture.ContractSpec) *harness {
	t.Helper()
	a, unit := fixture.Build("t.sol", contracts)
	h, err := cha.New(a, []hostast.NodeID{unit})
	require.NoError(t, err)
	anns, err := extractor.New(a).ExtractUnit(unit, nil)
	require.NoError(t, err)
	return &harness{arena: a, unit: unit, hierarchy: h, checker: NewChecker(a, h), anns: anns}
}

func (h *harness) contextFor(t *testing.T, ann *sast.Annotation) Context {
	t.Helper()
	target := h.arena.Get(hostast.NodeID(ann.TargetNodeID))
	ctx := Context{Units: []hostast.NodeID{h.unit}}
	switch n := target.(type) {
	case *hostast.ContractDecl:
		ctx.ContractID = n.ID()
	case *hostast.FunctionDecl:
		ctx.ContractID = n.ContractID
		ctx.FunctionID = n.ID()
	case *hostast.VariableDecl:
		ctx.ContractID = n.ContractID
	}
	return ctx
}

func (h *harness) checkAll(t *testing.T) error {
	t.Helper()
	for _, ann := range h.anns {
		if err := h.checker.CheckAnnotation(ann, h.contextFor(t, ann)); err != nil {
			return err
		}
	}
	return nil
}

func TestCheckInvariantOverState(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "Vault",
		DocText:   "/// #invariant total >= 0;",
		Variables: []fixture.VariableSpec{{Name: "total", TypeString: "uint256"}},
	}})
	require.NoError(t, h.checkAll(t))

	pred := h.anns[0].Predicate
	predT, ok := h.checker.Env.TypeOf(pred)
	require.True(t, ok)
	assert.True(t, predT.Equal(sast.BoolType{}))

	// the state identifier was marked, and the flag propagated up
	assert.True(t, h.checker.Sem.Has(pred, ReadsState))
}

func TestCheckIsIdempotent(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "Vault",
		DocText:   "/// #invariant total + 1 >= 1;",
		Variables: []fixture.VariableSpec{{Name: "total", TypeString: "uint256"}},
	}})
	require.NoError(t, h.checkAll(t))

	pred := h.anns[0].Predicate
	first, _ := h.checker.Env.TypeOf(pred)
	require.NoError(t, h.checkAll(t))
	second, _ := h.checker.Env.TypeOf(pred)
	assert.True(t, first.Equal(second))
}

func TestCheckResolvesThroughBases(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{
		{
			Name:      "Base",
			Variables: []fixture.VariableSpec{{Name: "owner", TypeString: "address"}},
		},
		{
			Name:    "Child",
			Bases:   []string{"Base"},
			DocText: "/// #invariant owner == owner;",
		},
	})
	require.NoError(t, h.checkAll(t))
}

func TestCheckFunctionParamsAndOld(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "Counter",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{
			Name:    "add",
			DocText: "/// #if_succeeds old(x) + amount == x;",
			Params:  []hostast.Param{{Name: "amount", TypeString: "uint256"}},
			Body:    []string{"x += amount;"},
		}},
	}})
	require.NoError(t, h.checkAll(t))

	pred := h.anns[0].Predicate
	assert.True(t, h.checker.Sem.Has(pred, ReadsOld))
}

func TestCheckOldForbiddenInInvariant(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant old(x) == x;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.Semantic, d.Kind)
	assert.Equal(t, "forbidden-old", d.Code)
}

func TestCheckUnknownName(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "A",
		DocText: "/// #invariant nothere >= 0;",
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.Type, d.Kind)
	assert.Equal(t, "unknown-name", d.Code)
}

func TestCheckMixedSignRejected(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "A",
		DocText: "/// #invariant u + s >= 0;",
		Variables: []fixture.VariableSpec{
			{Name: "u", TypeString: "uint256"},
			{Name: "s", TypeString: "int256"},
		},
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "incompatible-types", d.Code)
}

func TestCheckLiteralAdaptsSign(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant s + 1 >= 0;",
		Variables: []fixture.VariableSpec{{Name: "s", TypeString: "int256"}},
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckPromotionToWiderOperand(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "A",
		DocText: "/// #invariant small + big >= big;",
		Variables: []fixture.VariableSpec{
			{Name: "small", TypeString: "uint8"},
			{Name: "big", TypeString: "uint256"},
		},
	}})
	require.NoError(t, h.checkAll(t))

	// find the + node and confirm it widened
	var sum sast.Expr
	sast.Walk(h.anns[0].Predicate, func(e sast.Expr) {
		if b, ok := e.(*sast.BinaryOp); ok && b.Op == "+" {
			sum = b
		}
	})
	require.NotNil(t, sum)
	sumT, ok := h.checker.Env.TypeOf(sum)
	require.True(t, ok)
	assert.True(t, sumT.Equal(sast.IntegerType{Bits: 256}))
}

func TestCheckMappingAndArrayAccess(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "Bank",
		DocText: "/// #invariant balances[msg.sender] >= 0 && entries.length >= 0;",
		Variables: []fixture.VariableSpec{
			{Name: "balances", TypeString: "mapping(address => uint256)"},
			{Name: "entries", TypeString: "uint256[]"},
		},
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckQuantifierFiniteRanges(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "A",
		DocText: "/// #invariant forall (uint256 i in 0...10) i >= 0;",
	}})
	require.NoError(t, h.checkAll(t))

	h = setup(t, []fixture.ContractSpec{{
		Name:      "B",
		DocText:   "/// #invariant forall (uint256 i in entries) entries[i] >= 0;",
		Variables: []fixture.VariableSpec{{Name: "entries", TypeString: "uint256[]"}},
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckInfiniteQuantifierRejected(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant forall (uint256 i in x) i >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "infinite-quantifier", d.Code)

	h = setup(t, []fixture.ContractSpec{{
		Name:      "B",
		DocText:   "/// #invariant forall (uint256 i in balances) i >= 0;",
		Variables: []fixture.VariableSpec{{Name: "balances", TypeString: "mapping(address => uint256)"}},
	}})
	err = h.checkAll(t)
	require.Error(t, err)
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "infinite-quantifier", d.Code)
}

func TestCheckDefineAndUse(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name: "A",
		DocText: "/// #define nonneg(uint256 v) bool = v >= 0;\n" +
			"/// #invariant nonneg(x);",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckDefineVisibleInDerived(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{
		{
			Name:    "Base",
			DocText: "/// #define ok(uint256 v) bool = v >= 0;",
		},
		{
			Name:      "Child",
			Bases:     []string{"Base"},
			DocText:   "/// #invariant ok(x);",
			Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		},
	})
	require.NoError(t, h.checkAll(t))
}

func TestCheckRecursiveDefineRejected(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:    "A",
		DocText: "/// #define loop(uint256 v) uint256 = loop(v);",
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "recursive-define", d.Code)
}

func TestCheckDefineArityMismatch(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name: "A",
		DocText: "/// #define nonneg(uint256 v) bool = v >= 0;\n" +
			"/// #invariant nonneg(1, 2);",
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, "arity-mismatch", d.Code)
}

func TestCheckNonPureCallRejected(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{
			{Name: "bump", StateMutability: "nonpayable", Body: []string{"x += 1;"}},
			{
				Name:            "probe",
				StateMutability: "view",
				DocText:         "/// #if_succeeds bump() >= 0;",
				Body:            []string{"return x;"},
			},
		},
	}})
	err := h.checkAll(t)
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.Semantic, d.Kind)
	assert.Equal(t, "non-pure-call", d.Code)
}

func TestCheckViewCallAllowed(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{
			{Name: "get", StateMutability: "view", Body: []string{"return x;"}},
		},
		DocText: "/// #invariant x >= 0;",
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckElementaryConversion(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant uint256(b) >= 0;",
		Variables: []fixture.VariableSpec{{Name: "b", TypeString: "uint8"}},
	}})
	require.NoError(t, h.checkAll(t))
}

func TestCheckLetBinding(t *testing.T) {
	h := setup(t, []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant let y := x + 1 in y > x;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
	}})
	require.NoError(t, h.checkAll(t))
}
