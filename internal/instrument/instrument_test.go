package instrument

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scribble/internal/cha"
	"github.com/oxhq/scribble/internal/extractor"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/hostast/fixture"
	"github.com/oxhq/scribble/internal/printer"
	"github.com/oxhq/scribble/internal/sast"
	"github.com/oxhq/scribble/internal/typecheck"
)

// pipeline runs extract → cha → check → instrument over one fixture unit.
func pipeline(t *testing.T, contracts []fixture.ContractSpec, opts Options) (*Ctx, hostast.NodeID) {
	t.Helper()
	a, unit := fixture.Build("in.sol", contracts)
	h, err := cha.New(a, []hostast.NodeID{unit})
	require.NoError(t, err)
	anns, err := extractor.New(a).ExtractUnit(unit, nil)
	require.NoError(t, err)

	checker := typecheck.NewChecker(a, h)
	for _, ann := range anns {
		ctx := typecheck.Context{Units: []hostast.NodeID{unit}}
		switch n := a.Get(hostast.NodeID(ann.TargetNodeID)).(type) {
		case *hostast.ContractDecl:
			ctx.ContractID = n.ID()
		case *hostast.FunctionDecl:
			ctx.ContractID = n.ContractID
			ctx.FunctionID = n.ID()
		case *hostast.VariableDecl:
			ctx.ContractID = n.ContractID
		}
		require.NoError(t, checker.CheckAnnotation(ann, ctx))
	}

	cg, err := h.BuildCallGraph()
	require.NoError(t, err)

	ctx := NewCtx(a, []hostast.NodeID{unit}, h, cg, checker.Env, checker.Sem, anns, opts)
	require.NoError(t, Run(ctx))
	return ctx, unit
}

func counterSpec() []fixture.ContractSpec {
	return []fixture.ContractSpec{{
		Name:      "Counter",
		DocText:   "/// #invariant {:msg \"non-negative\"} x >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{
			Name:    "inc",
			DocText: "/// #if_succeeds old(x) + 1 == x;",
			Body:    []string{"x += 1;"},
		}},
	}}
}

func TestInstrumentGeneratesUtilsUnit(t *testing.T) {
	ctx, _ := pipeline(t, counterSpec(), Options{UtilsOutputPath: "out"})

	require.NotZero(t, ctx.UtilsUnit)
	out := printer.Print(ctx.Arena, ctx.UtilsUnit)
	assert.Contains(t, out.Text, "contract __scribble_ReentrancyUtils {")
	assert.Contains(t, out.Text, "bool __scribble_out_of_contract = true;")
	assert.Contains(t, out.Text, "event AssertionFailed(string message);")
	assert.Contains(t, out.Text, "emit AssertionFailed(message);")
}

func TestInstrumentMstoreMode(t *testing.T) {
	ctx, _ := pipeline(t, counterSpec(), Options{UserAssertMode: AssertMstore})
	out := printer.Print(ctx.Arena, ctx.UtilsUnit)
	assert.Contains(t, out.Text, "mstore(0x0, 0x2e694ec1)")
	assert.Contains(t, out.Text, "revert(message);")
	assert.NotContains(t, out.Text, "emit AssertionFailed(message);")
}

func TestInstrumentWrapsFunction(t *testing.T) {
	ctx, unit := pipeline(t, counterSpec(), Options{})
	out := printer.Print(ctx.Arena, unit)

	// original renamed, interposer takes its place
	assert.Contains(t, out.Text, "function inc_original() internal {")
	assert.Contains(t, out.Text, "function inc() public {")

	// reentrancy bookkeeping around the call
	assert.Contains(t, out.Text, "bool __scribble_entry = __scribble_out_of_contract;")
	assert.Contains(t, out.Text, "__scribble_out_of_contract = false;")
	assert.Contains(t, out.Text, "if (__scribble_entry) { __scribble_check_state_invariants_Counter(); __scribble_out_of_contract = true; }")

	// old capture precedes the call, check follows it
	captureIdx := strings.Index(out.Text, "uint256 _original_")
	callIdx := strings.Index(out.Text, "inc_original();")
	checkIdx := strings.Index(out.Text, "bool __scribble_check_")
	require.True(t, captureIdx > 0 && callIdx > 0 && checkIdx > 0)
	assert.Less(t, captureIdx, callIdx)
	assert.Less(t, callIdx, checkIdx)

	// the contract inherits the utilities and gained the import
	assert.Contains(t, out.Text, "contract Counter is __scribble_ReentrancyUtils {")
	assert.Contains(t, out.Text, "import \"__scribble_ReentrancyUtils.sol\";")
}

func TestInstrumentRecordsContextMaps(t *testing.T) {
	ctx, _ := pipeline(t, counterSpec(), Options{})

	require.Len(t, ctx.Annotations, 2)
	inv, post := ctx.Annotations[0], ctx.Annotations[1]
	assert.Equal(t, sast.Invariant, inv.Kind)
	assert.Equal(t, sast.IfSucceeds, post.Kind)

	assert.NotEmpty(t, ctx.EvaluationStatements[inv])
	assert.NotEmpty(t, ctx.EvaluationStatements[post])
	assert.NotEmpty(t, ctx.InstrumentedCheck[inv])
	assert.NotEmpty(t, ctx.InstrumentedCheck[post])
	assert.NotEmpty(t, ctx.GeneralInstrumentation[inv.ID])

	// every recorded node exists and is stamped with the annotation span
	for _, id := range ctx.InstrumentedCheck[inv] {
		n := ctx.Arena.Get(id)
		require.NotNil(t, n)
		assert.Equal(t, inv.FullRange.Offset, n.SourceRange().Offset)
	}
}

func TestInstrumentBaseInvariantReachesDerived(t *testing.T) {
	// invariant on the base instruments the derived too
	ctx, unit := pipeline(t, []fixture.ContractSpec{
		{
			Name:      "A",
			DocText:   "/// #invariant x >= 0;",
			Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
			Functions: []fixture.FunctionSpec{{Name: "inc", Body: []string{"x += 1;"}}},
		},
		{
			Name:      "B",
			Bases:     []string{"A"},
			Functions: []fixture.FunctionSpec{{Name: "dec", Body: []string{"x -= 1;"}}},
		},
	}, Options{})

	out := printer.Print(ctx.Arena, unit)
	assert.Contains(t, out.Text, "function inc_original() internal {")
	assert.Contains(t, out.Text, "function dec_original() internal {")
	assert.Contains(t, out.Text, "__scribble_check_state_invariants_A();")
	assert.Contains(t, out.Text, "__scribble_check_state_invariants_B();")

	// B's checker carries the inherited invariant
	bID, _ := ctx.Hierarchy.ByName("B")
	b := ctx.Arena.Get(bID).(*hostast.ContractDecl)
	var checker *hostast.FunctionDecl
	for _, fid := range b.Functions {
		if fn, ok := ctx.Arena.Get(fid).(*hostast.FunctionDecl); ok && fn.Name == checkerFuncName("B") {
			checker = fn
		}
	}
	require.NotNil(t, checker)
	assert.NotEmpty(t, ctx.Arena.Get(checker.Body).(*hostast.Block).Statements)
}

func TestInstrumentConstructorCheckedAtEndOnly(t *testing.T) {
	ctx, unit := pipeline(t, []fixture.ContractSpec{{
		Name:      "C",
		DocText:   "/// #invariant x >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{
			IsConstructor: true,
			Name:          "constructor",
			Body:          []string{"x = 1;"},
		}},
	}}, Options{})

	out := printer.Print(ctx.Arena, unit)
	assert.Contains(t, out.Text, "constructor() {")
	assert.NotContains(t, out.Text, "constructor_original")
	body := out.Text[strings.Index(out.Text, "constructor() {"):]
	assert.Less(t, strings.Index(body, "x = 1;"), strings.Index(body, "__scribble_check_state_invariants_C();"))
}

func TestInstrumentQuantifierUnrollsToLoop(t *testing.T) {
	ctx, unit := pipeline(t, []fixture.ContractSpec{{
		Name:      "Arr",
		DocText:   "/// #invariant forall (uint256 i in entries) entries[i] >= 0;",
		Variables: []fixture.VariableSpec{{Name: "entries", TypeString: "uint256[]"}},
		Functions: []fixture.FunctionSpec{{Name: "push", Body: []string{"entries.push(1);"}}},
	}}, Options{})

	out := printer.Print(ctx.Arena, unit)
	assert.Contains(t, out.Text, "bool __scribble_all_")
	assert.Contains(t, out.Text, "for (uint256 i = 0; i < entries.length; i++)")
}

func TestInstrumentDefineEmittedOnce(t *testing.T) {
	ctx, unit := pipeline(t, []fixture.ContractSpec{{
		Name: "D",
		DocText: "/// #define nonneg(uint256 v) bool = v >= 0;\n" +
			"/// #invariant nonneg(x) && nonneg(x + 1);",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{Name: "f", Body: []string{"x += 1;"}}},
	}}, Options{})

	out := printer.Print(ctx.Arena, unit)
	assert.Equal(t, 1, strings.Count(out.Text, "function __scribble_define_nonneg("))
	assert.Contains(t, out.Text, "__scribble_define_nonneg(x)")
}

func TestInstrumentNoAssertSkipsChecks(t *testing.T) {
	ctx, unit := pipeline(t, counterSpec(), Options{NoAssert: true})
	out := printer.Print(ctx.Arena, unit)
	assert.NotContains(t, out.Text, "__scribble_assertionFailed(")
}

func TestInstrumentDebugEvents(t *testing.T) {
	ctx, unit := pipeline(t, counterSpec(), Options{DebugEvents: true})
	out := printer.Print(ctx.Arena, unit)
	assert.Contains(t, out.Text, "emit AssertionFailedData(")

	for _, ann := range ctx.Annotations {
		if ann.IsProperty() {
			assert.Equal(t, "AssertionFailedData(int,bytes)", ann.DebugEventSignature)
			assert.Equal(t, "AssertionFailedData(int,bytes)", ctx.DebugEvents[ann])
		}
	}
}

func TestInstrumentIdempotentWrap(t *testing.T) {
	ctx, unit := pipeline(t, counterSpec(), Options{})

	// a second Run over the same context must not wrap twice
	require.NoError(t, Run(ctx))
	out := printer.Print(ctx.Arena, unit)
	assert.Equal(t, 1, strings.Count(out.Text, "function inc_original() internal"))
}
