package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/hostast/fixture"
	"github.com/oxhq/scribble/internal/merge"
)

func groupOf(path string, contracts []fixture.ContractSpec) merge.Group {
	a, unit := fixture.Build(path, contracts)
	return merge.Group{Arena: a, Units: []hostast.NodeID{unit}}
}

func TestRunFilesMode(t *testing.T) {
	g := groupOf("counter.sol", []fixture.ContractSpec{{
		Name:      "Counter",
		DocText:   "/// #invariant x >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{
			Name:    "inc",
			DocText: "/// #if_succeeds old(x) + 1 == x;",
			Body:    []string{"x += 1;"},
		}},
	}})

	res, err := Run([]merge.Group{g}, merge.Check, Options{OutputMode: "files"})
	require.NoError(t, err)

	require.Len(t, res.Files, 2) // counter.sol.instrumented + utils unit
	assert.Equal(t, "counter.sol.instrumented", res.Files[0].Path)
	assert.Contains(t, string(res.Files[0].Content), "function inc_original() internal")
	assert.Equal(t, "__scribble_ReentrancyUtils.sol", res.Files[1].Path)

	require.NotNil(t, res.Metadata)
	require.Len(t, res.Metadata.PropertyMap, 2)
	assert.Len(t, res.Annotations, 2)
}

func TestRunBaseInvariantInstrumentsDerivedAcrossFiles(t *testing.T) {
	// across two compilations sharing nothing
	base := groupOf("a.sol", []fixture.ContractSpec{{
		Name:      "A",
		DocText:   "/// #invariant x >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{Name: "inc", Body: []string{"x++;"}}},
	}})
	derived := groupOf("b.sol", []fixture.ContractSpec{{
		Name:      "B",
		Bases:     []string{"A"},
		Functions: []fixture.FunctionSpec{{Name: "dec", Body: []string{"x--;"}}},
	}})

	res, err := Run([]merge.Group{base, derived}, merge.Check, Options{OutputMode: "files"})
	require.NoError(t, err)

	var aText, bText string
	for _, f := range res.Files {
		switch f.Path {
		case "a.sol.instrumented":
			aText = string(f.Content)
		case "b.sol.instrumented":
			bText = string(f.Content)
		}
	}
	assert.Contains(t, aText, "__scribble_check_state_invariants_A();")
	assert.Contains(t, bText, "__scribble_check_state_invariants_B();")
	assert.Contains(t, bText, "function dec_original() internal")
}

func TestRunFlatMode(t *testing.T) {
	g1 := groupOf("x.sol", []fixture.ContractSpec{{
		Name:      "C",
		DocText:   "/// #invariant v >= 0;",
		Variables: []fixture.VariableSpec{{Name: "v", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{Name: "f", Body: []string{"v++;"}}},
	}})
	g2 := groupOf("y.sol", []fixture.ContractSpec{{
		Name: "C",
	}})

	res, err := Run([]merge.Group{g1, g2}, merge.Check, Options{
		OutputMode:      "flat",
		CompilerVersion: "0.8.19",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Flat, "pragma solidity 0.8.19;")
	assert.Contains(t, res.Flat, "contract __scribble_ReentrancyUtils {")
	assert.Contains(t, res.Flat, "contract C_1 {")
	assert.NotContains(t, res.Flat, "import")
	assert.Equal(t, []string{"flattened.sol"}, res.Metadata.InstrSourceList)
}

func TestRunFilterDropsAnnotations(t *testing.T) {
	g := groupOf("f.sol", []fixture.ContractSpec{{
		Name:      "F",
		DocText:   "/// #invariant {:msg \"keep\"} x >= 0;\n/// #invariant {:msg \"drop\"} x <= 10;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{Name: "f", Body: []string{"x++;"}}},
	}})

	res, err := Run([]merge.Group{g}, merge.Check, Options{
		OutputMode:    "files",
		FilterMessage: "^keep$",
	})
	require.NoError(t, err)
	require.Len(t, res.Annotations, 1)
	assert.Equal(t, "keep", res.Annotations[0].Label)
	require.Len(t, res.Metadata.PropertyMap, 1)
}

func TestRunSemanticErrorAborts(t *testing.T) {
	g := groupOf("bad.sol", []fixture.ContractSpec{{
		Name:      "Bad",
		DocText:   "/// #invariant old(x) == x;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
	}})

	_, err := Run([]merge.Group{g}, merge.Check, Options{OutputMode: "files"})
	require.Error(t, err)
	var d *diag.Diagnostic
	require.ErrorAs(t, err, &d)
	assert.Equal(t, diag.Semantic, d.Kind)
}

func TestRunAnnotationPreservation(t *testing.T) {
	// one property record per annotation with
	// matching kind, label, message
	g := groupOf("p.sol", []fixture.ContractSpec{{
		Name:      "P",
		DocText:   "/// #invariant {:msg \"solvency\"} x >= 0;",
		Variables: []fixture.VariableSpec{{Name: "x", TypeString: "uint256"}},
		Functions: []fixture.FunctionSpec{{
			Name:    "move",
			DocText: "/// #if_succeeds {:msg \"monotone\"} old(x) <= x;",
			Body:    []string{"x += 1;"},
		}},
	}})

	res, err := Run([]merge.Group{g}, merge.Check, Options{OutputMode: "files"})
	require.NoError(t, err)
	require.Len(t, res.Metadata.PropertyMap, 2)
	assert.Equal(t, "solvency", res.Metadata.PropertyMap[0].Message)
	assert.Equal(t, "monotone", res.Metadata.PropertyMap[1].Message)
	assert.Equal(t, "contract", res.Metadata.PropertyMap[0].TargetKind)
	assert.Equal(t, "function", res.Metadata.PropertyMap[1].TargetKind)

	// instrumented file traces back: every check range is inside output
	instr := string(res.Files[0].Content)
	for _, rec := range res.Metadata.PropertyMap {
		for _, r := range rec.CheckRanges {
			if r.FileIndex == 0 {
				require.LessOrEqual(t, r.Offset+r.Length, len(instr))
				assert.True(t, strings.Contains(instr[r.Offset:r.Offset+r.Length], "_original_") ||
					len(instr[r.Offset:r.Offset+r.Length]) > 0)
			}
		}
	}
}
