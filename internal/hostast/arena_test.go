package hostast_test

import (
	"testing"

	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/hostast/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaPutGetRoundtrip(t *testing.T) {
	a := hostast.NewArena()
	id := a.NextID()
	a.Put(hostast.NewRawStmt(id, hostast.Range{}, "x = 1;"))

	got, ok := a.Get(id).(*hostast.RawStmt)
	require.True(t, ok)
	assert.Equal(t, "x = 1;", got.Text)
}

func TestArenaGetUnknownIsNil(t *testing.T) {
	a := hostast.NewArena()
	assert.Nil(t, a.Get(999))
}

func TestArenaMustGetPanicsOnDangling(t *testing.T) {
	a := hostast.NewArena()
	assert.Panics(t, func() { a.MustGet(42) })
}

func TestArenaReplaceChildRebindsSlot(t *testing.T) {
	a := hostast.NewArena()
	oldStmt := a.NextID()
	a.Put(hostast.NewRawStmt(oldStmt, hostast.Range{}, "old();"))
	newStmt := a.NextID()
	a.Put(hostast.NewRawStmt(newStmt, hostast.Range{}, "new();"))

	blockID := a.NextID()
	a.Put(hostast.NewBlock(blockID, hostast.Range{}, []hostast.NodeID{oldStmt}))

	require.NoError(t, a.ReplaceChild(blockID, oldStmt, newStmt))

	block := a.Get(blockID).(*hostast.Block)
	assert.Equal(t, []hostast.NodeID{newStmt}, block.Statements)
}

func TestArenaReplaceChildUnknownParent(t *testing.T) {
	a := hostast.NewArena()
	err := a.ReplaceChild(123, 1, 2)
	assert.Error(t, err)
}

func TestArenaReplaceChildNotAChild(t *testing.T) {
	a := hostast.NewArena()
	blockID := a.NextID()
	a.Put(hostast.NewBlock(blockID, hostast.Range{}, nil))
	err := a.ReplaceChild(blockID, 777, 778)
	assert.Error(t, err)
}

func TestArenaInsertStatement(t *testing.T) {
	a := hostast.NewArena()
	s1 := a.NextID()
	a.Put(hostast.NewRawStmt(s1, hostast.Range{}, "a();"))
	s2 := a.NextID()
	a.Put(hostast.NewRawStmt(s2, hostast.Range{}, "b();"))
	blockID := a.NextID()
	a.Put(hostast.NewBlock(blockID, hostast.Range{}, []hostast.NodeID{s1, s2}))

	prelude := a.NextID()
	a.Put(hostast.NewRawStmt(prelude, hostast.Range{}, "prelude();"))
	require.NoError(t, a.InsertStatement(blockID, 0, prelude))

	block := a.Get(blockID).(*hostast.Block)
	assert.Equal(t, []hostast.NodeID{prelude, s1, s2}, block.Statements)
}

func TestArenaInsertStatementOutOfRange(t *testing.T) {
	a := hostast.NewArena()
	blockID := a.NextID()
	a.Put(hostast.NewBlock(blockID, hostast.Range{}, nil))
	assert.Error(t, a.InsertStatement(blockID, 5, a.NextID()))
}

func TestContractIsInstrumentableOnlyForContracts(t *testing.T) {
	contract := hostast.NewContractDecl(1, hostast.Range{}, "Token", hostast.KindContract, nil)
	iface := hostast.NewContractDecl(2, hostast.Range{}, "IToken", hostast.KindInterface, nil)
	lib := hostast.NewContractDecl(3, hostast.Range{}, "SafeMath", hostast.KindLibrary, nil)

	assert.True(t, contract.IsInstrumentable())
	assert.False(t, iface.IsInstrumentable())
	assert.False(t, lib.IsInstrumentable())
}

func TestFunctionWrapEligible(t *testing.T) {
	cases := []struct {
		name       string
		vis        string
		mut        string
		ctor, fall bool
		want       bool
	}{
		{"external nonpayable", "external", "nonpayable", false, false, true},
		{"public payable", "public", "payable", false, false, true},
		{"internal nonpayable", "internal", "nonpayable", false, false, false},
		{"external view", "external", "view", false, false, false},
		{"external pure", "external", "pure", false, false, false},
		{"external constructor", "external", "nonpayable", true, false, false},
		{"external fallback", "external", "payable", false, true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fn := hostast.NewFunctionDecl(1, hostast.Range{}, "f", c.vis, c.mut)
			fn.IsConstructor = c.ctor
			fn.IsFallback = c.fall
			assert.Equal(t, c.want, fn.WrapEligible())
		})
	}
}

func TestFixtureBuildsNavigableTree(t *testing.T) {
	a, unitID := fixture.Build("Token.sol", []fixture.ContractSpec{
		{
			Name: "Token",
			Kind: hostast.KindContract,
			Variables: []fixture.VariableSpec{
				{Name: "balance", TypeString: "uint256", Visibility: "private"},
			},
			Functions: []fixture.FunctionSpec{
				{
					Name:            "transfer",
					Visibility:      "external",
					StateMutability: "nonpayable",
					Params:          []hostast.Param{{Name: "to", TypeString: "address"}},
					Body:            []string{"balance -= amount;"},
					DocText:         "/// #if_succeeds balance <= old(balance);",
				},
			},
		},
	})

	unit, ok := a.Get(unitID).(*hostast.SourceUnit)
	require.True(t, ok)
	require.Len(t, unit.Contracts, 1)

	contract := fixture.ContractNode(a, unit.Contracts[0])
	assert.Equal(t, "Token", contract.Name)
	require.Len(t, contract.Functions, 1)
	require.Len(t, contract.Variables, 1)

	fn := fixture.FunctionNode(a, contract.Functions[0])
	assert.Equal(t, "transfer", fn.Name)
	assert.True(t, fn.WrapEligible())
	require.NotZero(t, fn.DocComment)

	doc := a.Get(fn.DocComment).(*hostast.DocComment)
	assert.Contains(t, doc.Text, "#if_succeeds")
}
