package instrument

import "github.com/oxhq/scribble/internal/hostast"

// genUtils synthesizes the utilities unit once per run: the
// reentrancy sentinel, the debug events, and the user-assertion primitive
// in the selected mode. Instrumented contracts inherit the utilities
// contract, so the sentinel lives in the calling contract's own storage —
// which is what makes a delegatecall-based reentry through an
// instrumented function observable (the delegatee writes the caller's
// slot, never a transient one).
func (c *Ctx) genUtils() {
	if c.UtilsUnit != 0 {
		return
	}
	utilsPath := c.Opts.UtilsPath()
	fi := c.Arena.AddFile(utilsPath, nil)
	rng := hostast.Range{FileIndex: fi}

	sentinel := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, rng, "bool __scribble_out_of_contract = true;")
	})
	evFail := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, rng, "event AssertionFailed(string message);")
	})
	evData := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, rng, "event AssertionFailedData(int eventId, bytes encodingData);")
	})

	var bodyText string
	switch c.Opts.UserAssertMode {
	case AssertMstore:
		bodyText = "assembly { mstore(0x0, 0x2e694ec1) }\nrevert(message);"
	default:
		bodyText = "emit AssertionFailed(message);"
	}
	stmt := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, rng, bodyText)
	})
	block := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, rng, []hostast.NodeID{stmt})
	})
	fnID := c.Arena.NextID()
	fn := hostast.NewFunctionDecl(fnID, rng, "__scribble_assertionFailed", "internal", "nonpayable")
	fn.Params = []hostast.Param{{Name: "message", TypeString: "string memory"}}
	fn.Body = block

	cid := c.Arena.NextID()
	decl := hostast.NewContractDecl(cid, rng, UtilsContractName, hostast.KindContract, nil)
	decl.Raws = []hostast.NodeID{sentinel, evFail, evData}
	decl.Functions = []hostast.NodeID{fnID}
	fn.ContractID = cid
	c.Arena.Put(fn)
	c.Arena.Put(decl)

	uid := c.Arena.NextID()
	c.Arena.Put(hostast.NewSourceUnit(uid, rng, utilsPath, nil, []hostast.NodeID{cid}))

	c.UtilsUnit = uid
	c.utilsContract = cid
	c.OtherInstrumentation = append(c.OtherInstrumentation, uid, cid, fnID, sentinel, evFail, evData)
}
