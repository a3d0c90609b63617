package instrument

import (
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
)

// Run performs the whole instrumentation pass over the merged tree:
// utilities generation, per-contract invariant checkers, function
// wrapping, and contract-level integration. Annotations are consumed in
// extraction order; contracts in unit order.
func Run(c *Ctx) error {
	c.genUtils()

	// index annotations by target
	invariantsByContract := make(map[hostast.NodeID][]*sast.Annotation)
	postsByFunction := make(map[hostast.NodeID][]*sast.Annotation)
	annotatedContracts := make(map[hostast.NodeID]bool)

	for _, ann := range c.Annotations {
		target := hostast.NodeID(ann.TargetNodeID)
		switch ann.Kind {
		case sast.Invariant:
			cid := target
			if v, ok := c.Arena.Get(target).(*hostast.VariableDecl); ok {
				cid = v.ContractID
			}
			invariantsByContract[cid] = append(invariantsByContract[cid], ann)
			annotatedContracts[cid] = true
		case sast.IfSucceeds:
			postsByFunction[target] = append(postsByFunction[target], ann)
		}
	}

	needsInvariants := c.Hierarchy.NeedsInstrumentation(annotatedContracts)

	// per-contract invariant checkers, children before parents so base
	// invariants are collected exactly once per contract via the
	// linearization
	var dfsErr error
	c.Hierarchy.DFS(func(cid hostast.NodeID) {
		if dfsErr != nil || !needsInvariants[cid] {
			return
		}
		lin, err := c.Hierarchy.Linearize(cid)
		if err != nil {
			dfsErr = err
			return
		}
		var invariants []*sast.Annotation
		for _, base := range lin {
			invariants = append(invariants, invariantsByContract[base]...)
		}
		if !c.integrateContract(cid, true) {
			return // already instrumented by an earlier Run
		}
		if err := c.emitInvariantChecker(cid, invariants); err != nil {
			dfsErr = err
		}
	})
	if dfsErr != nil {
		return dfsErr
	}

	// function wrapping, in unit order then declaration order
	for _, uid := range c.Units {
		unit := c.Arena.Get(uid).(*hostast.SourceUnit)
		for _, cid := range unit.Contracts {
			decl := c.Arena.Get(cid).(*hostast.ContractDecl)
			if !decl.IsInstrumentable() {
				continue
			}
			withInvariants := needsInvariants[cid]

			// iterate over a snapshot: wrapping appends interposers
			fns := append([]hostast.NodeID{}, decl.Functions...)
			for _, fid := range fns {
				fn, ok := c.Arena.Get(fid).(*hostast.FunctionDecl)
				if !ok {
					continue
				}
				posts := postsByFunction[fid]

				if fn.IsConstructor {
					if withInvariants {
						c.instrumentConstructor(cid, fid)
					}
					continue
				}
				if !fn.WrapEligible() {
					continue
				}
				if len(posts) == 0 && !withInvariants {
					continue
				}
				if len(posts) > 0 && !withInvariants {
					// post-conditions alone still need the assertion
					// primitive from the utilities contract
					c.integrateContract(cid, false)
				}
				if err := c.wrapFunction(cid, fid, posts, withInvariants); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
