package instrument

import (
	"fmt"
	"strings"

	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
)

// checkerFuncName is the per-contract invariant checker the interposers
// call on exit of the outermost externally-visible call.
func checkerFuncName(contractName string) string {
	return "__scribble_check_state_invariants_" + contractName
}

// integrateContract performs the contract-level integration: the
// utilities import on the enclosing unit, the utilities base, and the
// general-instrumentation state variable.
func (c *Ctx) integrateContract(contractID hostast.NodeID, withInvariants bool) bool {
	decl := c.Arena.Get(contractID).(*hostast.ContractDecl)

	for _, b := range decl.BaseNames {
		if b == UtilsContractName {
			return false // already integrated
		}
	}
	decl.BaseNames = append(decl.BaseNames, UtilsContractName)
	decl.BaseIDs = append(decl.BaseIDs, c.utilsContract)

	if uid := c.unitOf(contractID); uid != 0 {
		c.addUtilsImport(uid)
	}

	if withInvariants {
		rng := decl.SourceRange()
		vid := c.Arena.NextID()
		v := hostast.NewVariableDecl(vid, rng, "__scribble_general_instrumentation", "bool", "internal", contractID)
		c.Arena.Put(v)
		decl.Variables = append(decl.Variables, vid)
		c.OtherInstrumentation = append(c.OtherInstrumentation, vid)
	}
	return true
}

// addUtilsImport prepends one import of the utilities unit per file.
func (c *Ctx) addUtilsImport(unitID hostast.NodeID) {
	unit := c.Arena.Get(unitID).(*hostast.SourceUnit)
	utilsPath := c.Opts.UtilsPath()
	for _, iid := range unit.Imports {
		if imp, ok := c.Arena.Get(iid).(*hostast.Import); ok && imp.Path == utilsPath {
			return
		}
	}
	impID := c.Arena.NextID()
	imp := hostast.NewImport(impID, unit.SourceRange(), utilsPath, "", nil)
	imp.ResolvedUnitID = c.UtilsUnit
	c.Arena.Put(imp)
	unit.Imports = append([]hostast.NodeID{impID}, unit.Imports...)
	c.OtherInstrumentation = append(c.OtherInstrumentation, impID)
}

func (c *Ctx) unitOf(contractID hostast.NodeID) hostast.NodeID {
	for _, uid := range c.Units {
		unit := c.Arena.Get(uid).(*hostast.SourceUnit)
		for _, cid := range unit.Contracts {
			if cid == contractID {
				return uid
			}
		}
	}
	return 0
}

// emitInvariantChecker installs the per-contract internal function that
// evaluates every invariant visible along the contract's linearization.
// The nodes land in GeneralInstrumentation keyed by property id.
func (c *Ctx) emitInvariantChecker(contractID hostast.NodeID, invariants []*sast.Annotation) error {
	decl := c.Arena.Get(contractID).(*hostast.ContractDecl)

	var stmts []hostast.NodeID
	for _, ann := range invariants {
		lw, err := c.lowerPredicate(ann, contractID)
		if err != nil {
			return err
		}
		annStmts := append(append([]hostast.NodeID{}, lw.prelude...), lw.evals...)
		annStmts = append(annStmts, c.buildCheck(ann, lw)...)
		stmts = append(stmts, annStmts...)

		c.EvaluationStatements[ann] = append(c.EvaluationStatements[ann], annStmts...)
		c.InstrumentedCheck[ann] = append(c.InstrumentedCheck[ann], lw.cond)
		c.GeneralInstrumentation[ann.ID] = append(c.GeneralInstrumentation[ann.ID], annStmts...)
	}

	rng := decl.SourceRange()
	block := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, rng, stmts)
	})
	fnID := c.Arena.NextID()
	fn := hostast.NewFunctionDecl(fnID, rng, checkerFuncName(decl.Name), "internal", "nonpayable")
	fn.Body = block
	fn.ContractID = contractID
	c.Arena.Put(fn)
	decl.Functions = append(decl.Functions, fnID)

	for _, ann := range invariants {
		c.GeneralInstrumentation[ann.ID] = append(c.GeneralInstrumentation[ann.ID], fnID)
	}
	return nil
}

// buildCheck turns a lowered predicate into the statements that enforce
// it: the failure branch fires the assertion primitive and, under
// --debug-events, the per-annotation data event.
func (c *Ctx) buildCheck(ann *sast.Annotation, lw lowered) []hostast.NodeID {
	rng := annRange(ann.FullRange)
	var failure []hostast.NodeID

	if !c.Opts.NoAssert {
		msg := fmt.Sprintf("%d: %s", ann.ID, annMessage(ann))
		failure = append(failure, c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewRawStmt(id, rng, fmt.Sprintf("__scribble_assertionFailed(%q);", msg))
		}))
	}
	if c.Opts.DebugEvents {
		sig := "AssertionFailedData(int,bytes)"
		ann.DebugEventSignature = sig
		c.DebugEvents[ann] = sig
		failure = append(failure, c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewRawStmt(id, rng,
				fmt.Sprintf("emit AssertionFailedData(%d, abi.encode(%d));", ann.ID, ann.ID))
		}))
	}
	if len(failure) == 0 {
		return nil
	}

	negated := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, rng, "!"+lw.condVar)
	})
	thenBlock := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, rng, failure)
	})
	guard := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewIfStmt(id, rng, negated, thenBlock, 0)
	})
	return []hostast.NodeID{guard}
}

func annMessage(ann *sast.Annotation) string {
	if ann.Label != "" {
		return ann.Label
	}
	return strings.TrimSuffix(ann.RawText, ";")
}

// wrapFunction applies the function-level wrapping: the
// original body moves into fn_original and the public fn becomes an
// interposition running preludes, the call, the post-conditions, and —
// when the contract is invariant-instrumented — the reentrancy/invariant
// bookkeeping on the outermost externally visible call.
func (c *Ctx) wrapFunction(contractID, fnID hostast.NodeID, posts []*sast.Annotation, withInvariants bool) error {
	key := wrapKey{contract: contractID, function: fnID}
	if c.wrapState[key] == instrumented {
		return nil
	}
	c.wrapState[key] = wrappingStarted

	decl := c.Arena.Get(contractID).(*hostast.ContractDecl)
	fn := c.Arena.Get(fnID).(*hostast.FunctionDecl)
	rng := fn.SourceRange()

	// lower every post-condition before touching the function so a
	// failure leaves the tree unmodified
	var lws []lowered
	for _, ann := range posts {
		lw, err := c.lowerPredicate(ann, contractID)
		if err != nil {
			return err
		}
		lws = append(lws, lw)
	}
	c.wrapState[key] = prologueReady

	// rename the original body into an internal twin
	origName := fn.Name + "_original"
	interposerID := c.Arena.NextID()
	interposer := hostast.NewFunctionDecl(interposerID, rng, fn.Name, fn.Visibility, fn.StateMutability)
	interposer.Params = append([]hostast.Param{}, fn.Params...)
	interposer.Returns = namedReturns(fn.Returns)
	interposer.ContractID = contractID

	fn.Name = origName
	fn.Visibility = "internal"

	var stmts []hostast.NodeID
	addRaw := func(text string) hostast.NodeID {
		id := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewRawStmt(id, rng, text)
		})
		stmts = append(stmts, id)
		return id
	}

	if withInvariants {
		entry := addRaw("bool __scribble_entry = __scribble_out_of_contract;")
		setIn := addRaw("__scribble_out_of_contract = false;")
		c.OtherInstrumentation = append(c.OtherInstrumentation, entry, setIn)
	}

	for i, lw := range lws {
		stmts = append(stmts, lw.prelude...)
		c.EvaluationStatements[posts[i]] = append(c.EvaluationStatements[posts[i]], lw.prelude...)
	}

	// call the original, binding its returns to the interposer's named
	// return slots so they flow out without an explicit return
	var argNames []string
	for _, p := range interposer.Params {
		argNames = append(argNames, p.Name)
	}
	if len(interposer.Returns) > 0 {
		var retNames []string
		for _, r := range interposer.Returns {
			retNames = append(retNames, r.Name)
		}
		lhs := strings.Join(retNames, ", ")
		if len(retNames) > 1 {
			lhs = "(" + lhs + ")"
		}
		assignee := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewRawExpr(id, rng, lhs+" = "+origName+"("+strings.Join(argNames, ", ")+")")
		})
		stmts = append(stmts, c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewExprStmt(id, rng, assignee)
		}))
	} else {
		calleeID := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewIdent(id, rng, origName, fnID)
		})
		var argIDs []hostast.NodeID
		for _, name := range argNames {
			n := name
			argIDs = append(argIDs, c.mint(func(id hostast.NodeID) hostast.Node {
				return hostast.NewRawExpr(id, rng, n)
			}))
		}
		callID := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewCall(id, rng, calleeID, argIDs)
		})
		stmts = append(stmts, c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewExprStmt(id, rng, callID)
		}))
	}

	for i, lw := range lws {
		post := append(append([]hostast.NodeID{}, lw.evals...), c.buildCheck(posts[i], lw)...)
		stmts = append(stmts, post...)
		c.EvaluationStatements[posts[i]] = append(c.EvaluationStatements[posts[i]], post...)
		c.InstrumentedCheck[posts[i]] = append(c.InstrumentedCheck[posts[i]], lw.cond)
	}

	if withInvariants {
		checkText := fmt.Sprintf("if (__scribble_entry) { %s(); __scribble_out_of_contract = true; }",
			checkerFuncName(decl.Name))
		exit := addRaw(checkText)
		c.OtherInstrumentation = append(c.OtherInstrumentation, exit)
	}

	bodyID := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, rng, stmts)
	})
	interposer.Body = bodyID
	c.Arena.Put(interposer)

	// splice the interposer right after the renamed original
	for i, id := range decl.Functions {
		if id == fnID {
			fns := make([]hostast.NodeID, 0, len(decl.Functions)+1)
			fns = append(fns, decl.Functions[:i+1]...)
			fns = append(fns, interposerID)
			fns = append(fns, decl.Functions[i+1:]...)
			decl.Functions = fns
			break
		}
	}

	c.wrapState[key] = instrumented
	// the interposer itself is terminal too, so a re-run never rewraps
	c.wrapState[wrapKey{contract: contractID, function: interposerID}] = instrumented
	return nil
}

// instrumentConstructor appends the invariant check to a constructor's
// end; constructors are never checked on entry.
func (c *Ctx) instrumentConstructor(contractID, fnID hostast.NodeID) {
	key := wrapKey{contract: contractID, function: fnID}
	if c.wrapState[key] == instrumented {
		return
	}
	c.wrapState[key] = instrumented

	decl := c.Arena.Get(contractID).(*hostast.ContractDecl)
	fn := c.Arena.Get(fnID).(*hostast.FunctionDecl)
	if fn.Body == 0 {
		return
	}
	block := c.Arena.Get(fn.Body).(*hostast.Block)
	tail := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, fn.SourceRange(),
			fmt.Sprintf("%s(); __scribble_out_of_contract = true;", checkerFuncName(decl.Name)))
	})
	block.Statements = append(block.Statements, tail)
	c.OtherInstrumentation = append(c.OtherInstrumentation, tail)
}

// namedReturns fills in names for anonymous return slots so the
// interposer can assign and implicitly return them.
func namedReturns(returns []hostast.Param) []hostast.Param {
	out := make([]hostast.Param, len(returns))
	for i, r := range returns {
		out[i] = r
		if out[i].Name == "" {
			out[i].Name = fmt.Sprintf("__scribble_ret_%d", i)
		}
	}
	return out
}
