package instrument

import (
	"fmt"
	"strings"

	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
)

// lowered is one predicate translated to host code:
//
//   - prelude runs before the target body (old-captures),
//   - evals runs after the body but before the check (quantifier loops,
//     let bindings, the boolean the check reads),
//   - cond is the condition node recorded under instrumentedCheck.
type lowered struct {
	prelude []hostast.NodeID
	evals   []hostast.NodeID
	cond    hostast.NodeID
	condVar string // local holding the condition's value
}

// lowerPredicate translates ann's predicate. contractID scopes user-
// function resolution and #define emission.
func (c *Ctx) lowerPredicate(ann *sast.Annotation, contractID hostast.NodeID) (lowered, error) {
	rng := annRange(ann.FullRange)
	lw := &lowerer{
		ctx: c, ann: ann, contract: contractID, rng: rng,
		oldNames: make(map[*sast.Old]string),
	}

	// old(e) lifts to prologue captures whose locals replace the old
	// nodes in the post-state render
	var firstErr error
	sast.Walk(ann.Predicate, func(e sast.Expr) {
		old, ok := e.(*sast.Old)
		if !ok || firstErr != nil {
			return
		}
		t, found := c.Env.TypeOf(old.Operand)
		if !found {
			firstErr = diag.Newf(diag.Internal, diag.Position{},
				"old() operand was never type-checked")
			return
		}
		name := c.freshName("_original_")
		init := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewRawExpr(id, rng, lw.render(old.Operand))
		})
		capture := c.mint(func(id hostast.NodeID) hostast.Node {
			return hostast.NewVarDeclStmt(id, rng, name, localTypeString(t), init)
		})
		lw.prelude = append(lw.prelude, capture)
		lw.oldNames[old] = name
	})
	if firstErr != nil {
		return lowered{}, firstErr
	}

	condText := lw.render(ann.Predicate)

	condVar := c.freshName("__scribble_check_")
	cond := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, rng, condText)
	})
	decl := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewVarDeclStmt(id, rng, condVar, "bool", cond)
	})
	lw.evals = append(lw.evals, decl)

	return lowered{prelude: lw.prelude, evals: lw.evals, cond: cond, condVar: condVar}, nil
}

// lowerer renders one predicate to target-language text, spilling
// quantifiers and lets into eval statements as it goes.
type lowerer struct {
	ctx      *Ctx
	ann      *sast.Annotation
	contract hostast.NodeID
	rng      hostast.Range

	oldNames map[*sast.Old]string
	prelude  []hostast.NodeID
	evals    []hostast.NodeID
}

func (l *lowerer) render(e sast.Expr) string {
	switch n := e.(type) {
	case *sast.IntLiteral:
		return n.Value
	case *sast.BoolLiteral:
		return fmt.Sprintf("%t", n.Value)
	case *sast.AddressLiteral:
		return n.Value
	case *sast.StringLiteral:
		return fmt.Sprintf("%q", n.Value)
	case *sast.Identifier:
		return n.Name
	case *sast.Index:
		return l.render(n.Base) + "[" + l.render(n.Index) + "]"
	case *sast.Member:
		return l.render(n.Base) + "." + n.Name
	case *sast.Call:
		return l.renderCall(n)
	case *sast.UnaryOp:
		return n.Op + "(" + l.render(n.Operand) + ")"
	case *sast.BinaryOp:
		return "(" + l.render(n.Left) + " " + n.Op + " " + l.render(n.Right) + ")"
	case *sast.Conditional:
		return "(" + l.render(n.Cond) + " ? " + l.render(n.Then) + " : " + l.render(n.Else) + ")"
	case *sast.Old:
		if name, ok := l.oldNames[n]; ok {
			return name
		}
		// unreachable after lowerPredicate collected every old node
		return l.render(n.Operand)
	case *sast.Let:
		return l.renderLet(n)
	case *sast.Quantifier:
		return l.renderQuantifier(n)
	case *sast.Tuple:
		var parts []string
		for _, el := range n.Elements {
			parts = append(parts, l.render(el))
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *sast.Cast:
		return n.Target.String() + "(" + l.render(n.Operand) + ")"
	}
	return "/*unlowered*/"
}

// renderCall inlines conversions verbatim and routes user #define calls
// to their emitted host-level function: one internal function per define
// per contract, shared by every use site.
func (l *lowerer) renderCall(n *sast.Call) string {
	var args []string
	for _, a := range n.Args {
		args = append(args, l.render(a))
	}
	callee, ok := n.Callee.(*sast.Identifier)
	if !ok {
		return l.render(n.Callee) + "(" + strings.Join(args, ", ") + ")"
	}

	if def := l.ctx.Env.UserFunc(l.ctx.linearizedNames(l.contract), callee.Name); def != nil {
		l.ctx.emitUserFunc(def, l.ann)
		return userFuncName(def.Name) + "(" + strings.Join(args, ", ") + ")"
	}
	return callee.Name + "(" + strings.Join(args, ", ") + ")"
}

func (l *lowerer) renderLet(n *sast.Let) string {
	t, _ := l.ctx.Env.TypeOf(n.Value)
	init := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, l.rng, l.render(n.Value))
	})
	decl := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewVarDeclStmt(id, l.rng, n.Name, localTypeString(t), init)
	})
	l.evals = append(l.evals, decl)
	return l.render(n.Body)
}

// renderQuantifier unrolls into a host loop over the stated range:
// the loop accumulates into a fresh boolean whose name
// becomes the quantifier's rendered value.
func (l *lowerer) renderQuantifier(n *sast.Quantifier) string {
	acc := l.ctx.freshName("__scribble_all_")
	seed, combine := "true", "&&"
	if n.Kind == sast.Exists {
		acc = l.ctx.freshName("__scribble_some_")
		seed, combine = "false", "||"
	}

	seedExpr := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, l.rng, seed)
	})
	accDecl := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewVarDeclStmt(id, l.rng, acc, "bool", seedExpr)
	})
	l.evals = append(l.evals, accDecl)

	var startText, endText string
	if rng, ok := n.Range.(*sast.BinaryOp); ok && rng.Op == "..." {
		startText, endText = l.render(rng.Left), l.render(rng.Right)
	} else {
		startText, endText = "0", l.render(n.Range)+".length"
	}

	start := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, l.rng, startText)
	})
	end := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawExpr(id, l.rng, endText)
	})
	step := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, l.rng,
			fmt.Sprintf("%s = %s %s (%s);", acc, acc, combine, l.render(n.Body)))
	})
	body := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, l.rng, []hostast.NodeID{step})
	})
	loop := l.ctx.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewForStmt(id, l.rng, n.Binder, start, end, body)
	})
	l.evals = append(l.evals, loop)
	return acc
}

// emitUserFunc installs at most one host-level internal function per
// #define per contract; repeated use calls the same function.
func (c *Ctx) emitUserFunc(def *sast.UserFunctionDef, ann *sast.Annotation) {
	key := def.Contract + "." + def.Name
	if c.definesDone[key] {
		return
	}
	c.definesDone[key] = true

	cid, ok := c.Hierarchy.ByName(def.Contract)
	if !ok {
		return
	}
	decl := c.Arena.Get(cid).(*hostast.ContractDecl)
	rng := annRange(ann.FullRange)

	bodyLw := &lowerer{ctx: c, ann: ann, contract: cid, rng: rng}
	ret := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewRawStmt(id, rng, "return "+bodyLw.render(def.Body)+";")
	})
	stmts := append(append([]hostast.NodeID{}, bodyLw.evals...), ret)
	block := c.mint(func(id hostast.NodeID) hostast.Node {
		return hostast.NewBlock(id, rng, stmts)
	})

	fnID := c.Arena.NextID()
	fn := hostast.NewFunctionDecl(fnID, rng, userFuncName(def.Name), "internal", "view")
	for _, p := range def.Params {
		fn.Params = append(fn.Params, hostast.Param{Name: p.Name, TypeString: localTypeString(p.Type)})
	}
	fn.Returns = []hostast.Param{{TypeString: localTypeString(def.ReturnType)}}
	fn.Body = block
	fn.ContractID = cid
	c.Arena.Put(fn)
	decl.Functions = append(decl.Functions, fnID)

	c.GeneralInstrumentation[ann.ID] = append(c.GeneralInstrumentation[ann.ID], fnID, block)
}

func userFuncName(name string) string { return "__scribble_define_" + name }

// localTypeString renders a spec type as a local-variable type, adding the
// data location reference types need in the host language.
func localTypeString(t sast.Type) string {
	if t == nil {
		return "uint256"
	}
	switch t.(type) {
	case sast.StringType, sast.DynamicArrayType, sast.FixedArrayType:
		return t.String() + " memory"
	case sast.BytesType:
		if t.Equal(sast.BytesType{N: 0}) {
			return t.String() + " memory"
		}
	}
	return t.String()
}

// linearizedNames mirrors typecheck's traversal order for user-function
// lookup during lowering.
func (c *Ctx) linearizedNames(contractID hostast.NodeID) []string {
	lin, err := c.Hierarchy.Linearize(contractID)
	if err != nil {
		return nil
	}
	var names []string
	for _, id := range lin {
		names = append(names, c.Arena.Get(id).(*hostast.ContractDecl).Name)
	}
	return names
}
