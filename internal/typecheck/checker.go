package typecheck

import (
	"github.com/oxhq/scribble/internal/cha"
	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/sast"
	"github.com/oxhq/scribble/internal/specparser"
)

// Checker walks annotation expressions bottom-up, resolves names through
// the scope chain, applies the typing rules, and records
// semantic flags. One Checker serves a whole run; state shared across
// annotations is limited to the Env and SemanticMap.
type Checker struct {
	arena     *hostast.Arena
	hierarchy *cha.CHA
	Env       *Env
	Sem       SemanticMap

	// literals adapt their signedness to the other operand, so mixed-sign
	// rejection only fires between two declared-type operands
	literal map[sast.Expr]bool

	// checking tracks #define bodies in flight to reject recursion
	checking map[*sast.UserFunctionDef]bool
}

func NewChecker(arena *hostast.Arena, hierarchy *cha.CHA) *Checker {
	return &Checker{
		arena:     arena,
		hierarchy: hierarchy,
		Env:       NewEnv(),
		Sem:       make(SemanticMap),
		literal:   make(map[sast.Expr]bool),
		checking:  make(map[*sast.UserFunctionDef]bool),
	}
}

// CheckAnnotation type-checks one annotation in its context. For a #define
// it registers the user function; for properties it requires a boolean
// predicate. Errors are positioned diagnostics whose offsets were lifted
// to file coordinates by the extractor.
func (c *Checker) CheckAnnotation(ann *sast.Annotation, ctx Context) error {
	if ann.Kind == sast.Define {
		def := ann.UserFunc
		sc := newScope(nil)
		for _, p := range def.Params {
			sc.bind(p.Name, p.Type)
		}
		c.Env.RegisterUserFunc(def)
		c.checking[def] = true
		bodyType, err := c.check(def.Body, sc, ctx, ann)
		delete(c.checking, def)
		if err != nil {
			return err
		}
		if !bodyType.Equal(def.ReturnType) && !c.numericCompatible(def.Body, bodyType, def.ReturnType) {
			return c.typeErrf(def.Body, "incompatible-types",
				"define %s body has type %s, declared %s", def.Name, bodyType.String(), def.ReturnType.String())
		}
		return nil
	}

	t, err := c.check(ann.Predicate, newScope(nil), ctx, ann)
	if err != nil {
		return err
	}
	if !t.Equal(sast.BoolType{}) {
		return c.typeErrf(ann.Predicate, "incompatible-types",
			"%s predicate must be boolean, found %s", ann.Kind, t.String())
	}
	return nil
}

// check assigns exactly one type to e and every node under it; assignment
// is idempotent because it depends only on e and the scope chain.
func (c *Checker) check(e sast.Expr, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	t, err := c.check1(e, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.Env.setType(e, t)
	return t, nil
}

func (c *Checker) check1(e sast.Expr, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	switch n := e.(type) {
	case *sast.IntLiteral:
		c.literal[e] = true
		return sast.IntegerType{Bits: 256}, nil
	case *sast.BoolLiteral:
		return sast.BoolType{}, nil
	case *sast.AddressLiteral:
		return sast.AddressType{}, nil
	case *sast.StringLiteral:
		return sast.StringType{}, nil

	case *sast.Identifier:
		return c.resolveName(n, sc, ctx)

	case *sast.Member:
		return c.checkMember(n, sc, ctx, ann)

	case *sast.Index:
		return c.checkIndex(n, sc, ctx, ann)

	case *sast.Call:
		return c.checkCall(n, sc, ctx, ann)

	case *sast.UnaryOp:
		opT, err := c.check(n.Operand, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		c.propagate(e, n.Operand)
		switch n.Op {
		case "!":
			if !opT.Equal(sast.BoolType{}) {
				return nil, c.typeErrf(e, "incompatible-types", "operator ! needs bool, found %s", opT.String())
			}
			return sast.BoolType{}, nil
		case "-":
			it, ok := opT.(sast.IntegerType)
			if !ok {
				return nil, c.typeErrf(e, "incompatible-types", "operator - needs integer, found %s", opT.String())
			}
			if c.literal[n.Operand] {
				c.literal[e] = true
			}
			return sast.IntegerType{Signed: true, Bits: it.Bits}, nil
		case "~":
			if _, ok := opT.(sast.IntegerType); !ok {
				return nil, c.typeErrf(e, "incompatible-types", "operator ~ needs integer, found %s", opT.String())
			}
			return opT, nil
		}
		return nil, c.typeErrf(e, "incompatible-types", "unknown unary operator %s", n.Op)

	case *sast.BinaryOp:
		return c.checkBinary(n, sc, ctx, ann)

	case *sast.Conditional:
		condT, err := c.check(n.Cond, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		if !condT.Equal(sast.BoolType{}) {
			return nil, c.typeErrf(n.Cond, "incompatible-types", "condition must be bool, found %s", condT.String())
		}
		thenT, err := c.check(n.Then, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		elseT, err := c.check(n.Else, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		c.propagate(e, n.Cond, n.Then, n.Else)
		if t, ok := c.unify(n.Then, n.Else, thenT, elseT); ok {
			return t, nil
		}
		return nil, c.typeErrf(e, "incompatible-types",
			"conditional branches disagree: %s vs %s", thenT.String(), elseT.String())

	case *sast.Old:
		if ann.Kind != sast.IfSucceeds {
			return nil, c.semErrf(e, "forbidden-old",
				"old() is only valid inside if_succeeds annotations")
		}
		opT, err := c.check(n.Operand, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		c.propagate(e, n.Operand)
		c.markSubtree(e, ReadsOld)
		return opT, nil

	case *sast.Let:
		valT, err := c.check(n.Value, sc, ctx, ann)
		if err != nil {
			return nil, err
		}
		inner := newScope(sc)
		inner.bind(n.Name, valT)
		bodyT, err := c.check(n.Body, inner, ctx, ann)
		if err != nil {
			return nil, err
		}
		c.propagate(e, n.Value, n.Body)
		return bodyT, nil

	case *sast.Quantifier:
		return c.checkQuantifier(n, sc, ctx, ann)

	case *sast.Tuple:
		var elems []sast.Type
		for _, el := range n.Elements {
			t, err := c.check(el, sc, ctx, ann)
			if err != nil {
				return nil, err
			}
			elems = append(elems, t)
			c.propagate(e, el)
		}
		return sast.TupleType{Elements: elems}, nil

	case *sast.Cast:
		if _, err := c.check(n.Operand, sc, ctx, ann); err != nil {
			return nil, err
		}
		c.propagate(e, n.Operand)
		return n.Target, nil
	}
	return nil, c.typeErrf(e, "incompatible-types", "unsupported expression")
}

// resolveName walks the scope chain, innermost first: binders, then
// function parameters, contract state, linearized bases' state, built-ins.
func (c *Checker) resolveName(n *sast.Identifier, sc *scope, ctx Context) (sast.Type, error) {
	if t, ok := sc.lookup(n.Name); ok {
		return t, nil
	}

	if ctx.FunctionID != 0 {
		fn := c.arena.Get(ctx.FunctionID).(*hostast.FunctionDecl)
		for _, p := range fn.Params {
			if p.Name == n.Name {
				return c.parseDeclType(n, p.TypeString)
			}
		}
		for _, r := range fn.Returns {
			if r.Name == n.Name {
				return c.parseDeclType(n, r.TypeString)
			}
		}
	}

	if ctx.ContractID != 0 {
		lin, err := c.hierarchy.Linearize(ctx.ContractID)
		if err != nil {
			return nil, err
		}
		for _, cid := range lin {
			decl := c.arena.Get(cid).(*hostast.ContractDecl)
			for _, vid := range decl.Variables {
				v := c.arena.Get(vid).(*hostast.VariableDecl)
				if v.Name == n.Name {
					c.Sem.Mark(n, ReadsState)
					return c.parseDeclType(n, v.TypeString)
				}
			}
		}
	}

	if n.Name == "this" && ctx.ContractID != 0 {
		decl := c.arena.Get(ctx.ContractID).(*hostast.ContractDecl)
		return sast.ContractType{Name: decl.Name, DeclID: int(ctx.ContractID)}, nil
	}
	if id, ok := c.hierarchy.ByName(n.Name); ok {
		decl := c.arena.Get(id).(*hostast.ContractDecl)
		return sast.MetaType{Of: sast.ContractType{Name: decl.Name, DeclID: int(id)}}, nil
	}

	return nil, c.typeErrf(n, "unknown-name", "unknown identifier %s", n.Name)
}

func (c *Checker) checkMember(n *sast.Member, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	// magic globals resolve before their base is treated as a name
	if id, ok := n.Base.(*sast.Identifier); ok {
		if t, ok := magicMember(id.Name, n.Name); ok {
			c.Env.setType(n.Base, magicBaseType(id.Name))
			return t, nil
		}
	}

	baseT, err := c.check(n.Base, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.propagate(n, n.Base)

	switch bt := baseT.(type) {
	case sast.DynamicArrayType, sast.FixedArrayType:
		if n.Name == "length" {
			return sast.IntegerType{Bits: 256}, nil
		}
	case sast.AddressType:
		if n.Name == "balance" {
			return sast.IntegerType{Bits: 256}, nil
		}
	case sast.ContractType:
		// state access through a contract reference
		if cid, ok := c.hierarchy.ByName(bt.Name); ok {
			lin, err := c.hierarchy.Linearize(cid)
			if err != nil {
				return nil, err
			}
			for _, lid := range lin {
				decl := c.arena.Get(lid).(*hostast.ContractDecl)
				for _, vid := range decl.Variables {
					v := c.arena.Get(vid).(*hostast.VariableDecl)
					if v.Name == n.Name {
						c.Sem.Mark(n, ReadsState)
						return c.parseDeclType(n, v.TypeString)
					}
				}
			}
		}
	case sast.StructType:
		if def := c.structByName(bt.Name); def != nil {
			for _, f := range def.Fields {
				if f.Name == n.Name {
					return c.parseDeclType(n, f.TypeString)
				}
			}
		}
	case sast.MetaType:
		// enum member access: State.Open
		if et, ok := bt.Of.(sast.EnumType); ok {
			return et, nil
		}
	}
	return nil, c.typeErrf(n, "unknown-name", "type %s has no member %s", baseT.String(), n.Name)
}

func (c *Checker) checkIndex(n *sast.Index, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	baseT, err := c.check(n.Base, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	idxT, err := c.check(n.Index, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.propagate(n, n.Base, n.Index)

	switch bt := baseT.(type) {
	case sast.DynamicArrayType:
		if _, ok := idxT.(sast.IntegerType); !ok {
			return nil, c.typeErrf(n.Index, "incompatible-types", "array index must be integer")
		}
		return bt.Elem, nil
	case sast.FixedArrayType:
		if _, ok := idxT.(sast.IntegerType); !ok {
			return nil, c.typeErrf(n.Index, "incompatible-types", "array index must be integer")
		}
		return bt.Elem, nil
	case sast.MappingType:
		if !idxT.Equal(bt.Key) && !c.numericCompatible(n.Index, idxT, bt.Key) {
			return nil, c.typeErrf(n.Index, "incompatible-types",
				"mapping key must be %s, found %s", bt.Key.String(), idxT.String())
		}
		return bt.Value, nil
	case sast.BytesType:
		if bt.N == 0 {
			return sast.BytesType{N: 1}, nil
		}
	}
	return nil, c.typeErrf(n, "incompatible-types", "type %s is not indexable", baseT.String())
}

func (c *Checker) checkCall(n *sast.Call, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	callee, ok := n.Callee.(*sast.Identifier)
	if !ok {
		return nil, c.typeErrf(n, "incompatible-types", "only simple calls are supported in annotations")
	}

	// elementary type conversion: uint256(x), address(x), ...
	if t, err := specparser.ParseTypeString(callee.Name); err == nil && isElementary(t) {
		if len(n.Args) != 1 {
			return nil, c.typeErrf(n, "arity-mismatch", "conversion to %s takes one argument", t.String())
		}
		if _, err := c.check(n.Args[0], sc, ctx, ann); err != nil {
			return nil, err
		}
		c.Env.setType(n.Callee, sast.MetaType{Of: t})
		c.propagate(n, n.Args[0])
		return t, nil
	}

	// user-defined #define, resolved through the linearized contract list
	if def := c.Env.UserFunc(c.linearizedNames(ctx), callee.Name); def != nil {
		if c.checking[def] {
			return nil, c.semErrf(n, "recursive-define", "recursive use of %s is not allowed", def.Name)
		}
		if len(n.Args) != len(def.Params) {
			return nil, c.typeErrf(n, "arity-mismatch",
				"%s expects %d arguments, got %d", def.Name, len(def.Params), len(n.Args))
		}
		for i, arg := range n.Args {
			argT, err := c.check(arg, sc, ctx, ann)
			if err != nil {
				return nil, err
			}
			want := def.Params[i].Type
			if !argT.Equal(want) && !c.numericCompatible(arg, argT, want) {
				return nil, c.typeErrf(arg, "incompatible-types",
					"argument %d of %s must be %s, found %s", i+1, def.Name, want.String(), argT.String())
			}
			c.propagate(n, arg)
		}
		c.Env.setType(n.Callee, sast.FunctionType{})
		return def.ReturnType, nil
	}

	// host function call: must exist and be pure/view
	if ctx.ContractID != 0 {
		lin, err := c.hierarchy.Linearize(ctx.ContractID)
		if err != nil {
			return nil, err
		}
		for _, cid := range lin {
			decl := c.arena.Get(cid).(*hostast.ContractDecl)
			for _, fid := range decl.Functions {
				fn := c.arena.Get(fid).(*hostast.FunctionDecl)
				if fn.Name != callee.Name {
					continue
				}
				if fn.IsStateMutating() {
					return nil, c.semErrf(n, "non-pure-call",
						"annotation expressions may not call state-mutating function %s", fn.Name)
				}
				if len(n.Args) != len(fn.Params) {
					return nil, c.typeErrf(n, "arity-mismatch",
						"%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(n.Args))
				}
				for i, arg := range n.Args {
					argT, err := c.check(arg, sc, ctx, ann)
					if err != nil {
						return nil, err
					}
					want, err := c.parseDeclType(arg, fn.Params[i].TypeString)
					if err != nil {
						return nil, err
					}
					if !argT.Equal(want) && !c.numericCompatible(arg, argT, want) {
						return nil, c.typeErrf(arg, "incompatible-types",
							"argument %d of %s must be %s, found %s", i+1, fn.Name, want.String(), argT.String())
					}
					c.propagate(n, arg)
				}
				c.Sem.Mark(n, CallsExternal|ReadsState)
				c.Env.setType(n.Callee, sast.FunctionType{})
				if len(fn.Returns) == 1 {
					return c.parseDeclType(n, fn.Returns[0].TypeString)
				}
				var rets []sast.Type
				for _, r := range fn.Returns {
					rt, err := c.parseDeclType(n, r.TypeString)
					if err != nil {
						return nil, err
					}
					rets = append(rets, rt)
				}
				return sast.TupleType{Elements: rets}, nil
			}
		}
	}

	return nil, c.typeErrf(n, "unknown-name", "unknown function %s", callee.Name)
}

func (c *Checker) checkBinary(n *sast.BinaryOp, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	leftT, err := c.check(n.Left, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	rightT, err := c.check(n.Right, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.propagate(n, n.Left, n.Right)

	switch n.Op {
	case "&&", "||":
		if !leftT.Equal(sast.BoolType{}) || !rightT.Equal(sast.BoolType{}) {
			return nil, c.typeErrf(n, "incompatible-types",
				"operator %s needs bool operands, found %s and %s", n.Op, leftT.String(), rightT.String())
		}
		return sast.BoolType{}, nil

	case "+", "-", "*", "/", "%", "...":
		t, ok := c.promoteIntegers(n, leftT, rightT)
		if !ok {
			return nil, c.typeErrf(n, "incompatible-types",
				"operator %s needs matching integer operands, found %s and %s", n.Op, leftT.String(), rightT.String())
		}
		if c.literal[n.Left] && c.literal[n.Right] {
			c.literal[n] = true
		}
		return t, nil

	case "<", "<=", ">", ">=":
		if _, ok := c.promoteIntegers(n, leftT, rightT); !ok {
			return nil, c.typeErrf(n, "incompatible-types",
				"cannot compare %s and %s", leftT.String(), rightT.String())
		}
		return sast.BoolType{}, nil

	case "==", "!=":
		if _, ok := c.promoteIntegers(n, leftT, rightT); ok {
			return sast.BoolType{}, nil
		}
		if leftT.Equal(rightT) {
			return sast.BoolType{}, nil
		}
		return nil, c.typeErrf(n, "incompatible-types",
			"cannot compare %s and %s", leftT.String(), rightT.String())
	}
	return nil, c.typeErrf(n, "incompatible-types", "unknown operator %s", n.Op)
}

// checkQuantifier enforces finite ranges: an
// explicit lo...hi integer range or an array whose indices are iterated.
// Anything else — a bare integer domain, a mapping — is rejected as an
// infinite quantifier.
func (c *Checker) checkQuantifier(n *sast.Quantifier, sc *scope, ctx Context, ann *sast.Annotation) (sast.Type, error) {
	binderT, ok := n.BoundType.(sast.IntegerType)
	if !ok {
		return nil, c.semErrf(n, "infinite-quantifier",
			"quantifier binder must have an integer type, found %s", n.BoundType.String())
	}

	rangeT, err := c.check(n.Range, sc, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.propagate(n, n.Range)

	finite := false
	if bin, isBin := n.Range.(*sast.BinaryOp); isBin && bin.Op == "..." {
		finite = true
	}
	switch rangeT.(type) {
	case sast.DynamicArrayType, sast.FixedArrayType:
		finite = true
	case sast.MappingType:
		return nil, c.semErrf(n.Range, "infinite-quantifier",
			"cannot quantify over a mapping without an explicit iterable key set")
	}
	if !finite {
		return nil, c.semErrf(n.Range, "infinite-quantifier",
			"quantifier range must be lo...hi or an array")
	}

	inner := newScope(sc)
	inner.bind(n.Binder, binderT)
	bodyT, err := c.check(n.Body, inner, ctx, ann)
	if err != nil {
		return nil, err
	}
	c.propagate(n, n.Body)
	if !bodyT.Equal(sast.BoolType{}) {
		return nil, c.typeErrf(n.Body, "incompatible-types",
			"quantifier body must be boolean, found %s", bodyT.String())
	}
	return sast.BoolType{}, nil
}

// promoteIntegers implements integer promotion: promote to the wider
// operand; mixed-sign arithmetic is rejected unless one side is a literal,
// which adapts.
func (c *Checker) promoteIntegers(parent sast.Expr, a, b sast.Type) (sast.Type, bool) {
	ai, aok := a.(sast.IntegerType)
	bi, bok := b.(sast.IntegerType)
	if !aok || !bok {
		return nil, false
	}
	bin, _ := parent.(*sast.BinaryOp)
	if ai.Signed != bi.Signed {
		switch {
		case bin != nil && c.literal[bin.Left]:
			ai.Signed = bi.Signed
		case bin != nil && c.literal[bin.Right]:
			bi.Signed = ai.Signed
		default:
			return nil, false
		}
	}
	if ai.Bits >= bi.Bits {
		return ai, true
	}
	return bi, true
}

// unify relaxes exact equality for conditional branches the same way
// binary promotion does.
func (c *Checker) unify(left, right sast.Expr, a, b sast.Type) (sast.Type, bool) {
	if a.Equal(b) {
		return a, true
	}
	ai, aok := a.(sast.IntegerType)
	bi, bok := b.(sast.IntegerType)
	if !aok || !bok {
		return nil, false
	}
	if ai.Signed != bi.Signed {
		switch {
		case c.literal[left]:
			ai.Signed = bi.Signed
		case c.literal[right]:
			bi.Signed = ai.Signed
		default:
			return nil, false
		}
	}
	if ai.Bits >= bi.Bits {
		return ai, true
	}
	return bi, true
}

func (c *Checker) numericCompatible(e sast.Expr, have, want sast.Type) bool {
	hi, hok := have.(sast.IntegerType)
	wi, wok := want.(sast.IntegerType)
	if !hok || !wok {
		return false
	}
	if hi.Signed != wi.Signed && !c.literal[e] {
		return false
	}
	return hi.Bits <= wi.Bits || c.literal[e]
}

// linearizedNames returns the contract names along ctx's linearization,
// the traversal order for user-function lookup.
func (c *Checker) linearizedNames(ctx Context) []string {
	if ctx.ContractID == 0 {
		return nil
	}
	lin, err := c.hierarchy.Linearize(ctx.ContractID)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(lin))
	for _, id := range lin {
		names = append(names, c.arena.Get(id).(*hostast.ContractDecl).Name)
	}
	return names
}

func (c *Checker) structByName(name string) *hostast.StructDecl {
	for _, n := range c.arena.All() {
		if s, ok := n.(*hostast.StructDecl); ok {
			if s.Name == name || qualifiedStructName(c.arena, s) == name {
				return s
			}
		}
	}
	return nil
}

func qualifiedStructName(a *hostast.Arena, s *hostast.StructDecl) string {
	if s.ContractID == 0 {
		return s.Name
	}
	if decl, ok := a.Get(s.ContractID).(*hostast.ContractDecl); ok {
		return decl.Name + "." + s.Name
	}
	return s.Name
}

func (c *Checker) parseDeclType(at sast.Expr, typeString string) (sast.Type, error) {
	t, err := specparser.ParseTypeString(typeString)
	if err != nil {
		return nil, c.typeErrf(at, "incompatible-types", "cannot parse host type %q", typeString)
	}
	return t, nil
}

// propagate ORs every child's semantic flags into parent, making flags a
// property of whole subtrees.
func (c *Checker) propagate(parent sast.Expr, children ...sast.Expr) {
	for _, ch := range children {
		c.Sem.Mark(parent, c.Sem[ch])
	}
}

// markSubtree stamps a flag on e and everything under it; used by old() so
// the instrumenter can find the captured region.
func (c *Checker) markSubtree(e sast.Expr, f Flags) {
	sast.Walk(e, func(x sast.Expr) { c.Sem.Mark(x, f) })
}

func isElementary(t sast.Type) bool {
	switch t.(type) {
	case sast.IntegerType, sast.AddressType, sast.BoolType, sast.BytesType, sast.StringType:
		return true
	}
	return false
}

func magicMember(base, member string) (sast.Type, bool) {
	switch base + "." + member {
	case "msg.sender":
		return sast.AddressType{}, true
	case "msg.value":
		return sast.IntegerType{Bits: 256}, true
	case "block.timestamp", "block.number":
		return sast.IntegerType{Bits: 256}, true
	case "tx.origin":
		return sast.AddressType{}, true
	}
	return nil, false
}

func magicBaseType(base string) sast.Type {
	return sast.StructType{Name: base}
}

func (c *Checker) typeErrf(e sast.Expr, code, format string, args ...any) error {
	return diag.Newf(diag.Type, c.position(e), format, args...).WithCode(code)
}

func (c *Checker) semErrf(e sast.Expr, code, format string, args ...any) error {
	return diag.Newf(diag.Semantic, c.position(e), format, args...).WithCode(code)
}

// position translates e's file-lifted range to a line/column position.
func (c *Checker) position(e sast.Expr) diag.Position {
	r := e.SourceRange()
	if r.FileIndex >= len(c.arena.Files) {
		return diag.Position{}
	}
	res := diag.NewResolver(c.arena.Files[r.FileIndex], c.arena.Sources[r.FileIndex])
	return res.Position(r.Offset)
}
