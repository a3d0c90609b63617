package sast

// Walk calls fn for e and every expression nested under it, parents before
// children. It does not descend into types.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *Index:
		Walk(n.Base, fn)
		Walk(n.Index, fn)
	case *Member:
		Walk(n.Base, fn)
	case *Call:
		Walk(n.Callee, fn)
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *UnaryOp:
		Walk(n.Operand, fn)
	case *BinaryOp:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Conditional:
		Walk(n.Cond, fn)
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Old:
		Walk(n.Operand, fn)
	case *Let:
		Walk(n.Value, fn)
		Walk(n.Body, fn)
	case *Quantifier:
		Walk(n.Range, fn)
		Walk(n.Body, fn)
	case *Tuple:
		for _, el := range n.Elements {
			Walk(el, fn)
		}
	case *Cast:
		Walk(n.Operand, fn)
	}
}

// Lift rebases every range under e from parser-relative offsets to file
// offsets: the extractor parses annotation bodies sliced out of a file and
// then shifts the resulting tree by the slice's position.
func Lift(e Expr, delta, fileIndex int) {
	Walk(e, func(x Expr) {
		switch n := x.(type) {
		case *IntLiteral:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *BoolLiteral:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *AddressLiteral:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *StringLiteral:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Identifier:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Index:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Member:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Call:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *UnaryOp:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *BinaryOp:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Conditional:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Old:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Let:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Quantifier:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Tuple:
			n.Rng = lift(n.Rng, delta, fileIndex)
		case *Cast:
			n.Rng = lift(n.Rng, delta, fileIndex)
		}
	})
}

func lift(r Range, delta, fileIndex int) Range {
	r.Offset += delta
	r.FileIndex = fileIndex
	return r
}
