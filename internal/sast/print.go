package sast

import (
	"fmt"
	"strings"
)

// Print renders e as a canonical string for diagnostics only; it is never
// used to regenerate a parseable annotation.
func Print(e Expr) string {
	var b strings.Builder
	print1(&b, e)
	return b.String()
}

func print1(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *IntLiteral:
		b.WriteString(n.Value)
	case *BoolLiteral:
		fmt.Fprintf(b, "%t", n.Value)
	case *AddressLiteral:
		b.WriteString(n.Value)
	case *StringLiteral:
		fmt.Fprintf(b, "%q", n.Value)
	case *Identifier:
		b.WriteString(n.Name)
	case *Index:
		print1(b, n.Base)
		b.WriteString("[")
		print1(b, n.Index)
		b.WriteString("]")
	case *Member:
		print1(b, n.Base)
		b.WriteString(".")
		b.WriteString(n.Name)
	case *Call:
		print1(b, n.Callee)
		b.WriteString("(")
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, a)
		}
		b.WriteString(")")
	case *UnaryOp:
		b.WriteString(n.Op)
		print1(b, n.Operand)
	case *BinaryOp:
		print1(b, n.Left)
		fmt.Fprintf(b, " %s ", n.Op)
		print1(b, n.Right)
	case *Conditional:
		print1(b, n.Cond)
		b.WriteString(" ? ")
		print1(b, n.Then)
		b.WriteString(" : ")
		print1(b, n.Else)
	case *Old:
		b.WriteString("old(")
		print1(b, n.Operand)
		b.WriteString(")")
	case *Let:
		fmt.Fprintf(b, "let %s := ", n.Name)
		print1(b, n.Value)
		b.WriteString(" in ")
		print1(b, n.Body)
	case *Quantifier:
		fmt.Fprintf(b, "%s (%s %s in ", n.Kind, n.BoundType.String(), n.Binder)
		print1(b, n.Range)
		b.WriteString(") ")
		print1(b, n.Body)
	case *Tuple:
		b.WriteString("(")
		for i, el := range n.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, el)
		}
		b.WriteString(")")
	case *Cast:
		fmt.Fprintf(b, "%s(", n.Target.String())
		print1(b, n.Operand)
		b.WriteString(")")
	default:
		b.WriteString("<?>")
	}
}
