// Package printer renders a source unit back to target-language text and
// records, for every node it emits, the byte range the node occupies in
// the output, giving downstream consumers text plus a map from AST node
// to output byte range.
package printer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oxhq/scribble/internal/hostast"
)

// Output is one printed unit.
type Output struct {
	Text string
	// Spans maps every printed node to its byte range within Text.
	Spans map[hostast.NodeID]Span
}

// Span is a byte range within one printed file.
type Span struct {
	Offset int
	Length int
}

func (s Span) End() int { return s.Offset + s.Length }

type writer struct {
	arena  *hostast.Arena
	b      strings.Builder
	indent int
	spans  map[hostast.NodeID]Span
}

// Print renders the unit rooted at unitID.
func Print(a *hostast.Arena, unitID hostast.NodeID) *Output {
	w := &writer{arena: a, spans: make(map[hostast.NodeID]Span)}
	w.printNode(unitID)
	return &Output{Text: w.b.String(), Spans: w.spans}
}

func (w *writer) begin() int { return w.b.Len() }

func (w *writer) close(id hostast.NodeID, start int) {
	w.spans[id] = Span{Offset: start, Length: w.b.Len() - start}
}

func (w *writer) line(format string, args ...any) {
	w.b.WriteString(strings.Repeat("    ", w.indent))
	fmt.Fprintf(&w.b, format, args...)
	w.b.WriteString("\n")
}

func (w *writer) printNode(id hostast.NodeID) {
	if id == 0 {
		return
	}
	n := w.arena.Get(id)
	if n == nil {
		return
	}
	start := w.begin()
	defer w.close(id, start)

	switch v := n.(type) {
	case *hostast.SourceUnit:
		for _, imp := range v.Imports {
			w.printNode(imp)
		}
		if len(v.Imports) > 0 {
			w.b.WriteString("\n")
		}
		for i, fid := range v.Functions {
			if i > 0 {
				w.b.WriteString("\n")
			}
			w.printNode(fid)
		}
		for i, cid := range v.Contracts {
			if i > 0 || len(v.Functions) > 0 {
				w.b.WriteString("\n")
			}
			w.printNode(cid)
		}

	case *hostast.Import:
		switch {
		case v.UnitAlias != "":
			w.line("import %q as %s;", v.Path, v.UnitAlias)
		case len(v.SymbolAliases) > 0:
			var parts []string
			for _, orig := range sortedKeys(v.SymbolAliases) {
				alias := v.SymbolAliases[orig]
				if alias == orig || alias == "" {
					parts = append(parts, orig)
				} else {
					parts = append(parts, orig+" as "+alias)
				}
			}
			w.line("import {%s} from %q;", strings.Join(parts, ", "), v.Path)
		default:
			w.line("import %q;", v.Path)
		}

	case *hostast.ContractDecl:
		kw := "contract"
		switch v.ContractKind {
		case hostast.KindInterface:
			kw = "interface"
		case hostast.KindLibrary:
			kw = "library"
		}
		header := kw + " " + v.Name
		if len(v.BaseNames) > 0 {
			header += " is " + strings.Join(v.BaseNames, ", ")
		}
		w.line("%s {", header)
		w.indent++
		for _, rid := range v.Raws {
			w.printNode(rid)
		}
		for _, sid := range v.Structs {
			w.printNode(sid)
		}
		for _, eid := range v.Enums {
			w.printNode(eid)
		}
		for _, vid := range v.Variables {
			w.printNode(vid)
		}
		for _, fid := range v.Functions {
			w.printNode(fid)
		}
		w.indent--
		w.line("}")

	case *hostast.VariableDecl:
		vis := ""
		if v.Visibility != "" && v.Visibility != "internal" {
			vis = " " + v.Visibility
		}
		w.line("%s%s %s;", v.TypeString, vis, v.Name)

	case *hostast.StructDecl:
		w.line("struct %s {", v.Name)
		w.indent++
		for _, f := range v.Fields {
			w.line("%s %s;", f.TypeString, f.Name)
		}
		w.indent--
		w.line("}")

	case *hostast.EnumDecl:
		w.line("enum %s { %s }", v.Name, strings.Join(v.Members, ", "))

	case *hostast.FunctionDecl:
		w.printFunction(v)

	case *hostast.Block:
		w.line("{")
		w.indent++
		for _, sid := range v.Statements {
			w.printNode(sid)
		}
		w.indent--
		w.line("}")

	case *hostast.RawStmt:
		w.line("%s", v.Text)

	case *hostast.VarDeclStmt:
		if v.Init != 0 {
			w.b.WriteString(strings.Repeat("    ", w.indent))
			fmt.Fprintf(&w.b, "%s %s = ", v.TypeString, v.Name)
			w.printInline(v.Init)
			w.b.WriteString(";\n")
		} else {
			w.line("%s %s;", v.TypeString, v.Name)
		}

	case *hostast.ExprStmt:
		w.b.WriteString(strings.Repeat("    ", w.indent))
		w.printInline(v.Expr)
		w.b.WriteString(";\n")

	case *hostast.IfStmt:
		w.b.WriteString(strings.Repeat("    ", w.indent))
		w.b.WriteString("if (")
		w.printInline(v.Cond)
		w.b.WriteString(") ")
		w.printBlockInline(v.Then)
		if v.Else != 0 {
			w.b.WriteString(strings.Repeat("    ", w.indent))
			w.b.WriteString("else ")
			w.printBlockInline(v.Else)
		}

	case *hostast.ForStmt:
		w.b.WriteString(strings.Repeat("    ", w.indent))
		fmt.Fprintf(&w.b, "for (uint256 %s = ", v.InitName)
		w.printInline(v.RangeStart)
		fmt.Fprintf(&w.b, "; %s < ", v.InitName)
		w.printInline(v.RangeEnd)
		fmt.Fprintf(&w.b, "; %s++) ", v.InitName)
		w.printBlockInline(v.Body)

	case *hostast.ReturnStmt:
		if v.Value != 0 {
			w.b.WriteString(strings.Repeat("    ", w.indent))
			w.b.WriteString("return ")
			w.printInline(v.Value)
			w.b.WriteString(";\n")
		} else {
			w.line("return;")
		}

	default:
		// expression nodes reached as statements: render inline
		w.printInline(id)
	}
}

// printBlockInline renders a block whose opening brace continues the
// current line (if/for headers).
func (w *writer) printBlockInline(id hostast.NodeID) {
	block, ok := w.arena.Get(id).(*hostast.Block)
	if !ok {
		w.printNode(id)
		return
	}
	start := w.begin()
	w.b.WriteString("{\n")
	w.indent++
	for _, sid := range block.Statements {
		w.printNode(sid)
	}
	w.indent--
	w.line("}")
	w.close(id, start)
}

// printInline renders an expression node without indentation or newline.
func (w *writer) printInline(id hostast.NodeID) {
	if id == 0 {
		return
	}
	n := w.arena.Get(id)
	if n == nil {
		return
	}
	start := w.begin()
	defer w.close(id, start)

	switch v := n.(type) {
	case *hostast.Ident:
		w.b.WriteString(v.Name)
	case *hostast.RawExpr:
		w.b.WriteString(v.Text)
	case *hostast.Call:
		w.printInline(v.Callee)
		w.b.WriteString("(")
		for i, arg := range v.Args {
			if i > 0 {
				w.b.WriteString(", ")
			}
			w.printInline(arg)
		}
		w.b.WriteString(")")
	default:
		w.b.WriteString("/*?*/")
	}
}

func (w *writer) printFunction(v *hostast.FunctionDecl) {
	var header strings.Builder
	switch {
	case v.IsConstructor:
		header.WriteString("constructor(")
	case v.IsFallback:
		header.WriteString("fallback(")
	default:
		header.WriteString("function " + v.Name + "(")
	}
	for i, p := range v.Params {
		if i > 0 {
			header.WriteString(", ")
		}
		header.WriteString(p.TypeString)
		if p.Name != "" {
			header.WriteString(" " + p.Name)
		}
	}
	header.WriteString(")")
	if !v.IsConstructor && v.Visibility != "" {
		header.WriteString(" " + v.Visibility)
	}
	if v.StateMutability != "" && v.StateMutability != "nonpayable" {
		header.WriteString(" " + v.StateMutability)
	}
	if len(v.Returns) > 0 {
		header.WriteString(" returns (")
		for i, r := range v.Returns {
			if i > 0 {
				header.WriteString(", ")
			}
			header.WriteString(r.TypeString)
			if r.Name != "" {
				header.WriteString(" " + r.Name)
			}
		}
		header.WriteString(")")
	}

	if v.Body == 0 {
		w.line("%s;", header.String())
		return
	}
	w.b.WriteString(strings.Repeat("    ", w.indent))
	w.b.WriteString(header.String())
	w.b.WriteString(" ")
	w.printBlockInline(v.Body)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
