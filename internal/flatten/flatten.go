// Package flatten performs topological ordering of units by import
// edges, top-level collision renaming, reference fixing, import/pragma
// stripping, and concatenation into one output with a flattened source
// map. Active only in flat/json output modes.
package flatten

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/printer"
)

// Result is the flattened output.
type Result struct {
	Text string
	// Spans maps every printed node to its byte range within Text.
	Spans map[hostast.NodeID]printer.Span
	// Order is the emitted unit order.
	Order []hostast.NodeID
	// Renamed records every top-level declaration that lost a collision:
	// node id → new name.
	Renamed map[hostast.NodeID]string
}

// Flatten runs the full pass. version selects the single compiler pragma
// prepended to the output.
func Flatten(a *hostast.Arena, units []hostast.NodeID, version string) (*Result, error) {
	order, err := topoSort(a, units)
	if err != nil {
		return nil, err
	}

	renamed := renameCollisions(a, order)
	fixReferences(a, order, renamed)

	res := &Result{
		Spans:   make(map[hostast.NodeID]printer.Span),
		Order:   order,
		Renamed: renamed,
	}

	var b strings.Builder
	if version != "" && version != "auto" {
		fmt.Fprintf(&b, "pragma solidity %s;\n\n", version)
	}
	for i, uid := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		// imports are stripped: print the unit with its import list
		// temporarily cleared
		unit := a.Get(uid).(*hostast.SourceUnit)
		saved := unit.Imports
		unit.Imports = nil
		out := printer.Print(a, uid)
		unit.Imports = saved

		base := b.Len()
		b.WriteString(out.Text)
		for id, span := range out.Spans {
			res.Spans[id] = printer.Span{Offset: span.Offset + base, Length: span.Length}
		}
	}
	res.Text = b.String()
	return res, nil
}

// topoSort orders units so every import precedes its importer, input
// order breaking ties. A cycle means the host compiler accepted one,
// which is a bug, not a user error.
func topoSort(a *hostast.Arena, units []hostast.NodeID) ([]hostast.NodeID, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[hostast.NodeID]int)
	inInput := make(map[hostast.NodeID]bool)
	for _, uid := range units {
		inInput[uid] = true
	}

	var order []hostast.NodeID
	var visit func(uid hostast.NodeID) error
	visit = func(uid hostast.NodeID) error {
		switch color[uid] {
		case black:
			return nil
		case gray:
			return diag.Newf(diag.Internal, diag.Position{}, "import cycle between units")
		}
		color[uid] = gray
		unit := a.Get(uid).(*hostast.SourceUnit)
		for _, iid := range unit.Imports {
			imp, ok := a.Get(iid).(*hostast.Import)
			if !ok || imp.ResolvedUnitID == 0 || !inInput[imp.ResolvedUnitID] {
				continue
			}
			if err := visit(imp.ResolvedUnitID); err != nil {
				return err
			}
		}
		color[uid] = black
		order = append(order, uid)
		return nil
	}
	for _, uid := range units {
		if err := visit(uid); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// renameCollisions keeps the first definition of each top-level name and
// renames each subsequent one to name_i.
func renameCollisions(a *hostast.Arena, order []hostast.NodeID) map[hostast.NodeID]string {
	renamed := make(map[hostast.NodeID]string)
	count := make(map[string]int)

	for _, uid := range order {
		unit := a.Get(uid).(*hostast.SourceUnit)
		for _, cid := range unit.Contracts {
			decl := a.Get(cid).(*hostast.ContractDecl)
			n := count[decl.Name]
			count[decl.Name] = n + 1
			if n > 0 {
				renamed[cid] = fmt.Sprintf("%s_%d", decl.Name, n)
			}
		}
		for _, fid := range unit.Functions {
			decl := a.Get(fid).(*hostast.FunctionDecl)
			n := count[decl.Name]
			count[decl.Name] = n + 1
			if n > 0 {
				renamed[fid] = fmt.Sprintf("%s_%d", decl.Name, n)
			}
		}
	}
	return renamed
}

// fixReferences rewrites every reference to a renamed top-level entity:
// identifier referents, inheritance base names, and
// textual references in opaque statements. References to locals and
// intra-contract members are untouched. A Unit.Name member access through
// a unit alias rewrites only its longest renamed prefix; deeper selectors
// stay as they are.
func fixReferences(a *hostast.Arena, order []hostast.NodeID, renamed map[hostast.NodeID]string) {
	// declarations are renamed in place while earlier units are walked, so
	// the pre-rename names are captured up front for alias lookups
	origNames := make(map[hostast.NodeID]string, len(renamed))
	for id := range renamed {
		if decl, ok := a.Get(id).(*hostast.ContractDecl); ok {
			origNames[id] = decl.Name
		}
	}

	for _, uid := range order {
		unit := a.Get(uid).(*hostast.SourceUnit)

		// textual rewrites apply per declaring unit: a bare name inside
		// the unit that declares the renamed entity resolves to that
		// entity, while other units keep resolving to the survivor
		local := make(map[string]string)
		for _, cid := range unit.Contracts {
			if newName, ok := renamed[cid]; ok {
				local[a.Get(cid).(*hostast.ContractDecl).Name] = newName
			}
		}

		// alias-qualified references reach renamed entities across units
		qualified := make(map[string]string) // "Alias.Name" → new direct name
		for _, iid := range unit.Imports {
			imp, ok := a.Get(iid).(*hostast.Import)
			if !ok || imp.ResolvedUnitID == 0 {
				continue
			}
			target, ok := a.Get(imp.ResolvedUnitID).(*hostast.SourceUnit)
			if !ok {
				continue
			}
			for _, cid := range target.Contracts {
				newName, wasRenamed := renamed[cid]
				if !wasRenamed {
					continue
				}
				orig := origNames[cid]
				if imp.UnitAlias != "" {
					qualified[imp.UnitAlias+"."+orig] = newName
				}
				if alias, ok := imp.SymbolAliases[orig]; ok && alias != "" {
					local[alias] = newName
				}
			}
		}

		walkUnit(a, uid, func(n hostast.Node) {
			// referent-tracked identifiers rename precisely
			if ident, ok := n.(*hostast.Ident); ok {
				if newName, ok := renamed[ident.Referent()]; ok {
					ident.Name = newName
				}
				return
			}
			switch v := n.(type) {
			case *hostast.ContractDecl:
				if newName, ok := renamed[v.ID()]; ok {
					v.Name = newName
				}
				for i, bid := range v.BaseIDs {
					if newName, ok := renamed[bid]; ok && i < len(v.BaseNames) {
						v.BaseNames[i] = newName
					}
				}
			case *hostast.RawStmt:
				v.Text = rewriteText(v.Text, local, qualified)
			case *hostast.RawExpr:
				v.Text = rewriteText(v.Text, local, qualified)
			case *hostast.VariableDecl:
				v.TypeString = rewriteText(v.TypeString, local, qualified)
			case *hostast.FunctionDecl:
				if newName, ok := renamed[v.ID()]; ok {
					v.Name = newName
				}
			}
		})
	}
}

// rewriteText substitutes whole-word occurrences. Qualified forms are
// replaced first so `Alias.Name` collapses to the direct renamed
// identifier before the bare-name pass could touch its pieces.
func rewriteText(text string, local, qualified map[string]string) string {
	for _, from := range sortedKeys(qualified) {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`)
		text = re.ReplaceAllString(text, qualified[from])
	}
	for _, from := range sortedKeys(local) {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(from) + `\b`)
		text = re.ReplaceAllString(text, local[from])
	}
	return text
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func walkUnit(a *hostast.Arena, root hostast.NodeID, fn func(hostast.Node)) {
	seen := make(map[hostast.NodeID]bool)
	var walk func(id hostast.NodeID)
	walk = func(id hostast.NodeID) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		n := a.Get(id)
		if n == nil {
			return
		}
		fn(n)
		for _, child := range n.ChildIDs() {
			walk(child)
		}
	}
	walk(root)
}
