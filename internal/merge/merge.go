// Package merge unions the forests produced by
// independent host compilations into one identifier space. Each input file
// was compiled alone, so node ids are only unique per compilation; after
// the merge every cross-file analysis and the instrumenter see a
// single coherent arena whose reference edges close.
package merge

import (
	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
)

// Group is the forest one host compilation produced: the compiled file's
// unit plus the units of everything it imported.
type Group struct {
	Arena *hostast.Arena
	Units []hostast.NodeID
}

// Result is the merged world.
type Result struct {
	Arena *hostast.Arena
	// Units holds the kept unit roots in input order, deduplicated by
	// absolute path, first copy wins.
	Units []hostast.NodeID
}

// SanityFunc re-validates a unit after foreign references were spliced in;
// a non-nil error is fatal. It is the host-provided
// predicate, normally Oracle.Sanity.
type SanityFunc func(*hostast.Arena, hostast.NodeID) error

// Merge deep-clones every group into a fresh arena, redirects references
// from duplicate units to the first copy, and runs the sanity predicate on
// each kept unit. Groups are processed strictly in input order.
func Merge(groups []Group, sanity SanityFunc) (*Result, error) {
	merged := hostast.NewArena()
	out := &Result{Arena: merged}

	pathToUnit := make(map[string]hostast.NodeID)
	fileIndexByPath := make(map[string]int)

	for _, g := range groups {
		// register the group's files, deduplicating by path
		fileRemap := make(map[int]int, len(g.Arena.Files))
		for i, path := range g.Arena.Files {
			if idx, ok := fileIndexByPath[path]; ok {
				fileRemap[i] = idx
				continue
			}
			idx := merged.AddFile(path, g.Arena.Sources[i])
			fileIndexByPath[path] = idx
			fileRemap[i] = idx
		}

		// clone every unit; combined holds the group's whole old→new map
		// so intra-group cross-unit references can be redirected
		combined := make(map[hostast.NodeID]hostast.NodeID)
		type clonedUnit struct {
			path string
			root hostast.NodeID
		}
		var cloned []clonedUnit
		for _, uid := range g.Units {
			unit, ok := g.Arena.Get(uid).(*hostast.SourceUnit)
			if !ok {
				return nil, diag.Newf(diag.Merge, diag.Position{}, "node %d is not a source unit", uid)
			}
			newRoot, trans := hostast.DeepClone(g.Arena, merged, uid)
			for o, n := range trans {
				combined[o] = n
			}
			cloned = append(cloned, clonedUnit{path: unit.Path, root: newRoot})
		}

		// referent edges and back-links are not child edges; DeepClone
		// leaves them pointing at source-arena ids until rebound here
		for _, newID := range combined {
			node := merged.Get(newID)
			rebindCrossEdges(node, combined)
			r := node.SourceRange()
			if idx, ok := fileRemap[r.FileIndex]; ok {
				r.FileIndex = idx
				hostast.SetNodeRange(node, r)
			}
		}

		// deduplicate by path: keep the first copy, redirect the group's
		// references into the duplicate, then drop its subtree
		for _, cu := range cloned {
			kept, dup := pathToUnit[cu.path], cu.root
			if kept == 0 {
				pathToUnit[cu.path] = cu.root
				out.Units = append(out.Units, cu.root)
				continue
			}
			match, err := matchSubtrees(merged, kept, dup)
			if err != nil {
				return nil, err
			}
			for _, newID := range combined {
				if _, inDup := match[newID]; inDup {
					continue
				}
				if node := merged.Get(newID); node != nil {
					rebindCrossEdges(node, match)
				}
			}
			for dupID := range match {
				merged.Delete(dupID)
			}
		}
	}

	if sanity != nil {
		for _, uid := range out.Units {
			if err := sanity(merged, uid); err != nil {
				return nil, diag.Wrap(diag.Merge, diag.Position{}, "merged unit failed sanity check", err)
			}
		}
	}
	return out, nil
}

// rebindCrossEdges rewrites every non-child edge of n through table:
// identifier referents (the Referencer capability),
// inheritance bases, import resolution, and declaration back-links.
func rebindCrossEdges(n hostast.Node, table map[hostast.NodeID]hostast.NodeID) {
	remap := func(id hostast.NodeID) hostast.NodeID {
		if nid, ok := table[id]; ok {
			return nid
		}
		return id
	}
	if ref, ok := n.(hostast.Referencer); ok {
		ref.SetReferent(remap(ref.Referent()))
	}
	switch v := n.(type) {
	case *hostast.ContractDecl:
		for i, id := range v.BaseIDs {
			v.BaseIDs[i] = remap(id)
		}
	case *hostast.Import:
		v.ResolvedUnitID = remap(v.ResolvedUnitID)
	case *hostast.FunctionDecl:
		v.ContractID = remap(v.ContractID)
	case *hostast.VariableDecl:
		v.ContractID = remap(v.ContractID)
	case *hostast.StructDecl:
		v.ContractID = remap(v.ContractID)
	case *hostast.EnumDecl:
		v.ContractID = remap(v.ContractID)
	}
}

// matchSubtrees pairs each node of the duplicate subtree with its
// counterpart in the kept one. Both copies came from compiling the same
// file, so the trees must be isomorphic; a shape mismatch means the two
// groups saw conflicting versions of one path, which is fatal.
func matchSubtrees(a *hostast.Arena, kept, dup hostast.NodeID) (map[hostast.NodeID]hostast.NodeID, error) {
	match := make(map[hostast.NodeID]hostast.NodeID)
	var walk func(k, d hostast.NodeID) error
	walk = func(k, d hostast.NodeID) error {
		kn, dn := a.Get(k), a.Get(d)
		if kn == nil || dn == nil || kn.Kind() != dn.Kind() {
			return diag.Newf(diag.Merge, diag.Position{},
				"conflicting copies of one unit: node shapes differ")
		}
		match[d] = k
		kc, dc := kn.ChildIDs(), dn.ChildIDs()
		if len(kc) != len(dc) {
			return diag.Newf(diag.Merge, diag.Position{},
				"conflicting copies of one unit: child counts differ")
		}
		for i := range kc {
			if err := walk(kc[i], dc[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(kept, dup); err != nil {
		return nil, err
	}
	return match, nil
}

// Check is a host-independent sanity predicate usable when no oracle is in
// play (tests, JSON input): every child id and non-child edge of every
// node reachable from unit must resolve within the arena.
func Check(a *hostast.Arena, unit hostast.NodeID) error {
	var walk func(id hostast.NodeID) error
	seen := make(map[hostast.NodeID]bool)
	walk = func(id hostast.NodeID) error {
		if seen[id] {
			return nil
		}
		seen[id] = true
		n := a.Get(id)
		if n == nil {
			return diag.Newf(diag.Merge, diag.Position{}, "dangling node id %d", id)
		}
		if ref, ok := n.(hostast.Referencer); ok {
			if rid := ref.Referent(); rid != 0 && a.Get(rid) == nil {
				return diag.Newf(diag.Merge, diag.Position{}, "dangling referent %d on node %d", rid, id)
			}
		}
		if c, ok := n.(*hostast.ContractDecl); ok {
			for _, bid := range c.BaseIDs {
				if a.Get(bid) == nil {
					return diag.Newf(diag.Merge, diag.Position{}, "dangling base %d on contract %s", bid, c.Name)
				}
			}
		}
		for _, child := range n.ChildIDs() {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(unit)
}
