// Package cha implements class-hierarchy analysis over the merged
// tree, the linearized base-contract order used for name lookup and
// virtual dispatch, the call graph, and the connected-component computation
// that decides which contracts receive invariant instrumentation.
package cha

import (
	"sort"

	"github.com/oxhq/scribble/internal/diag"
	"github.com/oxhq/scribble/internal/hostast"
)

// CHA holds the parent/child relation over every contract reachable from
// the given units. All derived orders are deterministic: contracts are kept
// in unit order then declaration order, never map order.
type CHA struct {
	arena     *hostast.Arena
	Contracts []hostast.NodeID

	parents  map[hostast.NodeID][]hostast.NodeID
	children map[hostast.NodeID][]hostast.NodeID
	byName   map[string]hostast.NodeID
}

// New builds the hierarchy. Base names that BaseIDs has not already
// resolved are looked up by name, first declaration wins; a base name that
// resolves nowhere is a merge-class error (a reference edge that does not
// close).
func New(arena *hostast.Arena, units []hostast.NodeID) (*CHA, error) {
	c := &CHA{
		arena:    arena,
		parents:  make(map[hostast.NodeID][]hostast.NodeID),
		children: make(map[hostast.NodeID][]hostast.NodeID),
		byName:   make(map[string]hostast.NodeID),
	}

	for _, uid := range units {
		unit, ok := arena.Get(uid).(*hostast.SourceUnit)
		if !ok {
			return nil, diag.Newf(diag.Internal, diag.Position{}, "node %d is not a source unit", uid)
		}
		for _, cid := range unit.Contracts {
			c.Contracts = append(c.Contracts, cid)
			decl := arena.Get(cid).(*hostast.ContractDecl)
			if _, seen := c.byName[decl.Name]; !seen {
				c.byName[decl.Name] = cid
			}
		}
	}

	for _, cid := range c.Contracts {
		decl := arena.Get(cid).(*hostast.ContractDecl)
		bases := decl.BaseIDs
		if len(bases) == 0 && len(decl.BaseNames) > 0 {
			for _, name := range decl.BaseNames {
				bid, ok := c.byName[name]
				if !ok {
					return nil, diag.Newf(diag.Merge, diag.Position{},
						"contract %s inherits unknown base %s", decl.Name, name)
				}
				bases = append(bases, bid)
			}
			decl.BaseIDs = bases
		}
		for _, bid := range bases {
			c.parents[cid] = append(c.parents[cid], bid)
			c.children[bid] = append(c.children[bid], cid)
		}
	}
	return c, nil
}

// Parents returns the direct bases of id in declaration order.
func (c *CHA) Parents(id hostast.NodeID) []hostast.NodeID { return c.parents[id] }

// Children returns the direct subcontracts of id in discovery order.
func (c *CHA) Children(id hostast.NodeID) []hostast.NodeID { return c.children[id] }

// ByName resolves a contract name to its declaration, first-wins.
func (c *CHA) ByName(name string) (hostast.NodeID, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// Linearize returns the C3-linearized base list of id, most-derived first
// (id itself leads). User-function lookup and virtual dispatch both walk
// this order.
func (c *CHA) Linearize(id hostast.NodeID) ([]hostast.NodeID, error) {
	memo := make(map[hostast.NodeID][]hostast.NodeID)
	return c.linearize(id, memo, make(map[hostast.NodeID]bool))
}

func (c *CHA) linearize(id hostast.NodeID, memo map[hostast.NodeID][]hostast.NodeID, visiting map[hostast.NodeID]bool) ([]hostast.NodeID, error) {
	if lin, ok := memo[id]; ok {
		return lin, nil
	}
	if visiting[id] {
		return nil, diag.Newf(diag.Merge, diag.Position{}, "inheritance cycle through contract %s", c.name(id))
	}
	visiting[id] = true
	defer delete(visiting, id)

	parents := c.parents[id]
	// the host language linearizes bases right-to-left
	var seqs [][]hostast.NodeID
	for i := len(parents) - 1; i >= 0; i-- {
		lin, err := c.linearize(parents[i], memo, visiting)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, append([]hostast.NodeID{}, lin...))
	}
	var order []hostast.NodeID
	for i := len(parents) - 1; i >= 0; i-- {
		order = append(order, parents[i])
	}
	seqs = append(seqs, order)

	merged, ok := c3Merge(seqs)
	if !ok {
		return nil, diag.Newf(diag.Merge, diag.Position{},
			"cannot linearize inheritance of contract %s", c.name(id))
	}
	lin := append([]hostast.NodeID{id}, merged...)
	memo[id] = lin
	return lin, nil
}

// c3Merge is the standard C3 merge: repeatedly take the first head that
// appears in no sequence's tail.
func c3Merge(seqs [][]hostast.NodeID) ([]hostast.NodeID, bool) {
	var out []hostast.NodeID
	for {
		nonEmpty := seqs[:0:0]
		for _, s := range seqs {
			if len(s) > 0 {
				nonEmpty = append(nonEmpty, s)
			}
		}
		if len(nonEmpty) == 0 {
			return out, true
		}
		var next hostast.NodeID
		found := false
		for _, s := range nonEmpty {
			head := s[0]
			inTail := false
			for _, other := range nonEmpty {
				for _, t := range other[1:] {
					if t == head {
						inTail = true
					}
				}
			}
			if !inTail {
				next = head
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		out = append(out, next)
		for i, s := range nonEmpty {
			if len(s) > 0 && s[0] == next {
				nonEmpty[i] = s[1:]
			} else {
				nonEmpty[i] = dropID(s, next)
			}
		}
		seqs = nonEmpty
	}
}

func dropID(s []hostast.NodeID, id hostast.NodeID) []hostast.NodeID {
	out := s[:0:0]
	for _, x := range s {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// DFS visits every contract exactly once, children before parents, in an
// order derived from the child/parent maps' insertion order — used to
// collect invariant annotations per contract exactly once even across
// diamond inheritance paths.
func (c *CHA) DFS(visit func(hostast.NodeID)) {
	visited := make(map[hostast.NodeID]bool)
	var walk func(id hostast.NodeID)
	walk = func(id hostast.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, child := range c.children[id] {
			walk(child)
		}
		visit(id)
	}
	// start from base contracts so their whole subtree completes before
	// the base itself is visited; a second sweep catches anything isolated
	for _, id := range c.Contracts {
		if len(c.parents[id]) == 0 {
			walk(id)
		}
	}
	for _, id := range c.Contracts {
		walk(id)
	}
}

func (c *CHA) name(id hostast.NodeID) string {
	if decl, ok := c.arena.Get(id).(*hostast.ContractDecl); ok {
		return decl.Name
	}
	return "?"
}

// NeedsInstrumentation computes, by BFS from every contract carrying a
// property annotation and following both parent and child edges, the set of
// contracts that receive invariant instrumentation: exactly the connected
// components containing an annotated contract.
// Interfaces and libraries never qualify.
func (c *CHA) NeedsInstrumentation(annotated map[hostast.NodeID]bool) map[hostast.NodeID]bool {
	out := make(map[hostast.NodeID]bool)
	var queue []hostast.NodeID
	for _, id := range c.Contracts {
		if annotated[id] {
			queue = append(queue, id)
		}
	}
	seen := make(map[hostast.NodeID]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		if decl, ok := c.arena.Get(id).(*hostast.ContractDecl); ok && decl.IsInstrumentable() {
			out[id] = true
		}
		queue = append(queue, c.parents[id]...)
		queue = append(queue, c.children[id]...)
	}
	return out
}

// SortedIDs returns the keys of set ordered by id, for deterministic
// iteration by callers.
func SortedIDs(set map[hostast.NodeID]bool) []hostast.NodeID {
	out := make([]hostast.NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
