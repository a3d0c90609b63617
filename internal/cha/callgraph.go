package cha

import "github.com/oxhq/scribble/internal/hostast"

// CallGraph maps every function to the set of functions it may invoke:
// direct calls, member-access calls on this/super, and dispatched calls
// resolved through the linearized base-contract list.
type CallGraph struct {
	Callees map[hostast.NodeID][]hostast.NodeID
}

// BuildCallGraph scans every function body reachable from the hierarchy.
// Statement text is tokenized for name( / this.name( / super.name( shapes;
// each name is resolved against the declaring contract's linearization.
func (c *CHA) BuildCallGraph() (*CallGraph, error) {
	cg := &CallGraph{Callees: make(map[hostast.NodeID][]hostast.NodeID)}

	for _, cid := range c.Contracts {
		decl := c.arena.Get(cid).(*hostast.ContractDecl)
		lin, err := c.Linearize(cid)
		if err != nil {
			return nil, err
		}
		for _, fid := range decl.Functions {
			fn := c.arena.Get(fid).(*hostast.FunctionDecl)
			if fn.Body == 0 {
				continue
			}
			seen := make(map[hostast.NodeID]bool)
			for _, site := range c.callSites(fn.Body) {
				var target hostast.NodeID
				switch site.qualifier {
				case "super":
					target = c.resolveVirtual(lin[1:], site.name)
				default: // bare or this-qualified, most-derived wins
					target = c.resolveVirtual(lin, site.name)
				}
				if target != 0 && !seen[target] {
					seen[target] = true
					cg.Callees[fid] = append(cg.Callees[fid], target)
				}
			}
		}
	}
	return cg, nil
}

// resolveVirtual walks the linearized order and returns the first matching
// function declaration, mirroring the host language's override dispatch.
func (c *CHA) resolveVirtual(lin []hostast.NodeID, name string) hostast.NodeID {
	for _, cid := range lin {
		decl := c.arena.Get(cid).(*hostast.ContractDecl)
		for _, fid := range decl.Functions {
			if c.arena.Get(fid).(*hostast.FunctionDecl).Name == name {
				return fid
			}
		}
	}
	return 0
}

type callSite struct {
	qualifier string // "", "this", or "super"
	name      string
}

// callSites collects name( occurrences from the statement text under body.
func (c *CHA) callSites(body hostast.NodeID) []callSite {
	var sites []callSite
	var walk func(id hostast.NodeID)
	walk = func(id hostast.NodeID) {
		n := c.arena.Get(id)
		if n == nil {
			return
		}
		switch v := n.(type) {
		case *hostast.RawStmt:
			sites = append(sites, scanCallSites(v.Text)...)
		case *hostast.RawExpr:
			sites = append(sites, scanCallSites(v.Text)...)
		}
		if call, ok := n.(*hostast.Call); ok {
			if callee, ok := c.arena.Get(call.Callee).(*hostast.Ident); ok {
				sites = append(sites, callSite{name: callee.Name})
			}
		}
		for _, child := range n.ChildIDs() {
			walk(child)
		}
	}
	walk(body)
	return sites
}

// scanCallSites tokenizes raw statement text for call shapes.
func scanCallSites(text string) []callSite {
	var sites []callSite
	i := 0
	for i < len(text) {
		if !isNameStart(text[i]) {
			i++
			continue
		}
		start := i
		for i < len(text) && isNamePart(text[i]) {
			i++
		}
		word := text[start:i]
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}

		if (word == "this" || word == "super") && j < len(text) && text[j] == '.' {
			k := j + 1
			for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
				k++
			}
			nameStart := k
			for k < len(text) && isNamePart(text[k]) {
				k++
			}
			m := k
			for m < len(text) && (text[m] == ' ' || text[m] == '\t') {
				m++
			}
			if k > nameStart && m < len(text) && text[m] == '(' {
				sites = append(sites, callSite{qualifier: word, name: text[nameStart:k]})
			}
			i = k
			continue
		}

		if j < len(text) && text[j] == '(' && !isKeyword(word) {
			// skip member calls on other receivers: x.f() is external
			if start == 0 || text[start-1] != '.' {
				sites = append(sites, callSite{name: word})
			}
		}
	}
	return sites
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

var stmtKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "return": true, "require": true,
	"assert": true, "revert": true, "emit": true, "new": true, "keccak256": true,
}

func isKeyword(w string) bool { return stmtKeywords[w] }
