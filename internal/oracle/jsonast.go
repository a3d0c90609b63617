// Package oracle provides the two concrete implementations of the
// host-compiler boundary (hostast.Oracle): a decoder for pre-compiled
// standard-JSON bundles and an adapter that shells out to the external
// compiler binary. the compilation itself stays outside the
// core; both implementations only translate an already-resolved AST into
// the arena representation the rest of the pipeline operates on.
package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/oxhq/scribble/internal/hostast"
	"github.com/oxhq/scribble/internal/merge"
)

// Bundle is the JSON document --input-mode json consumes: one compilation,
// carrying each unit's source text alongside its tree so the annotation
// extractor can scan raw doc-comments.
type Bundle struct {
	CompilerVersion string     `json:"compilerVersion"`
	Units           []UnitJSON `json:"units"`
}

type UnitJSON struct {
	Path      string         `json:"path"`
	Source    string         `json:"source"`
	Imports   []ImportJSON   `json:"imports,omitempty"`
	Contracts []ContractJSON `json:"contracts,omitempty"`
	Functions []FunctionJSON `json:"functions,omitempty"` // free-standing
}

type ImportJSON struct {
	Path          string            `json:"path"`
	UnitAlias     string            `json:"unitAlias,omitempty"`
	SymbolAliases map[string]string `json:"symbolAliases,omitempty"`
}

type ContractJSON struct {
	Name      string         `json:"name"`
	Kind      string         `json:"kind,omitempty"` // contract|interface|library
	Bases     []string       `json:"bases,omitempty"`
	Doc       string         `json:"doc,omitempty"`
	DocOffset int            `json:"docOffset,omitempty"`
	Offset    int            `json:"offset,omitempty"`
	Length    int            `json:"length,omitempty"`
	Variables []VariableJSON `json:"variables,omitempty"`
	Functions []FunctionJSON `json:"functions,omitempty"`
}

type VariableJSON struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visibility string `json:"visibility,omitempty"`
	Doc        string `json:"doc,omitempty"`
	DocOffset  int    `json:"docOffset,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	Length     int    `json:"length,omitempty"`
}

type ParamJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type FunctionJSON struct {
	Name        string      `json:"name"`
	Visibility  string      `json:"visibility,omitempty"`
	Mutability  string      `json:"mutability,omitempty"`
	Constructor bool        `json:"constructor,omitempty"`
	Fallback    bool        `json:"fallback,omitempty"`
	Doc         string      `json:"doc,omitempty"`
	DocOffset   int         `json:"docOffset,omitempty"`
	Params      []ParamJSON `json:"params,omitempty"`
	Returns     []ParamJSON `json:"returns,omitempty"`
	Body        []string    `json:"body,omitempty"` // statements, verbatim
	Offset      int         `json:"offset,omitempty"`
	Length      int         `json:"length,omitempty"`
}

// DecodeBundle parses a bundle document.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("cannot decode compiler JSON: %w", err)
	}
	if len(b.Units) == 0 {
		return nil, fmt.Errorf("compiler JSON contains no units")
	}
	return &b, nil
}

// BuildGroup turns one bundle into a merge group: a fresh arena holding
// every unit of the compilation.
func (b *Bundle) BuildGroup() (merge.Group, error) {
	a := hostast.NewArena()
	var units []hostast.NodeID
	for _, u := range b.Units {
		uid, err := buildUnit(a, u)
		if err != nil {
			return merge.Group{}, err
		}
		units = append(units, uid)
	}
	// resolve intra-bundle imports by path
	byPath := make(map[string]hostast.NodeID)
	for _, uid := range units {
		unit := a.Get(uid).(*hostast.SourceUnit)
		byPath[unit.Path] = uid
	}
	for _, uid := range units {
		unit := a.Get(uid).(*hostast.SourceUnit)
		for _, iid := range unit.Imports {
			imp := a.Get(iid).(*hostast.Import)
			if target, ok := byPath[imp.Path]; ok {
				imp.ResolvedUnitID = target
			}
		}
	}
	return merge.Group{Arena: a, Units: units}, nil
}

func buildUnit(a *hostast.Arena, u UnitJSON) (hostast.NodeID, error) {
	if u.Path == "" {
		return 0, fmt.Errorf("unit without path in compiler JSON")
	}
	fi := a.AddFile(u.Path, []byte(u.Source))

	var importIDs []hostast.NodeID
	for _, imp := range u.Imports {
		iid := a.NextID()
		a.Put(hostast.NewImport(iid, hostast.Range{FileIndex: fi}, imp.Path, imp.UnitAlias, imp.SymbolAliases))
		importIDs = append(importIDs, iid)
	}

	var contractIDs []hostast.NodeID
	for _, cj := range u.Contracts {
		contractIDs = append(contractIDs, buildContract(a, fi, cj))
	}

	var freeFnIDs []hostast.NodeID
	for _, fj := range u.Functions {
		freeFnIDs = append(freeFnIDs, buildFunction(a, fi, 0, fj))
	}

	uid := a.NextID()
	unit := hostast.NewSourceUnit(uid, hostast.Range{FileIndex: fi, Length: len(u.Source)}, u.Path, importIDs, contractIDs)
	unit.Functions = freeFnIDs
	a.Put(unit)
	return uid, nil
}

func buildContract(a *hostast.Arena, fi int, cj ContractJSON) hostast.NodeID {
	kind := hostast.KindContract
	switch cj.Kind {
	case "interface":
		kind = hostast.KindInterface
	case "library":
		kind = hostast.KindLibrary
	}

	cid := a.NextID()
	decl := hostast.NewContractDecl(cid, hostast.Range{Offset: cj.Offset, Length: cj.Length, FileIndex: fi}, cj.Name, kind, cj.Bases)

	if cj.Doc != "" {
		docID := a.NextID()
		a.Put(hostast.NewDocComment(docID, hostast.Range{Offset: cj.DocOffset, Length: len(cj.Doc), FileIndex: fi}, cj.Doc))
		decl.DocComment = docID
	}
	for _, vj := range cj.Variables {
		vid := a.NextID()
		v := hostast.NewVariableDecl(vid, hostast.Range{Offset: vj.Offset, Length: vj.Length, FileIndex: fi}, vj.Name, vj.Type, orDefault(vj.Visibility, "internal"), cid)
		if vj.Doc != "" {
			docID := a.NextID()
			a.Put(hostast.NewDocComment(docID, hostast.Range{Offset: vj.DocOffset, Length: len(vj.Doc), FileIndex: fi}, vj.Doc))
			v.DocComment = docID
		}
		a.Put(v)
		decl.Variables = append(decl.Variables, vid)
	}
	for _, fj := range cj.Functions {
		decl.Functions = append(decl.Functions, buildFunction(a, fi, cid, fj))
	}
	a.Put(decl)
	return cid
}

func buildFunction(a *hostast.Arena, fi int, contractID hostast.NodeID, fj FunctionJSON) hostast.NodeID {
	var stmtIDs []hostast.NodeID
	for _, text := range fj.Body {
		sid := a.NextID()
		a.Put(hostast.NewRawStmt(sid, hostast.Range{FileIndex: fi}, text))
		stmtIDs = append(stmtIDs, sid)
	}
	bodyID := a.NextID()
	a.Put(hostast.NewBlock(bodyID, hostast.Range{FileIndex: fi}, stmtIDs))

	fid := a.NextID()
	fn := hostast.NewFunctionDecl(fid,
		hostast.Range{Offset: fj.Offset, Length: fj.Length, FileIndex: fi},
		fj.Name, orDefault(fj.Visibility, "public"), orDefault(fj.Mutability, "nonpayable"))
	fn.IsConstructor = fj.Constructor
	fn.IsFallback = fj.Fallback
	for _, p := range fj.Params {
		fn.Params = append(fn.Params, hostast.Param{Name: p.Name, TypeString: p.Type})
	}
	for _, r := range fj.Returns {
		fn.Returns = append(fn.Returns, hostast.Param{Name: r.Name, TypeString: r.Type})
	}
	fn.Body = bodyID
	fn.ContractID = contractID
	if fj.Doc != "" {
		docID := a.NextID()
		a.Put(hostast.NewDocComment(docID, hostast.Range{Offset: fj.DocOffset, Length: len(fj.Doc), FileIndex: fi}, fj.Doc))
		fn.DocComment = docID
	}
	a.Put(fn)
	return fid
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
