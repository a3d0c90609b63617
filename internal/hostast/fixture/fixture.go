// Package fixture builds small in-memory hostast.Arena trees for tests,
// standing in for the external compiler oracle (hostast.Oracle) without
// implementing a real target-language parser — which places
// out of scope for this core.
package fixture

import (
	"fmt"

	"github.com/oxhq/scribble/internal/hostast"
)

// ContractSpec describes one contract to build with Build.
type ContractSpec struct {
	Name      string
	Kind      hostast.Kind // hostast.KindContract, KindInterface, or KindLibrary
	Bases     []string
	Variables []VariableSpec
	Functions []FunctionSpec
	DocText   string // attached as a structured DocComment, simulating host-AST attachment
}

type VariableSpec struct {
	Name       string
	TypeString string
	Visibility string
	DocText    string
}

type FunctionSpec struct {
	Name            string
	Visibility      string
	StateMutability string
	IsConstructor   bool
	IsFallback      bool
	Params          []hostast.Param
	Body            []string // RawStmt texts, in order
	DocText         string
}

// Build assembles one SourceUnit containing the given contracts into a
// fresh arena and returns the arena and the unit's id. Every node's
// byte-range is a placeholder zero-length range at file offset 0; tests
// that exercise source-map behavior should set ranges explicitly.
func Build(path string, contracts []ContractSpec) (*hostast.Arena, hostast.NodeID) {
	a := hostast.NewArena()
	fi := a.AddFile(path, nil)

	unitID := a.NextID()
	var contractIDs []hostast.NodeID

	for _, cs := range contracts {
		contractIDs = append(contractIDs, buildContract(a, fi, cs))
	}

	a.Put(hostast.NewSourceUnit(unitID, rng(fi), path, nil, contractIDs))
	return a, unitID
}

func buildContract(a *hostast.Arena, fi int, cs ContractSpec) hostast.NodeID {
	cid := a.NextID()
	kind := cs.Kind
	if kind == "" {
		kind = hostast.KindContract
	}

	var docID hostast.NodeID
	if cs.DocText != "" {
		docID = a.NextID()
		a.Put(hostast.NewDocComment(docID, rng(fi), cs.DocText))
	}

	var varIDs, fnIDs []hostast.NodeID
	for _, vs := range cs.Variables {
		varIDs = append(varIDs, buildVariable(a, fi, cid, vs))
	}
	for _, fs := range cs.Functions {
		fnIDs = append(fnIDs, buildFunction(a, fi, cid, fs))
	}

	decl := hostast.NewContractDecl(cid, rng(fi), cs.Name, kind, cs.Bases)
	decl.Variables = varIDs
	decl.Functions = fnIDs
	decl.DocComment = docID
	a.Put(decl)
	return cid
}

func buildVariable(a *hostast.Arena, fi int, contractID hostast.NodeID, vs VariableSpec) hostast.NodeID {
	vid := a.NextID()
	var docID hostast.NodeID
	if vs.DocText != "" {
		docID = a.NextID()
		a.Put(hostast.NewDocComment(docID, rng(fi), vs.DocText))
	}
	vis := vs.Visibility
	if vis == "" {
		vis = "internal"
	}
	decl := hostast.NewVariableDecl(vid, rng(fi), vs.Name, vs.TypeString, vis, contractID)
	decl.DocComment = docID
	a.Put(decl)
	return vid
}

func buildFunction(a *hostast.Arena, fi int, contractID hostast.NodeID, fs FunctionSpec) hostast.NodeID {
	fid := a.NextID()
	var docID hostast.NodeID
	if fs.DocText != "" {
		docID = a.NextID()
		a.Put(hostast.NewDocComment(docID, rng(fi), fs.DocText))
	}

	var stmtIDs []hostast.NodeID
	for _, text := range fs.Body {
		sid := a.NextID()
		a.Put(hostast.NewRawStmt(sid, rng(fi), text))
		stmtIDs = append(stmtIDs, sid)
	}
	bodyID := a.NextID()
	a.Put(hostast.NewBlock(bodyID, rng(fi), stmtIDs))

	vis := fs.Visibility
	if vis == "" {
		vis = "public"
	}
	mut := fs.StateMutability
	if mut == "" {
		mut = "nonpayable"
	}

	decl := hostast.NewFunctionDecl(fid, rng(fi), fs.Name, vis, mut)
	decl.IsConstructor = fs.IsConstructor
	decl.IsFallback = fs.IsFallback
	decl.Params = fs.Params
	decl.Body = bodyID
	decl.ContractID = contractID
	decl.DocComment = docID
	a.Put(decl)
	return fid
}

func rng(fi int) hostast.Range { return hostast.Range{FileIndex: fi} }

// ContractNode is a small accessor helper for tests asserting on the built
// tree; it panics (failing the test loudly) if id does not name a
// ContractDecl.
func ContractNode(a *hostast.Arena, id hostast.NodeID) *hostast.ContractDecl {
	n, ok := a.Get(id).(*hostast.ContractDecl)
	if !ok {
		panic(fmt.Sprintf("fixture: node %d is not a contract", id))
	}
	return n
}

// FunctionNode is the FunctionDecl analog of ContractNode.
func FunctionNode(a *hostast.Arena, id hostast.NodeID) *hostast.FunctionDecl {
	n, ok := a.Get(id).(*hostast.FunctionDecl)
	if !ok {
		panic(fmt.Sprintf("fixture: node %d is not a function", id))
	}
	return n
}
