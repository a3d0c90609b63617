// Package hostast models the externally-provided host AST: a
// tree of nodes with stable integer identifiers, a mutable parent/child
// relation, a per-node source range, and reference edges. The core treats
// it as read-mostly — it inserts and splices but never silently rewrites
// referent edges.
//
// target-language compilation itself is out of scope: this
// package only declares the shape the external compiler oracle must hand
// back (Oracle) and the arena the rest of the pipeline mutates.
package hostast

// NodeID is a stable identifier, unique within one Arena. Zero is never a
// valid id; it means "no node" (e.g. an unresolved reference or an absent
// optional child).
type NodeID int

// Range is a byte span within one of the arena's files.
type Range struct {
	Offset    int
	Length    int
	FileIndex int
}

func (r Range) End() int { return r.Offset + r.Length }

// Kind tags the concrete Go type backing a Node, so callers that only need
// to branch on shape (not on the full variant) can do so without a type
// assertion.
type Kind string

const (
	KindSourceUnit  Kind = "source_unit"
	KindImport      Kind = "import"
	KindContract    Kind = "contract"
	KindInterface   Kind = "interface"
	KindLibrary     Kind = "library"
	KindFunction    Kind = "function"
	KindVariable    Kind = "variable"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindBlock       Kind = "block"
	KindDocComment  Kind = "doc_comment"
	KindRawStmt     Kind = "raw_stmt"
	KindVarDeclStmt Kind = "var_decl_stmt"
	KindExprStmt    Kind = "expr_stmt"
	KindIfStmt      Kind = "if_stmt"
	KindForStmt     Kind = "for_stmt"
	KindReturnStmt  Kind = "return_stmt"
	KindIdent       Kind = "ident"
	KindRawExpr     Kind = "raw_expr"
	KindCall        Kind = "call"
)

// Node is implemented by every concrete AST node type in this package. The
// set is closed (nodeType is unexported); instrumenter code that needs to
// replace a child's slot goes through Arena.ReplaceChild rather than
// reaching into a Node's fields directly from outside the package.
type Node interface {
	ID() NodeID
	Kind() Kind
	SourceRange() Range
	ChildIDs() []NodeID
	nodeType()
}

type base struct {
	Ident NodeID
	Rng   Range
}

func (b base) ID() NodeID         { return b.Ident }
func (b base) SourceRange() Range { return b.Rng }
func (base) nodeType()            {}

// Referencer is the capability exposed by nodes that participate in
// referent tracking: an identifier-like node that names a
// declaration elsewhere in the tree. The merger (internal/merge) uses this
// capability set, not reflection, to find and rewrite referent edges.
type Referencer interface {
	Referent() NodeID
	SetReferent(NodeID)
}

// Param is a typed parameter slot shared by function, struct and #define
// signatures.
type Param struct {
	Name       string
	TypeString string // the host compiler's external type-string, re-parsed by specparser.ParseTypeString
}

// SourceUnit is one compiled file's root. two SourceUnits
// with the same Path are the classic merge-collision case.
type SourceUnit struct {
	base
	Path      string
	Imports   []NodeID
	Contracts []NodeID
	Functions []NodeID // free-standing functions outside any contract
}

func (SourceUnit) Kind() Kind { return KindSourceUnit }
func (n SourceUnit) ChildIDs() []NodeID {
	ids := append(append([]NodeID{}, n.Imports...), n.Contracts...)
	return append(ids, n.Functions...)
}

// Import is one import directive. SymbolAliases maps an imported symbol's
// original name to the local alias it was imported under (`import {a as
// b}`), consumed by the flattener's reference-fixing pass.
type Import struct {
	base
	Path           string
	UnitAlias      string
	SymbolAliases  map[string]string
	ResolvedUnitID NodeID
}

func (Import) Kind() Kind           { return KindImport }
func (n Import) ChildIDs() []NodeID { return nil }

// ContractDecl is a contract, interface, or library declaration.
// BaseNames preserves the host source's declared inheritance order; BaseIDs
// is filled in once the merger/CHA have resolved each name to a
// ContractDecl node.
type ContractDecl struct {
	base
	Name         string
	ContractKind Kind // KindContract, KindInterface, or KindLibrary
	BaseNames    []string
	BaseIDs      []NodeID
	Variables    []NodeID
	Functions    []NodeID
	Structs      []NodeID
	Enums        []NodeID
	// Raws holds opaque contract-level members the core does not need to
	// decompose (events, modifiers, using-for); the instrumenter also
	// installs generated event declarations here.
	Raws       []NodeID
	DocComment NodeID
}

func (ContractDecl) Kind() Kind { return KindContract }
func (n ContractDecl) ChildIDs() []NodeID {
	ids := append([]NodeID{}, n.Variables...)
	ids = append(ids, n.Functions...)
	ids = append(ids, n.Structs...)
	ids = append(ids, n.Enums...)
	ids = append(ids, n.Raws...)
	if n.DocComment != 0 {
		ids = append(ids, n.DocComment)
	}
	return ids
}

// IsInstrumentable reports whether contract-invariant wrapping may ever
// apply to this declaration; interfaces and libraries are never
// instrumented with contract invariants.
func (n ContractDecl) IsInstrumentable() bool { return n.ContractKind == KindContract }

// FunctionDecl is a function, method, constructor, or fallback.
// StateMutability is one of "pure", "view", "nonpayable", "payable".
type FunctionDecl struct {
	base
	Name            string
	Visibility      string // "public", "external", "internal", "private"
	StateMutability string
	IsConstructor   bool
	IsFallback      bool
	Params          []Param
	Returns         []Param
	Body            NodeID // a Block, or 0 for an abstract/interface signature
	ContractID      NodeID
	DocComment      NodeID
}

func (FunctionDecl) Kind() Kind { return KindFunction }
func (n FunctionDecl) ChildIDs() []NodeID {
	var ids []NodeID
	if n.Body != 0 {
		ids = append(ids, n.Body)
	}
	if n.DocComment != 0 {
		ids = append(ids, n.DocComment)
	}
	return ids
}

// IsExternallyVisible reports whether external callers can invoke this
// function directly.
func (n FunctionDecl) IsExternallyVisible() bool {
	return n.Visibility == "public" || n.Visibility == "external"
}

// IsStateMutating reports whether this function can write state, i.e. is
// neither pure nor view.
func (n FunctionDecl) IsStateMutating() bool {
	return n.StateMutability != "pure" && n.StateMutability != "view"
}

// WrapEligible reports whether function-level wrapping
// applies: externally visible, state-mutating, not a constructor, not a
// fallback.
func (n FunctionDecl) WrapEligible() bool {
	return n.IsExternallyVisible() && n.IsStateMutating() && !n.IsConstructor && !n.IsFallback
}

// VariableDecl is a contract-level state variable.
type VariableDecl struct {
	base
	Name       string
	TypeString string
	Visibility string
	ContractID NodeID
	DocComment NodeID
}

func (VariableDecl) Kind() Kind { return KindVariable }
func (n VariableDecl) ChildIDs() []NodeID {
	if n.DocComment == 0 {
		return nil
	}
	return []NodeID{n.DocComment}
}

type StructDecl struct {
	base
	Name       string
	Fields     []Param
	ContractID NodeID
}

func (StructDecl) Kind() Kind         { return KindStruct }
func (StructDecl) ChildIDs() []NodeID { return nil }

type EnumDecl struct {
	base
	Name       string
	Members    []string
	ContractID NodeID
}

func (EnumDecl) Kind() Kind         { return KindEnum }
func (EnumDecl) ChildIDs() []NodeID { return nil }

// DocComment is the structured-documentation child the host AST attaches
// to a declaration when the compiler parsed one; the extractor prefers
// it over its raw-source fallback scan when present.
type DocComment struct {
	base
	Text string
}

func (DocComment) Kind() Kind         { return KindDocComment }
func (DocComment) ChildIDs() []NodeID { return nil }

// Block is an ordered list of statements; the instrumenter splices into
// Statements to install preludes, interposed calls, and invariant checks.
type Block struct {
	base
	Statements []NodeID
}

func (Block) Kind() Kind           { return KindBlock }
func (n Block) ChildIDs() []NodeID { return append([]NodeID{}, n.Statements...) }

// RawStmt is an opaque statement copied verbatim from the original parse;
// the core never needs to look inside it, only preserve or relocate it;
// rewriting host statements is not this tool's business.
type RawStmt struct {
	base
	Text string
}

func (RawStmt) Kind() Kind         { return KindRawStmt }
func (RawStmt) ChildIDs() []NodeID { return nil }

// VarDeclStmt declares and initializes a local; the instrumenter uses it
// for old(e) capture locals lifted into a prologue assignment.
type VarDeclStmt struct {
	base
	Name       string
	TypeString string
	Init       NodeID // a Node implementing an expression shape (RawExpr/Ident/Call)
}

func (VarDeclStmt) Kind() Kind { return KindVarDeclStmt }
func (n VarDeclStmt) ChildIDs() []NodeID {
	if n.Init == 0 {
		return nil
	}
	return []NodeID{n.Init}
}

type ExprStmt struct {
	base
	Expr NodeID
}

func (ExprStmt) Kind() Kind           { return KindExprStmt }
func (n ExprStmt) ChildIDs() []NodeID { return []NodeID{n.Expr} }

// IfStmt is used to splice the reentrancy guard and the generated assert
// conditions.
type IfStmt struct {
	base
	Cond NodeID
	Then NodeID // a Block
	Else NodeID // a Block, or 0
}

func (IfStmt) Kind() Kind { return KindIfStmt }
func (n IfStmt) ChildIDs() []NodeID {
	ids := []NodeID{n.Cond, n.Then}
	if n.Else != 0 {
		ids = append(ids, n.Else)
	}
	return ids
}

// ForStmt is emitted when a quantifier is unrolled into a host loop over
// its stated range.
type ForStmt struct {
	base
	InitName   string
	RangeStart NodeID
	RangeEnd   NodeID
	Body       NodeID // a Block
}

func (ForStmt) Kind() Kind           { return KindForStmt }
func (n ForStmt) ChildIDs() []NodeID { return []NodeID{n.RangeStart, n.RangeEnd, n.Body} }

type ReturnStmt struct {
	base
	Value NodeID
}

func (ReturnStmt) Kind() Kind { return KindReturnStmt }
func (n ReturnStmt) ChildIDs() []NodeID {
	if n.Value == 0 {
		return nil
	}
	return []NodeID{n.Value}
}

// Ident is an identifier expression node. It is the one node type that
// carries a referent edge to the declaration it names.
type Ident struct {
	base
	Name         string
	ReferentNode NodeID
}

func (Ident) Kind() Kind               { return KindIdent }
func (Ident) ChildIDs() []NodeID       { return nil }
func (n Ident) Referent() NodeID       { return n.ReferentNode }
func (n *Ident) SetReferent(id NodeID) { n.ReferentNode = id }

// RawExpr is generated or copied expression text the instrumenter does not
// need to decompose further (e.g. a literal or a pre-rendered comparison).
type RawExpr struct {
	base
	Text string
}

func (RawExpr) Kind() Kind         { return KindRawExpr }
func (RawExpr) ChildIDs() []NodeID { return nil }

// Call is a function/event call node, used by codegen for assert(...),
// emit DebugEvent(...), and inlined #define invocations.
type Call struct {
	base
	Callee NodeID
	Args   []NodeID
}

func (Call) Kind() Kind           { return KindCall }
func (n Call) ChildIDs() []NodeID { return append([]NodeID{n.Callee}, n.Args...) }
