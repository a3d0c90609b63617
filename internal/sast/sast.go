// Package sast defines the specification-language abstract syntax tree: the
// data the parsers in internal/specparser produce, the checker in
// internal/typecheck annotates, and the instrumenter in internal/instrument
// lowers to host-AST nodes.
//
// Every node carries a Range tracing it back to a byte span in some
// original file. Equality on Type is structural
// (Type.Equal); Expr nodes are compared by identity, never by value.
package sast

// Range is a byte span within one of the input files. FileIndex refers
// into the list of files a pipeline run was given; it lets an Expr cloned
// across a merge still resolve back to its original source.
type Range struct {
	Offset    int
	Length    int
	FileIndex int
}

func (r Range) End() int { return r.Offset + r.Length }

// Node is the common capability of every SAST node: a traceable range.
type Node interface {
	SourceRange() Range
}

// base embeds the Range every concrete node needs and implements Node.
type base struct {
	Rng Range
}

func (b base) SourceRange() Range { return b.Rng }

// Expr is implemented by every expression-grammar variant. exprNode is
// unexported so the set of variants is closed to this package.
type Expr interface {
	Node
	exprNode()
}

// ---- literals ----

type IntLiteral struct {
	base
	Value string // decimal/hex text, preserved verbatim; width/sign come from context
}

type BoolLiteral struct {
	base
	Value bool
}

type AddressLiteral struct {
	base
	Value string // checksum-cased hex literal, verbatim
}

type StringLiteral struct {
	base
	Value string
}

func (IntLiteral) exprNode()     {}
func (BoolLiteral) exprNode()    {}
func (AddressLiteral) exprNode() {}
func (StringLiteral) exprNode()  {}

// ---- names and access ----

// Identifier is a bare name; the checker resolves it against the scope
// chain described
type Identifier struct {
	base
	Name string
}

// Index is e[i], used for array/mapping access.
type Index struct {
	base
	Base  Expr
	Index Expr
}

// Member is e.name, used for struct field and contract state access.
type Member struct {
	base
	Base Expr
	Name string
}

// Call is a function call, either to a built-in, a user-defined #define,
// or (when reads-state-mutating) rejected by the purity checker.
type Call struct {
	base
	Callee Expr
	Args   []Expr
}

func (Identifier) exprNode() {}
func (Index) exprNode()      {}
func (Member) exprNode()     {}
func (Call) exprNode()       {}

// ---- operators ----

type UnaryOp struct {
	base
	Op      string // "!", "-", "~"
	Operand Expr
}

type BinaryOp struct {
	base
	Op          string // arithmetic/logical/comparison operator text
	Left, Right Expr
}

type Conditional struct {
	base
	Cond, Then, Else Expr
}

func (UnaryOp) exprNode()     {}
func (BinaryOp) exprNode()    {}
func (Conditional) exprNode() {}

// ---- spec-only constructs ----

// Old is the old(e) operator: e is evaluated against function-entry state.
// Valid only inside an if_succeeds annotation.
type Old struct {
	base
	Operand Expr
}

// Let is `let x := value in body`.
type Let struct {
	base
	Name  string
	Value Expr
	Body  Expr
}

// QuantifierKind distinguishes forall from exists.
type QuantifierKind string

const (
	Forall QuantifierKind = "forall"
	Exists QuantifierKind = "exists"
)

// Quantifier is `forall/exists (T x in R) e`. Range must be finite
// ; the checker rejects unbounded integer ranges.
type Quantifier struct {
	base
	Kind      QuantifierKind
	Binder    string
	BoundType Type
	Range     Expr
	Body      Expr
}

type Tuple struct {
	base
	Elements []Expr
}

// Cast is an explicit `T(e)` type conversion.
type Cast struct {
	base
	Target  Type
	Operand Expr
}

func (Old) exprNode()        {}
func (Let) exprNode()        {}
func (Quantifier) exprNode() {}
func (Tuple) exprNode()      {}
func (Cast) exprNode()       {}
